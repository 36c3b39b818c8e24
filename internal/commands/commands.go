// Package commands implements the file-manager actions exposed as fmcmd
// subcommands and the registry that dispatches them by name.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"

	"mvdan.cc/sh/v3/shell"
)

// Env is the host state a command runs against
type Env struct {
	// Dir is the current directory
	Dir string
	// Selection holds the currently selected files, first is the file under
	// the cursor
	Selection []string
}

// Result tells the host what to do after a command
type Result struct {
	// Dir is the directory to enter, empty to stay
	Dir string
	// Selected is the file to select, empty for none
	Selected string
}

// Command is a named file-manager action
type Command interface {
	Name() string
	Usage() string
	Execute(ctx context.Context, env Env, args []string) (Result, error)
}

// ErrNoTarget is returned when a command has neither arguments nor a selection
var ErrNoTarget = errors.New("no file given and nothing selected")

// ExitError is a failure the command has already reported through its
// notifier. Code is the process exit status to use.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Registry maps command names to commands. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds a command.
// Panics on an empty name or if the name is already registered.
func (r *Registry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := cmd.Name()
	if name == "" {
		panic("commands: cannot register command with empty name")
	}
	if _, exists := r.commands[name]; exists {
		panic(fmt.Sprintf("commands: command %q already registered", name))
	}
	r.commands[name] = cmd
}

// Lookup retrieves a command by name
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns the registered command names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named command
func (r *Registry) Execute(ctx context.Context, name string, env Env, args []string) (Result, error) {
	cmd, ok := r.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%s: command not found", name)
	}
	return cmd.Execute(ctx, env, args)
}

// ExecuteLine splits line with shell word rules and runs it, the first word
// naming the command. Quotes, ~ and $VAR are expanded.
func (r *Registry) ExecuteLine(ctx context.Context, env Env, line string) (Result, error) {
	fields, err := shell.Fields(line, nil)
	if err != nil {
		return Result{}, fmt.Errorf("parse command line: %w", err)
	}
	if len(fields) == 0 {
		return Result{}, errors.New("empty command line")
	}
	return r.Execute(ctx, fields[0], env, fields[1:])
}

// runner starts external programs with the caller's terminal attached
type runner struct {
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
}

// Option is a functional option shared by the commands that run programs
type Option func(*runner)

// WithExecCommand replaces exec.CommandContext (for testing)
func WithExecCommand(fn func(ctx context.Context, name string, args ...string) *exec.Cmd) Option {
	return func(r *runner) {
		r.execCommand = fn
	}
}

// WithStdio sets the streams handed to child programs
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *runner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

func newRunner(opts []Option) runner {
	r := runner{
		execCommand: exec.CommandContext,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// run executes argv in dir and waits for it
func (r runner) run(ctx context.Context, dir string, argv []string) error {
	cmd := r.execCommand(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}
