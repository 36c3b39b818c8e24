// Package finder drives an fzf-compatible fuzzy finder as a child process.
package finder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kriansa/fmcmd/internal/log"
)

// fzf exit codes
const (
	exitNoMatch     = 1
	exitInterrupted = 130
)

// Options controls how candidates are presented
type Options struct {
	// Prompt is the input prompt (e.g., "mount> ")
	Prompt string
	// WithNth restricts the displayed and matched fields (e.g., "2..")
	WithNth string
	// Delimiter is the field delimiter used by WithNth
	Delimiter string
	// Preview is a shell command rendered next to the current candidate
	Preview string
}

// Finder selects a line interactively. An empty result with a nil error means
// the user aborted.
type Finder interface {
	// Select presents lines and returns the chosen one
	Select(ctx context.Context, lines []string, opts Options) (string, error)
	// Pick lets the finder walk dir on its own and returns the chosen path
	Pick(ctx context.Context, dir string, opts Options) (string, error)
}

// FzfFinder implements Finder by running fzf
type FzfFinder struct {
	program     string
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// FzfOption is a functional option for FzfFinder
type FzfOption func(*FzfFinder)

// WithExecCommand replaces exec.CommandContext (for testing)
func WithExecCommand(fn func(ctx context.Context, name string, args ...string) *exec.Cmd) FzfOption {
	return func(f *FzfFinder) {
		f.execCommand = fn
	}
}

// NewFzfFinder creates a finder running the given fzf program
func NewFzfFinder(program string, opts ...FzfOption) *FzfFinder {
	f := &FzfFinder{
		program:     program,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Args builds the fzf command line for opts
func (o Options) Args() []string {
	args := []string{"--ansi"}
	if o.Delimiter != "" {
		args = append(args, "--delimiter="+o.Delimiter)
	}
	if o.WithNth != "" {
		args = append(args, "--with-nth="+o.WithNth)
	}
	if o.Prompt != "" {
		args = append(args, "--prompt="+o.Prompt)
	}
	if o.Preview != "" {
		args = append(args, "--preview="+o.Preview)
	}
	return args
}

// Select writes lines to fzf's stdin and returns the selected line
func (f *FzfFinder) Select(ctx context.Context, lines []string, opts Options) (string, error) {
	log.Debug("running finder", "program", f.program, "candidates", len(lines))

	cmd := f.execCommand(ctx, f.program, opts.Args()...)
	cmd.Stdin = strings.NewReader(strings.Join(lines, "\n") + "\n")
	return f.run(cmd)
}

// Pick runs fzf in dir without piped input, so fzf lists files itself
func (f *FzfFinder) Pick(ctx context.Context, dir string, opts Options) (string, error) {
	log.Debug("running finder", "program", f.program, "dir", dir)

	cmd := f.execCommand(ctx, f.program, opts.Args()...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	return f.run(cmd)
}

// run waits for fzf and maps its exit status. fzf draws on /dev/tty, so only
// stdout is captured.
func (f *FzfFinder) run(cmd *exec.Cmd) (string, error) {
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	selected := firstLine(stdout.String())

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && selected == "" {
			switch exitErr.ExitCode() {
			case exitNoMatch, exitInterrupted:
				log.Debug("finder aborted", "code", exitErr.ExitCode())
				return "", nil
			}
		}
		return "", fmt.Errorf("run %s: %w", f.program, err)
	}

	return selected, nil
}

// firstLine returns the first selected line without trailing whitespace
func firstLine(out string) string {
	out = strings.TrimLeft(out, "\r\n")
	line, _, _ := strings.Cut(out, "\n")
	return strings.TrimRight(line, " \t\r")
}
