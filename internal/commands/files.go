package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kriansa/fmcmd/internal/log"
	"github.com/kriansa/fmcmd/internal/notify"
)

// Edit opens a file in the configured editor
type Edit struct {
	editor   []string
	notifier notify.Notifier
	runner   runner
}

// NewEdit creates the edit command. editor is the program and its leading
// arguments, e.g. ["code", "-w"].
func NewEdit(editor []string, n notify.Notifier, opts ...Option) *Edit {
	return &Edit{
		editor:   editor,
		notifier: n,
		runner:   newRunner(opts),
	}
}

func (c *Edit) Name() string  { return "edit" }
func (c *Edit) Usage() string { return "Open a file (default: the selected one) in the editor" }

// Execute edits the file named by args joined with spaces, or the first
// selected file
func (c *Edit) Execute(ctx context.Context, env Env, args []string) (Result, error) {
	target := strings.Join(args, " ")
	if target == "" {
		if len(env.Selection) == 0 {
			return Result{}, ErrNoTarget
		}
		target = env.Selection[0]
	}
	target = resolve(env.Dir, target)

	c.notifier.Notify(notify.LevelInfo, "editing "+target)

	if _, err := os.Stat(target); err != nil {
		c.notifier.Notify(notify.LevelError, "the given file does not exist")
		return Result{}, &ExitError{Code: 1, Err: fmt.Errorf("edit %s: %w", target, err)}
	}

	argv := append(append([]string(nil), c.editor...), target)
	log.Debug("starting editor", "argv", argv)
	if err := c.runner.run(ctx, env.Dir, argv); err != nil {
		return Result{}, fmt.Errorf("edit %s: %w", target, err)
	}
	return Result{}, nil
}

// Trash moves files to the trash with trash-put
type Trash struct {
	program  string
	notifier notify.Notifier
	runner   runner
}

// NewTrash creates the trash command running program (usually trash-put)
func NewTrash(program string, n notify.Notifier, opts ...Option) *Trash {
	return &Trash{
		program:  program,
		notifier: n,
		runner:   newRunner(opts),
	}
}

func (c *Trash) Name() string  { return "trash" }
func (c *Trash) Usage() string { return "Move files (default: the selection) to the trash" }

// Execute trashes args, or the selection when no args are given. Nothing to
// trash is not an error.
func (c *Trash) Execute(ctx context.Context, env Env, args []string) (Result, error) {
	files := args
	if len(files) == 0 {
		files = env.Selection
	}
	if len(files) == 0 {
		log.Debug("nothing to trash")
		return Result{}, nil
	}

	paths := make([]string, 0, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		p := realPath(resolve(env.Dir, f))
		paths = append(paths, p)
		names = append(names, filepath.Base(p))
	}

	c.notifier.Notify(notify.LevelInfo, "Trashing: "+strings.Join(names, ", "))

	argv := append([]string{c.program}, paths...)
	if err := c.runner.run(ctx, env.Dir, argv); err != nil {
		err = fmt.Errorf("trash: %w", err)
		c.notifier.Notify(notify.LevelError, err.Error())
		return Result{}, &ExitError{Code: 1, Err: err}
	}
	return Result{}, nil
}

// resolve makes path absolute relative to dir
func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

// realPath resolves symlinks, falling back to the cleaned absolute path for
// files that cannot be resolved
func realPath(path string) string {
	if p, err := filepath.EvalSymlinks(path); err == nil {
		path = p
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
