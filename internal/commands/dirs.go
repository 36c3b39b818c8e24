package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kriansa/fmcmd/internal/finder"
	"github.com/kriansa/fmcmd/internal/log"
	"github.com/kriansa/fmcmd/internal/validation"
)

// Mkcd creates a directory and enters it
type Mkcd struct{}

// NewMkcd creates the mkcd command
func NewMkcd() *Mkcd {
	return &Mkcd{}
}

func (c *Mkcd) Name() string  { return "mkcd" }
func (c *Mkcd) Usage() string { return "Create a directory (with parents) and enter it" }

// Execute creates args joined with spaces below env.Dir. An existing
// directory is fine.
func (c *Mkcd) Execute(_ context.Context, env Env, args []string) (Result, error) {
	name := strings.Join(args, " ")
	if err := validation.ValidateDirName(name); err != nil {
		return Result{}, err
	}

	expanded, err := expandHome(name)
	if err != nil {
		return Result{}, fmt.Errorf("mkcd: %w", err)
	}
	dir := filepath.Clean(resolve(env.Dir, expanded))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("mkcd: %w", err)
	}

	log.Debug("directory ready", "path", dir)
	return Result{Dir: dir}, nil
}

// expandHome replaces a leading ~ or ~/ with the home directory
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// FzfSelect jumps to a file or directory chosen with the fuzzy finder
type FzfSelect struct {
	finder  finder.Finder
	preview string
}

// NewFzfSelect creates the fzf-select command. preview is the finder preview
// command, empty for none.
func NewFzfSelect(f finder.Finder, preview string) *FzfSelect {
	return &FzfSelect{finder: f, preview: preview}
}

func (c *FzfSelect) Name() string  { return "fzf-select" }
func (c *FzfSelect) Usage() string { return "Jump to a file or directory with fzf" }

// Execute lets the user pick a path below env.Dir. Directories are entered,
// anything else is selected. Cancelling yields an empty Result.
func (c *FzfSelect) Execute(ctx context.Context, env Env, _ []string) (Result, error) {
	selected, err := c.finder.Pick(ctx, env.Dir, finder.Options{Preview: c.preview})
	if err != nil {
		return Result{}, fmt.Errorf("fzf-select: %w", err)
	}
	if selected == "" {
		return Result{}, nil
	}

	path := filepath.Clean(resolve(env.Dir, selected))
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return Result{Dir: path}, nil
	}
	return Result{Selected: path}, nil
}
