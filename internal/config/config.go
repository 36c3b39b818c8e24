package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"mvdan.cc/sh/v3/shell"
)

const (
	// DefaultBackend is the default mount backend
	DefaultBackend = "cli"
	// DefaultNotify is the default notification target
	DefaultNotify = "terminal"

	DefaultLsblk     = "lsblk"
	DefaultFzf       = "fzf"
	DefaultUdisksctl = "udisksctl"
	DefaultTrash     = "trash-put"
	DefaultEditor    = "vi"

	// DefaultPreview is the fzf preview used by the file jumper
	DefaultPreview = "bat --style=numbers --color=always --line-range :500 {} 2>/dev/null || ls -la --color=always {}"
)

// Config holds the fmcmd configuration
type Config struct {
	// Backend selects how devices are mounted: "cli" (udisksctl) or "dbus" (UDisks2)
	Backend string `toml:"backend"`
	// Notify selects where notifications go: "terminal" or "desktop"
	Notify string `toml:"notify"`
	// Lsblk is the block-device listing program
	Lsblk string `toml:"lsblk"`
	// Fzf is the fuzzy finder program
	Fzf string `toml:"fzf"`
	// Udisksctl is the mount/unmount program used by the cli backend
	Udisksctl string `toml:"udisksctl"`
	// Trash is the program that moves files to the trash
	Trash string `toml:"trash"`
	// Editor is the editor command line, split with shell word rules
	Editor string `toml:"editor"`
	// Preview is the fzf preview command for the file jumper
	Preview string `toml:"preview"`
	// RemovableOnly restricts mount candidates to removable devices
	RemovableOnly bool `toml:"removable_only"`
}

// DefaultPath returns the default config file location,
// $XDG_CONFIG_HOME/fmcmd/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fmcmd", "config.toml")
}

// Load loads configuration from a TOML file
// Returns an empty config if the file doesn't exist
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Merge merges CLI flags into the config, with CLI flags taking precedence
// over config file values. Empty CLI values are ignored.
func (c *Config) Merge(backend, notify string) {
	if backend != "" {
		c.Backend = backend
	}
	if notify != "" {
		c.Notify = notify
	}
}

// ApplyDefaults applies default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.Notify == "" {
		c.Notify = DefaultNotify
	}
	if c.Lsblk == "" {
		c.Lsblk = DefaultLsblk
	}
	if c.Fzf == "" {
		c.Fzf = DefaultFzf
	}
	if c.Udisksctl == "" {
		c.Udisksctl = DefaultUdisksctl
	}
	if c.Trash == "" {
		c.Trash = DefaultTrash
	}
	if c.Preview == "" {
		c.Preview = DefaultPreview
	}
	if c.Editor == "" {
		c.Editor = editorFromEnv()
	}
}

func editorFromEnv() string {
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return DefaultEditor
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Backend != "dbus" && c.Backend != "cli" {
		return fmt.Errorf("backend must be 'dbus' or 'cli', got %q", c.Backend)
	}

	if c.Notify != "terminal" && c.Notify != "desktop" {
		return fmt.Errorf("notify must be 'terminal' or 'desktop', got %q", c.Notify)
	}

	if _, err := c.EditorCommand(); err != nil {
		return err
	}

	return nil
}

// EditorCommand splits the editor setting into program and arguments,
// e.g. "code -w" becomes ["code", "-w"].
func (c *Config) EditorCommand() ([]string, error) {
	fields, err := shell.Fields(c.Editor, nil)
	if err != nil {
		return nil, fmt.Errorf("parse editor %q: %w", c.Editor, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("editor command is empty")
	}
	return fields, nil
}
