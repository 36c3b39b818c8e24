//go:build integration

// Package fmcmdclient runs fmcmd inside the test VM over SSH.
package fmcmdclient

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/kriansa/fmcmd/tests/integration/vm"
)

// PickerScript is installed in the VM as the fzf stand-in. It prints the
// first input line containing $FZF_PICK, or exits 130 like an aborted fzf
// when nothing matches.
const PickerScript = `#!/bin/sh
if [ -z "$FZF_PICK" ]; then
  cat >/dev/null
  exit 130
fi
line=$(grep -F -m1 -- "$FZF_PICK")
[ -n "$line" ] || exit 1
printf '%s\n' "$line"
`

// Result is the outcome of one fmcmd invocation
type Result struct {
	Output   string
	ExitCode int
}

// Client runs fmcmd commands in the VM
type Client struct {
	vm         vm.VM
	binary     string
	configPath string
}

// NewClient creates a client running binary with the config at configPath
func NewClient(v vm.VM, binary, configPath string) *Client {
	return &Client{vm: v, binary: binary, configPath: configPath}
}

// MountSelect runs mount-select, picking the first line that contains pick.
// An empty pick cancels the selection.
func (c *Client) MountSelect(pick string, flags ...string) (Result, error) {
	return c.runPicking(pick, "mount-select", flags)
}

// UnmountSelect runs unmount-select, picking like MountSelect
func (c *Client) UnmountSelect(pick string, flags ...string) (Result, error) {
	return c.runPicking(pick, "unmount-select", flags)
}

// Run executes fmcmd with args as an unprivileged user
func (c *Client) Run(args ...string) (Result, error) {
	cmd := fmt.Sprintf("%s --config %s %s", c.binary, shellQuote(c.configPath), joinQuoted(args))
	return c.exec(cmd)
}

func (c *Client) runPicking(pick, command string, flags []string) (Result, error) {
	// udisksctl needs polkit authorization; root has it without a prompt
	cmd := fmt.Sprintf("sudo FZF_PICK=%s %s --config %s %s %s",
		shellQuote(pick), c.binary, shellQuote(c.configPath), joinQuoted(flags), command)
	return c.exec(cmd)
}

func (c *Client) exec(cmd string) (Result, error) {
	output, err := c.vm.Run(cmd)
	if err == nil {
		return Result{Output: output}, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return Result{Output: output, ExitCode: exitErr.ExitStatus()}, nil
	}
	return Result{}, fmt.Errorf("run %q: %w: %s", cmd, err, output)
}

func joinQuoted(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellQuote(a))
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
