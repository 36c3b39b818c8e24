package udisks

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"

	"github.com/kriansa/fmcmd/internal/log"
)

// CLIActuator implements Actuator using the udisksctl CLI
type CLIActuator struct {
	program     string
	stdin       io.Reader
	output      io.Writer
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// CLIOption is a functional option for CLIActuator
type CLIOption func(*CLIActuator)

// WithExecCommand replaces exec.CommandContext (for testing)
func WithExecCommand(fn func(ctx context.Context, name string, args ...string) *exec.Cmd) CLIOption {
	return func(a *CLIActuator) {
		a.execCommand = fn
	}
}

// WithOutput sends the program's stdout and stderr to w
func WithOutput(w io.Writer) CLIOption {
	return func(a *CLIActuator) {
		a.output = w
	}
}

// NewCLIActuator creates an actuator running the given udisksctl program.
// The program keeps the terminal's stdin so polkit can prompt for a password;
// its output goes to stderr to keep stdout free for results.
func NewCLIActuator(program string, opts ...CLIOption) *CLIActuator {
	a := &CLIActuator{
		program:     program,
		stdin:       os.Stdin,
		output:      os.Stderr,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Actuate runs `<program> mount|unmount -b <device>`. Only the exit code is
// inspected.
func (a *CLIActuator) Actuate(ctx context.Context, action Action, device string) (string, error) {
	log.Debug("running mount program", "program", a.program, "action", action, "device", device)

	cmd := a.execCommand(ctx, a.program, action.String(), "-b", device)
	cmd.Stdin = a.stdin
	cmd.Stdout = a.output
	cmd.Stderr = a.output

	if err := cmd.Run(); err != nil {
		actErr := &ActuationError{Action: action, Device: device, ExitCode: ExitFailure, Err: err}

		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			// -1 means killed by a signal
			if code := exitErr.ExitCode(); code > 0 {
				actErr.ExitCode = code
			}
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			actErr.ExitCode = ExitNotFound
		}
		return "", actErr
	}

	log.Debug("mount program succeeded", "action", action, "device", device)
	return "", nil
}

// Close is a no-op for the CLI backend
func (a *CLIActuator) Close() error {
	return nil
}
