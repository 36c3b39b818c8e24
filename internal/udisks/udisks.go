// Package udisks mounts and unmounts block devices through UDisks2, either by
// running udisksctl or by calling the daemon over DBus.
package udisks

import (
	"context"
	"errors"
	"fmt"
)

// Action is what to do with a device
type Action int

const (
	Mount Action = iota
	Unmount
)

func (a Action) String() string {
	switch a {
	case Mount:
		return "mount"
	case Unmount:
		return "unmount"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Exit codes reported for failures that have no process exit status
const (
	// ExitNotFound is reported when the mount program is not installed
	ExitNotFound = 127
	// ExitFailure is reported for DBus failures
	ExitFailure = 1
)

// Actuator mounts or unmounts a device
type Actuator interface {
	// Actuate performs action on device. For Mount, the returned string is
	// the mount point when the backend knows it, "" otherwise.
	// Failures are returned as *ActuationError.
	Actuate(ctx context.Context, action Action, device string) (string, error)

	// Close releases backend resources
	Close() error
}

// ActuationError is a failed mount or unmount
type ActuationError struct {
	Action   Action
	Device   string
	ExitCode int
	Err      error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("%s %s failed (exit code %d): %v", e.Action, e.Device, e.ExitCode, e.Err)
}

func (e *ActuationError) Unwrap() error {
	return e.Err
}

// ErrDeviceNotFound is returned when UDisks2 does not know the device
var ErrDeviceNotFound = errors.New("device not found")

// NewActuator creates an Actuator based on the specified backend
func NewActuator(backend, udisksctl string) (Actuator, error) {
	switch backend {
	case "cli":
		return NewCLIActuator(udisksctl), nil
	case "dbus":
		return NewDBusActuator()
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'dbus' or 'cli')", backend)
	}
}
