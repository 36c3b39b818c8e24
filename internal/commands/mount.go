package commands

import (
	"context"
	"fmt"

	"github.com/kriansa/fmcmd/internal/blockdev"
	"github.com/kriansa/fmcmd/internal/log"
	"github.com/kriansa/fmcmd/internal/mountsel"
	"github.com/kriansa/fmcmd/internal/notify"
	"github.com/kriansa/fmcmd/internal/udisks"
)

// DeviceSelect picks a partition interactively and mounts or unmounts it
type DeviceSelect struct {
	action        udisks.Action
	lister        blockdev.Lister
	selector      *mountsel.Selector
	notifier      notify.Notifier
	removableOnly bool
}

// DeviceOption is a functional option for DeviceSelect
type DeviceOption func(*DeviceSelect)

// WithRemovableOnly limits mount candidates to removable devices
func WithRemovableOnly(only bool) DeviceOption {
	return func(c *DeviceSelect) {
		c.removableOnly = only
	}
}

// NewMountSelect creates the mount-select command
func NewMountSelect(l blockdev.Lister, s *mountsel.Selector, n notify.Notifier, opts ...DeviceOption) *DeviceSelect {
	return newDeviceSelect(udisks.Mount, l, s, n, opts)
}

// NewUnmountSelect creates the unmount-select command
func NewUnmountSelect(l blockdev.Lister, s *mountsel.Selector, n notify.Notifier, opts ...DeviceOption) *DeviceSelect {
	return newDeviceSelect(udisks.Unmount, l, s, n, opts)
}

func newDeviceSelect(action udisks.Action, l blockdev.Lister, s *mountsel.Selector, n notify.Notifier, opts []DeviceOption) *DeviceSelect {
	c := &DeviceSelect{
		action:   action,
		lister:   l,
		selector: s,
		notifier: n,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DeviceSelect) Name() string {
	if c.action == udisks.Unmount {
		return "unmount-select"
	}
	return "mount-select"
}

func (c *DeviceSelect) Usage() string {
	if c.action == udisks.Unmount {
		return "Pick a mounted partition with fzf and unmount it"
	}
	return "Pick a partition with fzf and mount it"
}

// Execute lists partitions, lets the user pick one and actuates it. Failures
// are returned as *ExitError; a failed mount or unmount carries the utility's
// exit code, listing and finder failures exit 1.
func (c *DeviceSelect) Execute(ctx context.Context, _ Env, _ []string) (Result, error) {
	filter := blockdev.All
	if c.action == udisks.Unmount {
		filter = blockdev.MountedOnly
	}

	records, err := c.lister.List(ctx, filter)
	if err != nil {
		c.notifier.Notify(notify.LevelError, err.Error())
		return Result{}, &ExitError{Code: 1, Err: err}
	}

	if c.removableOnly && c.action == udisks.Mount {
		records = removable(records)
	}

	res, err := c.selector.SelectAndActuate(ctx, records, c.action)
	if err != nil {
		c.notifier.Notify(notify.LevelError, err.Error())
		return Result{}, &ExitError{Code: 1, Err: err}
	}

	log.Debug("device selection finished", "action", c.action, "status", res.Status, "device", res.Device)

	switch res.Status {
	case mountsel.NoTargets:
		if c.action == udisks.Unmount {
			c.notifier.Notify(notify.LevelInfo, "no mounted partitions found")
		} else {
			c.notifier.Notify(notify.LevelInfo, "no partitions found")
		}
	case mountsel.Cancelled:
	case mountsel.AlreadyMounted:
		c.notifier.Notify(notify.LevelWarn, fmt.Sprintf("%s is already mounted at %s", res.Device, res.MountPoint))
	case mountsel.ActuationFailed:
		c.notifier.Notify(notify.LevelError, fmt.Sprintf("%s %s failed (exit code %d)", c.action, res.Device, res.ExitCode))
		return Result{}, &ExitError{Code: res.ExitCode, Err: res.Err}
	case mountsel.Success:
		c.notifier.Notify(notify.LevelInfo, successMessage(c.action, res))
	}

	return Result{}, nil
}

func successMessage(action udisks.Action, res mountsel.Result) string {
	switch {
	case action == udisks.Unmount:
		return "unmounted " + res.Device
	case res.MountPoint != "":
		return fmt.Sprintf("mounted %s at %s", res.Device, res.MountPoint)
	default:
		return "mounted " + res.Device
	}
}

func removable(records []blockdev.PartitionRecord) []blockdev.PartitionRecord {
	out := make([]blockdev.PartitionRecord, 0, len(records))
	for _, r := range records {
		if r.Removable {
			out = append(out, r)
		}
	}
	return out
}
