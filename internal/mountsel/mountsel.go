// Package mountsel lets the user pick a partition with a fuzzy finder and
// mounts or unmounts it.
package mountsel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kriansa/fmcmd/internal/blockdev"
	"github.com/kriansa/fmcmd/internal/finder"
	"github.com/kriansa/fmcmd/internal/log"
	"github.com/kriansa/fmcmd/internal/procmounts"
	"github.com/kriansa/fmcmd/internal/udisks"
	"github.com/kriansa/fmcmd/internal/validation"
)

// Status is the outcome of SelectAndActuate
type Status int

const (
	Success Status = iota
	NoTargets
	Cancelled
	AlreadyMounted
	ActuationFailed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case NoTargets:
		return "no targets"
	case Cancelled:
		return "cancelled"
	case AlreadyMounted:
		return "already mounted"
	case ActuationFailed:
		return "actuation failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result describes what happened to the selected device
type Result struct {
	Status Status
	// Device is the selected device path, empty for NoTargets and Cancelled
	Device string
	// ExitCode of the mount program, set for ActuationFailed
	ExitCode int
	// MountPoint is where the device is mounted: the existing mountpoint for
	// AlreadyMounted, the new one after a successful mount if known
	MountPoint string
	// Err is the underlying actuation error, set for ActuationFailed
	Err error
}

// Selector runs the select-then-actuate workflow
type Selector struct {
	finder     finder.Finder
	actuator   udisks.Actuator
	mountTable string
}

// Option is a functional option for Selector
type Option func(*Selector)

// WithMountTable sets the mount table used to find where a device was
// mounted (default /proc/mounts)
func WithMountTable(path string) Option {
	return func(s *Selector) {
		s.mountTable = path
	}
}

// NewSelector creates a Selector
func NewSelector(f finder.Finder, a udisks.Actuator, opts ...Option) *Selector {
	s := &Selector{
		finder:     f,
		actuator:   a,
		mountTable: procmounts.DefaultPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prompt returns the finder prompt for action
func Prompt(action udisks.Action) string {
	if action == udisks.Unmount {
		return "umount> "
	}
	return "mount> "
}

// FormatLine renders a record as one tab-separated finder line. The device
// path is always the first field.
//
//	mount:   path, label, fstype, size, mountpoint
//	unmount: path, label, mountpoint, size
func FormatLine(r blockdev.PartitionRecord, action udisks.Action) string {
	fields := []string{r.Path, orPlaceholder(r.Label)}
	if action == udisks.Unmount {
		fields = append(fields, orPlaceholder(r.Mountpoint), orPlaceholder(r.Size))
	} else {
		fields = append(fields, orPlaceholder(r.FSType), orPlaceholder(r.Size), orPlaceholder(r.Mountpoint))
	}
	return strings.Join(fields, "\t")
}

// DevicePath extracts the device path from a selected line: the text before
// the first tab
func DevicePath(line string) string {
	path, _, _ := strings.Cut(line, "\t")
	return path
}

func orPlaceholder(s string) string {
	if s == "" {
		return blockdev.Placeholder
	}
	return s
}

// SelectAndActuate lets the user pick one of records and applies action to it.
// Finder failures and invalid selections are returned as errors; every other
// outcome, including a failed mount, is reported through Result.
func (s *Selector) SelectAndActuate(ctx context.Context, records []blockdev.PartitionRecord, action udisks.Action) (Result, error) {
	if len(records) == 0 {
		log.Debug("no partitions to select from", "action", action)
		return Result{Status: NoTargets}, nil
	}

	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, FormatLine(r, action))
	}

	selected, err := s.finder.Select(ctx, lines, finder.Options{
		Prompt:    Prompt(action),
		Delimiter: "\t",
		WithNth:   "2..",
	})
	if err != nil {
		return Result{}, fmt.Errorf("select partition: %w", err)
	}
	if selected == "" {
		log.Debug("selection cancelled", "action", action)
		return Result{Status: Cancelled}, nil
	}

	device := DevicePath(selected)
	if err := validation.ValidateDevicePath(device); err != nil {
		return Result{}, fmt.Errorf("invalid selection: %w", err)
	}

	if action == udisks.Mount {
		if rec, ok := findRecord(records, device); ok && rec.Mounted() {
			log.Debug("partition already mounted", "device", device, "mountpoint", rec.Mountpoint)
			return Result{Status: AlreadyMounted, Device: device, MountPoint: rec.Mountpoint}, nil
		}
	}

	mountPoint, err := s.actuator.Actuate(ctx, action, device)
	if err != nil {
		res := Result{Status: ActuationFailed, Device: device, ExitCode: udisks.ExitFailure, Err: err}
		var actErr *udisks.ActuationError
		if errors.As(err, &actErr) {
			res.ExitCode = actErr.ExitCode
		}
		log.Debug("actuation failed", "action", action, "device", device, "code", res.ExitCode, "error", err)
		return res, nil
	}

	res := Result{Status: Success, Device: device, MountPoint: mountPoint}
	if action == udisks.Mount && res.MountPoint == "" {
		res.MountPoint = s.lookupMountPoint(device)
	}

	log.Debug("actuation succeeded", "action", action, "device", device, "mountpoint", res.MountPoint)
	return res, nil
}

// lookupMountPoint reads the mount table; failures only cost the detail in
// the success message
func (s *Selector) lookupMountPoint(device string) string {
	mp, err := procmounts.MountPoint(s.mountTable, device)
	if err != nil {
		log.Warn("could not determine mount point", "device", device, "error", err)
		return ""
	}
	return mp
}

func findRecord(records []blockdev.PartitionRecord, path string) (blockdev.PartitionRecord, bool) {
	for _, r := range records {
		if r.Path == path {
			return r, true
		}
	}
	return blockdev.PartitionRecord{}, false
}
