package blockdev

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kriansa/fmcmd/internal/log"
)

// Columns is the exact field set requested from lsblk
const Columns = "PATH,NAME,LABEL,FSTYPE,SIZE,TYPE,MOUNTPOINT,RM"

// partType is the lsblk TYPE of a partition
const partType = "part"

// LsblkLister implements Lister using the lsblk CLI
type LsblkLister struct {
	program     string
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// LsblkOption is a functional option for LsblkLister
type LsblkOption func(*LsblkLister)

// WithExecCommand replaces exec.CommandContext (for testing)
func WithExecCommand(fn func(ctx context.Context, name string, args ...string) *exec.Cmd) LsblkOption {
	return func(l *LsblkLister) {
		l.execCommand = fn
	}
}

// NewLsblkLister creates a lister running the given lsblk program
func NewLsblkLister(program string, opts ...LsblkOption) *LsblkLister {
	l := &LsblkLister{
		program:     program,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// List runs lsblk and returns the partitions matching filter
func (l *LsblkLister) List(ctx context.Context, filter Filter) ([]PartitionRecord, error) {
	log.Debug("listing partitions", "program", l.program, "filter", filter)

	output, err := l.lsblk(ctx, "-J", "-o", Columns)
	if err != nil {
		return nil, err
	}

	records, err := ParseTree(output)
	if err != nil {
		return nil, &ListingError{Op: "parse output", Err: err}
	}

	if filter == MountedOnly {
		mounted := records[:0]
		for _, r := range records {
			if r.Mounted() {
				mounted = append(mounted, r)
			}
		}
		records = mounted
	}

	log.Debug("partitions listed", "count", len(records))
	return records, nil
}

// lsblk runs the lsblk program and returns its stdout
func (l *LsblkLister) lsblk(ctx context.Context, args ...string) ([]byte, error) {
	cmd := l.execCommand(ctx, l.program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			return nil, &ListingError{Op: "run " + l.program, Err: fmt.Errorf("program not found: %w", err)}
		case errors.As(err, &exitErr):
			return nil, &ListingError{
				Op:  "run " + l.program,
				Err: fmt.Errorf("%w (stderr: %q)", err, strings.TrimSpace(stderr.String())),
			}
		default:
			return nil, &ListingError{Op: "run " + l.program, Err: err}
		}
	}

	return stdout.Bytes(), nil
}

// lsblkOutput is the root of `lsblk -J`
type lsblkOutput struct {
	BlockDevices *[]lsblkDevice `json:"blockdevices"`
}

// lsblkDevice is one node of the lsblk device tree
type lsblkDevice struct {
	Path       string        `json:"path"`
	Name       string        `json:"name"`
	Label      *string       `json:"label"`
	FSType     *string       `json:"fstype"`
	Size       flexString    `json:"size"`
	Type       string        `json:"type"`
	Mountpoint *string       `json:"mountpoint"`
	RM         flexBool      `json:"rm"`
	Children   []lsblkDevice `json:"children"`
}

// ParseTree decodes `lsblk -J` output and returns one record per node of type
// "part", in pre-order, at any nesting depth.
func ParseTree(data []byte) ([]PartitionRecord, error) {
	var out lsblkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if out.BlockDevices == nil {
		return nil, fmt.Errorf("missing %q", "blockdevices")
	}

	var records []PartitionRecord

	// Explicit stack instead of recursion. Children are pushed in reverse so
	// they are popped in document order.
	roots := *out.BlockDevices
	stack := make([]*lsblkDevice, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, &roots[i])
	}

	for len(stack) > 0 {
		dev := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if dev.Type == partType {
			records = append(records, dev.record())
		}

		for i := len(dev.Children) - 1; i >= 0; i-- {
			stack = append(stack, &dev.Children[i])
		}
	}

	return records, nil
}

func (d *lsblkDevice) record() PartitionRecord {
	return PartitionRecord{
		Path:       d.Path,
		Name:       d.Name,
		Label:      deref(d.Label),
		FSType:     deref(d.FSType),
		Size:       string(d.Size),
		Mountpoint: deref(d.Mountpoint),
		Removable:  bool(d.RM),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// flexString accepts a JSON string, number or null.
// lsblk prints SIZE as a number when --bytes is in effect.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("size: %w", err)
	}
	*s = flexString(n.String())
	return nil
}

// flexBool accepts true/false, 0/1 and "0"/"1".
// Older lsblk releases print RM as a string.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	switch raw {
	case "null", "":
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("rm: invalid value %s", data)
	}
	*b = flexBool(v)
	return nil
}
