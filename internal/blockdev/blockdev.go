// Package blockdev discovers disk partitions by running lsblk and flattening
// its JSON device tree.
package blockdev

import (
	"context"
	"fmt"
)

// Placeholder is shown in place of absent optional fields
const Placeholder = "-"

// PartitionRecord is one partition as reported by lsblk
type PartitionRecord struct {
	// Path is the device node (e.g., /dev/sda1)
	Path string
	// Name is the kernel name (e.g., sda1)
	Name string
	// Label is the filesystem label, empty if absent
	Label string
	// FSType is the filesystem type, empty if absent
	FSType string
	// Size is the human readable size (e.g., 100G)
	Size string
	// Mountpoint is where the partition is mounted, empty if not mounted
	Mountpoint string
	// Removable reports the RM flag
	Removable bool
}

// Mounted reports whether the record shows a real mountpoint
func (r PartitionRecord) Mounted() bool {
	return r.Mountpoint != "" && r.Mountpoint != Placeholder
}

// Filter restricts which partitions List returns
type Filter int

const (
	// All returns every partition
	All Filter = iota
	// MountedOnly returns partitions with a mountpoint
	MountedOnly
)

func (f Filter) String() string {
	switch f {
	case All:
		return "all"
	case MountedOnly:
		return "mounted-only"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

// Lister enumerates partitions
type Lister interface {
	List(ctx context.Context, filter Filter) ([]PartitionRecord, error)
}

// ListingError is returned when the enumeration utility is missing, fails, or
// prints something that is not a device tree
type ListingError struct {
	Op  string
	Err error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("list partitions: %s: %v", e.Op, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}
