package procmounts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPath is the kernel mount table
const DefaultPath = "/proc/mounts"

// Parse parses the mount table at path
func Parse(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	mounts, err := ParseReader(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return mounts, nil
}

// ParseReader parses mount entries in /proc/mounts format
func ParseReader(r io.Reader) (Table, error) {
	var mounts Table
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		mounts = append(mounts, Entry{
			Device:     unescapeField(fields[0]),
			MountPoint: unescapeField(fields[1]),
			FSType:     fields[2],
			Options:    fields[3],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return mounts, nil
}

// MountPoint returns where device is mounted according to the table at path,
// or "" if it is not mounted
func MountPoint(path, device string) (string, error) {
	// Resolve symlinks such as /dev/disk/by-uuid/...; fall back to the
	// original path when it cannot be resolved
	resolved, err := filepath.EvalSymlinks(device)
	if err != nil {
		resolved = ""
	}

	mounts, err := Parse(path)
	if err != nil {
		return "", fmt.Errorf("unable to parse mounts: %w", err)
	}

	return mounts.MountPointOf(device, resolved), nil
}

// unescapeField unescapes special characters in mount fields
// /proc/mounts escapes spaces as \040, tabs as \011, etc.
func unescapeField(s string) string {
	s = strings.ReplaceAll(s, "\\040", " ")
	s = strings.ReplaceAll(s, "\\011", "\t")
	s = strings.ReplaceAll(s, "\\012", "\n")
	s = strings.ReplaceAll(s, "\\134", "\\")
	return s
}
