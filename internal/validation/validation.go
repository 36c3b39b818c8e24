package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxDevicePathLength bounds device paths accepted from the finder
const MaxDevicePathLength = 255

// devicePathPattern matches device node paths as printed by lsblk:
// an absolute path under /dev made of printable, non-space characters.
var devicePathPattern = regexp.MustCompile(`^/dev/[[:graph:]]+$`)

// ValidateDevicePath checks that a device path picked by the user is safe to
// hand to a mount utility:
// - Absolute and under /dev
// - No whitespace or control characters
// - No ".." components
func ValidateDevicePath(path string) error {
	if path == "" {
		return fmt.Errorf("device path is empty")
	}

	if len(path) > MaxDevicePathLength {
		return fmt.Errorf("device path must be at most %d characters", MaxDevicePathLength)
	}

	if !devicePathPattern.MatchString(path) {
		return fmt.Errorf("device path %q must be an absolute /dev path without whitespace", path)
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("device path %q must not contain '..'", path)
		}
	}

	return nil
}

// ValidateDirName checks a directory name given to mkcd
func ValidateDirName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("directory name is required")
	}

	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("directory name must not contain NUL bytes")
	}

	return nil
}
