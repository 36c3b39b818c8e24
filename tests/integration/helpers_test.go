//go:build integration

package integration

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func trimNewline(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// mountPointOf returns where the test partition is mounted, "" if it is not
func mountPointOf(t *testing.T, device string) string {
	t.Helper()
	output, _ := testVM.Run(fmt.Sprintf("findmnt -n -o TARGET --source %s", device))
	return trimNewline(output)
}

// ensureUnmounted registers cleanup that leaves the test partition unmounted
func ensureUnmounted(t *testing.T, device string) {
	t.Cleanup(func() {
		_, _ = testVM.Run(fmt.Sprintf("sudo udisksctl unmount -b %s 2>/dev/null || true", device))
	})
}

// mountDirectly mounts the test partition without fmcmd
func mountDirectly(t *testing.T, device string) string {
	t.Helper()
	output, err := testVM.Run(fmt.Sprintf("sudo udisksctl mount -b %s", device))
	require.NoError(t, err, "udisksctl mount should succeed: %s", output)
	mp := mountPointOf(t, device)
	require.NotEmpty(t, mp, "device should be mounted")
	return mp
}

// assertNotMounted verifies the test partition is not mounted
func assertNotMounted(t *testing.T, device string) {
	t.Helper()
	require.Empty(t, mountPointOf(t, device), "%s should not be mounted", device)
}
