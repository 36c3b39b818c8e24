//go:build integration

package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountSelect_MountsPickedPartition(t *testing.T) {
	for _, backend := range []string{"cli", "dbus"} {
		t.Run(backend, func(t *testing.T) {
			ensureUnmounted(t, testDevice)

			res, err := testClient.MountSelect(testLabel, "--backend", backend)
			require.NoError(t, err)
			require.Equal(t, 0, res.ExitCode, "mount-select should succeed: %s", res.Output)

			mp := mountPointOf(t, testDevice)
			require.NotEmpty(t, mp, "partition should be mounted")
			assert.Contains(t, res.Output, "mounted "+testDevice+" at "+mp)
		})
	}
}

func TestMountSelect_AlreadyMounted(t *testing.T) {
	ensureUnmounted(t, testDevice)
	mp := mountDirectly(t, testDevice)

	res, err := testClient.MountSelect(testLabel)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode, "already mounted is not a failure")
	assert.Contains(t, res.Output, "already mounted at "+mp)
	assert.Equal(t, mp, mountPointOf(t, testDevice), "mount point should not change")
}

func TestMountSelect_Cancelled(t *testing.T) {
	ensureUnmounted(t, testDevice)

	res, err := testClient.MountSelect("")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode, "cancel is not a failure")
	assert.Empty(t, res.Output, "cancel is silent")
	assertNotMounted(t, testDevice)
}

func TestMountSelect_FinderMissing(t *testing.T) {
	// Without the config the real fzf is used, which is not installed
	res, err := testClient.MountSelect(testLabel, "--config", "/nonexistent.toml")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assertNotMounted(t, testDevice)
}

func TestUnmountSelect_UnmountsPickedPartition(t *testing.T) {
	for _, backend := range []string{"cli", "dbus"} {
		t.Run(backend, func(t *testing.T) {
			ensureUnmounted(t, testDevice)
			mountDirectly(t, testDevice)

			res, err := testClient.UnmountSelect(testDevice, "--backend", backend)
			require.NoError(t, err)
			require.Equal(t, 0, res.ExitCode, "unmount-select should succeed: %s", res.Output)
			assert.Contains(t, res.Output, "unmounted "+testDevice)
			assertNotMounted(t, testDevice)
		})
	}
}

func TestUnmountSelect_OnlyOffersMounted(t *testing.T) {
	ensureUnmounted(t, testDevice)

	// The picker finds nothing to match among mounted partitions
	res, err := testClient.UnmountSelect(testDevice)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assertNotMounted(t, testDevice)
}
