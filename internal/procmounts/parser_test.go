package procmounts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMounts = `proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/mapper/luks-1 / btrfs rw,relatime,ssd,subvol=/root 0 0
/dev/nvme0n1p1 /boot/efi vfat rw,relatime,fmask=0077 0 0
/dev/sda1 /run/media/me/MY\040STICK vfat rw,nosuid,nodev,relatime 0 0
broken line
`

func TestParseReader(t *testing.T) {
	mounts, err := ParseReader(strings.NewReader(sampleMounts))
	require.NoError(t, err)
	require.Len(t, mounts, 4)

	assert.Equal(t, Entry{
		Device:     "/dev/sda1",
		MountPoint: "/run/media/me/MY STICK",
		FSType:     "vfat",
		Options:    "rw,nosuid,nodev,relatime",
	}, mounts[3])
}

func TestTable_MountPointOf(t *testing.T) {
	mounts, err := ParseReader(strings.NewReader(sampleMounts))
	require.NoError(t, err)

	tests := []struct {
		name     string
		device   string
		resolved string
		want     string
	}{
		{"direct match", "/dev/nvme0n1p1", "", "/boot/efi"},
		{"escaped mountpoint", "/dev/sda1", "", "/run/media/me/MY STICK"},
		{"resolved symlink", "/dev/disk/by-label/STICK", "/dev/sda1", "/run/media/me/MY STICK"},
		{"not mounted", "/dev/sdb1", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mounts.MountPointOf(tt.device, tt.resolved))
		})
	}
}

func TestMountPoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(path, []byte(sampleMounts), 0o600))

	got, err := MountPoint(path, "/dev/nvme0n1p1")
	require.NoError(t, err)
	assert.Equal(t, "/boot/efi", got)

	_, err = MountPoint(filepath.Join(t.TempDir(), "missing"), "/dev/sda1")
	assert.ErrorContains(t, err, "unable to parse mounts")
}
