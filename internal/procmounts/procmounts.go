package procmounts

// Entry represents an entry in /proc/mounts
type Entry struct {
	Device     string
	MountPoint string
	FSType     string
	Options    string
}

// Table is a parsed mount table
type Table []Entry

// MountPointOf returns the first mount point of device, or "" if it is not
// mounted. Symlinked device paths (e.g. /dev/disk/by-label/X) are matched
// through resolved, the caller's symlink-resolved form of device.
func (t Table) MountPointOf(device, resolved string) string {
	for _, e := range t {
		if e.Device == device || (resolved != "" && e.Device == resolved) {
			return e.MountPoint
		}
	}
	return ""
}
