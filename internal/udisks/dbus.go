package udisks

import (
	"bytes"
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/kriansa/fmcmd/internal/dbusconn"
	"github.com/kriansa/fmcmd/internal/log"
)

const (
	// DBus service and interface constants
	dbusService       = "org.freedesktop.UDisks2"
	dbusRootPath      = "/org/freedesktop/UDisks2"
	dbusObjectManager = "org.freedesktop.DBus.ObjectManager"

	dbusBlockInterface      = "org.freedesktop.UDisks2.Block"
	dbusFilesystemInterface = "org.freedesktop.UDisks2.Filesystem"
)

// DBusActuator implements Actuator using the UDisks2 DBus API
type DBusActuator struct {
	conn      dbusconn.Connection
	connectFn func() (dbusconn.Connection, error)
}

// DBusOption is a functional option for DBusActuator
type DBusOption func(*DBusActuator)

// WithConnection sets a custom DBus connection (for testing)
func WithConnection(conn dbusconn.Connection) DBusOption {
	return func(a *DBusActuator) {
		a.conn = conn
	}
}

// NewDBusActuator creates an actuator talking to udisksd on the system bus
func NewDBusActuator(opts ...DBusOption) (*DBusActuator, error) {
	a := &DBusActuator{
		connectFn: dbusconn.ConnectSystemBus,
	}

	for _, opt := range opts {
		opt(a)
	}

	// Connect if no custom connection provided
	if a.conn == nil {
		conn, err := a.connectFn()
		if err != nil {
			return nil, fmt.Errorf("connect to system bus: %w", err)
		}
		a.conn = conn
	}

	return a, nil
}

// Close closes the DBus connection
func (a *DBusActuator) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

// getManagedObjects calls GetManagedObjects on the ObjectManager interface
// Returns: map[ObjectPath]map[InterfaceName]map[PropertyName]Variant
func (a *DBusActuator) getManagedObjects(ctx context.Context) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	obj := a.conn.Object(dbusService, dbus.ObjectPath(dbusRootPath))

	var result map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := obj.CallWithContext(ctx, dbusObjectManager+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", call.Err)
	}

	if err := call.Store(&result); err != nil {
		return nil, fmt.Errorf("store GetManagedObjects result: %w", err)
	}

	return result, nil
}

// findFilesystemPath finds the object path of the block device whose device
// node or one of its symlinks is device. Only objects carrying the
// Filesystem interface qualify.
func (a *DBusActuator) findFilesystemPath(ctx context.Context, device string) (dbus.ObjectPath, error) {
	objects, err := a.getManagedObjects(ctx)
	if err != nil {
		return "", err
	}

	matched := false
	for path, interfaces := range objects {
		blockProps, ok := interfaces[dbusBlockInterface]
		if !ok {
			continue
		}

		if !blockMatches(blockProps, device) {
			continue
		}
		matched = true

		// A symlink can be shared by a whole disk and its partition
		if _, ok := interfaces[dbusFilesystemInterface]; !ok {
			continue
		}

		return path, nil
	}

	if matched {
		return "", fmt.Errorf("%s has no mountable filesystem", device)
	}
	return "", ErrDeviceNotFound
}

// blockMatches checks the Device and Symlinks properties of a Block object
func blockMatches(props map[string]dbus.Variant, device string) bool {
	if v, ok := props["Device"]; ok {
		if decodeByteString(v.Value()) == device {
			return true
		}
	}

	if v, ok := props["Symlinks"]; ok {
		if links, ok := v.Value().([][]byte); ok {
			for _, link := range links {
				if decodeByteString(link) == device {
					return true
				}
			}
		}
	}

	return false
}

// decodeByteString decodes a UDisks2 "ay" path, which is NUL terminated
func decodeByteString(v any) string {
	b, ok := v.([]byte)
	if !ok {
		return ""
	}
	return string(bytes.TrimRight(b, "\x00"))
}

// Actuate mounts or unmounts device through org.freedesktop.UDisks2.Filesystem
func (a *DBusActuator) Actuate(ctx context.Context, action Action, device string) (string, error) {
	log.Debug("actuating via dbus", "action", action, "device", device)

	fail := func(err error) (string, error) {
		return "", &ActuationError{Action: action, Device: device, ExitCode: ExitFailure, Err: err}
	}

	fsPath, err := a.findFilesystemPath(ctx, device)
	if err != nil {
		return fail(fmt.Errorf("find filesystem: %w", err))
	}

	obj := a.conn.Object(dbusService, fsPath)
	options := map[string]dbus.Variant{}

	switch action {
	case Mount:
		call := obj.CallWithContext(ctx, dbusFilesystemInterface+".Mount", 0, options)
		if call.Err != nil {
			return fail(fmt.Errorf("Mount: %w", call.Err))
		}

		var mountPath string
		if err := call.Store(&mountPath); err != nil {
			return fail(fmt.Errorf("store Mount result: %w", err))
		}

		log.Debug("mounted via dbus", "device", device, "path", mountPath)
		return mountPath, nil

	case Unmount:
		call := obj.CallWithContext(ctx, dbusFilesystemInterface+".Unmount", 0, options)
		if call.Err != nil {
			return fail(fmt.Errorf("Unmount: %w", call.Err))
		}

		log.Debug("unmounted via dbus", "device", device)
		return "", nil

	default:
		return fail(fmt.Errorf("unsupported action %v", action))
	}
}
