package udisks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
)

// mockBusObject implements dbus.BusObject for testing
type mockBusObject struct {
	path        dbus.ObjectPath
	callResults map[string]*dbus.Call
	calls       []string
}

func (m *mockBusObject) Call(method string, flags dbus.Flags, args ...any) *dbus.Call {
	m.calls = append(m.calls, method)
	if call, ok := m.callResults[method]; ok {
		return call
	}
	return &dbus.Call{Err: dbus.ErrMsgNoObject}
}

func (m *mockBusObject) CallWithContext(_ context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call {
	return m.Call(method, flags, args...)
}

func (m *mockBusObject) Go(method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	return m.Call(method, flags, args...)
}

func (m *mockBusObject) GoWithContext(_ context.Context, method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	return m.Call(method, flags, args...)
}

func (m *mockBusObject) AddMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (m *mockBusObject) RemoveMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (m *mockBusObject) GetProperty(p string) (dbus.Variant, error) {
	return dbus.Variant{}, nil
}

func (m *mockBusObject) StoreProperty(p string, value any) error {
	return nil
}

func (m *mockBusObject) SetProperty(p string, v any) error {
	return nil
}

func (m *mockBusObject) Destination() string {
	return dbusService
}

func (m *mockBusObject) Path() dbus.ObjectPath {
	return m.path
}

// mockDBusConnection implements dbusconn.Connection for testing
type mockDBusConnection struct {
	objects map[dbus.ObjectPath]*mockBusObject
	closed  bool
}

func (m *mockDBusConnection) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	if obj, ok := m.objects[path]; ok {
		return obj
	}
	// Return a default mock object with empty results
	return &mockBusObject{path: path, callResults: map[string]*dbus.Call{}}
}

func (m *mockDBusConnection) Close() error {
	m.closed = true
	return nil
}

type mockBlock struct {
	path          dbus.ObjectPath
	device        string
	symlinks      []string
	hasFilesystem bool
}

// Helper to create mock managed objects
func makeManagedObjects(blocks []mockBlock) map[dbus.ObjectPath]map[string]map[string]dbus.Variant {
	result := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)

	for _, b := range blocks {
		links := make([][]byte, 0, len(b.symlinks))
		for _, l := range b.symlinks {
			links = append(links, append([]byte(l), 0))
		}

		ifaces := map[string]map[string]dbus.Variant{
			dbusBlockInterface: {
				"Device":   dbus.MakeVariant(append([]byte(b.device), 0)),
				"Symlinks": dbus.MakeVariant(links),
			},
		}
		if b.hasFilesystem {
			ifaces[dbusFilesystemInterface] = map[string]dbus.Variant{
				"MountPoints": dbus.MakeVariant([][]byte{}),
			}
		}
		result[b.path] = ifaces
	}

	return result
}

func newMockConnection(blocks []mockBlock, fsCalls map[string]*dbus.Call) (*mockDBusConnection, map[dbus.ObjectPath]*mockBusObject) {
	rootObj := &mockBusObject{
		path: dbus.ObjectPath(dbusRootPath),
		callResults: map[string]*dbus.Call{
			dbusObjectManager + ".GetManagedObjects": {
				Body: []any{makeManagedObjects(blocks)},
			},
		},
	}

	objects := map[dbus.ObjectPath]*mockBusObject{
		dbus.ObjectPath(dbusRootPath): rootObj,
	}
	for _, b := range blocks {
		objects[b.path] = &mockBusObject{path: b.path, callResults: fsCalls}
	}

	return &mockDBusConnection{objects: objects}, objects
}

func TestDBusActuator_Mount(t *testing.T) {
	sda1 := dbus.ObjectPath("/org/freedesktop/UDisks2/block_devices/sda1")
	sdb := dbus.ObjectPath("/org/freedesktop/UDisks2/block_devices/sdb")

	blocks := []mockBlock{
		{path: sdb, device: "/dev/sdb"},
		{path: sda1, device: "/dev/sda1", symlinks: []string{"/dev/disk/by-label/DATA"}, hasFilesystem: true},
	}

	tests := []struct {
		name      string
		device    string
		wantPath  string
		wantCalls dbus.ObjectPath
	}{
		{"by device node", "/dev/sda1", "/run/media/me/DATA", sda1},
		{"by symlink", "/dev/disk/by-label/DATA", "/run/media/me/DATA", sda1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, objects := newMockConnection(blocks, map[string]*dbus.Call{
				dbusFilesystemInterface + ".Mount": {Body: []any{"/run/media/me/DATA"}},
			})

			a, err := NewDBusActuator(WithConnection(conn))
			if err != nil {
				t.Fatalf("NewDBusActuator() error = %v", err)
			}

			got, err := a.Actuate(context.Background(), Mount, tt.device)
			if err != nil {
				t.Fatalf("Actuate() error = %v", err)
			}
			if got != tt.wantPath {
				t.Errorf("Actuate() = %q, want %q", got, tt.wantPath)
			}

			calls := objects[tt.wantCalls].calls
			if len(calls) != 1 || calls[0] != dbusFilesystemInterface+".Mount" {
				t.Errorf("calls on %s = %v, want one Mount", tt.wantCalls, calls)
			}
			if len(objects[sdb].calls) != 0 {
				t.Errorf("unexpected calls on %s: %v", sdb, objects[sdb].calls)
			}
		})
	}
}

func TestDBusActuator_SharedSymlinkPrefersFilesystem(t *testing.T) {
	sdc := dbus.ObjectPath("/org/freedesktop/UDisks2/block_devices/sdc")
	sdc1 := dbus.ObjectPath("/org/freedesktop/UDisks2/block_devices/sdc1")
	link := "/dev/disk/by-id/usb-stick"

	blocks := []mockBlock{
		{path: sdc, device: "/dev/sdc", symlinks: []string{link}},
		{path: sdc1, device: "/dev/sdc1", symlinks: []string{link}, hasFilesystem: true},
	}

	// Map iteration order varies, so repeat to hit both orders
	for i := 0; i < 50; i++ {
		conn, objects := newMockConnection(blocks, map[string]*dbus.Call{
			dbusFilesystemInterface + ".Mount": {Body: []any{"/run/media/me/STICK"}},
		})
		a, err := NewDBusActuator(WithConnection(conn))
		if err != nil {
			t.Fatalf("NewDBusActuator() error = %v", err)
		}

		got, err := a.Actuate(context.Background(), Mount, link)
		if err != nil {
			t.Fatalf("Actuate() iteration %d error = %v", i, err)
		}
		if got != "/run/media/me/STICK" {
			t.Errorf("Actuate() = %q, want /run/media/me/STICK", got)
		}
		if len(objects[sdc].calls) != 0 {
			t.Fatalf("unexpected calls on %s: %v", sdc, objects[sdc].calls)
		}
	}
}

func TestDBusActuator_Unmount(t *testing.T) {
	sda1 := dbus.ObjectPath("/org/freedesktop/UDisks2/block_devices/sda1")
	blocks := []mockBlock{{path: sda1, device: "/dev/sda1", hasFilesystem: true}}

	conn, objects := newMockConnection(blocks, map[string]*dbus.Call{
		dbusFilesystemInterface + ".Unmount": {},
	})

	a, err := NewDBusActuator(WithConnection(conn))
	if err != nil {
		t.Fatalf("NewDBusActuator() error = %v", err)
	}

	if _, err := a.Actuate(context.Background(), Unmount, "/dev/sda1"); err != nil {
		t.Fatalf("Actuate() error = %v", err)
	}

	calls := objects[sda1].calls
	if len(calls) != 1 || calls[0] != dbusFilesystemInterface+".Unmount" {
		t.Errorf("calls = %v, want one Unmount", calls)
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !conn.closed {
		t.Error("Close() did not close the connection")
	}
}

func TestDBusActuator_Errors(t *testing.T) {
	sda1 := dbus.ObjectPath("/org/freedesktop/UDisks2/block_devices/sda1")
	sda := dbus.ObjectPath("/org/freedesktop/UDisks2/block_devices/sda")

	tests := []struct {
		name      string
		device    string
		blocks    []mockBlock
		fsCalls   map[string]*dbus.Call
		wantNotFd bool
		wantMsg   string
	}{
		{
			name:      "unknown device",
			device:    "/dev/sdz1",
			blocks:    []mockBlock{{path: sda1, device: "/dev/sda1", hasFilesystem: true}},
			wantNotFd: true,
		},
		{
			name:    "no filesystem",
			device:  "/dev/sda",
			blocks:  []mockBlock{{path: sda, device: "/dev/sda"}},
			wantMsg: "has no mountable filesystem",
		},
		{
			name:   "daemon refuses",
			device: "/dev/sda1",
			blocks: []mockBlock{{path: sda1, device: "/dev/sda1", hasFilesystem: true}},
			fsCalls: map[string]*dbus.Call{
				dbusFilesystemInterface + ".Mount": {
					Err: dbus.Error{Name: "org.freedesktop.UDisks2.Error.AlreadyMounted", Body: []any{"already mounted"}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _ := newMockConnection(tt.blocks, tt.fsCalls)
			a, err := NewDBusActuator(WithConnection(conn))
			if err != nil {
				t.Fatalf("NewDBusActuator() error = %v", err)
			}

			_, err = a.Actuate(context.Background(), Mount, tt.device)
			if err == nil {
				t.Fatal("Actuate() expected error")
			}

			var actErr *ActuationError
			if !errors.As(err, &actErr) {
				t.Fatalf("Actuate() error type = %T, want *ActuationError", err)
			}
			if actErr.ExitCode != ExitFailure {
				t.Errorf("ExitCode = %d, want %d", actErr.ExitCode, ExitFailure)
			}
			if tt.wantNotFd && !errors.Is(err, ErrDeviceNotFound) {
				t.Errorf("Actuate() error = %v, want ErrDeviceNotFound", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Actuate() error = %v, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestDBusActuator_GetManagedObjectsFails(t *testing.T) {
	conn := &mockDBusConnection{objects: map[dbus.ObjectPath]*mockBusObject{}}
	a, err := NewDBusActuator(WithConnection(conn))
	if err != nil {
		t.Fatalf("NewDBusActuator() error = %v", err)
	}

	_, err = a.Actuate(context.Background(), Unmount, "/dev/sda1")
	if err == nil || !strings.Contains(err.Error(), "GetManagedObjects") {
		t.Errorf("Actuate() error = %v, want GetManagedObjects failure", err)
	}
}
