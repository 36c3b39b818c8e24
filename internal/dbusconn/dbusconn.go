// Package dbusconn wraps godbus connections behind an interface so callers
// can be tested without a bus.
package dbusconn

import (
	"github.com/godbus/dbus/v5"
)

// Connection abstracts the godbus connection for testability
type Connection interface {
	// Object returns a BusObject for the given destination and path
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	// Close closes the connection
	Close() error
}

// busConnection wraps *dbus.Conn to implement Connection
type busConnection struct {
	conn *dbus.Conn
}

func (c *busConnection) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return c.conn.Object(dest, path)
}

func (c *busConnection) Close() error {
	return c.conn.Close()
}

// ConnectSystemBus connects to the system DBus
func ConnectSystemBus() (Connection, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	return &busConnection{conn: conn}, nil
}

// ConnectSessionBus connects to the user's session DBus
func ConnectSessionBus() (Connection, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &busConnection{conn: conn}, nil
}
