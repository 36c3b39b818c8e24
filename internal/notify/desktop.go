package notify

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/kriansa/fmcmd/internal/dbusconn"
	"github.com/kriansa/fmcmd/internal/log"
)

const (
	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"

	appName = "fmcmd"
	// expireDefault lets the notification server pick the timeout
	expireDefault = int32(-1)

	// DefaultTimeout bounds each call to the notification server
	DefaultTimeout = 2 * time.Second
)

// Desktop forwards notifications to the freedesktop notification server and
// to a fallback notifier. Desktop delivery failures are logged only.
type Desktop struct {
	conn     dbusconn.Connection
	fallback Notifier
	timeout  time.Duration
}

// DesktopOption is a functional option for Desktop
type DesktopOption func(*Desktop)

// WithTimeout sets how long a notification may take to deliver
func WithTimeout(d time.Duration) DesktopOption {
	return func(n *Desktop) {
		n.timeout = d
	}
}

// NewDesktop creates a desktop notifier on conn
func NewDesktop(conn dbusconn.Connection, fallback Notifier, opts ...DesktopOption) *Desktop {
	d := &Desktop{conn: conn, fallback: fallback, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Desktop) Notify(level Level, msg string) {
	if d.fallback != nil {
		d.fallback.Notify(level, msg)
	}

	obj := d.conn.Object(notificationsService, dbus.ObjectPath(notificationsPath))
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgency(level)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	call := obj.CallWithContext(ctx, notificationsInterface+".Notify", 0,
		appName, uint32(0), icon(level), appName, msg, []string{}, hints, expireDefault)
	if call.Err != nil {
		log.Debug("desktop notification failed", "error", call.Err)
	}
}

// Close closes the session bus connection
func (d *Desktop) Close() error {
	return d.conn.Close()
}

// urgency maps a level to the notification urgency hint: 0 low, 1 normal, 2 critical
func urgency(level Level) byte {
	switch level {
	case LevelError:
		return 2
	case LevelWarn:
		return 1
	default:
		return 0
	}
}

func icon(level Level) string {
	switch level {
	case LevelError:
		return "dialog-error"
	case LevelWarn:
		return "dialog-warning"
	default:
		return "drive-removable-media"
	}
}
