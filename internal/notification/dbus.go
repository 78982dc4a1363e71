package notification

import (
	"context"
	"fmt"
	"sync"

	"geotrack/internal/ports"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest   = "org.freedesktop.Notifications"
	dbusPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	dbusNotify = dbusDest + ".Notify"
	dbusClose  = dbusDest + ".CloseNotification"
)

// DBusBackend shows notifications through the freedesktop notification service
// on the session bus.
type DBusBackend struct {
	appName string
	connect func() (*dbus.Conn, error)

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewDBusBackend returns a backend that connects to the session bus on first use.
func NewDBusBackend(appName string) *DBusBackend {
	return &DBusBackend{
		appName: appName,
		connect: func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() },
	}
}

var _ ports.NotificationBackend = (*DBusBackend)(nil)

func (b *DBusBackend) object() (dbus.BusObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || !b.conn.Connected() {
		conn, err := b.connect()
		if err != nil {
			return nil, fmt.Errorf("dbus: connect session bus: %w", err)
		}
		b.conn = conn
	}
	return b.conn.Object(dbusDest, dbusPath), nil
}

// Show sends Notify with an expire timeout of zero so the message stays until closed.
func (b *DBusBackend) Show(ctx context.Context, n ports.Notification) (uint32, error) {
	obj, err := b.object()
	if err != nil {
		return 0, err
	}

	var id uint32
	call := obj.CallWithContext(ctx, dbusNotify, 0,
		b.appName,
		uint32(0), // replaces_id
		n.Icon,
		n.Title,
		n.Body,
		[]string{}, // actions
		hintsFor(n, b.appName),
		int32(0), // expire_timeout: never
	)
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("dbus: notify: %w", err)
	}
	return id, nil
}

// Close sends CloseNotification for id.
func (b *DBusBackend) Close(ctx context.Context, id uint32) error {
	obj, err := b.object()
	if err != nil {
		return err
	}
	if err := obj.CallWithContext(ctx, dbusClose, 0, id).Err; err != nil {
		return fmt.Errorf("dbus: close notification %d: %w", id, err)
	}
	return nil
}

// Shutdown closes the bus connection if one was opened.
func (b *DBusBackend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func hintsFor(n ports.Notification, appName string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(urgencyOf(Importance(n.Importance))),
		"resident":      dbus.MakeVariant(true),
		"category":      dbus.MakeVariant(n.CategoryID),
		"desktop-entry": dbus.MakeVariant(appName),
	}
}

// urgencyOf maps importance onto the freedesktop urgency byte (0 low, 1 normal, 2 critical).
func urgencyOf(imp Importance) byte {
	switch imp {
	case ImportanceLow:
		return 0
	case ImportanceHigh:
		return 2
	default:
		return 1
	}
}
