package notification

import (
	"context"
	"errors"
	"testing"

	"geotrack/internal/ports"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBusBackendDefersConnect(t *testing.T) {
	b := NewDBusBackend("geotrack")
	require.NotNil(t, b.connect)
	assert.Nil(t, b.conn)
	assert.NoError(t, b.Shutdown())
}

func TestDBusBackendSurfacesConnectFailure(t *testing.T) {
	busErr := errors.New("no session bus")
	calls := 0
	b := &DBusBackend{
		appName: "geotrack",
		connect: func() (*dbus.Conn, error) {
			calls++
			return nil, busErr
		},
	}

	_, err := b.Show(context.Background(), ports.Notification{Title: "Location Service"})
	assert.ErrorIs(t, err, busErr)
	assert.Contains(t, err.Error(), "connect session bus")

	err = b.Close(context.Background(), 7)
	assert.ErrorIs(t, err, busErr)
	assert.Equal(t, 2, calls, "retries the bus on every call until it connects")
}

func TestHintsFor(t *testing.T) {
	hints := hintsFor(ports.Notification{CategoryID: "location_service_channel", Importance: string(ImportanceLow)}, "geotrack")

	assert.Equal(t, byte(0), hints["urgency"].Value())
	assert.Equal(t, true, hints["resident"].Value())
	assert.Equal(t, "location_service_channel", hints["category"].Value())
	assert.Equal(t, "geotrack", hints["desktop-entry"].Value())

	assert.Equal(t, byte(1), urgencyOf(ImportanceDefault))
	assert.Equal(t, byte(2), urgencyOf(ImportanceHigh))
}
