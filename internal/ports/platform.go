package ports

import (
	"context"

	"geotrack/internal/domain/tracking"
)

// LocationListener receives raw provider deliveries. It is invoked from the
// provider's own goroutine.
type LocationListener func(result *tracking.LocationResult)

// LocationProvider wraps the platform's periodic position source.
type LocationProvider interface {
	// Name returns the provider identifier (e.g. "simulated").
	Name() string
	// RequestUpdates starts periodic deliveries to listener. The returned remove
	// function stops them; after it returns the provider must not call listener again.
	RequestUpdates(ctx context.Context, cfg tracking.SubscriptionConfig, listener LocationListener) (remove func() error, err error)
}

// Notification is one persistent status message as handed to a backend.
type Notification struct {
	CategoryID string
	Importance string
	Title      string
	Body       string
	Icon       string
}

// NotificationBackend shows and closes OS-level notifications.
type NotificationBackend interface {
	Show(ctx context.Context, n Notification) (uint32, error)
	Close(ctx context.Context, id uint32) error
}

// SampleSink is the downstream consumer of delivered batches.
type SampleSink interface {
	Consume(ctx context.Context, sessionID string, batch tracking.Batch) error
}

// StatusPublisher announces lifecycle transitions to other processes.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, state tracking.State, sessionID string, reason string) error
}
