package notification

import (
	"context"
	"sync"
	"sync/atomic"

	"geotrack/internal/general/logger"
	"geotrack/internal/ports"
)

// LogBackend is the headless backend: it only logs what would be shown.
type LogBackend struct {
	logger *logger.Logger
	nextID atomic.Uint32

	mu   sync.Mutex
	open map[uint32]ports.Notification
}

// NewLogBackend constructs a LogBackend.
func NewLogBackend(logger *logger.Logger) *LogBackend {
	return &LogBackend{logger: logger, open: make(map[uint32]ports.Notification)}
}

var _ ports.NotificationBackend = (*LogBackend)(nil)

func (b *LogBackend) Show(ctx context.Context, n ports.Notification) (uint32, error) {
	id := b.nextID.Add(1)

	b.mu.Lock()
	b.open[id] = n
	b.mu.Unlock()

	b.logger.Info(ctx, "notification_shown", n.Title, map[string]any{
		"id":          id,
		"category_id": n.CategoryID,
		"importance":  n.Importance,
		"body":        n.Body,
		"icon":        n.Icon,
	})
	return id, nil
}

func (b *LogBackend) Close(ctx context.Context, id uint32) error {
	b.mu.Lock()
	_, ok := b.open[id]
	delete(b.open, id)
	b.mu.Unlock()

	if ok {
		b.logger.Info(ctx, "notification_closed", "Notification closed", map[string]any{"id": id})
	}
	return nil
}

// Open returns how many notifications the backend currently considers shown.
func (b *LogBackend) Open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.open)
}
