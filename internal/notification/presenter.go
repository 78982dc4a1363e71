package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/logger"
	"geotrack/internal/ports"

	"github.com/google/uuid"
)

// Importance is the alerting level of a notification category.
type Importance string

const (
	ImportanceLow     Importance = "low"
	ImportanceDefault Importance = "default"
	ImportanceHigh    Importance = "high"
)

var ErrInvalidImportance = errors.New("invalid notification importance")

// ParseImportance normalizes (lowercases+trims) and validates an importance string.
func ParseImportance(in string) (Importance, error) {
	imp := Importance(strings.ToLower(strings.TrimSpace(in)))
	switch imp {
	case ImportanceLow, ImportanceDefault, ImportanceHigh:
		return imp, nil
	default:
		return "", ErrInvalidImportance
	}
}

// Category groups persistent notifications under one stable identifier.
type Category struct {
	ID          string
	DisplayName string
	Importance  Importance
}

// Message is the user-visible content of the persistent notification.
type Message struct {
	Title string
	Body  string
	Icon  string
}

// Handle identifies one shown persistent notification.
type Handle struct {
	ID         string
	CategoryID string
	backendID  uint32
}

// Presenter owns notification categories and the persistent status notification.
type Presenter struct {
	backend ports.NotificationBackend
	logger  *logger.Logger

	mu         sync.Mutex
	categories map[string]Category
	shown      map[string]uint32
}

// NewPresenter constructs a Presenter over a backend.
func NewPresenter(backend ports.NotificationBackend, logger *logger.Logger) *Presenter {
	return &Presenter{
		backend:    backend,
		logger:     logger,
		categories: make(map[string]Category),
		shown:      make(map[string]uint32),
	}
}

// EnsureCategory registers a category once per process; registering an existing ID is a no-op.
func (p *Presenter) EnsureCategory(ctx context.Context, category Category) error {
	id := strings.TrimSpace(category.ID)
	if id == "" {
		return fmt.Errorf("%w: category id is required", tracking.ErrNotificationSetupFailed)
	}
	if category.Importance == "" {
		category.Importance = ImportanceDefault
	}
	category.ID = id

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.categories[id]; ok {
		return nil
	}
	p.categories[id] = category

	p.logger.Info(ctx, "notification_category_created", "Notification category registered", map[string]any{
		"category_id": id,
		"name":        category.DisplayName,
		"importance":  string(category.Importance),
	})
	return nil
}

// Present builds and shows the persistent message under categoryID.
func (p *Presenter) Present(ctx context.Context, categoryID string, msg Message) (Handle, error) {
	p.mu.Lock()
	category, ok := p.categories[categoryID]
	p.mu.Unlock()
	if !ok {
		return Handle{}, fmt.Errorf("%w: unknown category %q", tracking.ErrNotificationSetupFailed, categoryID)
	}
	if strings.TrimSpace(msg.Title) == "" {
		return Handle{}, fmt.Errorf("%w: title is required", tracking.ErrNotificationSetupFailed)
	}

	backendID, err := p.backend.Show(ctx, ports.Notification{
		CategoryID: category.ID,
		Importance: string(category.Importance),
		Title:      msg.Title,
		Body:       msg.Body,
		Icon:       msg.Icon,
	})
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %w", tracking.ErrNotificationSetupFailed, err)
	}

	handle := Handle{ID: uuid.NewString(), CategoryID: category.ID, backendID: backendID}

	p.mu.Lock()
	p.shown[handle.ID] = backendID
	p.mu.Unlock()

	p.logger.Info(ctx, "notification_presented", "Persistent notification shown", map[string]any{
		"notification_id": handle.ID,
		"category_id":     category.ID,
	})
	return handle, nil
}

// Retire removes the persistent message. Retiring an unknown or already retired handle is not an error.
// The handle is forgotten even when the backend fails to close it.
func (p *Presenter) Retire(ctx context.Context, handle Handle) error {
	p.mu.Lock()
	backendID, ok := p.shown[handle.ID]
	delete(p.shown, handle.ID)
	p.mu.Unlock()

	if !ok {
		return nil
	}

	if err := p.backend.Close(ctx, backendID); err != nil {
		return fmt.Errorf("retire notification %s: %w", handle.ID, err)
	}

	p.logger.Info(ctx, "notification_retired", "Persistent notification removed", map[string]any{
		"notification_id": handle.ID,
	})
	return nil
}

// Visible returns how many persistent notifications are currently shown.
func (p *Presenter) Visible() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.shown)
}
