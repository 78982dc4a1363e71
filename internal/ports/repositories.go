package ports

import (
	"context"

	"geotrack/internal/domain/tracking"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TrackingSessionRepository defines the methods for managing tracking session audit rows.
type TrackingSessionRepository interface {
	Start(ctx context.Context, session *tracking.Session) error
	End(ctx context.Context, session *tracking.Session) error
	GetOpen(ctx context.Context) (*tracking.Session, error)
}

// SessionRecorder keeps an audit trail of Active periods. Recording is best effort:
// the controller logs failures and never lets them change a transition outcome.
type SessionRecorder interface {
	Begin(ctx context.Context, session *tracking.Session) error
	Finish(ctx context.Context, session *tracking.Session) error
}
