package tracking

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EndReason records why an Active period ended.
type EndReason string

const (
	EndReasonCommand  EndReason = "command"
	EndReasonTeardown EndReason = "teardown"
)

var ErrSessionAlreadyEnded = errors.New("session already ended")

// Session is the audit entity corresponding to the `tracking_sessions` table.
// It describes one Active period, never the samples collected in it.
type Session struct {
	ID               string
	StartedAt        time.Time
	EndedAt          *time.Time
	Config           SubscriptionConfig
	BatchesDelivered int64
	SamplesDelivered int64
	EndReason        EndReason
}

// NewSession creates a new session starting "now".
func NewSession(cfg SubscriptionConfig) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Config:    cfg,
	}
}

// End marks the session ended "now" with the delivery totals. Returns an error on double end.
func (session *Session) End(reason EndReason, batches, samples int64) error {
	if session.EndedAt != nil {
		return ErrSessionAlreadyEnded
	}
	now := time.Now().UTC()
	session.EndedAt = &now
	session.EndReason = reason
	session.BatchesDelivered = batches
	session.SamplesDelivered = samples
	return nil
}

// Duration is the length of an ended session, or the time elapsed so far.
func (session *Session) Duration() time.Duration {
	if session.EndedAt == nil {
		return time.Since(session.StartedAt)
	}
	return session.EndedAt.Sub(session.StartedAt)
}
