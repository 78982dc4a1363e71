package postgres

import (
	"context"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/ports"
)

// TrackingSessionRepo persists tracking session audit rows using pgx and plain SQL.
type TrackingSessionRepo struct{}

// NewTrackingSessionRepo constructs a new TrackingSessionRepo.
func NewTrackingSessionRepo() ports.TrackingSessionRepository {
	return &TrackingSessionRepo{}
}

// Start inserts the row of a session that just became Active.
func (repo *TrackingSessionRepo) Start(ctx context.Context, session *tracking.Session) error {
	tx, err := requireTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tracking_sessions (id, started_at, interval_ms, fastest_interval_ms, priority)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID,
		session.StartedAt,
		session.Config.IntervalMillis,
		session.Config.FastestIntervalMillis,
		session.Config.Priority.String(),
	)
	return err
}

// End stores the end time, totals and reason of a session.
func (repo *TrackingSessionRepo) End(ctx context.Context, session *tracking.Session) error {
	tx, err := requireTx(ctx)
	if err != nil {
		return err
	}

	if session.EndedAt == nil {
		if err := session.End(tracking.EndReasonCommand, session.BatchesDelivered, session.SamplesDelivered); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE tracking_sessions
		SET ended_at = $1,
		    batches_delivered = $2,
		    samples_delivered = $3,
		    end_reason = $4
		WHERE id = $5
	`, session.EndedAt, session.BatchesDelivered, session.SamplesDelivered, string(session.EndReason), session.ID)

	return err
}

// GetOpen fetches the most recent session that was never ended.
func (repo *TrackingSessionRepo) GetOpen(ctx context.Context) (*tracking.Session, error) {
	tx, err := requireTx(ctx)
	if err != nil {
		return nil, err
	}

	var (
		session  tracking.Session
		priority string
	)
	err = tx.QueryRow(ctx, `
		SELECT
			id,
			started_at,
			interval_ms,
			fastest_interval_ms,
			priority,
			batches_delivered,
			samples_delivered
		FROM tracking_sessions
		WHERE ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(
		&session.ID,
		&session.StartedAt,
		&session.Config.IntervalMillis,
		&session.Config.FastestIntervalMillis,
		&priority,
		&session.BatchesDelivered,
		&session.SamplesDelivered,
	)
	if err != nil {
		return nil, err
	}

	session.Config.Priority = tracking.Priority(priority)
	return &session, nil
}
