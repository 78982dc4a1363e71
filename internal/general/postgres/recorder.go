package postgres

import (
	"context"
	"errors"
	"fmt"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/logger"
	"geotrack/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SessionRecorder writes the tracking session audit trail through a unit of work.
type SessionRecorder struct {
	uow      ports.UnitOfWork
	sessions ports.TrackingSessionRepository
	logger   *logger.Logger
}

// NewSessionRecorder constructs a SessionRecorder.
func NewSessionRecorder(uow ports.UnitOfWork, sessions ports.TrackingSessionRepository, logger *logger.Logger) *SessionRecorder {
	return &SessionRecorder{uow: uow, sessions: sessions, logger: logger}
}

var _ ports.SessionRecorder = (*SessionRecorder)(nil)

// Begin records a session that just started.
func (rec *SessionRecorder) Begin(ctx context.Context, session *tracking.Session) error {
	err := rec.uow.WithinTx(ctx, func(ctx context.Context) error {
		return rec.sessions.Start(ctx, session)
	})
	if err != nil {
		return describe("begin session", err)
	}
	return nil
}

// Finish records the end of a session.
func (rec *SessionRecorder) Finish(ctx context.Context, session *tracking.Session) error {
	err := rec.uow.WithinTx(ctx, func(ctx context.Context) error {
		return rec.sessions.End(ctx, session)
	})
	if err != nil {
		return describe("finish session", err)
	}
	return nil
}

// CloseAbandoned ends sessions left open by a previous process that exited without
// teardown. It returns how many rows were closed.
func (rec *SessionRecorder) CloseAbandoned(ctx context.Context) (int, error) {
	closed := 0
	err := rec.uow.WithinTx(ctx, func(ctx context.Context) error {
		for {
			session, err := rec.sessions.GetOpen(ctx)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := session.End(tracking.EndReasonTeardown, session.BatchesDelivered, session.SamplesDelivered); err != nil {
				return err
			}
			if err := rec.sessions.End(ctx, session); err != nil {
				return err
			}
			closed++
		}
	})
	if err != nil {
		return 0, describe("close abandoned sessions", err)
	}

	if closed > 0 {
		rec.logger.Info(ctx, "abandoned_sessions_closed", "Closed tracking sessions left open by a previous run", map[string]any{
			"count": closed,
		})
	}
	return closed, nil
}

// describe adds the SQLSTATE of a server-side failure to the error text.
func describe(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("postgres: %s: sqlstate %s: %w", op, pgErr.Code, err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
