package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const schemaTrackingSessions = `
CREATE TABLE IF NOT EXISTS tracking_sessions (
	id                  uuid PRIMARY KEY,
	started_at          timestamptz NOT NULL,
	ended_at            timestamptz,
	interval_ms         bigint NOT NULL CHECK (interval_ms > 0),
	fastest_interval_ms bigint NOT NULL CHECK (fastest_interval_ms > 0),
	priority            text NOT NULL,
	batches_delivered   bigint NOT NULL DEFAULT 0,
	samples_delivered   bigint NOT NULL DEFAULT 0,
	end_reason          text
)`

// EnsureSchema creates the audit table if it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaTrackingSessions); err != nil {
		return fmt.Errorf("postgres: ensure tracking_sessions: %w", err)
	}
	return nil
}
