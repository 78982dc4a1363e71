package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorder(t *testing.T) (*SessionRecorder, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	rec := NewSessionRecorder(NewUnitOfWork(mock), NewTrackingSessionRepo(), logger.NewNop())
	return rec, mock
}

func TestRecorderBeginInsertsSession(t *testing.T) {
	rec, mock := newRecorder(t)
	session := tracking.NewSession(tracking.DefaultSubscriptionConfig())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tracking_sessions`).
		WithArgs(session.ID, pgxmock.AnyArg(), int64(10000), int64(5000), "high-accuracy").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, rec.Begin(context.Background(), session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorderFinishUpdatesSession(t *testing.T) {
	rec, mock := newRecorder(t)
	session := tracking.NewSession(tracking.DefaultSubscriptionConfig())
	require.NoError(t, session.End(tracking.EndReasonTeardown, 3, 12))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tracking_sessions`).
		WithArgs(pgxmock.AnyArg(), int64(3), int64(12), "teardown", session.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, rec.Finish(context.Background(), session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorderRollsBackOnFailure(t *testing.T) {
	rec, mock := newRecorder(t)
	session := tracking.NewSession(tracking.DefaultSubscriptionConfig())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tracking_sessions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	err := rec.Begin(context.Background(), session)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlstate 23505")

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseAbandonedEndsOpenSessions(t *testing.T) {
	rec, mock := newRecorder(t)
	cols := []string{"id", "started_at", "interval_ms", "fastest_interval_ms", "priority", "batches_delivered", "samples_delivered"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+id,\s+started_at`).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("7b1f6a3e-2f7c-4a8e-9d43-1c2b3a4d5e6f", time.Now().Add(-time.Hour), int64(10000), int64(5000), "balanced", int64(0), int64(0)))
	mock.ExpectExec(`UPDATE tracking_sessions`).
		WithArgs(pgxmock.AnyArg(), int64(0), int64(0), "teardown", "7b1f6a3e-2f7c-4a8e-9d43-1c2b3a4d5e6f").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT\s+id,\s+started_at`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	n, err := rec.CloseAbandoned(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoRequiresTransaction(t *testing.T) {
	repo := NewTrackingSessionRepo()
	err := repo.Start(context.Background(), tracking.NewSession(tracking.DefaultSubscriptionConfig()))
	assert.ErrorIs(t, err, ErrNoTx)
}

func TestNestedWithinTxJoinsOuterTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	uow := NewUnitOfWork(mock)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = uow.WithinTx(context.Background(), func(ctx context.Context) error {
		outer, _ := txFrom(ctx)
		return uow.WithinTx(ctx, func(ctx context.Context) error {
			inner, _ := txFrom(ctx)
			assert.Equal(t, outer, inner)
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	uow := NewUnitOfWork(mock)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS tracking_sessions`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, EnsureSchema(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
