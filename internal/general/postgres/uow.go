package postgres

import (
	"context"
	"errors"
	"fmt"

	"geotrack/internal/ports"

	"github.com/jackc/pgx/v5"
)

// ErrNoTx is returned by repository methods called outside WithinTx.
var ErrNoTx = errors.New("postgres: no transaction in context")

// TxBeginner is the part of *pgxpool.Pool the unit of work needs.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type txKey struct{}

type unitOfWork struct {
	db TxBeginner
}

// NewUnitOfWork binds a unit of work to db.
func NewUnitOfWork(db TxBeginner) ports.UnitOfWork {
	return &unitOfWork{db: db}
}

// WithinTx runs fn in a transaction carried by ctx. A nested call joins the
// outer transaction. The transaction commits only if fn returns nil; an error
// or panic rolls it back, and the panic is re-raised.
func (uow *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := uow.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// requireTx returns the transaction opened by WithinTx.
func requireTx(ctx context.Context) (pgx.Tx, error) {
	if tx, ok := txFrom(ctx); ok {
		return tx, nil
	}
	return nil, ErrNoTx
}
