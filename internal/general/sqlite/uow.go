package sqlite

import (
	"context"
	"database/sql"

	"marketplace/internal/ports"
)

type ctxKey struct{}

var txKey = ctxKey{}

// unitOfWork coordinates transactional execution against a *sql.DB.
type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork constructs a unitOfWork bound to db.
func NewUnitOfWork(db *sql.DB) ports.UnitOfWork {
	return &unitOfWork{db: db}
}

// WithinTx executes fn within a transaction; nested calls reuse the outer one.
func (uow *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := uow.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// queryExecer is the subset shared by *sql.DB and *sql.Tx.
type queryExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the transaction in ctx when there is one, otherwise db.
func execer(ctx context.Context, db *sql.DB) queryExecer {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return db
}
