package ports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the common query surface of a pgx pool and a pgx transaction.
// Repositories accept it so the same code runs inside and outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBPort abstracts the database executor for services
type DBPort interface {
	// GetDB returns the shared pool for single-statement work
	GetDB() DBTX

	// WithTransaction executes fn inside a transaction. The transaction is
	// rolled back if fn returns an error or panics, committed otherwise.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}
