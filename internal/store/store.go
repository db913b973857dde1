package store

import (
	"context"
	"database/sql"
)

// Store owns the persistence context for the loan/inventory core. It is
// passed explicitly into the HTTP layer and the offline jobs; nothing in
// this package reaches for global state.
type Store struct {
	DB *sql.DB
}

// New creates a Store on top of an open database handle
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn. The inventory
// ledger functions take a querier so they always run inside whatever
// transaction the calling loan operation opened.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
