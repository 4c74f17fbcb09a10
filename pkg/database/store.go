package database

import (
	"context"
	"database/sql"
)

// Kind identifies a storage backend family.
type Kind string

const (
	// KindEmbedded is the local file database (SQLite).
	KindEmbedded Kind = "embedded"
	// KindServer is the pooled server database (MySQL).
	KindServer Kind = "server"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind names a known backend family.
func (k Kind) IsValid() bool {
	return k == KindEmbedded || k == KindServer
}

// Querier is the statement surface shared by connections and transactions.
// *sql.DB, *sql.Tx and *sql.Conn all satisfy it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the backend surface consumed by entity managers and the expense
// core. Both families implement it; callers never see which one they hold.
type Store interface {
	// Kind reports which backend family this store belongs to.
	Kind() Kind

	// Exec runs a write statement and returns the affected-row count.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Query runs a read statement and returns all rows.
	Query(ctx context.Context, query string, args ...any) (*RowSet, error)

	// QueryCached is Query with the short-lived result cache consulted
	// first. Backends without a result cache fall through to Query.
	QueryCached(ctx context.Context, query string, args ...any) (*RowSet, error)

	// WithTransaction runs fn inside one transaction, committing on normal
	// return and rolling back on error.
	WithTransaction(ctx context.Context, fn func(Querier) error) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases every resource held by the store.
	Close() error
}
