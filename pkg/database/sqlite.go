package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// EmbeddedConfig holds embedded file database configuration.
type EmbeddedConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Embedded is the local file database backend.
type Embedded struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenEmbedded opens the embedded file database.
func OpenEmbedded(cfg EmbeddedConfig, logger *zap.Logger) (*Embedded, error) {
	// Enable WAL mode for better concurrency
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", cfg.Path)

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Embedded database opened", zap.String("path", cfg.Path))
	return &Embedded{db: sqlDB, logger: logger}, nil
}

// Kind returns KindEmbedded.
func (e *Embedded) Kind() Kind {
	return KindEmbedded
}

// DB exposes the raw handle for callers that need driver-level access.
func (e *Embedded) DB() *sql.DB {
	return e.db
}

// Exec runs a write statement and returns the affected-row count.
func (e *Embedded) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Query runs a read statement and returns every row.
func (e *Embedded) Query(ctx context.Context, query string, args ...any) (*RowSet, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// QueryCached falls through to Query; the embedded backend is local and
// carries no result cache.
func (e *Embedded) QueryCached(ctx context.Context, query string, args ...any) (*RowSet, error) {
	return e.Query(ctx, query, args...)
}

// WithTransaction executes fn within a transaction.
func (e *Embedded) WithTransaction(ctx context.Context, fn func(Querier) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		e.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		e.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping verifies the database file is reachable.
func (e *Embedded) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close closes the database handle.
func (e *Embedded) Close() error {
	e.logger.Info("Closing embedded database")
	return e.db.Close()
}
