package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const slowQueryThreshold = time.Second

// Executor runs parameterized statements over pooled connections. It owns
// the named-statement registry and the result cache; the pool owns the
// connections it borrows.
type Executor struct {
	pool     *Pool
	registry *stmtRegistry
	cache    *ResultCache
	logger   *zap.Logger
}

// NewExecutor wires an executor to a pool and a result cache.
func NewExecutor(pool *Pool, cache *ResultCache, logger *zap.Logger) *Executor {
	return &Executor{
		pool:     pool,
		registry: newStmtRegistry(),
		cache:    cache,
		logger:   logger,
	}
}

// isTransportError reports whether the error happened at the connection
// level rather than inside the statement.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "invalid connection")
}

// retriable reports whether the whole operation may run again on a fresh
// connection. Writes are only retried when the driver guarantees the
// server never accepted the statement.
func retriable(err error, write bool) bool {
	if write {
		return errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn)
	}
	return isTransportError(err)
}

func (e *Executor) withConn(ctx context.Context, write bool, fn func(*PooledConn) error) error {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	err = fn(conn)
	if err == nil {
		e.pool.Release(conn, false)
		return nil
	}
	if !retriable(err, write) {
		e.pool.Release(conn, isTransportError(err))
		return err
	}

	// One retry on a fresh connection, never more.
	e.pool.Release(conn, true)
	conn, acqErr := e.pool.Acquire(ctx)
	if acqErr != nil {
		return acqErr
	}
	err = fn(conn)
	if err != nil {
		discard := isTransportError(err)
		e.pool.Release(conn, discard)
		if discard {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return err
	}
	e.pool.Release(conn, false)
	return nil
}

// observedQuerier threads transaction statements through the executor's
// counters and elapsed-time logging, so work done inside a transaction is
// accounted for the same way standalone statements are.
type observedQuerier struct {
	q Querier
	e *Executor
}

func (o observedQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := o.q.ExecContext(ctx, query, args...)
	o.e.observe(query, start, err)
	return res, err
}

func (o observedQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := o.q.QueryContext(ctx, query, args...)
	o.e.observe(query, start, err)
	return rows, err
}

// QueryRowContext defers its error to Scan, so the statement is counted
// as executed when issued.
func (o observedQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := o.q.QueryRowContext(ctx, query, args...)
	o.e.observe(query, start, nil)
	return row
}

func (e *Executor) observe(query string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		e.pool.stats.queriesErrored.Add(1)
		e.logger.Debug("Query failed",
			zap.Duration("elapsed", elapsed),
			zap.String("query", shorten(query)),
			zap.Error(err))
		return
	}
	e.pool.stats.queriesExecuted.Add(1)
	if elapsed > slowQueryThreshold {
		e.logger.Info("Slow query",
			zap.Duration("elapsed", elapsed),
			zap.String("query", shorten(query)))
	} else {
		e.logger.Debug("Query executed",
			zap.Duration("elapsed", elapsed),
			zap.String("query", shorten(query)))
	}
}

func shorten(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > 120 {
		return query[:120] + "…"
	}
	return query
}

// Query runs a read statement and returns every row.
func (e *Executor) Query(ctx context.Context, query string, args ...any) (*RowSet, error) {
	var set *RowSet
	start := time.Now()
	err := e.withConn(ctx, false, func(conn *PooledConn) error {
		rows, err := conn.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		set, err = collectRows(rows)
		return err
	})
	e.observe(query, start, err)
	return set, err
}

// QueryRow runs a read statement and returns the first row, or nil when
// the statement matched nothing.
func (e *Executor) QueryRow(ctx context.Context, query string, args ...any) (Row, error) {
	set, err := e.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return set.First(), nil
}

// QueryCached is Query with the result cache consulted first. The cache is
// read-side only; writes go through Exec and never touch it.
func (e *Executor) QueryCached(ctx context.Context, query string, args ...any) (*RowSet, error) {
	if set, ok := e.cache.Get(query, args); ok {
		e.pool.stats.resultCacheHits.Add(1)
		return set, nil
	}
	e.pool.stats.resultCacheMisses.Add(1)

	set, err := e.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	e.cache.Put(query, args, set)
	return set, nil
}

// NamedQuery runs a read statement through the prepared-statement cache
// under a caller-supplied stable name.
func (e *Executor) NamedQuery(ctx context.Context, name, query string, args ...any) (*RowSet, error) {
	query = e.registry.register(name, query)
	var set *RowSet
	start := time.Now()
	err := e.withConn(ctx, false, func(conn *PooledConn) error {
		stmt, err := conn.Stmt(ctx, name, query, e.pool.stats)
		if err != nil {
			return err
		}
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return err
		}
		set, err = collectRows(rows)
		return err
	})
	e.observe(query, start, err)
	return set, err
}

// Exec runs a write statement and returns the affected-row count.
func (e *Executor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	start := time.Now()
	err := e.withConn(ctx, true, func(conn *PooledConn) error {
		res, err := conn.conn.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	e.observe(query, start, err)
	return affected, err
}

// NamedExec runs a write statement through the prepared-statement cache.
func (e *Executor) NamedExec(ctx context.Context, name, query string, args ...any) (int64, error) {
	query = e.registry.register(name, query)
	var affected int64
	start := time.Now()
	err := e.withConn(ctx, true, func(conn *PooledConn) error {
		stmt, err := conn.Stmt(ctx, name, query, e.pool.stats)
		if err != nil {
			return err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	e.observe(query, start, err)
	return affected, err
}

// ExecBatch runs one statement for every parameter tuple under a single
// implicit transaction and returns the total affected-row count.
func (e *Executor) ExecBatch(ctx context.Context, query string, paramsList [][]any) (int64, error) {
	var total int64
	err := e.Transaction(ctx, func(q Querier) error {
		if o, ok := q.(observedQuerier); ok {
			q = o.q
		}
		tx, ok := q.(*sql.Tx)
		if !ok {
			return errors.New("batch requires a transaction querier")
		}
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, params := range paramsList {
			res, err := stmt.ExecContext(ctx, params...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Transaction borrows one connection for the whole transaction, commits on
// normal return and rolls back on error or panic. The connection is always
// released; it is discarded when the failure was transport-level.
func (e *Executor) Transaction(ctx context.Context, fn func(Querier) error) error {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.conn.BeginTx(ctx, nil)
	if err != nil {
		discard := isTransportError(err)
		e.pool.Release(conn, discard)
		if !retriable(err, true) {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		// Begin never reaches the statement, safe to retry once.
		conn, err = e.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		tx, err = conn.conn.BeginTx(ctx, nil)
		if err != nil {
			e.pool.Release(conn, isTransportError(err))
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			e.pool.Release(conn, true)
			panic(p)
		}
	}()

	if err := fn(observedQuerier{q: tx, e: e}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			e.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		e.pool.Release(conn, isTransportError(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		e.pool.Release(conn, isTransportError(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	e.pool.Release(conn, false)
	return nil
}
