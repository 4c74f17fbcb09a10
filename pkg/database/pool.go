package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PoolConfig holds connection pool tuning parameters.
type PoolConfig struct {
	Driver               string
	DSN                  string
	MinConns             int
	MaxConns             int
	AcquireTimeout       time.Duration
	ConnectTimeout       time.Duration
	HealthCheckThreshold time.Duration
}

const acquirePollInterval = 50 * time.Millisecond

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Driver == "" {
		c.Driver = "mysql"
	}
	if c.MinConns <= 0 {
		c.MinConns = 3
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 25
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.HealthCheckThreshold <= 0 {
		c.HealthCheckThreshold = 100 * time.Millisecond
	}
	return c
}

// PooledConn is one live server connection owned by the pool. It carries the
// per-session prepared-statement cache; prepared plans die with the session,
// so the cache cannot outlive the connection.
type PooledConn struct {
	conn     *sql.Conn
	stmts    map[string]*sql.Stmt
	lastUsed time.Time
	broken   bool
}

// Raw exposes the underlying connection for statement execution.
func (c *PooledConn) Raw() *sql.Conn {
	return c.conn
}

// MarkBroken flags the connection so release discards it instead of
// re-pooling it.
func (c *PooledConn) MarkBroken() {
	c.broken = true
}

func (c *PooledConn) close() {
	for _, stmt := range c.stmts {
		_ = stmt.Close()
	}
	c.stmts = nil
	_ = c.conn.Close()
}

// Pool is a bounded set of live server-database connections shared across
// callers. It owns every pooled connection; executors borrow one for the
// duration of a single operation.
type Pool struct {
	cfg    PoolConfig
	db     *sql.DB
	stats  *Stats
	logger *zap.Logger

	mu      sync.Mutex
	idle    []*PooledConn
	numOpen int
	closed  bool
}

// NewPool opens the driver handle and pre-warms MinConns connections.
func NewPool(cfg PoolConfig, logger *zap.Logger) (*Pool, error) {
	cfg = cfg.withDefaults()

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database handle: %w", err)
	}
	// The driver-level pool must never cap below ours.
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxLifetime(0)

	p := &Pool{
		cfg:    cfg,
		db:     db,
		stats:  &Stats{},
		logger: logger,
	}

	for i := 0; i < cfg.MinConns; i++ {
		conn, err := p.connect()
		if err != nil {
			p.mu.Lock()
			p.closed = true
			p.closeAllLocked()
			p.mu.Unlock()
			_ = db.Close()
			return nil, fmt.Errorf("failed to pre-warm pool: %w", err)
		}
		p.mu.Lock()
		p.numOpen++
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
	}

	logger.Info("Connection pool ready",
		zap.Int("min_conns", cfg.MinConns),
		zap.Int("max_conns", cfg.MaxConns))
	return p, nil
}

// Stats returns the shared counter set.
func (p *Pool) Stats() *Stats {
	return p.stats
}

// Snapshot returns the current counter values.
func (p *Pool) Snapshot() PoolStats {
	return p.stats.Snapshot()
}

func (p *Pool) connect() (*PooledConn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectTimeout)
	defer cancel()

	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.stats.connectionsFailed.Add(1)
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	p.stats.connectionsCreated.Add(1)
	return &PooledConn{
		conn:     conn,
		stmts:    make(map[string]*sql.Stmt),
		lastUsed: time.Now(),
	}, nil
}

// Acquire hands out a live connection, blocking cooperatively up to the
// configured acquire timeout while the pool is saturated. A borrowed idle
// connection is probed with a trivial round-trip only when the acquire
// itself was slow; the probe cost is amortized away on the fast path.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	start := time.Now()
	deadline := start.Add(p.cfg.AcquireTimeout)
	waited := false
	probeRetried := false

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		if n := len(p.idle); n > 0 {
			conn := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()
			p.stats.connectionsReused.Add(1)

			if time.Since(start) > p.cfg.HealthCheckThreshold && !probeRetried {
				if !p.probe(conn) {
					p.Release(conn, true)
					probeRetried = true
					continue
				}
			}
			return conn, nil
		}

		if p.numOpen < p.cfg.MaxConns {
			p.numOpen++
			p.mu.Unlock()

			conn, err := p.connect()
			if err != nil {
				p.mu.Lock()
				p.numOpen--
				p.mu.Unlock()
				return nil, err
			}
			return conn, nil
		}

		if !waited {
			waited = true
			p.stats.exhaustedWaits.Add(1)
		}
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.stats.waitTimeouts.Add(1)
			return nil, ErrPoolExhausted
		}
		sleep := acquirePollInterval
		if remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			// Caller cancellation is not pool exhaustion; that name is
			// reserved for the full acquire timeout elapsing.
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (p *Pool) probe(conn *PooledConn) bool {
	p.stats.healthChecks.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectTimeout)
	defer cancel()
	if err := conn.conn.PingContext(ctx); err != nil {
		p.stats.healthCheckFailures.Add(1)
		p.logger.Warn("Pooled connection failed health probe", zap.Error(err))
		return false
	}
	return true
}

// Release returns a connection to the idle set, or discards it when the
// caller says so or the connection went bad mid-operation.
func (p *Pool) Release(conn *PooledConn, discard bool) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	if p.closed || discard || conn.broken {
		p.numOpen--
		p.mu.Unlock()
		conn.close()
		return
	}
	conn.lastUsed = time.Now()
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// CloseAll terminates every pooled connection. Subsequent Acquire calls
// fail with ErrPoolClosed; connections still borrowed are closed on release.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.closeAllLocked()
	p.mu.Unlock()

	p.logger.Info("Connection pool closed")
	return p.db.Close()
}

func (p *Pool) closeAllLocked() {
	for _, conn := range p.idle {
		conn.close()
		p.numOpen--
	}
	p.idle = nil
}
