package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ServerConfig holds server database configuration.
type ServerConfig struct {
	DSN                  string
	MinConns             int
	MaxConns             int
	AcquireTimeout       time.Duration
	ConnectTimeout       time.Duration
	HealthCheckThreshold time.Duration
	ResultCacheTTL       time.Duration
	ResultCacheCap       int
}

// Server is the pooled server database backend.
type Server struct {
	pool   *Pool
	exec   *Executor
	logger *zap.Logger
}

// OpenServer builds the pool, executor and result cache for a server DSN.
// The DSN may be a native driver DSN or a mysql:// URL.
func OpenServer(cfg ServerConfig, logger *zap.Logger) (*Server, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	pool, err := NewPool(PoolConfig{
		Driver:               "mysql",
		DSN:                  dsn,
		MinConns:             cfg.MinConns,
		MaxConns:             cfg.MaxConns,
		AcquireTimeout:       cfg.AcquireTimeout,
		ConnectTimeout:       cfg.ConnectTimeout,
		HealthCheckThreshold: cfg.HealthCheckThreshold,
	}, logger)
	if err != nil {
		return nil, err
	}

	cache := NewResultCache(cfg.ResultCacheTTL, cfg.ResultCacheCap)
	return &Server{
		pool:   pool,
		exec:   NewExecutor(pool, cache, logger),
		logger: logger,
	}, nil
}

// normalizeDSN converts a mysql:// URL into the driver's DSN form and
// passes native DSNs through untouched.
func normalizeDSN(dsn string) (string, error) {
	if !strings.Contains(dsn, "://") {
		return dsn, nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	if u.Scheme != "mysql" {
		return "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Host
	if !strings.Contains(host, ":") {
		host += ":3306"
	}
	name := strings.TrimPrefix(u.Path, "/")

	out := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", user, pass, host, name)
	if q := u.RawQuery; q != "" {
		out += "&" + q
	}
	return out, nil
}

// Kind returns KindServer.
func (s *Server) Kind() Kind {
	return KindServer
}

// Executor exposes the query executor for callers that use named
// statements or batches directly.
func (s *Server) Executor() *Executor {
	return s.exec
}

// Stats returns a snapshot of the pool counters.
func (s *Server) Stats() PoolStats {
	return s.pool.Snapshot()
}

// Exec runs a write statement and returns the affected-row count.
func (s *Server) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return s.exec.Exec(ctx, query, args...)
}

// Query runs a read statement and returns every row.
func (s *Server) Query(ctx context.Context, query string, args ...any) (*RowSet, error) {
	return s.exec.Query(ctx, query, args...)
}

// QueryCached runs a read statement through the result cache.
func (s *Server) QueryCached(ctx context.Context, query string, args ...any) (*RowSet, error) {
	return s.exec.QueryCached(ctx, query, args...)
}

// WithTransaction executes fn within one pooled-connection transaction.
func (s *Server) WithTransaction(ctx context.Context, fn func(Querier) error) error {
	return s.exec.Transaction(ctx, fn)
}

// Ping borrows and returns a connection to prove the server is reachable.
func (s *Server) Ping(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	err = conn.conn.PingContext(ctx)
	s.pool.Release(conn, err != nil)
	return err
}

// Close tears the pool down.
func (s *Server) Close() error {
	return s.pool.CloseAll()
}
