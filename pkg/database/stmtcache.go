package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// stmtRegistry maps caller-supplied statement names to their SQL text.
// Entries are write-once and never evicted; eviction on schema change is
// handled by restarting the process.
type stmtRegistry struct {
	mu     sync.Mutex
	byName map[string]string
}

func newStmtRegistry() *stmtRegistry {
	return &stmtRegistry{byName: make(map[string]string)}
}

// register records the SQL for a name on first use and returns the
// canonical text. A name re-registered with different SQL keeps the
// original text; callers are expected to use stable names.
func (r *stmtRegistry) register(name, query string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[name]; ok {
		return existing
	}
	r.byName[name] = query
	return query
}

// Stmt resolves a named statement on this connection. The first use per
// session prepares the plan; later uses execute the cached handle. Both
// engines scope prepared plans to the session, so the cache lives on the
// connection while the name→SQL registry is process-wide.
func (c *PooledConn) Stmt(ctx context.Context, name, query string, stats *Stats) (*sql.Stmt, error) {
	if stmt, ok := c.stmts[name]; ok {
		stats.statementsReused.Add(1)
		return stmt, nil
	}

	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement %q: %w", name, err)
	}
	stats.statementsPrepared.Add(1)
	c.stmts[name] = stmt
	return stmt, nil
}
