package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T, cfg PoolConfig) *Pool {
	t.Helper()
	cfg.Driver = "sqlite3"
	cfg.DSN = "file:" + filepath.Join(t.TempDir(), "pool_test.db")

	pool, err := NewPool(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { pool.CloseAll() })
	return pool
}

func TestPoolPrewarmAndReuse(t *testing.T) {
	pool := newTestPool(t, PoolConfig{MinConns: 2, MaxConns: 5})
	ctx := context.Background()

	stats := pool.Snapshot()
	assert.Equal(t, int64(2), stats.ConnectionsCreated)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(conn, false)

	conn, err = pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(conn, false)

	stats = pool.Snapshot()
	assert.Equal(t, int64(2), stats.ConnectionsCreated, "pre-warmed connections serve both acquires")
	assert.Equal(t, int64(2), stats.ConnectionsReused)
}

func TestPoolGrowsToMax(t *testing.T) {
	pool := newTestPool(t, PoolConfig{MinConns: 1, MaxConns: 2, AcquireTimeout: 150 * time.Millisecond})
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	require.NoError(t, err)
	second, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pool.Snapshot().ConnectionsCreated)

	start := time.Now()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond,
		"a saturated pool waits for the acquire timeout before giving up")

	stats := pool.Snapshot()
	assert.Equal(t, int64(1), stats.ExhaustedWaits)
	assert.Equal(t, int64(1), stats.WaitTimeouts)

	pool.Release(first, false)
	pool.Release(second, false)

	// Capacity freed; the next acquire succeeds without creating anything.
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(conn, false)
	assert.Equal(t, int64(2), pool.Snapshot().ConnectionsCreated)
}

func TestPoolAcquireWhileWaiting(t *testing.T) {
	pool := newTestPool(t, PoolConfig{MinConns: 1, MaxConns: 1, AcquireTimeout: 2 * time.Second})
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		c, err := pool.Acquire(ctx)
		if err == nil {
			pool.Release(c, false)
		}
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	pool.Release(conn, false)

	select {
	case err := <-done:
		assert.NoError(t, err, "a waiter picks up the released connection")
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released connection")
	}
}

func TestPoolClosed(t *testing.T) {
	pool := newTestPool(t, PoolConfig{MinConns: 1, MaxConns: 2})
	require.NoError(t, pool.CloseAll())

	_, err := pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	// Closing twice is harmless.
	assert.NoError(t, pool.CloseAll())
}

func TestPoolDiscardReplacesConnection(t *testing.T) {
	pool := newTestPool(t, PoolConfig{MinConns: 1, MaxConns: 1})
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(conn, true)

	conn, err = pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(conn, false)

	assert.Equal(t, int64(2), pool.Snapshot().ConnectionsCreated,
		"a discarded connection is replaced, not re-pooled")
}

func TestPoolContextCancellation(t *testing.T) {
	pool := newTestPool(t, PoolConfig{MinConns: 1, MaxConns: 1, AcquireTimeout: 5 * time.Second})
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer pool.Release(conn, false)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = pool.Acquire(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second,
		"a cancelled context aborts the wait before the acquire timeout")
	assert.Equal(t, int64(0), pool.Snapshot().WaitTimeouts,
		"caller cancellation does not count as an acquire timeout")
}
