package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rowSet(n int) *RowSet {
	set := &RowSet{Columns: []string{"id"}}
	for i := 0; i < n; i++ {
		set.Rows = append(set.Rows, Row{"id": int64(i)})
	}
	return set
}

func TestResultCacheHitAndExpiry(t *testing.T) {
	cache := NewResultCache(50*time.Millisecond, 10)

	cache.Put("SELECT 1", nil, rowSet(1))

	got, ok := cache.Get("SELECT 1", nil)
	assert.True(t, ok)
	assert.Equal(t, 1, got.Len())

	time.Sleep(80 * time.Millisecond)

	_, ok = cache.Get("SELECT 1", nil)
	assert.False(t, ok, "entries expire after the TTL")
	assert.Equal(t, 0, cache.Len(), "an expired entry is removed on read")
}

func TestResultCacheKeyIncludesParams(t *testing.T) {
	cache := NewResultCache(time.Minute, 10)

	cache.Put("SELECT ?", []any{"a"}, rowSet(1))
	cache.Put("SELECT ?", []any{"b"}, rowSet(2))

	a, ok := cache.Get("SELECT ?", []any{"a"})
	assert.True(t, ok)
	assert.Equal(t, 1, a.Len())

	b, ok := cache.Get("SELECT ?", []any{"b"})
	assert.True(t, ok)
	assert.Equal(t, 2, b.Len())

	_, ok = cache.Get("SELECT ?", []any{"c"})
	assert.False(t, ok)
}

func TestResultCacheLatestWriteWins(t *testing.T) {
	cache := NewResultCache(time.Minute, 10)

	cache.Put("SELECT 1", nil, rowSet(1))
	cache.Put("SELECT 1", nil, rowSet(3))

	got, ok := cache.Get("SELECT 1", nil)
	assert.True(t, ok)
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, 1, cache.Len())
}

func TestResultCacheSoftCapEvictsOldest(t *testing.T) {
	cache := NewResultCache(time.Minute, 2)

	cache.Put("q1", nil, rowSet(1))
	time.Sleep(5 * time.Millisecond)
	cache.Put("q2", nil, rowSet(1))
	time.Sleep(5 * time.Millisecond)
	cache.Put("q3", nil, rowSet(1))

	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get("q1", nil)
	assert.False(t, ok, "the oldest entry goes first")
	_, ok = cache.Get("q3", nil)
	assert.True(t, ok)
}

func TestResultCacheDetachedFromCallers(t *testing.T) {
	cache := NewResultCache(time.Minute, 10)

	stored := rowSet(2)
	cache.Put("SELECT 1", nil, stored)
	stored.Rows = stored.Rows[:1]

	got, ok := cache.Get("SELECT 1", nil)
	assert.True(t, ok)
	assert.Equal(t, 2, got.Len(), "the cache keeps its own view of the rows")

	got.Rows = append(got.Rows[:1], Row{"id": int64(99)})
	got.Columns[0] = "mangled"

	again, ok := cache.Get("SELECT 1", nil)
	assert.True(t, ok)
	assert.Equal(t, []string{"id"}, again.Columns)
	assert.Equal(t, 2, again.Len())
	assert.Equal(t, int64(1), again.Rows[1]["id"], "later readers see the rows as stored")
}

func TestResultCachePurge(t *testing.T) {
	cache := NewResultCache(time.Minute, 10)

	cache.Put("q1", nil, rowSet(1))
	cache.Put("q2", nil, rowSet(1))
	cache.Purge()

	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Get("q1", nil)
	assert.False(t, ok)
}
