package manager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

// IDPolicy allocates the next primary identity for an entity. Next runs
// inside the caller's transaction; callers retry once on a unique-key
// conflict, which keeps allocation collision-safe without a table lock.
type IDPolicy interface {
	Next(ctx context.Context, q database.Querier, table, idColumn string) (string, error)
}

// SequentialID allocates prefix + optional date stamp + zero-padded
// counter, the counter scoped to the prefix+stamp it is read under.
// Covers the EMP-style (yymm scope), C###-style (global scope) and
// ORD-style (day scope) schemes.
type SequentialID struct {
	Prefix string
	Stamp  string // time layout, e.g. "0601" or "20060102"; empty for none
	Width  int
}

// Next reads the highest existing id in scope and increments it. The read
// happens inside the caller's transaction, so two writers either serialize
// on the row range or collide on the unique key and retry.
func (p SequentialID) Next(ctx context.Context, q database.Querier, table, idColumn string) (string, error) {
	scope := p.Prefix
	if p.Stamp != "" {
		scope += time.Now().Format(p.Stamp)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s LIKE ? ORDER BY %s DESC LIMIT 1",
		idColumn, table, idColumn, idColumn,
	)

	var last string
	err := q.QueryRowContext(ctx, query, scope+"%").Scan(&last)
	next := 1
	if err == nil {
		seq := strings.TrimPrefix(last, scope)
		n, convErr := strconv.Atoi(seq)
		if convErr != nil {
			return "", fmt.Errorf("malformed id %q in %s: %w", last, table, convErr)
		}
		next = n + 1
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read max id for %s: %w", table, err)
	}

	return fmt.Sprintf("%s%0*d", scope, p.Width, next), nil
}
