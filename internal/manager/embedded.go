package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

// EmbeddedManager is the embedded-file family of the manager interface.
type EmbeddedManager struct {
	spec   EntitySpec
	store  *database.Embedded
	logger *zap.Logger
}

// NewEmbedded builds a manager bound to the embedded backend, creating the
// entity's table on the first instantiation per process.
func NewEmbedded(spec EntitySpec, store *database.Embedded, logger *zap.Logger) (*EmbeddedManager, error) {
	err := bootstrapOnce("embedded:"+spec.Table, func() error {
		_, err := store.Exec(context.Background(), spec.CreateSQL[database.KindEmbedded])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap %s: %w", spec.Table, err)
	}
	return &EmbeddedManager{spec: spec, store: store, logger: logger}, nil
}

// Entity returns the entity name.
func (m *EmbeddedManager) Entity() string {
	return m.spec.Entity
}

// List returns rows matching the recognized filter columns, sorted by the
// entity's sort column. Soft-deleted rows are excluded.
func (m *EmbeddedManager) List(ctx context.Context, filter Payload, limit int) (*database.RowSet, error) {
	query, args := buildListQuery(m.spec, filter, limit)
	set, err := m.store.Query(ctx, query, args...)
	if err != nil {
		m.logger.Error("Failed to list rows", zap.String("entity", m.spec.Entity), zap.Error(err))
		return nil, fmt.Errorf("failed to list %s: %w", m.spec.Entity, err)
	}
	return set, nil
}

// Get returns one row by primary identity.
func (m *EmbeddedManager) Get(ctx context.Context, id string) (database.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", m.spec.Table, m.spec.IDColumn)
	set, err := m.store.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", m.spec.Entity, err)
	}
	if set.Len() == 0 {
		return nil, apperr.NotFound(id)
	}
	return set.First(), nil
}

// Add inserts a new row inside one transaction. The id read and the insert
// share the transaction, and a unique-key collision is retried once with a
// freshly allocated id.
func (m *EmbeddedManager) Add(ctx context.Context, payload Payload) (string, error) {
	for _, col := range m.spec.requiredColumns() {
		if v, ok := payload[col]; !ok || v == nil || v == "" {
			return "", apperr.Validation(col)
		}
	}
	if err := m.spec.validate(payload); err != nil {
		return "", err
	}
	payload = sanitized(payload)

	var id string
	attempt := func() error {
		return m.store.WithTransaction(ctx, func(q database.Querier) error {
			var err error
			id, err = m.spec.IDs.Next(ctx, q, m.spec.Table, m.spec.IDColumn)
			if err != nil {
				return err
			}
			query, args := buildInsertQuery(m.spec, id, payload)
			_, err = q.ExecContext(ctx, query, args...)
			return err
		})
	}

	err := attempt()
	if err != nil && isSQLiteUnique(err) {
		err = attempt()
	}
	if err != nil {
		if isSQLiteUnique(err) {
			return "", apperr.ErrConflict
		}
		m.logger.Error("Failed to add row", zap.String("entity", m.spec.Entity), zap.Error(err))
		return "", fmt.Errorf("failed to add %s: %w", m.spec.Entity, err)
	}

	m.logger.Info("Row added", zap.String("entity", m.spec.Entity), zap.String("id", id))
	return id, nil
}

// Update applies recognized columns and refreshes updated_date.
func (m *EmbeddedManager) Update(ctx context.Context, id string, partial Payload) error {
	if err := m.spec.validate(partial); err != nil {
		return err
	}
	query, args := buildUpdateQuery(m.spec, id, sanitized(partial))
	affected, err := m.store.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", m.spec.Entity, err)
	}
	if affected == 0 {
		return apperr.NotFound(id)
	}
	return nil
}

// Delete removes the row, via the status column for lifecycle entities and
// physically otherwise.
func (m *EmbeddedManager) Delete(ctx context.Context, id string) error {
	var query string
	var args []any
	if m.spec.SoftDelete {
		query = fmt.Sprintf(
			"UPDATE %s SET %s = 'deleted', updated_date = ? WHERE %s = ? AND %s != 'deleted'",
			m.spec.Table, m.spec.StatusColumn, m.spec.IDColumn, m.spec.StatusColumn,
		)
		args = []any{nowStamp(), id}
	} else {
		query = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", m.spec.Table, m.spec.IDColumn)
		args = []any{id}
	}

	affected, err := m.store.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", m.spec.Entity, err)
	}
	if affected == 0 {
		return apperr.NotFound(id)
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func buildListQuery(spec EntitySpec, filter Payload, limit int) (string, []any) {
	var where []string
	var args []any

	for _, c := range spec.Columns {
		if v, ok := filter[c.Name]; ok {
			where = append(where, c.Name+" = ?")
			args = append(args, v)
		}
	}
	if spec.SoftDelete {
		where = append(where, spec.StatusColumn+" != 'deleted'")
	}

	query := "SELECT * FROM " + spec.Table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + spec.SortColumn
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return query, args
}

func buildInsertQuery(spec EntitySpec, id string, payload Payload) (string, []any) {
	cols := []string{spec.IDColumn}
	args := []any{id}

	for _, c := range spec.Columns {
		if v, ok := payload[c.Name]; ok {
			cols = append(cols, c.Name)
			args = append(args, v)
		}
	}
	if spec.SoftDelete {
		cols = append(cols, spec.StatusColumn)
		args = append(args, "active")
	}
	now := nowStamp()
	cols = append(cols, "created_date", "updated_date")
	args = append(args, now, now)

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		spec.Table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
	return query, args
}

func buildUpdateQuery(spec EntitySpec, id string, partial Payload) (string, []any) {
	var sets []string
	var args []any

	for _, c := range spec.Columns {
		if v, ok := partial[c.Name]; ok {
			sets = append(sets, c.Name+" = ?")
			args = append(args, v)
		}
	}
	sets = append(sets, "updated_date = ?")
	args = append(args, nowStamp())
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		spec.Table, strings.Join(sets, ", "), spec.IDColumn,
	)
	return query, args
}
