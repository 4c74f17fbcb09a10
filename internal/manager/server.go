package manager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

// ServerManager is the server-database family of the manager interface.
// Reads go through the executor's result cache and fixed statements use
// the prepared-statement registry; the embedded family has neither.
type ServerManager struct {
	spec   EntitySpec
	store  *database.Server
	logger *zap.Logger
}

// NewServer builds a manager bound to the server backend. The first
// instantiation per process creates the table and adds the documented
// backward-compatible columns when absent; existing columns are never
// dropped or renamed.
func NewServer(spec EntitySpec, store *database.Server, logger *zap.Logger) (*ServerManager, error) {
	err := bootstrapOnce("server:"+spec.Table, func() error {
		ctx := context.Background()
		if _, err := store.Exec(ctx, spec.CreateSQL[database.KindServer]); err != nil {
			return err
		}
		for _, col := range spec.ExtraColumns {
			if err := addColumnIfAbsent(ctx, store, spec.Table, col); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap %s: %w", spec.Table, err)
	}
	return &ServerManager{spec: spec, store: store, logger: logger}, nil
}

func addColumnIfAbsent(ctx context.Context, store *database.Server, table string, col ColumnDef) error {
	row, err := store.Executor().QueryRow(ctx,
		`SELECT COUNT(*) AS n FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
		table, col.Name)
	if err != nil {
		return fmt.Errorf("failed to inspect columns of %s: %w", table, err)
	}
	if row != nil {
		if n, ok := row["n"].(int64); ok && n > 0 {
			return nil
		}
		if n, ok := row["n"].(string); ok && n != "0" {
			return nil
		}
	}

	_, err = store.Exec(ctx, fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN %s %s", table, col.Name, col.Definition))
	if err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, col.Name, err)
	}
	return nil
}

// Entity returns the entity name.
func (m *ServerManager) Entity() string {
	return m.spec.Entity
}

// List returns matching rows through the result cache. The cache TTL
// bounds how stale a listing can be; writers never populate it.
func (m *ServerManager) List(ctx context.Context, filter Payload, limit int) (*database.RowSet, error) {
	var where []string
	var args []any
	for _, c := range m.spec.Columns {
		if v, ok := filter[c.Name]; ok {
			where = append(where, c.Name+" = ?")
			args = append(args, v)
		}
	}
	if m.spec.SoftDelete {
		where = append(where, m.spec.StatusColumn+" != 'deleted'")
	}

	query := "SELECT * FROM " + m.spec.Table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + m.spec.SortColumn
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	set, err := m.store.QueryCached(ctx, query, args...)
	if err != nil {
		m.logger.Error("Failed to list rows", zap.String("entity", m.spec.Entity), zap.Error(err))
		return nil, fmt.Errorf("failed to list %s: %w", m.spec.Entity, err)
	}
	return set, nil
}

// Get returns one row through the named-statement cache.
func (m *ServerManager) Get(ctx context.Context, id string) (database.Row, error) {
	name := m.spec.Entity + ".get"
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", m.spec.Table, m.spec.IDColumn)

	set, err := m.store.Executor().NamedQuery(ctx, name, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", m.spec.Entity, err)
	}
	if set.Len() == 0 {
		return nil, apperr.NotFound(id)
	}
	return set.First(), nil
}

// Add inserts a new row in one transaction. The id allocation reads the
// current maximum inside the same transaction; a duplicate-key race is
// resolved by retrying once with a fresh id.
func (m *ServerManager) Add(ctx context.Context, payload Payload) (string, error) {
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

			cols := []string{m.spec.IDColumn}
			args := []any{id}
			for _, c := range m.spec.Columns {
				if v, ok := payload[c.Name]; ok {
					cols = append(cols, c.Name)
					args = append(args, v)
				}
			}
			if m.spec.SoftDelete {
				cols = append(cols, m.spec.StatusColumn)
				args = append(args, "active")
			}
			now := nowStamp()
			cols = append(cols, "created_date", "updated_date")
			args = append(args, now, now)

			query := fmt.Sprintf(
				"INSERT INTO %s (%s) VALUES (%s)",
				m.spec.Table,
				strings.Join(cols, ", "),
				strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
			)
			_, err = q.ExecContext(ctx, query, args...)
			return err
		})
	}

	err := attempt()
	if err != nil && isMySQLDuplicate(err) {
		err = attempt()
	}
	if err != nil {
		if isMySQLDuplicate(err) {
			return "", apperr.ErrConflict
		}
		m.logger.Error("Failed to add row", zap.String("entity", m.spec.Entity), zap.Error(err))
		return "", fmt.Errorf("failed to add %s: %w", m.spec.Entity, err)
	}

	m.logger.Info("Row added", zap.String("entity", m.spec.Entity), zap.String("id", id))
	return id, nil
}

// Update applies recognized columns and refreshes updated_date. The server
// reports changed rows rather than matched rows, so existence is checked
// inside the transaction instead of from the affected count.
func (m *ServerManager) Update(ctx context.Context, id string, partial Payload) error {
	if err := m.spec.validate(partial); err != nil {
		return err
	}
	partial = sanitized(partial)
	return m.store.WithTransaction(ctx, func(q database.Querier) error {
		if err := m.lockRow(ctx, q, id); err != nil {
			return err
		}

		var sets []string
		var args []any
		for _, c := range m.spec.Columns {
			if v, ok := partial[c.Name]; ok {
				sets = append(sets, c.Name+" = ?")
				args = append(args, v)
			}
		}
		sets = append(sets, "updated_date = ?")
		args = append(args, nowStamp(), id)

		query := fmt.Sprintf(
			"UPDATE %s SET %s WHERE %s = ?",
			m.spec.Table, strings.Join(sets, ", "), m.spec.IDColumn,
		)
		_, err := q.ExecContext(ctx, query, args...)
		return err
	})
}

// Delete removes the row, soft or hard per the entity spec.
func (m *ServerManager) Delete(ctx context.Context, id string) error {
	return m.store.WithTransaction(ctx, func(q database.Querier) error {
		if err := m.lockRow(ctx, q, id); err != nil {
			return err
		}

		var query string
		var args []any
		if m.spec.SoftDelete {
			query = fmt.Sprintf(
				"UPDATE %s SET %s = 'deleted', updated_date = ? WHERE %s = ?",
				m.spec.Table, m.spec.StatusColumn, m.spec.IDColumn,
			)
			args = []any{nowStamp(), id}
		} else {
			query = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", m.spec.Table, m.spec.IDColumn)
			args = []any{id}
		}
		_, err := q.ExecContext(ctx, query, args...)
		return err
	})
}

func (m *ServerManager) lockRow(ctx context.Context, q database.Querier, id string) error {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		m.spec.IDColumn, m.spec.Table, m.spec.IDColumn,
	)
	if m.spec.SoftDelete {
		query += " AND " + m.spec.StatusColumn + " != 'deleted'"
	}
	query += " FOR UPDATE"

	var got string
	err := q.QueryRowContext(ctx, query, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(id)
	}
	return err
}

func isMySQLDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
