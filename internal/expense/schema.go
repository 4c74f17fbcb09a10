package expense

import (
	"context"
	"fmt"
	"sync"

	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

// Timestamps are persisted as fixed-width UTC strings so that lexical
// order matches chronological order on both engines.
const timeLayout = "2006-01-02 15:04:05.000000"

var schemaEmbedded = []string{
	`CREATE TABLE IF NOT EXISTS expense_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		employee_name TEXT,
		expense_title TEXT NOT NULL,
		category TEXT,
		total_amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		expected_date TEXT,
		description TEXT,
		notes TEXT,
		attachment_ref TEXT,
		status TEXT NOT NULL,
		request_date TEXT,
		current_step INTEGER NOT NULL,
		total_steps INTEGER NOT NULL,
		first_approver_id TEXT,
		first_approver_name TEXT,
		second_approver_id TEXT,
		second_approver_name TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expense_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_db_id INTEGER NOT NULL REFERENCES expense_requests(id) ON DELETE CASCADE,
		description TEXT,
		category TEXT,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		vendor TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expense_approvals (
		approval_id TEXT PRIMARY KEY,
		request_db_id INTEGER NOT NULL,
		approval_step INTEGER NOT NULL,
		approver_id TEXT NOT NULL,
		approver_name TEXT,
		approval_order INTEGER NOT NULL,
		result TEXT NOT NULL,
		comments TEXT,
		created_date TEXT NOT NULL,
		decided_date TEXT,
		UNIQUE (request_db_id, approval_step)
	)`,
}

var schemaServer = []string{
	`CREATE TABLE IF NOT EXISTS expense_requests (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		request_id VARCHAR(64) NOT NULL UNIQUE,
		employee_id VARCHAR(32) NOT NULL,
		employee_name VARCHAR(128),
		expense_title VARCHAR(255) NOT NULL,
		category VARCHAR(64),
		total_amount DECIMAL(18,2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		expected_date VARCHAR(32),
		description TEXT,
		notes TEXT,
		attachment_ref VARCHAR(255),
		status VARCHAR(16) NOT NULL,
		request_date VARCHAR(32),
		current_step INT NOT NULL,
		total_steps INT NOT NULL,
		first_approver_id VARCHAR(32),
		first_approver_name VARCHAR(128),
		second_approver_id VARCHAR(32),
		second_approver_name VARCHAR(128),
		created_at VARCHAR(32) NOT NULL,
		updated_at VARCHAR(32) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expense_items (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		request_db_id BIGINT NOT NULL,
		description VARCHAR(255),
		category VARCHAR(64),
		amount DECIMAL(18,2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		vendor VARCHAR(128),
		notes TEXT,
		created_at VARCHAR(32) NOT NULL,
		CONSTRAINT fk_expense_items_request FOREIGN KEY (request_db_id)
			REFERENCES expense_requests(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS expense_approvals (
		approval_id VARCHAR(64) PRIMARY KEY,
		request_db_id BIGINT NOT NULL,
		approval_step INT NOT NULL,
		approver_id VARCHAR(32) NOT NULL,
		approver_name VARCHAR(128),
		approval_order INT NOT NULL,
		result VARCHAR(16) NOT NULL,
		comments TEXT,
		created_date VARCHAR(32) NOT NULL,
		decided_date VARCHAR(32),
		UNIQUE KEY uq_expense_approvals_step (request_db_id, approval_step)
	)`,
}

// Backward-compatible columns added on server deployments that predate
// them. Columns are only ever added, never dropped or renamed.
var serverExtraColumns = []struct {
	Table      string
	Name       string
	Definition string
}{
	{"expense_requests", "attachment_ref", "VARCHAR(255)"},
	{"expense_requests", "second_approver_id", "VARCHAR(32)"},
	{"expense_requests", "second_approver_name", "VARCHAR(128)"},
	{"expense_items", "vendor", "VARCHAR(128)"},
}

var (
	schemaMu   sync.Mutex
	schemaDone = make(map[database.Kind]bool)
)

// ensureSchema creates the expense tables once per process per backend.
func ensureSchema(ctx context.Context, store database.Store) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if schemaDone[store.Kind()] {
		return nil
	}

	stmts := schemaEmbedded
	if store.Kind() == database.KindServer {
		stmts = schemaServer
	}
	for _, stmt := range stmts {
		if _, err := store.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to bootstrap expense schema: %w", err)
		}
	}

	if store.Kind() == database.KindServer {
		for _, col := range serverExtraColumns {
			if err := addColumnIfAbsent(ctx, store, col.Table, col.Name, col.Definition); err != nil {
				return err
			}
		}
	}

	schemaDone[store.Kind()] = true
	return nil
}

func addColumnIfAbsent(ctx context.Context, store database.Store, table, name, definition string) error {
	set, err := store.Query(ctx,
		`SELECT COUNT(*) AS n FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
		table, name)
	if err != nil {
		return fmt.Errorf("failed to inspect columns of %s: %w", table, err)
	}
	if row := set.First(); row != nil {
		switch n := row["n"].(type) {
		case int64:
			if n > 0 {
				return nil
			}
		case string:
			if n != "0" {
				return nil
			}
		}
	}

	_, err = store.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, definition))
	if err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, name, err)
	}
	return nil
}

// resetSchemaTracking clears once-per-process tracking. Test hook only.
func resetSchemaTracking() {
	schemaMu.Lock()
	schemaDone = make(map[database.Kind]bool)
	schemaMu.Unlock()
}
