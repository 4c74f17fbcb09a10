package expense

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

// itemRepo handles expense_items rows.
type itemRepo struct {
	kind   database.Kind
	logger *zap.Logger
}

// insertAll writes every item under the parent's surrogate id. Runs on the
// caller's transaction; insertion order is preserved by the surrogate key.
func (r itemRepo) insertAll(ctx context.Context, q database.Querier, requestDBID int64, items []*Item) error {
	query := `
		INSERT INTO expense_items (
			request_db_id, description, category, amount, currency, vendor, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, item := range items {
		item.RequestDBID = requestDBID
		res, err := q.ExecContext(ctx, query,
			requestDBID,
			item.Description,
			item.Category,
			item.Amount.StringFixed(2),
			item.Currency,
			item.Vendor,
			item.Notes,
			fmtTime(item.CreatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to insert item", zap.Int64("request_db_id", requestDBID), zap.Error(err))
			return fmt.Errorf("failed to insert item: %w", err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

// listByRequest returns the parent's items in insertion order.
func (r itemRepo) listByRequest(ctx context.Context, q database.Querier, requestDBID int64) ([]*Item, error) {
	query := `
		SELECT id, request_db_id, description, category, amount, currency, vendor, notes, created_at
		FROM expense_items
		WHERE request_db_id = ?
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, requestDBID)
	if err != nil {
		r.logger.Error("Failed to list items", zap.Int64("request_db_id", requestDBID), zap.Error(err))
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		var item Item
		var amount, createdAt string
		err := rows.Scan(
			&item.ID,
			&item.RequestDBID,
			&item.Description,
			&item.Category,
			&amount,
			&item.Currency,
			&item.Vendor,
			&item.Notes,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if item.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		item.CreatedAt = parseTime(createdAt)
		out = append(out, &item)
	}
	return out, rows.Err()
}
