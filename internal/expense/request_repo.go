package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

const requestColumns = `id, request_id, employee_id, employee_name, expense_title, category,
	total_amount, currency, expected_date, description, notes, attachment_ref,
	status, request_date, current_step, total_steps,
	first_approver_id, first_approver_name, second_approver_id, second_approver_name,
	created_at, updated_at`

// requestRepo handles expense_requests rows. Every method runs on the
// caller's querier so multi-row operations stay inside one transaction.
type requestRepo struct {
	kind   database.Kind
	logger *zap.Logger
}

func (r requestRepo) insert(ctx context.Context, q database.Querier, req *Request) error {
	query := `
		INSERT INTO expense_requests (
			request_id, employee_id, employee_name, expense_title, category,
			total_amount, currency, expected_date, description, notes, attachment_ref,
			status, request_date, current_step, total_steps,
			first_approver_id, first_approver_name, second_approver_id, second_approver_name,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := q.ExecContext(ctx, query,
		req.RequestID,
		req.EmployeeID,
		req.EmployeeName,
		req.Title,
		req.Category,
		req.TotalAmount.StringFixed(2),
		req.Currency,
		req.ExpectedDate,
		req.Description,
		req.Notes,
		req.AttachmentRef,
		req.Status.String(),
		req.RequestDate,
		req.CurrentStep,
		req.TotalSteps,
		req.FirstApproverID,
		req.FirstApproverName,
		req.SecondApproverID,
		req.SecondApproverName,
		fmtTime(req.CreatedAt),
		fmtTime(req.UpdatedAt),
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	return nil
}

func (r requestRepo) scan(row interface{ Scan(...any) error }) (*Request, error) {
	var req Request
	var total, createdAt, updatedAt string
	var status string

	err := row.Scan(
		&req.ID,
		&req.RequestID,
		&req.EmployeeID,
		&req.EmployeeName,
		&req.Title,
		&req.Category,
		&total,
		&req.Currency,
		&req.ExpectedDate,
		&req.Description,
		&req.Notes,
		&req.AttachmentRef,
		&status,
		&req.RequestDate,
		&req.CurrentStep,
		&req.TotalSteps,
		&req.FirstApproverID,
		&req.FirstApproverName,
		&req.SecondApproverID,
		&req.SecondApproverName,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = Status(status)
	req.TotalAmount, err = parseAmount(total)
	if err != nil {
		return nil, err
	}
	req.CreatedAt = parseTime(createdAt)
	req.UpdatedAt = parseTime(updatedAt)
	return &req, nil
}

// getByRequestID loads one request by its public id. Returns nil when the
// id is unknown.
func (r requestRepo) getByRequestID(ctx context.Context, q database.Querier, requestID string, lock bool) (*Request, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM expense_requests WHERE request_id = ?%s",
		requestColumns, lockSuffix(r.kind, lock),
	)
	req, err := r.scan(q.QueryRowContext(ctx, query, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// getByID loads one request by surrogate id. Returns nil when unknown.
func (r requestRepo) getByID(ctx context.Context, q database.Querier, id int64, lock bool) (*Request, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM expense_requests WHERE id = ?%s",
		requestColumns, lockSuffix(r.kind, lock),
	)
	req, err := r.scan(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// list returns requests ordered oldest first, optionally filtered to one
// requester. It reads through the store's cached-query surface, so an
// identical listing repeated within the cache TTL is served without
// running the statement again.
func (r requestRepo) list(ctx context.Context, store database.Store, employeeID string) ([]*Request, error) {
	query := fmt.Sprintf("SELECT %s FROM expense_requests", requestColumns)
	var args []any
	if employeeID != "" {
		query += " WHERE employee_id = ?"
		args = append(args, employeeID)
	}
	query += " ORDER BY created_at, id"

	set, err := store.QueryCached(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	var out []*Request
	for _, row := range set.Rows {
		req, err := r.fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, nil
}

func (r requestRepo) fromRow(row database.Row) (*Request, error) {
	total, err := parseAmount(rowString(row, "total_amount"))
	if err != nil {
		return nil, err
	}
	return &Request{
		ID:                 rowInt64(row, "id"),
		RequestID:          rowString(row, "request_id"),
		EmployeeID:         rowString(row, "employee_id"),
		EmployeeName:       rowString(row, "employee_name"),
		Title:              rowString(row, "expense_title"),
		Category:           rowString(row, "category"),
		TotalAmount:        total,
		Currency:           rowString(row, "currency"),
		ExpectedDate:       rowString(row, "expected_date"),
		Description:        rowString(row, "description"),
		Notes:              rowString(row, "notes"),
		AttachmentRef:      rowString(row, "attachment_ref"),
		Status:             Status(rowString(row, "status")),
		RequestDate:        rowString(row, "request_date"),
		CurrentStep:        rowInt(row, "current_step"),
		TotalSteps:         rowInt(row, "total_steps"),
		FirstApproverID:    rowString(row, "first_approver_id"),
		FirstApproverName:  rowString(row, "first_approver_name"),
		SecondApproverID:   rowString(row, "second_approver_id"),
		SecondApproverName: rowString(row, "second_approver_name"),
		CreatedAt:          rowTime(row, "created_at"),
		UpdatedAt:          rowTime(row, "updated_at"),
	}, nil
}

// setStatus writes the reconciled status and step and refreshes
// updated_at.
func (r requestRepo) setStatus(ctx context.Context, q database.Querier, id int64, status Status, currentStep int) error {
	query := `UPDATE expense_requests SET status = ?, current_step = ?, updated_at = ? WHERE id = ?`
	_, err := q.ExecContext(ctx, query, status.String(), currentStep, fmtTime(nowUTC()), id)
	if err != nil {
		r.logger.Error("Failed to update request status",
			zap.Int64("id", id), zap.String("status", status.String()), zap.Error(err))
		return fmt.Errorf("failed to update request status: %w", err)
	}
	return nil
}

// delete removes the request row; items cascade with it.
func (r requestRepo) delete(ctx context.Context, q database.Querier, id int64) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM expense_requests WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	return nil
}
