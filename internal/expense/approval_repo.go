package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

const approvalColumns = `approval_id, request_db_id, approval_step, approver_id, approver_name,
	approval_order, result, comments, created_date, decided_date`

// approvalRepo handles expense_approvals rows.
type approvalRepo struct {
	kind   database.Kind
	logger *zap.Logger
}

// insertAll creates the full approval chain for a request, one pending row
// per step.
func (r approvalRepo) insertAll(ctx context.Context, q database.Querier, approvals []*Approval) error {
	query := `
		INSERT INTO expense_approvals (
			approval_id, request_db_id, approval_step, approver_id, approver_name,
			approval_order, result, comments, created_date, decided_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	for _, a := range approvals {
		_, err := q.ExecContext(ctx, query,
			a.ApprovalID,
			a.RequestDBID,
			a.Step,
			a.ApproverID,
			a.ApproverName,
			a.Step,
			a.Result.String(),
			a.Comments,
			fmtTime(a.CreatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to insert approval", zap.String("approval_id", a.ApprovalID), zap.Error(err))
			return fmt.Errorf("failed to insert approval: %w", err)
		}
	}
	return nil
}

func (r approvalRepo) scan(row interface{ Scan(...any) error }) (*Approval, error) {
	var a Approval
	var order int
	var result, createdAt string
	var comments sql.NullString
	var decidedAt sql.NullString

	err := row.Scan(
		&a.ApprovalID,
		&a.RequestDBID,
		&a.Step,
		&a.ApproverID,
		&a.ApproverName,
		&order,
		&result,
		&comments,
		&createdAt,
		&decidedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Result = Result(result)
	a.Comments = comments.String
	a.CreatedAt = parseTime(createdAt)
	a.DecidedAt = parseNullTime(decidedAt)
	return &a, nil
}

// getByApprovalID loads one approval row, locked on the server backend
// when lock is set. Returns nil when unknown.
func (r approvalRepo) getByApprovalID(ctx context.Context, q database.Querier, approvalID string, lock bool) (*Approval, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM expense_approvals WHERE approval_id = ?%s",
		approvalColumns, lockSuffix(r.kind, lock),
	)
	a, err := r.scan(q.QueryRowContext(ctx, query, approvalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval", zap.String("approval_id", approvalID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return a, nil
}

// listByRequest returns the parent's approval chain ordered by step.
func (r approvalRepo) listByRequest(ctx context.Context, q database.Querier, requestDBID int64) ([]*Approval, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM expense_approvals WHERE request_db_id = ? ORDER BY approval_step",
		approvalColumns,
	)
	rows, err := q.QueryContext(ctx, query, requestDBID)
	if err != nil {
		r.logger.Error("Failed to list approvals", zap.Int64("request_db_id", requestDBID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var out []*Approval
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// decide writes a terminal result onto a still-pending row. The result
// guard in the WHERE clause makes the write lost-update safe: a row that
// already left pending reports zero affected rows.
func (r approvalRepo) decide(ctx context.Context, q database.Querier, approvalID string, result Result, comments string, decidedAt time.Time) (bool, error) {
	query := `
		UPDATE expense_approvals
		SET result = ?, comments = ?, decided_date = ?
		WHERE approval_id = ? AND result = 'pending'
	`
	res, err := q.ExecContext(ctx, query, result.String(), comments, fmtTime(decidedAt), approvalID)
	if err != nil {
		r.logger.Error("Failed to decide approval", zap.String("approval_id", approvalID), zap.Error(err))
		return false, fmt.Errorf("failed to decide approval: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// cancelPending marks every still-pending row of the parent as cancelled
// so approvers can no longer act on them.
func (r approvalRepo) cancelPending(ctx context.Context, q database.Querier, requestDBID int64) error {
	query := `
		UPDATE expense_approvals
		SET result = 'cancelled'
		WHERE request_db_id = ? AND result = 'pending'
	`
	if _, err := q.ExecContext(ctx, query, requestDBID); err != nil {
		r.logger.Error("Failed to cancel approvals", zap.Int64("request_db_id", requestDBID), zap.Error(err))
		return fmt.Errorf("failed to cancel approvals: %w", err)
	}
	return nil
}

// countDecided returns how many of the parent's rows carry an approver
// decision.
func (r approvalRepo) countDecided(ctx context.Context, q database.Querier, requestDBID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM expense_approvals
		WHERE request_db_id = ? AND result IN ('approved', 'rejected')
	`
	var n int
	if err := q.QueryRowContext(ctx, query, requestDBID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count decided approvals: %w", err)
	}
	return n, nil
}

// countByRequest returns how many approval rows the parent has at all.
func (r approvalRepo) countByRequest(ctx context.Context, q database.Querier, requestDBID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM expense_approvals WHERE request_db_id = ?", requestDBID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return n, nil
}

// deleteByRequest removes the parent's approval chain.
func (r approvalRepo) deleteByRequest(ctx context.Context, q database.Querier, requestDBID int64) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM expense_approvals WHERE request_db_id = ?", requestDBID); err != nil {
		return fmt.Errorf("failed to delete approvals: %w", err)
	}
	return nil
}

// pendingFor returns the rows the approver may act on right now: pending
// rows whose step is the parent's current step, oldest request first. The
// read runs directly on the store so execution is observed like any other
// statement; a decision re-validates everything under its own transaction.
func (r approvalRepo) pendingFor(ctx context.Context, store database.Store, approverID string) ([]*PendingApproval, error) {
	query := `
		SELECT a.approval_id, a.request_db_id, a.approval_step, a.approver_id, a.approver_name,
			a.approval_order, a.result, a.comments, a.created_date, a.decided_date,
			r.request_id, r.expense_title, r.employee_id, r.employee_name,
			r.total_amount, r.currency, r.created_at
		FROM expense_approvals a
		JOIN expense_requests r ON r.id = a.request_db_id
		WHERE a.approver_id = ?
			AND a.result = 'pending'
			AND r.status = 'pending'
			AND a.approval_step = r.current_step
		ORDER BY r.created_at, r.id
	`
	set, err := store.Query(ctx, query, approverID)
	if err != nil {
		r.logger.Error("Failed to list pending approvals", zap.String("approver_id", approverID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}

	var out []*PendingApproval
	for _, row := range set.Rows {
		total, err := parseAmount(rowString(row, "total_amount"))
		if err != nil {
			return nil, err
		}
		out = append(out, &PendingApproval{
			Approval: &Approval{
				ApprovalID:   rowString(row, "approval_id"),
				RequestDBID:  rowInt64(row, "request_db_id"),
				Step:         rowInt(row, "approval_step"),
				ApproverID:   rowString(row, "approver_id"),
				ApproverName: rowString(row, "approver_name"),
				Result:       Result(rowString(row, "result")),
				Comments:     rowString(row, "comments"),
				CreatedAt:    rowTime(row, "created_date"),
				DecidedAt:    rowTimePtr(row, "decided_date"),
			},
			RequestID:    rowString(row, "request_id"),
			Title:        rowString(row, "expense_title"),
			EmployeeID:   rowString(row, "employee_id"),
			EmployeeName: rowString(row, "employee_name"),
			TotalAmount:  total,
			Currency:     rowString(row, "currency"),
			RequestedAt:  rowTime(row, "created_at"),
		})
	}
	return out, nil
}
