package expense

import (
	"context"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

// PendingFor lists the approval rows the approver may currently decide:
// pending rows at the parent's current step, ordered by request creation
// time, oldest first.
func (s *Service) PendingFor(ctx context.Context, approverID string) ([]*PendingApproval, error) {
	return s.approvals.pendingFor(ctx, s.store, approverID)
}

// Resolve maps an approval id plus acting approver to the request and row
// the decision would target, without writing anything. It reports the same
// error kinds Decide would.
func (s *Service) Resolve(ctx context.Context, approvalID, approverID string) (*Request, *Approval, error) {
	var req *Request
	var approval *Approval

	err := s.store.WithTransaction(ctx, func(q database.Querier) error {
		var err error
		approval, err = s.approvals.getByApprovalID(ctx, q, approvalID, false)
		if err != nil {
			return err
		}
		if approval == nil {
			return apperr.NotFound(approvalID)
		}

		req, err = s.requests.getByID(ctx, q, approval.RequestDBID, false)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.NotFound(approvalID)
		}

		if approval.ApproverID != approverID {
			return apperr.ErrForbidden
		}
		if approval.Result.IsTerminal() || req.Status.IsTerminal() {
			return apperr.ErrAlreadyDecided
		}
		if approval.Step != req.CurrentStep {
			return apperr.ErrOutOfOrder
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, approval, nil
}
