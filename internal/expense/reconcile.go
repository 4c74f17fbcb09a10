package expense

import (
	"context"

	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

// reconcile recomputes the parent status from its approval rows. It runs
// on the same transaction as the decision that triggered it, so it never
// observes a partial write.
func (s *Service) reconcile(ctx context.Context, q database.Querier, req *Request) error {
	chain, err := s.approvals.listByRequest(ctx, q, req.ID)
	if err != nil {
		return err
	}

	rejectedStep := 0
	allApproved := true
	minPending := 0
	for _, a := range chain {
		switch a.Result {
		case ResultRejected:
			if rejectedStep == 0 || a.Step < rejectedStep {
				rejectedStep = a.Step
			}
			allApproved = false
		case ResultPending:
			if minPending == 0 || a.Step < minPending {
				minPending = a.Step
			}
			allApproved = false
		case ResultApproved:
		default:
			allApproved = false
		}
	}

	switch {
	case rejectedStep > 0:
		if err := s.requests.setStatus(ctx, q, req.ID, StatusRejected, rejectedStep); err != nil {
			return err
		}
		// Later steps never get their turn; close their rows out.
		return s.approvals.cancelPending(ctx, q, req.ID)

	case allApproved:
		return s.requests.setStatus(ctx, q, req.ID, StatusApproved, req.TotalSteps)

	default:
		return s.requests.setStatus(ctx, q, req.ID, StatusPending, minPending)
	}
}
