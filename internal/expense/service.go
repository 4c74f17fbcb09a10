package expense

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/utils"
)

// Service is the expense request core. It owns no connections; every
// multi-row operation runs inside one store transaction.
type Service struct {
	store     database.Store
	logger    *zap.Logger
	requests  requestRepo
	items     itemRepo
	approvals approvalRepo
}

// NewService wires the expense core to a backend, bootstrapping the
// expense tables on the first instantiation per process.
func NewService(store database.Store, logger *zap.Logger) (*Service, error) {
	if err := ensureSchema(context.Background(), store); err != nil {
		return nil, err
	}
	kind := store.Kind()
	return &Service{
		store:     store,
		logger:    logger,
		requests:  requestRepo{kind: kind, logger: logger},
		items:     itemRepo{kind: kind, logger: logger},
		approvals: approvalRepo{kind: kind, logger: logger},
	}, nil
}

// newRequestID derives a public id from a UUID fragment, which keeps
// allocation collision-safe without a locking max-id read.
func newRequestID(now time.Time) string {
	return fmt.Sprintf("EXP-%s-%s", now.Format("20060102"),
		strings.ToUpper(uuid.NewString()[:8]))
}

// newApprovalID is stable per (request, step).
func newApprovalID(requestID string, step int) string {
	return fmt.Sprintf("APP-%s-%d", requestID, step)
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create inserts the request header, its items and one pending approval
// row per approver, all in a single transaction. The total amount is the
// exact decimal sum of the item amounts. A duplicate request id is retried
// once with a fresh id.
func (s *Service) Create(ctx context.Context, input RequestInput, items []ItemInput, approvers []Approver) (string, error) {
	switch {
	case input.EmployeeID == "":
		return "", apperr.Validation("employee_id")
	case input.Title == "":
		return "", apperr.Validation("title")
	case utils.ValidateCurrency(input.Currency) != nil:
		return "", apperr.Validation("currency")
	case len(items) == 0:
		return "", apperr.Validation("items")
	case len(approvers) == 0:
		return "", apperr.Validation("approvers")
	}
	for _, ap := range approvers {
		if ap.ID == "" {
			return "", apperr.Validation("approvers")
		}
	}

	total := decimal.Zero
	for _, it := range items {
		// Amounts carry at most two decimal digits of scale.
		if !it.Amount.IsPositive() || it.Amount.Exponent() < -2 {
			return "", apperr.Validation("amount")
		}
		total = total.Add(it.Amount)
	}

	now := nowUTC()
	requestDate := input.RequestDate
	if requestDate == "" {
		requestDate = now.Format("2006-01-02")
	}

	var requestID string
	attempt := func() error {
		requestID = newRequestID(now)
		return s.store.WithTransaction(ctx, func(q database.Querier) error {
			req := &Request{
				RequestID:         requestID,
				EmployeeID:        input.EmployeeID,
				EmployeeName:      input.EmployeeName,
				Title:             input.Title,
				Category:          input.Category,
				TotalAmount:       total,
				Currency:          input.Currency,
				ExpectedDate:      input.ExpectedDate,
				Description:       input.Description,
				Notes:             input.Notes,
				AttachmentRef:     input.AttachmentRef,
				Status:            StatusPending,
				RequestDate:       requestDate,
				CurrentStep:       1,
				TotalSteps:        len(approvers),
				FirstApproverID:   approvers[0].ID,
				FirstApproverName: approvers[0].Name,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if len(approvers) > 1 {
				req.SecondApproverID = approvers[1].ID
				req.SecondApproverName = approvers[1].Name
			}
			if err := s.requests.insert(ctx, q, req); err != nil {
				return err
			}

			rows := make([]*Item, len(items))
			for i, it := range items {
				currency := it.Currency
				if currency == "" {
					currency = input.Currency
				}
				rows[i] = &Item{
					Description: it.Description,
					Category:    it.Category,
					Amount:      it.Amount,
					Currency:    currency,
					Vendor:      it.Vendor,
					Notes:       it.Notes,
					CreatedAt:   now,
				}
			}
			if err := s.items.insertAll(ctx, q, req.ID, rows); err != nil {
				return err
			}

			chain := make([]*Approval, len(approvers))
			for i, ap := range approvers {
				step := i + 1
				chain[i] = &Approval{
					ApprovalID:   newApprovalID(requestID, step),
					RequestDBID:  req.ID,
					Step:         step,
					ApproverID:   ap.ID,
					ApproverName: ap.Name,
					Result:       ResultPending,
					CreatedAt:    now,
				}
			}
			return s.approvals.insertAll(ctx, q, chain)
		})
	}

	err := attempt()
	if err != nil && isDuplicateKey(err) {
		err = attempt()
	}
	if err != nil {
		if isDuplicateKey(err) {
			return "", apperr.ErrConflict
		}
		s.logger.Error("Failed to create expense request", zap.Error(err))
		return "", err
	}

	s.logger.Info("Expense request created",
		zap.String("request_id", requestID),
		zap.String("employee_id", input.EmployeeID),
		zap.Int("items", len(items)),
		zap.Int("total_steps", len(approvers)))
	return requestID, nil
}

// Get returns the request header with its items and approval chain, read
// under one transaction so the three reads see a consistent snapshot.
func (s *Service) Get(ctx context.Context, requestID string) (*RequestDetail, error) {
	var detail *RequestDetail
	err := s.store.WithTransaction(ctx, func(q database.Querier) error {
		req, err := s.requests.getByRequestID(ctx, q, requestID, false)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.NotFound(requestID)
		}

		items, err := s.items.listByRequest(ctx, q, req.ID)
		if err != nil {
			return err
		}
		approvals, err := s.approvals.listByRequest(ctx, q, req.ID)
		if err != nil {
			return err
		}
		detail = &RequestDetail{Request: req, Items: items, Approvals: approvals}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns request headers, optionally filtered to one requester,
// oldest first. The read goes through the backend's result cache, so two
// identical listings inside the cache TTL execute the statement once.
func (s *Service) List(ctx context.Context, employeeID string) ([]*Request, error) {
	return s.requests.list(ctx, s.store, employeeID)
}

// Decide records one approver's decision and reconciles the parent, all in
// one transaction. Concurrent decisions on the same request serialize on
// the locked re-read; the loser observes the winner's write and fails.
func (s *Service) Decide(ctx context.Context, approvalID, approverID string, decision Decision, comments string) error {
	if !decision.IsValid() {
		return apperr.Validation("decision")
	}

	err := s.store.WithTransaction(ctx, func(q database.Querier) error {
		approval, err := s.approvals.getByApprovalID(ctx, q, approvalID, true)
		if err != nil {
			return err
		}
		if approval == nil {
			return apperr.NotFound(approvalID)
		}

		req, err := s.requests.getByID(ctx, q, approval.RequestDBID, true)
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

		decided, err := s.approvals.decide(ctx, q, approvalID, decision.Result(), comments, nowUTC())
		if err != nil {
			return err
		}
		if !decided {
			return apperr.ErrAlreadyDecided
		}
		return s.reconcile(ctx, q, req)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Approval decided",
		zap.String("approval_id", approvalID),
		zap.String("approver_id", approverID),
		zap.String("decision", string(decision)))
	return nil
}

// Cancel transitions a pending, undecided request to cancelled and marks
// its pending approval rows so approvers can no longer act.
func (s *Service) Cancel(ctx context.Context, requestID, requesterID string) error {
	err := s.store.WithTransaction(ctx, func(q database.Querier) error {
		req, err := s.requests.getByRequestID(ctx, q, requestID, true)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.NotFound(requestID)
		}
		if req.EmployeeID != requesterID {
			return apperr.ErrForbidden
		}
		if req.Status != StatusPending {
			return apperr.ErrAlreadyDecided
		}
		decided, err := s.approvals.countDecided(ctx, q, req.ID)
		if err != nil {
			return err
		}
		if decided > 0 {
			return apperr.ErrAlreadyDecided
		}

		if err := s.requests.setStatus(ctx, q, req.ID, StatusCancelled, req.CurrentStep); err != nil {
			return err
		}
		return s.approvals.cancelPending(ctx, q, req.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Expense request cancelled", zap.String("request_id", requestID))
	return nil
}

// Delete hard-deletes a request. Allowed only from cancelled, or before
// any approval rows exist; a request with decided approvals is never
// removed.
func (s *Service) Delete(ctx context.Context, requestID, requesterID string) error {
	return s.store.WithTransaction(ctx, func(q database.Querier) error {
		req, err := s.requests.getByRequestID(ctx, q, requestID, true)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.NotFound(requestID)
		}
		if req.EmployeeID != requesterID {
			return apperr.ErrForbidden
		}

		total, err := s.approvals.countByRequest(ctx, q, req.ID)
		if err != nil {
			return err
		}
		if total > 0 {
			decided, err := s.approvals.countDecided(ctx, q, req.ID)
			if err != nil {
				return err
			}
			if req.Status != StatusCancelled || decided > 0 {
				return apperr.ErrForbidden
			}
		}

		if err := s.approvals.deleteByRequest(ctx, q, req.ID); err != nil {
			return err
		}
		// Items cascade with the request row.
		return s.requests.delete(ctx, q, req.ID)
	})
}
