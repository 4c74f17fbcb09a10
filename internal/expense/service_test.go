package expense

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	resetSchemaTracking()

	store, err := database.OpenEmbedded(database.EmbeddedConfig{
		Path: filepath.Join(t.TempDir(), "expense_test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := NewService(store, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func testInput() RequestInput {
	return RequestInput{
		EmployeeID:   "2508001",
		EmployeeName: "Kim Minsoo",
		Title:        "Client visit travel",
		Category:     "travel",
		Currency:     "USD",
	}
}

func testItems() []ItemInput {
	return []ItemInput{
		{Description: "Flight", Amount: decimal.RequireFromString("100.25")},
		{Description: "Hotel", Amount: decimal.RequireFromString("50.50"), Currency: "USD"},
	}
}

func testApprovers() []Approver {
	return []Approver{
		{ID: "mgr-1", Name: "First Manager"},
		{ID: "dir-1", Name: "Finance Director"},
	}
}

func createRequest(t *testing.T, svc *Service) string {
	t.Helper()
	id, err := svc.Create(context.Background(), testInput(), testItems(), testApprovers())
	require.NoError(t, err)
	return id
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	requestID := createRequest(t, svc)
	assert.Regexp(t, `^EXP-\d{8}-[0-9A-F]{8}$`, requestID)

	detail, err := svc.Get(ctx, requestID)
	require.NoError(t, err)

	req := detail.Request
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, 1, req.CurrentStep)
	assert.Equal(t, 2, req.TotalSteps)
	assert.Equal(t, "mgr-1", req.FirstApproverID)
	assert.Equal(t, "dir-1", req.SecondApproverID)
	assert.True(t, req.TotalAmount.Equal(decimal.RequireFromString("150.75")),
		"total must be the exact decimal sum, got %s", req.TotalAmount)

	require.Len(t, detail.Items, 2)
	assert.Equal(t, "Flight", detail.Items[0].Description)
	assert.Equal(t, "Hotel", detail.Items[1].Description)
	assert.Equal(t, "USD", detail.Items[0].Currency, "item currency defaults to the request currency")

	require.Len(t, detail.Approvals, 2)
	for i, approval := range detail.Approvals {
		assert.Equal(t, i+1, approval.Step)
		assert.Equal(t, ResultPending, approval.Result)
		assert.Nil(t, approval.DecidedAt)
	}
	assert.Equal(t, newApprovalID(requestID, 1), detail.Approvals[0].ApprovalID)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		input     RequestInput
		items     []ItemInput
		approvers []Approver
	}{
		{"missing employee", RequestInput{Title: "t", Currency: "USD"}, testItems(), testApprovers()},
		{"missing title", RequestInput{EmployeeID: "e", Currency: "USD"}, testItems(), testApprovers()},
		{"bad currency", RequestInput{EmployeeID: "e", Title: "t", Currency: "dollars"}, testItems(), testApprovers()},
		{"no items", testInput(), nil, testApprovers()},
		{"no approvers", testInput(), testItems(), nil},
		{"blank approver id", testInput(), testItems(), []Approver{{Name: "x"}}},
		{"zero amount", testInput(), []ItemInput{{Amount: decimal.Zero}}, testApprovers()},
		{"negative amount", testInput(), []ItemInput{{Amount: decimal.RequireFromString("-5")}}, testApprovers()},
		{"sub-cent amount", testInput(), []ItemInput{{Amount: decimal.RequireFromString("1.005")}}, testApprovers()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input, tt.items, tt.approvers)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestTwoStepApproval(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	requestID := createRequest(t, svc)

	// Step two may not act before step one.
	pending, err := svc.PendingFor(ctx, "dir-1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = svc.Decide(ctx, newApprovalID(requestID, 2), "dir-1", DecisionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrOutOfOrder)

	// First step approves; request stays pending and advances.
	pending, err = svc.PendingFor(ctx, "mgr-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, requestID, pending[0].RequestID)

	require.NoError(t, svc.Decide(ctx, newApprovalID(requestID, 1), "mgr-1", DecisionApprove, "ok"))

	detail, err := svc.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, detail.Request.Status)
	assert.Equal(t, 2, detail.Request.CurrentStep)
	assert.Equal(t, ResultApproved, detail.Approvals[0].Result)
	require.NotNil(t, detail.Approvals[0].DecidedAt)

	// Now step two shows up as pending and can approve.
	pending, err = svc.PendingFor(ctx, "dir-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, svc.Decide(ctx, newApprovalID(requestID, 2), "dir-1", DecisionApprove, ""))

	detail, err = svc.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, detail.Request.Status)
}

func TestRejectionCancelsRemainingSteps(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	requestID := createRequest(t, svc)

	require.NoError(t, svc.Decide(ctx, newApprovalID(requestID, 1), "mgr-1", DecisionReject, "missing receipts"))

	detail, err := svc.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, detail.Request.Status)
	assert.Equal(t, 1, detail.Request.CurrentStep)
	assert.Equal(t, ResultRejected, detail.Approvals[0].Result)
	assert.Equal(t, "missing receipts", detail.Approvals[0].Comments)
	assert.Equal(t, ResultCancelled, detail.Approvals[1].Result)

	// The second approver has nothing left to act on.
	pending, err := svc.PendingFor(ctx, "dir-1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = svc.Decide(ctx, newApprovalID(requestID, 2), "dir-1", DecisionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrAlreadyDecided)
}

func TestDecideErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	requestID := createRequest(t, svc)
	step1 := newApprovalID(requestID, 1)

	err := svc.Decide(ctx, step1, "mgr-1", Decision("maybe"), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = svc.Decide(ctx, "APP-missing-1", "mgr-1", DecisionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = svc.Decide(ctx, step1, "someone-else", DecisionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, svc.Decide(ctx, step1, "mgr-1", DecisionApprove, ""))
	err = svc.Decide(ctx, step1, "mgr-1", DecisionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrAlreadyDecided)
}

func TestCancel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	requestID := createRequest(t, svc)

	err := svc.Cancel(ctx, requestID, "intruder")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, svc.Cancel(ctx, requestID, "2508001"))

	detail, err := svc.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, detail.Request.Status)
	assert.Equal(t, ResultCancelled, detail.Approvals[0].Result)
	assert.Equal(t, ResultCancelled, detail.Approvals[1].Result)

	// Cancelled twice is an error, and the chain stays closed.
	err = svc.Cancel(ctx, requestID, "2508001")
	assert.ErrorIs(t, err, apperr.ErrAlreadyDecided)

	err = svc.Decide(ctx, newApprovalID(requestID, 1), "mgr-1", DecisionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrAlreadyDecided)
}

func TestCancelAfterDecisionFails(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	requestID := createRequest(t, svc)

	require.NoError(t, svc.Decide(ctx, newApprovalID(requestID, 1), "mgr-1", DecisionApprove, ""))

	err := svc.Cancel(ctx, requestID, "2508001")
	assert.ErrorIs(t, err, apperr.ErrAlreadyDecided)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	requestID := createRequest(t, svc)

	// A live request with an open chain cannot be removed.
	err := svc.Delete(ctx, requestID, "2508001")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, svc.Cancel(ctx, requestID, "2508001"))
	require.NoError(t, svc.Delete(ctx, requestID, "2508001"))

	_, err = svc.Get(ctx, requestID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteDecidedRequestFails(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	requestID := createRequest(t, svc)

	require.NoError(t, svc.Decide(ctx, newApprovalID(requestID, 1), "mgr-1", DecisionReject, ""))

	err := svc.Delete(ctx, requestID, "2508001")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first := createRequest(t, svc)
	second := createRequest(t, svc)

	other := testInput()
	other.EmployeeID = "2508002"
	_, err := svc.Create(ctx, other, testItems(), testApprovers())
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, first, all[0].RequestID, "oldest first")
	assert.Equal(t, second, all[1].RequestID)

	mine, err := svc.List(ctx, "2508001")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

// countingStore wraps a backend and counts reads served through the
// cached-query surface.
type countingStore struct {
	database.Store
	cachedReads int
}

func (s *countingStore) QueryCached(ctx context.Context, query string, args ...any) (*database.RowSet, error) {
	s.cachedReads++
	return s.Store.QueryCached(ctx, query, args...)
}

func TestListUsesResultCacheSurface(t *testing.T) {
	resetSchemaTracking()
	embedded, err := database.OpenEmbedded(database.EmbeddedConfig{
		Path: filepath.Join(t.TempDir(), "expense_test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { embedded.Close() })

	store := &countingStore{Store: embedded}
	svc, err := NewService(store, zap.NewNop())
	require.NoError(t, err)
	createRequest(t, svc)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		out, err := svc.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, out, 1)
	}
	assert.Equal(t, 2, store.cachedReads,
		"listing reads go through the backend's result cache, not a transaction")
}

func TestConcurrentDecideSingleWinner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for round := 0; round < 30; round++ {
		requestID := createRequest(t, svc)
		step1 := newApprovalID(requestID, 1)

		errs := make(chan error, 2)
		start := make(chan struct{})
		for i := 0; i < 2; i++ {
			go func() {
				<-start
				errs <- svc.Decide(ctx, step1, "mgr-1", DecisionApprove, "")
			}()
		}
		close(start)

		var wins int
		for i := 0; i < 2; i++ {
			if err := <-errs; err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, apperr.ErrAlreadyDecided)
			}
		}
		assert.Equal(t, 1, wins, "exactly one concurrent decision lands")

		detail, err := svc.Get(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, ResultApproved, detail.Approvals[0].Result)
		assert.Equal(t, 2, detail.Request.CurrentStep,
			"the losing decision advances nothing twice")
	}
}

func TestResolve(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	requestID := createRequest(t, svc)
	step1 := newApprovalID(requestID, 1)

	req, approval, err := svc.Resolve(ctx, step1, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, requestID, req.RequestID)
	assert.Equal(t, 1, approval.Step)

	_, _, err = svc.Resolve(ctx, step1, "someone-else")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, _, err = svc.Resolve(ctx, newApprovalID(requestID, 2), "dir-1")
	assert.ErrorIs(t, err, apperr.ErrOutOfOrder)
}
