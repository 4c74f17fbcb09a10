package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/apperr"
	"github.com/Dajungeks/yumold-erp-system-sub000/internal/backend"
	"github.com/Dajungeks/yumold-erp-system-sub000/internal/expense"
	"github.com/Dajungeks/yumold-erp-system-sub000/internal/manager"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	selector *backend.Selector
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(selector *backend.Selector, logger *zap.Logger) *Handlers {
	return &Handlers{selector: selector, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, code int, data any) {
	c.JSON(code, Response{Success: true, Data: data})
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), Response{Success: false, Error: err.Error()})
}

// statusFor maps core error kinds to HTTP status codes. The core never
// formats user-facing strings; presentation happens here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrAlreadyDecided),
		errors.Is(err, apperr.ErrOutOfOrder):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrBackendUnavailable),
		errors.Is(err, database.ErrPoolExhausted),
		errors.Is(err, database.ErrPoolClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Health responds to liveness checks.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "erp-core",
		"time":    time.Now().Format(time.RFC3339),
	})
}

type itemPayload struct {
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Vendor      string          `json:"vendor"`
	Notes       string          `json:"notes"`
}

type approverPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createRequestPayload struct {
	EmployeeID    string            `json:"employee_id"`
	EmployeeName  string            `json:"employee_name"`
	Title         string            `json:"title"`
	Category      string            `json:"category"`
	Currency      string            `json:"currency"`
	ExpectedDate  string            `json:"expected_date"`
	Description   string            `json:"description"`
	Notes         string            `json:"notes"`
	AttachmentRef string            `json:"attachment_ref"`
	RequestDate   string            `json:"request_date"`
	Items         []itemPayload     `json:"items"`
	Approvers     []approverPayload `json:"approvers"`
}

// CreateRequest creates an expense request with items and approval chain.
func (h *Handlers) CreateRequest(c *gin.Context) {
	var payload createRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, apperr.Validation("body"))
		return
	}

	svc, err := h.selector.Expense()
	if err != nil {
		fail(c, err)
		return
	}

	items := make([]expense.ItemInput, len(payload.Items))
	for i, it := range payload.Items {
		items[i] = expense.ItemInput{
			Description: it.Description,
			Category:    it.Category,
			Amount:      it.Amount,
			Currency:    it.Currency,
			Vendor:      it.Vendor,
			Notes:       it.Notes,
		}
	}
	approvers := make([]expense.Approver, len(payload.Approvers))
	for i, ap := range payload.Approvers {
		approvers[i] = expense.Approver{ID: ap.ID, Name: ap.Name}
	}

	requestID, err := svc.Create(c.Request.Context(), expense.RequestInput{
		EmployeeID:    payload.EmployeeID,
		EmployeeName:  payload.EmployeeName,
		Title:         payload.Title,
		Category:      payload.Category,
		Currency:      payload.Currency,
		ExpectedDate:  payload.ExpectedDate,
		Description:   payload.Description,
		Notes:         payload.Notes,
		AttachmentRef: payload.AttachmentRef,
		RequestDate:   payload.RequestDate,
	}, items, approvers)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"request_id": requestID})
}

// ListRequests lists expense requests, optionally one requester's.
func (h *Handlers) ListRequests(c *gin.Context) {
	svc, err := h.selector.Expense()
	if err != nil {
		fail(c, err)
		return
	}
	requests, err := svc.List(c.Request.Context(), c.Query("requester_id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, requests)
}

// GetRequest returns one request with items and approvals.
func (h *Handlers) GetRequest(c *gin.Context) {
	svc, err := h.selector.Expense()
	if err != nil {
		fail(c, err)
		return
	}
	detail, err := svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, detail)
}

type requesterPayload struct {
	RequesterID string `json:"requester_id"`
}

// CancelRequest cancels a still-pending request.
func (h *Handlers) CancelRequest(c *gin.Context) {
	var payload requesterPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, apperr.Validation("requester_id"))
		return
	}
	svc, err := h.selector.Expense()
	if err != nil {
		fail(c, err)
		return
	}
	if err := svc.Cancel(c.Request.Context(), c.Param("id"), payload.RequesterID); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"request_id": c.Param("id"), "status": "cancelled"})
}

// DeleteRequest hard-deletes a cancelled or approval-free request.
func (h *Handlers) DeleteRequest(c *gin.Context) {
	svc, err := h.selector.Expense()
	if err != nil {
		fail(c, err)
		return
	}
	if err := svc.Delete(c.Request.Context(), c.Param("id"), c.Query("requester_id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"request_id": c.Param("id"), "deleted": true})
}

type decidePayload struct {
	ApproverID string `json:"approver_id"`
	Decision   string `json:"decision"`
	Comments   string `json:"comments"`
}

// DecideApproval records an approve/reject decision.
func (h *Handlers) DecideApproval(c *gin.Context) {
	var payload decidePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, apperr.Validation("body"))
		return
	}
	svc, err := h.selector.Expense()
	if err != nil {
		fail(c, err)
		return
	}
	err = svc.Decide(c.Request.Context(), c.Param("id"), payload.ApproverID,
		expense.Decision(payload.Decision), payload.Comments)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"approval_id": c.Param("id"), "decision": payload.Decision})
}

// PendingApprovals lists what the approver may decide right now.
func (h *Handlers) PendingApprovals(c *gin.Context) {
	approverID := c.Query("approver_id")
	if approverID == "" {
		fail(c, apperr.Validation("approver_id"))
		return
	}
	svc, err := h.selector.Expense()
	if err != nil {
		fail(c, err)
		return
	}
	pending, err := svc.PendingFor(c.Request.Context(), approverID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, pending)
}

func (h *Handlers) managerFor(c *gin.Context) (manager.Manager, bool) {
	m, err := h.selector.ManagerFor(c.Param("entity"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return m, true
}

// ListEntity lists rows of a generic entity.
func (h *Handlers) ListEntity(c *gin.Context) {
	m, okay := h.managerFor(c)
	if !okay {
		return
	}
	filter := manager.Payload{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			filter[key] = values[0]
		}
	}
	set, err := m.List(c.Request.Context(), filter, 0)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"columns": set.Columns, "rows": set.Rows})
}

// GetEntity returns one row of a generic entity.
func (h *Handlers) GetEntity(c *gin.Context) {
	m, okay := h.managerFor(c)
	if !okay {
		return
	}
	row, err := m.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, row)
}

// AddEntity inserts one row of a generic entity.
func (h *Handlers) AddEntity(c *gin.Context) {
	m, okay := h.managerFor(c)
	if !okay {
		return
	}
	var payload manager.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, apperr.Validation("body"))
		return
	}
	id, err := m.Add(c.Request.Context(), payload)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"id": id})
}

// UpdateEntity applies a partial update to one row.
func (h *Handlers) UpdateEntity(c *gin.Context) {
	m, okay := h.managerFor(c)
	if !okay {
		return
	}
	var payload manager.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, apperr.Validation("body"))
		return
	}
	if err := m.Update(c.Request.Context(), c.Param("id"), payload); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": c.Param("id")})
}

// DeleteEntity removes one row.
func (h *Handlers) DeleteEntity(c *gin.Context) {
	m, okay := h.managerFor(c)
	if !okay {
		return
	}
	if err := m.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": c.Param("id"), "deleted": true})
}

// BackendStatus reports the selector snapshot.
func (h *Handlers) BackendStatus(c *gin.Context) {
	ok(c, http.StatusOK, h.selector.Status(c.Request.Context()))
}

type setBackendPayload struct {
	Backend string `json:"backend"`
}

// SetBackend records a session override for subsequent factory calls.
func (h *Handlers) SetBackend(c *gin.Context) {
	var payload setBackendPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, apperr.Validation("backend"))
		return
	}
	if err := h.selector.SetBackend(database.Kind(payload.Backend)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"backend": payload.Backend})
}

// PoolStats exposes the server pool counters.
func (h *Handlers) PoolStats(c *gin.Context) {
	stats, configured := h.selector.PoolStats()
	if !configured {
		fail(c, apperr.ErrBackendUnavailable)
		return
	}
	ok(c, http.StatusOK, stats)
}
