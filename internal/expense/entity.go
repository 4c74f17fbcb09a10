package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request is the header row of one expense request.
type Request struct {
	ID                 int64
	RequestID          string
	EmployeeID         string
	EmployeeName       string
	Title              string
	Category           string
	TotalAmount        decimal.Decimal
	Currency           string
	ExpectedDate       string
	Description        string
	Notes              string
	AttachmentRef      string
	Status             Status
	RequestDate        string
	CurrentStep        int
	TotalSteps         int
	FirstApproverID    string
	FirstApproverName  string
	SecondApproverID   string
	SecondApproverName string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Item is one expense line attached to a request. Items are inserted
// atomically with the request and never modified afterwards.
type Item struct {
	ID          int64
	RequestDBID int64
	Description string
	Category    string
	Amount      decimal.Decimal
	Currency    string
	Vendor      string
	Notes       string
	CreatedAt   time.Time
}

// Approval is one step of a request's approval chain.
type Approval struct {
	ApprovalID   string
	RequestDBID  int64
	Step         int
	ApproverID   string
	ApproverName string
	Result       Result
	Comments     string
	CreatedAt    time.Time
	DecidedAt    *time.Time
}

// Approver identifies one step's designated approver.
type Approver struct {
	ID   string
	Name string
}

// RequestInput carries the header fields for a new request.
type RequestInput struct {
	EmployeeID    string
	EmployeeName  string
	Title         string
	Category      string
	Currency      string
	ExpectedDate  string
	Description   string
	Notes         string
	AttachmentRef string
	RequestDate   string
}

// ItemInput carries one expense line for a new request. Currency defaults
// to the request currency when empty.
type ItemInput struct {
	Description string
	Category    string
	Amount      decimal.Decimal
	Currency    string
	Vendor      string
	Notes       string
}

// RequestDetail bundles a request with its items and approval chain.
type RequestDetail struct {
	Request   *Request
	Items     []*Item
	Approvals []*Approval
}

// PendingApproval is one approval row an approver may currently decide,
// joined with the parent request fields the approver needs to see.
type PendingApproval struct {
	Approval     *Approval
	RequestID    string
	Title        string
	EmployeeID   string
	EmployeeName string
	TotalAmount  decimal.Decimal
	Currency     string
	RequestedAt  time.Time
}
