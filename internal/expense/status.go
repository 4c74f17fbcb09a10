// Package expense implements the expense-request approval workflow: request
// creation with items and approval chains, ordered decisions, and status
// reconciliation, all over either storage backend.
package expense

// Status is the lifecycle state of an expense request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusApproved:  true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// IsTerminal returns true when no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return validStatuses[s] && s != StatusPending
}

// IsValid returns true if the status is a known lifecycle state.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Result is the outcome recorded on one approval row.
type Result string

const (
	ResultPending  Result = "pending"
	ResultApproved Result = "approved"
	ResultRejected Result = "rejected"
	// ResultCancelled marks a row the approver can no longer act on,
	// either because the requester cancelled or a later step rejected.
	ResultCancelled Result = "cancelled"
)

// Decided returns true when an approver acted on the row.
func (r Result) Decided() bool {
	return r == ResultApproved || r == ResultRejected
}

// IsTerminal returns true once the result left pending; terminal results
// are never written again.
func (r Result) IsTerminal() bool {
	return r != ResultPending
}

// String returns the string representation of the result.
func (r Result) String() string {
	return string(r)
}

// Decision is an approver's requested action.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// IsValid returns true for a known decision verb.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Result maps the decision to the result it writes.
func (d Decision) Result() Result {
	if d == DecisionApprove {
		return ResultApproved
	}
	return ResultRejected
}
