package models

import "time"

// EditRequestStatus captures workflow states for attendance corrections.
type EditRequestStatus string

const (
	EditRequestPending  EditRequestStatus = "PENDING"
	EditRequestApproved EditRequestStatus = "APPROVED"
	EditRequestRejected EditRequestStatus = "REJECTED"
)

// Resolved reports whether the request has reached a terminal state.
func (s EditRequestStatus) Resolved() bool {
	return s == EditRequestApproved || s == EditRequestRejected
}

// EditDecision is an admin's verdict on a pending request.
type EditDecision string

const (
	DecisionApprove EditDecision = "APPROVE"
	DecisionReject  EditDecision = "REJECT"
)

// Valid returns true when the decision is supported.
func (d EditDecision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// EditRequest is a reasoned proposal to change a locked attendance record.
type EditRequest struct {
	ID             string            `db:"id" json:"id"`
	RecordID       string            `db:"record_id" json:"record_id"`
	BatchID        *string           `db:"batch_id" json:"batch_id,omitempty"`
	RequestedBy    string            `db:"requested_by" json:"requested_by"`
	PreviousStatus AttendanceStatus  `db:"previous_status" json:"previous_status"`
	ProposedStatus AttendanceStatus  `db:"proposed_status" json:"proposed_status"`
	Reason         string            `db:"reason" json:"reason"`
	Status         EditRequestStatus `db:"status" json:"status"`
	AdminNotes     *string           `db:"admin_notes" json:"admin_notes,omitempty"`
	ResolvedBy     *string           `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	ResolvedAt     *time.Time        `db:"resolved_at" json:"resolved_at,omitempty"`
}

// EditRequestFilter constrains listing queries.
type EditRequestFilter struct {
	Status      []EditRequestStatus
	RecordID    string
	RequestedBy string
	BatchID     string
	Limit       int
	Offset      int
}

// ResolveEditRequestParams groups the columns written on resolution.
type ResolveEditRequestParams struct {
	ID         string
	Status     EditRequestStatus
	ResolvedBy string
	ResolvedAt time.Time
	AdminNotes *string
}

// ResolutionResult is the outcome of resolving a request.
type ResolutionResult struct {
	Request EditRequest       `json:"request"`
	Record  *AttendanceRecord `json:"record,omitempty"`
}
