package models

import "time"

// Audit actions emitted by the scheduling and attendance core.
const (
	AuditActionEntryCreate        = "TIMETABLE_ENTRY_CREATE"
	AuditActionEntryUpdate        = "TIMETABLE_ENTRY_UPDATE"
	AuditActionEntryDelete        = "TIMETABLE_ENTRY_DELETE"
	AuditActionSessionLock        = "ATTENDANCE_SESSION_LOCK"
	AuditActionEditRequestCreate  = "ATTENDANCE_EDIT_REQUEST_CREATE"
	AuditActionEditRequestResolve = "ATTENDANCE_EDIT_REQUEST_RESOLVE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	RequestID  string    `db:"request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DomainEvent is a fire-and-forget notification emitted after commit.
type DomainEvent struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	ActorID    string      `json:"actor_id"`
	Resource   string      `json:"resource"`
	ResourceID string      `json:"resource_id"`
	RequestID  string      `json:"request_id,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Event types carried by DomainEvent.
const (
	EventEntryCreated        = "timetable.entry_created"
	EventEntryUpdated        = "timetable.entry_updated"
	EventEntryDeleted        = "timetable.entry_deleted"
	EventSessionLocked       = "attendance.session_locked"
	EventEditRequestCreated  = "attendance.edit_request_created"
	EventEditRequestResolved = "attendance.edit_request_resolved"
)

// AuditActionFor maps an event type to the audit action recorded for it.
func AuditActionFor(eventType string) string {
	switch eventType {
	case EventEntryCreated:
		return AuditActionEntryCreate
	case EventEntryUpdated:
		return AuditActionEntryUpdate
	case EventEntryDeleted:
		return AuditActionEntryDelete
	case EventSessionLocked:
		return AuditActionSessionLock
	case EventEditRequestCreated:
		return AuditActionEditRequestCreate
	case EventEditRequestResolved:
		return AuditActionEditRequestResolve
	default:
		return eventType
	}
}
