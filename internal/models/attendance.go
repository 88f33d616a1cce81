package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// SessionStatus is the lifecycle stage of an attendance session.
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "OPEN"
	SessionStatusLocked SessionStatus = "LOCKED"
)

// AttendanceSession is the capture unit for one timetable entry on one date.
// CourseID is copied from the entry so rollups survive entry deletion.
type AttendanceSession struct {
	ID               string        `db:"id" json:"id"`
	TimetableEntryID string        `db:"timetable_entry_id" json:"timetable_entry_id"`
	CourseID         string        `db:"course_id" json:"course_id"`
	Date             time.Time     `db:"session_date" json:"date"`
	Status           SessionStatus `db:"status" json:"status"`
	LockedAt         *time.Time    `db:"locked_at" json:"locked_at,omitempty"`
	LockedBy         *string       `db:"locked_by" json:"locked_by,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

// Locked reports whether direct writes are closed.
func (s AttendanceSession) Locked() bool {
	return s.Status == SessionStatusLocked
}

// AttendanceRecord is one student's status within a session.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	MarkedBy  string           `db:"marked_by" json:"marked_by"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// SessionDetail bundles a session with its records.
type SessionDetail struct {
	Session AttendanceSession  `json:"session"`
	Entry   *TimetableEntry    `json:"entry,omitempty"`
	Records []AttendanceRecord `json:"records"`
}

// MarkOutcome reports what a bulk mark did for a single student.
type MarkOutcome struct {
	Record  AttendanceRecord `json:"record"`
	Created bool             `json:"created"`
	Updated bool             `json:"updated"`
}

// MarkResult summarises a bulk mark.
type MarkResult struct {
	Session  AttendanceSession `json:"session"`
	Outcomes []MarkOutcome     `json:"outcomes"`
	Created  int               `json:"created"`
	Updated  int               `json:"updated"`
}

// SubmitResult is returned once a session is locked.
type SubmitResult struct {
	Locked  bool              `json:"locked"`
	Session AttendanceSession `json:"session"`
}
