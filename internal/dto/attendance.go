package dto

// SessionRequest identifies the session of an entry on a date (YYYY-MM-DD).
// An empty date means today in the configured attendance timezone.
type SessionRequest struct {
	TimetableEntryID string `json:"timetable_entry_id" validate:"required"`
	Date             string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// MarkItem is one student's status in a bulk mark.
type MarkItem struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

// MarkAttendanceRequest upserts records for a session while it is open.
type MarkAttendanceRequest struct {
	SessionRequest
	Items []MarkItem `json:"items" validate:"required,min=1,dive"`
}

// SubmitAttendanceRequest locks a session, addressed either by id or by
// entry and date.
type SubmitAttendanceRequest struct {
	SessionID        string `json:"session_id"`
	TimetableEntryID string `json:"timetable_entry_id" validate:"required_without=SessionID"`
	Date             string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}
