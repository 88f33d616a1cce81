package models

import "time"

// TimetableEntry is a weekly-recurring assignment of a course, instructor and
// room to a day/time window within a semester.
type TimetableEntry struct {
	ID           string    `db:"id" json:"id"`
	DayOfWeek    Weekday   `db:"day_of_week" json:"day_of_week"`
	StartTime    ClockTime `db:"start_time" json:"start_time"`
	EndTime      ClockTime `db:"end_time" json:"end_time"`
	Room         string    `db:"room" json:"room"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	SemesterID   string    `db:"semester_id" json:"semester_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether e and other share the same day and intersect in
// time.
func (e TimetableEntry) Overlaps(other TimetableEntry) bool {
	return e.DayOfWeek == other.DayOfWeek && Overlaps(e.StartTime, e.EndTime, other.StartTime, other.EndTime)
}

// TimetableFilter describes query params for listing timetable entries.
type TimetableFilter struct {
	DayOfWeek    Weekday
	InstructorID string
	CourseID     string
	SemesterID   string
	Room         string
	Page         int
	PageSize     int
}

// ConflictDimension names which shared resource makes two entries collide.
type ConflictDimension string

const (
	ConflictInstructor ConflictDimension = "INSTRUCTOR"
	ConflictRoom       ConflictDimension = "ROOM"
)

// ScheduleConflict describes an existing entry blocking a candidate slot.
type ScheduleConflict struct {
	Entry      TimetableEntry      `json:"entry"`
	Dimensions []ConflictDimension `json:"dimensions"`
}

// Has reports whether the conflict involves the given dimension.
func (c ScheduleConflict) Has(dim ConflictDimension) bool {
	for _, d := range c.Dimensions {
		if d == dim {
			return true
		}
	}
	return false
}

// ScheduleConflictError is returned when a candidate slot collides with
// existing entries. It enumerates every blocking entry.
type ScheduleConflictError struct {
	Message   string             `json:"message"`
	Conflicts []ScheduleConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Instructor is the read-only projection of the externally owned instructor
// directory.
type Instructor struct {
	ID           string `db:"id" json:"id"`
	DepartmentID string `db:"department_id" json:"department_id"`
	Name         string `db:"name" json:"name"`
}
