package models

import "math"

// AttendanceBand is the read-time classification of a percentage.
type AttendanceBand string

const (
	BandExcellent AttendanceBand = "EXCELLENT"
	BandGood      AttendanceBand = "GOOD"
	BandWarning   AttendanceBand = "WARNING"
	BandCritical  AttendanceBand = "CRITICAL"
)

// BandFor classifies a percentage for display.
func BandFor(percentage int) AttendanceBand {
	switch {
	case percentage >= 80:
		return BandExcellent
	case percentage >= 75:
		return BandGood
	case percentage >= 60:
		return BandWarning
	default:
		return BandCritical
	}
}

// AttendanceCounts tallies statuses over locked sessions.
type AttendanceCounts struct {
	StudentID string `db:"student_id" json:"student_id"`
	Present   int    `db:"present" json:"present"`
	Absent    int    `db:"absent" json:"absent"`
	Late      int    `db:"late" json:"late"`
	Total     int    `db:"total" json:"total"`
}

// Percentage returns round(present/total*100), or 0 with no sessions.
func (c AttendanceCounts) Percentage() int {
	if c.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(c.Present) / float64(c.Total) * 100))
}

// StudentAttendanceSummary is the rollup for one student in one course.
type StudentAttendanceSummary struct {
	StudentID  string         `json:"student_id"`
	CourseID   string         `json:"course_id"`
	Present    int            `json:"present"`
	Absent     int            `json:"absent"`
	Late       int            `json:"late"`
	Total      int            `json:"total_sessions"`
	Percentage int            `json:"percentage"`
	Band       AttendanceBand `json:"band"`
}

// SummaryFromCounts derives the display summary from raw counts.
func SummaryFromCounts(courseID string, counts AttendanceCounts) StudentAttendanceSummary {
	pct := counts.Percentage()
	return StudentAttendanceSummary{
		StudentID:  counts.StudentID,
		CourseID:   courseID,
		Present:    counts.Present,
		Absent:     counts.Absent,
		Late:       counts.Late,
		Total:      counts.Total,
		Percentage: pct,
		Band:       BandFor(pct),
	}
}

// CourseAttendanceSummary lists every student's rollup for a course.
type CourseAttendanceSummary struct {
	CourseID       string                     `json:"course_id"`
	LockedSessions int                        `json:"locked_sessions"`
	Students       []StudentAttendanceSummary `json:"students"`
}
