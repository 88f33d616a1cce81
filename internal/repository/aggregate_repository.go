package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/umi-schedule-api/internal/models"
)

// AggregateRepository computes attendance tallies over locked sessions.
type AggregateRepository struct {
	db *sqlx.DB
}

// NewAggregateRepository constructs the repository.
func NewAggregateRepository(db *sqlx.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

const countsSelect = `SELECT r.student_id,
	COUNT(*) FILTER (WHERE r.status = 'PRESENT') AS present,
	COUNT(*) FILTER (WHERE r.status = 'ABSENT') AS absent,
	COUNT(*) FILTER (WHERE r.status = 'LATE') AS late,
	COUNT(*) AS total
FROM attendance_records r
JOIN attendance_sessions s ON s.id = r.session_id
WHERE s.status = 'LOCKED' AND s.course_id = $1`

// StudentCounts tallies one student's records in a course.
func (r *AggregateRepository) StudentCounts(ctx context.Context, studentID, courseID string) (models.AttendanceCounts, error) {
	query := countsSelect + ` AND r.student_id = $2 GROUP BY r.student_id`
	var rows []models.AttendanceCounts
	if err := r.db.SelectContext(ctx, &rows, query, courseID, studentID); err != nil {
		return models.AttendanceCounts{}, fmt.Errorf("count student attendance: %w", err)
	}
	if len(rows) == 0 {
		return models.AttendanceCounts{StudentID: studentID}, nil
	}
	return rows[0], nil
}

// CourseCounts tallies every student with records in the course.
func (r *AggregateRepository) CourseCounts(ctx context.Context, courseID string) ([]models.AttendanceCounts, error) {
	query := countsSelect + ` GROUP BY r.student_id ORDER BY r.student_id ASC`
	var rows []models.AttendanceCounts
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("count course attendance: %w", err)
	}
	return rows, nil
}

// LockedSessionCount returns how many sessions of the course are locked.
func (r *AggregateRepository) LockedSessionCount(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance_sessions WHERE status = 'LOCKED' AND course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count locked sessions: %w", err)
	}
	return total, nil
}
