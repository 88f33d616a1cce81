package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/pkg/database"
)

const sessionColumns = `id, timetable_entry_id, course_id, session_date, status, locked_at, locked_by, created_at`

// AttendanceSessionRepository persists attendance sessions.
type AttendanceSessionRepository struct {
	db *sqlx.DB
}

// NewAttendanceSessionRepository constructs the repository.
func NewAttendanceSessionRepository(db *sqlx.DB) *AttendanceSessionRepository {
	return &AttendanceSessionRepository{db: db}
}

// GetOrCreate returns the session for (entry, date), inserting an OPEN one
// when absent. Concurrent callers converge on the same row.
func (r *AttendanceSessionRepository) GetOrCreate(ctx context.Context, entry models.TimetableEntry, date time.Time) (*models.AttendanceSession, error) {
	conn := database.Conn(ctx, r.db)
	day := truncateDate(date)

	const insert = `INSERT INTO attendance_sessions (id, timetable_entry_id, course_id, session_date, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (timetable_entry_id, session_date) DO NOTHING`
	if _, err := conn.ExecContext(ctx, insert, uuid.NewString(), entry.ID, entry.CourseID, day, models.SessionStatusOpen, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure attendance session: %w", err)
	}

	session, err := r.FindByEntryAndDate(ctx, entry.ID, day)
	if err != nil {
		return nil, fmt.Errorf("load attendance session: %w", err)
	}
	return session, nil
}

// FindByEntryAndDate loads the session for an entry on a date.
func (r *AttendanceSessionRepository) FindByEntryAndDate(ctx context.Context, entryID string, date time.Time) (*models.AttendanceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE timetable_entry_id = $1 AND session_date = $2`
	var session models.AttendanceSession
	if err := database.Conn(ctx, r.db).GetContext(ctx, &session, query, entryID, truncateDate(date)); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByID loads a session by id.
func (r *AttendanceSessionRepository) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE id = $1`
	var session models.AttendanceSession
	if err := database.Conn(ctx, r.db).GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByIDForUpdate loads a session and holds its row lock until the
// surrounding transaction ends. Writers and the submitter serialise on it.
func (r *AttendanceSessionRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.AttendanceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE id = $1 FOR UPDATE`
	var session models.AttendanceSession
	if err := database.Conn(ctx, r.db).GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkLocked transitions an OPEN session to LOCKED. It returns
// sql.ErrNoRows when the session was not OPEN.
func (r *AttendanceSessionRepository) MarkLocked(ctx context.Context, id, lockedBy string, at time.Time) error {
	const query = `UPDATE attendance_sessions SET status = $1, locked_at = $2, locked_by = $3 WHERE id = $4 AND status = $5`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, models.SessionStatusLocked, at.UTC(), lockedBy, id, models.SessionStatusOpen)
	if err != nil {
		return fmt.Errorf("lock attendance session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check attendance session lock rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
