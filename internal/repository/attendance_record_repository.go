package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/pkg/database"
)

const recordColumns = `id, session_id, student_id, status, marked_by, created_at, updated_at`

// AttendanceRecordRepository persists per-student attendance records.
type AttendanceRecordRepository struct {
	db *sqlx.DB
}

// NewAttendanceRecordRepository constructs the repository.
func NewAttendanceRecordRepository(db *sqlx.DB) *AttendanceRecordRepository {
	return &AttendanceRecordRepository{db: db}
}

type upsertRow struct {
	models.AttendanceRecord
	Inserted bool `db:"inserted"`
}

// Upsert writes the record keyed by (session_id, student_id) and reports
// whether a new row was created.
func (r *AttendanceRecordRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	const query = `INSERT INTO attendance_records (id, session_id, student_id, status, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (session_id, student_id) DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
RETURNING ` + recordColumns + `, (xmax = 0) AS inserted`

	var row upsertRow
	if err := database.Conn(ctx, r.db).GetContext(ctx, &row, query, record.ID, record.SessionID, record.StudentID, record.Status, record.MarkedBy, now); err != nil {
		return false, fmt.Errorf("upsert attendance record: %w", err)
	}
	*record = row.AttendanceRecord
	return row.Inserted, nil
}

// FindByIDForUpdate loads a record holding its row lock.
func (r *AttendanceRecordRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1 FOR UPDATE`
	var record models.AttendanceRecord
	if err := database.Conn(ctx, r.db).GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBySession returns the records of a session ordered by student.
func (r *AttendanceRecordRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE session_id = $1 ORDER BY student_id ASC`
	var records []models.AttendanceRecord
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// UpdateStatus overwrites a record's status, used when an edit request is approved.
func (r *AttendanceRecordRepository) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus, markedBy string) (*models.AttendanceRecord, error) {
	query := `UPDATE attendance_records SET status = $1, marked_by = $2, updated_at = $3 WHERE id = $4 RETURNING ` + recordColumns
	var record models.AttendanceRecord
	if err := database.Conn(ctx, r.db).GetContext(ctx, &record, query, status, markedBy, time.Now().UTC(), id); err != nil {
		return nil, err
	}
	return &record, nil
}
