package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/pkg/database"
)

const timetableColumns = `id, day_of_week, start_time, end_time, room, instructor_id, course_id, semester_id, created_at, updated_at`

// weekOrder sorts entries Monday first, then by start time.
const weekOrder = `array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY'], day_of_week) ASC, start_time ASC`

// TimetableRepository provides persistence for timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// List returns entries with optional filtering and pagination.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntry, int, error) {
	base := "FROM timetable_entries WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Room != "" {
		conditions = append(conditions, fmt.Sprintf("room = $%d", len(args)+1))
		args = append(args, filter.Room)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	conn := database.Conn(ctx, r.db)
	query := fmt.Sprintf("SELECT %s %s ORDER BY %s, id ASC LIMIT %d OFFSET %d", timetableColumns, base, weekOrder, size, offset)
	var entries []models.TimetableEntry
	if err := conn.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetable entries: %w", err)
	}

	var total int
	if err := conn.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable entries: %w", err)
	}
	return entries, total, nil
}

// FindByID loads an entry by id. It returns sql.ErrNoRows when missing.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE id = $1`
	var entry models.TimetableEntry
	if err := database.Conn(ctx, r.db).GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByInstructor returns an instructor's weekly entries ordered by day/time.
func (r *TimetableRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE instructor_id = $1 ORDER BY ` + weekOrder
	var entries []models.TimetableEntry
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, query, instructorID); err != nil {
		return nil, fmt.Errorf("list timetable entries by instructor: %w", err)
	}
	return entries, nil
}

// ListByDay returns every entry scheduled on the given day.
func (r *TimetableRepository) ListByDay(ctx context.Context, day models.Weekday) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries WHERE day_of_week = $1 ORDER BY start_time ASC`
	var entries []models.TimetableEntry
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, query, day); err != nil {
		return nil, fmt.Errorf("list timetable entries by day: %w", err)
	}
	return entries, nil
}

// FindCandidates returns entries on day that share the instructor or, when
// room is non-empty, the room. Time overlap is decided by the caller.
func (r *TimetableRepository) FindCandidates(ctx context.Context, day models.Weekday, instructorID, room string) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetable_entries
WHERE day_of_week = $1 AND (instructor_id = $2 OR ($3 <> '' AND room = $3))
ORDER BY start_time ASC`
	var entries []models.TimetableEntry
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, query, day, instructorID, room); err != nil {
		return nil, fmt.Errorf("find timetable conflict candidates: %w", err)
	}
	return entries, nil
}

// LockDay takes a transaction-scoped advisory lock serialising writers that
// touch the same weekday. It must run inside a transaction.
func (r *TimetableRepository) LockDay(ctx context.Context, day models.Weekday) error {
	if !database.InTx(ctx) {
		return fmt.Errorf("lock timetable day: no transaction in context")
	}
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, dayLockKey(day)); err != nil {
		return fmt.Errorf("lock timetable day %s: %w", day, err)
	}
	return nil
}

// Create stores a new entry.
func (r *TimetableRepository) Create(ctx context.Context, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO timetable_entries (id, day_of_week, start_time, end_time, room, instructor_id, course_id, semester_id, created_at, updated_at) VALUES (:id, :day_of_week, :start_time, :end_time, :room, :instructor_id, :course_id, :semester_id, :created_at, :updated_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, entry); err != nil {
		if database.IsExclusionViolation(err, "") {
			return ErrSlotOverlap
		}
		return fmt.Errorf("create timetable entry: %w", err)
	}
	return nil
}

// Update modifies an entry.
func (r *TimetableRepository) Update(ctx context.Context, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_entries SET day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, room = :room, instructor_id = :instructor_id, course_id = :course_id, semester_id = :semester_id, updated_at = :updated_at WHERE id = :id`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, entry); err != nil {
		if database.IsExclusionViolation(err, "") {
			return ErrSlotOverlap
		}
		return fmt.Errorf("update timetable entry: %w", err)
	}
	return nil
}

// Delete removes an entry by id. Attendance sessions referencing it are kept.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM timetable_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable entry: %w", err)
	}
	return nil
}

func dayLockKey(day models.Weekday) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("timetable:" + string(day)))
	return int64(h.Sum64())
}
