package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/umi-schedule-api/internal/dto"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

type attendanceSessionStore interface {
	GetOrCreate(ctx context.Context, entry models.TimetableEntry, date time.Time) (*models.AttendanceSession, error)
	FindByEntryAndDate(ctx context.Context, entryID string, date time.Time) (*models.AttendanceSession, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	FindByIDForUpdate(ctx context.Context, id string) (*models.AttendanceSession, error)
	MarkLocked(ctx context.Context, id, lockedBy string, at time.Time) error
}

type attendanceRecordStore interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (bool, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
}

type entryReader interface {
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
}

type rollupInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID string)
}

// AttendanceServiceConfig tunes session handling.
type AttendanceServiceConfig struct {
	Location     *time.Location
	MaxBulkItems int
}

// AttendanceService manages the Open to Locked lifecycle of attendance
// sessions and the records captured while they are open.
type AttendanceService struct {
	sessions  attendanceSessionStore
	records   attendanceRecordStore
	entries   entryReader
	tx        txRunner
	rollups   rollupInvalidator
	events    emitter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AttendanceServiceConfig
	now       func() time.Time
}

// NewAttendanceService constructs the service.
func NewAttendanceService(sessions attendanceSessionStore, records attendanceRecordStore, entries entryReader, tx txRunner, rollups rollupInvalidator, events EventSink, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AttendanceServiceConfig) *AttendanceService {
	if tx == nil {
		tx = passthroughTx{}
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxBulkItems <= 0 {
		cfg.MaxBulkItems = 500
	}
	return &AttendanceService{
		sessions:  sessions,
		records:   records,
		entries:   entries,
		tx:        tx,
		rollups:   rollups,
		events:    emitter{sink: events, logger: logger},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// GetOrCreateSession returns the session of an entry on a date, creating it
// OPEN on first use. Repeated calls return the same session.
func (s *AttendanceService) GetOrCreateSession(ctx context.Context, actor models.Actor, req dto.SessionRequest) (*models.AttendanceSession, error) {
	if err := authorize(actor, models.RoleInstructor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session request")
	}
	date, err := parseDate(req.Date, s.cfg.Location, s.now())
	if err != nil {
		return nil, err
	}

	var session *models.AttendanceSession
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.loadOwnedEntry(ctx, actor, req.TimetableEntryID)
		if err != nil {
			return err
		}
		session, err = s.sessions.GetOrCreate(ctx, *entry, date)
		if err != nil {
			return internalError(err, "failed to open attendance session")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns a session with its records and, when it still exists,
// its timetable entry.
func (s *AttendanceService) GetSession(ctx context.Context, actor models.Actor, sessionID string) (*models.SessionDetail, error) {
	if err := authorize(actor, models.RoleInstructor, models.RoleAdmin); err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "attendance session")
	}
	entry, err := s.entries.FindByID(ctx, session.TimetableEntryID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to load timetable entry")
	}
	if err := ensureOwnsEntry(actor, entry); err != nil {
		return nil, err
	}
	records, err := s.records.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, internalError(err, "failed to list attendance records")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return &models.SessionDetail{Session: *session, Entry: entry, Records: records}, nil
}

// UpsertRecord writes one student's status while the session is OPEN.
func (s *AttendanceService) UpsertRecord(ctx context.Context, actor models.Actor, sessionID, studentID string, status models.AttendanceStatus) (*models.MarkOutcome, error) {
	if err := authorize(actor, models.RoleInstructor, models.RoleAdmin); err != nil {
		return nil, err
	}
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	status = models.AttendanceStatus(strings.ToUpper(string(status)))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be PRESENT, ABSENT or LATE")
	}

	var outcome models.MarkOutcome
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		session, err := s.lockOpenSession(ctx, actor, sessionID)
		if err != nil {
			return err
		}
		outcome, err = s.upsert(ctx, actor, session.ID, studentID, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// BulkMark opens the session if needed and upserts every item in one
// transaction. Each item must carry an explicit status and a student may
// appear only once.
func (s *AttendanceService) BulkMark(ctx context.Context, actor models.Actor, req dto.MarkAttendanceRequest) (*models.MarkResult, error) {
	if err := authorize(actor, models.RoleInstructor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	if len(req.Items) > s.cfg.MaxBulkItems {
		return nil, appErrors.Clone(appErrors.ErrValidation, "too many attendance items")
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		id := strings.TrimSpace(item.StudentID)
		if id == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required for every item")
		}
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate student_id in payload: "+id)
		}
		seen[id] = struct{}{}
	}
	date, err := parseDate(req.Date, s.cfg.Location, s.now())
	if err != nil {
		return nil, err
	}

	result := &models.MarkResult{Outcomes: make([]models.MarkOutcome, 0, len(req.Items))}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.loadOwnedEntry(ctx, actor, req.TimetableEntryID)
		if err != nil {
			return err
		}
		opened, err := s.sessions.GetOrCreate(ctx, *entry, date)
		if err != nil {
			return internalError(err, "failed to open attendance session")
		}
		session, err := s.sessions.FindByIDForUpdate(ctx, opened.ID)
		if err != nil {
			return notFoundOr(err, "attendance session")
		}
		if session.Locked() {
			return appErrors.Clone(appErrors.ErrInvalidState, "session is locked")
		}
		result.Session = *session

		for _, item := range req.Items {
			status := models.AttendanceStatus(strings.ToUpper(strings.TrimSpace(item.Status)))
			outcome, err := s.upsert(ctx, actor, session.ID, strings.TrimSpace(item.StudentID), status)
			if err != nil {
				return err
			}
			if outcome.Created {
				result.Created++
			} else {
				result.Updated++
			}
			result.Outcomes = append(result.Outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Submit locks the session of an entry on a date, or the session named by
// SessionID when present.
func (s *AttendanceService) Submit(ctx context.Context, actor models.Actor, req dto.SubmitAttendanceRequest) (*models.SubmitResult, error) {
	if err := authorize(actor, models.RoleInstructor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submit payload")
	}
	if req.SessionID != "" {
		return s.SubmitSession(ctx, actor, req.SessionID)
	}
	date, err := parseDate(req.Date, s.cfg.Location, s.now())
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByEntryAndDate(ctx, req.TimetableEntryID, date)
	if err != nil {
		return nil, notFoundOr(err, "attendance session")
	}
	return s.SubmitSession(ctx, actor, session.ID)
}

// SubmitSession transitions an OPEN session to LOCKED. The transition happens
// once; later calls fail with an invalid state error and emit nothing.
func (s *AttendanceService) SubmitSession(ctx context.Context, actor models.Actor, sessionID string) (*models.SubmitResult, error) {
	if err := authorize(actor, models.RoleInstructor, models.RoleAdmin); err != nil {
		return nil, err
	}

	var locked models.AttendanceSession
	var recordCount int
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		session, err := s.sessions.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return notFoundOr(err, "attendance session")
		}
		if session.Locked() {
			return appErrors.Clone(appErrors.ErrInvalidState, "already submitted")
		}
		if err := s.ensureSessionOwner(ctx, actor, session); err != nil {
			return err
		}

		at := s.now().UTC()
		if err := s.sessions.MarkLocked(ctx, session.ID, actor.UserID, at); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidState, "already submitted")
			}
			return internalError(err, "failed to lock attendance session")
		}
		records, err := s.records.ListBySession(ctx, session.ID)
		if err != nil {
			return internalError(err, "failed to list attendance records")
		}
		recordCount = len(records)

		locked = *session
		locked.Status = models.SessionStatusLocked
		locked.LockedAt = &at
		lockedBy := actor.UserID
		locked.LockedBy = &lockedBy
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSessionLocked()
	if s.rollups != nil {
		s.rollups.InvalidateCourse(ctx, locked.CourseID)
	}
	s.events.emit(ctx, newEvent(ctx, models.EventSessionLocked, actor, "attendance_session", locked.ID, map[string]interface{}{
		"timetable_entry_id": locked.TimetableEntryID,
		"course_id":          locked.CourseID,
		"date":               locked.Date.Format("2006-01-02"),
		"records":            recordCount,
	}))
	return &models.SubmitResult{Locked: true, Session: locked}, nil
}

func (s *AttendanceService) loadOwnedEntry(ctx context.Context, actor models.Actor, entryID string) (*models.TimetableEntry, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, notFoundOr(err, "timetable entry")
	}
	if err := ensureOwnsEntry(actor, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *AttendanceService) lockOpenSession(ctx context.Context, actor models.Actor, sessionID string) (*models.AttendanceSession, error) {
	session, err := s.sessions.FindByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "attendance session")
	}
	if session.Locked() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "session is locked")
	}
	if err := s.ensureSessionOwner(ctx, actor, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *AttendanceService) ensureSessionOwner(ctx context.Context, actor models.Actor, session *models.AttendanceSession) error {
	if actor.IsAdmin() {
		return nil
	}
	entry, err := s.entries.FindByID(ctx, session.TimetableEntryID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return internalError(err, "failed to load timetable entry")
	}
	return ensureOwnsEntry(actor, entry)
}

func (s *AttendanceService) upsert(ctx context.Context, actor models.Actor, sessionID, studentID string, status models.AttendanceStatus) (models.MarkOutcome, error) {
	record := models.AttendanceRecord{
		SessionID: sessionID,
		StudentID: studentID,
		Status:    status,
		MarkedBy:  actor.UserID,
	}
	created, err := s.records.Upsert(ctx, &record)
	if err != nil {
		return models.MarkOutcome{}, internalError(err, "failed to save attendance record")
	}
	return models.MarkOutcome{Record: record, Created: created, Updated: !created}, nil
}
