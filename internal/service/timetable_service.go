package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/umi-schedule-api/internal/dto"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/internal/repository"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

type timetableRepository interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntry, int, error)
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.TimetableEntry, error)
	FindCandidates(ctx context.Context, day models.Weekday, instructorID, room string) ([]models.TimetableEntry, error)
	LockDay(ctx context.Context, day models.Weekday) error
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
	Delete(ctx context.Context, id string) error
}

// TimetableService keeps instructors and rooms from being double-booked.
type TimetableService struct {
	repo      timetableRepository
	tx        txRunner
	events    emitter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService instantiates TimetableService.
func NewTimetableService(repo timetableRepository, tx txRunner, events EventSink, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if tx == nil {
		tx = passthroughTx{}
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		repo:      repo,
		tx:        tx,
		events:    emitter{sink: events, logger: logger},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns entries with pagination metadata.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.TimetableEntry, *models.Pagination, error) {
	filter := models.TimetableFilter{
		InstructorID: query.InstructorID,
		CourseID:     query.CourseID,
		SemesterID:   query.SemesterID,
		Room:         strings.TrimSpace(query.Room),
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if query.DayOfWeek != "" {
		day, err := models.ParseWeekday(query.DayOfWeek)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		filter.DayOfWeek = day
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list timetable entries")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single entry.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetableEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "timetable entry")
	}
	return entry, nil
}

// ListByInstructor returns an instructor's weekly timetable.
func (s *TimetableService) ListByInstructor(ctx context.Context, instructorID string) ([]models.TimetableEntry, error) {
	entries, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, internalError(err, "failed to list instructor timetable")
	}
	return entries, nil
}

// ValidateSlot returns every existing entry the candidate would collide with.
// excludeID skips the entry being edited. An empty result means the slot is
// free.
func (s *TimetableService) ValidateSlot(ctx context.Context, actor models.Actor, req dto.TimetableEntryRequest, excludeID string) ([]models.ScheduleConflict, error) {
	if err := authorize(actor, models.RoleHOD, models.RoleAdmin); err != nil {
		return nil, err
	}
	candidate, err := s.entryFromRequest(req)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.findConflicts(ctx, candidate, excludeID)
	if err != nil {
		return nil, err
	}
	return conflicts, nil
}

// Create stores a new entry. The conflict check and the insert run in one
// transaction holding the day's advisory lock.
func (s *TimetableService) Create(ctx context.Context, actor models.Actor, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	if err := authorize(actor, models.RoleHOD); err != nil {
		return nil, err
	}
	entry, err := s.entryFromRequest(req)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockDay(ctx, entry.DayOfWeek); err != nil {
			return internalError(err, "failed to lock timetable day")
		}
		if err := s.ensureNoConflict(ctx, entry, ""); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, &entry); err != nil {
			return s.storageError(err, "failed to create timetable entry")
		}
		return nil
	})
	if err != nil {
		err = s.explainOverlap(ctx, err, entry, "")
		s.recordRejection(err)
		return nil, err
	}

	s.events.emit(ctx, newEvent(ctx, models.EventEntryCreated, actor, "timetable_entry", entry.ID, entry))
	return &entry, nil
}

// Update replaces an entry's slot after re-checking conflicts against every
// other entry.
func (s *TimetableService) Update(ctx context.Context, actor models.Actor, id string, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	if err := authorize(actor, models.RoleHOD); err != nil {
		return nil, err
	}
	updated, err := s.entryFromRequest(req)
	if err != nil {
		return nil, err
	}

	var previous models.TimetableEntry
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "timetable entry")
		}
		previous = *existing

		for _, day := range lockOrder(existing.DayOfWeek, updated.DayOfWeek) {
			if err := s.repo.LockDay(ctx, day); err != nil {
				return internalError(err, "failed to lock timetable day")
			}
		}
		if err := s.ensureNoConflict(ctx, updated, existing.ID); err != nil {
			return err
		}

		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		if err := s.repo.Update(ctx, &updated); err != nil {
			return s.storageError(err, "failed to update timetable entry")
		}
		return nil
	})
	if err != nil {
		err = s.explainOverlap(ctx, err, updated, id)
		s.recordRejection(err)
		return nil, err
	}

	s.events.emit(ctx, newEvent(ctx, models.EventEntryUpdated, actor, "timetable_entry", updated.ID, map[string]interface{}{
		"before": previous,
		"after":  updated,
	}))
	return &updated, nil
}

// Delete removes an entry. Attendance sessions recorded against it are kept.
func (s *TimetableService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := authorize(actor, models.RoleHOD); err != nil {
		return err
	}

	var removed models.TimetableEntry
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "timetable entry")
		}
		removed = *existing
		if err := s.repo.Delete(ctx, id); err != nil {
			return internalError(err, "failed to delete timetable entry")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.events.emit(ctx, newEvent(ctx, models.EventEntryDeleted, actor, "timetable_entry", id, removed))
	return nil
}

func (s *TimetableService) entryFromRequest(req dto.TimetableEntryRequest) (models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.TimetableEntry{}, validationError(err, "invalid timetable payload")
	}
	day, err := models.ParseWeekday(req.DayOfWeek)
	if err != nil {
		return models.TimetableEntry{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	start, err := models.ParseClockTime(req.StartTime)
	if err != nil {
		return models.TimetableEntry{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	end, err := models.ParseClockTime(req.EndTime)
	if err != nil {
		return models.TimetableEntry{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if end <= start {
		return models.TimetableEntry{}, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return models.TimetableEntry{
		DayOfWeek:    day,
		StartTime:    start,
		EndTime:      end,
		Room:         strings.TrimSpace(req.Room),
		InstructorID: strings.TrimSpace(req.InstructorID),
		CourseID:     strings.TrimSpace(req.CourseID),
		SemesterID:   strings.TrimSpace(req.SemesterID),
	}, nil
}

func (s *TimetableService) findConflicts(ctx context.Context, candidate models.TimetableEntry, excludeID string) ([]models.ScheduleConflict, error) {
	existing, err := s.repo.FindCandidates(ctx, candidate.DayOfWeek, candidate.InstructorID, candidate.Room)
	if err != nil {
		return nil, internalError(err, "failed to check timetable conflicts")
	}
	return detectConflicts(candidate, existing, excludeID), nil
}

func (s *TimetableService) ensureNoConflict(ctx context.Context, candidate models.TimetableEntry, excludeID string) error {
	conflicts, err := s.findConflicts(ctx, candidate, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	return conflictError(conflicts)
}

func (s *TimetableService) recordRejection(err error) {
	var conflictErr *models.ScheduleConflictError
	if errors.As(err, &conflictErr) {
		s.metrics.RecordConflict(conflictErr.Conflicts)
	}
}

// explainOverlap replaces a bare exclusion-constraint conflict with one that
// lists the blocking entries. It runs after rollback so it sees the rows that
// won the race.
func (s *TimetableService) explainOverlap(ctx context.Context, err error, candidate models.TimetableEntry, excludeID string) error {
	if !errors.Is(err, repository.ErrSlotOverlap) {
		return err
	}
	conflicts, lookupErr := s.findConflicts(ctx, candidate, excludeID)
	if lookupErr != nil || len(conflicts) == 0 {
		return err
	}
	return conflictError(conflicts)
}

func (s *TimetableService) storageError(err error, message string) error {
	if errors.Is(err, repository.ErrSlotOverlap) {
		s.logger.Warn("timetable exclusion constraint rejected write", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict: slot overlaps an existing entry")
	}
	return internalError(err, message)
}

// detectConflicts applies the half-open overlap rule to every entry sharing
// the candidate's day and instructor or non-empty room.
func detectConflicts(candidate models.TimetableEntry, existing []models.TimetableEntry, excludeID string) []models.ScheduleConflict {
	var conflicts []models.ScheduleConflict
	for _, item := range existing {
		if excludeID != "" && item.ID == excludeID {
			continue
		}
		if !candidate.Overlaps(item) {
			continue
		}
		var dims []models.ConflictDimension
		if item.InstructorID == candidate.InstructorID {
			dims = append(dims, models.ConflictInstructor)
		}
		if candidate.Room != "" && item.Room == candidate.Room {
			dims = append(dims, models.ConflictRoom)
		}
		if len(dims) == 0 {
			continue
		}
		conflicts = append(conflicts, models.ScheduleConflict{Entry: item, Dimensions: dims})
	}
	return conflicts
}

func conflictError(conflicts []models.ScheduleConflict) error {
	var instructor, room bool
	for _, c := range conflicts {
		instructor = instructor || c.Has(models.ConflictInstructor)
		room = room || c.Has(models.ConflictRoom)
	}
	var message string
	switch {
	case instructor && room:
		message = "instructor and room already booked for this slot"
	case instructor:
		message = "instructor already scheduled for this slot"
	default:
		message = "room already booked for this slot"
	}
	domainErr := &models.ScheduleConflictError{Message: message, Conflicts: conflicts}
	appErr := appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("schedule conflict: %s", message))
	appErr.Details = conflicts
	return appErr
}

// lockOrder returns the distinct days to lock in a stable order so two
// concurrent moves between the same days cannot deadlock.
func lockOrder(days ...models.Weekday) []models.Weekday {
	unique := make([]models.Weekday, 0, len(days))
	seen := make(map[models.Weekday]struct{}, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		unique = append(unique, d)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	return unique
}
