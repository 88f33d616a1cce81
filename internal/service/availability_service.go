package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/umi-schedule-api/internal/dto"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

// InstructorDirectory lists instructors by department.
type InstructorDirectory interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.Instructor, error)
}

type daySchedule interface {
	ListByDay(ctx context.Context, day models.Weekday) ([]models.TimetableEntry, error)
}

// AvailabilityService answers which instructors are free for a window.
type AvailabilityService struct {
	directory InstructorDirectory
	schedule  daySchedule
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(directory InstructorDirectory, schedule daySchedule, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{directory: directory, schedule: schedule, validator: validate, logger: logger}
}

// AvailableInstructors returns the department's instructors that have no
// entry overlapping [start, end) on the day, using the same overlap rule as
// the scheduler.
func (s *AvailabilityService) AvailableInstructors(ctx context.Context, actor models.Actor, query dto.AvailabilityQuery) ([]models.Instructor, error) {
	if err := authorize(actor, models.RoleHOD, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, validationError(err, "invalid availability query")
	}
	day, err := models.ParseWeekday(query.DayOfWeek)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	start, err := models.ParseClockTime(query.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	end, err := models.ParseClockTime(query.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if end <= start {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	instructors, err := s.directory.ListByDepartment(ctx, query.DepartmentID)
	if err != nil {
		return nil, internalError(err, "failed to list department instructors")
	}
	entries, err := s.schedule.ListByDay(ctx, day)
	if err != nil {
		return nil, internalError(err, "failed to load day schedule")
	}

	busy := make(map[string]struct{})
	for _, entry := range entries {
		if models.Overlaps(start, end, entry.StartTime, entry.EndTime) {
			busy[entry.InstructorID] = struct{}{}
		}
	}

	available := make([]models.Instructor, 0, len(instructors))
	for _, instructor := range instructors {
		if _, ok := busy[instructor.ID]; ok {
			continue
		}
		available = append(available, instructor)
	}
	return available, nil
}
