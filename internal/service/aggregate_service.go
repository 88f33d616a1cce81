package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

type aggregateRepository interface {
	StudentCounts(ctx context.Context, studentID, courseID string) (models.AttendanceCounts, error)
	CourseCounts(ctx context.Context, courseID string) ([]models.AttendanceCounts, error)
	LockedSessionCount(ctx context.Context, courseID string) (int, error)
}

type rollupCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Evict(ctx context.Context, keys ...string) error
}

// AggregateService derives attendance percentages from locked sessions.
type AggregateService struct {
	repo   aggregateRepository
	cache  rollupCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewAggregateService constructs the service. cache may be nil.
func NewAggregateService(repo aggregateRepository, cache rollupCache, ttl time.Duration, logger *zap.Logger) *AggregateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregateService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Percentage returns round(present / total * 100) for the student in the
// course, where total counts the locked sessions holding a record for the
// student. Open sessions never contribute.
func (s *AggregateService) Percentage(ctx context.Context, studentID, courseID string) (*models.StudentAttendanceSummary, error) {
	studentID, courseID = strings.TrimSpace(studentID), strings.TrimSpace(courseID)
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id and course_id are required")
	}
	counts, err := s.repo.StudentCounts(ctx, studentID, courseID)
	if err != nil {
		return nil, internalError(err, "failed to compute attendance percentage")
	}
	counts.StudentID = studentID
	summary := models.SummaryFromCounts(courseID, counts)
	return &summary, nil
}

// PercentageFor is Percentage behind the caller check: students may only read
// their own figure.
func (s *AggregateService) PercentageFor(ctx context.Context, actor models.Actor, studentID, courseID string) (*models.StudentAttendanceSummary, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent && strings.TrimSpace(studentID) != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own attendance")
	}
	return s.Percentage(ctx, studentID, courseID)
}

// CourseSummaryFor is CourseSummary restricted to staff roles.
func (s *AggregateService) CourseSummaryFor(ctx context.Context, actor models.Actor, courseID string) (*models.CourseAttendanceSummary, error) {
	if err := authorize(actor, models.RoleAdmin, models.RoleHOD, models.RoleInstructor); err != nil {
		return nil, err
	}
	return s.CourseSummary(ctx, courseID)
}

// CourseSummary returns every student's rollup for a course. Results are
// cached until a session of the course is locked or a correction is approved.
func (s *AggregateService) CourseSummary(ctx context.Context, courseID string) (*models.CourseAttendanceSummary, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course_id is required")
	}

	key := courseSummaryKey(courseID)
	if s.cache != nil {
		var cached models.CourseAttendanceSummary
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	rows, err := s.repo.CourseCounts(ctx, courseID)
	if err != nil {
		return nil, internalError(err, "failed to compute course attendance")
	}
	locked, err := s.repo.LockedSessionCount(ctx, courseID)
	if err != nil {
		return nil, internalError(err, "failed to count locked sessions")
	}

	summary := &models.CourseAttendanceSummary{
		CourseID:       courseID,
		LockedSessions: locked,
		Students:       make([]models.StudentAttendanceSummary, 0, len(rows)),
	}
	for _, row := range rows {
		summary.Students = append(summary.Students, models.SummaryFromCounts(courseID, row))
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, summary, s.ttl)
	}
	return summary, nil
}

// InvalidateCourse drops the cached rollup for a course.
func (s *AggregateService) InvalidateCourse(ctx context.Context, courseID string) {
	if s.cache == nil || courseID == "" {
		return
	}
	if err := s.cache.Evict(ctx, courseSummaryKey(courseID)); err != nil {
		s.logger.Warn("failed to invalidate course rollup", zap.String("course_id", courseID), zap.Error(err))
	}
}

func courseSummaryKey(courseID string) string {
	return fmt.Sprintf("attendance:rollup:course:%s", courseID)
}
