package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

// txRunner runs fn inside one database transaction.
type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// authorize admits the actor when it holds one of roles. SUPERADMIN is
// always admitted.
func authorize(actor models.Actor, roles ...models.UserRole) error {
	if actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleSuperAdmin {
		return nil
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
}

// ensureOwnsEntry restricts instructors to their own timetable entries.
// Admins bypass the check.
func ensureOwnsEntry(actor models.Actor, entry *models.TimetableEntry) error {
	if actor.IsAdmin() {
		return nil
	}
	if entry == nil || entry.InstructorID != actor.InstructorRef() {
		return appErrors.Clone(appErrors.ErrForbidden, "timetable entry belongs to another instructor")
	}
	return nil
}

func validationError(err error, message string) error {
	appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fe.Tag()
		}
		appErr.Details = fields
	}
	return appErr
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// passThrough returns err unchanged when it is already a typed app error,
// otherwise wraps it as an internal failure.
func passThrough(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return internalError(err, message)
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", what))
	}
	return internalError(err, fmt.Sprintf("failed to load %s", what))
}

func parseDate(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	return parsed, nil
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
