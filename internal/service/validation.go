package service

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/umi-schedule-api/internal/models"
)

// NewValidator returns a validator with the domain tags registered:
// attendance_status, weekday, clock_time and decision.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(strings.TrimSpace(fl.Field().String()))).Valid()
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := models.ParseWeekday(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock_time", func(fl validator.FieldLevel) bool {
		_, err := models.ParseClockTime(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("decision", func(fl validator.FieldLevel) bool {
		return models.EditDecision(strings.ToUpper(strings.TrimSpace(fl.Field().String()))).Valid()
	})
	return v
}
