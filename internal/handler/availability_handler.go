package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/umi-schedule-api/internal/dto"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
	"github.com/noah-isme/umi-schedule-api/pkg/response"
)

type availabilityService interface {
	AvailableInstructors(ctx context.Context, actor models.Actor, query dto.AvailabilityQuery) ([]models.Instructor, error)
}

// AvailabilityHandler answers instructor availability queries.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Available godoc
// @Summary Instructors free for a window
// @Tags Instructors
// @Produce json
// @Param day_of_week query string true "Day of week"
// @Param start_time query string true "Start time HH:MM"
// @Param end_time query string true "End time HH:MM"
// @Param department_id query string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/available [get]
func (h *AvailabilityHandler) Available(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "availability")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	if query.DepartmentID == "" {
		query.DepartmentID = actor.DepartmentID
	}
	instructors, err := h.service.AvailableInstructors(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, instructors)
}
