package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/umi-schedule-api/internal/dto"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
	"github.com/noah-isme/umi-schedule-api/pkg/response"
)

type timetableService interface {
	List(ctx context.Context, query dto.TimetableQuery) ([]models.TimetableEntry, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.TimetableEntry, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.TimetableEntry, error)
	ValidateSlot(ctx context.Context, actor models.Actor, req dto.TimetableEntryRequest, excludeID string) ([]models.ScheduleConflict, error)
	Create(ctx context.Context, actor models.Actor, req dto.TimetableEntryRequest) (*models.TimetableEntry, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.TimetableEntryRequest) (*models.TimetableEntry, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// TimetableHandler exposes the weekly timetable.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(service timetableService) *TimetableHandler {
	return &TimetableHandler{service: service}
}

// List godoc
// @Summary List timetable entries
// @Tags Timetable
// @Produce json
// @Param day_of_week query string false "Day of week"
// @Param instructor_id query string false "Instructor ID"
// @Param course_id query string false "Course ID"
// @Param semester_id query string false "Semester ID"
// @Param room query string false "Room"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) List(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "timetable")
		return
	}
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	entries, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Get godoc
// @Summary Get a timetable entry
// @Tags Timetable
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "timetable")
		return
	}
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entry)
}

// ListByInstructor godoc
// @Summary Weekly timetable of an instructor
// @Tags Timetable
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/instructors/{instructorId} [get]
func (h *TimetableHandler) ListByInstructor(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "timetable")
		return
	}
	entries, err := h.service.ListByInstructor(c.Request.Context(), c.Param("instructorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// Validate godoc
// @Summary Check a slot for conflicts without saving it
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.ValidateSlotRequest true "Candidate slot"
// @Success 200 {object} response.Envelope
// @Router /timetable/validate [post]
func (h *TimetableHandler) Validate(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "timetable")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ValidateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid timetable payload"))
		return
	}
	conflicts, err := h.service.ValidateSlot(c.Request.Context(), actor, req.TimetableEntryRequest, req.ExcludeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if conflicts == nil {
		conflicts = []models.ScheduleConflict{}
	}
	response.OK(c, gin.H{"available": len(conflicts) == 0, "conflicts": conflicts})
}

// Create godoc
// @Summary Create a timetable entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.TimetableEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "timetable")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.TimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid timetable payload"))
		return
	}
	entry, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Update a timetable entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.TimetableEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/{id} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "timetable")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.TimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid timetable payload"))
		return
	}
	entry, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entry)
}

// Delete godoc
// @Summary Delete a timetable entry
// @Tags Timetable
// @Param id path string true "Entry ID"
// @Success 204
// @Router /timetable/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "timetable")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
