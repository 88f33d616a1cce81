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

type attendanceService interface {
	GetOrCreateSession(ctx context.Context, actor models.Actor, req dto.SessionRequest) (*models.AttendanceSession, error)
	GetSession(ctx context.Context, actor models.Actor, sessionID string) (*models.SessionDetail, error)
	UpsertRecord(ctx context.Context, actor models.Actor, sessionID, studentID string, status models.AttendanceStatus) (*models.MarkOutcome, error)
	BulkMark(ctx context.Context, actor models.Actor, req dto.MarkAttendanceRequest) (*models.MarkResult, error)
	Submit(ctx context.Context, actor models.Actor, req dto.SubmitAttendanceRequest) (*models.SubmitResult, error)
	SubmitSession(ctx context.Context, actor models.Actor, sessionID string) (*models.SubmitResult, error)
}

type recordStatusRequest struct {
	Status string `json:"status"`
}

// AttendanceHandler exposes the session lifecycle.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// OpenSession godoc
// @Summary Get or create the session of an entry on a date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.SessionRequest true "Entry and date"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions [post]
func (h *AttendanceHandler) OpenSession(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "attendance")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session payload"))
		return
	}
	session, err := h.service.GetOrCreateSession(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// GetSession godoc
// @Summary Session detail with records
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions/{id} [get]
func (h *AttendanceHandler) GetSession(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "attendance")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	detail, err := h.service.GetSession(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// UpsertRecord godoc
// @Summary Set one student's status while the session is open
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId path string true "Student ID"
// @Param payload body recordStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/sessions/{id}/records/{studentId} [put]
func (h *AttendanceHandler) UpsertRecord(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "attendance")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req recordStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid attendance payload"))
		return
	}
	outcome, err := h.service.UpsertRecord(c.Request.Context(), actor, c.Param("id"), c.Param("studentId"), models.AttendanceStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, outcome)
}

// Mark godoc
// @Summary Bulk mark attendance for an open session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkAttendanceRequest true "Entry, date and items"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/mark [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "attendance")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid attendance payload"))
		return
	}
	result, err := h.service.BulkMark(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Submit godoc
// @Summary Lock a session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.SubmitAttendanceRequest true "Session or entry and date"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/submit [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "attendance")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submit payload"))
		return
	}
	result, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// SubmitSession godoc
// @Summary Lock a session by id
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/sessions/{id}/submit [post]
func (h *AttendanceHandler) SubmitSession(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "attendance")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.SubmitSession(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
