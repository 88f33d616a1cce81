package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/umi-schedule-api/internal/dto"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
	"github.com/noah-isme/umi-schedule-api/pkg/response"
)

type editRequestService interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateEditRequest) ([]models.EditRequest, error)
	Resolve(ctx context.Context, actor models.Actor, id string, req dto.ResolveEditRequest) (*models.ResolutionResult, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.EditRequest, error)
	List(ctx context.Context, actor models.Actor, query dto.EditRequestQuery) ([]models.EditRequest, error)
}

// EditRequestHandler exposes the correction workflow for locked records.
type EditRequestHandler struct {
	service editRequestService
}

// NewEditRequestHandler constructs the handler.
func NewEditRequestHandler(service editRequestService) *EditRequestHandler {
	return &EditRequestHandler{service: service}
}

// Create godoc
// @Summary Request corrections to locked records
// @Tags Attendance Edit Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateEditRequest true "Records, proposed status and reason"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/edit-requests [post]
func (h *EditRequestHandler) Create(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "edit request")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid edit request payload"))
		return
	}
	requests, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, requests)
}

// List godoc
// @Summary List edit requests
// @Tags Attendance Edit Requests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param record_id query string false "Record ID"
// @Param batch_id query string false "Batch ID"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /attendance/edit-requests [get]
func (h *EditRequestHandler) List(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "edit request")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.EditRequestQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	requests, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, requests)
}

// Get godoc
// @Summary Get an edit request
// @Tags Attendance Edit Requests
// @Produce json
// @Param id path string true "Edit request ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/edit-requests/{id} [get]
func (h *EditRequestHandler) Get(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "edit request")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	request, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}

// Resolve godoc
// @Summary Approve or reject an edit request
// @Tags Attendance Edit Requests
// @Accept json
// @Produce json
// @Param id path string true "Edit request ID"
// @Param payload body dto.ResolveEditRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/edit-requests/{id}/resolve [post]
func (h *EditRequestHandler) Resolve(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "edit request")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ResolveEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolution payload"))
		return
	}
	result, err := h.service.Resolve(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
