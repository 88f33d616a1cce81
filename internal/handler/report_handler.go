package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	"github.com/noah-isme/umi-schedule-api/pkg/response"
)

type attendanceReportService interface {
	PercentageFor(ctx context.Context, actor models.Actor, studentID, courseID string) (*models.StudentAttendanceSummary, error)
	CourseSummaryFor(ctx context.Context, actor models.Actor, courseID string) (*models.CourseAttendanceSummary, error)
}

// ReportHandler serves attendance rollups.
type ReportHandler struct {
	service attendanceReportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(service attendanceReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// StudentPercentage godoc
// @Summary Attendance percentage of a student in a course
// @Tags Reports
// @Produce json
// @Param studentId path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance/students/{studentId}/courses/{courseId} [get]
func (h *ReportHandler) StudentPercentage(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "report")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.PercentageFor(c.Request.Context(), actor, c.Param("studentId"), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// CourseSummary godoc
// @Summary Attendance rollup of every student in a course
// @Tags Reports
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance/courses/{courseId} [get]
func (h *ReportHandler) CourseSummary(c *gin.Context) {
	if h.service == nil {
		notConfigured(c, "report")
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.CourseSummaryFor(c.Request.Context(), actor, c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
