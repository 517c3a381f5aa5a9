package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// ProctorHandler serves staff actions and reports on exams.
type ProctorHandler struct {
	proctorService   *service.ProctorService
	analyticsService *service.AnalyticsService
	log              zerolog.Logger
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(
	proctorService *service.ProctorService,
	analyticsService *service.AnalyticsService,
	log zerolog.Logger,
) *ProctorHandler {
	return &ProctorHandler{
		proctorService:   proctorService,
		analyticsService: analyticsService,
		log:              log.With().Str("component", "proctor_handler").Logger(),
	}
}

// ResumeStudent godoc
// POST /api/v1/proctor/exams/:id/students/:student_id/resume
func (h *ProctorHandler) ResumeStudent(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if p == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil || studentID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.proctorService.ResumeSuspended(c.Request.Context(), p, examID, studentID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// EndExam godoc
// POST /api/v1/proctor/exams/:id/end
// Closes the exam now and finalizes every live session.
func (h *ProctorHandler) EndExam(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if p == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	report, err := h.proctorService.EndExamNow(c.Request.Context(), p, examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// ListSessions godoc
// GET /api/v1/proctor/exams/:id/sessions
func (h *ProctorHandler) ListSessions(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sessions, err := h.proctorService.ListSessions(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// ListViolations godoc
// GET /api/v1/proctor/exams/:id/violations
func (h *ProctorHandler) ListViolations(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	violations, err := h.proctorService.ListViolations(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"violations": violations})
}

// GetAnalytics godoc
// GET /api/v1/proctor/exams/:id/analytics
func (h *ProctorHandler) GetAnalytics(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	report, err := h.analyticsService.ExamAnalytics(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// GetIntegrityReport godoc
// GET /api/v1/proctor/integrity
func (h *ProctorHandler) GetIntegrityReport(c *gin.Context) {
	report, err := h.analyticsService.IntegrityReport(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}
