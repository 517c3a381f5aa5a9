package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// StudentExamHandler handles the student side of an exam attempt.
type StudentExamHandler struct {
	sessionService   *service.ExamSessionService
	violationService *service.ViolationService
	log              zerolog.Logger
}

// NewStudentExamHandler creates a new StudentExamHandler.
func NewStudentExamHandler(
	sessionService *service.ExamSessionService,
	violationService *service.ViolationService,
	log zerolog.Logger,
) *StudentExamHandler {
	return &StudentExamHandler{
		sessionService:   sessionService,
		violationService: violationService,
		log:              log.With().Str("component", "student_exam_handler").Logger(),
	}
}

// StartExam godoc
// POST /api/v1/student/exams/:exam_id/start
// Creates the session on first call (201) and resumes it afterwards (200).
func (h *StudentExamHandler) StartExam(c *gin.Context) {
	p, examID, ok := studentAndExam(c)
	if !ok {
		return
	}

	out, err := h.sessionService.Start(c.Request.Context(), p, examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	response.Success(c, status, out)
}

// UpdateProgress godoc
// PUT /api/v1/student/exams/:exam_id/progress
func (h *StudentExamHandler) UpdateProgress(c *gin.Context) {
	p, examID, ok := studentAndExam(c)
	if !ok {
		return
	}

	var req model.ProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.UpdateProgress(c.Request.Context(), p.UserID, examID, &req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// SubmitExam godoc
// POST /api/v1/student/exams/:exam_id/submit
// An empty body submits the last synced answers.
func (h *StudentExamHandler) SubmitExam(c *gin.Context) {
	p, examID, ok := studentAndExam(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	result, err := h.sessionService.Submit(c.Request.Context(), p.UserID, examID, req.Answers)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// RecordViolation godoc
// POST /api/v1/student/exams/:exam_id/violations
func (h *StudentExamHandler) RecordViolation(c *gin.Context) {
	p, examID, ok := studentAndExam(c)
	if !ok {
		return
	}

	var req model.RecordViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.violationService.Record(c.Request.Context(), p.UserID, examID, &req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, out)
}

// GetExamState godoc
// GET /api/v1/student/exams/:exam_id/state
// Lets a reloaded client restore answers and the remaining time.
func (h *StudentExamHandler) GetExamState(c *gin.Context) {
	p, examID, ok := studentAndExam(c)
	if !ok {
		return
	}

	state, err := h.sessionService.GetSessionState(c.Request.Context(), p.UserID, examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/result
func (h *StudentExamHandler) GetResult(c *gin.Context) {
	p, examID, ok := studentAndExam(c)
	if !ok {
		return
	}

	result, err := h.sessionService.GetResult(c.Request.Context(), p.UserID, examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// studentAndExam extracts the caller and the :exam_id parameter, writing the
// error response itself when either is missing.
func studentAndExam(c *gin.Context) (*model.Principal, uuid.UUID, bool) {
	p := middleware.GetPrincipal(c)
	if p == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return p, examID, true
}
