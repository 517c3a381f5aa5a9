package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// errorMapping pairs a service error with its API code and status.
type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// Specific errors come before the kinds they wrap.
var errorMappings = []errorMapping{
	{service.ErrExamNotStarted, http.StatusForbidden, response.ErrExamNotStarted},
	{service.ErrNotEligible, http.StatusForbidden, response.ErrNotEligible},
	{service.ErrNotExamOwner, http.StatusForbidden, response.ErrNotExamOwner},
	{service.ErrInvalidToken, http.StatusUnauthorized, response.ErrTokenInvalid},
	{service.ErrSessionNotSuspended, http.StatusConflict, response.ErrSessionNotSuspended},
	{service.ErrExamNotOpen, http.StatusConflict, response.ErrExamNotOpen},
	{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
	{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
	{service.ErrResultNotFound, http.StatusNotFound, response.ErrResultNotFound},

	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
	{service.ErrAlreadyCompleted, http.StatusConflict, response.ErrAlreadyCompleted},
	{service.ErrSessionSuspended, http.StatusForbidden, response.ErrSessionSuspended},
	{service.ErrNotAuthorized, http.StatusForbidden, response.ErrForbidden},
	{service.ErrExamExpired, http.StatusGone, response.ErrExamExpired},
	{service.ErrExamNotPublished, http.StatusForbidden, response.ErrExamNotPublished},
	{service.ErrValidation, http.StatusBadRequest, response.ErrValidation},
}

// classify maps err to an API code. ok is false for unexpected errors.
func classify(err error) (status int, code response.ErrCode, ok bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, true
		}
	}
	return http.StatusInternalServerError, response.ErrInternal, false
}

// failFromError writes the error response for a service error. Unexpected
// errors are logged and reported as INTERNAL_ERROR.
func failFromError(c *gin.Context, log zerolog.Logger, err error) {
	status, code, ok := classify(err)
	if !ok {
		log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString(response.ContextKeyRequestID)).
			Msg("Unhandled service error")
	}
	response.Fail(c, status, code)
}
