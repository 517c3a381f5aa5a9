package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   response.ErrCode
		known  bool
	}{
		{service.ErrExamNotStarted, http.StatusForbidden, response.ErrExamNotStarted, true},
		{service.ErrExamNotPublished, http.StatusForbidden, response.ErrExamNotPublished, true},
		{service.ErrNotEligible, http.StatusForbidden, response.ErrNotEligible, true},
		{service.ErrNotAuthorized, http.StatusForbidden, response.ErrForbidden, true},
		{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound, true},
		{fmt.Errorf("load: %w", service.ErrExamNotFound), http.StatusNotFound, response.ErrExamNotFound, true},
		{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound, true},
		{service.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted, true},
		{service.ErrExamExpired, http.StatusGone, response.ErrExamExpired, true},
		{service.ErrSessionNotSuspended, http.StatusConflict, response.ErrSessionNotSuspended, true},
		{service.ErrValidation, http.StatusBadRequest, response.ErrValidation, true},
		{errors.New("connection reset"), http.StatusInternalServerError, response.ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code, known := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestRelevantEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"own suspension", `{"type":"session-suspended","data":{"student_id":7}}`, true},
		{"other student", `{"type":"session-unsuspended","data":{"student_id":8}}`, false},
		{"exam closed", `{"type":"exam-closed-manually","data":{"exam_id":"x"}}`, true},
		{"exam finalized", `{"type":"exam-finalized","data":{}}`, true},
		{"unknown type", `{"type":"ping"}`, false},
		{"garbage", `not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := relevantEvent([]byte(tt.payload), 7)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.NotEmpty(t, ev.Type)
			}
		})
	}

	ev, ok := relevantEvent([]byte(`{"type":"session-submitted","data":{"student_id":7,"score":3}}`), 7)
	assert.True(t, ok)
	assert.Equal(t, model.EventSessionSubmitted, ev.Type)
	assert.JSONEq(t, `{"student_id":7,"score":3}`, string(ev.Data))
}
