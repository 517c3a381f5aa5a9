package model

import (
	"time"

	"github.com/google/uuid"
)

// EventName identifies a fanout event.
type EventName string

const (
	EventSessionSubmitted   EventName = "session-submitted"
	EventSessionSuspended   EventName = "session-suspended"
	EventSessionUnsuspended EventName = "session-unsuspended"
	EventExamClosedManually EventName = "exam-closed-manually"
	EventExamFinalized      EventName = "exam-finalized"
)

// Event is the envelope written to observer channels.
type Event struct {
	Type    EventName `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"data"`
}

// SessionEventPayload identifies the attempt an event is about.
type SessionEventPayload struct {
	StudentID      int       `json:"student_id"`
	ExamID         uuid.UUID `json:"exam_id"`
	Score          *int      `json:"score,omitempty"`
	TotalPoints    *int      `json:"total_points,omitempty"`
	ViolationCount *int      `json:"violation_count,omitempty"`
	AutoSubmitted  bool      `json:"auto_submitted,omitempty"`
}

// ExamEventPayload identifies the exam an event is about.
type ExamEventPayload struct {
	ExamID         uuid.UUID `json:"exam_id"`
	ClosedBy       int       `json:"closed_by,omitempty"`
	AutoSubmitted  int       `json:"auto_submitted,omitempty"`
	FailedSessions int       `json:"failed_sessions,omitempty"`
}
