package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// Per-question state keyed by question id as submitted by the client.
type (
	AnswerMap    map[string]int
	TimeSpentMap map[string]int
	FlaggedMap   map[string]bool
)

// ExamSession represents a student's exam attempt. At most one exists per
// (student, exam) pair.
type ExamSession struct {
	ID             uuid.UUID     `json:"id"`
	ExamID         uuid.UUID     `json:"exam_id"`
	StudentID      int           `json:"student_id"`
	StartedAt      time.Time     `json:"started_at"`
	LastSyncAt     time.Time     `json:"last_sync_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Answers        AnswerMap     `json:"answers"`
	TimeSpent      TimeSpentMap  `json:"time_spent"`
	Flagged        FlaggedMap    `json:"flagged"`
	Status         SessionStatus `json:"status"`
	ViolationCount int           `json:"violation_count"`
	IsSuspended    bool          `json:"is_suspended"`
}

// IsLive reports whether the session still accepts progress.
func (s *ExamSession) IsLive() bool {
	return s.Status == SessionStatusInProgress && !s.IsSuspended
}

// Clone returns a deep copy so callers cannot mutate shared map state.
func (s *ExamSession) Clone() *ExamSession {
	c := *s
	c.Answers = make(AnswerMap, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	c.TimeSpent = make(TimeSpentMap, len(s.TimeSpent))
	for k, v := range s.TimeSpent {
		c.TimeSpent[k] = v
	}
	c.Flagged = make(FlaggedMap, len(s.Flagged))
	for k, v := range s.Flagged {
		c.Flagged[k] = v
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// ProgressRequest is the payload of a progress sync. Maps replace the stored
// ones wholesale (last sync wins).
type ProgressRequest struct {
	Answers   AnswerMap    `json:"answers" binding:"omitempty,dive,keys,required,uuid,endkeys,min=0"`
	TimeSpent TimeSpentMap `json:"time_spent" binding:"omitempty,dive,keys,required,uuid,endkeys,min=0"`
	Flagged   FlaggedMap   `json:"flagged" binding:"omitempty,dive,keys,required,uuid,endkeys"`
}

// SubmitRequest is the payload of a final submission.
type SubmitRequest struct {
	Answers AnswerMap `json:"answers" binding:"omitempty,dive,keys,required,uuid,endkeys,min=0"`
}

// SessionState is what a resuming client needs to restore its UI.
type SessionState struct {
	Session          *ExamSession `json:"session"`
	ServerTime       time.Time    `json:"server_time"`
	RemainingSeconds float64      `json:"remaining_seconds"`
}
