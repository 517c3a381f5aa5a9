package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerRecord is one frozen per-question line of a Result.
type AnswerRecord struct {
	QuestionID     string `json:"question_id"`
	SelectedOption int    `json:"selected_option"`
	IsCorrect      bool   `json:"is_correct"`
	TimeSpent      int    `json:"time_spent"`
}

// Result is the finalized scoring record. At most one exists per (student, exam).
type Result struct {
	ID            uuid.UUID      `json:"id"`
	ExamID        uuid.UUID      `json:"exam_id"`
	StudentID     int            `json:"student_id"`
	Score         int            `json:"score"`
	TotalPoints   int            `json:"total_points"`
	Answers       []AnswerRecord `json:"answers"`
	WasSuspended  bool           `json:"was_suspended"`
	AutoSubmitted bool           `json:"auto_submitted"`
	SubmittedAt   time.Time      `json:"submitted_at"`
}

// Percentage returns the score as a 0-100 value.
func (r *Result) Percentage() float64 {
	if r.TotalPoints == 0 {
		return 0
	}
	return float64(r.Score) / float64(r.TotalPoints) * 100
}

// StudentResult is a Result decorated with its standing among all results.
type StudentResult struct {
	Result
	Rank         int     `json:"rank"`
	Participants int     `json:"participants"`
	Percentile   float64 `json:"percentile"`
}
