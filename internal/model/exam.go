package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusClosed    ExamStatus = "CLOSED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// DefaultViolationThreshold is used when an exam does not configure one.
const DefaultViolationThreshold = 5

// ProctoringConfig holds the integrity settings of an exam.
type ProctoringConfig struct {
	ViolationThreshold int `json:"violation_threshold"`
}

// Exam represents an exam entity.
type Exam struct {
	ID               uuid.UUID        `json:"id"`
	Title            string           `json:"title"`
	AuthorID         int              `json:"author_id"`
	QuestionIDs      []uuid.UUID      `json:"question_ids"`
	DurationMinutes  int              `json:"duration_minutes"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          time.Time        `json:"end_time"`
	Status           ExamStatus       `json:"status"`
	ResultsFinalized bool             `json:"results_finalized"`
	AllowedGroups    []string         `json:"allowed_groups"`
	AllowedSubgroups []string         `json:"allowed_subgroups"`
	Proctoring       ProctoringConfig `json:"proctoring"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Threshold returns the configured violation threshold, falling back to fallback
// (or DefaultViolationThreshold) when unset.
func (e *Exam) Threshold(fallback int) int {
	if e.Proctoring.ViolationThreshold > 0 {
		return e.Proctoring.ViolationThreshold
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultViolationThreshold
}

// AdmitsGroup reports whether a student in group/subgroup passes the eligibility
// filters. Empty filter sets are unrestricted.
func (e *Exam) AdmitsGroup(group, subgroup string) bool {
	return matchesFilter(e.AllowedGroups, group) && matchesFilter(e.AllowedSubgroups, subgroup)
}

func matchesFilter(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// ExamPaper is the student-facing exam payload (no correct answers).
type ExamPaper struct {
	ExamID    uuid.UUID            `json:"exam_id"`
	Title     string               `json:"title"`
	Duration  int                  `json:"duration_minutes"`
	EndTime   time.Time            `json:"end_time"`
	Questions []QuestionForStudent `json:"questions"`
}

// NewExamPaper strips the answer key from questions for delivery to students.
func NewExamPaper(exam *Exam, questions []Question) *ExamPaper {
	paper := &ExamPaper{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Duration:  exam.DurationMinutes,
		EndTime:   exam.EndTime,
		Questions: make([]QuestionForStudent, 0, len(questions)),
	}
	for i, q := range questions {
		paper.Questions = append(paper.Questions, QuestionForStudent{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			OrderNum:     i + 1,
		})
	}
	return paper
}

// Deadline is the latest moment a session started at startedAt may run.
func (e *Exam) Deadline(startedAt time.Time) time.Time {
	d := startedAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
	if e.DurationMinutes <= 0 || e.EndTime.Before(d) {
		return e.EndTime
	}
	return d
}
