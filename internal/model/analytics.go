package model

import (
	"time"

	"github.com/google/uuid"
)

// LiveCounts is the participation snapshot of one exam.
type LiveCounts struct {
	Eligible    int `json:"eligible"`
	Active      int `json:"active"`
	Suspended   int `json:"suspended"`
	Finished    int `json:"finished"`
	NotAttended int `json:"not_attended"`
}

// ScoreBucket counts results whose percentage falls in [Lower, Upper).
// The last bucket includes 100.
type ScoreBucket struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
	Count int `json:"count"`
}

// Responder identifies the quickest correct answer for a question or exam.
type Responder struct {
	StudentID   int       `json:"student_id"`
	TimeSpent   float64   `json:"time_spent"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// QuestionStat aggregates answers to one question across all results.
type QuestionStat struct {
	QuestionID   string     `json:"question_id"`
	Subject      string     `json:"subject"`
	Attempts     int        `json:"attempts"`
	Correct      int        `json:"correct"`
	Accuracy     float64    `json:"accuracy"`
	AvgTimeSpent float64    `json:"avg_time_spent"`
	Fastest      *Responder `json:"fastest_correct,omitempty"`
}

// TopicStat aggregates accuracy per subject tag.
type TopicStat struct {
	Subject  string  `json:"subject"`
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// ExamAnalytics is the on-demand report for one exam.
type ExamAnalytics struct {
	ExamID       uuid.UUID      `json:"exam_id"`
	Counts       LiveCounts     `json:"counts"`
	Distribution []ScoreBucket  `json:"distribution"`
	AverageScore float64        `json:"average_score"`
	MedianScore  float64        `json:"median_score"`
	Questions    []QuestionStat `json:"questions"`
	Topics       []TopicStat    `json:"topics"`
	Fastest      *Responder     `json:"fastest_correct,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// Participant is one (exam, student) attempt as seen by the integrity report.
type Participant struct {
	ExamID     uuid.UUID `json:"exam_id"`
	StudentID  int       `json:"student_id"`
	Violations int       `json:"violations"`
	Suspended  bool      `json:"suspended"`
}

// IntegrityReport is the fleet-wide cheating-risk summary.
type IntegrityReport struct {
	Participants    int                   `json:"participants"`
	Flagged         int                   `json:"flagged"`
	Suspended       int                   `json:"suspended"`
	TotalViolations int                   `json:"total_violations"`
	ByType          map[ViolationType]int `json:"by_type"`
	IntegrityScore  float64               `json:"integrity_score"`
	TopOffenders    []Participant         `json:"top_offenders"`
	GeneratedAt     time.Time             `json:"generated_at"`
}
