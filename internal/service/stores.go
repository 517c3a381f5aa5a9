package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ExamStore reads exams and applies the lifecycle writes this core owns.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListExpiredUnfinalized(ctx context.Context, now time.Time) ([]model.Exam, error)
	CloseNow(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFinalized(ctx context.Context, id uuid.UUID) (bool, error)
}

// QuestionSource yields an exam's ordered question set with answer keys.
type QuestionSource interface {
	ListForExam(ctx context.Context, exam *model.Exam) ([]model.Question, error)
}

// SessionStore persists exam sessions. CreateIfAbsent, Finalize and
// Reinstate are atomic conditional writes keyed on (exam, student).
type SessionStore interface {
	Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error)
	CreateIfAbsent(ctx context.Context, s *model.ExamSession) (bool, error)
	ReplaceProgress(ctx context.Context, examID uuid.UUID, studentID int,
		answers model.AnswerMap, timeSpent model.TimeSpentMap, flagged model.FlaggedMap, at time.Time) (*model.ExamSession, error)
	Finalize(ctx context.Context, result *model.Result) (bool, error)
	Reinstate(ctx context.Context, examID uuid.UUID, studentID int, violationCount int) (*model.ExamSession, error)
	ListByExam(ctx context.Context, examID uuid.UUID, onlyInProgress bool) ([]model.ExamSession, error)
	ListParticipants(ctx context.Context) ([]model.Participant, error)
}

// ResultStore reads finalized results.
type ResultStore interface {
	Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.Result, error)
	Exists(ctx context.Context, examID uuid.UUID, studentID int) (bool, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error)
}

// ViolationStore owns the violation log and the per-session counter.
type ViolationStore interface {
	Record(ctx context.Context, v *model.Violation, threshold int) (count int, crossed bool, err error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Violation, error)
	CountByType(ctx context.Context) (map[model.ViolationType]int, error)
}

// Directory lists the students an exam is open to.
type Directory interface {
	ListStudents(ctx context.Context, groups, subgroups []string) ([]model.Student, error)
}

// Publisher is the notification fanout. Publish must not block and never
// reports failure to the caller.
type Publisher interface {
	Publish(channel string, event model.EventName, payload any)
}

// ExamFinalizer auto-submits every live session of an exam and marks it
// finalized.
type ExamFinalizer interface {
	FinalizeExam(ctx context.Context, exam *model.Exam) (*FinalizeReport, error)
}

// FinalizeReport summarises one exam finalization.
type FinalizeReport struct {
	ExamID         uuid.UUID `json:"exam_id"`
	AutoSubmitted  int       `json:"auto_submitted"`
	Skipped        int       `json:"skipped"`
	FailedSessions int       `json:"failed_sessions"`
	Finalized      bool      `json:"finalized"`
}
