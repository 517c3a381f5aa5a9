package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// ProctorService holds the staff-side actions on running exams.
type ProctorService struct {
	exams            ExamStore
	sessions         SessionStore
	violations       ViolationStore
	finalizer        ExamFinalizer
	publisher        Publisher
	defaultThreshold int
	log              zerolog.Logger
	now              func() time.Time
}

// NewProctorService creates a new ProctorService.
func NewProctorService(
	exams ExamStore,
	sessions SessionStore,
	violations ViolationStore,
	finalizer ExamFinalizer,
	publisher Publisher,
	defaultThreshold int,
	log zerolog.Logger,
) *ProctorService {
	return &ProctorService{
		exams:            exams,
		sessions:         sessions,
		violations:       violations,
		finalizer:        finalizer,
		publisher:        publisher,
		defaultThreshold: defaultThreshold,
		log:              log.With().Str("component", "proctor_service").Logger(),
		now:              time.Now,
	}
}

// ResumeSuspended lets a suspended student continue. Any result produced by
// an auto-submission is deleted and the violation count drops to one below
// the threshold. An exam that has ended or been finalized cannot be resumed.
func (s *ProctorService) ResumeSuspended(ctx context.Context, p *model.Principal, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	if !p.IsStaff() {
		return nil, ErrNotAuthorized
	}
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.ResultsFinalized || !s.now().Before(exam.EndTime) {
		return nil, ErrExamNotOpen
	}

	count := exam.Threshold(s.defaultThreshold) - 1
	if count < 0 {
		count = 0
	}

	session, err := s.sessions.Reinstate(ctx, examID, studentID, count)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrSessionNotFound
	case errors.Is(err, repository.ErrConflict):
		return nil, ErrSessionNotSuspended
	case errors.Is(err, repository.ErrExamFinalized):
		return nil, ErrExamNotOpen
	case err != nil:
		return nil, fmt.Errorf("reinstate session: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Int("by", p.UserID).
		Msg("Session resumed from suspension")

	payload := model.SessionEventPayload{StudentID: studentID, ExamID: examID, ViolationCount: &count}
	s.publisher.Publish(config.CacheKey.ExamMonitorChannel(examID.String()), model.EventSessionUnsuspended, payload)
	s.publisher.Publish(config.CacheKey.GlobalMonitorChannel(), model.EventSessionUnsuspended, payload)
	return session, nil
}

// EndExamNow closes a running exam immediately and finalizes it. Only the
// exam creator or an admin may do this.
func (s *ProctorService) EndExamNow(ctx context.Context, p *model.Principal, examID uuid.UUID) (*FinalizeReport, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if p.Role != model.RoleAdmin && !(p.Role == model.RoleTeacher && exam.AuthorID == p.UserID) {
		return nil, ErrNotExamOwner
	}
	if exam.ResultsFinalized {
		return nil, ErrExamNotOpen
	}

	now := s.now()
	if err := s.exams.CloseNow(ctx, examID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrExamNotOpen
		}
		return nil, fmt.Errorf("close exam: %w", err)
	}

	payload := model.ExamEventPayload{ExamID: examID, ClosedBy: p.UserID}
	s.publisher.Publish(config.CacheKey.ExamMonitorChannel(examID.String()), model.EventExamClosedManually, payload)
	s.publisher.Publish(config.CacheKey.GlobalMonitorChannel(), model.EventExamClosedManually, payload)

	if now.Before(exam.EndTime) {
		exam.EndTime = now
	}
	report, err := s.finalizer.FinalizeExam(ctx, exam)
	if err != nil {
		// The sweeper retries on its next tick since the exam is past its end time.
		s.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Finalization after manual close failed")
		return nil, fmt.Errorf("finalize exam: %w", err)
	}
	return report, nil
}

// ListSessions returns every session of the exam.
func (s *ProctorService) ListSessions(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	if _, err := s.getExam(ctx, examID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByExam(ctx, examID, false)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}
	return sessions, nil
}

// ListViolations returns the exam's violation log.
func (s *ProctorService) ListViolations(ctx context.Context, examID uuid.UUID) ([]model.Violation, error) {
	if _, err := s.getExam(ctx, examID); err != nil {
		return nil, err
	}
	violations, err := s.violations.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	if violations == nil {
		violations = []model.Violation{}
	}
	return violations, nil
}

func (s *ProctorService) getExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}
