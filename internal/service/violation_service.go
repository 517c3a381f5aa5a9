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

// ViolationService records integrity violations and suspends sessions that
// reach the exam's threshold.
type ViolationService struct {
	exams            ExamStore
	sessions         SessionStore
	violations       ViolationStore
	publisher        Publisher
	defaultThreshold int
	log              zerolog.Logger
	now              func() time.Time
}

// NewViolationService creates a new ViolationService.
func NewViolationService(
	exams ExamStore,
	sessions SessionStore,
	violations ViolationStore,
	publisher Publisher,
	defaultThreshold int,
	log zerolog.Logger,
) *ViolationService {
	return &ViolationService{
		exams:            exams,
		sessions:         sessions,
		violations:       violations,
		publisher:        publisher,
		defaultThreshold: defaultThreshold,
		log:              log.With().Str("component", "violation_service").Logger(),
		now:              time.Now,
	}
}

// Record logs a violation against the student's live session.
func (s *ViolationService) Record(ctx context.Context, studentID int, examID uuid.UUID, req *model.RecordViolationRequest) (*model.ViolationOutcome, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	threshold := exam.Threshold(s.defaultThreshold)

	v := &model.Violation{
		ExamID:    examID,
		StudentID: studentID,
		Type:      req.Type,
		Message:   req.Message,
		CreatedAt: s.now(),
	}
	count, crossed, err := s.violations.Record(ctx, v, threshold)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.notRecordable(ctx, examID, studentID)
	}
	if err != nil {
		return nil, fmt.Errorf("record violation: %w", err)
	}

	if crossed {
		s.log.Info().
			Str("exam_id", examID.String()).
			Int("student_id", studentID).
			Int("violations", count).
			Msg("Session suspended")

		payload := model.SessionEventPayload{StudentID: studentID, ExamID: examID, ViolationCount: &count}
		s.publisher.Publish(config.CacheKey.ExamMonitorChannel(examID.String()), model.EventSessionSuspended, payload)
		s.publisher.Publish(config.CacheKey.GlobalMonitorChannel(), model.EventSessionSuspended, payload)
	}

	return &model.ViolationOutcome{
		Violation:      v,
		ViolationCount: count,
		Threshold:      threshold,
		Suspended:      crossed,
	}, nil
}

func (s *ViolationService) notRecordable(ctx context.Context, examID uuid.UUID, studentID int) error {
	session, err := s.sessions.Get(ctx, examID, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session.Status == model.SessionStatusCompleted {
		return ErrAlreadyCompleted
	}
	if session.IsSuspended {
		return ErrSessionSuspended
	}
	return fmt.Errorf("session changed concurrently: %w", ErrValidation)
}
