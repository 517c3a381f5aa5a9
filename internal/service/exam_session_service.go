package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/analytics"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/scoring"
)

// StartOutcome is what a student receives when entering an exam.
type StartOutcome struct {
	Session    *model.ExamSession `json:"session"`
	Created    bool               `json:"created"`
	Suspended  bool               `json:"suspended"`
	ServerTime time.Time          `json:"server_time"`
	Paper      *model.ExamPaper   `json:"paper,omitempty"`
}

// ExamSessionService owns the exam session state machine.
type ExamSessionService struct {
	exams     ExamStore
	questions QuestionSource
	sessions  SessionStore
	results   ResultStore
	publisher Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	exams ExamStore,
	questions QuestionSource,
	sessions SessionStore,
	results ResultStore,
	publisher Publisher,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		exams:     exams,
		questions: questions,
		sessions:  sessions,
		results:   results,
		publisher: publisher,
		log:       log.With().Str("component", "session_service").Logger(),
		now:       time.Now,
	}
}

// Start enters a student into an exam, creating the session on first call and
// resuming it afterwards.
func (s *ExamSessionService) Start(ctx context.Context, p *model.Principal, examID uuid.UUID) (*StartOutcome, error) {
	submitted, err := s.results.Exists(ctx, examID, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("check result: %w", err)
	}
	if submitted {
		return nil, ErrAlreadySubmitted
	}

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessions.Get(ctx, examID, p.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		return s.resume(ctx, exam, existing, false)
	}

	now := s.now()
	if err := checkAdmission(exam, p, now); err != nil {
		return nil, err
	}

	session := &model.ExamSession{
		ExamID:    examID,
		StudentID: p.UserID,
		StartedAt: now,
	}
	created, err := s.sessions.CreateIfAbsent(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if !created {
		s.log.Debug().
			Str("exam_id", examID.String()).
			Int("student_id", p.UserID).
			Msg("Concurrent start detected, resuming winner's session")
	}
	return s.resume(ctx, exam, session, created)
}

func (s *ExamSessionService) resume(ctx context.Context, exam *model.Exam, session *model.ExamSession, created bool) (*StartOutcome, error) {
	if session.Status == model.SessionStatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	out := &StartOutcome{
		Session:    session,
		Created:    created,
		Suspended:  session.IsSuspended,
		ServerTime: s.now(),
	}
	if out.Suspended {
		return out, nil
	}

	questions, err := s.questions.ListForExam(ctx, exam)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	out.Paper = model.NewExamPaper(exam, questions)
	return out, nil
}

func checkAdmission(exam *model.Exam, p *model.Principal, now time.Time) error {
	if exam.Status != model.ExamStatusPublished {
		return ErrExamNotPublished
	}
	if now.Before(exam.StartTime) {
		return ErrExamNotStarted
	}
	if now.After(exam.EndTime) {
		return ErrExamExpired
	}
	if p.Role != model.RoleStudent || !exam.AdmitsGroup(p.Group, p.Subgroup) {
		return ErrNotEligible
	}
	return nil
}

// UpdateProgress replaces the stored answer, time and flag maps of a live
// session with the ones in req. The latest sync wins.
func (s *ExamSessionService) UpdateProgress(ctx context.Context, studentID int, examID uuid.UUID, req *model.ProgressRequest) (*model.ExamSession, error) {
	session, err := s.sessions.ReplaceProgress(ctx, examID, studentID, req.Answers, req.TimeSpent, req.Flagged, s.now())
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("save progress: %w", err)
	}
	return nil, s.whyNotLive(ctx, examID, studentID)
}

// whyNotLive turns a conditional write that matched nothing into the error
// kind describing the session's actual state.
func (s *ExamSessionService) whyNotLive(ctx context.Context, examID uuid.UUID, studentID int) error {
	session, err := s.sessions.Get(ctx, examID, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	switch {
	case session.Status == model.SessionStatusCompleted:
		return ErrAlreadyCompleted
	case session.IsSuspended:
		return ErrSessionSuspended
	}
	// Session became live again between the write and the read.
	return fmt.Errorf("session changed concurrently: %w", ErrValidation)
}

// Submit scores answers and finalizes the attempt. A nil answers map submits
// the last synced answers. Suspended sessions may still be submitted; the
// result records the suspension.
func (s *ExamSessionService) Submit(ctx context.Context, studentID int, examID uuid.UUID, answers model.AnswerMap) (*model.Result, error) {
	submitted, err := s.results.Exists(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check result: %w", err)
	}
	if submitted {
		return nil, ErrAlreadySubmitted
	}

	session, err := s.sessions.Get(ctx, examID, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.Status == model.SessionStatusCompleted {
		// A completed session always has a result; the sweeper won the race.
		return nil, ErrAlreadySubmitted
	}

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListForExam(ctx, exam)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	if answers == nil {
		answers = session.Answers
	}
	result, ok, err := s.finalize(ctx, session, answers, questions, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadySubmitted
	}
	return result, nil
}

// AutoSubmit finalizes a live session from its last synced answers. It
// reports false without error when a result already existed.
func (s *ExamSessionService) AutoSubmit(ctx context.Context, session *model.ExamSession, questions []model.Question) (bool, error) {
	_, ok, err := s.finalize(ctx, session, session.Answers, questions, true)
	return ok, err
}

func (s *ExamSessionService) finalize(
	ctx context.Context,
	session *model.ExamSession,
	answers model.AnswerMap,
	questions []model.Question,
	auto bool,
) (*model.Result, bool, error) {
	outcome := scoring.Score(answers, session.TimeSpent, questions)
	result := &model.Result{
		ExamID:        session.ExamID,
		StudentID:     session.StudentID,
		Score:         outcome.Score,
		TotalPoints:   outcome.TotalPoints,
		Answers:       outcome.Answers,
		AutoSubmitted: auto,
		SubmittedAt:   s.now(),
	}

	ok, err := s.sessions.Finalize(ctx, result)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, ErrSessionNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("finalize attempt: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	s.publisher.Publish(config.CacheKey.ExamMonitorChannel(session.ExamID.String()), model.EventSessionSubmitted,
		model.SessionEventPayload{
			StudentID:     result.StudentID,
			ExamID:        result.ExamID,
			Score:         &result.Score,
			TotalPoints:   &result.TotalPoints,
			AutoSubmitted: auto,
		})
	return result, true, nil
}

// GetSessionState returns the session with the server clock and the seconds
// the student has left.
func (s *ExamSessionService) GetSessionState(ctx context.Context, studentID int, examID uuid.UUID) (*model.SessionState, error) {
	session, err := s.sessions.Get(ctx, examID, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	state := &model.SessionState{Session: session, ServerTime: now}
	if session.Status == model.SessionStatusInProgress {
		if left := exam.Deadline(session.StartedAt).Sub(now).Seconds(); left > 0 {
			state.RemainingSeconds = left
		}
	}
	return state, nil
}

// GetResult returns the student's result with rank and percentile among all
// results of the exam.
func (s *ExamSessionService) GetResult(ctx context.Context, studentID int, examID uuid.UUID) (*model.StudentResult, error) {
	result, err := s.results.Get(ctx, examID, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	all, err := s.results.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	rank, n := analytics.Rank(all, studentID)
	return &model.StudentResult{
		Result:       *result,
		Rank:         rank,
		Participants: n,
		Percentile:   analytics.Percentile(rank, n),
	}, nil
}

func (s *ExamSessionService) getExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}
