package worker

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
	"github.com/stemsi/exstem-proctor/internal/service"
)

// SessionFinalizer auto-submits one live session through the same scoring
// path as a manual submission.
type SessionFinalizer interface {
	AutoSubmit(ctx context.Context, session *model.ExamSession, questions []model.Question) (bool, error)
}

// QuestionEvictor is implemented by question sources that cache; the
// sweeper drops an exam's cached set once its results are final.
type QuestionEvictor interface {
	Invalidate(ctx context.Context, examID uuid.UUID) error
}

// ExpirationSweeper finalizes exams whose end time has passed. Every step is
// guarded by a conditional write, so a restarted or duplicated sweeper
// only repeats work that never committed.
type ExpirationSweeper struct {
	exams     service.ExamStore
	questions service.QuestionSource
	sessions  service.SessionStore
	finalizer SessionFinalizer
	publisher service.Publisher
	interval  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewExpirationSweeper creates a new ExpirationSweeper.
func NewExpirationSweeper(
	exams service.ExamStore,
	questions service.QuestionSource,
	sessions service.SessionStore,
	finalizer SessionFinalizer,
	publisher service.Publisher,
	interval time.Duration,
	log zerolog.Logger,
) *ExpirationSweeper {
	return &ExpirationSweeper{
		exams:     exams,
		questions: questions,
		sessions:  sessions,
		finalizer: finalizer,
		publisher: publisher,
		interval:  interval,
		log:       log.With().Str("component", "expiration_sweeper").Logger(),
		now:       time.Now,
	}
}

// Start runs a sweep every interval until ctx is cancelled.
func (w *ExpirationSweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpirationSweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpirationSweeper stopped")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce finalizes every expired, unfinalized exam and returns how many
// were finalized. Failures are logged per exam and retried next tick.
func (w *ExpirationSweeper) SweepOnce(ctx context.Context) int {
	exams, err := w.exams.ListExpiredUnfinalized(ctx, w.now())
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to list expired exams")
		return 0
	}
	if len(exams) == 0 {
		return 0
	}

	finalized := 0
	for i := range exams {
		if ctx.Err() != nil {
			return finalized
		}
		report, err := w.FinalizeExam(ctx, &exams[i])
		if err != nil {
			w.log.Error().Err(err).Str("exam_id", exams[i].ID.String()).Msg("Exam finalization failed, will retry")
			continue
		}
		if report.Finalized {
			finalized++
		}
	}

	w.log.Info().
		Int("expired", len(exams)).
		Int("finalized", finalized).
		Msg("Sweep complete")
	return finalized
}

// FinalizeExam auto-submits every in-progress session of exam and then marks
// the exam finalized. If any session fails the exam is left unfinalized so
// the next sweep retries the remaining sessions.
func (w *ExpirationSweeper) FinalizeExam(ctx context.Context, exam *model.Exam) (*service.FinalizeReport, error) {
	report := &service.FinalizeReport{ExamID: exam.ID}

	questions, err := w.questions.ListForExam(ctx, exam)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	sessions, err := w.sessions.ListByExam(ctx, exam.ID, true)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	for i := range sessions {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sess := &sessions[i]
		ok, err := w.finalizer.AutoSubmit(ctx, sess, questions)
		if err != nil {
			report.FailedSessions++
			w.log.Error().
				Err(err).
				Str("exam_id", exam.ID.String()).
				Int("student_id", sess.StudentID).
				Msg("Auto-submit failed")
			continue
		}
		if ok {
			report.AutoSubmitted++
		} else {
			report.Skipped++
		}
	}

	if report.FailedSessions > 0 {
		w.log.Warn().
			Str("exam_id", exam.ID.String()).
			Int("failed", report.FailedSessions).
			Msg("Exam left unfinalized")
		return report, nil
	}

	marked, err := w.exams.MarkFinalized(ctx, exam.ID)
	if errors.Is(err, repository.ErrConflict) {
		// A session was reopened after the listing above.
		w.log.Warn().
			Str("exam_id", exam.ID.String()).
			Msg("Exam still has live sessions, left unfinalized")
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark finalized: %w", err)
	}
	report.Finalized = true
	if !marked {
		// Another sweeper got there first and already announced it.
		return report, nil
	}

	if ev, ok := w.questions.(QuestionEvictor); ok {
		if err := ev.Invalidate(ctx, exam.ID); err != nil {
			w.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to evict cached questions")
		}
	}

	w.publisher.Publish(config.CacheKey.ExamMonitorChannel(exam.ID.String()), model.EventExamFinalized,
		model.ExamEventPayload{ExamID: exam.ID, AutoSubmitted: report.AutoSubmitted})

	w.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("auto_submitted", report.AutoSubmitted).
		Int("skipped", report.Skipped).
		Msg("Exam finalized")
	return report, nil
}
