package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/analytics"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// AnalyticsService computes read-only reports from committed state.
type AnalyticsService struct {
	exams      ExamStore
	questions  QuestionSource
	sessions   SessionStore
	results    ResultStore
	violations ViolationStore
	directory  Directory
	now        func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(
	exams ExamStore,
	questions QuestionSource,
	sessions SessionStore,
	results ResultStore,
	violations ViolationStore,
	directory Directory,
) *AnalyticsService {
	return &AnalyticsService{
		exams:      exams,
		questions:  questions,
		sessions:   sessions,
		results:    results,
		violations: violations,
		directory:  directory,
		now:        time.Now,
	}
}

// LiveCounts returns the participation snapshot of an exam.
func (s *AnalyticsService) LiveCounts(ctx context.Context, examID uuid.UUID) (*model.LiveCounts, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	counts, _, err := s.counts(ctx, exam)
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

func (s *AnalyticsService) counts(ctx context.Context, exam *model.Exam) (model.LiveCounts, []model.Result, error) {
	students, err := s.directory.ListStudents(ctx, exam.AllowedGroups, exam.AllowedSubgroups)
	if err != nil {
		return model.LiveCounts{}, nil, fmt.Errorf("list students: %w", err)
	}
	sessions, err := s.sessions.ListByExam(ctx, exam.ID, false)
	if err != nil {
		return model.LiveCounts{}, nil, fmt.Errorf("list sessions: %w", err)
	}
	results, err := s.results.ListByExam(ctx, exam.ID)
	if err != nil {
		return model.LiveCounts{}, nil, fmt.Errorf("list results: %w", err)
	}
	return analytics.Counts(students, sessions, results), results, nil
}

// ExamAnalytics builds the full report for one exam.
func (s *AnalyticsService) ExamAnalytics(ctx context.Context, examID uuid.UUID) (*model.ExamAnalytics, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	counts, results, err := s.counts(ctx, exam)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListForExam(ctx, exam)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	scores := analytics.Scores(results)
	perQuestion := analytics.QuestionStats(results, questions)
	return &model.ExamAnalytics{
		ExamID:       examID,
		Counts:       counts,
		Distribution: analytics.Distribution(results),
		AverageScore: analytics.Mean(scores),
		MedianScore:  analytics.Median(scores),
		Questions:    perQuestion,
		Topics:       analytics.TopicStats(perQuestion),
		Fastest:      analytics.FastestOverall(results),
		GeneratedAt:  s.now(),
	}, nil
}

// IntegrityReport returns the fleet-wide cheating-risk summary.
func (s *AnalyticsService) IntegrityReport(ctx context.Context) (*model.IntegrityReport, error) {
	participants, err := s.sessions.ListParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	byType, err := s.violations.CountByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}
	rep := analytics.Integrity(participants, byType)
	rep.GeneratedAt = s.now()
	return &rep, nil
}

func (s *AnalyticsService) getExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}
