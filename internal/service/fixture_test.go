package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/notify"
	"github.com/stemsi/exstem-proctor/internal/repository/memstore"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

type fixture struct {
	store      *memstore.Store
	events     *notify.Recorder
	sessions   *service.ExamSessionService
	violations *service.ViolationService
	proctor    *service.ProctorService
	analytics  *service.AnalyticsService
	sweeper    *worker.ExpirationSweeper
	exam       model.Exam
	questions  []model.Question
}

func student(id int) *model.Principal {
	return &model.Principal{UserID: id, Role: model.RoleStudent, Group: "XII", Subgroup: "IPA-1"}
}

// newFixture seeds a published, running exam with three questions whose
// correct options are 1, 2 and 0.
func newFixture(t *testing.T, threshold int) *fixture {
	t.Helper()

	store := memstore.New()
	events := &notify.Recorder{}
	log := zerolog.Nop()

	qs := []model.Question{
		{ID: uuid.New(), QuestionText: "q1", Options: []string{"a", "b", "c"}, CorrectOption: 1, Subject: "math"},
		{ID: uuid.New(), QuestionText: "q2", Options: []string{"a", "b", "c"}, CorrectOption: 2, Subject: "math"},
		{ID: uuid.New(), QuestionText: "q3", Options: []string{"a", "b", "c"}, CorrectOption: 0, Subject: "physics"},
	}
	store.PutQuestions(qs...)

	now := time.Now()
	exam := model.Exam{
		ID:              uuid.New(),
		Title:           "Midterm",
		AuthorID:        100,
		QuestionIDs:     []uuid.UUID{qs[0].ID, qs[1].ID, qs[2].ID},
		DurationMinutes: 60,
		StartTime:       now.Add(-10 * time.Minute),
		EndTime:         now.Add(50 * time.Minute),
		Status:          model.ExamStatusPublished,
		AllowedGroups:   []string{"XII"},
		Proctoring:      model.ProctoringConfig{ViolationThreshold: threshold},
	}
	store.PutExam(exam)
	store.PutStudents(
		model.Student{ID: 1, Group: "XII", Subgroup: "IPA-1"},
		model.Student{ID: 2, Group: "XII", Subgroup: "IPA-1"},
		model.Student{ID: 3, Group: "XII", Subgroup: "IPA-2"},
	)

	sessions := service.NewExamSessionService(store.Exams(), store.Questions(), store.Sessions(), store.Results(), events, log)
	sweeper := worker.NewExpirationSweeper(store.Exams(), store.Questions(), store.Sessions(), sessions, events, time.Minute, log)

	return &fixture{
		store:      store,
		events:     events,
		sessions:   sessions,
		violations: service.NewViolationService(store.Exams(), store.Sessions(), store.Violations(), events, model.DefaultViolationThreshold, log),
		proctor:    service.NewProctorService(store.Exams(), store.Sessions(), store.Violations(), sweeper, events, model.DefaultViolationThreshold, log),
		analytics:  service.NewAnalyticsService(store.Exams(), store.Questions(), store.Sessions(), store.Results(), store.Violations(), store.Directory()),
		sweeper:    sweeper,
		exam:       exam,
		questions:  qs,
	}
}

func (f *fixture) qid(i int) string { return f.questions[i].ID.String() }

// expire moves the exam end time into the past.
func (f *fixture) expire() {
	e := f.exam
	e.EndTime = time.Now().Add(-time.Second)
	f.store.PutExam(e)
	f.exam = e
}
