// Package memstore is an in-process implementation of the repository
// contracts. Writes that are conditional in PostgreSQL are conditional here
// too, under a single mutex, so service and worker tests exercise the same
// race semantics without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

type pairKey struct {
	examID    uuid.UUID
	studentID int
}

// Store holds every table. Use the accessor methods to get the per-table
// views that satisfy the service interfaces.
type Store struct {
	mu         sync.Mutex
	exams      map[uuid.UUID]*model.Exam
	questions  map[uuid.UUID]model.Question
	students   []model.Student
	sessions   map[pairKey]*model.ExamSession
	results    map[pairKey]*model.Result
	violations []model.Violation
	nextViolID int64

	// FailFinalize, when set, is consulted before each Finalize and may
	// return an error to simulate a failing write.
	FailFinalize func(r *model.Result) error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		exams:     make(map[uuid.UUID]*model.Exam),
		questions: make(map[uuid.UUID]model.Question),
		sessions:  make(map[pairKey]*model.ExamSession),
		results:   make(map[pairKey]*model.Result),
	}
}

// PutExam inserts or replaces an exam.
func (s *Store) PutExam(e model.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := e
	s.exams[e.ID] = &cp
}

// PutQuestions inserts questions into the bank.
func (s *Store) PutQuestions(qs ...model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		s.questions[q.ID] = q
	}
}

// PutStudents adds directory entries.
func (s *Store) PutStudents(st ...model.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students = append(s.students, st...)
}

// PutSession inserts or replaces a session as-is.
func (s *Store) PutSession(sess model.ExamSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[pairKey{sess.ExamID, sess.StudentID}] = sess.Clone()
}

// PutResult inserts or replaces a result as-is.
func (s *Store) PutResult(r model.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.results[pairKey{r.ExamID, r.StudentID}] = &cp
}

// ResultCount returns how many results exist for the pair.
func (s *Store) ResultCount(examID uuid.UUID, studentID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[pairKey{examID, studentID}]; ok {
		return 1
	}
	return 0
}

// SessionCount returns the number of sessions across all exams.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) Exams() *Exams           { return &Exams{s} }
func (s *Store) Questions() *Questions   { return &Questions{s} }
func (s *Store) Sessions() *Sessions     { return &Sessions{s} }
func (s *Store) Results() *Results       { return &Results{s} }
func (s *Store) Violations() *Violations { return &Violations{s} }
func (s *Store) Directory() *Directory   { return &Directory{s} }

// Exams is the exam table view.
type Exams struct{ s *Store }

func (v *Exams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (v *Exams) ListExpiredUnfinalized(_ context.Context, now time.Time) ([]model.Exam, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Exam
	for _, e := range v.s.exams {
		if e.Status == model.ExamStatusPublished && !e.EndTime.After(now) && !e.ResultsFinalized {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (v *Exams) CloseNow(_ context.Context, id uuid.UUID, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.exams[id]
	if !ok || e.Status != model.ExamStatusPublished {
		return repository.ErrConflict
	}
	if at.Before(e.EndTime) {
		e.EndTime = at
	}
	return nil
}

func (v *Exams) MarkFinalized(_ context.Context, id uuid.UUID) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.exams[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if e.ResultsFinalized {
		return false, nil
	}
	for k, sess := range v.s.sessions {
		if k.examID != id || sess.Status != model.SessionStatusInProgress {
			continue
		}
		if _, has := v.s.results[k]; !has {
			return false, repository.ErrConflict
		}
	}
	e.ResultsFinalized = true
	e.Status = model.ExamStatusClosed
	return true, nil
}

// Questions is the question bank view.
type Questions struct{ s *Store }

func (v *Questions) ListByIDs(_ context.Context, ids []uuid.UUID) ([]model.Question, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := v.s.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (v *Questions) ListForExam(ctx context.Context, exam *model.Exam) ([]model.Question, error) {
	return v.ListByIDs(ctx, exam.QuestionIDs)
}

// Sessions is the exam session view.
type Sessions struct{ s *Store }

func (v *Sessions) Get(_ context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sess, ok := v.s.sessions[pairKey{examID, studentID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return sess.Clone(), nil
}

func (v *Sessions) CreateIfAbsent(_ context.Context, sess *model.ExamSession) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	k := pairKey{sess.ExamID, sess.StudentID}
	if existing, ok := v.s.sessions[k]; ok {
		*sess = *existing.Clone()
		return false, nil
	}
	sess.ID = uuid.New()
	sess.Status = model.SessionStatusInProgress
	sess.LastSyncAt = sess.StartedAt
	sess.Answers = model.AnswerMap{}
	sess.TimeSpent = model.TimeSpentMap{}
	sess.Flagged = model.FlaggedMap{}
	v.s.sessions[k] = sess.Clone()
	return true, nil
}

func (v *Sessions) ReplaceProgress(_ context.Context, examID uuid.UUID, studentID int,
	answers model.AnswerMap, timeSpent model.TimeSpentMap, flagged model.FlaggedMap, at time.Time,
) (*model.ExamSession, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sess, ok := v.s.sessions[pairKey{examID, studentID}]
	if !ok || !sess.IsLive() {
		return nil, repository.ErrNotFound
	}
	next := &model.ExamSession{Answers: answers, TimeSpent: timeSpent, Flagged: flagged}
	next = next.Clone()
	sess.Answers, sess.TimeSpent, sess.Flagged = next.Answers, next.TimeSpent, next.Flagged
	sess.LastSyncAt = at
	return sess.Clone(), nil
}

func (v *Sessions) Finalize(_ context.Context, r *model.Result) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	k := pairKey{r.ExamID, r.StudentID}
	sess, ok := v.s.sessions[k]
	if !ok {
		return false, repository.ErrNotFound
	}
	if v.s.FailFinalize != nil {
		if err := v.s.FailFinalize(r); err != nil {
			return false, err
		}
	}
	if _, exists := v.s.results[k]; exists {
		return false, nil
	}
	r.ID = uuid.New()
	r.WasSuspended = sess.IsSuspended
	cp := *r
	cp.Answers = append([]model.AnswerRecord(nil), r.Answers...)
	v.s.results[k] = &cp

	sess.Status = model.SessionStatusCompleted
	at := r.SubmittedAt
	sess.FinishedAt = &at
	return true, nil
}

func (v *Sessions) Reinstate(_ context.Context, examID uuid.UUID, studentID int, violationCount int) (*model.ExamSession, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if e, ok := v.s.exams[examID]; ok && e.ResultsFinalized {
		return nil, repository.ErrExamFinalized
	}
	k := pairKey{examID, studentID}
	sess, ok := v.s.sessions[k]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !sess.IsSuspended {
		res, has := v.s.results[k]
		if !has || !res.WasSuspended {
			return nil, repository.ErrConflict
		}
	}
	delete(v.s.results, k)
	sess.IsSuspended = false
	sess.Status = model.SessionStatusInProgress
	sess.ViolationCount = violationCount
	sess.FinishedAt = nil
	return sess.Clone(), nil
}

func (v *Sessions) ListByExam(_ context.Context, examID uuid.UUID, onlyInProgress bool) ([]model.ExamSession, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.ExamSession
	for k, sess := range v.s.sessions {
		if k.examID != examID {
			continue
		}
		if onlyInProgress && sess.Status != model.SessionStatusInProgress {
			continue
		}
		out = append(out, *sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (v *Sessions) ListParticipants(_ context.Context) ([]model.Participant, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	logged := make(map[pairKey]int)
	for _, viol := range v.s.violations {
		logged[pairKey{viol.ExamID, viol.StudentID}]++
	}
	out := make([]model.Participant, 0, len(v.s.sessions))
	for k, sess := range v.s.sessions {
		suspended := sess.IsSuspended
		if res, ok := v.s.results[k]; ok && res.WasSuspended {
			suspended = true
		}
		out = append(out, model.Participant{
			ExamID:     k.examID,
			StudentID:  k.studentID,
			Violations: logged[k],
			Suspended:  suspended,
		})
	}
	return out, nil
}

// Results is the result table view.
type Results struct{ s *Store }

func (v *Results) Get(_ context.Context, examID uuid.UUID, studentID int) (*model.Result, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	r, ok := v.s.results[pairKey{examID, studentID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (v *Results) Exists(_ context.Context, examID uuid.UUID, studentID int) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	_, ok := v.s.results[pairKey{examID, studentID}]
	return ok, nil
}

func (v *Results) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Result, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Result
	for k, r := range v.s.results {
		if k.examID == examID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

// Violations is the violation log view.
type Violations struct{ s *Store }

func (v *Violations) Record(_ context.Context, viol *model.Violation, threshold int) (int, bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sess, ok := v.s.sessions[pairKey{viol.ExamID, viol.StudentID}]
	if !ok || !sess.IsLive() {
		return 0, false, repository.ErrNotFound
	}
	v.s.nextViolID++
	viol.ID = v.s.nextViolID
	v.s.violations = append(v.s.violations, *viol)

	sess.ViolationCount++
	sess.IsSuspended = sess.ViolationCount >= threshold
	return sess.ViolationCount, sess.IsSuspended, nil
}

func (v *Violations) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Violation, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Violation
	for _, viol := range v.s.violations {
		if viol.ExamID == examID {
			out = append(out, viol)
		}
	}
	return out, nil
}

func (v *Violations) CountByType(_ context.Context) (map[model.ViolationType]int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	counts := make(map[model.ViolationType]int)
	for _, viol := range v.s.violations {
		counts[viol.Type]++
	}
	return counts, nil
}

// Directory is the student directory view.
type Directory struct{ s *Store }

func (v *Directory) ListStudents(_ context.Context, groups, subgroups []string) ([]model.Student, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	filter := model.Exam{AllowedGroups: groups, AllowedSubgroups: subgroups}
	var out []model.Student
	for _, st := range v.s.students {
		if filter.AdmitsGroup(st.Group, st.Subgroup) {
			out = append(out, st)
		}
	}
	return out, nil
}
