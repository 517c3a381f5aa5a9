package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_CreatesSessionWithPaper(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	out, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)

	assert.True(t, out.Created)
	assert.False(t, out.Suspended)
	assert.Equal(t, model.SessionStatusInProgress, out.Session.Status)
	assert.Empty(t, out.Session.Answers)
	assert.Zero(t, out.Session.ViolationCount)
	require.NotNil(t, out.Paper)
	assert.Len(t, out.Paper.Questions, 3)
}

func TestStart_SecondCallResumes(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	first, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)
	second, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.False(t, second.ServerTime.Before(first.ServerTime))
}

func TestStart_ConcurrentCallsCreateOneSession(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	outs := make([]*service.StartOutcome, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = f.sessions.Start(ctx, student(1), f.exam.ID)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if outs[i].Created {
			created++
		}
		assert.Equal(t, outs[0].Session.ID, outs[i].Session.ID)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, f.store.SessionCount())
}

func TestStart_AdmissionErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown exam", func(t *testing.T) {
		f := newFixture(t, 5)
		f.exam.ID[0] ^= 0xff
		_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("wrong group", func(t *testing.T) {
		f := newFixture(t, 5)
		p := student(4)
		p.Group = "X"
		_, err := f.sessions.Start(ctx, p, f.exam.ID)
		assert.ErrorIs(t, err, service.ErrNotAuthorized)
	})

	t.Run("draft exam", func(t *testing.T) {
		f := newFixture(t, 5)
		e := f.exam
		e.Status = model.ExamStatusDraft
		f.store.PutExam(e)
		_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
		assert.ErrorIs(t, err, service.ErrExamNotPublished)
	})

	t.Run("not started", func(t *testing.T) {
		f := newFixture(t, 5)
		e := f.exam
		e.StartTime = time.Now().Add(time.Hour)
		f.store.PutExam(e)
		_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
		assert.ErrorIs(t, err, service.ErrExamNotPublished)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t, 5)
		f.expire()
		_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
		assert.ErrorIs(t, err, service.ErrExamExpired)
	})
}

func TestStart_AfterSubmitFails(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)
	_, err = f.sessions.Submit(ctx, 1, f.exam.ID, model.AnswerMap{})
	require.NoError(t, err)

	_, err = f.sessions.Start(ctx, student(1), f.exam.ID)
	assert.ErrorIs(t, err, service.ErrAlreadySubmitted)
}

func TestStart_SuspendedSessionReturnsStatusOnly(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)
	_, err = f.violations.Record(ctx, 1, f.exam.ID, &model.RecordViolationRequest{Type: model.ViolationTabSwitch})
	require.NoError(t, err)

	out, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)
	assert.True(t, out.Suspended)
	assert.Nil(t, out.Paper)
	assert.Equal(t, 1, f.store.SessionCount())
}

func TestUpdateProgress_ReplacesMapsWholesale(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)

	_, err = f.sessions.UpdateProgress(ctx, 1, f.exam.ID, &model.ProgressRequest{
		Answers:   model.AnswerMap{f.qid(0): 1, f.qid(1): 0},
		TimeSpent: model.TimeSpentMap{f.qid(0): 12},
		Flagged:   model.FlaggedMap{f.qid(1): true},
	})
	require.NoError(t, err)

	sess, err := f.sessions.UpdateProgress(ctx, 1, f.exam.ID, &model.ProgressRequest{
		Answers: model.AnswerMap{f.qid(2): 0},
	})
	require.NoError(t, err)

	assert.Equal(t, model.AnswerMap{f.qid(2): 0}, sess.Answers)
	assert.Empty(t, sess.TimeSpent)
	assert.Empty(t, sess.Flagged)
}

func TestUpdateProgress_Errors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.sessions.UpdateProgress(ctx, 1, f.exam.ID, &model.ProgressRequest{})
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)
	_, err = f.violations.Record(ctx, 1, f.exam.ID, &model.RecordViolationRequest{Type: model.ViolationCopyPaste})
	require.NoError(t, err)

	_, err = f.sessions.UpdateProgress(ctx, 1, f.exam.ID, &model.ProgressRequest{})
	assert.ErrorIs(t, err, service.ErrSessionSuspended)

	_, err = f.sessions.Start(ctx, student(2), f.exam.ID)
	require.NoError(t, err)
	_, err = f.sessions.Submit(ctx, 2, f.exam.ID, nil)
	require.NoError(t, err)
	_, err = f.sessions.UpdateProgress(ctx, 2, f.exam.ID, &model.ProgressRequest{})
	assert.ErrorIs(t, err, service.ErrAlreadyCompleted)
}

func TestSubmit_ScoresAgainstExam(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)

	res, err := f.sessions.Submit(ctx, 1, f.exam.ID, model.AnswerMap{f.qid(0): 1, f.qid(1): 2, f.qid(2): 1})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 3, res.TotalPoints)
	assert.False(t, res.AutoSubmitted)
	assert.False(t, res.WasSuspended)

	sess, err := f.store.Sessions().Get(ctx, f.exam.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, sess.Status)
	assert.NotNil(t, sess.FinishedAt)

	assert.Equal(t, 1, f.events.Count(config.CacheKey.ExamMonitorChannel(f.exam.ID.String()), model.EventSessionSubmitted))
}

func TestSubmit_NilAnswersUseLastSync(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)
	_, err = f.sessions.UpdateProgress(ctx, 1, f.exam.ID, &model.ProgressRequest{
		Answers: model.AnswerMap{f.qid(0): 1},
	})
	require.NoError(t, err)

	res, err := f.sessions.Submit(ctx, 1, f.exam.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
}

func TestSubmit_TwiceFailsAlreadySubmitted(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)

	_, err = f.sessions.Submit(ctx, 1, f.exam.ID, nil)
	require.NoError(t, err)
	_, err = f.sessions.Submit(ctx, 1, f.exam.ID, nil)
	assert.ErrorIs(t, err, service.ErrAlreadySubmitted)
	assert.Equal(t, 1, f.store.ResultCount(f.exam.ID, 1))
}

func TestSubmit_WithoutSession(t *testing.T) {
	f := newFixture(t, 5)
	_, err := f.sessions.Submit(context.Background(), 1, f.exam.ID, nil)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSubmit_ConcurrentWithSweepYieldsOneResult(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t, 5)
		ctx := context.Background()
		_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
		require.NoError(t, err)
		f.expire()

		var wg sync.WaitGroup
		submitErrs := make([]error, 3)
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, submitErrs[i] = f.sessions.Submit(ctx, 1, f.exam.ID, model.AnswerMap{f.qid(0): 1})
			}(i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.sweeper.SweepOnce(ctx)
		}()
		wg.Wait()

		assert.Equal(t, 1, f.store.ResultCount(f.exam.ID, 1))
		for _, err := range submitErrs {
			if err != nil {
				assert.ErrorIs(t, err, service.ErrAlreadySubmitted)
			}
		}
		assert.Equal(t, 1, f.events.Count(config.CacheKey.ExamMonitorChannel(f.exam.ID.String()), model.EventSessionSubmitted))
	}
}

func TestSubmit_SuspendedSessionCarriesFlag(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)
	_, err = f.violations.Record(ctx, 1, f.exam.ID, &model.RecordViolationRequest{Type: model.ViolationTabSwitch})
	require.NoError(t, err)

	res, err := f.sessions.Submit(ctx, 1, f.exam.ID, nil)
	require.NoError(t, err)
	assert.True(t, res.WasSuspended)
}

func TestGetSessionState_RemainingTime(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)

	state, err := f.sessions.GetSessionState(ctx, 1, f.exam.ID)
	require.NoError(t, err)
	// exam ends in 50 minutes, before the 60 minute duration runs out.
	assert.InDelta(t, 50*60, state.RemainingSeconds, 5)

	_, err = f.sessions.Submit(ctx, 1, f.exam.ID, nil)
	require.NoError(t, err)
	state, err = f.sessions.GetSessionState(ctx, 1, f.exam.ID)
	require.NoError(t, err)
	assert.Zero(t, state.RemainingSeconds)
}

func TestGetResult_RankAndPercentile(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	answers := map[int]model.AnswerMap{
		1: {f.qid(0): 1, f.qid(1): 2, f.qid(2): 0},
		2: {f.qid(0): 1},
	}
	for id, a := range answers {
		_, err := f.sessions.Start(ctx, student(id), f.exam.ID)
		require.NoError(t, err)
		_, err = f.sessions.Submit(ctx, id, f.exam.ID, a)
		require.NoError(t, err)
	}

	top, err := f.sessions.GetResult(ctx, 1, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, 2, top.Participants)
	assert.Equal(t, 100.0, top.Percentile)

	low, err := f.sessions.GetResult(ctx, 2, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, low.Rank)
	assert.Equal(t, 50.0, low.Percentile)

	_, err = f.sessions.GetResult(ctx, 3, f.exam.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
