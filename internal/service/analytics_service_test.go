package service_test

import (
	"context"
	"testing"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamAnalytics(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)
	_, err = f.sessions.Submit(ctx, 1, f.exam.ID, model.AnswerMap{f.qid(0): 1, f.qid(1): 2, f.qid(2): 0})
	require.NoError(t, err)

	_, err = f.sessions.Start(ctx, student(2), f.exam.ID)
	require.NoError(t, err)
	_, err = f.sessions.Submit(ctx, 2, f.exam.ID, model.AnswerMap{f.qid(0): 1, f.qid(2): 2})
	require.NoError(t, err)

	rep, err := f.analytics.ExamAnalytics(ctx, f.exam.ID)
	require.NoError(t, err)

	assert.Equal(t, model.LiveCounts{Eligible: 3, Finished: 2, NotAttended: 1}, rep.Counts)
	assert.Equal(t, 2.0, rep.AverageScore)
	assert.Equal(t, 2.0, rep.MedianScore)
	require.Len(t, rep.Questions, 3)
	assert.Equal(t, 2, rep.Questions[0].Correct)
	assert.Equal(t, 1, rep.Questions[1].Attempts)
	assert.Equal(t, 50.0, rep.Questions[2].Accuracy)
	require.Len(t, rep.Topics, 2)
	assert.Equal(t, "math", rep.Topics[0].Subject)
	assert.Equal(t, 100.0, rep.Topics[0].Accuracy)
}

func TestIntegrityReport(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	suspend(t, f, 1, 2)
	_, err := f.sessions.Start(ctx, student(2), f.exam.ID)
	require.NoError(t, err)

	rep, err := f.analytics.IntegrityReport(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Participants)
	assert.Equal(t, 1, rep.Flagged)
	assert.Equal(t, 1, rep.Suspended)
	assert.Equal(t, 2, rep.TotalViolations)
	assert.Equal(t, 50.0, rep.IntegrityScore)
	assert.Equal(t, 2, rep.ByType[model.ViolationTabSwitch])
}
