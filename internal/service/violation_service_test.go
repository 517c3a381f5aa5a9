package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tabSwitch() *model.RecordViolationRequest {
	return &model.RecordViolationRequest{Type: model.ViolationTabSwitch, Message: "left the tab"}
}

func TestRecord_SuspendsExactlyAtThreshold(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)

	for want := 1; want <= 2; want++ {
		out, err := f.violations.Record(ctx, 1, f.exam.ID, tabSwitch())
		require.NoError(t, err)
		assert.Equal(t, want, out.ViolationCount)
		assert.False(t, out.Suspended)

		sess, err := f.store.Sessions().Get(ctx, f.exam.ID, 1)
		require.NoError(t, err)
		assert.False(t, sess.IsSuspended)
	}

	out, err := f.violations.Record(ctx, 1, f.exam.ID, tabSwitch())
	require.NoError(t, err)
	assert.Equal(t, 3, out.ViolationCount)
	assert.Equal(t, 3, out.Threshold)
	assert.True(t, out.Suspended)

	sess, err := f.store.Sessions().Get(ctx, f.exam.ID, 1)
	require.NoError(t, err)
	assert.True(t, sess.IsSuspended)

	assert.Equal(t, 1, f.events.Count(config.CacheKey.ExamMonitorChannel(f.exam.ID.String()), model.EventSessionSuspended))
	assert.Equal(t, 1, f.events.Count(config.CacheKey.GlobalMonitorChannel(), model.EventSessionSuspended))

	_, err = f.violations.Record(ctx, 1, f.exam.ID, tabSwitch())
	assert.ErrorIs(t, err, service.ErrSessionSuspended)
}

func TestRecord_ConcurrentReportsNotifyOnce(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)

	const reports = 10
	var wg sync.WaitGroup
	crossed := make(chan bool, reports)
	for i := 0; i < reports; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.violations.Record(ctx, 1, f.exam.ID, tabSwitch())
			if err != nil {
				assert.ErrorIs(t, err, service.ErrSessionSuspended)
				return
			}
			crossed <- out.Suspended
		}()
	}
	wg.Wait()
	close(crossed)

	accepted, suspensions := 0, 0
	for c := range crossed {
		accepted++
		if c {
			suspensions++
		}
	}
	assert.Equal(t, 3, accepted)
	assert.Equal(t, 1, suspensions)

	sess, err := f.store.Sessions().Get(ctx, f.exam.ID, 1)
	require.NoError(t, err)
	assert.True(t, sess.IsSuspended)
	assert.Equal(t, 3, sess.ViolationCount)
	assert.Equal(t, 1, f.events.Count(config.CacheKey.GlobalMonitorChannel(), model.EventSessionSuspended))
}

func TestRecord_DefaultThreshold(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)

	var out *model.ViolationOutcome
	for i := 0; i < model.DefaultViolationThreshold; i++ {
		out, err = f.violations.Record(ctx, 1, f.exam.ID, tabSwitch())
		require.NoError(t, err)
	}
	assert.True(t, out.Suspended)
	assert.Equal(t, model.DefaultViolationThreshold, out.Threshold)
}

func TestRecord_Errors(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	_, err := f.violations.Record(ctx, 1, f.exam.ID, tabSwitch())
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.sessions.Start(ctx, student(1), f.exam.ID)
	require.NoError(t, err)
	_, err = f.sessions.Submit(ctx, 1, f.exam.ID, nil)
	require.NoError(t, err)

	_, err = f.violations.Record(ctx, 1, f.exam.ID, tabSwitch())
	assert.ErrorIs(t, err, service.ErrAlreadyCompleted)

	logged, err := f.proctor.ListViolations(ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Empty(t, logged, "rejected reports are not logged")
}
