package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSchedulerRunsImmediatelyAndOnTicks(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := NewIntervalScheduler(10*time.Millisecond, time.UTC)
	require.NoError(t, s.Start(context.Background(), func(time.Time) { runs.Add(1) }))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestIntervalSchedulerStartTwiceIsNoop(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := NewIntervalScheduler(time.Hour, nil)
	job := func(time.Time) { runs.Add(1) }
	require.NoError(t, s.Start(context.Background(), job))
	require.NoError(t, s.Start(context.Background(), job))

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(1), runs.Load())
}

func TestIntervalSchedulerReportsConfiguredLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CST", 8*3600)
	got := make(chan time.Time, 1)
	s := NewIntervalScheduler(time.Hour, loc)
	require.NoError(t, s.Start(context.Background(), func(t time.Time) {
		select {
		case got <- t:
		default:
		}
	}))
	defer s.Stop(context.Background())

	select {
	case ts := <-got:
		assert.Equal(t, loc, ts.Location())
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}
