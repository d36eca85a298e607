package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/event-networking/pkg/logger"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Description() string           { return "test job " + j.name }
func (j *funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func newTestScheduler(timeout time.Duration) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Logger:     logger.Nop(),
		Tick:       10 * time.Millisecond,
		JobTimeout: timeout,
	})
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler(0)
	job := &funcJob{name: "a", run: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(job, Every(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&funcJob{name: "b"}, nil), ErrNilSchedule)

	info, err := s.GetJobInfo("a")
	require.NoError(t, err)
	assert.Equal(t, "@every 1m0s", info.Schedule)
	assert.True(t, info.Enabled)

	_, err = s.GetJobInfo("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := newTestScheduler(time.Second)
	var runs int32
	job := &funcJob{name: "tick", run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}}
	require.NoError(t, s.Register(job, Every(time.Second)))

	// Make the job due immediately.
	s.jobs["tick"].nextRun = time.Now().Add(-time.Millisecond)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	info, err := s.GetJobInfo("tick")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.RunCount, int64(1))
	require.NotNil(t, info.LastResult)
	assert.True(t, info.LastResult.Success)
}

func TestScheduler_DoesNotOverlapRuns(t *testing.T) {
	s := newTestScheduler(0)
	release := make(chan struct{})
	var concurrent, maxConcurrent int32

	job := &funcJob{name: "slow", run: func(ctx context.Context) error {
		n := atomic.AddInt32(&concurrent, 1)
		defer atomic.AddInt32(&concurrent, -1)
		for {
			m := atomic.LoadInt32(&maxConcurrent)
			if n <= m || atomic.CompareAndSwapInt32(&maxConcurrent, m, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}
	require.NoError(t, s.Register(job, &IntervalSchedule{Interval: time.Millisecond}))
	s.jobs["slow"].nextRun = time.Now().Add(-time.Millisecond)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		info, _ := s.GetJobInfo("slow")
		return info.SkippedCount >= 2
	}, time.Second, 5*time.Millisecond)

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobInFlight)

	close(release)
	require.NoError(t, s.Stop())
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxConcurrent))
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler(20 * time.Millisecond)
	boom := errors.New("boom")

	require.NoError(t, s.Register(&funcJob{name: "fails", run: func(context.Context) error { return boom }}, Every(time.Hour)))
	require.NoError(t, s.Register(&funcJob{name: "panics", run: func(context.Context) error { panic("oops") }}, Every(time.Hour)))
	require.NoError(t, s.Register(&funcJob{name: "hangs", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}, Every(time.Hour)))

	res, err := s.RunNow(context.Background(), "fails")
	assert.ErrorIs(t, err, boom)
	assert.True(t, res.Manual)
	assert.False(t, res.Success)

	_, err = s.RunNow(context.Background(), "panics")
	assert.ErrorIs(t, err, ErrJobPanicked)

	_, err = s.RunNow(context.Background(), "hangs")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalExecutions)
	assert.Equal(t, int64(3), snap.TotalFailures)
	assert.Equal(t, int64(1), snap.FailuresByJob["panics"])

	names := make([]string, 0)
	for _, info := range s.ListJobs() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"fails", "hangs", "panics"}, names)
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := newTestScheduler(0)
	var runs int32
	require.NoError(t, s.Register(&funcJob{name: "off", run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}}, Every(time.Second)))
	require.NoError(t, s.SetEnabled("off", false))
	s.jobs["off"].nextRun = time.Now().Add(-time.Millisecond)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
}

func TestEvery_MinimumInterval(t *testing.T) {
	assert.Equal(t, time.Second, Every(0).Interval)
	assert.Equal(t, time.Second, Every(-time.Minute).Interval)

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Minute), Every(time.Minute).Next(at))
}
