package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycwu/twstock/backend/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	runs     atomic.Int32
	err      error
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newTestScheduler() *Scheduler {
	s := New(time.UTC, logger.Nop())
	s.retryDelay = time.Millisecond
	return s
}

func TestAddJobDuplicate(t *testing.T) {
	s := newTestScheduler()

	job := &fakeJob{name: "refresh", schedule: "0 30 8 * * *"}
	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job))
}

func TestAddJobBadSchedule(t *testing.T) {
	s := newTestScheduler()

	job := &fakeJob{name: "refresh", schedule: "not a schedule"}
	assert.Error(t, s.AddJob(job))
}

func TestRunJobImmediate(t *testing.T) {
	s := newTestScheduler()

	job := &fakeJob{name: "refresh", schedule: "0 30 8 * * *"}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("refresh"))

	require.Eventually(t, func() bool {
		return job.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		h, err := s.History("refresh")
		return err == nil && h.Latest() != nil && h.Latest().Success
	}, time.Second, 10*time.Millisecond)
}

func TestRunJobUnknown(t *testing.T) {
	s := newTestScheduler()
	assert.Error(t, s.RunJob("nope"))
}

func TestRunJobRetriesOnFailure(t *testing.T) {
	s := newTestScheduler()

	job := &fakeJob{name: "refresh", schedule: "0 30 8 * * *", err: errors.New("upstream down")}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("refresh"))

	require.Eventually(t, func() bool {
		h, err := s.History("refresh")
		return err == nil && h.Latest() != nil && !h.Latest().Success
	}, 2*time.Second, 10*time.Millisecond)

	// 1 次原始執行 + 3 次重試
	assert.Equal(t, int32(4), job.runs.Load())
	assert.Equal(t, 0.0, mustHistory(t, s, "refresh").SuccessRate())
}

func mustHistory(t *testing.T, s *Scheduler, name string) *JobHistory {
	t.Helper()
	h, err := s.History(name)
	require.NoError(t, err)
	return h
}
