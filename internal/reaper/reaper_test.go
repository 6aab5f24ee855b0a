package reaper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
	"github.com/handarchive/video-analysis-service/internal/jobstore"
)

func newReaperHarness() (*jobstore.Store, *Reaper) {
	store := jobstore.New()
	r := New(store, nil, zap.NewNop(), 10*time.Minute, time.Minute)
	return store, r
}

func createJob(store *jobstore.Store) *entity.Job {
	return store.Create("stream-1", "storage://videos/v.mp4", entity.PlatformEPT,
		[]entity.TimeSegment{{Start: 0, End: 60}})
}

func TestSweepReapsStuckExecutingJob(t *testing.T) {
	store, r := newReaperHarness()
	job := createJob(store)
	require.True(t, store.MarkExecuting(job.ID))

	reaped := r.Sweep(time.Now().UTC().Add(11 * time.Minute))
	require.Len(t, reaped, 1)
	assert.Equal(t, job.ID, reaped[0])

	got, _ := store.Get(job.ID)
	assert.Equal(t, entity.JobStatusFailure, got.Status)
	assert.Contains(t, got.Error, "stuck/timeout")
	assert.Contains(t, got.Error, "EXECUTING")
}

func TestSweepReapsStuckPendingJob(t *testing.T) {
	store, r := newReaperHarness()
	job := createJob(store)

	reaped := r.Sweep(time.Now().UTC().Add(11 * time.Minute))
	require.Len(t, reaped, 1)

	got, _ := store.Get(job.ID)
	assert.Equal(t, entity.JobStatusFailure, got.Status)
	assert.Contains(t, got.Error, "PENDING")
}

func TestSweepLeavesYoungJobsAlone(t *testing.T) {
	store, r := newReaperHarness()
	job := createJob(store)
	require.True(t, store.MarkExecuting(job.ID))

	reaped := r.Sweep(time.Now().UTC().Add(5 * time.Minute))
	assert.Empty(t, reaped)

	got, _ := store.Get(job.ID)
	assert.Equal(t, entity.JobStatusExecuting, got.Status)
}

func TestSweepLeavesTerminalJobsAlone(t *testing.T) {
	store, r := newReaperHarness()

	done := createJob(store)
	require.True(t, store.MarkExecuting(done.ID))
	require.True(t, store.Complete(done.ID, &entity.AnalysisOutput{}))

	failed := createJob(store)
	require.True(t, store.Fail(failed.ID, "video reference unreachable"))

	reaped := r.Sweep(time.Now().UTC().Add(24 * time.Hour))
	assert.Empty(t, reaped)

	got, _ := store.Get(done.ID)
	assert.Equal(t, entity.JobStatusSuccess, got.Status)
	got, _ = store.Get(failed.ID)
	assert.Equal(t, "video reference unreachable", got.Error)
}

func TestSweepIsIdempotent(t *testing.T) {
	store, r := newReaperHarness()
	job := createJob(store)
	require.True(t, store.MarkExecuting(job.ID))

	deadline := time.Now().UTC().Add(11 * time.Minute)
	require.Len(t, r.Sweep(deadline), 1)
	assert.Empty(t, r.Sweep(deadline))
	assert.Empty(t, r.Sweep(deadline.Add(time.Hour)))

	got, _ := store.Get(job.ID)
	assert.Equal(t, entity.JobStatusFailure, got.Status)
}

func TestSweepJudgesExecutingByStartTime(t *testing.T) {
	store, r := newReaperHarness()
	job := createJob(store)

	// The job waited in PENDING for a while before starting; its age resets
	// when it begins executing.
	time.Sleep(10 * time.Millisecond)
	require.True(t, store.MarkExecuting(job.ID))
	got, _ := store.Get(job.ID)
	require.NotNil(t, got.StartedAt)

	justUnder := got.StartedAt.Add(10*time.Minute - time.Second)
	assert.Empty(t, r.Sweep(justUnder))

	justOver := got.StartedAt.Add(10*time.Minute + time.Second)
	assert.Len(t, r.Sweep(justOver), 1)
}
