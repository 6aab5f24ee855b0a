// Package jobstore is the in-memory registry of analysis jobs. It is the
// single shared mutable resource of the pipeline: one writer per job at a
// time, many readers freely. All mutating methods take the store lock, which
// satisfies the per-job serialization contract; readers get snapshots and
// never observe partial updates.
package jobstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
)

// Store owns every Job record. Lifecycle is tied to the process; a
// multi-instance deployment needs an external store behind the same
// interface.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.Job
}

func New() *Store {
	return &Store{jobs: make(map[uuid.UUID]*entity.Job)}
}

// Create allocates a fresh PENDING job and returns a snapshot of it.
func (s *Store) Create(streamRef, videoURI string, platform entity.Platform, segments []entity.TimeSegment) *entity.Job {
	job := entity.NewJob(streamRef, videoURI, platform, segments)

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job.Clone()
}

// Get returns a snapshot of the job, or false if the id is unknown.
func (s *Store) Get(id uuid.UUID) (*entity.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Update merges a metadata patch. A no-op for unknown ids and for jobs
// already in a terminal state; callers obtained the id from Create and the
// only post-terminal writers are redundant reaper sweeps.
func (s *Store) Update(id uuid.UUID, patch entity.MetadataPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return
	}
	patch.Apply(&job.Metadata)
	job.UpdatedAt = time.Now().UTC()
}

// MarkExecuting transitions PENDING -> EXECUTING. Returns false if the job is
// unknown or not PENDING.
func (s *Store) MarkExecuting(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != entity.JobStatusPending {
		return false
	}
	job.MarkExecuting()
	return true
}

// Complete transitions EXECUTING -> SUCCESS with the aggregate output.
// Only legal from EXECUTING.
func (s *Store) Complete(id uuid.UUID, output *entity.AnalysisOutput) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != entity.JobStatusExecuting {
		return false
	}
	job.MarkSuccess(output)
	return true
}

// Fail transitions PENDING or EXECUTING -> FAILURE. A no-op on terminal jobs,
// which makes redundant reaper sweeps safe.
func (s *Store) Fail(id uuid.UUID, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false
	}
	job.MarkFailure(errMsg)
	return true
}

// Filter narrows List results. Zero value matches everything.
type Filter struct {
	Status     entity.JobStatus
	ActiveOnly bool
}

func (f Filter) matches(job *entity.Job) bool {
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.ActiveOnly && job.Status.IsTerminal() {
		return false
	}
	return true
}

// List returns snapshots of matching jobs, newest first.
func (s *Store) List(filter Filter) []*entity.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.matches(job) {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes a job record. Maintenance use only.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}
