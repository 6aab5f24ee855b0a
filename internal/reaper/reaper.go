// Package reaper is the failure-recovery backstop for the job pipeline. The
// orchestrator has no heartbeat: a crashed process or a hung inference call
// leaves its job EXECUTING forever. The reaper runs independently of
// orchestrator code health and force-fails any job stuck in a non-terminal
// state past the deadline.
package reaper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
	"github.com/handarchive/video-analysis-service/internal/domain/port"
	"github.com/handarchive/video-analysis-service/internal/infra/metrics"
	"github.com/handarchive/video-analysis-service/internal/jobstore"
)

type Reaper struct {
	store      *jobstore.Store
	publisher  port.StatusPublisher
	logger     *zap.Logger
	staleAfter time.Duration
	interval   time.Duration
}

func New(store *jobstore.Store, publisher port.StatusPublisher, logger *zap.Logger, staleAfter, interval time.Duration) *Reaper {
	return &Reaper{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		staleAfter: staleAfter,
		interval:   interval,
	}
}

// Run sweeps on a fixed interval until the context ends.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started",
		zap.Duration("stale_after", r.staleAfter),
		zap.Duration("interval", r.interval),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			reaped := r.Sweep(time.Now().UTC())
			if len(reaped) > 0 {
				r.logger.Warn("reaped stuck jobs", zap.Int("count", len(reaped)))
			}
		}
	}
}

// Sweep force-fails every non-terminal job older than the deadline:
// EXECUTING jobs are judged by StartedAt, PENDING jobs by CreatedAt. Safe to
// run concurrently with the orchestrator (store writes are serialized) and
// safe to run redundantly (failing a terminal job is a no-op).
func (r *Reaper) Sweep(now time.Time) []uuid.UUID {
	var reaped []uuid.UUID

	for _, job := range r.store.List(jobstore.Filter{ActiveOnly: true}) {
		ref := job.CreatedAt
		if job.Status == entity.JobStatusExecuting && job.StartedAt != nil {
			ref = *job.StartedAt
		}
		age := now.Sub(ref)
		if age < r.staleAfter {
			continue
		}

		msg := fmt.Sprintf("stuck/timeout: no progress for %s (status %s)", age.Round(time.Second), job.Status)
		if !r.store.Fail(job.ID, msg) {
			// Completed between the snapshot and now.
			continue
		}

		r.logger.Warn("force-failed stuck job",
			zap.String("job_id", job.ID.String()),
			zap.String("status", string(job.Status)),
			zap.Duration("age", age),
		)
		metrics.JobsReapedTotal.Inc()
		reaped = append(reaped, job.ID)
		r.publishStatus(job.ID)
	}

	return reaped
}

func (r *Reaper) publishStatus(jobID uuid.UUID) {
	if r.publisher == nil {
		return
	}
	job, ok := r.store.Get(jobID)
	if !ok {
		return
	}
	data, err := json.Marshal(entity.StatusMessageFor(job))
	if err != nil {
		return
	}
	if err := r.publisher.PublishStatus(context.Background(), data); err != nil {
		r.logger.Warn("status publish failed", zap.String("job_id", jobID.String()), zap.Error(err))
	}
}
