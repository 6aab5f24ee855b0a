// Package orchestrator drives the lifecycle of one analysis job: download the
// source video, cut and analyze each segment in order, aggregate hands, and
// move the job to a terminal state. One tracked goroutine per job; segments
// within a job are sequential because inference calls are rate and cost
// sensitive and hand numbering follows segment order.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
	"github.com/handarchive/video-analysis-service/internal/domain/port"
	"github.com/handarchive/video-analysis-service/internal/infra/metrics"
	"github.com/handarchive/video-analysis-service/internal/jobstore"
)

const videoURIScheme = "storage://"

// ErrInvalidSubmission covers submission-level validation failures that are
// not about segment geometry.
var ErrInvalidSubmission = errors.New("invalid submission")

// SubmitRequest is one analysis submission, from either the HTTP surface or
// the request queue.
type SubmitRequest struct {
	StreamID string
	VideoURI string
	Segments []entity.TimeSegment
	Platform entity.Platform
	Players  []string
}

// Validate rejects malformed submissions before a job record exists.
func (r SubmitRequest) Validate() error {
	if r.StreamID == "" {
		return fmt.Errorf("%w: streamId is required", ErrInvalidSubmission)
	}
	if !strings.HasPrefix(r.VideoURI, videoURIScheme) {
		return fmt.Errorf("%w: videoRef must start with %s", ErrInvalidSubmission, videoURIScheme)
	}
	if !r.Platform.Valid() {
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidSubmission, r.Platform)
	}
	// Total video duration is unknown until the video is downloaded, so only
	// bounds and overlap are checked here.
	return entity.ValidateSegments(r.Segments, 0)
}

type Config struct {
	TempDir           string
	MaxConcurrentJobs int
	SegmentMaxRetries int
	RetryBaseDelay    time.Duration
	MaxClipSeconds    float64
}

type Orchestrator struct {
	store     *jobstore.Store
	storage   port.VideoStorage
	extractor port.ClipExtractor
	analyzer  port.SegmentAnalyzer
	archive   port.HandArchive
	publisher port.StatusPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       Config

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func New(
	store *jobstore.Store,
	storage port.VideoStorage,
	extractor port.ClipExtractor,
	analyzer port.SegmentAnalyzer,
	archive port.HandArchive,
	publisher port.StatusPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.SegmentMaxRetries <= 0 {
		cfg.SegmentMaxRetries = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:     store,
		storage:   storage,
		extractor: extractor,
		analyzer:  analyzer,
		archive:   archive,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.MaxConcurrentJobs),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit validates the request, creates the job record, and schedules the
// processing loop on a tracked goroutine. The job id returns immediately;
// completion is only observable by polling. Re-submitting the same request
// creates a new, independent job.
func (o *Orchestrator) Submit(req SubmitRequest) (uuid.UUID, error) {
	if err := req.Validate(); err != nil {
		return uuid.Nil, err
	}

	job := o.store.Create(req.StreamID, req.VideoURI, req.Platform, req.Segments)

	o.logger.Info("job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("stream_ref", req.StreamID),
		zap.Int("segments", len(req.Segments)),
	)

	o.wg.Add(1)
	go o.run(job.ID)

	return job.ID, nil
}

// Close stops accepting background work and waits for in-flight jobs.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the per-job processing loop. Failures of any kind are guaranteed to
// land in the store: the deferred recover catches panics, and every fatal
// path goes through failJob.
func (o *Orchestrator) run(jobID uuid.UUID) {
	defer o.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("job panicked", zap.String("job_id", jobID.String()), zap.Any("panic", r))
			o.failJob(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	// Bound concurrent jobs; queued jobs stay PENDING until a slot frees.
	select {
	case o.sem <- struct{}{}:
	case <-o.ctx.Done():
		o.failJob(jobID, "service shutting down before job started")
		return
	}
	defer func() { <-o.sem }()

	if !o.store.MarkExecuting(jobID) {
		// Reaped or otherwise terminal while waiting for a slot.
		o.logger.Warn("job no longer pending, skipping", zap.String("job_id", jobID.String()))
		return
	}
	o.publishStatus(jobID)

	job, ok := o.store.Get(jobID)
	if !ok {
		return
	}

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	log := o.logger.With(zap.String("job_id", jobID.String()), zap.String("stream_ref", job.StreamRef))
	tracer := otel.Tracer("orchestrator")
	ctx, span := tracer.Start(o.ctx, "orchestrator.run")
	span.SetAttributes(
		attribute.String("job.id", jobID.String()),
		attribute.String("job.video_uri", job.VideoURI),
		attribute.Int("job.segments", len(job.Segments)),
	)
	defer span.End()

	totalTimer := time.Now()

	workDir := filepath.Join(o.cfg.TempDir, jobID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		o.failJob(jobID, "create workdir: "+err.Error())
		return
	}
	defer os.RemoveAll(workDir)

	// Download the source video. An unreachable video reference is the fatal,
	// job-level fault; everything after this is per-segment.
	o.store.Update(jobID, patchStage(entity.StageDownloading))
	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "source.mp4")
	if err := o.storage.DownloadVideo(ctxDl, job.VideoURI, videoPath); err != nil {
		spanDl.End()
		log.Error("video download failed", zap.Error(err))
		o.failJob(jobID, "video reference unreachable: "+err.Error())
		return
	}
	spanDl.End()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	if duration, err := o.extractor.ProbeDuration(ctx, videoPath); err != nil {
		log.Warn("could not probe video duration", zap.Error(err))
	} else if err := entity.ValidateSegments(job.Segments, duration); err != nil {
		log.Error("segment plan exceeds video duration", zap.Float64("duration", duration), zap.Error(err))
		o.failJob(jobID, err.Error())
		return
	}

	var (
		allHands []entity.Hand
		results  = make([]entity.SegmentResult, 0, len(job.Segments))
	)

	for i, seg := range job.Segments {
		o.store.Update(jobID, entity.MetadataPatch{
			Stage:               stagePtr(entity.StageAnalyzing),
			CurrentSegmentIndex: intPtr(i),
			CurrentSegmentRange: strPtr(seg.Range()),
		})

		segStart := time.Now()
		ctxSeg, spanSeg := tracer.Start(ctx, "process_segment")
		spanSeg.SetAttributes(attribute.Int("segment.index", i), attribute.String("segment.range", seg.Range()))

		hands, err := o.processSegment(ctxSeg, job, i, seg, videoPath, workDir)
		spanSeg.End()
		metrics.StageDuration.WithLabelValues("segment").Observe(time.Since(segStart).Seconds())

		result := entity.SegmentResult{
			SegmentID: i,
			Start:     seg.Start,
			End:       seg.End,
		}
		if err != nil {
			// One bad segment must not abort the job; record and move on.
			log.Warn("segment failed",
				zap.Int("segment", i),
				zap.String("range", seg.Range()),
				zap.Error(err),
			)
			result.Status = entity.SegmentFailed
			result.Error = err.Error()
			metrics.SegmentsProcessedTotal.WithLabelValues("failed").Inc()
		} else {
			result.Status = entity.SegmentCompleted
			result.HandsFound = len(hands)
			metrics.SegmentsProcessedTotal.WithLabelValues("completed").Inc()
			metrics.HandsExtractedTotal.Add(float64(len(hands)))

			// Hands are numbered job-wide: segment order first, then the order
			// the analyzer returned them.
			for _, hand := range hands {
				hand.HandNumber = len(allHands) + 1
				allHands = append(allHands, hand)
			}
		}
		results = append(results, result)

		processed := i + 1
		o.store.Update(jobID, entity.MetadataPatch{
			ProcessedSegments: intPtr(processed),
			HandsFound:        intPtr(len(allHands)),
			ProgressPercent:   intPtr(progressPercent(processed, len(job.Segments))),
		})
	}

	output := &entity.AnalysisOutput{
		Hands:          allHands,
		SegmentResults: results,
	}
	if output.Hands == nil {
		output.Hands = []entity.Hand{}
	}

	o.archiveOutput(ctx, jobID, output, log)

	// A job where every segment failed still completes: SUCCESS means "ran",
	// FAILURE is reserved for faults that stopped the run itself.
	if !o.store.Complete(jobID, output) {
		log.Warn("job was no longer executing at completion")
		return
	}
	o.publishStatus(jobID)

	metrics.JobsTotal.WithLabelValues("success").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	log.Info("job completed",
		zap.Int("hands", len(allHands)),
		zap.Int("segments", len(job.Segments)),
		zap.Duration("elapsed", time.Since(totalTimer)),
	)
}

// processSegment cuts the segment into clips no longer than MaxClipSeconds,
// uploads each to the temp prefix, and analyzes it with bounded retries.
// Absolute hand timestamps are derived from each clip's start offset.
func (o *Orchestrator) processSegment(
	ctx context.Context,
	job *entity.Job,
	index int,
	seg entity.TimeSegment,
	videoPath, workDir string,
) ([]entity.Hand, error) {
	var hands []entity.Hand

	for clipIdx, sub := range entity.SplitForAnalysis(seg, o.cfg.MaxClipSeconds) {
		clipName := fmt.Sprintf("clip_%d_%d_%s-%s.mp4",
			index, clipIdx,
			strconv.FormatFloat(sub.Start, 'f', -1, 64),
			strconv.FormatFloat(sub.End, 'f', -1, 64),
		)
		clipPath := filepath.Join(workDir, clipName)

		if err := o.extractor.ExtractClip(ctx, videoPath, sub, clipPath); err != nil {
			return nil, fmt.Errorf("extract clip %s: %w", sub.Range(), err)
		}

		clipURI, err := o.storage.UploadClip(ctx, job.ID.String()+"/"+clipName, clipPath)
		os.Remove(clipPath)
		if err != nil {
			return nil, fmt.Errorf("upload clip %s: %w", sub.Range(), err)
		}

		analysis, err := o.analyzeWithRetry(ctx, clipURI, sub, job.Platform)

		if delErr := o.storage.DeleteClip(ctx, clipURI); delErr != nil {
			o.logger.Warn("temp clip cleanup failed", zap.String("clip_uri", clipURI), zap.Error(delErr))
		}
		if err != nil {
			return nil, err
		}

		for _, hand := range analysis.Hands {
			if start, perr := entity.ParseTimecode(hand.TimestampStart); perr == nil {
				hand.AbsoluteStart = sub.Start + start
			}
			if end, perr := entity.ParseTimecode(hand.TimestampEnd); perr == nil {
				hand.AbsoluteEnd = sub.Start + end
			}
			hands = append(hands, hand)
		}
	}

	return hands, nil
}

// analyzeWithRetry owns the retry policy the analyzer deliberately does not
// have: exponential backoff, bounded attempts.
func (o *Orchestrator) analyzeWithRetry(
	ctx context.Context,
	clipURI string,
	seg entity.TimeSegment,
	platform entity.Platform,
) (*port.SegmentAnalysis, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.SegmentMaxRetries; attempt++ {
		analysis, err := o.analyzer.AnalyzeSegment(ctx, clipURI, seg, platform)
		if err == nil {
			return analysis, nil
		}
		lastErr = err

		if attempt < o.cfg.SegmentMaxRetries {
			metrics.SegmentRetriesTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
			delay := o.cfg.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			o.logger.Warn("segment analysis attempt failed, retrying",
				zap.String("clip_uri", clipURI),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("analysis failed after %d attempts: %w", o.cfg.SegmentMaxRetries, lastErr)
}

func (o *Orchestrator) archiveOutput(ctx context.Context, jobID uuid.UUID, output *entity.AnalysisOutput, log *zap.Logger) {
	if o.archive == nil {
		return
	}
	o.store.Update(jobID, patchStage(entity.StageSaving))

	job, ok := o.store.Get(jobID)
	if !ok {
		return
	}

	saveStart := time.Now()
	saved, err := o.archive.SaveHands(ctx, job, output.Hands)
	if err != nil {
		// Archive trouble does not fail the job; the output still lives on
		// the job record and can be replayed.
		log.Warn("hand archive incomplete", zap.Int("saved", saved), zap.Error(err))
	}
	if err := o.archive.RecordJob(ctx, job); err != nil {
		log.Warn("job history record failed", zap.Error(err))
	}
	metrics.StageDuration.WithLabelValues("save").Observe(time.Since(saveStart).Seconds())
}

// failJob moves the job to FAILURE and fans the news out.
func (o *Orchestrator) failJob(jobID uuid.UUID, msg string) {
	if !o.store.Fail(jobID, msg) {
		return
	}
	o.publishStatus(jobID)
	metrics.JobsTotal.WithLabelValues("failure").Inc()

	if job, ok := o.store.Get(jobID); ok {
		if o.archive != nil {
			if err := o.archive.RecordJob(context.Background(), job); err != nil {
				o.logger.Warn("job history record failed", zap.Error(err))
			}
		}
		if o.notifier != nil {
			_ = o.notifier.NotifyFailure(context.Background(), jobID.String(), job.VideoURI, msg)
		}
	}
}

func (o *Orchestrator) publishStatus(jobID uuid.UUID) {
	if o.publisher == nil {
		return
	}
	job, ok := o.store.Get(jobID)
	if !ok {
		return
	}
	data, err := json.Marshal(entity.StatusMessageFor(job))
	if err != nil {
		return
	}
	if err := o.publisher.PublishStatus(context.Background(), data); err != nil {
		o.logger.Warn("status publish failed", zap.String("job_id", jobID.String()), zap.Error(err))
	}
}

func progressPercent(processed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(processed) / float64(total) * 100))
}

func patchStage(stage entity.JobStage) entity.MetadataPatch {
	return entity.MetadataPatch{Stage: &stage}
}

func stagePtr(s entity.JobStage) *entity.JobStage { return &s }
func intPtr(v int) *int                           { return &v }
func strPtr(s string) *string                     { return &s }
