package entity

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an analysis job. The tokens are part of
// the wire contract consumed by existing pollers and must not change.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusExecuting JobStatus = "EXECUTING"
	JobStatusSuccess   JobStatus = "SUCCESS"
	JobStatusFailure   JobStatus = "FAILURE"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailure
}

// JobStage is the coarse pipeline phase reported inside job metadata.
type JobStage string

const (
	StageInitializing JobStage = "initializing"
	StageDownloading  JobStage = "downloading"
	StageExtracting   JobStage = "extracting"
	StageAnalyzing    JobStage = "analyzing"
	StageSaving       JobStage = "saving"
)

// JobMetadata is the progress bookkeeping updated after each segment.
// ProcessedSegments and HandsFound are monotonically non-decreasing.
type JobMetadata struct {
	StreamRef           string   `json:"streamRef"`
	Stage               JobStage `json:"stage,omitempty"`
	TotalSegments       int      `json:"totalSegments"`
	ProcessedSegments   int      `json:"processedSegments"`
	CurrentSegmentIndex int      `json:"currentSegmentIndex"`
	CurrentSegmentRange string   `json:"currentSegmentRange,omitempty"`
	HandsFound          int      `json:"handsFound"`
	ProgressPercent     int      `json:"progressPercent"`
}

// MetadataPatch is a shallow partial update of JobMetadata. Nil fields are
// left untouched; counters are set explicitly by the caller, never
// auto-incremented here.
type MetadataPatch struct {
	Stage               *JobStage
	TotalSegments       *int
	ProcessedSegments   *int
	CurrentSegmentIndex *int
	CurrentSegmentRange *string
	HandsFound          *int
	ProgressPercent     *int
}

// Apply merges the patch into md.
func (p MetadataPatch) Apply(md *JobMetadata) {
	if p.Stage != nil {
		md.Stage = *p.Stage
	}
	if p.TotalSegments != nil {
		md.TotalSegments = *p.TotalSegments
	}
	if p.ProcessedSegments != nil {
		md.ProcessedSegments = *p.ProcessedSegments
	}
	if p.CurrentSegmentIndex != nil {
		md.CurrentSegmentIndex = *p.CurrentSegmentIndex
	}
	if p.CurrentSegmentRange != nil {
		md.CurrentSegmentRange = *p.CurrentSegmentRange
	}
	if p.HandsFound != nil {
		md.HandsFound = *p.HandsFound
	}
	if p.ProgressPercent != nil {
		md.ProgressPercent = *p.ProgressPercent
	}
}

// Job is one end-to-end analysis request covering all segments of a single
// video submission. Owned by the job store; callers work with snapshots.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	StreamRef   string          `json:"streamRef"`
	VideoURI    string          `json:"videoUri"`
	Platform    Platform        `json:"platform"`
	Segments    []TimeSegment   `json:"segments"`
	Status      JobStatus       `json:"status"`
	Metadata    JobMetadata     `json:"metadata"`
	Output      *AnalysisOutput `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewJob allocates a fresh PENDING job for the submission.
func NewJob(streamRef, videoURI string, platform Platform, segments []TimeSegment) *Job {
	now := time.Now().UTC()
	segs := make([]TimeSegment, len(segments))
	copy(segs, segments)
	return &Job{
		ID:        uuid.New(),
		StreamRef: streamRef,
		VideoURI:  videoURI,
		Platform:  platform,
		Segments:  segs,
		Status:    JobStatusPending,
		Metadata: JobMetadata{
			StreamRef:     streamRef,
			Stage:         StageInitializing,
			TotalSegments: len(segments),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkExecuting transitions PENDING -> EXECUTING and stamps StartedAt.
func (j *Job) MarkExecuting() {
	now := time.Now().UTC()
	j.Status = JobStatusExecuting
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkSuccess attaches the aggregate output and transitions to SUCCESS.
func (j *Job) MarkSuccess(output *AnalysisOutput) {
	now := time.Now().UTC()
	j.Status = JobStatusSuccess
	j.Output = output
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// MarkFailure transitions to FAILURE with the fatal error message.
func (j *Job) MarkFailure(errMsg string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailure
	j.Error = errMsg
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// Clone returns a snapshot safe to hand to callers. Hands are append-only so
// a slice copy is sufficient.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Segments = make([]TimeSegment, len(j.Segments))
	copy(cp.Segments, j.Segments)
	if j.Output != nil {
		out := AnalysisOutput{
			Hands:          make([]Hand, len(j.Output.Hands)),
			SegmentResults: make([]SegmentResult, len(j.Output.SegmentResults)),
		}
		copy(out.Hands, j.Output.Hands)
		copy(out.SegmentResults, j.Output.SegmentResults)
		cp.Output = &out
	}
	return &cp
}
