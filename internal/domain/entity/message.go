package entity

import "github.com/google/uuid"

// AnalysisRequestMessage is the inbound submission payload consumed from the
// analysis request queue. Mirrors the body of POST /analyze.
type AnalysisRequestMessage struct {
	StreamID string        `json:"streamId"`
	VideoRef string        `json:"videoRef"`
	Segments []TimeSegment `json:"segments"`
	Platform Platform      `json:"platform"`
	Players  []string      `json:"players,omitempty"`
}

// JobStatusMessage is published to the status queue on every job transition
// so downstream consumers can mirror job state without polling.
type JobStatusMessage struct {
	JobID             uuid.UUID `json:"job_id"`
	StreamRef         string    `json:"stream_ref"`
	Status            JobStatus `json:"status"`
	ProcessedSegments int       `json:"processed_segments"`
	TotalSegments     int       `json:"total_segments"`
	HandsFound        int       `json:"hands_found"`
	ProgressPercent   int       `json:"progress_percent"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

// StatusMessageFor builds the queue payload from a job snapshot.
func StatusMessageFor(job *Job) JobStatusMessage {
	return JobStatusMessage{
		JobID:             job.ID,
		StreamRef:         job.StreamRef,
		Status:            job.Status,
		ProcessedSegments: job.Metadata.ProcessedSegments,
		TotalSegments:     job.Metadata.TotalSegments,
		HandsFound:        job.Metadata.HandsFound,
		ProgressPercent:   job.Metadata.ProgressPercent,
		ErrorMessage:      job.Error,
	}
}
