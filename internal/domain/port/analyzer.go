package port

import (
	"context"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
)

// SegmentAnalysis is the outcome of one inference call on one clip.
// RawResponse is retained for debugging malformed model output.
type SegmentAnalysis struct {
	Hands       []entity.Hand
	RawResponse string
}

// SegmentAnalyzer turns one extracted clip into zero or more hands. A single
// call, no retry logic; retries are the orchestrator's responsibility. The
// segment carries the absolute window the clip was cut from, the platform
// selects the prompt variant only.
type SegmentAnalyzer interface {
	AnalyzeSegment(ctx context.Context, clipURI string, segment entity.TimeSegment, platform entity.Platform) (*SegmentAnalysis, error)
}
