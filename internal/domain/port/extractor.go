package port

import (
	"context"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
)

// ClipExtractor cuts one time window out of a local video file.
type ClipExtractor interface {
	ExtractClip(ctx context.Context, videoPath string, segment entity.TimeSegment, outPath string) error
	ProbeDuration(ctx context.Context, videoPath string) (float64, error)
}
