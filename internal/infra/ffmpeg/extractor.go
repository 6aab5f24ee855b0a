package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
)

// Extractor cuts segment clips out of a local video file with ffmpeg and
// probes durations with ffprobe.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractClip writes the [segment.Start, segment.End) window of videoPath to
// outPath. Stream copy keeps extraction cheap; the inference API does not
// need re-encoded input.
func (e *Extractor) ExtractClip(ctx context.Context, videoPath string, segment entity.TimeSegment, outPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", formatSeconds(segment.Start),
		"-i", videoPath,
		"-t", formatSeconds(segment.Duration()),
		"-c", "copy",
		outPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, tail(string(output), 500))
	}

	e.logger.Debug("clip extracted",
		zap.String("range", segment.Range()),
		zap.String("out", outPath),
	)
	return nil
}

// ProbeDuration returns the container duration in seconds.
func (e *Extractor) ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
