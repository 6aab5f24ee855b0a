package entity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SegmentType tags what a time range of the source video contains.
type SegmentType string

const (
	SegmentGameplay  SegmentType = "gameplay"
	SegmentBreak     SegmentType = "break"
	SegmentOpening   SegmentType = "opening"
	SegmentCountdown SegmentType = "countdown"
	SegmentEnding    SegmentType = "ending"
)

var (
	ErrInvalidRange        = errors.New("segment range invalid")
	ErrExceedsDuration     = errors.New("segment exceeds video duration")
	ErrOverlappingSegments = errors.New("segments overlap")
	ErrInvalidTimecode     = errors.New("invalid timecode")
)

// TimeSegment is a bounded [Start, End) range of the source video, in seconds.
// Immutable once the owning job starts.
type TimeSegment struct {
	Start float64     `json:"start"`
	End   float64     `json:"end"`
	Type  SegmentType `json:"type,omitempty"`
}

// Duration returns the segment length in seconds.
func (s TimeSegment) Duration() float64 {
	return s.End - s.Start
}

// Range renders the segment window the way job metadata reports it, e.g. "120s-300s".
func (s TimeSegment) Range() string {
	return fmt.Sprintf("%gs-%gs", s.Start, s.End)
}

// Validate checks segment bounds. videoDuration of zero means the total
// duration is unknown and the upper-bound check is skipped.
func (s TimeSegment) Validate(videoDuration float64) error {
	if s.Start < 0 || s.End <= s.Start {
		return fmt.Errorf("%w: %s", ErrInvalidRange, s.Range())
	}
	if videoDuration > 0 && s.End > videoDuration {
		return fmt.Errorf("%w: %s beyond %gs", ErrExceedsDuration, s.Range(), videoDuration)
	}
	return nil
}

// ValidateSegments validates every segment and the pairwise non-overlap
// invariant of the whole plan.
func ValidateSegments(segments []TimeSegment, videoDuration float64) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: at least one segment is required", ErrInvalidRange)
	}
	for i, seg := range segments {
		if err := seg.Validate(videoDuration); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	if HasOverlap(segments) {
		return ErrOverlappingSegments
	}
	return nil
}

// HasOverlap reports whether any two [Start, End) intervals intersect.
// Pairwise scan is fine at the segment counts seen in practice (<100).
func HasOverlap(segments []TimeSegment) bool {
	for i := 0; i < len(segments); i++ {
		for j := i + 1; j < len(segments); j++ {
			if segments[i].Start < segments[j].End && segments[j].Start < segments[i].End {
				return true
			}
		}
	}
	return false
}

// TotalGameplaySeconds sums the length of gameplay-tagged segments. Used for
// cost estimation only.
func TotalGameplaySeconds(segments []TimeSegment) float64 {
	var total float64
	for _, seg := range segments {
		if seg.Type == SegmentGameplay {
			total += seg.Duration()
		}
	}
	return total
}

// SplitForAnalysis breaks a segment into sub-windows no longer than
// maxClipSeconds. The inference API caps clip length, so long gameplay
// blocks are analyzed in pieces.
func SplitForAnalysis(seg TimeSegment, maxClipSeconds float64) []TimeSegment {
	if maxClipSeconds <= 0 || seg.Duration() <= maxClipSeconds {
		return []TimeSegment{seg}
	}
	var out []TimeSegment
	for start := seg.Start; start < seg.End; start += maxClipSeconds {
		end := math.Min(start+maxClipSeconds, seg.End)
		out = append(out, TimeSegment{Start: start, End: end, Type: seg.Type})
	}
	return out
}

// ParseTimecode converts "HH:MM:SS" or "MM:SS" to seconds.
func ParseTimecode(tc string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(tc), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, tc)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, tc)
		}
		total = total*60 + v
	}
	return total, nil
}

// FormatTimecode renders seconds as "MM:SS" or "H:MM:SS" for durations over
// an hour.
func FormatTimecode(seconds float64) string {
	total := int(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
