package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_jobs_total",
		Help: "Total number of analysis jobs reaching a terminal state, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analysis_stage_duration_seconds",
		Help:    "Duration of analysis pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	SegmentsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_segments_processed_total",
		Help: "Total number of segments processed, by result",
	}, []string{"result"})

	HandsExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_hands_extracted_total",
		Help: "Total number of poker hands extracted across all jobs",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "analysis_active_jobs",
		Help: "Number of jobs currently executing",
	})

	SegmentRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_segment_retries_total",
		Help: "Total number of per-segment inference retries",
	}, []string{"attempt"})

	JobsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_jobs_reaped_total",
		Help: "Total number of stuck jobs force-failed by the reaper",
	})
)
