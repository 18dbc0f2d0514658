// Package metrics registers the prometheus instrumentation every stage
// worker reports through, in the promauto style the pack's workers use.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration tracks how long one stage job took, from lease to
	// completion, labeled by stage and outcome.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poddigest_stage_duration_seconds",
			Help:    "Duration of a pipeline stage job, by stage and outcome.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage", "outcome"}, // outcome: ok, error
	)

	// StageOutcomeTotal counts stage job outcomes, labeled by stage and
	// outcome (ok, error).
	StageOutcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poddigest_stage_outcome_total",
			Help: "Total stage job outcomes by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	// QueueDepth reports the number of jobs waiting on each named queue,
	// sampled on the cron sweep.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poddigest_queue_depth",
			Help: "Number of jobs waiting in a stage queue.",
		},
		[]string{"queue"},
	)

	// DigestsCompletedTotal counts digests that reached status completed.
	DigestsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poddigest_digests_completed_total",
			Help: "Total digests that reached the completed status.",
		},
	)

	// DigestsFailedTotal counts digests that reached status failed, labeled
	// by the short failure reason (no-episodes, render-failed, etc).
	DigestsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poddigest_digests_failed_total",
			Help: "Total digests that reached the failed status, by reason.",
		},
		[]string{"reason"},
	)
)

// ObserveStage records a completed stage job's duration and outcome.
func ObserveStage(stage, outcome string, start time.Time) {
	StageDuration.WithLabelValues(stage, outcome).Observe(time.Since(start).Seconds())
	StageOutcomeTotal.WithLabelValues(stage, outcome).Inc()
}
