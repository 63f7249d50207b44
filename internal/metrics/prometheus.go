// Package metrics provides Prometheus exporters for pipeline metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the score statistics pipeline.
var (
	// Counters.
	ScoreEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_events_total",
			Help: "Total number of score events driven through the pipeline",
		},
		[]string{"ruleset", "operation", "status"},
	)

	MedalsAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medals_awarded_total",
			Help: "Total number of medals awarded",
		},
		[]string{"medal", "ruleset"},
	)

	NotificationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medal_notification_failures_total",
			Help: "Total number of medal notifications that could not be delivered",
		},
	)

	BuildCacheRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "build_cache_refreshes_total",
			Help: "Total number of wholesale build reference-set reloads",
		},
	)

	// Gauges.
	BuildCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "build_cache_size",
			Help: "Number of builds in the current reference snapshot",
		},
	)

	// Histograms.
	EventProcessingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_processing_seconds",
			Help:    "Time spent driving one score event through all eligible processors",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)
)

// RecordScoreEvent records an event driven through the pipeline.
func RecordScoreEvent(rulesetID uint, operation, status string) {
	ScoreEventsTotal.WithLabelValues(strconv.FormatUint(uint64(rulesetID), 10), operation, status).Inc()
}

// RecordMedalAwarded records a medal grant.
func RecordMedalAwarded(medalSlug string, rulesetID uint) {
	MedalsAwardedTotal.WithLabelValues(medalSlug, strconv.FormatUint(uint64(rulesetID), 10)).Inc()
}

// RecordNotificationFailure records an undeliverable medal notification.
func RecordNotificationFailure() {
	NotificationFailuresTotal.Inc()
}

// RecordBuildCacheRefresh records a wholesale build set reload.
func RecordBuildCacheRefresh(size int) {
	BuildCacheRefreshesTotal.Inc()
	BuildCacheSize.Set(float64(size))
}

// ObserveEventProcessing records the duration of one pipeline traversal.
func ObserveEventProcessing(operation string, seconds float64) {
	EventProcessingSeconds.WithLabelValues(operation).Observe(seconds)
}
