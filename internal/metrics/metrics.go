package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podexport_exports_total",
			Help: "Total number of export requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podexport_cache_lookups_total",
			Help: "Export cache lookups by result",
		},
		[]string{"result"},
	)

	RemoteQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podexport_remote_queries_total",
			Help: "Queries sent to the remote POD service by outcome",
		},
		[]string{"outcome"},
	)

	ImageProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podexport_image_probes_total",
			Help: "Picture host probes by outcome",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "podexport_stage_duration_seconds",
			Help:    "Duration of export pipeline stages in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)
)

// ObserveStage records how long a pipeline stage took since start
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Outcome maps an error to a metric label
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
