package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfinder_searches_total",
		Help: "Total number of searches by outcome",
	}, []string{"source", "outcome"})

	PagesServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfinder_pages_served_total",
		Help: "Total number of pagination requests by outcome",
	}, []string{"outcome"})

	UpstreamAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfinder_upstream_attempts_total",
		Help: "Total number of AliExpress API attempts",
	}, []string{"method", "result"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealfinder_upstream_latency_seconds",
		Help:    "Latency of single AliExpress API attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealfinder_stage_duration_seconds",
		Help:    "Duration of search pipeline stages",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
	}, []string{"stage"})

	OracleTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealfinder_oracle_tokens_total",
		Help: "Total number of LLM tokens consumed",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// UpstreamObserver feeds AliExpress client attempts into the upstream metrics.
type UpstreamObserver struct{}

func (UpstreamObserver) ObserveAttempt(method, result string, elapsed time.Duration) {
	UpstreamAttemptsTotal.WithLabelValues(method, result).Inc()
	UpstreamLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, elapsed time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}
