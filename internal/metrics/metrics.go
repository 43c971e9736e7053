package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by route and status",
}, []string{"route", "status"})

var evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "resume_evaluations_total",
	Help: "Finished evaluations labelled by outcome (ok or error kind)",
}, []string{"outcome"})

var stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "resume_evaluation_stage_seconds",
	Help:    "Time spent reaching each evaluation stage.",
	Buckets: []float64{.001, .01, .1, .5, 1, 2, 5, 10, 30, 60},
}, []string{"stage"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"service", "status"})

var jobFeedCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "job_feed_cache_total",
	Help: "Job feed cache lookups labelled by result (hit, miss, error)",
}, []string{"result"})

func CaptureEvaluation(outcome string) {
	evaluationsTotal.WithLabelValues(outcome).Inc()
}

func CaptureStage(stage string, timeElapsed time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(timeElapsed.Seconds())
}

// CaptureDependency records one outbound call. status is the HTTP status,
// or 0 when no response was received.
func CaptureDependency(service string, status int, timeElapsed time.Duration) {
	label := "none"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	dependencyLatency.WithLabelValues(service, label).Observe(timeElapsed.Seconds())
}

func CaptureCache(result string) {
	jobFeedCache.WithLabelValues(result).Inc()
}

func CaptureRequest(route string, status int) {
	HttpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
