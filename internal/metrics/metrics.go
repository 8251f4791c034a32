// Package metrics defines the Prometheus collectors exported by FlowMentor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for ProviderAttempts.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowmentor_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "flowmentor_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowmentor_provider_attempts_total",
			Help: "Total number of LLM provider attempts",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowmentor_provider_latency_seconds",
			Help:    "LLM provider call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	Responses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowmentor_responses_total",
			Help: "Total number of chat responses by source and zone",
		},
		[]string{"source", "zone"},
	)

	ExchangeStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowmentor_exchange_store_errors_total",
			Help: "Total number of exchange log write failures",
		},
	)
)

// ObserveProviderAttempt records one provider call.
func ObserveProviderAttempt(provider string, ok bool, d time.Duration) {
	outcome := OutcomeFailure
	if ok {
		outcome = OutcomeSuccess
	}
	ProviderAttempts.WithLabelValues(provider, outcome).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveResponse records a payload returned to a caller.
func ObserveResponse(source, zone string) {
	Responses.WithLabelValues(source, zone).Inc()
}
