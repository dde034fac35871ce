// Package observability provides Prometheus instrumentation for the gateway.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal counts generation calls by provider and outcome. The
	// outcome label is "ok" or the error category.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_generations_total",
			Help: "Total generation calls by provider, mode and outcome.",
		},
		[]string{"provider", "mode", "outcome"}, // mode: "sync" or "stream"
	)

	// GenerationDuration tracks end-to-end generation latency in seconds.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelgate_generation_duration_seconds",
			Help:    "End-to-end generation latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "mode"},
	)

	// ActiveStreams tracks the number of in-flight streaming generations.
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelgate_active_streams",
			Help: "Number of currently in-flight streaming generations.",
		},
	)

	// TokenUsageTotal counts tokens as reported by providers.
	TokenUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_token_usage_total",
			Help: "Total tokens consumed by provider and direction.",
		},
		[]string{"provider", "direction"}, // direction: "input" or "output"
	)
)

// ObserveGeneration records one finished generation call.
func ObserveGeneration(provider, mode, outcome string, start time.Time) {
	GenerationsTotal.WithLabelValues(provider, mode, outcome).Inc()
	GenerationDuration.WithLabelValues(provider, mode).Observe(time.Since(start).Seconds())
}

// ObserveTokens records provider-reported token usage.
func ObserveTokens(provider string, input, output int) {
	if input > 0 {
		TokenUsageTotal.WithLabelValues(provider, "input").Add(float64(input))
	}
	if output > 0 {
		TokenUsageTotal.WithLabelValues(provider, "output").Add(float64(output))
	}
}
