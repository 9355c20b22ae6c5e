package unifiedllm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for completion calls.
var (
	// completionDuration measures completion round trips.
	//
	// Labels:
	//   - provider: adapter name ("openai", "gollm", ...)
	//   - status: "success" or "error"
	completionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcpagent",
			Subsystem: "completion",
			Name:      "duration_seconds",
			Help:      "Duration of chat completion calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	completionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpagent",
			Subsystem: "completion",
			Name:      "calls_total",
			Help:      "Total number of chat completion calls.",
		},
		[]string{"provider", "status"},
	)

	// completionErrorsTotal counts failures by ErrorKind.
	completionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpagent",
			Subsystem: "completion",
			Name:      "errors_total",
			Help:      "Total chat completion errors by kind.",
		},
		[]string{"provider", "error_kind"},
	)

	completionTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpagent",
			Subsystem: "completion",
			Name:      "tokens_total",
			Help:      "Tokens reported by the provider, by direction.",
		},
		[]string{"provider", "direction"},
	)
)

func recordCompletionMetrics(provider string, duration time.Duration, resp *Response, err error) {
	status := "success"
	if err != nil {
		status = "error"
		completionErrorsTotal.WithLabelValues(provider, ErrorKind(err)).Inc()
	}
	completionDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	completionsTotal.WithLabelValues(provider, status).Inc()

	if resp != nil {
		completionTokensTotal.WithLabelValues(provider, "input").Add(float64(resp.Usage.InputTokens))
		completionTokensTotal.WithLabelValues(provider, "output").Add(float64(resp.Usage.OutputTokens))
	}
}

// MetricsMiddleware records call count, latency, errors and token usage.
func MetricsMiddleware() Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		recordCompletionMetrics(req.Provider, time.Since(start), resp, err)
		return resp, err
	}
}
