package agentloop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queriesTotal counts finished queries.
	//
	// Labels:
	//   - outcome: "synthesis", "fallback", "exhausted", "failed", "canceled"
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpagent",
			Subsystem: "loop",
			Name:      "queries_total",
			Help:      "Total number of queries by outcome.",
		},
		[]string{"outcome"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcpagent",
			Subsystem: "loop",
			Name:      "query_duration_seconds",
			Help:      "Wall time of one query from first completion to answer.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	toolRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mcpagent",
			Subsystem: "loop",
			Name:      "tool_rounds",
			Help:      "Tool rounds performed per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
	)

	// toolCallsTotal counts tool calls.
	//
	// Labels:
	//   - tool: tool name as requested by the model
	//   - status: "ok", "error", "unknown_tool", "unavailable"
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpagent",
			Subsystem: "loop",
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls by tool and status.",
		},
		[]string{"tool", "status"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcpagent",
			Subsystem: "loop",
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)
