// Package metrics provides Prometheus-based metrics recording for the agent
// loop, tool dispatch, and model backend calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives observations from the loop, dispatcher, and backend
// adapter. Implementations must be safe for use from a single flow of
// control; no locking is promised beyond that.
type Recorder interface {
	// ObserveIteration records one completed loop iteration.
	ObserveIteration(status string, attempted, succeeded int)

	// ObserveToolCall records one dispatched tool call.
	ObserveToolCall(tool, status string, duration time.Duration)

	// ObserveLLMRequest records one model backend request.
	ObserveLLMRequest(provider, model, status string, duration time.Duration)
}

// NopRecorder discards all observations. Used in tests and when metrics
// exposition is disabled.
type NopRecorder struct{}

// ObserveIteration implements Recorder.
func (NopRecorder) ObserveIteration(string, int, int) {}

// ObserveToolCall implements Recorder.
func (NopRecorder) ObserveToolCall(string, string, time.Duration) {}

// ObserveLLMRequest implements Recorder.
func (NopRecorder) ObserveLLMRequest(string, string, string, time.Duration) {}

// PrometheusRecorder implements Recorder on the default Prometheus registry.
type PrometheusRecorder struct {
	iterationsTotal    *prometheus.CounterVec
	iterationCalls     *prometheus.CounterVec
	toolCallsTotal     *prometheus.CounterVec
	toolCallDuration   *prometheus.HistogramVec
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder registered with the default
// registry. Construct at most one per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		iterationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_iterations_total",
				Help: "Total number of agent loop iterations by status",
			},
			[]string{"status"},
		),
		iterationCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_iteration_calls_total",
				Help: "Tool calls attempted and succeeded across iterations",
			},
			[]string{"outcome"},
		),
		toolCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_calls_total",
				Help: "Total number of dispatched tool calls by tool and status",
			},
			[]string{"tool", "status"},
		),
		toolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rpc_request_duration_seconds",
				Help:    "Duration of tool-call RPC round trips",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		llmRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of model backend requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),
		llmRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of model backend requests in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),
	}
}

// ObserveIteration implements Recorder.
func (p *PrometheusRecorder) ObserveIteration(status string, attempted, succeeded int) {
	p.iterationsTotal.WithLabelValues(status).Inc()
	p.iterationCalls.WithLabelValues("attempted").Add(float64(attempted))
	p.iterationCalls.WithLabelValues("succeeded").Add(float64(succeeded))
}

// ObserveToolCall implements Recorder.
func (p *PrometheusRecorder) ObserveToolCall(tool, status string, duration time.Duration) {
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
	p.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveLLMRequest implements Recorder.
func (p *PrometheusRecorder) ObserveLLMRequest(provider, model, status string, duration time.Duration) {
	p.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	p.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}
