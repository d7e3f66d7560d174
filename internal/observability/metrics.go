package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seek_portal_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seek_portal_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
	}, []string{"method", "path"})

	// Agent
	agentStreams = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seek_portal_agent_streams_total",
		Help: "Total number of orchestrator runs by outcome",
	}, []string{"outcome"})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seek_portal_agent_active_streams",
		Help: "Number of orchestrator runs in flight",
	})

	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seek_portal_tool_calls_total",
		Help: "Total number of tool executions by status",
	}, []string{"status"})

	routingDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seek_portal_routing_decisions_total",
		Help: "Total number of routing decisions by target agent",
	}, []string{"agent"})

	// Retrieval
	retrievalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seek_portal_retrieval_duration_seconds",
		Help:    "Retrieval context latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"backend"})
)

// 编排结果
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
)

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// StreamStarted 编排开始
func StreamStarted() {
	activeStreams.Inc()
}

// StreamFinished 编排结束
func StreamFinished(outcome string) {
	activeStreams.Dec()
	agentStreams.WithLabelValues(outcome).Inc()
}

// RecordToolCall 记录工具调用
func RecordToolCall(status string) {
	toolCalls.WithLabelValues(status).Inc()
}

// RecordRoutingDecision 记录路由结果
func RecordRoutingDecision(agent string) {
	routingDecisions.WithLabelValues(agent).Inc()
}

// RecordRetrieval 记录检索耗时
func RecordRetrieval(backend string, d time.Duration) {
	retrievalDuration.WithLabelValues(backend).Observe(d.Seconds())
}
