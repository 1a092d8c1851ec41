// Package metrics 定义服务的 Prometheus 指标。
package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets 适配模型调用耗时的直方图分桶（100ms-120s）。
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// ProviderRequestsTotal 按提供商与结果统计调用次数。
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bella_provider_requests_total",
			Help: "Provider completion attempts",
		},
		[]string{"provider", "status"},
	)

	// ProviderLatency 单次提供商调用耗时。
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bella_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider"},
	)

	// TurnsTotal 按结果（ok / fallback / invalid）统计对话轮次。
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bella_turns_total",
			Help: "Conversation turns",
		},
		[]string{"outcome"},
	)

	// TurnDuration 一轮对话的端到端耗时。
	TurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bella_turn_duration_seconds",
			Help:    "Turn duration",
			Buckets: LLMBuckets,
		},
	)

	// DegradedTotal 按阶段统计降级次数（translation_in / translation_out / voice / persistence / social）。
	DegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bella_degraded_total",
			Help: "Degraded optional stages",
		},
		[]string{"stage"},
	)

	// WSConnections 当前活跃的 websocket 观察者数量。
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bella_ws_connections_active",
			Help: "Active websocket observers",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderLatency,
		TurnsTotal,
		TurnDuration,
		DegradedTotal,
		WSConnections,
	)
}
