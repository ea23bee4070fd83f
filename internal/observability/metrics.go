package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveCaptures  prometheus.Gauge
	WorkflowEvents  *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	EstimatedCost   *prometheus.CounterVec
	RemoteLatencyMS *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCaptures: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_captures",
			Help:      "Number of in-progress audio capture sessions.",
		}),
		WorkflowEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_events_total",
			Help:      "Workflow events by type.",
		}, []string{"event"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Remote endpoint errors by stage and kind.",
		}, []string{"stage", "kind"}),
		EstimatedCost: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimated_cost_total",
			Help:      "Estimated spend per completed remote call, by stage.",
		}, []string{"stage"}),
		RemoteLatencyMS: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_latency_ms",
			Help:      "Remote call latency in milliseconds, by stage.",
			Buckets:   []float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		}, []string{"stage"}),
	}
}

func (m *Metrics) ObserveRemoteLatency(stage string, d time.Duration) {
	m.RemoteLatencyMS.WithLabelValues(stage).Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
