package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the prometheus collectors for the reasoning core.
type Metrics struct {
	registry *prometheus.Registry

	FramesProcessed    *prometheus.CounterVec
	AnomaliesDetected  *prometheus.CounterVec
	AnomaliesConfirmed *prometheus.CounterVec
	IncidentsCreated   prometheus.Counter
	OracleFailures     prometheus.Counter
	CognitiveQueueSize prometheus.GaugeFunc
}

// New builds the collector set. queueSize feeds the cognitive queue gauge.
func New(queueSize func() float64) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		FramesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_frames_processed_total",
			Help: "Observations processed, per camera.",
		}, []string{"camera_id"}),
		AnomaliesDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_anomalies_detected_total",
			Help: "Anomalous observations, per camera and anomaly type.",
		}, []string{"camera_id", "anomaly_type"}),
		AnomaliesConfirmed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_anomalies_confirmed_total",
			Help: "Anomalies confirmed by the verification gate, per camera.",
		}, []string{"camera_id"}),
		IncidentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_incidents_created_total",
			Help: "Security incidents opened.",
		}),
		OracleFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_oracle_failures_total",
			Help: "Failed reasoning oracle requests.",
		}),
	}

	if queueSize != nil {
		m.CognitiveQueueSize = factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sentinel_cognitive_queue_size",
			Help: "Tasks waiting in the cognitive queue.",
		}, queueSize)
	}

	return m
}

// Handler serves the scrape endpoint for this collector set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
