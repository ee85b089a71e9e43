package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// prometheusMetrics is the Prometheus-backed implementation of Metrics,
// following the teacher's pkg/metrics/prometheus split: one counter/gauge
// set built with promauto against a caller-supplied registry, with
// nil-receiver methods so passing a nil *prometheusMetrics anywhere a
// Metrics is expected is always safe.
type prometheusMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsActive   prometheus.Gauge
	commandsTotal       *prometheus.CounterVec
	commandDuration     *prometheus.HistogramVec
	batchSize           prometheus.Histogram
}

// NewPrometheusMetrics registers the service's metric families against reg
// and returns a Metrics implementation backed by them.
func NewPrometheusMetrics(reg prometheus.Registerer) Metrics {
	if reg == nil {
		return Noop()
	}

	factory := promauto.With(reg)
	return &prometheusMetrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "kvserver_connections_accepted_total",
			Help: "Total number of accepted TCP connections.",
		}),
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kvserver_connections_active",
			Help: "Number of currently open TCP connections.",
		}),
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kvserver_commands_total",
			Help: "Total number of dispatched commands by opcode and reply status.",
		}, []string{"opcode", "status"}),
		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kvserver_command_duration_seconds",
			Help:    "Handler latency by opcode.",
			Buckets: prometheus.DefBuckets,
		}, []string{"opcode"}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kvserver_batch_items",
			Help:    "Number of sub-operations in successfully applied BATCH commands.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
	}
}

func (m *prometheusMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
	m.connectionsActive.Inc()
}

func (m *prometheusMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *prometheusMetrics) CommandProcessed(opcode string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(opcode, status).Inc()
	m.commandDuration.WithLabelValues(opcode).Observe(duration.Seconds())
}

func (m *prometheusMetrics) BatchSize(n int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(n))
}
