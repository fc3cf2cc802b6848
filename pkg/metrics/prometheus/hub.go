// Package prometheus provides the Prometheus-backed implementation of the
// hub metrics interfaces.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/sdrhub/pkg/metrics"
)

// hubMetrics is the Prometheus implementation of metrics.HubMetrics.
type hubMetrics struct {
	liveSessions     prometheus.Gauge
	samplesIngested  *prometheus.CounterVec
	bytesIngested    *prometheus.CounterVec
	samplesPublished *prometheus.CounterVec
	subscribers      *prometheus.GaugeVec
	payloadsDropped  *prometheus.CounterVec
}

// NewHubMetrics registers the hub collectors with reg and returns the
// HubMetrics implementation backed by them.
func NewHubMetrics(reg prometheus.Registerer) metrics.HubMetrics {
	return &hubMetrics{
		liveSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "sdrhub_node_sessions",
			Help: "Number of currently admitted node control sessions",
		}),
		samplesIngested: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sdrhub_samples_ingested_total",
			Help: "Total payloads archived from node data sessions",
		}, []string{"kind"}),
		bytesIngested: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sdrhub_bytes_ingested_total",
			Help: "Total payload bytes archived from node data sessions",
		}, []string{"kind"}),
		samplesPublished: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sdrhub_samples_published_total",
			Help: "Total payloads fanned out to stream subscribers",
		}, []string{"kind"}),
		subscribers: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "sdrhub_stream_subscribers",
			Help: "Number of frontend subscribers attached per stream kind",
		}, []string{"kind"}),
		payloadsDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sdrhub_payloads_dropped_total",
			Help: "Payloads missed by lagging stream subscribers",
		}, []string{"kind"}),
	}
}

func (m *hubMetrics) NodeAdmitted() {
	m.liveSessions.Inc()
}

func (m *hubMetrics) NodeRemoved() {
	m.liveSessions.Dec()
}

func (m *hubMetrics) SampleIngested(kind string, bytes int) {
	m.samplesIngested.WithLabelValues(kind).Inc()
	m.bytesIngested.WithLabelValues(kind).Add(float64(bytes))
}

func (m *hubMetrics) SamplePublished(kind string) {
	m.samplesPublished.WithLabelValues(kind).Inc()
}

func (m *hubMetrics) SubscriberAttached(kind string) {
	m.subscribers.WithLabelValues(kind).Inc()
}

func (m *hubMetrics) SubscriberDetached(kind string) {
	m.subscribers.WithLabelValues(kind).Dec()
}

func (m *hubMetrics) PayloadsDropped(kind string, count uint64) {
	m.payloadsDropped.WithLabelValues(kind).Add(float64(count))
}
