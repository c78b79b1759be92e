// Package metrics provides Prometheus metrics for the v2 transport driver.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bip324"

// Metrics contains all Prometheus metrics for a running transport driver.
type Metrics struct {
	HandshakesStarted   prometheus.Counter
	HandshakesCompleted prometheus.Counter
	HandshakesFailed    *prometheus.CounterVec
	V1Fallbacks         prometheus.Counter

	PacketsSent     prometheus.Counter
	PacketsReceived prometheus.Counter
	RekeysPerformed prometheus.Counter

	GarbageBytesSent     prometheus.Counter
	GarbageBytesReceived prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance, registered against the
// global Prometheus registry.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance registered against the default
// Prometheus registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom
// registry, so tests (and embedders running multiple sessions in one
// process) can avoid colliding with the global default.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HandshakesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_started_total",
			Help:      "Total number of v2 handshakes started",
		}),
		HandshakesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_completed_total",
			Help:      "Total number of v2 handshakes completed successfully",
		}),
		HandshakesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_failed_total",
			Help:      "Total number of v2 handshakes that failed, by reason",
		}, []string{"reason"}),
		V1Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "v1_fallbacks_total",
			Help:      "Total number of connections that fell back to the legacy v1 codec",
		}),

		PacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Total number of v2 packets sent",
		}),
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total number of v2 packets received",
		}),
		RekeysPerformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rekeys_total",
			Help:      "Total number of forward-secure cipher rekeys performed",
		}),

		GarbageBytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "garbage_bytes_sent_total",
			Help:      "Total garbage bytes sent during handshakes",
		}),
		GarbageBytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "garbage_bytes_received_total",
			Help:      "Total garbage bytes received during handshakes",
		}),
	}
}
