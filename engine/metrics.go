package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const metricsNamespace = "svcinfo"

type metrics struct {
	packetsReceived  prometheus.Counter
	packetsMalformed prometheus.Counter
	queriesSent      prometheus.Counter
	recordsCached    prometheus.Counter
	recordsExpired   prometheus.Counter
	listeners        prometheus.Gauge
}

func newMetrics() *metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      name,
			Help:      help,
		})
	}
	return &metrics{
		packetsReceived:  counter("packets_received_total", "mDNS packets read from the network."),
		packetsMalformed: counter("packets_malformed_total", "Packets that could not be parsed as DNS messages."),
		queriesSent:      counter("queries_sent_total", "Queries transmitted on at least one transport."),
		recordsCached:    counter("records_cached_total", "Resource records added to or refreshed in the cache."),
		recordsExpired:   counter("records_expired_total", "Resource records removed from the cache after their TTL elapsed."),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "listeners",
			Help:      "Registered record listeners.",
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.packetsReceived,
		m.packetsMalformed,
		m.queriesSent,
		m.recordsCached,
		m.recordsExpired,
		m.listeners,
	}
}

// register adds every collector to reg. A collector that is already
// registered is reported with the others.
func (m *metrics) register(reg prometheus.Registerer) error {
	var errs error
	for _, c := range m.collectors() {
		errs = multierr.Append(errs, reg.Register(c))
	}
	return errs
}
