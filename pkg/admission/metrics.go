package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the tracker's prometheus series.
type Metrics struct {
	Admitted   prometheus.Counter
	Rejected   prometheus.Counter
	AbuseFlags prometheus.Counter
	Live       prometheus.Gauge
}

// NewMetrics registers the admission metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Admitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "admission",
			Name:      "admitted_total",
			Help:      "Connections admitted.",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "admission",
			Name:      "rejected_total",
			Help:      "Connections rejected at the per-address ceiling.",
		}),
		AbuseFlags: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "admission",
			Name:      "abuse_flags_total",
			Help:      "Rapid-reconnect events flagged within the rolling window.",
		}),
		Live: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cascade",
			Subsystem: "admission",
			Name:      "live_connections",
			Help:      "Currently admitted connections.",
		}),
	}
}
