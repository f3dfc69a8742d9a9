package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server-level Prometheus collectors. Admission
// collectors live in the admission package.
type Metrics struct {
	SessionsTotal  *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	ActiveLobbies  prometheus.GaugeFunc
	BytesWritten   prometheus.Counter
	GamesFinished  prometheus.Counter
	TickDuration   prometheus.Histogram
}

// NewMetrics registers the server collectors with reg. lobbyCount is
// sampled on scrape for the active lobby gauge.
func NewMetrics(reg prometheus.Registerer, lobbyCount func() int) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "server",
			Name:      "sessions_total",
			Help:      "Client sessions started, by transport",
		}, []string{"transport"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cascade",
			Subsystem: "server",
			Name:      "active_sessions",
			Help:      "Client sessions currently connected",
		}),
		ActiveLobbies: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cascade",
			Subsystem: "server",
			Name:      "active_lobbies",
			Help:      "Lobbies currently registered",
		}, func() float64 { return float64(lobbyCount()) }),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "server",
			Name:      "bytes_written_total",
			Help:      "Display update bytes sent to clients",
		}),
		GamesFinished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "server",
			Name:      "games_finished_total",
			Help:      "Games that reached the finished state",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cascade",
			Subsystem: "game",
			Name:      "tick_duration_seconds",
			Help:      "Time spent advancing game state per tick",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}
