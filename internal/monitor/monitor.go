package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics uses its own registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	OpDuration    *prometheus.HistogramVec
	OpErrors      *prometheus.CounterVec
	BetsPlaced    prometheus.Counter
	BetsResolved  *prometheus.CounterVec
	ChipsWagered  prometheus.Counter
	ChipsPaid     prometheus.Counter
	RoundsPlayed  prometheus.Counter
	TurnsExpired  prometheus.Counter
	OnlineSockets prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Table operation latency including the store transaction",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"op"}),
		OpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed table operations by error kind",
		}, []string{"op", "kind"}),
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_placed_total",
			Help:      "Bets accepted",
		}),
		BetsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_resolved_total",
			Help:      "Bets settled by outcome",
		}, []string{"outcome"}),
		ChipsWagered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chips_wagered_total",
			Help:      "Chips debited for wagers",
		}),
		ChipsPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chips_paid_total",
			Help:      "Chips credited for payouts and refunds",
		}),
		RoundsPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_completed_total",
			Help:      "Rounds resolved by the dealer",
		}),
		TurnsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_expired_total",
			Help:      "Tables whose turn deadline passed and were auto-stood",
		}),
		OnlineSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_sockets",
			Help:      "Open websocket connections",
		}),
	}

	m.registry.MustRegister(
		m.OpDuration,
		m.OpErrors,
		m.BetsPlaced,
		m.BetsResolved,
		m.ChipsWagered,
		m.ChipsPaid,
		m.RoundsPlayed,
		m.TurnsExpired,
		m.OnlineSockets,
	)

	return m
}

// Observe records one operation. Call it with the operation's start time.
func (m *Metrics) Observe(op string, start time.Time, errKind string) {
	if m == nil {
		return
	}
	m.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if errKind != "" {
		m.OpErrors.WithLabelValues(op, errKind).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
