package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "teamfit"

// Turn outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics records supervisor activity. A nil *Metrics is a no-op.
type Metrics struct {
	turns           *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	routingFallback prometheus.Counter
	historyFailures prometheus.Counter
	downloads       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Supervisor turns by routed agent and outcome",
			},
			[]string{"agent", "outcome"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Supervisor turn latency by routed agent",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"agent"},
		),
		routingFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_fallback_total",
			Help:      "Turns routed to the fallback agent",
		}),
		historyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_append_failures_total",
			Help:      "History appends that failed after a completed turn",
		}),
		downloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_downloads_total",
				Help:      "Report download requests by HTTP status",
			},
			[]string{"status"},
		),
	}

	for _, c := range []prometheus.Collector{m.turns, m.turnDuration, m.routingFallback, m.historyFailures, m.downloads} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTurn records one finished turn. agent is empty when routing failed.
func (m *Metrics) ObserveTurn(agent string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	if agent == "" {
		agent = "none"
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.turns.WithLabelValues(agent, outcome).Inc()
	m.turnDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

func (m *Metrics) IncRoutingFallback() {
	if m == nil {
		return
	}
	m.routingFallback.Inc()
}

func (m *Metrics) IncHistoryFailure() {
	if m == nil {
		return
	}
	m.historyFailures.Inc()
}

func (m *Metrics) IncDownload(status string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(status).Inc()
}
