package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ptapal/experimental-psychology/internal/session"
)

const namespace = "wcst"

// Metrics holds the session collectors registered on one registry.
type Metrics struct {
	reg *prometheus.Registry

	// trials counts scored trials. Labels: outcome (correct, incorrect, no_response)
	trials *prometheus.CounterVec

	// ruleChanges counts rule transitions. Labels: from, to
	ruleChanges *prometheus.CounterVec

	// responseTime records answered trial latency in seconds.
	responseTime prometheus.Histogram

	// streak is the consecutive-correct count after the latest trial.
	streak prometheus.Gauge

	// sessions counts finished sessions. Labels: status
	sessions *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		trials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Scored trials by outcome",
		}, []string{"outcome"}),
		ruleChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_changes_total",
			Help:      "Sort rule transitions",
		}, []string{"from", "to"}),
		responseTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_time_seconds",
			Help:      "Time from presentation to answer",
			Buckets:   []float64{0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5, 7.5, 10},
		}),
		streak: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streak",
			Help:      "Consecutive correct answers under the active rule",
		}),
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished sessions by final status",
		}, []string{"status"}),
	}
}

// ObserveTrial implements session.Observer.
func (m *Metrics) ObserveTrial(t session.Trial) {
	m.trials.WithLabelValues(string(t.Outcome())).Inc()
	if t.ResponseTime != nil {
		m.responseTime.Observe(t.ResponseTime.Seconds())
	}

	switch {
	case t.RuleChanged:
		m.ruleChanges.WithLabelValues(string(t.ActiveRule), string(t.NextRule)).Inc()
		m.streak.Set(0)
	case t.Correct:
		m.streak.Set(float64(t.StreakAtStart + 1))
	default:
		m.streak.Set(0)
	}
}

// SessionFinished counts a session under its final status.
func (m *Metrics) SessionFinished(status string) {
	m.sessions.WithLabelValues(status).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
