package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/aislesim/internal/agents"
	"github.com/talgya/aislesim/internal/engine"
	"github.com/talgya/aislesim/internal/history"
)

// Metrics are the batch counters exported on /metrics. Each Metrics owns its
// registry so tests and replays never collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	RunsCompleted prometheus.Counter
	Admitted      prometheus.Counter
	Transmissions prometheus.Counter
	Departures    *prometheus.CounterVec
	ShoppingTicks prometheus.Histogram
	ExposureTicks prometheus.Counter
}

// NewMetrics registers the batch counters on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RunsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "aislesim_runs_completed_total",
			Help: "Simulated days committed to the history.",
		}),
		Admitted: f.NewCounter(prometheus.CounterOpts{
			Name: "aislesim_customers_admitted_total",
			Help: "Customers that entered the store.",
		}),
		Transmissions: f.NewCounter(prometheus.CounterOpts{
			Name: "aislesim_transmissions_total",
			Help: "Customers infected inside the store.",
		}),
		Departures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aislesim_departures_total",
			Help: "Customers that left the store, by infection status.",
		}, []string{"infected"}),
		ShoppingTicks: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "aislesim_shopping_ticks",
			Help:    "Ticks each customer spent in the store.",
			Buckets: prometheus.ExponentialBuckets(4, 2, 8),
		}),
		ExposureTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "aislesim_exposure_ticks_total",
			Help: "Ticks of co-location between infectious and susceptible customers.",
		}),
	}
}

// Hooks returns engine hooks that feed the per-customer counters. Prometheus
// collectors are safe for concurrent use, so parallel runs may share them.
func (m *Metrics) Hooks() engine.Hooks {
	return engine.Hooks{
		OnAdmit: func(int, *agents.Customer) { m.Admitted.Inc() },
		OnTransmit: func(int, *agents.Customer, *agents.Customer) {
			m.Transmissions.Inc()
		},
		OnDepart: func(_ int, c *agents.Customer) {
			label := "false"
			if c.IsInfected() {
				label = "true"
			}
			m.Departures.WithLabelValues(label).Inc()
			m.ShoppingTicks.Observe(float64(c.ShoppingTime))
		},
	}
}

// ObserveRun counts a committed run. Its signature matches Engine.OnRun.
func (m *Metrics) ObserveRun(_ int, r *history.Run) {
	m.RunsCompleted.Inc()
	m.ExposureTicks.Add(float64(r.TotalExposure()))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
