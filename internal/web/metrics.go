package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics lives on its own registry so several servers (tests) can coexist.
type metrics struct {
	registry    *prometheus.Registry
	conversions *prometheus.CounterVec
	expansions  *prometheus.CounterVec
	instances   prometheus.Counter
	checkins    *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		conversions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventpoints",
			Name:      "time_conversions_total",
			Help:      "Civil/UTC conversions served, by direction",
		}, []string{"direction"}),
		expansions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventpoints",
			Name:      "recurrence_expansions_total",
			Help:      "Recurrence expansions, by recurrence type and result",
		}, []string{"type", "result"}),
		instances: f.NewCounter(prometheus.CounterOpts{
			Namespace: "eventpoints",
			Name:      "events_created_total",
			Help:      "Events created in the backend, counting each recurrence instance",
		}),
		checkins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventpoints",
			Name:      "checkins_total",
			Help:      "Check-in attempts, by result",
		}, []string{"result"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventpoints",
			Name:      "backend_refreshes_total",
			Help:      "Backend snapshot refreshes, by result",
		}, []string{"result"}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
