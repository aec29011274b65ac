// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service counters and their registry.
type Metrics struct {
	Registry *prometheus.Registry

	PushSubscribers prometheus.Gauge
	EventsAppended  *prometheus.CounterVec
	EventsCoalesced prometheus.Counter
	RateLimited     *prometheus.CounterVec
	CodesIssued     prometheus.Counter
	CodesRedeemed   prometheus.Counter
}

// New creates and registers the service metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		PushSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bloxradio_push_subscribers",
			Help: "Currently open push subscriptions.",
		}),
		EventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloxradio_events_appended_total",
			Help: "Events appended to pull queues, by type.",
		}, []string{"type"}),
		EventsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloxradio_events_coalesced_total",
			Help: "Events suppressed by dedup windows.",
		}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloxradio_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by scope.",
		}, []string{"scope"}),
		CodesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloxradio_pairing_codes_issued_total",
			Help: "Pairing codes issued.",
		}),
		CodesRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloxradio_pairing_codes_redeemed_total",
			Help: "Pairing codes successfully redeemed.",
		}),
	}

	reg.MustRegister(
		m.PushSubscribers,
		m.EventsAppended,
		m.EventsCoalesced,
		m.RateLimited,
		m.CodesIssued,
		m.CodesRedeemed,
	)
	return m
}

// Handler returns a Fiber handler serving the registry in the Prometheus text
// format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}
