package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch and mirror result label values.
const (
	ResultOK      = "ok"
	ResultCached  = "cached"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics holds the collectors exported on /metrics. Each instance owns its
// registry so tests do not collide on global registration.
type Metrics struct {
	registry *prometheus.Registry

	FeedFetches   *prometheus.CounterVec
	FeedEvents    *prometheus.GaugeVec
	DroppedEvents *prometheus.CounterVec
	MirrorEntries *prometheus.CounterVec
	Renders       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuecal_feed_fetches_total",
			Help: "Feed retrievals by venue and result (ok, cached, error).",
		}, []string{"venue", "result"}),
		FeedEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "venuecal_feed_events",
			Help: "Events parsed from the last retrieved feed of a venue.",
		}, []string{"venue"}),
		DroppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuecal_feed_dropped_events_total",
			Help: "VEVENT blocks discarded for a missing or invalid start.",
		}, []string{"venue"}),
		MirrorEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuecal_mirror_entries_total",
			Help: "Mirror run outcomes per venue entry (ok, error, skipped).",
		}, []string{"result"}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venuecal_renders_total",
			Help: "Rendered views by layout and format.",
		}, []string{"view", "format"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FeedFetches,
		m.FeedEvents,
		m.DroppedEvents,
		m.MirrorEntries,
		m.Renders,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
