package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arena"

type Metrics struct {
	Registry *prometheus.Registry

	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	UpstreamRequests *prometheus.CounterVec
	UpstreamInFlight prometheus.Gauge
	UpstreamQueued   prometheus.Gauge
	BattlesCreated   *prometheus.CounterVec
	BattlesResolved  *prometheus.CounterVec
	OnlineUsers      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "cache_hits_total",
			Help: "Catalog lookups served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "cache_misses_total",
			Help: "Catalog lookups that required an upstream call.",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upstream", Name: "requests_total",
			Help: "Upstream provider calls by outcome.",
		}, []string{"category", "outcome"}),
		UpstreamInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "upstream", Name: "in_flight",
			Help: "Upstream calls currently holding a slot.",
		}),
		UpstreamQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "upstream", Name: "queued",
			Help: "Callers waiting for an upstream slot.",
		}),
		BattlesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "battle", Name: "created_total",
			Help: "Battle sessions created by kind.",
		}, []string{"kind"}),
		BattlesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "battle", Name: "resolved_total",
			Help: "Battle sessions resolved by kind.",
		}, []string{"kind"}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "presence", Name: "online_users",
			Help: "Users seen within the presence TTL at the last read.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CacheHits,
		m.CacheMisses,
		m.UpstreamRequests,
		m.UpstreamInFlight,
		m.UpstreamQueued,
		m.BattlesCreated,
		m.BattlesResolved,
		m.OnlineUsers,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
