package querycache

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_query_cache_hits_total",
			Help: "Queries served from a fresh cache entry",
		}, []string{"query"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_query_cache_misses_total",
			Help: "Queries that went upstream",
		}, []string{"query"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_query_cache_fetch_errors_total",
			Help: "Upstream fetches that failed after retries",
		}, []string{"query"}),
	}
	reg.MustRegister(m.hits, m.misses, m.fetchErrors)
	return m
}

func (m *metrics) hit(key string) {
	if m != nil {
		m.hits.WithLabelValues(family(key)).Inc()
	}
}

func (m *metrics) miss(key string) {
	if m != nil {
		m.misses.WithLabelValues(family(key)).Inc()
	}
}

func (m *metrics) fetchError(key string) {
	if m != nil {
		m.fetchErrors.WithLabelValues(family(key)).Inc()
	}
}

// family labels a key by its first path segment so per-id keys share a series.
func family(key string) string {
	f, _, _ := strings.Cut(key, "/")
	return f
}
