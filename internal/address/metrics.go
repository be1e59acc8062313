package address

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache and upstream outcomes.
type Metrics struct {
	cacheTotal    *prometheus.CounterVec
	upstreamTotal *prometheus.CounterVec
}

// NewMetrics registers the address lookup counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_address_cache_total",
			Help: "Address cache lookups by result (hit, negative_hit, miss).",
		}, []string{"result"}),
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_address_upstream_total",
			Help: "Upstream postal code lookups by outcome (found, not_found, error).",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.cacheTotal, m.upstreamTotal)
	return m
}

func (m *Metrics) cache(result string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) upstream(outcome string) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(outcome).Inc()
}
