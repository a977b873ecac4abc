package dashboard

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/backorder-board/orders"
)

// Metrics exports refresh outcomes and the size of the pending view.
// A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	refreshes     *prometheus.CounterVec
	pendingGroups prometheus.Gauge
	pendingPairs  prometheus.Gauge
	stale         prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refreshes_total",
				Help:      "Pending-order refreshes by resulting connection status.",
			},
			[]string{"status"},
		),
		pendingGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_products",
			Help:      "Products with at least one waiting client in the current view.",
		}),
		pendingPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_clients",
			Help:      "Client/product pairs in the current view.",
		}),
		stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_stale",
			Help:      "1 when the current view is served from cache or mock data.",
		}),
	}
	m.registry.MustRegister(m.refreshes, m.pendingGroups, m.pendingPairs, m.stale)
	return m
}

// Registry exposes the registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RefreshCount returns the counter for status, for tests.
func (m *Metrics) RefreshCount(status string) prometheus.Counter {
	return m.refreshes.WithLabelValues(status)
}

func (m *Metrics) observeRefresh(status string, groups []orders.PendingOrderGroup, stale bool) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(status).Inc()
	pairs := 0
	for _, g := range groups {
		pairs += len(g.Clients)
	}
	m.pendingGroups.Set(float64(len(groups)))
	m.pendingPairs.Set(float64(pairs))
	if stale {
		m.stale.Set(1)
	} else {
		m.stale.Set(0)
	}
}
