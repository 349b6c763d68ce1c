package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "barghalarm"

// Metrics holds the Prometheus collectors for the import pipeline.
type Metrics struct {
	Outages             *prometheus.CounterVec // labels: result={created,updated,skipped}
	AreaFetchFailures   prometheus.Counter
	AddressResolutions  *prometheus.CounterVec // labels: tier={exact,normalized,fragment,none}
	ImportDuration      prometheus.Histogram
	PrunedOutages       prometheus.Counter
	DiscoveredAddresses prometheus.Counter
}

func newMetrics(help bool) *Metrics {
	h := func(s string) string {
		if help {
			return s
		}
		return ""
	}
	return &Metrics{
		Outages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outages_total",
			Help:      h("Imported outage rows by upsert result."),
		}, []string{"result"}),
		AreaFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "area_fetch_failures_total",
			Help:      h("Areas skipped because the portal fetch failed."),
		}),
		AddressResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "address_resolutions_total",
			Help:      h("Address resolutions by matching tier."),
		}, []string{"tier"}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      h("Duration of a complete import run."),
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		PrunedOutages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_outages_total",
			Help:      h("Outage records deleted by pruning."),
		}),
		DiscoveredAddresses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovered_addresses_total",
			Help:      h("Addresses created by discovery."),
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.Outages,
		m.AreaFetchFailures,
		m.AddressResolutions,
		m.ImportDuration,
		m.PrunedOutages,
		m.DiscoveredAddresses,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can create as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
