package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors updated by the scheduler.
type Metrics struct {
	fetchesTotal  *prometheus.CounterVec
	activeFetches prometheus.Gauge
	fetchDuration *prometheus.HistogramVec
	widgets       prometheus.Gauge
	staleResults  prometheus.Counter
}

// NewMetrics creates the scheduler metrics and registers them with
// registerer when it is not nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashwire_fetches_total",
			Help: "Widget data fetches by widget type and outcome",
		}, []string{"widget_type", "status"}),
		activeFetches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashwire_fetches_active",
			Help: "Number of widget fetches in flight",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashwire_fetch_duration_seconds",
			Help:    "Widget data fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"widget_type", "status"}),
		widgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashwire_widgets_scheduled",
			Help: "Number of widgets being refreshed",
		}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashwire_stale_results_total",
			Help: "Fetch results discarded because their widget changed or was removed",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(m.fetchesTotal)
		registerer.MustRegister(m.activeFetches)
		registerer.MustRegister(m.fetchDuration)
		registerer.MustRegister(m.widgets)
		registerer.MustRegister(m.staleResults)
	}

	return m
}
