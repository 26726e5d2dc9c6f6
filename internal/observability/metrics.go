package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the export run.
type Metrics struct {
	Days            *prometheus.CounterVec // labels: outcome={succeeded,no_data,failed}
	RecordsExported prometheus.Counter
	BytesUploaded   prometheus.Counter
	DayDuration     prometheus.Histogram
	RunRunning      prometheus.Gauge
	NotifyErrors    prometheus.Counter
}

// NewMetrics creates and registers all export metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Days,
		m.RecordsExported,
		m.BytesUploaded,
		m.DayDuration,
		m.RunRunning,
		m.NotifyErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Days: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_export",
			Name:      "days_total",
			Help:      "Day tasks completed, by outcome.",
		}, []string{"outcome"}),
		RecordsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_export",
			Name:      "records_exported_total",
			Help:      "Total records written to day files.",
		}),
		BytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_export",
			Name:      "bytes_uploaded_total",
			Help:      "Total bytes of day files uploaded to object storage.",
		}),
		DayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aq_export",
			Name:      "day_duration_seconds",
			Help:      "Duration of a complete query-encode-upload cycle for one day.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		RunRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aq_export",
			Name:      "run_running",
			Help:      "1 while an export run is in progress, 0 otherwise.",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_export",
			Name:      "notify_errors_total",
			Help:      "Export notifications that failed to publish.",
		}),
	}
}
