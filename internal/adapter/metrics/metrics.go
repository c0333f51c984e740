package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/V4T54L/jmlog/internal/domain"
)

// RunMetrics holds the Prometheus metrics of one reconstruction run.
type RunMetrics struct {
	registry *prometheus.Registry

	FilesTotal     prometheus.Gauge
	LinesTotal     prometheus.Gauge
	RecordsTotal   *prometheus.GaugeVec
	FallbacksTotal *prometheus.GaugeVec
	Sessions       prometheus.Gauge
	LabelsTotal    *prometheus.GaugeVec
	Duration       prometheus.Gauge
	LastRun        prometheus.Gauge
}

// NewRunMetrics initializes the metrics on a private registry.
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &RunMetrics{
		registry: reg,
		FilesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "jmlog",
			Subsystem: "input",
			Name:      "files",
			Help:      "Number of log files read.",
		}),
		LinesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "jmlog",
			Subsystem: "input",
			Name:      "lines",
			Help:      "Number of log lines read.",
		}),
		RecordsTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jmlog",
			Subsystem: "records",
			Name:      "recognized",
			Help:      "Number of recognized records by event type.",
		}, []string{"type"}),
		FallbacksTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jmlog",
			Subsystem: "records",
			Name:      "raw_fallbacks",
			Help:      "Number of records that kept raw content because field extraction failed.",
		}, []string{"type"}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "jmlog",
			Subsystem: "sessions",
			Name:      "count",
			Help:      "Number of reconstructed sessions.",
		}),
		LabelsTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jmlog",
			Subsystem: "labels",
			Name:      "count",
			Help:      "Number of derived BIP-329 labels by type.",
		}, []string{"type"}),
		Duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "jmlog",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "jmlog",
			Subsystem: "run",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful run finished.",
		}),
	}
}

// Observe records the statistics of a finished run.
func (m *RunMetrics) Observe(stats domain.RunStats, took time.Duration) {
	m.FilesTotal.Set(float64(stats.Files))
	m.LinesTotal.Set(float64(stats.Lines))
	for t, n := range stats.Records {
		m.RecordsTotal.WithLabelValues(string(t)).Set(float64(n))
	}
	for t, n := range stats.Fallbacks {
		m.FallbacksTotal.WithLabelValues(string(t)).Set(float64(n))
	}
	m.Sessions.Set(float64(stats.Sessions))
	for t, n := range stats.Labels {
		m.LabelsTotal.WithLabelValues(string(t)).Set(float64(n))
	}
	m.Duration.Set(took.Seconds())
	m.LastRun.SetToCurrentTime()
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (m *RunMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
