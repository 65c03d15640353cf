// Package metrics provides Prometheus metrics for ingestion runs
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestMetrics records per-file and per-folder ingestion outcomes. Each
// instance owns its registry, so a run's textfile only holds its own series.
type IngestMetrics struct {
	registry *prometheus.Registry

	filesTotal   *prometheus.CounterVec
	foldersTotal *prometheus.CounterVec
	fileDuration *prometheus.HistogramVec
	untranslated prometheus.Gauge
}

// New creates the ingestion metrics on a fresh registry.
func New() *IngestMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &IngestMetrics{
		registry: reg,
		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epd_files_total",
				Help: "Total number of EPD documents handled, by outcome",
			},
			[]string{"status"},
		),
		foldersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "epd_folders_total",
				Help: "Total number of datastock folders handled, by outcome",
			},
			[]string{"status"},
		),
		fileDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "epd_file_duration_seconds",
				Help:    "Time taken to read, parse and store one document",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"status"},
		),
		untranslated: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "epd_untranslated_terms",
				Help: "Number of distinct category terms without a translation",
			},
		),
	}
}

// RecordFile records one document outcome.
func (m *IngestMetrics) RecordFile(status string, duration time.Duration) {
	m.filesTotal.WithLabelValues(status).Inc()
	m.fileDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordFolder records one datastock folder outcome.
func (m *IngestMetrics) RecordFolder(status string) {
	m.foldersTotal.WithLabelValues(status).Inc()
}

// SetUntranslated sets the number of distinct untranslated terms.
func (m *IngestMetrics) SetUntranslated(n int) {
	m.untranslated.Set(float64(n))
}

// Registry exposes the underlying registry for gathering.
func (m *IngestMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all series in the text exposition format, for the
// node_exporter textfile collector.
func (m *IngestMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
