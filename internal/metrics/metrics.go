// Package metrics holds the Prometheus collectors an import run updates.
// Every Metrics value owns its registry so concurrent runs (and tests) do
// not share counters.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Project outcomes recorded in linkage_projects_total.
const (
	OutcomeCommitted = "committed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeRecovered = "recovered"
)

type Metrics struct {
	Registry *prometheus.Registry

	// RowsWritten counts committed rows. Labels: stage, table.
	RowsWritten *prometheus.CounterVec
	// RecordsDropped counts input records that could not be imported.
	// Labels: stage, reason.
	RecordsDropped *prometheus.CounterVec
	// Resolutions counts name resolutions. Labels: stage, provenance.
	Resolutions *prometheus.CounterVec
	// Projects counts per-project stage outcomes. Labels: stage, outcome.
	Projects *prometheus.CounterVec
	// StageDuration measures wall time per stage. Labels: stage.
	StageDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkage",
			Name:      "rows_written_total",
			Help:      "Rows committed to the symbol store by stage and table",
		}, []string{"stage", "table"}),
		RecordsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkage",
			Name:      "records_dropped_total",
			Help:      "Input records skipped by stage and reason",
		}, []string{"stage", "reason"}),
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkage",
			Name:      "resolutions_total",
			Help:      "Name resolutions by stage and provenance class",
		}, []string{"stage", "provenance"}),
		Projects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkage",
			Name:      "projects_total",
			Help:      "Per-project stage outcomes",
		}, []string{"stage", "outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "linkage",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		}, []string{"stage"}),
	}
}

// ObserveStage records the duration of a stage that started at start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// AddRows adds committed row counts keyed by table name.
func (m *Metrics) AddRows(stage string, counts map[string]int) {
	for table, n := range counts {
		if n > 0 {
			m.RowsWritten.WithLabelValues(stage, table).Add(float64(n))
		}
	}
}

// WriteFile writes the registry in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
