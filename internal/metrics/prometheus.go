// Package metrics provides Prometheus metrics for pipeline runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/boqimport/internal/core"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boq_runs_total",
			Help: "Total number of finished parse runs",
		},
		[]string{"format", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boq_run_duration_seconds",
			Help:    "Wall time of parse runs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"format"},
	)

	// Row metrics
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boq_rows_total",
			Help: "Data rows seen, by outcome",
		},
		[]string{"format", "outcome"},
	)

	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boq_items_total",
			Help: "BOQ items emitted",
		},
		[]string{"format"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boq_errors_total",
			Help: "Parse errors recorded, by kind and user-facing code",
		},
		[]string{"kind", "code"},
	)

	WarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boq_warnings_total",
			Help: "Parse warnings recorded, by kind",
		},
		[]string{"kind"},
	)
)

// Recorder feeds finished runs into the package metrics. It implements core.Observer.
type Recorder struct{}

var _ core.Observer = Recorder{}

// NewRecorder creates a recorder.
func NewRecorder() Recorder { return Recorder{} }

// ObserveRun records the outcome of one run.
func (Recorder) ObserveRun(s core.RunSummary) {
	r := s.Result
	format := r.Metadata.DetectedFormat.String()

	status := "success"
	if !r.Success {
		status = "failed"
	}
	RunsTotal.WithLabelValues(format, status).Inc()
	RunDuration.WithLabelValues(format).Observe(s.Duration.Seconds())

	m := r.Metadata
	valid := m.ProcessedRows - m.InvalidRows
	RowsTotal.WithLabelValues(format, "valid").Add(float64(valid))
	RowsTotal.WithLabelValues(format, "invalid").Add(float64(m.InvalidRows))
	RowsTotal.WithLabelValues(format, "skipped").Add(float64(m.SkippedRows))
	ItemsTotal.WithLabelValues(format).Add(float64(len(r.Items)))

	for _, e := range r.Errors {
		ErrorsTotal.WithLabelValues(string(e.Kind), core.MapMessage(e.Message).Code).Inc()
	}
	for _, w := range r.Warnings {
		WarningsTotal.WithLabelValues(string(w.Kind)).Inc()
	}
}

// RegisterLimiter exposes the limiter's slot usage as gauges on reg.
func RegisterLimiter(reg prometheus.Registerer, l *core.ParseLimiter) error {
	active := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "boq_parses_active",
			Help: "Parse runs currently holding a slot",
		},
		func() float64 { return float64(l.ActiveCount()) },
	)
	capacity := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "boq_parses_max",
			Help: "Maximum concurrent parse runs",
		},
		func() float64 { return float64(l.Status().MaxConcurrent) },
	)
	for _, c := range []prometheus.Collector{active, capacity} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
