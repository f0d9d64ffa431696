// Package metrics exposes Prometheus instruments for CV extraction runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/events"
)

// Metrics holds the pipeline instruments. A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - cvingest_runs_total{outcome} - finished runs by terminal outcome ("complete" or error code)
//   - cvingest_model_attempts_total{outcome} - model attempts by outcome (success, transient, fatal)
//   - cvingest_records_dropped_total{collection} - sub-records dropped by validation
//   - cvingest_stage_duration_seconds{stage} - time spent per pipeline stage
//   - cvingest_runs_in_flight - runs currently executing
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	AttemptsTotal *prometheus.CounterVec
	DroppedTotal  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	RunsInFlight  prometheus.Gauge
}

// New registers the instruments with reg. Use prometheus.DefaultRegisterer in binaries
// and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvingest_runs_total",
				Help: "Total number of extraction runs by outcome",
			},
			[]string{"outcome"},
		),
		AttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvingest_model_attempts_total",
				Help: "Total number of model attempts by outcome",
			},
			[]string{"outcome"},
		),
		DroppedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvingest_records_dropped_total",
				Help: "Sub-records dropped because required values were missing",
			},
			[]string{"collection"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cvingest_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		RunsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "cvingest_runs_in_flight",
			Help: "Extraction runs currently executing",
		}),
	}
}

// Observe counts an event. It is meant to sit next to the real publisher in an events.Multi.
func (m *Metrics) Observe(e events.Event) {
	if m == nil {
		return
	}
	switch {
	case e.Stage == constants.StageComplete:
		m.RunsTotal.WithLabelValues(string(constants.StageComplete)).Inc()
	case e.Stage == constants.StageError:
		code := e.Code()
		if code == "" {
			code = constants.CodeInternal
		}
		m.RunsTotal.WithLabelValues(code).Inc()
	case e.Stage == constants.StageParsingBase && e.Details["attempt"] != nil:
		m.AttemptsTotal.WithLabelValues("success").Inc()
	case e.Stage == constants.StageWarning:
		if outcome, ok := e.Details["outcome"].(string); ok {
			m.AttemptsTotal.WithLabelValues(outcome).Inc()
		}
		if e.Code() == constants.CodeParseError {
			collection, _ := e.Details["collection"].(string)
			m.DroppedTotal.WithLabelValues(collection).Inc()
		}
	}
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage constants.Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// RunStarted increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	m.RunsInFlight.Inc()
	return m.RunsInFlight.Dec
}
