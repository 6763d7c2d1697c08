// Package metrics holds the Prometheus instruments of the validation engine.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"edgeproof/domain/stats"
)

// Recorder groups the engine's instruments
type Recorder struct {
	DrawsRequested *prometheus.CounterVec
	DrawsCompleted *prometheus.CounterVec
	ShortfallRuns  *prometheus.CounterVec
	Skips          *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
	RunDuration    prometheus.Histogram
}

// NewRecorder creates the instruments and registers them on reg
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		DrawsRequested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeproof_bootstrap_draws_requested_total",
				Help: "Bootstrap draws requested by stage",
			},
			[]string{"stage"},
		),
		DrawsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeproof_bootstrap_draws_completed_total",
				Help: "Bootstrap draws completed by stage",
			},
			[]string{"stage"},
		),
		ShortfallRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeproof_bootstrap_shortfall_runs_total",
				Help: "Runs that completed fewer than 95% of requested draws",
			},
			[]string{"stage"},
		),
		Skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeproof_component_skips_total",
				Help: "Statistics skipped, by component and error category",
			},
			[]string{"component", "category"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeproof_cache_lookups_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "edgeproof_run_duration_seconds",
				Help:    "Wall time of one validation run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}

	for _, c := range []prometheus.Collector{
		r.DrawsRequested, r.DrawsCompleted, r.ShortfallRuns, r.Skips, r.CacheLookups, r.RunDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Draws records one bootstrap stage
func (r *Recorder) Draws(stage string, requested, completed int, shortfall bool) {
	if r == nil {
		return
	}
	r.DrawsRequested.WithLabelValues(stage).Add(float64(requested))
	r.DrawsCompleted.WithLabelValues(stage).Add(float64(completed))
	if shortfall {
		r.ShortfallRuns.WithLabelValues(stage).Inc()
	}
}

// Skip counts a populated skip reason; empty reasons are ignored
func (r *Recorder) Skip(component string, reason stats.SkipReason) {
	if r == nil || !reason.Skipped() {
		return
	}
	r.Skips.WithLabelValues(component, reason.Category()).Inc()
}

// Cache records a lookup outcome: "hit", "miss" or "error"
func (r *Recorder) Cache(outcome string) {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues(outcome).Inc()
}

// ObserveRun records the duration since start
func (r *Recorder) ObserveRun(start time.Time) {
	if r == nil {
		return
	}
	r.RunDuration.Observe(time.Since(start).Seconds())
}
