package observ

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a per-run collector set registered on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	UnitDuration  *prometheus.HistogramVec
	UnitsTotal    *prometheus.CounterVec
	Diagnostics   *prometheus.CounterVec
	DeclsLowered  prometheus.Counter
	DeclsSkipped  prometheus.Counter
	TypeFallbacks prometheus.Counter
	CacheHits     prometheus.Counter
	EmittedBytes  prometheus.Counter
	WatchRebuilds prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		UnitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cxxlower_phase_seconds",
			Help:    "Time spent in one phase of one translation unit.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		UnitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cxxlower_units_total",
			Help: "Translation units processed, by outcome.",
		}, []string{"outcome"}),
		Diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cxxlower_diagnostics_total",
			Help: "Diagnostics reported, by code.",
		}, []string{"code"}),
		DeclsLowered: f.NewCounter(prometheus.CounterOpts{
			Name: "cxxlower_decls_lowered_total",
			Help: "Top-level declarations lowered.",
		}),
		DeclsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "cxxlower_decls_skipped_total",
			Help: "Declarations skipped as unsupported.",
		}),
		TypeFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "cxxlower_type_fallbacks_total",
			Help: "Types degraded to opaque byte blobs.",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "cxxlower_cache_hits_total",
			Help: "Units served from the disk cache.",
		}),
		EmittedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "cxxlower_emitted_bytes_total",
			Help: "Bytes of Rust source written.",
		}),
		WatchRebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "cxxlower_watch_rebuilds_total",
			Help: "Rebuilds triggered by the watcher.",
		}),
	}
}

// ObservePhase records d under phase. Nil receivers are allowed.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.UnitDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// WriteFile dumps every collector in text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
