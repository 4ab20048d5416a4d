package observ

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMetricsWriteFile(t *testing.T) {
	m := NewMetrics()
	m.UnitsTotal.WithLabelValues("ok").Inc()
	m.ObservePhase("lower", 3*time.Millisecond)
	m.Diagnostics.WithLabelValues("TYP3001").Add(2)

	path := filepath.Join(t.TempDir(), "cxxlower.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`cxxlower_units_total{outcome="ok"} 1`,
		`cxxlower_diagnostics_total{code="TYP3001"} 2`,
		`cxxlower_phase_seconds_count{phase="lower"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("missing %q in:\n%s", want, data)
		}
	}
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	m.ObservePhase("emit", time.Second)
	if err := m.WriteFile("ignored"); err != nil {
		t.Fatalf("nil metrics should not fail: %v", err)
	}
}

func TestTimerSummary(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("lower")
	tm.End(idx, "3 units")
	s := tm.Summary()
	if !strings.Contains(s, "lower") || !strings.Contains(s, "// 3 units") || !strings.Contains(s, "total") {
		t.Fatalf("unexpected summary:\n%s", s)
	}
	if len(tm.Report().Phases) != 1 {
		t.Fatalf("expected one phase")
	}
}
