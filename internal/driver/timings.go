package driver

import (
	"encoding/json"
	"fmt"

	"cxxlower/internal/diag"
	"cxxlower/internal/observ"
)

// Totals aggregates a run for the closing summary line.
type Totals struct {
	Units     int `json:"units"`
	Failed    int `json:"failed"`
	Cached    int `json:"cached"`
	Lowered   int `json:"lowered"`
	Skipped   int `json:"skipped"`
	Fallbacks int `json:"fallbacks"`
	Errors    int `json:"errors"`
	Warnings  int `json:"warnings"`
}

func Summarize(results []*Result, werror bool) Totals {
	var t Totals
	for _, r := range results {
		if r == nil {
			continue
		}
		t.Units++
		if r.Failed(werror) {
			t.Failed++
		}
		if r.Cached {
			t.Cached++
		}
		t.Lowered += r.Stats.Lowered
		t.Skipped += r.Stats.Skipped
		t.Fallbacks += r.Stats.Fallbacks
		for _, d := range r.Bag.Items() {
			switch {
			case d.Severity >= diag.SevError:
				t.Errors++
			case d.Severity == diag.SevWarning:
				t.Warnings++
			}
		}
	}
	return t
}

func (t Totals) String() string {
	s := fmt.Sprintf("%d units, %d failed; %d declarations lowered, %d skipped, %d type fallbacks",
		t.Units, t.Failed, t.Lowered, t.Skipped, t.Fallbacks)
	if t.Cached > 0 {
		s += fmt.Sprintf(" (%d from cache)", t.Cached)
	}
	return s
}

type timingPayload struct {
	Kind    string               `json:"kind"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
	Totals  Totals               `json:"totals"`
}

// TimingJSON renders the timer report with the run totals.
func TimingJSON(timer *observ.Timer, totals Totals) ([]byte, error) {
	report := timer.Report()
	return json.MarshalIndent(timingPayload{
		Kind:    "transpile",
		TotalMS: report.TotalMS,
		Phases:  report.Phases,
		Totals:  totals,
	}, "", "  ")
}
