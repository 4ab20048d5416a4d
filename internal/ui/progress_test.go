package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"cxxlower/internal/driver"
)

func TestProgressTracksUnits(t *testing.T) {
	events := make(chan driver.UnitEvent)
	m := NewProgressModel("transpiling", []string{"a.json", "b.json"}, events).(*progressModel)

	m.Update(eventMsg{Path: "a.json", Stage: driver.StageLower})
	if got := m.fraction(); got != 0.15 {
		t.Errorf("fraction = %v, want 0.15", got)
	}
	m.Update(eventMsg{Path: "a.json", Stage: driver.StageDone, Elapsed: 3 * time.Millisecond})
	m.Update(eventMsg{Path: "b.json", Stage: driver.StageFailed, Err: errors.New("LAY5001: cycle")})
	m.Update(eventMsg{Path: "unknown.json", Stage: driver.StageDone})
	if got := m.fraction(); got != 1 {
		t.Errorf("fraction = %v, want 1", got)
	}

	view := m.View()
	for _, want := range []string{"(2/2)", "done", "failed", "LAY5001: cycle", "3ms"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}

	_, cmd := m.Update(doneMsg{})
	if cmd == nil || !m.done {
		t.Error("done message did not quit")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("src/very/long/path.json", 10); got != "src/ver..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("src/very/long/path.json", 10); runewidth.StringWidth(got) != 10 {
		t.Errorf("truncate = %q is %d columns, want 10", got, runewidth.StringWidth(got))
	}
	if got := truncate("日本語のパス.json", 8); got != "日本..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}
