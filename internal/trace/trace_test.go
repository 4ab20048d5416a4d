package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestStreamTracerFiltersByScope(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)

	pass := Begin(tr, ScopePass, "lower", 0)
	unit := Begin(tr, ScopeUnit, "unit:a.json", pass.ID())
	unit.End("")
	pass.End("ok")

	out := buf.String()
	if !strings.Contains(out, "→ lower") || !strings.Contains(out, "← lower") {
		t.Fatalf("pass span missing:\n%s", out)
	}
	if strings.Contains(out, "unit:a.json") {
		t.Fatalf("unit span leaked at phase level:\n%s", out)
	}
}

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopeDecl, name, "", 0)
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Name != "b" || snap[1].Name != "c" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestNDJSONEncoding(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	Point(tr, ScopeDecl, "decl:Dog", "skipped", 0)
	if !strings.Contains(buf.String(), `"name":"decl:Dog"`) {
		t.Fatalf("unexpected ndjson: %s", buf.String())
	}
}

func TestContextPropagation(t *testing.T) {
	r := NewRingTracer(8, LevelDebug)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != Tracer(r) {
		t.Fatalf("tracer not propagated")
	}
	sp := Begin(r, ScopeDriver, "run", 0)
	ctx = WithSpan(ctx, sp)
	if CurrentSpan(ctx) != sp.ID() {
		t.Fatalf("span id not propagated")
	}
	if FromContext(context.Background()) != Nop {
		t.Fatalf("expected Nop for empty context")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"off": LevelOff, "PHASE": LevelPhase, "debug": LevelDebug} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestHeartbeatBeatsUntilStopped(t *testing.T) {
	r := NewRingTracer(64, LevelPhase)
	h := StartHeartbeat(r, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for len(r.Snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	n := len(r.Snapshot())
	if n < 2 {
		t.Fatalf("got %d heartbeats", n)
	}
	time.Sleep(5 * time.Millisecond)
	if len(r.Snapshot()) != n {
		t.Error("heartbeat kept beating after Stop")
	}
	if ev := r.Snapshot()[0]; ev.Kind != KindHeartbeat || ev.Detail != "#1" {
		t.Errorf("first event = %+v", ev)
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Error("heartbeat started on a disabled tracer")
	}
}
