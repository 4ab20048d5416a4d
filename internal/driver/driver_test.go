package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/tools/txtar"

	"cxxlower/internal/diag"
	"cxxlower/internal/lower"
	"cxxlower/internal/observ"
	"cxxlower/internal/source"
)

func unpack(t *testing.T) (string, []string) {
	t.Helper()
	ar, err := txtar.ParseFile("testdata/units.txtar")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	var paths []string
	for _, f := range ar.Files {
		p := filepath.Join(dir, "in", f.Name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return dir, paths
}

func TestTranspileIsolatesFatalUnits(t *testing.T) {
	dir, inputs := unpack(t)
	out := filepath.Join(dir, "out")
	opts := &Options{OutDir: out, Jobs: 2, Verify: true}
	results, err := Transpile(context.Background(), inputs, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Path != inputs[0] || results[1].Path != inputs[1] {
		t.Fatalf("results out of input order: %+v", results)
	}

	ok, bad := results[0], results[1]
	if ok.Fatal != nil || ok.Bag.HasErrors() {
		t.Fatalf("answer failed: %v %v", ok.Fatal, ok.Bag.Items())
	}
	data, err := os.ReadFile(filepath.Join(out, "answer.rs"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "pub fn answer() -> i32") {
		t.Errorf("answer.rs:\n%s", data)
	}

	var ferr *lower.FatalError
	if !errors.As(bad.Fatal, &ferr) || ferr.Code != diag.LayInvariantViolation {
		t.Fatalf("loop.json fatal = %v", bad.Fatal)
	}
	if !bad.Bag.HasFatal() {
		t.Error("fatal diagnostic missing from the bag")
	}
	if _, err := os.Stat(filepath.Join(out, "loop.rs")); !os.IsNotExist(err) {
		t.Errorf("loop.rs written for a fatal unit (err=%v)", err)
	}

	tot := Summarize(results, false)
	if tot.Units != 2 || tot.Failed != 1 || tot.Lowered != 1 {
		t.Errorf("totals = %+v", tot)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	dir, inputs := unpack(t)
	res, err := TranspileUnit(context.Background(), inputs[0], &Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "" || res.Text == "" {
		t.Errorf("dry run: output=%q text=%d bytes", res.Output, len(res.Text))
	}
	if _, err := os.Stat(filepath.Join(dir, "in", "answer.rs")); !os.IsNotExist(err) {
		t.Error("dry run wrote a file")
	}
}

func TestSecondRunComesFromCache(t *testing.T) {
	dir, inputs := unpack(t)
	cache, err := OpenDiskCache(filepath.Join(dir, "cache"), "cxxlower")
	if err != nil {
		t.Fatal(err)
	}
	metrics := observ.NewMetrics()
	opts := &Options{OutDir: filepath.Join(dir, "out"), Cache: cache, Metrics: metrics}
	first, err := TranspileUnit(context.Background(), inputs[0], opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := TranspileUnit(context.Background(), inputs[0], opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || !second.Cached {
		t.Fatalf("cached = %v, %v; want false, true", first.Cached, second.Cached)
	}
	if first.Text != second.Text {
		t.Error("cached text differs from the lowered text")
	}
	if diff := cmp.Diff(first.Stats, second.Stats); diff != "" {
		t.Errorf("stats (-first +second):\n%s", diff)
	}
	if got := testutil.ToFloat64(metrics.CacheHits); got != 1 {
		t.Errorf("cache hits = %v", got)
	}

	opts.Lower.StubsOnly = true
	third, err := TranspileUnit(context.Background(), inputs[0], opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.Cached {
		t.Error("changing options still hit the cache")
	}
}

func TestCachePayloadKeepsDiagnostics(t *testing.T) {
	cache, err := OpenDiskCache(t.TempDir(), "cxxlower")
	if err != nil {
		t.Fatal(err)
	}
	fs := source.NewFileSet()
	file := fs.Intern("src/a.cpp", 0)
	bag := diag.NewBag(10)
	diag.ReportWarning(diag.BagReporter{Bag: bag}, diag.TypMappingFallback, source.Span{File: file, Line: 3, Col: 7}, "degraded").
		WithNote(source.Span{File: file, Line: 1}, "declared here").Emit()

	key := Digest{1, 2, 3}
	if err := cache.Put(key, toPayload("a", "fn a() {}\n", lower.Stats{Lowered: 1, Fallbacks: 1}, bag, fs)); err != nil {
		t.Fatal(err)
	}
	p, ok, err := cache.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	fs2 := source.NewFileSet()
	bag2 := diag.NewBag(10)
	stats := p.restore(bag2, fs2)
	if stats.Fallbacks != 1 || p.Output != "fn a() {}\n" {
		t.Errorf("payload = %+v", p)
	}
	want := diag.FormatShortDiagnostics(bag.Items(), fs, true)
	got := diag.FormatShortDiagnostics(bag2.Items(), fs2, true)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("restored diagnostics (-want +got):\n%s", diff)
	}

	if _, ok, _ := cache.Get(Digest{9}); ok {
		t.Error("hit on an unknown key")
	}
	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cache.Get(key); ok {
		t.Error("entry survived DropAll")
	}
}

func TestCorruptCacheEntryIsAMiss(t *testing.T) {
	cache, err := OpenDiskCache(t.TempDir(), "cxxlower")
	if err != nil {
		t.Fatal(err)
	}
	key := Digest{7}
	p := cache.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := cache.Get(key); !errors.Is(err, ErrCacheCorrupt) {
		t.Errorf("err = %v, want ErrCacheCorrupt", err)
	}
}

func TestObserverSeesEveryStage(t *testing.T) {
	_, inputs := unpack(t)
	var mu sync.Mutex
	seen := map[string][]Stage{}
	opts := &Options{DryRun: true, Observer: func(ev UnitEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen[filepath.Base(ev.Path)] = append(seen[filepath.Base(ev.Path)], ev.Stage)
	}}
	if _, err := Transpile(context.Background(), inputs, opts); err != nil {
		t.Fatal(err)
	}
	want := map[string][]Stage{
		"answer.json": {StageQueued, StageLoad, StageLower, StageEmit, StageDone},
		"loop.json":   {StageQueued, StageLoad, StageLower, StageFailed},
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("stages (-want +got):\n%s", diff)
	}
}

func TestExpandInputs(t *testing.T) {
	dir, inputs := unpack(t)
	if err := os.WriteFile(filepath.Join(dir, "in", "notes.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ExpandInputs([]string{filepath.Join(dir, "in"), inputs[1]})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(inputs, got); diff != "" {
		t.Errorf("inputs (-want +got):\n%s", diff)
	}
	if _, err := ExpandInputs([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("missing input accepted")
	}
}

func TestCancelledContext(t *testing.T) {
	_, inputs := unpack(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Transpile(ctx, inputs, &Options{DryRun: true}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
