// Package driver runs the per-unit pipeline (load, lower, emit, verify,
// write) and fans units out over a worker pool.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/emit"
	"cxxlower/internal/frontend"
	"cxxlower/internal/lir"
	"cxxlower/internal/lower"
	"cxxlower/internal/observ"
	"cxxlower/internal/source"
	"cxxlower/internal/trace"
	"cxxlower/internal/verify"
)

type Options struct {
	// OutDir receives <unit>.rs; empty means next to the input.
	OutDir string
	// DryRun skips writing; Result.Text still carries the output.
	DryRun bool

	Frontend frontend.Options
	Lower    lower.Options
	Header   string
	// Verify parses every emitted file with the Rust grammar.
	Verify bool

	MaxDiagnostics int
	Jobs           int

	Cache    *DiskCache
	Metrics  *observ.Metrics
	Timer    *observ.Timer
	Observer UnitObserver
}

// Result is the outcome of one unit. Fatal is set when the unit produced no
// output; Bag holds every diagnostic either way.
type Result struct {
	Path   string
	Unit   string
	Output string
	Text   string

	Files  *source.FileSet
	Bag    *diag.Bag
	Stats  lower.Stats
	Fatal  error
	Cached bool
}

// Failed reports whether the unit should fail the run. With werror any
// error-severity diagnostic counts.
func (r *Result) Failed(werror bool) bool {
	if r.Fatal != nil {
		return true
	}
	return werror && r.Bag.HasErrors()
}

// OutputPath is where the unit's Rust file goes.
func OutputPath(input, outDir string) string {
	name := frontend.UnitName(input) + ".rs"
	if outDir == "" {
		return filepath.Join(filepath.Dir(input), name)
	}
	return filepath.Join(outDir, name)
}

type unitRun struct {
	ctx   context.Context
	opts  *Options
	res   *Result
	rep   diag.Reporter
	tr    trace.Tracer
	span  *trace.Span
	start time.Time
}

// pass times one stage in the tracer, the timer and the metrics.
func (r *unitRun) pass(stage Stage, fn func() error) error {
	r.opts.Observer.emit(UnitEvent{Path: r.res.Path, Stage: stage})
	sp := trace.Begin(r.tr, trace.ScopePass, stage.String(), r.span.ID())
	idx := -1
	if r.opts.Timer != nil {
		idx = r.opts.Timer.Begin(r.res.Unit + "/" + stage.String())
	}
	t0 := time.Now()
	err := fn()
	d := time.Since(t0)
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	sp.End(detail)
	if r.opts.Timer != nil {
		r.opts.Timer.End(idx, detail)
	}
	r.opts.Metrics.ObservePhase(stage.String(), d)
	return err
}

// TranspileUnit runs the whole pipeline for one input. Errors that are not
// the unit's fault (context cancellation) are returned; everything else
// lands in the Result.
func TranspileUnit(ctx context.Context, path string, opts *Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	maxDiag := opts.MaxDiagnostics
	if maxDiag <= 0 {
		maxDiag = 1000
	}
	res := &Result{
		Path:  path,
		Unit:  frontend.UnitName(path),
		Files: source.NewFileSet(),
		Bag:   diag.NewBag(maxDiag),
	}
	if !opts.DryRun {
		res.Output = OutputPath(path, opts.OutDir)
	}
	tr := trace.FromContext(ctx)
	run := &unitRun{
		ctx:   ctx,
		opts:  opts,
		res:   res,
		rep:   &diag.BagReporter{Bag: res.Bag},
		tr:    tr,
		span:  trace.Begin(tr, trace.ScopeUnit, path, trace.CurrentSpan(ctx)),
		start: time.Now(),
	}
	stage := run.do()
	elapsed := run.span.End(stage.String())
	if elapsed == 0 {
		elapsed = time.Since(run.start)
	}
	res.Bag.Sort()
	opts.Observer.emit(UnitEvent{Path: path, Stage: stage, Elapsed: elapsed, Err: res.Fatal})
	run.record(stage)
	return res, nil
}

func (r *unitRun) do() Stage {
	res, opts := r.res, r.opts
	var key Digest
	if opts.Cache != nil {
		var err error
		if key, err = unitKey(res.Path, opts); err == nil {
			if r.fromCache(key) {
				return StageCached
			}
		}
	}

	var u *ast.Unit
	err := r.pass(StageLoad, func() error {
		var err error
		u, err = frontend.Load(r.ctx, res.Path, opts.Frontend, r.rep)
		return err
	})
	if err != nil {
		res.Fatal = err
		return StageFailed
	}
	res.Files = u.Files

	var crate *lir.Crate
	err = r.pass(StageLower, func() error {
		var err error
		crate, res.Stats, err = lower.Lower(trace.WithSpan(r.ctx, r.span), u, r.rep, opts.Lower)
		return err
	})
	if err != nil {
		res.Fatal = err
		return StageFailed
	}

	var text string
	err = r.pass(StageEmit, func() error {
		out, err := emit.Emit(crate, emit.Options{Header: opts.Header})
		if err != nil {
			var oe *emit.OrderingError
			if errors.As(err, &oe) {
				diag.ReportError(r.rep, diag.EmtOrderingFailure, source.Span{},
					"cannot order records: "+strings.Join(oe.Cycle, " -> ")).Emit()
			}
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		res.Fatal = err
		return StageFailed
	}
	res.Text = text

	if opts.Verify {
		_ = r.pass(StageVerify, func() error {
			name := res.Output
			if name == "" {
				name = res.Unit + ".rs"
			}
			file := res.Files.AddVirtual(name, []byte(text))
			verify.Report(r.rep, file, []byte(text))
			return nil
		})
	}

	if !opts.DryRun {
		if err := r.pass(StageWrite, func() error { return writeFile(res.Output, text) }); err != nil {
			res.Fatal = err
			return StageFailed
		}
	}
	if opts.Cache != nil && key != (Digest{}) {
		if err := opts.Cache.Put(key, toPayload(res.Unit, text, res.Stats, res.Bag, res.Files)); err != nil {
			trace.Point(r.tr, trace.ScopeUnit, "cache", "put failed: "+err.Error(), r.span.ID())
		}
	}
	return StageDone
}

func (r *unitRun) fromCache(key Digest) bool {
	res, opts := r.res, r.opts
	p, ok, err := opts.Cache.Get(key)
	if err != nil {
		diag.ReportWarning(r.rep, diag.DrvCacheCorrupt, source.Span{}, err.Error()).Emit()
		return false
	}
	if !ok {
		return false
	}
	if !opts.DryRun {
		if err := writeFile(res.Output, p.Output); err != nil {
			return false
		}
	}
	res.Text = p.Output
	res.Stats = p.restore(res.Bag, res.Files)
	res.Cached = true
	return true
}

func (r *unitRun) record(stage Stage) {
	m := r.opts.Metrics
	if m == nil {
		return
	}
	m.UnitsTotal.WithLabelValues(stage.String()).Inc()
	for _, d := range r.res.Bag.Items() {
		m.Diagnostics.WithLabelValues(d.Code.ID()).Inc()
	}
	m.DeclsLowered.Add(float64(r.res.Stats.Lowered))
	m.DeclsSkipped.Add(float64(r.res.Stats.Skipped))
	m.TypeFallbacks.Add(float64(r.res.Stats.Fallbacks))
	if r.res.Cached {
		m.CacheHits.Inc()
	}
	if !r.opts.DryRun {
		m.EmittedBytes.Add(float64(len(r.res.Text)))
	}
}

// writeFile replaces path atomically.
func writeFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".cxxlower-*")
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}
