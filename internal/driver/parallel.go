package driver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"cxxlower/internal/frontend"
	"cxxlower/internal/trace"
)

// ExpandInputs replaces directories with the inputs below them and drops
// duplicates. The result is sorted for deterministic order.
func ExpandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool, len(args))
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && frontend.FormatOf(path) != frontend.FormatUnknown {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}

// Transpile runs every input through TranspileUnit, at most opts.Jobs at a
// time. Results keep the input order. Only cancellation is returned as an
// error; per-unit failures are in the results.
func Transpile(ctx context.Context, inputs []string, opts *Options) ([]*Result, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopeDriver, "transpile", trace.CurrentSpan(ctx))
	defer span.End(fmt.Sprintf("%d units", len(inputs)))
	ctx = trace.WithSpan(ctx, span)

	for _, in := range inputs {
		opts.Observer.emit(UnitEvent{Path: in, Stage: StageQueued})
	}

	// every goroutine writes its own index
	results := make([]*Result, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(inputs)))
	for i, path := range inputs {
		g.Go(func() error {
			res, err := TranspileUnit(gctx, path, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
