package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"cxxlower/internal/driver"
	"cxxlower/internal/frontend"
)

var (
	watchFlags       runFlags
	watchDebounce    time.Duration
	watchMinInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <inputs...>",
	Short: "Re-lower units whenever their inputs change",
	Long: `watch lowers every input once, then watches the input files and
directories. A changed unit is lowered again; a changed header re-lowers
every unit. Rebuilds are debounced and rate limited.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	addRunFlags(watchCmd, &watchFlags)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "quiet period before a rebuild starts")
	watchCmd.Flags().DurationVar(&watchMinInterval, "min-interval", time.Second, "minimum time between two rebuilds")
}

func runWatch(cmd *cobra.Command, args []string) error {
	inputs, err := driver.ExpandInputs(args)
	if err != nil {
		return err
	}
	setup, err := resolveRun(cmd, &watchFlags, inputs)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	build := func(targets []string) error {
		if len(targets) == 0 {
			return nil
		}
		results, err := driver.Transpile(ctx, targets, setup.opts)
		if err != nil {
			return err
		}
		reportRun(cmd, setup, results)
		return finishRun(cmd, setup, results)
	}
	if err := build(inputs); err != nil {
		return err
	}

	w, err := newSourceWatcher(watchDebounce, watchMinInterval)
	if err != nil {
		return err
	}
	defer w.Close()
	for _, root := range watchRoots(args) {
		if err := w.addTree(root); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "cxxlower: watching %d units, ctrl+c to stop\n", len(inputs))

	return w.run(ctx, cmd.ErrOrStderr(), func(changed []string) error {
		// pick up files created since the last round
		current, err := driver.ExpandInputs(args)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "cxxlower: %v\n", err)
			return nil
		}
		targets := rebuildTargets(changed, current)
		if len(targets) == 0 {
			return nil
		}
		if m := setup.opts.Metrics; m != nil {
			m.WatchRebuilds.Inc()
		}
		return build(targets)
	})
}

// watchRoots are the directories to watch for args: directories as given,
// files through their parent.
func watchRoots(args []string) []string {
	var roots []string
	for _, a := range args {
		dir := a
		if info, err := os.Stat(a); err == nil && !info.IsDir() {
			dir = filepath.Dir(a)
		}
		dir = filepath.Clean(dir)
		if !slices.Contains(roots, dir) {
			roots = append(roots, dir)
		}
	}
	return roots
}

var headerExts = map[string]bool{".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".inl": true}

func isHeader(path string) bool {
	return headerExts[strings.ToLower(filepath.Ext(path))]
}

func relevantChange(path string) bool {
	return isHeader(path) || frontend.FormatOf(path) != frontend.FormatUnknown
}

// rebuildTargets maps changed files to the inputs to lower again. Any
// header change rebuilds everything since units do not record their
// includes.
func rebuildTargets(changed, inputs []string) []string {
	touched := make(map[string]bool, len(changed))
	for _, c := range changed {
		if isHeader(c) {
			return inputs
		}
		touched[canonical(c)] = true
	}
	var out []string
	for _, in := range inputs {
		if touched[canonical(in)] {
			out = append(out, in)
		}
	}
	return out
}

func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

type sourceWatcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	limiter  *rate.Limiter
}

func newSourceWatcher(debounce, minInterval time.Duration) (*sourceWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &sourceWatcher{
		fsw:      fsw,
		debounce: debounce,
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

func (w *sourceWatcher) Close() error { return w.fsw.Close() }

func (w *sourceWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// run collects relevant changes until the debounce period passes without
// a new one, waits for the limiter, then hands the batch to rebuild. It
// returns when ctx ends or rebuild fails.
func (w *sourceWatcher) run(ctx context.Context, errOut io.Writer, rebuild func([]string) error) error {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						fmt.Fprintf(errOut, "cxxlower: watch %s: %v\n", ev.Name, err)
					}
					continue
				}
			}
			if !relevantChange(ev.Name) || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "cxxlower: watcher: %v\n", err)
		case <-fire:
			fire = nil
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)
			if err := rebuild(changed); err != nil {
				return err
			}
		}
	}
}
