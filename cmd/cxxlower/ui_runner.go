package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"cxxlower/internal/driver"
	"cxxlower/internal/ui"
)

type transpileOutcome struct {
	results []*driver.Result
	err     error
}

// runTranspileWithUI runs the driver in the background and renders its
// unit events until the run ends.
func runTranspileWithUI(ctx context.Context, title string, inputs []string, opts *driver.Options) ([]*driver.Result, error) {
	events := make(chan driver.UnitEvent, 256)
	outcomeCh := make(chan transpileOutcome, 1)

	go func() {
		optsCopy := *opts
		prev := opts.Observer
		optsCopy.Observer = func(ev driver.UnitEvent) {
			if prev != nil {
				prev(ev)
			}
			events <- ev
		}
		res, err := driver.Transpile(ctx, inputs, &optsCopy)
		outcomeCh <- transpileOutcome{results: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, inputs, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	// the view may quit early on ctrl+c; keep the driver from blocking
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil && ctx.Err() == nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
