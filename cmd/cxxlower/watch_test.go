package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRebuildTargets(t *testing.T) {
	inputs := []string{"src/a.json", "src/b.astpack", "src/c.cpp"}
	tests := []struct {
		name    string
		changed []string
		want    []string
	}{
		{"one unit", []string{"src/b.astpack"}, []string{"src/b.astpack"}},
		{"header rebuilds all", []string{"src/a.json", "include/shape.hpp"}, inputs},
		{"unrelated file", []string{"src/d.json"}, nil},
		{"cleaned paths", []string{"./src/../src/c.cpp"}, []string{"src/c.cpp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, rebuildTargets(tt.changed, inputs)); diff != "" {
				t.Errorf("targets (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRelevantChange(t *testing.T) {
	for path, want := range map[string]bool{
		"a.json": true, "a.cpp": true, "a.H": true, "a.hpp": true,
		"a.rs": false, "notes.txt": false, "a.json~": false,
	} {
		if got := relevantChange(path); got != want {
			t.Errorf("relevantChange(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestWatchRoots(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.json")
	if err := os.WriteFile(file, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := watchRoots([]string{file, dir, dir + "/"})
	if diff := cmp.Diff([]string{dir}, got); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}
}

func TestWatcherBatchesChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := newSourceWatcher(200*time.Millisecond, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.addTree(dir); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.run(ctx, io.Discard, func(changed []string) error {
			batches <- changed
			return nil
		})
	}()

	for _, name := range []string{"a.json", "b.json", "out.rs"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case got := <-batches:
		want := []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("batch (-want +got):\n%s", diff)
		}
	case <-ctx.Done():
		t.Fatal("no rebuild before timeout")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
