package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSessionWritesEveryProfile(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPU:   filepath.Join(dir, "cpu.pprof"),
		Mem:   filepath.Join(dir, "mem.pprof"),
		Trace: filepath.Join(dir, "run.trace"),
	}
	s, err := Start(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sink := 0
	for i := range 1 << 16 {
		sink += len(make([]byte, i%64))
	}
	_ = sink
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	for _, p := range []string{cfg.CPU, cfg.Mem, cfg.Trace} {
		info, err := os.Stat(p)
		if err != nil || info.Size() == 0 {
			t.Errorf("%s: %v (size %v)", filepath.Base(p), err, info)
		}
	}
}

func TestStartFailsCleanly(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "run.trace")
	if _, err := Start(Config{Trace: bad}); err == nil {
		t.Fatal("trace into a missing directory started")
	}
	// the failed session must not leave the tracer running
	s, err := Start(Config{Trace: filepath.Join(t.TempDir(), "ok.trace")})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if (Config{}).Enabled() {
		t.Error("empty config enabled")
	}
}
