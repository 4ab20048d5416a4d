package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"

	"cxxlower/internal/diag"
	"cxxlower/internal/version"
)

const configFileName = "cxxlower.toml"

type projectConfig struct {
	// Path is the file the config came from; empty when none was found.
	Path string `toml:"-"`
	Root string `toml:"-"`

	MinVersion string         `toml:"min_version"`
	Frontend   frontendConfig `toml:"frontend"`
	Output     outputConfig   `toml:"output"`
	Lowering   loweringConfig `toml:"lowering"`
	Filter     filterConfig   `toml:"filter"`
	Cache      cacheConfig    `toml:"cache"`
}

type frontendConfig struct {
	Command  string   `toml:"command"`
	Args     []string `toml:"args"`
	Includes []string `toml:"includes"`
}

type outputConfig struct {
	Dir    string `toml:"dir"`
	Header string `toml:"header"`
	Verify bool   `toml:"verify"`
}

type loweringConfig struct {
	StubsOnly      bool `toml:"stubs_only"`
	MaxDiagnostics int  `toml:"max_diagnostics"`
	Werror         bool `toml:"werror"`
	Jobs           int  `toml:"jobs"`
}

type filterConfig struct {
	Exclude []string `toml:"exclude"`
	JQ      string   `toml:"jq"`
}

type cacheConfig struct {
	Enabled *bool  `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func (c cacheConfig) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func findConfig(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadConfig reads explicit when set, otherwise the nearest cxxlower.toml
// above startDir. No file at all yields the zero config.
func loadConfig(explicit, startDir string) (*projectConfig, error) {
	path := explicit
	if path == "" {
		found, ok, err := findConfig(startDir)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &projectConfig{}, nil
		}
		path = found
	}
	return readConfig(path)
}

func readConfig(path string) (*projectConfig, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Path = abs
	cfg.Root = filepath.Dir(abs)
	if err := cfg.checkVersion(); err != nil {
		return nil, err
	}
	if cfg.Lowering.MaxDiagnostics < 0 || cfg.Lowering.Jobs < 0 {
		return nil, fmt.Errorf("%s: [lowering] limits must not be negative", path)
	}
	cfg.Frontend.Includes = cfg.resolveAll(cfg.Frontend.Includes)
	cfg.Output.Dir = cfg.resolve(cfg.Output.Dir)
	cfg.Cache.Dir = cfg.resolve(cfg.Cache.Dir)
	if strings.ContainsRune(cfg.Frontend.Command, filepath.Separator) {
		cfg.Frontend.Command = cfg.resolve(cfg.Frontend.Command)
	}
	return &cfg, nil
}

func (c *projectConfig) checkVersion() error {
	want := strings.TrimSpace(c.MinVersion)
	if want == "" {
		return nil
	}
	if !strings.HasPrefix(want, "v") {
		want = "v" + want
	}
	if !semver.IsValid(want) {
		return fmt.Errorf("%s: min_version %q is not a semantic version", c.Path, c.MinVersion)
	}
	if have := version.Semver(); semver.Compare(have, want) < 0 {
		return fmt.Errorf("%s: %s: project needs cxxlower %s or newer, this is %s",
			c.Path, diag.DrvMinVersion.ID(), want, have)
	}
	return nil
}

// resolve makes a config-relative path absolute.
func (c *projectConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

func (c *projectConfig) resolveAll(ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = c.resolve(p)
	}
	return out
}
