package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, configFileName)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestConfigIsFoundAboveTheInput(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
[frontend]
command = "tools/dump-ast"
args = ["--std=c++17"]
includes = ["include"]

[output]
dir = "gen"
header = "// generated"

[lowering]
stubs_only = true
werror = true

[filter]
exclude = ["third_party/**"]
jq = ".decls"

[cache]
enabled = false
`)
	sub := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig("", sub)
	if err != nil {
		t.Fatal(err)
	}
	want := &projectConfig{
		Path: filepath.Join(root, configFileName),
		Root: root,
		Frontend: frontendConfig{
			Command:  filepath.Join(root, "tools", "dump-ast"),
			Args:     []string{"--std=c++17"},
			Includes: []string{filepath.Join(root, "include")},
		},
		Output:   outputConfig{Dir: filepath.Join(root, "gen"), Header: "// generated"},
		Lowering: loweringConfig{StubsOnly: true, Werror: true},
		Filter:   filterConfig{Exclude: []string{"third_party/**"}, JQ: ".decls"},
	}
	if diff := cmp.Diff(want, cfg, cmpopts.IgnoreFields(projectConfig{}, "Cache")); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
	if cfg.Cache.enabled() {
		t.Error("cache enabled despite enabled = false")
	}
}

func TestMissingConfigIsEmpty(t *testing.T) {
	cfg, err := loadConfig("", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "" || !cfg.Cache.enabled() {
		t.Errorf("config = %+v", cfg)
	}
}

func TestConfigRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[output]\ndirectory = \"x\"\n", "unknown keys: output.directory"},
		{"syntax", "[output\n", "failed to parse TOML"},
		{"newer tool", "min_version = \"99.0.0\"\n", "DRV7002"},
		{"bad version", "min_version = \"soon\"\n", "not a semantic version"},
		{"negative", "[lowering]\njobs = -1\n", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeConfig(t, t.TempDir(), tt.body)
			_, err := loadConfig(p, "")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestOlderMinVersionIsAccepted(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "min_version = \"0.1\"\n")
	if _, err := loadConfig(p, ""); err != nil {
		t.Fatal(err)
	}
}
