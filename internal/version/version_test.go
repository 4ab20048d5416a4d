package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestColoredKeepsComponents(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3-rc.1"
	if got := Colored(); got != "1.2.3-rc.1" {
		t.Fatalf("Colored() = %q", got)
	}
	Version = "garbage"
	if got := Colored(); got != "garbage" {
		t.Fatalf("Colored() = %q", got)
	}
}

func TestSemverPrefix(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "0.4.0"
	if Semver() != "v0.4.0" {
		t.Fatalf("Semver() = %q", Semver())
	}
	Version = "v1.0.0"
	if Semver() != "v1.0.0" {
		t.Fatalf("Semver() = %q", Semver())
	}
}

func TestDescribeIncludesCommit(t *testing.T) {
	origCommit := GitCommit
	defer func() { GitCommit = origCommit }()
	GitCommit = "abc123"
	if !strings.Contains(Describe(), "commit: abc123") {
		t.Fatalf("Describe() = %q", Describe())
	}
}
