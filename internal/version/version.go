package version

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Overridable at build time via -ldflags "-X cxxlower/internal/version.Version=...".
var (
	Version    = "0.4.0"
	GitCommit  = ""
	BuildDate  = ""
	RuntimeABI = "cxx_rt/0.3"
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Colored renders Version with one colour per semver component.
func Colored() string {
	core, suffix, _ := strings.Cut(Version, "-")
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return Version
	}
	out := majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}

// Semver returns Version with the "v" prefix golang.org/x/mod/semver expects.
func Semver() string {
	if strings.HasPrefix(Version, "v") {
		return Version
	}
	return "v" + Version
}

// Describe is the long form printed by `cxxlower version`.
func Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cxxlower %s (runtime %s)", Colored(), RuntimeABI)
	if GitCommit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&b, "\nbuilt:  %s", BuildDate)
	}
	return b.String()
}
