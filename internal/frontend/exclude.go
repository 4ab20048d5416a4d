package frontend

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Excluder drops top-level declarations whose file matches one of its
// patterns. Patterns use '/' as the separator; `**` crosses directories.
// A pattern without wildcards matches the path exactly or as a directory
// prefix.
type Excluder struct {
	patterns []excludePattern
}

type excludePattern struct {
	raw  string
	glob glob.Glob
}

func NewExcluder(patterns []string) (*Excluder, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	ex := &Excluder{}
	for _, raw := range patterns {
		p := normalizeExcludePath(raw)
		if p == "" {
			continue
		}
		ep := excludePattern{raw: p}
		if strings.ContainsAny(p, "*?[]{}") {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return nil, fmt.Errorf("exclude pattern %q: %w", raw, err)
			}
			ep.glob = g
		}
		ex.patterns = append(ex.patterns, ep)
	}
	return ex, nil
}

// Match reports whether path is excluded. A nil Excluder excludes nothing.
func (ex *Excluder) Match(path string) bool {
	if ex == nil {
		return false
	}
	p := normalizeExcludePath(path)
	for _, ep := range ex.patterns {
		if ep.glob != nil {
			if ep.glob.Match(p) {
				return true
			}
			continue
		}
		if p == ep.raw || strings.HasPrefix(p, strings.TrimSuffix(ep.raw, "/")+"/") {
			return true
		}
	}
	return false
}

func normalizeExcludePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// String lists the normalized patterns; it feeds the cache key.
func (ex *Excluder) String() string {
	if ex == nil {
		return ""
	}
	raw := make([]string, 0, len(ex.patterns))
	for _, ep := range ex.patterns {
		raw = append(raw, ep.raw)
	}
	return strings.Join(raw, ",")
}
