package diag

import (
	"fmt"
	"sort"
	"strings"

	"cxxlower/internal/source"
)

type goldenLine struct {
	sev  string
	code string
	path string
	line uint32
	col  uint32
	msg  string
}

// FormatGoldenDiagnostics renders one diagnostic per line, sorted, with
// diagnostics located in system headers dropped. Used by golden tests.
func FormatGoldenDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	return formatLines(diags, fs, includeNotes, true)
}

// FormatShortDiagnostics is the CLI "short" format; nothing is filtered.
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	return formatLines(diags, fs, includeNotes, false)
}

func formatLines(diags []Diagnostic, fs *source.FileSet, includeNotes, skipSystem bool) string {
	if len(diags) == 0 {
		return ""
	}
	out := make([]goldenLine, 0, len(diags))
	for i := range diags {
		d := &diags[i]
		if l, ok := resolve(fs, d.Primary, skipSystem); ok {
			l.sev, l.code, l.msg = d.Severity.Label(), d.Code.ID(), flatten(d.Message)
			out = append(out, l)
		}
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			if l, ok := resolve(fs, n.Span, skipSystem); ok {
				l.sev, l.code, l.msg = "note", d.Code.ID(), flatten(n.Msg)
				out = append(out, l)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.path != b.path {
			return a.path < b.path
		}
		if a.line != b.line {
			return a.line < b.line
		}
		if a.col != b.col {
			return a.col < b.col
		}
		if a.sev != b.sev {
			return a.sev < b.sev
		}
		if a.code != b.code {
			return a.code < b.code
		}
		return a.msg < b.msg
	})

	var b strings.Builder
	for i, l := range out {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %s:%d:%d %s", l.sev, l.code, l.path, l.line, l.col, l.msg)
	}
	return b.String()
}

func resolve(fs *source.FileSet, sp source.Span, skipSystem bool) (goldenLine, bool) {
	path := "<unknown>"
	if fs != nil {
		if f := fs.Get(sp.File); f != nil {
			if skipSystem && f.Flags&source.FileSystem != 0 {
				return goldenLine{}, false
			}
			path = f.FormatPath("relative", fs.BaseDir())
		}
	}
	return goldenLine{path: path, line: sp.Line, col: sp.Col}, true
}

func flatten(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
