package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"cxxlower/internal/diag"
	"cxxlower/internal/source"
)

// Pretty prints diagnostics as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//	   | <source line>
//	   | ^
//
// followed by notes. The bag is expected to be sorted.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	if bag == nil {
		return
	}
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		loc := location(fs, d.Primary, opts.PathMode)
		fmt.Fprintf(w, "%s: %s %s: %s\n",
			p.loc.Sprint(loc), p.sev(d.Severity).Sprint(d.Severity.String()), p.code.Sprint(d.Code.ID()), d.Message)
		if opts.Preview {
			writePreview(w, fs, d.Primary, p)
		}
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  %s: %s %s\n", p.loc.Sprint(location(fs, n.Span, opts.PathMode)), p.note.Sprint("note:"), n.Msg)
		}
	}
	if n := bag.Dropped(); n > 0 {
		fmt.Fprintf(w, "%s\n", p.note.Sprintf("... %d more diagnostics suppressed", n))
	}
}

type palette struct {
	loc, code, note    *color.Color
	err, warning, info *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		loc:     mk(color.Bold),
		code:    mk(color.FgCyan),
		note:    mk(color.FgHiBlack),
		err:     mk(color.FgRed, color.Bold),
		warning: mk(color.FgYellow, color.Bold),
		info:    mk(color.FgBlue),
	}
}

func (p palette) sev(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warning
	}
	return p.info
}

func location(fs *source.FileSet, sp source.Span, mode PathMode) string {
	path := "<unknown>"
	if fs != nil {
		if f := fs.Get(sp.File); f != nil {
			path = f.FormatPath(mode.String(), fs.BaseDir())
		}
	}
	if sp.Line == 0 {
		return path
	}
	return fmt.Sprintf("%s:%d:%d", path, sp.Line, sp.Col)
}

func writePreview(w io.Writer, fs *source.FileSet, sp source.Span, p palette) {
	if fs == nil || !sp.Valid() {
		return
	}
	line := fs.Get(sp.File).Line(sp.Line)
	if line == "" {
		return
	}
	line = strings.ReplaceAll(line, "\t", "    ")
	col := int(sp.Col)
	if col < 1 {
		col = 1
	}
	fmt.Fprintf(w, "   | %s\n", line)
	fmt.Fprintf(w, "   | %s%s\n", strings.Repeat(" ", col-1), p.err.Sprint("^"))
}
