// Package diag holds the diagnostic model shared by every cxxlower phase.
//
// Recoverable findings (unsupported constructs, degraded types) are reported
// through a Reporter and collected in a Bag; the unit keeps lowering. Fatal
// findings (layout invariant violations, emission ordering failures) are also
// recorded here but additionally stop the translation unit that produced them.
// Formatting lives in internal/diagfmt.
package diag

import "cxxlower/internal/source"

type Note struct {
	Span source.Span
	Msg  string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Notes    []Note
}

func New(sev Severity, code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Primary: primary, Message: msg}
}

func NewError(code Code, primary source.Span, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func (d Diagnostic) WithNote(sp source.Span, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Span: sp, Msg: msg})
	return d
}

// less is the canonical order: file, line, column, severity (desc), code, message.
func less(a, b *Diagnostic) bool {
	if a.Primary != b.Primary {
		return a.Primary.Less(b.Primary)
	}
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	return a.Message < b.Message
}
