package diagfmt

import (
	"encoding/json"
	"io"

	"cxxlower/internal/diag"
	"cxxlower/internal/source"
)

type LocationJSON struct {
	File string `json:"file"`
	Line uint32 `json:"line,omitempty"`
	Col  uint32 `json:"col,omitempty"`
}

type NoteJSON struct {
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
}

type DiagnosticJSON struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Title    string       `json:"title"`
	Fatal    bool         `json:"fatal,omitempty"`
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
	Notes    []NoteJSON   `json:"notes,omitempty"`
}

// DiagnosticsOutput is the root object written by JSON.
type DiagnosticsOutput struct {
	Unit        string           `json:"unit,omitempty"`
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Dropped     int              `json:"dropped,omitempty"`
}

// Build converts a bag into its JSON model.
func Build(bag *diag.Bag, fs *source.FileSet, opts JSONOpts) DiagnosticsOutput {
	out := DiagnosticsOutput{Unit: opts.Unit, Diagnostics: []DiagnosticJSON{}}
	if bag == nil {
		return out
	}
	for i, d := range bag.Items() {
		if opts.Max > 0 && i >= opts.Max {
			break
		}
		dj := DiagnosticJSON{
			Severity: d.Severity.Label(),
			Code:     d.Code.ID(),
			Title:    d.Code.Title(),
			Fatal:    d.Code.Fatal(),
			Message:  d.Message,
			Location: makeLocation(fs, d.Primary, opts.PathMode),
		}
		if opts.IncludeNotes {
			for _, n := range d.Notes {
				dj.Notes = append(dj.Notes, NoteJSON{Message: n.Msg, Location: makeLocation(fs, n.Span, opts.PathMode)})
			}
		}
		out.Diagnostics = append(out.Diagnostics, dj)
	}
	out.Count = len(out.Diagnostics)
	out.Dropped = bag.Dropped() + bag.Len() - out.Count
	return out
}

// JSON writes the bag as one indented JSON document.
func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Build(bag, fs, opts))
}

func makeLocation(fs *source.FileSet, sp source.Span, mode PathMode) LocationJSON {
	loc := LocationJSON{File: "<unknown>", Line: sp.Line, Col: sp.Col}
	if fs != nil {
		if f := fs.Get(sp.File); f != nil {
			loc.File = f.FormatPath(mode.String(), fs.BaseDir())
		}
	}
	return loc
}
