package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"cxxlower/internal/diag"
	"cxxlower/internal/source"
)

func sampleBag(t *testing.T) (*diag.Bag, *source.FileSet) {
	t.Helper()
	fs := source.NewFileSet()
	fs.SetBaseDir("/ws")
	id := fs.AddVirtual("/ws/zoo.cpp", []byte("struct Dog : Animal {\n\tint (Dog::*pm)();\n};\n"))
	bag := diag.NewBag(0)
	bag.Add(diag.New(diag.SevWarning, diag.TypMappingFallback, source.Span{File: id, Line: 2, Col: 2}, "pointer to member mapped to [u8; 16]").
		WithNote(source.Span{File: id, Line: 1, Col: 8}, "in record Dog"))
	bag.Add(diag.New(diag.SevError, diag.LayInvariantViolation, source.Span{File: id, Line: 1, Col: 1}, "virtual base Animal placed twice"))
	bag.Sort()
	return bag, fs
}

func TestPrettyPlain(t *testing.T) {
	bag, fs := sampleBag(t)
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeRelative, ShowNotes: true, Preview: true})
	out := buf.String()

	for _, want := range []string{
		"zoo.cpp:1:1: ERROR LAY5001: virtual base Animal placed twice",
		"zoo.cpp:2:2: WARNING TYP3001: pointer to member mapped to [u8; 16]",
		"   |     int (Dog::*pm)();",
		"note: in record Dog",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("colour codes leaked into plain output")
	}
	if strings.Index(out, "LAY5001") > strings.Index(out, "TYP3001") {
		t.Errorf("diagnostics printed out of order")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	bag, fs := sampleBag(t)
	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{PathMode: PathModeBasename, IncludeNotes: true, Unit: "zoo"}); err != nil {
		t.Fatal(err)
	}
	var got DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if got.Count != 2 || got.Unit != "zoo" {
		t.Fatalf("unexpected header: %+v", got)
	}
	first := got.Diagnostics[0]
	if first.Code != "LAY5001" || !first.Fatal || first.Location.File != "zoo.cpp" {
		t.Fatalf("unexpected first diagnostic: %+v", first)
	}
	if len(got.Diagnostics[1].Notes) != 1 {
		t.Fatalf("notes were not included")
	}
}

func TestJSONMax(t *testing.T) {
	bag, fs := sampleBag(t)
	out := Build(bag, fs, JSONOpts{Max: 1})
	if out.Count != 1 || out.Dropped != 1 {
		t.Fatalf("count=%d dropped=%d", out.Count, out.Dropped)
	}
}
