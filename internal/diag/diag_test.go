package diag

import (
	"testing"

	"cxxlower/internal/source"
)

func TestFormatGoldenDiagnostics(t *testing.T) {
	fs := source.NewFileSet()
	fs.SetBaseDir("/workspace")

	user := fs.Intern("/workspace/src/shapes.cpp", 0)
	sys := fs.Intern("/usr/include/c++/13/bits/stl_vector.h", source.FileSystem)

	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     TypMappingFallback,
			Message:  "member pointer\nmapped to [u8; 16]",
			Primary:  source.Span{File: user, Line: 7, Col: 3},
		},
		{
			Severity: SevError,
			Code:     LowUnsupportedConstruct,
			Message:  "goto",
			Primary:  source.Span{File: user, Line: 2, Col: 1},
			Notes: []Note{
				{Span: source.Span{File: sys, Line: 10, Col: 1}, Msg: "hidden"},
				{Span: source.Span{File: user, Line: 1, Col: 5}, Msg: "label here"},
			},
		},
	}

	want := "note LOW4001 src/shapes.cpp:1:5 label here\n" +
		"error LOW4001 src/shapes.cpp:2:1 goto\n" +
		"warning TYP3001 src/shapes.cpp:7:3 member pointer mapped to [u8; 16]"
	if got := FormatGoldenDiagnostics(diags, fs, true); got != want {
		t.Fatalf("unexpected golden output:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestBagSortIsDeterministic(t *testing.T) {
	mk := func(line uint32, sev Severity, code Code) Diagnostic {
		return New(sev, code, source.Span{File: 1, Line: line, Col: 1}, "m")
	}
	a := NewBag(0)
	b := NewBag(0)
	in := []Diagnostic{
		mk(3, SevWarning, TypMappingFallback),
		mk(1, SevWarning, TypMappingFallback),
		mk(3, SevError, LowUnsupportedConstruct),
		mk(2, SevInfo, LowGenericLambdaInferred),
	}
	for i := range in {
		a.Add(in[i])
		b.Add(in[len(in)-1-i])
	}
	a.Sort()
	b.Sort()
	for i := range a.Items() {
		if a.Items()[i].Code != b.Items()[i].Code || a.Items()[i].Primary != b.Items()[i].Primary {
			t.Fatalf("order depends on insertion at %d", i)
		}
	}
	if got := a.Items()[2].Code; got != LowUnsupportedConstruct {
		t.Fatalf("error must precede warning on the same span, got %s", got.ID())
	}
}

func TestBagLimitAndFatal(t *testing.T) {
	b := NewBag(1)
	b.Add(New(SevWarning, TypMappingFallback, source.NoSpan, "x"))
	if b.Add(New(SevError, LayInvariantViolation, source.NoSpan, "y")) {
		t.Fatalf("limit not enforced")
	}
	if b.Dropped() != 1 || b.HasFatal() {
		t.Fatalf("dropped=%d fatal=%v", b.Dropped(), b.HasFatal())
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})
	sp := source.Span{File: 1, Line: 4, Col: 2}
	for range 3 {
		ReportWarning(r, TypMappingFallback, sp, "opaque").Emit()
	}
	if bag.Len() != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", bag.Len())
	}
}

func TestCodeFamilies(t *testing.T) {
	if !LowGoto.Unsupported() || LowGenericLambdaInferred.Unsupported() {
		t.Fatalf("unsupported family misclassified")
	}
	if !EmtOrderingFailure.Fatal() || TypMappingFallback.Fatal() {
		t.Fatalf("fatal family misclassified")
	}
	if LayInvariantViolation.ID() != "LAY5001" {
		t.Fatalf("unexpected id %s", LayInvariantViolation.ID())
	}
}
