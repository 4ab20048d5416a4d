package source

import "testing"

func TestInternIsStable(t *testing.T) {
	fs := NewFileSet()
	a := fs.Intern("src/./shapes.cpp", 0)
	b := fs.Intern("src/shapes.cpp", FileSystem)
	if a != b {
		t.Fatalf("same path interned twice: %d vs %d", a, b)
	}
	if a == NoFile {
		t.Fatalf("NoFile must never be handed out")
	}
	if fs.Get(a).Flags&FileSystem == 0 {
		t.Fatalf("flags were not merged")
	}
	if fs.Len() != 1 {
		t.Fatalf("Len = %d, want 1", fs.Len())
	}
}

func TestVirtualLines(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("mem.cpp", []byte("int a;\nint b;\n"))
	f := fs.Get(id)
	if got := f.Line(2); got != "int b;" {
		t.Fatalf("Line(2) = %q", got)
	}
	if got := f.Line(9); got != "" {
		t.Fatalf("Line(9) = %q, want empty", got)
	}
}

func TestSpanOrdering(t *testing.T) {
	a := Span{File: 1, Line: 3, Col: 9}
	b := Span{File: 1, Line: 4, Col: 1}
	c := Span{File: 2, Line: 1, Col: 1}
	if !a.Less(b) || !b.Less(c) || c.Less(a) {
		t.Fatalf("unexpected ordering")
	}
	if NoSpan.Valid() {
		t.Fatalf("NoSpan must be invalid")
	}
}

func TestFormatPath(t *testing.T) {
	f := &File{Path: "/work/proj/src/a.cpp"}
	if got := f.FormatPath("relative", "/work/proj"); got != "src/a.cpp" {
		t.Fatalf("relative = %q", got)
	}
	if got := f.FormatPath("basename", ""); got != "a.cpp" {
		t.Fatalf("basename = %q", got)
	}
}
