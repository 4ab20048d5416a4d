package verify

import (
	"context"
	"errors"
	"testing"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/emit"
	"cxxlower/internal/lower"
	"cxxlower/internal/types"
)

func TestCheckAcceptsRust(t *testing.T) {
	src := `pub struct Point { pub x: i32, pub y: i32 }
impl Point {
    pub fn sum(&self) -> i32 { self.x + self.y }
}
fn main() { let p = Point { x: 1, y: 2 }; assert_eq!(p.sum(), 3); }
`
	if err := Check([]byte(src)); err != nil {
		t.Fatal(err)
	}
}

func TestCheckLocatesError(t *testing.T) {
	src := "fn ok() {}\nfn broken( -> i32 { 1 }\n"
	err := Check([]byte(src))
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}
	if se.Line != 2 {
		t.Errorf("error on line %d, want 2 (%v)", se.Line, se)
	}
}

func TestReportAddsDiagnostic(t *testing.T) {
	bag := diag.NewBag(4)
	if Report(&diag.BagReporter{Bag: bag}, 0, []byte("struct {")) {
		t.Fatal("Report accepted broken input")
	}
	if bag.Count(diag.EmtSyntaxCheck) != 1 {
		t.Errorf("diagnostics = %v", bag.Items())
	}
}

// The lowered class hierarchy exercises vtables, impl blocks and unsafe
// calls, the parts of the emitter most likely to drift.
func TestLoweredOutputParses(t *testing.T) {
	b := ast.NewBuilder("shapes")
	i32 := b.I32()
	shape, shapeT := b.Record(ast.NoDeclID, "Shape")
	area := b.Virtual(shape, "area", i32)
	b.Body(area, b.Return(b.Int(0)))
	b.Body(b.Dtor(shape, true))
	sq, sqT := b.Record(ast.NoDeclID, "Square", types.Base{Type: shapeT})
	side := b.Field(sq, "side", i32)
	sqArea := b.Virtual(sq, "area", i32)
	b.Body(sqArea, b.Return(b.Bin(ast.BinMul, b.Member(b.This(sqT), side, true), b.Member(b.This(sqT), side, true))))
	p := b.Param("s", b.T().Pointer(shapeT, false))
	total := b.Function(ast.NoDeclID, "total", i32, p)
	b.Body(total, b.Return(b.CallMethod(b.Ref(p), true, area)))

	bag := diag.NewBag(50)
	crate, _, err := lower.Lower(context.Background(), b.U, &diag.BagReporter{Bag: bag}, lower.Options{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := emit.Emit(crate, emit.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := Check([]byte(out)); err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
}
