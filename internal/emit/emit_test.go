package emit

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cxxlower/internal/lir"
)

func structOf(name string, fields ...lir.Field) *lir.Struct {
	return &lir.Struct{Name: name, Key: name, Fields: fields}
}

func byValue(name string) lir.Field {
	return lir.Field{Name: strings.ToLower(name), Type: lir.RecordPath(name, name), Pub: true}
}

func TestStructsFollowValueDependencies(t *testing.T) {
	c := lir.NewCrate("order.cpp")
	// Outer holds Inner by value, Node points at itself, List owns Nodes
	c.Root.Add(structOf("Outer", byValue("Inner")))
	c.Root.Add(structOf("Node", lir.Field{Name: "next", Type: lir.RawPtr(lir.RecordPath("Node", "Node"), true)}))
	c.Root.Add(structOf("List", lir.Field{Name: "items", Type: lir.Owning("Vec", lir.RecordPath("Node", "Node"))}))
	c.Root.Add(structOf("Inner", lir.Field{Name: "v", Type: lir.I32}))

	out, err := Emit(c, Options{})
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, line := range strings.Split(out, "\n") {
		if name, ok := strings.CutPrefix(line, "pub struct "); ok {
			order = append(order, strings.Fields(name)[0])
		}
	}
	if diff := cmp.Diff([]string{"Node", "List", "Inner", "Outer"}, order); diff != "" {
		t.Fatalf("struct order (-want +got):\n%s", diff)
	}
}

func TestValueCycleIsFatal(t *testing.T) {
	c := lir.NewCrate("cycle.cpp")
	c.Root.Add(structOf("A", byValue("B")))
	ns := c.Root.Child("ns")
	ns.Add(structOf("B", byValue("A")))

	_, err := Emit(c, Options{})
	var oerr *OrderingError
	if !errors.As(err, &oerr) {
		t.Fatalf("Emit error = %v, want *OrderingError", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "A"}, oerr.Cycle); diff != "" {
		t.Fatalf("cycle (-want +got):\n%s", diff)
	}
}

func TestExpressionParenthesization(t *testing.T) {
	tests := []struct {
		name string
		e    lir.Expr
		want string
	}{
		{"left assoc", lir.Bin("-", lir.Ident("a"), lir.Bin("-", lir.Ident("b"), lir.Ident("c"))), "a - (b - c)"},
		{"precedence", lir.Bin("*", lir.Bin("+", lir.Ident("a"), lir.Ident("b")), lir.Ident("c")), "(a + b) * c"},
		{"cast before lt", lir.Bin("<", lir.Cast(lir.Ident("i"), lir.U64), lir.Ident("n")), "(i as u64) < n"},
		{"deref method", lir.MCall(lir.Deref(lir.Ident("p")), "len"), "(*p).len()"},
		{"unsafe operand", lir.Bin("+", lir.Unsafe(lir.Deref(lir.Ident("p"))), lir.Lit("1")), "(unsafe { *p }) + 1"},
		{"reborrow", lir.Borrow(lir.Deref(lir.Ident("x")), true), "&mut *x"},
		{"deref of borrow", lir.Deref(lir.Borrow(lir.Ident("x"), false)), "x"},
		{"tuple1", &lir.TupleExpr{Elems: []lir.Expr{lir.Lit("1")}}, "(1,)"},
	}
	for _, tt := range tests {
		p := &printer{}
		p.expr(tt.e)
		if got := p.b.String(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestModulesAndUses(t *testing.T) {
	c := lir.NewCrate("mods.cpp")
	zoo := c.Root.Child("zoo")
	zoo.AddUse(lir.Use{Path: "crate::util", Glob: true})
	zoo.AddUse(lir.Use{Path: "crate::util", Glob: true})
	zoo.Add(&lir.Func{Name: "legs", Pub: true, Result: lir.I32, Body: lir.Seq(nil, lir.Lit("4"))})
	anon := zoo.Child("__anon1")
	anon.Pub = false

	out, err := Emit(c, Options{Header: "generated"})
	if err != nil {
		t.Fatal(err)
	}
	want := `// generated
// source: mods.cpp
#![allow(` + strings.Join(Allows, ", ") + `)]

pub mod zoo {
    use crate::util::*;

    pub fn legs() -> i32 {
        4
    }

    mod __anon1 {
    }
}
`
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("output (-want +got):\n%s", diff)
	}
}
