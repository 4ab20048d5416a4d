package symbols

import (
	"testing"

	"cxxlower/internal/ast"
)

func TestUsingDirectiveIsPositional(t *testing.T) {
	b := ast.NewBuilder("using")
	i32 := b.I32()
	lib := b.Namespace(ast.NoDeclID, "lib")
	helper := b.Function(lib, "helper", i32)
	app := b.Namespace(ast.NoDeclID, "app")
	before := b.Function(app, "before", i32)
	b.UsingNamespace(app, lib)
	after := b.Function(app, "after", i32)
	inner := b.Namespace(app, "inner")
	nested := b.Function(inner, "nested", i32)

	tab := Build(b.U)
	appScope := tab.NamespaceScope(app)
	innerScope := tab.NamespaceScope(inner)

	if tab.ShortOK(appScope, "helper", helper, tab.Order(before)) {
		t.Fatal("helper must not be visible before the using-directive")
	}
	if !tab.ShortOK(appScope, "helper", helper, tab.Order(after)) {
		t.Fatal("helper should be visible after the using-directive")
	}
	if !tab.ShortOK(innerScope, "helper", helper, tab.Order(nested)) {
		t.Fatal("using-directive should reach descendant namespaces")
	}
	if tab.ShortOK(tab.NamespaceScope(ast.NoDeclID), "helper", helper, tab.End()) {
		t.Fatal("using-directive must not leak to the enclosing namespace")
	}
}

func TestLocalShadowsImport(t *testing.T) {
	b := ast.NewBuilder("shadow")
	i32 := b.I32()
	lib := b.Namespace(ast.NoDeclID, "lib")
	value := b.Global(lib, "value", i32, ast.NoExprID)
	b.UsingDecl(ast.NoDeclID, value)
	fn := b.Function(ast.NoDeclID, "f", i32)
	local := b.LocalVar("value", i32, ast.NoExprID)

	tab := Build(b.U)
	root := tab.NamespaceScope(ast.NoDeclID)
	at := tab.Order(fn)
	if !tab.ShortOK(root, "value", value, at) {
		t.Fatal("using-declaration should make value printable unqualified")
	}
	block := tab.EnterBlock(root)
	tab.DeclareLocal(block, "value", local)
	if tab.ShortOK(block, "value", value, at) {
		t.Fatal("a local must win over the imported name")
	}
	res, ok := tab.Lookup(block, "value", at)
	if !ok || res.Decls[0] != local {
		t.Fatalf("Lookup = %+v, want the local", res)
	}
}

func TestOuterNamespaceNeedsPath(t *testing.T) {
	b := ast.NewBuilder("outer")
	i32 := b.I32()
	a := b.Namespace(ast.NoDeclID, "a")
	g := b.Function(a, "g", i32)
	inner := b.Namespace(a, "b")
	h := b.Function(inner, "h", i32)

	tab := Build(b.U)
	if tab.ShortOK(tab.NamespaceScope(inner), "g", g, tab.Order(h)) {
		t.Fatal("a name from an enclosing namespace is not in the nested Rust module")
	}
	if !tab.ShortOK(tab.NamespaceScope(a), "g", g, tab.End()) {
		t.Fatal("same-namespace name should print unqualified")
	}
}

func TestNamerOverloadsAndKeywords(t *testing.T) {
	b := ast.NewBuilder("names")
	i32 := b.I32()
	f64 := b.T().Builtins().F64
	ns := b.Namespace(ast.NoDeclID, "math")
	fi := b.Function(ns, "f", i32, b.Param("x", i32))
	ff := b.Function(ns, "f", f64, b.Param("x", f64))
	kw := b.Function(ns, "match", i32)
	rec, _ := b.Record(ns, "Outer")
	innerRec, _ := b.Record(rec, "Inner")
	anon := b.Namespace(ast.NoDeclID, "")

	n := NewNamer(b.U, nil)
	cases := map[ast.DeclID]string{
		fi:       "f__i32",
		ff:       "f__f64",
		kw:       "r#match",
		innerRec: "Outer_Inner",
		anon:     "__anon0",
	}
	for id, want := range cases {
		if got := n.Name(id); got != want {
			t.Errorf("Name(%d) = %q, want %q", id, got, want)
		}
	}
	if got := n.Path(fi); got != "crate::math::f__i32" {
		t.Errorf("Path = %q", got)
	}
	if got := Ident("self"); got != "self_" {
		t.Errorf("Ident(self) = %q", got)
	}
}

func TestCtorNames(t *testing.T) {
	b := ast.NewBuilder("ctors")
	rec, _ := b.Record(ast.NoDeclID, "P")
	c0 := b.Ctor(rec)
	c1 := b.Ctor(rec, b.Param("v", b.I32()))
	n := NewNamer(b.U, nil)
	if n.Name(c0) != "new__void" || n.Name(c1) != "new__i32" {
		t.Fatalf("ctor names = %q, %q", n.Name(c0), n.Name(c1))
	}
	if got := n.InitName(c1); got != "__init__i32" {
		t.Fatalf("InitName = %q", got)
	}
}
