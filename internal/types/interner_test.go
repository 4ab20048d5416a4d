package types

import "testing"

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Void == NoTypeID || b.I32 == NoTypeID || b.F64 == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	if got := in.MustLookup(b.U16); got.Kind != KindInt || got.Signed || got.Width != Width16 {
		t.Fatalf("unexpected u16 descriptor: %+v", got)
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	i32 := in.Builtins().I32
	if in.Array(i32, 4) != in.Array(i32, 4) {
		t.Fatalf("array types should be deduplicated")
	}
	if in.Pointer(i32, true) == in.Pointer(i32, false) {
		t.Fatalf("constness of the pointee must affect identity")
	}
	if in.Reference(i32, false, true) == in.Reference(i32, false, false) {
		t.Fatalf("rvalue and lvalue references must differ")
	}
	if in.Std("vector", i32) != in.Std("vector", i32) {
		t.Fatalf("std instantiations should be deduplicated")
	}
	if in.Std("vector", i32) == in.Std("vector", in.Builtins().I64) {
		t.Fatalf("different arguments must yield different types")
	}
}

func TestRecordIdentityByUSR(t *testing.T) {
	in := NewInterner()
	a := in.Record("Animal", "zoo::Animal", "c:@N@zoo@S@Animal")
	b := in.Record("Animal", "zoo::Animal", "c:@N@zoo@S@Animal")
	c := in.Record("Animal", "farm::Animal", "c:@N@farm@S@Animal")
	if a != b {
		t.Fatalf("same USR must map to one record")
	}
	if a == c {
		t.Fatalf("distinct USRs must not collide")
	}
}

func TestPolymorphismIsInherited(t *testing.T) {
	in := NewInterner()
	base := in.Record("Animal", "Animal", "")
	derived := in.Record("Dog", "Dog", "")
	plain := in.Record("Point", "Point", "")

	bi, _ := in.RecordInfo(base)
	bi.Virtuals = []Virtual{{Name: "legs", Sig: "legs()const"}}
	di, _ := in.RecordInfo(derived)
	di.Bases = []Base{{Type: base}}

	if !in.Polymorphic(derived) {
		t.Fatalf("derived class of a polymorphic base is polymorphic")
	}
	if in.Polymorphic(plain) {
		t.Fatalf("plain struct reported polymorphic")
	}
	if !in.IsDerivedFrom(derived, base) || in.IsDerivedFrom(base, derived) {
		t.Fatalf("IsDerivedFrom is wrong")
	}
}

func TestVirtualBasesAreTransitive(t *testing.T) {
	in := NewInterner()
	a := in.Record("A", "A", "")
	b := in.Record("B", "B", "")
	d := in.Record("D", "D", "")
	bi, _ := in.RecordInfo(b)
	bi.Bases = []Base{{Type: a, Virtual: true}}
	di, _ := in.RecordInfo(d)
	di.Bases = []Base{{Type: b}}
	if !in.HasVirtualBases(d) || in.HasVirtualBases(a) {
		t.Fatalf("virtual base reachability is wrong")
	}
}

func TestFormat(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	rec := in.Record("Dog", "zoo::Dog", "")
	cases := map[TypeID]string{
		in.Pointer(b.I8, true):                 "const char*",
		in.Reference(rec, false, true):         "zoo::Dog&&",
		in.Array(b.F64, 3):                     "double[3]",
		in.Std("unique_ptr", rec):              "std::unique_ptr<zoo::Dog>",
		in.Std("map", in.Std("string"), b.U32): "std::map<std::string, unsigned int>",
		in.Unsupported("int (Dog::*)()", 16):   "int (Dog::*)()",
		in.Func(b.Void, []TypeID{b.I32}, true): "void(int, ...)",
	}
	for id, want := range cases {
		if got := in.Format(id); got != want {
			t.Errorf("Format = %q, want %q", got, want)
		}
	}
}
