package typemap

import (
	"testing"

	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

func TestPolicyTable(t *testing.T) {
	in := types.NewInterner()
	bi := in.Builtins()
	dog := in.Record("Dog", "zoo::Dog", "")
	info, _ := in.RecordInfo(dog)
	info.Complete = true

	m := New(in, nil, nil)
	tests := []struct {
		name string
		id   types.TypeID
		want string
	}{
		{"int", bi.I32, "i32"},
		{"unsigned long long", bi.U64, "u64"},
		{"double", bi.F64, "f64"},
		{"void", bi.Void, "()"},
		{"int*", in.Pointer(bi.I32, false), "*mut i32"},
		{"const int*", in.Pointer(bi.I32, true), "*const i32"},
		{"void*", in.Pointer(bi.Void, false), "*mut ::core::ffi::c_void"},
		{"nullptr_t", bi.Nullptr, "*mut ::core::ffi::c_void"},
		{"Dog&", in.Reference(dog, false, false), "&mut Dog"},
		{"const Dog&", in.Reference(dog, true, false), "&Dog"},
		{"Dog&&", in.Reference(dog, false, true), "&mut Dog"},
		{"int[4]", in.Array(bi.I32, 4), "[i32; 4]"},
		{"unique_ptr<Dog>", in.Std("unique_ptr", dog), "Box<Dog>"},
		{"shared_ptr<int>", in.Std("shared_ptr", bi.I32), "::std::sync::Arc<i32>"},
		{"weak_ptr<int>", in.Std("weak_ptr", bi.I32), "::std::sync::Weak<i32>"},
		{"vector<double>", in.Std("vector", bi.F64), "Vec<f64>"},
		{"string", in.Std("string"), "String"},
		{"map<int,string>", in.Std("map", bi.I32, in.Std("string")), "::std::collections::BTreeMap<i32, String>"},
		{"unordered_map<int,int>", in.Std("unordered_map", bi.I32, bi.I32), "::std::collections::HashMap<i32, i32>"},
		{"optional<int>", in.Std("optional", bi.I32), "Option<i32>"},
		{"pair<int,bool>", in.Std("pair", bi.I32, bi.Bool), "(i32, bool)"},
	}
	for _, tt := range tests {
		if got := m.Map(tt.id, source.NoSpan).String(); got != tt.want {
			t.Errorf("%s: Map = %q, want %q", tt.name, got, tt.want)
		}
	}
	if m.Fallbacks() != 0 {
		t.Fatalf("unexpected fallbacks: %d", m.Fallbacks())
	}
}

func TestFallbackReportsAtUseSite(t *testing.T) {
	in := types.NewInterner()
	bag := diag.NewBag(0)
	m := New(in, diag.BagReporter{Bag: bag}, nil)
	at := source.Span{File: 1, Line: 7, Col: 3}

	got := m.Map(in.Unsupported("std::function<void()>", 32), at)
	if got.String() != "[u8; 32]" || !got.Fallback {
		t.Fatalf("Map = %q (fallback=%v)", got.String(), got.Fallback)
	}
	got = m.Map(in.Std("regex"), at)
	if got.String() != "[u8; 0]" {
		t.Fatalf("unknown std template = %q", got.String())
	}
	if bag.Count(diag.TypMappingFallback) != 2 || bag.HasErrors() {
		t.Fatalf("expected two fallback warnings, got %d", bag.Count(diag.TypMappingFallback))
	}
	if bag.Items()[0].Primary != at {
		t.Fatalf("fallback reported at %v, want %v", bag.Items()[0].Primary, at)
	}
}

type twoForms struct{}

func (twoForms) RecordType(_ types.TypeID, complete bool) lir.Type {
	if complete {
		return lir.RecordPath("D__Complete", "D")
	}
	return lir.RecordPath("D", "D")
}

func TestValueVersusPointeeForm(t *testing.T) {
	in := types.NewInterner()
	d := in.Record("D", "D", "")
	info, _ := in.RecordInfo(d)
	info.Complete = true
	m := New(in, nil, twoForms{})
	if got := m.Map(d, source.NoSpan).String(); got != "D__Complete" {
		t.Fatalf("value form = %q", got)
	}
	if got := m.Map(in.Pointer(d, false), source.NoSpan).String(); got != "*mut D" {
		t.Fatalf("pointer form = %q", got)
	}
	ty, style := m.Param(in.Reference(d, true, false), source.NoSpan)
	if ty.String() != "&D" || style != ByRef {
		t.Fatalf("Param = %q %v", ty.String(), style)
	}
}
