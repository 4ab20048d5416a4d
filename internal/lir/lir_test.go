package lir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTypeString(t *testing.T) {
	dog := RecordPath("crate::zoo::Dog", "c:@N@zoo@S@Dog")
	tests := []struct {
		ty   Type
		want string
	}{
		{Unit, "()"},
		{RawPtr(I32, true), "*mut i32"},
		{RawPtr(dog, false), "*const crate::zoo::Dog"},
		{Ref(Path("String"), true), "&mut String"},
		{Array(F64, 3), "[f64; 3]"},
		{Owning("Box", dog), "Box<crate::zoo::Dog>"},
		{Tuple(I32), "(i32,)"},
		{Tuple(I32, Bool), "(i32, bool)"},
		{FnPtr([]Type{RawPtr(Unit, true), I32}, I32), "unsafe fn(*mut (), i32) -> i32"},
		{FnPtr([]Type{RawPtr(Unit, true)}, Unit), "unsafe fn(*mut ())"},
		{Blob(16), "[u8; 16]"},
		{VoidPtr, "*mut ::core::ffi::c_void"},
	}
	for _, tt := range tests {
		if got := tt.ty.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValueDeps(t *testing.T) {
	a := RecordPath("A", "A")
	b := RecordPath("B", "B")
	c := RecordPath("C", "C")
	ty := Tuple(
		a,
		Owning("Box", b),
		RawPtr(c, true),
		Array(Path("Option", c), 2),
		ManuallyDrop(b),
	)
	got := ty.ValueDeps(nil)
	if diff := cmp.Diff([]string{"A", "C", "B"}, got); diff != "" {
		t.Fatalf("ValueDeps (-want +got):\n%s", diff)
	}
}

func TestCopyAndDefault(t *testing.T) {
	if !Array(I32, 4).Copy() || Ref(I32, true).Copy() || Path("String").Copy() {
		t.Fatal("unexpected Copy classification")
	}
	if lit, ok := F32.Default().(*LitExpr); !ok || lit.Text != "0.0" {
		t.Fatalf("f32 default = %#v", F32.Default())
	}
	if _, ok := Array(I32, 2).Default().(*ArrayRepeat); !ok {
		t.Fatal("array of Copy elements should default with a repeat expression")
	}
}

func TestModuleChild(t *testing.T) {
	root := &Module{Pub: true}
	a := root.Child("a")
	if again := root.Child("a"); again != a {
		t.Fatal("Child should return the existing module")
	}
	a.Child("b")
	var paths [][]string
	root.Walk(func(p []string, _ *Module) { paths = append(paths, p) })
	want := [][]string{nil, {"a"}, {"a", "b"}}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("Walk (-want +got):\n%s", diff)
	}
}
