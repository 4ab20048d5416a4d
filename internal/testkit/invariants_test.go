package testkit

import (
	"strings"
	"testing"

	"cxxlower/internal/ast"
	"cxxlower/internal/layout"
	"cxxlower/internal/types"
)

func hierarchy() (*ast.Builder, []types.TypeID) {
	b := ast.NewBuilder("diamond")
	i32 := b.I32()
	a, aT := b.Record(ast.NoDeclID, "A")
	b.Field(a, "v", i32)
	_, bT := b.Record(ast.NoDeclID, "B", types.Base{Type: aT, Virtual: true})
	_, cT := b.Record(ast.NoDeclID, "C", types.Base{Type: aT, Virtual: true})
	d, dT := b.Record(ast.NoDeclID, "D", types.Base{Type: bT}, types.Base{Type: cT})
	b.Field(d, "w", i32)

	animal, animalT := b.Record(ast.NoDeclID, "Animal")
	b.Virtual(animal, "legs", i32)
	dog, dogT := b.Record(ast.NoDeclID, "Dog", types.Base{Type: animalT})
	legs := b.Virtual(dog, "legs", i32)
	b.Body(legs, b.Return(b.Int(4)))
	return b, []types.TypeID{aT, bT, cT, dT, animalT, dogT}
}

func TestHierarchyKeepsInvariants(t *testing.T) {
	b, recs := hierarchy()
	if err := CheckUnitInvariants(b.U); err != nil {
		t.Fatal(err)
	}
	e := layout.New(b.T())
	for _, rec := range recs {
		l, err := e.Of(rec)
		if err != nil {
			t.Fatalf("layout of %d: %v", rec, err)
		}
		if err := CheckLayoutInvariants(b.T(), l); err != nil {
			t.Error(err)
		}
	}
}

func TestMisplacedMemberIsCaught(t *testing.T) {
	b, _ := hierarchy()
	fn := b.Function(ast.NoDeclID, "f", b.I32())
	b.U.Decl(fn).Parent = b.U.Roots[0]
	err := CheckUnitInvariants(b.U)
	if err == nil || !strings.Contains(err.Error(), "has parent") {
		t.Fatalf("err = %v", err)
	}
	if CheckUnitInvariants(nil) == nil {
		t.Error("nil unit accepted")
	}
}
