package layout

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cxxlower/internal/ast"
	"cxxlower/internal/types"
)

func mustLayout(t *testing.T, e *Engine, rec types.TypeID) *ClassLayout {
	t.Helper()
	l, err := e.Of(rec)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return l
}

func TestVtableSlotsStableAcrossDerivation(t *testing.T) {
	b := ast.NewBuilder("slots")
	i32 := b.I32()
	animal, animalT := b.Record(ast.NoDeclID, "Animal")
	b.Virtual(animal, "legs", i32)
	b.Virtual(animal, "name", i32)
	dog, dogT := b.Record(ast.NoDeclID, "Dog", types.Base{Type: animalT})
	b.Virtual(dog, "bark", i32)
	b.Virtual(dog, "legs", i32)
	puppy, puppyT := b.Record(ast.NoDeclID, "Puppy", types.Base{Type: dogT})
	b.Virtual(puppy, "name", i32)

	e := New(b.T())
	base := mustLayout(t, e, animalT)
	derived := mustLayout(t, e, dogT)
	leaf := mustLayout(t, e, puppyT)

	if diff := cmp.Diff([]string{"legs()", "name()"}, base.Vtable.Sigs()); diff != "" {
		t.Fatalf("Animal slots (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"legs()", "name()", "bark()"}, derived.Vtable.Sigs()); diff != "" {
		t.Fatalf("Dog slots (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(derived.Vtable.Sigs(), leaf.Vtable.Sigs()); diff != "" {
		t.Fatalf("Puppy must keep Dog's slots (-want +got):\n%s", diff)
	}
	impls := []types.TypeID{derived.Vtable.Slots[0].Impl, derived.Vtable.Slots[1].Impl, derived.Vtable.Slots[2].Impl}
	if diff := cmp.Diff([]types.TypeID{dogT, animalT, dogT}, impls); diff != "" {
		t.Fatalf("Dog overriders (-want +got):\n%s", diff)
	}
	if leaf.Vtable.Slots[1].Impl != puppyT || leaf.Vtable.Slots[0].Impl != dogT {
		t.Fatalf("Puppy overriders = %+v", leaf.Vtable.Slots)
	}
	if !base.OwnVPtr || derived.OwnVPtr || derived.Primary != 0 {
		t.Fatalf("vptr placement: Animal own=%v, Dog own=%v primary=%d", base.OwnVPtr, derived.OwnVPtr, derived.Primary)
	}
}

func TestBasesPrecedeOwnFields(t *testing.T) {
	b := ast.NewBuilder("order")
	i32 := b.I32()
	b1, b1T := b.Record(ast.NoDeclID, "B1")
	b.Field(b1, "a", i32)
	b2, b2T := b.Record(ast.NoDeclID, "B2")
	b.Field(b2, "b", i32)
	d, dT := b.Record(ast.NoDeclID, "D", types.Base{Type: b1T}, types.Base{Type: b2T})
	b.Field(d, "x", i32)
	b.Virtual(d, "f", i32)

	l := mustLayout(t, New(b.T()), dT)
	want := []string{"__vptr", "__base_B1", "__base_B2", "x"}
	if diff := cmp.Diff(want, l.Order()); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestDiamondVirtualBaseStoredOnce(t *testing.T) {
	b := ast.NewBuilder("diamond")
	i32 := b.I32()
	a, aT := b.Record(ast.NoDeclID, "A")
	b.Field(a, "v", i32)
	_, bT := b.Record(ast.NoDeclID, "B", types.Base{Type: aT, Virtual: true})
	_, cT := b.Record(ast.NoDeclID, "C", types.Base{Type: aT, Virtual: true})
	d, dT := b.Record(ast.NoDeclID, "D", types.Base{Type: bT}, types.Base{Type: cT})
	b.Field(d, "w", i32)

	e := New(b.T())
	l := mustLayout(t, e, dT)
	if len(l.VBases) != 1 || l.VBases[0].Type != aT {
		t.Fatalf("VBases = %+v, want exactly A", l.VBases)
	}
	if l.VBases[0].Direct || l.VBases[0].ViaBase != 0 {
		t.Fatalf("A should be reached through B, got %+v", l.VBases[0])
	}
	if diff := cmp.Diff([]string{"__base_B", "__base_C", "w"}, l.Order()); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	var holders []string
	for _, s := range l.Offsets {
		holders = append(holders, s.Holder.String()+"."+s.Field)
	}
	want := []string{"__sub.__base_B.__vboff_A", "__sub.__base_C.__vboff_A"}
	if diff := cmp.Diff(want, holders); diff != "" {
		t.Fatalf("offset slots (-want +got):\n%s", diff)
	}
	bl := mustLayout(t, e, bT)
	if diff := cmp.Diff([]string{"__vboff_A"}, bl.Order()); diff != "" {
		t.Fatalf("B order (-want +got):\n%s", diff)
	}
}

func TestSecondaryBaseKeepsOwnVtable(t *testing.T) {
	b := ast.NewBuilder("secondary")
	i32 := b.I32()
	b1, b1T := b.Record(ast.NoDeclID, "B1")
	b.Virtual(b1, "f", i32)
	b2, b2T := b.Record(ast.NoDeclID, "B2")
	b.Virtual(b2, "g", i32)
	d, dT := b.Record(ast.NoDeclID, "D", types.Base{Type: b1T}, types.Base{Type: b2T})
	b.Virtual(d, "g", i32)

	l := mustLayout(t, New(b.T()), dT)
	if len(l.Secondary) != 1 || l.Secondary[0].Path.String() != "__base_B2" {
		t.Fatalf("Secondary = %+v", l.Secondary)
	}
	if got := l.Secondary[0].Vtable.Slots[0].Impl; got != dT {
		t.Fatalf("g in the B2 table resolves to %d, want D", got)
	}
	ref, ok := l.FindSlot("g()")
	if !ok || ref.Index != 1 || len(ref.Path) != 0 {
		t.Fatalf("FindSlot(g) = %+v, %v; want the new slot in D's own table", ref, ok)
	}
	ref, ok = l.FindSlot("f()")
	if !ok || ref.Index != 0 || ref.Type != dT {
		t.Fatalf("FindSlot(f) = %+v, %v", ref, ok)
	}
}

// E : virtual B1, virtual B2 with B1, B2 : virtual A and only B1 overriding
// f: B1::f dominates A::f in the shared A subobject.
func TestDominantOverriderInVirtualDiamond(t *testing.T) {
	b := ast.NewBuilder("dominance")
	i32 := b.I32()
	a, aT := b.Record(ast.NoDeclID, "A")
	b.Virtual(a, "f", i32)
	b1, b1T := b.Record(ast.NoDeclID, "B1", types.Base{Type: aT, Virtual: true})
	f1 := b.Virtual(b1, "f", i32)
	_, b2T := b.Record(ast.NoDeclID, "B2", types.Base{Type: aT, Virtual: true})
	_, eT := b.Record(ast.NoDeclID, "E", types.Base{Type: b1T, Virtual: true}, types.Base{Type: b2T, Virtual: true})

	l := mustLayout(t, New(b.T()), eT)
	if o, ok := l.Overrider("f()"); !ok || o.Owner != b1T {
		t.Fatalf("Overrider(f) = %+v, %v; want B1", o, ok)
	}
	var found bool
	for _, s := range l.Virtual {
		if s.Type != aT {
			continue
		}
		found = true
		slot := s.Vtable.Slots[s.Vtable.Index("f()")]
		if slot.Impl != b1T || slot.ImplDecl != uint32(f1) {
			t.Fatalf("f in the A subobject resolves to %d (decl %d), want B1", slot.Impl, slot.ImplDecl)
		}
	}
	if !found {
		t.Fatalf("no A subobject in %+v", l.Virtual)
	}
}

// D : B1, B2 where both bases declare an unrelated f and D does not
// override it: each subobject keeps its own f.
func TestSiblingBasesKeepTheirOwnOverriders(t *testing.T) {
	b := ast.NewBuilder("siblings")
	i32 := b.I32()
	b1, b1T := b.Record(ast.NoDeclID, "B1")
	b.Virtual(b1, "f", i32)
	b2, b2T := b.Record(ast.NoDeclID, "B2")
	f2 := b.Virtual(b2, "f", i32)
	_, dT := b.Record(ast.NoDeclID, "D", types.Base{Type: b1T}, types.Base{Type: b2T})

	l := mustLayout(t, New(b.T()), dT)
	if got := l.Vtable.Slots[l.Vtable.Index("f()")].Impl; got != b1T {
		t.Fatalf("f in the primary table resolves to %d, want B1", got)
	}
	if len(l.Secondary) != 1 {
		t.Fatalf("Secondary = %+v", l.Secondary)
	}
	slot := l.Secondary[0].Vtable.Slots[0]
	if slot.Impl != b2T || slot.ImplDecl != uint32(f2) {
		t.Fatalf("f in the B2 table resolves to %d (decl %d), want B2", slot.Impl, slot.ImplDecl)
	}
}

// A derived override still replaces both siblings' f.
func TestOverrideReachesEverySubobject(t *testing.T) {
	b := ast.NewBuilder("both")
	i32 := b.I32()
	b1, b1T := b.Record(ast.NoDeclID, "B1")
	b.Virtual(b1, "f", i32)
	b2, b2T := b.Record(ast.NoDeclID, "B2")
	b.Virtual(b2, "f", i32)
	d, dT := b.Record(ast.NoDeclID, "D", types.Base{Type: b1T}, types.Base{Type: b2T})
	b.Virtual(d, "f", i32)

	l := mustLayout(t, New(b.T()), dT)
	got := []types.TypeID{l.Vtable.Slots[0].Impl, l.Secondary[0].Vtable.Slots[0].Impl}
	if diff := cmp.Diff([]types.TypeID{dT, dT}, got); diff != "" {
		t.Fatalf("overriders (-want +got):\n%s", diff)
	}
}

func TestVirtualDestructorOverriddenImplicitly(t *testing.T) {
	b := ast.NewBuilder("dtor")
	base, baseT := b.Record(ast.NoDeclID, "Base")
	b.Dtor(base, true)
	_, derivedT := b.Record(ast.NoDeclID, "Derived", types.Base{Type: baseT})

	l := mustLayout(t, New(b.T()), derivedT)
	if l.Vtable.Index("~") != 0 {
		t.Fatalf("destructor slot = %d", l.Vtable.Index("~"))
	}
	s := l.Vtable.Slots[0]
	if s.Impl != derivedT || s.ImplDecl != 0 || !s.Dtor {
		t.Fatalf("slot = %+v, want the implicit Derived destructor", s)
	}
}

func TestLayoutErrors(t *testing.T) {
	b := ast.NewBuilder("errors")
	_, selfT := b.Record(ast.NoDeclID, "Self")
	info, _ := b.T().RecordInfo(selfT)
	info.Bases = append(info.Bases, types.Base{Type: selfT})
	fwd := b.T().Record("Fwd", "Fwd", "")
	_, usesT := b.Record(ast.NoDeclID, "Uses", types.Base{Type: fwd})

	e := New(b.T())
	tests := []struct {
		rec  types.TypeID
		want LayoutErrorKind
	}{
		{selfT, LayoutErrRecursiveBase},
		{usesT, LayoutErrIncompleteBase},
	}
	for _, tt := range tests {
		_, err := e.Of(tt.rec)
		var lerr *LayoutError
		if !errors.As(err, &lerr) || lerr.Kind != tt.want {
			t.Errorf("Of(%d) = %v, want kind %d", tt.rec, err, tt.want)
		}
	}
	// errors are cached like layouts
	if _, err := e.Of(selfT); err == nil {
		t.Fatal("cached error lost")
	}
}

func TestCheckRejectsSlotDrift(t *testing.T) {
	baseVT := &Vtable{Slots: []Slot{{Sig: "f()"}, {Sig: "g()"}}}
	base := &ClassLayout{Name: "B", Polymorphic: true, OwnVPtr: true, Primary: -1, Vtable: baseVT}
	derived := &ClassLayout{
		Name:        "D",
		Polymorphic: true,
		Primary:     0,
		Bases:       []BaseSlot{{Name: "B", Field: "__base_B", Layout: base}},
		Vtable:      &Vtable{Slots: []Slot{{Sig: "g()"}, {Sig: "f()"}}},
	}
	err := Check(derived)
	if err == nil || err.Kind != LayoutErrSlotDrift || err.Slot != 0 {
		t.Fatalf("Check = %v, want slot drift at 0", err)
	}
	derived.Vtable.Slots[0], derived.Vtable.Slots[1] = derived.Vtable.Slots[1], derived.Vtable.Slots[0]
	if err := Check(derived); err != nil {
		t.Fatalf("Check = %v", err)
	}
}
