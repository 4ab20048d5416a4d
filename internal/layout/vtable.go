package layout

import (
	"cxxlower/internal/types"
)

// Slot is one vtable entry. Intro is the record that introduced the slot;
// Impl and ImplDecl name the final overrider for the layout the vtable was
// resolved against (ImplDecl is 0 for an implicit destructor).
type Slot struct {
	Sig      string
	Name     string
	Intro    types.TypeID
	Impl     types.TypeID
	ImplDecl uint32
	Pure     bool
	Dtor     bool
}

// Vtable is the slot table of one polymorphic subobject type.
type Vtable struct {
	Record types.TypeID
	Slots  []Slot
}

// Index returns the slot number of a signature, or -1.
func (v *Vtable) Index(sig string) int {
	if v == nil {
		return -1
	}
	for i, s := range v.Slots {
		if s.Sig == sig {
			return i
		}
	}
	return -1
}

// Sigs lists slot signatures in order.
func (v *Vtable) Sigs() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.Slots))
	for i, s := range v.Slots {
		out[i] = s.Sig
	}
	return out
}

// Overrider is the final overrider of one signature.
type Overrider struct {
	Owner types.TypeID
	Decl  uint32
	Name  string
	Pure  bool
}

// Overrider returns the final overrider of sig when the record is the most
// derived object. With several unrelated candidates the first in base order
// is returned.
func (l *ClassLayout) Overrider(sig string) (Overrider, bool) {
	c := l.overriders[sig]
	if len(c) == 0 {
		return Overrider{}, false
	}
	return c[0], true
}

// overriders collects, per signature, the overriders visible in the record
// that no other candidate dominates. A candidate from a derived owner
// replaces one from its base; the record's own virtuals replace every
// inherited candidate. An implicit destructor overrides a virtual one.
func overriders(in *types.Interner, l *ClassLayout, info *types.RecordInfo) map[string][]Overrider {
	out := make(map[string][]Overrider)
	add := func(sig string, o Overrider) {
		cur := out[sig]
		for _, c := range cur {
			if c.Owner == o.Owner || in.IsDerivedFrom(c.Owner, o.Owner) {
				return
			}
		}
		kept := cur[:0:0]
		for _, c := range cur {
			if !in.IsDerivedFrom(o.Owner, c.Owner) {
				kept = append(kept, c)
			}
		}
		out[sig] = append(kept, o)
	}
	for _, b := range l.Bases {
		for sig, cs := range b.Layout.overriders {
			for _, o := range cs {
				add(sig, o)
			}
		}
	}
	for _, v := range l.VBases {
		for sig, cs := range v.Layout.overriders {
			for _, o := range cs {
				add(sig, o)
			}
		}
	}
	if _, ok := out["~"]; ok {
		out["~"] = []Overrider{{Owner: l.Record, Name: "~" + l.Name}}
	}
	for _, v := range info.Virtuals {
		out[v.Sig] = []Overrider{{Owner: l.Record, Decl: v.Decl, Name: v.Name, Pure: v.Pure}}
	}
	return out
}

// primaryVtable extends the primary base's table with the record's new
// virtuals. Inherited slots keep their index.
func primaryVtable(in *types.Interner, l *ClassLayout, info *types.RecordInfo) *Vtable {
	if !l.Polymorphic {
		return nil
	}
	vt := &Vtable{Record: l.Record}
	if l.Primary >= 0 {
		vt.Slots = append(vt.Slots, l.Bases[l.Primary].Layout.Vtable.Slots...)
	}
	for _, v := range info.Virtuals {
		if vt.Index(v.Sig) >= 0 {
			continue
		}
		vt.Slots = append(vt.Slots, Slot{Sig: v.Sig, Name: v.Name, Intro: l.Record, Dtor: v.Dtor})
	}
	return resolve(in, vt, l.Record, l.overriders)
}

// resolve copies the vtable of a subobject of type sub with every slot
// pointing at its final overrider in the object whose candidates are given.
// Only a candidate owned by sub or by a class derived from it can override
// the subobject's slot; otherwise the slot keeps the resolution it had in
// its own class.
func resolve(in *types.Interner, vt *Vtable, sub types.TypeID, over map[string][]Overrider) *Vtable {
	if vt == nil {
		return nil
	}
	out := &Vtable{Record: vt.Record, Slots: make([]Slot, len(vt.Slots))}
	for i, s := range vt.Slots {
		for _, o := range over[s.Sig] {
			if o.Owner == sub || in.IsDerivedFrom(o.Owner, sub) {
				s.Impl = o.Owner
				s.ImplDecl = o.Decl
				s.Pure = o.Pure
				break
			}
		}
		out.Slots[i] = s
	}
	return out
}

// secondary collects the polymorphic non-virtual subobjects that do not share
// the record's vptr.
func secondary(in *types.Interner, l *ClassLayout) []Subobject {
	var out []Subobject
	for i, b := range l.Bases {
		step := PathStep{Owner: l.Record, Field: b.Field}
		if i != l.Primary && b.Layout.Polymorphic {
			out = append(out, Subobject{
				Path:   Path{step},
				Type:   b.Type,
				Vtable: resolve(in, b.Layout.Vtable, b.Type, l.overriders),
			})
		}
		for _, s := range b.Layout.Secondary {
			out = append(out, Subobject{
				Path:   s.Path.prefixed(step),
				Type:   s.Type,
				Vtable: resolve(in, s.Vtable, s.Type, l.overriders),
			})
		}
	}
	return out
}

// SlotRef locates a virtual function for a call through a pointer to the
// record: the subobject whose vptr to load and the slot in its vtable.
type SlotRef struct {
	Path  Path         // non-virtual hop from the record
	VBase types.TypeID // set when the subobject lives in a virtual base
	Type  types.TypeID
	Index int
}

// FindSlot resolves sig against the primary vtable first, then against the
// subobjects in base order.
func (l *ClassLayout) FindSlot(sig string) (SlotRef, bool) {
	if i := l.Vtable.Index(sig); i >= 0 {
		return SlotRef{Type: l.Record, Index: i}, true
	}
	for _, s := range l.Secondary {
		if i := s.Vtable.Index(sig); i >= 0 {
			return SlotRef{Path: s.Path, Type: s.Type, Index: i}, true
		}
	}
	for _, v := range l.VBases {
		if ref, ok := v.Layout.FindSlot(sig); ok {
			if ref.VBase == types.NoTypeID {
				ref.VBase = v.Type
			}
			return ref, true
		}
	}
	return SlotRef{}, false
}
