// Package layout computes the lowered object layout of C++ classes: base
// subobjects, vtable pointer placement, deduplicated virtual bases with their
// offset slots, and the vtables of every polymorphic subobject. A layout is
// computed once per record per unit and cached.
package layout

import (
	"fmt"

	"cxxlower/internal/types"
)

// PathStep is one field hop from a struct to a nested subobject. Owner is the
// struct that has the field; Complete selects its complete-object form.
type PathStep struct {
	Owner    types.TypeID
	Complete bool
	Field    string
}

// Path leads from a struct root to a subobject.
type Path []PathStep

func (p Path) prefixed(head ...PathStep) Path {
	out := make(Path, 0, len(head)+len(p))
	out = append(out, head...)
	return append(out, p...)
}

func (p Path) String() string {
	s := ""
	for i, st := range p {
		if i > 0 {
			s += "."
		}
		s += st.Field
	}
	return s
}

// BaseSlot is a non-virtual base subobject.
type BaseSlot struct {
	Type   types.TypeID
	Name   string
	Field  string
	Layout *ClassLayout
}

// FieldSlot is an own non-static data member.
type FieldSlot struct {
	Name string
	Type types.TypeID
	Decl uint32
}

// VBaseSlot is one deduplicated virtual base of the complete object.
type VBaseSlot struct {
	Type   types.TypeID
	Key    string
	Name   string
	Field  string // storage field in the complete-object struct
	Layout *ClassLayout
	// Direct is set when the record itself names the virtual base; such a
	// record holds the offset slot OffsetField.
	Direct      bool
	OffsetField string
	// Via tells how a non-direct virtual base is reached: through the
	// non-virtual base at index ViaBase, or through the virtual base ViaVBase.
	ViaBase  int
	ViaVBase types.TypeID
}

// OffsetSlot is one `__vboff_*` field somewhere in a complete object; the
// complete constructor stores the distance from Holder to VBase in it.
type OffsetSlot struct {
	Holder Path // from the complete-object root to the holding subobject
	Record types.TypeID
	VBase  types.TypeID
	Field  string
}

// Subobject is a polymorphic subobject that needs its own vtable.
type Subobject struct {
	Path   Path
	Type   types.TypeID
	Vtable *Vtable
}

// ClassLayout is the lowered layout of one record. Field order in the data
// struct is: own vptr (if any), Bases in base-specifier order, offset slots
// of direct virtual bases, then Fields in declaration order.
type ClassLayout struct {
	Record types.TypeID
	Key    string
	Name   string

	Polymorphic bool
	// OwnVPtr is set when the record introduces `__vptr` at offset 0.
	OwnVPtr bool
	// Primary is the index of the base that shares our vptr, or -1.
	Primary int

	Bases  []BaseSlot
	Fields []FieldSlot
	VBases []VBaseSlot

	// Vtable is the primary vtable; nil for non-polymorphic records.
	Vtable *Vtable
	// Secondary lists non-primary polymorphic subobjects, relative to the
	// data struct.
	Secondary []Subobject
	// Virtual lists polymorphic subobjects inside virtual bases, relative to
	// the complete-object struct.
	Virtual []Subobject
	// Offsets lists every offset slot the complete constructor fills.
	Offsets []OffsetSlot

	overriders map[string][]Overrider
}

// HasVBases reports whether the record has a separate complete-object form.
func (l *ClassLayout) HasVBases() bool { return len(l.VBases) > 0 }

// DirectVBases returns the virtual bases named in the record's own
// base-specifier list.
func (l *ClassLayout) DirectVBases() []VBaseSlot {
	var out []VBaseSlot
	for _, v := range l.VBases {
		if v.Direct {
			out = append(out, v)
		}
	}
	return out
}

// Order lists the data-struct members in layout order, for inspection and
// invariant checks.
func (l *ClassLayout) Order() []string {
	var out []string
	if l.OwnVPtr {
		out = append(out, "__vptr")
	}
	for _, b := range l.Bases {
		out = append(out, b.Field)
	}
	for _, v := range l.DirectVBases() {
		out = append(out, v.OffsetField)
	}
	for _, f := range l.Fields {
		out = append(out, f.Name)
	}
	return out
}

// BasePath finds the non-virtual path from the record to a base subobject of
// type base. Virtual bases are reported through vbase.
func (l *ClassLayout) BasePath(base types.TypeID) (path Path, vbase types.TypeID, ok bool) {
	if l.Record == base {
		return nil, types.NoTypeID, true
	}
	for _, b := range l.Bases {
		step := PathStep{Owner: l.Record, Field: b.Field}
		if b.Type == base {
			return Path{step}, types.NoTypeID, true
		}
		if p, vb, ok := b.Layout.BasePath(base); ok {
			if vb != types.NoTypeID {
				return nil, vb, true
			}
			return p.prefixed(step), types.NoTypeID, true
		}
	}
	for _, v := range l.VBases {
		if v.Type == base {
			return nil, v.Type, true
		}
	}
	for _, v := range l.VBases {
		if _, _, ok := v.Layout.BasePath(base); ok {
			return nil, v.Type, true
		}
	}
	return nil, types.NoTypeID, false
}

// VBase returns the slot of a virtual base by type.
func (l *ClassLayout) VBase(t types.TypeID) (VBaseSlot, bool) {
	for _, v := range l.VBases {
		if v.Type == t {
			return v, true
		}
	}
	return VBaseSlot{}, false
}

// Engine computes and caches class layouts for one unit.
type Engine struct {
	Types *types.Interner

	cache *cache
	stack []types.TypeID
}

func New(in *types.Interner) *Engine {
	return &Engine{Types: in, cache: newCache()}
}

// Computed is the number of cached layouts.
func (e *Engine) Computed() int { return e.cache.len() }

// Of returns the layout of a record type.
func (e *Engine) Of(rec types.TypeID) (*ClassLayout, error) {
	l, lerr := e.layoutOf(rec)
	if lerr != nil {
		return nil, lerr
	}
	return l, nil
}

func (e *Engine) layoutOf(rec types.TypeID) (*ClassLayout, *LayoutError) {
	if entry, ok := e.cache.get(rec); ok {
		return entry.Layout, entry.Err
	}
	info, ok := e.Types.RecordInfo(rec)
	if !ok {
		return nil, &LayoutError{Kind: LayoutErrIncompleteBase, Record: rec, Name: fmt.Sprintf("type#%d", rec), Other: "non-record type"}
	}
	for i, t := range e.stack {
		if t == rec {
			cycle := make([]string, 0, len(e.stack)-i+1)
			for _, c := range e.stack[i:] {
				ci, _ := e.Types.RecordInfo(c)
				cycle = append(cycle, ci.QualName)
			}
			cycle = append(cycle, info.QualName)
			return nil, &LayoutError{Kind: LayoutErrRecursiveBase, Record: rec, Name: info.QualName, Cycle: cycle}
		}
	}
	e.stack = append(e.stack, rec)
	l, lerr := e.compute(rec, info)
	e.stack = e.stack[:len(e.stack)-1]
	if lerr == nil {
		lerr = Check(l)
	}
	e.cache.put(rec, cacheEntry{Layout: l, Err: lerr})
	return l, lerr
}

func (e *Engine) compute(rec types.TypeID, info *types.RecordInfo) (*ClassLayout, *LayoutError) {
	l := &ClassLayout{
		Record:      rec,
		Key:         info.Key(),
		Name:        info.Name,
		Polymorphic: e.Types.Polymorphic(rec),
		Primary:     -1,
	}
	used := make(map[string]int)
	uniq := func(prefix, name string) string {
		f := prefix + name
		if n := used[f]; n > 0 {
			used[f] = n + 1
			return fmt.Sprintf("%s_%d", f, n)
		}
		used[f] = 1
		return f
	}

	var direct []types.TypeID
	for _, b := range info.Bases {
		bi, ok := e.Types.RecordInfo(b.Type)
		if !ok || !bi.Complete {
			name := "<unknown>"
			if ok {
				name = bi.QualName
			}
			return nil, &LayoutError{Kind: LayoutErrIncompleteBase, Record: rec, Name: info.QualName, Other: name}
		}
		bl, lerr := e.layoutOf(b.Type)
		if lerr != nil {
			return nil, lerr
		}
		if b.Virtual {
			direct = append(direct, b.Type)
			continue
		}
		l.Bases = append(l.Bases, BaseSlot{Type: b.Type, Name: bi.Name, Field: uniq("__base_", bi.Name), Layout: bl})
	}
	if l.Polymorphic {
		if len(l.Bases) > 0 && l.Bases[0].Layout.Polymorphic && len(info.Bases) > 0 && !info.Bases[0].Virtual {
			l.Primary = 0
		} else {
			l.OwnVPtr = true
		}
	}
	for _, f := range info.Fields {
		l.Fields = append(l.Fields, FieldSlot{Name: f.Name, Type: f.Type, Decl: f.Decl})
	}

	e.collectVBases(l, direct)
	l.overriders = overriders(e.Types, l, info)
	l.Vtable = primaryVtable(e.Types, l, info)
	l.Secondary = secondary(e.Types, l)
	if l.HasVBases() {
		l.Virtual = e.virtualSubobjects(l)
		l.Offsets = e.offsetSlots(l)
	}
	return l, nil
}

// collectVBases flattens the virtual bases reachable from the record into one
// list keyed by record identity: direct virtual bases in specifier order
// (each preceded by its own virtual bases), then those inherited through
// non-virtual bases.
func (e *Engine) collectVBases(l *ClassLayout, direct []types.TypeID) {
	seen := make(map[string]bool)
	add := func(v VBaseSlot) {
		if seen[v.Key] {
			return
		}
		seen[v.Key] = true
		l.VBases = append(l.VBases, v)
	}
	for _, d := range direct {
		dl, _ := e.layoutOf(d)
		for _, inner := range dl.VBases {
			inner.Direct = false
			inner.OffsetField = ""
			inner.ViaBase = -1
			inner.ViaVBase = d
			add(inner)
		}
		add(VBaseSlot{
			Type:        d,
			Key:         dl.Key,
			Name:        dl.Name,
			Field:       "__vbase_" + dl.Name,
			Layout:      dl,
			Direct:      true,
			OffsetField: "__vboff_" + dl.Name,
			ViaBase:     -1,
		})
	}
	// a virtual base named directly wins over the same base reached through
	// another path: mark it direct even if it was added as inherited
	for i := range l.VBases {
		for _, d := range direct {
			if l.VBases[i].Type == d && !l.VBases[i].Direct {
				l.VBases[i].Direct = true
				l.VBases[i].OffsetField = "__vboff_" + l.VBases[i].Name
				l.VBases[i].ViaVBase = types.NoTypeID
			}
		}
	}
	for i, b := range l.Bases {
		for _, inner := range b.Layout.VBases {
			inner.Direct = false
			inner.OffsetField = ""
			inner.ViaBase = i
			inner.ViaVBase = types.NoTypeID
			add(inner)
		}
	}
}

// virtualSubobjects lists the polymorphic subobjects that live in virtual
// base storage of the complete object.
func (e *Engine) virtualSubobjects(l *ClassLayout) []Subobject {
	over := l.overriders
	var out []Subobject
	for _, v := range l.VBases {
		step := PathStep{Owner: l.Record, Complete: true, Field: v.Field}
		if v.Layout.Polymorphic {
			out = append(out, Subobject{
				Path:   Path{step},
				Type:   v.Type,
				Vtable: resolve(e.Types, v.Layout.Vtable, v.Type, over),
			})
		}
		for _, s := range v.Layout.Secondary {
			out = append(out, Subobject{
				Path:   s.Path.prefixed(step),
				Type:   s.Type,
				Vtable: resolve(e.Types, s.Vtable, s.Type, over),
			})
		}
	}
	return out
}

// offsetSlots enumerates every `__vboff_*` field of the complete object:
// those in the non-virtual part and those inside virtual base storage.
func (e *Engine) offsetSlots(l *ClassLayout) []OffsetSlot {
	var out []OffsetSlot
	sub := PathStep{Owner: l.Record, Complete: true, Field: "__sub"}
	var walk func(cl *ClassLayout, at Path)
	walk = func(cl *ClassLayout, at Path) {
		for _, v := range cl.DirectVBases() {
			out = append(out, OffsetSlot{Holder: at, Record: cl.Record, VBase: v.Type, Field: v.OffsetField})
		}
		for _, b := range cl.Bases {
			walk(b.Layout, append(append(Path(nil), at...), PathStep{Owner: cl.Record, Field: b.Field}))
		}
	}
	walk(l, Path{sub})
	for _, v := range l.VBases {
		walk(v.Layout, Path{{Owner: l.Record, Complete: true, Field: v.Field}})
	}
	return out
}
