package types

// Field is a non-static data member.
type Field struct {
	Name string
	Type TypeID
	Decl uint32 // ast.DeclID of the field
}

// Base is one entry of a base-specifier list.
type Base struct {
	Type    TypeID
	Virtual bool
}

// Virtual is a virtual member function declared (or overridden) in a record.
// Sig identifies the function independently of the record: name plus
// parameter types plus qualifiers; destructors use "~".
type Virtual struct {
	Name  string
	Sig   string
	Decl  uint32
	Final bool
	Pure  bool
	Dtor  bool
}

// RecordInfo describes a class, struct or union.
type RecordInfo struct {
	Name     string
	QualName string
	USR      string
	Decl     uint32 // ast.DeclID of the definition
	Complete bool
	Union    bool
	Final    bool
	Fields   []Field
	Bases    []Base
	Virtuals []Virtual
	Size     uint64
	// HasDtor is set when the user wrote a destructor body.
	HasDtor bool
}

// Key is the identity used to deduplicate records (and virtual bases).
func (r *RecordInfo) Key() string {
	if r.USR != "" {
		return r.USR
	}
	return r.QualName
}

// EnumInfo describes an enumeration type.
type EnumInfo struct {
	Name       string
	QualName   string
	USR        string
	Decl       uint32
	Underlying TypeID
	Scoped     bool
}

// StdInfo is a standard library template instantiation.
type StdInfo struct {
	Template string // "vector", "unique_ptr", "string", ...
	Args     []TypeID
}

// FuncInfo is a function signature.
type FuncInfo struct {
	Result   TypeID
	Params   []TypeID
	Variadic bool
}

// ClosureInfo ties a lambda's unique type to its expression.
type ClosureInfo struct {
	Lambda uint32 // ast.ExprID of the lambda
}

// Record returns the record type with the given identity, creating an
// incomplete one on first use. Identity is the USR, or the qualified name when
// the front end did not provide one.
func (in *Interner) Record(name, qualName, usr string) TypeID {
	key := usr
	if key == "" {
		key = qualName
	}
	if key == "" {
		key = name
	}
	if id, ok := in.recByKey[key]; ok {
		return id
	}
	slot := appendSlot(&in.records, RecordInfo{Name: name, QualName: qualName, USR: usr})
	id := in.internRaw(Type{Kind: KindRecord, Payload: slot})
	in.recByKey[key] = id
	return id
}

// RecordInfo returns the mutable record behind id.
func (in *Interner) RecordInfo(id TypeID) (*RecordInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindRecord {
		return nil, false
	}
	return &in.records[t.Payload], true
}

// Records returns every record type in creation order.
func (in *Interner) Records() []TypeID {
	out := make([]TypeID, 0, len(in.records)-1)
	for id := TypeID(1); int(id) < len(in.types); id++ {
		if in.types[id].Kind == KindRecord {
			out = append(out, id)
		}
	}
	return out
}

// Enum returns the enum type with the given identity, creating it on first use.
func (in *Interner) Enum(info EnumInfo) TypeID {
	key := "enum:" + info.USR
	if info.USR == "" {
		key = "enum:" + info.QualName
	}
	if id, ok := in.recByKey[key]; ok {
		return id
	}
	slot := appendSlot(&in.enums, info)
	id := in.internRaw(Type{Kind: KindEnum, Payload: slot})
	in.recByKey[key] = id
	return id
}

func (in *Interner) EnumInfo(id TypeID) (*EnumInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindEnum {
		return nil, false
	}
	return &in.enums[t.Payload], true
}

// Polymorphic reports whether the record has a virtual member, directly or
// through any base.
func (in *Interner) Polymorphic(id TypeID) bool {
	return in.polymorphic(id, 0)
}

func (in *Interner) polymorphic(id TypeID, depth int) bool {
	rec, ok := in.RecordInfo(id)
	if !ok || depth > 64 {
		return false
	}
	if len(rec.Virtuals) > 0 {
		return true
	}
	for _, b := range rec.Bases {
		if in.polymorphic(b.Type, depth+1) {
			return true
		}
	}
	return false
}

// HasVirtualBases reports whether any virtual base is reachable from id.
func (in *Interner) HasVirtualBases(id TypeID) bool {
	return in.hasVirtualBases(id, 0)
}

func (in *Interner) hasVirtualBases(id TypeID, depth int) bool {
	rec, ok := in.RecordInfo(id)
	if !ok || depth > 64 {
		return false
	}
	for _, b := range rec.Bases {
		if b.Virtual || in.hasVirtualBases(b.Type, depth+1) {
			return true
		}
	}
	return false
}

// IsDerivedFrom reports whether base is a (transitive) base of derived.
func (in *Interner) IsDerivedFrom(derived, base TypeID) bool {
	if derived == base {
		return false
	}
	rec, ok := in.RecordInfo(derived)
	if !ok {
		return false
	}
	for _, b := range rec.Bases {
		if b.Type == base || in.IsDerivedFrom(b.Type, base) {
			return true
		}
	}
	return false
}

// FindField looks a field up in the record itself only.
func (in *Interner) FindField(id TypeID, name string) (Field, int, bool) {
	rec, ok := in.RecordInfo(id)
	if !ok {
		return Field{}, -1, false
	}
	for i, f := range rec.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}
