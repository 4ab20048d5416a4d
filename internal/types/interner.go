package types

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for the arithmetic and unit types.
type Builtins struct {
	Void    TypeID
	Bool    TypeID
	Nullptr TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	U8      TypeID
	U16     TypeID
	U32     TypeID
	U64     TypeID
	F32     TypeID
	F64     TypeID
}

// Interner gives structural descriptors stable TypeIDs within one unit.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	builtins Builtins

	records  []RecordInfo
	recByKey map[string]TypeID
	enums    []EnumInfo
	stds     []StdInfo
	stdByKey map[string]TypeID
	funcs    []FuncInfo
	fnByKey  map[string]TypeID
	closures []ClosureInfo
}

func NewInterner() *Interner {
	in := &Interner{
		index:    make(map[Type]TypeID, 64),
		recByKey: make(map[string]TypeID),
		stdByKey: make(map[string]TypeID),
		fnByKey:  make(map[string]TypeID),
	}
	in.types = append(in.types, Type{}) // 0 is NoTypeID
	// slot 0 of each side table is a sentinel
	in.records = append(in.records, RecordInfo{})
	in.enums = append(in.enums, EnumInfo{})
	in.stds = append(in.stds, StdInfo{})
	in.funcs = append(in.funcs, FuncInfo{})
	in.closures = append(in.closures, ClosureInfo{})

	in.builtins = Builtins{
		Void:    in.Intern(Type{Kind: KindVoid}),
		Bool:    in.Intern(Type{Kind: KindBool}),
		Nullptr: in.Intern(Type{Kind: KindNullptr}),
		I8:      in.Intern(MakeInt(Width8, true)),
		I16:     in.Intern(MakeInt(Width16, true)),
		I32:     in.Intern(MakeInt(Width32, true)),
		I64:     in.Intern(MakeInt(Width64, true)),
		U8:      in.Intern(MakeInt(Width8, false)),
		U16:     in.Intern(MakeInt(Width16, false)),
		U32:     in.Intern(MakeInt(Width32, false)),
		U64:     in.Intern(MakeInt(Width64, false)),
		F32:     in.Intern(MakeFloat(Width32)),
		F64:     in.Intern(MakeFloat(Width64)),
	}
	return in
}

func (in *Interner) Builtins() Builtins { return in.builtins }

// Intern returns the id for t, allocating it on first sight.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	t, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return t
}

// Len is the number of interned types, sentinel excluded.
func (in *Interner) Len() int { return len(in.types) - 1 }

func (in *Interner) Pointer(elem TypeID, constPointee bool) TypeID {
	return in.Intern(MakePointer(elem, constPointee))
}

func (in *Interner) Reference(elem TypeID, constReferent, rvalue bool) TypeID {
	return in.Intern(MakeReference(elem, constReferent, rvalue))
}

func (in *Interner) Array(elem TypeID, count uint64) TypeID {
	return in.Intern(MakeArray(elem, count))
}

func (in *Interner) Unsupported(spelling string, size uint64) TypeID {
	return in.Intern(MakeUnsupported(spelling, size))
}

// Std interns a standard library instantiation such as vector<int>.
func (in *Interner) Std(template string, args ...TypeID) TypeID {
	var key strings.Builder
	key.WriteString(template)
	for _, a := range args {
		fmt.Fprintf(&key, ",%d", a)
	}
	if id, ok := in.stdByKey[key.String()]; ok {
		return id
	}
	slot := appendSlot(&in.stds, StdInfo{Template: template, Args: append([]TypeID(nil), args...)})
	id := in.internRaw(Type{Kind: KindStd, Payload: slot})
	in.stdByKey[key.String()] = id
	return id
}

// Func interns a function signature.
func (in *Interner) Func(result TypeID, params []TypeID, variadic bool) TypeID {
	key := fmt.Sprintf("%d(%v)%t", result, params, variadic)
	if id, ok := in.fnByKey[key]; ok {
		return id
	}
	slot := appendSlot(&in.funcs, FuncInfo{Result: result, Params: append([]TypeID(nil), params...), Variadic: variadic})
	id := in.internRaw(Type{Kind: KindFunction, Payload: slot})
	in.fnByKey[key] = id
	return id
}

// Closure allocates the unique type of one lambda expression.
func (in *Interner) Closure(info ClosureInfo) TypeID {
	slot := appendSlot(&in.closures, info)
	return in.internRaw(Type{Kind: KindClosure, Payload: slot})
}

// Kind returns the kind of id, or KindInvalid.
func (in *Interner) Kind(id TypeID) Kind {
	t, _ := in.Lookup(id)
	return t.Kind
}

// StdInfo returns the instantiation behind a KindStd type.
func (in *Interner) StdInfo(id TypeID) (*StdInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindStd {
		return nil, false
	}
	return &in.stds[t.Payload], true
}

func (in *Interner) FuncInfo(id TypeID) (*FuncInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindFunction {
		return nil, false
	}
	return &in.funcs[t.Payload], true
}

func (in *Interner) ClosureInfo(id TypeID) (*ClosureInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindClosure {
		return nil, false
	}
	return &in.closures[t.Payload], true
}

// StripRef removes one level of reference.
func (in *Interner) StripRef(id TypeID) TypeID {
	if t, ok := in.Lookup(id); ok && t.Kind == KindReference {
		return t.Elem
	}
	return id
}

// Pointee returns the element of a pointer or reference.
func (in *Interner) Pointee(id TypeID) (TypeID, bool) {
	t, ok := in.Lookup(id)
	if !ok || (t.Kind != KindPointer && t.Kind != KindReference) {
		return NoTypeID, false
	}
	return t.Elem, true
}

// IsIntegral reports bool, integer and enum types.
func (in *Interner) IsIntegral(id TypeID) bool {
	switch in.Kind(id) {
	case KindBool, KindInt, KindEnum:
		return true
	}
	return false
}

func appendSlot[T any](s *[]T, v T) uint32 {
	n, err := safecast.Conv[uint32](len(*s))
	if err != nil {
		panic(fmt.Errorf("side table overflow: %w", err))
	}
	*s = append(*s, v)
	return n
}
