// Package lir is the lowered, Rust-shaped intermediate form. It is produced by
// the lowering passes and only serialized by the emitter; nothing in here knows
// about C++ any more.
package lir

import (
	"strconv"
	"strings"
)

type TypeKind uint8

const (
	TyUnit TypeKind = iota + 1
	TyPrim
	// TyPath is a nominal type: a user struct or a library generic.
	TyPath
	TyRawPtr
	TyRef
	TyArray
	TyTuple
	// TyFnPtr is `unsafe fn(args) -> Elem`, used for vtable slot casts.
	TyFnPtr
	// TyInfer prints as `_`; closure-typed bindings carry it.
	TyInfer
)

// Type is a target type descriptor.
type Type struct {
	Kind TypeKind
	Name string // primitive name or path
	Args []Type // generic arguments, tuple members or fn parameters
	Elem *Type  // pointee, referent, array element or fn result
	Mut  bool
	Len  uint64
	// Record is the identity of the user record a TyPath names.
	Record string
	// Indirect marks library generics that own their arguments on the heap
	// (Box, Vec, Arc, ...); their arguments impose no definition order.
	Indirect bool
	// Fallback marks an opaque blob produced for an unmappable type.
	Fallback bool
}

var (
	Unit = Type{Kind: TyUnit}
	Bool = Prim("bool")
	I8   = Prim("i8")
	I16  = Prim("i16")
	I32  = Prim("i32")
	I64  = Prim("i64")
	U8   = Prim("u8")
	U16  = Prim("u16")
	U32  = Prim("u32")
	U64  = Prim("u64")
	F32  = Prim("f32")
	F64  = Prim("f64")
	ISz  = Prim("isize")
	USz  = Prim("usize")
	// VoidPtr is what `void*` and `nullptr_t` become.
	VoidPtr = RawPtr(Path("::core::ffi::c_void"), true)
	Infer   = Type{Kind: TyInfer}
)

func Prim(name string) Type { return Type{Kind: TyPrim, Name: name} }

func Path(name string, args ...Type) Type {
	return Type{Kind: TyPath, Name: name, Args: args}
}

// RecordPath names a user struct.
func RecordPath(path, key string) Type {
	return Type{Kind: TyPath, Name: path, Record: key}
}

// Owning builds a heap-owning generic such as Box<T>.
func Owning(name string, args ...Type) Type {
	return Type{Kind: TyPath, Name: name, Args: args, Indirect: true}
}

func RawPtr(elem Type, mut bool) Type {
	return Type{Kind: TyRawPtr, Elem: &elem, Mut: mut}
}

func Ref(elem Type, mut bool) Type {
	return Type{Kind: TyRef, Elem: &elem, Mut: mut}
}

// StaticRef is `&'static mut T`.
func StaticRef(elem Type) Type {
	return Type{Kind: TyRef, Elem: &elem, Mut: true, Name: "'static"}
}

func Array(elem Type, n uint64) Type {
	return Type{Kind: TyArray, Elem: &elem, Len: n}
}

func Tuple(elems ...Type) Type {
	if len(elems) == 0 {
		return Unit
	}
	return Type{Kind: TyTuple, Args: elems}
}

func FnPtr(params []Type, result Type) Type {
	return Type{Kind: TyFnPtr, Args: params, Elem: &result}
}

// Blob is the opaque stand-in for a type that has no mapping.
func Blob(size uint64) Type {
	t := Array(U8, size)
	t.Fallback = true
	return t
}

// ManuallyDrop wraps a field whose teardown is driven by hand.
func ManuallyDrop(t Type) Type {
	return Path("::core::mem::ManuallyDrop", t)
}

func (t Type) IsUnit() bool { return t.Kind == TyUnit || t.Kind == 0 }

func (t Type) IsRawPtr() bool { return t.Kind == TyRawPtr }

func (t Type) IsRef() bool { return t.Kind == TyRef }

// IsManuallyDrop reports a ManuallyDrop<T> wrapper.
func (t Type) IsManuallyDrop() bool {
	return t.Kind == TyPath && t.Name == "::core::mem::ManuallyDrop"
}

// IsNumeric reports integer and float primitives.
func (t Type) IsNumeric() bool {
	if t.Kind != TyPrim {
		return false
	}
	return t.Name != "bool"
}

func (t Type) IsInt() bool {
	return t.IsNumeric() && t.Name[0] != 'f'
}

func (t Type) IsFloat() bool {
	return t.IsNumeric() && t.Name[0] == 'f'
}

// Copy reports whether values of t are bitwise-copyable in the lowered form.
func (t Type) Copy() bool {
	switch t.Kind {
	case TyUnit, TyPrim, TyRawPtr, TyFnPtr:
		return true
	case TyRef:
		return !t.Mut
	case TyArray:
		return t.Elem.Copy()
	case TyTuple:
		for _, a := range t.Args {
			if !a.Copy() {
				return false
			}
		}
		return true
	}
	return false
}

// ValueDeps appends the record keys t contains by value, in order.
func (t Type) ValueDeps(out []string) []string {
	switch t.Kind {
	case TyPath:
		if t.Record != "" {
			out = append(out, t.Record)
		}
		if !t.Indirect {
			for _, a := range t.Args {
				out = a.ValueDeps(out)
			}
		}
	case TyArray:
		out = t.Elem.ValueDeps(out)
	case TyTuple:
		for _, a := range t.Args {
			out = a.ValueDeps(out)
		}
	}
	return out
}

func (t Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Type) write(b *strings.Builder) {
	switch t.Kind {
	case TyUnit, 0:
		b.WriteString("()")
	case TyPrim:
		b.WriteString(t.Name)
	case TyInfer:
		b.WriteString("_")
	case TyPath:
		b.WriteString(t.Name)
		if len(t.Args) > 0 {
			b.WriteByte('<')
			for i, a := range t.Args {
				if i > 0 {
					b.WriteString(", ")
				}
				a.write(b)
			}
			b.WriteByte('>')
		}
	case TyRawPtr:
		if t.Mut {
			b.WriteString("*mut ")
		} else {
			b.WriteString("*const ")
		}
		t.Elem.write(b)
	case TyRef:
		b.WriteByte('&')
		if t.Name != "" {
			b.WriteString(t.Name + " ")
		}
		if t.Mut {
			b.WriteString("mut ")
		}
		t.Elem.write(b)
	case TyArray:
		b.WriteByte('[')
		t.Elem.write(b)
		b.WriteString("; ")
		b.WriteString(strconv.FormatUint(t.Len, 10))
		b.WriteByte(']')
	case TyTuple:
		b.WriteByte('(')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.write(b)
		}
		if len(t.Args) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case TyFnPtr:
		b.WriteString("unsafe fn(")
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.write(b)
		}
		b.WriteByte(')')
		if t.Elem != nil && !t.Elem.IsUnit() {
			b.WriteString(" -> ")
			t.Elem.write(b)
		}
	}
}

// Default returns the expression that zero-initializes t. Pointers become
// null; library types use their Default impl.
func (t Type) Default() Expr {
	switch t.Kind {
	case TyUnit, 0:
		return &TupleExpr{}
	case TyPrim:
		switch {
		case t.Name == "bool":
			return Lit("false")
		case t.IsFloat():
			return Lit("0.0")
		default:
			return Lit("0")
		}
	case TyRawPtr:
		if t.Mut {
			return CallPath("::core::ptr::null_mut")
		}
		return CallPath("::core::ptr::null")
	case TyArray:
		if t.Elem.Copy() {
			return &ArrayRepeat{Elem: t.Elem.Default(), Len: t.Len}
		}
		return CallPath("::core::array::from_fn", &Closure{Params: []Param{{Name: "_", Type: Infer}}, Body: t.Elem.Default()})
	case TyTuple:
		elems := make([]Expr, len(t.Args))
		for i, a := range t.Args {
			elems[i] = a.Default()
		}
		return &TupleExpr{Elems: elems}
	}
	return CallPath("<" + t.String() + " as ::core::default::Default>::default")
}
