// Package types models the resolved C++ types the front end attaches to every
// expression and declaration. Types are interned per translation unit; the
// lowering core never infers a type, it only reads them back.
package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the resolved type forms.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindInt
	KindFloat
	KindNullptr
	KindPointer
	KindReference
	KindArray
	KindRecord
	KindEnum
	KindStd
	KindFunction
	KindClosure
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindNullptr:
		return "nullptr_t"
	case KindPointer:
		return "pointer"
	case KindReference:
		return "reference"
	case KindArray:
		return "array"
	case KindRecord:
		return "record"
	case KindEnum:
		return "enum"
	case KindStd:
		return "std"
	case KindFunction:
		return "function"
	case KindClosure:
		return "closure"
	case KindUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Width is the bit width of arithmetic types.
type Width uint8

const (
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Type is a compact, comparable descriptor. Payload indexes the side table
// that matches Kind (records, enums, std instantiations, functions, closures).
type Type struct {
	Kind    Kind
	Elem    TypeID // pointee, referent or array element
	Count   uint64 // array length
	Width   Width
	Signed  bool
	Const   bool // const pointee / referent
	RValue  bool // T&&
	Payload uint32
	// Size in bytes as reported by the front end; only used when the type
	// degrades to an opaque blob.
	Size uint64
	// Spelling of an unsupported type, kept for diagnostics.
	Spelling string
}

func MakeInt(width Width, signed bool) Type {
	return Type{Kind: KindInt, Width: width, Signed: signed}
}

func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

func MakePointer(elem TypeID, constPointee bool) Type {
	return Type{Kind: KindPointer, Elem: elem, Const: constPointee}
}

func MakeReference(elem TypeID, constReferent, rvalue bool) Type {
	return Type{Kind: KindReference, Elem: elem, Const: constReferent, RValue: rvalue}
}

func MakeArray(elem TypeID, count uint64) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

func MakeUnsupported(spelling string, size uint64) Type {
	return Type{Kind: KindUnsupported, Spelling: spelling, Size: size}
}
