package ast

import (
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

// DeclKind enumerates declaration nodes.
type DeclKind uint8

const (
	DeclNamespace DeclKind = iota + 1
	DeclUsingDirective
	DeclUsingDecl
	DeclTypeAlias
	DeclRecord
	DeclField
	DeclFunction
	DeclVar
	DeclParam
	DeclEnum
	DeclEnumerator
	// DeclUnsupported carries a declaration the front end could not encode
	// (templates patterns, friend declarations, static_assert, ...).
	DeclUnsupported
)

func (k DeclKind) String() string {
	switch k {
	case DeclNamespace:
		return "Namespace"
	case DeclUsingDirective:
		return "UsingDirective"
	case DeclUsingDecl:
		return "UsingDecl"
	case DeclTypeAlias:
		return "TypeAlias"
	case DeclRecord:
		return "Record"
	case DeclField:
		return "Field"
	case DeclFunction:
		return "Function"
	case DeclVar:
		return "Var"
	case DeclParam:
		return "Param"
	case DeclEnum:
		return "Enum"
	case DeclEnumerator:
		return "Enumerator"
	case DeclUnsupported:
		return "Unsupported"
	}
	return "Decl(?)"
}

// Access is a member access specifier.
type Access uint8

const (
	AccessNone Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

// Decl is one declaration. Parent is the lexically enclosing declaration
// (namespace, record, or function for locals); 0 at translation-unit level.
type Decl struct {
	Kind   DeclKind
	Span   source.Span
	Name   string
	Parent DeclID
	Access Access
	Type   types.TypeID
	// System is set for declarations that come from system headers.
	System bool
	Data   DeclData
}

// DeclData is the kind-specific payload.
type DeclData interface{ declData() }

type NamespaceData struct {
	Members []DeclID
	Inline  bool
}

func (NamespaceData) declData() {}

// UsingDirectiveData is `using namespace N;`.
type UsingDirectiveData struct {
	Namespace DeclID
}

func (UsingDirectiveData) declData() {}

// UsingDeclData is `using N::x;`.
type UsingDeclData struct {
	Target DeclID
}

func (UsingDeclData) declData() {}

type TypeAliasData struct {
	Target types.TypeID
}

func (TypeAliasData) declData() {}

// RecordKind distinguishes class-keys.
type RecordKind uint8

const (
	RecordStruct RecordKind = iota
	RecordClass
	RecordUnion
)

// RecordData is a class definition. Type (on Decl) is the record type whose
// RecordInfo carries fields, bases and virtuals.
type RecordData struct {
	Tag     RecordKind
	Members []DeclID // fields, methods, constructors, destructor, nested types, statics
	// Template is set when the record is an implicit instantiation.
	Template string
}

func (RecordData) declData() {}

type FieldData struct {
	Init     ExprID // default member initializer
	BitWidth int    // 0 unless a bit-field
	Mutable  bool
}

func (FieldData) declData() {}

// FuncKind classifies functions.
type FuncKind uint8

const (
	FuncFree FuncKind = iota
	FuncMethod
	FuncStaticMethod
	FuncCtor
	FuncDtor
	FuncOperator
	FuncConversion
	// FuncLambda is the call operator synthesized for a lambda expression.
	FuncLambda
)

func (k FuncKind) IsMember() bool {
	switch k {
	case FuncMethod, FuncCtor, FuncDtor, FuncOperator, FuncConversion:
		return true
	}
	return false
}

// CtorInit is one mem-initializer. Exactly one of Field and Base is set.
type CtorInit struct {
	Field DeclID
	Base  types.TypeID
	Args  []ExprID
	Span  source.Span
	// Delegating is set for `X() : X(0) {}`; Ctor is the target.
	Delegating bool
	Ctor       DeclID
}

// FunctionData describes a function, method, constructor, destructor or
// operator. Params are DeclParam nodes.
type FunctionData struct {
	Kind      FuncKind
	Params    []DeclID
	Result    types.TypeID
	Body      StmtID // 0 for declarations without a definition
	Record    types.TypeID
	Operator  string // "+", "[]", "()", "++", ... for FuncOperator
	Virtual   bool
	Pure      bool
	Override  bool
	Final     bool
	Const     bool
	Variadic  bool
	Defaulted bool
	Deleted   bool
	Inits     []CtorInit
	// Template is the name of the primary template for instantiations.
	Template string
	// Sig is the signature key shared by overriders ("speak(int)const").
	Sig string
}

func (FunctionData) declData() {}

// StorageKind classifies variables.
type StorageKind uint8

const (
	StorageLocal StorageKind = iota
	StorageGlobal
	StorageStaticMember
	StorageStaticLocal
)

type VarData struct {
	Storage   StorageKind
	Init      ExprID
	Const     bool
	Constexpr bool
	// Auto marks `auto x = ...`; closure-typed locals are emitted without an
	// annotation.
	Auto bool
}

func (VarData) declData() {}

type ParamData struct {
	Default ExprID
	Index   int
}

func (ParamData) declData() {}

type EnumData struct {
	Underlying  types.TypeID
	Scoped      bool
	Enumerators []DeclID
}

func (EnumData) declData() {}

type EnumeratorData struct {
	Value int64
	Enum  DeclID
}

func (EnumeratorData) declData() {}

type UnsupportedDeclData struct {
	What string
}

func (UnsupportedDeclData) declData() {}
