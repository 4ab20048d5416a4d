package ast

import (
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

type ExprKind uint8

const (
	ExprLiteral ExprKind = iota + 1
	ExprDeclRef
	ExprThis
	ExprMember
	ExprCall
	// ExprOpCall is a call to a user-defined operator written in operator syntax.
	ExprOpCall
	ExprUnary
	ExprBinary
	ExprConditional
	ExprCast
	ExprIndex
	ExprNew
	ExprDelete
	// ExprConstruct builds a record value (constructor call or value-init).
	ExprConstruct
	ExprInitList
	ExprLambda
	ExprThrow
	// ExprMove is std::move(x).
	ExprMove
	// ExprStdMember names a member of a standard library object: v.push_back.
	ExprStdMember
	// ExprStdFunc names a standard library free function: std::make_unique<T>.
	ExprStdFunc
	ExprUnsupported
)

func (k ExprKind) String() string {
	switch k {
	case ExprLiteral:
		return "Literal"
	case ExprDeclRef:
		return "DeclRef"
	case ExprThis:
		return "This"
	case ExprMember:
		return "Member"
	case ExprCall:
		return "Call"
	case ExprOpCall:
		return "OpCall"
	case ExprUnary:
		return "Unary"
	case ExprBinary:
		return "Binary"
	case ExprConditional:
		return "Conditional"
	case ExprCast:
		return "Cast"
	case ExprIndex:
		return "Index"
	case ExprNew:
		return "New"
	case ExprDelete:
		return "Delete"
	case ExprConstruct:
		return "Construct"
	case ExprInitList:
		return "InitList"
	case ExprLambda:
		return "Lambda"
	case ExprThrow:
		return "Throw"
	case ExprMove:
		return "Move"
	case ExprStdMember:
		return "StdMember"
	case ExprStdFunc:
		return "StdFunc"
	case ExprUnsupported:
		return "Unsupported"
	}
	return "Expr(?)"
}

// Expr is an expression node. Type is the front end's resolved type of the
// expression (references are already stripped from glvalues, as in C++).
type Expr struct {
	Kind   ExprKind
	Span   source.Span
	Type   types.TypeID
	LValue bool
	Data   ExprData
}

type ExprData interface{ exprData() }

type LitKind uint8

const (
	LitInt LitKind = iota + 1
	LitFloat
	LitBool
	LitChar
	LitString
	LitNullptr
)

type LiteralData struct {
	Kind  LitKind
	Value string // as written, without suffixes; strings are unescaped
}

func (LiteralData) exprData() {}

// DeclRefData names a variable, parameter, function, or enumerator.
// Qualified marks an explicitly qualified name (A::f), which suppresses
// virtual dispatch.
type DeclRefData struct {
	Decl      DeclID
	Qualified bool
}

func (DeclRefData) exprData() {}

type ThisData struct{}

func (ThisData) exprData() {}

// MemberData is base.member or base->member; Member is a field or method.
type MemberData struct {
	Base      ExprID
	Member    DeclID
	Arrow     bool
	Qualified bool
	Implicit  bool // this-> was implied
}

func (MemberData) exprData() {}

type CallData struct {
	Callee ExprID
	Args   []ExprID
}

func (CallData) exprData() {}

// OpCallData: for member operators Args[0] is the object operand.
// Postfix distinguishes x++ from ++x.
type OpCallData struct {
	Op      string
	Callee  DeclID
	Args    []ExprID
	Postfix bool
}

func (OpCallData) exprData() {}

type UnaryOp uint8

const (
	UnNeg UnaryOp = iota + 1
	UnPlus
	UnNot
	UnBitNot
	UnDeref
	UnAddrOf
	UnPreInc
	UnPreDec
	UnPostInc
	UnPostDec
)

func (op UnaryOp) String() string {
	switch op {
	case UnNeg:
		return "-"
	case UnPlus:
		return "+"
	case UnNot:
		return "!"
	case UnBitNot:
		return "~"
	case UnDeref:
		return "*"
	case UnAddrOf:
		return "&"
	case UnPreInc, UnPostInc:
		return "++"
	case UnPreDec, UnPostDec:
		return "--"
	}
	return "?"
}

type UnaryData struct {
	Op UnaryOp
	X  ExprID
}

func (UnaryData) exprData() {}

type BinaryOp uint8

const (
	BinAdd BinaryOp = iota + 1
	BinSub
	BinMul
	BinDiv
	BinRem
	BinShl
	BinShr
	BinBitAnd
	BinBitOr
	BinBitXor
	BinLogAnd
	BinLogOr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAssign
	BinAddAssign
	BinSubAssign
	BinMulAssign
	BinDivAssign
	BinRemAssign
	BinShlAssign
	BinShrAssign
	BinAndAssign
	BinOrAssign
	BinXorAssign
	BinComma
)

var binaryOpText = map[BinaryOp]string{
	BinAdd: "+", BinSub: "-", BinMul: "*", BinDiv: "/", BinRem: "%",
	BinShl: "<<", BinShr: ">>", BinBitAnd: "&", BinBitOr: "|", BinBitXor: "^",
	BinLogAnd: "&&", BinLogOr: "||",
	BinEq: "==", BinNe: "!=", BinLt: "<", BinLe: "<=", BinGt: ">", BinGe: ">=",
	BinAssign: "=", BinAddAssign: "+=", BinSubAssign: "-=", BinMulAssign: "*=",
	BinDivAssign: "/=", BinRemAssign: "%=", BinShlAssign: "<<=", BinShrAssign: ">>=",
	BinAndAssign: "&=", BinOrAssign: "|=", BinXorAssign: "^=",
	BinComma: ",",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpText[op]; ok {
		return s
	}
	return "?"
}

// ParseBinaryOp maps C++ spelling to BinaryOp.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for op, text := range binaryOpText {
		if text == s {
			return op, true
		}
	}
	return 0, false
}

// IsAssign reports `=` and every compound assignment.
func (op BinaryOp) IsAssign() bool {
	return op >= BinAssign && op <= BinXorAssign
}

// Compound returns the arithmetic operator of a compound assignment.
func (op BinaryOp) Compound() (BinaryOp, bool) {
	switch op {
	case BinAddAssign:
		return BinAdd, true
	case BinSubAssign:
		return BinSub, true
	case BinMulAssign:
		return BinMul, true
	case BinDivAssign:
		return BinDiv, true
	case BinRemAssign:
		return BinRem, true
	case BinShlAssign:
		return BinShl, true
	case BinShrAssign:
		return BinShr, true
	case BinAndAssign:
		return BinBitAnd, true
	case BinOrAssign:
		return BinBitOr, true
	case BinXorAssign:
		return BinBitXor, true
	}
	return 0, false
}

type BinaryData struct {
	Op BinaryOp
	X  ExprID
	Y  ExprID
}

func (BinaryData) exprData() {}

type ConditionalData struct {
	Cond ExprID
	Then ExprID
	Else ExprID
}

func (ConditionalData) exprData() {}

type CastKind uint8

const (
	CastNoOp CastKind = iota + 1
	CastLValueToRValue
	CastIntegral
	CastFloating
	CastIntToFloat
	CastFloatToInt
	CastToBool
	CastArrayToPointer
	CastNullToPointer
	CastDerivedToBase
	CastBaseToDerived
	CastBitCast // reinterpret_cast, void* conversions
	CastConst
	CastUserConversion
	CastEnumToInt
	CastIntToEnum
	CastFunctionToPointer
)

type CastData struct {
	Kind     CastKind
	X        ExprID
	Implicit bool
	// Path lists the base classes walked by a derived-to-base or
	// base-to-derived conversion, outermost first.
	Path []types.TypeID
	// Conversion is the user-defined conversion function, if any.
	Conversion DeclID
}

func (CastData) exprData() {}

type IndexData struct {
	Base  ExprID
	Index ExprID
}

func (IndexData) exprData() {}

// NewData: Allocated is the element type. Count is set for new[].
type NewData struct {
	Allocated types.TypeID
	Array     bool
	Count     ExprID
	Ctor      DeclID
	Args      []ExprID
	Init      ExprID // brace or parenthesized initializer for scalars
}

func (NewData) exprData() {}

type DeleteData struct {
	X     ExprID
	Array bool
}

func (DeleteData) exprData() {}

// ConstructData: Ctor is 0 for value-initialization and aggregates.
type ConstructData struct {
	Ctor DeclID
	Args []ExprID
	// Elide is set when the front end marked the copy as elidable.
	Elide bool
}

func (ConstructData) exprData() {}

type InitListData struct {
	Elems []ExprID
}

func (InitListData) exprData() {}

type CaptureKind uint8

const (
	CaptureByValue CaptureKind = iota + 1
	CaptureByRef
	CaptureInit // [x = expr]
	CaptureThis
)

type Capture struct {
	Kind CaptureKind
	Var  DeclID // captured variable; for CaptureInit the synthesized variable
	Init ExprID
	Span source.Span
}

// LambdaData refers to the synthesized call operator in Fn. A generic lambda
// lists the argument types of each instantiation the front end observed.
type LambdaData struct {
	Fn             DeclID
	Captures       []Capture
	Mutable        bool
	Generic        bool
	Instantiations [][]types.TypeID
}

func (LambdaData) exprData() {}

type ThrowData struct {
	X ExprID // 0 rethrows
}

func (ThrowData) exprData() {}

type MoveData struct {
	X ExprID
}

func (MoveData) exprData() {}

type StdMemberData struct {
	Base  ExprID
	Name  string
	Arrow bool
	// Ctor is the constructor an emplace call runs, as resolved by the
	// front end; 0 for value or aggregate initialization.
	Ctor DeclID
}

func (StdMemberData) exprData() {}

type StdFuncData struct {
	Name         string // "make_unique", "swap", ...
	TemplateArgs []types.TypeID
	Ctor         DeclID // for make_unique / make_shared
}

func (StdFuncData) exprData() {}

type UnsupportedExprData struct {
	What string
}

func (UnsupportedExprData) exprData() {}
