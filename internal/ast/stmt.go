package ast

import (
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

type StmtKind uint8

const (
	StmtCompound StmtKind = iota + 1
	StmtDecl
	StmtExpr
	StmtIf
	StmtWhile
	StmtDoWhile
	StmtFor
	StmtRangeFor
	StmtSwitch
	StmtBreak
	StmtContinue
	StmtReturn
	StmtTry
	StmtNull
	StmtUnsupported
)

func (k StmtKind) String() string {
	switch k {
	case StmtCompound:
		return "Compound"
	case StmtDecl:
		return "Decl"
	case StmtExpr:
		return "Expr"
	case StmtIf:
		return "If"
	case StmtWhile:
		return "While"
	case StmtDoWhile:
		return "DoWhile"
	case StmtFor:
		return "For"
	case StmtRangeFor:
		return "RangeFor"
	case StmtSwitch:
		return "Switch"
	case StmtBreak:
		return "Break"
	case StmtContinue:
		return "Continue"
	case StmtReturn:
		return "Return"
	case StmtTry:
		return "Try"
	case StmtNull:
		return "Null"
	case StmtUnsupported:
		return "Unsupported"
	}
	return "Stmt(?)"
}

type Stmt struct {
	Kind StmtKind
	Span source.Span
	Data StmtData
}

type StmtData interface{ stmtData() }

type CompoundData struct {
	Stmts []StmtID
}

func (CompoundData) stmtData() {}

// DeclStmtData declares one or more local variables (DeclVar nodes).
type DeclStmtData struct {
	Vars []DeclID
}

func (DeclStmtData) stmtData() {}

type ExprStmtData struct {
	Expr ExprID
}

func (ExprStmtData) stmtData() {}

type IfData struct {
	Init StmtID
	Cond ExprID
	Then StmtID
	Else StmtID
}

func (IfData) stmtData() {}

type WhileData struct {
	Cond ExprID
	Body StmtID
}

func (WhileData) stmtData() {}

type DoWhileData struct {
	Body StmtID
	Cond ExprID
}

func (DoWhileData) stmtData() {}

type ForData struct {
	Init StmtID
	Cond ExprID // 0 means forever
	Inc  ExprID
	Body StmtID
}

func (ForData) stmtData() {}

// RangeForData is `for (Var : Range) Body`. Var's type tells the binding
// kind: a value, an lvalue reference or a const reference.
type RangeForData struct {
	Var   DeclID
	Range ExprID
	Body  StmtID
}

func (RangeForData) stmtData() {}

// SwitchCase is a run of statements introduced by one or more labels.
// An empty Values list with Default set is `default:`.
type SwitchCase struct {
	Values  []ExprID
	Default bool
	Body    []StmtID
	Span    source.Span
}

type SwitchData struct {
	Cond  ExprID
	Cases []SwitchCase
}

func (SwitchData) stmtData() {}

type ReturnData struct {
	Value ExprID
}

func (ReturnData) stmtData() {}

// CatchClause: Var is 0 for `catch (...)` and for unnamed handlers; Type is
// NoTypeID only for `catch (...)`.
type CatchClause struct {
	Var  DeclID
	Type types.TypeID
	Body StmtID
	Span source.Span
}

type TryData struct {
	Body     StmtID
	Handlers []CatchClause
}

func (TryData) stmtData() {}

type UnsupportedStmtData struct {
	What string
}

func (UnsupportedStmtData) stmtData() {}

// empty payloads
type BreakData struct{}

func (BreakData) stmtData() {}

type ContinueData struct{}

func (ContinueData) stmtData() {}

type NullData struct{}

func (NullData) stmtData() {}
