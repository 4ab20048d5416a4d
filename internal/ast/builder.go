package ast

import (
	"strconv"

	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

// Builder assembles a Unit by hand. The front-end decoder and tests use it;
// every node gets a distinct line in a virtual file so diagnostics stay
// ordered the way nodes were created.
type Builder struct {
	U    *Unit
	file source.FileID
	line uint32
}

func NewBuilder(unit string) *Builder {
	fs := source.NewFileSet()
	u := NewUnit(unit, fs, types.NewInterner())
	return &Builder{U: u, file: fs.Intern(unit+".cpp", source.FileVirtual)}
}

// T is shorthand for the unit's interner.
func (b *Builder) T() *types.Interner { return b.U.Types }

// Span allocates the next synthetic location.
func (b *Builder) Span() source.Span {
	b.line++
	return source.Span{File: b.file, Line: b.line, Col: 1}
}

func (b *Builder) I32() types.TypeID  { return b.T().Builtins().I32 }
func (b *Builder) Void() types.TypeID { return b.T().Builtins().Void }
func (b *Builder) Bool() types.TypeID { return b.T().Builtins().Bool }

// --- declarations ---------------------------------------------------------

func (b *Builder) decl(parent DeclID, d Decl) DeclID {
	d.Span = b.Span()
	id := b.U.NewDecl(d)
	b.U.AddMember(parent, id)
	return id
}

func (b *Builder) qual(parent DeclID, name string) string {
	if parent == NoDeclID {
		return name
	}
	return b.U.QualName(parent) + "::" + name
}

func (b *Builder) Namespace(parent DeclID, name string) DeclID {
	return b.decl(parent, Decl{Kind: DeclNamespace, Name: name, Data: &NamespaceData{}})
}

func (b *Builder) UsingNamespace(parent, ns DeclID) DeclID {
	return b.decl(parent, Decl{Kind: DeclUsingDirective, Data: &UsingDirectiveData{Namespace: ns}})
}

func (b *Builder) UsingDecl(parent, target DeclID) DeclID {
	name := ""
	if d := b.U.Decl(target); d != nil {
		name = d.Name
	}
	return b.decl(parent, Decl{Kind: DeclUsingDecl, Name: name, Data: &UsingDeclData{Target: target}})
}

func (b *Builder) Alias(parent DeclID, name string, target types.TypeID) DeclID {
	return b.decl(parent, Decl{Kind: DeclTypeAlias, Name: name, Type: target, Data: &TypeAliasData{Target: target}})
}

// Record defines a class with the given bases and returns its decl and type.
func (b *Builder) Record(parent DeclID, name string, bases ...types.Base) (DeclID, types.TypeID) {
	t := b.T().Record(name, b.qual(parent, name), "")
	id := b.decl(parent, Decl{Kind: DeclRecord, Name: name, Type: t, Data: &RecordData{Tag: RecordStruct}})
	info, _ := b.T().RecordInfo(t)
	info.Decl = uint32(id)
	info.Complete = true
	info.Bases = append(info.Bases, bases...)
	return id, t
}

// Final marks a record final.
func (b *Builder) Final(rec DeclID) {
	if info, ok := b.T().RecordInfo(b.U.Decl(rec).Type); ok {
		info.Final = true
	}
}

func (b *Builder) Field(rec DeclID, name string, t types.TypeID) DeclID {
	return b.FieldInit(rec, name, t, NoExprID)
}

func (b *Builder) FieldInit(rec DeclID, name string, t types.TypeID, init ExprID) DeclID {
	id := b.decl(rec, Decl{Kind: DeclField, Name: name, Type: t, Access: AccessPublic, Data: &FieldData{Init: init}})
	info, _ := b.T().RecordInfo(b.U.Decl(rec).Type)
	info.Fields = append(info.Fields, types.Field{Name: name, Type: t, Decl: uint32(id)})
	return id
}

// Enum defines an enumeration with consecutive values starting at 0.
func (b *Builder) Enum(parent DeclID, name string, scoped bool, enumerators ...string) (DeclID, types.TypeID) {
	i32 := b.I32()
	t := b.T().Enum(types.EnumInfo{Name: name, QualName: b.qual(parent, name), Underlying: i32, Scoped: scoped})
	id := b.decl(parent, Decl{Kind: DeclEnum, Name: name, Type: t, Data: &EnumData{Underlying: i32, Scoped: scoped}})
	info, _ := b.T().EnumInfo(t)
	info.Decl = uint32(id)
	for i, e := range enumerators {
		b.decl(id, Decl{Kind: DeclEnumerator, Name: e, Type: t, Data: &EnumeratorData{Value: int64(i), Enum: id}})
	}
	return id, t
}

// Param creates a parameter; it is attached by Function and friends.
func (b *Builder) Param(name string, t types.TypeID) DeclID {
	return b.U.NewDecl(Decl{Kind: DeclParam, Span: b.Span(), Name: name, Type: t, Data: &ParamData{}})
}

func (b *Builder) function(parent DeclID, name string, fd *FunctionData, params []DeclID) DeclID {
	fd.Params = params
	id := b.decl(parent, Decl{Kind: DeclFunction, Name: name, Access: AccessPublic, Data: fd})
	for i, p := range params {
		pd := b.U.Decl(p)
		pd.Parent = id
		pd.Data.(*ParamData).Index = i
	}
	ptypes := b.U.ParamTypes(fd)
	b.U.Decl(id).Type = b.T().Func(fd.Result, ptypes, fd.Variadic)
	fd.Sig = Signature(b.T(), fd.Kind, name, ptypes, fd.Const)
	return id
}

// Function declares a free function.
func (b *Builder) Function(parent DeclID, name string, result types.TypeID, params ...DeclID) DeclID {
	return b.function(parent, name, &FunctionData{Kind: FuncFree, Result: result}, params)
}

// Method declares a non-virtual member function.
func (b *Builder) Method(rec DeclID, name string, result types.TypeID, params ...DeclID) DeclID {
	return b.function(rec, name, &FunctionData{Kind: FuncMethod, Result: result, Record: b.U.Decl(rec).Type}, params)
}

// ConstMethod declares a const-qualified member function.
func (b *Builder) ConstMethod(rec DeclID, name string, result types.TypeID, params ...DeclID) DeclID {
	return b.function(rec, name, &FunctionData{Kind: FuncMethod, Result: result, Const: true, Record: b.U.Decl(rec).Type}, params)
}

// StaticMethod declares a static member function.
func (b *Builder) StaticMethod(rec DeclID, name string, result types.TypeID, params ...DeclID) DeclID {
	return b.function(rec, name, &FunctionData{Kind: FuncStaticMethod, Result: result, Record: b.U.Decl(rec).Type}, params)
}

// Virtual declares a virtual member function and registers it in the
// record's virtual list. Overrides use the same call.
func (b *Builder) Virtual(rec DeclID, name string, result types.TypeID, params ...DeclID) DeclID {
	id := b.function(rec, name, &FunctionData{Kind: FuncMethod, Result: result, Virtual: true, Record: b.U.Decl(rec).Type}, params)
	b.registerVirtual(rec, id)
	return id
}

func (b *Builder) registerVirtual(rec, fn DeclID) {
	d, fd, _ := b.U.Func(fn)
	info, _ := b.T().RecordInfo(b.U.Decl(rec).Type)
	info.Virtuals = append(info.Virtuals, types.Virtual{
		Name:  d.Name,
		Sig:   fd.Sig,
		Decl:  uint32(fn),
		Final: fd.Final,
		Pure:  fd.Pure,
		Dtor:  fd.Kind == FuncDtor,
	})
}

// MarkFinal sets the final flag on a virtual function.
func (b *Builder) MarkFinal(fn DeclID) {
	_, fd, _ := b.U.Func(fn)
	fd.Final = true
	rec := b.U.Decl(fn).Parent
	info, _ := b.T().RecordInfo(b.U.Decl(rec).Type)
	for i := range info.Virtuals {
		if info.Virtuals[i].Decl == uint32(fn) {
			info.Virtuals[i].Final = true
		}
	}
}

// MarkPure makes a virtual function pure.
func (b *Builder) MarkPure(fn DeclID) {
	_, fd, _ := b.U.Func(fn)
	fd.Pure = true
	rec := b.U.Decl(fn).Parent
	info, _ := b.T().RecordInfo(b.U.Decl(rec).Type)
	for i := range info.Virtuals {
		if info.Virtuals[i].Decl == uint32(fn) {
			info.Virtuals[i].Pure = true
		}
	}
}

// Ctor declares a constructor.
func (b *Builder) Ctor(rec DeclID, params ...DeclID) DeclID {
	d := b.U.Decl(rec)
	return b.function(rec, d.Name, &FunctionData{Kind: FuncCtor, Result: b.Void(), Record: d.Type}, params)
}

// Init appends a mem-initializer for a field.
func (b *Builder) Init(ctor, field DeclID, args ...ExprID) {
	_, fd, _ := b.U.Func(ctor)
	fd.Inits = append(fd.Inits, CtorInit{Field: field, Args: args, Span: b.Span()})
}

// InitBase appends a base-class initializer calling ctor.
func (b *Builder) InitBase(ctor DeclID, base types.TypeID, baseCtor DeclID, args ...ExprID) {
	_, fd, _ := b.U.Func(ctor)
	fd.Inits = append(fd.Inits, CtorInit{Base: base, Ctor: baseCtor, Args: args, Span: b.Span()})
}

// Dtor declares a destructor; virtual destructors take a vtable slot.
func (b *Builder) Dtor(rec DeclID, virtual bool) DeclID {
	d := b.U.Decl(rec)
	id := b.function(rec, "~"+d.Name, &FunctionData{Kind: FuncDtor, Result: b.Void(), Virtual: virtual, Record: d.Type}, nil)
	if virtual {
		b.registerVirtual(rec, id)
	}
	if info, ok := b.T().RecordInfo(d.Type); ok {
		info.HasDtor = true
	}
	return id
}

// Operator declares a member operator.
func (b *Builder) Operator(rec DeclID, op string, result types.TypeID, params ...DeclID) DeclID {
	d := b.U.Decl(rec)
	return b.function(rec, "operator"+op, &FunctionData{Kind: FuncOperator, Operator: op, Result: result, Record: d.Type}, params)
}

// FD returns the mutable function payload.
func (b *Builder) FD(fn DeclID) *FunctionData {
	_, fd, _ := b.U.Func(fn)
	return fd
}

// Body sets the function body to a compound statement.
func (b *Builder) Body(fn DeclID, stmts ...StmtID) {
	b.FD(fn).Body = b.Block(stmts...)
}

// Global declares a namespace-scope variable.
func (b *Builder) Global(parent DeclID, name string, t types.TypeID, init ExprID) DeclID {
	return b.decl(parent, Decl{Kind: DeclVar, Name: name, Type: t, Data: &VarData{Storage: StorageGlobal, Init: init}})
}

// StaticMember declares a static data member.
func (b *Builder) StaticMember(rec DeclID, name string, t types.TypeID, init ExprID) DeclID {
	return b.decl(rec, Decl{Kind: DeclVar, Name: name, Type: t, Access: AccessPublic, Data: &VarData{Storage: StorageStaticMember, Init: init}})
}

// --- statements -----------------------------------------------------------

func (b *Builder) stmt(kind StmtKind, data StmtData) StmtID {
	return b.U.NewStmt(Stmt{Kind: kind, Span: b.Span(), Data: data})
}

func (b *Builder) Block(stmts ...StmtID) StmtID {
	return b.stmt(StmtCompound, &CompoundData{Stmts: stmts})
}

// LocalVar creates a local variable without a declaration statement.
func (b *Builder) LocalVar(name string, t types.TypeID, init ExprID) DeclID {
	return b.U.NewDecl(Decl{Kind: DeclVar, Span: b.Span(), Name: name, Type: t, Data: &VarData{Storage: StorageLocal, Init: init}})
}

// Local declares a local variable and returns the statement and variable.
func (b *Builder) Local(name string, t types.TypeID, init ExprID) (StmtID, DeclID) {
	v := b.LocalVar(name, t, init)
	return b.stmt(StmtDecl, &DeclStmtData{Vars: []DeclID{v}}), v
}

func (b *Builder) ExprStmt(e ExprID) StmtID {
	return b.stmt(StmtExpr, &ExprStmtData{Expr: e})
}

func (b *Builder) Return(e ExprID) StmtID {
	return b.stmt(StmtReturn, &ReturnData{Value: e})
}

func (b *Builder) If(cond ExprID, then, els StmtID) StmtID {
	return b.stmt(StmtIf, &IfData{Cond: cond, Then: then, Else: els})
}

func (b *Builder) While(cond ExprID, body StmtID) StmtID {
	return b.stmt(StmtWhile, &WhileData{Cond: cond, Body: body})
}

func (b *Builder) DoWhile(body StmtID, cond ExprID) StmtID {
	return b.stmt(StmtDoWhile, &DoWhileData{Body: body, Cond: cond})
}

func (b *Builder) For(init StmtID, cond, inc ExprID, body StmtID) StmtID {
	return b.stmt(StmtFor, &ForData{Init: init, Cond: cond, Inc: inc, Body: body})
}

func (b *Builder) RangeFor(v DeclID, rng ExprID, body StmtID) StmtID {
	return b.stmt(StmtRangeFor, &RangeForData{Var: v, Range: rng, Body: body})
}

func (b *Builder) Break() StmtID    { return b.stmt(StmtBreak, &BreakData{}) }
func (b *Builder) Continue() StmtID { return b.stmt(StmtContinue, &ContinueData{}) }

func (b *Builder) Switch(cond ExprID, cases ...SwitchCase) StmtID {
	return b.stmt(StmtSwitch, &SwitchData{Cond: cond, Cases: cases})
}

// Case builds a switch section; a nil value list means `default:`.
func (b *Builder) Case(values []ExprID, body ...StmtID) SwitchCase {
	return SwitchCase{Values: values, Default: len(values) == 0, Body: body, Span: b.Span()}
}

func (b *Builder) Try(body StmtID, handlers ...CatchClause) StmtID {
	return b.stmt(StmtTry, &TryData{Body: body, Handlers: handlers})
}

// Catch builds a handler binding name of type t; t == NoTypeID is catch(...).
func (b *Builder) Catch(name string, t types.TypeID, body StmtID) CatchClause {
	var v DeclID
	if t != types.NoTypeID && name != "" {
		v = b.LocalVar(name, t, NoExprID)
	}
	return CatchClause{Var: v, Type: t, Body: body, Span: b.Span()}
}

// --- expressions ----------------------------------------------------------

func (b *Builder) expr(kind ExprKind, t types.TypeID, lvalue bool, data ExprData) ExprID {
	return b.U.NewExpr(Expr{Kind: kind, Span: b.Span(), Type: t, LValue: lvalue, Data: data})
}

func (b *Builder) Int(v int64) ExprID {
	return b.expr(ExprLiteral, b.I32(), false, &LiteralData{Kind: LitInt, Value: strconv.FormatInt(v, 10)})
}

func (b *Builder) Lit(kind LitKind, value string, t types.TypeID) ExprID {
	return b.expr(ExprLiteral, t, false, &LiteralData{Kind: kind, Value: value})
}

func (b *Builder) BoolLit(v bool) ExprID {
	return b.expr(ExprLiteral, b.Bool(), false, &LiteralData{Kind: LitBool, Value: strconv.FormatBool(v)})
}

func (b *Builder) Str(v string) ExprID {
	t := b.T().Pointer(b.T().Builtins().I8, true)
	return b.expr(ExprLiteral, t, false, &LiteralData{Kind: LitString, Value: v})
}

func (b *Builder) Nullptr(t types.TypeID) ExprID {
	return b.expr(ExprLiteral, t, false, &LiteralData{Kind: LitNullptr, Value: "nullptr"})
}

// Ref names a declaration; reference-typed variables yield their referent.
func (b *Builder) Ref(decl DeclID) ExprID {
	d := b.U.Decl(decl)
	t := b.T().StripRef(d.Type)
	lvalue := d.Kind == DeclVar || d.Kind == DeclParam
	return b.expr(ExprDeclRef, t, lvalue, &DeclRefData{Decl: decl})
}

// QualifiedRef is Ref with an explicit A::f qualifier.
func (b *Builder) QualifiedRef(decl DeclID) ExprID {
	id := b.Ref(decl)
	b.U.Expr(id).Data.(*DeclRefData).Qualified = true
	return id
}

func (b *Builder) This(rec types.TypeID) ExprID {
	return b.expr(ExprThis, b.T().Pointer(rec, false), false, &ThisData{})
}

// Member accesses a field or method.
func (b *Builder) Member(base ExprID, member DeclID, arrow bool) ExprID {
	d := b.U.Decl(member)
	return b.expr(ExprMember, b.T().StripRef(d.Type), d.Kind == DeclField, &MemberData{Base: base, Member: member, Arrow: arrow})
}

func (b *Builder) Call(callee ExprID, result types.TypeID, args ...ExprID) ExprID {
	return b.expr(ExprCall, b.T().StripRef(result), b.T().Kind(result) == types.KindReference, &CallData{Callee: callee, Args: args})
}

// CallFn calls a free function by declaration.
func (b *Builder) CallFn(fn DeclID, args ...ExprID) ExprID {
	return b.Call(b.Ref(fn), b.FD(fn).Result, args...)
}

// CallMethod calls m on obj.
func (b *Builder) CallMethod(obj ExprID, arrow bool, m DeclID, args ...ExprID) ExprID {
	return b.Call(b.Member(obj, m, arrow), b.FD(m).Result, args...)
}

func (b *Builder) OpCall(fn DeclID, postfix bool, args ...ExprID) ExprID {
	fd := b.FD(fn)
	return b.expr(ExprOpCall, b.T().StripRef(fd.Result), b.T().Kind(fd.Result) == types.KindReference,
		&OpCallData{Op: fd.Operator, Callee: fn, Args: args, Postfix: postfix})
}

func (b *Builder) Bin(op BinaryOp, x, y ExprID) ExprID {
	t := b.U.Expr(x).Type
	lvalue := false
	switch {
	case op >= BinLogAnd && op <= BinGe:
		t = b.Bool()
	case op.IsAssign():
		lvalue = true
	case op == BinComma:
		t = b.U.Expr(y).Type
	}
	return b.expr(ExprBinary, t, lvalue, &BinaryData{Op: op, X: x, Y: y})
}

func (b *Builder) Unary(op UnaryOp, x ExprID) ExprID {
	xt := b.U.Expr(x).Type
	t, lvalue := xt, false
	switch op {
	case UnDeref:
		t, _ = b.T().Pointee(xt)
		lvalue = true
	case UnAddrOf:
		t = b.T().Pointer(xt, false)
	case UnNot:
		t = b.Bool()
	case UnPreInc, UnPreDec:
		lvalue = true
	}
	return b.expr(ExprUnary, t, lvalue, &UnaryData{Op: op, X: x})
}

func (b *Builder) Cond(c, then, els ExprID) ExprID {
	return b.expr(ExprConditional, b.U.Expr(then).Type, false, &ConditionalData{Cond: c, Then: then, Else: els})
}

func (b *Builder) Cast(kind CastKind, x ExprID, to types.TypeID) ExprID {
	return b.expr(ExprCast, to, false, &CastData{Kind: kind, X: x})
}

// ImplicitCast marks the conversion as compiler-inserted.
func (b *Builder) ImplicitCast(kind CastKind, x ExprID, to types.TypeID) ExprID {
	id := b.Cast(kind, x, to)
	b.U.Expr(id).Data.(*CastData).Implicit = true
	return id
}

func (b *Builder) Index(base, idx ExprID) ExprID {
	bt := b.U.Expr(base).Type
	var elem types.TypeID
	if info, ok := b.T().StdInfo(bt); ok && len(info.Args) > 0 {
		elem = info.Args[0]
	} else if t, ok := b.T().Lookup(bt); ok {
		elem = t.Elem
	}
	return b.expr(ExprIndex, elem, true, &IndexData{Base: base, Index: idx})
}

func (b *Builder) New(t types.TypeID, ctor DeclID, args ...ExprID) ExprID {
	return b.expr(ExprNew, b.T().Pointer(t, false), false, &NewData{Allocated: t, Ctor: ctor, Args: args})
}

func (b *Builder) NewArray(t types.TypeID, count ExprID) ExprID {
	return b.expr(ExprNew, b.T().Pointer(t, false), false, &NewData{Allocated: t, Array: true, Count: count})
}

func (b *Builder) Delete(x ExprID, array bool) ExprID {
	return b.expr(ExprDelete, b.Void(), false, &DeleteData{X: x, Array: array})
}

func (b *Builder) Construct(t types.TypeID, ctor DeclID, args ...ExprID) ExprID {
	return b.expr(ExprConstruct, t, false, &ConstructData{Ctor: ctor, Args: args})
}

func (b *Builder) InitList(t types.TypeID, elems ...ExprID) ExprID {
	return b.expr(ExprInitList, t, false, &InitListData{Elems: elems})
}

// Lambda wraps the call operator fn (built with Function(NoDeclID, ...), then
// re-kinded) into a lambda expression with its own closure type.
func (b *Builder) Lambda(fn DeclID, captures ...Capture) ExprID {
	fd := b.FD(fn)
	fd.Kind = FuncLambda
	id := b.expr(ExprLambda, types.NoTypeID, false, &LambdaData{Fn: fn, Captures: captures})
	b.U.Expr(id).Type = b.T().Closure(types.ClosureInfo{Lambda: uint32(id)})
	return id
}

// LambdaFn creates a detached call operator for Lambda.
func (b *Builder) LambdaFn(result types.TypeID, params ...DeclID) DeclID {
	fd := &FunctionData{Kind: FuncLambda, Result: result, Params: params}
	id := b.U.NewDecl(Decl{Kind: DeclFunction, Span: b.Span(), Name: "operator()", Data: fd})
	for i, p := range params {
		pd := b.U.Decl(p)
		pd.Parent = id
		pd.Data.(*ParamData).Index = i
	}
	b.U.Decl(id).Type = b.T().Func(result, b.U.ParamTypes(fd), false)
	return id
}

func (b *Builder) Throw(x ExprID) ExprID {
	return b.expr(ExprThrow, b.Void(), false, &ThrowData{X: x})
}

func (b *Builder) Move(x ExprID) ExprID {
	return b.expr(ExprMove, b.U.Expr(x).Type, false, &MoveData{X: x})
}

// StdCall calls a standard library member: obj.name(args...).
func (b *Builder) StdCall(obj ExprID, arrow bool, name string, result types.TypeID, args ...ExprID) ExprID {
	callee := b.expr(ExprStdMember, types.NoTypeID, false, &StdMemberData{Base: obj, Name: name, Arrow: arrow})
	return b.Call(callee, result, args...)
}

// StdFunc calls a standard library free function.
func (b *Builder) StdFunc(name string, result types.TypeID, targs []types.TypeID, args ...ExprID) ExprID {
	callee := b.expr(ExprStdFunc, types.NoTypeID, false, &StdFuncData{Name: name, TemplateArgs: targs})
	return b.Call(callee, result, args...)
}

// WithCtor records the constructor a StdCall or StdFunc emplaces with.
func (b *Builder) WithCtor(call ExprID, ctor DeclID) ExprID {
	callee := b.U.Expr(call).Data.(*CallData).Callee
	switch d := b.U.Expr(callee).Data.(type) {
	case *StdMemberData:
		d.Ctor = ctor
	case *StdFuncData:
		d.Ctor = ctor
	}
	return call
}

func (b *Builder) Unsupported(what string, t types.TypeID) ExprID {
	return b.expr(ExprUnsupported, t, false, &UnsupportedExprData{What: what})
}
