package lower

import (
	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

// callKind says what a lowered call expression yields.
type callKind uint8

const (
	callValue callKind = iota
	// callPlace: the expression is itself a place (library accessors)
	callPlace
	// callRef: a Rust reference to the result object
	callRef
	// callRaw: a raw pointer standing in for a returned reference
	callRaw
)

func (l *lowerer) callOf(id ast.ExprID) (lir.Expr, callKind) {
	e := l.expr(id)
	switch x := e.Data.(type) {
	case *ast.CallData:
		return l.call(e, x)
	case *ast.OpCallData:
		return l.opCall(e, x)
	}
	return l.bail(e.Span, diag.LowUnsupportedConstruct, "%s expression used as a call", e.Kind), callValue
}

func (l *lowerer) call(e *ast.Expr, x *ast.CallData) (lir.Expr, callKind) {
	ce := l.expr(x.Callee)
	if ce == nil {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "call without callee"), callValue
	}
	switch c := ce.Data.(type) {
	case *ast.DeclRefData:
		if d := l.u.Decl(c.Decl); d != nil && d.Kind == ast.DeclFunction {
			return l.fnCall(e, c, x.Args)
		}
		if fn, ok := l.closureFn(ce.Type); ok {
			r := lir.Call(l.place(x.Callee), l.callArgs(fn, x.Args, e.Span)...)
			_, fd, _ := l.u.Func(fn)
			return r, l.resultKind(fd)
		}
	case *ast.MemberData:
		return l.methodCall(e, c, l.callArgs(c.Member, x.Args, e.Span))
	case *ast.StdMemberData:
		return l.stdMember(e, c, x.Args)
	case *ast.StdFuncData:
		return l.stdFunc(e, c, x.Args)
	case *ast.LambdaData:
		r := lir.Call(l.lambda(ce, c), l.callArgs(c.Fn, x.Args, e.Span)...)
		_, fd, _ := l.u.Func(c.Fn)
		return r, l.resultKind(fd)
	}
	return l.bail(e.Span, diag.LowUnsupportedConstruct, "call through %s", ce.Kind), callValue
}

// closureFn finds the call operator of a lambda-typed expression.
func (l *lowerer) closureFn(t types.TypeID) (ast.DeclID, bool) {
	ci, ok := l.in.ClosureInfo(l.in.StripRef(t))
	if !ok {
		return ast.NoDeclID, false
	}
	le := l.expr(ast.ExprID(ci.Lambda))
	if le == nil {
		return ast.NoDeclID, false
	}
	ld, ok := le.Data.(*ast.LambdaData)
	if !ok {
		return ast.NoDeclID, false
	}
	return ld.Fn, true
}

func (l *lowerer) fnCall(e *ast.Expr, ref *ast.DeclRefData, args []ast.ExprID) (lir.Expr, callKind) {
	d, fd, _ := l.u.Func(ref.Decl)
	switch {
	case l.skipped[ref.Decl]:
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "call to skipped function `%s`", l.u.QualName(ref.Decl)), callValue
	case fd.Variadic:
		return l.bail(e.Span, diag.LowVariadic, "call to variadic function `%s`", d.Name), callValue
	case fd.Record != types.NoTypeID && fd.Kind == ast.FuncStaticMethod:
		p := l.memberPath(fd.Record, l.names.Name(ref.Decl))
		return lir.CallPath(p, l.callArgs(ref.Decl, args, e.Span)...), l.resultKind(fd)
	case fd.Record != types.NoTypeID:
		m := &ast.MemberData{Member: ref.Decl, Arrow: true, Implicit: true, Qualified: ref.Qualified}
		return l.methodCall(e, m, l.callArgs(ref.Decl, args, e.Span))
	}
	return lir.CallPath(l.declPath(ref.Decl), l.callArgs(ref.Decl, args, e.Span)...), l.resultKind(fd)
}

// methodCall calls m with already lowered arguments. A virtual function
// reached through a pointer or reference dispatches through the vtable;
// everything else is a direct call on the declaring subobject.
func (l *lowerer) methodCall(e *ast.Expr, m *ast.MemberData, args []lir.Expr) (lir.Expr, callKind) {
	d, fd, ok := l.u.Func(m.Member)
	if !ok {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "unresolved member function"), callValue
	}
	if l.skipped[m.Member] {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "call to skipped function `%s`", l.u.QualName(m.Member)), callValue
	}
	name := l.names.Name(m.Member)
	if fd.Kind == ast.FuncStaticMethod {
		return lir.CallPath(l.memberPath(fd.Record, name), args...), l.resultKind(fd)
	}
	if fd.Variadic {
		return l.bail(e.Span, diag.LowVariadic, "call to variadic function `%s`", d.Name), callValue
	}
	static := l.recvType(m)
	if !m.Qualified && !fd.Final && l.indirect(m) {
		info, _ := l.in.RecordInfo(static)
		if ref, ok := l.slotOf(static, fd); ok && (info == nil || !info.Final) {
			k := callValue
			if l.in.Kind(fd.Result) == types.KindReference {
				k = callRaw
			}
			return l.virtualCall(l.recvPtr(m, static), static, ref, args), k
		}
	}
	obj, static := l.recvPlace(m)
	recv := dotBase(l.basePlace(obj, static, fd.Record))
	return lir.MCall(recv, name, args...), l.resultKind(fd)
}

// recvType is the static type of the object a member access names.
func (l *lowerer) recvType(m *ast.MemberData) types.TypeID {
	if m.Base == ast.NoExprID {
		return l.thisRecord()
	}
	bt := l.typeOf(m.Base)
	if m.Arrow {
		pt, _ := l.in.Pointee(bt)
		return pt
	}
	return l.in.StripRef(bt)
}

// recvPtr is a pointer to the receiver of a virtual call.
func (l *lowerer) recvPtr(m *ast.MemberData, static types.TypeID) lir.Expr {
	if m.Base == ast.NoExprID {
		return l.thisPtr()
	}
	be := l.expr(m.Base)
	if _, ok := be.Data.(*ast.ThisData); ok {
		return l.thisPtr()
	}
	if m.Arrow {
		return l.value(m.Base)
	}
	if u, ok := be.Data.(*ast.UnaryData); ok && u.Op == ast.UnDeref && l.in.Kind(l.typeOf(u.X)) != types.KindStd {
		return l.value(u.X)
	}
	return lir.Cast(lir.Mac("::core::ptr::addr_of", l.place(m.Base)), lir.RawPtr(l.recordType(static), true))
}

// indirect reports receivers whose dynamic type may differ from the static
// one: anything reached through a pointer or a reference.
func (l *lowerer) indirect(m *ast.MemberData) bool {
	if m.Base == ast.NoExprID || m.Arrow || m.Implicit {
		return true
	}
	return l.viaRef(m.Base)
}

func (l *lowerer) viaRef(id ast.ExprID) bool {
	e := l.expr(id)
	if e == nil {
		return false
	}
	switch x := e.Data.(type) {
	case *ast.UnaryData:
		return x.Op == ast.UnDeref
	case *ast.DeclRefData:
		if l.fc != nil {
			if b, ok := l.fc.locals[x.Decl]; ok {
				return b.kind != bindValue
			}
		}
		d := l.u.Decl(x.Decl)
		return d != nil && l.in.Kind(d.Type) == types.KindReference
	case *ast.MemberData:
		md := l.u.Decl(x.Member)
		return md != nil && l.in.Kind(md.Type) == types.KindReference
	case *ast.CallData, *ast.OpCallData:
		return e.LValue
	case *ast.CastData:
		return l.viaRef(x.X)
	}
	return false
}

// opCall lowers an overloaded operator. Member operators take Args[0] as the
// object; postfix ++/-- pass the dummy int.
func (l *lowerer) opCall(e *ast.Expr, x *ast.OpCallData) (lir.Expr, callKind) {
	_, fd, ok := l.u.Func(x.Callee)
	if !ok {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "unresolved operator%s", x.Op), callValue
	}
	if l.skipped[x.Callee] {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "call to skipped operator `%s`", l.u.QualName(x.Callee)), callValue
	}
	if fd.Record != types.NoTypeID && fd.Kind != ast.FuncStaticMethod {
		if len(x.Args) == 0 {
			return l.bail(e.Span, diag.LowUnsupportedConstruct, "member operator%s without an object", x.Op), callValue
		}
		m := &ast.MemberData{Base: x.Args[0], Member: x.Callee}
		if l.in.Kind(l.typeOf(x.Args[0])) == types.KindPointer {
			m.Arrow = true
		}
		return l.methodCall(e, m, l.argList(x.Callee, x.Args[1:], e.Span, x.Postfix))
	}
	return lir.CallPath(l.declPath(x.Callee), l.argList(x.Callee, x.Args, e.Span, x.Postfix)...), l.resultKind(fd)
}

// callArgs lowers call arguments against the parameters of fn, filling in
// default arguments.
func (l *lowerer) callArgs(fn ast.DeclID, args []ast.ExprID, at source.Span) []lir.Expr {
	return l.argList(fn, args, at, false)
}

func (l *lowerer) argList(fn ast.DeclID, args []ast.ExprID, at source.Span, postfix bool) []lir.Expr {
	_, fd, ok := l.u.Func(fn)
	if !ok {
		l.bail(at, diag.LowUnsupportedConstruct, "unresolved function")
		return nil
	}
	if len(args) > len(fd.Params) {
		l.bail(at, diag.LowUnsupportedConstruct, "too many arguments to `%s`", l.u.QualName(fn))
		return nil
	}
	out := make([]lir.Expr, 0, len(fd.Params))
	for i, p := range fd.Params {
		pd := l.u.Decl(p)
		var a ast.ExprID
		switch {
		case i < len(args):
			a = args[i]
		case postfix && i == len(args):
			out = append(out, lir.Lit("0"))
			continue
		default:
			pdata, _ := pd.Data.(*ast.ParamData)
			if pdata == nil || pdata.Default == ast.NoExprID {
				l.bail(at, diag.LowUnsupportedConstruct, "missing argument `%s` in call to `%s`", pd.Name, l.u.QualName(fn))
				return out
			}
			a = pdata.Default
		}
		out = append(out, l.arg(a, pd.Type))
	}
	return out
}

func (l *lowerer) arg(a ast.ExprID, pt types.TypeID) lir.Expr {
	switch l.in.Kind(pt) {
	case types.KindReference:
		return l.borrowAs(a, pt)
	case types.KindUnsupported:
		return l.value(a)
	}
	return l.initValue(a, pt)
}

func (l *lowerer) resultKind(fd *ast.FunctionData) callKind {
	if fd == nil || l.in.Kind(fd.Result) != types.KindReference {
		return callValue
	}
	if l.rawRefResult(fd) {
		return callRaw
	}
	return callRef
}

// rawRefResult reports reference results that Rust lifetime elision cannot
// tie to an input; those are returned as raw pointers.
func (l *lowerer) rawRefResult(fd *ast.FunctionData) bool {
	if fd.Kind == ast.FuncLambda {
		return true
	}
	if fd.Record != types.NoTypeID && fd.Kind != ast.FuncStaticMethod {
		return false
	}
	refs := 0
	for _, p := range fd.Params {
		if pd := l.u.Decl(p); pd != nil && l.in.Kind(pd.Type) == types.KindReference {
			refs++
		}
	}
	return refs != 1
}

// emplaceCtor is the constructor an in-place construction of t runs. The
// front end's resolution is used when present; without it only a single
// exact parameter match is accepted. NoDeclID with ok means value or
// aggregate initialization.
func (l *lowerer) emplaceCtor(resolved ast.DeclID, t types.TypeID, args []ast.ExprID, at source.Span) (ast.DeclID, bool) {
	if resolved != ast.NoDeclID || l.in.Kind(t) != types.KindRecord {
		return resolved, true
	}
	ctors := l.ctorsOf(t)
	if len(ctors) == 0 {
		return ast.NoDeclID, true
	}
	var match []ast.DeclID
	for _, c := range ctors {
		_, fd, ok := l.u.Func(c)
		if !ok || fd.Deleted || len(args) != len(fd.Params) {
			continue
		}
		exact := true
		for i, p := range fd.Params {
			if l.in.StripRef(l.u.Decl(p).Type) != l.in.StripRef(l.typeOf(args[i])) {
				exact = false
				break
			}
		}
		if exact {
			match = append(match, c)
		}
	}
	if len(match) != 1 {
		l.bail(at, diag.LowUnsupportedConstruct, "in-place construction of `%s` without a resolved constructor", l.in.Format(t))
		return ast.NoDeclID, false
	}
	return match[0], true
}
