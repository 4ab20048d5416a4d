package lower

import (
	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
	"cxxlower/internal/typemap"
	"cxxlower/internal/types"
)

// lambda lowers a lambda to a block that evaluates the captures, ending in a
// move closure:
//
//	{ let n = n; let v = addr_of_mut!(v); move |x: i32| -> i32 { ... } }
//
// By-reference captures are raw pointers, so the closure does not borrow
// the enclosing frame.
func (l *lowerer) lambda(e *ast.Expr, x *ast.LambdaData) lir.Expr {
	outer := l.fc
	d, fd, ok := l.u.Func(x.Fn)
	if !ok || outer == nil {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "lambda without call operator")
	}
	if x.Generic && len(x.Instantiations) > 1 {
		return l.bail(e.Span, diag.LowGenericLambdaMulti, "generic lambda used with %d argument type lists", len(x.Instantiations))
	}

	child := l.newFnCtx(outer.fn)
	child.labels, child.tmps = outer.labels, outer.tmps
	var caps []lir.Stmt
	for _, c := range x.Captures {
		caps = append(caps, l.capture(c, child))
	}

	l.fc = child
	params := make([]lir.Param, 0, len(fd.Params))
	for i, p := range fd.Params {
		pd := l.u.Decl(p)
		pt := pd.Type
		if x.Generic && len(x.Instantiations) == 1 && i < len(x.Instantiations[0]) {
			pt = x.Instantiations[0][i]
		}
		name := l.localName(p)
		var t lir.Type
		style := typemap.ByValue
		if x.Generic && len(x.Instantiations) == 0 {
			t = lir.Infer
		} else {
			t, style = l.tm.Param(pt, pd.Span)
		}
		kind := bindValue
		if style == typemap.ByRef {
			kind = bindRef
		}
		child.locals[p] = binding{name: name, kind: kind}
		params = append(params, lir.Param{Name: "mut " + name, Type: t})
	}
	if x.Generic && len(x.Instantiations) == 0 {
		diag.ReportInfo(l.rep, diag.LowGenericLambdaInferred, e.Span,
			"generic lambda has no observed call; parameter types are left to inference").Emit()
	}

	child.result = fd.Result
	var result *lir.Type
	rt := l.tm.Map(fd.Result, d.Span)
	switch {
	case rt.IsRef():
		child.retPtr = true
		rt = lir.RawPtr(*rt.Elem, rt.Mut)
		result = &rt
	case rt.Kind == lir.TyInfer:
		l.fc = outer
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "lambda returns a closure")
	case !rt.IsUnit():
		result = &rt
	}
	body := &lir.Block{Stmts: l.blockStmts(fd.Body)}
	finishTail(body, rt, false)
	l.fc = outer

	outer.labels, outer.tmps = child.labels, child.tmps
	if child.skip {
		return l.bail(child.skipAt, child.skipCode, "%s", child.skipWhy)
	}
	closure := &lir.Closure{Move: true, Params: params, Result: result, Body: body}
	if len(caps) == 0 {
		return closure
	}
	return &lir.Block{Stmts: caps, Tail: closure}
}

// capture evaluates one capture in the enclosing function and binds it in
// the closure's context.
func (l *lowerer) capture(c ast.Capture, child *fnCtx) lir.Stmt {
	if c.Kind == ast.CaptureThis {
		child.thisVar = "__this"
		child.rec = l.thisRecord()
		return lir.Let("__this", nil, l.guarded(l.thisPtr))
	}
	d := l.u.Decl(c.Var)
	if d == nil {
		return lir.Do(l.bail(c.Span, diag.LowUnsupportedConstruct, "capture of an unresolved variable"))
	}
	name := l.localName(c.Var)
	switch c.Kind {
	case ast.CaptureByRef:
		child.locals[c.Var] = binding{name: name, kind: bindPtr}
		if b, ok := l.fc.locals[c.Var]; ok && b.kind == bindPtr {
			return lir.Let(name, nil, lir.Ident(b.name))
		}
		return lir.Let(name, nil, l.guarded(func() lir.Expr { return lir.AddrOfMut(l.varPlace(c.Var, c.Span)) }))
	case ast.CaptureInit:
		if rt, ok := l.in.Lookup(d.Type); ok && rt.Kind == types.KindReference {
			child.locals[c.Var] = binding{name: name, kind: bindPtr}
			return lir.Let(name, nil, l.guarded(func() lir.Expr { return l.ptrTo(c.Init, !rt.Const || rt.RValue) }))
		}
		child.locals[c.Var] = binding{name: name, kind: bindValue}
		return lir.Let(name, nil, l.guarded(func() lir.Expr { return l.initValue(c.Init, d.Type) }))
	}
	child.locals[c.Var] = binding{name: name, kind: bindValue}
	vt := l.in.StripRef(d.Type)
	return lir.Let(name, nil, l.guarded(func() lir.Expr {
		p := l.varPlace(c.Var, c.Span)
		if l.rust(vt).Copy() {
			return p
		}
		if l.in.Kind(vt) == types.KindRecord && !l.copyable(vt) {
			return l.bail(c.Span, diag.LowUnsupportedConstruct, "by-value capture of non-copyable `%s`", l.in.Format(vt))
		}
		return lir.MCall(p, "clone")
	}))
}
