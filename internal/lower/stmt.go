package lower

import (
	"fmt"
	"strings"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
	"cxxlower/internal/types"
)

// blockStmts lowers a statement into a statement list; compound statements
// are flattened into the enclosing block.
func (l *lowerer) blockStmts(id ast.StmtID) []lir.Stmt {
	s := l.u.Stmt(id)
	if s == nil {
		return nil
	}
	if c, ok := s.Data.(*ast.CompoundData); ok {
		var out []lir.Stmt
		for _, st := range c.Stmts {
			out = append(out, l.stmt(st)...)
		}
		return out
	}
	return l.stmt(id)
}

func (l *lowerer) block(id ast.StmtID) *lir.Block {
	return &lir.Block{Stmts: l.blockStmts(id)}
}

func (l *lowerer) stmt(id ast.StmtID) []lir.Stmt {
	s := l.u.Stmt(id)
	if s == nil {
		return nil
	}
	switch x := s.Data.(type) {
	case *ast.CompoundData:
		return []lir.Stmt{lir.Do(l.block(id))}
	case *ast.DeclStmtData:
		var out []lir.Stmt
		for _, v := range x.Vars {
			out = append(out, l.localDecl(v)...)
		}
		return out
	case *ast.ExprStmtData:
		return []lir.Stmt{lir.Do(l.guarded(func() lir.Expr { return l.effect(x.Expr) }))}
	case *ast.IfData:
		return l.ifStmt(x)
	case *ast.WhileData:
		return l.whileStmt(x)
	case *ast.DoWhileData:
		return l.doWhile(x)
	case *ast.ForData:
		return l.forStmt(x)
	case *ast.RangeForData:
		return l.rangeFor(s, x)
	case *ast.SwitchData:
		return l.switchStmt(x)
	case *ast.BreakData:
		return []lir.Stmt{lir.Do(l.breakStmt(s))}
	case *ast.ContinueData:
		return []lir.Stmt{lir.Do(l.continueStmt(s))}
	case *ast.ReturnData:
		return []lir.Stmt{lir.Do(l.returnStmt(s, x))}
	case *ast.TryData:
		return l.tryStmt(x)
	case *ast.NullData:
		return nil
	case *ast.UnsupportedStmtData:
		code := diag.LowUnsupportedConstruct
		switch {
		case strings.Contains(x.What, "goto"):
			code = diag.LowGoto
		case strings.Contains(x.What, "case"):
			code = diag.LowCaseInNestedBlock
		}
		return []lir.Stmt{lir.Do(l.bail(s.Span, code, "%s", x.What))}
	}
	return []lir.Stmt{lir.Do(l.bail(s.Span, diag.LowUnsupportedConstruct, "%s statement", s.Kind))}
}

// localDecl declares one local. References become raw pointers to the
// referent; static locals move to a lazily initialized slot.
func (l *lowerer) localDecl(v ast.DeclID) []lir.Stmt {
	d, vd, ok := l.u.Var(v)
	if !ok {
		return nil
	}
	if vd.Storage == ast.StorageStaticLocal {
		l.staticLocal(v, d, vd)
		return nil
	}
	name := l.localName(v)
	if rt, ok := l.in.Lookup(d.Type); ok && rt.Kind == types.KindReference {
		return l.refLocal(v, d, vd, rt)
	}
	t := l.tm.Map(d.Type, d.Span)
	var lt *lir.Type
	if t.Kind != lir.TyInfer {
		lt = lir.TypeOf(t)
	}
	init := l.guarded(func() lir.Expr {
		if vd.Init != ast.NoExprID {
			return l.initValue(vd.Init, d.Type)
		}
		return l.defaultValue(d.Type, t)
	})
	l.fc.locals[v] = binding{name: name, kind: bindValue}
	return []lir.Stmt{lir.Let(name, lt, init)}
}

// refLocal binds `T& r = x;` as `let r = addr_of_mut!(x);`. A reference
// bound to a temporary keeps the temporary alive in its own binding.
func (l *lowerer) refLocal(v ast.DeclID, d *ast.Decl, vd *ast.VarData, rt types.Type) []lir.Stmt {
	name := l.localName(v)
	mut := !rt.Const || rt.RValue
	if vd.Init == ast.NoExprID {
		return []lir.Stmt{lir.Do(l.bail(d.Span, diag.LowUnsupportedConstruct, "reference `%s` without initializer", d.Name))}
	}
	var out []lir.Stmt
	var ptr lir.Expr
	init := vd.Init
	if ie := l.expr(init); ie != nil {
		if mv, ok := ie.Data.(*ast.MoveData); ok {
			init = mv.X
		}
	}
	if l.isPlaceExpr(init) || l.isDerefOrString(init) {
		ptr = l.guarded(func() lir.Expr { return l.ptrTo(init, mut) })
	} else {
		tmp := l.tmp("r")
		out = append(out, lir.Let(tmp, nil, l.guarded(func() lir.Expr { return l.initValue(init, rt.Elem) })))
		ptr = lir.AddrOfMut(lir.Ident(tmp))
		if !mut {
			ptr = lir.Mac("::core::ptr::addr_of", lir.Ident(tmp))
		}
	}
	l.fc.locals[v] = binding{name: name, kind: bindPtr}
	return append(out, lir.Let(name, nil, ptr))
}

func (l *lowerer) isDerefOrString(id ast.ExprID) bool {
	e := l.expr(id)
	if e == nil {
		return false
	}
	if u, ok := e.Data.(*ast.UnaryData); ok {
		return u.Op == ast.UnDeref
	}
	_, ok := l.stringLit(id)
	return ok
}

// staticLocal hoists a function-level static into a module slot with its
// own accessor; the initializer runs on first use.
func (l *lowerer) staticLocal(v ast.DeclID, d *ast.Decl, vd *ast.VarData) {
	base := fmt.Sprintf("%s_%s_%d", strings.TrimPrefix(l.names.Name(l.fc.fn), "r#"), d.Name, v)
	acc := "__sl_" + base
	t := l.tm.Map(d.Type, d.Span)
	if l.in.Kind(d.Type) == types.KindReference {
		l.bail(d.Span, diag.LowUnsupportedConstruct, "static reference `%s`", d.Name)
		return
	}
	outer := l.fc
	fc := l.newFnCtx(outer.fn)
	l.fc = fc
	var init lir.Expr
	if vd.Init != ast.NoExprID {
		init = l.initValue(vd.Init, d.Type)
	} else {
		init = l.defaultValue(d.Type, t)
	}
	if fc.unsafeUse {
		init = lir.Unsafe(init)
	}
	l.fc = outer
	if fc.skip {
		l.bail(fc.skipAt, fc.skipCode, "%s", fc.skipWhy)
		return
	}
	static, accessor := slotItems(acc, "__SL_"+strings.ToUpper(base), t, init)
	l.mod.Add(static)
	l.mod.Add(accessor)
	l.statics[v] = acc
}

func (l *lowerer) ifStmt(x *ast.IfData) []lir.Stmt {
	var pre []lir.Stmt
	if x.Init != ast.NoStmtID {
		pre = l.stmt(x.Init)
	}
	ie := &lir.IfExpr{
		Cond: l.guarded(func() lir.Expr { return l.cond(x.Cond) }),
		Then: l.block(x.Then),
	}
	if x.Else != ast.NoStmtID {
		es := l.u.Stmt(x.Else)
		if elif, ok := es.Data.(*ast.IfData); ok && elif.Init == ast.NoStmtID {
			if chain := l.ifStmt(elif); len(chain) == 1 {
				ie.Else = chain[0].(*lir.ExprStmt).X
			}
		} else {
			ie.Else = l.block(x.Else)
		}
	}
	if len(pre) > 0 {
		return []lir.Stmt{lir.Do(&lir.Block{Stmts: append(pre, lir.Do(ie))})}
	}
	return []lir.Stmt{lir.Do(ie)}
}

// pushLoop opens a loop or switch frame; popLoop returns it.
func (l *lowerer) pushLoop(f loopFrame) {
	f.tries = l.fc.tries
	l.fc.loops = append(l.fc.loops, f)
}

func (l *lowerer) popLoop() loopFrame {
	n := len(l.fc.loops) - 1
	f := l.fc.loops[n]
	l.fc.loops = l.fc.loops[:n]
	return f
}

// loopBody wraps a body in the `'cN: { }` block continue breaks out of,
// when some continue needed it.
func loopBody(f loopFrame, stmts []lir.Stmt) []lir.Stmt {
	if !f.contUsed {
		return stmts
	}
	return []lir.Stmt{lir.Do(&lir.Block{Label: f.cont, Stmts: stmts})}
}

func (l *lowerer) whileStmt(x *ast.WhileData) []lir.Stmt {
	lbl := l.fc.label("l")
	cond := l.guarded(func() lir.Expr { return l.cond(x.Cond) })
	l.pushLoop(loopFrame{label: lbl})
	body := l.blockStmts(x.Body)
	l.popLoop()
	return []lir.Stmt{lir.Do(&lir.WhileExpr{Label: lbl, Cond: cond, Body: &lir.Block{Stmts: body}})}
}

// doWhile is `'l: loop { 'c: { body } if !(cond) { break 'l; } }`.
func (l *lowerer) doWhile(x *ast.DoWhileData) []lir.Stmt {
	lbl, cont := l.fc.label("l"), l.fc.label("c")
	l.pushLoop(loopFrame{label: lbl, cont: cont})
	stmts := l.blockStmts(x.Body)
	f := l.popLoop()
	body := loopBody(f, stmts)
	cond := l.guarded(func() lir.Expr { return l.cond(x.Cond) })
	body = append(body, lir.Do(&lir.IfExpr{
		Cond: &lir.UnaryExpr{Op: "!", X: cond},
		Then: &lir.Block{Stmts: []lir.Stmt{lir.Do(&lir.BreakExpr{Label: lbl})}},
	}))
	return []lir.Stmt{lir.Do(&lir.LoopExpr{Label: lbl, Body: &lir.Block{Stmts: body}})}
}

// forStmt is `{ init; 'l: while cond { 'c: { body } step; } }`.
func (l *lowerer) forStmt(x *ast.ForData) []lir.Stmt {
	var outer []lir.Stmt
	if x.Init != ast.NoStmtID {
		outer = l.stmt(x.Init)
	}
	lbl, cont := l.fc.label("l"), l.fc.label("c")
	var cond lir.Expr
	if x.Cond != ast.NoExprID {
		cond = l.guarded(func() lir.Expr { return l.cond(x.Cond) })
	}
	l.pushLoop(loopFrame{label: lbl, cont: cont})
	stmts := l.blockStmts(x.Body)
	f := l.popLoop()
	body := loopBody(f, stmts)
	if x.Inc != ast.NoExprID {
		body = append(body, lir.Do(l.guarded(func() lir.Expr { return l.effect(x.Inc) })))
	}
	var loop lir.Expr
	if cond != nil {
		loop = &lir.WhileExpr{Label: lbl, Cond: cond, Body: &lir.Block{Stmts: body}}
	} else {
		loop = &lir.LoopExpr{Label: lbl, Body: &lir.Block{Stmts: body}}
	}
	if len(outer) == 0 {
		return []lir.Stmt{lir.Do(loop)}
	}
	return []lir.Stmt{lir.Do(&lir.Block{Stmts: append(outer, lir.Do(loop))})}
}

// rangeFor iterates arrays and containers. By-value elements are cloned;
// reference elements borrow.
func (l *lowerer) rangeFor(s *ast.Stmt, x *ast.RangeForData) []lir.Stmt {
	d := l.u.Decl(x.Var)
	rt := l.in.StripRef(l.typeOf(x.Range))
	if info, ok := l.in.StdInfo(rt); ok && (info.Template == "string" || strings.HasPrefix(info.Template, "map") || strings.HasPrefix(info.Template, "unordered_map")) {
		return []lir.Stmt{lir.Do(l.bail(s.Span, diag.LowUnsupportedConstruct, "range-for over std::%s", info.Template))}
	}
	name := l.localName(x.Var)
	pat := name
	var iter lir.Expr
	vt, _ := l.in.Lookup(d.Type)
	iter = l.guarded(func() lir.Expr {
		src := l.place(x.Range)
		switch {
		case vt.Kind == types.KindReference && !vt.Const:
			return lir.MCall(src, "iter_mut")
		case vt.Kind == types.KindReference:
			return lir.MCall(src, "iter")
		}
		return lir.MCall(lir.MCall(src, "iter"), "cloned")
	})
	if vt.Kind == types.KindReference {
		l.fc.locals[x.Var] = binding{name: name, kind: bindRef}
	} else {
		pat = "mut " + name
		l.fc.locals[x.Var] = binding{name: name, kind: bindValue}
	}
	lbl := l.fc.label("l")
	l.pushLoop(loopFrame{label: lbl})
	body := l.blockStmts(x.Body)
	l.popLoop()
	return []lir.Stmt{lir.Do(&lir.ForExpr{Label: lbl, Pat: pat, Iter: iter, Body: &lir.Block{Stmts: body}})}
}

// switchStmt keeps fallthrough by numbering the sections and entering at
// the selected one:
//
//	's: { let __c = cond; let __e = if __c == 1 { 0 } else { n };
//	      if __e <= 0 { ... } if __e <= 1 { ... } }
func (l *lowerer) switchStmt(x *ast.SwitchData) []lir.Stmt {
	lbl := l.fc.label("s")
	c, entry := l.tmp("c"), l.tmp("e")
	stmts := []lir.Stmt{lir.Let(c, nil, l.guarded(func() lir.Expr { return l.value(x.Cond) }))}

	def := len(x.Cases)
	for i, sc := range x.Cases {
		if sc.Default {
			def = i
		}
	}
	var sel lir.Expr = lir.Lit(fmt.Sprint(def))
	for i := len(x.Cases) - 1; i >= 0; i-- {
		sc := x.Cases[i]
		if len(sc.Values) == 0 {
			continue
		}
		var match lir.Expr
		for _, v := range sc.Values {
			eq := lir.Bin("==", lir.Ident(c), l.guarded(func() lir.Expr { return l.value(v) }))
			if match == nil {
				match = eq
			} else {
				match = lir.Bin("||", match, eq)
			}
		}
		ie := &lir.IfExpr{Cond: match, Then: lir.Seq(nil, lir.Lit(fmt.Sprint(i)))}
		if next, ok := sel.(*lir.IfExpr); ok {
			ie.Else = next
		} else {
			ie.Else = lir.Seq(nil, sel)
		}
		sel = ie
	}
	stmts = append(stmts, lir.Let(entry, nil, sel))

	l.pushLoop(loopFrame{label: lbl, swtch: true})
	for i, sc := range x.Cases {
		var body []lir.Stmt
		for _, st := range sc.Body {
			body = append(body, l.stmt(st)...)
		}
		stmts = append(stmts, lir.Do(&lir.IfExpr{
			Cond: lir.Bin("<=", lir.Ident(entry), lir.Lit(fmt.Sprint(i))),
			Then: &lir.Block{Stmts: body},
		}))
	}
	l.popLoop()
	return []lir.Stmt{lir.Do(&lir.Block{Label: lbl, Stmts: stmts})}
}

// derivedOf returns a record of the unit that derives from rec.
func (l *lowerer) derivedOf(rec types.TypeID) (types.TypeID, bool) {
	if l.in.Kind(rec) != types.KindRecord {
		return types.NoTypeID, false
	}
	for _, r := range l.in.Records() {
		if l.in.IsDerivedFrom(r, rec) {
			return r, true
		}
	}
	return types.NoTypeID, false
}

func (l *lowerer) breakStmt(s *ast.Stmt) lir.Expr {
	fc := l.fc
	if len(fc.loops) == 0 {
		return l.bail(s.Span, diag.LowUnsupportedConstruct, "break outside a loop")
	}
	f := fc.loops[len(fc.loops)-1]
	if f.tries != fc.tries {
		return l.bail(s.Span, diag.LowUnsupportedConstruct, "break out of a try block")
	}
	return &lir.BreakExpr{Label: f.label}
}

func (l *lowerer) continueStmt(s *ast.Stmt) lir.Expr {
	fc := l.fc
	for i := len(fc.loops) - 1; i >= 0; i-- {
		f := &fc.loops[i]
		if f.swtch {
			continue
		}
		if f.tries != fc.tries {
			return l.bail(s.Span, diag.LowUnsupportedConstruct, "continue out of a try block")
		}
		if f.cont == "" {
			return &lir.ContinueExpr{Label: f.label}
		}
		f.contUsed = true
		return &lir.BreakExpr{Label: f.cont}
	}
	return l.bail(s.Span, diag.LowUnsupportedConstruct, "continue outside a loop")
}

func (l *lowerer) returnStmt(s *ast.Stmt, x *ast.ReturnData) lir.Expr {
	fc := l.fc
	if fc.tries > 0 {
		return l.bail(s.Span, diag.LowReturnInTry, "return inside a try block")
	}
	if fc.bodyLabel != "" {
		return &lir.BreakExpr{Label: fc.bodyLabel}
	}
	if x.Value == ast.NoExprID {
		return &lir.ReturnExpr{}
	}
	v := l.guarded(func() lir.Expr {
		rt, _ := l.in.Lookup(fc.result)
		if rt.Kind == types.KindReference {
			mut := !rt.Const || rt.RValue
			if fc.retPtr {
				return l.ptrTo(x.Value, mut)
			}
			if !l.isPlaceExpr(x.Value) {
				return l.bail(s.Span, diag.LowUnsupportedConstruct, "returning a reference to a temporary")
			}
			return lir.Borrow(l.place(x.Value), mut)
		}
		if ref, ok := l.expr(x.Value).Data.(*ast.DeclRefData); ok {
			if b, ok := fc.locals[ref.Decl]; ok && b.kind == bindValue && l.in.StripRef(l.typeOf(x.Value)) == fc.result {
				// returning a local moves it
				return lir.Ident(b.name)
			}
		}
		if fc.result == types.NoTypeID || l.in.Kind(fc.result) == types.KindVoid {
			return l.effect(x.Value)
		}
		return l.initValue(x.Value, fc.result)
	})
	if l.in.Kind(fc.result) == types.KindVoid {
		return &lir.Block{Stmts: []lir.Stmt{lir.Do(v), lir.Do(&lir.ReturnExpr{})}}
	}
	return &lir.ReturnExpr{Value: v}
}

// tryStmt runs the body under ::cxx_rt::try_catch and matches the thrown
// value against each handler in order; an unmatched exception is rethrown.
func (l *lowerer) tryStmt(x *ast.TryData) []lir.Stmt {
	fc := l.fc
	// handlers match the thrown type exactly, so a base class handler would
	// miss derived exceptions
	for _, h := range x.Handlers {
		if sub, ok := l.derivedOf(l.in.StripRef(h.Type)); ok {
			return []lir.Stmt{lir.Do(l.bail(h.Span, diag.LowUnsupportedConstruct,
				"catch of `%s`, which `%s` derives from", l.in.Format(l.in.StripRef(h.Type)), l.in.Format(sub)))}
		}
	}
	fc.tries++
	body := l.blockStmts(x.Body)
	fc.tries--
	run := lir.CallPath("::cxx_rt::try_catch", &lir.Closure{Body: &lir.Block{Stmts: body}})
	ex := l.tmp("ex")

	var chain lir.Expr = lir.Seq([]lir.Stmt{lir.Do(lir.CallPath("::cxx_rt::rethrow", lir.Ident(ex)))}, nil)
	for i := len(x.Handlers) - 1; i >= 0; i-- {
		h := x.Handlers[i]
		fc.exVars = append(fc.exVars, ex)
		if h.Type == types.NoTypeID {
			chain = l.block(h.Body)
			fc.exVars = fc.exVars[:len(fc.exVars)-1]
			continue
		}
		c := l.tmp("c")
		var stmts []lir.Stmt
		if h.Var != ast.NoDeclID {
			name := l.localName(h.Var)
			if l.in.Kind(h.Type) == types.KindReference {
				stmts = append(stmts, lir.Let(name, nil, lir.Ident(c)))
				fc.locals[h.Var] = binding{name: name, kind: bindRef}
			} else {
				stmts = append(stmts, lir.Let(name, nil, lir.MCall(lir.Deref(lir.Ident(c)), "clone")))
				fc.locals[h.Var] = binding{name: name, kind: bindValue}
			}
		}
		stmts = append(stmts, l.blockStmts(h.Body)...)
		fc.exVars = fc.exVars[:len(fc.exVars)-1]
		caught := l.rust(l.in.StripRef(h.Type))
		if l.in.Kind(l.in.StripRef(h.Type)) == types.KindRecord {
			caught = l.valueType(l.in.StripRef(h.Type))
		}
		ie := &lir.IfExpr{
			Pat:  "Some(" + c + ")",
			Cond: &lir.MethodCall{Recv: lir.Ident(ex), Name: "downcast_mut", Turbofish: []lir.Type{caught}},
			Then: &lir.Block{Stmts: stmts},
		}
		ie.Else = chain
		chain = ie
	}
	then, ok := chain.(*lir.Block)
	if !ok {
		then = &lir.Block{Stmts: []lir.Stmt{lir.Do(chain)}}
	}
	return []lir.Stmt{lir.Do(&lir.IfExpr{Pat: "Err(mut " + ex + ")", Cond: run, Then: then})}
}
