package lower

import (
	"strings"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/layout"
	"cxxlower/internal/lir"
	"cxxlower/internal/source"
	"cxxlower/internal/symbols"
	"cxxlower/internal/types"
)

var (
	thisParam = lir.Param{Name: "this", Type: lir.RawPtr(lir.Path("Self"), true)}
	thisIdent = lir.Ident("this")
)

// constructors emits an `__init*` / `new*` pair per user constructor, or the
// implicit default pair when the record declares none.
func (l *lowerer) constructors(c *classCtx) {
	if len(c.ctors) == 0 {
		l.implicitCtor(c)
		return
	}
	for _, id := range c.ctors {
		d, fd, _ := l.u.Func(id)
		switch {
		case fd.Deleted:
			continue
		case fd.Defaulted && (l.isCopyCtor(fd, c.t) || l.isMoveCtor(fd, c.t)):
			// covered by __init_copy
			continue
		case fd.Body == ast.NoStmtID && !fd.Defaulted:
			continue
		}
		l.lowerCtor(c, id, d, fd)
	}
	if def, implicit, ok := l.defaultCtor(c.t); ok && !implicit && !l.skipped[def] {
		if _, fd, _ := l.u.Func(def); len(fd.Params) > 0 {
			l.defaultWrappers(c, def)
		}
	}
}

func (l *lowerer) lowerCtor(c *classCtx, id ast.DeclID, d *ast.Decl, fd *ast.FunctionData) {
	fc := l.newFnCtx(id)
	fc.rec, fc.self = c.t, selfPtr
	prev := l.fc
	l.fc = fc
	defer func() { l.fc = prev }()

	params := l.params(fd)
	init := &lir.Func{
		Name:   l.names.InitName(id),
		Pub:    true,
		Unsafe: true,
		Params: append([]lir.Param{thisParam}, params...),
		Origin: l.u.QualName(id),
	}
	var body []lir.Stmt
	if l.opts.StubsOnly {
		body = []lir.Stmt{lir.Do(lir.Mac("unimplemented"))}
	} else {
		body = l.ctorPrologue(c, fd, d.Span)
		if fd.Body != ast.NoStmtID {
			body = append(body, l.blockStmts(fd.Body)...)
		}
	}
	init.Body = &lir.Block{Stmts: body}
	var vinits []lir.Stmt
	if c.cl.HasVBases() {
		vinits = l.vbaseInits(c, fd, d.Span)
	}
	if l.finishSkip(id, fc) {
		l.skipped[id] = true
		l.mod.Add(l.skipNote(id))
		return
	}
	c.inits = append(c.inits, init)
	l.newWrapper(c, l.names.Name(id), init.Name, params, vinits)
	l.stats.Lowered++
}

// ctorPrologue initializes bases in base-list order, then members in
// declaration order, then installs the vtable pointers.
func (l *lowerer) ctorPrologue(c *classCtx, fd *ast.FunctionData, at source.Span) []lir.Stmt {
	if len(fd.Inits) == 1 && fd.Inits[0].Delegating {
		ci := fd.Inits[0]
		args := append([]lir.Expr{thisIdent}, l.callArgs(ci.Ctor, ci.Args, ci.Span)...)
		return []lir.Stmt{lir.Do(lir.CallPath("Self::"+l.names.InitName(ci.Ctor), args...))}
	}
	var out []lir.Stmt
	for _, b := range c.cl.Bases {
		ptr := lir.Cast(lir.AddrOfMut(lir.Dot(lir.Deref(thisIdent), b.Field)), lir.RawPtr(l.recordType(b.Type), true))
		out = append(out, lir.Do(l.baseInit(b.Type, ptr, baseInit(fd.Inits, b.Type), at)))
	}
	for _, f := range c.cl.Fields {
		out = append(out, l.fieldInit(f, fieldInit(fd.Inits, ast.DeclID(f.Decl))))
	}
	if c.cl.Polymorphic {
		out = append(out, lir.Do(lir.CallPath("Self::__set_vptrs", thisIdent)))
	}
	return out
}

func baseInit(inits []ast.CtorInit, t types.TypeID) *ast.CtorInit {
	for i := range inits {
		if inits[i].Base == t {
			return &inits[i]
		}
	}
	return nil
}

func fieldInit(inits []ast.CtorInit, f ast.DeclID) *ast.CtorInit {
	for i := range inits {
		if inits[i].Field == f && f != ast.NoDeclID {
			return &inits[i]
		}
	}
	return nil
}

// baseInit constructs the base subobject at ptr.
func (l *lowerer) baseInit(bt types.TypeID, ptr lir.Expr, ci *ast.CtorInit, at source.Span) lir.Expr {
	path := l.recordType(bt).Name
	if ci != nil && ci.Ctor != ast.NoDeclID {
		if l.skipped[ci.Ctor] {
			return l.bail(ci.Span, diag.LowUnsupportedConstruct, "base constructor `%s` was skipped", l.u.QualName(ci.Ctor))
		}
		if _, fd, _ := l.u.Func(ci.Ctor); fd.Defaulted && l.isCopyCtor(fd, bt) && len(ci.Args) == 1 {
			return lir.CallPath(path+"::__init_copy", ptr, l.borrow(ci.Args[0], false))
		}
		args := append([]lir.Expr{ptr}, l.callArgs(ci.Ctor, ci.Args, ci.Span)...)
		return lir.CallPath(path+"::"+l.names.InitName(ci.Ctor), args...)
	}
	if ci != nil && len(ci.Args) == 1 {
		return lir.CallPath(path+"::__init_copy", ptr, l.borrow(ci.Args[0], false))
	}
	name, ok := l.defaultInit(bt)
	if !ok {
		return l.bail(at, diag.LowUnsupportedConstruct, "base `%s` has no default constructor", l.in.Format(bt))
	}
	return lir.CallPath(path+"::"+name, ptr)
}

// fieldInit writes one member through `this`. Init-list entries win over
// default member initializers; members with neither are value-initialized.
func (l *lowerer) fieldInit(f layout.FieldSlot, ci *ast.CtorInit) lir.Stmt {
	fd := l.u.Decl(ast.DeclID(f.Decl))
	data, _ := fd.Data.(*ast.FieldData)
	var v lir.Expr
	switch {
	case ci != nil:
		v = l.memberInit(f.Type, ci.Ctor, ci.Args, ci.Span)
	case data != nil && data.Init != ast.NoExprID:
		v = l.memberInit(f.Type, ast.NoDeclID, []ast.ExprID{data.Init}, fd.Span)
	default:
		v = l.defaultValue(f.Type, l.quiet.Map(f.Type, fd.Span))
	}
	if l.wrapped(ast.DeclID(f.Decl)) {
		v = lir.CallPath("::core::mem::ManuallyDrop::new", v)
	}
	place := lir.Dot(lir.Deref(thisIdent), symbols.Ident(f.Name))
	return lir.Do(lir.MCall(lir.AddrOfMut(place), "write", v))
}

func (l *lowerer) memberInit(t types.TypeID, ctor ast.DeclID, args []ast.ExprID, at source.Span) lir.Expr {
	if rt, ok := l.in.Lookup(t); ok && rt.Kind == types.KindReference && len(args) == 1 {
		return l.ptrTo(args[0], !rt.Const || rt.RValue)
	}
	switch {
	case ctor != ast.NoDeclID && l.in.Kind(t) == types.KindRecord:
		return l.construct(t, ctor, args, at)
	case len(args) == 0:
		return l.defaultValue(t, l.quiet.Map(t, at))
	case len(args) == 1:
		return l.initValue(args[0], t)
	}
	return l.construct(t, ctor, args, at)
}

// vbaseInits constructs every virtual base; only the complete-object
// constructor runs them.
func (l *lowerer) vbaseInits(c *classCtx, fd *ast.FunctionData, at source.Span) []lir.Stmt {
	var out []lir.Stmt
	for _, v := range c.cl.VBases {
		ptr := lir.Cast(lir.AddrOfMut(lir.Dot(lir.Deref(thisIdent), v.Field)), lir.RawPtr(l.recordType(v.Type), true))
		var ci *ast.CtorInit
		if fd != nil {
			ci = baseInit(fd.Inits, v.Type)
		}
		out = append(out, lir.Do(l.baseInit(v.Type, ptr, ci, at)))
	}
	return out
}

// newWrapper adds the by-value constructor `name` around initializer init.
// Records with virtual bases get it on the complete-object struct, where it
// also sets the offset slots, builds the virtual bases and installs their
// vtables before the non-virtual part runs.
func (l *lowerer) newWrapper(c *classCtx, name, init string, params []lir.Param, vinits []lir.Stmt) {
	fwd := make([]lir.Expr, 0, len(params)+1)
	for _, p := range params {
		fwd = append(fwd, lir.Ident(strings.TrimPrefix(p.Name, "mut ")))
	}
	stmts := []lir.Stmt{lir.Let("__v", nil, lir.CallPath("::core::mem::MaybeUninit::<Self>::uninit"))}
	f := &lir.Func{Name: name, Pub: true, Params: params, Result: lir.Path("Self")}
	if !c.cl.HasVBases() {
		args := append([]lir.Expr{lir.MCall(lir.Ident("__v"), "as_mut_ptr")}, fwd...)
		stmts = append(stmts, lir.Do(lir.CallPath("Self::"+init, args...)))
		f.Body = lir.Seq(nil, &lir.Block{Unsafe: true, Stmts: stmts, Tail: lir.MCall(lir.Ident("__v"), "assume_init")})
		c.inits = append(c.inits, f)
		return
	}
	stmts = append(stmts,
		&lir.LetStmt{Name: "this", Init: lir.MCall(lir.Ident("__v"), "as_mut_ptr")},
		lir.Do(lir.CallPath("Self::__set_vboffs", thisIdent)))
	stmts = append(stmts, vinits...)
	stmts = append(stmts, lir.Do(lir.CallPath("Self::__set_vbase_vptrs", thisIdent)))
	sub := lir.Cast(lir.AddrOfMut(lir.Dot(lir.Deref(thisIdent), "__sub")), lir.RawPtr(l.recordType(c.t), true))
	stmts = append(stmts, lir.Do(lir.CallPath(c.name+"::"+init, append([]lir.Expr{sub}, fwd...)...)))
	f.Body = lir.Seq(nil, &lir.Block{Unsafe: true, Stmts: stmts, Tail: lir.MCall(lir.Ident("__v"), "assume_init")})
	c.cim.Funcs = append(c.cim.Funcs, f)
}

// implicitCtor is the default constructor of a record that declares none.
// When a member cannot be value-initialized the record simply has no
// default constructor.
func (l *lowerer) implicitCtor(c *classCtx) {
	fc := l.newFnCtx(c.id)
	fc.rec, fc.self = c.t, selfPtr
	prev := l.fc
	l.fc = fc
	defer func() { l.fc = prev }()

	empty := &ast.FunctionData{Kind: ast.FuncCtor}
	init := &lir.Func{
		Name:   "__init",
		Pub:    true,
		Unsafe: true,
		Params: []lir.Param{thisParam},
		Body:   &lir.Block{Stmts: l.ctorPrologue(c, empty, c.d.Span)},
	}
	var vinits []lir.Stmt
	if c.cl.HasVBases() {
		vinits = l.vbaseInits(c, nil, c.d.Span)
	}
	if fc.skip {
		l.noDefault[c.t] = true
		return
	}
	c.inits = append(c.inits, init)
	l.newWrapper(c, "new", "__init", nil, vinits)
}

// defaultWrappers make a constructor whose parameters all have defaults
// callable without arguments.
func (l *lowerer) defaultWrappers(c *classCtx, def ast.DeclID) {
	fc := l.newFnCtx(def)
	fc.rec, fc.self = c.t, selfPtr
	prev := l.fc
	l.fc = fc
	defer func() { l.fc = prev }()

	d := l.u.Decl(def)
	args := append([]lir.Expr{thisIdent}, l.callArgs(def, nil, d.Span)...)
	init := &lir.Func{
		Name:   "__init_default",
		Pub:    true,
		Unsafe: true,
		Params: []lir.Param{thisParam},
		Body:   lir.Seq([]lir.Stmt{lir.Do(lir.CallPath("Self::"+l.names.InitName(def), args...))}, nil),
	}
	var vinits []lir.Stmt
	if c.cl.HasVBases() {
		vinits = l.vbaseInits(c, nil, d.Span)
	}
	if fc.skip {
		l.noDefault[c.t] = true
		return
	}
	c.inits = append(c.inits, init)
	l.newWrapper(c, "__new_default", "__init_default", nil, vinits)
}

// copyInit emits `__init_copy`, the in-place copy constructor. A user copy
// constructor is forwarded to; otherwise members are copied one by one.
func (l *lowerer) copyInit(c *classCtx) {
	if !l.copyable(c.t) {
		return
	}
	other := lir.Ident("other")
	f := &lir.Func{
		Name:   "__init_copy",
		Pub:    true,
		Unsafe: true,
		Params: []lir.Param{thisParam, {Name: "other", Type: lir.Ref(lir.Path("Self"), false)}},
	}
	if cc, fd := l.copyCtor(c.t); cc != ast.NoDeclID && !fd.Defaulted {
		pt, _ := l.in.Lookup(l.u.Decl(fd.Params[0]).Type)
		if l.skipped[cc] || !pt.Const || len(fd.Params) > 1 {
			return
		}
		f.Body = lir.Seq([]lir.Stmt{lir.Do(lir.CallPath("Self::"+l.names.InitName(cc), thisIdent, other))}, nil)
		c.inits = append(c.inits, f)
		c.copy = true
		return
	}
	var stmts []lir.Stmt
	for _, b := range c.cl.Bases {
		ptr := lir.Cast(lir.AddrOfMut(lir.Dot(lir.Deref(thisIdent), b.Field)), lir.RawPtr(l.recordType(b.Type), true))
		src := lir.Borrow(lir.Deref(lir.Dot(other, b.Field)), false)
		stmts = append(stmts, lir.Do(lir.CallPath(l.recordType(b.Type).Name+"::__init_copy", ptr, src)))
	}
	for _, fs := range c.cl.Fields {
		name := symbols.Ident(fs.Name)
		var v lir.Expr = lir.Dot(other, name)
		fd := l.u.Decl(ast.DeclID(fs.Decl))
		if t := l.fieldType(fs.Type, fd); !t.Copy() {
			v = lir.MCall(v, "clone")
		}
		stmts = append(stmts, lir.Do(lir.MCall(lir.AddrOfMut(lir.Dot(lir.Deref(thisIdent), name)), "write", v)))
	}
	if c.cl.Polymorphic {
		stmts = append(stmts, lir.Do(lir.CallPath("Self::__set_vptrs", thisIdent)))
	}
	f.Body = &lir.Block{Stmts: stmts}
	c.inits = append(c.inits, f)
	c.copy = true
}

// cloneImpl routes Clone through __init_copy.
func (l *lowerer) cloneImpl(c *classCtx) *lir.Impl {
	if !c.copy {
		return nil
	}
	stmts := []lir.Stmt{lir.Let("__v", nil, lir.CallPath("::core::mem::MaybeUninit::<Self>::uninit"))}
	self := lir.Ident("self")
	if !c.cl.HasVBases() {
		stmts = append(stmts, lir.Do(lir.CallPath("Self::__init_copy", lir.MCall(lir.Ident("__v"), "as_mut_ptr"), self)))
	} else {
		stmts = append(stmts,
			&lir.LetStmt{Name: "this", Init: lir.MCall(lir.Ident("__v"), "as_mut_ptr")},
			lir.Do(lir.CallPath("Self::__set_vboffs", thisIdent)))
		for _, v := range c.cl.VBases {
			vt := l.recordType(v.Type)
			ptr := lir.Cast(lir.AddrOfMut(lir.Dot(lir.Deref(thisIdent), v.Field)), lir.RawPtr(vt, true))
			src := lir.Borrow(lir.Deref(lir.Dot(self, v.Field)), false)
			stmts = append(stmts, lir.Do(lir.CallPath(vt.Name+"::__init_copy", ptr, src)))
		}
		stmts = append(stmts, lir.Do(lir.CallPath("Self::__set_vbase_vptrs", thisIdent)))
		sub := lir.Cast(lir.AddrOfMut(lir.Dot(lir.Deref(thisIdent), "__sub")), lir.RawPtr(l.recordType(c.t), true))
		src := lir.Borrow(lir.Deref(lir.Dot(self, "__sub")), false)
		stmts = append(stmts, lir.Do(lir.CallPath(c.name+"::__init_copy", sub, src)))
	}
	f := &lir.Func{
		Name:   "clone",
		Self:   lir.SelfRef,
		Result: lir.Path("Self"),
		Body:   lir.Seq(nil, &lir.Block{Unsafe: true, Stmts: stmts, Tail: lir.MCall(lir.Ident("__v"), "assume_init")}),
	}
	return &lir.Impl{Target: c.valueName(), Trait: "Clone", Funcs: []*lir.Func{f}}
}
