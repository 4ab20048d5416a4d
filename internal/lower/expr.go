package lower

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
	"cxxlower/internal/source"
	"cxxlower/internal/symbols"
	"cxxlower/internal/types"
)

func (l *lowerer) expr(id ast.ExprID) *ast.Expr {
	if id == ast.NoExprID {
		return nil
	}
	return l.u.Expr(id)
}

func (l *lowerer) typeOf(id ast.ExprID) types.TypeID {
	if e := l.expr(id); e != nil {
		return e.Type
	}
	return types.NoTypeID
}

// rust maps t without reporting; the declaration that owns t already did.
func (l *lowerer) rust(t types.TypeID) lir.Type {
	return l.quiet.Map(t, source.Span{})
}

func (l *lowerer) unsafeOp() {
	if l.fc != nil {
		l.fc.unsafeUse = true
	}
}

func (l *lowerer) tmp(prefix string) string {
	if l.fc == nil {
		return "__" + prefix
	}
	return l.fc.tmp(prefix)
}

// guarded lowers one statement-level expression and wraps it in an unsafe
// block when it dereferenced a raw pointer.
func (l *lowerer) guarded(f func() lir.Expr) lir.Expr {
	fc := l.fc
	if fc == nil {
		return f()
	}
	outer := fc.unsafeUse
	fc.unsafeUse = false
	x := f()
	used := fc.unsafeUse
	fc.unsafeUse = outer || used
	if used {
		return lir.Unsafe(x)
	}
	return x
}

// --- places ----------------------------------------------------------------

// isPlaceExpr reports expressions that designate an object: lvalues plus
// reference conversions of lvalues.
func (l *lowerer) isPlaceExpr(id ast.ExprID) bool {
	e := l.expr(id)
	if e == nil {
		return false
	}
	if e.LValue {
		return true
	}
	switch x := e.Data.(type) {
	case *ast.CastData:
		if l.in.Kind(e.Type) == types.KindPointer {
			return false
		}
		switch x.Kind {
		case ast.CastDerivedToBase, ast.CastBaseToDerived, ast.CastNoOp, ast.CastConst:
			return l.isPlaceExpr(x.X)
		}
	case *ast.StdMemberData:
		return true
	}
	return false
}

// place lowers an expression that designates an object.
func (l *lowerer) place(id ast.ExprID) lir.Expr {
	e := l.expr(id)
	if e == nil {
		return l.bail(source.Span{}, diag.LowUnsupportedConstruct, "missing expression")
	}
	switch x := e.Data.(type) {
	case *ast.DeclRefData:
		return l.varPlace(x.Decl, e.Span)
	case *ast.MemberData:
		return l.memberPlace(e, x)
	case *ast.StdMemberData:
		return l.stdField(e, x)
	case *ast.UnaryData:
		switch x.Op {
		case ast.UnDeref:
			return l.derefPlace(x.X)
		case ast.UnPreInc, ast.UnPreDec:
			eff := l.incr(x.X, x.Op == ast.UnPreInc)
			return lir.Deref(&lir.Block{Stmts: []lir.Stmt{lir.Do(eff)}, Tail: lir.Borrow(l.place(x.X), true)})
		}
	case *ast.IndexData:
		return l.indexPlace(e, x)
	case *ast.CallData, *ast.OpCallData:
		r, k := l.callOf(id)
		return l.callPlace(r, k)
	case *ast.CastData:
		switch x.Kind {
		case ast.CastDerivedToBase:
			return l.basePlace(l.place(x.X), l.typeOf(x.X), e.Type)
		case ast.CastBaseToDerived:
			ptr := lir.Cast(lir.Mac("::core::ptr::addr_of", l.place(x.X)), lir.RawPtr(l.recordType(l.typeOf(x.X)), true))
			dp, ok := l.downcastPtr(ptr, l.typeOf(x.X), e.Type)
			if !ok {
				return l.bail(e.Span, diag.LowUnsupportedConstruct, "static_cast from virtual base `%s`", l.in.Format(l.typeOf(x.X)))
			}
			l.unsafeOp()
			return lir.Deref(dp)
		case ast.CastNoOp, ast.CastLValueToRValue, ast.CastConst:
			return l.place(x.X)
		}
	case *ast.BinaryData:
		switch {
		case x.Op.IsAssign():
			eff := l.assign(e, x)
			return lir.Deref(&lir.Block{Stmts: []lir.Stmt{lir.Do(eff)}, Tail: lir.Borrow(l.place(x.X), true)})
		case x.Op == ast.BinComma:
			return lir.Deref(&lir.Block{Stmts: []lir.Stmt{lir.Do(l.effect(x.X))}, Tail: lir.Borrow(l.place(x.Y), true)})
		}
	case *ast.ConditionalData:
		if l.isPlaceExpr(x.Then) && l.isPlaceExpr(x.Else) {
			return lir.Deref(&lir.IfExpr{
				Cond: l.cond(x.Cond),
				Then: lir.Seq(nil, lir.Borrow(l.place(x.Then), true)),
				Else: lir.Seq(nil, lir.Borrow(l.place(x.Else), true)),
			})
		}
	}
	if !e.LValue {
		// temporaries: method calls and field reads on rvalues are fine in Rust
		return l.rvalue(id, e)
	}
	return l.bail(e.Span, diag.LowUnsupportedConstruct, "%s expression used as an object", e.Kind)
}

// varPlace is the place a variable, parameter or enumerator names.
func (l *lowerer) varPlace(id ast.DeclID, at source.Span) lir.Expr {
	if l.fc != nil {
		if b, ok := l.fc.locals[id]; ok {
			switch b.kind {
			case bindRef:
				return lir.Deref(lir.Ident(b.name))
			case bindPtr:
				l.unsafeOp()
				return lir.Deref(lir.Ident(b.name))
			}
			return lir.Ident(b.name)
		}
	}
	d := l.u.Decl(id)
	if d == nil {
		return l.bail(at, diag.LowUnsupportedConstruct, "unresolved reference")
	}
	switch x := d.Data.(type) {
	case *ast.VarData:
		if x.Storage == ast.StorageLocal {
			return l.bail(at, diag.LowUnsupportedConstruct, "local `%s` used outside its function", d.Name)
		}
		return l.globalRef(id, x)
	case *ast.EnumeratorData:
		return lir.Ident(l.enumeratorPath(id))
	case *ast.ParamData:
		return l.bail(at, diag.LowUnsupportedConstruct, "parameter `%s` used outside its function", d.Name)
	}
	return l.bail(at, diag.LowUnsupportedConstruct, "`%s` used as a value", l.u.QualName(id))
}

// memberPlace resolves obj.f / p->f: the object, then the base subobject
// that declares f, then the field itself.
func (l *lowerer) memberPlace(e *ast.Expr, m *ast.MemberData) lir.Expr {
	md := l.u.Decl(m.Member)
	if md == nil {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "unresolved member")
	}
	if vd, ok := md.Data.(*ast.VarData); ok {
		return l.globalRef(m.Member, vd)
	}
	if md.Kind != ast.DeclField {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "member function `%s` used as a value", md.Name)
	}
	_, owner := l.recordOf(m.Member)
	obj, static := l.recvPlace(m)
	obj = l.basePlace(obj, static, owner)
	var f lir.Expr = lir.Dot(dotBase(obj), symbols.Ident(md.Name))
	switch {
	case l.in.Kind(md.Type) == types.KindReference:
		l.unsafeOp()
		f = lir.Deref(f)
	case l.wrapped(m.Member):
		f = lir.Deref(f)
	}
	return f
}

// recvPlace is the object a member access starts from and its static type.
func (l *lowerer) recvPlace(m *ast.MemberData) (lir.Expr, types.TypeID) {
	if m.Base == ast.NoExprID {
		return l.thisPlace(), l.thisRecord()
	}
	be := l.expr(m.Base)
	if !m.Arrow {
		return l.place(m.Base), be.Type
	}
	static, _ := l.in.Pointee(be.Type)
	if _, ok := be.Data.(*ast.ThisData); ok {
		return l.thisPlace(), static
	}
	l.unsafeOp()
	return lir.Deref(l.value(m.Base)), static
}

func (l *lowerer) thisRecord() types.TypeID {
	if l.fc == nil {
		return types.NoTypeID
	}
	return l.fc.rec
}

// basePlace walks from an object of type from to its base subobject to.
// Non-virtual bases are fields; virtual bases go through the accessor.
func (l *lowerer) basePlace(place lir.Expr, from, to types.TypeID) lir.Expr {
	if from == to || to == types.NoTypeID || l.in.Kind(from) != types.KindRecord {
		return place
	}
	cl := l.layoutOf(from)
	if cl == nil {
		return place
	}
	path, vb, ok := cl.BasePath(to)
	if !ok {
		return place
	}
	if vb == types.NoTypeID {
		for _, st := range path {
			place = lir.Deref(lir.Dot(dotBase(place), st.Field))
		}
		return place
	}
	vs, _ := cl.VBase(vb)
	l.unsafeOp()
	ptr := lir.Cast(lir.Mac("::core::ptr::addr_of", place), lir.RawPtr(l.recordType(from), true))
	acc := lir.CallPath(l.recordType(from).Name+"::"+vs.Field, ptr)
	return l.basePlace(lir.Deref(acc), vb, to)
}

// dotBase lets `(*self).f` print as `self.f`.
func dotBase(place lir.Expr) lir.Expr {
	if u, ok := place.(*lir.UnaryExpr); ok && u.Op == "*" {
		if p, ok := u.X.(*lir.PathExpr); ok && p.Text == "self" {
			return u.X
		}
	}
	return place
}

func (l *lowerer) thisPlace() lir.Expr {
	fc := l.fc
	switch {
	case fc == nil:
	case fc.thisVar != "":
		l.unsafeOp()
		return lir.Deref(lir.Ident(fc.thisVar))
	case fc.self == selfPtr:
		l.unsafeOp()
		return lir.Deref(thisIdent)
	case fc.self == selfMut, fc.self == selfConst:
		return lir.Deref(lir.Ident("self"))
	}
	return l.bail(source.Span{}, diag.LowUnsupportedConstruct, "`this` outside a member function")
}

func (l *lowerer) thisPtr() lir.Expr {
	fc := l.fc
	self := lir.Path("Self")
	switch {
	case fc == nil:
	case fc.thisVar != "":
		return lir.Ident(fc.thisVar)
	case fc.self == selfPtr:
		return thisIdent
	case fc.self == selfMut:
		return lir.Cast(lir.Ident("self"), lir.RawPtr(self, true))
	case fc.self == selfConst:
		return lir.Cast(lir.Cast(lir.Ident("self"), lir.RawPtr(self, false)), lir.RawPtr(self, true))
	}
	return l.bail(source.Span{}, diag.LowUnsupportedConstruct, "`this` outside a member function")
}

func (l *lowerer) derefPlace(x ast.ExprID) lir.Expr {
	xe := l.expr(x)
	if xe == nil {
		return l.bail(source.Span{}, diag.LowUnsupportedConstruct, "missing operand")
	}
	if _, ok := xe.Data.(*ast.ThisData); ok {
		return l.thisPlace()
	}
	if l.in.Kind(xe.Type) == types.KindStd {
		return l.stdDeref(l.place(x), xe.Type)
	}
	l.unsafeOp()
	return lir.Deref(l.value(x))
}

func (l *lowerer) indexPlace(e *ast.Expr, x *ast.IndexData) lir.Expr {
	bt := l.typeOf(x.Base)
	switch l.in.Kind(bt) {
	case types.KindArray:
		return &lir.IndexExpr{X: l.place(x.Base), Index: lir.Cast(l.value(x.Index), lir.USz)}
	case types.KindPointer:
		l.unsafeOp()
		return lir.Deref(lir.MCall(l.value(x.Base), "offset", lir.Cast(l.value(x.Index), lir.ISz)))
	case types.KindStd:
		info, _ := l.in.StdInfo(bt)
		switch info.Template {
		case "vector", "deque":
			return &lir.IndexExpr{X: l.place(x.Base), Index: lir.Cast(l.value(x.Index), lir.USz)}
		case "map", "unordered_map":
			key := l.initValue(x.Index, info.Args[0])
			return lir.Deref(lir.MCall(lir.MCall(l.place(x.Base), "entry", key), "or_default"))
		}
	}
	return l.bail(e.Span, diag.LowUnsupportedConstruct, "subscript of `%s`", l.in.Format(bt))
}

// isCompletePlace reports places that hold a whole object (by-value
// bindings, members, elements, temporaries) as opposed to something reached
// through a pointer or reference, which may be a base subobject.
func (l *lowerer) isCompletePlace(id ast.ExprID) bool {
	e := l.expr(id)
	if e == nil {
		return false
	}
	switch x := e.Data.(type) {
	case *ast.DeclRefData:
		if l.fc != nil {
			if b, ok := l.fc.locals[x.Decl]; ok {
				return b.kind == bindValue
			}
		}
		return true
	case *ast.MemberData:
		md := l.u.Decl(x.Member)
		return md != nil && l.in.Kind(md.Type) != types.KindReference
	case *ast.IndexData:
		return l.in.Kind(l.typeOf(x.Base)) != types.KindPointer
	case *ast.UnaryData:
		if x.Op == ast.UnDeref {
			return l.in.Kind(l.typeOf(x.X)) == types.KindStd
		}
	case *ast.CastData:
		return false
	}
	return !e.LValue
}

// ptrTo is the raw pointer to the object id designates.
func (l *lowerer) ptrTo(id ast.ExprID, mut bool) lir.Expr {
	e := l.expr(id)
	if e == nil {
		return l.bail(source.Span{}, diag.LowUnsupportedConstruct, "missing expression")
	}
	if u, ok := e.Data.(*ast.UnaryData); ok && u.Op == ast.UnDeref && l.in.Kind(l.typeOf(u.X)) != types.KindStd {
		return l.value(u.X)
	}
	if lit, ok := e.Data.(*ast.LiteralData); ok && lit.Kind == ast.LitString {
		return l.value(id)
	}
	if !l.isPlaceExpr(id) {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "address of a temporary")
	}
	p := l.place(id)
	var ptr lir.Expr
	if mut {
		ptr = lir.AddrOfMut(p)
	} else {
		ptr = lir.Mac("::core::ptr::addr_of", p)
	}
	if l.in.Kind(e.Type) == types.KindRecord && l.in.HasVirtualBases(e.Type) && l.isCompletePlace(id) {
		ptr = lir.Cast(ptr, lir.RawPtr(l.recordType(e.Type), mut))
	}
	return ptr
}

// borrow is `&place` for an object, or a borrow of a temporary.
func (l *lowerer) borrow(id ast.ExprID, mut bool) lir.Expr {
	if l.isPlaceExpr(id) {
		return lir.Borrow(l.place(id), mut)
	}
	return lir.Borrow(l.value(id), mut)
}

// borrowAs binds an argument to a reference parameter of type ref.
func (l *lowerer) borrowAs(id ast.ExprID, ref types.TypeID) lir.Expr {
	rt, _ := l.in.Lookup(ref)
	mut := !rt.Const || rt.RValue
	if e := l.expr(id); e != nil {
		if mv, ok := e.Data.(*ast.MoveData); ok && l.isPlaceExpr(mv.X) {
			return lir.Borrow(l.place(mv.X), true)
		}
	}
	if l.isPlaceExpr(id) && l.in.StripRef(l.typeOf(id)) == l.in.StripRef(rt.Elem) {
		return lir.Borrow(l.place(id), mut)
	}
	if l.isPlaceExpr(id) && l.in.Kind(rt.Elem) == types.KindRecord {
		return lir.Borrow(l.place(id), mut)
	}
	return lir.Borrow(l.initValue(id, rt.Elem), mut)
}

func (l *lowerer) callPlace(r lir.Expr, k callKind) lir.Expr {
	switch k {
	case callRef:
		return lir.Deref(r)
	case callRaw:
		l.unsafeOp()
		return lir.Deref(r)
	}
	return r
}

// --- values ----------------------------------------------------------------

// value lowers id for reading. Objects that are not Copy in the output are
// cloned, which is where C++ copy construction happens.
func (l *lowerer) value(id ast.ExprID) lir.Expr {
	e := l.expr(id)
	if e == nil {
		return l.bail(source.Span{}, diag.LowUnsupportedConstruct, "missing expression")
	}
	switch x := e.Data.(type) {
	case *ast.BinaryData:
		if x.Op.IsAssign() {
			eff := l.assign(e, x)
			return &lir.Block{Stmts: []lir.Stmt{lir.Do(eff)}, Tail: l.copyOut(x.X, l.expr(x.X), l.place(x.X))}
		}
	case *ast.UnaryData:
		if x.Op == ast.UnPreInc || x.Op == ast.UnPreDec {
			eff := l.incr(x.X, x.Op == ast.UnPreInc)
			return &lir.Block{Stmts: []lir.Stmt{lir.Do(eff)}, Tail: l.place(x.X)}
		}
	}
	if e.LValue {
		if x, ok := e.Data.(*ast.OpCallData); ok && x.Op == "[]" {
			if ro, ok := l.readIndex(x.Callee); ok {
				r, k := l.opCall(e, &ast.OpCallData{Op: x.Op, Callee: ro, Args: x.Args})
				return l.copyOut(id, e, l.callPlace(r, k))
			}
		}
		return l.copyOut(id, e, l.place(id))
	}
	return l.rvalue(id, e)
}

// readIndex finds the const operator[] next to a non-const one with the
// same parameters, so a read calls index rather than index_mut.
func (l *lowerer) readIndex(fn ast.DeclID) (ast.DeclID, bool) {
	d, fd, ok := l.u.Func(fn)
	if !ok || fd.Const || fd.Record == types.NoTypeID {
		return ast.NoDeclID, false
	}
	want := l.u.ParamTypes(fd)
	for _, m := range l.u.Members(d.Parent) {
		_, md, ok := l.u.Func(m)
		if !ok || m == fn || md.Operator != "[]" || !md.Const {
			continue
		}
		if slices.Equal(want, l.u.ParamTypes(md)) {
			return m, true
		}
	}
	return ast.NoDeclID, false
}

// copyOut reads an object out of place p.
func (l *lowerer) copyOut(id ast.ExprID, e *ast.Expr, p lir.Expr) lir.Expr {
	t := l.rust(e.Type)
	if t.Copy() || t.Kind == lir.TyInfer {
		return p
	}
	if l.in.Kind(e.Type) == types.KindRecord {
		if !l.copyable(e.Type) {
			return l.bail(e.Span, diag.LowUnsupportedConstruct, "copy of non-copyable `%s`", l.in.Format(e.Type))
		}
		if l.in.HasVirtualBases(e.Type) && !l.isCompletePlace(id) {
			return l.bail(e.Span, diag.LowUnsupportedConstruct, "copy of `%s` through a reference", l.in.Format(e.Type))
		}
	}
	return lir.MCall(p, "clone")
}

func (l *lowerer) rvalue(id ast.ExprID, e *ast.Expr) lir.Expr {
	switch x := e.Data.(type) {
	case *ast.LiteralData:
		return l.literal(e, x)
	case *ast.DeclRefData:
		d := l.u.Decl(x.Decl)
		if d != nil && d.Kind == ast.DeclEnumerator {
			return lir.Ident(l.enumeratorPath(x.Decl))
		}
		if d != nil && d.Kind == ast.DeclFunction {
			return l.bail(e.Span, diag.LowUnsupportedConstruct, "function `%s` used as a value", d.Name)
		}
		return l.copyOut(id, e, l.place(id))
	case *ast.ThisData:
		return l.thisPtr()
	case *ast.CallData, *ast.OpCallData:
		r, k := l.callOf(id)
		if k == callValue {
			return r
		}
		return l.copyOut(id, e, l.callPlace(r, k))
	case *ast.UnaryData:
		return l.unary(id, e, x)
	case *ast.BinaryData:
		return l.binary(e, x)
	case *ast.ConditionalData:
		return &lir.IfExpr{
			Cond: l.cond(x.Cond),
			Then: lir.Seq(nil, l.initValue(x.Then, e.Type)),
			Else: lir.Seq(nil, l.initValue(x.Else, e.Type)),
		}
	case *ast.CastData:
		return l.cast(id, e, x)
	case *ast.NewData:
		return l.newExpr(e, x)
	case *ast.DeleteData:
		return l.deleteExpr(e, x)
	case *ast.ConstructData:
		return l.construct(e.Type, x.Ctor, x.Args, e.Span)
	case *ast.InitListData:
		return l.initList(e.Type, x.Elems, e.Span)
	case *ast.LambdaData:
		return l.lambda(e, x)
	case *ast.ThrowData:
		return l.throw(e, x)
	case *ast.MoveData:
		return l.moveValue(x.X)
	case *ast.MemberData, *ast.IndexData, *ast.StdMemberData:
		return l.copyOut(id, e, l.place(id))
	case *ast.UnsupportedExprData:
		code := diag.LowUnsupportedConstruct
		if strings.Contains(x.What, "member pointer") || strings.Contains(x.What, "pointer to member") {
			code = diag.LowMemberPointer
		}
		return l.bail(e.Span, code, "%s", x.What)
	}
	return l.bail(e.Span, diag.LowUnsupportedConstruct, "%s expression", e.Kind)
}

// initValue lowers id as the initializer of an object of type target.
func (l *lowerer) initValue(id ast.ExprID, target types.TypeID) lir.Expr {
	e := l.expr(id)
	if e == nil {
		return l.bail(source.Span{}, diag.LowUnsupportedConstruct, "missing initializer")
	}
	if target == types.NoTypeID {
		target = e.Type
	}
	switch x := e.Data.(type) {
	case *ast.InitListData:
		return l.initList(target, x.Elems, e.Span)
	case *ast.ConstructData:
		return l.construct(target, x.Ctor, x.Args, e.Span)
	case *ast.MoveData:
		return l.moveValue(x.X)
	}
	if rt, ok := l.in.Lookup(target); ok && rt.Kind == types.KindReference {
		return l.ptrTo(id, !rt.Const || rt.RValue)
	}
	return l.coerce(l.value(id), id, e.Type, target)
}

// coerce converts a lowered value between C++ types whose Rust forms
// differ without an explicit cast node.
func (l *lowerer) coerce(v lir.Expr, src ast.ExprID, from, to types.TypeID) lir.Expr {
	tt := l.rust(to)
	if tt.Kind == lir.TyPath && tt.Name == "String" {
		if s, ok := l.stringLit(src); ok {
			return lir.CallPath("String::from", lir.Lit(quoteStr(s)))
		}
		if l.in.Kind(from) == types.KindPointer {
			return lir.CallPath("::cxx_rt::string_from", v)
		}
		return v
	}
	if from == to || from == types.NoTypeID {
		return v
	}
	ft := l.rust(from)
	switch {
	case ft.Kind == lir.TyPrim && tt.Kind == lir.TyPrim && ft.Name != tt.Name:
		return numCast(v, ft, tt)
	case ft.IsRawPtr() && tt.IsRawPtr() && ft.String() != tt.String():
		return lir.Cast(v, tt)
	}
	return v
}

// numCast is `v as T`; Rust has no bool-to-float cast, so it goes via u8.
func numCast(v lir.Expr, from, to lir.Type) lir.Expr {
	if from.Name == to.Name {
		return v
	}
	if to.Name == "bool" {
		return lir.Bin("!=", v, to0(from))
	}
	if from.Name == "bool" && to.IsFloat() {
		v = lir.Cast(v, lir.U8)
	}
	return lir.Cast(v, to)
}

func to0(t lir.Type) lir.Expr {
	if t.IsFloat() {
		return lir.Lit("0.0")
	}
	return lir.Lit("0")
}

// stringLit finds a string literal under implicit conversions.
func (l *lowerer) stringLit(id ast.ExprID) (string, bool) {
	e := l.expr(id)
	for e != nil {
		switch x := e.Data.(type) {
		case *ast.LiteralData:
			return x.Value, x.Kind == ast.LitString
		case *ast.CastData:
			e = l.expr(x.X)
			continue
		}
		return "", false
	}
	return "", false
}

func (l *lowerer) isNullLit(id ast.ExprID) bool {
	e := l.expr(id)
	for e != nil {
		switch x := e.Data.(type) {
		case *ast.LiteralData:
			return x.Kind == ast.LitNullptr
		case *ast.CastData:
			if x.Kind != ast.CastNullToPointer && x.Kind != ast.CastNoOp && x.Kind != ast.CastBitCast {
				return false
			}
			e = l.expr(x.X)
			continue
		}
		return false
	}
	return false
}

// defaultValue value-initializes an object of type t (lt is its Rust form).
func (l *lowerer) defaultValue(t types.TypeID, lt lir.Type) lir.Expr {
	switch l.in.Kind(t) {
	case types.KindRecord:
		name, ok := l.defaultNew(t)
		if !ok {
			return l.bail(source.Span{}, diag.LowUnsupportedConstruct, "`%s` has no default constructor", l.in.Format(t))
		}
		return lir.CallPath(l.valueType(t).Name + "::" + name)
	case types.KindArray:
		at, _ := l.in.Lookup(t)
		if l.in.Kind(at.Elem) == types.KindRecord {
			elem := l.defaultValue(at.Elem, l.rust(at.Elem))
			return lir.CallPath("::core::array::from_fn", &lir.Closure{Params: []lir.Param{{Name: "_", Type: lir.Infer}}, Body: elem})
		}
	}
	return lt.Default()
}

// construct builds a value of type t with constructor ctor (0 for
// value-initialization, aggregates and copies).
func (l *lowerer) construct(t types.TypeID, ctor ast.DeclID, args []ast.ExprID, at source.Span) lir.Expr {
	if l.in.Kind(t) != types.KindRecord {
		if len(args) == 0 {
			return l.defaultValue(t, l.rust(t))
		}
		if l.in.Kind(t) == types.KindStd {
			return l.stdConstruct(t, args, at)
		}
		return l.initValue(args[0], t)
	}
	vt := l.valueType(t)
	if ctor == ast.NoDeclID {
		switch {
		case len(args) == 0:
			return l.defaultValue(t, l.rust(t))
		case len(args) == 1 && l.in.StripRef(l.typeOf(args[0])) == t:
			return l.value(args[0])
		}
		return l.aggregate(t, args, at)
	}
	if l.skipped[ctor] {
		return l.bail(at, diag.LowUnsupportedConstruct, "constructor `%s` was skipped", l.u.QualName(ctor))
	}
	_, fd, ok := l.u.Func(ctor)
	if !ok {
		return l.bail(at, diag.LowUnsupportedConstruct, "unresolved constructor")
	}
	if fd.Defaulted && len(args) == 1 {
		if l.isMoveCtor(fd, t) {
			return l.initValue(args[0], t)
		}
		if l.isCopyCtor(fd, t) {
			return l.value(args[0])
		}
	}
	if fd.Deleted {
		return l.bail(at, diag.LowUnsupportedConstruct, "call to deleted constructor of `%s`", l.in.Format(t))
	}
	if fd.Defaulted && len(fd.Params) == 0 {
		return l.defaultValue(t, l.rust(t))
	}
	return lir.CallPath(vt.Name+"::"+l.names.Name(ctor), l.callArgs(ctor, args, at)...)
}

// aggregate is brace-initialization of a record without constructors:
// { let mut __a = X::new(); __a.f = v; __a }
func (l *lowerer) aggregate(t types.TypeID, args []ast.ExprID, at source.Span) lir.Expr {
	info, _ := l.in.RecordInfo(t)
	if len(info.Bases) > 0 || len(args) > len(info.Fields) {
		return l.bail(at, diag.LowUnsupportedConstruct, "aggregate initialization of `%s`", l.in.Format(t))
	}
	tmp := l.tmp("a")
	stmts := []lir.Stmt{lir.Let(tmp, nil, l.defaultValue(t, l.rust(t)))}
	for i, a := range args {
		f := info.Fields[i]
		var place lir.Expr = lir.Dot(lir.Ident(tmp), symbols.Ident(f.Name))
		var v lir.Expr
		if rt, ok := l.in.Lookup(f.Type); ok && rt.Kind == types.KindReference {
			v = l.ptrTo(a, !rt.Const || rt.RValue)
		} else {
			v = l.initValue(a, f.Type)
			if l.wrapped(ast.DeclID(f.Decl)) {
				place = lir.Deref(place)
			}
		}
		stmts = append(stmts, lir.Do(lir.Assign(place, v)))
	}
	return &lir.Block{Stmts: stmts, Tail: lir.Ident(tmp)}
}

// initList lowers a braced list for arrays, containers, pairs and scalars.
func (l *lowerer) initList(t types.TypeID, elems []ast.ExprID, at source.Span) lir.Expr {
	switch l.in.Kind(t) {
	case types.KindArray:
		arr, _ := l.in.Lookup(t)
		if uint64(len(elems)) > arr.Count {
			return l.bail(at, diag.LowUnsupportedConstruct, "too many initializers for `%s`", l.in.Format(t))
		}
		out := make([]lir.Expr, 0, arr.Count)
		for _, e := range elems {
			out = append(out, l.initValue(e, arr.Elem))
		}
		if len(elems) == 0 {
			return l.defaultValue(t, l.rust(t))
		}
		for uint64(len(out)) < arr.Count {
			out = append(out, l.defaultValue(arr.Elem, l.rust(arr.Elem)))
		}
		return &lir.ArrayExpr{Elems: out}
	case types.KindStd:
		return l.stdList(t, elems, at)
	case types.KindRecord:
		return l.construct(t, ast.NoDeclID, elems, at)
	}
	if len(elems) == 0 {
		return l.defaultValue(t, l.rust(t))
	}
	return l.initValue(elems[0], t)
}

// moveValue is std::move(x). A by-value local is moved the Rust way, which
// also ends its lifetime; anything else is left value-initialized.
func (l *lowerer) moveValue(x ast.ExprID) lir.Expr {
	e := l.expr(x)
	if e == nil || !l.isPlaceExpr(x) {
		return l.value(x)
	}
	if l.rust(e.Type).Copy() {
		return l.value(x)
	}
	if ref, ok := e.Data.(*ast.DeclRefData); ok && l.fc != nil {
		if b, ok := l.fc.locals[ref.Decl]; ok && b.kind == bindValue {
			return lir.Ident(b.name)
		}
	}
	if l.in.Kind(e.Type) == types.KindRecord && l.in.HasVirtualBases(e.Type) && !l.isCompletePlace(x) {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "move of `%s` through a reference", l.in.Format(e.Type))
	}
	return lir.CallPath("::core::mem::take", lir.Borrow(l.place(x), true))
}

// --- operators -------------------------------------------------------------

func (l *lowerer) unary(id ast.ExprID, e *ast.Expr, x *ast.UnaryData) lir.Expr {
	switch x.Op {
	case ast.UnNeg:
		return &lir.UnaryExpr{Op: "-", X: l.value(x.X)}
	case ast.UnPlus:
		return l.value(x.X)
	case ast.UnNot:
		return &lir.UnaryExpr{Op: "!", X: l.cond(x.X)}
	case ast.UnBitNot:
		return &lir.UnaryExpr{Op: "!", X: l.value(x.X)}
	case ast.UnAddrOf:
		if ref, ok := l.expr(x.X).Data.(*ast.DeclRefData); ok {
			if d := l.u.Decl(ref.Decl); d != nil && d.Kind == ast.DeclFunction {
				return l.bail(e.Span, diag.LowUnsupportedConstruct, "address of function `%s`", d.Name)
			}
		}
		pt, _ := l.in.Lookup(e.Type)
		return l.ptrTo(x.X, !pt.Const)
	case ast.UnPostInc, ast.UnPostDec:
		t := l.tmp("t")
		old := l.copyOut(x.X, l.expr(x.X), l.place(x.X))
		return &lir.Block{
			Stmts: []lir.Stmt{lir.Let(t, nil, old), lir.Do(l.incr(x.X, x.Op == ast.UnPostInc))},
			Tail:  lir.Ident(t),
		}
	}
	return l.copyOut(id, e, l.place(id))
}

// incr is the effect of ++x / --x.
func (l *lowerer) incr(x ast.ExprID, up bool) lir.Expr {
	t := l.typeOf(x)
	p := l.place(x)
	if l.in.Kind(t) == types.KindPointer {
		l.unsafeOp()
		m := "add"
		if !up {
			m = "sub"
		}
		return lir.Assign(p, lir.MCall(p, m, lir.Lit("1")))
	}
	op := "+="
	if !up {
		op = "-="
	}
	one := "1"
	if l.rust(t).IsFloat() {
		one = "1.0"
	}
	return &lir.AssignExpr{Op: op, X: p, Y: lir.Lit(one)}
}

func (l *lowerer) binary(e *ast.Expr, x *ast.BinaryData) lir.Expr {
	switch x.Op {
	case ast.BinComma:
		return &lir.Block{Stmts: []lir.Stmt{lir.Do(l.effect(x.X))}, Tail: l.value(x.Y)}
	case ast.BinLogAnd, ast.BinLogOr:
		return lir.Bin(x.Op.String(), l.cond(x.X), l.cond(x.Y))
	}
	xt, yt := l.typeOf(x.X), l.typeOf(x.Y)
	xp := l.in.Kind(xt) == types.KindPointer
	yp := l.in.Kind(yt) == types.KindPointer
	switch {
	case xp && yp && x.Op == ast.BinSub:
		l.unsafeOp()
		return lir.Cast(lir.MCall(l.value(x.X), "offset_from", l.value(x.Y)), l.rust(e.Type))
	case xp && !yp && (x.Op == ast.BinAdd || x.Op == ast.BinSub):
		l.unsafeOp()
		return lir.MCall(l.value(x.X), "offset", l.offset(x.Y, x.Op == ast.BinSub))
	case yp && !xp && x.Op == ast.BinAdd:
		l.unsafeOp()
		return lir.MCall(l.value(x.Y), "offset", l.offset(x.X, false))
	case (x.Op == ast.BinEq || x.Op == ast.BinNe) && (l.isNullLit(x.X) || l.isNullLit(x.Y)):
		other := x.X
		if l.isNullLit(x.X) {
			other = x.Y
		}
		var c lir.Expr = lir.MCall(l.value(other), "is_null")
		if x.Op == ast.BinNe {
			c = &lir.UnaryExpr{Op: "!", X: c}
		}
		return c
	}
	if t := l.rust(xt); t.Kind == lir.TyPath && t.Name == "String" && x.Op == ast.BinAdd {
		// String + &str
		if lit, ok := l.stringLit(x.Y); ok {
			return lir.Bin("+", l.value(x.X), lir.Lit(quoteStr(lit)))
		}
		return lir.Bin("+", l.value(x.X), lir.Borrow(l.initValue(x.Y, xt), false))
	}
	return lir.Bin(x.Op.String(), l.value(x.X), l.value(x.Y))
}

// offset is an element count as isize, negated for subtraction.
func (l *lowerer) offset(n ast.ExprID, neg bool) lir.Expr {
	var off lir.Expr = lir.Cast(l.value(n), lir.ISz)
	if neg {
		off = &lir.UnaryExpr{Op: "-", X: off}
	}
	return off
}

// assign is the effect of a simple or compound assignment.
func (l *lowerer) assign(e *ast.Expr, x *ast.BinaryData) lir.Expr {
	xt := l.typeOf(x.X)
	if l.in.Kind(xt) == types.KindRecord && l.in.HasVirtualBases(xt) && !l.isCompletePlace(x.X) {
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "assignment to `%s` through a reference", l.in.Format(xt))
	}
	if x.Op == ast.BinAssign {
		v := l.initValue(x.Y, xt)
		return lir.Assign(l.place(x.X), v)
	}
	op, _ := x.Op.Compound()
	if l.in.Kind(xt) == types.KindPointer && (op == ast.BinAdd || op == ast.BinSub) {
		l.unsafeOp()
		p := l.place(x.X)
		return lir.Assign(p, lir.MCall(p, "offset", l.offset(x.Y, op == ast.BinSub)))
	}
	if t := l.rust(xt); t.Kind == lir.TyPath && t.Name == "String" && op == ast.BinAdd {
		return l.stringAppend(l.place(x.X), x.Y)
	}
	v := l.coerce(l.value(x.Y), x.Y, l.typeOf(x.Y), xt)
	return &lir.AssignExpr{Op: x.Op.String(), X: l.place(x.X), Y: v}
}

// stringAppend is s += y for a std::string s.
func (l *lowerer) stringAppend(s lir.Expr, y ast.ExprID) lir.Expr {
	if lit, ok := l.stringLit(y); ok {
		return lir.MCall(s, "push_str", lir.Lit(quoteStr(lit)))
	}
	yt := l.rust(l.typeOf(y))
	switch {
	case yt.Kind == lir.TyPrim:
		return lir.MCall(s, "push", lir.Cast(lir.Cast(l.value(y), lir.U8), lir.Prim("char")))
	case yt.IsRawPtr():
		return lir.MCall(s, "push_str", lir.Borrow(lir.CallPath("::cxx_rt::string_from", l.value(y)), false))
	}
	return lir.MCall(s, "push_str", l.borrow(y, false))
}

// effect lowers an expression evaluated only for its side effects.
func (l *lowerer) effect(id ast.ExprID) lir.Expr {
	e := l.expr(id)
	if e == nil {
		return &lir.TupleExpr{}
	}
	switch x := e.Data.(type) {
	case *ast.BinaryData:
		if x.Op.IsAssign() {
			return l.assign(e, x)
		}
		if x.Op == ast.BinComma {
			return &lir.Block{Stmts: []lir.Stmt{lir.Do(l.effect(x.X)), lir.Do(l.effect(x.Y))}}
		}
	case *ast.UnaryData:
		switch x.Op {
		case ast.UnPreInc, ast.UnPostInc:
			return l.incr(x.X, true)
		case ast.UnPreDec, ast.UnPostDec:
			return l.incr(x.X, false)
		}
	case *ast.ConditionalData:
		ie := &lir.IfExpr{Cond: l.cond(x.Cond), Then: &lir.Block{Stmts: []lir.Stmt{lir.Do(l.effect(x.Then))}}}
		ie.Else = &lir.Block{Stmts: []lir.Stmt{lir.Do(l.effect(x.Else))}}
		return ie
	case *ast.CastData:
		if l.in.Kind(e.Type) == types.KindVoid {
			return l.effect(x.X)
		}
	case *ast.CallData, *ast.OpCallData:
		r, _ := l.callOf(id)
		return r
	}
	if e.LValue {
		return lir.Borrow(l.place(id), false)
	}
	return l.value(id)
}

// cond lowers id as a condition.
func (l *lowerer) cond(id ast.ExprID) lir.Expr {
	return l.toBool(l.value(id), l.typeOf(id))
}

func (l *lowerer) toBool(v lir.Expr, t types.TypeID) lir.Expr {
	switch l.in.Kind(t) {
	case types.KindPointer, types.KindNullptr:
		return &lir.UnaryExpr{Op: "!", X: lir.MCall(v, "is_null")}
	case types.KindFloat:
		return lir.Bin("!=", v, lir.Lit("0.0"))
	case types.KindInt, types.KindEnum:
		return lir.Bin("!=", v, lir.Lit("0"))
	case types.KindStd:
		if info, _ := l.in.StdInfo(t); info.Template == "optional" {
			return lir.MCall(v, "is_some")
		}
		// owning pointers are never null once moved-from is ruled out
		return lir.Lit("true")
	}
	return v
}

func (l *lowerer) cast(id ast.ExprID, e *ast.Expr, x *ast.CastData) lir.Expr {
	from := l.typeOf(x.X)
	switch x.Kind {
	case ast.CastLValueToRValue, ast.CastNoOp, ast.CastConst:
		return l.coerce(l.value(x.X), x.X, from, e.Type)
	case ast.CastIntegral, ast.CastFloating, ast.CastIntToFloat, ast.CastFloatToInt, ast.CastEnumToInt, ast.CastIntToEnum:
		ft, tt := l.rust(from), l.rust(e.Type)
		if ft.Kind != lir.TyPrim || tt.Kind != lir.TyPrim {
			return l.value(x.X)
		}
		return numCast(l.value(x.X), ft, tt)
	case ast.CastToBool:
		return l.toBool(l.value(x.X), from)
	case ast.CastArrayToPointer:
		if _, ok := l.stringLit(x.X); ok {
			return l.value(x.X)
		}
		pt, _ := l.in.Lookup(e.Type)
		if pt.Const {
			return lir.MCall(l.place(x.X), "as_ptr")
		}
		return lir.MCall(l.place(x.X), "as_mut_ptr")
	case ast.CastNullToPointer:
		return l.rust(e.Type).Default()
	case ast.CastDerivedToBase:
		if l.in.Kind(e.Type) == types.KindPointer {
			fp, _ := l.in.Pointee(from)
			tp, _ := l.in.Pointee(e.Type)
			return lir.Cast(l.upcastPtr(l.value(x.X), fp, tp, true), l.rust(e.Type))
		}
		if l.in.HasVirtualBases(e.Type) {
			return l.bail(e.Span, diag.LowUnsupportedConstruct, "slicing copy of `%s`", l.in.Format(e.Type))
		}
		return l.copyOut(id, e, l.basePlace(l.place(x.X), from, e.Type))
	case ast.CastBaseToDerived:
		if l.in.Kind(e.Type) == types.KindPointer {
			bp, _ := l.in.Pointee(from)
			dp, _ := l.in.Pointee(e.Type)
			r, ok := l.downcastPtr(l.value(x.X), bp, dp)
			if !ok {
				return l.bail(e.Span, diag.LowUnsupportedConstruct, "static_cast from virtual base `%s`", l.in.Format(bp))
			}
			return lir.Cast(r, l.rust(e.Type))
		}
		return l.copyOut(id, e, l.place(id))
	case ast.CastBitCast:
		ft, tt := l.rust(from), l.rust(e.Type)
		if (ft.IsRawPtr() || ft.IsInt()) && (tt.IsRawPtr() || tt.IsInt()) {
			return lir.Cast(l.value(x.X), tt)
		}
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "reinterpret_cast from `%s` to `%s`", l.in.Format(from), l.in.Format(e.Type))
	case ast.CastUserConversion:
		if x.Conversion == ast.NoDeclID {
			fi, ok1 := l.in.StdInfo(l.in.StripRef(from))
			ti, ok2 := l.in.StdInfo(e.Type)
			if ok1 && ok2 && from != e.Type && fi.Template == ti.Template {
				return l.bail(e.Span, diag.LowUnsupportedConstruct, "conversion from `%s` to `%s`", l.in.Format(from), l.in.Format(e.Type))
			}
			return l.coerce(l.value(x.X), x.X, from, e.Type)
		}
		_, fd, ok := l.u.Func(x.Conversion)
		if !ok || l.skipped[x.Conversion] {
			return l.bail(e.Span, diag.LowUnsupportedConstruct, "conversion `%s` is unavailable", l.u.QualName(x.Conversion))
		}
		if fd.Kind == ast.FuncCtor {
			return l.construct(e.Type, x.Conversion, []ast.ExprID{x.X}, e.Span)
		}
		recv := l.basePlace(l.place(x.X), from, fd.Record)
		return lir.MCall(dotBase(recv), l.names.Name(x.Conversion))
	case ast.CastFunctionToPointer:
		return l.bail(e.Span, diag.LowUnsupportedConstruct, "function pointer")
	}
	return l.bail(e.Span, diag.LowUnsupportedConstruct, "cast")
}

// --- allocation and exceptions ---------------------------------------------

func (l *lowerer) newExpr(e *ast.Expr, x *ast.NewData) lir.Expr {
	at := x.Allocated
	if x.Array {
		return lir.CallPath(fmt.Sprintf("::cxx_rt::new_array::<%s>", l.rust(at)), lir.Cast(l.value(x.Count), lir.USz))
	}
	var v lir.Expr
	switch {
	case l.in.Kind(at) == types.KindRecord:
		v = l.construct(at, x.Ctor, x.Args, e.Span)
	case x.Init != ast.NoExprID:
		v = l.initValue(x.Init, at)
	case len(x.Args) == 1:
		v = l.initValue(x.Args[0], at)
	default:
		v = l.defaultValue(at, l.rust(at))
	}
	var p lir.Expr = lir.CallPath("::cxx_rt::new", v)
	if l.in.Kind(at) == types.KindRecord && l.in.HasVirtualBases(at) {
		p = lir.Cast(p, lir.RawPtr(l.recordType(at), true))
	}
	return p
}

// deleteExpr frees a heap object. A virtual destructor goes through the
// vtable so the most derived object is the one released.
func (l *lowerer) deleteExpr(e *ast.Expr, x *ast.DeleteData) lir.Expr {
	pt, _ := l.in.Pointee(l.typeOf(x.X))
	v := l.value(x.X)
	l.unsafeOp()
	if x.Array {
		return lir.CallPath("::cxx_rt::delete_array", v)
	}
	if l.in.Kind(pt) == types.KindRecord && l.in.Polymorphic(pt) {
		if cl := l.layoutOf(pt); cl != nil {
			if ref, ok := cl.FindSlot("~"); ok {
				d := lir.Ident("__d")
				return &lir.Block{
					Stmts: []lir.Stmt{&lir.LetStmt{Name: "__d", Init: v}},
					Tail: &lir.IfExpr{
						Cond: &lir.UnaryExpr{Op: "!", X: lir.MCall(d, "is_null")},
						Then: &lir.Block{Stmts: []lir.Stmt{lir.Do(l.virtualCall(d, pt, ref, nil))}},
					},
				}
			}
		}
	}
	return lir.CallPath("::cxx_rt::delete", lir.Cast(v, lir.RawPtr(l.rust(pt), true)))
}

func (l *lowerer) throw(e *ast.Expr, x *ast.ThrowData) lir.Expr {
	if x.X == ast.NoExprID {
		if l.fc == nil || len(l.fc.exVars) == 0 {
			return l.bail(e.Span, diag.LowUnsupportedConstruct, "rethrow outside a handler")
		}
		return lir.CallPath("::cxx_rt::rethrow", lir.Ident(l.fc.exVars[len(l.fc.exVars)-1]))
	}
	return lir.CallPath("::cxx_rt::throw", l.initValue(x.X, l.typeOf(x.X)))
}

// --- literals --------------------------------------------------------------

func (l *lowerer) literal(e *ast.Expr, x *ast.LiteralData) lir.Expr {
	t := l.rust(e.Type)
	switch x.Kind {
	case ast.LitInt:
		return lir.Lit(intLit(x.Value) + suffix(t))
	case ast.LitFloat:
		v, ok := floatLit(x.Value)
		if !ok {
			return l.bail(e.Span, diag.LowUnsupportedConstruct, "float literal `%s`", x.Value)
		}
		if t.Name == "f32" {
			v += "f32"
		}
		return lir.Lit(v)
	case ast.LitBool:
		return lir.Lit(x.Value)
	case ast.LitChar:
		r, _ := utf8.DecodeRuneInString(x.Value)
		n := int64(r)
		if t.Name == "i8" && n > 127 {
			n -= 256
		}
		return lir.Lit(strconv.FormatInt(n, 10) + suffix(t))
	case ast.LitString:
		if t.Kind == lir.TyPath && t.Name == "String" {
			return lir.CallPath("String::from", lir.Lit(quoteStr(x.Value)))
		}
		return lir.Cast(lir.MCall(lir.Lit(quoteBytes(x.Value)), "as_ptr"), lir.RawPtr(lir.I8, false))
	case ast.LitNullptr:
		return t.Default()
	}
	return l.bail(e.Span, diag.LowUnsupportedConstruct, "literal")
}

// intLit normalizes a C++ integer literal to decimal; a leading 0 means
// octal in C++ and nothing in Rust.
func intLit(v string) string {
	s := strings.ReplaceAll(v, "'", "")
	s = strings.TrimRight(s, "uUlLzZ")
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return s
	}
	return strconv.FormatUint(n, 10)
}

func floatLit(v string) (string, bool) {
	s := strings.ReplaceAll(v, "'", "")
	s = strings.TrimRight(s, "fFlL")
	if strings.ContainsAny(s, "xXpP") {
		return "", false
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	mant, exp, hasExp := strings.Cut(strings.ToLower(s), "e")
	switch {
	case strings.HasSuffix(mant, "."):
		mant += "0"
	case !strings.Contains(mant, "."):
		mant += ".0"
	}
	if hasExp {
		return mant + "e" + exp, true
	}
	return mant, true
}

// suffix pins a literal to its mapped type; i32 and f64 are Rust's defaults.
func suffix(t lir.Type) string {
	if t.Kind != lir.TyPrim {
		return ""
	}
	switch t.Name {
	case "i32", "f64", "bool":
		return ""
	}
	return t.Name
}

// quoteBytes is a NUL-terminated Rust byte string literal.
func quoteBytes(s string) string {
	var b strings.Builder
	b.WriteString(`b"`)
	for i := 0; i < len(s); i++ {
		writeEscaped(&b, s[i])
	}
	b.WriteString(`\0"`)
	return b.String()
}

// quoteStr is a Rust string literal; invalid UTF-8 becomes U+FFFD.
func quoteStr(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r < utf8.RuneSelf {
			writeEscaped(&b, byte(r))
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func writeEscaped(b *strings.Builder, c byte) {
	switch {
	case c == '"':
		b.WriteString(`\"`)
	case c == '\\':
		b.WriteString(`\\`)
	case c == '\n':
		b.WriteString(`\n`)
	case c == '\r':
		b.WriteString(`\r`)
	case c == '\t':
		b.WriteString(`\t`)
	case c == 0:
		b.WriteString(`\0`)
	case c >= 0x20 && c < 0x7f:
		b.WriteByte(c)
	default:
		fmt.Fprintf(b, `\x%02x`, c)
	}
}
