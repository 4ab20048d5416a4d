package lower

import (
	"fmt"

	"cxxlower/internal/ast"
	"cxxlower/internal/layout"
	"cxxlower/internal/lir"
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

var (
	bytePtr = lir.RawPtr(lir.U8, true)
	unitPtr = lir.RawPtr(lir.Unit, true)
)

// vbaseAccessors adds `__vbase_V(this) -> *mut V` for every virtual base.
// Direct bases read the offset slot; inherited ones ask the base that holds
// the slot.
func (l *lowerer) vbaseAccessors(c *classCtx) {
	for _, v := range c.cl.VBases {
		vt := l.recordType(v.Type)
		var body lir.Expr
		switch {
		case v.Direct:
			off := lir.Dot(lir.Deref(thisIdent), v.OffsetField)
			body = lir.Cast(lir.MCall(lir.Cast(thisIdent, bytePtr), "offset", off), lir.RawPtr(vt, true))
		case v.ViaVBase != types.NoTypeID:
			via, _ := c.cl.VBase(v.ViaVBase)
			holder := lir.CallPath("Self::"+via.Field, thisIdent)
			body = lir.CallPath(l.recordType(v.ViaVBase).Name+"::"+v.Field, holder)
		default:
			b := c.cl.Bases[v.ViaBase]
			bt := l.recordType(b.Type)
			holder := lir.Cast(lir.AddrOfMut(lir.Dot(lir.Deref(thisIdent), b.Field)), lir.RawPtr(bt, true))
			body = lir.CallPath(bt.Name+"::"+v.Field, holder)
		}
		c.access = append(c.access, &lir.Func{
			Name:   v.Field,
			Pub:    true,
			Unsafe: true,
			Params: []lir.Param{thisParam},
			Result: lir.RawPtr(vt, true),
			Body:   lir.Seq(nil, body),
		})
	}
}

// setVptrs installs this class's tables in every non-virtual polymorphic
// subobject. Constructors call it after the members are built and Drop
// calls it again before the destructor body.
func (l *lowerer) setVptrs(c *classCtx) *lir.Func {
	stmts := []lir.Stmt{install(lir.Cast(thisIdent, unitPtr), c.name+"__VT")}
	for i, s := range c.cl.Secondary {
		stmts = append(stmts, install(l.pathPtr(thisIdent, s.Path, lir.Unit, false), fmt.Sprintf("%s__VT_%d", c.name, i+1)))
	}
	return &lir.Func{Name: "__set_vptrs", Pub: true, Unsafe: true, Params: []lir.Param{thisParam}, Body: &lir.Block{Stmts: stmts}}
}

func install(obj lir.Expr, table string) lir.Stmt {
	return lir.Do(lir.CallPath("::cxx_rt::VPtr::install", obj, lir.Borrow(lir.Ident(table), false)))
}

// setVBaseOffsets fills every offset slot of the complete object with the
// distance from the holding subobject to its virtual base.
func (l *lowerer) setVBaseOffsets(c *classCtx) *lir.Func {
	var stmts []lir.Stmt
	complete := l.valueType(c.t)
	for _, o := range c.cl.Offsets {
		vs, _ := c.cl.VBase(o.VBase)
		var dist lir.Expr = lir.Cast(lir.OffsetOf(complete, vs.Field), lir.ISz)
		if off := l.pathOffset(o.Holder); off != nil {
			dist = lir.Bin("-", dist, lir.Cast(off, lir.ISz))
		}
		holder := l.pathPtr(thisIdent, o.Holder, l.recordType(o.Record), false)
		stmts = append(stmts, lir.Do(lir.Assign(lir.Dot(lir.Deref(holder), o.Field), dist)))
	}
	return &lir.Func{Name: "__set_vboffs", Pub: true, Unsafe: true, Params: []lir.Param{thisParam}, Body: &lir.Block{Stmts: stmts}}
}

// setVBaseVptrs installs this class's tables inside the virtual bases.
func (l *lowerer) setVBaseVptrs(c *classCtx) *lir.Func {
	var stmts []lir.Stmt
	for i, s := range c.cl.Virtual {
		stmts = append(stmts, install(l.pathPtr(thisIdent, s.Path, lir.Unit, false), fmt.Sprintf("%s__VTV_%d", c.name, i+1)))
	}
	return &lir.Func{Name: "__set_vbase_vptrs", Pub: true, Unsafe: true, Params: []lir.Param{thisParam}, Body: &lir.Block{Stmts: stmts}}
}

type table struct {
	name     string
	tag      string
	sub      layout.Subobject
	complete bool
}

// vtables emits one static per polymorphic subobject plus the thunks its
// slots point at.
func (l *lowerer) vtables(c *classCtx, m *lir.Module) {
	tabs := []table{{name: c.name + "__VT", sub: layout.Subobject{Type: c.t, Vtable: c.cl.Vtable}}}
	for i, s := range c.cl.Secondary {
		tabs = append(tabs, table{name: fmt.Sprintf("%s__VT_%d", c.name, i+1), tag: fmt.Sprintf("s%d_", i+1), sub: s})
	}
	for i, s := range c.cl.Virtual {
		tabs = append(tabs, table{name: fmt.Sprintf("%s__VTV_%d", c.name, i+1), tag: fmt.Sprintf("v%d_", i+1), sub: s, complete: true})
	}
	for _, tab := range tabs {
		var entries []lir.Expr
		for j, slot := range tab.sub.Vtable.Slots {
			if slot.Pure || (!slot.Dtor && (slot.ImplDecl == 0 || l.skipped[ast.DeclID(slot.ImplDecl)])) {
				entries = append(entries, lir.Mac("::cxx_rt::vslot", lir.Ident("::cxx_rt::pure_virtual")))
				continue
			}
			name := "dtor"
			if !slot.Dtor {
				name = l.names.Name(ast.DeclID(slot.ImplDecl))
			}
			thunk := fmt.Sprintf("__vt%s%d_%s", tab.tag, j, name)
			c.thunks = append(c.thunks, l.thunk(c, thunk, tab, slot))
			entries = append(entries, lir.Mac("::cxx_rt::vslot", lir.Ident(c.name+"::"+thunk)))
		}
		m.Add(&lir.Static{
			Name:  tab.name,
			Type:  lir.Path("::cxx_rt::VTable"),
			Value: lir.CallPath("::cxx_rt::VTable::new", lir.Borrow(&lir.ArrayExpr{Elems: entries}, false)),
			Pub:   true,
		})
	}
}

// slotDecl is the declaration that introduced a slot; its signature is the
// one every thunk and call site of the slot agrees on.
func (l *lowerer) slotDecl(s layout.Slot) ast.DeclID {
	info, ok := l.in.RecordInfo(s.Intro)
	if ok {
		for _, v := range info.Virtuals {
			if v.Sig == s.Sig {
				return ast.DeclID(v.Decl)
			}
		}
	}
	return ast.DeclID(s.ImplDecl)
}

// slotSig maps the parameter and result types of a slot. References in the
// result become raw pointers: fn pointer types have no lifetime to borrow
// from.
func (l *lowerer) slotSig(decl ast.DeclID) (params []lir.Type, result lir.Type) {
	d, fd, ok := l.u.Func(decl)
	if !ok {
		return nil, lir.Unit
	}
	for _, p := range fd.Params {
		pd := l.u.Decl(p)
		params = append(params, l.quiet.Map(pd.Type, pd.Span))
	}
	result = l.quiet.Map(fd.Result, d.Span)
	if result.IsRef() {
		result = lir.RawPtr(*result.Elem, result.Mut)
	}
	return params, result
}

// thunk adapts a slot call on a subobject pointer to the final overrider:
// it walks back to the start of the object, then up to the overrider's
// class. Destructor slots delete the whole object.
func (l *lowerer) thunk(c *classCtx, name string, tab table, slot layout.Slot) *lir.Func {
	intro := l.slotDecl(slot)
	ptypes, result := l.slotSig(intro)
	f := &lir.Func{Name: name, Pub: true, Unsafe: true, Params: []lir.Param{{Name: "this", Type: unitPtr}}}
	var args []lir.Expr
	for i, t := range ptypes {
		a := fmt.Sprintf("a%d", i)
		f.Params = append(f.Params, lir.Param{Name: a, Type: t})
		args = append(args, lir.Ident(a))
	}
	f.Result = result

	var root lir.Expr = thisIdent
	if off := l.pathOffset(tab.sub.Path); off != nil {
		root = lir.MCall(lir.Cast(thisIdent, bytePtr), "sub", off)
	}
	stmts := []lir.Stmt{&lir.LetStmt{Name: "__p", Init: lir.Cast(root, lir.RawPtr(l.recordType(c.t), true))}}
	p := lir.Ident("__p")
	if slot.Dtor {
		del := lir.CallPath("::cxx_rt::delete", lir.Cast(p, lir.RawPtr(l.valueType(c.t), true)))
		f.Body = lir.Seq(stmts, del)
		return f
	}
	implDecl := ast.DeclID(slot.ImplDecl)
	_, ifd, _ := l.u.Func(implDecl)
	recv := lir.Borrow(lir.Deref(l.upcastPtr(p, c.t, slot.Impl, false)), !ifd.Const)
	var call lir.Expr = lir.CallPath(l.memberPath(slot.Impl, l.names.Name(implDecl)), append([]lir.Expr{recv}, args...)...)
	if rt := l.quiet.Map(ifd.Result, source.Span{}); rt.IsRef() {
		call = lir.Cast(call, result)
	} else if from, to, ok := l.covariant(ifd.Result, intro); ok {
		call = l.upcastPtr(call, from, to, true)
		call = lir.Cast(call, result)
	}
	f.Body = lir.Seq(stmts, call)
	return f
}

// covariant reports an overrider returning a pointer to a class derived from
// the one the introducing declaration returns.
func (l *lowerer) covariant(res types.TypeID, intro ast.DeclID) (from, to types.TypeID, ok bool) {
	_, ifd, found := l.u.Func(intro)
	if !found {
		return 0, 0, false
	}
	fp, ok1 := l.in.Pointee(res)
	tp, ok2 := l.in.Pointee(ifd.Result)
	if !ok1 || !ok2 || fp == tp || l.in.Kind(fp) != types.KindRecord || l.in.Kind(tp) != types.KindRecord {
		return 0, 0, false
	}
	return fp, tp, true
}

// pathOffset is the byte offset of a subobject path, or nil when it is 0.
func (l *lowerer) pathOffset(p layout.Path) lir.Expr {
	var sum lir.Expr
	for _, st := range p {
		owner := l.recordType(st.Owner)
		if st.Complete {
			owner = l.valueType(st.Owner)
		}
		off := lir.OffsetOf(owner, st.Field)
		if sum == nil {
			sum = off
		} else {
			sum = lir.Bin("+", sum, off)
		}
	}
	return sum
}

// pathPtr moves ptr down a subobject path. nullable keeps a null pointer null.
func (l *lowerer) pathPtr(ptr lir.Expr, p layout.Path, target lir.Type, nullable bool) lir.Expr {
	off := l.pathOffset(p)
	switch {
	case off == nil:
		return lir.Cast(ptr, lir.RawPtr(target, true))
	case nullable:
		return lir.Cast(lir.CallPath("::cxx_rt::adjust", lir.Cast(ptr, bytePtr), lir.Cast(off, lir.ISz)), lir.RawPtr(target, true))
	}
	return lir.Cast(lir.MCall(lir.Cast(ptr, bytePtr), "add", off), lir.RawPtr(target, true))
}

// upcastPtr converts a pointer to from into a pointer to its base to.
func (l *lowerer) upcastPtr(ptr lir.Expr, from, to types.TypeID, nullable bool) lir.Expr {
	if from == to {
		return ptr
	}
	cl := l.layoutOf(from)
	if cl == nil {
		return ptr
	}
	path, vb, ok := cl.BasePath(to)
	if !ok {
		return lir.Cast(ptr, lir.RawPtr(l.recordType(to), true))
	}
	if vb == types.NoTypeID {
		return l.pathPtr(ptr, path, l.recordType(to), nullable)
	}
	l.unsafeOp()
	vs, _ := cl.VBase(vb)
	acc := l.recordType(from).Name + "::" + vs.Field
	if !nullable {
		return l.upcastPtr(lir.CallPath(acc, lir.Cast(ptr, lir.RawPtr(l.recordType(from), true))), vb, to, false)
	}
	// { let __b = p; if __b.is_null() { null } else { ... } }
	b := lir.Ident("__b")
	return &lir.Block{
		Stmts: []lir.Stmt{&lir.LetStmt{Name: "__b", Init: lir.Cast(ptr, lir.RawPtr(l.recordType(from), true))}},
		Tail: &lir.IfExpr{
			Cond: lir.MCall(b, "is_null"),
			Then: lir.Seq(nil, lir.CallPath("::core::ptr::null_mut")),
			Else: lir.Seq(nil, l.upcastPtr(lir.CallPath(acc, b), vb, to, false)),
		},
	}
}

// downcastPtr is static_cast from a base pointer to a derived one.
func (l *lowerer) downcastPtr(ptr lir.Expr, base, derived types.TypeID) (lir.Expr, bool) {
	if base == derived {
		return ptr, true
	}
	cl := l.layoutOf(derived)
	if cl == nil {
		return ptr, false
	}
	path, vb, ok := cl.BasePath(base)
	if !ok || vb != types.NoTypeID {
		return nil, false
	}
	target := lir.RawPtr(l.recordType(derived), true)
	off := l.pathOffset(path)
	if off == nil {
		return lir.Cast(ptr, target), true
	}
	neg := &lir.UnaryExpr{Op: "-", X: lir.Cast(off, lir.ISz)}
	return lir.Cast(lir.CallPath("::cxx_rt::adjust", lir.Cast(ptr, bytePtr), neg), target), true
}

// virtualCall dispatches through the vtable of the subobject ref selects:
// { let __o = sub as *mut (); ::cxx_rt::vcall::<F>(__o, i)(__o, args) }
func (l *lowerer) virtualCall(recv lir.Expr, static types.TypeID, ref layout.SlotRef, args []lir.Expr) lir.Expr {
	l.unsafeOp()
	cl := l.layoutOf(static)
	sub := lir.Cast(recv, lir.RawPtr(l.recordType(static), true))
	if ref.VBase != types.NoTypeID {
		vs, _ := cl.VBase(ref.VBase)
		sub = lir.CallPath(l.recordType(static).Name+"::"+vs.Field, sub)
	}
	if len(ref.Path) > 0 {
		sub = l.pathPtr(sub, ref.Path, lir.Unit, false)
	}
	tl := l.layoutOf(ref.Type)
	slot := tl.Vtable.Slots[ref.Index]
	ptypes, result := l.slotSig(l.slotDecl(slot))
	fn := lir.FnPtr(append([]lir.Type{unitPtr}, ptypes...), result)
	o := lir.Ident("__o")
	load := lir.CallPath("::cxx_rt::vcall::<"+fn.String()+">", o, lir.Lit(fmt.Sprint(ref.Index)))
	return &lir.Block{
		Stmts: []lir.Stmt{&lir.LetStmt{Name: "__o", Init: lir.Cast(sub, unitPtr)}},
		Tail:  lir.Call(load, append([]lir.Expr{o}, args...)...),
	}
}

// slotOf resolves a member function call to a vtable slot of the static
// receiver type.
func (l *lowerer) slotOf(static types.TypeID, fd *ast.FunctionData) (layout.SlotRef, bool) {
	if l.in.Kind(static) != types.KindRecord || !l.in.Polymorphic(static) || fd.Sig == "" {
		return layout.SlotRef{}, false
	}
	cl := l.layoutOf(static)
	if cl == nil {
		return layout.SlotRef{}, false
	}
	return cl.FindSlot(fd.Sig)
}
