package lower

import (
	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/layout"
	"cxxlower/internal/lir"
	"cxxlower/internal/symbols"
	"cxxlower/internal/types"
)

// classCtx collects the items of one record while it is being lowered.
type classCtx struct {
	id   ast.DeclID
	d    *ast.Decl
	t    types.TypeID
	cl   *layout.ClassLayout
	name string
	key  string

	ctors []ast.DeclID
	dtor  ast.DeclID
	// copy is set once __init_copy exists
	copy bool

	// impl X: accessors, initializers, methods, thunks
	access  []*lir.Func
	inits   []*lir.Func
	methods []*lir.Func
	thunks  []*lir.Func
	im      *lir.Impl
	// impl X__Complete, only for records with virtual bases
	cim *lir.Impl
}

func (c *classCtx) complete() string { return c.name + completeSuffix }

// valueName is the struct a by-value object uses.
func (c *classCtx) valueName() string {
	if c.cl.HasVBases() {
		return c.complete()
	}
	return c.name
}

// lowerRecord emits the data struct, the complete-object struct, vtables,
// constructors, Drop and the methods of one class.
func (l *lowerer) lowerRecord(id ast.DeclID, d *ast.Decl, data *ast.RecordData, m *lir.Module) {
	info, ok := l.in.RecordInfo(d.Type)
	if !ok || !info.Complete || ast.DeclID(info.Decl) != id || l.done[d.Type] {
		return
	}
	l.done[d.Type] = true
	if info.Union || data.Tag == ast.RecordUnion {
		l.skipDecl(id, d, diag.LowUnion, "union `%s`", d.Name)
		m.Add(l.skipNote(id))
		return
	}
	cl := l.layoutOf(d.Type)
	if cl == nil {
		return
	}
	c := &classCtx{id: id, d: d, t: d.Type, cl: cl, name: l.names.Name(id), key: info.Key()}
	c.im = &lir.Impl{Target: c.name}
	if cl.HasVBases() {
		c.cim = &lir.Impl{Target: c.complete()}
	}

	st, ok := l.dataStruct(c)
	if !ok {
		m.Add(l.skipNote(id))
		return
	}
	m.Add(st)
	if cl.HasVBases() {
		m.Add(l.completeStruct(c))
	}

	for _, mid := range data.Members {
		md := l.u.Decl(mid)
		if md == nil {
			continue
		}
		switch x := md.Data.(type) {
		case *ast.FunctionData:
			switch x.Kind {
			case ast.FuncCtor:
				c.ctors = append(c.ctors, mid)
			case ast.FuncDtor:
				c.dtor = mid
			default:
				if f := l.lowerFunction(mid, md, x); f != nil {
					c.methods = append(c.methods, f)
				}
			}
		case *ast.VarData:
			l.lowerGlobal(mid, md, x, m, c.im)
		case *ast.EnumData:
			l.lowerEnum(mid, md, x, m, c.im)
		case *ast.RecordData:
			l.lowerRecord(mid, md, x, m)
			l.mod = m
		case *ast.UnsupportedDeclData:
			l.skipDecl(mid, md, unsupportedDeclCode(x.What), "%s", x.What)
			m.Add(l.skipNote(mid))
		}
	}

	l.vbaseAccessors(c)
	l.constructors(c)
	l.copyInit(c)
	if cl.Polymorphic {
		c.inits = append(c.inits, l.setVptrs(c))
		l.vtables(c, m)
	}
	if cl.HasVBases() {
		c.cim.Funcs = append(c.cim.Funcs, l.setVBaseOffsets(c), l.setVBaseVptrs(c))
	}

	c.im.Funcs = append(c.im.Funcs, c.access...)
	c.im.Funcs = append(c.im.Funcs, c.inits...)
	c.im.Funcs = append(c.im.Funcs, c.methods...)
	c.im.Funcs = append(c.im.Funcs, c.thunks...)
	m.Add(c.im)
	if c.cim != nil {
		m.Add(c.cim)
		m.Add(l.derefImpl(c, false))
		m.Add(l.derefImpl(c, true))
	}
	m.Add(l.dropImpl(c))
	if c.cim != nil {
		m.Add(l.completeDropImpl(c))
	}
	if im := l.cloneImpl(c); im != nil {
		m.Add(im)
	}
	if im := l.defaultImpl(c); im != nil {
		m.Add(im)
	}
	l.stats.Lowered++
}

// dataStruct lays out vptr, bases, vbase offsets and own fields.
func (l *lowerer) dataStruct(c *classCtx) (*lir.Struct, bool) {
	st := &lir.Struct{Name: c.name, Key: c.key, Origin: l.u.QualName(c.id)}
	if c.cl.OwnVPtr {
		st.Fields = append(st.Fields, lir.Field{Name: "__vptr", Type: lir.Path("::cxx_rt::VPtr"), Pub: true})
	}
	for _, b := range c.cl.Bases {
		st.Fields = append(st.Fields, lir.Field{Name: b.Field, Type: lir.ManuallyDrop(l.recordType(b.Type)), Pub: true})
	}
	for _, v := range c.cl.DirectVBases() {
		st.Fields = append(st.Fields, lir.Field{Name: v.OffsetField, Type: lir.ISz, Pub: true})
	}
	for _, f := range c.cl.Fields {
		fd := l.u.Decl(ast.DeclID(f.Decl))
		if data, ok := fd.Data.(*ast.FieldData); ok && data.BitWidth > 0 {
			diag.ReportWarning(l.rep, diag.LowBitField, fd.Span,
				"bit-field `"+f.Name+"` is stored as its full declared type").Emit()
		}
		t := l.fieldType(f.Type, fd)
		if t.Kind == lir.TyInfer {
			l.skipDecl(c.id, c.d, diag.LowUnsupportedConstruct, "field `%s` has a closure type", f.Name)
			return nil, false
		}
		st.Fields = append(st.Fields, lir.Field{Name: symbols.Ident(f.Name), Type: t, Pub: true})
	}
	return st, true
}

// fieldType is the stored type of a data member: references become raw
// pointers and anything with drop glue is wrapped in ManuallyDrop.
func (l *lowerer) fieldType(t types.TypeID, fd *ast.Decl) lir.Type {
	mt := l.tm.Map(t, fd.Span)
	if mt.IsRef() {
		return lir.RawPtr(*mt.Elem, mt.Mut)
	}
	if mt.Kind != lir.TyInfer && !mt.Copy() {
		return lir.ManuallyDrop(mt)
	}
	return mt
}

// wrapped reports a field stored as ManuallyDrop<T>.
func (l *lowerer) wrapped(field ast.DeclID) bool {
	d := l.u.Decl(field)
	if d == nil || l.in.Kind(d.Type) == types.KindReference {
		return false
	}
	t := l.quiet.Map(d.Type, d.Span)
	return t.Kind != lir.TyInfer && !t.Copy()
}

func (l *lowerer) completeStruct(c *classCtx) *lir.Struct {
	st := &lir.Struct{
		Name:   c.complete(),
		Key:    c.key + completeSuffix,
		Origin: l.u.QualName(c.id) + " (complete object)",
		Fields: []lir.Field{{Name: "__sub", Type: lir.ManuallyDrop(l.recordType(c.t)), Pub: true}},
	}
	for _, v := range c.cl.VBases {
		st.Fields = append(st.Fields, lir.Field{Name: v.Field, Type: lir.ManuallyDrop(l.recordType(v.Type)), Pub: true})
	}
	return st
}

func (l *lowerer) derefImpl(c *classCtx, mut bool) *lir.Impl {
	target := l.recordType(c.t)
	f := &lir.Func{
		Name:   "deref",
		Self:   lir.SelfRef,
		Result: lir.Ref(target, false),
		Body:   lir.Seq(nil, lir.Borrow(lir.Deref(lir.Dot(lir.Ident("self"), "__sub")), false)),
	}
	im := &lir.Impl{Target: c.complete(), Trait: "::core::ops::Deref", Assoc: []lir.Alias{{Name: "Target", Type: target}}}
	if mut {
		f.Name, f.Self, f.Result = "deref_mut", lir.SelfMut, lir.Ref(target, true)
		f.Body = lir.Seq(nil, lir.Borrow(lir.Deref(lir.Dot(lir.Ident("self"), "__sub")), true))
		im = &lir.Impl{Target: c.complete(), Trait: "::core::ops::DerefMut"}
	}
	im.Funcs = []*lir.Func{f}
	return im
}

// dropImpl runs the destructor body, then tears down own fields in reverse
// declaration order, then bases in reverse base-list order.
func (l *lowerer) dropImpl(c *classCtx) *lir.Impl {
	body := &lir.Block{}
	if c.cl.Polymorphic {
		body.Stmts = append(body.Stmts, lir.Do(lir.Unsafe(
			lir.CallPath("Self::__set_vptrs", lir.Cast(lir.Ident("self"), lir.RawPtr(lir.Path("Self"), true))))))
	}
	if user := l.dtorBody(c); user != nil {
		body.Stmts = append(body.Stmts, lir.Do(user))
	}
	var teardown []lir.Stmt
	for i := len(c.cl.Fields) - 1; i >= 0; i-- {
		f := c.cl.Fields[i]
		if l.wrapped(ast.DeclID(f.Decl)) {
			teardown = append(teardown, lir.Do(manualDrop(lir.Dot(lir.Ident("self"), symbols.Ident(f.Name)))))
		}
	}
	for i := len(c.cl.Bases) - 1; i >= 0; i-- {
		teardown = append(teardown, lir.Do(manualDrop(lir.Dot(lir.Ident("self"), c.cl.Bases[i].Field))))
	}
	if len(teardown) > 0 {
		body.Stmts = append(body.Stmts, lir.Do(&lir.Block{Unsafe: true, Stmts: teardown}))
	}
	drop := &lir.Func{Name: "drop", Self: lir.SelfMut, Body: body}
	if c.dtor != ast.NoDeclID {
		drop.Origin = l.u.QualName(c.dtor)
	}
	return &lir.Impl{Target: c.name, Trait: "Drop", Funcs: []*lir.Func{drop}}
}

func manualDrop(place lir.Expr) lir.Expr {
	return lir.CallPath("::core::mem::ManuallyDrop::drop", lir.Borrow(place, true))
}

// dtorBody lowers the user destructor into a block labeled so that `return`
// can leave it.
func (l *lowerer) dtorBody(c *classCtx) *lir.Block {
	if c.dtor == ast.NoDeclID {
		return nil
	}
	_, fd, _ := l.u.Func(c.dtor)
	if fd.Body == ast.NoStmtID {
		return nil
	}
	fc := l.newFnCtx(c.dtor)
	fc.rec, fc.self, fc.bodyLabel = c.t, selfMut, "__body"
	prev := l.fc
	l.fc = fc
	defer func() { l.fc = prev }()
	var b *lir.Block
	if l.opts.StubsOnly {
		b = lir.Seq(nil, lir.Mac("unimplemented"))
	} else {
		b = &lir.Block{Label: fc.bodyLabel, Stmts: l.blockStmts(fd.Body)}
	}
	if l.finishSkip(c.dtor, fc) {
		l.mod.Add(l.skipNote(c.dtor))
		return nil
	}
	l.stats.Lowered++
	return b
}

// completeDropImpl destroys the non-virtual part, then the virtual bases in
// reverse order of construction.
func (l *lowerer) completeDropImpl(c *classCtx) *lir.Impl {
	stmts := []lir.Stmt{lir.Do(manualDrop(lir.Dot(lir.Ident("self"), "__sub")))}
	for i := len(c.cl.VBases) - 1; i >= 0; i-- {
		stmts = append(stmts, lir.Do(manualDrop(lir.Dot(lir.Ident("self"), c.cl.VBases[i].Field))))
	}
	drop := &lir.Func{Name: "drop", Self: lir.SelfMut, Body: lir.Seq([]lir.Stmt{lir.Do(&lir.Block{Unsafe: true, Stmts: stmts})}, nil)}
	return &lir.Impl{Target: c.complete(), Trait: "Drop", Funcs: []*lir.Func{drop}}
}

// defaultImpl forwards Default to the default constructor.
func (l *lowerer) defaultImpl(c *classCtx) *lir.Impl {
	name, ok := l.defaultNew(c.t)
	if !ok {
		return nil
	}
	f := &lir.Func{Name: "default", Result: lir.Path("Self"), Body: lir.Seq(nil, lir.CallPath("Self::"+name))}
	return &lir.Impl{Target: c.valueName(), Trait: "Default", Funcs: []*lir.Func{f}}
}

// --- record queries --------------------------------------------------------

// ctorsOf lists the user-declared constructors of a record type.
func (l *lowerer) ctorsOf(rec types.TypeID) []ast.DeclID {
	_, data, ok := l.u.Record(l.u.RecordDecl(rec))
	if !ok {
		return nil
	}
	var out []ast.DeclID
	for _, m := range data.Members {
		if _, fd, ok := l.u.Func(m); ok && fd.Kind == ast.FuncCtor {
			out = append(out, m)
		}
	}
	return out
}

// defaultCtor finds the constructor callable without arguments. implicit is
// set when the record declares no constructor at all.
func (l *lowerer) defaultCtor(rec types.TypeID) (id ast.DeclID, implicit, ok bool) {
	ctors := l.ctorsOf(rec)
	if len(ctors) == 0 {
		return ast.NoDeclID, true, !l.noDefault[rec]
	}
	for _, c := range ctors {
		_, fd, _ := l.u.Func(c)
		if fd.Deleted || l.isCopyCtor(fd, rec) {
			continue
		}
		if l.defaultable(fd) {
			return c, false, !l.noDefault[rec] && !l.skipped[c]
		}
	}
	return ast.NoDeclID, false, false
}

// defaultable reports a parameter list that can be called empty.
func (l *lowerer) defaultable(fd *ast.FunctionData) bool {
	for _, p := range fd.Params {
		pd, ok := l.u.Decl(p).Data.(*ast.ParamData)
		if !ok || pd.Default == ast.NoExprID {
			return false
		}
	}
	return true
}

// defaultNew is the associated function that value-initializes rec.
func (l *lowerer) defaultNew(rec types.TypeID) (string, bool) {
	id, implicit, ok := l.defaultCtor(rec)
	switch {
	case !ok:
		return "", false
	case implicit:
		return "new", true
	}
	if _, fd, _ := l.u.Func(id); len(fd.Params) > 0 {
		// defaulted parameters are filled in by a zero-argument wrapper
		return "__new_default", true
	}
	return l.names.Name(id), true
}

// defaultInit is the in-place initializer matching defaultNew.
func (l *lowerer) defaultInit(rec types.TypeID) (string, bool) {
	id, implicit, ok := l.defaultCtor(rec)
	switch {
	case !ok:
		return "", false
	case implicit:
		return "__init", true
	}
	if _, fd, _ := l.u.Func(id); len(fd.Params) > 0 {
		return "__init_default", true
	}
	return l.names.InitName(id), true
}

// isCopyCtor reports X(const X&) and X(X&).
func (l *lowerer) isCopyCtor(fd *ast.FunctionData, rec types.TypeID) bool {
	if fd.Kind != ast.FuncCtor || len(fd.Params) == 0 {
		return false
	}
	for _, p := range fd.Params[1:] {
		if pd, ok := l.u.Decl(p).Data.(*ast.ParamData); !ok || pd.Default == ast.NoExprID {
			return false
		}
	}
	t, ok := l.in.Lookup(l.u.Decl(fd.Params[0]).Type)
	return ok && t.Kind == types.KindReference && !t.RValue && t.Elem == rec
}

func (l *lowerer) isMoveCtor(fd *ast.FunctionData, rec types.TypeID) bool {
	if fd.Kind != ast.FuncCtor || len(fd.Params) != 1 {
		return false
	}
	t, ok := l.in.Lookup(l.u.Decl(fd.Params[0]).Type)
	return ok && t.Kind == types.KindReference && t.RValue && t.Elem == rec
}

// copyCtor returns the user copy constructor, if any.
func (l *lowerer) copyCtor(rec types.TypeID) (ast.DeclID, *ast.FunctionData) {
	for _, c := range l.ctorsOf(rec) {
		if _, fd, _ := l.u.Func(c); l.isCopyCtor(fd, rec) {
			return c, fd
		}
	}
	return ast.NoDeclID, nil
}

// copyable reports whether values of t can be duplicated: records without a
// deleted (or implicitly deleted) copy constructor whose members are all
// copyable.
func (l *lowerer) copyable(t types.TypeID) bool {
	if v, ok := l.copyMemo[t]; ok {
		return v
	}
	l.copyMemo[t] = true
	v := l.computeCopyable(t)
	l.copyMemo[t] = v
	return v
}

func (l *lowerer) computeCopyable(t types.TypeID) bool {
	switch l.in.Kind(t) {
	case types.KindRecord:
		info, _ := l.in.RecordInfo(t)
		if info.Union || !info.Complete {
			return false
		}
		cc, fd := l.copyCtor(t)
		if cc != ast.NoDeclID {
			return !fd.Deleted
		}
		for _, c := range l.ctorsOf(t) {
			if _, fd, _ := l.u.Func(c); l.isMoveCtor(fd, t) {
				return false
			}
		}
		for _, b := range info.Bases {
			if !l.copyable(b.Type) {
				return false
			}
		}
		for _, f := range info.Fields {
			if !l.copyable(f.Type) {
				return false
			}
		}
		return true
	case types.KindStd:
		info, _ := l.in.StdInfo(t)
		if info.Template == "unique_ptr" {
			return false
		}
		for _, a := range info.Args {
			if !l.copyable(a) {
				return false
			}
		}
		return true
	case types.KindArray:
		elem, _ := l.in.Lookup(t)
		return l.copyable(elem.Elem)
	case types.KindClosure, types.KindUnsupported:
		return false
	}
	return true
}
