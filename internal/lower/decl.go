package lower

import (
	"fmt"
	"strconv"
	"strings"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
	"cxxlower/internal/trace"
	"cxxlower/internal/types"
)

// lowerMembers lowers the children of a namespace (0 for the unit) into m.
func (l *lowerer) lowerMembers(ns ast.DeclID, m *lir.Module) {
	for _, id := range l.u.Members(ns) {
		if l.fatal != nil || l.ctx.Err() != nil {
			return
		}
		d := l.u.Decl(id)
		if d == nil || d.System {
			continue
		}
		restore := l.enter(ns, id)
		prev := l.mod
		l.mod = m
		l.lowerDecl(ns, id, d, m)
		l.mod = prev
		restore()
	}
}

func (l *lowerer) lowerDecl(ns, id ast.DeclID, d *ast.Decl, m *lir.Module) {
	span := trace.Begin(trace.FromContext(l.ctx), trace.ScopeDecl, d.Kind.String(), trace.CurrentSpan(l.ctx))
	defer span.End(d.Name)

	switch data := d.Data.(type) {
	case *ast.NamespaceData:
		child := m.Child(l.names.Name(id))
		if d.Name == "" {
			child.Pub = false
		}
		l.addUses(id, child)
		l.lowerMembers(id, child)
	case *ast.RecordData:
		l.lowerRecord(id, d, data, m)
	case *ast.FunctionData:
		if f := l.lowerFunction(id, d, data); f != nil {
			m.Add(f)
		}
	case *ast.VarData:
		l.lowerGlobal(id, d, data, m, nil)
	case *ast.EnumData:
		l.lowerEnum(id, d, data, m, nil)
	case *ast.TypeAliasData:
		l.lowerAlias(id, d, data, m)
	case *ast.UsingDirectiveData, *ast.UsingDeclData:
		// re-emitted as `use` by addUses
	case *ast.UnsupportedDeclData:
		l.skipDecl(id, d, unsupportedDeclCode(data.What), "%s", data.What)
		m.Add(l.skipNote(id))
	}
}

func unsupportedDeclCode(what string) diag.Code {
	if strings.Contains(what, "template") {
		return diag.LowTemplatePattern
	}
	return diag.LowUnsupportedConstruct
}

// skipDecl reports why a declaration is left out of the output.
func (l *lowerer) skipDecl(id ast.DeclID, d *ast.Decl, code diag.Code, format string, args ...any) {
	l.stats.Skipped++
	msg := fmt.Sprintf(format, args...)
	if code == diag.LowTemplatePattern || code == diag.LowGenericLambdaInferred {
		diag.ReportInfo(l.rep, code, d.Span, msg).Emit()
		return
	}
	diag.ReportError(l.rep, code, d.Span, msg).
		WithNote(d.Span, fmt.Sprintf("declaration `%s` skipped", l.u.QualName(id))).
		Emit()
}

func (l *lowerer) skipNote(id ast.DeclID) *lir.Note {
	return &lir.Note{Text: fmt.Sprintf("cxxlower: `%s` skipped", l.u.QualName(id))}
}

func (l *lowerer) lowerAlias(id ast.DeclID, d *ast.Decl, data *ast.TypeAliasData, m *lir.Module) {
	switch l.in.Kind(data.Target) {
	case types.KindClosure, types.KindFunction, types.KindUnsupported:
		return
	}
	if p := l.u.Decl(d.Parent); p != nil && p.Kind == ast.DeclRecord {
		return
	}
	m.Add(&lir.Alias{Name: l.names.Name(id), Type: l.tm.Map(data.Target, d.Span), Pub: true})
	l.stats.Lowered++
}

// lowerEnum emits enumerators as integer constants. Scoped enums get a module
// of their own; unscoped enumerators of a record-nested enum become
// associated constants of the record (appended to im).
func (l *lowerer) lowerEnum(id ast.DeclID, d *ast.Decl, data *ast.EnumData, m *lir.Module, im *lir.Impl) {
	under := lir.I32
	if data.Underlying != types.NoTypeID {
		under = l.tm.Map(data.Underlying, d.Span)
	}
	consts := make([]*lir.Const, 0, len(data.Enumerators))
	for _, e := range data.Enumerators {
		ed := l.u.Decl(e)
		val, ok := ed.Data.(*ast.EnumeratorData)
		if !ok {
			continue
		}
		consts = append(consts, &lir.Const{
			Name:  l.names.Name(e),
			Type:  under,
			Value: lir.Lit(strconv.FormatInt(val.Value, 10)),
			Pub:   true,
		})
	}
	switch {
	case data.Scoped:
		mod := m.Child(l.names.Name(id))
		for _, c := range consts {
			mod.Add(c)
		}
	case im != nil:
		for _, c := range consts {
			im.Consts = append(im.Consts, c)
		}
	default:
		for _, c := range consts {
			m.Add(c)
		}
	}
	l.stats.Lowered++
}

// enumeratorPath is how an enumerator is referenced from the current position.
func (l *lowerer) enumeratorPath(e ast.DeclID) string {
	ed, _ := l.u.Decl(e).Data.(*ast.EnumeratorData)
	if ed != nil {
		if en := l.u.Decl(ed.Enum); en != nil {
			if data, ok := en.Data.(*ast.EnumData); ok && !data.Scoped {
				if p := l.u.Decl(en.Parent); p != nil && p.Kind == ast.DeclRecord {
					return l.memberPath(p.Type, l.names.Name(e))
				}
			}
		}
	}
	return l.declPath(e)
}

// lowerGlobal emits a namespace-scope variable or static data member.
// Constants with a constant initializer become `const` items; everything else
// lives in a lazily initialized GlobalSlot behind an accessor function.
// Static members put their accessor into im.
func (l *lowerer) lowerGlobal(id ast.DeclID, d *ast.Decl, data *ast.VarData, m *lir.Module, im *lir.Impl) {
	t := l.tm.Map(d.Type, d.Span)
	if l.in.Kind(d.Type) == types.KindReference {
		l.skipDecl(id, d, diag.LowUnsupportedConstruct, "reference-typed global `%s`", d.Name)
		m.Add(l.skipNote(id))
		return
	}
	name := l.names.Name(id)
	fc := l.newFnCtx(ast.NoDeclID)
	prev := l.fc
	l.fc = fc
	defer func() { l.fc = prev }()

	if (data.Const || data.Constexpr) && t.Kind == lir.TyPrim && l.isConstExpr(data.Init) {
		c := &lir.Const{Name: name, Type: t, Value: l.value(data.Init), Pub: true}
		if fc.skip {
			l.stats.Skipped++
			m.Add(l.skipNote(id))
			return
		}
		l.consts[id] = true
		if im != nil {
			im.Consts = append(im.Consts, c)
		} else {
			m.Add(c)
		}
		l.stats.Lowered++
		return
	}

	var init lir.Expr
	if data.Init != ast.NoExprID {
		init = l.initValue(data.Init, d.Type)
	} else {
		init = l.defaultValue(d.Type, t)
	}
	if fc.skip {
		l.stats.Skipped++
		m.Add(l.skipNote(id))
		return
	}
	if fc.unsafeUse {
		init = lir.Unsafe(init)
	}
	slot, accessor := "__G_"+name, l.names.Path(id)
	if rec, _ := l.recordOf(id); rec != ast.NoDeclID {
		slot = l.names.Name(rec) + "__S_" + name
		accessor = l.names.Path(rec) + "::" + name
	}
	static, acc := slotItems(name, slot, t, init)
	acc.Origin = l.u.QualName(id)
	m.Add(static)
	if im != nil {
		im.Funcs = append(im.Funcs, acc)
	} else {
		m.Add(acc)
	}
	l.crate.StaticInit = append(l.crate.StaticInit, accessor)
	l.stats.Lowered++
}

// slotItems builds a GlobalSlot static and the accessor that initializes it
// on first use.
func slotItems(name, slot string, t lir.Type, init lir.Expr) (*lir.Static, *lir.Func) {
	static := &lir.Static{
		Name:  slot,
		Type:  lir.Path("::cxx_rt::GlobalSlot", t),
		Value: lir.CallPath("::cxx_rt::GlobalSlot::new"),
	}
	acc := &lir.Func{
		Name:   name,
		Pub:    true,
		Result: lir.StaticRef(t),
		Body:   lir.Seq(nil, lir.MCall(lir.Ident(slot), "get_or_init", &lir.Closure{Body: init})),
	}
	return static, acc
}

// globalRef is the place a global or static member designates.
func (l *lowerer) globalRef(id ast.DeclID, data *ast.VarData) lir.Expr {
	if acc, ok := l.statics[id]; ok {
		return lir.Deref(lir.CallPath(acc))
	}
	rec, rt := l.recordOf(id)
	name := l.names.Name(id)
	if rec != ast.NoDeclID {
		if l.consts[id] {
			return lir.Ident(l.memberPath(rt, name))
		}
		return lir.Deref(lir.CallPath(l.memberPath(rt, name)))
	}
	if l.consts[id] {
		return lir.Ident(l.declPath(id))
	}
	return lir.Deref(lir.CallPath(l.declPath(id)))
}

// isConstExpr reports initializers a Rust `const` item can hold.
func (l *lowerer) isConstExpr(id ast.ExprID) bool {
	e := l.u.Expr(id)
	if e == nil {
		return false
	}
	switch x := e.Data.(type) {
	case *ast.LiteralData:
		return x.Kind != ast.LitString && x.Kind != ast.LitNullptr
	case *ast.DeclRefData:
		d := l.u.Decl(x.Decl)
		return d != nil && (d.Kind == ast.DeclEnumerator || l.consts[x.Decl])
	case *ast.UnaryData:
		switch x.Op {
		case ast.UnNeg, ast.UnPlus, ast.UnNot, ast.UnBitNot:
			return l.isConstExpr(x.X)
		}
	case *ast.BinaryData:
		if x.Op.IsAssign() || x.Op == ast.BinComma {
			return false
		}
		return l.isConstExpr(x.X) && l.isConstExpr(x.Y)
	case *ast.CastData:
		switch x.Kind {
		case ast.CastNoOp, ast.CastLValueToRValue, ast.CastIntegral, ast.CastFloating,
			ast.CastIntToFloat, ast.CastFloatToInt, ast.CastToBool, ast.CastEnumToInt, ast.CastIntToEnum:
			return l.isConstExpr(x.X)
		}
	case *ast.ConditionalData:
		return l.isConstExpr(x.Cond) && l.isConstExpr(x.Then) && l.isConstExpr(x.Else)
	}
	return false
}
