package frontend

import (
	"fmt"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

// Build turns a decoded document into a unit. Dangling references are
// reported as InpBadReference and replaced by unsupported nodes, so only
// the declarations that use them are lost.
func Build(doc *Doc, rep diag.Reporter, ex *Excluder) *ast.Unit {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	fs := source.NewFileSet()
	u := ast.NewUnit(doc.Unit, fs, types.NewInterner())
	b := &builder{
		doc:   doc,
		u:     u,
		in:    u.Types,
		rep:   rep,
		ex:    ex,
		types: make([]types.TypeID, len(doc.Types)+1),
		busy:  make([]bool, len(doc.Types)+1),
		decls: make(map[int]ast.DeclID),
		noted: make(map[string]bool),
	}
	for _, f := range doc.Files {
		var flags source.FileFlags
		if f.System {
			flags = source.FileSystem
		}
		b.files = append(b.files, fs.Intern(f.Path, flags))
		b.system = append(b.system, f.System)
	}
	for _, d := range doc.Decls {
		b.declare(ast.NoDeclID, d)
	}
	// bodies may queue more work (lambda default arguments)
	for i := 0; i < len(b.pending); i++ {
		b.pending[i]()
	}
	return u
}

type builder struct {
	doc *Doc
	u   *ast.Unit
	in  *types.Interner
	rep diag.Reporter
	ex  *Excluder

	files  []source.FileID
	system []bool
	types  []types.TypeID
	busy   []bool
	decls  map[int]ast.DeclID
	// bodies and initializers, run once every declaration has an id
	pending []func()
	noted   map[string]bool
}

func (b *builder) span(l Loc) source.Span {
	if int(l.File) >= len(b.files) {
		return source.Span{Line: l.Line, Col: l.Col}
	}
	return source.Span{File: b.files[l.File], Line: l.Line, Col: l.Col}
}

func (b *builder) badRef(at Loc, format string, args ...any) {
	diag.ReportError(b.rep, diag.InpBadReference, b.span(at), fmt.Sprintf(format, args...)).Emit()
}

// --- types ----------------------------------------------------------------

var intWidths = map[int]types.Width{8: types.Width8, 16: types.Width16, 32: types.Width32, 64: types.Width64, 128: types.Width128}

func (b *builder) typ(i int) types.TypeID {
	if i <= 0 {
		return types.NoTypeID
	}
	if i >= len(b.types) {
		b.badRef(Loc{}, "type index %d out of range", i)
		return types.NoTypeID
	}
	if id := b.types[i]; id != types.NoTypeID {
		return id
	}
	if b.busy[i] {
		b.badRef(Loc{}, "type %d contains itself", i)
		return types.NoTypeID
	}
	b.busy[i] = true
	defer func() { b.busy[i] = false }()

	t := &b.doc.Types[i-1]
	bi := b.in.Builtins()
	var id types.TypeID
	switch t.Kind {
	case "void":
		id = bi.Void
	case "bool":
		id = bi.Bool
	case "nullptr":
		id = bi.Nullptr
	case "int":
		w, ok := intWidths[t.Width]
		if !ok {
			b.badRef(Loc{}, "type %d: integer width %d", i, t.Width)
			return types.NoTypeID
		}
		id = b.in.Intern(types.MakeInt(w, t.Signed))
	case "float":
		w, ok := intWidths[t.Width]
		if !ok || w < types.Width32 {
			b.badRef(Loc{}, "type %d: float width %d", i, t.Width)
			return types.NoTypeID
		}
		id = b.in.Intern(types.MakeFloat(w))
	case "pointer":
		id = b.in.Pointer(b.typ(t.Elem), t.Const)
	case "reference":
		id = b.in.Reference(b.typ(t.Elem), t.Const, t.RValue)
	case "array":
		id = b.in.Array(b.typ(t.Elem), t.Count)
	case "record":
		id = b.in.Record(t.Name, t.QualName, t.USR)
		if info, ok := b.in.RecordInfo(id); ok && t.Size > 0 {
			info.Size = t.Size
		}
	case "enum":
		id = b.in.Enum(types.EnumInfo{Name: t.Name, QualName: t.QualName, USR: t.USR, Underlying: b.typ(t.Underlying), Scoped: t.Scoped})
	case "std":
		args := make([]types.TypeID, 0, len(t.Args))
		for _, a := range t.Args {
			args = append(args, b.typ(a))
		}
		id = b.in.Std(t.Template, args...)
	case "function":
		params := make([]types.TypeID, 0, len(t.Params))
		for _, p := range t.Params {
			params = append(params, b.typ(p))
		}
		id = b.in.Func(b.typ(t.Result), params, t.Variadic)
	case "closure":
		// the lambda expression fills in its id
		id = b.in.Closure(types.ClosureInfo{})
	case "unsupported":
		id = b.in.Unsupported(t.Spelling, t.Size)
	default:
		b.badRef(Loc{}, "type %d has unknown kind %q", i, t.Kind)
		return types.NoTypeID
	}
	b.types[i] = id
	return id
}

// --- declarations ---------------------------------------------------------

var accessKinds = map[string]ast.Access{"public": ast.AccessPublic, "protected": ast.AccessProtected, "private": ast.AccessPrivate}

var funcKinds = map[string]ast.FuncKind{
	"free": ast.FuncFree, "method": ast.FuncMethod, "static": ast.FuncStaticMethod,
	"ctor": ast.FuncCtor, "dtor": ast.FuncDtor, "operator": ast.FuncOperator,
	"conversion": ast.FuncConversion, "lambda": ast.FuncLambda,
}

var storageKinds = map[string]ast.StorageKind{
	"": ast.StorageLocal, "local": ast.StorageLocal, "global": ast.StorageGlobal,
	"static_member": ast.StorageStaticMember, "static_local": ast.StorageStaticLocal,
}

func (b *builder) isSystem(l Loc) bool {
	return int(l.File) < len(b.system) && b.system[l.File]
}

func (b *builder) excluded(w *Decl) bool {
	if b.ex == nil || int(w.Loc.File) >= len(b.doc.Files) {
		return false
	}
	path := b.doc.Files[w.Loc.File].Path
	if !b.ex.Match(path) {
		return false
	}
	if !b.noted[path] {
		b.noted[path] = true
		diag.ReportInfo(b.rep, diag.InpExcluded, b.span(w.Loc), "declarations from "+path+" excluded").Emit()
	}
	return true
}

// declare allocates w (and its members) under parent and queues the parts
// that may reference declarations not seen yet.
func (b *builder) declare(parent ast.DeclID, w *Decl) ast.DeclID {
	if w == nil {
		return ast.NoDeclID
	}
	if p := b.u.Decl(parent); (parent == ast.NoDeclID || p.Kind == ast.DeclNamespace) && b.excluded(w) {
		return ast.NoDeclID
	}
	d := ast.Decl{Span: b.span(w.Loc), Name: w.Name, Type: b.typ(w.Type), Access: accessKinds[w.Access], System: b.isSystem(w.Loc)}
	var id ast.DeclID
	add := func() ast.DeclID {
		id = b.u.NewDecl(d)
		b.u.AddMember(parent, id)
		if w.ID != 0 {
			b.decls[w.ID] = id
		}
		return id
	}
	switch w.Kind {
	case "namespace":
		d.Kind, d.Data = ast.DeclNamespace, &ast.NamespaceData{Inline: w.Inline}
		add()
		for _, m := range w.Members {
			b.declare(id, m)
		}
	case "using_directive":
		data := &ast.UsingDirectiveData{}
		d.Kind, d.Data = ast.DeclUsingDirective, data
		add()
		b.pending = append(b.pending, func() { data.Namespace = b.target(w) })
	case "using":
		data := &ast.UsingDeclData{}
		d.Kind, d.Data = ast.DeclUsingDecl, data
		add()
		b.pending = append(b.pending, func() { data.Target = b.target(w) })
	case "alias":
		d.Kind, d.Data = ast.DeclTypeAlias, &ast.TypeAliasData{Target: d.Type}
		add()
	case "record":
		b.declareRecord(&d, w, add)
	case "field":
		data := &ast.FieldData{BitWidth: w.BitWidth, Mutable: w.Mutable}
		d.Kind, d.Data = ast.DeclField, data
		add()
		if info, ok := b.in.RecordInfo(b.u.Decl(parent).Type); ok {
			info.Fields = append(info.Fields, types.Field{Name: d.Name, Type: d.Type, Decl: uint32(id)})
		}
		if w.Init != nil {
			b.pending = append(b.pending, func() { data.Init = b.expr(w.Init) })
		}
	case "function":
		b.declareFunc(parent, &d, w, add)
	case "var":
		data := &ast.VarData{Storage: storageKinds[w.Storage], Const: w.Const, Constexpr: w.Constexpr, Auto: w.Auto}
		d.Kind, d.Data = ast.DeclVar, data
		add()
		if w.Init != nil {
			b.pending = append(b.pending, func() { data.Init = b.expr(w.Init) })
		}
	case "enum":
		data := &ast.EnumData{Underlying: b.typ(w.Underlying), Scoped: w.Scoped}
		if data.Underlying == types.NoTypeID {
			data.Underlying = b.in.Builtins().I32
		}
		d.Kind, d.Data = ast.DeclEnum, data
		add()
		if info, ok := b.in.EnumInfo(d.Type); ok {
			info.Decl = uint32(id)
		}
		for _, m := range w.Members {
			e := ast.Decl{Kind: ast.DeclEnumerator, Span: b.span(m.Loc), Name: m.Name, Type: d.Type,
				Data: &ast.EnumeratorData{Value: m.Value, Enum: id}}
			eid := b.u.NewDecl(e)
			b.u.AddMember(id, eid)
			if m.ID != 0 {
				b.decls[m.ID] = eid
			}
		}
	default:
		what := w.What
		if what == "" {
			what = fmt.Sprintf("declaration kind %q", w.Kind)
		}
		d.Kind, d.Data = ast.DeclUnsupported, &ast.UnsupportedDeclData{What: what}
		add()
	}
	return id
}

func (b *builder) target(w *Decl) ast.DeclID {
	id, ok := b.decls[w.Target]
	if !ok {
		b.badRef(w.Loc, "`%s` names unknown declaration %d", w.Name, w.Target)
	}
	return id
}

func (b *builder) declareRecord(d *ast.Decl, w *Decl, add func() ast.DeclID) {
	data := &ast.RecordData{Template: w.Template}
	switch w.Tag {
	case "class":
		data.Tag = ast.RecordClass
	case "union":
		data.Tag = ast.RecordUnion
	}
	d.Kind, d.Data = ast.DeclRecord, data
	if b.in.Kind(d.Type) != types.KindRecord {
		b.badRef(w.Loc, "record `%s` has a non-record type", w.Name)
		d.Kind, d.Data = ast.DeclUnsupported, &ast.UnsupportedDeclData{What: "record without a record type"}
		add()
		return
	}
	id := add()
	if !w.Complete {
		return
	}
	// resolve bases first: interning may grow the record table
	bases := make([]types.Base, 0, len(w.Bases))
	for _, base := range w.Bases {
		bases = append(bases, types.Base{Type: b.typ(base.Type), Virtual: base.Virtual})
	}
	info, _ := b.in.RecordInfo(d.Type)
	info.Decl = uint32(id)
	info.Complete = true
	info.Union = data.Tag == ast.RecordUnion
	info.Final = w.Final
	info.Bases, info.Fields, info.Virtuals = bases, nil, nil
	for _, m := range w.Members {
		b.declare(id, m)
	}
}

// newFunc builds the FunctionData and parameters of w; the body and
// initializers are queued.
func (b *builder) newFunc(w *Decl, record types.TypeID) *ast.FunctionData {
	wf := w.Func
	kind, ok := funcKinds[wf.Kind]
	if !ok {
		b.badRef(w.Loc, "function `%s` has unknown kind %q", w.Name, wf.Kind)
	}
	fd := &ast.FunctionData{
		Kind: kind, Result: b.typ(wf.Result), Operator: wf.Operator,
		Virtual: wf.Virtual, Pure: wf.Pure, Override: wf.Override, Final: wf.Final, Const: wf.Const,
		Variadic: wf.Variadic, Defaulted: wf.Defaulted, Deleted: wf.Deleted, Template: wf.Template,
	}
	if kind != ast.FuncFree && kind != ast.FuncLambda {
		fd.Record = record
	}
	if fd.Result == types.NoTypeID {
		fd.Result = b.in.Builtins().Void
	}
	return fd
}

func (b *builder) params(fn ast.DeclID, fd *ast.FunctionData, ws []*Decl) {
	for i, p := range ws {
		data := &ast.ParamData{Index: i}
		pid := b.u.NewDecl(ast.Decl{Kind: ast.DeclParam, Span: b.span(p.Loc), Name: p.Name, Type: b.typ(p.Type), Parent: fn, Data: data})
		if p.ID != 0 {
			b.decls[p.ID] = pid
		}
		fd.Params = append(fd.Params, pid)
		if p.Default != nil {
			b.pending = append(b.pending, func() { data.Default = b.expr(p.Default) })
		}
	}
}

func (b *builder) declareFunc(parent ast.DeclID, d *ast.Decl, w *Decl, add func() ast.DeclID) {
	if w.Func == nil {
		d.Kind, d.Data = ast.DeclUnsupported, &ast.UnsupportedDeclData{What: "function without signature"}
		add()
		return
	}
	var record types.TypeID
	if p := b.u.Decl(parent); p != nil && p.Kind == ast.DeclRecord {
		record = p.Type
	}
	fd := b.newFunc(w, record)
	d.Kind, d.Data = ast.DeclFunction, fd
	id := add()
	b.params(id, fd, w.Func.Params)
	b.signature(id, fd)

	if fd.Record != types.NoTypeID {
		info, _ := b.in.RecordInfo(fd.Record)
		if fd.Virtual && info != nil {
			info.Virtuals = append(info.Virtuals, types.Virtual{
				Name: w.Name, Sig: fd.Sig, Decl: uint32(id), Final: fd.Final, Pure: fd.Pure, Dtor: fd.Kind == ast.FuncDtor,
			})
		}
		if fd.Kind == ast.FuncDtor && w.Func.Body != nil && info != nil {
			info.HasDtor = true
		}
	}
	b.pending = append(b.pending, func() { b.funcBody(fd, w.Func) })
}

func (b *builder) signature(id ast.DeclID, fd *ast.FunctionData) {
	d := b.u.Decl(id)
	ptypes := b.u.ParamTypes(fd)
	if d.Type == types.NoTypeID || b.in.Kind(d.Type) != types.KindFunction {
		d.Type = b.in.Func(fd.Result, ptypes, fd.Variadic)
	}
	fd.Sig = ast.Signature(b.in, fd.Kind, d.Name, ptypes, fd.Const)
}

func (b *builder) funcBody(fd *ast.FunctionData, wf *Func) {
	for _, in := range wf.Inits {
		ci := ast.CtorInit{Base: b.typ(in.Base), Span: b.span(in.Loc), Delegating: in.Delegating}
		if in.Field != 0 {
			f, ok := b.decls[in.Field]
			if !ok {
				b.badRef(in.Loc, "initializer names unknown field %d", in.Field)
				continue
			}
			ci.Field = f
		}
		if in.Ctor != 0 {
			ci.Ctor = b.decls[in.Ctor]
		}
		for _, a := range in.Args {
			ci.Args = append(ci.Args, b.expr(a))
		}
		fd.Inits = append(fd.Inits, ci)
	}
	if wf.Body != nil {
		fd.Body = b.stmt(wf.Body)
	}
}

// local allocates a block-scope variable.
func (b *builder) local(w *Decl) ast.DeclID {
	if w == nil {
		return ast.NoDeclID
	}
	data := &ast.VarData{Storage: storageKinds[w.Storage], Const: w.Const, Constexpr: w.Constexpr, Auto: w.Auto}
	id := b.u.NewDecl(ast.Decl{Kind: ast.DeclVar, Span: b.span(w.Loc), Name: w.Name, Type: b.typ(w.Type), Data: data})
	if w.ID != 0 {
		b.decls[w.ID] = id
	}
	if w.Init != nil {
		data.Init = b.expr(w.Init)
	}
	return id
}

// --- statements -----------------------------------------------------------

func (b *builder) stmt(w *Stmt) ast.StmtID {
	if w == nil {
		return ast.NoStmtID
	}
	s := ast.Stmt{Span: b.span(w.Loc)}
	switch w.Kind {
	case "compound":
		s.Kind, s.Data = ast.StmtCompound, &ast.CompoundData{Stmts: b.stmts(w.Stmts)}
	case "decl":
		data := &ast.DeclStmtData{}
		for _, v := range w.Vars {
			data.Vars = append(data.Vars, b.local(v))
		}
		s.Kind, s.Data = ast.StmtDecl, data
	case "expr":
		s.Kind, s.Data = ast.StmtExpr, &ast.ExprStmtData{Expr: b.expr(w.Expr)}
	case "if":
		init := b.stmt(w.Init)
		s.Kind, s.Data = ast.StmtIf, &ast.IfData{Init: init, Cond: b.expr(w.Cond), Then: b.stmt(w.Then), Else: b.stmt(w.Else)}
	case "while":
		s.Kind, s.Data = ast.StmtWhile, &ast.WhileData{Cond: b.expr(w.Cond), Body: b.stmt(w.Body)}
	case "do":
		body := b.stmt(w.Body)
		s.Kind, s.Data = ast.StmtDoWhile, &ast.DoWhileData{Body: body, Cond: b.expr(w.Cond)}
	case "for":
		init := b.stmt(w.Init)
		s.Kind, s.Data = ast.StmtFor, &ast.ForData{Init: init, Cond: b.expr(w.Cond), Inc: b.expr(w.Inc), Body: b.stmt(w.Body)}
	case "range_for":
		rng := b.expr(w.Range)
		v := b.local(w.Var)
		s.Kind, s.Data = ast.StmtRangeFor, &ast.RangeForData{Var: v, Range: rng, Body: b.stmt(w.Body)}
	case "switch":
		data := &ast.SwitchData{Cond: b.expr(w.Cond)}
		for _, c := range w.Cases {
			sc := ast.SwitchCase{Default: c.Default, Span: b.span(c.Loc)}
			for _, v := range c.Values {
				sc.Values = append(sc.Values, b.expr(v))
			}
			sc.Body = b.stmts(c.Body)
			data.Cases = append(data.Cases, sc)
		}
		s.Kind, s.Data = ast.StmtSwitch, data
	case "break":
		s.Kind, s.Data = ast.StmtBreak, &ast.BreakData{}
	case "continue":
		s.Kind, s.Data = ast.StmtContinue, &ast.ContinueData{}
	case "return":
		s.Kind, s.Data = ast.StmtReturn, &ast.ReturnData{Value: b.expr(w.Expr)}
	case "try":
		data := &ast.TryData{Body: b.stmt(w.Body)}
		for _, h := range w.Handlers {
			cc := ast.CatchClause{Type: b.typ(h.Type), Span: b.span(h.Loc)}
			cc.Var = b.local(h.Var)
			cc.Body = b.stmt(h.Body)
			data.Handlers = append(data.Handlers, cc)
		}
		s.Kind, s.Data = ast.StmtTry, data
	case "null":
		s.Kind, s.Data = ast.StmtNull, &ast.NullData{}
	default:
		what := w.What
		if what == "" {
			what = fmt.Sprintf("statement kind %q", w.Kind)
		}
		s.Kind, s.Data = ast.StmtUnsupported, &ast.UnsupportedStmtData{What: what}
	}
	return b.u.NewStmt(s)
}

func (b *builder) stmts(ws []*Stmt) []ast.StmtID {
	out := make([]ast.StmtID, 0, len(ws))
	for _, w := range ws {
		out = append(out, b.stmt(w))
	}
	return out
}
