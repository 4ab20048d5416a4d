package lower

import (
	"fmt"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
	"cxxlower/internal/source"
	"cxxlower/internal/symbols"
	"cxxlower/internal/typemap"
	"cxxlower/internal/types"
)

type bindKind uint8

const (
	bindValue bindKind = iota
	// bindRef holds a Rust reference; uses go through `*name`
	bindRef
	// bindPtr holds a raw pointer standing in for a C++ reference
	bindPtr
)

type binding struct {
	name string
	kind bindKind
}

type selfMode uint8

const (
	selfNone selfMode = iota
	selfMut
	selfConst
	// selfPtr: the object is the raw pointer parameter `this`
	selfPtr
)

type loopFrame struct {
	label string
	// cont is the block label `continue` breaks out of; empty means
	// `continue 'label`.
	cont  string
	swtch bool
	// tries is the fnCtx try depth the frame was opened at
	tries    int
	contUsed bool
}

// fnCtx is the state of one function body being lowered.
type fnCtx struct {
	fn     ast.DeclID
	rec    types.TypeID
	self   selfMode
	result types.TypeID
	retPtr bool
	locals map[ast.DeclID]binding
	loops  []loopFrame
	tries  int
	// exVars are the exception bindings of the enclosing handlers
	exVars []string
	// bodyLabel is broken out of by `return;` in destructor bodies
	bodyLabel string
	// thisVar is a raw pointer binding standing in for `this` inside closures
	thisVar string

	labels    int
	tmps      int
	unsafeUse bool
	skip      bool
	skipCode  diag.Code
	skipWhy   string
	skipAt    source.Span
}

func (l *lowerer) newFnCtx(fn ast.DeclID) *fnCtx {
	return &fnCtx{fn: fn, locals: make(map[ast.DeclID]binding)}
}

func (fc *fnCtx) label(prefix string) string {
	fc.labels++
	return fmt.Sprintf("%s%d", prefix, fc.labels)
}

func (fc *fnCtx) tmp(prefix string) string {
	fc.tmps++
	return fmt.Sprintf("__%s%d", prefix, fc.tmps)
}

// bail marks the current declaration as unlowerable. The first reason wins.
func (l *lowerer) bail(at source.Span, code diag.Code, format string, args ...any) lir.Expr {
	fc := l.fc
	if fc != nil && !fc.skip {
		fc.skip = true
		fc.skipCode = code
		fc.skipWhy = fmt.Sprintf(format, args...)
		fc.skipAt = at
	}
	return lir.Mac("::core::unreachable")
}

// finishSkip reports a bailed declaration; it returns true when id is skipped.
func (l *lowerer) finishSkip(id ast.DeclID, fc *fnCtx) bool {
	if !fc.skip {
		return false
	}
	d := l.u.Decl(id)
	l.stats.Skipped++
	code := fc.skipCode
	if code == diag.LowGenericLambdaInferred {
		diag.ReportInfo(l.rep, code, fc.skipAt, fc.skipWhy).Emit()
		return true
	}
	diag.ReportError(l.rep, code, fc.skipAt, fc.skipWhy).
		WithNote(d.Span, fmt.Sprintf("declaration `%s` skipped", l.u.QualName(id))).
		Emit()
	return true
}

func (l *lowerer) localName(id ast.DeclID) string {
	d := l.u.Decl(id)
	if d == nil || d.Name == "" {
		return fmt.Sprintf("__v%d", id)
	}
	return symbols.Ident(d.Name)
}

// lowerFunction lowers a free function, method, static method, operator or
// conversion function. A nil result with skipped=false means there is
// nothing to emit (declarations, deleted functions).
func (l *lowerer) lowerFunction(id ast.DeclID, d *ast.Decl, fd *ast.FunctionData) *lir.Func {
	f, skipped := l.lowerFunc(id, d, fd)
	if skipped {
		l.skipped[id] = true
		l.mod.Add(l.skipNote(id))
	}
	return f
}

func (l *lowerer) lowerFunc(id ast.DeclID, d *ast.Decl, fd *ast.FunctionData) (*lir.Func, bool) {
	if fd.Deleted || (fd.Body == ast.NoStmtID && !fd.Defaulted) {
		return nil, false
	}
	if fd.Variadic {
		l.skipDecl(id, d, diag.LowVariadic, "variadic function `%s`", d.Name)
		return nil, true
	}
	fc := l.newFnCtx(id)
	prev := l.fc
	l.fc = fc
	defer func() { l.fc = prev }()

	f := &lir.Func{Name: l.names.Name(id), Pub: true, Origin: l.u.QualName(id)}
	if fd.Record != types.NoTypeID && fd.Kind != ast.FuncStaticMethod {
		fc.rec = fd.Record
		fc.self = selfMut
		f.Self = lir.SelfMut
		if fd.Const {
			fc.self = selfConst
			f.Self = lir.SelfRef
		}
	}
	f.Params = l.params(fd)
	f.Result = l.result(fd, d.Span, f.Self != lir.SelfNone)
	if fd.Defaulted {
		l.bail(d.Span, diag.LowUnsupportedConstruct, "defaulted `%s`", d.Name)
	} else {
		f.Body = l.fnBody(fd.Body, f.Result, d.Name == "main" && fd.Record == types.NoTypeID)
	}
	if l.finishSkip(id, fc) {
		return nil, true
	}
	l.stats.Lowered++
	return f, false
}

// params binds the parameters in the current fnCtx and returns them.
func (l *lowerer) params(fd *ast.FunctionData) []lir.Param {
	out := make([]lir.Param, 0, len(fd.Params))
	for _, p := range fd.Params {
		pd := l.u.Decl(p)
		t, style := l.tm.Param(pd.Type, pd.Span)
		if t.Kind == lir.TyInfer {
			l.bail(pd.Span, diag.LowUnsupportedConstruct, "closure-typed parameter `%s`", pd.Name)
		}
		name := l.localName(p)
		kind := bindValue
		if style == typemap.ByRef {
			kind = bindRef
		}
		l.fc.locals[p] = binding{name: name, kind: kind}
		out = append(out, lir.Param{Name: "mut " + name, Type: t})
	}
	return out
}

// result maps a function result. A reference result that Rust lifetime
// elision cannot tie to an input becomes a raw pointer.
func (l *lowerer) result(fd *ast.FunctionData, at source.Span, hasSelf bool) lir.Type {
	l.fc.result = fd.Result
	t := l.tm.Map(fd.Result, at)
	if t.Kind == lir.TyInfer {
		l.bail(at, diag.LowUnsupportedConstruct, "function returns a closure")
		return lir.Unit
	}
	if !t.IsRef() || hasSelf || !l.rawRefResult(fd) {
		return t
	}
	l.fc.retPtr = true
	return lir.RawPtr(*t.Elem, t.Mut)
}

// fnBody lowers a compound body. A trailing `return v;` becomes the tail.
func (l *lowerer) fnBody(body ast.StmtID, result lir.Type, isMain bool) *lir.Block {
	if l.opts.StubsOnly {
		return lir.Seq(nil, lir.Mac("unimplemented"))
	}
	b := &lir.Block{Stmts: l.blockStmts(body)}
	finishTail(b, result, isMain)
	return b
}

func finishTail(b *lir.Block, result lir.Type, isMain bool) {
	if n := len(b.Stmts); n > 0 {
		if es, ok := b.Stmts[n-1].(*lir.ExprStmt); ok {
			if ret, ok := es.X.(*lir.ReturnExpr); ok {
				b.Stmts = b.Stmts[:n-1]
				b.Tail = ret.Value
			}
		}
	}
	if b.Tail != nil || result.IsUnit() {
		return
	}
	if isMain {
		b.Tail = lir.Lit("0")
		return
	}
	b.Tail = lir.Mac("::core::unreachable")
}
