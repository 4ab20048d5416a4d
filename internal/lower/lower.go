// Package lower turns a resolved C++ translation unit into a lir.Crate.
//
// Declarations are walked once, top to bottom. Each namespace becomes a Rust
// module, each record a set of structs and impls built from its ClassLayout,
// and each function body is lowered statement by statement. Constructs with no
// mapping are reported as diagnostics and the enclosing declaration is
// skipped; layout invariant failures abort the unit with a *FatalError.
package lower

import (
	"context"
	"errors"
	"fmt"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/layout"
	"cxxlower/internal/lir"
	"cxxlower/internal/source"
	"cxxlower/internal/symbols"
	"cxxlower/internal/trace"
	"cxxlower/internal/typemap"
	"cxxlower/internal/types"
)

// Options control one lowering run.
type Options struct {
	// StubsOnly replaces every body with `unimplemented!()`.
	StubsOnly bool
}

// FatalError aborts lowering of one unit.
type FatalError struct {
	Code diag.Code
	Span source.Span
	Msg  string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code.ID(), e.Msg)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Stats summarize what a run produced.
type Stats struct {
	Lowered   int
	Skipped   int
	Fallbacks int
}

type lowerer struct {
	ctx   context.Context
	u     *ast.Unit
	in    *types.Interner
	rep   diag.Reporter
	opts  Options
	tab   *symbols.Table
	names *symbols.Namer
	lay   *layout.Engine
	tm    *typemap.Mapper
	// quiet maps types for inspection without reporting fallbacks
	quiet *typemap.Mapper
	crate *lir.Crate
	mod   *lir.Module
	fc    *fnCtx
	stats Stats

	// position used to decide between short names and crate paths
	scope symbols.ScopeID
	at    int

	// records already lowered, by type
	done map[types.TypeID]bool
	// hoisted static locals: decl -> accessor path
	statics map[ast.DeclID]string
	consts  map[ast.DeclID]bool
	// functions that were reported and left out
	skipped  map[ast.DeclID]bool
	copyMemo map[types.TypeID]bool
	// records whose default constructor turned out to be unusable
	noDefault map[types.TypeID]bool
	fatal     *FatalError
}

// Lower lowers u. Recoverable problems go to rep; the returned error is a
// *FatalError when the unit cannot be lowered at all.
func Lower(ctx context.Context, u *ast.Unit, rep diag.Reporter, opts Options) (*lir.Crate, Stats, error) {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	l := &lowerer{
		ctx:     ctx,
		u:       u,
		in:      u.Types,
		rep:     rep,
		opts:    opts,
		tab:     symbols.Build(u),
		lay:     layout.New(u.Types),
		crate:   lir.NewCrate(u.Name),
		done:    make(map[types.TypeID]bool),
		statics: make(map[ast.DeclID]string),
		consts:  make(map[ast.DeclID]bool),

		skipped:  make(map[ast.DeclID]bool),
		copyMemo: make(map[types.TypeID]bool),

		noDefault: make(map[types.TypeID]bool),
	}
	l.names = symbols.NewNamer(u, OperatorName)
	l.tm = typemap.New(u.Types, rep, recordNamer{l})
	l.quiet = typemap.New(u.Types, diag.NopReporter{}, recordNamer{l})

	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "lower", trace.CurrentSpan(ctx))
	l.checkLayouts()
	if l.fatal == nil {
		l.addUses(ast.NoDeclID, l.crate.Root)
		l.lowerMembers(ast.NoDeclID, l.crate.Root)
		l.staticInit()
	}
	l.stats.Fallbacks = l.tm.Fallbacks()
	span.End(fmt.Sprintf("lowered=%d skipped=%d", l.stats.Lowered, l.stats.Skipped))
	if l.fatal != nil {
		return nil, l.stats, l.fatal
	}
	return l.crate, l.stats, nil
}

// checkLayouts computes every record layout up front so an invariant
// violation stops the unit before anything is emitted.
func (l *lowerer) checkLayouts() {
	for _, rec := range l.in.Records() {
		info, _ := l.in.RecordInfo(rec)
		if !info.Complete || info.Union || info.Decl == 0 {
			continue
		}
		if _, err := l.lay.Of(rec); err != nil {
			l.fail(err, source.Span{})
			if d := l.u.Decl(ast.DeclID(info.Decl)); d != nil {
				l.fatal.Span = d.Span
			}
			return
		}
	}
}

func (l *lowerer) fail(err error, at source.Span) {
	if l.fatal != nil {
		return
	}
	var lerr *layout.LayoutError
	code := diag.LayInvariantViolation
	if errors.As(err, &lerr) && lerr.Kind == layout.LayoutErrIncompleteBase {
		code = diag.LayIncompleteRecord
	}
	l.fatal = &FatalError{Code: code, Span: at, Msg: err.Error(), Err: err}
	diag.ReportError(l.rep, code, at, err.Error()).Emit()
}

// layoutOf returns a layout that checkLayouts already validated.
func (l *lowerer) layoutOf(rec types.TypeID) *layout.ClassLayout {
	cl, err := l.lay.Of(rec)
	if err != nil {
		l.fail(err, source.Span{})
		return nil
	}
	return cl
}

// enter moves the naming position to decl inside namespace ns.
func (l *lowerer) enter(ns ast.DeclID, decl ast.DeclID) (restore func()) {
	scope, at := l.scope, l.at
	l.scope = l.tab.NamespaceScope(ns)
	l.at = l.tab.Order(decl)
	return func() { l.scope, l.at = scope, at }
}

// staticInit adds `__cxx_static_init` that touches every global accessor in
// declaration order.
func (l *lowerer) staticInit() {
	if len(l.crate.StaticInit) == 0 {
		return
	}
	body := &lir.Block{}
	for _, acc := range l.crate.StaticInit {
		body.Stmts = append(body.Stmts, &lir.LetStmt{Name: "_", Init: lir.CallPath(acc)})
	}
	l.crate.Root.Add(&lir.Func{Name: "__cxx_static_init", Pub: true, Body: body})
}
