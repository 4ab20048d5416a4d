package frontend

import (
	"fmt"

	"cxxlower/internal/ast"
	"cxxlower/internal/types"
)

var litKinds = map[string]ast.LitKind{
	"int": ast.LitInt, "float": ast.LitFloat, "bool": ast.LitBool,
	"char": ast.LitChar, "string": ast.LitString, "nullptr": ast.LitNullptr,
}

var unaryOps = map[string]ast.UnaryOp{
	"neg": ast.UnNeg, "plus": ast.UnPlus, "not": ast.UnNot, "bitnot": ast.UnBitNot,
	"deref": ast.UnDeref, "addr": ast.UnAddrOf,
	"preinc": ast.UnPreInc, "predec": ast.UnPreDec, "postinc": ast.UnPostInc, "postdec": ast.UnPostDec,
}

var castKinds = map[string]ast.CastKind{
	"noop": ast.CastNoOp, "lvalue_to_rvalue": ast.CastLValueToRValue,
	"integral": ast.CastIntegral, "floating": ast.CastFloating,
	"int_to_float": ast.CastIntToFloat, "float_to_int": ast.CastFloatToInt,
	"to_bool": ast.CastToBool, "array_to_pointer": ast.CastArrayToPointer,
	"null_to_pointer": ast.CastNullToPointer, "derived_to_base": ast.CastDerivedToBase,
	"base_to_derived": ast.CastBaseToDerived, "bitcast": ast.CastBitCast, "const": ast.CastConst,
	"user": ast.CastUserConversion, "enum_to_int": ast.CastEnumToInt, "int_to_enum": ast.CastIntToEnum,
	"function_to_pointer": ast.CastFunctionToPointer,
}

var captureKinds = map[string]ast.CaptureKind{
	"copy": ast.CaptureByValue, "ref": ast.CaptureByRef, "init": ast.CaptureInit, "this": ast.CaptureThis,
}

// ref resolves a required declaration reference.
func (b *builder) ref(w *Expr, id int) (ast.DeclID, bool) {
	d, ok := b.decls[id]
	if !ok {
		b.badRef(w.Loc, "%s expression names unknown declaration %d", w.Kind, id)
	}
	return d, ok
}

// optRef resolves a reference that may be absent (0).
func (b *builder) optRef(w *Expr, id int) (ast.DeclID, bool) {
	if id == 0 {
		return ast.NoDeclID, true
	}
	return b.ref(w, id)
}

func (b *builder) exprs(ws []*Expr) []ast.ExprID {
	out := make([]ast.ExprID, 0, len(ws))
	for _, w := range ws {
		out = append(out, b.expr(w))
	}
	return out
}

func (b *builder) expr(w *Expr) ast.ExprID {
	if w == nil {
		return ast.NoExprID
	}
	e := ast.Expr{Span: b.span(w.Loc), Type: b.typ(w.Type), LValue: w.LValue}
	unsupported := func(format string, args ...any) ast.ExprID {
		e.Kind, e.Data = ast.ExprUnsupported, &ast.UnsupportedExprData{What: fmt.Sprintf(format, args...)}
		return b.u.NewExpr(e)
	}
	switch w.Kind {
	case "lit":
		k, ok := litKinds[w.Lit]
		if !ok {
			return unsupported("literal kind %q", w.Lit)
		}
		e.Kind, e.Data = ast.ExprLiteral, &ast.LiteralData{Kind: k, Value: w.Value}
	case "ref":
		d, ok := b.ref(w, w.Decl)
		if !ok {
			return unsupported("reference to a missing declaration")
		}
		e.Kind, e.Data = ast.ExprDeclRef, &ast.DeclRefData{Decl: d, Qualified: w.Qualified}
	case "this":
		e.Kind, e.Data = ast.ExprThis, &ast.ThisData{}
	case "member":
		d, ok := b.ref(w, w.Decl)
		if !ok {
			return unsupported("member access to a missing declaration")
		}
		e.Kind, e.Data = ast.ExprMember, &ast.MemberData{Base: b.expr(w.X), Member: d, Arrow: w.Arrow, Qualified: w.Qualified, Implicit: w.Implicit}
	case "call":
		callee := b.expr(w.X)
		e.Kind, e.Data = ast.ExprCall, &ast.CallData{Callee: callee, Args: b.exprs(w.Args)}
	case "opcall":
		d, ok := b.ref(w, w.Decl)
		if !ok {
			return unsupported("operator call to a missing declaration")
		}
		e.Kind, e.Data = ast.ExprOpCall, &ast.OpCallData{Op: w.Op, Callee: d, Args: b.exprs(w.Args), Postfix: w.Postfix}
	case "unary":
		op, ok := unaryOps[w.Op]
		if !ok {
			return unsupported("unary operator %q", w.Op)
		}
		e.Kind, e.Data = ast.ExprUnary, &ast.UnaryData{Op: op, X: b.expr(w.X)}
	case "binary":
		op, ok := ast.ParseBinaryOp(w.Op)
		if !ok {
			return unsupported("binary operator %q", w.Op)
		}
		x := b.expr(w.X)
		e.Kind, e.Data = ast.ExprBinary, &ast.BinaryData{Op: op, X: x, Y: b.expr(w.Y)}
	case "cond":
		c := b.expr(w.X)
		then := b.expr(w.Y)
		e.Kind, e.Data = ast.ExprConditional, &ast.ConditionalData{Cond: c, Then: then, Else: b.expr(w.Z)}
	case "cast":
		k, ok := castKinds[w.Op]
		if !ok {
			return unsupported("cast kind %q", w.Op)
		}
		conv, ok := b.optRef(w, w.Conversion)
		if !ok {
			return unsupported("conversion through a missing function")
		}
		data := &ast.CastData{Kind: k, X: b.expr(w.X), Implicit: w.Implicit, Conversion: conv}
		for _, p := range w.Path {
			data.Path = append(data.Path, b.typ(p))
		}
		e.Kind, e.Data = ast.ExprCast, data
	case "index":
		base := b.expr(w.X)
		e.Kind, e.Data = ast.ExprIndex, &ast.IndexData{Base: base, Index: b.expr(w.Y)}
	case "new":
		ctor, ok := b.optRef(w, w.Decl)
		if !ok {
			return unsupported("new with a missing constructor")
		}
		count := b.expr(w.Count)
		args := b.exprs(w.Args)
		e.Kind, e.Data = ast.ExprNew, &ast.NewData{Allocated: b.typ(w.Alloc), Array: w.Array, Count: count, Ctor: ctor, Args: args, Init: b.expr(w.Init)}
	case "delete":
		e.Kind, e.Data = ast.ExprDelete, &ast.DeleteData{X: b.expr(w.X), Array: w.Array}
	case "construct":
		ctor, ok := b.optRef(w, w.Decl)
		if !ok {
			return unsupported("construction through a missing constructor")
		}
		e.Kind, e.Data = ast.ExprConstruct, &ast.ConstructData{Ctor: ctor, Args: b.exprs(w.Args), Elide: w.Elide}
	case "init_list":
		e.Kind, e.Data = ast.ExprInitList, &ast.InitListData{Elems: b.exprs(w.Args)}
	case "lambda":
		return b.lambda(w, e)
	case "throw":
		e.Kind, e.Data = ast.ExprThrow, &ast.ThrowData{X: b.expr(w.X)}
	case "move":
		e.Kind, e.Data = ast.ExprMove, &ast.MoveData{X: b.expr(w.X)}
	case "std_member":
		ctor, ok := b.optRef(w, w.Decl)
		if !ok {
			return unsupported("std member call through a missing constructor")
		}
		e.Kind, e.Data = ast.ExprStdMember, &ast.StdMemberData{Base: b.expr(w.X), Name: w.Name, Arrow: w.Arrow, Ctor: ctor}
	case "std_func":
		ctor, ok := b.optRef(w, w.Decl)
		if !ok {
			return unsupported("std function call through a missing constructor")
		}
		data := &ast.StdFuncData{Name: w.Name, Ctor: ctor}
		for _, t := range w.TArgs {
			data.TemplateArgs = append(data.TemplateArgs, b.typ(t))
		}
		e.Kind, e.Data = ast.ExprStdFunc, data
	case "unsupported":
		return unsupported("%s", w.What)
	default:
		return unsupported("expression kind %q", w.Kind)
	}
	return b.u.NewExpr(e)
}

// lambda builds the detached call operator, the captures and the closure
// type, which must point back at the expression.
func (b *builder) lambda(w *Expr, e ast.Expr) ast.ExprID {
	data := &ast.LambdaData{Mutable: w.Mutable, Generic: w.Generic}
	for _, inst := range w.Instantiations {
		var ts []types.TypeID
		for _, t := range inst {
			ts = append(ts, b.typ(t))
		}
		data.Instantiations = append(data.Instantiations, ts)
	}
	for _, c := range w.Captures {
		kind, ok := captureKinds[c.Kind]
		if !ok {
			b.badRef(c.Loc, "capture kind %q", c.Kind)
			continue
		}
		cp := ast.Capture{Kind: kind, Span: b.span(c.Loc)}
		switch kind {
		case ast.CaptureInit:
			cp.Init = b.expr(c.Init)
			if c.VarDecl != nil {
				vd := *c.VarDecl
				vd.Init = nil
				cp.Var = b.local(&vd)
			}
		case ast.CaptureByValue, ast.CaptureByRef:
			v, ok := b.decls[c.Var]
			if !ok {
				b.badRef(c.Loc, "capture of unknown variable %d", c.Var)
				continue
			}
			cp.Var = v
		}
		data.Captures = append(data.Captures, cp)
	}
	if fn := w.Fn; fn != nil && fn.Func != nil {
		fd := b.newFunc(fn, types.NoTypeID)
		fd.Kind = ast.FuncLambda
		name := fn.Name
		if name == "" {
			name = "operator()"
		}
		id := b.u.NewDecl(ast.Decl{Kind: ast.DeclFunction, Span: b.span(fn.Loc), Name: name, Data: fd})
		if fn.ID != 0 {
			b.decls[fn.ID] = id
		}
		b.params(id, fd, fn.Func.Params)
		b.signature(id, fd)
		b.funcBody(fd, fn.Func)
		data.Fn = id
	}
	e.Kind, e.Data = ast.ExprLambda, data
	if b.in.Kind(e.Type) != types.KindClosure {
		e.Type = b.in.Closure(types.ClosureInfo{})
	}
	id := b.u.NewExpr(e)
	if info, ok := b.in.ClosureInfo(e.Type); ok {
		info.Lambda = uint32(id)
	}
	return id
}
