package lower

import (
	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

// stdRecv is the object a library member call operates on.
func (l *lowerer) stdRecv(x *ast.StdMemberData) (lir.Expr, types.TypeID) {
	bt := l.typeOf(x.Base)
	if x.Arrow {
		pt, _ := l.in.Pointee(bt)
		l.unsafeOp()
		return lir.Deref(l.value(x.Base)), pt
	}
	return l.place(x.Base), l.in.StripRef(bt)
}

// constObj reports objects the call may only read: const variables, const
// references and pointers, and members inside const member functions.
func (l *lowerer) constObj(id ast.ExprID, arrow bool) bool {
	e := l.expr(id)
	if e == nil {
		return false
	}
	switch x := e.Data.(type) {
	case *ast.DeclRefData:
		d := l.u.Decl(x.Decl)
		if d == nil {
			return false
		}
		if t, ok := l.in.Lookup(d.Type); ok && (t.Kind == types.KindReference || arrow && t.Kind == types.KindPointer) {
			return t.Const
		}
		if vd, ok := d.Data.(*ast.VarData); ok {
			return vd.Const || vd.Constexpr
		}
	case *ast.MemberData:
		if x.Implicit || x.Base == ast.NoExprID {
			return l.fc != nil && l.fc.self == selfConst
		}
		if be := l.expr(x.Base); be != nil {
			if _, ok := be.Data.(*ast.ThisData); ok {
				return l.fc != nil && l.fc.self == selfConst
			}
		}
		return l.constObj(x.Base, x.Arrow)
	}
	return false
}

func (l *lowerer) unknownStd(e *ast.Expr, template, name string) (lir.Expr, callKind) {
	return l.bail(e.Span, diag.LowUnknownStdMember, "std::%s member `%s` has no mapping", template, name), callValue
}

// stdMember lowers a call to a member of a library type.
func (l *lowerer) stdMember(e *ast.Expr, x *ast.StdMemberData, args []ast.ExprID) (lir.Expr, callKind) {
	recv, bt := l.stdRecv(x)
	info, ok := l.in.StdInfo(bt)
	if !ok {
		return l.bail(e.Span, diag.LowUnknownStdMember, "member `%s` of `%s`", x.Name, l.in.Format(bt)), callValue
	}
	rt := l.rust(e.Type)
	ro := l.constObj(x.Base, x.Arrow)
	switch x.Name {
	case "size", "length":
		if info.Template != "optional" {
			return lir.Cast(lir.MCall(recv, "len"), rt), callValue
		}
	case "empty":
		if info.Template != "optional" {
			return lir.MCall(recv, "is_empty"), callValue
		}
	case "clear":
		if info.Template != "optional" {
			return lir.MCall(recv, "clear"), callValue
		}
	case "swap":
		if len(args) == 1 {
			return lir.CallPath("::core::mem::swap", lir.Borrow(recv, true), lir.Borrow(l.place(args[0]), true)), callValue
		}
	}
	switch info.Template {
	case "vector", "deque":
		return l.seqMember(e, x, info, recv, args, ro)
	case "string", "basic_string<char>":
		return l.stringMember(e, x.Name, recv, args)
	case "map", "unordered_map":
		return l.mapMember(e, x.Name, info, recv, args, rt, ro)
	case "set", "unordered_set":
		return l.setMember(e, x.Name, info, recv, args, rt)
	case "unique_ptr", "shared_ptr", "weak_ptr":
		return l.ptrMember(e, x.Name, info, recv, args, rt)
	case "optional":
		return l.optMember(e, x, info, recv, args)
	}
	return l.unknownStd(e, info.Template, x.Name)
}

func (l *lowerer) seqMember(e *ast.Expr, x *ast.StdMemberData, info *types.StdInfo, recv lir.Expr, args []ast.ExprID, ro bool) (lir.Expr, callKind) {
	name := x.Name
	elem := info.Args[0]
	deque := info.Template == "deque"
	push := "push"
	if deque {
		push = "push_back"
	}
	get, first, last := "get_mut", "first_mut", "last_mut"
	if ro {
		get, first, last = "get", "first", "last"
	}
	if deque {
		first, last = "front_mut", "back_mut"
		if ro {
			first, last = "front", "back"
		}
	}
	switch {
	case name == "push_back" && len(args) == 1:
		return lir.MCall(recv, push, l.initValue(args[0], elem)), callValue
	case name == "emplace_back":
		return lir.MCall(recv, push, l.emplace(x.Ctor, elem, args, e.Span)), callValue
	case name == "push_front" && deque && len(args) == 1:
		return lir.MCall(recv, "push_front", l.initValue(args[0], elem)), callValue
	case name == "emplace_front" && deque:
		return lir.MCall(recv, "push_front", l.emplace(x.Ctor, elem, args, e.Span)), callValue
	case name == "pop_back":
		m := "pop"
		if deque {
			m = "pop_back"
		}
		return lir.MCall(recv, m), callValue
	case name == "pop_front" && deque:
		return lir.MCall(recv, "pop_front"), callValue
	case name == "back":
		return lir.Deref(lir.MCall(lir.MCall(recv, last), "unwrap")), callPlace
	case name == "front":
		return lir.Deref(lir.MCall(lir.MCall(recv, first), "unwrap")), callPlace
	case name == "at" && len(args) == 1:
		return lir.Deref(lir.MCall(lir.MCall(recv, get, lir.Cast(l.value(args[0]), lir.USz)), "unwrap")), callPlace
	case name == "reserve" && len(args) == 1:
		return lir.MCall(recv, "reserve", lir.Cast(l.value(args[0]), lir.USz)), callValue
	case name == "resize" && len(args) == 1:
		return lir.MCall(recv, "resize_with", lir.Cast(l.value(args[0]), lir.USz), lir.Ident("Default::default")), callValue
	case name == "resize" && len(args) == 2:
		return lir.MCall(recv, "resize", lir.Cast(l.value(args[0]), lir.USz), l.initValue(args[1], elem)), callValue
	case name == "data" && !deque:
		if ro {
			return lir.MCall(recv, "as_ptr"), callValue
		}
		return lir.MCall(recv, "as_mut_ptr"), callValue
	}
	return l.unknownStd(e, info.Template, name)
}

func (l *lowerer) stringMember(e *ast.Expr, name string, recv lir.Expr, args []ast.ExprID) (lir.Expr, callKind) {
	switch {
	case name == "push_back" && len(args) == 1:
		return lir.MCall(recv, "push", lir.Cast(lir.Cast(l.value(args[0]), lir.U8), lir.Prim("char"))), callValue
	case name == "pop_back":
		return lir.MCall(recv, "pop"), callValue
	case name == "append" && len(args) == 1:
		return l.stringAppend(recv, args[0]), callValue
	case name == "c_str" || name == "data":
		return lir.CallPath("::cxx_rt::c_str", lir.MCall(recv, "as_str")), callValue
	}
	return l.unknownStd(e, "string", name)
}

func (l *lowerer) mapMember(e *ast.Expr, name string, info *types.StdInfo, recv lir.Expr, args []ast.ExprID, rt lir.Type, ro bool) (lir.Expr, callKind) {
	kt, vt := info.Args[0], info.Args[1]
	key := func() lir.Expr { return lir.Borrow(l.initValue(args[0], kt), false) }
	switch {
	case name == "count" && len(args) == 1:
		return lir.Cast(lir.MCall(recv, "contains_key", key()), rt), callValue
	case name == "contains" && len(args) == 1:
		return lir.MCall(recv, "contains_key", key()), callValue
	case name == "erase" && len(args) == 1:
		return lir.Cast(lir.MCall(lir.MCall(recv, "remove", key()), "is_some"), rt), callValue
	case name == "at" && len(args) == 1:
		get := "get_mut"
		if ro {
			get = "get"
		}
		return lir.Deref(lir.MCall(lir.MCall(recv, get, key()), "unwrap")), callPlace
	case (name == "emplace" || name == "insert" || name == "try_emplace") && len(args) == 2:
		return lir.MCall(lir.MCall(recv, "entry", l.initValue(args[0], kt)), "or_insert", l.initValue(args[1], vt)), callValue
	case name == "insert_or_assign" && len(args) == 2:
		return lir.MCall(recv, "insert", l.initValue(args[0], kt), l.initValue(args[1], vt)), callValue
	}
	return l.unknownStd(e, info.Template, name)
}

func (l *lowerer) setMember(e *ast.Expr, name string, info *types.StdInfo, recv lir.Expr, args []ast.ExprID, rt lir.Type) (lir.Expr, callKind) {
	et := info.Args[0]
	switch {
	case (name == "insert" || name == "emplace") && len(args) == 1:
		return lir.MCall(recv, "insert", l.initValue(args[0], et)), callValue
	case name == "count" && len(args) == 1:
		return lir.Cast(lir.MCall(recv, "contains", lir.Borrow(l.initValue(args[0], et), false)), rt), callValue
	case name == "contains" && len(args) == 1:
		return lir.MCall(recv, "contains", lir.Borrow(l.initValue(args[0], et), false)), callValue
	case name == "erase" && len(args) == 1:
		return lir.Cast(lir.MCall(recv, "remove", lir.Borrow(l.initValue(args[0], et), false)), rt), callValue
	}
	return l.unknownStd(e, info.Template, name)
}

// ptrMember covers the smart pointers. A unique_ptr is a Box and can never
// be null, so the members that would make it null have no mapping.
func (l *lowerer) ptrMember(e *ast.Expr, name string, info *types.StdInfo, recv lir.Expr, args []ast.ExprID, rt lir.Type) (lir.Expr, callKind) {
	pt := lir.RawPtr(l.recordOrValue(info.Args[0]), true)
	switch info.Template {
	case "unique_ptr":
		switch {
		case name == "get":
			return lir.Cast(lir.AddrOfMut(lir.Deref(recv)), pt), callValue
		case name == "reset" && len(args) == 1 && !l.isNullLit(args[0]):
			l.unsafeOp()
			return lir.Assign(recv, lir.CallPath("Box::from_raw", lir.Cast(l.value(args[0]), lir.RawPtr(l.rust(info.Args[0]), true)))), callValue
		}
	case "shared_ptr":
		switch name {
		case "use_count":
			return lir.Cast(lir.CallPath("::std::sync::Arc::strong_count", lir.Borrow(recv, false)), rt), callValue
		case "get":
			return lir.Cast(lir.CallPath("::std::sync::Arc::as_ptr", lir.Borrow(recv, false)), pt), callValue
		}
	case "weak_ptr":
		switch name {
		case "lock":
			return lir.MCall(lir.MCall(recv, "upgrade"), "expect", lir.Lit(`"expired weak_ptr"`)), callValue
		case "expired":
			return lir.Bin("==", lir.MCall(recv, "strong_count"), lir.Lit("0")), callValue
		case "use_count":
			return lir.Cast(lir.MCall(recv, "strong_count"), rt), callValue
		}
	}
	return l.unknownStd(e, info.Template, name)
}

// recordOrValue is the pointee form a raw pointer to t uses.
func (l *lowerer) recordOrValue(t types.TypeID) lir.Type {
	if l.in.Kind(t) == types.KindRecord {
		return l.recordType(t)
	}
	return l.rust(t)
}

func (l *lowerer) optMember(e *ast.Expr, x *ast.StdMemberData, info *types.StdInfo, recv lir.Expr, args []ast.ExprID) (lir.Expr, callKind) {
	name := x.Name
	vt := info.Args[0]
	switch {
	case name == "has_value":
		return lir.MCall(recv, "is_some"), callValue
	case name == "value":
		return lir.Deref(lir.MCall(lir.MCall(recv, "as_mut"), "unwrap")), callPlace
	case name == "value_or" && len(args) == 1:
		return lir.MCall(lir.MCall(recv, "clone"), "unwrap_or", l.initValue(args[0], vt)), callValue
	case name == "reset":
		return lir.Assign(recv, lir.Ident("None")), callValue
	case name == "emplace":
		return lir.Assign(recv, lir.CallPath("Some", l.emplace(x.Ctor, vt, args, e.Span))), callValue
	}
	return l.unknownStd(e, "optional", name)
}

// stdField is pair::first / pair::second.
// emplace constructs a t from args in place.
func (l *lowerer) emplace(resolved ast.DeclID, t types.TypeID, args []ast.ExprID, at source.Span) lir.Expr {
	ctor, ok := l.emplaceCtor(resolved, t, args, at)
	if !ok {
		return lir.Mac("unreachable")
	}
	return l.construct(t, ctor, args, at)
}

func (l *lowerer) stdField(e *ast.Expr, x *ast.StdMemberData) lir.Expr {
	recv, bt := l.stdRecv(x)
	info, ok := l.in.StdInfo(bt)
	if ok && info.Template == "pair" {
		switch x.Name {
		case "first":
			return lir.Dot(recv, "0")
		case "second":
			return lir.Dot(recv, "1")
		}
	}
	r, _ := l.unknownStd(e, l.in.Format(bt), x.Name)
	return r
}

// stdDeref is `*p` for a library object.
func (l *lowerer) stdDeref(p lir.Expr, t types.TypeID) lir.Expr {
	if info, ok := l.in.StdInfo(t); ok && info.Template == "optional" {
		return lir.Deref(lir.MCall(lir.MCall(p, "as_mut"), "unwrap"))
	}
	return lir.Deref(p)
}

// stdFunc lowers calls to library free functions.
func (l *lowerer) stdFunc(e *ast.Expr, x *ast.StdFuncData, args []ast.ExprID) (lir.Expr, callKind) {
	targ := func() types.TypeID {
		if len(x.TemplateArgs) > 0 {
			return x.TemplateArgs[0]
		}
		if info, ok := l.in.StdInfo(e.Type); ok && len(info.Args) > 0 {
			return info.Args[0]
		}
		return types.NoTypeID
	}
	switch x.Name {
	case "make_unique", "make_shared":
		t := targ()
		if t == types.NoTypeID {
			break
		}
		v := l.emplace(x.Ctor, t, args, e.Span)
		if x.Name == "make_unique" {
			return lir.CallPath("Box::new", v), callValue
		}
		return lir.CallPath("::std::sync::Arc::new", v), callValue
	case "move", "forward":
		if len(args) == 1 {
			return l.moveValue(args[0]), callValue
		}
	case "swap":
		if len(args) == 2 {
			return lir.CallPath("::core::mem::swap", lir.Borrow(l.place(args[0]), true), lir.Borrow(l.place(args[1]), true)), callValue
		}
	case "min", "max":
		if len(args) == 2 {
			return l.minMax(x.Name == "min", args, e.Type), callValue
		}
	case "abs", "fabs", "sqrt", "floor", "ceil":
		if len(args) == 1 {
			m := x.Name
			if m == "fabs" {
				m = "abs"
			}
			return lir.MCall(l.initValue(args[0], e.Type), m), callValue
		}
	case "pow":
		if len(args) == 2 {
			return lir.MCall(l.initValue(args[0], e.Type), "powf", l.initValue(args[1], e.Type)), callValue
		}
	case "to_string":
		if len(args) == 1 {
			if l.rust(l.typeOf(args[0])).IsFloat() {
				return lir.Mac("format", lir.Lit(`"{:.6}"`), l.value(args[0])), callValue
			}
			return lir.MCall(l.value(args[0]), "to_string"), callValue
		}
	case "exit":
		if len(args) == 1 {
			return lir.CallPath("::std::process::exit", l.initValue(args[0], l.in.Builtins().I32)), callValue
		}
	}
	return l.bail(e.Span, diag.LowUnknownStdMember, "std::%s has no mapping", x.Name), callValue
}

// minMax evaluates both operands once:
// { let __a = a; let __b = b; if __b < __a { __b } else { __a } }
func (l *lowerer) minMax(min bool, args []ast.ExprID, t types.TypeID) lir.Expr {
	a, b := l.tmp("a"), l.tmp("b")
	pick := lir.Bin("<", lir.Ident(b), lir.Ident(a))
	if !min {
		pick = lir.Bin("<", lir.Ident(a), lir.Ident(b))
	}
	return &lir.Block{
		Stmts: []lir.Stmt{
			lir.Let(a, nil, l.initValue(args[0], t)),
			lir.Let(b, nil, l.initValue(args[1], t)),
		},
		Tail: &lir.IfExpr{Cond: pick, Then: lir.Seq(nil, lir.Ident(b)), Else: lir.Seq(nil, lir.Ident(a))},
	}
}

// stdConstruct is direct-initialization of a library object with arguments.
func (l *lowerer) stdConstruct(t types.TypeID, args []ast.ExprID, at source.Span) lir.Expr {
	info, _ := l.in.StdInfo(t)
	if info == nil {
		return l.bail(at, diag.LowUnsupportedConstruct, "construction of `%s`", l.in.Format(t))
	}
	if len(args) == 1 && l.in.StripRef(l.typeOf(args[0])) == t {
		return l.initValue(args[0], t)
	}
	switch info.Template {
	case "vector", "deque":
		n := lir.Cast(l.value(args[0]), lir.USz)
		var elem lir.Expr
		if len(args) == 2 {
			elem = l.initValue(args[1], info.Args[0])
		} else {
			elem = l.defaultValue(info.Args[0], l.rust(info.Args[0]))
		}
		rep := lir.MCall(lir.CallPath("::core::iter::repeat", elem), "take", n)
		return &lir.MethodCall{Recv: rep, Name: "collect", Turbofish: []lir.Type{l.rust(t)}}
	case "pair":
		if len(args) == 2 {
			return &lir.TupleExpr{Elems: []lir.Expr{l.initValue(args[0], info.Args[0]), l.initValue(args[1], info.Args[1])}}
		}
	case "optional":
		if len(args) == 1 {
			return lir.CallPath("Some", l.initValue(args[0], info.Args[0]))
		}
	case "unique_ptr":
		if len(args) == 1 && !l.isNullLit(args[0]) {
			l.unsafeOp()
			return lir.CallPath("Box::from_raw", lir.Cast(l.value(args[0]), lir.RawPtr(l.rust(info.Args[0]), true)))
		}
	case "string", "basic_string<char>":
		if len(args) == 1 {
			return l.coerce(l.value(args[0]), args[0], l.typeOf(args[0]), t)
		}
	}
	return l.bail(at, diag.LowUnsupportedConstruct, "construction of `%s` from %d arguments", l.in.Format(t), len(args))
}

// stdList is brace-initialization of a library object.
func (l *lowerer) stdList(t types.TypeID, elems []ast.ExprID, at source.Span) lir.Expr {
	info, _ := l.in.StdInfo(t)
	if info == nil {
		return l.bail(at, diag.LowUnsupportedConstruct, "initializer list for `%s`", l.in.Format(t))
	}
	each := func(et types.TypeID) []lir.Expr {
		out := make([]lir.Expr, 0, len(elems))
		for _, e := range elems {
			out = append(out, l.initValue(e, et))
		}
		return out
	}
	switch info.Template {
	case "vector":
		return lir.Mac("vec", each(info.Args[0])...)
	case "deque", "set", "unordered_set":
		return lir.CallPath(l.rust(t).Name+"::from", &lir.ArrayExpr{Elems: each(info.Args[0])})
	case "map", "unordered_map":
		out := make([]lir.Expr, 0, len(elems))
		for _, e := range elems {
			kv, ok := l.expr(e).Data.(*ast.InitListData)
			if !ok || len(kv.Elems) != 2 {
				return l.bail(at, diag.LowUnsupportedConstruct, "map element is not a key/value pair")
			}
			out = append(out, &lir.TupleExpr{Elems: []lir.Expr{l.initValue(kv.Elems[0], info.Args[0]), l.initValue(kv.Elems[1], info.Args[1])}})
		}
		return lir.CallPath(l.rust(t).Name+"::from", &lir.ArrayExpr{Elems: out})
	case "pair":
		if len(elems) == 2 {
			return &lir.TupleExpr{Elems: []lir.Expr{l.initValue(elems[0], info.Args[0]), l.initValue(elems[1], info.Args[1])}}
		}
	case "optional":
		if len(elems) == 0 {
			return lir.Ident("None")
		}
		return lir.CallPath("Some", l.initValue(elems[0], info.Args[0]))
	}
	if len(elems) == 0 {
		return l.defaultValue(t, l.rust(t))
	}
	if len(elems) == 1 {
		return l.initValue(elems[0], t)
	}
	return l.bail(at, diag.LowUnsupportedConstruct, "initializer list for `%s`", l.in.Format(t))
}
