package ast

// ExprChildren returns the direct sub-expressions of e in evaluation order.
// Lambda bodies are not entered.
func (u *Unit) ExprChildren(id ExprID) []ExprID {
	e := u.Expr(id)
	if e == nil {
		return nil
	}
	var out []ExprID
	add := func(ids ...ExprID) {
		for _, x := range ids {
			if x != NoExprID {
				out = append(out, x)
			}
		}
	}
	switch d := e.Data.(type) {
	case *MemberData:
		add(d.Base)
	case *CallData:
		add(d.Callee)
		add(d.Args...)
	case *OpCallData:
		add(d.Args...)
	case *UnaryData:
		add(d.X)
	case *BinaryData:
		add(d.X, d.Y)
	case *ConditionalData:
		add(d.Cond, d.Then, d.Else)
	case *CastData:
		add(d.X)
	case *IndexData:
		add(d.Base, d.Index)
	case *NewData:
		add(d.Count)
		add(d.Args...)
		add(d.Init)
	case *DeleteData:
		add(d.X)
	case *ConstructData:
		add(d.Args...)
	case *InitListData:
		add(d.Elems...)
	case *LambdaData:
		for _, c := range d.Captures {
			add(c.Init)
		}
	case *ThrowData:
		add(d.X)
	case *MoveData:
		add(d.X)
	case *StdMemberData:
		add(d.Base)
	}
	return out
}

// InspectExpr visits id and its descendants depth-first; fn returning false
// prunes the subtree.
func (u *Unit) InspectExpr(id ExprID, fn func(ExprID, *Expr) bool) {
	e := u.Expr(id)
	if e == nil || !fn(id, e) {
		return
	}
	for _, c := range u.ExprChildren(id) {
		u.InspectExpr(c, fn)
	}
}

// InspectStmt visits every statement below id, and calls expr for each
// top-level expression a statement owns (including variable initializers).
func (u *Unit) InspectStmt(id StmtID, stmt func(StmtID, *Stmt) bool, expr func(ExprID)) {
	s := u.Stmt(id)
	if s == nil {
		return
	}
	if stmt != nil && !stmt(id, s) {
		return
	}
	visitE := func(ids ...ExprID) {
		if expr == nil {
			return
		}
		for _, x := range ids {
			if x != NoExprID {
				expr(x)
			}
		}
	}
	visitS := func(ids ...StmtID) {
		for _, x := range ids {
			u.InspectStmt(x, stmt, expr)
		}
	}
	visitVar := func(v DeclID) {
		if _, vd, ok := u.Var(v); ok {
			visitE(vd.Init)
		}
	}
	switch d := s.Data.(type) {
	case *CompoundData:
		visitS(d.Stmts...)
	case *DeclStmtData:
		for _, v := range d.Vars {
			visitVar(v)
		}
	case *ExprStmtData:
		visitE(d.Expr)
	case *IfData:
		visitS(d.Init)
		visitE(d.Cond)
		visitS(d.Then, d.Else)
	case *WhileData:
		visitE(d.Cond)
		visitS(d.Body)
	case *DoWhileData:
		visitS(d.Body)
		visitE(d.Cond)
	case *ForData:
		visitS(d.Init)
		visitE(d.Cond, d.Inc)
		visitS(d.Body)
	case *RangeForData:
		visitE(d.Range)
		visitS(d.Body)
	case *SwitchData:
		visitE(d.Cond)
		for _, c := range d.Cases {
			visitE(c.Values...)
			visitS(c.Body...)
		}
	case *ReturnData:
		visitE(d.Value)
	case *TryData:
		visitS(d.Body)
		for _, h := range d.Handlers {
			visitS(h.Body)
		}
	}
}
