package lir

// Expr is a lowered expression.
type Expr interface{ expr() }

// Stmt is a statement inside a Block.
type Stmt interface{ stmt() }

type (
	// LitExpr is a literal as it should be printed (suffixes included).
	LitExpr struct{ Text string }

	// PathExpr is a variable, function or constant path.
	PathExpr struct{ Text string }

	CallExpr struct {
		Fn   Expr
		Args []Expr
	}

	MethodCall struct {
		Recv      Expr
		Name      string
		Turbofish []Type
		Args      []Expr
	}

	FieldExpr struct {
		X    Expr
		Name string
	}

	IndexExpr struct {
		X     Expr
		Index Expr
	}

	// UnaryExpr is `-x`, `!x` or `*x`.
	UnaryExpr struct {
		Op string
		X  Expr
	}

	// BorrowExpr is `&x` / `&mut x`.
	BorrowExpr struct {
		X   Expr
		Mut bool
	}

	BinaryExpr struct {
		Op string
		X  Expr
		Y  Expr
	}

	// AssignExpr is `x = y` or a compound assignment.
	AssignExpr struct {
		Op string
		X  Expr
		Y  Expr
	}

	CastExpr struct {
		X  Expr
		To Type
	}

	// Block is `{ stmts; tail }`, optionally labeled or unsafe.
	Block struct {
		Label  string
		Unsafe bool
		Stmts  []Stmt
		Tail   Expr
	}

	// IfExpr is `if cond {}`; a non-empty Pat makes it `if let Pat = cond {}`.
	IfExpr struct {
		Pat  string
		Cond Expr
		Then *Block
		Else Expr // *Block, *IfExpr or nil
	}

	LoopExpr struct {
		Label string
		Body  *Block
	}

	WhileExpr struct {
		Label string
		Cond  Expr
		Body  *Block
	}

	ForExpr struct {
		Label string
		Pat   string
		Iter  Expr
		Body  *Block
	}

	BreakExpr struct {
		Label string
		Value Expr
	}

	ContinueExpr struct{ Label string }

	ReturnExpr struct{ Value Expr }

	Closure struct {
		Move   bool
		Params []Param
		Result *Type
		Body   Expr
	}

	// Macro is `name!(args)`.
	Macro struct {
		Name string
		Args []Expr
	}

	TupleExpr struct{ Elems []Expr }

	ArrayExpr struct{ Elems []Expr }

	ArrayRepeat struct {
		Elem Expr
		Len  uint64
	}

	StructLit struct {
		Path   string
		Fields []FieldInit
	}

	FieldInit struct {
		Name  string
		Value Expr
	}

	// RangeExpr is `x..y`.
	RangeExpr struct {
		X Expr
		Y Expr
	}
)

func (*LitExpr) expr()      {}
func (*PathExpr) expr()     {}
func (*CallExpr) expr()     {}
func (*MethodCall) expr()   {}
func (*FieldExpr) expr()    {}
func (*IndexExpr) expr()    {}
func (*UnaryExpr) expr()    {}
func (*BorrowExpr) expr()   {}
func (*BinaryExpr) expr()   {}
func (*AssignExpr) expr()   {}
func (*CastExpr) expr()     {}
func (*Block) expr()        {}
func (*IfExpr) expr()       {}
func (*LoopExpr) expr()     {}
func (*WhileExpr) expr()    {}
func (*ForExpr) expr()      {}
func (*BreakExpr) expr()    {}
func (*ContinueExpr) expr() {}
func (*ReturnExpr) expr()   {}
func (*Closure) expr()      {}
func (*Macro) expr()        {}
func (*TupleExpr) expr()    {}
func (*ArrayExpr) expr()    {}
func (*ArrayRepeat) expr()  {}
func (*StructLit) expr()    {}
func (*RangeExpr) expr()    {}

type (
	// LetStmt is `let mut name: T = init;`. A nil Type omits the annotation.
	LetStmt struct {
		Name string
		Mut  bool
		Type *Type
		Init Expr
	}

	// ExprStmt is an expression followed by `;` (or not, for block-like
	// expressions, which the printer decides).
	ExprStmt struct{ X Expr }

	// Comment is a `// text` line; used for skipped constructs.
	Comment struct{ Text string }
)

func (*LetStmt) stmt()  {}
func (*ExprStmt) stmt() {}
func (*Comment) stmt()  {}

func Lit(text string) Expr { return &LitExpr{Text: text} }

func Ident(name string) Expr { return &PathExpr{Text: name} }

func Call(fn Expr, args ...Expr) Expr { return &CallExpr{Fn: fn, Args: args} }

func CallPath(path string, args ...Expr) Expr {
	return &CallExpr{Fn: &PathExpr{Text: path}, Args: args}
}

func MCall(recv Expr, name string, args ...Expr) Expr {
	return &MethodCall{Recv: recv, Name: name, Args: args}
}

func Dot(x Expr, name string) Expr { return &FieldExpr{X: x, Name: name} }

func Deref(x Expr) Expr {
	if b, ok := x.(*BorrowExpr); ok {
		return b.X
	}
	return &UnaryExpr{Op: "*", X: x}
}

func Borrow(x Expr, mut bool) Expr { return &BorrowExpr{X: x, Mut: mut} }

func Bin(op string, x, y Expr) Expr { return &BinaryExpr{Op: op, X: x, Y: y} }

func Assign(x, y Expr) Expr { return &AssignExpr{Op: "=", X: x, Y: y} }

func Cast(x Expr, to Type) Expr { return &CastExpr{X: x, To: to} }

func Mac(name string, args ...Expr) Expr { return &Macro{Name: name, Args: args} }

// Unsafe wraps x in an unsafe block unless it already is one.
func Unsafe(x Expr) Expr {
	if b, ok := x.(*Block); ok && b.Unsafe {
		return b
	}
	return &Block{Unsafe: true, Tail: x}
}

// AddrOfMut is `::core::ptr::addr_of_mut!(place)`.
func AddrOfMut(place Expr) Expr { return Mac("::core::ptr::addr_of_mut", place) }

// OffsetOf is `::core::mem::offset_of!(T, a.b.c)`.
func OffsetOf(t Type, fieldPath string) Expr {
	return Mac("::core::mem::offset_of", &PathExpr{Text: t.String()}, &PathExpr{Text: fieldPath})
}

// Seq builds a block with an optional tail.
func Seq(stmts []Stmt, tail Expr) *Block {
	return &Block{Stmts: stmts, Tail: tail}
}

func Let(name string, t *Type, init Expr) Stmt {
	return &LetStmt{Name: name, Mut: true, Type: t, Init: init}
}

func Do(x Expr) Stmt { return &ExprStmt{X: x} }

// TypeOf is a pointer helper for optional annotations.
func TypeOf(t Type) *Type { return &t }
