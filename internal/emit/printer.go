package emit

import (
	"fmt"
	"strings"

	"cxxlower/internal/lir"
)

// printer is an indentation-tracking buffer.
type printer struct {
	b      strings.Builder
	indent int
}

func (p *printer) writef(format string, args ...any) {
	fmt.Fprintf(&p.b, format, args...)
}

func (p *printer) write(s string) { p.b.WriteString(s) }

func (p *printer) newline() {
	p.b.WriteByte('\n')
	p.b.WriteString(strings.Repeat("    ", p.indent))
}

// line writes a full line at the current indentation.
func (p *printer) line(format string, args ...any) {
	p.b.WriteString(strings.Repeat("    ", p.indent))
	p.writef(format, args...)
	p.b.WriteByte('\n')
}

// operator precedence, higher binds tighter
const (
	precLowest = iota
	precAssign
	precRange
	precOr
	precAnd
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdd
	precMul
	precCast
	precUnary
	precPostfix
)

var binaryPrec = map[string]int{
	"||": precOr, "&&": precAnd,
	"==": precCompare, "!=": precCompare, "<": precCompare, ">": precCompare, "<=": precCompare, ">=": precCompare,
	"|": precBitOr, "^": precBitXor, "&": precBitAnd,
	"<<": precShift, ">>": precShift,
	"+": precAdd, "-": precAdd,
	"*": precMul, "/": precMul, "%": precMul,
}

func prec(e lir.Expr) int {
	switch x := e.(type) {
	case *lir.BinaryExpr:
		return binaryPrec[x.Op]
	case *lir.AssignExpr:
		return precAssign
	case *lir.RangeExpr:
		return precRange
	case *lir.CastExpr:
		return precCast
	case *lir.UnaryExpr, *lir.BorrowExpr:
		return precUnary
	case *lir.Closure, *lir.ReturnExpr, *lir.BreakExpr:
		return precLowest
	}
	return precPostfix
}

// blockLike expressions cannot start an operand without parentheses.
func blockLike(e lir.Expr) bool {
	switch e.(type) {
	case *lir.Block, *lir.IfExpr, *lir.LoopExpr, *lir.WhileExpr, *lir.ForExpr:
		return true
	}
	return false
}

// operand prints e, parenthesized when its precedence is below min.
func (p *printer) operand(e lir.Expr, min int) {
	if prec(e) < min || blockLike(e) {
		p.write("(")
		p.expr(e)
		p.write(")")
		return
	}
	p.expr(e)
}

func (p *printer) expr(e lir.Expr) {
	switch x := e.(type) {
	case nil:
		p.write("()")
	case *lir.LitExpr:
		p.write(x.Text)
	case *lir.PathExpr:
		p.write(x.Text)
	case *lir.CallExpr:
		p.operand(x.Fn, precPostfix)
		p.args(x.Args)
	case *lir.MethodCall:
		p.operand(x.Recv, precPostfix)
		p.write("." + x.Name)
		if len(x.Turbofish) > 0 {
			p.write("::<")
			for i, t := range x.Turbofish {
				if i > 0 {
					p.write(", ")
				}
				p.write(t.String())
			}
			p.write(">")
		}
		p.args(x.Args)
	case *lir.FieldExpr:
		p.operand(x.X, precPostfix)
		p.write("." + x.Name)
	case *lir.IndexExpr:
		p.operand(x.X, precPostfix)
		p.write("[")
		p.expr(x.Index)
		p.write("]")
	case *lir.UnaryExpr:
		p.write(x.Op)
		p.unaryOperand(x.X)
	case *lir.BorrowExpr:
		if x.Mut {
			p.write("&mut ")
		} else {
			p.write("&")
		}
		p.unaryOperand(x.X)
	case *lir.BinaryExpr:
		p.binary(x)
	case *lir.AssignExpr:
		p.operand(x.X, precAssign+1)
		p.writef(" %s ", x.Op)
		p.operand(x.Y, precAssign)
	case *lir.CastExpr:
		p.operand(x.X, precCast)
		p.write(" as " + x.To.String())
	case *lir.RangeExpr:
		p.operand(x.X, precRange+1)
		p.write("..")
		p.operand(x.Y, precRange+1)
	case *lir.Block:
		p.block(x)
	case *lir.IfExpr:
		p.ifExpr(x)
	case *lir.LoopExpr:
		p.label(x.Label)
		p.write("loop ")
		p.block(x.Body)
	case *lir.WhileExpr:
		p.label(x.Label)
		p.write("while ")
		p.cond(x.Cond)
		p.write(" ")
		p.block(x.Body)
	case *lir.ForExpr:
		p.label(x.Label)
		p.writef("for %s in ", x.Pat)
		p.cond(x.Iter)
		p.write(" ")
		p.block(x.Body)
	case *lir.BreakExpr:
		p.write("break")
		if x.Label != "" {
			p.write(" '" + x.Label)
		}
		if x.Value != nil {
			p.write(" ")
			p.expr(x.Value)
		}
	case *lir.ContinueExpr:
		p.write("continue")
		if x.Label != "" {
			p.write(" '" + x.Label)
		}
	case *lir.ReturnExpr:
		p.write("return")
		if x.Value != nil {
			p.write(" ")
			p.expr(x.Value)
		}
	case *lir.Closure:
		p.closure(x)
	case *lir.Macro:
		p.write(x.Name + "!")
		p.args(x.Args)
	case *lir.TupleExpr:
		p.write("(")
		for i, el := range x.Elems {
			if i > 0 {
				p.write(", ")
			}
			p.expr(el)
		}
		if len(x.Elems) == 1 {
			p.write(",")
		}
		p.write(")")
	case *lir.ArrayExpr:
		p.write("[")
		for i, el := range x.Elems {
			if i > 0 {
				p.write(", ")
			}
			p.expr(el)
		}
		p.write("]")
	case *lir.ArrayRepeat:
		p.write("[")
		p.expr(x.Elem)
		p.writef("; %d]", x.Len)
	case *lir.StructLit:
		p.write(x.Path + " {")
		if len(x.Fields) == 0 {
			p.write("}")
			return
		}
		p.indent++
		for _, f := range x.Fields {
			p.newline()
			p.write(f.Name + ": ")
			p.expr(f.Value)
			p.write(",")
		}
		p.indent--
		p.newline()
		p.write("}")
	default:
		panic(fmt.Sprintf("emit: unexpected expression %T", e))
	}
}

// unaryOperand keeps `-(a + b)` and `*(p.add(1))` readable and correct.
func (p *printer) unaryOperand(e lir.Expr) {
	p.operand(e, precUnary)
}

func (p *printer) binary(x *lir.BinaryExpr) {
	pr := binaryPrec[x.Op]
	left, right := pr, pr+1
	if pr == precCompare {
		// comparisons do not chain
		left = pr + 1
	}
	// `a as T < b` would parse as generics
	if _, ok := x.X.(*lir.CastExpr); ok {
		left = precPostfix
	}
	p.operand(x.X, left)
	p.writef(" %s ", x.Op)
	p.operand(x.Y, right)
}

func (p *printer) args(args []lir.Expr) {
	p.write("(")
	for i, a := range args {
		if i > 0 {
			p.write(", ")
		}
		p.expr(a)
	}
	p.write(")")
}

// cond prints a condition or iterator: struct literals must be wrapped there.
func (p *printer) cond(e lir.Expr) {
	if _, ok := e.(*lir.StructLit); ok {
		p.write("(")
		p.expr(e)
		p.write(")")
		return
	}
	p.expr(e)
}

func (p *printer) label(l string) {
	if l != "" {
		p.write("'" + l + ": ")
	}
}

func (p *printer) ifExpr(x *lir.IfExpr) {
	p.write("if ")
	if x.Pat != "" {
		p.writef("let %s = ", x.Pat)
	}
	p.cond(x.Cond)
	p.write(" ")
	p.block(x.Then)
	switch e := x.Else.(type) {
	case nil:
	case *lir.IfExpr:
		p.write(" else ")
		p.ifExpr(e)
	case *lir.Block:
		p.write(" else ")
		p.block(e)
	default:
		p.write(" else ")
		p.block(&lir.Block{Tail: e})
	}
}

func (p *printer) closure(x *lir.Closure) {
	if x.Move {
		p.write("move ")
	}
	p.write("|")
	for i, prm := range x.Params {
		if i > 0 {
			p.write(", ")
		}
		p.write(prm.Name)
		if prm.Type.Kind != lir.TyInfer {
			p.write(": " + prm.Type.String())
		}
	}
	p.write("| ")
	if x.Result != nil {
		p.write("-> " + x.Result.String() + " ")
		body, ok := x.Body.(*lir.Block)
		if !ok || body.Unsafe || body.Label != "" {
			body = &lir.Block{Tail: x.Body}
		}
		p.block(body)
		return
	}
	p.expr(x.Body)
}

// inline reports blocks short enough to print on one line.
func inline(b *lir.Block) bool {
	if len(b.Stmts) > 0 || b.Label != "" || b.Tail == nil {
		return false
	}
	switch b.Tail.(type) {
	case *lir.Block, *lir.IfExpr, *lir.LoopExpr, *lir.WhileExpr, *lir.ForExpr, *lir.Closure, *lir.StructLit:
		return false
	}
	return true
}

func (p *printer) block(b *lir.Block) {
	if b == nil {
		p.write("{}")
		return
	}
	p.label(b.Label)
	if b.Unsafe {
		p.write("unsafe ")
	}
	if len(b.Stmts) == 0 && b.Tail == nil {
		p.write("{}")
		return
	}
	if inline(b) {
		p.write("{ ")
		p.expr(b.Tail)
		p.write(" }")
		return
	}
	p.write("{")
	p.indent++
	for _, s := range b.Stmts {
		p.newline()
		p.stmt(s)
	}
	if b.Tail != nil {
		p.newline()
		p.expr(b.Tail)
	}
	p.indent--
	p.newline()
	p.write("}")
}

// hasValue reports block-like expressions whose value is not unit, which
// need a trailing semicolon in statement position.
func hasValue(e lir.Expr) bool {
	switch x := e.(type) {
	case *lir.Block:
		return x.Tail != nil
	case *lir.IfExpr:
		return x.Then != nil && x.Then.Tail != nil
	}
	return false
}

func (p *printer) stmt(s lir.Stmt) {
	switch x := s.(type) {
	case *lir.LetStmt:
		p.write("let ")
		if x.Mut {
			p.write("mut ")
		}
		p.write(x.Name)
		if x.Type != nil && x.Type.Kind != lir.TyInfer {
			p.write(": " + x.Type.String())
		}
		if x.Init != nil {
			p.write(" = ")
			p.expr(x.Init)
		}
		p.write(";")
	case *lir.ExprStmt:
		p.expr(x.X)
		if !blockLike(x.X) || hasValue(x.X) {
			p.write(";")
		}
	case *lir.Comment:
		p.write("// " + x.Text)
	default:
		panic(fmt.Sprintf("emit: unexpected statement %T", s))
	}
}
