package lower

import (
	"cxxlower/internal/ast"
	"cxxlower/internal/types"
)

// binary operators by spelling; the unary forms of + - * & are separate
var operatorNames = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "rem",
	"==": "eq", "!=": "ne", "<": "lt", "<=": "le", ">": "gt", ">=": "ge", "<=>": "cmp",
	"&": "bitand", "|": "bitor", "^": "bitxor", "<<": "shl", ">>": "shr",
	"&&": "and", "||": "or", "!": "logical_not", "~": "not",
	"=": "assign", "+=": "add_assign", "-=": "sub_assign", "*=": "mul_assign",
	"/=": "div_assign", "%=": "rem_assign", "<<=": "shl_assign", ">>=": "shr_assign",
	"&=": "bitand_assign", "|=": "bitor_assign", "^=": "bitxor_assign",
	"()": "call", "->": "arrow", ",": "comma",
}

var unaryOperatorNames = map[string]string{
	"+": "pos", "-": "neg", "*": "deref", "&": "addr",
}

// OperatorName is the Rust method name of an overloaded operator. params
// counts declared parameters; member operators have an implicit object.
func OperatorName(fd *ast.FunctionData, params int) string {
	arity := params
	if fd.Record != types.NoTypeID {
		arity++
	}
	switch fd.Operator {
	case "[]":
		if fd.Const {
			return "index"
		}
		return "index_mut"
	case "++":
		if arity == 2 {
			return "post_inc"
		}
		return "pre_inc"
	case "--":
		if arity == 2 {
			return "post_dec"
		}
		return "pre_dec"
	}
	if arity == 1 {
		if name, ok := unaryOperatorNames[fd.Operator]; ok {
			return name
		}
	}
	if name, ok := operatorNames[fd.Operator]; ok {
		return name
	}
	return "op"
}
