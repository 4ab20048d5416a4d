package types

import (
	"fmt"
	"strings"
)

// Format renders id the way a C++ programmer would write it. Used only in
// diagnostics.
func (in *Interner) Format(id TypeID) string {
	var b strings.Builder
	in.format(&b, id, 0)
	return b.String()
}

func (in *Interner) format(b *strings.Builder, id TypeID, depth int) {
	t, ok := in.Lookup(id)
	if !ok || depth > 32 {
		b.WriteString("<invalid>")
		return
	}
	switch t.Kind {
	case KindVoid:
		b.WriteString("void")
	case KindBool:
		b.WriteString("bool")
	case KindNullptr:
		b.WriteString("std::nullptr_t")
	case KindInt:
		if !t.Signed {
			b.WriteString("unsigned ")
		}
		switch t.Width {
		case Width8:
			b.WriteString("char")
		case Width16:
			b.WriteString("short")
		case Width32:
			b.WriteString("int")
		case Width64:
			b.WriteString("long long")
		default:
			b.WriteString("__int128")
		}
	case KindFloat:
		if t.Width == Width32 {
			b.WriteString("float")
		} else {
			b.WriteString("double")
		}
	case KindPointer:
		if t.Const {
			b.WriteString("const ")
		}
		in.format(b, t.Elem, depth+1)
		b.WriteString("*")
	case KindReference:
		if t.Const {
			b.WriteString("const ")
		}
		in.format(b, t.Elem, depth+1)
		if t.RValue {
			b.WriteString("&&")
		} else {
			b.WriteString("&")
		}
	case KindArray:
		in.format(b, t.Elem, depth+1)
		fmt.Fprintf(b, "[%d]", t.Count)
	case KindRecord:
		b.WriteString(in.records[t.Payload].QualName)
	case KindEnum:
		b.WriteString(in.enums[t.Payload].QualName)
	case KindStd:
		info := in.stds[t.Payload]
		b.WriteString("std::")
		b.WriteString(info.Template)
		if len(info.Args) > 0 {
			b.WriteByte('<')
			for i, a := range info.Args {
				if i > 0 {
					b.WriteString(", ")
				}
				in.format(b, a, depth+1)
			}
			b.WriteByte('>')
		}
	case KindFunction:
		info := in.funcs[t.Payload]
		in.format(b, info.Result, depth+1)
		b.WriteString("(")
		for i, p := range info.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			in.format(b, p, depth+1)
		}
		if info.Variadic {
			b.WriteString(", ...")
		}
		b.WriteString(")")
	case KindClosure:
		b.WriteString("<lambda>")
	case KindUnsupported:
		b.WriteString(t.Spelling)
	default:
		b.WriteString(t.Kind.String())
	}
}
