// Package emit serializes a lowered crate to Rust source text. It is pure:
// the same crate always prints to the same bytes.
package emit

import (
	"strings"

	"cxxlower/internal/lir"
)

// Allows are the crate-level lints silenced in generated code.
var Allows = []string{
	"dead_code",
	"non_camel_case_types",
	"non_snake_case",
	"non_upper_case_globals",
	"redundant_semicolons",
	"unreachable_code",
	"unused_assignments",
	"unused_imports",
	"unused_labels",
	"unused_mut",
	"unused_parens",
	"unused_unsafe",
	"unused_variables",
}

type Options struct {
	// Header replaces the first line of the generated-file banner.
	Header string
}

// Emit renders the crate. A by-value cycle between records yields an
// *OrderingError and no output.
func Emit(c *lir.Crate, opts Options) (string, error) {
	if err := checkCycles(c.Root); err != nil {
		return "", err
	}
	p := &printer{}
	header := opts.Header
	if header == "" {
		header = "Code generated by cxxlower. DO NOT EDIT."
	}
	p.line("// %s", header)
	if c.Unit != "" {
		p.line("// source: %s", c.Unit)
	}
	p.line("#![allow(%s)]", strings.Join(Allows, ", "))
	p.body(c.Root)
	return p.b.String(), nil
}

// body prints a module's uses and items: struct definitions first in
// dependency order, then everything else in declaration order.
func (p *printer) body(m *lir.Module) {
	for _, u := range m.Uses {
		p.blankLine()
		if u.Glob {
			p.line("use %s::*;", u.Path)
		} else {
			p.line("use %s;", u.Path)
		}
	}
	var structs []*lir.Struct
	var rest []lir.Item
	for _, it := range m.Items {
		if s, ok := it.(*lir.Struct); ok {
			structs = append(structs, s)
			continue
		}
		rest = append(rest, it)
	}
	for _, s := range orderTypes(structs) {
		p.blankLine()
		p.structItem(s)
	}
	for _, it := range rest {
		p.blankLine()
		p.item(it)
	}
}

// blankLine separates items, but never right after an opening brace.
func (p *printer) blankLine() {
	s := p.b.String()
	if strings.HasSuffix(s, "{\n") || strings.HasSuffix(s, "\n\n") || s == "" {
		return
	}
	p.write("\n")
}

func vis(pub bool) string {
	if pub {
		return "pub "
	}
	return ""
}

func (p *printer) item(it lir.Item) {
	switch x := it.(type) {
	case *lir.Module:
		p.line("%smod %s {", vis(x.Pub), x.Name)
		p.indent++
		p.body(x)
		p.indent--
		p.line("}")
	case *lir.Struct:
		p.structItem(x)
	case *lir.Impl:
		p.implItem(x)
	case *lir.Func:
		p.funcItem(x)
	case *lir.Static:
		p.open()
		p.writef("%sstatic %s: %s = ", vis(x.Pub), x.Name, x.Type.String())
		p.expr(x.Value)
		p.write(";\n")
	case *lir.Const:
		p.open()
		p.writef("%sconst %s: %s = ", vis(x.Pub), x.Name, x.Type.String())
		p.expr(x.Value)
		p.write(";\n")
	case *lir.Alias:
		p.line("%stype %s = %s;", vis(x.Pub), x.Name, x.Type.String())
	case *lir.Note:
		p.line("// %s", x.Text)
	}
}

// open starts a line at the current indentation.
func (p *printer) open() {
	p.write(strings.Repeat("    ", p.indent))
}

func (p *printer) structItem(s *lir.Struct) {
	if s.Origin != "" {
		p.line("/// C++ `%s`", s.Origin)
	}
	p.line("#[repr(C)]")
	if len(s.Fields) == 0 {
		p.line("pub struct %s {}", s.Name)
		return
	}
	p.line("pub struct %s {", s.Name)
	p.indent++
	for _, f := range s.Fields {
		p.line("%s%s: %s,", vis(f.Pub), f.Name, f.Type.String())
	}
	p.indent--
	p.line("}")
}

func (p *printer) implItem(im *lir.Impl) {
	if im.Trait != "" {
		p.line("impl %s for %s {", im.Trait, im.Target)
	} else {
		p.line("impl %s {", im.Target)
	}
	p.indent++
	for _, a := range im.Assoc {
		p.line("type %s = %s;", a.Name, a.Type.String())
	}
	for _, c := range im.Consts {
		p.open()
		p.writef("pub const %s: %s = ", c.Name, c.Type.String())
		p.expr(c.Value)
		p.write(";\n")
	}
	for i, f := range im.Funcs {
		if i > 0 || len(im.Assoc) > 0 || len(im.Consts) > 0 {
			p.write("\n")
		}
		p.funcItem(f)
	}
	p.indent--
	p.line("}")
}

func (p *printer) funcItem(f *lir.Func) {
	if f.Origin != "" {
		p.line("/// C++ `%s`", f.Origin)
	}
	for _, a := range f.Attrs {
		p.line("#[%s]", a)
	}
	p.open()
	p.write(vis(f.Pub))
	if f.Unsafe {
		p.write("unsafe ")
	}
	p.writef("fn %s(", f.Name)
	first := true
	sep := func() {
		if !first {
			p.write(", ")
		}
		first = false
	}
	switch f.Self {
	case lir.SelfRef:
		sep()
		p.write("&self")
	case lir.SelfMut:
		sep()
		p.write("&mut self")
	}
	for _, prm := range f.Params {
		sep()
		p.writef("%s: %s", prm.Name, prm.Type.String())
	}
	p.write(")")
	if !f.Result.IsUnit() {
		p.write(" -> " + f.Result.String())
	}
	if f.Body == nil {
		p.write(";\n")
		return
	}
	p.write(" ")
	body := *f.Body
	if inline(&body) && !body.Unsafe {
		// keep function bodies multi-line
		p.write("{")
		p.indent++
		p.newline()
		p.expr(body.Tail)
		p.indent--
		p.newline()
		p.write("}\n")
		return
	}
	p.block(&body)
	p.write("\n")
}
