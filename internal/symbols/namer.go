package symbols

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"cxxlower/internal/ast"
	"cxxlower/internal/types"
)

var rustKeywords = map[string]bool{
	"as": true, "async": true, "await": true, "break": true, "const": true,
	"continue": true, "dyn": true, "else": true, "enum": true, "extern": true,
	"false": true, "fn": true, "for": true, "if": true, "impl": true, "in": true,
	"let": true, "loop": true, "match": true, "mod": true, "move": true,
	"mut": true, "pub": true, "ref": true, "return": true, "static": true,
	"struct": true, "trait": true, "true": true, "type": true, "unsafe": true,
	"use": true, "where": true, "while": true, "abstract": true, "become": true,
	"box": true, "do": true, "final": true, "gen": true, "macro": true,
	"override": true, "priv": true, "try": true, "typeof": true, "unsized": true,
	"virtual": true, "yield": true,
}

// these cannot be raw identifiers
var rustReserved = map[string]bool{"self": true, "Self": true, "super": true, "crate": true, "_": true}

// Ident turns a C++ identifier into a valid Rust one: NFC-normalized, raw
// (`r#`) when it collides with a keyword, suffixed with `_` when it cannot be
// raw.
func Ident(name string) string {
	name = norm.NFC.String(name)
	switch {
	case rustReserved[name]:
		return name + "_"
	case rustKeywords[name]:
		return "r#" + name
	}
	return name
}

// Mangle renders a type as an identifier fragment for overload suffixes.
func Mangle(in *types.Interner, id types.TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "x"
	}
	switch t.Kind {
	case types.KindVoid:
		return "void"
	case types.KindBool:
		return "bool"
	case types.KindInt:
		if t.Signed {
			return fmt.Sprintf("i%d", t.Width)
		}
		return fmt.Sprintf("u%d", t.Width)
	case types.KindFloat:
		return fmt.Sprintf("f%d", t.Width)
	case types.KindNullptr:
		return "null"
	case types.KindPointer:
		if t.Const {
			return "pc" + Mangle(in, t.Elem)
		}
		return "p" + Mangle(in, t.Elem)
	case types.KindReference:
		switch {
		case t.RValue:
			return "rr" + Mangle(in, t.Elem)
		case t.Const:
			return "rc" + Mangle(in, t.Elem)
		}
		return "r" + Mangle(in, t.Elem)
	case types.KindArray:
		return fmt.Sprintf("a%d%s", t.Count, Mangle(in, t.Elem))
	case types.KindRecord:
		if info, ok := in.RecordInfo(id); ok {
			return info.Name
		}
	case types.KindEnum:
		if info, ok := in.EnumInfo(id); ok {
			return info.Name
		}
	case types.KindStd:
		if info, ok := in.StdInfo(id); ok {
			parts := []string{info.Template}
			for _, a := range info.Args {
				parts = append(parts, Mangle(in, a))
			}
			return strings.Join(parts, "_")
		}
	}
	return "x"
}

// OperatorNamer maps an operator function to its method base name.
type OperatorNamer func(fd *ast.FunctionData, params int) string

// Namer assigns the Rust name and path of every declaration in a unit. Names
// are fixed when the Namer is built, so repeated lowering of the same unit
// produces the same identifiers.
type Namer struct {
	u      *ast.Unit
	opName OperatorNamer
	names  map[ast.DeclID]string
	mods   map[ast.DeclID][]string
}

func NewNamer(u *ast.Unit, opName OperatorNamer) *Namer {
	n := &Namer{
		u:      u,
		opName: opName,
		names:  make(map[ast.DeclID]string),
		mods:   make(map[ast.DeclID][]string),
	}
	n.assign(nil, u.Roots, "")
	return n
}

func (n *Namer) assign(modPath []string, members []ast.DeclID, prefix string) {
	anon := ""
	var fns []ast.DeclID
	for _, id := range members {
		d := n.u.Decl(id)
		if d == nil {
			continue
		}
		n.mods[id] = modPath
		switch data := d.Data.(type) {
		case *ast.NamespaceData:
			name := Ident(d.Name)
			if d.Name == "" {
				// every anonymous namespace of one parent is the same namespace
				if anon == "" {
					anon = fmt.Sprintf("__anon%d", len(modPath))
				}
				name = anon
			}
			n.names[id] = name
			n.assign(appendPath(modPath, name), data.Members, "")
		case *ast.RecordData:
			name := nested(prefix, d.Name)
			n.names[id] = name
			n.assign(modPath, data.Members, name+"_")
		case *ast.FunctionData:
			fns = append(fns, id)
		case *ast.EnumData:
			n.names[id] = nested(prefix, d.Name)
			for _, e := range data.Enumerators {
				if ed := n.u.Decl(e); ed != nil {
					n.names[e] = Ident(ed.Name)
					n.mods[e] = modPath
				}
			}
		default:
			if d.Name != "" {
				n.names[id] = Ident(d.Name)
			}
		}
	}
	n.nameFunctions(fns)
}

// nested names a type declared inside a record: Outer_Inner.
func nested(prefix, name string) string {
	if prefix == "" {
		return Ident(name)
	}
	return prefix + name
}

func appendPath(p []string, s string) []string {
	out := make([]string, 0, len(p)+1)
	out = append(out, p...)
	return append(out, s)
}

// nameFunctions gives overloads in one scope signature-derived suffixes.
func (n *Namer) nameFunctions(fns []ast.DeclID) {
	groups := make(map[string][]ast.DeclID)
	var order []string
	for _, id := range fns {
		d, fd, _ := n.u.Func(id)
		base := n.baseName(d, fd)
		if _, seen := groups[base]; !seen {
			order = append(order, base)
		}
		groups[base] = append(groups[base], id)
	}
	for _, base := range order {
		ids := groups[base]
		if len(ids) == 1 {
			n.names[ids[0]] = base
			continue
		}
		used := make(map[string]int)
		for _, id := range ids {
			_, fd, _ := n.u.Func(id)
			name := base + "__" + n.suffix(fd)
			if fd.Const && fd.Kind != ast.FuncOperator {
				name += "_c"
			}
			if k := used[name]; k > 0 {
				used[name] = k + 1
				name = fmt.Sprintf("%s_%d", name, k)
			} else {
				used[name] = 1
			}
			n.names[id] = name
		}
	}
}

func (n *Namer) baseName(d *ast.Decl, fd *ast.FunctionData) string {
	switch fd.Kind {
	case ast.FuncCtor:
		return "new"
	case ast.FuncDtor:
		return "drop"
	case ast.FuncOperator:
		if n.opName != nil {
			return n.opName(fd, len(fd.Params))
		}
	case ast.FuncConversion:
		return "to_" + Mangle(n.u.Types, fd.Result)
	}
	return Ident(d.Name)
}

func (n *Namer) suffix(fd *ast.FunctionData) string {
	params := n.u.ParamTypes(fd)
	if len(params) == 0 {
		return "void"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = Mangle(n.u.Types, p)
	}
	return strings.Join(parts, "_")
}

// Name is the Rust identifier of a declaration (without path).
func (n *Namer) Name(id ast.DeclID) string {
	if s, ok := n.names[id]; ok {
		return s
	}
	if d := n.u.Decl(id); d != nil {
		return Ident(d.Name)
	}
	return ""
}

// InitName is the in-place initializer paired with a constructor.
func (n *Namer) InitName(ctor ast.DeclID) string {
	return "__init" + strings.TrimPrefix(n.Name(ctor), "new")
}

// Module returns the module path (namespace names) that holds id.
func (n *Namer) Module(id ast.DeclID) []string { return n.mods[id] }

// ModulePath is the crate-absolute path of a namespace's module.
func (n *Namer) ModulePath(ns ast.DeclID) string {
	if ns == ast.NoDeclID {
		return "crate"
	}
	return "crate::" + strings.Join(appendPath(n.mods[ns], n.Name(ns)), "::")
}

// Path is the crate-absolute path of a namespace-level item. Scoped
// enumerators go through their enum's module.
func (n *Namer) Path(id ast.DeclID) string {
	d := n.u.Decl(id)
	if d != nil {
		if ed, ok := d.Data.(*ast.EnumeratorData); ok {
			if _, en, ok := n.enum(ed.Enum); ok && en.Scoped {
				return n.Path(ed.Enum) + "::" + n.Name(id)
			}
		}
	}
	parts := append([]string{"crate"}, n.mods[id]...)
	return strings.Join(append(parts, n.Name(id)), "::")
}

func (n *Namer) enum(id ast.DeclID) (*ast.Decl, *ast.EnumData, bool) {
	d := n.u.Decl(id)
	if d == nil {
		return nil, nil, false
	}
	ed, ok := d.Data.(*ast.EnumData)
	return d, ed, ok
}
