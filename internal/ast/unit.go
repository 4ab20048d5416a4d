package ast

import (
	"strings"

	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

// Unit is one translation unit: the declarations the front end produced plus
// the type interner and file table they refer to. A Unit is built once and
// then only read.
type Unit struct {
	Name  string
	Path  string
	Files *source.FileSet
	Types *types.Interner
	Roots []DeclID

	decls *Arena[Decl]
	stmts *Arena[Stmt]
	exprs *Arena[Expr]
}

func NewUnit(name string, files *source.FileSet, in *types.Interner) *Unit {
	if files == nil {
		files = source.NewFileSet()
	}
	if in == nil {
		in = types.NewInterner()
	}
	return &Unit{
		Name:  name,
		Files: files,
		Types: in,
		decls: NewArena[Decl](1 << 8),
		stmts: NewArena[Stmt](1 << 9),
		exprs: NewArena[Expr](1 << 10),
	}
}

func (u *Unit) NewDecl(d Decl) DeclID { return DeclID(u.decls.Allocate(d)) }
func (u *Unit) NewStmt(s Stmt) StmtID { return StmtID(u.stmts.Allocate(s)) }
func (u *Unit) NewExpr(e Expr) ExprID { return ExprID(u.exprs.Allocate(e)) }

func (u *Unit) Decl(id DeclID) *Decl { return u.decls.Get(uint32(id)) }
func (u *Unit) Stmt(id StmtID) *Stmt { return u.stmts.Get(uint32(id)) }
func (u *Unit) Expr(id ExprID) *Expr { return u.exprs.Get(uint32(id)) }

func (u *Unit) DeclCount() uint32 { return u.decls.Len() }
func (u *Unit) StmtCount() uint32 { return u.stmts.Len() }
func (u *Unit) ExprCount() uint32 { return u.exprs.Len() }

// Func returns the function payload of id.
func (u *Unit) Func(id DeclID) (*Decl, *FunctionData, bool) {
	d := u.Decl(id)
	if d == nil || d.Kind != DeclFunction {
		return nil, nil, false
	}
	fd, ok := d.Data.(*FunctionData)
	return d, fd, ok
}

// Var returns the variable payload of id.
func (u *Unit) Var(id DeclID) (*Decl, *VarData, bool) {
	d := u.Decl(id)
	if d == nil || d.Kind != DeclVar {
		return nil, nil, false
	}
	vd, ok := d.Data.(*VarData)
	return d, vd, ok
}

// Record returns the record payload of id.
func (u *Unit) Record(id DeclID) (*Decl, *RecordData, bool) {
	d := u.Decl(id)
	if d == nil || d.Kind != DeclRecord {
		return nil, nil, false
	}
	rd, ok := d.Data.(*RecordData)
	return d, rd, ok
}

// Members returns the children of a namespace or record, or the roots for 0.
func (u *Unit) Members(id DeclID) []DeclID {
	if id == NoDeclID {
		return u.Roots
	}
	d := u.Decl(id)
	if d == nil {
		return nil
	}
	switch data := d.Data.(type) {
	case *NamespaceData:
		return data.Members
	case *RecordData:
		return data.Members
	case *EnumData:
		return data.Enumerators
	}
	return nil
}

// AddMember appends child to parent's member list (or the roots).
func (u *Unit) AddMember(parent, child DeclID) {
	if c := u.Decl(child); c != nil {
		c.Parent = parent
	}
	if parent == NoDeclID {
		u.Roots = append(u.Roots, child)
		return
	}
	switch data := u.Decl(parent).Data.(type) {
	case *NamespaceData:
		data.Members = append(data.Members, child)
	case *RecordData:
		data.Members = append(data.Members, child)
	case *EnumData:
		data.Enumerators = append(data.Enumerators, child)
	}
}

// QualName joins the names of the enclosing namespaces and records with
// "::". Anonymous namespaces contribute "(anonymous)".
func (u *Unit) QualName(id DeclID) string {
	var parts []string
	for cur := id; cur != NoDeclID; {
		d := u.Decl(cur)
		if d == nil {
			break
		}
		if d.Kind == DeclNamespace || d.Kind == DeclRecord || cur == id {
			name := d.Name
			if name == "" && d.Kind == DeclNamespace {
				name = "(anonymous)"
			}
			parts = append(parts, name)
		}
		cur = d.Parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "::")
}

// EnclosingRecord walks up from id to the nearest record declaration.
func (u *Unit) EnclosingRecord(id DeclID) DeclID {
	for cur := u.parentOf(id); cur != NoDeclID; cur = u.parentOf(cur) {
		if d := u.Decl(cur); d != nil && d.Kind == DeclRecord {
			return cur
		}
	}
	return NoDeclID
}

func (u *Unit) parentOf(id DeclID) DeclID {
	if d := u.Decl(id); d != nil {
		return d.Parent
	}
	return NoDeclID
}

// RecordDecl finds the definition of a record type.
func (u *Unit) RecordDecl(t types.TypeID) DeclID {
	if info, ok := u.Types.RecordInfo(t); ok {
		return DeclID(info.Decl)
	}
	return NoDeclID
}

// Signature builds the override key of a member function: the name, the
// parameter types and the const qualifier. Destructors all share "~".
func Signature(in *types.Interner, kind FuncKind, name string, params []types.TypeID, isConst bool) string {
	if kind == FuncDtor {
		return "~"
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(in.Format(p))
	}
	b.WriteByte(')')
	if isConst {
		b.WriteString("const")
	}
	return b.String()
}

// ParamTypes returns the declared types of fn's parameters.
func (u *Unit) ParamTypes(fn *FunctionData) []types.TypeID {
	out := make([]types.TypeID, 0, len(fn.Params))
	for _, p := range fn.Params {
		if d := u.Decl(p); d != nil {
			out = append(out, d.Type)
		}
	}
	return out
}
