package lower

import (
	"cxxlower/internal/ast"
	"cxxlower/internal/lir"
	"cxxlower/internal/symbols"
	"cxxlower/internal/types"
)

// recordNamer resolves record types relative to the lowerer's position.
type recordNamer struct{ l *lowerer }

func (r recordNamer) RecordType(t types.TypeID, complete bool) lir.Type {
	l := r.l
	info, ok := l.in.RecordInfo(t)
	if !ok || info.Decl == 0 {
		return lir.Path("::core::ffi::c_void")
	}
	path := l.declPath(ast.DeclID(info.Decl))
	key := info.Key()
	if complete && l.in.HasVirtualBases(t) {
		path += completeSuffix
		key += completeSuffix
	}
	return lir.RecordPath(path, key)
}

const completeSuffix = "__Complete"

// recordType is the subobject (or plain) struct of rec.
func (l *lowerer) recordType(rec types.TypeID) lir.Type {
	return recordNamer{l}.RecordType(rec, false)
}

// valueType is the struct a by-value object of rec uses.
func (l *lowerer) valueType(rec types.TypeID) lir.Type {
	return recordNamer{l}.RecordType(rec, true)
}

// declPath prints id unqualified when C++ lookup from the current position
// finds it and the name is visible in the current module; otherwise as a
// crate path.
func (l *lowerer) declPath(id ast.DeclID) string {
	if l.shortOK(id) {
		return l.names.Name(id)
	}
	return l.names.Path(id)
}

func (l *lowerer) shortOK(id ast.DeclID) bool {
	d := l.u.Decl(id)
	if d == nil {
		return false
	}
	if p := l.u.Decl(d.Parent); p != nil && p.Kind == ast.DeclRecord {
		return false
	}
	if d.Kind == ast.DeclEnumerator {
		if ed, ok := d.Data.(*ast.EnumeratorData); ok {
			if _, en, ok := l.enumDecl(ed.Enum); ok && en.Scoped {
				return false
			}
		}
	}
	at := l.at
	if d.Kind == ast.DeclRecord && l.tab.Order(id) == at {
		// members share the record's position; the injected class name is
		// visible inside the class
		at++
	}
	return l.tab.ShortOK(l.scope, d.Name, id, at)
}

func (l *lowerer) enumDecl(id ast.DeclID) (*ast.Decl, *ast.EnumData, bool) {
	d := l.u.Decl(id)
	if d == nil {
		return nil, nil, false
	}
	ed, ok := d.Data.(*ast.EnumData)
	return d, ed, ok
}

// recordOf returns the record declaration that owns a member.
func (l *lowerer) recordOf(member ast.DeclID) (ast.DeclID, types.TypeID) {
	d := l.u.Decl(member)
	if d == nil {
		return ast.NoDeclID, types.NoTypeID
	}
	p := l.u.Decl(d.Parent)
	if p == nil || p.Kind != ast.DeclRecord {
		return ast.NoDeclID, types.NoTypeID
	}
	return d.Parent, p.Type
}

// memberPath is `Owner::name` for an associated item of a record.
func (l *lowerer) memberPath(rec types.TypeID, name string) string {
	return l.recordType(rec).Name + "::" + name
}

// addUses re-emits the using edges in effect for a namespace as `use` items.
func (l *lowerer) addUses(ns ast.DeclID, m *lir.Module) {
	for _, imp := range l.tab.ImportsFor(l.tab.NamespaceScope(ns)) {
		switch imp.Kind {
		case symbols.ImportNamespace:
			if imp.Target == ns {
				continue
			}
			m.AddUse(lir.Use{Path: l.names.ModulePath(imp.Target), Glob: true})
		case symbols.ImportDecl:
			for _, id := range l.overloads(imp.Target) {
				m.AddUse(lir.Use{Path: l.names.Path(id)})
			}
		}
	}
}

// overloads lists every declaration sharing target's name in its scope, so a
// using-declaration brings all suffixed Rust names along.
func (l *lowerer) overloads(target ast.DeclID) []ast.DeclID {
	d := l.u.Decl(target)
	if d == nil {
		return nil
	}
	if d.Kind != ast.DeclFunction {
		return []ast.DeclID{target}
	}
	var out []ast.DeclID
	for _, m := range l.u.Members(d.Parent) {
		if md := l.u.Decl(m); md != nil && md.Kind == ast.DeclFunction && md.Name == d.Name {
			out = append(out, m)
		}
	}
	return out
}
