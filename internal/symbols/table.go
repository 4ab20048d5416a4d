// Package symbols tracks C++ name visibility while a unit is lowered: the
// namespace scope chain, using-directives and using-declarations with their
// source positions, and block scopes for locals. It also assigns the Rust
// identifier of every declaration (see Namer).
package symbols

import (
	"fmt"

	"fortio.org/safecast"

	"cxxlower/internal/ast"
)

// Table aggregates the scopes of one unit.
type Table struct {
	u       *ast.Unit
	scopes  []Scope
	nsScope map[ast.DeclID]ScopeID
	byName  map[nsKey]ScopeID
	order   map[ast.DeclID]int
	seq     int
}

type nsKey struct {
	parent ScopeID
	name   string
}

// Build walks the namespace-level declarations of u and records them with
// their positions.
func Build(u *ast.Unit) *Table {
	t := &Table{
		u:       u,
		nsScope: make(map[ast.DeclID]ScopeID),
		byName:  make(map[nsKey]ScopeID),
		order:   make(map[ast.DeclID]int),
	}
	t.scopes = append(t.scopes, Scope{Kind: ScopeUnit})
	t.walk(0, u.Roots)
	return t
}

func (t *Table) newScope(kind ScopeKind, parent ScopeID, owner ast.DeclID) ScopeID {
	n, err := safecast.Conv[uint32](len(t.scopes))
	if err != nil {
		panic(fmt.Errorf("scope overflow: %w", err))
	}
	id := ScopeID(n)
	t.scopes = append(t.scopes, Scope{Kind: kind, Parent: parent, Owner: owner})
	t.scopes[parent].Children = append(t.scopes[parent].Children, id)
	return id
}

func (t *Table) next() int {
	t.seq++
	return t.seq
}

func (t *Table) walk(scope ScopeID, decls []ast.DeclID) {
	for _, id := range decls {
		d := t.u.Decl(id)
		if d == nil {
			continue
		}
		ord := t.next()
		t.order[id] = ord
		switch data := d.Data.(type) {
		case *ast.NamespaceData:
			key := nsKey{parent: scope, name: d.Name}
			sub, ok := t.byName[key]
			if !ok || d.Name == "" {
				sub = t.newScope(ScopeNamespace, scope, id)
				if d.Name != "" {
					t.byName[key] = sub
				}
			}
			t.nsScope[id] = sub
			if d.Name != "" {
				t.scopes[scope].declare(d.Name, Entry{Decl: id, Order: ord})
			}
			if data.Inline || d.Name == "" {
				// members of inline and anonymous namespaces are found from
				// the enclosing scope as well
				t.scopes[scope].Imports = append(t.scopes[scope].Imports, Import{Kind: ImportNamespace, Target: id, Order: ord})
			}
			t.walk(sub, data.Members)
		case *ast.UsingDirectiveData:
			t.scopes[scope].Imports = append(t.scopes[scope].Imports, Import{Kind: ImportNamespace, Target: data.Namespace, Order: ord, Decl: id})
		case *ast.UsingDeclData:
			t.scopes[scope].Imports = append(t.scopes[scope].Imports, Import{Kind: ImportDecl, Target: data.Target, Order: ord, Decl: id})
		case *ast.EnumData:
			t.scopes[scope].declare(d.Name, Entry{Decl: id, Order: ord})
			if !data.Scoped {
				for _, e := range data.Enumerators {
					t.order[e] = ord
					if ed := t.u.Decl(e); ed != nil {
						t.scopes[scope].declare(ed.Name, Entry{Decl: e, Order: ord})
					}
				}
			}
		default:
			if d.Name != "" {
				t.scopes[scope].declare(d.Name, Entry{Decl: id, Order: ord})
			}
			if rd, ok := data.(*ast.RecordData); ok {
				for _, m := range rd.Members {
					t.order[m] = ord
				}
			}
		}
	}
}

// Scope returns the scope by id.
func (t *Table) Scope(id ScopeID) *Scope {
	if int(id) >= len(t.scopes) {
		return nil
	}
	return &t.scopes[id]
}

// NamespaceScope maps a namespace declaration (0 for the unit) to its scope.
func (t *Table) NamespaceScope(ns ast.DeclID) ScopeID {
	if ns == ast.NoDeclID {
		return 0
	}
	return t.nsScope[ns]
}

// Order is the source position of a namespace-level declaration; members of
// records share their record's position.
func (t *Table) Order(id ast.DeclID) int { return t.order[id] }

// End is a position after every declaration.
func (t *Table) End() int { return t.seq + 1 }

// EnterBlock opens a block scope below parent.
func (t *Table) EnterBlock(parent ScopeID) ScopeID {
	return t.newScope(ScopeBlock, parent, ast.NoDeclID)
}

// DeclareLocal makes a local variable visible in a block scope.
func (t *Table) DeclareLocal(scope ScopeID, name string, decl ast.DeclID) {
	t.scopes[scope].declare(name, Entry{Decl: decl, Order: 0})
}

// Result is the outcome of an unqualified lookup.
type Result struct {
	Decls []ast.DeclID
	// Scope is where the name was found.
	Scope ScopeID
	// ViaImport is set when a using edge supplied the name.
	ViaImport bool
}

// Lookup resolves name from scope at position at. Within one scope a
// declaration wins over using-declarations, which win over using-directives;
// an inner scope always wins over an outer one.
func (t *Table) Lookup(scope ScopeID, name string, at int) (Result, bool) {
	for cur := scope; ; {
		s := &t.scopes[cur]
		if s.Kind == ScopeBlock {
			if es := s.Names[name]; len(es) > 0 {
				return Result{Decls: []ast.DeclID{es[len(es)-1].Decl}, Scope: cur}, true
			}
		} else if ds := visibleAll(s, name, at); len(ds) > 0 {
			return Result{Decls: ds, Scope: cur}, true
		}
		if ds := t.viaUsingDecl(s, name, at); len(ds) > 0 {
			return Result{Decls: ds, Scope: cur, ViaImport: true}, true
		}
		if ds := t.viaDirective(s, name, at, map[ScopeID]bool{}); len(ds) > 0 {
			return Result{Decls: ds, Scope: cur, ViaImport: true}, true
		}
		if cur == 0 {
			return Result{}, false
		}
		cur = s.Parent
	}
}

func visibleAll(s *Scope, name string, at int) []ast.DeclID {
	var out []ast.DeclID
	for _, e := range s.Names[name] {
		if e.Order < at {
			out = append(out, e.Decl)
		}
	}
	return out
}

func (t *Table) viaUsingDecl(s *Scope, name string, at int) []ast.DeclID {
	var out []ast.DeclID
	for _, imp := range s.Imports {
		if imp.Kind != ImportDecl || imp.Order >= at {
			continue
		}
		if d := t.u.Decl(imp.Target); d != nil && d.Name == name {
			out = append(out, imp.Target)
		}
	}
	return out
}

// viaDirective searches the namespaces nominated by using-directives in s,
// following their own directives transitively.
func (t *Table) viaDirective(s *Scope, name string, at int, seen map[ScopeID]bool) []ast.DeclID {
	var out []ast.DeclID
	for _, imp := range s.Imports {
		if imp.Kind != ImportNamespace || imp.Order >= at {
			continue
		}
		target, ok := t.nsScope[imp.Target]
		if !ok || seen[target] {
			continue
		}
		seen[target] = true
		ts := &t.scopes[target]
		if ds := visibleAll(ts, name, at); len(ds) > 0 {
			out = append(out, ds...)
			continue
		}
		out = append(out, t.viaUsingDecl(ts, name, at)...)
		out = append(out, t.viaDirective(ts, name, at, seen)...)
	}
	return out
}

// namespaceOf walks out of block scopes.
func (t *Table) namespaceOf(scope ScopeID) ScopeID {
	for t.scopes[scope].Kind == ScopeBlock {
		scope = t.scopes[scope].Parent
	}
	return scope
}

// ShortOK reports whether decl, named name, can be printed unqualified from
// scope at position at. The C++ lookup must resolve to decl, and the name must
// be in the Rust module of scope: declared there or brought in by a using
// edge (which is re-emitted as `use` in every descendant module).
func (t *Table) ShortOK(scope ScopeID, name string, decl ast.DeclID, at int) bool {
	res, ok := t.Lookup(scope, name, at)
	if !ok {
		return false
	}
	hit := false
	for _, d := range res.Decls {
		if d == decl {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	if res.ViaImport {
		return true
	}
	return res.Scope == t.namespaceOf(scope)
}

// ImportsFor lists the using edges in effect for the module of ns: its own
// and every ancestor's, outermost first.
func (t *Table) ImportsFor(ns ScopeID) []Import {
	var chain []ScopeID
	for cur := ns; ; cur = t.scopes[cur].Parent {
		chain = append(chain, cur)
		if cur == 0 {
			break
		}
	}
	var out []Import
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, t.scopes[chain[i]].Imports...)
	}
	return out
}
