package symbols

import "cxxlower/internal/ast"

// ScopeID indexes Table.scopes; 0 is the translation-unit scope.
type ScopeID uint32

// ScopeKind enumerates supported scope categories.
type ScopeKind uint8

const (
	ScopeUnit      ScopeKind = iota // translation unit (global namespace)
	ScopeNamespace                  // named or anonymous namespace
	ScopeBlock                      // function body or nested block
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeUnit:
		return "unit"
	case ScopeNamespace:
		return "namespace"
	case ScopeBlock:
		return "block"
	default:
		return "invalid"
	}
}

// ImportKind distinguishes `using namespace N` from `using N::x`.
type ImportKind uint8

const (
	ImportNamespace ImportKind = iota + 1
	ImportDecl
)

// Import is a using edge recorded at the scope where it appears. Order is the
// position of the directive; lookups before it do not see the edge.
type Import struct {
	Kind   ImportKind
	Target ast.DeclID
	Order  int
	Decl   ast.DeclID // the using declaration itself
}

// Entry is one declaration visible under a name.
type Entry struct {
	Decl  ast.DeclID
	Order int
}

// Scope models a lexical scope with a parent-child hierarchy.
type Scope struct {
	Kind     ScopeKind
	Parent   ScopeID
	Owner    ast.DeclID
	Names    map[string][]Entry
	Imports  []Import
	Children []ScopeID
}

func (s *Scope) declare(name string, e Entry) {
	if s.Names == nil {
		s.Names = make(map[string][]Entry)
	}
	s.Names[name] = append(s.Names[name], e)
}

// visible returns the latest entry declared before at.
func (s *Scope) visible(name string, at int) (Entry, bool) {
	var best Entry
	found := false
	for _, e := range s.Names[name] {
		if e.Order < at && (!found || e.Order > best.Order) {
			best, found = e, true
		}
	}
	return best, found
}
