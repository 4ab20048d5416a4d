// Package verify parses emitted Rust with the tree-sitter grammar and
// reports the first syntax error. It is a shape check only: names, types
// and borrows are left to rustc.
package verify

import (
	"errors"
	"fmt"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"cxxlower/internal/diag"
	"cxxlower/internal/source"
)

var (
	langOnce sync.Once
	rust     *sitter.Language
	parsers  sync.Pool
)

func language() *sitter.Language {
	langOnce.Do(func() {
		rust = sitter.NewLanguage(tree_sitter_rust.Language())
		parsers.New = func() any {
			p := sitter.NewParser()
			_ = p.SetLanguage(rust)
			return p
		}
	})
	return rust
}

// SyntaxError locates the first ERROR or MISSING node. Line and Col are
// 1-based.
type SyntaxError struct {
	Line, Col uint32
	Missing   bool
	Kind      string
	Text      string
}

func (e *SyntaxError) Error() string {
	if e.Missing {
		return fmt.Sprintf("%d:%d: missing %s", e.Line, e.Col, e.Kind)
	}
	if e.Text != "" {
		return fmt.Sprintf("%d:%d: unexpected %q", e.Line, e.Col, e.Text)
	}
	return fmt.Sprintf("%d:%d: syntax error", e.Line, e.Col)
}

var errNoTree = errors.New("tree-sitter returned no tree")

// Check parses src as a Rust source file.
func Check(src []byte) error {
	language()
	p := parsers.Get().(*sitter.Parser)
	defer func() {
		p.Reset()
		parsers.Put(p)
	}()
	tree := p.Parse(src, nil)
	if tree == nil {
		return errNoTree
	}
	defer tree.Close()
	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}
	bad := firstError(root)
	if bad == nil {
		return &SyntaxError{Line: 1, Col: 1}
	}
	pos := bad.StartPosition()
	se := &SyntaxError{Line: uint32(pos.Row) + 1, Col: uint32(pos.Column) + 1, Missing: bad.IsMissing(), Kind: bad.Kind()}
	if !se.Missing {
		se.Text = snippet(src, bad.StartByte(), bad.EndByte())
	}
	return se
}

// firstError walks in source order and returns the earliest broken node.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil {
			if bad := firstError(c); bad != nil {
				return bad
			}
		}
	}
	return nil
}

func snippet(src []byte, start, end uint) string {
	if end > uint(len(src)) {
		end = uint(len(src))
	}
	if start >= end {
		return ""
	}
	s := src[start:end]
	for i, c := range s {
		if c == '\n' {
			s = s[:i]
			break
		}
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return string(s)
}

// Report runs Check and reports a failure as EmtSyntaxCheck against the
// output file.
func Report(rep diag.Reporter, file source.FileID, src []byte) bool {
	err := Check(src)
	if err == nil {
		return true
	}
	at := source.Span{File: file}
	var se *SyntaxError
	if errors.As(err, &se) {
		at.Line, at.Col = se.Line, se.Col
	}
	diag.ReportError(rep, diag.EmtSyntaxCheck, at, "emitted Rust does not parse: "+err.Error()).Emit()
	return false
}
