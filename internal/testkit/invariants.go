// Package testkit holds structural checks shared by package tests.
package testkit

import (
	"fmt"

	"cxxlower/internal/ast"
	"cxxlower/internal/layout"
	"cxxlower/internal/types"
)

// CheckUnitInvariants runs a minimal set of structural invariants on a unit:
// 1) every member's Parent names the declaration that lists it
// 2) every declaration reference in an expression resolves
// 3) literals and references carry a type
// 4) every complete record's info points back at its declaration
func CheckUnitInvariants(u *ast.Unit) error {
	if u == nil {
		return fmt.Errorf("nil unit")
	}
	if err := checkMembers(u, ast.NoDeclID, 0); err != nil {
		return err
	}
	valid := func(id ast.DeclID) bool {
		return id != ast.NoDeclID && uint32(id) <= u.DeclCount()
	}
	for i := uint32(1); i <= u.ExprCount(); i++ {
		id := ast.ExprID(i)
		e := u.Expr(id)
		switch data := e.Data.(type) {
		case *ast.DeclRefData:
			if !valid(data.Decl) {
				return fmt.Errorf("expr %d at %v: reference to missing decl %d", id, e.Span, data.Decl)
			}
		case *ast.MemberData:
			if !valid(data.Member) {
				return fmt.Errorf("expr %d at %v: member access to missing decl %d", id, e.Span, data.Member)
			}
		}
		switch e.Kind {
		case ast.ExprLiteral, ast.ExprDeclRef:
			if e.Type == types.NoTypeID {
				return fmt.Errorf("expr %d (%v) at %v has no type", id, e.Kind, e.Span)
			}
		}
	}
	for _, rec := range u.Types.Records() {
		info, _ := u.Types.RecordInfo(rec)
		if !info.Complete {
			continue
		}
		d := u.Decl(ast.DeclID(info.Decl))
		if d == nil || d.Kind != ast.DeclRecord || d.Type != rec {
			return fmt.Errorf("record %s: info points at decl %d which does not define it", info.Name, info.Decl)
		}
		for _, b := range info.Bases {
			if u.Types.Kind(b.Type) != types.KindRecord {
				return fmt.Errorf("record %s: base %d is not a record", info.Name, b.Type)
			}
		}
	}
	return nil
}

func checkMembers(u *ast.Unit, parent ast.DeclID, depth int) error {
	if depth > 256 {
		return fmt.Errorf("declaration nesting deeper than 256 under %d", parent)
	}
	for _, m := range u.Members(parent) {
		d := u.Decl(m)
		if d == nil {
			return fmt.Errorf("decl %d lists missing member %d", parent, m)
		}
		if d.Parent != parent {
			return fmt.Errorf("decl %d (%s) has parent %d, listed under %d", m, d.Name, d.Parent, parent)
		}
		if err := checkMembers(u, m, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// CheckLayoutInvariants verifies the properties every computed layout must
// keep regardless of the hierarchy:
// 1) non-virtual bases come first, in declaration order, then own fields
// 2) each virtual base is stored once
// 3) layout.Check accepts the vtables
func CheckLayoutInvariants(in *types.Interner, l *layout.ClassLayout) error {
	info, ok := in.RecordInfo(l.Record)
	if !ok {
		return fmt.Errorf("layout of a non-record type %d", l.Record)
	}
	var direct []types.TypeID
	for _, b := range info.Bases {
		if !b.Virtual {
			direct = append(direct, b.Type)
		}
	}
	if len(l.Bases) != len(direct) {
		return fmt.Errorf("%s: %d base slots for %d non-virtual bases", info.Name, len(l.Bases), len(direct))
	}
	for i, b := range l.Bases {
		if b.Type != direct[i] {
			return fmt.Errorf("%s: base slot %d holds %d, declared %d", info.Name, i, b.Type, direct[i])
		}
	}
	seen := make(map[types.TypeID]bool, len(l.VBases))
	for _, vb := range l.VBases {
		if seen[vb.Type] {
			return fmt.Errorf("%s: virtual base %d stored twice", info.Name, vb.Type)
		}
		seen[vb.Type] = true
	}
	if err := layout.Check(l); err != nil {
		return err
	}
	return nil
}
