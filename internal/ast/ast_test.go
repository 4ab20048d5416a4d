package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"cxxlower/internal/types"
)

func TestQualNameAndMembers(t *testing.T) {
	b := NewBuilder("qual")
	ns := b.Namespace(NoDeclID, "zoo")
	anon := b.Namespace(ns, "")
	rec, _ := b.Record(anon, "Cage")
	fn := b.Method(rec, "open", b.Void())

	if got := b.U.QualName(fn); got != "zoo::(anonymous)::Cage::open" {
		t.Fatalf("QualName = %q", got)
	}
	if got := b.U.EnclosingRecord(fn); got != rec {
		t.Fatalf("EnclosingRecord = %d, want %d", got, rec)
	}
	if diff := cmp.Diff([]DeclID{ns}, b.U.Members(NoDeclID)); diff != "" {
		t.Fatalf("roots (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]DeclID{fn}, b.U.Members(rec)); diff != "" {
		t.Fatalf("record members (-want +got):\n%s", diff)
	}
}

func TestVirtualRegistration(t *testing.T) {
	b := NewBuilder("virt")
	animal, animalT := b.Record(NoDeclID, "Animal")
	legs := b.Virtual(animal, "legs", b.I32())
	b.MarkPure(legs)
	b.Dtor(animal, true)

	info, ok := b.T().RecordInfo(animalT)
	if !ok {
		t.Fatal("record info missing")
	}
	want := []types.Virtual{
		{Name: "legs", Sig: "legs()", Decl: uint32(legs), Pure: true},
		{Name: "~Animal", Sig: "~", Decl: info.Virtuals[1].Decl, Dtor: true},
	}
	if diff := cmp.Diff(want, info.Virtuals); diff != "" {
		t.Fatalf("virtuals (-want +got):\n%s", diff)
	}
	if !info.HasDtor || !b.T().Polymorphic(animalT) {
		t.Fatal("expected polymorphic record with destructor")
	}
}

func TestSignatureDistinguishesConst(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Builtins().I32
	a := Signature(in, FuncMethod, "get", []types.TypeID{i32}, false)
	c := Signature(in, FuncMethod, "get", []types.TypeID{i32}, true)
	if a == c {
		t.Fatalf("const and non-const share signature %q", a)
	}
	if got := Signature(in, FuncDtor, "~X", nil, false); got != "~" {
		t.Fatalf("dtor signature = %q", got)
	}
}

func TestRefStripsReference(t *testing.T) {
	b := NewBuilder("ref")
	i32 := b.I32()
	p := b.Param("x", b.T().Reference(i32, false, false))
	b.Function(NoDeclID, "f", b.Void(), p)
	e := b.U.Expr(b.Ref(p))
	if e.Type != i32 || !e.LValue {
		t.Fatalf("Ref type = %d lvalue=%v, want %d lvalue", e.Type, e.LValue, i32)
	}
}

func TestInspectStmtOrder(t *testing.T) {
	b := NewBuilder("walk")
	_, n := b.Local("n", b.I32(), b.Int(1))
	body := b.Block(
		b.ExprStmt(b.Bin(BinAddAssign, b.Ref(n), b.Int(2))),
		b.Return(b.Ref(n)),
	)
	var kinds []StmtKind
	var exprs []ExprKind
	b.U.InspectStmt(body, func(_ StmtID, s *Stmt) bool {
		kinds = append(kinds, s.Kind)
		return true
	}, func(id ExprID) {
		exprs = append(exprs, b.U.Expr(id).Kind)
	})
	if diff := cmp.Diff([]StmtKind{StmtCompound, StmtExpr, StmtReturn}, kinds); diff != "" {
		t.Fatalf("stmt order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]ExprKind{ExprBinary, ExprDeclRef}, exprs); diff != "" {
		t.Fatalf("expr order (-want +got):\n%s", diff)
	}

	var all []ExprKind
	b.U.InspectExpr(b.Bin(BinAdd, b.Int(1), b.Unary(UnNeg, b.Int(2))), func(_ ExprID, e *Expr) bool {
		all = append(all, e.Kind)
		return true
	})
	if diff := cmp.Diff([]ExprKind{ExprBinary, ExprLiteral, ExprUnary, ExprLiteral}, all); diff != "" {
		t.Fatalf("InspectExpr (-want +got):\n%s", diff)
	}
}

func TestBinaryOpHelpers(t *testing.T) {
	op, ok := ParseBinaryOp("<<=")
	if !ok || op != BinShlAssign || !op.IsAssign() {
		t.Fatalf("ParseBinaryOp(<<=) = %v %v", op, ok)
	}
	if base, ok := op.Compound(); !ok || base != BinShl {
		t.Fatalf("Compound = %v %v", base, ok)
	}
	if BinEq.IsAssign() {
		t.Fatal("== is not an assignment")
	}
}

func TestArenaIsOneBased(t *testing.T) {
	a := NewArena[int](2)
	id := a.Allocate(7)
	if id != 1 || *a.Get(id) != 7 || a.Get(0) != nil || a.Len() != 1 {
		t.Fatalf("unexpected arena state id=%d len=%d", id, a.Len())
	}
}
