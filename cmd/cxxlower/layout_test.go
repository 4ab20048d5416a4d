package main

import (
	"strings"
	"testing"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/types"
)

func TestPrintLayouts(t *testing.T) {
	b := ast.NewBuilder("zoo")
	i32 := b.I32()
	animal, animalT := b.Record(ast.NoDeclID, "Animal")
	b.Virtual(animal, "legs", i32)
	dog, _ := b.Record(ast.NoDeclID, "Dog", types.Base{Type: animalT})
	b.Virtual(dog, "legs", i32)
	b.Record(ast.NoDeclID, "Loop")

	var out strings.Builder
	bag := diag.NewBag(10)
	if printLayouts(&out, b.T(), []string{"Dog"}, &diag.BagReporter{Bag: bag}) {
		t.Fatalf("failed: %v", bag.Items())
	}
	text := out.String()
	if !strings.HasPrefix(text, "Dog\n") || strings.Contains("\n"+text, "\nAnimal\n") {
		t.Errorf("filter by name:\n%s", text)
	}
	if !strings.Contains(text, "[0] legs() -> Dog") {
		t.Errorf("vtable missing:\n%s", text)
	}
}

func TestPrintLayoutsReportsBrokenRecords(t *testing.T) {
	b := ast.NewBuilder("loop")
	_, loopT := b.Record(ast.NoDeclID, "Loop")
	info, _ := b.T().RecordInfo(loopT)
	info.Bases = append(info.Bases, types.Base{Type: loopT})

	var out strings.Builder
	bag := diag.NewBag(10)
	if !printLayouts(&out, b.T(), nil, &diag.BagReporter{Bag: bag}) {
		t.Fatal("recursive base accepted")
	}
	if bag.Count(diag.LayInvariantViolation) != 1 || out.Len() != 0 {
		t.Errorf("diagnostics = %v, output = %q", bag.Items(), out.String())
	}
}
