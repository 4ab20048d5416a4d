package frontend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/tools/txtar"

	"cxxlower/internal/ast"
	"cxxlower/internal/diag"
	"cxxlower/internal/emit"
	"cxxlower/internal/lower"
	"cxxlower/internal/testkit"
)

// fixture writes the files of testdata/name.txtar into a temp dir.
func fixture(t *testing.T, name string) string {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join("testdata", name+".txtar"))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	for _, f := range ar.Files {
		if err := os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func rootNames(u *ast.Unit) []string {
	var out []string
	for _, id := range u.Roots {
		out = append(out, u.Decl(id).Name)
	}
	return out
}

func load(t *testing.T, path string, opts Options) (*ast.Unit, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(100)
	u, err := Load(context.Background(), path, opts, &diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return u, bag
}

func TestLoadLowersFactorial(t *testing.T) {
	dir := fixture(t, "factorial")
	u, bag := load(t, filepath.Join(dir, "factorial.json"), Options{})
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if diff := cmp.Diff([]string{"junk", "factorial", "main"}, rootNames(u)); diff != "" {
		t.Fatalf("roots (-want +got):\n%s", diff)
	}
	if err := testkit.CheckUnitInvariants(u); err != nil {
		t.Fatal(err)
	}
	crate, _, err := lower.Lower(context.Background(), u, &diag.BagReporter{Bag: bag}, lower.Options{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := emit.Emit(crate, emit.Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"pub fn factorial(mut n: i32) -> i32", "if n <= 1", "factorial(n - 1)", "factorial(5)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestUnitNameFallsBackToFileName(t *testing.T) {
	dir := fixture(t, "factorial")
	u, _ := load(t, filepath.Join(dir, "dangling.json"), Options{})
	if u.Name != "dangling" {
		t.Errorf("unit name = %q, want dangling", u.Name)
	}
}

func TestMsgpackMatchesJSON(t *testing.T) {
	dir := fixture(t, "factorial")
	data, err := os.ReadFile(filepath.Join(dir, "factorial.json"))
	if err != nil {
		t.Fatal(err)
	}
	want, err := Decode(data, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	packed, err := Encode(want, FormatMsgpack)
	if err != nil {
		t.Fatal(err)
	}
	if len(packed) >= len(data) {
		t.Errorf("msgpack form is %d bytes, json %d", len(packed), len(data))
	}
	got, err := Decode(packed, FormatMsgpack)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("msgpack round trip (-json +msgpack):\n%s", diff)
	}
}

func TestDecodeRejectsOtherVersions(t *testing.T) {
	_, err := Decode([]byte(`{"version": 2, "decls": []}`), FormatJSON)
	if !errors.Is(err, ErrVersion) {
		t.Fatalf("err = %v, want ErrVersion", err)
	}
}

func TestExcludedHeaderIsDropped(t *testing.T) {
	dir := fixture(t, "factorial")
	ex, err := NewExcluder([]string{"vendor/**"})
	if err != nil {
		t.Fatal(err)
	}
	u, bag := load(t, filepath.Join(dir, "factorial.json"), Options{Exclude: ex})
	if diff := cmp.Diff([]string{"factorial", "main"}, rootNames(u)); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}
	if n := bag.Count(diag.InpExcluded); n != 1 {
		t.Errorf("InpExcluded reported %d times, want 1", n)
	}
}

func TestExcluderPatterns(t *testing.T) {
	ex, err := NewExcluder([]string{"third_party", "**/*_test.h", " "})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		path string
		want bool
	}{
		{"third_party", true},
		{"third_party/zlib/zlib.h", true},
		{"third_party_extra/a.h", false},
		{"src/util/str_test.h", true},
		{"src/util/str.h", false},
		{"./third_party/x.h", true},
	}
	for _, tt := range tests {
		if got := ex.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	var none *Excluder
	if none.Match("anything") {
		t.Error("nil excluder matched")
	}
}

func TestFilterDropsDeclarations(t *testing.T) {
	dir := fixture(t, "factorial")
	f, err := NewFilter(`.decls |= map(select(.name != "junk"))`)
	if err != nil {
		t.Fatal(err)
	}
	u, bag := load(t, filepath.Join(dir, "factorial.json"), Options{Filter: f})
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if diff := cmp.Diff([]string{"factorial", "main"}, rootNames(u)); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}
}

func TestFilterMustYieldOneDocument(t *testing.T) {
	dir := fixture(t, "factorial")
	f, err := NewFilter(`., .`)
	if err != nil {
		t.Fatal(err)
	}
	bag := diag.NewBag(10)
	_, err = Load(context.Background(), filepath.Join(dir, "factorial.json"), Options{Filter: f}, &diag.BagReporter{Bag: bag})
	if !errors.Is(err, errFilterArity) {
		t.Fatalf("err = %v, want errFilterArity", err)
	}
	if bag.Count(diag.InpFilterError) != 1 {
		t.Errorf("diagnostics = %v", bag.Items())
	}
}

func TestBadReferenceLosesOnlyItsDeclaration(t *testing.T) {
	dir := fixture(t, "factorial")
	u, bag := load(t, filepath.Join(dir, "dangling.json"), Options{})
	if bag.Count(diag.InpBadReference) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
	crate, stats, err := lower.Lower(context.Background(), u, &diag.BagReporter{Bag: bag}, lower.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Lowered != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want one lowered and one skipped", stats)
	}
	out, err := emit.Emit(crate, emit.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "pub fn kept() -> i32") {
		t.Errorf("kept() missing:\n%s", out)
	}
}

func TestLoadReportsInputFailures(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		code diag.Code
	}{
		{"missing", filepath.Join(dir, "absent.json"), diag.InpReadFailed},
		{"extension", filepath.Join(dir, "unit.txt"), diag.InpReadFailed},
		{"no front end", filepath.Join(dir, "unit.cpp"), diag.InpFrontendError},
		{"garbage", filepath.Join(dir, "bad.json"), diag.InpDecodeFailed},
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := diag.NewBag(10)
			u, err := Load(context.Background(), tt.path, Options{}, &diag.BagReporter{Bag: bag})
			if err == nil || u != nil {
				t.Fatalf("Load succeeded")
			}
			if bag.Count(tt.code) != 1 {
				t.Errorf("diagnostics = %v, want one %v", bag.Items(), tt.code)
			}
		})
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"a.json": FormatJSON, "a.astpack": FormatMsgpack, "b.MSGPACK": FormatMsgpack,
		"c.cpp": FormatSource, "c.cc": FormatSource, "d.h": FormatUnknown,
	} {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%q) = %v, want %v", path, got, want)
		}
	}
}
