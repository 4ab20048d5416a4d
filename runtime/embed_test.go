package runtimeembed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteCrate(t *testing.T) {
	dir := t.TempDir()
	if err := WriteCrate(dir); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"Cargo.toml", "src/lib.rs"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("%s: %v", f, err)
		}
	}
}

// Every path generated code calls must exist in the crate.
func TestCrateExportsRuntimeCalls(t *testing.T) {
	data, err := os.ReadFile("cxx_rt/src/lib.rs")
	if err != nil {
		t.Fatal(err)
	}
	lib := string(data)
	for _, item := range []string{
		"pub fn new<", "pub unsafe fn delete<", "pub fn new_array<", "pub unsafe fn delete_array<",
		"pub fn adjust(", "macro_rules! vslot", "pub struct VTable", "pub const fn new(slots",
		"pub struct VPtr", "pub unsafe fn install(", "pub unsafe fn vcall<", "pub fn pure_virtual(",
		"pub struct GlobalSlot<", "pub fn get_or_init(", "pub fn throw<", "pub fn rethrow(",
		"pub fn try_catch(", "pub fn string_from<", "pub fn c_str(",
	} {
		if !strings.Contains(lib, item) {
			t.Errorf("lib.rs lacks %q", item)
		}
	}
}
