// Package runtimeembed carries the source of the cxx_rt crate that
// generated Rust links against.
package runtimeembed

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed cxx_rt/Cargo.toml cxx_rt/src/*.rs
var crateFS embed.FS

// CrateFS exposes the crate rooted at its Cargo.toml.
func CrateFS() fs.FS {
	sub, err := fs.Sub(crateFS, "cxx_rt")
	if err != nil {
		panic(err)
	}
	return sub
}

// WriteCrate copies the crate into dir (dir/Cargo.toml, dir/src/lib.rs).
// Existing files are overwritten.
func WriteCrate(dir string) error {
	src := CrateFS()
	return fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		data, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("write runtime crate: %w", err)
		}
		return nil
	})
}
