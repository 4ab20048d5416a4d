package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/safecast"
)

// FileID identifies a file inside a FileSet. Zero is reserved for "unknown".
type FileID uint32

const NoFile FileID = 0

// FileFlags carries metadata about a file.
type FileFlags uint8

const (
	// FileVirtual: registered from memory (tests, stdin).
	FileVirtual FileFlags = 1 << iota
	// FileSystem: a system header; diagnostics may be filtered.
	FileSystem
)

// File is a path the front end referenced. Content is read lazily and only
// for diagnostics previews.
type File struct {
	ID      FileID
	Path    string
	Flags   FileFlags
	content []byte
	lines   [][]byte
	loaded  bool
}

// FileSet interns file paths of one translation unit.
type FileSet struct {
	files   []*File
	index   map[string]FileID
	baseDir string
}

func NewFileSet() *FileSet {
	return &FileSet{
		files: []*File{nil},
		index: make(map[string]FileID),
	}
}

// SetBaseDir sets the directory used for relative path rendering.
func (fs *FileSet) SetBaseDir(dir string) { fs.baseDir = dir }

func (fs *FileSet) BaseDir() string {
	if fs.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return fs.baseDir
}

// Intern returns the id of path, registering it on first use.
func (fs *FileSet) Intern(path string, flags FileFlags) FileID {
	p := normalizePath(path)
	if id, ok := fs.index[p]; ok {
		fs.files[id].Flags |= flags
		return id
	}
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("file set overflow: %w", err))
	}
	id := FileID(n)
	fs.files = append(fs.files, &File{ID: id, Path: p, Flags: flags})
	fs.index[p] = id
	return id
}

// AddVirtual registers in-memory content under name.
func (fs *FileSet) AddVirtual(name string, content []byte) FileID {
	id := fs.Intern(name, FileVirtual)
	f := fs.files[id]
	f.content = content
	f.lines = bytes.Split(content, []byte("\n"))
	f.loaded = true
	return id
}

// Get returns the file for id or nil.
func (fs *FileSet) Get(id FileID) *File {
	if id == NoFile || int(id) >= len(fs.files) {
		return nil
	}
	return fs.files[id]
}

// Lookup finds an already interned path.
func (fs *FileSet) Lookup(path string) (FileID, bool) {
	id, ok := fs.index[normalizePath(path)]
	return id, ok
}

// Len is the number of registered files.
func (fs *FileSet) Len() int { return len(fs.files) - 1 }

// Line returns the text of line n (1-based), reading the file on first call.
// Missing files or lines yield "".
func (f *File) Line(n uint32) string {
	if f == nil || n == 0 {
		return ""
	}
	if !f.loaded {
		f.loaded = true
		// #nosec G304 -- path comes from the front end output
		if data, err := os.ReadFile(f.Path); err == nil {
			data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
			data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
			f.content = data
			f.lines = bytes.Split(data, []byte("\n"))
		}
	}
	if int(n) > len(f.lines) {
		return ""
	}
	return string(f.lines[n-1])
}

// FormatPath renders the path in one of the modes "absolute", "relative",
// "basename" or "auto".
func (f *File) FormatPath(mode, baseDir string) string {
	if f == nil {
		return "<unknown>"
	}
	switch mode {
	case "absolute":
		if abs, err := filepath.Abs(f.Path); err == nil {
			return filepath.ToSlash(abs)
		}
	case "relative":
		if baseDir == "" {
			baseDir, _ = os.Getwd() //nolint:errcheck
		}
		if rel, err := filepath.Rel(baseDir, f.Path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	case "basename":
		return filepath.Base(f.Path)
	case "auto":
		if len(f.Path) >= 40 && filepath.IsAbs(f.Path) {
			return filepath.Base(f.Path)
		}
	}
	return f.Path
}

func normalizePath(p string) string {
	if p == "" {
		return p
	}
	return filepath.ToSlash(filepath.Clean(p))
}
