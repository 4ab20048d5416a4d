package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"cxxlower/internal/diag"
	"cxxlower/internal/lower"
	"cxxlower/internal/source"
)

// Current schema version - increment when Payload format changes
const cacheSchemaVersion uint16 = 1

// Digest is the SHA-256 cache key of one unit.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// DiskCache keeps emitted Rust per unit digest. Thread-safe for concurrent
// access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// Payload is what a cache hit restores: the emitted text and the
// diagnostics the unit produced, with file paths in place of ids.
type Payload struct {
	Schema uint16

	Unit   string
	Output string

	Lowered   int
	Skipped   int
	Fallbacks int

	Diags []cachedDiag
}

type cachedSpan struct {
	Path string
	Line uint32
	Col  uint32
}

type cachedNote struct {
	Span cachedSpan
	Msg  string
}

type cachedDiag struct {
	Severity uint8
	Code     uint16
	Message  string
	Primary  cachedSpan
	Notes    []cachedNote
}

// OpenDiskCache opens the cache under dir, or under $XDG_CACHE_HOME/app
// (~/.cache/app) when dir is empty.
func OpenDiskCache(dir, app string) (*DiskCache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, app)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *DiskCache) pathFor(key Digest) string {
	hexKey := key.String()
	return filepath.Join(c.dir, "units", hexKey[:2], hexKey+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key Digest, payload *Payload) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	enc := msgpack.NewEncoder(f)
	if err = enc.Encode(payload); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// ErrCacheCorrupt marks an entry that exists but cannot be decoded.
var ErrCacheCorrupt = errors.New("corrupt cache entry")

// Get reads a payload. A missing entry or one from another schema is a miss.
func (c *DiskCache) Get(key Digest) (*Payload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	out := &Payload{}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return nil, false, fmt.Errorf("%w %s: %v", ErrCacheCorrupt, key, err)
	}
	if out.Schema != cacheSchemaVersion {
		return nil, false, nil
	}
	return out, true, nil
}

// DropAll invalidates the cache.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}

func toPayload(unit, output string, stats lower.Stats, bag *diag.Bag, fs *source.FileSet) *Payload {
	p := &Payload{
		Schema:    cacheSchemaVersion,
		Unit:      unit,
		Output:    output,
		Lowered:   stats.Lowered,
		Skipped:   stats.Skipped,
		Fallbacks: stats.Fallbacks,
	}
	span := func(sp source.Span) cachedSpan {
		cs := cachedSpan{Line: sp.Line, Col: sp.Col}
		if f := fs.Get(sp.File); f != nil {
			cs.Path = f.Path
		}
		return cs
	}
	for _, d := range bag.Items() {
		cd := cachedDiag{Severity: uint8(d.Severity), Code: uint16(d.Code), Message: d.Message, Primary: span(d.Primary)}
		for _, n := range d.Notes {
			cd.Notes = append(cd.Notes, cachedNote{Span: span(n.Span), Msg: n.Msg})
		}
		p.Diags = append(p.Diags, cd)
	}
	return p
}

// restore replays cached diagnostics into bag, interning their files into fs.
func (p *Payload) restore(bag *diag.Bag, fs *source.FileSet) lower.Stats {
	span := func(cs cachedSpan) source.Span {
		sp := source.Span{Line: cs.Line, Col: cs.Col}
		if cs.Path != "" {
			sp.File = fs.Intern(cs.Path, 0)
		}
		return sp
	}
	for _, cd := range p.Diags {
		d := diag.Diagnostic{Severity: diag.Severity(cd.Severity), Code: diag.Code(cd.Code), Message: cd.Message, Primary: span(cd.Primary)}
		for _, n := range cd.Notes {
			d.Notes = append(d.Notes, diag.Note{Span: span(n.Span), Msg: n.Msg})
		}
		bag.Add(d)
	}
	return lower.Stats{Lowered: p.Lowered, Skipped: p.Skipped, Fallbacks: p.Fallbacks}
}
