// Package typemap maps resolved C++ types to Rust type descriptors. Mapping
// never fails: anything without a faithful counterpart degrades to an opaque
// byte blob and records a TypeMappingFallback diagnostic at the use site.
package typemap

import (
	"fmt"

	"cxxlower/internal/diag"
	"cxxlower/internal/lir"
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

// Records names user records. Records with virtual bases have two forms:
// the subobject struct that pointers and references designate, and the
// complete-object struct that holds the virtual bases.
type Records interface {
	RecordType(t types.TypeID, complete bool) lir.Type
}

// PassStyle is how a parameter is passed in the lowered signature.
type PassStyle uint8

const (
	ByValue PassStyle = iota
	ByRef
	ByPointer
)

func (p PassStyle) String() string {
	switch p {
	case ByRef:
		return "ref"
	case ByPointer:
		return "ptr"
	}
	return "value"
}

type Mapper struct {
	in        *types.Interner
	rep       diag.Reporter
	records   Records
	fallbacks int
}

func New(in *types.Interner, rep diag.Reporter, records Records) *Mapper {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	return &Mapper{in: in, rep: rep, records: records}
}

// SetRecords replaces the record namer; the lowerer swaps it per module so
// paths print relative to the module being emitted.
func (m *Mapper) SetRecords(r Records) { m.records = r }

// Fallbacks counts the blobs produced so far.
func (m *Mapper) Fallbacks() int { return m.fallbacks }

// Map returns the Rust type of a value of type id.
func (m *Mapper) Map(id types.TypeID, at source.Span) lir.Type {
	return m.mapType(id, at, true)
}

// Pointee maps the target of a pointer or reference: records use their
// subobject form.
func (m *Mapper) Pointee(id types.TypeID, at source.Span) lir.Type {
	return m.mapType(id, at, false)
}

// Param maps a parameter type and reports how it is passed.
func (m *Mapper) Param(id types.TypeID, at source.Span) (lir.Type, PassStyle) {
	switch m.in.Kind(id) {
	case types.KindReference:
		return m.Map(id, at), ByRef
	case types.KindPointer:
		return m.Map(id, at), ByPointer
	}
	return m.Map(id, at), ByValue
}

func (m *Mapper) mapType(id types.TypeID, at source.Span, complete bool) lir.Type {
	t, ok := m.in.Lookup(id)
	if !ok {
		return m.fallback(at, "<invalid>", 0)
	}
	switch t.Kind {
	case types.KindVoid:
		return lir.Unit
	case types.KindBool:
		return lir.Bool
	case types.KindInt:
		return intType(t)
	case types.KindFloat:
		if t.Width == types.Width32 {
			return lir.F32
		}
		return lir.F64
	case types.KindNullptr:
		return lir.VoidPtr
	case types.KindPointer:
		if m.in.Kind(t.Elem) == types.KindVoid {
			return lir.RawPtr(lir.Path("::core::ffi::c_void"), !t.Const)
		}
		if m.in.Kind(t.Elem) == types.KindFunction {
			return m.fallback(at, m.in.Format(id), 8)
		}
		return lir.RawPtr(m.mapType(t.Elem, at, false), !t.Const)
	case types.KindReference:
		mut := !t.Const || t.RValue
		return lir.Ref(m.mapType(t.Elem, at, false), mut)
	case types.KindArray:
		return lir.Array(m.mapType(t.Elem, at, true), t.Count)
	case types.KindRecord:
		info, _ := m.in.RecordInfo(id)
		if !info.Complete && complete {
			return m.fallback(at, info.QualName, info.Size)
		}
		if info.Union {
			return m.fallback(at, info.QualName, info.Size)
		}
		if m.records == nil {
			return lir.RecordPath(info.Name, info.Key())
		}
		return m.records.RecordType(id, complete)
	case types.KindEnum:
		info, _ := m.in.EnumInfo(id)
		if info.Underlying == types.NoTypeID {
			return lir.I32
		}
		return m.mapType(info.Underlying, at, true)
	case types.KindStd:
		return m.mapStd(id, at)
	case types.KindClosure:
		return lir.Infer
	}
	return m.fallback(at, m.in.Format(id), t.Size)
}

func intType(t types.Type) lir.Type {
	name := "i"
	if !t.Signed {
		name = "u"
	}
	return lir.Prim(fmt.Sprintf("%s%d", name, t.Width))
}

// std templates and their Rust owners; the bool marks heap indirection.
var stdTable = map[string]struct {
	path     string
	arity    int
	indirect bool
}{
	"unique_ptr":         {"Box", 1, true},
	"shared_ptr":         {"::std::sync::Arc", 1, true},
	"weak_ptr":           {"::std::sync::Weak", 1, true},
	"vector":             {"Vec", 1, true},
	"map":                {"::std::collections::BTreeMap", 2, true},
	"unordered_map":      {"::std::collections::HashMap", 2, true},
	"set":                {"::std::collections::BTreeSet", 1, true},
	"unordered_set":      {"::std::collections::HashSet", 1, true},
	"deque":              {"::std::collections::VecDeque", 1, true},
	"optional":           {"Option", 1, false},
	"string":             {"String", 0, true},
	"basic_string<char>": {"String", 0, true},
}

func (m *Mapper) mapStd(id types.TypeID, at source.Span) lir.Type {
	info, _ := m.in.StdInfo(id)
	if info.Template == "pair" && len(info.Args) == 2 {
		return lir.Tuple(m.Map(info.Args[0], at), m.Map(info.Args[1], at))
	}
	row, ok := stdTable[info.Template]
	if !ok || len(info.Args) < row.arity {
		return m.fallback(at, m.in.Format(id), 0)
	}
	args := make([]lir.Type, row.arity)
	for i := range args {
		args[i] = m.Map(info.Args[i], at)
	}
	if row.indirect {
		return lir.Owning(row.path, args...)
	}
	return lir.Path(row.path, args...)
}

// StdTemplate reports whether a std template has a mapping.
func StdTemplate(name string) bool {
	_, ok := stdTable[name]
	return ok || name == "pair"
}

func (m *Mapper) fallback(at source.Span, spelling string, size uint64) lir.Type {
	m.fallbacks++
	diag.ReportWarning(m.rep, diag.TypMappingFallback, at,
		fmt.Sprintf("no Rust mapping for `%s`; using opaque [u8; %d]", spelling, size)).Emit()
	return lir.Blob(size)
}
