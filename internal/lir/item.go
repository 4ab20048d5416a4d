package lir

// Item is a module-level definition.
type Item interface {
	item()
	ItemName() string
}

type SelfKind uint8

const (
	SelfNone SelfKind = iota
	SelfRef
	SelfMut
)

type Param struct {
	Name string
	Type Type
}

// Func is a free function, associated function or method.
type Func struct {
	Name   string
	Pub    bool
	Unsafe bool
	Self   SelfKind
	Params []Param
	Result Type
	Body   *Block
	Attrs  []string
	// Origin is the C++ name the function was lowered from.
	Origin string
}

type Field struct {
	Name string
	Type Type
	Pub  bool
}

// Struct is a `#[repr(C)]` record. Key is the record identity used for
// ordering; Fields are in layout order.
type Struct struct {
	Name   string
	Key    string
	Fields []Field
	Origin string
}

// Impl is an inherent impl (Trait empty) or a trait impl.
type Impl struct {
	Target string
	Trait  string
	Assoc  []Alias
	Consts []*Const
	Funcs  []*Func
}

// Static is a `static` item. Vtables and global slots use it.
type Static struct {
	Name  string
	Type  Type
	Value Expr
	Pub   bool
}

type Const struct {
	Name  string
	Type  Type
	Value Expr
	Pub   bool
}

type Alias struct {
	Name string
	Type Type
	Pub  bool
}

// Note is a comment line standing in for a declaration that was skipped.
type Note struct {
	Text string
}

type Use struct {
	Path string
	Glob bool
}

// Module mirrors one namespace. The crate root has an empty name; anonymous
// namespaces are the only private modules.
type Module struct {
	Name  string
	Pub   bool
	Uses  []Use
	Items []Item
}

func (*Func) item()   {}
func (*Struct) item() {}
func (*Impl) item()   {}
func (*Static) item() {}
func (*Const) item()  {}
func (*Alias) item()  {}
func (*Note) item()   {}
func (*Module) item() {}

func (f *Func) ItemName() string   { return f.Name }
func (s *Struct) ItemName() string { return s.Name }
func (i *Impl) ItemName() string {
	if i.Trait != "" {
		return i.Trait + " for " + i.Target
	}
	return i.Target
}
func (s *Static) ItemName() string { return s.Name }
func (c *Const) ItemName() string  { return c.Name }
func (a *Alias) ItemName() string  { return a.Name }
func (*Note) ItemName() string     { return "" }
func (m *Module) ItemName() string { return m.Name }

// Add appends an item.
func (m *Module) Add(it Item) { m.Items = append(m.Items, it) }

// AddUse records a use declaration once.
func (m *Module) AddUse(u Use) {
	for _, have := range m.Uses {
		if have == u {
			return
		}
	}
	m.Uses = append(m.Uses, u)
}

// Child returns the named submodule, creating it at the end of Items.
func (m *Module) Child(name string) *Module {
	for _, it := range m.Items {
		if sub, ok := it.(*Module); ok && sub.Name == name {
			return sub
		}
	}
	sub := &Module{Name: name, Pub: true}
	m.Items = append(m.Items, sub)
	return sub
}

// Crate is the lowered translation unit.
type Crate struct {
	Unit string
	Root *Module
	// StaticInit lists the global accessors in declaration order.
	StaticInit []string
}

func NewCrate(unit string) *Crate {
	return &Crate{Unit: unit, Root: &Module{Pub: true}}
}

// Walk visits every module depth-first in item order.
func (m *Module) Walk(fn func(path []string, m *Module)) {
	m.walk(nil, fn)
}

func (m *Module) walk(path []string, fn func([]string, *Module)) {
	fn(path, m)
	for _, it := range m.Items {
		if sub, ok := it.(*Module); ok {
			sub.walk(append(append([]string(nil), path...), sub.Name), fn)
		}
	}
}
