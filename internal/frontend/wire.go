// Package frontend reads the interchange document a C++ front end produces
// and rebuilds it as an ast.Unit.
//
// The document is a plain tree: a type table that everything indexes into
// (1-based, 0 is "no type"), a file table, and the top-level declarations
// with their members, bodies and expressions nested inline. Declarations
// carry the front end's own ids; every reference names one of those ids.
// The same shape is accepted as JSON and as MessagePack.
package frontend

// WireVersion is the document version this package reads.
const WireVersion = 1

type Doc struct {
	Version int     `json:"version"`
	Unit    string  `json:"unit"`
	Files   []File  `json:"files"`
	Types   []Type  `json:"types"`
	Decls   []*Decl `json:"decls"`
}

type File struct {
	Path   string `json:"path"`
	System bool   `json:"system,omitempty"`
}

// Loc is a position; File indexes Doc.Files.
type Loc struct {
	File uint32 `json:"f"`
	Line uint32 `json:"l"`
	Col  uint32 `json:"c,omitempty"`
}

// Type kinds: void bool nullptr int float pointer reference array record
// enum std function closure unsupported.
type Type struct {
	Kind string `json:"k"`

	Width  int    `json:"width,omitempty"`
	Signed bool   `json:"signed,omitempty"`
	Const  bool   `json:"const,omitempty"`
	RValue bool   `json:"rvalue,omitempty"`
	Elem   int    `json:"elem,omitempty"`
	Count  uint64 `json:"count,omitempty"`

	Name     string `json:"name,omitempty"`
	QualName string `json:"qual,omitempty"`
	USR      string `json:"usr,omitempty"`
	Size     uint64 `json:"size,omitempty"`

	Underlying int  `json:"underlying,omitempty"`
	Scoped     bool `json:"scoped,omitempty"`

	Template string `json:"template,omitempty"`
	Args     []int  `json:"args,omitempty"`

	Result   int   `json:"result,omitempty"`
	Params   []int `json:"params,omitempty"`
	Variadic bool  `json:"variadic,omitempty"`

	Spelling string `json:"spelling,omitempty"`
}

// Decl kinds: namespace using_directive using alias record field function
// var param enum enumerator unsupported.
type Decl struct {
	ID     int    `json:"id"`
	Kind   string `json:"k"`
	Loc    Loc    `json:"loc"`
	Name   string `json:"name,omitempty"`
	Type   int    `json:"type,omitempty"`
	Access string `json:"access,omitempty"`

	Members []*Decl `json:"members,omitempty"`
	Inline  bool    `json:"inline,omitempty"`
	// using-directive namespace or using-declaration target
	Target int `json:"target,omitempty"`

	Tag      string `json:"tag,omitempty"`
	Complete bool   `json:"complete,omitempty"`
	Final    bool   `json:"final,omitempty"`
	Bases    []Base `json:"bases,omitempty"`
	Template string `json:"template,omitempty"`

	Init     *Expr `json:"init,omitempty"`
	BitWidth int   `json:"bits,omitempty"`
	Mutable  bool  `json:"mutable,omitempty"`

	Func *Func `json:"func,omitempty"`

	Storage   string `json:"storage,omitempty"`
	Const     bool   `json:"const,omitempty"`
	Constexpr bool   `json:"constexpr,omitempty"`
	Auto      bool   `json:"auto,omitempty"`

	Default *Expr `json:"default,omitempty"`

	Underlying int   `json:"underlying,omitempty"`
	Scoped     bool  `json:"scoped,omitempty"`
	Value      int64 `json:"value,omitempty"`

	What string `json:"what,omitempty"`
}

type Base struct {
	Type    int  `json:"type"`
	Virtual bool `json:"virtual,omitempty"`
}

// Func kinds: free method static ctor dtor operator conversion lambda.
type Func struct {
	Kind      string  `json:"k"`
	Params    []*Decl `json:"params,omitempty"`
	Result    int     `json:"result"`
	Body      *Stmt   `json:"body,omitempty"`
	Operator  string  `json:"op,omitempty"`
	Virtual   bool    `json:"virtual,omitempty"`
	Pure      bool    `json:"pure,omitempty"`
	Override  bool    `json:"override,omitempty"`
	Final     bool    `json:"final,omitempty"`
	Const     bool    `json:"const,omitempty"`
	Variadic  bool    `json:"variadic,omitempty"`
	Defaulted bool    `json:"defaulted,omitempty"`
	Deleted   bool    `json:"deleted,omitempty"`
	Inits     []Init  `json:"inits,omitempty"`
	Template  string  `json:"template,omitempty"`
}

// Init is a mem-initializer: Field for members, Base (a type) for bases.
type Init struct {
	Field      int     `json:"field,omitempty"`
	Base       int     `json:"base,omitempty"`
	Ctor       int     `json:"ctor,omitempty"`
	Args       []*Expr `json:"args,omitempty"`
	Delegating bool    `json:"delegating,omitempty"`
	Loc        Loc     `json:"loc"`
}

// Stmt kinds: compound decl expr if while do for range_for switch break
// continue return try null unsupported.
type Stmt struct {
	Kind string `json:"k"`
	Loc  Loc    `json:"loc"`

	Stmts []*Stmt `json:"stmts,omitempty"`
	Vars  []*Decl `json:"vars,omitempty"`
	Expr  *Expr   `json:"expr,omitempty"`

	Init *Stmt `json:"init,omitempty"`
	Cond *Expr `json:"cond,omitempty"`
	Inc  *Expr `json:"inc,omitempty"`
	Then *Stmt `json:"then,omitempty"`
	Else *Stmt `json:"else,omitempty"`
	Body *Stmt `json:"body,omitempty"`

	Var   *Decl `json:"var,omitempty"`
	Range *Expr `json:"range,omitempty"`

	Cases    []Case  `json:"cases,omitempty"`
	Handlers []Catch `json:"handlers,omitempty"`

	What string `json:"what,omitempty"`
}

type Case struct {
	Values  []*Expr `json:"values,omitempty"`
	Default bool    `json:"default,omitempty"`
	Body    []*Stmt `json:"body,omitempty"`
	Loc     Loc     `json:"loc"`
}

// Catch with a zero Type is catch(...).
type Catch struct {
	Var  *Decl `json:"var,omitempty"`
	Type int   `json:"type,omitempty"`
	Body *Stmt `json:"body"`
	Loc  Loc   `json:"loc"`
}

// Expr kinds: lit ref this member call opcall unary binary cond cast index
// new delete construct init_list lambda throw move std_member std_func
// unsupported. Operands go in X, Y, Z and Args by kind.
type Expr struct {
	Kind   string `json:"k"`
	Loc    Loc    `json:"loc"`
	Type   int    `json:"t,omitempty"`
	LValue bool   `json:"lv,omitempty"`

	Lit   string `json:"lit,omitempty"`
	Value string `json:"value,omitempty"`

	Decl      int  `json:"decl,omitempty"`
	Qualified bool `json:"qualified,omitempty"`
	Arrow     bool `json:"arrow,omitempty"`
	Implicit  bool `json:"implicit,omitempty"`
	Postfix   bool `json:"postfix,omitempty"`

	Op string `json:"op,omitempty"`

	X    *Expr   `json:"x,omitempty"`
	Y    *Expr   `json:"y,omitempty"`
	Z    *Expr   `json:"z,omitempty"`
	Args []*Expr `json:"args,omitempty"`

	Path       []int `json:"path,omitempty"`
	Conversion int   `json:"conversion,omitempty"`

	Alloc int   `json:"alloc,omitempty"`
	Array bool  `json:"array,omitempty"`
	Count *Expr `json:"count,omitempty"`
	Init  *Expr `json:"init,omitempty"`
	Elide bool  `json:"elide,omitempty"`

	Fn             *Decl     `json:"fn,omitempty"`
	Captures       []Capture `json:"captures,omitempty"`
	Mutable        bool      `json:"mutable,omitempty"`
	Generic        bool      `json:"generic,omitempty"`
	Instantiations [][]int   `json:"insts,omitempty"`

	Name  string `json:"name,omitempty"`
	TArgs []int  `json:"targs,omitempty"`

	What string `json:"what,omitempty"`
}

// Capture kinds: copy ref init this. Init captures declare their variable
// in VarDecl.
type Capture struct {
	Kind    string `json:"k"`
	Var     int    `json:"var,omitempty"`
	VarDecl *Decl  `json:"var_decl,omitempty"`
	Init    *Expr  `json:"init,omitempty"`
	Loc     Loc    `json:"loc"`
}
