package syntax

// DeclKind classifies a top-level declaration.
type DeclKind int

const (
	DeclModule DeclKind = iota
	DeclInterface
	DeclPackage
	DeclProgram
	DeclClass
)

func (k DeclKind) String() string {
	switch k {
	case DeclModule:
		return "module"
	case DeclInterface:
		return "interface"
	case DeclPackage:
		return "package"
	case DeclProgram:
		return "program"
	case DeclClass:
		return "class"
	}
	return "unknown"
}

// Direction of a port.
type Direction int

const (
	DirNone Direction = iota
	DirInput
	DirOutput
	DirInout
)

func (d Direction) String() string {
	switch d {
	case DirInput:
		return "input"
	case DirOutput:
		return "output"
	case DirInout:
		return "inout"
	}
	return ""
}

// ModuleDecl is a top-level module/interface/package/program declaration.
type ModuleDecl struct {
	Kind      DeclKind
	Name      string
	NameRng   Range
	Rng       Range
	Container string // enclosing module name for nested declarations
	Params    []*ParamDecl
	Ports     []*PortDecl
	Items     []Item
}

// ParamDecl declares a parameter or localparam.
type ParamDecl struct {
	Local   bool
	Name    string
	NameRng Range
	Type    string
	Default Expr
}

// PortDecl declares one ANSI-style port.
type PortDecl struct {
	Dir     Direction
	Name    string
	NameRng Range
	Type    string
	Dim     *Dimension
}

// Dimension is a packed or unpacked range like [3:0].
type Dimension struct {
	Left  Expr
	Right Expr
	Rng   Range
}

// Item is a module body item.
type Item interface{ itemNode() }

// DeclName is one declarator in a net/var declaration list.
type DeclName struct {
	Name    string
	NameRng Range
	Dims    []*Dimension // unpacked dimensions
	Init    Expr
}

// NetDecl declares nets or variables, e.g. `logic [3:0] a, b;`.
// Direction is non-None for non-ANSI port declarations in the body.
type NetDecl struct {
	NetType   string // wire, reg, logic, bit, int, ...
	Direction Direction
	Dim       *Dimension
	Names     []DeclName
	Rng       Range
}

// ParamItem is a body-level parameter/localparam declaration.
type ParamItem struct {
	Decl *ParamDecl
	Rng  Range
}

// GenvarDecl declares generate loop variables.
type GenvarDecl struct {
	Names []string
	Rng   Range
}

// Assign is a single lhs = rhs pair.
type Assign struct {
	LHS Expr
	RHS Expr
	Rng Range
}

// ContinuousAssign is an `assign` item, possibly with multiple assignments.
type ContinuousAssign struct {
	Assigns []*Assign
	Rng     Range
}

// ProcKind classifies a procedural block.
type ProcKind int

const (
	ProcAlways ProcKind = iota
	ProcAlwaysFF
	ProcAlwaysComb
	ProcAlwaysLatch
	ProcInitial
	ProcFinal
)

func (k ProcKind) String() string {
	switch k {
	case ProcAlways:
		return "always"
	case ProcAlwaysFF:
		return "always_ff"
	case ProcAlwaysComb:
		return "always_comb"
	case ProcAlwaysLatch:
		return "always_latch"
	case ProcInitial:
		return "initial"
	case ProcFinal:
		return "final"
	}
	return "always"
}

// ProceduralBlock is an always/initial/final item.
type ProceduralBlock struct {
	Kind ProcKind
	Body Stmt
	Rng  Range
}

// NamedArg is a .name(expr) connection or parameter assignment.
// Name is empty for ordered connections.
type NamedArg struct {
	Name    string
	NameRng Range
	Expr    Expr // nil for .name() or implicit .name
}

// InstanceDef is one instance in an instantiation item.
type InstanceDef struct {
	Name    string
	NameRng Range
	Dim     *Dimension // non-nil for instance arrays
	Conns   []NamedArg
}

// Instantiation is a module/interface instantiation item.
type Instantiation struct {
	Module    string
	ModuleRng Range
	Params    []NamedArg
	Instances []*InstanceDef
	Rng       Range
}

// GenIf is a generate if/else.
type GenIf struct {
	Cond      Expr
	Then      []Item
	ThenLabel string
	Else      []Item
	ElseLabel string
	Rng       Range
}

// GenFor is a generate for loop.
type GenFor struct {
	Var   string
	Init  Expr
	Cond  Expr
	Step  Expr // increment expression applied to Var
	Label string
	Body  []Item
	Rng   Range
}

// GenBlock is a begin/end generate block outside if/for, or a bare
// generate region. Regions are transparent: they add no scope level.
type GenBlock struct {
	Label  string
	Region bool // generate ... endgenerate wrapper
	Items  []Item
	Rng    Range
}

func (*NetDecl) itemNode()          {}
func (*ParamItem) itemNode()        {}
func (*GenvarDecl) itemNode()       {}
func (*ContinuousAssign) itemNode() {}
func (*ProceduralBlock) itemNode()  {}
func (*Instantiation) itemNode()    {}
func (*GenIf) itemNode()            {}
func (*GenFor) itemNode()           {}
func (*GenBlock) itemNode()         {}
func (*ModuleDecl) itemNode()       {}

// Statements

type Stmt interface{ stmtNode() }

type BlockStmt struct {
	Label string
	Stmts []Stmt
	Rng   Range
}

type AssignStmt struct {
	LHS         Expr
	RHS         Expr
	NonBlocking bool
	Rng         Range
}

type IfStmt struct {
	Cond Expr
	Then Stmt
	Else Stmt // may be nil
	Rng  Range
}

type CaseItem struct {
	Exprs []Expr // empty for default
	Body  Stmt
}

type CaseStmt struct {
	Expr    Expr
	Items   []CaseItem
	Default Stmt // may be nil
	Rng     Range
}

type ForStmt struct {
	Init Stmt
	Cond Expr
	Step Stmt
	Body Stmt
	Rng  Range
}

type ExprStmt struct {
	X   Expr
	Rng Range
}

type NullStmt struct {
	Rng Range
}

func (*BlockStmt) stmtNode()  {}
func (*AssignStmt) stmtNode() {}
func (*IfStmt) stmtNode()     {}
func (*CaseStmt) stmtNode()   {}
func (*ForStmt) stmtNode()    {}
func (*ExprStmt) stmtNode()   {}
func (*NullStmt) stmtNode()   {}

// Expressions

type Expr interface {
	exprNode()
	Range() Range
}

type Ident struct {
	Name string
	Rng  Range
}

type Number struct {
	Raw   string
	Value int64
	Known bool // Value is meaningful
	Rng   Range
}

type StringLit struct {
	Raw string
	Rng Range
}

type Unary struct {
	Op      string
	Operand Expr
	Rng     Range
}

type Binary struct {
	Op   string
	L, R Expr
	Rng  Range
}

type Ternary struct {
	Cond, T, F Expr
	Rng        Range
}

// Select is a single index select: base[idx].
type Select struct {
	Base  Expr
	Index Expr
	Rng   Range
}

// RangeSelect is a part select: base[l:r] (also +: and -: forms).
type RangeSelect struct {
	Base  Expr
	Left  Expr
	Right Expr
	Op    string // ":", "+:", "-:"
	Rng   Range
}

// Member is a dotted access: base.name.
type Member struct {
	Base Expr
	Name string
	Rng  Range
}

type Concat struct {
	Elems []Expr
	Rng   Range
}

// Repl is a replication: {count{inner}}.
type Repl struct {
	Count Expr
	Inner Expr
	Rng   Range
}

// Call is a function or system function call.
type Call struct {
	Name string
	Args []Expr
	Rng  Range
}

func (*Ident) exprNode()       {}
func (*Number) exprNode()      {}
func (*StringLit) exprNode()   {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}
func (*Ternary) exprNode()     {}
func (*Select) exprNode()      {}
func (*RangeSelect) exprNode() {}
func (*Member) exprNode()      {}
func (*Concat) exprNode()      {}
func (*Repl) exprNode()        {}
func (*Call) exprNode()        {}

func (e *Ident) Range() Range       { return e.Rng }
func (e *Number) Range() Range      { return e.Rng }
func (e *StringLit) Range() Range   { return e.Rng }
func (e *Unary) Range() Range       { return e.Rng }
func (e *Binary) Range() Range      { return e.Rng }
func (e *Ternary) Range() Range     { return e.Rng }
func (e *Select) Range() Range      { return e.Rng }
func (e *RangeSelect) Range() Range { return e.Rng }
func (e *Member) Range() Range      { return e.Rng }
func (e *Concat) Range() Range      { return e.Rng }
func (e *Repl) Range() Range        { return e.Rng }
func (e *Call) Range() Range        { return e.Rng }
