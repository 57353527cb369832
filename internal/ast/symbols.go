package ast

import (
	"fmt"
	"strings"

	"github.com/hdltools/svls/internal/syntax"
)

// SymbolKind classifies elaborated symbols.
type SymbolKind int

const (
	KindInstance SymbolKind = iota
	KindInstanceArray
	KindPackage
	KindGenerateBlock
	KindGenerateArray
	KindNet
	KindVariable
	KindPort
	KindParameter
	KindContinuousAssign
	KindProceduralBlock
)

func (k SymbolKind) String() string {
	switch k {
	case KindInstance:
		return "instance"
	case KindInstanceArray:
		return "instance array"
	case KindPackage:
		return "package"
	case KindGenerateBlock:
		return "generate block"
	case KindGenerateArray:
		return "generate array"
	case KindNet:
		return "net"
	case KindVariable:
		return "variable"
	case KindPort:
		return "port"
	case KindParameter:
		return "parameter"
	case KindContinuousAssign:
		return "continuous assign"
	case KindProceduralBlock:
		return "procedural block"
	}
	return "unknown"
}

// Symbol is a node in the elaborated design graph.
type Symbol interface {
	Name() string
	Kind() SymbolKind
	Parent() Symbol
	Loc() syntax.Range
	File() string
}

type symbolBase struct {
	name   string
	kind   SymbolKind
	parent Symbol
	loc    syntax.Range
	file   string
}

func (s *symbolBase) Name() string      { return s.name }
func (s *symbolBase) Kind() SymbolKind  { return s.kind }
func (s *symbolBase) Parent() Symbol    { return s.parent }
func (s *symbolBase) Loc() syntax.Range { return s.loc }
func (s *symbolBase) File() string      { return s.file }

// Scope is a name table for one level of the design hierarchy. Lookup walks
// outward through parent scopes.
type Scope struct {
	Owner  Symbol
	parent *Scope
	names  map[string]Symbol
	order  []Symbol
}

// NewScope creates a scope owned by the given symbol.
func NewScope(owner Symbol, parent *Scope) *Scope {
	return &Scope{Owner: owner, parent: parent, names: make(map[string]Symbol)}
}

// Insert adds a symbol. Unnamed symbols (assigns, blocks) keep ordering but
// are not name-addressable.
func (s *Scope) Insert(sym Symbol) {
	s.order = append(s.order, sym)
	if name := sym.Name(); name != "" {
		if _, exists := s.names[name]; !exists {
			s.names[name] = sym
		}
	}
}

// Member finds a direct member by name without walking outward.
func (s *Scope) Member(name string) Symbol {
	return s.names[name]
}

// Lookup resolves a name in this scope or any enclosing scope.
func (s *Scope) Lookup(name string) Symbol {
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.names[name]; ok {
			return sym
		}
	}
	return nil
}

// Members returns the scope's symbols in declaration order.
func (s *Scope) Members() []Symbol {
	return s.order
}

// ValueSymbol is a net, variable, port or parameter.
type ValueSymbol struct {
	symbolBase
	Type      string
	Direction syntax.Direction
	// ParamValue is set for parameters whose value evaluated to a constant.
	ParamValue *int64
}

// IsPort reports whether the value is a port of its enclosing instance.
func (v *ValueSymbol) IsPort() bool { return v.Direction != syntax.DirNone }

// PortConnection joins a child instance port to an expression bound in the
// parent scope.
type PortConnection struct {
	Port *ValueSymbol
	Expr Expr // nil for unconnected ports
}

// InstanceSymbol is one elaborated module or interface instance.
type InstanceSymbol struct {
	symbolBase
	Def         *syntax.ModuleDecl
	Body        *Scope
	Connections []*PortConnection
}

// DefinitionName returns the instantiated module's declared name.
func (i *InstanceSymbol) DefinitionName() string {
	if i.Def == nil {
		return ""
	}
	return i.Def.Name
}

// InstanceArraySymbol groups the elements of a ranged instantiation.
type InstanceArraySymbol struct {
	symbolBase
	Left, Right int
	Elements    []*InstanceSymbol
}

// GenerateBlockSymbol is one elaborated generate block.
type GenerateBlockSymbol struct {
	symbolBase
	Body  *Scope
	Index int // element index within a generate array, -1 otherwise
}

// GenerateArraySymbol groups the per-iteration blocks of a generate for.
type GenerateArraySymbol struct {
	symbolBase
	Entries []*GenerateBlockSymbol
}

// PackageSymbol is an elaborated package.
type PackageSymbol struct {
	symbolBase
	Body *Scope
}

// ContinuousAssignSymbol is one `assign` item with its bound assignments.
type ContinuousAssignSymbol struct {
	symbolBase
	Assigns []*Assignment
}

// ProceduralBlockSymbol is one always/initial/final block.
type ProceduralBlockSymbol struct {
	symbolBase
	ProcKind syntax.ProcKind
	Body     Stmt
}

// HierarchicalPath renders the dotted path of a symbol from the design root.
// Array wrapper symbols do not contribute a segment; their elements carry
// the bracketed index in their own names.
func HierarchicalPath(sym Symbol) string {
	var parts []string
	for cur := sym; cur != nil; cur = cur.Parent() {
		switch cur.(type) {
		case *InstanceArraySymbol, *GenerateArraySymbol:
			continue
		}
		if cur.Name() == "" {
			continue
		}
		parts = append(parts, cur.Name())
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return joinPath(parts)
}

// joinPath joins segments with dots, letting bracketed element names attach
// to their base segment (a[0] rather than a.[0]).
func joinPath(parts []string) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 && !strings.HasPrefix(p, "[") {
			sb.WriteByte('.')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

// ScopeOf returns the member scope of a symbol, or nil when it has none.
func ScopeOf(sym Symbol) *Scope {
	switch s := sym.(type) {
	case *InstanceSymbol:
		return s.Body
	case *GenerateBlockSymbol:
		return s.Body
	case *PackageSymbol:
		return s.Body
	}
	return nil
}

// elementName renders the display name of an array element.
func elementName(base string, idx int) string {
	return fmt.Sprintf("%s[%d]", base, idx)
}
