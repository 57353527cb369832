package design

import (
	"fmt"

	"github.com/hdltools/svls/internal/ast"
	"github.com/hdltools/svls/internal/syntax"
)

// NodeKind tags a hierarchy view node.
type NodeKind int

const (
	NodeInstance NodeKind = iota
	NodeInstanceArray
	NodeScope
	NodeScopeArray
	NodeParam
	NodePort
	NodeVar
	NodePackage
)

func (k NodeKind) String() string {
	switch k {
	case NodeInstance:
		return "instance"
	case NodeInstanceArray:
		return "instance-array"
	case NodeScope:
		return "scope"
	case NodeScopeArray:
		return "scope-array"
	case NodeParam:
		return "parameter"
	case NodePort:
		return "port"
	case NodeVar:
		return "var"
	case NodePackage:
		return "package"
	}
	return "unknown"
}

// ViewNode is one display-oriented entry of a scope's children.
type ViewNode struct {
	Kind NodeKind
	// Name is the symbol's name within its parent scope.
	Name string
	// DeclName describes the declaration: the definition name for
	// instances (with the range suffix for instance arrays), the data type
	// for values.
	DeclName string
	Path     string
	Rng      syntax.Range
	File     string
}

// ScopeChildren projects one level of a scope into display nodes. Generate
// blocks and arrays that elaborated to nothing are elided; an instance
// array becomes a single combined node carrying the array's range.
func ScopeChildren(sym ast.Symbol) []ViewNode {
	scope := ast.ScopeOf(sym)
	if scope == nil {
		return nil
	}
	var nodes []ViewNode
	for _, m := range scope.Members() {
		if node, ok := viewNode(m); ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func viewNode(m ast.Symbol) (ViewNode, bool) {
	base := ViewNode{
		Name: m.Name(),
		Path: ast.HierarchicalPath(m),
		Rng:  m.Loc(),
		File: m.File(),
	}
	switch s := m.(type) {
	case *ast.InstanceSymbol:
		base.Kind = NodeInstance
		base.DeclName = s.DefinitionName()
		return base, true
	case *ast.InstanceArraySymbol:
		base.Kind = NodeInstanceArray
		def := ""
		if len(s.Elements) > 0 {
			def = s.Elements[0].DefinitionName()
		}
		base.DeclName = fmt.Sprintf("%s[%d:%d]", def, s.Left, s.Right)
		return base, true
	case *ast.GenerateBlockSymbol:
		if len(s.Body.Members()) == 0 {
			return ViewNode{}, false
		}
		base.Kind = NodeScope
		base.DeclName = "generate"
		return base, true
	case *ast.GenerateArraySymbol:
		populated := false
		for _, e := range s.Entries {
			if len(e.Body.Members()) > 0 {
				populated = true
				break
			}
		}
		if !populated {
			return ViewNode{}, false
		}
		base.Kind = NodeScopeArray
		base.DeclName = "generate"
		return base, true
	case *ast.PackageSymbol:
		base.Kind = NodePackage
		base.DeclName = "package"
		return base, true
	case *ast.ValueSymbol:
		switch s.Kind() {
		case ast.KindParameter:
			base.Kind = NodeParam
		case ast.KindPort:
			base.Kind = NodePort
		default:
			base.Kind = NodeVar
		}
		base.DeclName = s.Type
		return base, true
	}
	return ViewNode{}, false
}
