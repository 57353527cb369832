// Package design orchestrates elaborated compilations: the compilation
// lifecycle state machine, the per-refresh Analysis with its instance and
// reference indexes, driver/load cone tracing and the hierarchy view
// projection.
package design

import (
	"sort"

	"github.com/hdltools/svls/internal/ast"
	"github.com/hdltools/svls/internal/syntax"
)

// InstanceRef is one elaborated instance recorded under its definition
// name.
type InstanceRef struct {
	Path string
	Sym  *ast.InstanceSymbol
}

// InstanceIndex maps definition names to their elaborated instances. Built
// once per refresh by a single top-down visit; never patched incrementally.
type InstanceIndex struct {
	byDef    map[string][]InstanceRef
	defFiles map[string]string
}

// BuildInstanceIndex walks the instance tree of a compilation once.
func BuildInstanceIndex(comp *ast.Compilation) *InstanceIndex {
	idx := &InstanceIndex{
		byDef:    make(map[string][]InstanceRef),
		defFiles: make(map[string]string),
	}
	for _, name := range comp.DefinitionNames() {
		if _, file, ok := comp.Definition(name); ok {
			idx.defFiles[name] = file
		}
	}
	comp.VisitDesign(func(sym ast.Symbol) bool {
		if inst, ok := sym.(*ast.InstanceSymbol); ok {
			def := inst.DefinitionName()
			idx.byDef[def] = append(idx.byDef[def], InstanceRef{
				Path: ast.HierarchicalPath(inst),
				Sym:  inst,
			})
		}
		return true
	})
	return idx
}

// Instances returns the instances of one definition in visit order.
func (x *InstanceIndex) Instances(defName string) []InstanceRef {
	return x.byDef[defName]
}

// Definitions returns the instantiated definition names in sorted order.
func (x *InstanceIndex) Definitions() []string {
	names := make([]string, 0, len(x.byDef))
	for n := range x.byDef {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ModuleScope summarizes one definition for hierarchy browsing: its
// instance count, and the single instance path when unique.
type ModuleScope struct {
	DeclName  string
	DeclFile  string
	DeclRng   syntax.Range
	InstCount int
	// Path is set only when InstCount is 1. Callers drill down through
	// Instances for multi-instance definitions.
	Path string
}

// Scopes summarizes every definition present in the index.
func (x *InstanceIndex) Scopes() []ModuleScope {
	var scopes []ModuleScope
	for _, def := range x.Definitions() {
		refs := x.byDef[def]
		sc := ModuleScope{DeclName: def, InstCount: len(refs), DeclFile: x.defFiles[def]}
		if first := refs[0].Sym; first.Def != nil {
			sc.DeclRng = first.Def.NameRng
		}
		if len(refs) == 1 {
			sc.Path = refs[0].Path
		}
		scopes = append(scopes, sc)
	}
	return scopes
}
