package syntax

import (
	"os"
)

// Tree is the shallow, file-local parse of one source file. It carries the
// metadata the workspace index needs (top-level declarations and macro
// definitions) plus parse diagnostics.
type Tree struct {
	File   string
	Source string
	Decls  []*ModuleDecl
	Macros []*MacroDef
	Diags  []Diagnostic
}

// ParseText parses source text into a shallow tree. It never returns an
// error: parse failures are reported through Diags.
func ParseText(file, text string) *Tree {
	lx := newLexer(file, text)
	toks := lx.lexAll()
	ps := newParser(file, toks)
	decls := ps.parseFile()

	diags := make([]Diagnostic, 0, len(lx.diags)+len(ps.diags))
	for _, d := range lx.diags {
		d.File = file
		diags = append(diags, d)
	}
	diags = append(diags, ps.diags...)

	return &Tree{
		File:   file,
		Source: text,
		Decls:  decls,
		Macros: lx.defs,
		Diags:  diags,
	}
}

// ParseFile reads and parses a file from disk.
func ParseFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseText(path, string(data)), nil
}

// TopDecls returns all module/interface/package/program/class declarations
// in the tree, including ones nested inside other declarations.
func (t *Tree) TopDecls() []*ModuleDecl {
	var out []*ModuleDecl
	var walk func(decls []*ModuleDecl, container string)
	walk = func(decls []*ModuleDecl, container string) {
		for _, d := range decls {
			if d.Container == "" {
				d.Container = container
			}
			out = append(out, d)
			var nested []*ModuleDecl
			for _, item := range d.Items {
				if md, ok := item.(*ModuleDecl); ok {
					nested = append(nested, md)
				}
			}
			walk(nested, d.Name)
		}
	}
	walk(t.Decls, "")
	return out
}

// FindDecl returns the first declaration with the given name, or nil.
func (t *Tree) FindDecl(name string) *ModuleDecl {
	for _, d := range t.TopDecls() {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// DeclAt returns the innermost declaration whose range contains pos, or nil.
func (t *Tree) DeclAt(pos Pos) *ModuleDecl {
	var found *ModuleDecl
	for _, d := range t.TopDecls() {
		if d.Rng.Contains(pos) {
			found = d
		}
	}
	return found
}

// HasErrors reports whether the tree has error-severity diagnostics.
func (t *Tree) HasErrors() bool {
	for _, d := range t.Diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// InstantiatedModules returns the module names instantiated anywhere in a
// declaration, including inside generate constructs. Used to chase a
// design's file dependency closure through the workspace index.
func InstantiatedModules(decl *ModuleDecl) []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, item := range items {
			switch x := item.(type) {
			case *Instantiation:
				if !seen[x.Module] {
					seen[x.Module] = true
					names = append(names, x.Module)
				}
			case *GenIf:
				walk(x.Then)
				walk(x.Else)
			case *GenFor:
				walk(x.Body)
			case *GenBlock:
				walk(x.Items)
			case *ModuleDecl:
				walk(x.Items)
			}
		}
	}
	walk(decl.Items)
	return names
}
