package ast

import (
	"fmt"
	"sort"

	svlerr "github.com/hdltools/svls/internal/errors"
	"github.com/hdltools/svls/internal/syntax"
)

const (
	maxInstanceDepth = 64
	maxGenerateIters = 4096
)

// Compilation is the elaborated design: the top instances, the packages and
// the diagnostics produced along the way.
type Compilation struct {
	Tops     []*InstanceSymbol
	Packages []*PackageSymbol
	Diags    []syntax.Diagnostic

	// Root holds packages and top instances for name resolution.
	Root *Scope

	defs map[string]*definition
}

type definition struct {
	decl *syntax.ModuleDecl
	file string
}

// Definition returns the syntax declaration a module name resolves to.
func (c *Compilation) Definition(name string) (*syntax.ModuleDecl, string, bool) {
	d, ok := c.defs[name]
	if !ok {
		return nil, "", false
	}
	return d.decl, d.file, true
}

// DefinitionNames returns all known module/interface names in sorted order.
func (c *Compilation) DefinitionNames() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Compilation) warnf(file string, rng syntax.Range, format string, args ...any) {
	c.Diags = append(c.Diags, syntax.Diagnostic{
		Rng:      rng,
		Severity: syntax.SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
		File:     file,
	})
}

type elaborator struct {
	comp *Compilation
}

// Elaborate builds the design hierarchy from the given parse trees. When top
// is empty, every module not instantiated elsewhere becomes a top instance;
// otherwise top must name a known module.
func Elaborate(trees []*syntax.Tree, top string) (*Compilation, error) {
	comp := &Compilation{defs: make(map[string]*definition)}
	comp.Root = NewScope(nil, nil)
	el := &elaborator{comp: comp}

	instantiated := make(map[string]bool)
	var packages []*syntax.ModuleDecl
	pkgFiles := make(map[*syntax.ModuleDecl]string)
	for _, tree := range trees {
		for _, decl := range tree.TopDecls() {
			if decl.Kind == syntax.DeclPackage {
				packages = append(packages, decl)
				pkgFiles[decl] = tree.File
				continue
			}
			if prev, dup := comp.defs[decl.Name]; dup {
				comp.warnf(tree.File, decl.NameRng,
					"%s %q already declared in %s", decl.Kind, decl.Name, prev.file)
				continue
			}
			comp.defs[decl.Name] = &definition{decl: decl, file: tree.File}
			collectInstantiated(decl.Items, instantiated)
		}
	}

	for _, decl := range packages {
		el.elabPackage(decl, pkgFiles[decl])
	}

	var topNames []string
	if top != "" {
		if _, ok := comp.defs[top]; !ok {
			return nil, svlerr.NewNotFoundError("module", top)
		}
		topNames = []string{top}
	} else {
		for name := range comp.defs {
			if !instantiated[name] {
				topNames = append(topNames, name)
			}
		}
		sort.Strings(topNames)
	}

	for _, name := range topNames {
		def := comp.defs[name]
		inst := el.instantiate(def, name, nil, nil, 0)
		comp.Tops = append(comp.Tops, inst)
		comp.Root.Insert(inst)
	}
	return comp, nil
}

// collectInstantiated records every module name used in an instantiation,
// recursing through generate constructs.
func collectInstantiated(items []syntax.Item, out map[string]bool) {
	for _, item := range items {
		switch x := item.(type) {
		case *syntax.Instantiation:
			out[x.Module] = true
		case *syntax.GenIf:
			collectInstantiated(x.Then, out)
			collectInstantiated(x.Else, out)
		case *syntax.GenFor:
			collectInstantiated(x.Body, out)
		case *syntax.GenBlock:
			collectInstantiated(x.Items, out)
		case *syntax.ModuleDecl:
			collectInstantiated(x.Items, out)
		}
	}
}

func (el *elaborator) elabPackage(decl *syntax.ModuleDecl, file string) {
	pkg := &PackageSymbol{symbolBase: symbolBase{
		name: decl.Name,
		kind: KindPackage,
		loc:  decl.NameRng,
		file: file,
	}}
	pkg.Body = NewScope(pkg, el.comp.Root)
	for _, pd := range decl.Params {
		el.declareParam(pkg.Body, pd, file, nil)
	}
	ctx := &elabCtx{scope: pkg.Body, owner: pkg, file: file, depth: 0, genblk: new(int)}
	el.elabItems(decl.Items, ctx)
	el.comp.Packages = append(el.comp.Packages, pkg)
	el.comp.Root.Insert(pkg)
}

// elabCtx carries the state of elaborating one scope's items.
type elabCtx struct {
	scope  *Scope
	owner  Symbol
	file   string
	depth  int
	genblk *int // unnamed generate block counter, shared per instance body
}

func (c *elabCtx) child(scope *Scope, owner Symbol) *elabCtx {
	return &elabCtx{scope: scope, owner: owner, file: c.file, depth: c.depth, genblk: c.genblk}
}

// instantiate elaborates one instance of a module definition. Port
// connections are bound by the caller, in the caller's scope.
func (el *elaborator) instantiate(def *definition, name string, parent Symbol, overrides map[string]int64, depth int) *InstanceSymbol {
	inst := &InstanceSymbol{
		symbolBase: symbolBase{
			name:   name,
			kind:   KindInstance,
			parent: parent,
			loc:    def.decl.NameRng,
			file:   def.file,
		},
		Def: def.decl,
	}
	inst.Body = NewScope(inst, el.comp.Root)
	if depth > maxInstanceDepth {
		el.comp.warnf(def.file, def.decl.NameRng,
			"instance depth limit reached at %q, hierarchy truncated", name)
		return inst
	}

	for _, pd := range def.decl.Params {
		el.declareParam(inst.Body, pd, def.file, overrides)
	}
	for _, port := range def.decl.Ports {
		vs := &ValueSymbol{
			symbolBase: symbolBase{
				name:   port.Name,
				kind:   KindPort,
				parent: inst,
				loc:    port.NameRng,
				file:   def.file,
			},
			Type:      port.Type,
			Direction: port.Dir,
		}
		inst.Body.Insert(vs)
	}

	ctx := &elabCtx{scope: inst.Body, owner: inst, file: def.file, depth: depth, genblk: new(int)}
	el.elabItems(def.decl.Items, ctx)
	return inst
}

func (el *elaborator) declareParam(scope *Scope, pd *syntax.ParamDecl, file string, overrides map[string]int64) {
	vs := &ValueSymbol{
		symbolBase: symbolBase{
			name:   pd.Name,
			kind:   KindParameter,
			parent: scope.Owner,
			loc:    pd.NameRng,
			file:   file,
		},
		Type: pd.Type,
	}
	if ov, ok := overrides[pd.Name]; ok && !pd.Local {
		v := ov
		vs.ParamValue = &v
	} else if pd.Default != nil {
		if v, ok := evalConst(pd.Default, scope); ok {
			vs.ParamValue = &v
		}
	}
	scope.Insert(vs)
}

// elabItems elaborates a scope's items. Declarations land first so that
// later bindings see every name; structure (instances, generates) comes
// next; behavior (assigns, procedural blocks) binds last.
func (el *elaborator) elabItems(items []syntax.Item, ctx *elabCtx) {
	for _, item := range items {
		switch x := item.(type) {
		case *syntax.NetDecl:
			el.declareNets(x, ctx)
		case *syntax.ParamItem:
			el.declareParam(ctx.scope, x.Decl, ctx.file, nil)
		}
	}
	for _, item := range items {
		switch x := item.(type) {
		case *syntax.Instantiation:
			el.elabInstantiation(x, ctx)
		case *syntax.GenIf:
			el.elabGenIf(x, ctx)
		case *syntax.GenFor:
			el.elabGenFor(x, ctx)
		case *syntax.GenBlock:
			if x.Region {
				// generate regions are transparent
				el.elabItems(x.Items, ctx)
			} else {
				el.elabNamedBlock(x.Label, x.Items, x.Rng, -1, ctx)
			}
		}
	}
	b := &binder{comp: el.comp, scope: ctx.scope, file: ctx.file}
	for _, item := range items {
		switch x := item.(type) {
		case *syntax.ContinuousAssign:
			ca := &ContinuousAssignSymbol{symbolBase: symbolBase{
				kind:   KindContinuousAssign,
				parent: ctx.owner,
				loc:    x.Rng,
				file:   ctx.file,
			}}
			for _, asn := range x.Assigns {
				ca.Assigns = append(ca.Assigns, &Assignment{
					LHS: b.bindExpr(asn.LHS),
					RHS: b.bindExpr(asn.RHS),
				})
			}
			ctx.scope.Insert(ca)
		case *syntax.ProceduralBlock:
			pb := &ProceduralBlockSymbol{
				symbolBase: symbolBase{
					kind:   KindProceduralBlock,
					parent: ctx.owner,
					loc:    x.Rng,
					file:   ctx.file,
				},
				ProcKind: x.Kind,
				Body:     b.bindStmt(x.Body),
			}
			ctx.scope.Insert(pb)
		}
	}
}

func (el *elaborator) declareNets(x *syntax.NetDecl, ctx *elabCtx) {
	for _, dn := range x.Names {
		if x.Direction != syntax.DirNone {
			// Non-ANSI port declaration: refine the header port if present.
			if existing, ok := ctx.scope.Member(dn.Name).(*ValueSymbol); ok {
				existing.Direction = x.Direction
				if existing.Type == "" {
					existing.Type = x.NetType
				}
				continue
			}
		}
		kind := KindNet
		switch {
		case x.Direction != syntax.DirNone:
			kind = KindPort
		case x.NetType != "wire" && x.NetType != "tri" && x.NetType != "wand" && x.NetType != "wor":
			kind = KindVariable
		}
		vs := &ValueSymbol{
			symbolBase: symbolBase{
				name:   dn.Name,
				kind:   kind,
				parent: ctx.owner,
				loc:    dn.NameRng,
				file:   ctx.file,
			},
			Type:      x.NetType,
			Direction: x.Direction,
		}
		ctx.scope.Insert(vs)
	}
}

func (el *elaborator) elabInstantiation(x *syntax.Instantiation, ctx *elabCtx) {
	def, ok := el.comp.defs[x.Module]
	if !ok {
		el.comp.warnf(ctx.file, x.ModuleRng, "unknown module %q", x.Module)
		return
	}
	overrides := el.evalParamOverrides(x.Params, def, ctx)

	b := &binder{comp: el.comp, scope: ctx.scope, file: ctx.file}
	for _, instDef := range x.Instances {
		if instDef.Dim == nil {
			child := el.instantiate(def, instDef.Name, ctx.owner, overrides, ctx.depth+1)
			child.loc = instDef.NameRng
			child.file = ctx.file
			el.bindConnections(child, instDef.Conns, b)
			ctx.scope.Insert(child)
			continue
		}
		left, lok := evalConst(instDef.Dim.Left, ctx.scope)
		right, rok := evalConst(instDef.Dim.Right, ctx.scope)
		if !lok || !rok {
			el.comp.warnf(ctx.file, instDef.NameRng,
				"instance array range of %q is not constant", instDef.Name)
			continue
		}
		arr := &InstanceArraySymbol{
			symbolBase: symbolBase{
				name:   instDef.Name,
				kind:   KindInstanceArray,
				parent: ctx.owner,
				loc:    instDef.NameRng,
				file:   ctx.file,
			},
			Left:  int(left),
			Right: int(right),
		}
		step := 1
		if left > right {
			step = -1
		}
		for idx := int(left); ; idx += step {
			child := el.instantiate(def, elementName(instDef.Name, idx), arr, overrides, ctx.depth+1)
			child.loc = instDef.NameRng
			child.file = ctx.file
			el.bindConnections(child, instDef.Conns, b)
			arr.Elements = append(arr.Elements, child)
			if idx == int(right) {
				break
			}
		}
		ctx.scope.Insert(arr)
	}
}

func (el *elaborator) evalParamOverrides(args []syntax.NamedArg, def *definition, ctx *elabCtx) map[string]int64 {
	if len(args) == 0 {
		return nil
	}
	overrides := make(map[string]int64)
	nonLocal := make([]*syntax.ParamDecl, 0, len(def.decl.Params))
	for _, pd := range def.decl.Params {
		if !pd.Local {
			nonLocal = append(nonLocal, pd)
		}
	}
	for i, arg := range args {
		name := arg.Name
		if name == "" {
			if i >= len(nonLocal) {
				el.comp.warnf(ctx.file, def.decl.NameRng,
					"too many parameter assignments for %q", def.decl.Name)
				break
			}
			name = nonLocal[i].Name
		}
		if arg.Expr == nil {
			continue
		}
		if v, ok := evalConst(arg.Expr, ctx.scope); ok {
			overrides[name] = v
		} else {
			el.comp.warnf(ctx.file, arg.Expr.Range(),
				"parameter %q override is not constant", name)
		}
	}
	return overrides
}

// bindConnections matches an instance's connection list against its ports
// and binds the connection expressions in the parent scope.
func (el *elaborator) bindConnections(child *InstanceSymbol, conns []syntax.NamedArg, b *binder) {
	var ports []*ValueSymbol
	for _, m := range child.Body.Members() {
		if vs, ok := m.(*ValueSymbol); ok && vs.IsPort() {
			ports = append(ports, vs)
		}
	}
	if len(conns) == 0 {
		return
	}

	named := false
	wildcard := false
	for _, c := range conns {
		if c.Name == "*" {
			wildcard = true
		} else if c.Name != "" {
			named = true
		}
	}

	connected := make(map[string]bool)
	if named || wildcard {
		byName := make(map[string]*ValueSymbol, len(ports))
		for _, p := range ports {
			byName[p.Name()] = p
		}
		for _, c := range conns {
			if c.Name == "*" || c.Name == "" {
				continue
			}
			port, ok := byName[c.Name]
			if !ok {
				el.comp.warnf(b.file, c.NameRng,
					"module %q has no port %q", child.DefinitionName(), c.Name)
				continue
			}
			pc := &PortConnection{Port: port}
			if c.Expr != nil {
				pc.Expr = b.bindExpr(c.Expr)
			}
			child.Connections = append(child.Connections, pc)
			connected[c.Name] = true
		}
		if wildcard {
			for _, port := range ports {
				if connected[port.Name()] {
					continue
				}
				if _, ok := b.scope.Lookup(port.Name()).(*ValueSymbol); ok {
					ident := &syntax.Ident{Name: port.Name(), Rng: child.Loc()}
					child.Connections = append(child.Connections, &PortConnection{
						Port: port,
						Expr: b.bindExpr(ident),
					})
				}
			}
		}
		return
	}

	for i, c := range conns {
		if i >= len(ports) {
			el.comp.warnf(b.file, child.Loc(),
				"too many port connections for %q", child.DefinitionName())
			break
		}
		pc := &PortConnection{Port: ports[i]}
		if c.Expr != nil {
			pc.Expr = b.bindExpr(c.Expr)
		}
		child.Connections = append(child.Connections, pc)
	}
}

func (el *elaborator) elabGenIf(x *syntax.GenIf, ctx *elabCtx) {
	cond, ok := evalConst(x.Cond, ctx.scope)
	if !ok {
		el.comp.warnf(ctx.file, x.Cond.Range(), "generate condition is not constant")
		return
	}
	if cond != 0 {
		el.elabNamedBlock(x.ThenLabel, x.Then, x.Rng, -1, ctx)
	} else if x.Else != nil {
		el.elabNamedBlock(x.ElseLabel, x.Else, x.Rng, -1, ctx)
	}
}

// elabNamedBlock elaborates a generate block, synthesizing a genblk name
// when the block carries no label.
func (el *elaborator) elabNamedBlock(label string, items []syntax.Item, rng syntax.Range, index int, ctx *elabCtx) *GenerateBlockSymbol {
	if label == "" {
		*ctx.genblk++
		label = fmt.Sprintf("genblk%d", *ctx.genblk)
	}
	blk := &GenerateBlockSymbol{
		symbolBase: symbolBase{
			name:   label,
			kind:   KindGenerateBlock,
			parent: ctx.owner,
			loc:    rng,
			file:   ctx.file,
		},
		Index: index,
	}
	blk.Body = NewScope(blk, ctx.scope)
	el.elabItems(items, ctx.child(blk.Body, blk))
	ctx.scope.Insert(blk)
	return blk
}

func (el *elaborator) elabGenFor(x *syntax.GenFor, ctx *elabCtx) {
	label := x.Label
	if label == "" {
		*ctx.genblk++
		label = fmt.Sprintf("genblk%d", *ctx.genblk)
	}
	arr := &GenerateArraySymbol{symbolBase: symbolBase{
		name:   label,
		kind:   KindGenerateArray,
		parent: ctx.owner,
		loc:    x.Rng,
		file:   ctx.file,
	}}

	val, ok := evalConst(x.Init, ctx.scope)
	if !ok {
		el.comp.warnf(ctx.file, x.Rng, "generate loop initializer is not constant")
		return
	}
	for iter := 0; iter < maxGenerateIters; iter++ {
		probe := NewScope(nil, ctx.scope)
		probe.Insert(el.genvarSymbol(x.Var, val, arr, ctx))
		cond, ok := evalConst(x.Cond, probe)
		if !ok {
			el.comp.warnf(ctx.file, x.Cond.Range(), "generate loop condition is not constant")
			break
		}
		if cond == 0 {
			break
		}

		entry := &GenerateBlockSymbol{
			symbolBase: symbolBase{
				name:   elementName(label, int(val)),
				kind:   KindGenerateBlock,
				parent: arr,
				loc:    x.Rng,
				file:   ctx.file,
			},
			Index: int(val),
		}
		entry.Body = NewScope(entry, ctx.scope)
		entry.Body.Insert(el.genvarSymbol(x.Var, val, entry, ctx))
		el.elabItems(x.Body, ctx.child(entry.Body, entry))
		arr.Entries = append(arr.Entries, entry)

		next, ok := evalConst(x.Step, probe)
		if !ok {
			el.comp.warnf(ctx.file, x.Rng, "generate loop step is not constant")
			break
		}
		if next == val {
			el.comp.warnf(ctx.file, x.Rng, "generate loop does not advance")
			break
		}
		val = next
	}
	ctx.scope.Insert(arr)
}

// genvarSymbol makes a constant value symbol for one generate iteration.
func (el *elaborator) genvarSymbol(name string, val int64, parent Symbol, ctx *elabCtx) *ValueSymbol {
	v := val
	return &ValueSymbol{
		symbolBase: symbolBase{
			name:   name,
			kind:   KindParameter,
			parent: parent,
			loc:    syntax.Range{},
			file:   ctx.file,
		},
		Type:       "genvar",
		ParamValue: &v,
	}
}
