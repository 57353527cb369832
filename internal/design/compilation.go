package design

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hdltools/svls/internal/ast"
	"github.com/hdltools/svls/internal/config"
	"github.com/hdltools/svls/internal/debug"
	"github.com/hdltools/svls/internal/document"
	svlerr "github.com/hdltools/svls/internal/errors"
	"github.com/hdltools/svls/internal/syntax"
	"github.com/hdltools/svls/internal/workspace"
)

// State is the compilation lifecycle state.
type State int32

const (
	// StateUnset means no design has been selected (shallow/explore mode).
	StateUnset State = iota
	// StateElaborating means a design is selected but no successful
	// Analysis exists yet (including after a failed refresh with no prior
	// success).
	StateElaborating
	// StateReady means queries are served from a built Analysis.
	StateReady
	// StateCleared is terminal: the design was dropped.
	StateCleared
)

func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateElaborating:
		return "elaborating"
	case StateReady:
		return "ready"
	case StateCleared:
		return "cleared"
	}
	return "unknown"
}

// Compilation orchestrates one elaborated design: the contributing
// documents (shared ownership with the open-document table), refreshes,
// and the hierarchy/instance/cone queries against the current Analysis.
//
// Refresh replaces the Analysis with a single atomic pointer swap;
// concurrent queries see either the old or the new Analysis in full.
type Compilation struct {
	cfg   *config.Config
	store *document.Store
	// lookup provides the workspace index snapshot used to chase a top
	// module's file closure. Nil when compiling from an explicit file list
	// only.
	lookup func() *workspace.Snapshot

	mu        sync.Mutex
	top       string
	buildFile string
	docs      []*document.Document
	lastErr   error

	state      atomic.Int32
	generation atomic.Uint64
	analysis   atomic.Pointer[Analysis]
}

// NewCompilation creates an unset compilation.
func NewCompilation(cfg *config.Config, store *document.Store, lookup func() *workspace.Snapshot) *Compilation {
	return &Compilation{cfg: cfg, store: store, lookup: lookup}
}

// State returns the lifecycle state.
func (c *Compilation) State() State {
	return State(c.state.Load())
}

// Analysis returns the current analysis snapshot, or nil before the first
// successful elaboration.
func (c *Compilation) Analysis() *Analysis {
	return c.analysis.Load()
}

// Top returns the selected top module name, empty when inferred.
func (c *Compilation) Top() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.top
}

// LastError returns the error of the most recent refresh, nil on success.
func (c *Compilation) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// DependsOn reports whether path contributes to this design. Saves of
// contributing files trigger a refresh.
func (c *Compilation) DependsOn(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.docs {
		if d.Path() == path {
			return true
		}
	}
	return false
}

// SetTopLevel selects a design by top module name: the module's defining
// file plus the transitive closure of instantiated modules' files, located
// through the workspace index. Transitions to Elaborating and refreshes.
func (c *Compilation) SetTopLevel(ctx context.Context, moduleName string) error {
	if c.lookup == nil {
		return svlerr.NewNotFoundError("module", moduleName)
	}
	snap := c.lookup()
	if len(snap.Lookup(moduleName)) == 0 {
		return svlerr.NewNotFoundError("module", moduleName)
	}
	// An explicitly selected top defined in several files is refused; the
	// caller picks a file via a build file. Inner instantiations still
	// resolve through the deterministic preview file.
	if files := snap.FilesOf(moduleName); len(files) > 1 {
		return svlerr.NewAmbiguousError(moduleName, files)
	}

	docs, err := c.acquireClosure(ctx, snap, moduleName)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.releaseDocsLocked()
	c.docs = docs
	c.top = moduleName
	c.buildFile = ""
	c.state.Store(int32(StateElaborating))
	c.mu.Unlock()

	debug.LogCompilation("top-level set to %q, %d contributing files", moduleName, len(docs))
	return c.Refresh(ctx)
}

// SetBuildFile selects a design from an explicit file list. Transitions to
// Elaborating and refreshes.
func (c *Compilation) SetBuildFile(ctx context.Context, path string) error {
	bf, err := ParseBuildFile(path)
	if err != nil {
		return err
	}

	docs := make([]*document.Document, 0, len(bf.Files))
	for _, f := range bf.Files {
		doc, err := c.store.Acquire(f)
		if err != nil {
			releaseAll(docs)
			return svlerr.NewConfigError("build-file", err)
		}
		docs = append(docs, doc)
	}

	c.mu.Lock()
	c.releaseDocsLocked()
	c.docs = docs
	c.top = bf.Top
	c.buildFile = path
	c.state.Store(int32(StateElaborating))
	c.mu.Unlock()

	debug.LogCompilation("build file %s: %d files, top=%q", path, len(bf.Files), bf.Top)
	return c.Refresh(ctx)
}

// acquireClosure loads the file set reachable from a top module by
// breadth-first chasing of instantiated names through the index. Each wave
// of files loads in parallel on the parsing pool. Ambiguous module names
// contribute their deterministic preview file.
func (c *Compilation) acquireClosure(ctx context.Context, snap *workspace.Snapshot, top string) ([]*document.Document, error) {
	visited := make(map[string]bool)
	var docs []*document.Document

	wave := snap.FilesOf(top)
	for len(wave) > 0 {
		var fresh []string
		for _, f := range wave {
			if !visited[f] {
				visited[f] = true
				fresh = append(fresh, f)
			}
		}
		if len(fresh) == 0 {
			break
		}

		loaded := make([]*document.Document, len(fresh))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.EffectiveParsingThreads())
		for i, f := range fresh {
			i, f := i, f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				doc, err := c.store.Acquire(f)
				if err != nil {
					return err
				}
				loaded[i] = doc
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			releaseAll(docs)
			releaseAll(loaded)
			return nil, err
		}
		docs = append(docs, loaded...)

		var next []string
		for _, doc := range loaded {
			for _, decl := range doc.Tree().TopDecls() {
				for _, mod := range syntax.InstantiatedModules(decl) {
					if preview, ok := snap.PreviewFile(mod); ok {
						next = append(next, preview)
					}
				}
			}
		}
		wave = next
	}
	return docs, nil
}

// Refresh re-elaborates from the contributing documents' current trees and
// swaps in a new Analysis atomically. On failure the previous Analysis is
// preserved so queries keep serving stale-but-valid data.
func (c *Compilation) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() == StateCleared || c.State() == StateUnset {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	trees := make([]*syntax.Tree, 0, len(c.docs))
	var parseDiags []syntax.Diagnostic
	for _, doc := range c.docs {
		tree := doc.Tree()
		trees = append(trees, tree)
		parseDiags = append(parseDiags, tree.Diags...)
	}

	comp, err := ast.Elaborate(trees, c.top)
	if err != nil {
		c.lastErr = svlerr.NewElaborationError(c.top, err)
		if c.analysis.Load() == nil {
			c.state.Store(int32(StateElaborating))
		}
		debug.LogCompilation("refresh failed for top=%q: %v", c.top, err)
		return c.lastErr
	}

	gen := c.generation.Add(1)
	c.analysis.Store(NewAnalysis(gen, comp, parseDiags))
	c.lastErr = nil
	c.state.Store(int32(StateReady))
	debug.LogCompilation("refresh gen=%d top=%q tops=%d", gen, c.top, len(comp.Tops))
	return nil
}

// Clear drops the design and releases the contributing documents. The
// compilation is terminal afterwards.
func (c *Compilation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseDocsLocked()
	c.top = ""
	c.buildFile = ""
	c.state.Store(int32(StateCleared))
}

func (c *Compilation) releaseDocsLocked() {
	releaseAll(c.docs)
	c.docs = nil
}

func releaseAll(docs []*document.Document) {
	for _, d := range docs {
		if d != nil {
			d.Release()
		}
	}
}

// GetScopesByModule summarizes every definition in the instance index.
func (c *Compilation) GetScopesByModule() ([]ModuleScope, error) {
	a := c.Analysis()
	if a == nil {
		return nil, svlerr.NewNotFoundError("design", "no compiled design")
	}
	return a.Instances.Scopes(), nil
}

// GetInstancesOfModule lists the elaborated instances of one definition.
func (c *Compilation) GetInstancesOfModule(name string) ([]InstanceRef, error) {
	a := c.Analysis()
	if a == nil {
		return nil, svlerr.NewNotFoundError("design", "no compiled design")
	}
	refs := a.Instances.Instances(name)
	if len(refs) == 0 {
		return nil, svlerr.NewNotFoundError("module", name)
	}
	return refs, nil
}

// GetScope resolves a hierarchical path and returns its children as view
// nodes. A path whose prefix resolves but whose tail does not returns the
// deepest found ancestor's children (eager partial match); a path whose
// first segment is unknown is a not-found error. The empty path lists the
// design roots.
func (c *Compilation) GetScope(hierPath string) ([]ViewNode, error) {
	a := c.Analysis()
	if a == nil {
		return nil, svlerr.NewNotFoundError("design", "no compiled design")
	}
	if hierPath == "" {
		var nodes []ViewNode
		for _, pkg := range a.Comp.Packages {
			if node, ok := viewNode(pkg); ok {
				nodes = append(nodes, node)
			}
		}
		for _, top := range a.Comp.Tops {
			if node, ok := viewNode(top); ok {
				nodes = append(nodes, node)
			}
		}
		return nodes, nil
	}
	sym, _, err := a.Comp.LookupPathPartial(hierPath)
	if err != nil {
		return nil, err
	}
	return ScopeChildren(sym), nil
}

// GetConePaths traces the driver or load cone of a signal and returns the
// deduplicated, sorted hierarchical paths of its leaves.
func (c *Compilation) GetConePaths(dir ConeDirection, hierPath string) ([]string, error) {
	a := c.Analysis()
	if a == nil {
		return nil, svlerr.NewNotFoundError("design", "no compiled design")
	}
	sym, err := a.Comp.LookupPath(hierPath)
	if err != nil {
		return nil, err
	}
	val, ok := sym.(*ast.ValueSymbol)
	if !ok {
		return nil, svlerr.NewNotFoundError("signal", hierPath)
	}
	leaves, err := TraceCone(a.References(), val, dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(leaves))
	var paths []string
	for _, leaf := range leaves {
		if !seen[leaf.Path] {
			seen[leaf.Path] = true
			paths = append(paths, leaf.Path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// GetDocInstances returns the hierarchical paths of the elaborated
// instances of the module declared at the given position of a file.
func (c *Compilation) GetDocInstances(file string, pos syntax.Pos) ([]string, error) {
	a := c.Analysis()
	if a == nil {
		return nil, svlerr.NewNotFoundError("design", "no compiled design")
	}

	var tree *syntax.Tree
	c.mu.Lock()
	for _, d := range c.docs {
		if d.Path() == file {
			tree = d.Tree()
			break
		}
	}
	c.mu.Unlock()
	if tree == nil {
		if doc := c.store.Get(file); doc != nil {
			tree = doc.Tree()
		}
	}
	if tree == nil {
		return nil, svlerr.NewNotFoundError("file", file)
	}

	decl := tree.DeclAt(pos)
	if decl == nil {
		return nil, nil
	}
	var paths []string
	for _, ref := range a.Instances.Instances(decl.Name) {
		paths = append(paths, ref.Path)
	}
	return paths, nil
}

// IssueDiagnosticsTo pushes every diagnostic of the current Analysis into
// the sink.
func (c *Compilation) IssueDiagnosticsTo(sink func(syntax.Diagnostic)) {
	a := c.Analysis()
	if a == nil {
		return
	}
	for _, d := range a.Diags {
		sink(d)
	}
}
