// Package server owns the open-document table and the currently selected
// design, and dispatches per-file shallow analysis and design-level queries.
package server

import (
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/hdltools/svls/internal/config"
	"github.com/hdltools/svls/internal/debug"
	"github.com/hdltools/svls/internal/design"
	"github.com/hdltools/svls/internal/document"
	svlerr "github.com/hdltools/svls/internal/errors"
	"github.com/hdltools/svls/internal/syntax"
	"github.com/hdltools/svls/internal/wcp"
	"github.com/hdltools/svls/internal/workspace"
)

// ModuleInfo describes one declaration in a file, for outline queries.
type ModuleInfo struct {
	Name      string
	Kind      string
	Container string
	Rng       syntax.Range
}

// Driver is the orchestrator: it owns the document store, the workspace
// indexer and at most one active compilation. All design-mutating entry
// points serialize on one mutex, shared with the waveform-viewer receive
// loop, because both sides can trigger the same navigation operations.
type Driver struct {
	cfg   *config.Config
	store *document.Store
	ix    *workspace.Indexer

	mu   sync.Mutex
	comp *design.Compilation
	wave *wcp.Client
}

// New creates a driver for the given workspace root.
func New(cfg *config.Config, root string) *Driver {
	return &Driver{
		cfg:   cfg,
		store: document.NewStore(),
		ix:    workspace.NewIndexer(cfg, root),
	}
}

// Indexer exposes the workspace indexer.
func (d *Driver) Indexer() *workspace.Indexer { return d.ix }

// Store exposes the document table.
func (d *Driver) Store() *document.Store { return d.store }

// Start indexes the workspace and, when watch is enabled, starts the file
// watcher that keeps the index current and refreshes the design on disk
// changes to contributing files.
func (d *Driver) Start(ctx context.Context, watch bool) error {
	if err := d.ix.IndexWorkspace(ctx); err != nil {
		return err
	}
	if !watch {
		return nil
	}
	w := workspace.NewWatcher(d.cfg, d.ix)
	w.OnUpdate = func(path string) {
		d.mu.Lock()
		comp := d.comp
		d.mu.Unlock()
		if comp != nil && comp.DependsOn(path) {
			if doc := d.store.Get(path); doc != nil {
				// Keep the buffer aligned with the disk content the
				// watcher just indexed.
				if tree, err := syntax.ParseFile(path); err == nil {
					doc.SetText(tree.Source)
				}
			}
			if err := comp.Refresh(ctx); err != nil {
				debug.LogServer("refresh after change to %s failed: %v", path, err)
			}
		}
	}
	return w.Start(ctx)
}

// OpenDocument tracks a newly opened buffer.
func (d *Driver) OpenDocument(path, text string) {
	d.store.Open(path, text)
	debug.LogServer("opened %s", path)
}

// ChangeDocument applies a full-text change: the shallow tree re-parses
// immediately and the workspace index gets an unsaved overlay, but the
// design is not refreshed (that happens on save).
func (d *Driver) ChangeDocument(path, text string) error {
	doc := d.store.Get(path)
	if doc == nil {
		return svlerr.NewNotFoundError("document", path)
	}
	doc.SetText(text)
	d.ix.UpdatePending(path, doc.Tree())
	return nil
}

// EditDocument applies an incremental range edit to an open buffer.
func (d *Driver) EditDocument(path string, rng syntax.Range, newText string) error {
	doc := d.store.Get(path)
	if doc == nil {
		return svlerr.NewNotFoundError("document", path)
	}
	if err := doc.ApplyEdit(rng, newText); err != nil {
		return err
	}
	d.ix.UpdatePending(path, doc.Tree())
	return nil
}

// SaveDocument commits the buffer's index overlay and refreshes the design
// when the file contributes to it.
func (d *Driver) SaveDocument(ctx context.Context, path string) error {
	doc := d.store.Get(path)
	if doc == nil {
		return svlerr.NewNotFoundError("document", path)
	}
	d.ix.CommitPending(path, xxhash.Sum64String(doc.Text()))

	d.mu.Lock()
	comp := d.comp
	d.mu.Unlock()
	if comp != nil && comp.DependsOn(path) {
		return comp.Refresh(ctx)
	}
	return nil
}

// CloseDocument drops the buffer and its unsaved index overlay. A live
// compilation holding the document keeps it valid.
func (d *Driver) CloseDocument(path string) {
	d.ix.DiscardPending(path)
	d.store.Close(path)
	debug.LogServer("closed %s", path)
}

// SetTopLevel selects a design by top module, replacing any active one.
func (d *Driver) SetTopLevel(ctx context.Context, moduleName string) error {
	comp := design.NewCompilation(d.cfg, d.store, d.ix.Snapshot)
	if err := comp.SetTopLevel(ctx, moduleName); err != nil {
		// The abandoned compilation may already hold document references.
		comp.Clear()
		return err
	}
	d.swapCompilation(comp)
	return nil
}

// SetBuildFile selects a design from a .f file list, replacing any active
// one.
func (d *Driver) SetBuildFile(ctx context.Context, path string) error {
	comp := design.NewCompilation(d.cfg, d.store, d.ix.Snapshot)
	if err := comp.SetBuildFile(ctx, path); err != nil {
		comp.Clear()
		return err
	}
	d.swapCompilation(comp)
	return nil
}

func (d *Driver) swapCompilation(comp *design.Compilation) {
	d.mu.Lock()
	old := d.comp
	d.comp = comp
	d.mu.Unlock()
	if old != nil {
		old.Clear()
	}
}

// ClearDesign returns to shallow/explore mode.
func (d *Driver) ClearDesign() {
	d.swapCompilation(nil)
}

// Compilation returns the active compilation, or an error in explore mode.
func (d *Driver) Compilation() (*design.Compilation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.comp == nil {
		return nil, svlerr.NewNotFoundError("design", "no top level or build file set")
	}
	return d.comp, nil
}

// GetModulesInFile lists the declarations of a file: from the open buffer
// when the file is open, from disk otherwise.
func (d *Driver) GetModulesInFile(path string) ([]ModuleInfo, error) {
	var tree *syntax.Tree
	if doc := d.store.Get(path); doc != nil {
		tree = doc.Tree()
	} else {
		t, err := syntax.ParseFile(path)
		if err != nil {
			return nil, err
		}
		tree = t
	}
	decls := tree.TopDecls()
	if len(decls) == 0 && tree.HasErrors() {
		// Nothing salvageable; report where the parse broke down instead
		// of an empty outline.
		for _, diag := range tree.Diags {
			if diag.Severity == syntax.SeverityError {
				return nil, svlerr.NewParseError(path, diag.Rng.Start.Line, diag.Rng.Start.Column, errors.New(diag.Message))
			}
		}
	}
	var out []ModuleInfo
	for _, decl := range decls {
		out = append(out, ModuleInfo{
			Name:      decl.Name,
			Kind:      decl.Kind.String(),
			Container: decl.Container,
			Rng:       decl.NameRng,
		})
	}
	return out, nil
}

// WorkspaceSymbols matches index entries against a query.
func (d *Driver) WorkspaceSymbols(query string, limit int) []workspace.Entry {
	return d.ix.Snapshot().Match(query, limit)
}

// Definitions returns every definition site of a name. Multiple entries
// mean the name is ambiguous; the caller surfaces all of them.
func (d *Driver) Definitions(name string) ([]workspace.Entry, error) {
	entries := d.ix.Snapshot().Lookup(name)
	if len(entries) == 0 {
		return nil, svlerr.NewNotFoundError("symbol", name)
	}
	return entries, nil
}

// Diagnostics collects the diagnostics for one file: the buffer's parse
// diagnostics plus any design diagnostics attributed to the file.
func (d *Driver) Diagnostics(path string) []syntax.Diagnostic {
	var out []syntax.Diagnostic
	if doc := d.store.Get(path); doc != nil {
		out = append(out, doc.Tree().Diags...)
	}
	d.mu.Lock()
	comp := d.comp
	d.mu.Unlock()
	if comp != nil {
		comp.IssueDiagnosticsTo(func(diag syntax.Diagnostic) {
			if diag.File == path {
				out = append(out, diag)
			}
		})
	}
	return out
}
