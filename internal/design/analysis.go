package design

import (
	"sync"

	"github.com/hdltools/svls/internal/ast"
	"github.com/hdltools/svls/internal/debug"
	"github.com/hdltools/svls/internal/syntax"
)

// Analysis is the result of one elaboration: the symbol graph, the
// instance index built eagerly from it, and a reference index built
// lazily on the first cone query. Apart from that one cache the Analysis
// is immutable; any structural change requires a full refresh that
// replaces it wholesale.
type Analysis struct {
	Generation uint64
	Comp       *ast.Compilation
	Instances  *InstanceIndex
	Diags      []syntax.Diagnostic

	refOnce sync.Once
	refs    *ReferenceIndex
}

// NewAnalysis builds the eager half of an analysis.
func NewAnalysis(generation uint64, comp *ast.Compilation, parseDiags []syntax.Diagnostic) *Analysis {
	diags := make([]syntax.Diagnostic, 0, len(parseDiags)+len(comp.Diags))
	diags = append(diags, parseDiags...)
	diags = append(diags, comp.Diags...)
	return &Analysis{
		Generation: generation,
		Comp:       comp,
		Instances:  BuildInstanceIndex(comp),
		Diags:      diags,
	}
}

// References returns the reference index, building it on first use. The
// index is cached for the lifetime of this Analysis and discarded with it.
func (a *Analysis) References() *ReferenceIndex {
	a.refOnce.Do(func() {
		a.refs = BuildReferenceIndex(a.Comp)
		debug.LogCompilation("reference index gen=%d symbols=%d", a.Generation, a.refs.Len())
	})
	return a.refs
}
