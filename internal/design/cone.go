package design

import (
	"sort"

	"github.com/hdltools/svls/internal/ast"
	"github.com/hdltools/svls/internal/debug"
	svlerr "github.com/hdltools/svls/internal/errors"
	"github.com/hdltools/svls/internal/syntax"
)

// ConeDirection selects which side of an assignment is treated as the
// source of the walk.
type ConeDirection int

const (
	// ConeDrivers walks backward to the signals that feed the target.
	ConeDrivers ConeDirection = iota
	// ConeLoads walks forward to the signals the target feeds.
	ConeLoads
)

func (d ConeDirection) String() string {
	if d == ConeLoads {
		return "loads"
	}
	return "drivers"
}

// ConeLeaf is one terminal value symbol reached by the walk. Leaves are
// keyed by symbol identity so same-named signals in different instances
// stay distinct; path-level queries deduplicate by path string afterwards.
type ConeLeaf struct {
	Sym  *ast.ValueSymbol
	Path string
	Rng  syntax.Range
	File string
}

// coneVisitor is the per-direction traversal policy: which side of an
// assignment or port connection counts as input vs. output.
type coneVisitor interface {
	visitUse(t *coneTracer, sym *ast.ValueSymbol, use Use)
}

// coneTracer walks the use edges of the reference index from one symbol.
// Tracing is an on-demand slice: within a module it collects the direct
// terminal reads/writes of the constructs touching the symbol; crossing a
// port connection records the far-side symbol and continues from it.
type coneTracer struct {
	refs    *ReferenceIndex
	visitor coneVisitor
	visited map[*ast.ValueSymbol]bool
	leaves  map[*ast.ValueSymbol]ConeLeaf
}

// TraceCone computes the driver or load cone of root. A symbol with no
// recorded uses at all is signalled distinctly from one that is missing
// from the design.
func TraceCone(refs *ReferenceIndex, root *ast.ValueSymbol, dir ConeDirection) ([]ConeLeaf, error) {
	if len(refs.Uses(root)) == 0 {
		return nil, svlerr.NewNoReferenceError(ast.HierarchicalPath(root))
	}
	t := &coneTracer{
		refs:    refs,
		visited: make(map[*ast.ValueSymbol]bool),
		leaves:  make(map[*ast.ValueSymbol]ConeLeaf),
	}
	if dir == ConeLoads {
		t.visitor = loadsVisitor{}
	} else {
		t.visitor = driversVisitor{}
	}
	t.trace(root)
	delete(t.leaves, root)

	out := make([]ConeLeaf, 0, len(t.leaves))
	for _, leaf := range t.leaves {
		out = append(out, leaf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	debug.LogCompilation("cone %s of %s: %d leaves", dir, ast.HierarchicalPath(root), len(out))
	return out, nil
}

func (t *coneTracer) trace(sym *ast.ValueSymbol) {
	if sym == nil || t.visited[sym] {
		return
	}
	t.visited[sym] = true
	for _, use := range t.refs.Uses(sym) {
		t.visitor.visitUse(t, sym, use)
	}
}

func (t *coneTracer) addLeaf(sym *ast.ValueSymbol) {
	if sym == nil {
		return
	}
	if _, ok := t.leaves[sym]; ok {
		return
	}
	t.leaves[sym] = ConeLeaf{
		Sym:  sym,
		Path: ast.HierarchicalPath(sym),
		Rng:  sym.Loc(),
		File: sym.File(),
	}
}

// addReads records every named value read inside e, excluding the traced
// symbol itself.
func (t *coneTracer) addReads(e ast.Expr, exclude *ast.ValueSymbol) {
	if e == nil {
		return
	}
	ast.WalkExpr(e, func(inner ast.Expr) {
		if nv, ok := inner.(*ast.NamedValue); ok && nv.Sym != exclude {
			t.addLeaf(nv.Sym)
		}
	})
}

// lhsTargets visits the assignment targets of a left-hand side: the named
// values beneath selects and concat elements, skipping index expressions.
func lhsTargets(e ast.Expr, fn func(*ast.ValueSymbol)) {
	switch x := e.(type) {
	case *ast.NamedValue:
		fn(x.Sym)
	case *ast.ElementSelect:
		lhsTargets(x.Value, fn)
	case *ast.RangeSelect:
		lhsTargets(x.Value, fn)
	case *ast.ConcatExpr:
		for _, el := range x.Elems {
			lhsTargets(el, fn)
		}
	}
}

func lhsMentions(e ast.Expr, sym *ast.ValueSymbol) bool {
	found := false
	lhsTargets(e, func(s *ast.ValueSymbol) {
		if s == sym {
			found = true
		}
	})
	return found
}

func exprMentions(e ast.Expr, sym *ast.ValueSymbol) bool {
	if e == nil {
		return false
	}
	found := false
	ast.WalkExpr(e, func(inner ast.Expr) {
		if nv, ok := inner.(*ast.NamedValue); ok && nv.Sym == sym {
			found = true
		}
	})
	return found
}

// walkProc visits every assignment of a procedural body together with the
// stack of controlling conditions on its path.
func walkProc(s ast.Stmt, conds []ast.Expr, fn func(*ast.Assignment, []ast.Expr)) {
	switch x := s.(type) {
	case *ast.Block:
		for _, inner := range x.Stmts {
			walkProc(inner, conds, fn)
		}
	case *ast.Assignment:
		fn(x, conds)
	case *ast.If:
		nested := append(conds, x.Cond)
		walkProc(x.Then, nested, fn)
		walkProc(x.Else, nested, fn)
	case *ast.Case:
		for _, item := range x.Items {
			nested := append(conds, x.Expr)
			nested = append(nested, item.Conds...)
			walkProc(item.Body, nested, fn)
		}
		walkProc(x.Default, append(conds, x.Expr), fn)
	case *ast.Loop:
		walkProc(x.Init, conds, fn)
		nested := conds
		if x.Cond != nil {
			nested = append(conds, x.Cond)
		}
		walkProc(x.Step, nested, fn)
		walkProc(x.Body, nested, fn)
	}
}

// driversVisitor walks backward: the right-hand sides and controlling
// conditions of constructs that assign the symbol.
type driversVisitor struct{}

func (driversVisitor) visitUse(t *coneTracer, sym *ast.ValueSymbol, use Use) {
	switch owner := use.Owner.(type) {
	case *ast.ContinuousAssignSymbol:
		for _, asn := range owner.Assigns {
			if !lhsMentions(asn.LHS, sym) {
				continue
			}
			t.addReads(asn.RHS, sym)
			// Select indexes on the left side gate the write.
			t.addReads(asn.LHS, sym)
		}
	case *ast.ProceduralBlockSymbol:
		walkProc(owner.Body, nil, func(asn *ast.Assignment, conds []ast.Expr) {
			if !lhsMentions(asn.LHS, sym) {
				return
			}
			t.addReads(asn.RHS, sym)
			t.addReads(asn.LHS, sym)
			for _, c := range conds {
				t.addReads(c, sym)
			}
		})
	case *ast.InstanceSymbol:
		conn := use.Conn
		if conn == nil {
			return
		}
		switch {
		case conn.Port == sym && (sym.Direction == syntax.DirInput || sym.Direction == syntax.DirInout):
			// The port is driven from the parent side.
			t.addReads(conn.Expr, sym)
		case exprMentions(conn.Expr, sym) &&
			(conn.Port.Direction == syntax.DirOutput || conn.Port.Direction == syntax.DirInout):
			// The child's output drives this net; continue inside.
			t.addLeaf(conn.Port)
			t.trace(conn.Port)
		}
	}
}

// loadsVisitor walks forward: the assignment targets of constructs that
// read the symbol, including targets gated by conditions reading it.
type loadsVisitor struct{}

func (loadsVisitor) visitUse(t *coneTracer, sym *ast.ValueSymbol, use Use) {
	switch owner := use.Owner.(type) {
	case *ast.ContinuousAssignSymbol:
		for _, asn := range owner.Assigns {
			if !exprMentions(asn.RHS, sym) && !readInSelect(asn.LHS, sym) {
				continue
			}
			lhsTargets(asn.LHS, func(target *ast.ValueSymbol) {
				if target != sym {
					t.addLeaf(target)
				}
			})
		}
	case *ast.ProceduralBlockSymbol:
		walkProc(owner.Body, nil, func(asn *ast.Assignment, conds []ast.Expr) {
			read := exprMentions(asn.RHS, sym) || readInSelect(asn.LHS, sym)
			for _, c := range conds {
				if exprMentions(c, sym) {
					read = true
				}
			}
			if !read {
				return
			}
			lhsTargets(asn.LHS, func(target *ast.ValueSymbol) {
				if target != sym {
					t.addLeaf(target)
				}
			})
		})
	case *ast.InstanceSymbol:
		conn := use.Conn
		if conn == nil {
			return
		}
		switch {
		case conn.Port == sym && (sym.Direction == syntax.DirOutput || sym.Direction == syntax.DirInout):
			// The port feeds the parent side.
			t.addReads(conn.Expr, sym)
			ast.WalkExpr(conn.Expr, func(inner ast.Expr) {
				if nv, ok := inner.(*ast.NamedValue); ok {
					t.trace(nv.Sym)
				}
			})
		case exprMentions(conn.Expr, sym) &&
			(conn.Port.Direction == syntax.DirInput || conn.Port.Direction == syntax.DirInout):
			// The net feeds into the child; continue inside.
			t.addLeaf(conn.Port)
			t.trace(conn.Port)
		}
	}
}

// readInSelect reports whether sym appears in an index expression of a
// left-hand side (a read even though it sits on the LHS).
func readInSelect(e ast.Expr, sym *ast.ValueSymbol) bool {
	if e == nil {
		return false
	}
	switch x := e.(type) {
	case *ast.ElementSelect:
		return exprMentions(x.Index, sym) || readInSelect(x.Value, sym)
	case *ast.RangeSelect:
		return exprMentions(x.Left, sym) || exprMentions(x.Right, sym) || readInSelect(x.Value, sym)
	case *ast.ConcatExpr:
		for _, el := range x.Elems {
			if readInSelect(el, sym) {
				return true
			}
		}
	}
	return false
}
