package design

import (
	"github.com/hdltools/svls/internal/ast"
)

// Use is one construct that references a value symbol: a continuous
// assignment, a procedural block, or an instance port connection.
type Use struct {
	// Owner is the ContinuousAssignSymbol, ProceduralBlockSymbol or
	// InstanceSymbol containing the reference.
	Owner ast.Symbol
	// Conn is set when Owner is an instance and the reference sits in one
	// of its port connections.
	Conn *ast.PortConnection
}

// ReferenceIndex maps every value symbol to the constructs that reference
// it anywhere in the elaborated graph. Built lazily, once per Analysis, by
// a single visit; discarded wholesale on refresh.
type ReferenceIndex struct {
	uses map[*ast.ValueSymbol][]Use
}

// BuildReferenceIndex walks every assignment, procedural block and port
// connection of the design once.
func BuildReferenceIndex(comp *ast.Compilation) *ReferenceIndex {
	idx := &ReferenceIndex{uses: make(map[*ast.ValueSymbol][]Use)}
	comp.VisitDesign(func(sym ast.Symbol) bool {
		switch s := sym.(type) {
		case *ast.ContinuousAssignSymbol:
			seen := make(map[*ast.ValueSymbol]bool)
			for _, asn := range s.Assigns {
				idx.recordExpr(asn.LHS, Use{Owner: s}, seen)
				idx.recordExpr(asn.RHS, Use{Owner: s}, seen)
			}
		case *ast.ProceduralBlockSymbol:
			seen := make(map[*ast.ValueSymbol]bool)
			ast.WalkStmt(s.Body, nil, func(e ast.Expr) {
				if nv, ok := e.(*ast.NamedValue); ok {
					idx.record(nv.Sym, Use{Owner: s}, seen)
				}
			})
		case *ast.InstanceSymbol:
			for _, conn := range s.Connections {
				seen := make(map[*ast.ValueSymbol]bool)
				use := Use{Owner: s, Conn: conn}
				idx.record(conn.Port, use, seen)
				idx.recordExpr(conn.Expr, use, seen)
			}
		}
		return true
	})
	return idx
}

// recordExpr records every named value inside e under the given use,
// deduplicating per construct.
func (x *ReferenceIndex) recordExpr(e ast.Expr, use Use, seen map[*ast.ValueSymbol]bool) {
	if e == nil {
		return
	}
	ast.WalkExpr(e, func(inner ast.Expr) {
		if nv, ok := inner.(*ast.NamedValue); ok {
			x.record(nv.Sym, use, seen)
		}
	})
}

func (x *ReferenceIndex) record(sym *ast.ValueSymbol, use Use, seen map[*ast.ValueSymbol]bool) {
	if sym == nil || seen[sym] {
		return
	}
	seen[sym] = true
	x.uses[sym] = append(x.uses[sym], use)
}

// Uses returns the constructs referencing sym.
func (x *ReferenceIndex) Uses(sym *ast.ValueSymbol) []Use {
	return x.uses[sym]
}

// Len returns the number of referenced symbols.
func (x *ReferenceIndex) Len() int { return len(x.uses) }
