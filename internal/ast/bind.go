package ast

import (
	"github.com/hdltools/svls/internal/syntax"
)

// binder resolves syntax expressions against an elaborated scope.
type binder struct {
	comp  *Compilation
	scope *Scope
	file  string
}

func (b *binder) bindExpr(e syntax.Expr) Expr {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *syntax.Ident:
		return b.bindIdent(x)
	case *syntax.Number:
		return &Literal{exprBase: exprBase{x.Rng}, Value: x.Value, Known: x.Known}
	case *syntax.StringLit:
		return &StringLiteral{exprBase: exprBase{x.Rng}, Value: x.Raw}
	case *syntax.Unary:
		return &UnaryExpr{exprBase: exprBase{x.Rng}, Op: x.Op, Operand: b.bindExpr(x.Operand)}
	case *syntax.Binary:
		return &BinaryExpr{exprBase: exprBase{x.Rng}, Op: x.Op, L: b.bindExpr(x.L), R: b.bindExpr(x.R)}
	case *syntax.Ternary:
		return &TernaryExpr{
			exprBase: exprBase{x.Rng},
			Cond:     b.bindExpr(x.Cond),
			Then:     b.bindExpr(x.T),
			Else:     b.bindExpr(x.F),
		}
	case *syntax.Select:
		return b.bindSelect(x)
	case *syntax.RangeSelect:
		return &RangeSelect{
			exprBase: exprBase{x.Rng},
			Value:    b.bindExpr(x.Base),
			Op:       x.Op,
			Left:     b.bindExpr(x.Left),
			Right:    b.bindExpr(x.Right),
		}
	case *syntax.Member:
		return b.bindMember(x)
	case *syntax.Concat:
		c := &ConcatExpr{exprBase: exprBase{x.Rng}}
		for _, el := range x.Elems {
			c.Elems = append(c.Elems, b.bindExpr(el))
		}
		return c
	case *syntax.Repl:
		inner := &ConcatExpr{exprBase: exprBase{x.Inner.Range()}}
		if ic, ok := x.Inner.(*syntax.Concat); ok {
			for _, el := range ic.Elems {
				inner.Elems = append(inner.Elems, b.bindExpr(el))
			}
		} else {
			inner.Elems = append(inner.Elems, b.bindExpr(x.Inner))
		}
		return &ReplExpr{exprBase: exprBase{x.Rng}, Count: b.bindExpr(x.Count), Inner: inner}
	case *syntax.Call:
		call := &CallExpr{exprBase: exprBase{x.Rng}, Name: x.Name}
		for _, a := range x.Args {
			call.Args = append(call.Args, b.bindExpr(a))
		}
		return call
	}
	return &Invalid{exprBase: exprBase{e.Range()}}
}

func (b *binder) bindIdent(x *syntax.Ident) Expr {
	sym := b.scope.Lookup(x.Name)
	switch s := sym.(type) {
	case nil:
		b.comp.warnf(b.file, x.Rng, "use of undeclared identifier %q", x.Name)
		return &Invalid{exprBase: exprBase{x.Rng}, Text: x.Name}
	case *ValueSymbol:
		return &NamedValue{exprBase: exprBase{x.Rng}, Sym: s}
	default:
		return &SymbolRef{exprBase: exprBase{x.Rng}, Sym: s}
	}
}

func (b *binder) bindSelect(x *syntax.Select) Expr {
	base := b.bindExpr(x.Base)
	if ref, ok := base.(*SymbolRef); ok {
		idx, known := evalConst(x.Index, b.scope)
		if !known {
			b.comp.warnf(b.file, x.Rng, "index into %s %q is not constant", ref.Sym.Kind(), ref.Sym.Name())
			return &Invalid{exprBase: exprBase{x.Rng}, Text: ref.Sym.Name()}
		}
		switch arr := ref.Sym.(type) {
		case *InstanceArraySymbol:
			if el := arr.elementAt(idx); el != nil {
				return &SymbolRef{exprBase: exprBase{x.Rng}, Sym: el}
			}
		case *GenerateArraySymbol:
			if el := arr.entryAt(idx); el != nil {
				return &SymbolRef{exprBase: exprBase{x.Rng}, Sym: el}
			}
		}
		b.comp.warnf(b.file, x.Rng, "index %d is outside %s %q", idx, ref.Sym.Kind(), ref.Sym.Name())
		return &Invalid{exprBase: exprBase{x.Rng}, Text: ref.Sym.Name()}
	}
	return &ElementSelect{exprBase: exprBase{x.Rng}, Value: base, Index: b.bindExpr(x.Index)}
}

func (b *binder) bindMember(x *syntax.Member) Expr {
	base := b.bindExpr(x.Base)
	ref, ok := base.(*SymbolRef)
	if !ok {
		// Struct member access is not modeled; fold to the base value so
		// cone tracing still sees the underlying net.
		if nv, isVal := base.(*NamedValue); isVal {
			return &NamedValue{exprBase: exprBase{x.Rng}, Sym: nv.Sym}
		}
		return &Invalid{exprBase: exprBase{x.Rng}, Text: x.Name}
	}
	scope := ScopeOf(ref.Sym)
	if scope == nil {
		b.comp.warnf(b.file, x.Rng, "%s %q has no member %q", ref.Sym.Kind(), ref.Sym.Name(), x.Name)
		return &Invalid{exprBase: exprBase{x.Rng}, Text: x.Name}
	}
	member := scope.Member(x.Name)
	switch m := member.(type) {
	case nil:
		b.comp.warnf(b.file, x.Rng, "no member %q in %s %q", x.Name, ref.Sym.Kind(), ref.Sym.Name())
		return &Invalid{exprBase: exprBase{x.Rng}, Text: x.Name}
	case *ValueSymbol:
		return &NamedValue{exprBase: exprBase{x.Rng}, Sym: m}
	default:
		return &SymbolRef{exprBase: exprBase{x.Rng}, Sym: m}
	}
}

func (b *binder) bindStmt(s syntax.Stmt) Stmt {
	if s == nil {
		return nil
	}
	switch x := s.(type) {
	case *syntax.BlockStmt:
		blk := &Block{}
		for _, inner := range x.Stmts {
			blk.Stmts = append(blk.Stmts, b.bindStmt(inner))
		}
		return blk
	case *syntax.AssignStmt:
		return &Assignment{
			LHS:         b.bindExpr(x.LHS),
			RHS:         b.bindExpr(x.RHS),
			NonBlocking: x.NonBlocking,
		}
	case *syntax.IfStmt:
		return &If{Cond: b.bindExpr(x.Cond), Then: b.bindStmt(x.Then), Else: b.bindStmt(x.Else)}
	case *syntax.CaseStmt:
		c := &Case{Expr: b.bindExpr(x.Expr)}
		for _, item := range x.Items {
			branch := CaseBranch{Body: b.bindStmt(item.Body)}
			for _, cond := range item.Exprs {
				branch.Conds = append(branch.Conds, b.bindExpr(cond))
			}
			c.Items = append(c.Items, branch)
		}
		c.Default = b.bindStmt(x.Default)
		return c
	case *syntax.ForStmt:
		return &Loop{
			Init: b.bindStmt(x.Init),
			Cond: b.bindExpr(x.Cond),
			Step: b.bindStmt(x.Step),
			Body: b.bindStmt(x.Body),
		}
	case *syntax.ExprStmt:
		return &ExprStmt{X: b.bindExpr(x.X)}
	case *syntax.NullStmt:
		return &Null{}
	}
	return &Null{}
}

func (a *InstanceArraySymbol) elementAt(idx int64) *InstanceSymbol {
	lo, hi := a.Left, a.Right
	if lo > hi {
		lo, hi = hi, lo
	}
	if idx < int64(lo) || idx > int64(hi) {
		return nil
	}
	// Elements are stored left-to-right as written.
	if a.Left <= a.Right {
		return a.Elements[idx-int64(a.Left)]
	}
	return a.Elements[int64(a.Left)-idx]
}

func (a *GenerateArraySymbol) entryAt(idx int64) *GenerateBlockSymbol {
	for _, e := range a.Entries {
		if int64(e.Index) == idx {
			return e
		}
	}
	return nil
}
