package ast

// Visit walks the symbol tree rooted at sym in declaration order, calling
// fn before descending into each node. Returning false prunes the subtree.
func Visit(sym Symbol, fn func(Symbol) bool) {
	if sym == nil || !fn(sym) {
		return
	}
	switch s := sym.(type) {
	case *InstanceSymbol:
		for _, m := range s.Body.Members() {
			Visit(m, fn)
		}
	case *GenerateBlockSymbol:
		for _, m := range s.Body.Members() {
			Visit(m, fn)
		}
	case *PackageSymbol:
		for _, m := range s.Body.Members() {
			Visit(m, fn)
		}
	case *InstanceArraySymbol:
		for _, el := range s.Elements {
			Visit(el, fn)
		}
	case *GenerateArraySymbol:
		for _, e := range s.Entries {
			Visit(e, fn)
		}
	}
}

// VisitDesign walks every top instance and package of a compilation.
func (c *Compilation) VisitDesign(fn func(Symbol) bool) {
	for _, pkg := range c.Packages {
		Visit(pkg, fn)
	}
	for _, top := range c.Tops {
		Visit(top, fn)
	}
}

// WalkExpr visits every node of a bound expression tree.
func WalkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch x := e.(type) {
	case *UnaryExpr:
		WalkExpr(x.Operand, fn)
	case *BinaryExpr:
		WalkExpr(x.L, fn)
		WalkExpr(x.R, fn)
	case *TernaryExpr:
		WalkExpr(x.Cond, fn)
		WalkExpr(x.Then, fn)
		WalkExpr(x.Else, fn)
	case *ElementSelect:
		WalkExpr(x.Value, fn)
		WalkExpr(x.Index, fn)
	case *RangeSelect:
		WalkExpr(x.Value, fn)
		WalkExpr(x.Left, fn)
		WalkExpr(x.Right, fn)
	case *ConcatExpr:
		for _, el := range x.Elems {
			WalkExpr(el, fn)
		}
	case *ReplExpr:
		WalkExpr(x.Count, fn)
		WalkExpr(x.Inner, fn)
	case *CallExpr:
		for _, a := range x.Args {
			WalkExpr(a, fn)
		}
	}
}

// WalkStmt visits every statement of a bound statement tree and every
// expression it contains.
func WalkStmt(s Stmt, fn func(Stmt), ef func(Expr)) {
	if s == nil {
		return
	}
	if fn != nil {
		fn(s)
	}
	walk := func(e Expr) {
		if ef != nil {
			WalkExpr(e, ef)
		}
	}
	switch x := s.(type) {
	case *Block:
		for _, inner := range x.Stmts {
			WalkStmt(inner, fn, ef)
		}
	case *Assignment:
		walk(x.LHS)
		walk(x.RHS)
	case *If:
		walk(x.Cond)
		WalkStmt(x.Then, fn, ef)
		WalkStmt(x.Else, fn, ef)
	case *Case:
		walk(x.Expr)
		for _, item := range x.Items {
			for _, c := range item.Conds {
				walk(c)
			}
			WalkStmt(item.Body, fn, ef)
		}
		WalkStmt(x.Default, fn, ef)
	case *Loop:
		WalkStmt(x.Init, fn, ef)
		walk(x.Cond)
		WalkStmt(x.Step, fn, ef)
		WalkStmt(x.Body, fn, ef)
	case *ExprStmt:
		walk(x.X)
	}
}
