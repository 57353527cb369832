package ast

import "github.com/hdltools/svls/internal/syntax"

// Expr is a bound expression. Identifier references have been resolved to
// design symbols; anything that could not be resolved becomes Invalid.
type Expr interface {
	Range() syntax.Range
	boundExpr()
}

type exprBase struct {
	rng syntax.Range
}

func (e exprBase) Range() syntax.Range { return e.rng }
func (exprBase) boundExpr()            {}

// NamedValue is a resolved reference to a net, variable, port or parameter.
// For hierarchical references the symbol may live in a different instance
// than the referencing expression.
type NamedValue struct {
	exprBase
	Sym *ValueSymbol
}

// SymbolRef is a reference to a non-value symbol (instance, generate block,
// package) appearing as the prefix of a hierarchical name.
type SymbolRef struct {
	exprBase
	Sym Symbol
}

// Literal is an integer literal. Known is false for literals the front end
// does not evaluate (unbased unsized fills, reals).
type Literal struct {
	exprBase
	Value int64
	Known bool
}

// StringLiteral is a string literal.
type StringLiteral struct {
	exprBase
	Value string
}

// UnaryExpr is a bound prefix operation.
type UnaryExpr struct {
	exprBase
	Op      string
	Operand Expr
}

// BinaryExpr is a bound infix operation.
type BinaryExpr struct {
	exprBase
	Op   string
	L, R Expr
}

// TernaryExpr is a bound conditional expression.
type TernaryExpr struct {
	exprBase
	Cond, Then, Else Expr
}

// ElementSelect is a bound bit or element select.
type ElementSelect struct {
	exprBase
	Value Expr
	Index Expr
}

// RangeSelect is a bound part select. Op is ":", "+:" or "-:".
type RangeSelect struct {
	exprBase
	Value       Expr
	Op          string
	Left, Right Expr
}

// ConcatExpr is a bound concatenation or assignment pattern.
type ConcatExpr struct {
	exprBase
	Elems []Expr
}

// ReplExpr is a bound replication.
type ReplExpr struct {
	exprBase
	Count Expr
	Inner *ConcatExpr
}

// CallExpr is a bound system or user function call.
type CallExpr struct {
	exprBase
	Name string
	Args []Expr
}

// Invalid marks an expression whose reference did not resolve. The name is
// kept for diagnostics.
type Invalid struct {
	exprBase
	Text string
}

// Stmt is a bound statement.
type Stmt interface {
	boundStmt()
}

type stmtBase struct{}

func (stmtBase) boundStmt() {}

// Assignment is one bound assignment, used both inside continuous assigns
// and as a procedural statement.
type Assignment struct {
	stmtBase
	LHS, RHS    Expr
	NonBlocking bool
}

// Block is a bound begin/end sequence.
type Block struct {
	stmtBase
	Stmts []Stmt
}

// If is a bound conditional statement.
type If struct {
	stmtBase
	Cond Expr
	Then Stmt
	Else Stmt
}

// CaseBranch is one arm of a bound case statement.
type CaseBranch struct {
	Conds []Expr
	Body  Stmt
}

// Case is a bound case statement.
type Case struct {
	stmtBase
	Expr    Expr
	Items   []CaseBranch
	Default Stmt
}

// Loop is a bound for/while/repeat loop.
type Loop struct {
	stmtBase
	Init Stmt
	Cond Expr
	Step Stmt
	Body Stmt
}

// ExprStmt is a bound expression statement.
type ExprStmt struct {
	stmtBase
	X Expr
}

// Null is an empty bound statement.
type Null struct {
	stmtBase
}

// SelectRoot strips selects and member accesses down to the underlying
// named value, if any. Returns nil for concats and other compound forms.
func SelectRoot(e Expr) *ValueSymbol {
	for {
		switch x := e.(type) {
		case *NamedValue:
			return x.Sym
		case *ElementSelect:
			e = x.Value
		case *RangeSelect:
			e = x.Value
		default:
			return nil
		}
	}
}
