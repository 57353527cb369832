package ast

import (
	"math/bits"

	"github.com/hdltools/svls/internal/syntax"
)

// evalConst evaluates an elaboration-time constant expression. Parameters
// and genvars resolve through the given scope. The second result reports
// whether a value was obtained.
func evalConst(e syntax.Expr, scope *Scope) (int64, bool) {
	switch x := e.(type) {
	case *syntax.Number:
		return x.Value, x.Known
	case *syntax.Ident:
		if scope == nil {
			return 0, false
		}
		sym := scope.Lookup(x.Name)
		if vs, ok := sym.(*ValueSymbol); ok && vs.ParamValue != nil {
			return *vs.ParamValue, true
		}
		return 0, false
	case *syntax.Unary:
		v, ok := evalConst(x.Operand, scope)
		if !ok {
			return 0, false
		}
		switch x.Op {
		case "+":
			return v, true
		case "-":
			return -v, true
		case "~":
			return ^v, true
		case "!":
			return boolInt(v == 0), true
		case "|":
			return boolInt(v != 0), true
		case "&":
			// Reduction AND over an untyped constant is only meaningful
			// for all-ones or zero; approximate on the full word.
			return boolInt(v == -1), true
		case "^":
			return int64(bits.OnesCount64(uint64(v)) & 1), true
		}
		return 0, false
	case *syntax.Binary:
		return evalBinary(x, scope)
	case *syntax.Ternary:
		c, ok := evalConst(x.Cond, scope)
		if !ok {
			return 0, false
		}
		if c != 0 {
			return evalConst(x.T, scope)
		}
		return evalConst(x.F, scope)
	case *syntax.Call:
		return evalCall(x, scope)
	}
	return 0, false
}

func evalBinary(x *syntax.Binary, scope *Scope) (int64, bool) {
	l, ok := evalConst(x.L, scope)
	if !ok {
		return 0, false
	}
	// Short circuit before evaluating the right side.
	switch x.Op {
	case "&&":
		if l == 0 {
			return 0, true
		}
	case "||":
		if l != 0 {
			return 1, true
		}
	}
	r, ok := evalConst(x.R, scope)
	if !ok {
		return 0, false
	}
	switch x.Op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case "%":
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case "<<", "<<<":
		return l << uint64(r&63), true
	case ">>":
		return int64(uint64(l) >> uint64(r&63)), true
	case ">>>":
		return l >> uint64(r&63), true
	case "&":
		return l & r, true
	case "|":
		return l | r, true
	case "^":
		return l ^ r, true
	case "==", "===":
		return boolInt(l == r), true
	case "!=", "!==":
		return boolInt(l != r), true
	case "<":
		return boolInt(l < r), true
	case "<=":
		return boolInt(l <= r), true
	case ">":
		return boolInt(l > r), true
	case ">=":
		return boolInt(l >= r), true
	case "&&":
		return boolInt(l != 0 && r != 0), true
	case "||":
		return boolInt(l != 0 || r != 0), true
	case "**":
		return ipow(l, r), true
	}
	return 0, false
}

func evalCall(x *syntax.Call, scope *Scope) (int64, bool) {
	switch x.Name {
	case "$clog2":
		if len(x.Args) != 1 {
			return 0, false
		}
		v, ok := evalConst(x.Args[0], scope)
		if !ok || v < 0 {
			return 0, false
		}
		return clog2(uint64(v)), true
	case "$bits":
		// Only constant-width arguments are supported.
		return 0, false
	}
	return 0, false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func ipow(base, exp int64) int64 {
	if exp < 0 {
		if base == 1 {
			return 1
		}
		if base == -1 {
			if exp%2 == 0 {
				return 1
			}
			return -1
		}
		return 0
	}
	result := int64(1)
	for ; exp > 0; exp-- {
		result *= base
	}
	return result
}

func clog2(v uint64) int64 {
	if v <= 1 {
		return 0
	}
	return int64(bits.Len64(v - 1))
}
