package syntax

import "fmt"

// Pos is a position within a source file. Line and Column are 1-based.
type Pos struct {
	Line   int
	Column int
	Offset int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is a half-open source range [Start, End).
type Range struct {
	Start Pos
	End   Pos
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Valid reports whether the range points at real source text.
func (r Range) Valid() bool {
	return r.Start.Line > 0
}

// Contains reports whether the given position falls inside the range.
// Comparison is by line and column so positions from external callers do
// not need a byte offset.
func (r Range) Contains(p Pos) bool {
	if p.Line < r.Start.Line || (p.Line == r.Start.Line && p.Column < r.Start.Column) {
		return false
	}
	if p.Line > r.End.Line || (p.Line == r.End.Line && p.Column >= r.End.Column) {
		return false
	}
	return true
}

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenKeyword
	TokenNumber
	TokenString
	TokenOp
	TokenDirective // `define, `include, `NAME usage
	TokenSystemName
)

// Token is a single lexed token.
type Token struct {
	Kind TokenKind
	Text string
	Rng  Range
}

// IsKeyword reports whether the token is the given keyword.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == TokenKeyword && t.Text == kw
}

// IsOp reports whether the token is the given operator or punctuation.
func (t Token) IsOp(op string) bool {
	return t.Kind == TokenOp && t.Text == op
}

var keywords = map[string]bool{
	"module": true, "endmodule": true, "macromodule": true,
	"interface": true, "endinterface": true,
	"package": true, "endpackage": true,
	"program": true, "endprogram": true,
	"class": true, "endclass": true,
	"function": true, "endfunction": true,
	"task": true, "endtask": true,
	"input": true, "output": true, "inout": true, "ref": true,
	"wire": true, "reg": true, "logic": true, "bit": true, "byte": true,
	"int": true, "integer": true, "shortint": true, "longint": true,
	"real": true, "realtime": true, "time": true, "string": true,
	"signed": true, "unsigned": true,
	"parameter": true, "localparam": true, "genvar": true, "defparam": true,
	"assign": true, "always": true, "always_ff": true, "always_comb": true,
	"always_latch": true, "initial": true, "final": true,
	"begin": true, "end": true,
	"if": true, "else": true, "case": true, "casex": true, "casez": true,
	"endcase": true, "default": true, "for": true, "while": true,
	"repeat": true, "forever": true, "foreach": true, "do": true,
	"generate": true, "endgenerate": true,
	"posedge": true, "negedge": true, "or": true, "and": true, "not": true,
	"typedef": true, "enum": true, "struct": true, "union": true, "packed": true,
	"import": true, "export": true, "modport": true,
	"unique": true, "priority": true,
	"return": true, "break": true, "continue": true,
	"automatic": true, "static": true, "const": true, "var": true,
	"timeunit": true, "timeprecision": true,
}
