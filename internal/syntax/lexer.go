package syntax

import (
	"strings"
	"unicode"
)

// MacroDef is a preprocessor macro recorded while lexing.
type MacroDef struct {
	Name     string
	Body     string
	Params   []string // non-nil for function-like macros
	NameRng  Range
	FromFile string
}

// lexer turns source text into a token stream, expanding object-like
// macros in place and recording macro definitions for the index.
type lexer struct {
	src  string
	file string
	pos  int
	line int
	col  int

	macros map[string]*MacroDef
	defs   []*MacroDef
	diags  []Diagnostic

	// pending holds tokens produced by macro expansion, drained first.
	pending []Token

	// expanding guards against recursive macro expansion.
	expanding map[string]bool
}

func newLexer(file, src string) *lexer {
	return &lexer{
		src:       src,
		file:      file,
		line:      1,
		col:       1,
		macros:    make(map[string]*MacroDef),
		expanding: make(map[string]bool),
	}
}

func (l *lexer) errorf(rng Range, format string, args ...interface{}) {
	l.diags = append(l.diags, errorDiag(rng, format, args...))
}

func (l *lexer) cur() Pos {
	return Pos{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *lexer) advance() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.peekByte()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			l.advance()
			l.advance()
			for l.pos < len(l.src) {
				if l.peekByte() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return c == '_' || c == '$' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

// next returns the next token, EOF-kinded at end of input.
func (l *lexer) next() Token {
	if len(l.pending) > 0 {
		t := l.pending[0]
		l.pending = l.pending[1:]
		return t
	}

	l.skipSpaceAndComments()
	start := l.cur()
	if l.pos >= len(l.src) {
		return Token{Kind: TokenEOF, Rng: Range{Start: start, End: start}}
	}

	c := l.peekByte()
	switch {
	case c == '`':
		return l.lexDirective()
	case isIdentStart(c):
		return l.lexIdent(start)
	case c == '$':
		l.advance()
		for l.pos < len(l.src) && isIdentPart(l.peekByte()) {
			l.advance()
		}
		text := l.src[start.Offset:l.pos]
		return Token{Kind: TokenSystemName, Text: text, Rng: Range{Start: start, End: l.cur()}}
	case c == '\'' && l.peekAt(1) == '{':
		return l.lexOp(start)
	case unicode.IsDigit(rune(c)) || c == '\'':
		return l.lexNumber(start)
	case c == '"':
		return l.lexString(start)
	default:
		return l.lexOp(start)
	}
}

func (l *lexer) lexIdent(start Pos) Token {
	for l.pos < len(l.src) && isIdentPart(l.peekByte()) {
		l.advance()
	}
	text := l.src[start.Offset:l.pos]
	kind := TokenIdent
	if keywords[text] {
		kind = TokenKeyword
	}
	return Token{Kind: kind, Text: text, Rng: Range{Start: start, End: l.cur()}}
}

// lexNumber accepts decimal literals, sized/based literals like 4'b1010 and
// the unbased unsized literals '0 / '1.
func (l *lexer) lexNumber(start Pos) Token {
	for l.pos < len(l.src) && (unicode.IsDigit(rune(l.peekByte())) || l.peekByte() == '_') {
		l.advance()
	}
	if l.peekByte() == '\'' {
		l.advance()
		// optional signedness
		if b := l.peekByte(); b == 's' || b == 'S' {
			l.advance()
		}
		if b := l.peekByte(); b == 'b' || b == 'B' || b == 'o' || b == 'O' ||
			b == 'd' || b == 'D' || b == 'h' || b == 'H' {
			l.advance()
			for l.pos < len(l.src) {
				b := l.peekByte()
				if isIdentPart(b) || b == '?' {
					l.advance()
				} else {
					break
				}
			}
		} else if b == '0' || b == '1' || b == 'x' || b == 'z' || b == 'X' || b == 'Z' {
			l.advance()
		}
	} else if l.peekByte() == '.' && unicode.IsDigit(rune(l.peekAt(1))) {
		l.advance()
		for l.pos < len(l.src) && unicode.IsDigit(rune(l.peekByte())) {
			l.advance()
		}
	}
	text := l.src[start.Offset:l.pos]
	return Token{Kind: TokenNumber, Text: text, Rng: Range{Start: start, End: l.cur()}}
}

func (l *lexer) lexString(start Pos) Token {
	l.advance() // opening quote
	for l.pos < len(l.src) {
		c := l.advance()
		if c == '\\' {
			l.advance()
			continue
		}
		if c == '"' {
			break
		}
	}
	text := l.src[start.Offset:l.pos]
	return Token{Kind: TokenString, Text: text, Rng: Range{Start: start, End: l.cur()}}
}

var multiOps = []string{
	"<<<", ">>>", "===", "!==", "<->",
	"<=", ">=", "==", "!=", "&&", "||", "<<", ">>", "->",
	"+=", "-=", "*=", "/=", "++", "--", "::", "+:", "-:", "**",
	"'{",
}

func (l *lexer) lexOp(start Pos) Token {
	rest := l.src[l.pos:]
	for _, op := range multiOps {
		if strings.HasPrefix(rest, op) {
			for range op {
				l.advance()
			}
			return Token{Kind: TokenOp, Text: op, Rng: Range{Start: start, End: l.cur()}}
		}
	}
	c := l.advance()
	return Token{Kind: TokenOp, Text: string(c), Rng: Range{Start: start, End: l.cur()}}
}

// readDirectiveLine consumes to end of line honoring backslash continuations.
func (l *lexer) readDirectiveLine() string {
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.peekByte()
		if c == '\n' {
			break
		}
		if c == '\\' && l.peekAt(1) == '\n' {
			l.advance()
			l.advance()
			sb.WriteByte('\n')
			continue
		}
		sb.WriteByte(c)
		l.advance()
	}
	return sb.String()
}

func (l *lexer) lexDirective() Token {
	start := l.cur()
	l.advance() // backtick
	nameStart := l.pos
	for l.pos < len(l.src) && isIdentPart(l.peekByte()) {
		l.advance()
	}
	name := l.src[nameStart:l.pos]
	rng := Range{Start: start, End: l.cur()}

	switch name {
	case "define":
		l.lexDefine(rng)
		return l.next()
	case "include", "timescale", "default_nettype", "undef", "resetall",
		"ifdef", "ifndef", "elsif", "else", "endif", "pragma", "line",
		"celldefine", "endcelldefine":
		// Conditional compilation is not evaluated in the shallow view; the
		// directive line is skipped and both branches are parsed as-is.
		l.readDirectiveLine()
		return l.next()
	default:
		// Macro usage
		if def, ok := l.macros[name]; ok {
			if def.Params != nil {
				// Function-like usage: skip the argument list, substitute
				// nothing.
				l.skipMacroArgs()
				return l.next()
			}
			if !l.expanding[name] {
				l.expandMacro(def)
				return l.next()
			}
		}
		// Unknown macro: surface as a directive token so the parser can
		// skip it without cascading errors.
		return Token{Kind: TokenDirective, Text: "`" + name, Rng: rng}
	}
}

func (l *lexer) lexDefine(rng Range) {
	l.skipHorizontalSpace()
	nameStart := l.cur()
	for l.pos < len(l.src) && isIdentPart(l.peekByte()) {
		l.advance()
	}
	name := l.src[nameStart.Offset:l.pos]
	if name == "" {
		l.errorf(rng, "missing macro name after `define")
		l.readDirectiveLine()
		return
	}
	nameRng := Range{Start: nameStart, End: l.cur()}

	var params []string
	if l.peekByte() == '(' {
		l.advance()
		cur := ""
		for l.pos < len(l.src) {
			c := l.advance()
			if c == ')' {
				if s := strings.TrimSpace(cur); s != "" {
					params = append(params, s)
				}
				break
			}
			if c == ',' {
				params = append(params, strings.TrimSpace(cur))
				cur = ""
				continue
			}
			cur += string(c)
		}
		if params == nil {
			params = []string{}
		}
	}

	body := strings.TrimSpace(l.readDirectiveLine())
	def := &MacroDef{Name: name, Body: body, Params: params, NameRng: nameRng, FromFile: l.file}
	l.macros[name] = def
	l.defs = append(l.defs, def)
}

func (l *lexer) skipHorizontalSpace() {
	for l.pos < len(l.src) {
		c := l.peekByte()
		if c == ' ' || c == '\t' {
			l.advance()
		} else {
			return
		}
	}
}

func (l *lexer) skipMacroArgs() {
	l.skipSpaceAndComments()
	if l.peekByte() != '(' {
		return
	}
	depth := 0
	for l.pos < len(l.src) {
		c := l.advance()
		if c == '(' {
			depth++
		} else if c == ')' {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// expandMacro re-lexes an object-like macro body and queues its tokens.
func (l *lexer) expandMacro(def *MacroDef) {
	l.expanding[def.Name] = true
	defer delete(l.expanding, def.Name)

	sub := newLexer(l.file, def.Body)
	sub.macros = l.macros
	sub.expanding = l.expanding
	for {
		t := sub.next()
		if t.Kind == TokenEOF {
			break
		}
		l.pending = append(l.pending, t)
	}
}

// lexAll tokenizes the whole input.
func (l *lexer) lexAll() []Token {
	var out []Token
	for {
		t := l.next()
		out = append(out, t)
		if t.Kind == TokenEOF {
			return out
		}
	}
}
