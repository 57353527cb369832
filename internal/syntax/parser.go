package syntax

import (
	"strconv"
	"strings"
)

// parser consumes the token stream from the lexer and produces the shallow
// per-file tree. It never fails hard: unrecognized constructs are skipped
// with a diagnostic and parsing resumes at the next safe point.
type parser struct {
	toks  []Token
	pos   int
	file  string
	diags []Diagnostic
}

func newParser(file string, toks []Token) *parser {
	return &parser{toks: toks, file: file}
}

func (p *parser) cur() Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF token
	}
	return p.toks[p.pos]
}

func (p *parser) peek(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) at(kw string) bool   { return p.cur().IsKeyword(kw) }
func (p *parser) atOp(op string) bool { return p.cur().IsOp(op) }

func (p *parser) accept(kw string) bool {
	if p.at(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptOp(op string) bool {
	if p.atOp(op) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectOp(op string) Token {
	if p.atOp(op) {
		return p.next()
	}
	t := p.cur()
	p.errorf(t.Rng, "expected %q, found %q", op, t.Text)
	return t
}

func (p *parser) errorf(rng Range, format string, args ...interface{}) {
	d := errorDiag(rng, format, args...)
	d.File = p.file
	p.diags = append(p.diags, d)
}

func (p *parser) atEOF() bool { return p.cur().Kind == TokenEOF }

// skipToOp advances past the next occurrence of op, respecting nesting of
// parens/brackets/braces.
// declBoundary reports whether a token starts or ends a top-level
// declaration. Recovery never skips past one.
func declBoundary(t Token) bool {
	if t.Kind != TokenKeyword {
		return false
	}
	switch t.Text {
	case "module", "macromodule", "endmodule",
		"interface", "endinterface",
		"package", "endpackage",
		"program", "endprogram",
		"class", "endclass":
		return true
	}
	return false
}

func (p *parser) skipToOp(op string) {
	depth := 0
	for !p.atEOF() {
		t := p.cur()
		if declBoundary(t) {
			return
		}
		if t.Kind == TokenOp {
			switch t.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth > 0 {
					depth--
				}
			}
			if depth == 0 && t.Text == op {
				p.next()
				return
			}
		}
		p.next()
	}
}

// skipToKeyword advances past the next matching keyword at depth zero.
func (p *parser) skipToKeyword(kws ...string) {
	for !p.atEOF() {
		t := p.cur()
		if t.Kind == TokenKeyword {
			for _, kw := range kws {
				if t.Text == kw {
					p.next()
					return
				}
			}
		}
		p.next()
	}
}

// skipBalancedParens consumes a parenthesized group starting at '('.
func (p *parser) skipBalancedParens() {
	if !p.atOp("(") {
		return
	}
	depth := 0
	for !p.atEOF() {
		t := p.next()
		if t.IsOp("(") {
			depth++
		} else if t.IsOp(")") {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// parseFile parses all top-level declarations.
func (p *parser) parseFile() []*ModuleDecl {
	var decls []*ModuleDecl
	for !p.atEOF() {
		t := p.cur()
		switch {
		case t.IsKeyword("module") || t.IsKeyword("macromodule") ||
			t.IsKeyword("interface") || t.IsKeyword("package") ||
			t.IsKeyword("program") || t.IsKeyword("class"):
			if d := p.parseModuleDecl(""); d != nil {
				decls = append(decls, d)
			}
		default:
			// `timescale remnants, stray semicolons, unsupported top-level
			// constructs: advance one token.
			p.next()
		}
	}
	return decls
}

func declKindFor(kw string) (DeclKind, string) {
	switch kw {
	case "module", "macromodule":
		return DeclModule, "endmodule"
	case "interface":
		return DeclInterface, "endinterface"
	case "package":
		return DeclPackage, "endpackage"
	case "program":
		return DeclProgram, "endprogram"
	case "class":
		return DeclClass, "endclass"
	}
	return DeclModule, "endmodule"
}

func (p *parser) parseModuleDecl(container string) *ModuleDecl {
	kwTok := p.next()
	kind, endKw := declKindFor(kwTok.Text)

	// optional lifetime
	p.accept("automatic")
	p.accept("static")

	nameTok := p.cur()
	if nameTok.Kind != TokenIdent {
		p.errorf(nameTok.Rng, "expected %s name", kwTok.Text)
		p.skipToKeyword(endKw)
		return nil
	}
	p.next()

	decl := &ModuleDecl{
		Kind:      kind,
		Name:      nameTok.Text,
		NameRng:   nameTok.Rng,
		Container: container,
		Rng:       Range{Start: kwTok.Rng.Start, End: nameTok.Rng.End},
	}

	if kind == DeclClass {
		// Classes are indexed by name only; the body is skipped.
		p.skipToKeyword(endKw)
		p.acceptLabel()
		return decl
	}

	if p.acceptOp("#") {
		p.parseParamPortList(decl)
	}
	if p.atOp("(") {
		p.parsePortList(decl)
	}
	p.expectOp(";")

	decl.Items = p.parseItems(endKw)
	decl.Rng.End = p.cur().Rng.End
	p.accept(endKw)
	p.acceptLabel()
	return decl
}

// acceptLabel consumes an optional ": name" trailing label.
func (p *parser) acceptLabel() {
	if p.atOp(":") && p.peek(1).Kind == TokenIdent {
		p.next()
		p.next()
	}
}

// parseParamPortList parses "#(parameter int W = 8, ...)".
func (p *parser) parseParamPortList(decl *ModuleDecl) {
	p.expectOp("(")
	local := false
	for !p.atEOF() && !p.atOp(")") {
		// The keyword carries over commas until the next one appears.
		if p.accept("parameter") {
			local = false
		} else if p.accept("localparam") {
			local = true
		}
		typ := p.acceptDataType()
		nameTok := p.cur()
		if nameTok.Kind != TokenIdent {
			p.errorf(nameTok.Rng, "expected parameter name")
			p.skipToOp(")")
			return
		}
		p.next()
		var def Expr
		if p.acceptOp("=") {
			def = p.parseExpr()
		}
		decl.Params = append(decl.Params, &ParamDecl{
			Local:   local,
			Name:    nameTok.Text,
			NameRng: nameTok.Rng,
			Type:    typ,
			Default: def,
		})
		if !p.acceptOp(",") {
			break
		}
	}
	p.expectOp(")")
}

// acceptDataType consumes an optional data type with packed dimension and
// returns its display text. Returns "" when no type keyword is present.
func (p *parser) acceptDataType() string {
	var parts []string
	for {
		t := p.cur()
		if t.Kind == TokenKeyword {
			switch t.Text {
			case "wire", "reg", "logic", "bit", "byte", "int", "integer",
				"shortint", "longint", "real", "realtime", "time", "string",
				"signed", "unsigned", "var", "const":
				parts = append(parts, t.Text)
				p.next()
				continue
			}
		}
		break
	}
	for p.atOp("[") {
		dim := p.parseDimension()
		if dim != nil {
			parts = append(parts, dimText(dim))
		}
	}
	return strings.Join(parts, " ")
}

func dimText(d *Dimension) string {
	return "[" + exprText(d.Left) + ":" + exprText(d.Right) + "]"
}

// parsePortList parses an ANSI port list.
func (p *parser) parsePortList(decl *ModuleDecl) {
	p.expectOp("(")
	dir := DirNone
	typ := ""
	var dim *Dimension
	for !p.atEOF() && !p.atOp(")") {
		t := p.cur()
		switch {
		case t.IsKeyword("input"):
			dir, typ, dim = DirInput, "", nil
			p.next()
			typ = p.acceptDataType()
			dim = p.lastParsedDim(typ)
		case t.IsKeyword("output"):
			dir, typ, dim = DirOutput, "", nil
			p.next()
			typ = p.acceptDataType()
			dim = p.lastParsedDim(typ)
		case t.IsKeyword("inout"):
			dir, typ, dim = DirInout, "", nil
			p.next()
			typ = p.acceptDataType()
			dim = p.lastParsedDim(typ)
		case t.Kind == TokenIdent:
			// Interface-typed port (iface.modport name) or plain name.
			if p.peek(1).IsOp(".") && p.peek(3).Kind == TokenIdent {
				typ = t.Text + "." + p.peek(2).Text
				p.next()
				p.next()
				p.next()
				t = p.cur()
			}
			nameTok := p.next()
			port := &PortDecl{Dir: dir, Name: nameTok.Text, NameRng: nameTok.Rng, Type: typ, Dim: dim}
			decl.Ports = append(decl.Ports, port)
			// trailing unpacked dims
			for p.atOp("[") {
				p.parseDimension()
			}
			if !p.acceptOp(",") && !p.atOp(")") {
				p.skipToOp(")")
				return
			}
		default:
			p.next()
		}
	}
	p.expectOp(")")
}

// lastParsedDim extracts the packed dimension back out of acceptDataType's
// text form when present. The dimension is reparsed from the type string.
func (p *parser) lastParsedDim(typ string) *Dimension {
	i := strings.Index(typ, "[")
	if i < 0 {
		return nil
	}
	inner := typ[i+1 : len(typ)-1]
	parts := strings.SplitN(inner, ":", 2)
	if len(parts) != 2 {
		return nil
	}
	mk := func(s string) Expr {
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return &Number{Raw: s, Value: v, Known: true}
		}
		return &Ident{Name: strings.TrimSpace(s)}
	}
	return &Dimension{Left: mk(parts[0]), Right: mk(parts[1])}
}

// parseItems parses module body items up to the given end keyword.
func (p *parser) parseItems(endKw string) []Item {
	var items []Item
	for !p.atEOF() && !p.at(endKw) {
		if item := p.parseItem(endKw); item != nil {
			items = append(items, item)
		}
	}
	return items
}

func (p *parser) parseItem(endKw string) Item {
	t := p.cur()
	switch {
	case t.IsKeyword("assign"):
		return p.parseContinuousAssign()
	case t.IsKeyword("always") || t.IsKeyword("always_ff") ||
		t.IsKeyword("always_comb") || t.IsKeyword("always_latch") ||
		t.IsKeyword("initial") || t.IsKeyword("final"):
		return p.parseProceduralBlock()
	case t.IsKeyword("parameter") || t.IsKeyword("localparam"):
		return p.parseParamItem()
	case t.IsKeyword("genvar"):
		return p.parseGenvarDecl()
	case t.IsKeyword("wire") || t.IsKeyword("reg") || t.IsKeyword("logic") ||
		t.IsKeyword("bit") || t.IsKeyword("byte") || t.IsKeyword("int") ||
		t.IsKeyword("integer") || t.IsKeyword("shortint") || t.IsKeyword("longint") ||
		t.IsKeyword("real") || t.IsKeyword("time") || t.IsKeyword("var"):
		return p.parseNetDecl(DirNone)
	case t.IsKeyword("input"):
		p.next()
		return p.parseNetDecl(DirInput)
	case t.IsKeyword("output"):
		p.next()
		return p.parseNetDecl(DirOutput)
	case t.IsKeyword("inout"):
		p.next()
		return p.parseNetDecl(DirInout)
	case t.IsKeyword("generate"):
		p.next()
		items := p.parseItems("endgenerate")
		p.accept("endgenerate")
		return &GenBlock{Region: true, Items: items, Rng: t.Rng}
	case t.IsKeyword("if"):
		return p.parseGenIf()
	case t.IsKeyword("for"):
		return p.parseGenFor()
	case t.IsKeyword("begin"):
		p.next()
		label := ""
		if p.atOp(":") && p.peek(1).Kind == TokenIdent {
			p.next()
			label = p.next().Text
		}
		items := p.parseItems("end")
		p.accept("end")
		p.acceptLabel()
		return &GenBlock{Label: label, Items: items, Rng: t.Rng}
	case t.IsKeyword("function") || t.IsKeyword("task"):
		endK := "endfunction"
		if t.IsKeyword("task") {
			endK = "endtask"
		}
		p.skipToKeyword(endK)
		p.acceptLabel()
		return nil
	case t.IsKeyword("typedef") || t.IsKeyword("import") || t.IsKeyword("export") ||
		t.IsKeyword("modport") || t.IsKeyword("defparam") ||
		t.IsKeyword("timeunit") || t.IsKeyword("timeprecision"):
		p.skipToOp(";")
		return nil
	case t.IsKeyword("module") || t.IsKeyword("interface") || t.IsKeyword("program"):
		// Nested declaration: keep for the index, elaborate separately.
		return p.parseModuleDecl("")
	case t.Kind == TokenIdent:
		return p.parseInstantiationOrTypedDecl()
	case t.Kind == TokenDirective:
		p.next()
		return nil
	default:
		p.next()
		return nil
	}
}

func (p *parser) parseContinuousAssign() Item {
	start := p.next() // assign
	// optional drive strength / delay
	if p.atOp("#") {
		p.next()
		if p.cur().Kind == TokenNumber {
			p.next()
		} else if p.atOp("(") {
			p.skipBalancedParens()
		}
	}
	ca := &ContinuousAssign{Rng: start.Rng}
	for !p.atEOF() {
		lhs := p.parseExpr()
		p.expectOp("=")
		rhs := p.parseExpr()
		rng := Range{Start: start.Rng.Start, End: p.cur().Rng.End}
		if lhs != nil && lhs.Range().Valid() {
			rng.Start = lhs.Range().Start
		}
		ca.Assigns = append(ca.Assigns, &Assign{LHS: lhs, RHS: rhs, Rng: rng})
		if !p.acceptOp(",") {
			break
		}
	}
	p.expectOp(";")
	return ca
}

func (p *parser) parseProceduralBlock() Item {
	kwTok := p.next()
	var kind ProcKind
	switch kwTok.Text {
	case "always":
		kind = ProcAlways
	case "always_ff":
		kind = ProcAlwaysFF
	case "always_comb":
		kind = ProcAlwaysComb
	case "always_latch":
		kind = ProcAlwaysLatch
	case "initial":
		kind = ProcInitial
	case "final":
		kind = ProcFinal
	}
	// Event control: @(...) or @* — sensitivity is not modeled.
	if p.atOp("@") {
		p.next()
		if p.atOp("(") {
			p.skipBalancedParens()
		} else if p.atOp("*") {
			p.next()
		}
	}
	body := p.parseStmt()
	return &ProceduralBlock{Kind: kind, Body: body, Rng: kwTok.Rng}
}

func (p *parser) parseParamItem() Item {
	kwTok := p.next()
	local := kwTok.Text == "localparam"
	typ := p.acceptDataType()
	nameTok := p.cur()
	if nameTok.Kind != TokenIdent {
		p.errorf(nameTok.Rng, "expected parameter name")
		p.skipToOp(";")
		return nil
	}
	p.next()
	var def Expr
	if p.acceptOp("=") {
		def = p.parseExpr()
	}
	p.skipToOp(";")
	return &ParamItem{
		Decl: &ParamDecl{Local: local, Name: nameTok.Text, NameRng: nameTok.Rng, Type: typ, Default: def},
		Rng:  Range{Start: kwTok.Rng.Start, End: nameTok.Rng.End},
	}
}

func (p *parser) parseGenvarDecl() Item {
	kwTok := p.next()
	gd := &GenvarDecl{Rng: kwTok.Rng}
	for p.cur().Kind == TokenIdent {
		gd.Names = append(gd.Names, p.next().Text)
		if !p.acceptOp(",") {
			break
		}
	}
	p.expectOp(";")
	return gd
}

func (p *parser) parseDimension() *Dimension {
	open := p.expectOp("[")
	left := p.parseExpr()
	var right Expr
	if p.acceptOp(":") {
		right = p.parseExpr()
	} else {
		right = left
	}
	close := p.expectOp("]")
	return &Dimension{Left: left, Right: right, Rng: Range{Start: open.Rng.Start, End: close.Rng.End}}
}

// parseNetDecl parses "logic [3:0] a = x, b;"; dir is non-None when the
// declaration began with a direction keyword (non-ANSI port declaration).
func (p *parser) parseNetDecl(dir Direction) Item {
	start := p.cur()
	netType := p.acceptDataType()
	if netType == "" {
		netType = "logic"
	}
	var dim *Dimension
	if i := strings.Index(netType, "["); i >= 0 {
		dim = p.lastParsedDim(netType)
	}

	nd := &NetDecl{NetType: netType, Dim: dim, Rng: start.Rng}
	if dir != DirNone {
		nd.NetType = dir.String() + " " + nd.NetType
	}
	nd.Direction = dir
	for {
		nameTok := p.cur()
		if nameTok.Kind != TokenIdent {
			p.errorf(nameTok.Rng, "expected declaration name")
			p.skipToOp(";")
			return nd
		}
		p.next()
		dn := DeclName{Name: nameTok.Text, NameRng: nameTok.Rng}
		for p.atOp("[") {
			dn.Dims = append(dn.Dims, p.parseDimension())
		}
		if p.acceptOp("=") {
			dn.Init = p.parseExpr()
		}
		nd.Names = append(nd.Names, dn)
		if !p.acceptOp(",") {
			break
		}
	}
	p.expectOp(";")
	return nd
}

// parseInstantiationOrTypedDecl disambiguates `modname inst (...)` from a
// user-typed variable declaration `my_t x;`.
func (p *parser) parseInstantiationOrTypedDecl() Item {
	first := p.next() // the leading identifier

	// Parameterized instantiation: mod #(...) inst (...)
	var params []NamedArg
	if p.atOp("#") {
		p.next()
		params = p.parseArgList()
	}

	if p.cur().Kind != TokenIdent {
		// Not a declaration we understand (e.g. a stray expression); recover.
		p.skipToOp(";")
		return nil
	}

	inst := &Instantiation{Module: first.Text, ModuleRng: first.Rng, Params: params, Rng: first.Rng}
	isInstantiation := false
	for {
		nameTok := p.next()
		def := &InstanceDef{Name: nameTok.Text, NameRng: nameTok.Rng}
		if p.atOp("[") {
			def.Dim = p.parseDimension()
		}
		if p.atOp("(") {
			isInstantiation = true
			def.Conns = p.parseArgList()
		}
		inst.Instances = append(inst.Instances, def)
		if !p.acceptOp(",") {
			break
		}
		if p.cur().Kind != TokenIdent {
			break
		}
	}
	p.expectOp(";")

	if !isInstantiation && params == nil {
		// `my_t x;` — a variable of a user-defined type.
		nd := &NetDecl{NetType: first.Text, Rng: first.Rng}
		for _, d := range inst.Instances {
			nd.Names = append(nd.Names, DeclName{Name: d.Name, NameRng: d.NameRng})
		}
		return nd
	}
	return inst
}

// parseArgList parses "( .a(x), .b(y) )" or ordered "( x, y )".
func (p *parser) parseArgList() []NamedArg {
	p.expectOp("(")
	var args []NamedArg
	if p.acceptOp(")") {
		return args
	}
	if p.atOp(".") && p.peek(1).IsOp("*") {
		// .* wildcard connection
		p.next()
		p.next()
		args = append(args, NamedArg{Name: "*"})
		for p.acceptOp(",") {
			args = append(args, p.parseNamedArg())
		}
		p.expectOp(")")
		return args
	}
	args = append(args, p.parseNamedArg())
	for p.acceptOp(",") {
		args = append(args, p.parseNamedArg())
	}
	p.expectOp(")")
	return args
}

func (p *parser) parseNamedArg() NamedArg {
	if p.atOp(".") {
		p.next()
		if p.atOp("*") {
			p.next()
			return NamedArg{Name: "*"}
		}
		nameTok := p.next()
		arg := NamedArg{Name: nameTok.Text, NameRng: nameTok.Rng}
		if p.atOp("(") {
			p.next()
			if !p.atOp(")") {
				arg.Expr = p.parseExpr()
			}
			p.expectOp(")")
		} else {
			// Implicit .name connection binds to a same-named net.
			arg.Expr = &Ident{Name: nameTok.Text, Rng: nameTok.Rng}
		}
		return arg
	}
	return NamedArg{Expr: p.parseExpr()}
}

func (p *parser) parseGenIf() Item {
	kwTok := p.next() // if
	p.expectOp("(")
	cond := p.parseExpr()
	p.expectOp(")")
	then, thenLabel := p.parseGenBranch()
	gi := &GenIf{Cond: cond, Then: then, ThenLabel: thenLabel, Rng: kwTok.Rng}
	if p.accept("else") {
		if p.at("if") {
			inner := p.parseGenIf()
			gi.Else = []Item{inner}
		} else {
			gi.Else, gi.ElseLabel = p.parseGenBranch()
		}
	}
	return gi
}

// parseGenBranch parses either a begin/end block or a single item.
func (p *parser) parseGenBranch() ([]Item, string) {
	if p.accept("begin") {
		label := ""
		if p.atOp(":") && p.peek(1).Kind == TokenIdent {
			p.next()
			label = p.next().Text
		}
		items := p.parseItems("end")
		p.accept("end")
		p.acceptLabel()
		return items, label
	}
	if item := p.parseItem(""); item != nil {
		return []Item{item}, ""
	}
	return nil, ""
}

func (p *parser) parseGenFor() Item {
	kwTok := p.next() // for
	p.expectOp("(")
	p.accept("genvar")
	varTok := p.cur()
	varName := ""
	if varTok.Kind == TokenIdent {
		varName = varTok.Text
		p.next()
	} else {
		p.errorf(varTok.Rng, "expected genvar name in generate for")
	}
	p.expectOp("=")
	init := p.parseExpr()
	p.expectOp(";")
	cond := p.parseExpr()
	p.expectOp(";")
	step := p.parseGenStep(varName)
	p.expectOp(")")
	body, label := p.parseGenBranch()
	return &GenFor{Var: varName, Init: init, Cond: cond, Step: step, Label: label, Body: body, Rng: kwTok.Rng}
}

// parseGenStep normalizes "i++", "i = i + 1" and "i += 1" to the new value
// expression for the loop variable.
func (p *parser) parseGenStep(varName string) Expr {
	if p.cur().Kind == TokenIdent {
		name := p.cur().Text
		op := p.peek(1)
		switch {
		case op.IsOp("++"):
			p.next()
			p.next()
			return &Binary{Op: "+", L: &Ident{Name: name}, R: &Number{Raw: "1", Value: 1, Known: true}}
		case op.IsOp("--"):
			p.next()
			p.next()
			return &Binary{Op: "-", L: &Ident{Name: name}, R: &Number{Raw: "1", Value: 1, Known: true}}
		case op.IsOp("+="):
			p.next()
			p.next()
			r := p.parseExpr()
			return &Binary{Op: "+", L: &Ident{Name: name}, R: r}
		case op.IsOp("-="):
			p.next()
			p.next()
			r := p.parseExpr()
			return &Binary{Op: "-", L: &Ident{Name: name}, R: r}
		case op.IsOp("="):
			p.next()
			p.next()
			return p.parseExpr()
		}
	}
	return p.parseExpr()
}

// Statements

func (p *parser) parseStmt() Stmt {
	t := p.cur()
	switch {
	case t.IsKeyword("begin"):
		p.next()
		label := ""
		if p.atOp(":") && p.peek(1).Kind == TokenIdent {
			p.next()
			label = p.next().Text
		}
		blk := &BlockStmt{Label: label, Rng: t.Rng}
		for !p.atEOF() && !p.at("end") {
			blk.Stmts = append(blk.Stmts, p.parseStmt())
		}
		p.accept("end")
		p.acceptLabel()
		return blk
	case t.IsKeyword("if") || t.IsKeyword("unique") || t.IsKeyword("priority"):
		p.accept("unique")
		p.accept("priority")
		if p.at("case") || p.at("casex") || p.at("casez") {
			return p.parseCaseStmt()
		}
		return p.parseIfStmt()
	case t.IsKeyword("case") || t.IsKeyword("casex") || t.IsKeyword("casez"):
		return p.parseCaseStmt()
	case t.IsKeyword("for"):
		return p.parseForStmt()
	case t.IsKeyword("while"):
		p.next()
		p.expectOp("(")
		cond := p.parseExpr()
		p.expectOp(")")
		body := p.parseStmt()
		return &ForStmt{Cond: cond, Body: body, Rng: t.Rng}
	case t.IsKeyword("repeat"):
		p.next()
		p.expectOp("(")
		cond := p.parseExpr()
		p.expectOp(")")
		body := p.parseStmt()
		return &ForStmt{Cond: cond, Body: body, Rng: t.Rng}
	case t.IsKeyword("forever"):
		p.next()
		body := p.parseStmt()
		return &ForStmt{Body: body, Rng: t.Rng}
	case t.IsKeyword("foreach"):
		p.next()
		p.skipBalancedParens()
		body := p.parseStmt()
		return &ForStmt{Body: body, Rng: t.Rng}
	case t.IsKeyword("return") || t.IsKeyword("break") || t.IsKeyword("continue"):
		p.skipToOp(";")
		return &NullStmt{Rng: t.Rng}
	case t.IsOp("@"):
		p.next()
		if p.atOp("(") {
			p.skipBalancedParens()
		} else if p.atOp("*") {
			p.next()
		} else if p.cur().Kind == TokenIdent {
			p.next()
		}
		return p.parseStmt()
	case t.IsOp("#"):
		p.next()
		if p.cur().Kind == TokenNumber {
			p.next()
		} else if p.atOp("(") {
			p.skipBalancedParens()
		}
		return p.parseStmt()
	case t.IsOp(";"):
		p.next()
		return &NullStmt{Rng: t.Rng}
	case t.Kind == TokenSystemName:
		x := p.parseExpr()
		p.expectOp(";")
		return &ExprStmt{X: x, Rng: t.Rng}
	case t.IsKeyword("disable"):
		p.skipToOp(";")
		return &NullStmt{Rng: t.Rng}
	default:
		return p.parseAssignOrExprStmt()
	}
}

func (p *parser) parseIfStmt() Stmt {
	kwTok := p.next() // if
	p.expectOp("(")
	cond := p.parseExpr()
	p.expectOp(")")
	then := p.parseStmt()
	st := &IfStmt{Cond: cond, Then: then, Rng: kwTok.Rng}
	if p.accept("else") {
		st.Else = p.parseStmt()
	}
	return st
}

func (p *parser) parseCaseStmt() Stmt {
	kwTok := p.next() // case/casex/casez
	p.expectOp("(")
	expr := p.parseExpr()
	p.expectOp(")")
	cs := &CaseStmt{Expr: expr, Rng: kwTok.Rng}
	for !p.atEOF() && !p.at("endcase") {
		if p.accept("default") {
			p.acceptOp(":")
			cs.Default = p.parseStmt()
			continue
		}
		var item CaseItem
		item.Exprs = append(item.Exprs, p.parseExpr())
		for p.acceptOp(",") {
			item.Exprs = append(item.Exprs, p.parseExpr())
		}
		p.expectOp(":")
		item.Body = p.parseStmt()
		cs.Items = append(cs.Items, item)
	}
	p.accept("endcase")
	return cs
}

func (p *parser) parseForStmt() Stmt {
	kwTok := p.next() // for
	p.expectOp("(")
	var init Stmt
	if !p.atOp(";") {
		p.acceptDataType()
		init = p.parseAssignNoSemi()
	}
	p.expectOp(";")
	var cond Expr
	if !p.atOp(";") {
		cond = p.parseExpr()
	}
	p.expectOp(";")
	var step Stmt
	if !p.atOp(")") {
		step = p.parseAssignNoSemi()
	}
	p.expectOp(")")
	body := p.parseStmt()
	return &ForStmt{Init: init, Cond: cond, Step: step, Body: body, Rng: kwTok.Rng}
}

// parseAssignNoSemi parses an assignment without consuming a terminator.
func (p *parser) parseAssignNoSemi() Stmt {
	lhs := p.parsePostfixExpr()
	t := p.cur()
	switch {
	case t.IsOp("="):
		p.next()
		rhs := p.parseExpr()
		return &AssignStmt{LHS: lhs, RHS: rhs, Rng: t.Rng}
	case t.IsOp("++"):
		p.next()
		return &AssignStmt{LHS: lhs, RHS: &Binary{Op: "+", L: lhs, R: &Number{Raw: "1", Value: 1, Known: true}}, Rng: t.Rng}
	case t.IsOp("--"):
		p.next()
		return &AssignStmt{LHS: lhs, RHS: &Binary{Op: "-", L: lhs, R: &Number{Raw: "1", Value: 1, Known: true}}, Rng: t.Rng}
	case t.IsOp("+="), t.IsOp("-="), t.IsOp("*="), t.IsOp("/="):
		op := t.Text[:1]
		p.next()
		rhs := p.parseExpr()
		return &AssignStmt{LHS: lhs, RHS: &Binary{Op: op, L: lhs, R: rhs}, Rng: t.Rng}
	}
	return &ExprStmt{X: lhs, Rng: t.Rng}
}

func (p *parser) parseAssignOrExprStmt() Stmt {
	start := p.cur()
	lhs := p.parsePostfixExpr()
	t := p.cur()
	switch {
	case t.IsOp("="):
		p.next()
		rhs := p.parseExpr()
		p.expectOp(";")
		return &AssignStmt{LHS: lhs, RHS: rhs, Rng: Range{Start: start.Rng.Start, End: t.Rng.End}}
	case t.IsOp("<="):
		p.next()
		rhs := p.parseExpr()
		p.expectOp(";")
		return &AssignStmt{LHS: lhs, RHS: rhs, NonBlocking: true, Rng: Range{Start: start.Rng.Start, End: t.Rng.End}}
	case t.IsOp("+="), t.IsOp("-="), t.IsOp("*="), t.IsOp("/="):
		op := t.Text[:1]
		p.next()
		rhs := p.parseExpr()
		p.expectOp(";")
		return &AssignStmt{LHS: lhs, RHS: &Binary{Op: op, L: lhs, R: rhs}, Rng: start.Rng}
	case t.IsOp("++"):
		p.next()
		p.expectOp(";")
		return &AssignStmt{LHS: lhs, RHS: &Binary{Op: "+", L: lhs, R: &Number{Raw: "1", Value: 1, Known: true}}, Rng: start.Rng}
	case t.IsOp("--"):
		p.next()
		p.expectOp(";")
		return &AssignStmt{LHS: lhs, RHS: &Binary{Op: "-", L: lhs, R: &Number{Raw: "1", Value: 1, Known: true}}, Rng: start.Rng}
	default:
		p.skipToOp(";")
		return &ExprStmt{X: lhs, Rng: start.Rng}
	}
}

// Expressions (precedence climbing)

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4, "~^": 4, "^~": 4,
	"&":  5,
	"==": 6, "!=": 6, "===": 6, "!==": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8, "<<<": 8, ">>>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
	"**": 11,
}

func (p *parser) parseExpr() Expr {
	return p.parseTernary()
}

func (p *parser) parseTernary() Expr {
	cond := p.parseBinary(1)
	if p.atOp("?") {
		qTok := p.next()
		t := p.parseExpr()
		p.expectOp(":")
		f := p.parseExpr()
		return &Ternary{Cond: cond, T: t, F: f, Rng: Range{Start: exprStart(cond, qTok), End: exprEnd(f, qTok)}}
	}
	return cond
}

func exprStart(e Expr, fallback Token) Pos {
	if e != nil && e.Range().Valid() {
		return e.Range().Start
	}
	return fallback.Rng.Start
}

func exprEnd(e Expr, fallback Token) Pos {
	if e != nil && e.Range().Valid() {
		return e.Range().End
	}
	return fallback.Rng.End
}

func (p *parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	for {
		t := p.cur()
		if t.Kind != TokenOp {
			return left
		}
		prec, ok := binaryPrec[t.Text]
		if !ok || prec < minPrec {
			return left
		}
		p.next()
		right := p.parseBinary(prec + 1)
		left = &Binary{Op: t.Text, L: left, R: right,
			Rng: Range{Start: exprStart(left, t), End: exprEnd(right, t)}}
	}
}

func (p *parser) parseUnary() Expr {
	t := p.cur()
	if t.Kind == TokenOp {
		switch t.Text {
		case "!", "~", "-", "+", "&", "|", "^", "~&", "~|", "~^":
			p.next()
			operand := p.parseUnary()
			return &Unary{Op: t.Text, Operand: operand,
				Rng: Range{Start: t.Rng.Start, End: exprEnd(operand, t)}}
		}
	}
	return p.parsePostfixExpr()
}

func (p *parser) parsePostfixExpr() Expr {
	base := p.parsePrimary()
	for {
		t := p.cur()
		switch {
		case t.IsOp("["):
			open := p.next()
			idx := p.parseExpr()
			if p.atOp(":") || p.atOp("+:") || p.atOp("-:") {
				op := p.next().Text
				right := p.parseExpr()
				closeTok := p.expectOp("]")
				base = &RangeSelect{Base: base, Left: idx, Right: right, Op: op,
					Rng: Range{Start: exprStart(base, open), End: closeTok.Rng.End}}
			} else {
				closeTok := p.expectOp("]")
				base = &Select{Base: base, Index: idx,
					Rng: Range{Start: exprStart(base, open), End: closeTok.Rng.End}}
			}
		case t.IsOp(".") && p.peek(1).Kind == TokenIdent:
			p.next()
			nameTok := p.next()
			base = &Member{Base: base, Name: nameTok.Text,
				Rng: Range{Start: exprStart(base, nameTok), End: nameTok.Rng.End}}
		case t.IsOp("::") && p.peek(1).Kind == TokenIdent:
			p.next()
			nameTok := p.next()
			base = &Member{Base: base, Name: nameTok.Text,
				Rng: Range{Start: exprStart(base, nameTok), End: nameTok.Rng.End}}
		default:
			return base
		}
	}
}

func (p *parser) parsePrimary() Expr {
	t := p.cur()
	switch {
	case t.Kind == TokenNumber:
		p.next()
		val, known := parseNumber(t.Text)
		return &Number{Raw: t.Text, Value: val, Known: known, Rng: t.Rng}
	case t.Kind == TokenString:
		p.next()
		return &StringLit{Raw: t.Text, Rng: t.Rng}
	case t.Kind == TokenIdent:
		p.next()
		return &Ident{Name: t.Text, Rng: t.Rng}
	case t.Kind == TokenSystemName:
		p.next()
		call := &Call{Name: t.Text, Rng: t.Rng}
		if p.atOp("(") {
			p.next()
			if !p.atOp(")") {
				call.Args = append(call.Args, p.parseExpr())
				for p.acceptOp(",") {
					call.Args = append(call.Args, p.parseExpr())
				}
			}
			p.expectOp(")")
		}
		return call
	case t.IsOp("("):
		p.next()
		inner := p.parseExpr()
		p.expectOp(")")
		return inner
	case t.IsOp("{"):
		return p.parseConcat()
	case t.IsOp("'{"):
		// Assignment pattern: treated as a concatenation of its elements.
		p.next()
		c := &Concat{Rng: t.Rng}
		if !p.atOp("}") {
			c.Elems = append(c.Elems, p.parseExpr())
			for p.acceptOp(",") {
				c.Elems = append(c.Elems, p.parseExpr())
			}
		}
		p.expectOp("}")
		return c
	default:
		p.errorf(t.Rng, "unexpected token %q in expression", t.Text)
		p.next()
		return &Ident{Name: "", Rng: t.Rng}
	}
}

func (p *parser) parseConcat() Expr {
	open := p.next() // {
	first := p.parseExpr()
	if p.atOp("{") {
		// Replication {N{expr}}
		p.next()
		inner := p.parseExpr()
		for p.acceptOp(",") {
			// Multi-element replication body: fold into a concat.
			nxt := p.parseExpr()
			inner = &Concat{Elems: []Expr{inner, nxt}, Rng: inner.Range()}
		}
		p.expectOp("}")
		closeTok := p.expectOp("}")
		return &Repl{Count: first, Inner: inner, Rng: Range{Start: open.Rng.Start, End: closeTok.Rng.End}}
	}
	c := &Concat{Elems: []Expr{first}, Rng: open.Rng}
	for p.acceptOp(",") {
		c.Elems = append(c.Elems, p.parseExpr())
	}
	closeTok := p.expectOp("}")
	c.Rng = Range{Start: open.Rng.Start, End: closeTok.Rng.End}
	return c
}

// parseNumber evaluates a literal's value when it has a simple form.
func parseNumber(raw string) (int64, bool) {
	s := strings.ReplaceAll(raw, "_", "")
	if i := strings.IndexByte(s, '\''); i >= 0 {
		rest := s[i+1:]
		if rest == "" {
			return 0, false
		}
		if rest[0] == 's' || rest[0] == 'S' {
			rest = rest[1:]
		}
		if rest == "" {
			return 0, false
		}
		base := 10
		switch rest[0] {
		case 'b', 'B':
			base = 2
			rest = rest[1:]
		case 'o', 'O':
			base = 8
			rest = rest[1:]
		case 'd', 'D':
			base = 10
			rest = rest[1:]
		case 'h', 'H':
			base = 16
			rest = rest[1:]
		case '0':
			return 0, true
		case '1':
			return 1, true
		default:
			return 0, false
		}
		v, err := strconv.ParseInt(rest, base, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// exprText renders a parsed expression back to compact source-ish text for
// type display.
func exprText(e Expr) string {
	switch x := e.(type) {
	case *Ident:
		return x.Name
	case *Number:
		return x.Raw
	case *Binary:
		return exprText(x.L) + x.Op + exprText(x.R)
	case *Unary:
		return x.Op + exprText(x.Operand)
	case *Member:
		return exprText(x.Base) + "." + x.Name
	case *Select:
		return exprText(x.Base) + "[" + exprText(x.Index) + "]"
	case *Call:
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			args[i] = exprText(a)
		}
		return x.Name + "(" + strings.Join(args, ",") + ")"
	case nil:
		return ""
	default:
		return "?"
	}
}
