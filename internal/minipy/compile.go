// compile.go: source → Code. A line-oriented tokenizer with INDENT/DEDENT
// tracking feeds a recursive-descent parser. The one subtlety that matters
// to the launcher is the three-way compile outcome: running off the end of
// the source (open bracket, block header with no body, dangling else)
// surfaces as ErrIncompleteInput in single mode and as a syntax error in
// exec mode; every other failure is always a syntax error.
package minipy

import (
	"strconv"
	"strings"

	rustpython "github.com/ourobouros/RustPython"
)

// Code is a compiled unit: a parsed statement list plus the mode it was
// compiled under.
type Code struct {
	name string
	mode rustpython.CompileMode
	body []stmt
}

func (c *Code) SourceName() string { return c.name }

// Compile implements the VirtualMachine compile step.
func (vm *VM) Compile(source, sourceName string, mode rustpython.CompileMode) (rustpython.CompiledCode, error) {
	toks, err := tokenize(source)
	if err == nil {
		p := &parser{toks: toks}
		var body []stmt
		body, err = p.parseFile()
		if err == nil {
			if mode == rustpython.ModeSingle && endsWithCompound(body) && !endsWithBlankLine(source) {
				return nil, rustpython.ErrIncompleteInput
			}
			return &Code{name: sourceName, mode: mode, body: body}, nil
		}
	}

	cerr := err.(*compileError)
	if cerr.eof && mode == rustpython.ModeSingle {
		return nil, rustpython.ErrIncompleteInput
	}
	return nil, &rustpython.SyntaxError{
		File: sourceName,
		Line: cerr.line,
		Col:  cerr.col,
		Text: sourceLine(source, cerr.line),
		Msg:  cerr.msg,
	}
}

// A compound statement entered interactively is only finished by a blank
// line, even if it already parses, because an elif/else clause could still
// follow.
func endsWithCompound(body []stmt) bool {
	if len(body) == 0 {
		return false
	}
	switch body[len(body)-1].(type) {
	case *ifStmt, *whileStmt:
		return true
	}
	return false
}

func endsWithBlankLine(source string) bool {
	lines := strings.Split(strings.TrimSuffix(source, "\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1]) == ""
}

func sourceLine(source string, line int) string {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], " \t")
}

type compileError struct {
	line, col int
	msg       string
	eof       bool
}

func (e *compileError) Error() string { return e.msg }

// ---------------------------------------------------------------------------
// tokenizer
// ---------------------------------------------------------------------------

type tokKind int

const (
	tokName tokKind = iota
	tokNumber
	tokString
	tokOp
	tokNewline
	tokIndent
	tokDedent
	tokEOF
)

type token struct {
	kind      tokKind
	text      string
	line, col int
}

func tokenize(source string) ([]token, error) {
	var toks []token
	indents := []int{0}
	depth := 0
	lastLine := 0

	lines := strings.Split(source, "\n")
	for li, raw := range lines {
		lineNo := li + 1
		lastLine = lineNo

		if depth == 0 {
			trimmed := strings.TrimLeft(raw, " \t")
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			indent := len(raw) - len(trimmed)
			if indent > indents[len(indents)-1] {
				indents = append(indents, indent)
				toks = append(toks, token{kind: tokIndent, line: lineNo, col: 1})
			}
			for indent < indents[len(indents)-1] {
				indents = indents[:len(indents)-1]
				toks = append(toks, token{kind: tokDedent, line: lineNo, col: 1})
			}
			if indent != indents[len(indents)-1] {
				return nil, &compileError{line: lineNo, col: 1, msg: "unindent does not match any outer indentation level"}
			}
		}

		lineToks, newDepth, err := scanLine(raw, lineNo, depth)
		if err != nil {
			return nil, err
		}
		depth = newDepth
		toks = append(toks, lineToks...)
		if depth == 0 && len(lineToks) > 0 {
			toks = append(toks, token{kind: tokNewline, line: lineNo, col: len(raw) + 1})
		}
	}

	if depth > 0 {
		return nil, &compileError{line: lastLine, col: 1, msg: "unexpected EOF while parsing", eof: true}
	}
	for len(indents) > 1 {
		indents = indents[:len(indents)-1]
		toks = append(toks, token{kind: tokDedent, line: lastLine + 1, col: 1})
	}
	toks = append(toks, token{kind: tokEOF, line: lastLine + 1, col: 1})
	return toks, nil
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func scanLine(raw string, lineNo, depth int) ([]token, int, error) {
	var toks []token
	i := 0
	for i < len(raw) {
		c := raw[i]
		col := i + 1
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			i = len(raw)
		case isNameStart(c):
			j := i
			for j < len(raw) && isNameChar(raw[j]) {
				j++
			}
			toks = append(toks, token{kind: tokName, text: raw[i:j], line: lineNo, col: col})
			i = j
		case isDigit(c) || (c == '.' && i+1 < len(raw) && isDigit(raw[i+1])):
			j := i
			seenDot := false
			for j < len(raw) && (isDigit(raw[j]) || (raw[j] == '.' && !seenDot)) {
				if raw[j] == '.' {
					seenDot = true
				}
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: raw[i:j], line: lineNo, col: col})
			i = j
		case c == '\'' || c == '"':
			text, j, err := scanString(raw, i, lineNo)
			if err != nil {
				return nil, depth, err
			}
			toks = append(toks, token{kind: tokString, text: text, line: lineNo, col: col})
			i = j
		default:
			op, ok := scanOp(raw, i)
			if !ok {
				return nil, depth, &compileError{line: lineNo, col: col, msg: "invalid syntax"}
			}
			switch op {
			case "(", "[":
				depth++
			case ")", "]":
				depth--
				if depth < 0 {
					return nil, depth, &compileError{line: lineNo, col: col, msg: "unmatched '" + op + "'"}
				}
			}
			toks = append(toks, token{kind: tokOp, text: op, line: lineNo, col: col})
			i += len(op)
		}
	}
	return toks, depth, nil
}

// scanString consumes a quoted literal starting at i and returns its
// decoded contents. Literals do not span lines.
func scanString(raw string, i, lineNo int) (string, int, error) {
	quote := raw[i]
	var b strings.Builder
	j := i + 1
	for j < len(raw) {
		c := raw[j]
		if c == '\\' && j+1 < len(raw) {
			switch raw[j+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '\'', '"':
				b.WriteByte(raw[j+1])
			default:
				b.WriteByte('\\')
				b.WriteByte(raw[j+1])
			}
			j += 2
			continue
		}
		if c == quote {
			return b.String(), j + 1, nil
		}
		b.WriteByte(c)
		j++
	}
	return "", 0, &compileError{line: lineNo, col: i + 1, msg: "EOL while scanning string literal"}
}

var twoCharOps = []string{"**", "//", "<=", ">=", "==", "!="}

func scanOp(raw string, i int) (string, bool) {
	if i+1 < len(raw) {
		two := raw[i : i+2]
		for _, op := range twoCharOps {
			if two == op {
				return op, true
			}
		}
	}
	switch raw[i] {
	case '+', '-', '*', '/', '%', '(', ')', '[', ']', '<', '>', '=', ',', '.', ':':
		return raw[i : i+1], true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

type stmt interface{ stmtNode() }

type exprStmt struct {
	e    expr
	line int
}

type assignStmt struct {
	target expr
	value  expr
	line   int
}

type passStmt struct{}

type importStmt struct {
	name string
	line int
}

type condBlock struct {
	cond expr
	body []stmt
}

type ifStmt struct {
	conds    []condBlock
	elseBody []stmt
}

type whileStmt struct {
	cond expr
	body []stmt
}

func (*exprStmt) stmtNode()   {}
func (*assignStmt) stmtNode() {}
func (*passStmt) stmtNode()   {}
func (*importStmt) stmtNode() {}
func (*ifStmt) stmtNode()     {}
func (*whileStmt) stmtNode()  {}

type expr interface{ exprNode() }

type lit struct {
	v rustpython.Object
}

type nameExpr struct {
	name string
	line int
}

type binop struct {
	op   string
	l, r expr
	line int
}

type unop struct {
	op   string
	x    expr
	line int
}

type boolop struct {
	op   string // "and" | "or"
	l, r expr
}

type callExpr struct {
	fn   expr
	args []expr
	line int
}

type attrExpr struct {
	x    expr
	name string
	line int
}

type indexExpr struct {
	x    expr
	idx  expr
	line int
}

type listExpr struct {
	items []expr
}

func (*lit) exprNode()       {}
func (*nameExpr) exprNode()  {}
func (*binop) exprNode()     {}
func (*unop) exprNode()      {}
func (*boolop) exprNode()    {}
func (*callExpr) exprNode()  {}
func (*attrExpr) exprNode()  {}
func (*indexExpr) exprNode() {}
func (*listExpr) exprNode()  {}

// ---------------------------------------------------------------------------
// parser
// ---------------------------------------------------------------------------

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) at(kind tokKind) bool { return p.peek().kind == kind }

func (p *parser) atOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) atName(text string) bool {
	t := p.peek()
	return t.kind == tokName && t.text == text
}

func (p *parser) errHere(msg string) *compileError {
	t := p.peek()
	return &compileError{line: t.line, col: t.col, msg: msg, eof: t.kind == tokEOF}
}

func (p *parser) expectOp(text string) error {
	if !p.atOp(text) {
		return p.errHere("invalid syntax")
	}
	p.next()
	return nil
}

func (p *parser) expectNewline() error {
	if !p.at(tokNewline) {
		return p.errHere("invalid syntax")
	}
	p.next()
	return nil
}

func (p *parser) parseFile() ([]stmt, error) {
	var body []stmt
	for !p.at(tokEOF) {
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		body = append(body, st)
	}
	return body, nil
}

func (p *parser) parseStmt() (stmt, error) {
	switch {
	case p.atName("if"):
		return p.parseIf()
	case p.atName("while"):
		return p.parseWhile()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *parser) parseSimpleStmt() (stmt, error) {
	t := p.peek()
	switch {
	case p.atName("pass"):
		p.next()
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &passStmt{}, nil
	case p.atName("import"):
		p.next()
		if !p.at(tokName) {
			return nil, p.errHere("invalid syntax")
		}
		name := p.next().text
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &importStmt{name: name, line: t.line}, nil
	}

	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.atOp("=") {
		p.next()
		switch e.(type) {
		case *nameExpr, *attrExpr, *indexExpr:
		default:
			return nil, &compileError{line: t.line, col: t.col, msg: "cannot assign to expression"}
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return &assignStmt{target: e, value: value, line: t.line}, nil
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &exprStmt{e: e, line: t.line}, nil
}

func (p *parser) parseIf() (stmt, error) {
	st := &ifStmt{}
	p.next() // if
	for {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		st.conds = append(st.conds, condBlock{cond: cond, body: body})
		if p.atName("elif") {
			p.next()
			continue
		}
		break
	}
	if p.atName("else") {
		p.next()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		st.elseBody = body
	}
	return st, nil
}

func (p *parser) parseWhile() (stmt, error) {
	p.next() // while
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &whileStmt{cond: cond, body: body}, nil
}

// parseBlock consumes ": NEWLINE INDENT stmt+ DEDENT", or the inline form
// ": simple_stmt".
func (p *parser) parseBlock() ([]stmt, error) {
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if !p.at(tokNewline) {
		st, err := p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
		return []stmt{st}, nil
	}
	p.next() // newline
	if p.at(tokEOF) {
		return nil, p.errHere("unexpected EOF while parsing")
	}
	if !p.at(tokIndent) {
		return nil, p.errHere("expected an indented block")
	}
	p.next()
	var body []stmt
	for !p.at(tokDedent) && !p.at(tokEOF) {
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		body = append(body, st)
	}
	if p.at(tokDedent) {
		p.next()
	}
	return body, nil
}

func (p *parser) parseExpr() (expr, error) { return p.parseOr() }

func (p *parser) parseOr() (expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atName("or") {
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &boolop{op: "or", l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (expr, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atName("and") {
		p.next()
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = &boolop{op: "and", l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseNot() (expr, error) {
	if p.atName("not") {
		t := p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unop{op: "not", x: x, line: t.line}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (expr, error) {
	l, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokOp && compareOps[p.peek().text] {
		t := p.next()
		r, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		return &binop{op: t.text, l: l, r: r, line: t.line}, nil
	}
	return l, nil
}

func (p *parser) parseArith() (expr, error) {
	l, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.atOp("+") || p.atOp("-") {
		t := p.next()
		r, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l = &binop{op: t.text, l: l, r: r, line: t.line}
	}
	return l, nil
}

func (p *parser) parseTerm() (expr, error) {
	l, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for p.atOp("*") || p.atOp("/") || p.atOp("//") || p.atOp("%") {
		t := p.next()
		r, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		l = &binop{op: t.text, l: l, r: r, line: t.line}
	}
	return l, nil
}

func (p *parser) parsePower() (expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.atOp("**") {
		t := p.next()
		r, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &binop{op: "**", l: l, r: r, line: t.line}, nil
	}
	return l, nil
}

func (p *parser) parseUnary() (expr, error) {
	if p.atOp("-") || p.atOp("+") {
		t := p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unop{op: t.text, x: x, line: t.line}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atOp("("):
			t := p.next()
			var args []expr
			for !p.atOp(")") {
				if p.at(tokEOF) {
					return nil, p.errHere("unexpected EOF while parsing")
				}
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.atOp(",") {
					p.next()
					continue
				}
				break
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			e = &callExpr{fn: e, args: args, line: t.line}
		case p.atOp("."):
			p.next()
			if !p.at(tokName) {
				return nil, p.errHere("invalid syntax")
			}
			t := p.next()
			e = &attrExpr{x: e, name: t.text, line: t.line}
		case p.atOp("["):
			t := p.next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			e = &indexExpr{x: e, idx: idx, line: t.line}
		default:
			return e, nil
		}
	}
}

func (p *parser) parseAtom() (expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, &compileError{line: t.line, col: t.col, msg: "invalid number literal"}
			}
			return &lit{v: f}, nil
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, &compileError{line: t.line, col: t.col, msg: "invalid number literal"}
		}
		return &lit{v: n}, nil
	case tokString:
		p.next()
		return &lit{v: t.text}, nil
	case tokName:
		p.next()
		switch t.text {
		case "True":
			return &lit{v: true}, nil
		case "False":
			return &lit{v: false}, nil
		case "None":
			return &lit{v: None}, nil
		case "if", "elif", "else", "while", "pass", "import", "and", "or", "not":
			return nil, &compileError{line: t.line, col: t.col, msg: "invalid syntax"}
		}
		return &nameExpr{name: t.text, line: t.line}, nil
	case tokOp:
		switch t.text {
		case "(":
			p.next()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "[":
			p.next()
			le := &listExpr{}
			for !p.atOp("]") {
				if p.at(tokEOF) {
					return nil, p.errHere("unexpected EOF while parsing")
				}
				item, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				le.items = append(le.items, item)
				if p.atOp(",") {
					p.next()
					continue
				}
				break
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			return le, nil
		}
	}
	return nil, p.errHere("invalid syntax")
}
