package handlebars

import (
	"fmt"
	"strings"
)

// The parser consumes the token slice produced by tokenize (after the
// whitespace pass) and builds a raw parse tree. Block nesting and close-tag
// names are verified here; the first violation aborts parsing.

type parseKind int

const (
	pText parseKind = iota
	pVar
	pBlock
	pPartial
	pDecorator
	pComment
	pDelims
	pRaw
)

type parseNode struct {
	kind parseKind
	tok  token
	expr *tagExpr
	body []*parseNode
	// elses holds the else/else-if clauses of a block in source order.
	elses []*elseClause
	close token
}

type elseClause struct {
	tok  token
	expr *tagExpr // nil for a plain {{else}} or {{^}}
	body []*parseNode
}

type argKind int

const (
	argString argKind = iota
	argNumber
	argBool
	argPath
	argSub
)

// exprArg is an unclassified argument: the parser only records its lexical
// kind, the compiler builds the evaluable parameter.
type exprArg struct {
	kind argKind
	text string
	sub  *tagExpr
	off  int
}

type hashArg struct {
	key   string
	value exprArg
}

// tagExpr is the parsed interior of a tag: name params... key=value... as |a b|
type tagExpr struct {
	name        exprArg
	params      []exprArg
	hash        []hashArg
	blockParams []string
}

type parser struct {
	name string
	src  string
	toks []token
	i    int
}

// parseTemplate parses visible tokens into a node list.
func parseTemplate(name, src string, toks []token) ([]*parseNode, error) {
	p := &parser{name: name, src: src, toks: toks}
	nodes, term, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	if term.kind != tokEOF {
		return nil, p.errorAt(term, 0, tagText(term), "EOF")
	}
	return nodes, nil
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// parseNodes parses statements until a close tag, an else tag or EOF, and
// returns the terminating token.
func (p *parser) parseNodes() ([]*parseNode, token, error) {
	var nodes []*parseNode
	for {
		t := p.next()
		switch t.kind {
		case tokEOF, tokClose:
			return nodes, t, nil
		case tokText:
			nodes = append(nodes, &parseNode{kind: pText, tok: t})
		case tokComment:
			nodes = append(nodes, &parseNode{kind: pComment, tok: t})
		case tokDelims:
			nodes = append(nodes, &parseNode{kind: pDelims, tok: t})
		case tokVar, tokTriple, tokAmp:
			if t.isElse() {
				return nodes, t, nil
			}
			expr, err := p.parseExpr(t, false)
			if err != nil {
				return nil, t, err
			}
			nodes = append(nodes, &parseNode{kind: pVar, tok: t, expr: expr})
		case tokDecorator:
			expr, err := p.parseExpr(t, false)
			if err != nil {
				return nil, t, err
			}
			nodes = append(nodes, &parseNode{kind: pDecorator, tok: t, expr: expr})
		case tokPartial:
			expr, err := p.parseExpr(t, true)
			if err != nil {
				return nil, t, err
			}
			nodes = append(nodes, &parseNode{kind: pPartial, tok: t, expr: expr})
		case tokRaw:
			expr, err := p.parseExpr(t, false)
			if err != nil {
				return nil, t, err
			}
			nodes = append(nodes, &parseNode{kind: pRaw, tok: t, expr: expr})
		case tokOpenInverse:
			if t.isElse() {
				return nodes, t, nil
			}
			fallthrough
		case tokOpen, tokOpenDecorator, tokPartialBlock:
			n, err := p.parseBlock(t)
			if err != nil {
				return nil, t, err
			}
			nodes = append(nodes, n)
		default:
			return nil, t, p.errorAt(t, 0, tagText(t), "statement")
		}
	}
}

// parseBlock parses the body, else chain and close tag of an opening tag.
func (p *parser) parseBlock(open token) (*parseNode, error) {
	expr, err := p.parseExpr(open, open.kind == tokPartialBlock)
	if err != nil {
		return nil, err
	}
	n := &parseNode{kind: pBlock, tok: open, expr: expr}
	switch open.kind {
	case tokPartialBlock:
		n.kind = pPartial
	case tokOpenDecorator:
		n.kind = pDecorator
	}
	body, term, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	n.body = body
	for term.isElse() {
		if open.kind != tokOpen && open.kind != tokOpenInverse {
			return nil, p.errorAt(term, 0, tagText(term), open.delims.Start+"/"+expr.name.text+open.delims.End)
		}
		clause := &elseClause{tok: term}
		if rest := elseGuard(term); rest != "" {
			guardTok := term
			guardTok.val = rest
			ce, err := p.parseExpr(guardTok, false)
			if err != nil {
				return nil, err
			}
			clause.expr = ce
		}
		clause.body, term, err = p.parseNodes()
		if err != nil {
			return nil, err
		}
		n.elses = append(n.elses, clause)
		if clause.expr == nil && term.isElse() {
			return nil, p.errorAt(term, 0, tagText(term), open.delims.Start+"/"+expr.name.text+open.delims.End)
		}
	}
	want := expr.name.text
	if term.kind != tokClose {
		return nil, p.errorAt(term, 0, "EOF", open.delims.Start+"/"+want+open.delims.End)
	}
	if got := strings.TrimSpace(term.val); got != want {
		return nil, p.errorAt(term, 0, got, want)
	}
	n.close = term
	return n, nil
}

// elseGuard returns what follows "else" in an else tag: "if x" for
// {{else if x}}, "" for {{else}} and {{^}}.
func elseGuard(t token) string {
	if t.kind != tokVar {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t.val), "else"))
}

func tagText(t token) string {
	if t.kind == tokEOF {
		return "EOF"
	}
	if t.raw != "" {
		return t.raw
	}
	return t.val
}

// errorAt builds a SyntaxError at the given byte offset inside tag t.
func (p *parser) errorAt(t token, off int, found, expected string) *SyntaxError {
	line, col := t.line, t.col
	if off > 0 {
		prefix := t.raw
		if idx := strings.Index(t.raw, t.val); idx >= 0 {
			prefix = t.raw[:idx] + t.val[:min(off, len(t.val))]
		}
		for _, r := range prefix {
			if r == '\n' {
				line++
				col = 1
				continue
			}
			col++
		}
	}
	return &SyntaxError{
		Position: Position{Filename: p.name, Line: line, Column: col},
		Found:    found,
		Expected: expected,
		Evidence: evidence(p.src, line, col),
	}
}

// exprParser is a recursive-descent parser over the tokens of one tag.
type exprParser struct {
	p    *parser
	tag  token
	toks []exprToken
	i    int
}

func (p *parser) parseExpr(t token, partial bool) (*tagExpr, error) {
	toks, off, err := lexExpr(t.val)
	if err != nil {
		return nil, p.errorAt(t, off, string(t.val[min(off, len(t.val)):]), "expression")
	}
	ep := &exprParser{p: p, tag: t, toks: toks}
	expr, err := ep.expression(partial)
	if err != nil {
		return nil, err
	}
	if tk := ep.peek(); tk.kind != exprEOF {
		return nil, ep.errorf(tk, t.delims.End)
	}
	return expr, nil
}

func (ep *exprParser) peek() exprToken { return ep.toks[ep.i] }

func (ep *exprParser) peekAt(n int) exprToken {
	if ep.i+n < len(ep.toks) {
		return ep.toks[ep.i+n]
	}
	return ep.toks[len(ep.toks)-1]
}

func (ep *exprParser) advance() exprToken {
	t := ep.toks[ep.i]
	if t.kind != exprEOF {
		ep.i++
	}
	return t
}

func (ep *exprParser) errorf(tk exprToken, expected string) error {
	found := tk.val
	if tk.kind == exprEOF {
		found = ep.tag.delims.End
	}
	return ep.p.errorAt(ep.tag, tk.off, found, expected)
}

// expression := name arg* hash* blockParams?
func (ep *exprParser) expression(partial bool) (*tagExpr, error) {
	first := ep.peek()
	if first.kind == exprEOF || first.kind == exprRParen {
		return nil, ep.errorf(first, "id")
	}
	name, err := ep.argument()
	if err != nil {
		return nil, err
	}
	if name.kind == argSub && !partial {
		return nil, ep.errorf(first, "id")
	}
	expr := &tagExpr{name: name}
	for {
		tk := ep.peek()
		switch tk.kind {
		case exprEOF, exprRParen:
			return expr, nil
		case exprPipe:
			return nil, ep.errorf(tk, "as")
		}
		if tk.kind == exprPath && tk.val == "as" && ep.peekAt(1).kind == exprPipe {
			ep.advance()
			ep.advance()
			for {
				id := ep.advance()
				if id.kind == exprPipe {
					break
				}
				if id.kind != exprPath {
					return nil, ep.errorf(id, "|")
				}
				expr.blockParams = append(expr.blockParams, id.val)
			}
			if len(expr.blockParams) == 0 {
				return nil, ep.errorf(ep.peek(), "block param")
			}
			return expr, nil
		}
		if tk.kind == exprPath && ep.peekAt(1).kind == exprAssign {
			ep.advance()
			ep.advance()
			val, err := ep.argument()
			if err != nil {
				return nil, err
			}
			expr.hash = append(expr.hash, hashArg{key: tk.val, value: val})
			continue
		}
		if len(expr.hash) > 0 {
			return nil, ep.errorf(tk, "hash")
		}
		arg, err := ep.argument()
		if err != nil {
			return nil, err
		}
		expr.params = append(expr.params, arg)
	}
}

// argument := string | number | bool | path | '(' expression ')'
func (ep *exprParser) argument() (exprArg, error) {
	tk := ep.advance()
	switch tk.kind {
	case exprString:
		return exprArg{kind: argString, text: tk.val, off: tk.off}, nil
	case exprNumber:
		return exprArg{kind: argNumber, text: tk.val, off: tk.off}, nil
	case exprPath:
		if tk.val == "true" || tk.val == "false" {
			return exprArg{kind: argBool, text: tk.val, off: tk.off}, nil
		}
		return exprArg{kind: argPath, text: tk.val, off: tk.off}, nil
	case exprLParen:
		sub, err := ep.expression(false)
		if err != nil {
			return exprArg{}, err
		}
		if rp := ep.advance(); rp.kind != exprRParen {
			return exprArg{}, ep.errorf(rp, ")")
		}
		return exprArg{kind: argSub, text: subText(sub), sub: sub, off: tk.off}, nil
	}
	return exprArg{}, ep.errorf(tk, "id")
}

// subText renders a sub-expression back to source form.
func subText(e *tagExpr) string {
	return "(" + exprText(e) + ")"
}

func exprText(e *tagExpr) string {
	var b strings.Builder
	b.WriteString(e.name.text)
	for _, a := range e.params {
		b.WriteByte(' ')
		b.WriteString(a.text)
	}
	for _, h := range e.hash {
		fmt.Fprintf(&b, " %s=%s", h.key, h.value.text)
	}
	if len(e.blockParams) > 0 {
		fmt.Fprintf(&b, " as |%s|", strings.Join(e.blockParams, " "))
	}
	return b.String()
}
