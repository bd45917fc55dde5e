package handlebars

import (
	"fmt"
	"strconv"
	"strings"
)

// HelperMissing is the name of the fallback helper invoked for tags with
// arguments whose helper is not registered.
const HelperMissing = "helperMissing"

// compiler turns the raw parse tree into the immutable node tree. It
// classifies arguments, compiles paths, coalesces text, threads block
// parameter names into block bodies and checks helper and decorator names
// against the registries of the engine.
type compiler struct {
	name   string
	src    string
	delims Delims
	env    *Engine
	// qualifiers is a stack with one entry per enclosing block. An entry
	// holds the block parameter that stands for "this" inside an each/with
	// body, or "" when the block binds none.
	qualifiers []string
}

func (c *compiler) errorf(pos Position, suggestion, format string, args ...any) *CompileError {
	return &CompileError{
		Position:   pos,
		Reason:     fmt.Sprintf(format, args...),
		Suggestion: suggestion,
		Evidence:   evidence(c.src, pos.Line, pos.Column),
	}
}

func (c *compiler) info(t token) tagInfo {
	return tagInfo{
		pos:       Position{Filename: c.name, Line: t.line, Column: t.col},
		delims:    t.delims,
		trimLeft:  t.trimLeft,
		trimRight: t.trimRight,
	}
}

func (c *compiler) program(nodes []*parseNode, root bool) (*Program, error) {
	prog := &Program{}
	for _, n := range nodes {
		var (
			node Node
			err  error
		)
		switch n.kind {
		case pText:
			if last := len(prog.Nodes) - 1; last >= 0 {
				if t, ok := prog.Nodes[last].(*Text); ok {
					t.Content += n.tok.val
					continue
				}
			}
			node = &Text{Content: n.tok.val, pos: c.info(n.tok).pos}
		case pComment, pDelims:
			continue
		case pVar:
			node, err = c.variable(n)
		case pBlock:
			node, err = c.block(n)
		case pRaw:
			node, err = c.raw(n)
		case pPartial:
			node, err = c.partial(n)
		case pDecorator:
			var d *DecoratorNode
			d, err = c.decorator(n, root)
			if err == nil {
				prog.decorators = append(prog.decorators, d)
				node = d
			}
		}
		if err != nil {
			return nil, err
		}
		prog.Nodes = append(prog.Nodes, node)
	}
	return prog, nil
}

// namePath compiles the name of a tag. Literal names are looked up verbatim.
func (c *compiler) namePath(a exprArg, t token) (*Path, error) {
	switch a.kind {
	case argPath:
		p, err := CompilePath(a.text)
		if err != nil {
			return nil, c.errorf(c.info(t).pos, "", "%v", err)
		}
		return p, nil
	case argString:
		v := unquote(a.text)
		return &Path{Text: a.text, Segments: []Segment{{Name: v, Bracketed: true}}}, nil
	}
	return &Path{Text: a.text, Segments: []Segment{{Name: a.text, Bracketed: true}}}, nil
}

func (c *compiler) arg(a exprArg, t token) (Param, error) {
	switch a.kind {
	case argString:
		return StringParam{Value: unquote(a.text), Raw: a.text}, nil
	case argNumber:
		if n, err := strconv.ParseInt(a.text, 10, 64); err == nil {
			return NumberParam{Value: n, Raw: a.text}, nil
		}
		f, err := strconv.ParseFloat(a.text, 64)
		if err != nil {
			return nil, c.errorf(c.info(t).pos, "", "invalid number %q", a.text)
		}
		return NumberParam{Value: f, Raw: a.text}, nil
	case argBool:
		return BoolParam(a.text == "true"), nil
	case argSub:
		v, err := c.call(a.sub, t, TagSubExpression)
		if err != nil {
			return nil, err
		}
		return SubExpression{Var: v}, nil
	}
	p, err := CompilePath(a.text)
	if err != nil {
		return nil, c.errorf(c.info(t).pos, "", "%v", err)
	}
	return PathParam{Path: p}, nil
}

func (c *compiler) args(e *tagExpr, t token) ([]Param, []HashParam, error) {
	var params []Param
	for _, a := range e.params {
		p, err := c.arg(a, t)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, p)
	}
	var hash []HashParam
	for _, h := range e.hash {
		p, err := c.arg(h.value, t)
		if err != nil {
			return nil, nil, err
		}
		hash = append(hash, HashParam{Key: h.key, Value: p})
	}
	return params, hash, nil
}

// checkHelper rejects a call with arguments to an unknown helper unless a
// helperMissing fallback is registered.
func (c *compiler) checkHelper(name string, argc int, pos Position) error {
	if argc == 0 || c.env == nil {
		return nil
	}
	if _, ok := c.env.Helpers.Lookup(name); ok {
		return nil
	}
	if _, ok := c.env.Helpers.Lookup(HelperMissing); ok {
		return nil
	}
	return c.errorf(pos, suggest(name, c.env.Helpers.Names()), "could not find helper: '%s'", name)
}

func (c *compiler) call(e *tagExpr, t token, kind TagKind) (*Variable, error) {
	path, err := c.namePath(e.name, t)
	if err != nil {
		return nil, err
	}
	params, hash, err := c.args(e, t)
	if err != nil {
		return nil, err
	}
	info := c.info(t)
	if err := c.checkHelper(path.Text, len(params)+len(hash), info.pos); err != nil {
		return nil, err
	}
	return &Variable{tagInfo: info, Name: path.Text, Path: path, Kind: kind, Params: params, Hash: hash}, nil
}

func (c *compiler) variable(n *parseNode) (*Variable, error) {
	kind := TagVar
	switch n.tok.kind {
	case tokAmp:
		kind = TagAmp
	case tokTriple:
		kind = TagTriple
	}
	v, err := c.call(n.expr, n.tok, kind)
	if err != nil {
		return nil, err
	}
	if len(v.Params) == 0 && len(v.Hash) == 0 && len(c.qualifiers) > 0 {
		if q := c.qualifiers[len(c.qualifiers)-1]; q != "" {
			v.Path = v.Path.qualify(q)
		}
	}
	return v, nil
}

// qualifierFor returns the block parameter that aliases the iteration or
// narrowed context inside an each/with body.
func qualifierFor(name string, blockParams []string) string {
	if (name == "each" || name == "with") && len(blockParams) > 0 {
		return blockParams[0]
	}
	return ""
}

func (c *compiler) block(n *parseNode) (*Block, error) {
	path, err := c.namePath(n.expr.name, n.tok)
	if err != nil {
		return nil, err
	}
	params, hash, err := c.args(n.expr, n.tok)
	if err != nil {
		return nil, err
	}
	info := c.info(n.tok)
	if err := c.checkHelper(path.Text, len(params)+len(hash), info.pos); err != nil {
		return nil, err
	}
	b := &Block{
		tagInfo:     info,
		Name:        path.Text,
		Path:        path,
		Inverted:    n.tok.kind == tokOpenInverse,
		Params:      params,
		Hash:        hash,
		BlockParams: n.expr.blockParams,
		closeInfo:   c.info(n.close),
	}
	c.qualifiers = append(c.qualifiers, qualifierFor(b.Name, b.BlockParams))
	b.Body, err = c.program(n.body, false)
	c.qualifiers = c.qualifiers[:len(c.qualifiers)-1]
	if err != nil {
		return nil, err
	}
	for _, clause := range n.elses {
		br, err := c.elseBranch(clause)
		if err != nil {
			return nil, err
		}
		b.ElseChain = append(b.ElseChain, br)
	}
	b.inverse = buildInverse(b.ElseChain)
	b.source = c.between(n.tok, n.close, n.elses)
	return b, nil
}

// between returns the source text of a block body, up to the first else tag
// or the close tag.
func (c *compiler) between(open, close token, elses []*elseClause) string {
	from := open.pos + len(open.raw)
	to := close.pos
	if len(elses) > 0 {
		to = elses[0].tok.pos
	}
	if from > to || to > len(c.src) {
		return ""
	}
	return c.src[from:to]
}

func (c *compiler) elseBranch(clause *elseClause) (ElseBranch, error) {
	br := ElseBranch{tagInfo: c.info(clause.tok), Label: "else"}
	if clause.tok.kind == tokOpenInverse {
		br.Label = "^"
	}
	qualifier := ""
	if clause.expr != nil {
		path, err := c.namePath(clause.expr.name, clause.tok)
		if err != nil {
			return br, err
		}
		params, hash, err := c.args(clause.expr, clause.tok)
		if err != nil {
			return br, err
		}
		if err := c.checkHelper(path.Text, len(params)+len(hash), br.pos); err != nil {
			return br, err
		}
		br.Guard, br.Params, br.Hash, br.BlockParams = path.Text, params, hash, clause.expr.blockParams
		qualifier = qualifierFor(br.Guard, br.BlockParams)
	}
	c.qualifiers = append(c.qualifiers, qualifier)
	body, err := c.program(clause.body, false)
	c.qualifiers = c.qualifiers[:len(c.qualifiers)-1]
	if err != nil {
		return br, err
	}
	br.Body = body
	return br, nil
}

// buildInverse turns an else ladder into the inverse program of its block:
// {{else if x}}A{{else}}B becomes {{#if x}}A{{else}}B{{/if}}.
func buildInverse(chain []ElseBranch) *Program {
	if len(chain) == 0 {
		return nil
	}
	br := chain[0]
	if br.Guard == "" {
		return br.Body
	}
	path, err := CompilePath(br.Guard)
	if err != nil {
		path = &Path{Text: br.Guard, Segments: []Segment{{Name: br.Guard, Bracketed: true}}}
	}
	guard := &Block{
		tagInfo:     br.tagInfo,
		Name:        br.Guard,
		Path:        path,
		Params:      br.Params,
		Hash:        br.Hash,
		BlockParams: br.BlockParams,
		Body:        br.Body,
		inverse:     buildInverse(chain[1:]),
	}
	return &Program{Nodes: []Node{guard}}
}

func (c *compiler) raw(n *parseNode) (*Block, error) {
	path, err := c.namePath(n.expr.name, n.tok)
	if err != nil {
		return nil, err
	}
	params, hash, err := c.args(n.expr, n.tok)
	if err != nil {
		return nil, err
	}
	info := c.info(n.tok)
	if err := c.checkHelper(path.Text, len(params)+len(hash), info.pos); err != nil {
		return nil, err
	}
	body := &Program{}
	if n.tok.rawBody != "" {
		body.Nodes = []Node{&Text{Content: n.tok.rawBody, pos: info.pos}}
	}
	return &Block{
		tagInfo: info,
		Name:    path.Text,
		Path:    path,
		Raw:     true,
		Params:  params,
		Hash:    hash,
		Body:    body,
		source:  n.tok.rawBody,
	}, nil
}

func (c *compiler) partial(n *parseNode) (*Partial, error) {
	info := c.info(n.tok)
	p := &Partial{tagInfo: info, Indent: n.tok.indent}
	switch a := n.expr.name; a.kind {
	case argSub:
		v, err := c.call(a.sub, n.tok, TagSubExpression)
		if err != nil {
			return nil, err
		}
		p.Name = SubExpression{Var: v}
	default:
		name := a.text
		if a.kind == argString {
			name = unquote(a.text)
		} else if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
			name = name[1 : len(name)-1]
		}
		if strings.HasPrefix(name, "/") {
			return nil, c.errorf(info.pos, "", "found: '/', partial shouldn't start with '/'")
		}
		p.Name = StringParam{Value: name, Raw: a.text}
	}
	params, hash, err := c.args(n.expr, n.tok)
	if err != nil {
		return nil, err
	}
	if len(params) > 1 {
		return nil, c.errorf(info.pos, "", "partial '%s' accepts a single context argument, got %d", p.Name, len(params))
	}
	if len(params) == 1 {
		p.Context = params[0]
	}
	p.Hash = hash
	if n.tok.kind == tokPartialBlock {
		body, err := c.program(n.body, false)
		if err != nil {
			return nil, err
		}
		p.Body = body
		p.closeInfo = c.info(n.close)
	}
	return p, nil
}

func (c *compiler) decorator(n *parseNode, root bool) (*DecoratorNode, error) {
	info := c.info(n.tok)
	name := n.expr.name.text
	if c.env != nil {
		if _, ok := c.env.Decorators.Lookup(name); !ok {
			return nil, c.errorf(info.pos, suggest(name, c.env.Decorators.Names()), "could not find decorator: '%s'", name)
		}
	}
	params, hash, err := c.args(n.expr, n.tok)
	if err != nil {
		return nil, err
	}
	d := &DecoratorNode{
		tagInfo:    info,
		Name:       name,
		Params:     params,
		Hash:       hash,
		BlockLevel: n.tok.kind == tokOpenDecorator,
		RootLevel:  root,
		Body:       &Program{},
	}
	if d.BlockLevel {
		d.closeInfo = c.info(n.close)
		if d.Body, err = c.program(n.body, false); err != nil {
			return nil, err
		}
	}
	d.body = &Template{Name: c.name, Program: d.Body, Delims: c.delims, source: c.src, env: c.env}
	return d, nil
}
