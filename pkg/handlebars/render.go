package handlebars

import (
	"fmt"
	"io"
	"strings"
)

// renderTemplate renders t as the current template: positions in errors and
// lambda expansion refer to its source.
func (st *renderState) renderTemplate(w io.Writer, t *Template, s Scope) error {
	prev := st.current
	st.current = t
	defer func() { st.current = prev }()
	return st.renderProgram(w, t.Program, s)
}

func (st *renderState) renderProgram(w io.Writer, p *Program, s Scope) error {
	if p == nil {
		return nil
	}
	if len(p.decorators) > 0 {
		st.inline = append(st.inline, nil)
		defer func() { st.inline = st.inline[:len(st.inline)-1] }()
		if err := st.decorate(w, p, s); err != nil {
			return err
		}
	}
	return st.renderNodes(w, p, s)
}

// renderNodes renders the nodes of p without running its decorators.
func (st *renderState) renderNodes(w io.Writer, p *Program, s Scope) error {
	for _, n := range p.Nodes {
		var err error
		switch n := n.(type) {
		case *Text:
			_, err = io.WriteString(w, n.Content)
		case *Variable:
			err = st.variable(w, n, s)
		case *Block:
			err = st.block(w, n, s)
		case *Partial:
			err = st.partial(w, n, s)
		case *DecoratorNode:
			continue
		default:
			err = fmt.Errorf("unhandled node type: %T", n)
		}
		if err != nil {
			return wrapRenderError(err, n.Pos(), st.source())
		}
	}
	return nil
}

func (st *renderState) source() string {
	if st.current == nil {
		return ""
	}
	return st.current.source
}

// decorate runs the decorators of p. Root-level decorators see an isolated
// copy of the scope chain; nested ones share the enclosing chain.
func (st *renderState) decorate(w io.Writer, p *Program, s Scope) error {
	for _, d := range p.decorators {
		fn, ok := st.env.Decorators.Lookup(d.Name)
		if !ok {
			return &CompileError{
				Position:   d.pos,
				Reason:     fmt.Sprintf("could not find decorator: '%s'", d.Name),
				Suggestion: suggest(d.Name, st.env.Decorators.Names()),
				Evidence:   evidence(st.source(), d.pos.Line, d.pos.Column),
			}
		}
		ds := s
		if d.RootLevel {
			ds = st.isolate(s)
		}
		opts, err := st.options(w, d.Name, TagSection, d.Params, d.Hash, ds)
		if err == nil {
			opts.fn = d.Body
			err = fn(d.body, opts)
		}
		if d.RootLevel {
			st.pop(ds)
		}
		if err != nil {
			return wrapRenderError(err, d.pos, st.source())
		}
	}
	return nil
}

func (st *renderState) options(w io.Writer, name string, kind TagKind, params []Param, hash []HashParam, s Scope) (*Options, error) {
	o := &Options{st: st, w: w, name: name, kind: kind, scope: s}
	for _, p := range params {
		v, err := st.eval(p, s)
		if err != nil {
			return nil, err
		}
		o.params = append(o.params, v)
	}
	o.hash = make(map[string]any, len(hash))
	for _, h := range hash {
		v, err := st.eval(h.Value, s)
		if err != nil {
			return nil, err
		}
		o.hash[h.Key] = v
	}
	return o, nil
}

// eval computes the value of a parameter. Unresolved paths are nil.
func (st *renderState) eval(p Param, s Scope) (any, error) {
	switch p := p.(type) {
	case StringParam:
		return p.Value, nil
	case NumberParam:
		return p.Value, nil
	case BoolParam:
		return bool(p), nil
	case PathParam:
		v, _ := s.Resolve(p.Path)
		return v, nil
	case SubExpression:
		return st.value(io.Discard, p.Var, s)
	}
	return nil, fmt.Errorf("unknown parameter %T", p)
}

// helperFor returns the helper bound to a tag. Only single-name paths can
// name a helper; calls with arguments fall back to helperMissing.
func (st *renderState) helperFor(name string, path *Path, argc int) (Helper, bool) {
	if path.Simple() {
		if h, ok := st.env.Helpers.Lookup(name); ok {
			return h, true
		}
	}
	if argc > 0 {
		return st.env.Helpers.Lookup(HelperMissing)
	}
	return nil, false
}

// value computes the raw value of an interpolation or sub-expression.
func (st *renderState) value(w io.Writer, v *Variable, s Scope) (any, error) {
	if h, ok := st.helperFor(v.Name, v.Path, len(v.Params)+len(v.Hash)); ok {
		opts, err := st.options(w, v.Name, v.Kind, v.Params, v.Hash, s)
		if err != nil {
			return nil, err
		}
		opts.delims = v.delims
		ctx := s.Model()
		if len(opts.params) > 0 {
			ctx = opts.params[0]
		}
		return h(ctx, opts)
	}
	val, ok := s.Resolve(v.Path)
	if !ok {
		if st.env.Missing != nil {
			return st.env.Missing(v.Name)
		}
		st.env.logger().Debug("missing value", "name", v.Name, "pos", v.pos.String())
		return nil, nil
	}
	if fn, ok := asLambda(val); ok {
		// Interpolated lambdas parse with the engine delimiters, sections
		// with the delimiters in effect at the tag.
		return st.expandLambda(fn, "", st.env.delims(), s)
	}
	return val, nil
}

func asLambda(v any) (Lambda, bool) {
	switch fn := v.(type) {
	case Lambda:
		return fn, true
	case func(any, string) (any, error):
		return fn, true
	}
	return nil, false
}

// expandLambda calls fn and, when it returns a string, compiles the result
// with the delimiters of the calling tag and renders it in s.
func (st *renderState) expandLambda(fn Lambda, text string, d Delims, s Scope) (any, error) {
	out, err := fn(s.Model(), text)
	if err != nil {
		return nil, err
	}
	src, ok := out.(string)
	if !ok {
		return out, nil
	}
	name := ""
	if st.current != nil {
		name = st.current.Name
	}
	t, err := st.env.CompileNamed(name, src, d)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	if err := st.renderTemplate(&b, t, s); err != nil {
		return nil, err
	}
	return b.String(), nil
}

func (st *renderState) variable(w io.Writer, v *Variable, s Scope) error {
	val, err := st.value(w, v, s)
	if err != nil {
		return err
	}
	val = st.format(val)
	out, safe := toString(val)
	if v.Kind.Escaped() && !safe {
		out = st.env.escaper().Escape(out)
	}
	_, err = io.WriteString(w, out)
	return err
}

// format runs the formatter chain.
func (st *renderState) format(v any) any {
	fs := st.env.Formatters
	var next func(int, any) any
	next = func(i int, v any) any {
		if i >= len(fs) {
			return v
		}
		return fs[i](v, func(x any) any { return next(i+1, x) })
	}
	return next(0, v)
}

func (st *renderState) block(w io.Writer, b *Block, s Scope) error {
	h, ok := st.helperFor(b.Name, b.Path, len(b.Params)+len(b.Hash))
	if b.Raw && !ok {
		_, err := io.WriteString(w, b.source)
		return err
	}
	opts, err := st.options(w, b.Name, TagSection, b.Params, b.Hash, s)
	if err != nil {
		return err
	}
	opts.blockParams = b.BlockParams
	opts.fn, opts.inverse = b.Body, b.inverse
	opts.source, opts.delims = b.source, b.delims
	if b.Inverted {
		opts.fn, opts.inverse = opts.inverse, opts.fn
	}
	var out any
	if ok {
		ctx := s.Model()
		if len(opts.params) > 0 {
			ctx = opts.params[0]
		}
		out, err = h(ctx, opts)
	} else {
		out, err = st.section(b, opts, s)
	}
	if err != nil {
		return err
	}
	str, _ := toString(out)
	_, err = io.WriteString(w, str)
	return err
}

// section applies the built-in behavior of a block without a helper, chosen
// from the runtime shape of its value.
func (st *renderState) section(b *Block, opts *Options, s Scope) (any, error) {
	val, _ := s.Resolve(b.Path)
	switch decideBlock(categorize(val), b.Inverted) {
	case behaveUnless:
		// fn and inverse are already swapped for inverted sections.
		if IsEmpty(val) {
			return opts.Inverse()
		}
		return opts.Fn()
	case behaveEach:
		return eachHelper(val, opts)
	case behaveIf:
		return opts.Fn()
	case behaveWith:
		return opts.FnWith(val, val)
	case behaveLambda:
		fn, _ := asLambda(val)
		return st.expandLambda(fn, b.source, b.delims, s)
	}
	return opts.Inverse()
}
