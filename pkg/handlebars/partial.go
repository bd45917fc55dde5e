package handlebars

import (
	"fmt"
	"io"
	"slices"
)

// PartialBlockName is the reserved partial that renders the body of the
// enclosing {{#> partial}} call.
const PartialBlockName = "@partial-block"

func (st *renderState) definePartial(name string, t *Template) {
	if len(st.inline) == 0 {
		st.inline = append(st.inline, nil)
	}
	top := len(st.inline) - 1
	if st.inline[top] == nil {
		st.inline[top] = map[string]*inlinePartial{}
	}
	st.inline[top][name] = &inlinePartial{name: name, tmpl: t}
}

func (st *renderState) inlinePartial(name string) (*Template, bool) {
	for i := len(st.inline) - 1; i >= 0; i-- {
		if p, ok := st.inline[i][name]; ok {
			return p.tmpl, true
		}
	}
	return nil, false
}

func (st *renderState) partialName(p *Partial, s Scope) (string, error) {
	switch n := p.Name.(type) {
	case StringParam:
		return n.Value, nil
	case SubExpression:
		v, err := st.value(io.Discard, n.Var, s)
		if err != nil {
			return "", err
		}
		name, _ := toString(v)
		return name, nil
	}
	return "", fmt.Errorf("invalid partial name %v", p.Name)
}

func (st *renderState) partial(w io.Writer, p *Partial, s Scope) error {
	name, err := st.partialName(p, s)
	if err != nil {
		return err
	}
	ps := s
	if p.Context != nil || len(p.Hash) > 0 {
		model := s.Model()
		if p.Context != nil {
			if model, err = st.eval(p.Context, s); err != nil {
				return err
			}
		}
		attrs := make(map[string]any, len(p.Hash))
		for _, h := range p.Hash {
			v, err := st.eval(h.Value, s)
			if err != nil {
				return err
			}
			attrs[h.Key] = v
		}
		ps = st.push(s, model)
		ps.f().attrs = attrs
		defer st.pop(ps)
	}
	if name == PartialBlockName {
		return st.renderPartialBlock(w, p, ps)
	}
	tmpl, id, err := st.lookupPartial(name, p.Indent)
	if err != nil {
		return err
	}
	if tmpl == nil {
		if p.Body != nil {
			return st.renderProgram(w, p.Body, ps)
		}
		return &MissingPartialError{
			Position:   p.pos,
			Name:       name,
			Suggestion: suggest(name, st.partialNames()),
			Evidence:   evidence(st.source(), p.pos.Line, p.pos.Column),
		}
	}
	if !st.env.AllowInfiniteLoops && slices.ContainsFunc(st.calls, func(c partialCall) bool { return c.name == id }) {
		stack := make([]string, 0, len(st.calls))
		for i := len(st.calls) - 1; i >= 0; i-- {
			stack = append(stack, st.calls[i].String())
		}
		return &RecursionError{
			Position: p.pos,
			Name:     id,
			Stack:    stack,
			Evidence: evidence(st.source(), p.pos.Line, p.pos.Column),
		}
	}

	if p.Body != nil && len(p.Body.decorators) > 0 {
		// Inline partials declared in the block body override the ones the
		// called partial falls back to.
		st.inline = append(st.inline, nil)
		defer func() { st.inline = st.inline[:len(st.inline)-1] }()
		if err := st.decorate(w, p.Body, ps); err != nil {
			return err
		}
	}
	savedCalls, savedBlock := st.calls, st.pblock
	if p.Body != nil {
		st.pblock = &partialBlock{body: p.Body, tmpl: st.current, parent: st.pblock, depth: len(st.calls)}
	}
	st.calls = append(st.calls, partialCall{name: id, pos: p.pos})
	st.env.logger().Debug("rendering partial", "name", name, "id", id, "depth", len(st.calls))
	err = st.renderTemplate(w, tmpl, ps)
	st.calls, st.pblock = savedCalls, savedBlock
	return err
}

func (c partialCall) String() string {
	if c.pos.Line == 0 {
		return c.name
	}
	return fmt.Sprintf("%s (%s)", c.name, c.pos)
}

// renderPartialBlock renders the body handed to the innermost enclosing
// partial call. The invocation stack is cut back to the call site so the
// body may call the same partial again.
func (st *renderState) renderPartialBlock(w io.Writer, p *Partial, s Scope) error {
	pb := st.pblock
	if pb == nil {
		if p.Body != nil {
			return st.renderProgram(w, p.Body, s)
		}
		return &MissingPartialError{
			Position: p.pos,
			Name:     PartialBlockName,
			Evidence: evidence(st.source(), p.pos.Line, p.pos.Column),
		}
	}
	savedCalls, savedBlock, savedCurrent := st.calls, st.pblock, st.current
	st.calls = st.calls[:pb.depth:pb.depth]
	st.pblock, st.current = pb.parent, pb.tmpl
	// The body's decorators already ran before the enclosing partial.
	err := st.renderNodes(w, pb.body, s)
	st.calls, st.pblock, st.current = savedCalls, savedBlock, savedCurrent
	return err
}

// lookupPartial finds a partial by name: inline partials first, innermost
// definition winning, then the loader. A nil template means not found.
func (st *renderState) lookupPartial(name, indent string) (*Template, string, error) {
	if t, ok := st.inlinePartial(name); ok {
		return t, name, nil
	}
	if st.env.Loader == nil {
		return nil, "", nil
	}
	id, err := st.env.Loader.Resolve(name)
	if err != nil {
		if IsNotFound(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	t, err := st.env.loadTemplate(id, indent)
	if err != nil {
		if IsNotFound(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return t, id, nil
}

// partialNames lists candidates for "did you mean" suggestions.
func (st *renderState) partialNames() []string {
	var names []string
	for _, layer := range st.inline {
		for name := range layer {
			names = append(names, name)
		}
	}
	if l, ok := st.env.Loader.(Lister); ok {
		if more, err := l.List(); err == nil {
			names = append(names, more...)
		}
	}
	return names
}
