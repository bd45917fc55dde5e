package handlebars

import (
	"bytes"
	"fmt"
	"strings"
)

type Visitor interface {
	Visit(n Node) error
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(n Node) error

func (f VisitorFunc) Visit(n Node) error { return f(n) }

// Walk visits n and then its children depth-first, in source order.
func Walk(v Visitor, n Node) error {
	if err := v.Visit(n); err != nil {
		return err
	}
	switch t := n.(type) {
	case *Block:
		if err := walkProgram(v, t.Body); err != nil {
			return err
		}
		for _, br := range t.ElseChain {
			if err := walkProgram(v, br.Body); err != nil {
				return err
			}
		}
	case *Partial:
		return walkProgram(v, t.Body)
	case *DecoratorNode:
		return walkProgram(v, t.Body)
	}
	return nil
}

func walkProgram(v Visitor, p *Program) error {
	if p == nil {
		return nil
	}
	for _, n := range p.Nodes {
		if err := Walk(v, n); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every node of the template.
func (t *Template) Walk(v Visitor) error { return walkProgram(v, t.Program) }

// Pretty returns a line-oriented string representation of the tree.
func Pretty(t *Template) string {
	var buf bytes.Buffer
	name := t.Name
	if name == "" {
		name = "inline"
	}
	fmt.Fprintf(&buf, "Template(%s)\n", name)
	ppProgram(&buf, 2, t.Program)
	return buf.String()
}

func ppProgram(buf *bytes.Buffer, indent int, p *Program) {
	if p == nil {
		return
	}
	for _, n := range p.Nodes {
		ppNode(buf, indent, n)
	}
}

func ppNode(buf *bytes.Buffer, indent int, n Node) {
	ind := strings.Repeat(" ", indent)
	switch t := n.(type) {
	case *Text:
		fmt.Fprintf(buf, "%sText(%q)\n", ind, t.Content)
	case *Variable:
		fmt.Fprintf(buf, "%sVariable[%s](%s)\n", ind, t.Kind, callText(t.Name, t.Params, t.Hash, nil))
	case *Block:
		kind := "Block"
		switch {
		case t.Raw:
			kind = "Raw"
		case t.Inverted:
			kind = "Inverted"
		}
		fmt.Fprintf(buf, "%s%s(%s)\n", ind, kind, callText(t.Name, t.Params, t.Hash, t.BlockParams))
		ppProgram(buf, indent+2, t.Body)
		for _, br := range t.ElseChain {
			if br.Guard != "" {
				fmt.Fprintf(buf, "%sElse(%s)\n", ind, callText(br.Guard, br.Params, br.Hash, br.BlockParams))
			} else {
				fmt.Fprintf(buf, "%sElse\n", ind)
			}
			ppProgram(buf, indent+2, br.Body)
		}
	case *Partial:
		kind := "Partial"
		if t.Body != nil {
			kind = "PartialBlock"
		}
		fmt.Fprintf(buf, "%s%s(%s)", ind, kind, partialText(t))
		if t.Indent != "" {
			fmt.Fprintf(buf, " indent=%q", t.Indent)
		}
		buf.WriteByte('\n')
		ppProgram(buf, indent+2, t.Body)
	case *DecoratorNode:
		fmt.Fprintf(buf, "%sDecorator(%s)\n", ind, callText(t.Name, t.Params, t.Hash, nil))
		if t.BlockLevel {
			ppProgram(buf, indent+2, t.Body)
		}
	}
}

// callText renders a call expression: name params hash [as |params|].
func callText(name string, params []Param, hash []HashParam, blockParams []string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, p := range params {
		b.WriteByte(' ')
		b.WriteString(p.String())
	}
	for _, h := range hash {
		fmt.Fprintf(&b, " %s=%s", h.Key, h.Value.String())
	}
	if len(blockParams) > 0 {
		fmt.Fprintf(&b, " as |%s|", strings.Join(blockParams, " "))
	}
	return b.String()
}

func partialText(p *Partial) string {
	var params []Param
	if p.Context != nil {
		params = append(params, p.Context)
	}
	return callText(p.Name.String(), params, p.Hash, nil)
}

// Text reconstructs the template source from the tree. Tags keep the
// delimiters they were written with; delimiter changes are re-emitted where
// needed. Whitespace removed by standalone stripping is not restored.
func (t *Template) Text() string {
	t.textOnce.Do(func() {
		w := &textWriter{delims: t.Delims}
		if w.delims.Start == "" {
			w.delims = DefaultDelims
		}
		w.program(t.Program)
		t.text = w.b.String()
	})
	return t.text
}

type textWriter struct {
	b      strings.Builder
	delims Delims
}

func (w *textWriter) switchTo(d Delims) {
	if d.Start == "" || d == w.delims {
		return
	}
	fmt.Fprintf(&w.b, "%s=%s %s=%s", w.delims.Start, d.Start, d.End, w.delims.End)
	w.delims = d
}

// tag writes one tag with the delimiters of info. sigil follows the opening
// delimiter and the optional trim marker; closer precedes the closing one.
func (w *textWriter) tag(info tagInfo, sigil, body, closer string) {
	w.switchTo(info.delims)
	w.b.WriteString(w.delims.Start)
	if info.trimLeft {
		w.b.WriteByte('~')
	}
	w.b.WriteString(sigil)
	w.b.WriteString(body)
	w.b.WriteString(closer)
	if info.trimRight {
		w.b.WriteByte('~')
	}
	w.b.WriteString(w.delims.End)
}

func (w *textWriter) program(p *Program) {
	if p == nil {
		return
	}
	for _, n := range p.Nodes {
		w.node(n)
	}
}

func (w *textWriter) node(n Node) {
	switch t := n.(type) {
	case *Text:
		w.b.WriteString(t.Content)
	case *Variable:
		call := callText(t.Name, t.Params, t.Hash, nil)
		switch t.Kind {
		case TagTriple:
			w.tag(t.tagInfo, "{", call, "}")
		case TagAmp:
			w.tag(t.tagInfo, "&", call, "")
		default:
			w.tag(t.tagInfo, "", call, "")
		}
	case *Block:
		w.block(t)
	case *Partial:
		if t.Body == nil {
			w.tag(t.tagInfo, "> ", partialText(t), "")
			return
		}
		w.tag(t.tagInfo, "#> ", partialText(t), "")
		w.program(t.Body)
		w.tag(t.closeInfo, "/", t.Name.String(), "")
	case *DecoratorNode:
		call := callText(t.Name, t.Params, t.Hash, nil)
		if !t.BlockLevel {
			w.tag(t.tagInfo, "*", call, "")
			return
		}
		w.tag(t.tagInfo, "#*", call, "")
		w.program(t.Body)
		w.tag(t.closeInfo, "/", t.Name, "")
	}
}

func (w *textWriter) block(b *Block) {
	call := callText(b.Name, b.Params, b.Hash, b.BlockParams)
	if b.Raw {
		w.switchTo(b.delims)
		fmt.Fprintf(&w.b, "%s%s%s%s%s", w.delims.Start, w.delims.Start, call, w.delims.End, w.delims.End)
		w.b.WriteString(b.source)
		fmt.Fprintf(&w.b, "%s%s/%s%s%s", w.delims.Start, w.delims.Start, b.Name, w.delims.End, w.delims.End)
		return
	}
	sigil := "#"
	if b.Inverted {
		sigil = "^"
	}
	w.tag(b.tagInfo, sigil, call, "")
	w.program(b.Body)
	for _, br := range b.ElseChain {
		switch {
		case br.Guard != "":
			w.tag(br.tagInfo, "", "else "+callText(br.Guard, br.Params, br.Hash, br.BlockParams), "")
		case br.Label == "^":
			w.tag(br.tagInfo, "^", "", "")
		default:
			w.tag(br.tagInfo, "", "else", "")
		}
		w.program(br.Body)
	}
	w.tag(b.closeInfo, "/", b.Name, "")
}
