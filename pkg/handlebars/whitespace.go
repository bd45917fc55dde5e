package handlebars

import (
	"strings"
	"unicode"
)

// standaloneEligible reports whether a tag may make its line standalone.
// Interpolations never qualify.
func standaloneEligible(t token) bool {
	switch t.kind {
	case tokOpen, tokOpenInverse, tokClose, tokPartial, tokPartialBlock,
		tokDecorator, tokOpenDecorator, tokComment, tokDelims:
		return true
	case tokVar:
		return t.isElse()
	}
	return false
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// stripStandalone hides the whitespace around lines whose only content is
// one or more eligible tags. It is a single forward pass that keeps one
// pending line: tokens are accumulated until a text token that ends the line
// (or EOF) confirms the boundary, then the line's text is marked hidden.
func stripStandalone(toks []token) {
	lineStart := 0
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		endsLine := t.kind == tokEOF || (t.kind == tokText && strings.HasSuffix(t.val, "\n"))
		if !endsLine {
			continue
		}
		markStandalone(toks[lineStart : i+1])
		lineStart = i + 1
	}
}

func markStandalone(line []token) {
	tags := 0
	for _, t := range line {
		switch {
		case t.kind == tokText:
			if !isBlank(t.val) {
				return
			}
		case t.kind == tokEOF:
		case !standaloneEligible(t):
			return
		default:
			tags++
		}
	}
	if tags == 0 {
		return
	}
	var indent strings.Builder
	seenTag := false
	for i := range line {
		switch {
		case line[i].kind == tokText:
			if !seenTag {
				indent.WriteString(line[i].val)
			}
			line[i].hidden = true
		case line[i].kind == tokPartial && !seenTag:
			line[i].indent = indent.String()
			seenTag = true
		case line[i].isTag():
			seenTag = true
		}
	}
}

// applyTrimMarkers strips whitespace next to tags carrying ~ markers. It runs
// independently of line structure.
func applyTrimMarkers(toks []token) {
	for i := range toks {
		t := toks[i]
		if !t.isTag() {
			continue
		}
		if t.trimLeft {
			for k := i - 1; k >= 0 && toks[k].kind == tokText; k-- {
				if toks[k].hidden {
					continue
				}
				toks[k].val = strings.TrimRightFunc(toks[k].val, unicode.IsSpace)
				if toks[k].val != "" {
					break
				}
			}
		}
		if t.trimRight {
			for k := i + 1; k < len(toks) && toks[k].kind == tokText; k++ {
				if toks[k].hidden {
					continue
				}
				toks[k].val = strings.TrimLeftFunc(toks[k].val, unicode.IsSpace)
				if toks[k].val != "" {
					break
				}
			}
		}
	}
}

// visible drops hidden and emptied text tokens.
func visible(toks []token) []token {
	out := toks[:0:0]
	for _, t := range toks {
		if t.kind == tokText && (t.hidden || t.val == "") {
			continue
		}
		out = append(out, t)
	}
	return out
}

// indentLines prefixes every line of src with indent. A trailing newline
// does not start a new line. Indents that aren't pure whitespace are ignored.
func indentLines(src, indent string) string {
	if indent == "" || !isBlank(indent) {
		return src
	}
	var b strings.Builder
	b.Grow(len(src) + len(indent))
	b.WriteString(indent)
	for i := 0; i < len(src); i++ {
		b.WriteByte(src[i])
		if src[i] == '\n' && i < len(src)-1 {
			b.WriteString(indent)
		}
	}
	return b.String()
}
