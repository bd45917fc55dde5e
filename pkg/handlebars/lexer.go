package handlebars

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// The lexer scans template source with a pair of literal delimiters and
// yields one token per text line fragment and one token per tag. Tag
// interiors are tokenized later by the expression lexer.

// Delims is a pair of literal tag delimiters.
type Delims struct {
	Start string
	End   string
}

// DefaultDelims are the mustache braces.
var DefaultDelims = Delims{Start: "{{", End: "}}"}

type tokenKind int

const (
	tokEOF           tokenKind = iota
	tokText                    // literal text, at most one trailing newline
	tokVar                     // {{x}}
	tokTriple                  // {{{x}}}
	tokAmp                     // {{&x}}
	tokOpen                    // {{#x}}
	tokOpenInverse             // {{^x}}
	tokClose                   // {{/x}}
	tokPartial                 // {{>x}}
	tokPartialBlock            // {{#>x}}
	tokDecorator               // {{*x}}
	tokOpenDecorator           // {{#*x}}
	tokComment                 // {{!x}} or {{!--x--}}
	tokDelims                  // {{=a b=}}
	tokRaw                     // {{{{x}}}}...{{{{/x}}}}
)

var tokenNames = map[tokenKind]string{
	tokEOF:           "EOF",
	tokText:          "text",
	tokVar:           "variable",
	tokTriple:        "triple",
	tokAmp:           "ampersand",
	tokOpen:          "block",
	tokOpenInverse:   "inverse",
	tokClose:         "close",
	tokPartial:       "partial",
	tokPartialBlock:  "partial-block",
	tokDecorator:     "decorator",
	tokOpenDecorator: "block-decorator",
	tokComment:       "comment",
	tokDelims:        "delimiters",
	tokRaw:           "raw",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	// val is the literal text for tokText and the tag interior otherwise.
	val string
	// raw is the complete source text of a tag.
	raw       string
	delims    Delims
	trimLeft  bool
	trimRight bool
	pos       int
	line      int
	col       int

	// rawBody holds the literal content of a raw block.
	rawBody string

	// Set by the whitespace pass.
	hidden bool
	indent string
}

// isElse reports whether the tag is an else separator: {{else ...}} or {{^}}.
func (t token) isElse() bool {
	switch t.kind {
	case tokVar:
		s := strings.TrimSpace(t.val)
		return s == "else" || strings.HasPrefix(s, "else ") || strings.HasPrefix(s, "else\t") || strings.HasPrefix(s, "else\n")
	case tokOpenInverse:
		return strings.TrimSpace(t.val) == ""
	}
	return false
}

func (t token) isTag() bool { return t.kind != tokText && t.kind != tokEOF }

type lexer struct {
	name   string
	src    string
	i      int
	delims Delims
	lines  []int // byte offsets of line starts
}

func newLexer(name, src string, d Delims) *lexer {
	l := &lexer{name: name, src: src, delims: d, lines: []int{0}}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			l.lines = append(l.lines, i+1)
		}
	}
	return l
}

// position converts a byte offset to a 1-based line and rune column.
func (l *lexer) position(off int) (int, int) {
	n := sort.Search(len(l.lines), func(i int) bool { return l.lines[i] > off }) - 1
	if n < 0 {
		n = 0
	}
	col := utf8.RuneCountInString(l.src[l.lines[n]:off]) + 1
	return n + 1, col
}

func (l *lexer) errorf(off int, found, expected string) *SyntaxError {
	line, col := l.position(off)
	return &SyntaxError{
		Position: Position{Filename: l.name, Line: line, Column: col},
		Found:    found,
		Expected: expected,
		Evidence: evidence(l.src, line, col),
	}
}

// tokenize scans the whole source. The result always ends with tokEOF.
func tokenize(name, src string, d Delims) ([]token, error) {
	if d.Start == "" || d.End == "" {
		d = DefaultDelims
	}
	l := newLexer(name, src, d)
	var toks []token
	for {
		batch, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, batch...)
		if len(batch) > 0 && batch[len(batch)-1].kind == tokEOF {
			return toks, nil
		}
	}
}

// next returns the text fragments up to the next tag followed by that tag,
// or the trailing text followed by EOF.
func (l *lexer) next() ([]token, error) {
	if l.i >= len(l.src) {
		return []token{l.mark(token{kind: tokEOF}, l.i)}, nil
	}
	j := strings.Index(l.src[l.i:], l.delims.Start)
	if j < 0 {
		toks := l.text(l.i, len(l.src))
		l.i = len(l.src)
		return append(toks, l.mark(token{kind: tokEOF}, l.i)), nil
	}
	start := l.i + j
	toks := l.text(l.i, start)
	tag, err := l.tag(start)
	if err != nil {
		return nil, err
	}
	return append(toks, tag), nil
}

// text splits src[from:to] after every newline.
func (l *lexer) text(from, to int) []token {
	var out []token
	for from < to {
		k := strings.IndexByte(l.src[from:to], '\n')
		end := to
		if k >= 0 {
			end = from + k + 1
		}
		out = append(out, l.mark(token{kind: tokText, val: l.src[from:end]}, from))
		from = end
	}
	return out
}

func (l *lexer) mark(t token, off int) token {
	t.pos = off
	t.line, t.col = l.position(off)
	t.delims = l.delims
	return t
}

// tag scans the tag starting at off and advances past it.
func (l *lexer) tag(off int) (token, error) {
	d := l.delims
	if strings.HasPrefix(l.src[off:], d.Start+d.Start) {
		return l.rawBlock(off)
	}
	i := off + len(d.Start)
	t := token{}
	if i < len(l.src) && l.src[i] == '~' {
		t.trimLeft = true
		i++
	}
	closer := ""
	switch {
	case strings.HasPrefix(l.src[i:], "!"):
		return l.comment(off, i+1, t)
	case strings.HasPrefix(l.src[i:], "="):
		return l.delimChange(off, i+1, t)
	case strings.HasPrefix(l.src[i:], "{"):
		t.kind, closer = tokTriple, "}"
		i++
	case strings.HasPrefix(l.src[i:], "&"):
		t.kind = tokAmp
		i++
	case strings.HasPrefix(l.src[i:], "#>"):
		t.kind = tokPartialBlock
		i += 2
	case strings.HasPrefix(l.src[i:], "#*"):
		t.kind = tokOpenDecorator
		i += 2
	case strings.HasPrefix(l.src[i:], "#"):
		t.kind = tokOpen
		i++
	case strings.HasPrefix(l.src[i:], "^"):
		t.kind = tokOpenInverse
		i++
	case strings.HasPrefix(l.src[i:], "/"):
		t.kind = tokClose
		i++
	case strings.HasPrefix(l.src[i:], ">"):
		t.kind = tokPartial
		i++
	case strings.HasPrefix(l.src[i:], "*"):
		t.kind = tokDecorator
		i++
	default:
		t.kind = tokVar
	}
	inner, end, trim, ok := l.scanInterior(i, closer)
	if !ok {
		return token{}, l.errorf(len(l.src), "EOF", closer+d.End)
	}
	t.val = l.src[i:inner]
	t.trimRight = trim
	t.raw = l.src[off:end]
	t = l.mark(t, off)
	l.i = end
	return t, nil
}

// scanInterior finds the end of a tag interior starting at i. Quoted strings
// are skipped so they may contain the end delimiter. It returns the end of the
// interior, the end of the whole tag and whether a ~ preceded the closer.
func (l *lexer) scanInterior(i int, closer string) (int, int, bool, bool) {
	end := l.delims.End
	for k := i; k < len(l.src); k++ {
		c := l.src[k]
		if c == '"' || c == '\'' {
			if q := strings.IndexByte(l.src[k+1:], c); q >= 0 {
				k += q + 1
				continue
			}
			return 0, 0, false, false
		}
		rest := l.src[k:]
		if strings.HasPrefix(rest, closer+"~"+end) {
			return k, k + len(closer) + 1 + len(end), true, true
		}
		if strings.HasPrefix(rest, "~"+closer+end) {
			return k, k + 1 + len(closer) + len(end), true, true
		}
		if strings.HasPrefix(rest, closer+end) {
			return k, k + len(closer) + len(end), false, true
		}
	}
	return 0, 0, false, false
}

func (l *lexer) comment(off, i int, t token) (token, error) {
	end := l.delims.End
	t.kind = tokComment
	if strings.HasPrefix(l.src[i:], "--") {
		body := i + 2
		for k := body; k < len(l.src); k++ {
			rest := l.src[k:]
			if strings.HasPrefix(rest, "--~"+end) {
				t.val, t.trimRight = l.src[body:k], true
				return l.finish(t, off, k+3+len(end)), nil
			}
			if strings.HasPrefix(rest, "--"+end) {
				t.val = l.src[body:k]
				return l.finish(t, off, k+2+len(end)), nil
			}
		}
		return token{}, l.errorf(len(l.src), "EOF", "--"+end)
	}
	k := strings.Index(l.src[i:], end)
	if k < 0 {
		return token{}, l.errorf(len(l.src), "EOF", end)
	}
	stop := i + k
	if stop > i && l.src[stop-1] == '~' {
		t.trimRight = true
		t.val = l.src[i : stop-1]
	} else {
		t.val = l.src[i:stop]
	}
	return l.finish(t, off, stop+len(end)), nil
}

// delimChange handles {{=<% %>=}}. The new pair applies from the next token on.
func (l *lexer) delimChange(off, i int, t token) (token, error) {
	closer := "=" + l.delims.End
	k := strings.Index(l.src[i:], closer)
	if k < 0 {
		return token{}, l.errorf(len(l.src), "EOF", closer)
	}
	t.kind = tokDelims
	t.val = l.src[i : i+k]
	parts := strings.Fields(t.val)
	if len(parts) != 2 || strings.Contains(t.val, "=") {
		return token{}, l.errorf(i, strings.TrimSpace(t.val), "<start> <end>")
	}
	t = l.finish(t, off, i+k+len(closer))
	l.delims = Delims{Start: parts[0], End: parts[1]}
	return t, nil
}

// rawBlock scans {{{{name args}}}}content{{{{/name}}}}.
func (l *lexer) rawBlock(off int) (token, error) {
	d := l.delims
	open, close := d.Start+d.Start, d.End+d.End
	i := off + len(open)
	k := strings.Index(l.src[i:], close)
	if k < 0 {
		return token{}, l.errorf(len(l.src), "EOF", close)
	}
	t := token{kind: tokRaw, val: l.src[i : i+k]}
	name := strings.Fields(t.val)
	if len(name) == 0 {
		return token{}, l.errorf(i, close, "raw block name")
	}
	bodyStart := i + k + len(close)
	end := open + "/" + name[0] + close
	m := strings.Index(l.src[bodyStart:], end)
	if m < 0 {
		return token{}, l.errorf(len(l.src), "EOF", end)
	}
	t.rawBody = l.src[bodyStart : bodyStart+m]
	return l.finish(t, off, bodyStart+m+len(end)), nil
}

func (l *lexer) finish(t token, off, end int) token {
	t.raw = l.src[off:end]
	t = l.mark(t, off)
	l.i = end
	return t
}
