package handlebars

import (
	"strings"

	plexer "github.com/alecthomas/participle/v2/lexer"
)

// exprLexer tokenizes the interior of a tag: helper names, paths, literals,
// hash assignments, sub-expression parentheses and block params.
var exprLexer = plexer.MustSimple([]plexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?(?:[^\s()=|\]]*)`},
	{Name: "Path", Pattern: `@?(?:\[[^\]]*\]|[^\s!"#%&'()*+,;<=>@\[\\\]^` + "`" + `{|}~])+`},
	{Name: "Assign", Pattern: `=`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Pipe", Pattern: `\|`},
})

var exprSymbols = exprLexer.Symbols()

type exprTokenKind int

const (
	exprEOF exprTokenKind = iota
	exprString
	exprNumber
	exprPath
	exprAssign
	exprLParen
	exprRParen
	exprPipe
)

type exprToken struct {
	kind exprTokenKind
	val  string
	// off is the byte offset inside the tag interior.
	off int
}

func (k exprTokenKind) String() string {
	switch k {
	case exprString:
		return "string"
	case exprNumber:
		return "number"
	case exprPath:
		return "path"
	case exprAssign:
		return "="
	case exprLParen:
		return "("
	case exprRParen:
		return ")"
	case exprPipe:
		return "|"
	}
	return "EOF"
}

// lexExpr splits a tag interior into expression tokens. The returned slice
// always ends with exprEOF. On failure it returns the offset of the
// offending byte.
func lexExpr(src string) ([]exprToken, int, error) {
	lex, err := exprLexer.LexString("", src)
	if err != nil {
		return nil, 0, err
	}
	kinds := map[plexer.TokenType]exprTokenKind{
		exprSymbols["String"]: exprString,
		exprSymbols["Number"]: exprNumber,
		exprSymbols["Path"]:   exprPath,
		exprSymbols["Assign"]: exprAssign,
		exprSymbols["LParen"]: exprLParen,
		exprSymbols["RParen"]: exprRParen,
		exprSymbols["Pipe"]:   exprPipe,
	}
	ws := exprSymbols["Whitespace"]
	var out []exprToken
	for {
		t, err := lex.Next()
		if err != nil {
			if le, ok := err.(*plexer.Error); ok {
				return nil, le.Pos.Offset, err
			}
			return nil, len(src), err
		}
		if t.EOF() {
			return append(out, exprToken{kind: exprEOF, off: len(src)}), 0, nil
		}
		if t.Type == ws {
			continue
		}
		kind := kinds[t.Type]
		if kind == exprNumber && !isNumber(t.Value) {
			// 12abc is an identifier, not a number.
			kind = exprPath
		}
		out = append(out, exprToken{kind: kind, val: t.Value, off: t.Pos.Offset})
	}
}

func isNumber(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	dot := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '.' && !dot && i > 0 && i < len(s)-1:
			dot = true
		case s[i] >= '0' && s[i] <= '9':
		default:
			return false
		}
	}
	return true
}

// unquote strips the quotes of a string literal and resolves \" and \'.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	body := s[1 : len(s)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && (body[i+1] == q || body[i+1] == '\\') {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}
