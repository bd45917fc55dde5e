package handlebars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []token) []tokenKind {
	out := make([]tokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.kind
	}
	return out
}

func TestTokenizeSplitsTextAtNewlines(t *testing.T) {
	toks, err := tokenize("", "a\nb{{x}}c", DefaultDelims)
	require.NoError(t, err)
	assert.Equal(t, []tokenKind{tokText, tokText, tokVar, tokText, tokEOF}, kinds(toks))
	assert.Equal(t, "a\n", toks[0].val)
	assert.Equal(t, "b", toks[1].val)
	assert.Equal(t, "x", toks[2].val)
	assert.Equal(t, 2, toks[2].line)
	assert.Equal(t, 2, toks[2].col)
}

func TestTokenizeTagKinds(t *testing.T) {
	tests := []struct {
		src  string
		kind tokenKind
		val  string
	}{
		{"{{x}}", tokVar, "x"},
		{"{{{x}}}", tokTriple, "x"},
		{"{{&x}}", tokAmp, "x"},
		{"{{#x}}", tokOpen, "x"},
		{"{{^x}}", tokOpenInverse, "x"},
		{"{{/x}}", tokClose, "x"},
		{"{{>x}}", tokPartial, "x"},
		{"{{#>x}}", tokPartialBlock, "x"},
		{"{{*x}}", tokDecorator, "x"},
		{"{{#*x}}", tokOpenDecorator, "x"},
		{"{{! note }}", tokComment, " note "},
		{"{{!-- a }} b --}}", tokComment, " a }} b "},
		{"{{x \"}}\"}}", tokVar, "x \"}}\""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks, err := tokenize("", tt.src, DefaultDelims)
			require.NoError(t, err)
			require.Len(t, toks, 2)
			assert.Equal(t, tt.kind, toks[0].kind)
			assert.Equal(t, tt.val, toks[0].val)
			assert.Equal(t, tt.src, toks[0].raw)
		})
	}
}

func TestTokenizeTrimMarkers(t *testing.T) {
	toks, err := tokenize("", "{{~x~}}{{~{y}~}}", DefaultDelims)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	for _, tok := range toks[:2] {
		assert.True(t, tok.trimLeft)
		assert.True(t, tok.trimRight)
	}
	assert.Equal(t, "x", toks[0].val)
	assert.Equal(t, tokTriple, toks[1].kind)
	assert.Equal(t, "y", toks[1].val)
}

func TestTokenizeDelimiterChange(t *testing.T) {
	toks, err := tokenize("", "{{=<% %>=}}<% x %>{{y}}", DefaultDelims)
	require.NoError(t, err)
	assert.Equal(t, []tokenKind{tokDelims, tokVar, tokText, tokEOF}, kinds(toks))
	assert.Equal(t, " x ", toks[1].val)
	assert.Equal(t, Delims{Start: "<%", End: "%>"}, toks[1].delims)
	assert.Equal(t, "{{y}}", toks[2].val)
}

func TestTokenizeRawBlock(t *testing.T) {
	toks, err := tokenize("", "{{{{raw}}}} {{x}} {{{{/raw}}}}", DefaultDelims)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, tokRaw, toks[0].kind)
	assert.Equal(t, "raw", toks[0].val)
	assert.Equal(t, " {{x}} ", toks[0].rawBody)
}

func TestTokenizeErrors(t *testing.T) {
	for _, src := range []string{
		"{{x",
		"hello\n{{#each items}",
		"{{!-- open",
		"{{=<% %>",
		"{{=a=b c=}}",
		"{{{{raw}}}} never closed",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := tokenize("t.hbs", src, DefaultDelims)
			var syn *SyntaxError
			require.ErrorAs(t, err, &syn)
			assert.Equal(t, "t.hbs", syn.Filename)
			assert.NotEmpty(t, syn.Expected)
		})
	}
}

func TestLexExpr(t *testing.T) {
	toks, _, err := lexExpr(`each ../items "a b" 1.5 -2 key=val (sub x) as |a b|`)
	require.NoError(t, err)
	var got []exprTokenKind
	for _, tk := range toks {
		got = append(got, tk.kind)
	}
	assert.Equal(t, []exprTokenKind{
		exprPath, exprPath, exprString, exprNumber, exprNumber,
		exprPath, exprAssign, exprPath,
		exprLParen, exprPath, exprPath, exprRParen,
		exprPath, exprPipe, exprPath, exprPath, exprPipe,
		exprEOF,
	}, got)
	assert.Equal(t, "../items", toks[1].val)
	assert.Equal(t, `"a b"`, toks[2].val)
}

func TestUnquote(t *testing.T) {
	assert.Equal(t, "a b", unquote(`"a b"`))
	assert.Equal(t, `say "hi"`, unquote(`"say \"hi\""`))
	assert.Equal(t, "it's", unquote(`'it\'s'`))
}
