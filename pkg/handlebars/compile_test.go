package handlebars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCoalescesText(t *testing.T) {
	tmpl, err := Compile("a\nb\nc{{! dropped }}d")
	require.NoError(t, err)
	require.Len(t, tmpl.Program.Nodes, 1)
	assert.Equal(t, "a\nb\ncd", tmpl.Program.Nodes[0].(*Text).Content)
}

func TestCompileTaglessTemplateIsIdentity(t *testing.T) {
	for _, src := range []string{"", "plain", "line one\n  line two\n\n", "{ not a tag }"} {
		tmpl, err := Compile(src)
		require.NoError(t, err)
		out, err := tmpl.Execute(nil)
		require.NoError(t, err)
		assert.Equal(t, src, out)
	}
}

func TestCompileClassifiesParams(t *testing.T) {
	tmpl, err := Compile(`{{lookup obj "k" 3 2.5 true (lookup a b) key=../x}}`)
	require.NoError(t, err)
	v := tmpl.Program.Nodes[0].(*Variable)
	assert.Equal(t, "lookup", v.Name)
	require.Len(t, v.Params, 6)
	assert.IsType(t, PathParam{}, v.Params[0])
	assert.Equal(t, StringParam{Value: "k", Raw: `"k"`}, v.Params[1])
	assert.Equal(t, NumberParam{Value: int64(3), Raw: "3"}, v.Params[2])
	assert.Equal(t, NumberParam{Value: 2.5, Raw: "2.5"}, v.Params[3])
	assert.Equal(t, BoolParam(true), v.Params[4])
	assert.IsType(t, SubExpression{}, v.Params[5])
	require.Len(t, v.Hash, 1)
	assert.Equal(t, "key", v.Hash[0].Key)
	assert.Equal(t, 1, v.Hash[0].Value.(PathParam).Path.Up)
}

func TestCompileBlockStructure(t *testing.T) {
	tmpl, err := Compile("{{#each items as |item i|}}{{item.name}}{{else if other}}o{{else}}none{{/each}}")
	require.NoError(t, err)
	b := tmpl.Program.Nodes[0].(*Block)
	assert.Equal(t, "each", b.Name)
	assert.Equal(t, []string{"item", "i"}, b.BlockParams)
	require.Len(t, b.ElseChain, 2)
	assert.Equal(t, "if", b.ElseChain[0].Guard)
	assert.Equal(t, "", b.ElseChain[1].Guard)

	v := b.Body.Nodes[0].(*Variable)
	assert.Equal(t, "item.name", v.Name)
	assert.True(t, v.Path.This, "block param head is rewritten to this")
	assert.Equal(t, "name", v.Path.Head())

	require.NotNil(t, b.inverse)
	guard := b.inverse.Nodes[0].(*Block)
	assert.Equal(t, "if", guard.Name)
	assert.NotNil(t, guard.inverse)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		found    string
		expected string
	}{
		{"mismatched close", "{{#a}}x{{/b}}", "b", "a"},
		{"unclosed block", "{{#a}}x", "EOF", "{{/a}}"},
		{"stray close", "x{{/a}}", "{{/a}}", "EOF"},
		{"else after else", "{{#a}}{{else}}{{else}}{{/a}}", "{{else}}", "{{/a}}"},
		{"hash before param", "{{x a=1 b}}", "b", "hash"},
		{"empty tag", "{{}}", "}}", "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			var syn *SyntaxError
			require.ErrorAs(t, err, &syn)
			assert.Equal(t, tt.found, syn.Found)
			assert.Equal(t, tt.expected, syn.Expected)
		})
	}
}

func TestCompileRejectsUnknownHelper(t *testing.T) {
	_, err := Compile("line\n  {{eahc items}}")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "could not find helper: 'eahc'", ce.Reason)
	assert.Equal(t, "each", ce.Suggestion)
	assert.Equal(t, 2, ce.Line)
	assert.Equal(t, 3, ce.Column)
	assert.Contains(t, ce.Evidence, "  ^")
}

func TestCompileAcceptsUnknownHelperWithHelperMissing(t *testing.T) {
	e := NewEngine()
	e.Helpers = e.Helpers.With(HelperMissing, func(_ any, opts *Options) (any, error) {
		return "missing:" + opts.Name(), nil
	})
	tmpl, err := e.Compile("{{foo 1}}")
	require.NoError(t, err)
	out, err := tmpl.Execute(nil)
	require.NoError(t, err)
	assert.Equal(t, "missing:foo", out)
}

func TestCompileRejectsUnknownDecorator(t *testing.T) {
	_, err := Compile("{{* nope}}")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "nope")
}

func TestCompilePartialNames(t *testing.T) {
	tmpl, err := Compile(`{{> a}}{{> "b c"}}{{> [d e]}}{{> (lookup . "n")}}`)
	require.NoError(t, err)
	names := []string{}
	for _, n := range tmpl.Program.Nodes {
		names = append(names, n.(*Partial).Name.String())
	}
	assert.Equal(t, []string{"a", `"b c"`, "[d e]", `(lookup . "n")`}, names)
	assert.Equal(t, "b c", tmpl.Program.Nodes[1].(*Partial).Name.(StringParam).Value)
	assert.Equal(t, "d e", tmpl.Program.Nodes[2].(*Partial).Name.(StringParam).Value)

	_, err = Compile("{{> /abs}}")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}

func TestTextRoundTrip(t *testing.T) {
	for _, src := range []string{
		"Hi {{name}}{{#each items as |i|}}[{{i}}]{{else}}none{{/each}}{{{raw}}}{{> p ctx k=1}}",
		"{{#if a}}A{{else if b}}B{{^}}C{{/if}}{{&amp}}",
		"{{~x~}}{{#> layout title=\"T\"}}body{{/layout}}{{#*inline \"n\"}}x{{/inline}}",
		"{{{{raw}}}}{{x}}{{{{/raw}}}}",
		"{{> (lookup . \"n\")}}{{#> p}}x{{/p}}{{> \"q r\" k=v}}",
	} {
		tmpl, err := Compile(src)
		require.NoError(t, err)
		assert.Equal(t, src, tmpl.Text())
	}
}

func TestTextReemitsDelimiterChanges(t *testing.T) {
	tmpl, err := Compile("{{a}}{{=<% %>=}}<% b %>")
	require.NoError(t, err)
	assert.Equal(t, "{{a}}{{=<% %>=}}<%b%>", tmpl.Text())
}

func TestPretty(t *testing.T) {
	tmpl, err := NewEngine().CompileNamed("page", "a{{#if x}}{{y}}{{else}}z{{/if}}", Delims{})
	require.NoError(t, err)
	assert.Equal(t, "Template(page)\n"+
		"  Text(\"a\")\n"+
		"  Block(if x)\n"+
		"    Variable[var](y)\n"+
		"  Else\n"+
		"    Text(\"z\")\n", Pretty(tmpl))
}

func TestWalkVisitsNestedNodes(t *testing.T) {
	tmpl, err := Compile("{{#a}}{{b}}{{else}}{{c}}{{/a}}{{#> p}}{{d}}{{/p}}")
	require.NoError(t, err)
	var names []string
	err = tmpl.Walk(VisitorFunc(func(n Node) error {
		if v, ok := n.(*Variable); ok {
			names = append(names, v.Name)
		}
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, names)
}
