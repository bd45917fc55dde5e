package starlark

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

const script = `
def shout(s, suffix = "!"):
    return s.upper() + suffix

def bold(s):
    return safe("<b>" + escape(s) + "</b>")

def total(items):
    return sum([i["n"] for i in items])

def repeat(n, options = None):
    return "".join([options.fn(i) for i in range(n)])

def _private():
    return "hidden"

def sum(xs):
    t = 0
    for x in xs:
        t += x
    return t
`

func engineWithScript(t *testing.T) *handlebars.Engine {
	t.Helper()
	helpers, err := NewEvaluator(nil).Load("helpers.star", script)
	require.NoError(t, err)
	e := handlebars.NewEngine()
	for name, h := range helpers {
		e.Helpers = e.Helpers.With(name, h)
	}
	return e
}

func TestLoadExportsPublicFunctions(t *testing.T) {
	helpers, err := NewEvaluator(nil).Load("helpers.star", script)
	require.NoError(t, err)
	assert.Contains(t, helpers, "shout")
	assert.Contains(t, helpers, "repeat")
	assert.NotContains(t, helpers, "_private")
}

func TestStarlarkHelpers(t *testing.T) {
	tests := []struct {
		name     string
		template string
		model    any
		expected string
	}{
		{"positional", "{{shout name}}", map[string]any{"name": "hi"}, "HI!"},
		{"hash as kwargs", `{{shout name suffix="?"}}`, map[string]any{"name": "hi"}, "HI?"},
		{"safe string", "{{bold name}}", map[string]any{"name": "<x>"}, "<b>&lt;x&gt;</b>"},
		{"list of maps", "{{total items}}", map[string]any{"items": []any{map[string]any{"n": 2}, map[string]any{"n": 3}}}, "5"},
		{"block with options", "{{#repeat 3}}[{{this}}]{{/repeat}}", nil, "[0][1][2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := engineWithScript(t).Compile(tt.template)
			require.NoError(t, err)
			out, err := tmpl.Execute(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestStarlarkHelperError(t *testing.T) {
	tmpl, err := engineWithScript(t).Compile("{{shout 1}}")
	require.NoError(t, err)
	_, err = tmpl.Execute(nil)
	assert.ErrorContains(t, err, "helper shout")
}

func TestLoadSyntaxError(t *testing.T) {
	_, err := NewEvaluator(nil).Load("bad.star", "def f(:\n")
	assert.ErrorContains(t, err, "loading helper script bad.star")
}

func TestMaxSteps(t *testing.T) {
	ev := NewEvaluator(nil)
	ev.MaxSteps = 1000
	helpers, err := ev.Load("loop.star", "def spin():\n    for i in range(1000000):\n        pass\n")
	require.NoError(t, err)
	e := handlebars.NewEngine()
	e.Helpers = e.Helpers.With("spin", helpers["spin"])
	tmpl, err := e.Compile("{{spin}}")
	require.NoError(t, err)
	_, err = tmpl.Execute(nil)
	assert.ErrorContains(t, err, "too many steps")
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.star")
	require.NoError(t, os.WriteFile(path, []byte("def twice(s):\n    return s + s\n"), 0o644))
	reg, err := NewEvaluator(nil).LoadRegistry(handlebars.DefaultHelpers(), path)
	require.NoError(t, err)
	_, ok := reg.Lookup("twice")
	assert.True(t, ok)
	_, ok = reg.Lookup("each")
	assert.True(t, ok)
}

type point struct {
	X, Y   int
	hidden string
}

func TestToStarlark(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil", nil, "None"},
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"uint8", uint8(7), "7"},
		{"float", 3.5, "3.5"},
		{"bool", true, "True"},
		{"slice", []string{"a", "b"}, `["a", "b"]`},
		{"map", map[string]int{"b": 2, "a": 1}, `{"a": 1, "b": 2}`},
		{"struct", point{X: 1, Y: 2}, "struct(X = 1, Y = 2)"},
		{"pointer", &point{X: 3}, "struct(X = 3, Y = 0)"},
		{"safe", handlebars.SafeString("<b>"), "<b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ToStarlark(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.String())
		})
	}

	_, err := ToStarlark(make(chan int))
	assert.Error(t, err)
}

func TestFromStarlark(t *testing.T) {
	dict := starlark.NewDict(1)
	require.NoError(t, dict.SetKey(starlark.String("k"), starlark.MakeInt(1)))

	tests := []struct {
		name     string
		input    starlark.Value
		expected any
	}{
		{"none", starlark.None, nil},
		{"string", starlark.String("s"), "s"},
		{"int", starlark.MakeInt(5), int64(5)},
		{"float", starlark.Float(1.5), 1.5},
		{"bool", starlark.False, false},
		{"list", starlark.NewList([]starlark.Value{starlark.String("a")}), []any{"a"}},
		{"tuple", starlark.Tuple{starlark.MakeInt(1)}, []any{int64(1)}},
		{"dict", dict, map[string]any{"k": int64(1)}},
		{"safe", SafeString("<i>"), handlebars.SafeString("<i>")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromStarlark(tt.input))
		})
	}
}
