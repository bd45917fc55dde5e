package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, Delimiters{Start: "{{", End: "}}"}, c.Delimiters)
	require.NotNil(t, c.StripStandalone)
	assert.True(t, *c.StripStandalone)
	assert.Equal(t, "html", c.Escaping)
	assert.Equal(t, []string{"."}, c.TemplateRoots)
	assert.Equal(t, ".hbs", c.TemplateSuffix)
	assert.Equal(t, 256, c.Cache.MaxEntries)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
log_level: debug
delimiters: {start: "<%", end: "%>"}
strip_standalone: false
allow_infinite_loops: true
escaping: none
template_roots: [views, partials]
template_suffix: .mustache
remote_templates: https://example.org/partials/
cache: {max_entries: 10, reload: true}
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, Delimiters{Start: "<%", End: "%>"}, c.Delimiters)
	assert.False(t, *c.StripStandalone)
	assert.True(t, c.AllowInfiniteLoops)
	assert.Equal(t, "none", c.Escaping)
	assert.Equal(t, []string{"views", "partials"}, c.TemplateRoots)
	assert.Equal(t, ".mustache", c.TemplateSuffix)
	assert.Equal(t, "https://example.org/partials/", c.RemoteTemplates)
	assert.Equal(t, CacheConfig{MaxEntries: 10, Reload: true}, c.Cache)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		expected string
	}{
		{"unknown key", "colour: red", "field colour not found"},
		{"log level", "log_level: loud", "unknown log level"},
		{"escaping", "escaping: xml", "escaping must be one of"},
		{"delimiter with space", `delimiters: {start: "< %", end: "%>"}`, "delimiters.start"},
		{"same delimiters", `delimiters: {start: "|", end: "|"}`, "must differ"},
		{"missing end", `delimiters: {start: "<%"}`, "delimiters.end must not be empty"},
		{"duplicate roots", "template_roots: [a, a]", "duplicate"},
		{"remote url", "remote_templates: ftp://x/", "absolute http(s) URL"},
		{"cache size", "cache: {max_entries: -1}", "cache.max_entries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.expected)
		})
	}
}

func TestNewEngine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "views"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "views", "page.hbs"), []byte("<%shout name%> <%> item%>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "views", "item.hbs"), []byte("<%&raw%>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helpers.star"), []byte("def shout(s):\n    return s.upper()\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hbs.yml"), []byte(`
delimiters: {start: "<%", end: "%>"}
template_roots: [views]
helper_scripts: [helpers.star]
`), 0o644))

	c, err := Load(filepath.Join(dir, "hbs.yml"))
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	e, err := c.NewEngine(nil, registry)
	require.NoError(t, err)

	tmpl, err := e.CompileFile("page")
	require.NoError(t, err)
	out, err := tmpl.Execute(map[string]any{"name": "ann", "raw": "<i>"})
	require.NoError(t, err)
	assert.Equal(t, "ANN <i>", out)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewEngineEscaping(t *testing.T) {
	c, err := Parse([]byte("escaping: none"))
	require.NoError(t, err)
	e, err := c.NewEngine(nil, nil)
	require.NoError(t, err)
	tmpl, err := e.Compile("{{x}}")
	require.NoError(t, err)
	out, err := tmpl.Execute(map[string]any{"x": "<b>"})
	require.NoError(t, err)
	assert.Equal(t, "<b>", out)
}

func TestNewEngineMissingScript(t *testing.T) {
	c, err := Parse([]byte("helper_scripts: [nope.star]"))
	require.NoError(t, err)
	_, err = c.NewEngine(nil, nil)
	assert.Error(t, err)
}
