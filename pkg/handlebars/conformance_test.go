package handlebars

import (
	"embed"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

//go:embed testdata/*.yml
var conformance embed.FS

type conformanceSuite struct {
	Overview string            `yaml:"overview"`
	Tests    []conformanceCase `yaml:"tests"`
}

type conformanceCase struct {
	Name     string            `yaml:"name"`
	Desc     string            `yaml:"desc"`
	Data     any               `yaml:"data"`
	Template string            `yaml:"template"`
	Partials map[string]string `yaml:"partials"`
	Expected string            `yaml:"expected"`
}

func TestConformance(t *testing.T) {
	files, err := conformance.ReadDir("testdata")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		raw, err := conformance.ReadFile(path.Join("testdata", f.Name()))
		require.NoError(t, err)
		var suite conformanceSuite
		require.NoError(t, yaml.Unmarshal(raw, &suite), f.Name())
		t.Run(strings.TrimSuffix(f.Name(), ".yml"), func(t *testing.T) {
			for _, tc := range suite.Tests {
				t.Run(tc.Name, func(t *testing.T) {
					e := partialEngine(tc.Partials)
					tmpl, err := e.Compile(tc.Template)
					require.NoError(t, err)
					out, err := tmpl.Execute(tc.Data)
					require.NoError(t, err)
					assert.Equal(t, tc.Expected, out, tc.Desc)
				})
			}
		})
	}
}
