package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v4"

	"github.com/neurodesk/handlebars/pkg/handlebars"
	"github.com/neurodesk/handlebars/pkg/loader"
	"github.com/neurodesk/handlebars/pkg/validator"
)

var testCmd = cobra.Command{
	Use:   "test CASES.yml...",
	Short: "Run template test cases",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, e, err := setup(cmd)
		if err != nil {
			return err
		}
		selectors, _ := cmd.Flags().GetStringSlice("run")

		var all []testCase
		for _, path := range args {
			cases, err := loadTestCases(path)
			if err != nil {
				return err
			}
			all = append(all, cases...)
		}
		selected := filterTestCases(all, selectors)
		if len(selected) == 0 {
			return fmt.Errorf("no test cases matched the provided selectors")
		}

		failed := 0
		for _, tc := range selected {
			if err := tc.run(e); err != nil {
				failed++
				logger.Error("FAIL", "case", tc.Identifier())
				fmt.Fprintf(cmd.ErrOrStderr(), "--- FAIL: %s\n%v\n", tc.Identifier(), err)
				continue
			}
			logger.Info("PASS", "case", tc.Identifier())
		}
		logger.Info("test cases finished", "passed", len(selected)-failed, "failed", failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d test cases failed", failed, len(selected))
		}
		return nil
	},
}

type testFile struct {
	Overview string     `yaml:"overview"`
	Tests    []testCase `yaml:"tests"`
}

// testCase is one template, its data and the expected output. Error, when
// set, is a substring the render error must contain instead.
type testCase struct {
	Name     string                    `yaml:"name"`
	Desc     string                    `yaml:"desc"`
	Data     any                       `yaml:"data"`
	Template handlebars.TemplateString `yaml:"template"`
	Partials map[string]string         `yaml:"partials"`
	Expected string                    `yaml:"expected"`
	Error    string                    `yaml:"error"`

	file string
}

func (tc testCase) Identifier() string {
	base := strings.TrimSuffix(filepath.Base(tc.file), filepath.Ext(tc.file))
	if base == "" {
		return tc.Name
	}
	return base + "/" + tc.Name
}

func (tc testCase) Validate() error {
	return validator.NotEmpty(tc.Name, "name")
}

func loadTestCases(path string) ([]testCase, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseTestCases(path, b)
}

func parseTestCases(path string, b []byte) ([]testCase, error) {
	var f testFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding test cases %s: %w", path, err)
	}
	names := make([]string, len(f.Tests))
	for i := range f.Tests {
		f.Tests[i].file = path
		names[i] = f.Tests[i].Name
	}
	if err := validator.All(
		validator.Each(f.Tests, "tests"),
		validator.NoDuplicates(names, "test names"),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Tests, nil
}

// filterTestCases keeps the cases whose name or identifier matches one of
// the selectors, ignoring case. No selectors keeps everything.
func filterTestCases(cases []testCase, selectors []string) []testCase {
	set := map[string]struct{}{}
	for _, s := range selectors {
		if s = strings.TrimSpace(s); s != "" {
			set[strings.ToLower(s)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return cases
	}
	var filtered []testCase
	for _, tc := range cases {
		_, byName := set[strings.ToLower(tc.Name)]
		_, byID := set[strings.ToLower(tc.Identifier())]
		if byName || byID {
			filtered = append(filtered, tc)
		}
	}
	return filtered
}

// run renders the case with a copy of base whose loader serves the case's
// partials before the configured templates.
func (tc testCase) run(base *handlebars.Engine) error {
	e := *base
	e.Cache = handlebars.NoCache{}
	if len(tc.Partials) > 0 {
		if e.Loader != nil {
			e.Loader = loader.Chain{handlebars.MemoryLoader(tc.Partials), e.Loader}
		} else {
			e.Loader = handlebars.MemoryLoader(tc.Partials)
		}
	}
	if tc.Error == "" {
		if err := tc.Template.ValidateWith(&e); err != nil {
			return err
		}
	}
	out, err := tc.Template.RenderWith(&e, tc.Data)
	switch {
	case tc.Error != "" && err == nil:
		return fmt.Errorf("expected an error containing %q, got output %q", tc.Error, out)
	case tc.Error != "":
		if !strings.Contains(err.Error(), tc.Error) {
			return fmt.Errorf("expected an error containing %q, got: %w", tc.Error, err)
		}
		return nil
	case err != nil:
		return err
	case out != tc.Expected:
		return fmt.Errorf("output mismatch\nexpected: %q\n     got: %q", tc.Expected, out)
	}
	return nil
}
