// Package config reads the YAML configuration of the hbs tool and builds a
// template engine from it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/neurodesk/handlebars/pkg/cache"
	"github.com/neurodesk/handlebars/pkg/handlebars"
	"github.com/neurodesk/handlebars/pkg/loader"
	"github.com/neurodesk/handlebars/pkg/logging"
	"github.com/neurodesk/handlebars/pkg/starlark"
	"github.com/neurodesk/handlebars/pkg/validator"
)

type Delimiters struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type CacheConfig struct {
	MaxEntries int  `yaml:"max_entries"`
	Reload     bool `yaml:"reload"`
}

type Config struct {
	LogLevel           string      `yaml:"log_level"`
	Delimiters         Delimiters  `yaml:"delimiters"`
	StripStandalone    *bool       `yaml:"strip_standalone"`
	AllowInfiniteLoops bool        `yaml:"allow_infinite_loops"`
	Escaping           string      `yaml:"escaping"`
	TemplateRoots      []string    `yaml:"template_roots"`
	TemplateSuffix     string      `yaml:"template_suffix"`
	RemoteTemplates    string      `yaml:"remote_templates,omitempty"`
	RemoteCacheDir     string      `yaml:"remote_cache_dir,omitempty"`
	HelperScripts      []string    `yaml:"helper_scripts"`
	Cache              CacheConfig `yaml:"cache"`

	// dir is the directory of the config file; relative paths are resolved
	// against it.
	dir string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Parse decodes, defaults and validates a configuration document. Unknown
// keys are an error.
func Parse(b []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Delimiters.Start == "" && c.Delimiters.End == "" {
		c.Delimiters = Delimiters{Start: handlebars.DefaultDelims.Start, End: handlebars.DefaultDelims.End}
	}
	if c.StripStandalone == nil {
		strip := true
		c.StripStandalone = &strip
	}
	if c.Escaping == "" {
		c.Escaping = "html"
	}
	if len(c.TemplateRoots) == 0 {
		c.TemplateRoots = []string{"."}
	}
	if c.TemplateSuffix == "" {
		c.TemplateSuffix = ".hbs"
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = cache.DefaultMaxEntries
	}
}

func (d Delimiters) Validate() error {
	return validator.All(
		validator.Delimiter(d.Start, "delimiters.start"),
		validator.Delimiter(d.End, "delimiters.end"),
		validator.Distinct(d.Start, d.End, "delimiters.start and delimiters.end"),
	)
}

func (c *Config) Validate() error {
	_, levelErr := logging.ParseLevel(c.LogLevel)
	return validator.All(
		levelErr,
		c.Delimiters.Validate(),
		validator.MatchesAllowed(c.Escaping, []string{"html", "none"}, "escaping"),
		validator.Map(c.TemplateRoots, validator.NotEmpty, "template_roots"),
		validator.NoDuplicates(c.TemplateRoots, "template_roots"),
		validator.HTTPURL(c.RemoteTemplates, "remote_templates"),
		validator.Map(c.HelperScripts, validator.NotEmpty, "helper_scripts"),
		validator.NoDuplicates(c.HelperScripts, "helper_scripts"),
		validator.NotNegative(c.Cache.MaxEntries, "cache.max_entries"),
	)
}

func (c *Config) path(p string) string {
	if c.dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// Loader builds the template loader: the template roots, then the remote
// base if one is configured.
func (c *Config) Loader(logger *slog.Logger) (handlebars.Loader, error) {
	roots := make([]string, len(c.TemplateRoots))
	for i, r := range c.TemplateRoots {
		roots[i] = c.path(r)
	}
	chain := loader.Chain{loader.NewFileLoader(c.TemplateSuffix, roots...)}
	if c.RemoteTemplates != "" {
		dir := c.RemoteCacheDir
		if dir != "" {
			dir = c.path(dir)
		}
		remote, err := loader.NewHTTPLoader(c.RemoteTemplates, c.TemplateSuffix, dir)
		if err != nil {
			return nil, err
		}
		remote.Logger = logger
		chain = append(chain, remote)
	}
	return chain, nil
}

// NewEngine builds an engine from the configuration. Cache metrics are
// registered with registry when it is not nil.
func (c *Config) NewEngine(logger *slog.Logger, registry prometheus.Registerer) (*handlebars.Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := handlebars.NewEngine()
	e.Logger = logger
	e.Delims = handlebars.Delims{Start: c.Delimiters.Start, End: c.Delimiters.End}
	e.StripStandalone = c.StripStandalone == nil || *c.StripStandalone
	e.AllowInfiniteLoops = c.AllowInfiniteLoops
	esc, ok := handlebars.EscaperByName(c.Escaping)
	if !ok {
		return nil, fmt.Errorf("unknown escaping %q", c.Escaping)
	}
	e.Escaper = esc

	l, err := c.Loader(logger)
	if err != nil {
		return nil, err
	}
	e.Loader = l

	tc, err := cache.New(cache.Options{
		MaxEntries: c.Cache.MaxEntries,
		Reload:     c.Cache.Reload,
		Registerer: registry,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	e.Cache = tc

	scripts := make([]string, len(c.HelperScripts))
	for i, s := range c.HelperScripts {
		scripts[i] = c.path(s)
	}
	if e.Helpers, err = starlark.NewEvaluator(logger).LoadRegistry(e.Helpers, scripts...); err != nil {
		return nil, err
	}
	return e, nil
}
