package handlebars

import (
	"io"
	"log/slog"
	"maps"
	"strings"
	"sync"
)

// Formatter converts a value before it is written. Formatters form a chain:
// each either returns a result or defers to next.
type Formatter func(v any, next func(any) any) any

// MissingValueFunc supplies a value for an interpolation whose path resolves
// to nothing.
type MissingValueFunc func(name string) (any, error)

// Cache stores compiled templates by canonical id. compile is called when
// the id is absent or src is newer than the cached entry.
type Cache interface {
	Get(id string, src Source, compile func() (*Template, error)) (*Template, error)
	Evict(id string)
}

// NoCache compiles on every request.
type NoCache struct{}

func (NoCache) Get(_ string, _ Source, compile func() (*Template, error)) (*Template, error) {
	return compile()
}

func (NoCache) Evict(string) {}

// Engine holds the configuration shared by compilation and rendering. An
// engine must not be modified while templates compiled from it render.
type Engine struct {
	Helpers    Registry[Helper]
	Decorators Registry[Decorator]
	Loader     Loader
	Cache      Cache
	Resolvers  []ValueResolver
	Formatters []Formatter
	Escaper    Escaper
	Missing    MissingValueFunc
	Delims     Delims
	// StripStandalone elides the whitespace of lines holding only block,
	// partial, comment or delimiter tags.
	StripStandalone bool
	// AllowInfiniteLoops disables partial recursion detection.
	AllowInfiniteLoops bool
	Logger             *slog.Logger
}

// NewEngine returns an engine with the built-in helpers and decorators, the
// default resolvers, HTML escaping and standalone stripping.
func NewEngine() *Engine {
	return &Engine{
		Helpers:         DefaultHelpers(),
		Decorators:      DefaultDecorators(),
		Cache:           NoCache{},
		Resolvers:       DefaultResolvers,
		Escaper:         EscapeHTML,
		Delims:          DefaultDelims,
		StripStandalone: true,
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) escaper() Escaper {
	if e.Escaper == nil {
		return EscapeHTML
	}
	return e.Escaper
}

func (e *Engine) delims() Delims {
	if e.Delims.Start == "" || e.Delims.End == "" {
		return DefaultDelims
	}
	return e.Delims
}

func (e *Engine) cache() Cache {
	if e.Cache == nil {
		return NoCache{}
	}
	return e.Cache
}

// Compile compiles an anonymous template with a default engine.
func Compile(src string) (*Template, error) {
	return NewEngine().Compile(src)
}

// Compile compiles an anonymous template with the engine delimiters.
func (e *Engine) Compile(src string) (*Template, error) {
	return e.CompileNamed("", src, e.delims())
}

// CompileNamed compiles src. name appears in error positions and is the
// identity of the template on the partial invocation stack.
func (e *Engine) CompileNamed(name, src string, d Delims) (*Template, error) {
	if d.Start == "" || d.End == "" {
		d = e.delims()
	}
	toks, err := tokenize(name, src, d)
	if err != nil {
		return nil, err
	}
	if e.StripStandalone {
		stripStandalone(toks)
	}
	applyTrimMarkers(toks)
	nodes, err := parseTemplate(name, src, visible(toks))
	if err != nil {
		return nil, err
	}
	c := &compiler{name: name, src: src, delims: d, env: e}
	prog, err := c.program(nodes, true)
	if err != nil {
		return nil, err
	}
	return &Template{Name: name, Program: prog, Delims: d, source: src, env: e}, nil
}

// CompileFile compiles a template found through the loader and the cache.
func (e *Engine) CompileFile(name string) (*Template, error) {
	if e.Loader == nil {
		return nil, ErrTemplateNotFound{name}
	}
	id, err := e.Loader.Resolve(name)
	if err != nil {
		return nil, err
	}
	return e.loadTemplate(id, "")
}

// loadTemplate compiles the template id with every line prefixed by indent.
// Indented variants are cached apart from the plain template.
func (e *Engine) loadTemplate(id, indent string) (*Template, error) {
	src, err := e.Loader.Load(id)
	if err != nil {
		return nil, err
	}
	key := id
	if indent != "" {
		key = id + "\x00" + indent
	}
	return e.cache().Get(key, src, func() (*Template, error) {
		e.logger().Debug("compiling template", "id", id, "indent", len(indent))
		return e.CompileNamed(id, indentLines(src.Text, indent), e.delims())
	})
}

// Context is the root of a render: the model, initial data-channel values
// (@name) and extra attributes visible to lookups after the model.
type Context struct {
	Model any
	Data  map[string]any
	Attrs map[string]any
}

// Render writes t rendered against root to w. Renders are independent and
// may run concurrently on the same template.
func (e *Engine) Render(w io.Writer, t *Template, root Context) error {
	st := &renderState{env: e}
	s := st.push(Scope{}, root.Model)
	f := s.f()
	f.attrs = root.Attrs
	f.data = maps.Clone(root.Data)
	if t.Name != "" {
		st.calls = append(st.calls, partialCall{name: t.Name})
	}
	return st.renderTemplate(w, t, s)
}

// Template is a compiled template. It is immutable and safe for concurrent
// use.
type Template struct {
	Name    string
	Program *Program
	Delims  Delims

	source string
	env    *Engine

	textOnce sync.Once
	text     string
}

func (t *Template) engine() *Engine {
	if t.env == nil {
		return NewEngine()
	}
	return t.env
}

// Render writes the template rendered against model.
func (t *Template) Render(w io.Writer, model any) error {
	return t.engine().Render(w, t, Context{Model: model})
}

// Execute renders the template against model into a string.
func (t *Template) Execute(model any) (string, error) {
	var b strings.Builder
	if err := t.Render(&b, model); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Source returns the text the template was compiled from.
func (t *Template) Source() string { return t.source }
