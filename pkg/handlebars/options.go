package handlebars

import (
	"io"
	"log/slog"
	"strings"
)

// Helper computes the value of a tag. ctx is the first parameter, or the
// current context when the tag has none. For sections the body and the else
// chain are reachable through opts.
type Helper func(ctx any, opts *Options) (any, error)

// Decorator runs before the program it appears in renders. body is the
// content of a block decorator, or an empty template.
type Decorator func(body *Template, opts *Options) error

// Options is the invocation record handed to helpers and decorators. It is
// only valid during the call it was created for.
type Options struct {
	st          *renderState
	w           io.Writer
	name        string
	kind        TagKind
	params      []any
	hash        map[string]any
	blockParams []string
	scope       Scope
	fn          *Program
	inverse     *Program
	source      string
	delims      Delims
}

// Name is the helper or decorator name as written in the tag.
func (o *Options) Name() string { return o.name }

// Kind is the form of the tag that made the call.
func (o *Options) Kind() TagKind { return o.kind }

// IsBlock reports whether the call is a section with a body.
func (o *Options) IsBlock() bool { return o.kind == TagSection }

// Params returns the evaluated positional parameters.
func (o *Options) Params() []any { return o.params }

// Param returns the i-th parameter, or nil.
func (o *Options) Param(i int) any {
	if i < 0 || i >= len(o.params) {
		return nil
	}
	return o.params[i]
}

// Hash returns the evaluated key=value parameters.
func (o *Options) Hash() map[string]any { return o.hash }

// HashValue returns one hash argument, or nil.
func (o *Options) HashValue(key string) any { return o.hash[key] }

// BlockParams returns the names declared with `as |a b|`.
func (o *Options) BlockParams() []string { return o.blockParams }

// Scope returns the scope the tag appears in.
func (o *Options) Scope() Scope { return o.scope }

// Context returns the current context value.
func (o *Options) Context() any { return o.scope.Model() }

// Lookup resolves a path expression against the tag's scope.
func (o *Options) Lookup(path string) (any, bool) { return o.scope.Lookup(path) }

// Data reads the data channel, e.g. Data("index") for @index.
func (o *Options) Data(name string) any {
	v, _ := o.scope.Data(name)
	return v
}

// SetData writes to the data channel of the tag's scope.
func (o *Options) SetData(name string, v any) { o.scope.SetData(name, v) }

// Source returns the raw text of the section body.
func (o *Options) Source() string { return o.source }

// Logger returns the engine logger.
func (o *Options) Logger() *slog.Logger { return o.st.env.logger() }

// Write sends s to the output ahead of the helper's return value.
func (o *Options) Write(s string) error {
	_, err := io.WriteString(o.w, s)
	return err
}

// Fn renders the body in the current scope.
func (o *Options) Fn() (string, error) {
	return o.render(o.fn, o.scope)
}

// FnWith renders the body against ctx in a child scope. Block parameter
// values are bound positionally to the declared names.
func (o *Options) FnWith(ctx any, blockParams ...any) (string, error) {
	return o.FnData(ctx, nil, blockParams...)
}

// FnData is FnWith with additional data-channel values for the child scope.
func (o *Options) FnData(ctx any, data map[string]any, blockParams ...any) (string, error) {
	child := o.child(ctx, data, blockParams)
	defer o.st.pop(child)
	return o.render(o.fn, child)
}

// Inverse renders the else chain in the current scope.
func (o *Options) Inverse() (string, error) {
	return o.render(o.inverse, o.scope)
}

// InverseWith renders the else chain against ctx in a child scope.
func (o *Options) InverseWith(ctx any, blockParams ...any) (string, error) {
	child := o.child(ctx, nil, blockParams)
	defer o.st.pop(child)
	return o.render(o.inverse, child)
}

// SetPartial registers t as an inline partial visible to the program being
// decorated and everything it calls.
func (o *Options) SetPartial(name string, t *Template) {
	o.st.definePartial(name, t)
}

func (o *Options) child(ctx any, data map[string]any, values []any) Scope {
	child := o.st.push(o.scope, ctx)
	f := child.f()
	if len(data) > 0 {
		f.data = data
	}
	for i, name := range o.blockParams {
		if i >= len(values) {
			break
		}
		if f.blockParams == nil {
			f.blockParams = make(map[string]any, len(o.blockParams))
		}
		f.blockParams[name] = values[i]
	}
	return child
}

func (o *Options) render(p *Program, s Scope) (string, error) {
	if p.empty() {
		return "", nil
	}
	var b strings.Builder
	if err := o.st.renderProgram(&b, p, s); err != nil {
		return "", err
	}
	return b.String(), nil
}
