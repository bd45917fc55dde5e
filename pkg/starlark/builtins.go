package starlark

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

// builtins are predeclared in every helper script.
func builtins() starlark.StringDict {
	return starlark.StringDict{
		"safe": starlark.NewBuiltin("safe", func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var v starlark.Value
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &v); err != nil {
				return nil, err
			}
			if s, ok := v.(starlark.String); ok {
				return SafeString(s), nil
			}
			return SafeString(v.String()), nil
		}),
		"escape": starlark.NewBuiltin("escape", func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &s); err != nil {
				return nil, err
			}
			return starlark.String(handlebars.EscapeHTML.Escape(s)), nil
		}),
	}
}

// optionsValue exposes the block of a helper call: its name, fn(ctx) and
// inverse(ctx) to render the bodies, and data(name) for @-variables.
func optionsValue(opts *handlebars.Options) starlark.Value {
	render := func(name string, plain func() (string, error), with func(any, ...any) (string, error)) *starlark.Builtin {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var ctx starlark.Value
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0, &ctx); err != nil {
				return nil, err
			}
			var (
				out string
				err error
			)
			if ctx == nil {
				out, err = plain()
			} else {
				out, err = with(FromStarlark(ctx))
			}
			if err != nil {
				return nil, err
			}
			return starlark.String(out), nil
		})
	}
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"name":     starlark.String(opts.Name()),
		"is_block": starlark.Bool(opts.IsBlock()),
		"fn":       render("fn", opts.Fn, opts.FnWith),
		"inverse":  render("inverse", opts.Inverse, opts.InverseWith),
		"data": starlark.NewBuiltin("data", func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
				return nil, err
			}
			return ToStarlark(opts.Data(name))
		}),
	})
}
