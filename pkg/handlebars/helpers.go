package handlebars

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultHelpers returns the built-in helpers: if, unless, each, with,
// lookup and log.
func DefaultHelpers() Registry[Helper] {
	return NewRegistry(map[string]Helper{
		"if":     ifHelper,
		"unless": unlessHelper,
		"each":   eachHelper,
		"with":   withHelper,
		"lookup": lookupHelper,
		"log":    logHelper,
	})
}

// DefaultDecorators returns the built-in decorators: inline.
func DefaultDecorators() Registry[Decorator] {
	return NewRegistry(map[string]Decorator{
		"inline": inlineDecorator,
	})
}

func ifHelper(ctx any, opts *Options) (any, error) {
	if IsEmpty(ctx) {
		return opts.Inverse()
	}
	return opts.Fn()
}

func unlessHelper(ctx any, opts *Options) (any, error) {
	if IsEmpty(ctx) {
		return opts.Fn()
	}
	return opts.Inverse()
}

func withHelper(ctx any, opts *Options) (any, error) {
	if IsEmpty(ctx) {
		return opts.Inverse()
	}
	return opts.FnWith(ctx, ctx)
}

func marker(on bool, name string) string {
	if on {
		return name
	}
	return ""
}

// eachHelper iterates sequences and maps. Sequences bind @index, @index_1,
// @first, @last, @odd and @even plus block params (item, index); maps bind
// @key, @index, @first and @last plus block params (value, key). The base
// hash argument offsets @index.
func eachHelper(ctx any, opts *Options) (any, error) {
	entries, keyed, ok := iterate(ctx)
	if !ok || len(entries) == 0 {
		return opts.Inverse()
	}
	base := 0
	if v, ok := toInt(opts.HashValue("base")); ok {
		base = v
	}
	var b strings.Builder
	for i, e := range entries {
		data := map[string]any{
			"index": base + i,
			"first": marker(i == 0, "first"),
			"last":  marker(i == len(entries)-1, "last"),
		}
		var out string
		var err error
		if keyed {
			data["key"] = e.key
			out, err = opts.FnData(e.value, data, e.value, e.key)
		} else {
			data["index_1"] = base + i + 1
			data["odd"] = marker(i%2 == 1, "odd")
			data["even"] = marker(i%2 == 0, "even")
			out, err = opts.FnData(e.value, data, e.value, base+i)
		}
		if err != nil {
			return nil, err
		}
		b.WriteString(out)
	}
	return SafeString(b.String()), nil
}

// lookupHelper reads a dynamic key: {{lookup obj key}}.
func lookupHelper(_ any, opts *Options) (any, error) {
	if len(opts.Params()) < 2 {
		return nil, fmt.Errorf("lookup expects an object and a key, got %d params", len(opts.Params()))
	}
	obj, key := opts.Param(0), opts.Param(1)
	seg := Segment{}
	if n, ok := key.(int64); ok {
		key = int(n)
	}
	if n, ok := key.(int); ok && n >= 0 {
		seg = Segment{Name: fmt.Sprint(n), Bracketed: true, Index: n, Indexed: true}
	} else {
		seg.Name, _ = toString(key)
	}
	v, _ := resolveSegment(opts.Scope().resolvers(), obj, seg)
	return v, nil
}

// logHelper writes its params through the engine logger at the level named
// by the level hash argument.
func logHelper(_ any, opts *Options) (any, error) {
	level := slog.LevelInfo
	if name, ok := opts.HashValue("level").(string); ok {
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
	}
	parts := make([]string, len(opts.Params()))
	for i, p := range opts.Params() {
		parts[i], _ = toString(p)
	}
	opts.Logger().Log(context.Background(), level, strings.Join(parts, " "))
	return SafeString(""), nil
}

// inlineDecorator defines a partial: {{#*inline "name"}}...{{/inline}}.
func inlineDecorator(body *Template, opts *Options) error {
	name, ok := opts.Param(0).(string)
	if !ok || name == "" {
		return fmt.Errorf("inline: partial name must be a string, got %v", opts.Param(0))
	}
	opts.SetPartial(name, body)
	return nil
}
