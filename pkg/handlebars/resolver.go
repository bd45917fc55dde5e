package handlebars

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValueResolver reads a named property of a model value. Resolvers are pure
// and must not mutate the model. The boolean reports whether the property
// is defined; a defined nil value stops the search.
type ValueResolver interface {
	Resolve(model any, name string) (any, bool)
}

// ResolverFunc adapts a function to ValueResolver.
type ResolverFunc func(model any, name string) (any, bool)

func (f ResolverFunc) Resolve(model any, name string) (any, bool) { return f(model, name) }

// DefaultResolvers reads maps, then struct fields, then zero-argument methods.
var DefaultResolvers = []ValueResolver{MapResolver{}, FieldResolver{}, MethodResolver{}}

// MapResolver reads keys of maps with string-convertible keys.
type MapResolver struct{}

func (MapResolver) Resolve(model any, name string) (any, bool) {
	switch m := model.(type) {
	case map[string]any:
		v, ok := m[name]
		return v, ok
	case map[string]string:
		v, ok := m[name]
		return v, ok
	case map[any]any:
		v, ok := m[name]
		return v, ok
	}
	rv := indirect(model)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

// FieldResolver reads exported struct fields by name, by lower-camel name
// (`firstName` reads FirstName) or by a `hbs:"name"` tag.
type FieldResolver struct{}

func (FieldResolver) Resolve(model any, name string) (any, bool) {
	rv := indirect(model)
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("hbs"); ok {
			if strings.Split(tag, ",")[0] == name {
				return rv.Field(i).Interface(), true
			}
			continue
		}
		if f.Name == name || f.Name == exportName(name) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

// MethodResolver calls exported methods without arguments that return one
// value, or a value and an error. Names are matched like FieldResolver.
type MethodResolver struct{}

func (MethodResolver) Resolve(model any, name string) (any, bool) {
	if model == nil {
		return nil, false
	}
	rv := reflect.ValueOf(model)
	m := rv.MethodByName(exportName(name))
	if !m.IsValid() {
		m = rv.MethodByName(name)
	}
	if !m.IsValid() || m.Type().NumIn() != 0 {
		return nil, false
	}
	switch m.Type().NumOut() {
	case 1:
		return m.Call(nil)[0].Interface(), true
	case 2:
		if !m.Type().Out(1).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			return nil, false
		}
		out := m.Call(nil)
		if !out[1].IsNil() {
			return nil, false
		}
		return out[0].Interface(), true
	}
	return nil, false
}

func exportName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// resolveWith tries each resolver in order and stops at the first that
// defines the property.
func resolveWith(resolvers []ValueResolver, model any, name string) (any, bool) {
	if model == nil {
		return nil, false
	}
	for _, r := range resolvers {
		if v, ok := r.Resolve(model, name); ok {
			return v, true
		}
	}
	return nil, false
}

// resolveSegment reads one path segment. Bracketed integer keys index into
// sequences; out-of-range indexes are undefined. Other models fall back to a
// property named after the index.
func resolveSegment(resolvers []ValueResolver, model any, seg Segment) (any, bool) {
	if seg.Indexed {
		rv := indirect(model)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			if seg.Index >= rv.Len() {
				return nil, false
			}
			return rv.Index(seg.Index).Interface(), true
		}
	}
	return resolveWith(resolvers, model, seg.Name)
}
