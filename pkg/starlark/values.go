package starlark

import (
	"fmt"
	"reflect"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

// SafeString is the Starlark side of handlebars.SafeString: text the
// template writes without escaping. Scripts create it with safe(s).
type SafeString string

var _ starlark.Value = SafeString("")

func (s SafeString) String() string        { return string(s) }
func (s SafeString) Type() string          { return "safe_string" }
func (s SafeString) Freeze()               {}
func (s SafeString) Truth() starlark.Bool  { return s != "" }
func (s SafeString) Hash() (uint32, error) { return starlark.String(s).Hash() }

// ToStarlark converts template data to a Starlark value. Structs become
// read-only structs of their exported fields; unsupported kinds are an error.
func ToStarlark(v any) (starlark.Value, error) {
	switch t := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return t, nil
	case handlebars.SafeString:
		return SafeString(t), nil
	case string:
		return starlark.String(t), nil
	case bool:
		return starlark.Bool(t), nil
	case int:
		return starlark.MakeInt(t), nil
	case int64:
		return starlark.MakeInt64(t), nil
	case float64:
		return starlark.Float(t), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return starlark.None, nil
		}
		return ToStarlark(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return starlark.MakeUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return starlark.Float(rv.Float()), nil
	case reflect.String:
		return starlark.String(rv.String()), nil
	case reflect.Bool:
		return starlark.Bool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		items := make([]starlark.Value, rv.Len())
		for i := range items {
			item, err := ToStarlark(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = item
		}
		return starlark.NewList(items), nil
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
		dict := starlark.NewDict(len(keys))
		for _, k := range keys {
			key, err := ToStarlark(k.Interface())
			if err != nil {
				return nil, err
			}
			val, err := ToStarlark(rv.MapIndex(k).Interface())
			if err != nil {
				return nil, fmt.Errorf("key %v: %w", k, err)
			}
			if err := dict.SetKey(key, val); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case reflect.Struct:
		fields := starlark.StringDict{}
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			val, err := ToStarlark(rv.Field(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			fields[f.Name] = val
		}
		return starlarkstruct.FromStringDict(starlarkstruct.Default, fields), nil
	}
	return nil, fmt.Errorf("cannot convert %T to starlark", v)
}

// FromStarlark converts a Starlark result back to template data. Integers
// outside the int64 range become their decimal text.
func FromStarlark(v starlark.Value) any {
	switch t := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case SafeString:
		return handlebars.SafeString(t)
	case starlark.String:
		return string(t)
	case starlark.Bool:
		return bool(t)
	case starlark.Int:
		if i, ok := t.Int64(); ok {
			return i
		}
		return t.String()
	case starlark.Float:
		return float64(t)
	case *starlark.List:
		items := make([]any, t.Len())
		for i := range items {
			items[i] = FromStarlark(t.Index(i))
		}
		return items
	case starlark.Tuple:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = FromStarlark(item)
		}
		return items
	case *starlark.Dict:
		out := make(map[string]any, t.Len())
		for _, kv := range t.Items() {
			key, ok := kv[0].(starlark.String)
			if !ok {
				out[kv[0].String()] = FromStarlark(kv[1])
				continue
			}
			out[string(key)] = FromStarlark(kv[1])
		}
		return out
	case *starlarkstruct.Struct:
		out := map[string]any{}
		for _, name := range t.AttrNames() {
			if attr, err := t.Attr(name); err == nil {
				out[name] = FromStarlark(attr)
			}
		}
		return out
	}
	return v.String()
}
