package handlebars

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// SafeString is output that is never escaped.
type SafeString string

func (s SafeString) String() string { return string(s) }

// Lambda is a function-valued model entry. For a section the text argument
// is the raw source of the section body; for an interpolation it is empty.
// A string result is compiled with the delimiters in effect at the tag and
// rendered against the current scope.
type Lambda func(ctx any, text string) (any, error)

// valueCategory is the runtime shape of a section argument.
type valueCategory int

const (
	catFalsy valueCategory = iota
	catIterable
	catTrue
	catLambda
	catScalar
)

// blockBehavior names the built-in behavior of a section without a helper.
type blockBehavior int

const (
	behaveInverse blockBehavior = iota // render the else chain, if any
	behaveEach
	behaveIf
	behaveUnless
	behaveLambda
	behaveWith
)

// decideBlock is the decision table of sections without a registered helper.
func decideBlock(cat valueCategory, inverted bool) blockBehavior {
	if inverted {
		return behaveUnless
	}
	switch cat {
	case catIterable:
		return behaveEach
	case catTrue:
		return behaveIf
	case catLambda:
		return behaveLambda
	case catScalar:
		return behaveWith
	}
	return behaveInverse
}

func categorize(v any) valueCategory {
	if IsEmpty(v) {
		return catFalsy
	}
	switch v.(type) {
	case Lambda, func(any, string) (any, error):
		return catLambda
	case bool:
		return catTrue
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			return catIterable
		}
	case reflect.Bool:
		return catTrue
	}
	return catScalar
}

// IsEmpty reports whether v counts as false: nil, false, "", and empty
// slices, arrays and maps. Numbers, including zero, are not empty.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case SafeString:
		return t == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsEmpty(rv.Elem().Interface())
	case reflect.Slice, reflect.Map:
		return rv.IsNil() || rv.Len() == 0
	case reflect.Array, reflect.String:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// toString converts a value to its output form. The second result reports
// whether the value is exempt from escaping.
func toString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, false
	case SafeString:
		return string(t), true
	case []byte:
		return string(t), false
	case bool:
		return strconv.FormatBool(t), false
	case int:
		return strconv.Itoa(t), false
	case int64:
		return strconv.FormatInt(t, 10), false
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), false
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), false
	case fmt.Stringer:
		return t.String(), false
	case error:
		return t.Error(), false
	}
	return fmt.Sprint(v), false
}

// indirect dereferences pointers and interfaces.
func indirect(v any) reflect.Value {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// entry is one element of an iteration: a sequence item or a map pair.
type entry struct {
	key   any
	value any
}

// iterate lists the elements of a slice, array or map. Maps are visited in
// sorted key order. The boolean reports whether v is keyed.
func iterate(v any) ([]entry, bool, bool) {
	rv := indirect(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]entry, rv.Len())
		for i := range out {
			out[i] = entry{key: i, value: rv.Index(i).Interface()}
		}
		return out, false, true
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		out := make([]entry, len(keys))
		for i, k := range keys {
			out[i] = entry{key: k.Interface(), value: rv.MapIndex(k).Interface()}
		}
		return out, true, true
	}
	return nil, false, false
}

// toInt converts integer-like values; used for hash options such as base.
func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	}
	rv := indirect(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	}
	return 0, false
}
