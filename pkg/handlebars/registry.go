package handlebars

import "sort"

// Registry is an immutable name table. With returns a modified copy, so a
// registry captured by a compiled template or a running render never changes
// underneath it.
type Registry[T any] struct {
	entries map[string]T
}

// NewRegistry copies m into a registry.
func NewRegistry[T any](m map[string]T) Registry[T] {
	r := Registry[T]{entries: make(map[string]T, len(m))}
	for k, v := range m {
		r.entries[k] = v
	}
	return r
}

func (r Registry[T]) Lookup(name string) (T, bool) {
	v, ok := r.entries[name]
	return v, ok
}

// With returns a copy of r with name bound to v.
func (r Registry[T]) With(name string, v T) Registry[T] {
	out := NewRegistry(r.entries)
	out.entries[name] = v
	return out
}

// Without returns a copy of r without name.
func (r Registry[T]) Without(name string) Registry[T] {
	out := NewRegistry(r.entries)
	delete(out.entries, name)
	return out
}

// Names lists the registered names in sorted order.
func (r Registry[T]) Names() []string {
	names := make([]string, 0, len(r.entries))
	for k := range r.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r Registry[T]) Len() int { return len(r.entries) }
