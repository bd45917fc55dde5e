package handlebars

import (
	"errors"
	"path"
	"strings"
	"time"
)

// Source is the text of a template and the time it last changed. A zero
// LastModified means the source never changes.
type Source struct {
	Text         string
	LastModified time.Time
}

// Loader finds partials and named templates. Resolve maps a name to a
// canonical id (the identity used for caching and recursion detection) and
// Load reads the source of an id.
type Loader interface {
	Resolve(name string) (string, error)
	Load(id string) (Source, error)
}

// Lister is implemented by loaders that can enumerate their templates. It is
// used to suggest names when a partial is missing.
type Lister interface {
	List() ([]string, error)
}

// ErrTemplateNotFound is returned by loaders for unknown names.
type ErrTemplateNotFound struct{ Name string }

func (e ErrTemplateNotFound) Error() string { return "template not found: " + e.Name }

// IsNotFound reports whether err says a template does not exist.
func IsNotFound(err error) bool {
	var nf ErrTemplateNotFound
	return errors.As(err, &nf)
}

// MemoryLoader serves templates from a map. Names are cleaned so that
// "./a" and "a" resolve to the same id.
type MemoryLoader map[string]string

func (m MemoryLoader) Resolve(name string) (string, error) {
	id := strings.TrimPrefix(path.Clean(name), "./")
	if _, ok := m[id]; ok {
		return id, nil
	}
	if _, ok := m[name]; ok {
		return name, nil
	}
	return "", ErrTemplateNotFound{name}
}

func (m MemoryLoader) Load(id string) (Source, error) {
	if s, ok := m[id]; ok {
		return Source{Text: s}, nil
	}
	return Source{}, ErrTemplateNotFound{id}
}

func (m MemoryLoader) List() ([]string, error) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names, nil
}
