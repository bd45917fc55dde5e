package loader

import (
	"errors"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

// Chain tries each loader in order. The first loader that resolves a name
// owns it.
type Chain []handlebars.Loader

var (
	_ handlebars.Loader = Chain(nil)
	_ handlebars.Lister = Chain(nil)
)

func (c Chain) Resolve(name string) (string, error) {
	var errs []error
	for _, l := range c {
		id, err := l.Resolve(name)
		if err == nil {
			return id, nil
		}
		if !handlebars.IsNotFound(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", handlebars.ErrTemplateNotFound{Name: name}
}

func (c Chain) Load(id string) (handlebars.Source, error) {
	for _, l := range c {
		src, err := l.Load(id)
		if err == nil || !handlebars.IsNotFound(err) {
			return src, err
		}
	}
	return handlebars.Source{}, handlebars.ErrTemplateNotFound{Name: id}
}

// List merges the names of every loader that can enumerate its templates.
func (c Chain) List() ([]string, error) {
	var names []string
	for _, l := range c {
		if lister, ok := l.(handlebars.Lister); ok {
			more, err := lister.List()
			if err != nil {
				return nil, err
			}
			names = append(names, more...)
		}
	}
	return names, nil
}
