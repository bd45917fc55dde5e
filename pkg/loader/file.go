// Package loader provides template sources for the handlebars engine.
package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

// FileLoader finds templates below a list of root directories. Names use
// forward slashes and may omit Suffix. The canonical id is the cleaned path
// of the file, so the same file reached by different names is one template.
type FileLoader struct {
	Roots  []string
	Suffix string
}

var (
	_ handlebars.Loader = (*FileLoader)(nil)
	_ handlebars.Lister = (*FileLoader)(nil)
)

func NewFileLoader(suffix string, roots ...string) *FileLoader {
	return &FileLoader{Roots: roots, Suffix: suffix}
}

// cleanName rejects names that would leave the root.
func cleanName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid template name %q", name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("template name %q escapes the template root", name)
	}
	return clean, nil
}

func (l *FileLoader) candidates(name string) []string {
	if l.Suffix == "" || strings.HasSuffix(name, l.Suffix) {
		return []string{name}
	}
	return []string{name + l.Suffix, name}
}

func (l *FileLoader) Resolve(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	for _, root := range l.Roots {
		for _, cand := range l.candidates(clean) {
			p := filepath.Join(root, filepath.FromSlash(cand))
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return filepath.Clean(p), nil
			}
		}
	}
	return "", handlebars.ErrTemplateNotFound{Name: name}
}

func (l *FileLoader) Load(id string) (handlebars.Source, error) {
	f, err := os.Open(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return handlebars.Source{}, handlebars.ErrTemplateNotFound{Name: id}
		}
		return handlebars.Source{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return handlebars.Source{}, err
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return handlebars.Source{}, err
	}
	return handlebars.Source{Text: string(b), LastModified: st.ModTime()}, nil
}

// List returns the names of all templates under the roots, suffix removed.
func (l *FileLoader) List() ([]string, error) {
	seen := map[string]bool{}
	for _, root := range l.Roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if l.Suffix != "" && !strings.HasSuffix(p, l.Suffix) {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			seen[strings.TrimSuffix(filepath.ToSlash(rel), l.Suffix)] = true
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
