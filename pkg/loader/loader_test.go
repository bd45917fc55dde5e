package loader

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileLoader(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(first, "page.hbs"), "page")
	writeFile(t, filepath.Join(first, "parts", "header.hbs"), "header")
	writeFile(t, filepath.Join(second, "page.hbs"), "shadowed")
	writeFile(t, filepath.Join(second, "footer.hbs"), "footer")
	writeFile(t, filepath.Join(second, "notes.txt"), "ignored")

	l := NewFileLoader(".hbs", first, second)

	tests := []struct {
		name     string
		expected string
	}{
		{"page", "page"},
		{"page.hbs", "page"},
		{"./parts/header", "header"},
		{"parts/../page", "page"},
		{"footer", "footer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := l.Resolve(tt.name)
			require.NoError(t, err)
			src, err := l.Load(id)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, src.Text)
			assert.False(t, src.LastModified.IsZero())
		})
	}

	a, err := l.Resolve("page")
	require.NoError(t, err)
	b, err := l.Resolve("./page.hbs")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = l.Resolve("missing")
	assert.True(t, handlebars.IsNotFound(err))
	_, err = l.Resolve("../outside")
	assert.Error(t, err)
	assert.False(t, handlebars.IsNotFound(err))

	names, err := l.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"footer", "page", "parts/header"}, names)
}

func TestFileLoaderWithEngine(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "page.hbs"), "<{{> parts/item}}>")
	writeFile(t, filepath.Join(root, "parts", "item.hbs"), "{{name}}")

	e := handlebars.NewEngine()
	e.Loader = NewFileLoader(".hbs", root)
	tmpl, err := e.CompileFile("page")
	require.NoError(t, err)
	out, err := tmpl.Execute(map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "<x>", out)
}

func TestChain(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "disk.hbs"), "disk")
	c := Chain{NewFileLoader(".hbs", root), handlebars.MemoryLoader{"mem": "memory"}}

	for name, expected := range map[string]string{"disk": "disk", "mem": "memory"} {
		id, err := c.Resolve(name)
		require.NoError(t, err)
		src, err := c.Load(id)
		require.NoError(t, err)
		assert.Equal(t, expected, src.Text)
	}

	_, err := c.Resolve("none")
	assert.True(t, handlebars.IsNotFound(err))

	names, err := c.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"disk", "mem"}, names)
}

func templateServer(t *testing.T, requests, revalidated *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/partials/card.hbs":
			if r.Header.Get("If-None-Match") == `"v1"` {
				revalidated.Add(1)
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", `"v1"`)
			_, _ = w.Write([]byte("[{{title}}]"))
		case "/partials/broken.hbs":
			w.WriteHeader(http.StatusBadRequest)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPLoaderRevalidates(t *testing.T) {
	var requests, revalidated atomic.Int32
	srv := templateServer(t, &requests, &revalidated)

	l, err := NewHTTPLoader(srv.URL+"/partials", ".hbs", "")
	require.NoError(t, err)
	id, err := l.Resolve("card")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/partials/card.hbs", id)

	first, err := l.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "[{{title}}]", first.Text)

	second, err := l.Load(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, int32(1), revalidated.Load())
}

func TestHTTPLoaderErrors(t *testing.T) {
	var requests, revalidated atomic.Int32
	srv := templateServer(t, &requests, &revalidated)
	l, err := NewHTTPLoader(srv.URL+"/partials/", ".hbs", "")
	require.NoError(t, err)

	id, err := l.Resolve("missing")
	require.NoError(t, err)
	_, err = l.Load(id)
	assert.True(t, handlebars.IsNotFound(err))

	id, err = l.Resolve("broken")
	require.NoError(t, err)
	_, err = l.Load(id)
	assert.ErrorContains(t, err, "HTTP 400")

	_, err = l.Load("https://elsewhere.example/x.hbs")
	assert.True(t, handlebars.IsNotFound(err))
}

func TestHTTPLoaderFallsBackToCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	l, err := NewHTTPLoader(srv.URL, "", "")
	require.NoError(t, err)
	l.RetryDelay = time.Millisecond
	id, err := l.Resolve("t")
	require.NoError(t, err)
	_, err = l.Load(id)
	require.NoError(t, err)

	fail.Store(true)
	src, err := l.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "body", src.Text)
}

func TestHTTPLoaderPersists(t *testing.T) {
	var requests, revalidated atomic.Int32
	srv := templateServer(t, &requests, &revalidated)
	dir := t.TempDir()

	l, err := NewHTTPLoader(srv.URL+"/partials", ".hbs", dir)
	require.NoError(t, err)
	id, err := l.Resolve("card")
	require.NoError(t, err)
	_, err = l.Load(id)
	require.NoError(t, err)

	fresh, err := NewHTTPLoader(srv.URL+"/partials", ".hbs", dir)
	require.NoError(t, err)
	src, err := fresh.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "[{{title}}]", src.Text)
	assert.Equal(t, int32(1), revalidated.Load())
}

func TestHTTPLoaderRejectsEscapingNames(t *testing.T) {
	l, err := NewHTTPLoader("https://example.org/partials/", ".hbs", "")
	require.NoError(t, err)
	_, err = l.Resolve("../secret")
	assert.Error(t, err)
}
