package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

func compiler(t *testing.T, calls *atomic.Int32, src string) func() (*handlebars.Template, error) {
	return func() (*handlebars.Template, error) {
		calls.Add(1)
		tmpl, err := handlebars.Compile(src)
		require.NoError(t, err)
		return tmpl, nil
	}
}

func TestGetCompilesOnce(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	var calls atomic.Int32

	first, err := c.Get("a", handlebars.Source{Text: "x"}, compiler(t, &calls, "x"))
	require.NoError(t, err)
	second, err := c.Get("a", handlebars.Source{Text: "x"}, compiler(t, &calls, "x"))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.Hits))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.Misses))
}

func TestGetConcurrentFirstAccess(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	var calls atomic.Int32
	release := make(chan struct{})
	compile := func() (*handlebars.Template, error) {
		calls.Add(1)
		<-release
		return handlebars.Compile("x")
	}

	var wg sync.WaitGroup
	results := make([]*handlebars.Template, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tmpl, err := c.Get("shared", handlebars.Source{}, compile)
			assert.NoError(t, err)
			results[i] = tmpl
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestGetReloadsNewerSource(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	c, err := New(Options{Reload: true})
	require.NoError(t, err)
	var calls atomic.Int32
	_, err = c.Get("a", handlebars.Source{LastModified: t0}, compiler(t, &calls, "v1"))
	require.NoError(t, err)
	_, err = c.Get("a", handlebars.Source{LastModified: t0}, compiler(t, &calls, "v1"))
	require.NoError(t, err)
	tmpl, err := c.Get("a", handlebars.Source{LastModified: t1}, compiler(t, &calls, "v2"))
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "v2", tmpl.Source())
}

func TestGetWithoutReloadKeepsEntry(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	var calls atomic.Int32
	_, err = c.Get("a", handlebars.Source{}, compiler(t, &calls, "v1"))
	require.NoError(t, err)
	tmpl, err := c.Get("a", handlebars.Source{LastModified: time.Now()}, compiler(t, &calls, "v2"))
	require.NoError(t, err)
	assert.Equal(t, "v1", tmpl.Source())
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	boom := errors.New("boom")
	_, err = c.Get("a", handlebars.Source{}, func() (*handlebars.Template, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestEviction(t *testing.T) {
	registry := prometheus.NewRegistry()
	c, err := New(Options{MaxEntries: 2, Registerer: registry})
	require.NoError(t, err)
	var calls atomic.Int32
	for _, id := range []string{"a", "b", "c"} {
		_, err := c.Get(id, handlebars.Source{}, compiler(t, &calls, id))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.Evictions))

	_, err = c.Get("a", handlebars.Source{}, compiler(t, &calls, "a"))
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())

	c.Evict("a")
	assert.Equal(t, 1, c.Len())
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestEngineUsesCache(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	e := handlebars.NewEngine()
	e.Loader = handlebars.MemoryLoader{"page": "<{{> item}}>", "item": "i"}
	e.Cache = c

	first, err := e.CompileFile("page")
	require.NoError(t, err)
	second, err := e.CompileFile("page")
	require.NoError(t, err)
	assert.Same(t, first, second)

	out, err := first.Execute(nil)
	require.NoError(t, err)
	assert.Equal(t, "<i>", out)
	assert.Equal(t, 2, c.Len())
}
