// Package cache keeps compiled templates by canonical id.
package cache

import (
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/neurodesk/handlebars/pkg/handlebars"
	"github.com/neurodesk/handlebars/pkg/metrics"
)

const DefaultMaxEntries = 256

type Options struct {
	// MaxEntries bounds the cache; the least recently used template is
	// evicted first. Non-positive means DefaultMaxEntries.
	MaxEntries int
	// Reload recompiles an entry when its source is newer than the cached
	// tree.
	Reload bool
	// Registerer receives the cache metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

type entry struct {
	tmpl     *handlebars.Template
	modified time.Time
}

// Cache implements handlebars.Cache. Concurrent first requests for an id
// share one compile.
type Cache struct {
	entries *lru.Cache[string, entry]
	group   singleflight.Group
	reload  bool
	metrics *metrics.Cache
	logger  *slog.Logger
}

var _ handlebars.Cache = (*Cache)(nil)

func New(opts Options) (*Cache, error) {
	size := opts.MaxEntries
	if size <= 0 {
		size = DefaultMaxEntries
	}
	c := &Cache{
		reload:  opts.Reload,
		metrics: metrics.NewCache(opts.Registerer),
		logger:  opts.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	entries, err := lru.NewWithEvict(size, func(id string, _ entry) {
		c.metrics.Evictions.Inc()
		c.logger.Debug("evicted template", "id", id)
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func (c *Cache) fresh(e entry, src handlebars.Source) bool {
	return !c.reload || !src.LastModified.After(e.modified)
}

// Get returns the cached tree for id, compiling it when absent or stale.
func (c *Cache) Get(id string, src handlebars.Source, compile func() (*handlebars.Template, error)) (*handlebars.Template, error) {
	if e, ok := c.entries.Get(id); ok && c.fresh(e, src) {
		c.metrics.Hits.Inc()
		return e.tmpl, nil
	}
	c.metrics.Misses.Inc()
	v, err, _ := c.group.Do(id, func() (any, error) {
		old, cached := c.entries.Peek(id)
		if cached && c.fresh(old, src) {
			return old.tmpl, nil
		}
		start := time.Now()
		t, err := compile()
		c.metrics.CompileDuration.Observe(time.Since(start).Seconds())
		c.metrics.Compiles.Inc()
		if err != nil {
			return nil, err
		}
		if cached {
			c.logger.Debug("reloaded template", "id", id, "modified", src.LastModified)
		}
		c.entries.Add(id, entry{tmpl: t, modified: src.LastModified})
		c.metrics.Entries.Set(float64(c.entries.Len()))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*handlebars.Template), nil
}

// Evict drops id. Indented variants of a partial are cached under their own
// keys and are not affected.
func (c *Cache) Evict(id string) {
	c.entries.Remove(id)
	c.metrics.Entries.Set(float64(c.entries.Len()))
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
	c.metrics.Entries.Set(0)
}

func (c *Cache) Len() int { return c.entries.Len() }
