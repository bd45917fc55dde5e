package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/neurodesk/handlebars/pkg/handlebars"
)

// HTTPLoader fetches templates relative to a base URL. Responses are kept
// with their ETag and Last-Modified headers and revalidated with a
// conditional GET on every load. When Dir is set the cache also persists on
// disk between runs.
type HTTPLoader struct {
	Base    *url.URL
	Suffix  string
	Dir     string
	Client  *http.Client
	Retries int
	// RetryDelay is the first backoff; it doubles on each attempt.
	RetryDelay time.Duration
	Logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]*remote
}

var _ handlebars.Loader = (*HTTPLoader)(nil)

type remote struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Fetched      time.Time `json:"fetched"`
	Body         string    `json:"body"`
}

// NewHTTPLoader returns a loader for base with a reasonable default client.
// base is treated as a directory.
func NewHTTPLoader(base, suffix, dir string) (*HTTPLoader, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing remote template base: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &HTTPLoader{
		Base:       u,
		Suffix:     suffix,
		Dir:        dir,
		Client:     &http.Client{Timeout: 30 * time.Second},
		Retries:    3,
		RetryDelay: time.Second,
	}, nil
}

func (l *HTTPLoader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *HTTPLoader) Resolve(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if l.Suffix != "" && !strings.HasSuffix(clean, l.Suffix) {
		clean += l.Suffix
	}
	return l.Base.ResolveReference(&url.URL{Path: clean}).String(), nil
}

// Load fetches id, reusing the cached body when the server answers 304 or
// cannot be reached.
func (l *HTTPLoader) Load(id string) (handlebars.Source, error) {
	if !strings.HasPrefix(id, l.Base.String()) {
		return handlebars.Source{}, handlebars.ErrTemplateNotFound{Name: id}
	}
	cached := l.cached(id)
	r, err := l.fetch(context.Background(), id, cached)
	if err != nil {
		if cached != nil && !handlebars.IsNotFound(err) {
			l.logger().Warn("using cached remote template", "url", id, "error", err)
			return cached.source(), nil
		}
		return handlebars.Source{}, err
	}
	if r != cached {
		l.store(r)
	}
	return r.source(), nil
}

func (r *remote) source() handlebars.Source {
	return handlebars.Source{Text: r.Body, LastModified: r.Fetched}
}

func (l *HTTPLoader) fetch(ctx context.Context, id string, cached *remote) (*remote, error) {
	var lastErr error
	for attempt := 0; attempt <= l.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(l.RetryDelay << (attempt - 1))
		}
		r, retry, err := l.get(ctx, id, cached)
		if err == nil {
			return r, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

// get performs one conditional GET. retry reports whether the failure may be
// transient.
func (l *HTTPLoader) get(ctx context.Context, id string, cached *remote) (*remote, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, id, nil)
	if err != nil {
		return nil, false, err
	}
	if cached != nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		return cached, false, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, false, handlebars.ErrTemplateNotFound{Name: id}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, resp.StatusCode >= 500, fmt.Errorf("fetching %s: HTTP %d", id, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	r := &remote{
		URL:          id,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Fetched:      time.Now(),
		Body:         string(body),
	}
	if t, err := http.ParseTime(r.LastModified); err == nil {
		r.Fetched = t
	}
	l.logger().Debug("fetched remote template", "url", id, "etag", r.ETag)
	return r, false, nil
}

func (l *HTTPLoader) cached(id string) *remote {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.entries[id]; ok {
		return r
	}
	if l.Dir == "" {
		return nil
	}
	b, err := os.ReadFile(l.metaPath(id))
	if err != nil {
		return nil
	}
	var r remote
	if err := json.Unmarshal(b, &r); err != nil || r.URL != id {
		return nil
	}
	if l.entries == nil {
		l.entries = map[string]*remote{}
	}
	l.entries[id] = &r
	return &r
}

func (l *HTTPLoader) store(r *remote) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = map[string]*remote{}
	}
	l.entries[r.URL] = r
	if l.Dir == "" {
		return
	}
	if err := writeMeta(l.metaPath(r.URL), r); err != nil {
		l.logger().Warn("persisting remote template", "url", r.URL, "error", err)
	}
}

func (l *HTTPLoader) metaPath(id string) string {
	sum := sha256.Sum256([]byte(id))
	return filepath.Join(l.Dir, hex.EncodeToString(sum[:])+".json")
}

func writeMeta(path string, r *remote) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	return nil
}
