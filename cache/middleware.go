package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultDependents lists resources whose cached reads go stale when another
// resource changes.
var DefaultDependents = map[string][]string{
	"rmas":      {"assets", "stock", "tickets"},
	"transfers": {"stock"},
	"stock":     {"transfers"},
	"clients":   {"sites", "users"},
	"sites":     {"clients"},
	"tickets":   {"assets"},
}

// DefaultBypass lists user-specific resources that are never cached.
var DefaultBypass = []string{"auth", "notifications", "worklogs", "events", "health", "admin", "export"}

// ScopeFunc names the tenant scope of a request, e.g. "3:technician".
type ScopeFunc func(r *http.Request) string

type Cache struct {
	backend    Backend
	ttl        time.Duration
	log        *zap.Logger
	scope      ScopeFunc
	dependents map[string][]string
	bypass     map[string]bool
	group      singleflight.Group
}

func New(backend Backend, ttl time.Duration, scope ScopeFunc, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	if scope == nil {
		scope = func(*http.Request) string { return "anon" }
	}
	c := &Cache{
		backend:    backend,
		ttl:        ttl,
		log:        log.Named("cache"),
		scope:      scope,
		dependents: DefaultDependents,
		bypass:     make(map[string]bool),
	}
	for _, b := range DefaultBypass {
		c.bypass[b] = true
	}
	return c
}

// Key builds the cache key for a scoped request path and its query, with
// query parameters sorted.
func Key(scope, path string, query url.Values) string {
	key := KeyPrefix + scope + ":" + path
	if len(query) == 0 {
		return key
	}
	names := make([]string, 0, len(query))
	for k := range query {
		names = append(names, k)
	}
	sort.Strings(names)
	var parts []string
	for _, k := range names {
		vals := append([]string(nil), query[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return key + "?" + strings.Join(parts, "&")
}

// Resource returns the first path segment after /api/.
func Resource(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

type cached struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type flightResult struct {
	status int
	header http.Header
	body   []byte
}

// Middleware serves cached GETs and invalidates on successful writes.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := Resource(r.URL.Path)
		if res == "" || c.bypass[res] {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method != http.MethodGet {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() < 400 {
				c.Invalidate(context.WithoutCancel(r.Context()), res)
			}
			return
		}

		key := Key(c.scope(r), r.URL.Path, r.URL.Query())
		if data, ok, err := c.backend.Get(r.Context(), key); err != nil {
			c.log.Warn("cache get", zap.String("key", key), zap.Error(err))
		} else if ok {
			var hit cached
			if json.Unmarshal(data, &hit) == nil {
				w.Header().Set("Content-Type", hit.ContentType)
				w.Header().Set("X-Cache", "HIT")
				w.Write(hit.Body)
				return
			}
		}

		v, _, shared := c.group.Do(key, func() (any, error) {
			rec := newRecorder()
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			if rec.status == http.StatusOK {
				data, _ := json.Marshal(cached{ContentType: rec.header.Get("Content-Type"), Body: rec.body.Bytes()})
				if err := c.backend.Set(context.WithoutCancel(r.Context()), key, data, c.ttl); err != nil {
					c.log.Warn("cache set", zap.String("key", key), zap.Error(err))
				}
			}
			return &flightResult{status: rec.status, header: rec.header, body: rec.body.Bytes()}, nil
		})
		fr := v.(*flightResult)
		for k, vals := range fr.header {
			w.Header()[k] = vals
		}
		if shared {
			w.Header().Set("X-Cache", "SHARED")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.WriteHeader(fr.status)
		w.Write(fr.body)
	})
}

// Invalidate drops cached reads of resource and its dependents.
func (c *Cache) Invalidate(ctx context.Context, resource string) {
	for _, res := range append([]string{resource}, c.dependents[resource]...) {
		n, err := c.backend.DeleteMatching(ctx, "/api/"+res)
		if err != nil {
			c.log.Warn("cache invalidate", zap.String("resource", res), zap.Error(err))
			continue
		}
		if n > 0 {
			c.log.Debug("cache invalidated", zap.String("resource", res), zap.Int("keys", n))
		}
	}
}

type recorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header)}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}
