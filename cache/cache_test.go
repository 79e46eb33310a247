package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestKey(t *testing.T) {
	q := url.Values{"status": {"open"}, "b": {"2", "1"}, "a": {"x y"}}
	assert.Equal(t, "ticketops:cache:3:admin:/api/tickets?a=x+y&b=1&b=2&status=open", Key("3:admin", "/api/tickets", q))
	assert.Equal(t, "ticketops:cache:0:super_admin:/api/assets", Key("0:super_admin", "/api/assets", nil))
}

func TestResource(t *testing.T) {
	assert.Equal(t, "tickets", Resource("/api/tickets/12/comments"))
	assert.Equal(t, "stock", Resource("/api/stock"))
	assert.Equal(t, "", Resource("/metrics"))
}

func TestMemoryBackendExpiry(t *testing.T) {
	m := NewMemoryBackend()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMemoryDeleteMatching(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()
	m.Set(ctx, Key("1:admin", "/api/stock", nil), []byte("a"), 0)
	m.Set(ctx, Key("2:admin", "/api/stock/4", nil), []byte("b"), 0)
	m.Set(ctx, Key("1:admin", "/api/tickets", nil), []byte("c"), 0)

	n, err := m.DeleteMatching(ctx, "/api/stock")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Len())
}

type counting struct {
	calls  atomic.Int32
	status int
}

func (h *counting) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := h.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		w.WriteHeader(h.status)
		return
	}
	w.WriteHeader(h.status)
	fmt.Fprintf(w, `{"call":%d}`, n)
}

func newTestCache() (*Cache, *MemoryBackend) {
	m := NewMemoryBackend()
	return New(m, time.Minute, func(r *http.Request) string { return r.Header.Get("X-Scope") }, nil), m
}

func do(h http.Handler, method, path, scope string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Scope", scope)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareHitAndScope(t *testing.T) {
	c, _ := newTestCache()
	inner := &counting{status: http.StatusOK}
	h := c.Middleware(inner)

	first := do(h, http.MethodGet, "/api/tickets?status=open", "1:admin")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := do(h, http.MethodGet, "/api/tickets?status=open", "1:admin")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))

	other := do(h, http.MethodGet, "/api/tickets?status=open", "2:admin")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestMiddlewareSkipsErrorsAndBypass(t *testing.T) {
	c, m := newTestCache()
	inner := &counting{status: http.StatusNotFound}
	h := c.Middleware(inner)

	do(h, http.MethodGet, "/api/tickets/99", "1:admin")
	do(h, http.MethodGet, "/api/tickets/99", "1:admin")
	assert.EqualValues(t, 2, inner.calls.Load())

	inner.status = http.StatusOK
	do(h, http.MethodGet, "/api/notifications", "1:admin")
	rec := do(h, http.MethodGet, "/api/notifications", "1:admin")
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Zero(t, m.Len())
}

func TestMutationInvalidatesDependents(t *testing.T) {
	c, m := newTestCache()
	inner := &counting{status: http.StatusOK}
	h := c.Middleware(inner)

	for _, p := range []string{"/api/rmas", "/api/assets", "/api/stock", "/api/users"} {
		do(h, http.MethodGet, p, "1:admin")
	}
	require.Equal(t, 4, m.Len())

	inner.status = http.StatusBadRequest
	do(h, http.MethodPost, "/api/rmas", "1:admin")
	assert.Equal(t, 4, m.Len(), "failed writes keep the cache")

	inner.status = http.StatusCreated
	do(h, http.MethodPost, "/api/rmas", "1:admin")
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "HIT", do(h, http.MethodGet, "/api/users", "1:admin").Header().Get("X-Cache"))
}

func TestSingleFlight(t *testing.T) {
	c, _ := newTestCache()
	release := make(chan struct{})
	var calls atomic.Int32
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(`[]`))
	}))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := do(h, http.MethodGet, "/api/assets", "1:admin")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, `[]`, rec.Body.String())
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.EqualValues(t, 1, calls.Load())
}

// Runs against a real server when TICKETOPS_TEST_REDIS is set, e.g. localhost:6379.
func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("TICKETOPS_TEST_REDIS")
	if addr == "" {
		t.Skip("TICKETOPS_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	r := NewRedisBackend(client)
	ctx := context.Background()
	require.NoError(t, r.Ping(ctx))

	key := Key("test", "/api/stock", nil)
	require.NoError(t, r.Set(ctx, key, []byte("v"), time.Minute))
	v, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	n, err := r.DeleteMatching(ctx, "/api/stock")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
	_, ok, _ = r.Get(ctx, key)
	assert.False(t, ok)
}
