// ABOUTME: Tests for the submission cache and its HTTP middleware
// ABOUTME: Covers window expiry, eviction, sweeping, and 409 on repeated keys

package dedupe

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, window time.Duration, maxKeys int) (*Cache, *fakeClock) {
	t.Helper()
	c := New(window, maxKeys)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clock.Now
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_CheckAndMark(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.False(t, c.CheckAndMark("a"))
	assert.True(t, c.CheckAndMark("a"))
	assert.True(t, c.Seen("a"))
	assert.False(t, c.Seen("b"))
}

func TestCache_WindowExpiry(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.CheckAndMark("a")
	clock.Advance(59 * time.Second)
	assert.True(t, c.Seen("a"))

	clock.Advance(time.Second)
	assert.False(t, c.Seen("a"))
	assert.False(t, c.CheckAndMark("a"), "expired key is accepted again")
}

func TestCache_EvictsOldest(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 3)

	for _, k := range []string{"a", "b", "c", "d"} {
		c.CheckAndMark(k)
	}
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen("a"))
	assert.True(t, c.Seen("d"))
}

func TestCache_Forget(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	c.CheckAndMark("a")
	c.Forget("a")
	c.Forget("missing")
	assert.False(t, c.CheckAndMark("a"))
}

func TestCache_Sweep(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.CheckAndMark("old")
	clock.Advance(30 * time.Second)
	c.CheckAndMark("new")
	clock.Advance(40 * time.Second)

	c.sweep()
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Seen("new"))
}

func TestCache_Defaults(t *testing.T) {
	c := New(0, 0)
	defer c.Close()
	assert.Equal(t, DefaultWindow, c.window)
	assert.Equal(t, DefaultMaxKeys, c.maxKeys)
	c.Close()
}

func TestCache_ConcurrentCheckAndMark(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 1000)

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.CheckAndMark("same") {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), firsts.Load())
}

func TestMiddleware_RejectsRepeat(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	var calls int
	h := Middleware(c, func(r *http.Request) string { return r.Header.Get("X-User") })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusCreated)
		}))

	send := func(user, path, key string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("X-User", user)
		if key != "" {
			req.Header.Set(HeaderName, key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send("ann", "/api/companies", "k1"))
	assert.Equal(t, http.StatusConflict, send("ann", "/api/companies", "k1"))
	assert.Equal(t, http.StatusCreated, send("bob", "/api/companies", "k1"), "other caller")
	assert.Equal(t, http.StatusCreated, send("ann", "/api/companies/1/clients", "k1"), "other path")
	assert.Equal(t, http.StatusCreated, send("ann", "/api/companies", ""), "no key")
	assert.Equal(t, http.StatusCreated, send("ann", "/api/companies", ""))
	assert.Equal(t, 5, calls)
}

func TestMiddleware_ConflictBody(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	h := Middleware(c, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderName, "dup")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if i == 1 {
			require.Equal(t, http.StatusConflict, rec.Code)
			assert.JSONEq(t, `{"error":"duplicate submission"}`, rec.Body.String())
		}
	}
}

func TestMiddleware_FailureReleasesKey(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	status := http.StatusUnprocessableEntity
	h := Middleware(c, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderName, "retry")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnprocessableEntity, send())
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, send())
	assert.Equal(t, http.StatusConflict, send())
}

func TestMiddleware_IgnoresOtherMethods(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)
	h := Middleware(c, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/x/%d", 1), nil)
		req.Header.Set(HeaderName, "same")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
