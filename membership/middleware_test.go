package membership

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"membership-gateway/membership/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	h := RateLimitMiddleware(RateLimitOptions{
		Limiter:    infra.NewLimiterStore(0.02, 1),
		RetryAfter: 2500 * time.Millisecond,
	})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/group/check", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	require.Equal(t, http.StatusOK, w1.Code)

	// burst=1 e rps bem baixo: a segunda do mesmo IP bloqueia
	r2 := httptest.NewRequest(http.MethodGet, "http://example/group/check", nil)
	r2.RemoteAddr = "10.0.0.1:4321"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	// int(2.5s.Seconds()) == 2
	assert.Equal(t, "2", w2.Header().Get("Retry-After"))

	// outro IP tem seu próprio limiter
	r3 := httptest.NewRequest(http.MethodGet, "http://example/group/check", nil)
	r3.RemoteAddr = "10.0.0.2:1234"
	w3 := httptest.NewRecorder()
	h.ServeHTTP(w3, r3)
	assert.Equal(t, http.StatusOK, w3.Code)

	assert.Equal(t, 2, calls)
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	w := httptest.NewRecorder()
	RateLimitMiddleware(RateLimitOptions{})(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestRemoteHostKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", RemoteHostKey(r))

	r.RemoteAddr = "10.0.0.9"
	assert.Equal(t, "10.0.0.9", RemoteHostKey(r))

	r.RemoteAddr = ""
	assert.Equal(t, "unknown", RemoteHostKey(r))
}

func TestConcurrencyMiddleware_TimesOutWhenNoSlot(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once

	// handler que segura a vaga até liberarmos.
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedOnce.Do(func() { close(started) })
		<-release
		w.WriteHeader(http.StatusOK)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		AcquireTimeout: 25 * time.Millisecond,
	})(next)

	first := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))
		first <- w.Code
	}()

	select {
	case <-started:
	case <-time.After(200 * time.Millisecond):
		close(release)
		t.Fatalf("timeout waiting first request to start")
	}

	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w2.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-first)

	// vaga liberada: a próxima passa
	w3 := httptest.NewRecorder()
	h.ServeHTTP(w3, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	assert.Equal(t, http.StatusOK, w3.Code)
}
