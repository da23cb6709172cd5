package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(l *SessionLimiter) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Session()(RateLimit(l, discardLogger())(ok))
}

func hit(h http.Handler, session string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil)
	req.Header.Set(SessionHeader, session)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	h := limitedHandler(NewSessionLimiter(RateLimitConfig{RPS: 0.001, Burst: 3}))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "session-aaaa").Code, "request %d", i+1)
	}

	rec := hit(h, "session-aaaa")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_SessionsAreIndependent(t *testing.T) {
	h := limitedHandler(NewSessionLimiter(RateLimitConfig{RPS: 0.001, Burst: 1}))

	assert.Equal(t, http.StatusOK, hit(h, "session-aaaa").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "session-aaaa").Code)
	assert.Equal(t, http.StatusOK, hit(h, "session-bbbb").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := limitedHandler(NewSessionLimiter(RateLimitConfig{RPS: 0, Burst: 0}))
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, hit(h, "session-aaaa").Code)
	}

	h = limitedHandler(nil)
	assert.Equal(t, http.StatusOK, hit(h, "session-aaaa").Code)
}

func TestSessionLimiter_Evict(t *testing.T) {
	l := NewSessionLimiter(RateLimitConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	l.Allow("old-session")
	base = base.Add(50 * time.Second)
	l.Allow("new-session")
	base = base.Add(20 * time.Second)

	assert.Equal(t, 1, l.Evict())
	assert.Equal(t, 1, l.Len())
}

func TestSessionLimiter_RunStopsOnCancel(t *testing.T) {
	l := NewSessionLimiter(RateLimitConfig{RPS: 1, Burst: 1, IdleTTL: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
