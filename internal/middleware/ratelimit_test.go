package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/inkpost/internal/cache"
	"github.com/charlesng35/inkpost/internal/ratelimit"
	"github.com/charlesng35/inkpost/pkg/response"
)

type brokenStore struct{}

func (brokenStore) SlidingWindow(context.Context, string, int, time.Duration, time.Time) (cache.WindowResult, error) {
	return cache.WindowResult{}, fmt.Errorf("dial tcp: connection refused")
}
func (brokenStore) Ping(context.Context) error { return nil }
func (brokenStore) Close() error                { return nil }

func newTestLimiter(t *testing.T, store cache.Store) *ratelimit.Limiter {
	t.Helper()
	limiter, err := ratelimit.New(store, ratelimit.DefaultPolicies(), ratelimit.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return limiter
}

func commentMessage(wait int) string {
	return fmt.Sprintf("You're commenting too fast, try again in %d seconds", wait)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := cache.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	r := gin.New()
	r.POST("/comments", RateLimit(newTestLimiter(t, store), ratelimit.PolicyComment, nil, commentMessage),
		func(c *gin.Context) { c.Status(http.StatusCreated) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/comments", nil))
		require.Equal(t, http.StatusCreated, w.Code)
		require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, fmt.Sprint(1-i), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/comments", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body response.TooManyRequests
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Greater(t, body.WaitTimeSeconds, 0)
	require.LessOrEqual(t, body.WaitTimeSeconds, 60)
	require.Equal(t, commentMessage(body.WaitTimeSeconds), body.Message)
	require.Equal(t, fmt.Sprint(body.WaitTimeSeconds), w.Header().Get("Retry-After"))
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitMiddlewareSeparatesClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := cache.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	r := gin.New()
	r.POST("/resend", RateLimit(newTestLimiter(t, store), ratelimit.PolicyResendVerification, nil, nil),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(addr string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/resend", nil)
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
}

func TestRateLimitMiddlewareDefaultMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := cache.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	r := gin.New()
	r.POST("/resend", RateLimit(newTestLimiter(t, store), ratelimit.PolicyResendVerification, nil, nil),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/resend", nil))
		if i == 1 {
			var body response.TooManyRequests
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.Equal(t, "Too many requests, please slow down", body.Message)
		}
	}
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/comments", RateLimit(newTestLimiter(t, brokenStore{}), ratelimit.PolicyComment, nil, nil),
		func(c *gin.Context) { c.Status(http.StatusCreated) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/comments", nil))
		require.Equal(t, http.StatusCreated, w.Code)
	}
}

func TestRateLimitMiddlewareUnknownPolicy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := cache.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	r := gin.New()
	r.POST("/x", RateLimit(newTestLimiter(t, store), "bogus", nil, nil),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestClientIdentityUsesAuthenticatedEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "1.2.3.4:5678"

	require.Equal(t, "1.2.3.4", ClientIdentity(c))

	c.Set(CtxEmailKey, "Reader@Example.com")
	require.Equal(t, "1.2.3.4:reader@example.com", ClientIdentity(c))
}
