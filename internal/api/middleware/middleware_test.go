package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/divpanel/internal/infrastructure/config"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func request(r http.Handler, remote string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit(t *testing.T) {
	r := newRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	assert.Equal(t, http.StatusOK, request(r, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, request(r, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, request(r, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, request(r, "10.0.0.2:1000"), "limits are per client")
}

func TestRateLimitRetryAfter(t *testing.T) {
	r := newRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	assert.Equal(t, http.StatusOK, request(r, "10.0.0.1:1000"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimitKey(t *testing.T) {
	shared := func(*gin.Context) string { return "all" }
	r := newRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Key: shared}))

	assert.Equal(t, http.StatusOK, request(r, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, request(r, "10.0.0.2:1000"))
}

func TestCORS(t *testing.T) {
	preflight := func(r http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("any origin", func(t *testing.T) {
		r := newRouter(CORS(config.CORSConfig{Origins: []string{"*"}}))

		w := preflight(r, "http://example.com")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://example.com")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Trace-Id")
	})

	t.Run("listed origins", func(t *testing.T) {
		r := newRouter(CORS(config.CORSConfig{Origins: []string{"http://editor.test"}}))

		w := preflight(r, "http://editor.test")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://editor.test", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		w = preflight(r, "http://elsewhere.test")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
