package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"greendrake/rentals/internal/api/middleware"
	"greendrake/rentals/internal/config"
)

func setupRateLimitEngine(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(rateLimiter.Limit())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/other", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

func doRequest(router http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterMiddleware_Limit(t *testing.T) {
	router := setupRateLimitEngine(&config.Config{
		RateLimitRefillRate: 1, // 1 token per second
		RateLimitBucketSize: 1,
	})

	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "1.2.3.4:12345").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "/test", "1.2.3.4:12345").Code)

	// Buckets are per client and per route.
	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "5.6.7.8:12345").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, "/other", "1.2.3.4:12345").Code)
}

func TestRateLimiterMiddleware_Burst(t *testing.T) {
	router := setupRateLimitEngine(&config.Config{
		RateLimitRefillRate: 1,
		RateLimitBucketSize: 3,
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(router, "/test", "1.2.3.4:12345").Code, "request %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "/test", "1.2.3.4:12345").Code)
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CORSMiddleware("http://localhost:3000"))
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
