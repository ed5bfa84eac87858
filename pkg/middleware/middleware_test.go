package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterPerSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(logger.Nop(), RateLimiterOptions{Limit: 0.0001, Burst: 2})
	r := gin.New()
	r.Use(errors.ErrorHandler(), rl.Middleware(ctx))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	do := func(session string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(SessionIDHeader, session)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("a"))
	assert.Equal(t, http.StatusOK, do("a"))
	assert.Equal(t, http.StatusTooManyRequests, do("a"))
	assert.Equal(t, http.StatusOK, do("b"))
}

func TestEvictIdle(t *testing.T) {
	rl := NewRateLimiter(logger.Nop(), RateLimiterOptions{Limit: 1, Burst: 1, ExpiryDuration: time.Minute})
	rl.getLimiter("old")
	rl.evictIdle(time.Now().Add(2 * time.Minute))
	assert.Empty(t, rl.clients)
}

func TestSessionAndRequestIDs(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware(), SessionIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetSessionID(c.Request.Context())+"|"+GetRequestID(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	session := w.Header().Get(SessionIDHeader)
	assert.NotEmpty(t, session)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.True(t, strings.HasPrefix(w.Body.String(), session+"|"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionIDHeader, "mine")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "mine", w.Header().Get(SessionIDHeader))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(4))
	r.POST("/", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"far too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
