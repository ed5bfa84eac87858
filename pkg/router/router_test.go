package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-beyond/companion/internal/store"
	"voice-beyond/companion/pkg/config"
	"voice-beyond/companion/pkg/di"
	"voice-beyond/companion/pkg/logger"
)

const testSession = "session-test"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Backend.BaseURL = "http://127.0.0.1:1/api"
	cfg.Backend.ChatTimeout = time.Second
	cfg.Backend.RequestTimeout = time.Second
	cfg.Backend.HealthTimeout = time.Second
	cfg.Backend.Offline = true
	cfg.Store.Driver = "memory"
	cfg.Voice.Enabled = false
	cfg.Server.RateLimit = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Server.MaxBodySize = 1 << 20
	cfg.Notify.TTL = time.Minute
	return cfg
}

func setupRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	container, err := di.New(testConfig(), logger.Nop(), di.Options{Store: store.NewMemoryStore()})
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = container.Close(context.Background())
	})

	r := New(ctx, container)
	r.SetupRoutes()
	return r
}

func do(t *testing.T, r *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", testSession)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return errBody["code"].(string)
}

func TestHealthRoutes(t *testing.T) {
	r := setupRouter(t)

	for _, path := range []string{"/health", "/api/health"} {
		w := do(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		body := decode(t, w)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, Version, body["version"])
	}
}

func TestChatFlowOverHTTP(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/auth/guest", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/characters", map[string]string{
		"name":         "Sam",
		"relationship": "friend",
		"personality":  "warm",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)
	assert.NotEmpty(t, id)

	w = do(t, r, http.MethodPost, "/api/characters/"+id+"/start", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = do(t, r, http.MethodPost, "/api/chat/select", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode(t, w)
	transcript := snap["transcript"].([]any)
	require.Len(t, transcript, 1)
	assert.Equal(t, "Hello! I'm Sam. I'm here to talk with you. How are you feeling today?",
		transcript[0].(map[string]any)["content"])

	w = do(t, r, http.MethodPost, "/api/chat/send", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	turn := body["turn"].(map[string]any)
	assert.Equal(t, "local", turn["source"])
	assert.Len(t, body["transcript"].([]any), 3)

	w = do(t, r, http.MethodGet, "/api/chat/transcript", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["transcript"].([]any), 3)
	assert.Equal(t, testSession, w.Header().Get("X-Session-ID"))
}

func TestChatSendRejectsEmptyMessage(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/chat/send", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMPTY_MESSAGE", errorCode(t, w))
}

func TestChatSendWithoutCharacter(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/chat/send", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_ACTIVE_CHARACTER", errorCode(t, w))
}

func TestCreateCharacterValidation(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/characters", map[string]string{"name": "Sam"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestDeleteUnknownCharacter(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodDelete, "/api/characters/char_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))

	w = do(t, r, http.MethodGet, "/api/notices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	notices := decode(t, w)["notices"].([]any)
	require.NotEmpty(t, notices)
	assert.Equal(t, "Character not found", notices[0].(map[string]any)["message"])
}

func TestCORSPreflight(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/characters", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Session-ID")
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/characters", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
