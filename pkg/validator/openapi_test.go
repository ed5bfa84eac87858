package validator

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "voice-beyond/companion/pkg/errors"
)

const schema = `openapi: 3.0.3
info: {title: test, version: "1"}
paths:
  /api/chat/send:
    post:
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [message]
              properties:
                message: {type: string}
      responses:
        "200": {description: ok}
`

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(schema), 0o600))

	v, err := NewOpenAPIValidator(path)
	require.NoError(t, err)

	r := gin.New()
	r.Use(apperrors.ErrorHandler(), v.Middleware())
	r.POST("/api/chat/send", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidRequestPasses(t *testing.T) {
	assert.Equal(t, http.StatusOK, post(newEngine(t), `{"message":"hello"}`).Code)
}

func TestInvalidRequestIsRejected(t *testing.T) {
	w := post(newEngine(t), `{"text":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeValidation)
}

func TestUnknownRoutesAreNotValidated(t *testing.T) {
	w := httptest.NewRecorder()
	newEngine(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRepositorySchemaLoads(t *testing.T) {
	_, err := NewOpenAPIValidator(filepath.Join("..", "..", "api", "openapi.yaml"))
	require.NoError(t, err)
}
