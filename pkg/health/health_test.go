package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voice-beyond/companion/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendProbeTriState(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewChecker(logger.Nop(), time.Second)
	c.RegisterAPICheck(BackendComponent, srv.URL+"/api/health", srv.Client())
	assert.Equal(t, BackendUnknown, c.Backend())

	c.RunChecks(context.Background())
	assert.Equal(t, BackendConnected, c.Backend())
	assert.True(t, c.BackendConnected())

	healthy = false
	c.RunChecks(context.Background())
	assert.Equal(t, BackendOffline, c.Backend())
}

func TestUnreachableBackendIsOffline(t *testing.T) {
	c := NewChecker(logger.Nop(), 200*time.Millisecond)
	c.RegisterAPICheck(BackendComponent, "http://127.0.0.1:1/api/health", nil)
	c.RunChecks(context.Background())

	status := c.GetStatus()[BackendComponent]
	require.NotNil(t, status)
	assert.Equal(t, StatusDown, status.Status)
	assert.NotEmpty(t, status.Error)
}

func TestHTTPHandlerReportsBackend(t *testing.T) {
	c := NewChecker(logger.Nop(), time.Second)
	rec := httptest.NewRecorder()
	c.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unknown", body["backend"])
}
