package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

func TestMetricsAreScraped(t *testing.T) {
	m, err := SetupMetrics("voicebeyond-test")
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("voicebeyond.turns")
	require.NoError(t, err)
	counter.Add(context.Background(), 2, otelmetric.WithAttributes(attribute.String("source", "local")))

	rec := httptest.NewRecorder()
	m.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voicebeyond_turns")
	assert.Contains(t, rec.Body.String(), `source="local"`)
}

func TestTracingWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := SetupTracing("voicebeyond-test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "session.turn")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "session.turn")
}
