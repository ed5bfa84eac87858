package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"voice-beyond/companion/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvManager(t *testing.T) {
	t.Setenv("BACKEND_API_KEY", "env-key")
	var m EnvManager

	v, err := m.GetSecret(context.Background(), KeyBackendAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "env-key", v)
	assert.Equal(t, "fallback", m.GetSecretWithDefault(context.Background(), "missing-key", "fallback"))
}

func TestVaultManagerReadsKV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/voicebeyond", r.URL.Path)
		assert.Equal(t, "root", r.Header.Get("X-Vault-Token"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data":     map[string]any{"backend_api_key": "vault-key"},
				"metadata": map[string]any{"version": 1},
			},
		})
	}))
	defer srv.Close()

	m, err := NewVaultManager(VaultConfig{Address: srv.URL, Token: "root", SecretsPath: "voicebeyond"}, logger.Nop())
	require.NoError(t, err)

	v, err := m.GetSecret(context.Background(), KeyBackendAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "vault-key", v)

	t.Setenv("OTHER_KEY", "from-env")
	v, err = m.GetSecret(context.Background(), "other_key")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestVaultManagerRequiresAddress(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Token: "x"}, logger.Nop())
	assert.ErrorIs(t, err, ErrNoVaultAddress)
}
