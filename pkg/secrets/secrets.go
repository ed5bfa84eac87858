package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Keys used by the client.
const (
	// KeyBackendAPIKey is sent as a bearer token when no user session exists.
	KeyBackendAPIKey = "backend_api_key"
)

// ErrSecretNotFound is returned when no source holds the key.
var ErrSecretNotFound = errors.New("secret not found")

// EnvManager reads secrets from the process environment.
type EnvManager struct{}

// GetSecret maps "backend_api_key" to BACKEND_API_KEY.
func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(envKey(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m EnvManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}
