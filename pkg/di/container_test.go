package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-beyond/companion/ai"
	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/store"
	"voice-beyond/companion/internal/voice"
	"voice-beyond/companion/pkg/config"
	"voice-beyond/companion/pkg/health"
	"voice-beyond/companion/pkg/logger"
	pkgws "voice-beyond/companion/pkg/ws"
)

type fakeEngine struct {
	mu     sync.Mutex
	spoken []string
}

func (e *fakeEngine) Voices() []voice.Voice {
	return []voice.Voice{{ID: "en-us", Name: "English (America)", Lang: "en-US"}}
}
func (e *fakeEngine) SetVoicesChangedHandler(func()) {}
func (e *fakeEngine) Cancel()                        {}
func (e *fakeEngine) Speak(u voice.Utterance) error {
	e.mu.Lock()
	e.spoken = append(e.spoken, u.Text)
	e.mu.Unlock()
	return nil
}

func testConfig(baseURL string, offline bool) *config.Config {
	cfg := &config.Config{}
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.ChatTimeout = 2 * time.Second
	cfg.Backend.RequestTimeout = 2 * time.Second
	cfg.Backend.HealthTimeout = time.Second
	cfg.Backend.Offline = offline
	cfg.Store.Driver = "memory"
	cfg.Voice.Enabled = true
	cfg.Voice.Engine = "none"
	cfg.Voice.Player = "none"
	cfg.Notify.TTL = time.Minute
	return cfg
}

func newContainer(t *testing.T, cfg *config.Config, opts Options) *Container {
	t.Helper()
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	c, err := New(cfg, logger.Nop(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close(context.Background())) })
	return c
}

func runTurn(t *testing.T, c *Container, text string) (*models.Character, string) {
	t.Helper()
	ctx := context.Background()

	user, err := c.Users.MockLogin(ctx)
	require.NoError(t, err)
	character, err := c.Characters.Create(ctx, user, models.CharacterInput{
		Name: "Sam", Relationship: "friend", Personality: "warm",
	}, nil)
	require.NoError(t, err)

	s, _ := c.Sessions.Get("test")
	s.SetUser(user)
	_, err = c.Orchestrator.SelectCharacter(ctx, s, character.ID)
	require.NoError(t, err)

	result, err := c.Orchestrator.Send(ctx, s, text)
	require.NoError(t, err)
	return character, string(result.Voice)
}

func TestOfflineContainerSpeaksLocally(t *testing.T) {
	engine := &fakeEngine{}
	rec := &pkgws.Recorder{}
	c := newContainer(t, testConfig("http://127.0.0.1:1/api", true), Options{
		Engine: engine,
		Sinks:  []pkgws.Sink{rec},
	})

	require.NotNil(t, c.Voice)
	require.NotNil(t, c.Breaker)
	assert.Nil(t, c.Metrics)

	_, outcome := runTurn(t, c, "hello")
	assert.Equal(t, string(voice.PlayedLocalSynthesis), outcome)
	assert.Len(t, engine.spoken, 1)
	assert.Contains(t, rec.Types(), pkgws.EventInputUnlocked)

	assert.Equal(t, health.BackendUnknown, c.ProbeBackend(context.Background()))
	assert.Contains(t, c.Health.GetStatus(), "store")
}

func TestVoiceDisabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/api", true)
	cfg.Voice.Enabled = false
	c := newContainer(t, cfg, Options{Engine: &fakeEngine{}})

	assert.Nil(t, c.Voice)
	_, outcome := runTurn(t, c, "hello")
	assert.Equal(t, string(voice.Failed), outcome)
}

func TestOnlineContainerUsesBackend(t *testing.T) {
	var (
		mu   sync.Mutex
		auth []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		switch r.URL.Path {
		case "/api/health":
			w.WriteHeader(http.StatusOK)
		case "/api/chat":
			_ = json.NewEncoder(w).Encode(ai.ChatResponse{Reply: "Hi from the backend"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Setenv("BACKEND_API_KEY", "service-key")
	c := newContainer(t, testConfig(srv.URL+"/api", false), Options{Engine: &fakeEngine{}})

	assert.Equal(t, health.BackendConnected, c.ProbeBackend(context.Background()))

	_, outcome := runTurn(t, c, "hello")
	assert.Equal(t, string(voice.PlayedLocalSynthesis), outcome)

	mu.Lock()
	defer mu.Unlock()
	// The mock login clears the backend token, so calls fall back to the configured key.
	assert.Contains(t, auth, "Bearer service-key")
}

func TestMetricsEnabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/api", true)
	cfg.Observability.Metrics = true
	c := newContainer(t, cfg, Options{})

	require.NotNil(t, c.Metrics)
	require.NotNil(t, c.Metrics.Handler)
}
