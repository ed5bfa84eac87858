package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"voice-beyond/companion/ai"
	"voice-beyond/companion/internal/notify"
	"voice-beyond/companion/internal/service"
	"voice-beyond/companion/internal/session"
	"voice-beyond/companion/internal/store"
	"voice-beyond/companion/internal/voice"
	"voice-beyond/companion/internal/ws"
	"voice-beyond/companion/pkg/config"
	"voice-beyond/companion/pkg/health"
	"voice-beyond/companion/pkg/logger"
	"voice-beyond/companion/pkg/resilience"
	"voice-beyond/companion/pkg/secrets"
	pkgws "voice-beyond/companion/pkg/ws"
	"voice-beyond/companion/shared/observability"
)

const serviceName = "voicebeyond"

// Container holds all the dependencies for the application
type Container struct {
	Config  *config.Config
	Logger  *logger.Logger
	Store   store.Store
	Secrets secrets.Manager
	Backend *ai.Client
	Health  *health.Checker
	Breaker *resilience.CircuitBreaker
	Events  *pkgws.Fanout
	Hub     *ws.Hub

	Notifier     *notify.Notifier
	Transcripts  *service.TranscriptManager
	Characters   *service.CharacterService
	Users        *service.UserService
	Replies      *ai.Resolver
	Voice        *voice.Resolver
	Orchestrator *session.Orchestrator
	Sessions     *session.Manager
	Metrics      *observability.Metrics

	closers []func(context.Context) error
}

// Options overrides parts of the graph, mostly for tests and the CLI.
type Options struct {
	Store  store.Store
	Engine voice.Engine
	Player voice.Player
	// Sinks receive every session event in addition to the websocket hub.
	Sinks []pkgws.Sink
	// TraceOutput receives spans when tracing is enabled; defaults to stderr.
	TraceOutput io.Writer
	HTTPClient  *http.Client
}

// New creates a new dependency injection container
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Container, error) {
	if log == nil {
		log = logger.GetGlobal()
	}
	c := &Container{Config: cfg, Logger: log}

	if err := c.setupObservability(opts); err != nil {
		return nil, err
	}

	st := opts.Store
	if st == nil {
		var err error
		if st, err = store.Open(cfg, log); err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
		}
	}
	c.Store = st
	c.closers = append(c.closers, func(context.Context) error { return st.Close() })

	c.Secrets = newSecrets(log)

	c.Events = pkgws.NewFanout(opts.Sinks...)
	c.Hub = ws.NewHub(cfg.Server.AllowedOrigins, nil, log)
	c.Events.Add(c.Hub)

	c.Notifier = notify.New(cfg.Notify.TTL, c.Events, log)
	c.closers = append(c.closers, func(context.Context) error { c.Notifier.Close(); return nil })

	c.Transcripts = service.NewTranscriptManager(st, log)

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c.Backend = ai.NewClient(ai.ClientConfig{
		BaseURL:        cfg.Backend.BaseURL,
		ChatTimeout:    cfg.Backend.ChatTimeout,
		RequestTimeout: cfg.Backend.RequestTimeout,
		HTTPClient:     httpClient,
	}, c.bearerToken, log)
	c.Users = service.NewUserService(st, c.Backend, c.Notifier, log)

	c.Health = health.NewChecker(log.WithComponent("health"), cfg.Backend.HealthTimeout)
	c.Health.RegisterStoreCheck(st.Ping)
	if !cfg.Backend.Offline {
		c.Health.RegisterAPICheck(health.BackendComponent, c.Backend.BaseURL()+"/health", httpClient)
	}

	var uploader service.VoiceUploader
	var chat ai.ChatClient
	var remoteVoice voice.RemoteVoice
	if !cfg.Backend.Offline {
		uploader = c.Backend
		chat = c.Backend
		remoteVoice = c.Backend
	}
	c.Characters = service.NewCharacterService(st, c.Transcripts, uploader, c.Health, c.Notifier, log)

	rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(os.Getpid())))
	c.Replies = ai.NewResolver(chat, ai.NewGenerator(rnd), cfg.Backend.Offline, log)

	var speaker session.Speaker
	if cfg.Voice.Enabled {
		breakerCfg := resilience.DefaultCircuitBreakerConfig("remote-voice")
		if cfg.Voice.BreakerThreshold > 0 {
			breakerCfg.FailureThreshold = uint(cfg.Voice.BreakerThreshold)
		}
		if cfg.Voice.BreakerReset > 0 {
			breakerCfg.RetryTimeout = cfg.Voice.BreakerReset
		}
		c.Breaker = resilience.NewCircuitBreaker(breakerCfg, log)

		engine := opts.Engine
		if engine == nil {
			engine = newEngine(cfg.Voice.Engine, log)
		}
		player := opts.Player
		if player == nil {
			player = newPlayer(cfg.Voice.Player, httpClient, log)
		}
		c.Voice = voice.NewResolver(remoteVoice, player, engine, c.Breaker, log)
		speaker = c.Voice
	}

	c.Orchestrator = session.NewOrchestrator(c.Transcripts, c.Characters, c.Replies, speaker, c.Notifier, c.Events, log)
	c.Sessions = session.NewManager(session.DefaultIdleTimeout)
	c.closers = append(c.closers, func(context.Context) error { c.Sessions.Close(); return nil })

	return c, nil
}

// StartBackground launches the hub loop and the advisory backend probe.
func (c *Container) StartBackground(ctx context.Context) {
	go c.Hub.Run(ctx)
	c.Health.Start(ctx, c.Config.Backend.HealthInterval)
}

// ProbeBackend runs every health check now and reports the backend state.
func (c *Container) ProbeBackend(ctx context.Context) health.BackendState {
	c.Health.RunChecks(ctx)
	return c.Health.Backend()
}

// Close releases everything in reverse order of creation.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bearerToken prefers the signed-in session and falls back to a configured API key.
func (c *Container) bearerToken(ctx context.Context) string {
	if c.Users != nil {
		if token := c.Users.Token(ctx); token != "" {
			return token
		}
	}
	return c.Secrets.GetSecretWithDefault(ctx, secrets.KeyBackendAPIKey, "")
}

func (c *Container) setupObservability(opts Options) error {
	if c.Config.Observability.Metrics {
		m, err := observability.SetupMetrics(serviceName)
		if err != nil {
			return err
		}
		c.Metrics = m
		c.closers = append(c.closers, m.Shutdown)
	}
	if c.Config.Observability.Tracing {
		out := opts.TraceOutput
		if out == nil {
			out = os.Stderr
		}
		shutdown, err := observability.SetupTracing(serviceName, out)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, shutdown)
	}
	return nil
}

func newSecrets(log *logger.Logger) secrets.Manager {
	vaultCfg, ok := secrets.VaultConfigFromEnv()
	if !ok {
		return secrets.EnvManager{}
	}
	m, err := secrets.NewVaultManager(vaultCfg, log)
	if err != nil {
		log.LogError(err, "vault unavailable, reading secrets from the environment")
		return secrets.EnvManager{}
	}
	return m
}

func newEngine(kind string, log *logger.Logger) voice.Engine {
	if kind == "none" {
		return nil
	}
	e, err := voice.NewCommandEngine(kind, log)
	if err != nil {
		log.Warn("local speech synthesis unavailable", "engine", kind, "error", err)
		return nil
	}
	return e
}

func newPlayer(kind string, client *http.Client, log *logger.Logger) voice.Player {
	if kind == "none" {
		return nil
	}
	p, err := voice.NewCommandPlayer(kind, client, log)
	if err != nil {
		log.Warn("remote voice playback unavailable", "player", kind, "error", err)
		return nil
	}
	return p
}
