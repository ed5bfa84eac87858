package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App struct {
		Env     string `env:"APP_ENV" envDefault:"development"`
		DataDir string `env:"DATA_DIR" envDefault:".voicebeyond"`
	}

	// Backend is the remote companion service.
	Backend struct {
		BaseURL        string        `env:"API_BASE_URL" envDefault:"http://localhost:5000/api"`
		ChatTimeout    time.Duration `env:"CHAT_TIMEOUT" envDefault:"300s"`
		RequestTimeout time.Duration `env:"BACKEND_REQUEST_TIMEOUT" envDefault:"60s"`
		HealthTimeout  time.Duration `env:"HEALTH_TIMEOUT" envDefault:"5s"`
		HealthInterval time.Duration `env:"HEALTH_INTERVAL" envDefault:"0s"`
		// Offline skips remote reply generation entirely.
		Offline bool `env:"OFFLINE_MODE" envDefault:"false"`
	}

	Store struct {
		Driver      string `env:"STORE_DRIVER" envDefault:"file"`
		Path        string `env:"STORE_PATH"`
		RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
		KeyPrefix   string `env:"STORE_KEY_PREFIX" envDefault:"voicebeyond:"`
		PostgresDSN string `env:"POSTGRES_DSN"`
		MaxConns    int    `env:"DB_MAX_CONNS" envDefault:"5"`
	}

	Voice struct {
		Enabled bool `env:"VOICE_ENABLED" envDefault:"true"`
		// Engine is one of auto, say, espeak, none.
		Engine string `env:"VOICE_ENGINE" envDefault:"auto"`
		// Player is one of auto, mpv, afplay, aplay, paplay, none.
		Player           string        `env:"VOICE_PLAYER" envDefault:"auto"`
		BreakerThreshold int           `env:"VOICE_BREAKER_THRESHOLD" envDefault:"3"`
		BreakerReset     time.Duration `env:"VOICE_BREAKER_RESET" envDefault:"30s"`
	}

	Server struct {
		Addr           string   `env:"SERVER_ADDR" envDefault:"127.0.0.1:8090"`
		RateLimit      float64  `env:"RATE_LIMIT" envDefault:"5"`
		RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"10"`
		AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
		MaxBodySize    int64    `env:"MAX_BODY_SIZE" envDefault:"26214400"`
		OpenAPISpec    string   `env:"OPENAPI_SPEC"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"text"`
	}

	Notify struct {
		TTL time.Duration `env:"NOTICE_TTL" envDefault:"5s"`
	}

	Observability struct {
		Tracing bool `env:"TRACING_ENABLED" envDefault:"false"`
		Metrics bool `env:"METRICS_ENABLED" envDefault:"true"`
	}
}

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Load reads an optional .env file, then the environment, into a fresh Config.
func Load(envFiles ...string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath(cfg.App.DataDir, cfg.Store.Driver)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New creates the process-wide Config from the environment.
// Uses singleton pattern to ensure only one instance exists
func New() (*Config, error) {
	once.Do(func() {
		instance, loadErr = Load()
	})
	return instance, loadErr
}

// Get returns the singleton Config instance
func Get() *Config {
	cfg, err := New()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.ChatTimeout <= 0 {
		return fmt.Errorf("CHAT_TIMEOUT must be positive")
	}
	switch c.Store.Driver {
	case "file", "sqlite", "redis", "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Notify.TTL <= 0 {
		return fmt.Errorf("NOTICE_TTL must be positive")
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// UseStore switches the store driver, resetting the path to the driver's default.
func (c *Config) UseStore(driver string) error {
	c.Store.Driver = driver
	c.Store.Path = defaultStorePath(c.App.DataDir, driver)
	return c.Validate()
}

func defaultStorePath(dataDir, driver string) string {
	switch driver {
	case "sqlite":
		return dataDir + "/voicebeyond.db"
	default:
		return dataDir + "/profile.json"
	}
}
