package store

import (
	"fmt"

	"voice-beyond/companion/pkg/config"
	"voice-beyond/companion/pkg/logger"
)

// Open builds the store selected by STORE_DRIVER.
func Open(cfg *config.Config, log *logger.Logger) (Store, error) {
	switch cfg.Store.Driver {
	case "", "file":
		return NewFileStore(cfg.Store.Path, log)
	case "sqlite":
		return NewSQLiteStore(cfg.Store.Path)
	case "redis":
		return NewRedisStore(cfg.Store.RedisURL, cfg.Store.KeyPrefix)
	case "postgres":
		db, err := config.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(db)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
