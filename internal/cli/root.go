// Package cli implements the voicebeyond commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voice-beyond/companion/pkg/config"
	"voice-beyond/companion/pkg/di"
	"voice-beyond/companion/pkg/logger"
	pkgws "voice-beyond/companion/pkg/ws"
)

var (
	envFile     string
	storeDriver string
	offline     bool
	noVoice     bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:          "voicebeyond",
	Short:        "Talk with the companions you create",
	Long:         "Voice Beyond keeps a roster of companion characters, chats with them through the companion backend, and answers locally when the backend is unreachable.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load settings from this .env file (default: ./.env when present)")
	RootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Store driver: file, sqlite, redis, postgres or memory (default: $STORE_DRIVER)")
	RootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Never call the backend for replies")
	RootCmd.PersistentFlags().BoolVar(&noVoice, "no-voice", false, "Disable voice playback")
}

// app is the per-command runtime: config, container and the terminal printer.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	container *di.Container
	printer   *Printer
}

// loadConfig applies command-line overrides on top of the environment.
func loadConfig() (*config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if storeDriver != "" && storeDriver != cfg.Store.Driver {
		if err := cfg.UseStore(storeDriver); err != nil {
			return nil, err
		}
	}
	if offline {
		cfg.Backend.Offline = true
	}
	if noVoice {
		cfg.Voice.Enabled = false
	}
	return cfg, nil
}

// withApp builds the container for one command and tears it down afterwards.
func withApp(cmd *cobra.Command, configure func(*config.Config), fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Observability.Metrics = false
	if configure != nil {
		configure(cfg)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.JSON = cfg.Logging.Format == "json"
	logCfg.Output = cmd.ErrOrStderr()
	log := logger.New(logCfg)

	printer := NewPrinter(cmd.OutOrStdout())
	container, err := di.New(cfg, log, di.Options{Sinks: []pkgws.Sink{printer}})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer func() {
		cancel()
		if err := container.Close(context.Background()); err != nil {
			log.LogError(err, "shutdown failed")
		}
	}()
	container.StartBackground(ctx)

	return fn(ctx, &app{cfg: cfg, log: log, container: container, printer: printer})
}
