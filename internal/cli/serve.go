package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"voice-beyond/companion/pkg/config"
	"voice-beyond/companion/pkg/router"
)

const shutdownTimeout = 10 * time.Second

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local UI server (HTTP API and websocket events)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (default: $SERVER_ADDR)")
	cmd.Flags().String("openapi", "", "Validate requests against this OpenAPI schema")
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	schema, _ := cmd.Flags().GetString("openapi")

	configure := func(cfg *config.Config) {
		cfg.Observability.Metrics = true
		if addr != "" {
			cfg.Server.Addr = addr
		}
		if schema != "" {
			cfg.Server.OpenAPISpec = schema
		}
	}

	return withApp(cmd, configure, func(ctx context.Context, a *app) error {
		r := router.New(ctx, a.container)
		r.SetupRoutes()

		srv := &http.Server{
			Addr:              a.cfg.Server.Addr,
			Handler:           r.Engine,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("Server starting", "addr", srv.Addr, "backend", a.cfg.Backend.BaseURL, "store", a.cfg.Store.Driver)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err, ok := <-errCh:
			if ok {
				a.log.LogError(err, "Server failed to start")
				return err
			}
			return nil
		case <-ctx.Done():
		}

		a.log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.LogError(err, "Server forced to shutdown")
			return err
		}
		a.log.Info("Server exited gracefully")
		return nil
	})
}
