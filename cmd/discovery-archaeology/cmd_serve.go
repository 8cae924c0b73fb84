package main

import (
	"expvar"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/api"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			eng, cleanup, err := newEngine(cmd.Context(), logger, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			srv := api.NewServer(eng, logger, api.Options{
				AuthToken:    cfg.API.AuthToken,
				CORSOrigins:  cfg.API.CORSOrigins,
				AnalyzeRPS:   cfg.API.AnalyzeRPS,
				AnalyzeBurst: cfg.API.AnalyzeBurst,
			})

			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set DISCOVERY_ARCHAEOLOGY_API_AUTH_TOKEN or api.auth_token for production use")
			}

			mux := http.NewServeMux()
			mux.Handle("GET /debug/vars", expvar.Handler())
			mux.Handle("/", srv.Handler())

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				// Uncached analyses wait on the model for a long time.
				WriteTimeout: 5 * time.Minute,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr, "model", cfg.LLM.Model)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
					errCh <- fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				close(errCh)
			}()

			select {
			case <-cmd.Context().Done():
				logger.Info("shutting down")
			case startErr := <-errCh:
				if startErr != nil {
					return startErr
				}
				return nil
			}

			const shutdownTimeout = 10 * time.Second
			if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
				return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
			}

			// Drain the errCh in case ListenAndServe returned after Shutdown.
			if startErr := <-errCh; startErr != nil {
				return startErr
			}

			return nil
		},
	}
	return cmd
}
