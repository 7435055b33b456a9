package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/pano/internal/config"
	"github.com/MeKo-Tech/pano/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the estimation API",
	Long: `Start an HTTP server that exposes estimation and composition.

The server provides the following endpoints:
  POST /v1/estimate - Estimate one pair from correspondences
  POST /v1/compose  - Compose a chain of pairwise homographies
  POST /v1/sequence - Estimate and compose a whole sequence
  GET  /v1/ws       - WebSocket sequence processing with progress
  GET  /health      - Health check endpoint
  GET  /metrics     - Prometheus metrics

Examples:
  pano serve
  pano serve --port 8080
  pano serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		serverConfig, shutdownTimeout := configToServerConfig(cfg, cmd)

		if serverConfig.Port < 1 || serverConfig.Port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", serverConfig.Port)
		}

		srv, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(serverConfig.TimeoutSec) * time.Second,
			// Sequence requests may run up to the request timeout before writing.
			WriteTimeout: time.Duration(serverConfig.TimeoutSec+5) * time.Second,
		}

		go func() {
			slog.Info("Starting pano server", "host", serverConfig.Host, "port", serverConfig.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
			return fmt.Errorf("shutdown: %w", err)
		}
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// configToServerConfig builds the server configuration from the centralized
// configuration and any explicitly set flags.
func configToServerConfig(cfg *config.Config, cmd *cobra.Command) (server.Config, time.Duration) {
	applyEstimatorFlags(cmd, cfg)

	sc := cfg.Server
	if cmd.Flags().Changed("host") {
		sc.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		sc.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("cors-origin") {
		sc.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	if cmd.Flags().Changed("max-upload-size") {
		sc.MaxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}
	if cmd.Flags().Changed("timeout") {
		sc.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}

	rl := sc.RateLimit
	if cmd.Flags().Changed("rate-limit-enabled") {
		rl.Enabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
	}
	if cmd.Flags().Changed("requests-per-minute") {
		rl.RequestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
	}
	if cmd.Flags().Changed("requests-per-hour") {
		rl.RequestsPerHour, _ = cmd.Flags().GetInt("requests-per-hour")
	}
	if cmd.Flags().Changed("max-requests-per-day") {
		rl.MaxRequestsPerDay, _ = cmd.Flags().GetInt("max-requests-per-day")
	}
	if cmd.Flags().Changed("max-correspondences-per-day") {
		rl.MaxCorrespondencesPerDay, _ = cmd.Flags().GetInt("max-correspondences-per-day")
	}

	return server.Config{
		Host:           sc.Host,
		Port:           sc.Port,
		CORSOrigin:     sc.CORSOrigin,
		MaxUploadMB:    int64(sc.MaxUploadMB),
		TimeoutSec:     sc.TimeoutSec,
		PipelineConfig: cfg.ToPipelineConfig(),
		RateLimit: server.RateLimitConfig{
			Enabled:                  rl.Enabled,
			RequestsPerMinute:        rl.RequestsPerMinute,
			RequestsPerHour:          rl.RequestsPerHour,
			MaxRequestsPerDay:        rl.MaxRequestsPerDay,
			MaxCorrespondencesPerDay: int64(rl.MaxCorrespondencesPerDay),
		},
	}, time.Duration(sc.ShutdownTimeout) * time.Second
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addEstimatorFlags(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 10, "maximum request body size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 10000, "maximum requests per day per client")
	serveCmd.Flags().Int("max-correspondences-per-day", 5_000_000, "maximum correspondences processed per day per client")
}
