// Command meshsignald runs the WebRTC mesh signalling hub described in
// spec.md: it accepts WebSocket connections, assigns each a peer id,
// and relays the join/leave/move/SDP/ICE traffic between them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhead/meshsignal/internal/config"
	"github.com/jhead/meshsignal/internal/handler"
	"github.com/jhead/meshsignal/pkg/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevelFlag string

	cmd := &cobra.Command{
		Use:   "meshsignald [address]",
		Short: "WebRTC mesh signalling hub",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Address = args[0]
			}
			if logLevelFlag != "" {
				cfg.LogLevel = logLevelFlag
			} else if env := os.Getenv("LOG_LEVEL"); env != "" {
				cfg.LogLevel = env
			}

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: parseLogLevel(cfg.LogLevel),
			}))

			return run(cfg.Address, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file")
	cmd.Flags().StringVar(&logLevelFlag, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL env)")

	return cmd
}

func run(address string, logger *slog.Logger) error {
	reg := registry.New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", handler.Accept(reg, logger))

	httpServer := &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("starting signalling hub", "address", address)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
