// Package server implements the `safecity server` subcommand: the backend
// REST API with its record store.
package server

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

	"github.com/safecity/safecity-go/internal/api"
	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/datastore"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Command returns the server subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the SafeCity backend API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), settings)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "HTTP listen port")
	return cmd
}

func run(ctx context.Context, settings *conf.Settings) error {
	log := logging.ForService("server")
	if log == nil {
		log = slog.Default()
	}
	if lc := settings.WebServer.Log; lc.Enabled && lc.Path != "" {
		fileLog, closeLog, err := logging.NewFileLogger(lc.Path, "server", slog.LevelInfo, &logging.FileLoggerOptions{
			MaxSizeMB:  lc.MaxSize,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAge,
		})
		if err != nil {
			log.Warn("file logging disabled", "path", lc.Path, "error", err)
		} else {
			defer func() {
				if err := closeLog(); err != nil {
					log.Error("closing log file failed", "error", err)
				}
			}()
			log = fileLog
		}
	}

	store, err := datastore.New(settings)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("datastore close failed", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	controller := api.New(settings, store, metrics)

	errCh := make(chan error, 1)
	go func() {
		if err := controller.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("web server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		log.Info("shutting down", "reason", "context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return controller.Shutdown(shutdownCtx)
}
