package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evercare/careshift/pkg/core/services"
	"github.com/evercare/careshift/pkg/httpapi"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the shift-offer HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server := httpapi.NewServer(httpapi.ServerOptions{
				Addr:     app.Cfg.ListenAddr,
				Engine:   app.Engine,
				Verifier: app.Verifier,
				Logger:   app.Logger,
			})

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Background expiration sweep, if configured.
			if app.Cfg.SweepIntervalMinutes > 0 {
				interval := time.Duration(app.Cfg.SweepIntervalMinutes) * time.Minute
				go runSweepLoop(ctx, app, interval)
			}

			errCh := make(chan error, 1)
			go func() {
				app.Logger.Info("HTTP server listening", zap.String("addr", app.Cfg.ListenAddr))
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
				app.Logger.Info("Shutting down HTTP server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("server shutdown failed: %w", err)
				}
			}

			return nil
		},
	}
}

// runSweepLoop expires due offers on a fixed interval until ctx is cancelled.
func runSweepLoop(ctx context.Context, app *AppContext, interval time.Duration) {
	app.Logger.Info("Starting expiration sweep loop", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := services.ExpireDueOffers(ctx, app.Database, app.Engine, app.Logger, time.Now()); err != nil {
				app.Logger.Error("Expiration sweep failed", zap.Error(err))
			}
		}
	}
}
