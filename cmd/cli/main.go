package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evercare/careshift/cmd/cli/commands"
	"github.com/evercare/careshift/internal/config"
	"github.com/evercare/careshift/pkg/clients/authclient"
	"github.com/evercare/careshift/pkg/core/cascade"
	"github.com/evercare/careshift/pkg/httpapi"
	"github.com/evercare/careshift/pkg/postgres"
	"github.com/evercare/careshift/pkg/utils/logging"
)

var (
	env string
	app *commands.AppContext
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "careshift",
		Short: "CareShift CLI - Manage care shift scheduling and offer cascades",
		Long:  `A CLI tool for defining care shifts, running offer cascades to ranked caregivers, and serving the shift-offer API.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.Logger != nil {
				app.Logger.Sync()
			}
		},
	}

	// Add persistent environment flag
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	app = &commands.AppContext{}

	// Add all commands
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.SweepCmd(app))
	rootCmd.AddCommand(commands.DefineShiftsCmd(app))
	rootCmd.AddCommand(commands.BeginCascadeCmd(app))
	rootCmd.AddCommand(commands.ListShiftsCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, cascade engine and token verifier
func initApp() error {
	var err error
	app.Ctx = context.Background()

	// Initialize logger
	app.Logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully")

	// Connect to the database and run migrations
	app.Logger.Info("Connecting to database")
	app.Database, err = postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.Logger.Debug("Database initialized successfully")

	// Build the cascade engine
	opts := []cascade.Option{
		cascade.WithOfferWindow(time.Duration(app.Cfg.OfferWindowMinutes) * time.Minute),
	}
	if app.Cfg.EscalationUserID != "" {
		opts = append(opts, cascade.WithEscalationUser(app.Cfg.EscalationUserID))
	}
	app.Engine = cascade.NewEngine(app.Database, app.Logger, opts...)

	// Pick the token verifier: Google ID tokens when an audience is
	// configured, otherwise the static token map from the config file.
	if app.Cfg.AuthAudience != "" {
		app.Logger.Info("Initializing ID token verifier", zap.String("audience", app.Cfg.AuthAudience))
		app.Verifier, err = authclient.NewClient(app.Ctx, app.Cfg.AuthAudience)
		if err != nil {
			return fmt.Errorf("failed to create auth client: %w", err)
		}
	} else {
		app.Logger.Info("Using static token verifier", zap.Int("tokens", len(app.Cfg.StaticTokens)))
		app.Verifier = httpapi.StaticVerifier(app.Cfg.StaticTokens)
	}

	return nil
}
