package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/cmd/cli/commands"
	"github.com/jakechorley/volunteer-dispatch/internal/config"
	"github.com/jakechorley/volunteer-dispatch/pkg/clients/geoclient"
	"github.com/jakechorley/volunteer-dispatch/pkg/clients/gmailclient"
	"github.com/jakechorley/volunteer-dispatch/pkg/clients/sheetsclient"
	"github.com/jakechorley/volunteer-dispatch/pkg/core/services"
	"github.com/jakechorley/volunteer-dispatch/pkg/db"
	"github.com/jakechorley/volunteer-dispatch/pkg/metrics"
	"github.com/jakechorley/volunteer-dispatch/pkg/postgres"
	"github.com/jakechorley/volunteer-dispatch/pkg/utils/logging"
)

var (
	env     string
	verbose bool
	closeDB func()
)

func main() {
	app := &commands.AppContext{}

	rootCmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Volunteer dispatch CLI - Manage calls and volunteers",
		Long:  `A CLI tool for opening service calls, matching them to nearby volunteers and tracking their status over a simulated clock.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(app)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeDB != nil {
				closeDB()
			}
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs on the console")
	rootCmd.MarkPersistentFlagRequired("env")

	commands.AddAll(rootCmd, app)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, store, clients and engines
func initApp(app *commands.AppContext) error {
	var err error
	app.Ctx = context.Background()
	app.SessionID = uuid.NewString()

	logger, err := logging.InitLogger(env, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger.With(zap.String("session_id", app.SessionID))

	app.Logger.Info("Starting application", zap.String("environment", env))

	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully", zap.String("store", app.Cfg.Store))

	database, err := openDatabase(app)
	if err != nil {
		return err
	}

	geocoder := geoclient.NewClient(geoclient.Config{
		BaseURL:         app.Cfg.Geocoding.BaseURL,
		APIKey:          app.Cfg.Geocoding.APIKey,
		MaxRetries:      app.Cfg.Geocoding.MaxRetries,
		RequestInterval: app.Cfg.Geocoding.RequestInterval,
		RetryBackoff:    app.Cfg.Geocoding.RetryBackoff,
		CacheTTL:        app.Cfg.Geocoding.CacheTTL,
	}, nil, app.Logger)

	mailer, err := initGoogleClients(app)
	if err != nil {
		return err
	}

	app.Wire(database, geocoder, mailer)
	metrics.SimulatedClockSeconds.Set(float64(app.Clock.Now().Unix()))

	app.Logger.Info("Engines initialized",
		zap.Time("clock", app.Clock.Now()),
		zap.Duration("risk_range", app.Clock.RiskRange()))
	return nil
}

func openDatabase(app *commands.AppContext) (db.Database, error) {
	if app.Cfg.Store != config.StorePostgres {
		app.Logger.Info("Using in-memory store")
		return db.NewMemoryDB(), nil
	}

	app.Logger.Info("Connecting to database")
	pg, err := postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB = pg.Close

	if err := pg.RunMigrations(app.Ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	app.Logger.Info("Database initialized successfully")
	return pg, nil
}

// initGoogleClients performs the OAuth flow only when notifications or reports need it.
// The returned mailer is nil when notifications are disabled.
func initGoogleClients(app *commands.AppContext) (services.Mailer, error) {
	cfg := app.Cfg
	if !cfg.Notifications.Enabled && cfg.Reports.SpreadsheetID == "" {
		return nil, nil
	}

	app.Logger.Info("Loading OAuth client configuration")
	oauthCfg, err := config.LoadOAuthClientWithEnv(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	app.Logger.Info("Initializing sheets client")
	sheetsClient, err := sheetsclient.NewClient(app.Ctx, oauthCfg, env, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	if cfg.Reports.SpreadsheetID != "" {
		app.SheetsClient = sheetsClient
	}

	if !cfg.Notifications.Enabled {
		return nil, nil
	}

	// Reuses the token obtained by the sheets client
	app.Logger.Info("Initializing gmail client")
	gmailClient, err := gmailclient.NewClient(app.Ctx, oauthCfg, sheetsClient.Token(), cfg.Notifications, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	return gmailClient, nil
}
