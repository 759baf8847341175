package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gap-labs/gapbot/internal/api"
	"github.com/gap-labs/gapbot/internal/messaging"
	"github.com/gap-labs/gapbot/internal/store"
	"github.com/gap-labs/gapbot/internal/twilioclient"
	"github.com/gap-labs/gapbot/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for GapBot state data
	DefaultStateDir = "/var/lib/gapbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "gapbot.db"
	// DefaultReminderCron runs the reminder sweep every minute so stored
	// "HH:MM" times are matched exactly once
	DefaultReminderCron = "* * * * *"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	storeOpts := buildStoreOptions(flags)
	msgService := buildMessagingService()
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping GapBot with configured modules")
	slog.Debug("Final configuration", "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "reminder_cron", *flags.reminderCron)
	if err := api.Run(storeOpts, msgService, apiOpts...); err != nil {
		slog.Error("GapBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("GapBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	StateDir     string
	APIAddr      string
	ReminderCron string
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	apiAddr      *string
	reminderCron *string
}

// initializeLogger sets up structured logging; GAPBOT_DEBUG enables debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("GAPBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("GAPBOT_STATE_DIR"),
		APIAddr:      os.Getenv("API_ADDR"),
		ReminderCron: os.Getenv("REMINDER_CRON"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No GAPBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	if config.ReminderCron == "" {
		config.ReminderCron = DefaultReminderCron
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"GAPBOT_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"REMINDER_CRON", config.ReminderCron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for GapBot data (overrides $GAPBOT_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the store (overrides $DATABASE_URL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		reminderCron: flag.String("reminder-cron", config.ReminderCron, "cron schedule for the internal reminder sweep, empty to disable (overrides $REMINDER_CRON)"),
	}

	flag.Parse()

	// Follow a changed state directory when the DSN was left at its default
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	}
	return storeOpts
}

// buildMessagingService constructs the outbound transport: Twilio when fully
// configured, otherwise a no-op service that logs and drops sends.
func buildMessagingService() messaging.Service {
	client, err := twilioclient.NewClient()
	if err != nil {
		slog.Warn("Twilio env not fully set; outbound sends will be skipped", "error", err)
		return messaging.NewNoopService()
	}
	return messaging.NewTwilioService(client)
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	apiOpts = append(apiOpts, api.WithReminderCron(*flags.reminderCron))
	return apiOpts
}
