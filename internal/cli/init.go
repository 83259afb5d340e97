// Package cli consolidates the initialization steps shared by the server,
// the scan worker and the export tool.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"snapreceipt/internal/backend"
	"snapreceipt/internal/config"
	"snapreceipt/internal/log"
)

// SetupLogger initializes structured logging for a binary and installs it
// as the process default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development. Errors are ignored
// since the file is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it, exiting the
// process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend builds the configured record backend, exiting the process on
// failure. The returned cleanup releases backend resources and is safe to
// defer.
func InitBackend(ctx context.Context, logger *log.Logger, appCfg *config.Config) (backend.Backend, backend.CleanupFunc) {
	backendCfg, err := backend.FromAppConfig(appCfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", appCfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Backend initialized", "backend", appCfg.DataBackend)

	cleanup := result.Cleanup
	if cleanup == nil {
		cleanup = func() error { return nil }
	}
	return result.Backend, cleanup
}

// NotifyShutdown returns a context cancelled on SIGINT or SIGTERM.
func NotifyShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownTimeout bounds how long graceful shutdown may take.
const ShutdownTimeout = 30 * time.Second
