// Package cli holds the stacksight commands and the start-up steps they
// share: env loading, logging, configuration and signal handling.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stacksight/internal/config"
	applog "stacksight/internal/log"
)

// SetupLogger builds the process logger at the given LOG_LEVEL and installs
// it as the slog default.
func SetupLogger(level string) *applog.Logger {
	logger := applog.New(applog.Config{Level: applog.ParseLevel(level)})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads the configuration and, when validate is set, rejects it
// with every problem listed at once.
func LoadConfig(validate bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// GracefulShutdown waits for ctx to end and then runs each cleanup step in
// order, sharing one timeout. The first cleanup error is returned; later
// steps still run.
func GracefulShutdown(ctx context.Context, logger *applog.Logger, timeout time.Duration, steps ...func(context.Context) error) error {
	<-ctx.Done()
	logger.Info("Shutdown signal received", "timeout", timeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var first error
	for i, step := range steps {
		if err := step(shutdownCtx); err != nil {
			logger.Error("Shutdown step failed", "step", i, applog.FieldError, err)
			if first == nil {
				first = fmt.Errorf("shutdown: %w", err)
			}
		}
	}
	if shutdownCtx.Err() != nil {
		logger.Warn("Shutdown timeout reached")
	} else {
		logger.Info("Shutdown complete")
	}
	return first
}
