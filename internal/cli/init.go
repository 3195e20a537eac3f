// Package cli holds the start-up and shutdown steps every ledger binary shares.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"creditledger/internal/config"
	applog "creditledger/internal/log"
)

// LoadEnvFile reads .env when present. Production sets the environment directly.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger for component from LOG_LEVEL and
// LOG_FORMAT and installs it as the slog default. An unknown level falls back
// to info with a warning.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	cfg.Format = os.Getenv("LOG_FORMAT")
	level, levelErr := applog.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Level = level

	logger := applog.New(cfg)
	applog.SetDefault(logger)
	if levelErr != nil {
		logger.Warn("Unknown log level, using info", applog.FieldError, levelErr)
	}
	return logger
}

// LoadAndValidateConfig exits the process when validate rejects the environment.
func LoadAndValidateConfig(logger *applog.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		Fatal(logger, "Configuration validation failed", applog.FieldError, err)
	}
	return cfg
}

// GracefulShutdown returns a context cancelled by SIGINT or SIGTERM. After the
// signal, cleanup runs under a context bounded by timeout and the returned
// channel closes when it is done.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received", "timeout", timeout)

		cleanupCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if cleanup != nil {
			cleanup(cleanupCtx)
		}
		if errors.Is(cleanupCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timed out before cleanup finished")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until ctx is cancelled and cleanup has returned.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

func Fatal(logger *applog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
