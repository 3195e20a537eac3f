package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"creditledger/internal/amqp"
	"creditledger/internal/auth"
	"creditledger/internal/backend"
	"creditledger/internal/cache"
	"creditledger/internal/cli"
	"creditledger/internal/config"
	apphttp "creditledger/internal/http"
	applog "creditledger/internal/log"
	"creditledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", applog.FieldError, err)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger.Logger).Open(startCtx, backendCfg)
	startCancel()
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", applog.FieldError, err, applog.FieldBackend, backendCfg.Kind)
	}

	// Change events are optional; without a broker the ledger runs standalone.
	var (
		publisher  services.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, credit events disabled", applog.FieldError, err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			logger.Info("Publishing credit events", "exchange", cfg.AMQPExchange)
		}
	}

	creditService := services.NewCreditService(result.Store, services.CreditServiceOptions{
		MonthKey:        cfg.MonthKey(),
		SummaryCacheTTL: cfg.SummaryCacheTTL,
		Publisher:       publisher,
	})

	gate, err := auth.New(cfg, result.Sessions)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize auth", applog.FieldError, err, applog.FieldAuthMode, cfg.AuthMode)
	}

	cacheManager := cache.NewManager(logger.Logger)
	if c := creditService.SummaryCache(); c != nil {
		cacheManager.Register("month_summaries", c)
	}
	if result.Sessions != nil {
		sessionStore := result.Sessions
		cacheManager.Register("sessions", cache.CleanerFunc(func() int {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			n, err := sessionStore.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Warn("Failed to purge expired sessions", applog.FieldError, err)
				return 0
			}
			return int(n)
		}))
	}
	cacheManager.StartCleanup(5 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Credits:        creditService,
		Gate:           gate,
		Logger:         logger,
		CookieSecure:   cfg.CookieSecure,
		LoginRateLimit: cfg.LoginRateLimit,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting creditledger server",
		"port", cfg.Port,
		applog.FieldBackend, backendCfg.Kind,
		applog.FieldAuthMode, cfg.AuthMode,
		"month_key", cfg.MonthKey())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", applog.FieldError, err, "port", cfg.Port)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
