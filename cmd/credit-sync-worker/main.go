package main

import (
	"context"
	"errors"
	"time"

	"creditledger/internal/amqp"
	"creditledger/internal/cli"
	"creditledger/internal/config"
	applog "creditledger/internal/log"
	gsheet "creditledger/internal/sheets/google"
	"creditledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	sheetsClient, err := gsheet.New(initCtx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		HistorySheet:    cfg.GoogleHistorySheet,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	})
	initCancel()
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", applog.FieldError, err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", applog.FieldError, err)
	}

	syncWorker := worker.NewSyncWorker(amqpClient, sheetsClient)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := syncWorker.Stop(ctx); err != nil {
			logger.Warn("Sync worker stop error", applog.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", applog.FieldError, err)
		}
	})

	logger.Info("Starting credit-sync-worker",
		"queue", cfg.AMQPQueue,
		"spreadsheet_id", cfg.GoogleSpreadsheetID)

	// The consumer reconnects on its own; a returned error means it gave up,
	// so restart after SyncInterval until shutdown.
	for ctx.Err() == nil {
		if err := syncWorker.Start(ctx); err != nil {
			cli.Fatal(logger, "Failed to start sync worker", applog.FieldError, err)
		}
		select {
		case <-ctx.Done():
		case <-syncWorker.Done():
			if err := syncWorker.Err(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Credit event consumer stopped, restarting",
					applog.FieldError, err, "retry_in", cfg.SyncInterval)
			}
			select {
			case <-ctx.Done():
			case <-time.After(cfg.SyncInterval):
			}
		}
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Sync worker stopped")
}
