package main

import (
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is required for the worker")
	}
	if cfg.DataBackend != string(backend.SQLiteBackend) {
		logger.Warn("Worker is not using the sqlite backend; it cannot see transactions written by the API")
	}

	ctx, stop := cli.GracefulShutdown(logger, 10*time.Second, nil)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	var mirror worker.Mirror
	if cfg.SheetsEnabled() {
		sheets, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return err
		}
		mirror = sheets
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
		amqp.Queues{Events: cfg.AMQPEventsQueue, Chat: cfg.AMQPChatQueue}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("Starting fintrack-worker",
		"events_queue", cfg.AMQPEventsQueue, "chat_queue", cfg.AMQPChatQueue)
	return worker.New(res.Store, res.Store, mirror, logger).Run(ctx, client)
}

