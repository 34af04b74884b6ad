package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finplan/internal/amqp"
	"finplan/internal/cli"
	"finplan/internal/config"
	"finplan/internal/log"
	gsheet "finplan/internal/sheets/google"
	"finplan/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, os.Stdout).WithComponent(log.ComponentWorker)

	if err := run(cfg, logger); err != nil {
		logger.Error("Export worker failed", log.FieldError, err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	if !cfg.ExportEnabled() {
		return errors.New("GOOGLE_SPREADSHEET_ID is required to export records")
	}
	logger.Info("Starting finplan-export")

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	sheetsClient, err := gsheet.NewFromEnv(context.Background(), logger)
	if err != nil {
		return err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	exporter := worker.NewExportWorker(repo, sheetsClient, worker.Config{
		SweepInterval: cfg.ExportSweepInterval,
		BatchSize:     cfg.ExportBatchSize,
	}, logger, nil)

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer events.Close()
	} else {
		logger.Info("AMQP_URL not set, exporting on the sweep only", "sweep_interval", cfg.ExportSweepInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if !exporter.IsRunning() {
			return
		}
		if err := exporter.Stop(ctx); err != nil {
			logger.Warn("Export worker did not stop cleanly", log.FieldError, err.Error())
		}
	})

	if err := exporter.Start(ctx); err != nil {
		return err
	}

	if events != nil {
		go func() {
			err := events.ConsumeRecordSubmitted(ctx, exporter.HandleRecordSubmitted)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err.Error())
			}
		}()
	}

	<-done
	return nil
}
