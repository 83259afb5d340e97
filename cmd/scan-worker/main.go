package main

import (
	"context"
	"errors"
	"os"

	"snapreceipt/internal/amqp"
	"snapreceipt/internal/cli"
	"snapreceipt/internal/extract"
	"snapreceipt/internal/log"
	"snapreceipt/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the scan worker")
		os.Exit(1)
	}
	if cfg.GeminiAPIKey == "" {
		logger.Error("GEMINI_API_KEY is required for the scan worker")
		os.Exit(1)
	}

	ctx, stop := cli.NotifyShutdown(context.Background())
	defer stop()

	store, cleanup := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	extractor, err := extract.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("Failed to initialize extractor", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := extractor.Close(); err != nil {
			logger.Error("Extractor close error", log.FieldError, err)
		}
	}()

	queue, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to scan queue", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error("Queue close error", log.FieldError, err)
		}
	}()

	scanWorker := worker.NewScanWorker(store, extractor, cfg.ExtractTimeout)

	logger.Info("Scan worker started",
		"queue", cfg.AMQPQueue,
		"model", cfg.GeminiModel,
		"extract_timeout", cfg.ExtractTimeout)

	err = queue.ConsumeScanJobs(ctx, func(msg *amqp.ScanJobMessage) error {
		return scanWorker.HandleScanJob(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Scan worker stopped gracefully")
}
