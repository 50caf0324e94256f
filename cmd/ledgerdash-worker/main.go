package main

import (
	"os"

	"ledgerdash/internal/cli"
	"ledgerdash/internal/log"
	"ledgerdash/internal/services"
	"ledgerdash/internal/worker"
)

func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	if !cfg.SheetsEnabled() {
		logger.Error("The sync worker needs a Google Sheets source, set GOOGLE_SPREADSHEET_ID and credentials")
		exitCode = 1
		return
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	var publisher services.EventPublisher
	var consumer worker.RequestConsumer
	if be.AMQP != nil {
		publisher = be.AMQP
		consumer = be.AMQP
	} else {
		logger.Warn("AMQP is not configured, only scheduled syncs will run")
	}

	pc := services.DefaultSyncProcessorConfig()
	pc.Interval = cfg.SyncInterval
	processor := services.NewSyncProcessor(be.Source, be.Store, nil, publisher, pc, logger)
	w := worker.NewSyncWorker(processor, consumer, logger)

	w.StartupSync(ctx)

	logger.Info("Starting sync worker",
		"backend", cfg.DataBackend,
		"interval", cfg.SyncInterval.String(),
		"amqp", be.AMQP != nil)
	if err := w.Run(ctx); err != nil {
		logger.Error("Sync worker failed", log.FieldError, err)
		exitCode = 1
		return
	}
	logger.Info("Worker shutdown complete")
}
