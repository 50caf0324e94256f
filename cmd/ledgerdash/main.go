package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledgerdash/internal/cache"
	"ledgerdash/internal/cli"
	apphttp "ledgerdash/internal/http"
	"ledgerdash/internal/log"
	"ledgerdash/internal/services"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	reports := services.NewReportService(be.Store, services.ReportServiceConfig{
		CacheSize: cfg.ReportCacheSize,
		CacheTTL:  cfg.ReportCacheTTL,
		Threshold: cfg.VarianceThreshold(),
		Location:  cfg.Location(),
	}, logger)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	if c, ok := reports.Cache().(cache.Cleaner); ok {
		caches.Register(c)
	}
	caches.StartCleanup(ctx, time.Minute)
	defer caches.Stop()

	var publisher services.EventPublisher
	deps := apphttp.Deps{
		Reports:  reports,
		Location: cfg.Location(),
		Logger:   logger,
	}
	if be.AMQP != nil {
		publisher = be.AMQP
		deps.Sync = be.AMQP
	}
	if p, ok := be.Store.(pinger); ok {
		deps.Ready = p.Ping
	}
	deps.Ledger = services.NewLedgerService(be.Store, reports, publisher, cfg.Location(), logger)

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ledgerdash server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp", be.AMQP != nil,
			"sheets", be.Source != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
