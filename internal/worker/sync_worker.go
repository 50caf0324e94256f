// Package worker runs the background sync: requests arriving over AMQP and
// the periodic full refresh from Google Sheets.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledgerdash/internal/amqp"
	"ledgerdash/internal/log"
	"ledgerdash/internal/services"
)

// RequestConsumer delivers sync requests until ctx is done. *amqp.Client
// satisfies it.
type RequestConsumer interface {
	ConsumeSyncRequests(ctx context.Context, handler func(context.Context, *amqp.SyncRequestMessage) error) error
}

// SyncWorker wires a consumer to the sync processor.
type SyncWorker struct {
	processor *services.SyncProcessor
	consumer  RequestConsumer
	logger    *log.Logger
}

// NewSyncWorker builds a worker. consumer may be nil, in which case only
// the scheduled sync runs.
func NewSyncWorker(processor *services.SyncProcessor, consumer RequestConsumer, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		processor: processor,
		consumer:  consumer,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// StartupSync refreshes every target once. Failures are logged and the
// worker keeps going with whatever the store holds.
func (w *SyncWorker) StartupSync(ctx context.Context) {
	results, err := w.processor.Sync(ctx, amqp.TargetAll)
	if err != nil {
		w.logger.Fields(ctx, slog.LevelWarn, "Startup sync failed", log.NewFields().
			WithOperation(log.OpStartup).
			WithError(err))
		return
	}
	total := 0
	for _, r := range results {
		total += r.Imported
	}
	w.logger.Fields(ctx, slog.LevelInfo, "Startup sync completed", log.NewFields().
		WithOperation(log.OpStartup).
		With("targets", len(results)).
		With(log.FieldEntries, total))
}

// Run starts the schedule and blocks consuming requests until ctx is done.
// The schedule is stopped before Run returns.
func (w *SyncWorker) Run(ctx context.Context) error {
	if err := w.processor.Start(ctx); err != nil {
		return fmt.Errorf("start sync processor: %w", err)
	}
	defer func() {
		if err := w.processor.Stop(context.WithoutCancel(ctx)); err != nil {
			w.logger.WarnContext(ctx, "Failed to stop sync processor", log.FieldError, err)
		}
	}()

	if w.consumer == nil {
		w.logger.InfoContext(ctx, "AMQP not configured, running scheduled sync only")
		<-ctx.Done()
		return nil
	}

	w.logger.InfoContext(ctx, "Consuming sync requests")
	err := w.consumer.ConsumeSyncRequests(ctx, w.handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume sync requests: %w", err)
	}
	return nil
}

func (w *SyncWorker) handle(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	if err := w.processor.HandleSyncRequest(ctx, msg); err != nil {
		w.logger.ErrorContext(ctx, "Sync request failed", log.FieldTarget, msg.Target, log.FieldError, err)
		return err
	}
	return nil
}
