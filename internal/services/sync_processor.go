package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledgerdash/internal/amqp"
	"ledgerdash/internal/core"
	"ledgerdash/internal/log"
	"ledgerdash/internal/ports"
)

// SyncStore is what a sync writes into.
type SyncStore interface {
	ports.EntryWriter
	ports.IndexWriter
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// Interval between scheduled full syncs. Zero disables the schedule.
	Interval time.Duration
	// Timeout bounds a single sync run (default: 2m)
	Timeout time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		Interval: 15 * time.Minute,
		Timeout:  2 * time.Minute,
	}
}

// SyncResult reports what one target sync loaded.
type SyncResult struct {
	Target   string
	Imported int
	Skipped  []core.Diagnostic
}

// SyncProcessor reloads the store from the spreadsheet, on request or on a
// schedule. Books are replaced wholesale; index values are upserted.
type SyncProcessor struct {
	source      ports.LedgerSource
	store       SyncStore
	invalidator Invalidator
	publisher   EventPublisher
	config      SyncProcessorConfig
	now         func() time.Time
	logger      *log.Logger

	// one sync at a time
	syncMu sync.Mutex

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce *sync.Once
}

func NewSyncProcessor(source ports.LedgerSource, store SyncStore, invalidator Invalidator, publisher EventPublisher, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if config.Timeout <= 0 {
		config.Timeout = DefaultSyncProcessorConfig().Timeout
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncProcessor{
		source:      source,
		store:       store,
		invalidator: invalidator,
		publisher:   publisher,
		config:      config,
		now:         time.Now,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// Sync loads target from the source. TargetAll syncs every target and
// stops at the first failure.
func (p *SyncProcessor) Sync(ctx context.Context, target string) ([]SyncResult, error) {
	targets := []string{target}
	if target == amqp.TargetAll {
		targets = []string{amqp.TargetTransactions, amqp.TargetBudget, amqp.TargetIndex}
	}

	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	var results []SyncResult
	for _, t := range targets {
		res, err := p.syncOne(ctx, t)
		if err != nil {
			p.logger.Fields(ctx, levelError, "Sync failed", log.NewFields().
				WithOperation(log.OpSync).
				With(log.FieldTarget, t).
				WithError(err))
			return results, err
		}
		results = append(results, res)
		p.logger.Fields(ctx, levelFor(res.Skipped), "Sync finished", log.NewFields().
			WithOperation(log.OpSync).
			With(log.FieldTarget, t).
			With(log.FieldEntries, res.Imported).
			WithDiagnostics(res.Skipped))
		if p.invalidator != nil {
			p.invalidator.Invalidate()
		}
		p.publish(ctx, res)
	}
	return results, nil
}

func (p *SyncProcessor) syncOne(ctx context.Context, target string) (SyncResult, error) {
	if target == amqp.TargetIndex {
		values, skipped, err := p.source.ReadIndexValues(ctx)
		if err != nil {
			return SyncResult{}, fmt.Errorf("read index: %w", err)
		}
		for _, v := range values {
			if err := p.store.UpsertIndexValue(ctx, v); err != nil {
				return SyncResult{}, fmt.Errorf("save index value %04d-%02d: %w", v.Year, v.Month, err)
			}
		}
		return SyncResult{Target: target, Imported: len(values), Skipped: skipped}, nil
	}

	book, err := core.ParseBook(target)
	if err != nil {
		return SyncResult{}, err
	}
	entries, skipped, err := p.source.ReadEntries(ctx, book)
	if err != nil {
		return SyncResult{}, fmt.Errorf("read %s: %w", book, err)
	}
	if err := p.store.ReplaceEntries(ctx, book, entries); err != nil {
		return SyncResult{}, fmt.Errorf("replace %s: %w", book, err)
	}
	return SyncResult{Target: target, Imported: len(entries), Skipped: skipped}, nil
}

func (p *SyncProcessor) publish(ctx context.Context, res SyncResult) {
	if p.publisher == nil {
		return
	}
	msg := amqp.ImportCompletedMessage{
		Target:    res.Target,
		Imported:  res.Imported,
		Skipped:   len(res.Skipped),
		Timestamp: p.now(),
	}
	if err := p.publisher.PublishImportCompleted(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish sync event", log.FieldTarget, res.Target, log.FieldError, err)
	}
}

// HandleSyncRequest is the AMQP consumer callback.
func (p *SyncProcessor) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "Sync requested", log.FieldTarget, msg.Target, "requested_at", msg.RequestedAt)
	_, err := p.Sync(ctx, msg.Target)
	return err
}

// Start begins the scheduled sync loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.stopOnce = &sync.Once{}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.logger.InfoContext(ctx, "Sync processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to end. It
// may be called again after a timeout to keep waiting.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh, once := p.stopCh, p.doneCh, p.stopOnce
	p.mu.Unlock()

	once.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(doneCh)
	}()

	if p.config.Interval <= 0 {
		select {
		case <-stopCh:
		case <-ctx.Done():
		}
		return
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// failures are logged by Sync; the next tick retries
			_, _ = p.Sync(ctx, amqp.TargetAll)
		}
	}
}
