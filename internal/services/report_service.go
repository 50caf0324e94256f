package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ledgerdash/internal/cache"
	"ledgerdash/internal/core"
	"ledgerdash/internal/log"
	"ledgerdash/internal/ports"
	"ledgerdash/internal/report"
)

// ReportStore is what reports are read from.
type ReportStore interface {
	ports.EntryLister
	ports.IndexReader
}

type ReportServiceConfig struct {
	CacheSize int
	CacheTTL  time.Duration
	// Threshold is the default variance threshold in percent.
	Threshold decimal.Decimal
	Location  *time.Location
	// LoadTimeout bounds one shared store load.
	LoadTimeout time.Duration
}

// ReportService builds reports from a store. Results are cached until the
// TTL passes or Invalidate is called; concurrent requests for the same
// report share one load. Returned reports are shared and must not be
// modified.
type ReportService struct {
	store       ReportStore
	reports     cache.Cache[report.Report]
	group       singleflight.Group
	loadTimeout time.Duration
	gen         atomic.Uint64
	threshold   decimal.Decimal
	loc         *time.Location
	now         func() time.Time
	logger      *log.Logger
}

func NewReportService(store ReportStore, cfg ReportServiceConfig, logger *log.Logger) *ReportService {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportService{
		store:       store,
		reports:     cache.NewLRUCache[report.Report](cfg.CacheSize, cfg.CacheTTL),
		threshold:   cfg.Threshold,
		loadTimeout: cfg.LoadTimeout,
		loc:         cfg.Location,
		now:         time.Now,
		logger:      logger.WithComponent(log.ComponentReport),
	}
}

// Cache exposes the report cache so it can be registered for cleanup.
func (s *ReportService) Cache() cache.Cache[report.Report] {
	return s.reports
}

// Invalidate drops every cached report. Loads already running are not
// cached.
func (s *ReportService) Invalidate() {
	s.gen.Add(1)
	s.reports.Purge()
}

// Report builds the report of book over r with kinds in the given order.
func (s *ReportService) Report(ctx context.Context, book core.Book, r core.Range, kinds []core.Kind) (report.Report, error) {
	if err := r.Validate(); err != nil {
		return report.Report{}, err
	}
	gen := s.gen.Load()
	key := reportKey(gen, book, r, kinds)
	if rep, ok := s.reports.Get(key); ok {
		s.logger.DebugContext(ctx, "Report cache hit", log.FieldBook, book, log.FieldRange, r.String())
		return rep, nil
	}

	// The shared load outlives any single caller; each caller only waits
	// on its own context.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		rep, err := s.build(loadCtx, book, r, kinds)
		if err != nil {
			return report.Report{}, err
		}
		if s.gen.Load() == gen {
			s.reports.Set(key, rep)
		}
		return rep, nil
	})
	select {
	case <-ctx.Done():
		return report.Report{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return report.Report{}, res.Err
		}
		return res.Val.(report.Report), nil
	}
}

func (s *ReportService) build(ctx context.Context, book core.Book, r core.Range, kinds []core.Kind) (report.Report, error) {
	var (
		entries []core.LedgerEntry
		index   []core.IndexValue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.store.ListEntries(gctx, book)
		if err != nil {
			return fmt.Errorf("load %s: %w", book, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		index, err = s.store.ListIndexValues(gctx)
		if err != nil {
			return fmt.Errorf("load index: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return report.Report{}, err
	}

	rep, err := report.Build(report.Input{Entries: entries, Index: index, Range: r, Kinds: kinds})
	if err != nil {
		return report.Report{}, err
	}
	fields := log.NewFields().
		WithOperation(log.OpReport).
		WithBook(book).
		WithRange(r).
		With(log.FieldEntries, len(entries)).
		With(log.FieldBuckets, len(rep.Rows))
	if len(rep.Skipped) > 0 {
		s.logger.Fields(ctx, slog.LevelWarn, "Report built with skipped rows", fields.WithDiagnostics(rep.Skipped))
	} else {
		s.logger.Fields(ctx, slog.LevelDebug, "Report built", fields)
	}
	return rep, nil
}

// VarianceResult compares the actual and budget books over one range.
type VarianceResult struct {
	Range         core.Range
	Threshold     decimal.Decimal
	Rows          []report.VarianceRow
	ActualSkipped int
	BudgetSkipped int
}

// Variance compares actual against budget. A nil threshold uses the
// configured default.
func (s *ReportService) Variance(ctx context.Context, r core.Range, threshold *decimal.Decimal) (VarianceResult, error) {
	th := s.threshold
	if threshold != nil {
		th = *threshold
	}
	actual, budget, err := s.both(ctx, r)
	if err != nil {
		return VarianceResult{}, err
	}
	rows, err := report.CompareBudget(buckets(actual.Rows), buckets(budget.Rows), th)
	if err != nil {
		return VarianceResult{}, err
	}
	flagged := 0
	for _, row := range rows {
		if row.Flagged {
			flagged++
		}
	}
	s.logger.Fields(ctx, slog.LevelDebug, "Variance computed", log.NewFields().
		WithOperation(log.OpVariance).
		WithRange(r).
		With("rows", len(rows)).
		With("flagged", flagged))
	return VarianceResult{
		Range:         r,
		Threshold:     th,
		Rows:          rows,
		ActualSkipped: len(actual.Skipped),
		BudgetSkipped: len(budget.Skipped),
	}, nil
}

// ChartSeries is one line of the monthly chart.
type ChartSeries struct {
	Book   core.Book
	Kind   core.Kind
	Values []decimal.Decimal
}

type ChartData struct {
	Range  core.Range
	Labels []string
	Series []ChartSeries
}

// ChartData lays actual and budget totals per kind over every month of r.
// An unbounded side of r takes the default chart window.
func (s *ReportService) ChartData(ctx context.Context, r core.Range) (ChartData, error) {
	def := DefaultChartRange(s.now().In(s.loc))
	if r.Start.IsEmpty() {
		r.Start = def.Start
	}
	if r.End.IsEmpty() {
		r.End = def.End
	}
	actual, budget, err := s.both(ctx, r)
	if err != nil {
		return ChartData{}, err
	}

	out := ChartData{Range: r}
	for _, src := range []struct {
		book core.Book
		rep  report.Report
	}{{core.Actual, actual}, {core.Budget, budget}} {
		for _, kind := range core.Kinds() {
			series, err := report.MonthlySeries(buckets(src.rep.Rows), kind, r.Start, r.End)
			if err != nil {
				return ChartData{}, err
			}
			out.Labels = series.Labels
			out.Series = append(out.Series, ChartSeries{Book: src.book, Kind: kind, Values: series.Values})
		}
	}
	return out, nil
}

// DefaultChartRange spans from the first day of the month five months
// before now to the last day of the current month.
func DefaultChartRange(now time.Time) core.Range {
	y, m, _ := now.Date()
	start := time.Date(y, m-5, 1, 0, 0, 0, 0, now.Location())
	end := time.Date(y, m+1, 0, 0, 0, 0, 0, now.Location())
	return core.Range{Start: core.Date{Time: start}, End: core.Date{Time: end}}
}

// Entries returns the entries of book inside r in stored order.
func (s *ReportService) Entries(ctx context.Context, book core.Book, r core.Range) ([]core.LedgerEntry, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", book, err)
	}
	kept, _ := report.Filter(entries, r)
	return kept, nil
}

// Categories returns the kind, category and subcategory hierarchy used by
// book.
func (s *ReportService) Categories(ctx context.Context, book core.Book) ([]report.KindCategories, error) {
	entries, err := s.store.ListEntries(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", book, err)
	}
	return report.Categories(entries), nil
}

// Insights returns the largest expense and the income measured against the
// budget over r.
func (s *ReportService) Insights(ctx context.Context, r core.Range) (report.Insights, error) {
	if err := r.Validate(); err != nil {
		return report.Insights{}, err
	}
	var actual, budget []core.LedgerEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if actual, err = s.store.ListEntries(gctx, core.Actual); err != nil {
			return fmt.Errorf("load %s: %w", core.Actual, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if budget, err = s.store.ListEntries(gctx, core.Budget); err != nil {
			return fmt.Errorf("load %s: %w", core.Budget, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return report.Insights{}, err
	}
	ins, err := report.BuildInsights(actual, budget, r)
	if err != nil {
		return report.Insights{}, err
	}
	s.logger.Fields(ctx, slog.LevelDebug, "Insights computed", log.NewFields().
		WithOperation(log.OpInsights).
		WithRange(r).
		WithDiagnostics(ins.Skipped))
	return ins, nil
}

func (s *ReportService) both(ctx context.Context, r core.Range) (actual, budget report.Report, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		actual, err = s.Report(gctx, core.Actual, r, nil)
		return err
	})
	g.Go(func() error {
		var err error
		budget, err = s.Report(gctx, core.Budget, r, nil)
		return err
	})
	err = g.Wait()
	return actual, budget, err
}

func buckets(rows []report.Row) []core.PeriodBucket {
	out := make([]core.PeriodBucket, len(rows))
	for i, r := range rows {
		out[i] = r.PeriodBucket
	}
	return out
}

func reportKey(gen uint64, book core.Book, r core.Range, kinds []core.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return fmt.Sprintf("%d|%s|%s|%s", gen, book, r.String(), strings.Join(names, ","))
}
