package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerdash/internal/amqp"
	"ledgerdash/internal/core"
	"ledgerdash/internal/store/memory"
)

// countingStore counts list calls to observe caching.
type countingStore struct {
	*memory.Store
	lists atomic.Int32
}

func (s *countingStore) ListEntries(ctx context.Context, book core.Book) ([]core.LedgerEntry, error) {
	s.lists.Add(1)
	return s.Store.ListEntries(ctx, book)
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []amqp.ImportCompletedMessage
	err  error
}

func (p *fakePublisher) PublishImportCompleted(_ context.Context, msg amqp.ImportCompletedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func entry(date core.Date, kind core.Kind, category string, amount float64) core.LedgerEntry {
	return core.LedgerEntry{Date: date, Kind: kind, Category: category, Subcategory: "-", Item: "-", Amount: amount}
}

func seededStore(t *testing.T) *countingStore {
	t.Helper()
	ctx := context.Background()
	st := &countingStore{Store: memory.New()}
	_, err := st.AppendEntries(ctx, core.Actual,
		entry(core.NewDate(2024, 1, 5), core.Expense, "Materials", 120),
		entry(core.NewDate(2024, 1, 20), core.Income, "Sales", 500),
		entry(core.NewDate(2024, 2, 3), core.Expense, "Materials", 80),
	)
	require.NoError(t, err)
	_, err = st.AppendEntries(ctx, core.Budget,
		entry(core.NewDate(2024, 1, 1), core.Expense, "Materials", 100),
		entry(core.NewDate(2024, 2, 1), core.Expense, "Materials", 100),
	)
	require.NoError(t, err)
	require.NoError(t, st.UpsertIndexValue(ctx, core.IndexValue{Year: 2024, Month: 1, Value: decimal.NewFromInt(2)}))
	return st
}

func newReportService(st ReportStore) *ReportService {
	return NewReportService(st, ReportServiceConfig{Threshold: decimal.NewFromInt(10)}, nil)
}

func TestReportServiceReport(t *testing.T) {
	st := seededStore(t)
	svc := newReportService(st)
	r := core.Range{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}

	rep, err := svc.Report(context.Background(), core.Actual, r, nil)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, core.Expense, rep.Rows[0].Kind)
	assert.True(t, rep.Rows[0].HasRate)
	assert.True(t, rep.Rows[0].IndexedTotal.Equal(decimal.NewFromInt(240)))
	assert.True(t, rep.Net.Equal(decimal.NewFromInt(380)))
}

func TestReportServiceCachesUntilInvalidated(t *testing.T) {
	st := seededStore(t)
	svc := newReportService(st)
	ctx := context.Background()
	r := core.Range{}

	_, err := svc.Report(ctx, core.Actual, r, nil)
	require.NoError(t, err)
	_, err = svc.Report(ctx, core.Actual, r, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), st.lists.Load())

	// the kind list is part of the key
	_, err = svc.Report(ctx, core.Actual, r, []core.Kind{core.Income})
	require.NoError(t, err)
	assert.Equal(t, int32(2), st.lists.Load())

	svc.Invalidate()
	_, err = svc.Report(ctx, core.Actual, r, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), st.lists.Load())
}

func TestReportServiceSeesWritesThroughLedgerService(t *testing.T) {
	st := seededStore(t)
	reports := newReportService(st)
	ledger := NewLedgerService(st, reports, nil, nil, nil)
	ctx := context.Background()

	before, err := reports.Report(ctx, core.Actual, core.Range{}, nil)
	require.NoError(t, err)

	_, err = ledger.AddEntries(ctx, core.Actual, entry(core.NewDate(2024, 2, 10), core.Income, "Sales", 50))
	require.NoError(t, err)

	after, err := reports.Report(ctx, core.Actual, core.Range{}, nil)
	require.NoError(t, err)
	assert.True(t, after.Net.Sub(before.Net).Equal(decimal.NewFromInt(50)))
}

func TestReportServiceRejectsInvertedRange(t *testing.T) {
	svc := newReportService(seededStore(t))
	_, err := svc.Report(context.Background(), core.Actual,
		core.Range{Start: core.NewDate(2024, 3, 1), End: core.NewDate(2024, 1, 1)}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestReportServiceVariance(t *testing.T) {
	svc := newReportService(seededStore(t))
	ctx := context.Background()

	res, err := svc.Variance(ctx, core.Range{}, nil)
	require.NoError(t, err)
	assert.True(t, res.Threshold.Equal(decimal.NewFromInt(10)))
	require.Len(t, res.Rows, 3)

	jan := res.Rows[0]
	assert.Equal(t, "Materials", jan.Category)
	assert.Equal(t, 1, jan.Month)
	assert.True(t, jan.DifferencePct.Equal(decimal.NewFromInt(20)))
	assert.True(t, jan.Flagged)

	feb := res.Rows[1]
	assert.True(t, feb.DifferencePct.Equal(decimal.NewFromInt(-20)))

	// income has no budget line
	sales := res.Rows[2]
	assert.Equal(t, core.Income, sales.Kind)
	assert.False(t, sales.HasPct)
	assert.True(t, sales.Flagged)

	high := decimal.NewFromInt(25)
	res, err = svc.Variance(ctx, core.Range{}, &high)
	require.NoError(t, err)
	assert.False(t, res.Rows[0].Flagged)
}

func TestReportServiceChartData(t *testing.T) {
	svc := newReportService(seededStore(t))
	svc.now = func() time.Time { return time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC) }

	data, err := svc.ChartData(context.Background(), core.Range{})
	require.NoError(t, err)
	assert.Equal(t, "2023-09-01", data.Range.Start.String())
	assert.Equal(t, "2024-02-29", data.Range.End.String())
	assert.Equal(t, []string{"2023-09", "2023-10", "2023-11", "2023-12", "2024-01", "2024-02"}, data.Labels)
	require.Len(t, data.Series, 4)

	actualExpense := data.Series[0]
	assert.Equal(t, core.Actual, actualExpense.Book)
	assert.Equal(t, core.Expense, actualExpense.Kind)
	assert.True(t, actualExpense.Values[4].Equal(decimal.NewFromInt(120)))
	assert.True(t, actualExpense.Values[5].Equal(decimal.NewFromInt(80)))
	assert.True(t, actualExpense.Values[0].IsZero())

	budgetIncome := data.Series[3]
	assert.Equal(t, core.Budget, budgetIncome.Book)
	assert.Equal(t, core.Income, budgetIncome.Kind)
}

func TestDefaultChartRangeCrossesYear(t *testing.T) {
	r := DefaultChartRange(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2023-10-01", r.Start.String())
	assert.Equal(t, "2024-03-31", r.End.String())
}

func TestReportServiceEntries(t *testing.T) {
	svc := newReportService(seededStore(t))
	got, err := svc.Entries(context.Background(), core.Actual,
		core.Range{Start: core.NewDate(2024, 2, 1)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 80.0, got[0].Amount)
}

func TestReportServiceConcurrentLoadsShareWork(t *testing.T) {
	st := seededStore(t)
	svc := newReportService(st)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Report(context.Background(), core.Actual, core.Range{}, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, st.lists.Load(), int32(20))
	assert.Equal(t, 1, svc.Cache().Size())
}

// gatedStore holds entry loads until release is closed.
type gatedStore struct {
	*countingStore
	entered     chan struct{}
	enteredOnce sync.Once
	release     chan struct{}
	loads       atomic.Int32
}

func (s *gatedStore) ListEntries(ctx context.Context, book core.Book) ([]core.LedgerEntry, error) {
	s.loads.Add(1)
	s.enteredOnce.Do(func() { close(s.entered) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.countingStore.ListEntries(ctx, book)
}

func TestReportServiceSharedLoadSurvivesCallerCancel(t *testing.T) {
	st := &gatedStore{countingStore: seededStore(t), entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewReportService(st, ReportServiceConfig{}, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Report(ctxA, core.Actual, core.Range{}, nil)
		errA <- err
	}()
	<-st.entered
	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	type result struct {
		net string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		rep, err := svc.Report(context.Background(), core.Actual, core.Range{}, nil)
		resB <- result{rep.Net.String(), err}
	}()
	time.Sleep(50 * time.Millisecond)
	close(st.release)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "300", b.net)
	assert.Equal(t, int32(1), st.loads.Load(), "the second caller should join the running load")
}

func TestLedgerServiceDeleteUnknown(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil, nil, nil)
	err := svc.DeleteEntry(context.Background(), core.Actual, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedgerServiceUpsertIndexValue(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil, nil, nil)
	ctx := context.Background()

	err := svc.UpsertIndexValue(ctx, core.IndexValue{Year: 2024, Month: 13, Value: decimal.NewFromInt(1)})
	assert.Error(t, err)

	require.NoError(t, svc.UpsertIndexValue(ctx, core.IndexValue{Year: 2024, Month: 2, Value: decimal.NewFromInt(3)}))
	values, err := svc.ListIndexValues(ctx)
	require.NoError(t, err)
	require.Len(t, values, 1)
}

func TestLedgerServiceUpdateEntryInvalidatesReports(t *testing.T) {
	st := seededStore(t)
	reports := newReportService(st)
	ledger := NewLedgerService(st, reports, nil, nil, nil)
	ctx := context.Background()
	r := core.Range{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}

	before, err := reports.Report(ctx, core.Actual, r, nil)
	require.NoError(t, err)
	assert.Equal(t, "380", before.Net.String())

	entries, err := st.ListEntries(ctx, core.Actual)
	require.NoError(t, err)
	e, err := ledger.GetEntry(ctx, core.Actual, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Materials", e.Category)

	e.Amount = 200
	e.Category = "Tools"
	stored, err := ledger.UpdateEntry(ctx, core.Actual, e)
	require.NoError(t, err)
	assert.Equal(t, "Tools", stored.Category)
	assert.Equal(t, entries[0].CreatedAt, stored.CreatedAt)

	after, err := reports.Report(ctx, core.Actual, r, nil)
	require.NoError(t, err)
	assert.Equal(t, "300", after.Net.String())

	e.ID = "missing"
	_, err = ledger.UpdateEntry(ctx, core.Actual, e)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = ledger.GetEntry(ctx, core.Budget, entries[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedgerServiceDeleteIndexValue(t *testing.T) {
	st := seededStore(t)
	reports := newReportService(st)
	ledger := NewLedgerService(st, reports, nil, nil, nil)
	ctx := context.Background()
	r := core.Range{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}

	rep, err := reports.Report(ctx, core.Actual, r, nil)
	require.NoError(t, err)
	assert.True(t, rep.Rows[0].HasRate)

	require.NoError(t, ledger.DeleteIndexValue(ctx, 2024, 1))
	rep, err = reports.Report(ctx, core.Actual, r, nil)
	require.NoError(t, err)
	assert.False(t, rep.Rows[0].HasRate)

	assert.ErrorIs(t, ledger.DeleteIndexValue(ctx, 2024, 1), core.ErrNotFound)
	assert.ErrorIs(t, ledger.DeleteIndexValue(ctx, 2024, 13), core.ErrInvalidArgument)
}

func TestReportServiceCategories(t *testing.T) {
	svc := newReportService(seededStore(t))
	got, err := svc.Categories(context.Background(), core.Actual)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.Expense, got[0].Kind)
	assert.Equal(t, "Materials", got[0].Categories[0].Name)
	assert.Equal(t, []string{"-"}, got[0].Categories[0].Subcategories)
	assert.Equal(t, core.Income, got[1].Kind)
}

func TestReportServiceInsights(t *testing.T) {
	st := seededStore(t)
	_, err := st.AppendEntries(context.Background(), core.Budget,
		entry(core.NewDate(2024, 1, 1), core.Income, "Sales", 650))
	require.NoError(t, err)
	svc := newReportService(st)

	got, err := svc.Insights(context.Background(), core.Range{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 2, 29)})
	require.NoError(t, err)
	require.NotNil(t, got.LargestExpense)
	assert.Equal(t, 120.0, got.LargestExpense.Amount)
	assert.Equal(t, "500", got.TotalIncome.String())
	assert.Equal(t, "650", got.BudgetedIncome.String())
	assert.Equal(t, "-150", got.Deviation.String())

	_, err = svc.Insights(context.Background(), core.Range{Start: core.NewDate(2024, 3, 1), End: core.NewDate(2024, 1, 1)})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
