package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StockScreener/internal/domain/models"
	"StockScreener/pkg/cache"
)

func newStore(t *testing.T, now func() time.Time) (*CacheResultStore, *cache.MemoryCache) {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	return NewCacheResultStore(c, WithRetentionDays(1), withStoreClock(now)), c
}

func frame(date time.Time, bias float64) models.FrameIndicators {
	return models.FrameIndicators{
		Date: date,
		BIAS: models.BiasValue{Bias: models.Float(bias)},
		RSI:  models.RSIValue{Value: models.Float(55), Period: 14},
		MACD: models.MACDValue{Value: models.Float(1.2), Signal: models.Float(0.8), Histogram: models.Float(0.4), FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	}
}

func TestMergeFilteredKeepsOtherFrames(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	clock := day
	s, c := newStore(t, func() time.Time { return clock })
	ctx := context.Background()

	fm := models.NewFinancialMetrics(&models.FundamentalProfile{GrossMargin: models.Float(0.45)}, models.FinancialThresholds{GrossMargin: 0.3, ROE: 0.15, RDRatio: 0.1})
	if _, err := s.MergeFiltered(ctx, "AAPL", fm, map[models.TimeFrame]models.FrameIndicators{models.Daily: frame(day, 1.5)}); err != nil {
		t.Fatalf("merge daily: %v", err)
	}
	clock = day.Add(time.Hour)
	rec, err := s.MergeFiltered(ctx, "AAPL", nil, map[models.TimeFrame]models.FrameIndicators{models.Weekly: frame(day, 2.5)})
	if err != nil {
		t.Fatalf("merge weekly: %v", err)
	}
	if len(rec.Frames) != 2 || rec.Financial == nil || *rec.Financial.GrossMargin != 0.45 {
		t.Fatalf("merge lost data: %+v", rec)
	}
	if !rec.Meta.FilterTime.Equal(clock) || rec.Meta.Stock != "AAPL" {
		t.Fatalf("meta not refreshed: %+v", rec.Meta)
	}

	var raw map[string]any
	if err := c.Get(ctx, "filtered_stock_AAPL", &raw); err != nil {
		t.Fatalf("raw get: %v", err)
	}
	for _, k := range []string{"metaData", "FinancialMetrics", "daily", "weekly"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("stored document missing %q: %v", k, raw)
		}
	}
}

func TestMergeFilteredConcurrentWriters(t *testing.T) {
	s, _ := newStore(t, time.Now)
	ctx := context.Background()
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for _, tf := range models.AllTimeFrames() {
		wg.Add(1)
		go func(tf models.TimeFrame) {
			defer wg.Done()
			if _, err := s.MergeFiltered(ctx, "MSFT", nil, map[models.TimeFrame]models.FrameIndicators{tf: frame(day, 1)}); err != nil {
				t.Errorf("merge %s: %v", tf, err)
			}
		}(tf)
	}
	wg.Wait()

	rec, err := s.GetFiltered(ctx, "MSFT")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Frames) != len(models.AllTimeFrames()) {
		t.Fatalf("lost update: frames=%v", rec.Frames)
	}
}

func TestListFilteredByFrameAndDate(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s, _ := newStore(t, func() time.Time { return clock })
	ctx := context.Background()

	_, _ = s.MergeFiltered(ctx, "OLD", nil, map[models.TimeFrame]models.FrameIndicators{models.Daily: frame(base, 1)})
	clock = base.AddDate(0, 0, 3)
	_, _ = s.MergeFiltered(ctx, "NEW", nil, map[models.TimeFrame]models.FrameIndicators{models.Daily: frame(clock, 1)})
	_, _ = s.MergeFiltered(ctx, "WK", nil, map[models.TimeFrame]models.FrameIndicators{models.Weekly: frame(clock, 1)})

	got, err := s.ListFiltered(ctx, []models.TimeFrame{models.Daily}, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got["NEW"] == nil {
		t.Fatalf("expected only NEW, got %v", keys(got))
	}

	all, _ := s.ListFiltered(ctx, models.AllTimeFrames(), time.Time{})
	if len(all) != 3 {
		t.Fatalf("expected every record without a date bound, got %v", keys(all))
	}
}

func TestGetFilteredMissing(t *testing.T) {
	s, _ := newStore(t, time.Now)
	if _, err := s.GetFiltered(context.Background(), "NONE"); !errors.Is(err, models.ErrNoData) {
		t.Fatalf("expected no data, got %v", err)
	}
}

func TestJobRecordsAndInflightLock(t *testing.T) {
	s, c := newStore(t, time.Now)
	ctx := context.Background()
	id := "0123456789abcdef01234567"

	if _, err := s.GetJob(ctx, models.JobTypeFilter, id); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("expected job not found, got %v", err)
	}
	job := &models.Job{ID: id, Type: models.JobTypeFilter, Status: models.JobProcessing, CreatedAt: time.Now()}
	if err := s.SaveJob(ctx, job, 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ok, _ := c.Exists(ctx, "filter_job_"+id); !ok {
		t.Fatalf("job not stored under filter_job_%s", id)
	}

	if ok, _ := s.AcquireJob(ctx, models.JobTypeFilter, id, time.Minute); !ok {
		t.Fatalf("first acquire must succeed")
	}
	if ok, _ := s.AcquireJob(ctx, models.JobTypeFilter, id, time.Minute); ok {
		t.Fatalf("second acquire must fail while held")
	}
	_ = s.ReleaseJob(ctx, models.JobTypeFilter, id)
	if ok, _ := s.AcquireJob(ctx, models.JobTypeFilter, id, time.Minute); !ok {
		t.Fatalf("acquire after release must succeed")
	}
}

func TestJobRecordExpiresOnOwnTTL(t *testing.T) {
	s, _ := newStore(t, time.Now)
	ctx := context.Background()
	job := &models.Job{ID: "abcdefabcdefabcdefabcdef", Type: models.JobTypeTrend, Status: models.JobDone, CreatedAt: time.Now()}

	if err := s.SaveJob(ctx, job, 50*time.Millisecond); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.GetJob(ctx, job.Type, job.ID); err != nil {
		t.Fatalf("job must be readable before expiry: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if _, err := s.GetJob(ctx, job.Type, job.ID); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("job must expire on its own ttl, got %v", err)
	}
}

func TestSymbolsRoundTrip(t *testing.T) {
	s, _ := newStore(t, time.Now)
	ctx := context.Background()
	if _, err := s.GetSymbols(ctx, "NYSE"); !errors.Is(err, models.ErrNoData) {
		t.Fatalf("expected no data, got %v", err)
	}
	_ = s.SaveSymbols(ctx, "NYSE", []string{"IBM", "KO"})
	got, err := s.GetSymbols(ctx, "NYSE")
	if err != nil || len(got) != 2 || got[0] != "IBM" {
		t.Fatalf("unexpected symbols %v %v", got, err)
	}
}

func keys(m map[string]*models.FilteredStockRecord) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
