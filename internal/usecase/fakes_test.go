package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"StockScreener/internal/domain/models"
	"StockScreener/internal/repository"
	"StockScreener/pkg/cache"
)

type fakePrices struct {
	mu     sync.Mutex
	series map[string]models.PriceSeries
	errs   map[string]error
	calls  map[string]int
}

func newFakePrices() *fakePrices {
	return &fakePrices{
		series: make(map[string]models.PriceSeries),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakePrices) Fetch(_ context.Context, symbol string, _, _ time.Time, tf models.TimeFrame) (models.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol+"/"+string(tf)]++
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	s, ok := f.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, models.ErrNoData)
	}
	return s, nil
}

func (f *fakePrices) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

type fakeFundamentals map[string]*models.FundamentalProfile

func (f fakeFundamentals) Fundamentals(_ context.Context, symbol string) (*models.FundamentalProfile, error) {
	p, ok := f[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, models.ErrUpstreamFetch)
	}
	return p, nil
}

type fakeLister struct {
	mu    sync.Mutex
	lists map[string][]string
	calls int
}

func (f *fakeLister) Symbols(_ context.Context, exchange string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.lists[exchange], nil
}

type fakeArchive struct {
	mu       sync.Mutex
	prices   map[string]int
	verdicts []models.FilterVerdict
}

func newFakeArchive() *fakeArchive { return &fakeArchive{prices: make(map[string]int)} }

func (a *fakeArchive) StorePrices(_ context.Context, symbol string, tf models.TimeFrame, series models.PriceSeries) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prices[symbol+"/"+string(tf)] = len(series)
	return nil
}

func (a *fakeArchive) LoadPrices(context.Context, string, models.TimeFrame, time.Time, time.Time) (models.PriceSeries, error) {
	return nil, models.ErrNoData
}

func (a *fakeArchive) StoreVerdicts(_ context.Context, verdicts []models.FilterVerdict) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verdicts = append(a.verdicts, verdicts...)
	return nil
}

func (a *fakeArchive) Health(context.Context) error { return nil }

type fakePublisher struct {
	mu       sync.Mutex
	verdicts []*models.VerdictEvent
	jobs     []*models.JobEvent
}

func (p *fakePublisher) PublishVerdict(_ context.Context, ev *models.VerdictEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verdicts = append(p.verdicts, ev)
	return nil
}

func (p *fakePublisher) PublishJob(_ context.Context, ev *models.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newStore(t *testing.T) *repository.CacheResultStore {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	return repository.NewCacheResultStore(c)
}

func bars(closes []float64) models.PriceSeries {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make(models.PriceSeries, len(closes))
	for i, c := range closes {
		out[i] = models.PricePoint{Timestamp: base.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// accelerating returns a convex series; its MACD stays above the signal line.
func accelerating(n int, start, k float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + k*float64(i*i)
	}
	return out
}

func strongProfile(symbol string) *models.FundamentalProfile {
	return &models.FundamentalProfile{
		Symbol:        symbol,
		Name:          symbol + " Inc.",
		PBRatio:       models.Float(8),
		PERatio:       models.Float(15),
		ROE:           models.Float(0.2),
		GrossMargin:   models.Float(0.4),
		RDRatio:       models.Float(0.12),
		DividendYield: models.Float(0.05),
	}
}
