package marketdata

import (
	"context"
	"time"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	icache "StockScreener/internal/service/cache"
	applogger "StockScreener/pkg/logger"
)

// ArchivedPriceProvider serves history from the archive when it covers the
// requested range and is fresh, and otherwise fetches upstream and writes
// the result back.
type ArchivedPriceProvider struct {
	upstream  domrepo.HistoricalPriceProvider
	archive   domrepo.PriceArchive
	minPoints int
	log       *applogger.Logger
	now       func() time.Time
}

var _ domrepo.HistoricalPriceProvider = (*ArchivedPriceProvider)(nil)

func NewArchivedPriceProvider(upstream domrepo.HistoricalPriceProvider, archive domrepo.PriceArchive, minPoints int) *ArchivedPriceProvider {
	return &ArchivedPriceProvider{
		upstream:  upstream,
		archive:   archive,
		minPoints: minPoints,
		log:       applogger.Nop(),
		now:       time.Now,
	}
}

// SetLogger injects a structured logger.
func (p *ArchivedPriceProvider) SetLogger(l *applogger.Logger) {
	if l != nil {
		p.log = l
	}
}

// staleAfter is how old the newest archived bar may be before refetching.
func staleAfter(tf models.TimeFrame) time.Duration {
	switch tf {
	case models.Weekly:
		return 8 * 24 * time.Hour
	case models.Monthly:
		return 32 * 24 * time.Hour
	default:
		return 4 * 24 * time.Hour
	}
}

func (p *ArchivedPriceProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame) (models.PriceSeries, error) {
	if start.IsZero() || end.IsZero() {
		ds, de := DefaultRange(tf, p.now())
		if start.IsZero() {
			start = ds
		}
		if end.IsZero() {
			end = de
		}
	}

	if p.archive != nil {
		cached, err := p.archive.LoadPrices(ctx, symbol, tf, start, end)
		switch {
		case err != nil:
			p.log.Warn("archive load failed", applogger.String("symbol", symbol), applogger.Error(err))
		case p.covers(cached, tf, end):
			return cached, nil
		}
	}

	series, err := p.upstream.Fetch(ctx, symbol, start, end, tf)
	if err != nil {
		return nil, err
	}
	if p.archive != nil {
		if err := p.archive.StorePrices(ctx, symbol, tf, series); err != nil {
			p.log.Warn("archive store failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	return series, nil
}

func (p *ArchivedPriceProvider) covers(s models.PriceSeries, tf models.TimeFrame, end time.Time) bool {
	if len(s) == 0 || len(s) < p.minPoints {
		return false
	}
	last, _ := s.Last()
	return end.Sub(last.Timestamp) <= staleAfter(tf)
}

// CachedFundamentals keeps fundamentals in memory for ttl.
type CachedFundamentals struct {
	next  domrepo.FundamentalsProvider
	cache *icache.TTLCache[*models.FundamentalProfile]
	ttl   time.Duration
}

var _ domrepo.FundamentalsProvider = (*CachedFundamentals)(nil)

func NewCachedFundamentals(next domrepo.FundamentalsProvider, ttl time.Duration) *CachedFundamentals {
	return &CachedFundamentals{next: next, cache: icache.NewTTLCache[*models.FundamentalProfile](), ttl: ttl}
}

func (c *CachedFundamentals) Fundamentals(ctx context.Context, symbol string) (*models.FundamentalProfile, error) {
	if p, ok := c.cache.Get(symbol); ok {
		return p, nil
	}
	p, err := c.next.Fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.cache.Set(symbol, p, c.ttl)
	return p, nil
}
