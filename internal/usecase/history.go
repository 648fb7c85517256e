package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	applogger "StockScreener/pkg/logger"
	xutil "StockScreener/pkg/util"
)

// HistoryFetcher downloads price history and archives it.
type HistoryFetcher struct {
	prices      domrepo.HistoricalPriceProvider
	archive     domrepo.PriceArchive
	resolver    *SymbolResolver
	concurrency int
	log         *applogger.Logger
}

func NewHistoryFetcher(prices domrepo.HistoricalPriceProvider, archive domrepo.PriceArchive, resolver *SymbolResolver, concurrency int) *HistoryFetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &HistoryFetcher{
		prices:      prices,
		archive:     archive,
		resolver:    resolver,
		concurrency: concurrency,
		log:         applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (h *HistoryFetcher) SetLogger(l *applogger.Logger) {
	if l != nil {
		h.log = l
	}
}

// Fetch downloads every requested time frame for every resolved symbol and
// counts the symbols that returned data.
func (h *HistoryFetcher) Fetch(ctx context.Context, req models.FetchHistoryRequest) (*models.HistoryResult, error) {
	tfs, err := models.ParseTimeFrames(req.TimeFrame)
	if err != nil {
		return nil, err
	}
	start, end, err := parseRange(req.TimeRange)
	if err != nil {
		return nil, err
	}
	symbols, err := h.resolver.Resolve(ctx, req.Symbols)
	if err != nil {
		return nil, err
	}

	res := &models.HistoryResult{
		Results: make(map[models.TimeFrame]models.HistoryFrameResult, len(tfs)),
		Failed:  make(map[string]string),
	}
	var mu sync.Mutex
	for _, tf := range tfs {
		frame := models.HistoryFrameResult{SymbolsRequested: len(symbols)}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(h.concurrency)
		for _, symbol := range symbols {
			g.Go(func() error {
				n, err := h.fetchOne(gctx, symbol, start, end, tf)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					res.Failed[symbol+"/"+string(tf)] = err.Error()
					return nil
				}
				if n > 0 {
					frame.SymbolsWithData++
					frame.Points += n
				}
				return nil
			})
		}
		_ = g.Wait()
		res.Results[tf] = frame

		h.log.Info("history fetched",
			applogger.String("tf", string(tf)),
			applogger.Int("requested", frame.SymbolsRequested),
			applogger.Int("with_data", frame.SymbolsWithData),
		)
	}
	if len(res.Failed) == 0 {
		res.Failed = nil
	}
	return res, nil
}

func (h *HistoryFetcher) fetchOne(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame) (int, error) {
	series, err := h.prices.Fetch(ctx, symbol, start, end, tf)
	if errors.Is(err, models.ErrNoData) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if h.archive != nil && len(series) > 0 {
		if err := h.archive.StorePrices(ctx, symbol, tf, series); err != nil {
			h.log.Warn("history not archived", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	return len(series), nil
}

func parseRange(tr *models.TimeRange) (time.Time, time.Time, error) {
	var start, end time.Time
	if tr == nil {
		return start, end, nil
	}
	var ok bool
	if tr.Start != "" {
		if start, ok = xutil.ParseTime(tr.Start); !ok {
			return start, end, fmt.Errorf("%w: invalid start %q", models.ErrInvalidRequest, tr.Start)
		}
	}
	if tr.End != "" {
		if end, ok = xutil.ParseTime(tr.End); !ok {
			return start, end, fmt.Errorf("%w: invalid end %q", models.ErrInvalidRequest, tr.End)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("%w: end %s before start %s", models.ErrInvalidRequest, tr.End, tr.Start)
	}
	return start, end, nil
}
