package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	"StockScreener/internal/services/trend"
	applogger "StockScreener/pkg/logger"
)

// TrendAnalysis applies the trend strategy to a list of symbols.
type TrendAnalysis struct {
	prices       domrepo.HistoricalPriceProvider
	fundamentals domrepo.FundamentalsProvider
	resolver     *SymbolResolver
	analyzer     *trend.Analyzer
	defaults     trend.Thresholds
	concurrency  int
	metrics      domrepo.Metrics
	log          *applogger.Logger
	now          func() time.Time
}

func NewTrendAnalysis(
	prices domrepo.HistoricalPriceProvider,
	fundamentals domrepo.FundamentalsProvider,
	resolver *SymbolResolver,
	analyzer *trend.Analyzer,
	defaults trend.Thresholds,
	concurrency int,
) *TrendAnalysis {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &TrendAnalysis{
		prices:       prices,
		fundamentals: fundamentals,
		resolver:     resolver,
		analyzer:     analyzer,
		defaults:     defaults,
		concurrency:  concurrency,
		log:          applogger.Nop(),
		now:          time.Now,
	}
}

// SetLogger injects a structured logger.
func (t *TrendAnalysis) SetLogger(l *applogger.Logger) {
	if l != nil {
		t.log = l
	}
}

// SetMetrics injects a metrics recorder.
func (t *TrendAnalysis) SetMetrics(m domrepo.Metrics) { t.metrics = m }

// Analyze returns one report per resolved symbol. Symbols that cannot be
// analyzed carry an error message instead of a verdict.
func (t *TrendAnalysis) Analyze(ctx context.Context, req models.TrendRequest) (map[string]models.TrendReport, error) {
	symbols, err := t.resolver.Resolve(ctx, req.Symbols)
	if err != nil {
		return nil, err
	}
	th := t.defaults.Merge(req.Thresholds)
	start := t.now()

	var mu sync.Mutex
	out := make(map[string]models.TrendReport, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			report := t.analyzeSymbol(gctx, symbol, th)
			mu.Lock()
			out[symbol] = report
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if t.metrics != nil {
		t.metrics.RecordLatency("trend_batch", t.now().Sub(start).Seconds())
	}
	t.log.Info("trend analysis finished", applogger.Int("symbols", len(symbols)), applogger.Duration("elapsed", t.now().Sub(start)))
	return out, nil
}

func (t *TrendAnalysis) analyzeSymbol(ctx context.Context, symbol string, th trend.Thresholds) models.TrendReport {
	fail := func(msg string, err error) models.TrendReport {
		t.log.Warn("trend analysis failed", applogger.String("symbol", symbol), applogger.String("reason", msg))
		if err != nil && t.metrics != nil {
			t.metrics.RecordError(models.ErrorKind(err))
		}
		return models.TrendReport{
			Stock:        models.StockRef{Symbol: symbol, Name: symbol},
			Error:        msg,
			AnalysisTime: t.now().UTC(),
		}
	}

	weekly, err := t.prices.Fetch(ctx, symbol, time.Time{}, time.Time{}, models.Weekly)
	if err != nil || len(weekly) == 0 {
		return fail(noDataMessage("weekly", err), err)
	}
	daily, err := t.prices.Fetch(ctx, symbol, time.Time{}, time.Time{}, models.Daily)
	if err != nil || len(daily) == 0 {
		return fail(noDataMessage("daily", err), err)
	}

	profile, err := t.fundamentals.Fundamentals(ctx, symbol)
	if err != nil {
		t.log.Warn("fundamentals unavailable", applogger.String("symbol", symbol), applogger.Error(err))
		profile = nil
	}

	report, decision, err := t.analyzer.Analyze(trend.Input{
		Symbol:       symbol,
		TrendSeries:  weekly,
		BiasSeries:   daily,
		Fundamentals: profile,
	}, th)
	if err != nil {
		return fail("Error analyzing stock: "+err.Error(), err)
	}
	report.AnalysisTime = t.now().UTC()
	t.log.Debug("trend verdict",
		applogger.String("symbol", symbol),
		applogger.String("action", string(decision.Action)),
		applogger.String("reason", decision.Reason),
	)
	return report
}

func noDataMessage(frame string, err error) string {
	if err == nil || errors.Is(err, models.ErrNoData) {
		return "No " + frame + " historical data available"
	}
	return "Error fetching " + frame + " data: " + err.Error()
}
