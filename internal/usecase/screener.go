package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	"StockScreener/internal/services/criteria"
	"StockScreener/internal/services/indicators"
	applogger "StockScreener/pkg/logger"
)

// extendedLookbackDays is used once when the configured lookback yields too
// few bars for the indicators.
const extendedLookbackDays = 500

// FrameConfig holds the screening parameters of one time frame.
type FrameConfig struct {
	Indicators   indicators.Config
	Bounds       criteria.Bounds
	RSIMode      criteria.RSIMode
	LookbackDays int
}

// ScreenerConfig configures a filtering run.
type ScreenerConfig struct {
	Frames                   map[models.TimeFrame]FrameConfig
	Mode                     models.CombinationMode
	EnableFinancialFiltering bool
	Financial                criteria.FinancialBounds
	Concurrency              int
}

func (c ScreenerConfig) frame(tf models.TimeFrame) FrameConfig {
	fc, ok := c.Frames[tf]
	if !ok {
		fc = FrameConfig{Indicators: indicators.DefaultConfig(tf), Bounds: criteria.Bounds{Bias: 3, RSIOversold: 30, RSIOverbought: 70}}
	}
	if len(fc.Indicators.EMAPeriods) == 0 {
		fc.Indicators = indicators.DefaultConfig(tf)
	}
	if fc.LookbackDays <= 0 {
		fc.LookbackDays = 60
	}
	if fc.RSIMode == "" {
		fc.RSIMode = criteria.RSIRange
	}
	return fc
}

// Screener fetches history, computes indicators and stores the symbols that
// pass the criteria.
type Screener struct {
	prices       domrepo.HistoricalPriceProvider
	fundamentals domrepo.FundamentalsProvider
	resolver     *SymbolResolver
	store        domrepo.ResultStore
	archive      domrepo.PriceArchive
	publisher    domrepo.EventPublisher
	metrics      domrepo.Metrics
	engine       *indicators.Engine
	cfg          ScreenerConfig
	log          *applogger.Logger
	verdicts     *applogger.Logger
	now          func() time.Time
}

// ScreenerOption configures optional collaborators.
type ScreenerOption func(*Screener)

func WithArchive(a domrepo.PriceArchive) ScreenerOption {
	return func(s *Screener) { s.archive = a }
}

func WithPublisher(p domrepo.EventPublisher) ScreenerOption {
	return func(s *Screener) { s.publisher = p }
}

func WithMetrics(m domrepo.Metrics) ScreenerOption {
	return func(s *Screener) { s.metrics = m }
}

func WithLogger(l *applogger.Logger) ScreenerOption {
	return func(s *Screener) {
		if l != nil {
			s.log = l
			s.verdicts = l.Sampled(20)
		}
	}
}

func withNow(now func() time.Time) ScreenerOption {
	return func(s *Screener) { s.now = now }
}

func NewScreener(
	prices domrepo.HistoricalPriceProvider,
	fundamentals domrepo.FundamentalsProvider,
	resolver *SymbolResolver,
	store domrepo.ResultStore,
	engine *indicators.Engine,
	cfg ScreenerConfig,
	opts ...ScreenerOption,
) *Screener {
	if engine == nil {
		engine = indicators.NewEngine()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	s := &Screener{
		prices:       prices,
		fundamentals: fundamentals,
		resolver:     resolver,
		store:        store,
		engine:       engine,
		cfg:          cfg,
		log:          applogger.Nop(),
		verdicts:     applogger.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// financialOverrides keeps the request financial filters that name a known
// gate, keyed by threshold name. Both "roe_threshold" and "roe" are accepted.
func financialOverrides(filters map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(filters))
	for k, v := range filters {
		name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(k)), "_threshold")
		switch name {
		case models.ThresholdGrossMargin, models.ThresholdROE, models.ThresholdRDRatio:
			out[name] = v
		}
	}
	return out
}

// Filter screens every requested symbol on every requested time frame.
// Per-symbol failures are reported in the result and never abort the batch.
func (s *Screener) Filter(ctx context.Context, req models.FilterRequest) (*models.BatchResult, error) {
	tfs, err := models.ParseTimeFrames(req.TimeFrame)
	if err != nil {
		return nil, err
	}
	symbols, err := s.resolver.Resolve(ctx, req.Symbols)
	if err != nil {
		return nil, err
	}

	overrides := financialOverrides(req.FinancialFilters)
	run := screenRun{
		tfs:        tfs,
		financial:  s.cfg.EnableFinancialFiltering || len(overrides) > 0,
		thresholds: make(map[models.TimeFrame]models.ThresholdSet, len(tfs)),
	}
	for _, tf := range tfs {
		run.thresholds[tf] = criteria.Thresholds(s.cfg.frame(tf).Bounds, s.cfg.Financial).Merge(overrides)
	}
	run.gates = criteria.FinancialThresholds(run.thresholds[tfs[0]])

	batch := &models.BatchResult{Results: make([]models.SymbolResult, len(symbols)), StartedAt: s.now().UTC()}
	s.log.Info("filtering started",
		applogger.Int("symbols", len(symbols)),
		applogger.Strings("time_frames", frameNames(tfs)),
		applogger.Bool("financial", run.financial),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			batch.Results[i] = s.screenSymbol(gctx, symbol, run)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range batch.Results {
		switch {
		case r.Passed:
			batch.Passed++
		case r.Error != "":
			batch.Failed++
		}
	}
	batch.FinishedAt = s.now().UTC()
	if s.metrics != nil {
		s.metrics.RecordLatency("filter_batch", batch.FinishedAt.Sub(batch.StartedAt).Seconds())
	}
	s.log.Info("filtering finished",
		applogger.Int("symbols", len(symbols)),
		applogger.Int("passed", batch.Passed),
		applogger.Int("failed", batch.Failed),
		applogger.Duration("elapsed", batch.FinishedAt.Sub(batch.StartedAt)),
	)
	return batch, nil
}

type screenRun struct {
	tfs        []models.TimeFrame
	financial  bool
	gates      models.FinancialThresholds
	thresholds map[models.TimeFrame]models.ThresholdSet
}

func (s *Screener) screenSymbol(ctx context.Context, symbol string, run screenRun) models.SymbolResult {
	res := models.SymbolResult{
		Symbol:     symbol,
		TimeFrames: make(map[models.TimeFrame]models.FilterVerdict, len(run.tfs)),
		Errors:     make(map[models.TimeFrame]string),
	}
	log := s.log.With(applogger.String("symbol", symbol))

	var (
		profile *models.FundamentalProfile
		loaded  bool
	)
	loadProfile := func() {
		if loaded {
			return
		}
		loaded = true
		p, err := s.fundamentals.Fundamentals(ctx, symbol)
		if err != nil {
			log.Warn("fundamentals unavailable", applogger.Error(err))
			s.recordError(err)
			return
		}
		profile = p
	}
	if run.financial {
		loadProfile()
	}

	frames := make(map[models.TimeFrame]models.FrameIndicators)
	var passed []models.FilterVerdict
	var firstErr error
	for _, tf := range run.tfs {
		fc := s.cfg.frame(tf)
		snap, err := s.snapshot(ctx, symbol, tf, fc)
		if err != nil {
			log.Debug("frame skipped", applogger.String("tf", string(tf)), applogger.Error(err))
			res.Errors[tf] = err.Error()
			s.recordError(err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		v := criteria.Evaluate(criteria.Input{
			Symbol:       symbol,
			TimeFrame:    tf,
			Snapshot:     snap,
			Fundamentals: profile,
		}, run.thresholds[tf], criteria.Options{
			Mode:                     s.cfg.Mode,
			RSIMode:                  fc.RSIMode,
			BiasPeriod:               fc.Indicators.BiasPeriod(),
			RSIPeriod:                fc.Indicators.RSIPeriod,
			EnableFinancialFiltering: run.financial,
		})
		res.TimeFrames[tf] = v
		s.verdicts.Debug("verdict",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Bool("passed", v.Passed),
		)
		if s.metrics != nil {
			s.metrics.RecordScreened(tf, v.Passed)
		}
		if v.Passed {
			frames[tf] = frameIndicators(snap, fc.Indicators)
			passed = append(passed, v)
		}
	}

	if len(frames) > 0 {
		loadProfile()
		res.Passed = true
		res.Financial = models.NewFinancialMetrics(profile, run.gates)
		s.persist(ctx, symbol, res.Financial, frames, passed, log)
	}

	if len(res.TimeFrames) == 0 && firstErr != nil {
		res.Error = firstErr.Error()
		res.ErrorKind = models.ErrorKind(firstErr)
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}

// snapshot fetches the frame's history and returns its latest indicator values.
func (s *Screener) snapshot(ctx context.Context, symbol string, tf models.TimeFrame, fc FrameConfig) (models.IndicatorSnapshot, error) {
	end := s.now()
	mult := tf.LookbackMultiplier()
	series, err := s.prices.Fetch(ctx, symbol, end.AddDate(0, 0, -fc.LookbackDays*mult), end, tf)
	if err != nil && !errors.Is(err, models.ErrNoData) {
		return models.IndicatorSnapshot{}, err
	}
	need := fc.Indicators.MinPoints
	if need <= 0 {
		need = indicators.MinPoints
	}
	if len(series) < need && fc.LookbackDays < extendedLookbackDays {
		series, err = s.prices.Fetch(ctx, symbol, end.AddDate(0, 0, -extendedLookbackDays*mult), end, tf)
		if err != nil {
			return models.IndicatorSnapshot{}, err
		}
	}
	if len(series) == 0 {
		return models.IndicatorSnapshot{}, fmt.Errorf("%s %s: %w", symbol, tf, models.ErrNoData)
	}

	snaps, err := s.engine.Compute(series, tf, fc.Indicators)
	if err != nil {
		return models.IndicatorSnapshot{}, err
	}
	last, ok := indicators.Latest(snaps)
	if !ok {
		return models.IndicatorSnapshot{}, fmt.Errorf("%s %s: %w", symbol, tf, models.ErrNoData)
	}
	return last, nil
}

func (s *Screener) persist(ctx context.Context, symbol string, fm *models.FinancialMetrics, frames map[models.TimeFrame]models.FrameIndicators, verdicts []models.FilterVerdict, log *applogger.Logger) {
	if _, err := s.store.MergeFiltered(ctx, symbol, fm, frames); err != nil {
		log.Error("filtered result not stored", applogger.Error(err))
		s.recordError(err)
	}
	if s.archive != nil {
		if err := s.archive.StoreVerdicts(ctx, verdicts); err != nil {
			log.Warn("verdicts not archived", applogger.Error(err))
		}
	}
	if s.publisher == nil {
		return
	}
	for _, v := range verdicts {
		ev := &models.VerdictEvent{
			EventID:   uuid.NewString(),
			Symbol:    v.Symbol,
			TimeFrame: v.TimeFrame,
			Passed:    v.Passed,
			Criteria:  v.PerCriterion,
			Timestamp: s.now().UTC(),
		}
		if err := s.publisher.PublishVerdict(ctx, ev); err != nil {
			log.Warn("verdict event not published", applogger.String("tf", string(v.TimeFrame)), applogger.Error(err))
		}
	}
}

func (s *Screener) recordError(err error) {
	if s.metrics != nil {
		s.metrics.RecordError(models.ErrorKind(err))
	}
}

// frameIndicators extracts the stored values of a passing frame.
func frameIndicators(snap models.IndicatorSnapshot, cfg indicators.Config) models.FrameIndicators {
	return models.FrameIndicators{
		Date: snap.Timestamp,
		BIAS: models.BiasValue{Bias: snap.Value(models.BIASName(cfg.BiasPeriod(), models.SourceClose))},
		RSI:  models.RSIValue{Value: snap.Value(models.RSIName(cfg.RSIPeriod)), Period: cfg.RSIPeriod},
		MACD: models.MACDValue{
			Value:        snap.Value(models.IndicatorMACD),
			Signal:       snap.Value(models.IndicatorMACDSignal),
			Histogram:    snap.Value(models.IndicatorMACDHist),
			FastPeriod:   cfg.MACDFast,
			SlowPeriod:   cfg.MACDSlow,
			SignalPeriod: cfg.MACDSignal,
		},
	}
}

// Retrieve returns stored filtered stocks holding one of the requested time
// frames and filtered within the last recentDay days; 0 means today.
func (s *Screener) Retrieve(ctx context.Context, req models.RetrieveFilteredRequest) (map[string]*models.FilteredStockRecord, error) {
	tfs, err := models.ParseTimeFrames(req.TimeFrame)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if req.RecentDay > 0 {
		since = now.AddDate(0, 0, -req.RecentDay)
	}
	return s.store.ListFiltered(ctx, tfs, since)
}

func frameNames(tfs []models.TimeFrame) []string {
	out := make([]string, len(tfs))
	for i, tf := range tfs {
		out[i] = string(tf)
	}
	return out
}
