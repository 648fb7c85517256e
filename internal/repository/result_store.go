package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockScreener/internal/domain/models"
	"StockScreener/internal/domain/repository"
	"StockScreener/pkg/cache"
	applogger "StockScreener/pkg/logger"
)

const (
	filteredPrefix = "filtered_stock_"
	symbolsPrefix  = "symbols_"
	inflightPrefix = "inflight:"
)

// CacheResultStore keeps filtered stocks, job records and symbol lists in a
// key-value cache. Every record expires after the retention period.
type CacheResultStore struct {
	cache      cache.Service
	retention  time.Duration
	symbolsTTL time.Duration
	lockTTL    time.Duration
	lockWait   time.Duration
	lockRetry  time.Duration
	now        func() time.Time
	log        *applogger.Logger
}

var (
	_ repository.ResultStore = (*CacheResultStore)(nil)
	_ repository.JobStore    = (*CacheResultStore)(nil)
)

// StoreOption configures a CacheResultStore.
type StoreOption func(*CacheResultStore)

// WithRetentionDays sets the TTL of stored records.
func WithRetentionDays(days int) StoreOption {
	return func(s *CacheResultStore) {
		if days > 0 {
			s.retention = time.Duration(days) * 24 * time.Hour
		}
	}
}

// WithSymbolsTTL sets how long exchange symbol lists are cached.
func WithSymbolsTTL(d time.Duration) StoreOption {
	return func(s *CacheResultStore) {
		if d > 0 {
			s.symbolsTTL = d
		}
	}
}

// WithMergeLock tunes the per-symbol lock used by MergeFiltered.
func WithMergeLock(ttl, wait, retry time.Duration) StoreOption {
	return func(s *CacheResultStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
		if wait > 0 {
			s.lockWait = wait
		}
		if retry > 0 {
			s.lockRetry = retry
		}
	}
}

func WithStoreLogger(l *applogger.Logger) StoreOption {
	return func(s *CacheResultStore) {
		if l != nil {
			s.log = l
		}
	}
}

func withStoreClock(now func() time.Time) StoreOption {
	return func(s *CacheResultStore) { s.now = now }
}

// NewCacheResultStore wraps a cache service.
func NewCacheResultStore(c cache.Service, opts ...StoreOption) *CacheResultStore {
	s := &CacheResultStore{
		cache:      c,
		retention:  24 * time.Hour,
		symbolsTTL: 24 * time.Hour,
		lockTTL:    10 * time.Second,
		lockWait:   5 * time.Second,
		lockRetry:  25 * time.Millisecond,
		now:        time.Now,
		log:        applogger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MergeFiltered folds the passing frames of a symbol into its stored
// document. Frames not passed in are kept; the financial section and
// filterTime are replaced.
func (s *CacheResultStore) MergeFiltered(ctx context.Context, symbol string, financial *models.FinancialMetrics, frames map[models.TimeFrame]models.FrameIndicators) (*models.FilteredStockRecord, error) {
	key := models.FilteredKey(symbol)
	var merged *models.FilteredStockRecord

	err := cache.WithLock(ctx, s.cache, key, s.lockTTL, s.lockWait, s.lockRetry, func() error {
		rec, err := s.GetFiltered(ctx, symbol)
		if err != nil && !errors.Is(err, models.ErrNoData) {
			return err
		}
		if rec == nil {
			rec = &models.FilteredStockRecord{}
		}
		if rec.Frames == nil {
			rec.Frames = make(map[models.TimeFrame]models.FrameIndicators, len(frames))
		}
		rec.Meta = models.FilteredMeta{Stock: symbol, FilterTime: s.now().UTC()}
		if financial != nil {
			rec.Financial = financial
		}
		for tf, fi := range frames {
			rec.Frames[tf] = fi
		}
		if err := s.cache.Set(ctx, key, rec, s.retention); err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
		merged = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("merge filtered %s: %w", symbol, err)
	}
	return merged, nil
}

// GetFiltered returns the stored document of symbol, or ErrNoData.
func (s *CacheResultStore) GetFiltered(ctx context.Context, symbol string) (*models.FilteredStockRecord, error) {
	var rec models.FilteredStockRecord
	if err := s.cache.Get(ctx, models.FilteredKey(symbol), &rec); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("filtered %s: %w", symbol, models.ErrNoData)
		}
		return nil, fmt.Errorf("get filtered %s: %w", symbol, err)
	}
	return &rec, nil
}

// ListFiltered returns documents holding at least one of tfs, filtered at or
// after since. A zero since disables the date filter.
func (s *CacheResultStore) ListFiltered(ctx context.Context, tfs []models.TimeFrame, since time.Time) (map[string]*models.FilteredStockRecord, error) {
	keys, err := s.cache.Keys(ctx, cache.BuildPattern(filteredPrefix))
	if err != nil {
		return nil, fmt.Errorf("scan filtered: %w", err)
	}
	docs, err := cache.MGetTyped[models.FilteredStockRecord](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("load filtered: %w", err)
	}

	out := make(map[string]*models.FilteredStockRecord, len(docs))
	for key, rec := range docs {
		if !rec.HasAny(tfs) {
			continue
		}
		if !since.IsZero() && rec.Meta.FilterTime.Before(since) {
			continue
		}
		symbol := rec.Meta.Stock
		if symbol == "" {
			symbol = strings.TrimPrefix(key, filteredPrefix)
		}
		r := rec
		out[symbol] = &r
	}
	s.log.Debug("filtered stocks listed", applogger.Int("scanned", len(keys)), applogger.Int("matched", len(out)))
	return out, nil
}

func (s *CacheResultStore) SaveSymbols(ctx context.Context, exchange string, symbols []string) error {
	if err := s.cache.Set(ctx, symbolsPrefix+exchange, symbols, s.symbolsTTL); err != nil {
		return fmt.Errorf("store symbols %s: %w", exchange, err)
	}
	return nil
}

// GetSymbols returns a cached symbol list, or ErrNoData.
func (s *CacheResultStore) GetSymbols(ctx context.Context, exchange string) ([]string, error) {
	var symbols []string
	if err := s.cache.Get(ctx, symbolsPrefix+exchange, &symbols); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("symbols %s: %w", exchange, models.ErrNoData)
		}
		return nil, fmt.Errorf("get symbols %s: %w", exchange, err)
	}
	return symbols, nil
}

func (s *CacheResultStore) SaveJob(ctx context.Context, job *models.Job, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.retention
	}
	if err := s.cache.Set(ctx, models.JobKey(job.Type, job.ID), job, ttl); err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	return nil
}

func (s *CacheResultStore) GetJob(ctx context.Context, jobType, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.cache.Get(ctx, models.JobKey(jobType, jobID), &job); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, &models.JobNotFoundError{JobType: jobType, JobID: jobID}
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &job, nil
}

// AcquireJob claims the in-flight marker of a job. It returns false while
// another run of the same job holds it.
func (s *CacheResultStore) AcquireJob(ctx context.Context, jobType, jobID string, ttl time.Duration) (bool, error) {
	return s.cache.TryLock(ctx, inflightPrefix+models.JobKey(jobType, jobID), ttl)
}

func (s *CacheResultStore) ReleaseJob(ctx context.Context, jobType, jobID string) error {
	return s.cache.Unlock(ctx, inflightPrefix+models.JobKey(jobType, jobID))
}
