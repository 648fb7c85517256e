package repository

import (
	"context"
	"time"

	"StockScreener/internal/domain/models"
)

// HistoricalPriceProvider returns an ascending price series. An empty series
// means no data; per-symbol failures are returned as errors.
type HistoricalPriceProvider interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame) (models.PriceSeries, error)
}

// FundamentalsProvider returns a profile whose fields are independently nullable.
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, symbol string) (*models.FundamentalProfile, error)
}

// SymbolLister lists the constituents of an exchange or index.
type SymbolLister interface {
	Symbols(ctx context.Context, exchange string) ([]string, error)
}

// ResultStore persists filtered stocks, job records and symbol lists.
type ResultStore interface {
	MergeFiltered(ctx context.Context, symbol string, financial *models.FinancialMetrics, frames map[models.TimeFrame]models.FrameIndicators) (*models.FilteredStockRecord, error)
	GetFiltered(ctx context.Context, symbol string) (*models.FilteredStockRecord, error)
	ListFiltered(ctx context.Context, tfs []models.TimeFrame, since time.Time) (map[string]*models.FilteredStockRecord, error)
	SaveSymbols(ctx context.Context, exchange string, symbols []string) error
	GetSymbols(ctx context.Context, exchange string) ([]string, error)
}

// JobStore persists async job records.
type JobStore interface {
	// SaveJob stores the record for ttl; ttl <= 0 uses the store default.
	SaveJob(ctx context.Context, job *models.Job, ttl time.Duration) error
	GetJob(ctx context.Context, jobType, jobID string) (*models.Job, error)
	AcquireJob(ctx context.Context, jobType, jobID string, ttl time.Duration) (bool, error)
	ReleaseJob(ctx context.Context, jobType, jobID string) error
}

// PriceArchive stores fetched price history and passing verdicts for later analysis.
type PriceArchive interface {
	StorePrices(ctx context.Context, symbol string, tf models.TimeFrame, series models.PriceSeries) error
	LoadPrices(ctx context.Context, symbol string, tf models.TimeFrame, from, to time.Time) (models.PriceSeries, error)
	StoreVerdicts(ctx context.Context, verdicts []models.FilterVerdict) error
	Health(ctx context.Context) error
}

// EventPublisher emits screening events to downstream consumers.
type EventPublisher interface {
	PublishVerdict(ctx context.Context, ev *models.VerdictEvent) error
	PublishJob(ctx context.Context, ev *models.JobEvent) error
	Close() error
}

// Metrics records screening telemetry.
type Metrics interface {
	RecordScreened(tf models.TimeFrame, passed bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordJob(jobType string, status models.JobStatus)
}
