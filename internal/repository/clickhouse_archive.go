package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	pkgch "StockScreener/pkg/clickhouse"
	applogger "StockScreener/pkg/logger"
)

const (
	pricesTable   = "screener.price_bars"
	verdictsTable = "screener.filter_verdicts"
	insertChunk   = 2000
)

// ArchiveSchema is the idempotent DDL of the archive tables.
var ArchiveSchema = []string{
	`CREATE DATABASE IF NOT EXISTS screener`,
	`CREATE TABLE IF NOT EXISTS ` + pricesTable + ` (
        symbol     LowCardinality(String),
        time_frame LowCardinality(String),
        ts         DateTime,
        open       Float64,
        high       Float64,
        low        Float64,
        close      Float64,
        volume     Float64,
        updated_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY (symbol, time_frame, ts)`,
	`CREATE TABLE IF NOT EXISTS ` + verdictsTable + ` (
        symbol     LowCardinality(String),
        time_frame LowCardinality(String),
        ts         DateTime,
        passed     UInt8,
        mode       LowCardinality(String),
        criteria   String,
        created_at DateTime DEFAULT now()
    ) ENGINE = MergeTree
    ORDER BY (symbol, time_frame, ts)`,
}

// CHArchive stores price bars and verdicts in ClickHouse.
type CHArchive struct {
	db *sql.DB
	l  *applogger.Logger
}

var _ domrepo.PriceArchive = (*CHArchive)(nil)

func NewCHArchive(ch *pkgch.Client) *CHArchive {
	return &CHArchive{db: ch.DB(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (a *CHArchive) SetLogger(l *applogger.Logger) {
	if l != nil {
		a.l = l
	}
}

func (a *CHArchive) StorePrices(ctx context.Context, symbol string, tf models.TimeFrame, series models.PriceSeries) error {
	if len(series) == 0 {
		return nil
	}
	start := time.Now()
	for from := 0; from < len(series); from += insertChunk {
		to := min(from+insertChunk, len(series))
		values := make([]string, 0, to-from)
		args := make([]interface{}, 0, (to-from)*8)
		for _, p := range series[from:to] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, symbol, string(tf), p.Timestamp.UTC(), p.Open, p.High, p.Low, p.Close, p.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, time_frame, ts, open, high, low, close, volume) VALUES %s", pricesTable, strings.Join(values, ","))
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			a.l.Error("clickhouse store_prices error",
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
			return fmt.Errorf("store prices %s: %w", symbol, err)
		}
	}
	a.l.Debug("clickhouse store_prices ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(series)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (a *CHArchive) LoadPrices(ctx context.Context, symbol string, tf models.TimeFrame, from, to time.Time) (models.PriceSeries, error) {
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND time_frame = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(qtpl, pricesTable), symbol, string(tf), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("load prices %s: %w", symbol, err)
	}
	defer rows.Close()

	out := make(models.PriceSeries, 0, 512)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Timestamp, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (a *CHArchive) StoreVerdicts(ctx context.Context, verdicts []models.FilterVerdict) error {
	if len(verdicts) == 0 {
		return nil
	}
	values := make([]string, 0, len(verdicts))
	args := make([]interface{}, 0, len(verdicts)*6)
	for _, v := range verdicts {
		criteria, err := json.Marshal(v.PerCriterion)
		if err != nil {
			return fmt.Errorf("marshal criteria: %w", err)
		}
		passed := uint8(0)
		if v.Passed {
			passed = 1
		}
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, v.Symbol, string(v.TimeFrame), v.Date.UTC(), passed, string(v.Mode), string(criteria))
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, time_frame, ts, passed, mode, criteria) VALUES %s", verdictsTable, strings.Join(values, ","))
	if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
		a.l.Error("clickhouse store_verdicts error", applogger.Int("rows", len(verdicts)), applogger.Error(err))
		return fmt.Errorf("store verdicts: %w", err)
	}
	return nil
}

func (a *CHArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// NoopArchive is used when no archive database is configured.
type NoopArchive struct{}

var _ domrepo.PriceArchive = NoopArchive{}

func (NoopArchive) StorePrices(context.Context, string, models.TimeFrame, models.PriceSeries) error {
	return nil
}

func (NoopArchive) LoadPrices(context.Context, string, models.TimeFrame, time.Time, time.Time) (models.PriceSeries, error) {
	return nil, nil
}

func (NoopArchive) StoreVerdicts(context.Context, []models.FilterVerdict) error { return nil }

func (NoopArchive) Health(context.Context) error { return nil }
