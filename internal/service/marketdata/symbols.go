package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	applogger "StockScreener/pkg/logger"
)

// fallbackSymbols are used when neither a file nor the provider yields a list.
var fallbackSymbols = map[string][]string{
	"SP500":  {"AAPL", "MSFT", "AMZN", "GOOGL", "META", "TSLA", "NVDA", "BRK-B", "UNH", "JNJ"},
	"NASDAQ": {"AAPL", "MSFT", "AMZN", "GOOGL", "META", "TSLA", "NVDA", "PYPL", "INTC", "CSCO"},
	"NYSE":   {"JPM", "BAC", "WFC", "C", "GS", "MS", "BLK", "AXP", "USB", "PNC"},
	"AMEX":   {"SPY", "GLD", "XLF", "EEM", "XLE", "VXX", "EFA", "XLV", "IWM", "QQQ"},
	"ACN":    {"300281.SZ", "600061.SH", "836239.BJ", "302132.SZ", "830809.BJ"},
}

// Exchanges lists the exchanges "ALL" expands to.
func Exchanges() []string { return []string{"NASDAQ", "NYSE", "AMEX", "ACN"} }

// FileSymbolLister reads {dir}/{EXCHANGE}.csv. The "Symbol" or "symbol"
// column is used when present, otherwise the first column; the first row is
// always a header.
type FileSymbolLister struct {
	dir string
}

var _ domrepo.SymbolLister = (*FileSymbolLister)(nil)

func NewFileSymbolLister(dir string) *FileSymbolLister {
	return &FileSymbolLister{dir: dir}
}

func (l *FileSymbolLister) Symbols(_ context.Context, exchange string) ([]string, error) {
	path := filepath.Join(l.dir, strings.ToUpper(exchange)+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, models.ErrNoData)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readSymbolsCSV(f)
}

func readSymbolsCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, models.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := 0
	for i, h := range header {
		if name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")); name == "Symbol" || name == "symbol" {
			col = i
			break
		}
	}

	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		if s := strings.TrimSpace(rec[col]); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, models.ErrNoData
	}
	return out, nil
}

// StaticSymbolLister serves the built-in fallback lists.
type StaticSymbolLister struct{}

var _ domrepo.SymbolLister = StaticSymbolLister{}

func (StaticSymbolLister) Symbols(_ context.Context, exchange string) ([]string, error) {
	list, ok := fallbackSymbols[strings.ToUpper(exchange)]
	if !ok {
		return nil, fmt.Errorf("no fallback symbols for %s: %w", exchange, models.ErrNoData)
	}
	return append([]string(nil), list...), nil
}

// ChainSymbolLister asks each lister in turn and returns the first non-empty list.
type ChainSymbolLister struct {
	listers []domrepo.SymbolLister
	log     *applogger.Logger
}

var _ domrepo.SymbolLister = (*ChainSymbolLister)(nil)

func NewChainSymbolLister(listers ...domrepo.SymbolLister) *ChainSymbolLister {
	return &ChainSymbolLister{listers: listers, log: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (c *ChainSymbolLister) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.log = l
	}
}

func (c *ChainSymbolLister) Symbols(ctx context.Context, exchange string) ([]string, error) {
	var errs []error
	for i, l := range c.listers {
		list, err := l.Symbols(ctx, exchange)
		if err == nil && len(list) > 0 {
			return list, nil
		}
		if err != nil {
			c.log.Debug("symbol lister failed",
				applogger.String("exchange", exchange),
				applogger.Int("lister", i),
				applogger.Error(err),
			)
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("symbols %s: %w", exchange, models.ErrNoData)
	}
	return nil, fmt.Errorf("symbols %s: %w", exchange, errors.Join(errs...))
}
