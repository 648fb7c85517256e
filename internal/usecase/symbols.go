package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	"StockScreener/internal/service/marketdata"
	applogger "StockScreener/pkg/logger"
)

// SymbolResolver expands exchange and index names into symbols. Lists are
// served from the store first and fetched from the lister on a miss.
type SymbolResolver struct {
	store  domrepo.ResultStore
	lister domrepo.SymbolLister
	log    *applogger.Logger
}

func NewSymbolResolver(store domrepo.ResultStore, lister domrepo.SymbolLister) *SymbolResolver {
	return &SymbolResolver{store: store, lister: lister, log: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (r *SymbolResolver) SetLogger(l *applogger.Logger) {
	if l != nil {
		r.log = l
	}
}

func isListName(s string) bool {
	switch s {
	case "ALL", "SP500", "NASDAQ", "NYSE", "AMEX", "ACN":
		return true
	}
	return false
}

// Resolve expands ALL, SP500, NASDAQ, NYSE, AMEX and ACN, keeps other
// entries as symbols, and removes duplicates preserving first occurrence.
// Index tickers containing '^' are dropped.
func (r *SymbolResolver) Resolve(ctx context.Context, raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	add := func(list []string) {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if strings.Contains(s, "^") {
				r.log.Debug("index symbol skipped", applogger.String("symbol", s))
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	for _, item := range raw {
		name := strings.ToUpper(strings.TrimSpace(item))
		if !isListName(name) {
			add([]string{item})
			continue
		}
		list, err := r.list(ctx, name)
		if err != nil {
			return nil, err
		}
		add(list)
	}
	return out, nil
}

func (r *SymbolResolver) list(ctx context.Context, name string) ([]string, error) {
	key := strings.ToLower(name)
	if cached, err := r.store.GetSymbols(ctx, key); err == nil && len(cached) > 0 {
		return cached, nil
	} else if err != nil && !errors.Is(err, models.ErrNoData) {
		r.log.Warn("symbol cache read failed", applogger.String("list", key), applogger.Error(err))
	}

	var list []string
	if name == "ALL" {
		for _, ex := range marketdata.Exchanges() {
			part, err := r.list(ctx, ex)
			if err != nil {
				r.log.Warn("exchange skipped", applogger.String("exchange", ex), applogger.Error(err))
				continue
			}
			list = append(list, part...)
		}
	} else {
		fetched, err := r.lister.Symbols(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
		list = fetched
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("resolve %s: %w", name, models.ErrNoData)
	}

	if err := r.store.SaveSymbols(ctx, key, list); err != nil {
		r.log.Warn("symbol cache write failed", applogger.String("list", key), applogger.Error(err))
	}
	r.log.Info("symbol list loaded", applogger.String("list", key), applogger.Int("count", len(list)))
	return list, nil
}
