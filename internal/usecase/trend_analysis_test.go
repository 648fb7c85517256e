package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"StockScreener/internal/domain/models"
	"StockScreener/internal/services/indicators"
	"StockScreener/internal/services/trend"
)

func TestTrendAnalysisReports(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAPL"] = bars(ramp(260, 50, 0.5))
	prices.series["IBM"] = bars(ramp(120, 200, -0.5))
	prices.errs["OOPS"] = fmt.Errorf("OOPS: %w", models.ErrUpstreamFetch)

	fund := fakeFundamentals{"AAPL": strongProfile("AAPL"), "IBM": strongProfile("IBM")}
	analyzer := trend.NewAnalyzer(nil, indicators.DefaultConfig(models.Daily))
	ta := NewTrendAnalysis(prices, fund, NewSymbolResolver(newStore(t), &fakeLister{}), analyzer, trend.DefaultThresholds(5), 2)

	out, err := ta.Analyze(context.Background(), models.TrendRequest{Symbols: []string{"AAPL", "IBM", "NONE", "OOPS"}})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("reports = %d", len(out))
	}

	cases := []struct {
		symbol  string
		verdict models.TrendAction
		errText string
	}{
		{"AAPL", models.ActionBuy, ""},
		{"IBM", models.ActionReject, ""},
		{"NONE", "", "No weekly historical data available"},
		{"OOPS", "", "Error fetching weekly data"},
	}
	for _, tc := range cases {
		t.Run(tc.symbol, func(t *testing.T) {
			r := out[tc.symbol]
			if r.Verdict != tc.verdict {
				t.Fatalf("verdict = %q (%s), want %q", r.Verdict, r.Reason, tc.verdict)
			}
			if tc.errText != "" && !strings.HasPrefix(r.Error, tc.errText) {
				t.Fatalf("error = %q, want prefix %q", r.Error, tc.errText)
			}
			if r.AnalysisTime.IsZero() {
				t.Fatalf("analysis time not set")
			}
		})
	}
	if out["AAPL"].Stock.Name != "AAPL Inc." {
		t.Fatalf("stock name = %q", out["AAPL"].Stock.Name)
	}
}

func TestTrendAnalysisAppliesCustomThresholds(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAPL"] = bars(ramp(260, 50, 0.5))
	analyzer := trend.NewAnalyzer(nil, indicators.DefaultConfig(models.Daily))
	ta := NewTrendAnalysis(prices, fakeFundamentals{"AAPL": strongProfile("AAPL")}, NewSymbolResolver(newStore(t), &fakeLister{}), analyzer, trend.DefaultThresholds(5), 1)

	out, err := ta.Analyze(context.Background(), models.TrendRequest{
		Symbols:    []string{"AAPL"},
		Thresholds: map[string]float64{"pe_ratio_min": 50},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if r := out["AAPL"]; r.Verdict != models.ActionReject {
		t.Fatalf("verdict = %q (%s), want Reject on the raised PE bound", r.Verdict, r.Reason)
	}
}
