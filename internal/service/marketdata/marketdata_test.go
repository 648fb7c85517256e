package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"StockScreener/internal/domain/models"
	"StockScreener/internal/service/ratelimit"
	"StockScreener/internal/service/retry"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNormalizeHistoryShapes(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		want  int
		first models.PricePoint
	}{
		{
			name: "fmp historical descending with duplicate",
			body: `{"symbol":"AAPL","historical":[
				{"date":"2024-01-03","open":2,"high":3,"low":1,"close":2.5,"volume":100,"adjClose":2.4},
				{"date":"2024-01-02","open":1,"high":2,"low":0.5,"close":1.5,"volume":50},
				{"date":"2024-01-02","open":1,"high":2,"low":0.5,"close":1.6,"volume":60}]}`,
			want:  2,
			first: models.PricePoint{Timestamp: day("2024-01-02"), Open: 1, High: 2, Low: 0.5, Close: 1.6, Volume: 60},
		},
		{
			name: "time series object",
			body: `{"Meta Data":{},"Time Series (Daily)":{
				"2024-01-02":{"1. open":"10","2. high":"12","3. low":"9","4. close":"11","5. volume":"1000"},
				"2024-01-03":{"1. open":"11","2. high":"13","3. low":"10","4. close":"12","5. volume":"900"}}}`,
			want:  2,
			first: models.PricePoint{Timestamp: day("2024-01-02"), Open: 10, High: 12, Low: 9, Close: 11, Volume: 1000},
		},
		{
			name:  "localized columns with missing fields",
			body:  `[{"日期":"2024-01-02","收盘":5},{"日期":"","收盘":6},{"日期":"2024-01-04"}]`,
			want:  1,
			first: models.PricePoint{Timestamp: day("2024-01-02"), Open: 5, High: 5, Low: 5, Close: 5},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeHistory([]byte(tc.body))
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("len = %d, want %d", len(got), tc.want)
			}
			if err := got.Validate(); err != nil {
				t.Fatalf("not ascending: %v", err)
			}
			if !samePoint(got[0], tc.first) {
				t.Fatalf("first = %+v, want %+v", got[0], tc.first)
			}
		})
	}

	if _, err := NormalizeHistory([]byte("not json")); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func samePoint(a, b models.PricePoint) bool {
	return a.Timestamp.Equal(b.Timestamp) && a.Open == b.Open && a.High == b.High &&
		a.Low == b.Low && a.Close == b.Close && a.Volume == b.Volume
}

func dailySeries(from time.Time, n int) models.PriceSeries {
	var out models.PriceSeries
	for d := from; len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		v := float64(len(out) + 1)
		out = append(out, models.PricePoint{Timestamp: d, Open: v, High: v + 1, Low: v - 1, Close: v + 0.5, Volume: 10})
	}
	return out
}

func TestResampleWeekly(t *testing.T) {
	daily := dailySeries(day("2024-01-01"), 10) // two full weeks
	weekly := Resample(daily, models.Weekly)
	if len(weekly) != 2 {
		t.Fatalf("weekly bars = %d, want 2", len(weekly))
	}
	w := weekly[0]
	want := models.PricePoint{Timestamp: day("2024-01-05"), Open: 1, High: 6, Low: 0, Close: 5.5, Volume: 50}
	if !samePoint(w, want) {
		t.Fatalf("week 1 = %+v, want %+v", w, want)
	}
	if !weekly[1].Timestamp.Equal(day("2024-01-12")) {
		t.Fatalf("week 2 labelled %s", weekly[1].Timestamp)
	}
}

func TestResampleMonthly(t *testing.T) {
	daily := dailySeries(day("2024-01-29"), 6) // Jan 29..31, Feb 1..2, Feb 5
	monthly := Resample(daily, models.Monthly)
	if len(monthly) != 2 {
		t.Fatalf("monthly bars = %d, want 2", len(monthly))
	}
	if monthly[0].Close != 3.5 || monthly[1].Open != 4 || monthly[1].Volume != 30 {
		t.Fatalf("unexpected monthly bars %+v", monthly)
	}
	if got := Resample(daily, models.Daily); len(got) != len(daily) {
		t.Fatalf("daily resample must be identity")
	}
}

func newFMPServer(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, map[string]*int32) {
	t.Helper()
	calls := make(map[string]*int32, len(routes))
	for path := range routes {
		calls[path] = new(int32)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "test-key" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		key := r.URL.Path
		if p := r.URL.Query().Get("period"); p != "" {
			key += "?period=" + p
		}
		h, ok := routes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(calls[key], 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func body(s string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s))
	}
}

func testClient(url string) *FMPClient {
	return NewFMPClient("test-key",
		WithBaseURL(url),
		WithRetryPolicy(retry.Policy{MaxAttempts: 3, Delay: time.Millisecond}),
		WithRateLimit(ratelimit.New(), 100, 100),
	)
}

func TestFMPFetchDailyAndWeekly(t *testing.T) {
	var rows []string
	for _, p := range dailySeries(day("2024-01-01"), 10) {
		rows = append(rows, fmt.Sprintf(`{"date":%q,"open":%g,"high":%g,"low":%g,"close":%g,"volume":%g}`,
			p.Timestamp.Format("2006-01-02"), p.Open, p.High, p.Low, p.Close, p.Volume))
	}
	var gotFrom string
	srv, _ := newFMPServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/v3/historical-price-full/AAPL": func(w http.ResponseWriter, r *http.Request) {
			gotFrom = r.URL.Query().Get("from")
			body(`{"symbol":"AAPL","historical":[`+strings.Join(rows, ",")+`]}`)(w, r)
		},
		"/api/v3/historical-price-full/EMPTY": body(`{}`),
	})
	c := testClient(srv.URL)
	ctx := context.Background()

	daily, err := c.Fetch(ctx, "AAPL", day("2024-01-01"), day("2024-01-12"), models.Daily)
	if err != nil || len(daily) != 10 {
		t.Fatalf("daily fetch: len=%d err=%v", len(daily), err)
	}
	weekly, err := c.Fetch(ctx, "AAPL", day("2024-01-03"), day("2024-01-12"), models.Weekly)
	if err != nil || len(weekly) != 2 {
		t.Fatalf("weekly fetch: len=%d err=%v", len(weekly), err)
	}
	if gotFrom != "2024-01-01" {
		t.Fatalf("weekly from = %s, want aligned to Monday", gotFrom)
	}

	if _, err := c.Fetch(ctx, "EMPTY", day("2024-01-01"), day("2024-01-12"), models.Daily); !errors.Is(err, models.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := c.Fetch(ctx, "AAPL", time.Time{}, time.Time{}, models.TimeFrame("hourly")); !errors.Is(err, models.ErrInvalidTimeFrame) {
		t.Fatalf("expected ErrInvalidTimeFrame, got %v", err)
	}
}

func TestFMPRetryClassification(t *testing.T) {
	var n int32
	srv, calls := newFMPServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/v3/historical-price-full/FLAKY": func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&n, 1) < 3 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			body(`{"historical":[{"date":"2024-01-02","close":1}]}`)(w, r)
		},
		"/api/v3/historical-price-full/GONE": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusForbidden)
		},
	})
	c := testClient(srv.URL)

	series, err := c.Fetch(context.Background(), "FLAKY", day("2024-01-01"), day("2024-01-05"), models.Daily)
	if err != nil || len(series) != 1 {
		t.Fatalf("flaky fetch: len=%d err=%v", len(series), err)
	}
	if got := atomic.LoadInt32(calls["/api/v3/historical-price-full/FLAKY"]); got != 3 {
		t.Fatalf("flaky calls = %d, want 3", got)
	}

	_, err = c.Fetch(context.Background(), "GONE", day("2024-01-01"), day("2024-01-05"), models.Daily)
	if !errors.Is(err, models.ErrUpstreamFetch) {
		t.Fatalf("expected upstream fetch error, got %v", err)
	}
	if got := atomic.LoadInt32(calls["/api/v3/historical-price-full/GONE"]); got != 1 {
		t.Fatalf("client errors must not be retried, calls = %d", got)
	}
}

func TestFMPFundamentals(t *testing.T) {
	srv, calls := newFMPServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/v3/key-metrics/MSFT?period=annual":  body(`[{"peRatio":35.1234,"pbRatio":12.349,"researchAndDdevelopementToRevenue":0.12345}]`),
		"/api/v3/ratios-ttm/MSFT":                 body(`[{"returnOnEquityTTM":0.38456,"grossProfitMarginTTM":0.69871}]`),
		"/api/v3/profile/MSFT":                    body(`[{"companyName":"Microsoft Corporation","lastDiv":3,"price":400}]`),
		"/api/v3/key-metrics/MSFT?period=quarter": body(`[{"pbRatio":1}]`),
		"/api/v3/key-metrics/XOM?period=annual":   body(`[{"peRatio":12}]`),
		"/api/v3/ratios-ttm/XOM":                  body(`[]`),
		"/api/v3/profile/XOM":                     body(`[{"companyName":"Exxon","price":100}]`),
		"/api/v3/key-metrics/XOM?period=quarter":  body(`[{"bookValuePerShare":50}]`),
		"/api/v3/quote-short/XOM":                 body(`[{"symbol":"XOM","price":110,"volume":1}]`),
	})
	c := testClient(srv.URL)
	ctx := context.Background()

	p, err := c.Fundamentals(ctx, "MSFT")
	if err != nil {
		t.Fatalf("fundamentals: %v", err)
	}
	check := func(name string, got *float64, want float64) {
		t.Helper()
		if got == nil || *got != want {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
	}
	check("pe", p.PERatio, 35.12)
	check("pb", p.PBRatio, 12.35)
	check("rd", p.RDRatio, 0.1235)
	check("roe", p.ROE, 0.3846)
	check("gm", p.GrossMargin, 0.6987)
	check("dy", p.DividendYield, 0.0075)
	if p.Name != "Microsoft Corporation" {
		t.Fatalf("name = %q", p.Name)
	}
	if n := atomic.LoadInt32(calls["/api/v3/key-metrics/MSFT?period=quarter"]); n != 0 {
		t.Fatalf("pb fallback must not run when pb is known")
	}

	x, err := c.Fundamentals(ctx, "XOM")
	if err != nil {
		t.Fatalf("fundamentals XOM: %v", err)
	}
	check("xom pb fallback", x.PBRatio, 2.2)
	if n := atomic.LoadInt32(calls["/api/v3/key-metrics/XOM?period=quarter"]); n != 1 {
		t.Fatalf("pb fallback ran %d times for XOM, want 1", n)
	}
	if x.ROE != nil || x.DividendYield != nil {
		t.Fatalf("unknown fields must stay nil: %+v", x)
	}

	cn, err := c.Fundamentals(ctx, "300281.SZ")
	if err != nil || cn.PERatio != nil || cn.Symbol != "300281.SZ" {
		t.Fatalf("mainland listing must yield an empty profile: %+v %v", cn, err)
	}

	if _, err := c.Fundamentals(ctx, "NOPE"); !errors.Is(err, models.ErrUpstreamFetch) {
		t.Fatalf("all endpoints failing must be an upstream error, got %v", err)
	}
}

func TestFMPSymbols(t *testing.T) {
	srv, _ := newFMPServer(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/v3/sp500_constituent": body(`[{"symbol":"BRK.B"},{"symbol":"AAPL"},{"symbol":""}]`),
		"/api/v3/stock/list": body(`[{"symbol":"AAPL","exchangeShortName":"NASDAQ"},
			{"symbol":"JPM","exchangeShortName":"NYSE"},{"symbol":"MSFT","exchangeShortName":"NASDAQ"}]`),
	})
	c := testClient(srv.URL)
	ctx := context.Background()

	sp, err := c.Symbols(ctx, "sp500")
	if err != nil || strings.Join(sp, ",") != "BRK-B,AAPL" {
		t.Fatalf("sp500 = %v, %v", sp, err)
	}
	nq, err := c.Symbols(ctx, "NASDAQ")
	if err != nil || strings.Join(nq, ",") != "AAPL,MSFT" {
		t.Fatalf("nasdaq = %v, %v", nq, err)
	}
	if _, err := c.Symbols(ctx, "ACN"); !errors.Is(err, models.ErrNoData) {
		t.Fatalf("unsupported exchange: %v", err)
	}
}

func TestSymbolListers(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "NYSE.csv"), []byte("Name,Symbol\nJPMorgan,JPM\nBank of America, BAC\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "AMEX.csv"), []byte("ticker,name\nSPY,SPDR\nGLD,Gold\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	files := NewFileSymbolLister(dir)
	ctx := context.Background()

	nyse, err := files.Symbols(ctx, "nyse")
	if err != nil || strings.Join(nyse, ",") != "JPM,BAC" {
		t.Fatalf("nyse = %v, %v", nyse, err)
	}
	amex, err := files.Symbols(ctx, "AMEX")
	if err != nil || strings.Join(amex, ",") != "SPY,GLD" {
		t.Fatalf("amex = %v, %v", amex, err)
	}
	if _, err := files.Symbols(ctx, "NASDAQ"); !errors.Is(err, models.ErrNoData) {
		t.Fatalf("missing file should be ErrNoData, got %v", err)
	}

	chain := NewChainSymbolLister(files, StaticSymbolLister{})
	nq, err := chain.Symbols(ctx, "NASDAQ")
	if err != nil || len(nq) != 10 || nq[0] != "AAPL" {
		t.Fatalf("chain fallback = %v, %v", nq, err)
	}
	if _, err := chain.Symbols(ctx, "LSE"); err == nil {
		t.Fatalf("unknown exchange must fail")
	}
}

type fakeUpstream struct {
	calls  int
	series models.PriceSeries
}

func (f *fakeUpstream) Fetch(context.Context, string, time.Time, time.Time, models.TimeFrame) (models.PriceSeries, error) {
	f.calls++
	return f.series, nil
}

type fakeArchive struct {
	stored map[string]models.PriceSeries
}

func (a *fakeArchive) StorePrices(_ context.Context, symbol string, tf models.TimeFrame, s models.PriceSeries) error {
	a.stored[symbol+"/"+string(tf)] = s
	return nil
}

func (a *fakeArchive) LoadPrices(_ context.Context, symbol string, tf models.TimeFrame, from, to time.Time) (models.PriceSeries, error) {
	var out models.PriceSeries
	for _, p := range a.stored[symbol+"/"+string(tf)] {
		if !p.Timestamp.Before(from) && !p.Timestamp.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (a *fakeArchive) StoreVerdicts(context.Context, []models.FilterVerdict) error { return nil }
func (a *fakeArchive) Health(context.Context) error                                { return nil }

func TestArchivedPriceProvider(t *testing.T) {
	series := dailySeries(day("2024-01-01"), 10)
	up := &fakeUpstream{series: series}
	archive := &fakeArchive{stored: map[string]models.PriceSeries{}}
	p := NewArchivedPriceProvider(up, archive, 5)
	ctx := context.Background()

	if _, err := p.Fetch(ctx, "AAPL", day("2024-01-01"), day("2024-01-12"), models.Daily); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got, err := p.Fetch(ctx, "AAPL", day("2024-01-01"), day("2024-01-12"), models.Daily)
	if err != nil || len(got) != 10 {
		t.Fatalf("archived fetch: len=%d err=%v", len(got), err)
	}
	if up.calls != 1 {
		t.Fatalf("second fetch should be served by the archive, upstream calls = %d", up.calls)
	}

	// Archive is stale for a later end date.
	if _, err := p.Fetch(ctx, "AAPL", day("2024-01-01"), day("2024-02-12"), models.Daily); err != nil {
		t.Fatalf("stale fetch: %v", err)
	}
	if up.calls != 2 {
		t.Fatalf("stale archive must refetch, upstream calls = %d", up.calls)
	}
}

type countingFundamentals struct{ calls int }

func (c *countingFundamentals) Fundamentals(_ context.Context, symbol string) (*models.FundamentalProfile, error) {
	c.calls++
	return &models.FundamentalProfile{Symbol: symbol}, nil
}

func TestCachedFundamentals(t *testing.T) {
	next := &countingFundamentals{}
	c := NewCachedFundamentals(next, time.Hour)
	for i := 0; i < 3; i++ {
		if p, err := c.Fundamentals(context.Background(), "AAPL"); err != nil || p.Symbol != "AAPL" {
			t.Fatalf("fundamentals: %+v %v", p, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("calls = %d, want 1", next.calls)
	}
}
