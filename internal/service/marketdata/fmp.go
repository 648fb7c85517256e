package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	"StockScreener/internal/service/ratelimit"
	"StockScreener/internal/service/retry"
	xhttp "StockScreener/pkg/http"
	applogger "StockScreener/pkg/logger"
	xutil "StockScreener/pkg/util"
)

const (
	DefaultFMPBaseURL = "https://financialmodelingprep.com"
	providerFMP       = "fmp"
	limiterKey        = "fmp"
	dateLayout        = "2006-01-02"
)

// FMPClient reads price history, fundamentals and index constituents from
// Financial Modeling Prep. Every request goes through the shared rate
// limiter and the retry policy.
type FMPClient struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	burst   float64
	perSec  float64
	policy  retry.Policy
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

var (
	_ domrepo.HistoricalPriceProvider = (*FMPClient)(nil)
	_ domrepo.FundamentalsProvider    = (*FMPClient)(nil)
	_ domrepo.SymbolLister            = (*FMPClient)(nil)
)

// FMPOption configures FMPClient.
type FMPOption func(*FMPClient)

func WithBaseURL(u string) FMPOption {
	return func(c *FMPClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(h *xhttp.Client) FMPOption {
	return func(c *FMPClient) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRateLimit shares l between clients; burst tokens refill at perSec.
func WithRateLimit(l *ratelimit.Limiter, burst, perSec float64) FMPOption {
	return func(c *FMPClient) {
		if l != nil {
			c.limiter = l
		}
		if burst > 0 {
			c.burst = burst
		}
		if perSec > 0 {
			c.perSec = perSec
		}
	}
}

func WithRetryPolicy(p retry.Policy) FMPOption {
	return func(c *FMPClient) { c.policy = p }
}

func WithFMPMetrics(m domrepo.Metrics) FMPOption {
	return func(c *FMPClient) { c.metrics = m }
}

func WithFMPLogger(l *applogger.Logger) FMPOption {
	return func(c *FMPClient) {
		if l != nil {
			c.log = l
		}
	}
}

func withFMPClock(now func() time.Time) FMPOption {
	return func(c *FMPClient) { c.now = now }
}

func NewFMPClient(apiKey string, opts ...FMPOption) *FMPClient {
	c := &FMPClient{
		baseURL: DefaultFMPBaseURL,
		apiKey:  apiKey,
		http:    xhttp.NewClient(xhttp.WithTimeout(30 * time.Second)),
		limiter: ratelimit.New(),
		burst:   5,
		perSec:  5,
		policy:  retry.DefaultPolicy(),
		log:     applogger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultRange returns the lookback used when a fetch has no explicit range.
func DefaultRange(tf models.TimeFrame, now time.Time) (time.Time, time.Time) {
	switch tf {
	case models.Weekly:
		return now.AddDate(-2, 0, 0), now
	case models.Monthly:
		return now.AddDate(-5, 0, 0), now
	default:
		return now.AddDate(0, 0, -365), now
	}
}

// Fetch returns bars for symbol in [start, end]. Weekly and monthly bars are
// resampled from daily history; the range is widened to whole periods so the
// first and last bars are complete.
func (c *FMPClient) Fetch(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame) (models.PriceSeries, error) {
	if !tf.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidTimeFrame, tf)
	}
	if start.IsZero() || end.IsZero() {
		ds, de := DefaultRange(tf, c.now())
		if start.IsZero() {
			start = ds
		}
		if end.IsZero() {
			end = de
		}
	}
	if tf != models.Daily {
		start, _ = xutil.AlignFromTo(start, end, string(tf))
	}

	body, err := c.get(ctx, "/api/v3/historical-price-full/"+symbol, map[string][]string{
		"from": {start.Format(dateLayout)},
		"to":   {end.Format(dateLayout)},
	})
	if err != nil {
		return nil, &models.UpstreamFetchError{Provider: providerFMP, Symbol: symbol, Err: err}
	}
	series, err := NormalizeHistory(body)
	if err != nil {
		return nil, &models.UpstreamFetchError{Provider: providerFMP, Symbol: symbol, Err: err}
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, models.ErrNoData)
	}
	return Resample(series, tf), nil
}

// Fundamentals assembles a profile from key metrics, TTM ratios and the
// company profile. Endpoints fail independently; only a total failure is an
// error. Mainland China listings carry no fundamentals and return an empty
// profile.
func (c *FMPClient) Fundamentals(ctx context.Context, symbol string) (*models.FundamentalProfile, error) {
	p := &models.FundamentalProfile{Symbol: symbol}
	if startsWithDigit(symbol) {
		return p, nil
	}

	var failures []error
	fail := func(endpoint string, err error) {
		c.log.Warn("fmp fundamentals endpoint failed",
			applogger.String("symbol", symbol),
			applogger.String("endpoint", endpoint),
			applogger.Error(err),
		)
		failures = append(failures, err)
	}

	if body, err := c.get(ctx, "/api/v3/key-metrics/"+symbol, map[string][]string{"period": {"annual"}, "limit": {"1"}}); err != nil {
		fail("key-metrics", err)
	} else {
		row := gjson.GetBytes(body, "0")
		p.PERatio = round(first(row, "peRatio", "peRatioTTM"), 2)
		p.PBRatio = round(first(row, "pbRatio", "ptbRatio"), 2)
		p.RDRatio = round(first(row, "researchAndDdevelopementToRevenue", "researchAndDevelopmentToRevenue"), 4)
	}

	if body, err := c.get(ctx, "/api/v3/ratios-ttm/"+symbol, nil); err != nil {
		fail("ratios-ttm", err)
	} else {
		row := gjson.GetBytes(body, "0")
		p.ROE = round(first(row, "returnOnEquityTTM"), 4)
		p.GrossMargin = round(first(row, "grossProfitMarginTTM"), 4)
		if p.PERatio == nil {
			p.PERatio = round(first(row, "peRatioTTM", "priceEarningsRatioTTM"), 2)
		}
	}

	if body, err := c.get(ctx, "/api/v3/profile/"+symbol, nil); err != nil {
		fail("profile", err)
	} else {
		row := gjson.GetBytes(body, "0")
		p.Name = row.Get("companyName").String()
		lastDiv, price := first(row, "lastDiv"), first(row, "price")
		if lastDiv != nil && price != nil && *price > 0 {
			dy := *lastDiv / *price
			p.DividendYield = round(&dy, 4)
		}
	}

	if len(failures) == 3 {
		return nil, &models.UpstreamFetchError{Provider: providerFMP, Symbol: symbol, Err: errors.Join(failures...)}
	}
	if p.PBRatio == nil {
		p.PBRatio = c.pbFallback(ctx, symbol)
	}
	return p, nil
}

// pbFallback tries the latest quarterly P/B, then price over book value per share.
func (c *FMPClient) pbFallback(ctx context.Context, symbol string) *float64 {
	body, err := c.get(ctx, "/api/v3/key-metrics/"+symbol, map[string][]string{"period": {"quarter"}, "limit": {"1"}})
	if err != nil {
		return nil
	}
	row := gjson.GetBytes(body, "0")
	if pb := first(row, "pbRatio", "ptbRatio"); pb != nil {
		return round(pb, 2)
	}
	bvps := first(row, "bookValuePerShare")
	if bvps == nil || *bvps <= 0 {
		return nil
	}
	quote, err := c.get(ctx, "/api/v3/quote-short/"+symbol, nil)
	if err != nil {
		return nil
	}
	price := first(gjson.GetBytes(quote, "0"), "price")
	if price == nil {
		return nil
	}
	pb := *price / *bvps
	return round(&pb, 2)
}

// Symbols lists SP500 constituents or the common stocks of one exchange.
func (c *FMPClient) Symbols(ctx context.Context, exchange string) ([]string, error) {
	exchange = strings.ToUpper(exchange)
	var (
		body []byte
		err  error
		path string
	)
	switch exchange {
	case "SP500":
		body, err = c.get(ctx, "/api/v3/sp500_constituent", nil)
		path = "#.symbol"
	case "NASDAQ", "NYSE", "AMEX":
		body, err = c.get(ctx, "/api/v3/stock/list", nil)
		path = fmt.Sprintf(`#(exchangeShortName=="%s")#.symbol`, exchange)
	default:
		return nil, fmt.Errorf("fmp symbols %s: %w", exchange, models.ErrNoData)
	}
	if err != nil {
		return nil, &models.UpstreamFetchError{Provider: providerFMP, Symbol: exchange, Err: err}
	}

	var out []string
	for _, s := range gjson.GetBytes(body, path).Array() {
		sym := strings.TrimSpace(s.String())
		if sym == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(sym, ".", "-"))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("fmp symbols %s: %w", exchange, models.ErrNoData)
	}
	return out, nil
}

func (c *FMPClient) get(ctx context.Context, path string, query map[string][]string) ([]byte, error) {
	params := map[string][]string{"apikey": {c.apiKey}}
	for k, v := range query {
		params[k] = v
	}
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordLatency("fmp_fetch", time.Since(start).Seconds())
		}
	}()

	var out []byte
	err := retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx, limiterKey, c.burst, c.perSec); err != nil {
			return retry.Permanent(err)
		}
		var body []byte
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL + path,
			QueryParams: params,
		}, &body)
		if err != nil {
			if !retryable(ctx, err) {
				return retry.Permanent(err)
			}
			c.log.Debug("fmp request retry",
				applogger.String("path", path),
				applogger.Int("attempt", attempt),
				applogger.Error(err),
			)
			return err
		}
		if msg := gjson.GetBytes(body, "Error Message"); msg.Exists() {
			return retry.Permanent(fmt.Errorf("fmp: %s", msg.String()))
		}
		out = body
		return nil
	})
	return out, err
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func first(row gjson.Result, keys ...string) *float64 {
	for _, k := range keys {
		v := row.Get(k)
		if v.Type == gjson.Number {
			f := v.Float()
			return &f
		}
	}
	return nil
}

func round(v *float64, places int32) *float64 {
	if v == nil {
		return nil
	}
	r, _ := decimal.NewFromFloat(*v).Round(places).Float64()
	return &r
}

func startsWithDigit(symbol string) bool {
	for _, r := range symbol {
		return unicode.IsDigit(r)
	}
	return false
}
