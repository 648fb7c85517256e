package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"StockScreener/internal/domain/models"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func linearSeries(n int, start, step float64) models.PriceSeries {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(models.PriceSeries, n)
	for i := 0; i < n; i++ {
		c := start + step*float64(i)
		out[i] = models.PricePoint{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c - step/2,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func TestEMAKnownValues(t *testing.T) {
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{math.NaN(), math.NaN(), 2.25, 3.125, 4.0625}
	for i := range want {
		if math.IsNaN(want[i]) {
			if isDefined(got[i]) {
				t.Fatalf("index %d: expected undefined, got %v", i, got[i])
			}
			continue
		}
		assertClose(t, "EMA(3)", got[i], want[i], 1e-12)
	}
}

func TestEMAWarmupOnIncreasingSeries(t *testing.T) {
	closes := linearSeries(60, 10, 0.5).Closes()
	for _, p := range []int{5, 13, 26} {
		ema := EMA(closes, p)
		for i, v := range ema {
			if i < p-1 && isDefined(v) {
				t.Fatalf("EMA(%d) defined at warm-up index %d", p, i)
			}
			if i >= p-1 && !isDefined(v) {
				t.Fatalf("EMA(%d) undefined at index %d", p, i)
			}
		}
	}
}

func TestBiasZeroWhereCloseEqualsEMA(t *testing.T) {
	closes := []float64{10, 12, 9, 15, 15}
	bias := Bias(closes, EMA(closes, 1))
	for i, b := range bias {
		if b != 0 {
			t.Fatalf("index %d: bias %v, want exactly 0", i, b)
		}
	}
}

func TestBiasGuardsZeroEMA(t *testing.T) {
	bias := Bias([]float64{1, 2}, []float64{0, math.NaN()})
	for i, b := range bias {
		if isDefined(b) {
			t.Fatalf("index %d: expected undefined bias, got %v", i, b)
		}
	}
}

func TestRSIKnownValues(t *testing.T) {
	got := RSI([]float64{1, 2, 1, 2}, 2)
	if isDefined(got[0]) || isDefined(got[1]) {
		t.Fatalf("RSI defined before period+1 points: %v", got)
	}
	assertClose(t, "RSI[2]", got[2], 50, 1e-9)
	assertClose(t, "RSI[3]", got[3], 75, 1e-9)
}

func TestRSIBoundsAndAllGains(t *testing.T) {
	up := RSI(linearSeries(40, 100, 1).Closes(), 14)
	for i := 14; i < len(up); i++ {
		if up[i] != 100 {
			t.Fatalf("RSI with zero losses at %d = %v, want 100", i, up[i])
		}
	}

	zigzag := make([]float64, 80)
	for i := range zigzag {
		zigzag[i] = 50 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	for i, v := range RSI(zigzag, 14) {
		if isDefined(v) && (v < 0 || v > 100) {
			t.Fatalf("RSI out of range at %d: %v", i, v)
		}
	}
}

func TestMACDHistogramExact(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/5) + 0.1*float64(i)
	}
	m := MACD(closes, 12, 26, 9)
	for i := range closes {
		if i < 25 && isDefined(m.MACD[i]) {
			t.Fatalf("MACD defined before slow EMA at %d", i)
		}
		if isDefined(m.Histogram[i]) && m.Histogram[i] != m.MACD[i]-m.Signal[i] {
			t.Fatalf("histogram mismatch at %d", i)
		}
	}
	if !isDefined(m.Signal[25+8]) || isDefined(m.Signal[25+7]) {
		t.Fatalf("signal warm-up misaligned")
	}
}

func TestSlopeAnglesOfLine(t *testing.T) {
	got := SlopeAngles([]float64{math.NaN(), 0, 1, 2, 3}, 2)
	if isDefined(got[0]) || isDefined(got[1]) {
		t.Fatalf("expected undefined warm-up slopes, got %v", got)
	}
	for i := 2; i < len(got); i++ {
		assertClose(t, "slope", got[i], 45, 1e-9)
	}
}

func TestTrendStatus(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name   string
		slopes []float64
		want   models.SlopeStatus
	}{
		{"up run", []float64{nan, 5, 12, 15, 20}, models.SlopeStatus{Direction: models.SlopeUp, Duration: 3}},
		{"down run", []float64{12, -11, -20}, models.SlopeStatus{Direction: models.SlopeDown, Duration: 2}},
		{"flat after up", []float64{-3, 11, 12, 13, 4, 2}, models.SlopeStatus{Direction: models.SlopeFlat, Duration: 3}},
		{"flat after down", []float64{11, -12, 3}, models.SlopeStatus{Direction: models.SlopeFlat, Duration: 0}},
		{"undefined latest", []float64{11, nan}, models.SlopeStatus{Direction: models.SlopeFlat, Duration: 0}},
		{"empty", nil, models.SlopeStatus{Direction: models.SlopeFlat}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrendStatus(tc.slopes, 10); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
	if n := UptrendDuration([]float64{20, 5, 11, 12}, 10); n != 2 {
		t.Fatalf("uptrend duration = %d, want 2", n)
	}
}

func TestComputeInsufficientData(t *testing.T) {
	_, err := Compute(linearSeries(29, 10, 1), DefaultConfig(models.Daily))
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	var ide *models.InsufficientDataError
	if !errors.As(err, &ide) || ide.Have != 29 || ide.Need != 30 {
		t.Fatalf("unexpected error detail: %v", err)
	}
}

func TestComputeRejectsUnorderedSeries(t *testing.T) {
	s := linearSeries(40, 10, 1)
	s[10].Timestamp = s[9].Timestamp
	if _, err := Compute(s, DefaultConfig(models.Daily)); err == nil {
		t.Fatalf("expected ordering error")
	}
}

func TestComputeColumnsAndUndefinedMarkers(t *testing.T) {
	cfg := DefaultConfig(models.Daily)
	cfg.Sources = []models.PriceSource{models.SourceClose, models.SourceHigh}
	snaps, err := NewEngine().Compute(linearSeries(40, 10, 1), models.Daily, cfg)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(snaps) != 40 {
		t.Fatalf("expected aligned snapshots, got %d", len(snaps))
	}

	first := snaps[0]
	if _, defined, present := first.Lookup("EMA_13"); !present || defined {
		t.Fatalf("EMA_13 at index 0 should be present and undefined")
	}
	if _, _, present := first.Lookup("EMA_50"); present {
		t.Fatalf("EMA_50 was never computed and must be absent")
	}

	last, _ := Latest(snaps)
	for _, name := range []string{"EMA_13", "EMA_26", "BIAS_13", "EMA_13_HIGH", "BIAS_13_HIGH", "RSI_14", "MACD", "MACD_SIGNAL", "MACD_HIST", "EMA_13_SLOPE"} {
		if _, defined, present := last.Lookup(name); !present || !defined {
			t.Fatalf("%s missing or undefined at latest point", name)
		}
	}
}

func TestComputeUptrendSlopePositiveAfterWarmup(t *testing.T) {
	cfg := DefaultConfig(models.Daily)
	snaps, err := Compute(linearSeries(260, 50, 0.5), cfg)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	slopes := Column(snaps, models.SlopeName(13))
	warmup := 13 - 1 + cfg.SlopeWindow - 1
	for i := warmup; i < len(slopes); i++ {
		if !(slopes[i] > 0) {
			t.Fatalf("slope at %d = %v, want > 0", i, slopes[i])
		}
	}
	status := TrendStatus(slopes, 10)
	if status.Direction != models.SlopeUp || status.Duration != len(slopes)-warmup {
		t.Fatalf("unexpected status %+v", status)
	}
}
