package indicators

import (
	"fmt"

	"StockScreener/internal/domain/models"
	applogger "StockScreener/pkg/logger"
)

// Engine turns a price series into aligned indicator snapshots. It keeps no
// state between calls.
type Engine struct {
	log *applogger.Logger
}

func NewEngine() *Engine {
	return &Engine{log: applogger.Nop()}
}

// SetLogger injects a logger; per-symbol debug lines are sampled.
func (e *Engine) SetLogger(l *applogger.Logger) {
	if l != nil {
		e.log = l.Sampled(20)
	}
}

// Compute returns one snapshot per input point.
func (e *Engine) Compute(series models.PriceSeries, tf models.TimeFrame, cfg Config) ([]models.IndicatorSnapshot, error) {
	snaps, err := Compute(series, cfg)
	if err != nil {
		return nil, err
	}
	e.log.Debug("indicators computed",
		applogger.String("time_frame", string(tf)),
		applogger.Int("points", len(series)),
		applogger.Int("columns", len(snaps[len(snaps)-1].Values)),
	)
	return snaps, nil
}

// Compute is the pure form of Engine.Compute.
func Compute(series models.PriceSeries, cfg Config) ([]models.IndicatorSnapshot, error) {
	if need := cfg.minPoints(); len(series) < need {
		return nil, &models.InsufficientDataError{Have: len(series), Need: need}
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}

	columns := make(map[string][]float64)
	closes := series.Closes()

	for _, src := range cfg.sources() {
		prices := series.Column(src)
		for _, p := range cfg.EMAPeriods {
			ema := EMA(prices, p)
			columns[models.EMAName(p, src)] = ema
			columns[models.BIASName(p, src)] = Bias(prices, ema)
		}
	}

	if cfg.RSIPeriod > 0 {
		columns[models.RSIName(cfg.RSIPeriod)] = RSI(closes, cfg.RSIPeriod)
	}

	if cfg.MACDFast > 0 && cfg.MACDSlow > 0 && cfg.MACDSignal > 0 {
		m := MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
		columns[models.IndicatorMACD] = m.MACD
		columns[models.IndicatorMACDSignal] = m.Signal
		columns[models.IndicatorMACDHist] = m.Histogram
	}

	for _, p := range cfg.SlopePeriods {
		ema, ok := columns[models.EMAName(p, models.SourceClose)]
		if !ok {
			ema = EMA(closes, p)
			columns[models.EMAName(p, models.SourceClose)] = ema
		}
		columns[models.SlopeName(p)] = SlopeAngles(ema, cfg.SlopeWindow)
	}

	snaps := make([]models.IndicatorSnapshot, len(series))
	for i, pt := range series {
		values := make(map[string]*float64, len(columns))
		for name, col := range columns {
			if isDefined(col[i]) {
				v := col[i]
				values[name] = &v
			} else {
				values[name] = nil
			}
		}
		snaps[i] = models.IndicatorSnapshot{Timestamp: pt.Timestamp, Close: pt.Close, Values: values}
	}
	return snaps, nil
}

// Latest returns the snapshot of the most recent point.
func Latest(snaps []models.IndicatorSnapshot) (models.IndicatorSnapshot, bool) {
	if len(snaps) == 0 {
		return models.IndicatorSnapshot{}, false
	}
	return snaps[len(snaps)-1], true
}

// Column extracts one indicator across snapshots, undefined entries as NaN.
func Column(snaps []models.IndicatorSnapshot, name string) []float64 {
	out := make([]float64, len(snaps))
	for i, s := range snaps {
		out[i] = undefined
		if v, ok := s.Values[name]; ok && v != nil {
			out[i] = *v
		}
	}
	return out
}
