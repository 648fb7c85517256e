package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	IndicatorMACD       = "MACD"
	IndicatorMACDSignal = "MACD_SIGNAL"
	IndicatorMACDHist   = "MACD_HIST"
)

func sourceSuffix(src PriceSource) string {
	if src == "" || src == SourceClose {
		return ""
	}
	return "_" + strings.ToUpper(string(src))
}

// EMAName returns the column name of EMA(period) over src.
func EMAName(period int, src PriceSource) string {
	return fmt.Sprintf("EMA_%d%s", period, sourceSuffix(src))
}

// BIASName returns the column name of BIAS(period) over src.
func BIASName(period int, src PriceSource) string {
	return fmt.Sprintf("BIAS_%d%s", period, sourceSuffix(src))
}

// RSIName returns the column name of RSI(period).
func RSIName(period int) string { return fmt.Sprintf("RSI_%d", period) }

// SlopeName returns the column name of the EMA(period) slope angle.
func SlopeName(period int) string { return fmt.Sprintf("EMA_%d_SLOPE", period) }

// IndicatorSnapshot holds every indicator value computed at one timestamp.
// A key mapped to nil means the indicator is undefined at this point (warm-up);
// a missing key means the indicator was never computed.
type IndicatorSnapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Close     float64             `json:"close"`
	Values    map[string]*float64 `json:"values"`
}

// Lookup returns the value, whether it is defined, and whether the column exists.
func (s IndicatorSnapshot) Lookup(name string) (value float64, defined bool, present bool) {
	v, ok := s.Values[name]
	if !ok {
		return 0, false, false
	}
	if v == nil {
		return 0, false, true
	}
	return *v, true, true
}

// Value returns the defined value of name, or nil.
func (s IndicatorSnapshot) Value(name string) *float64 {
	if v, ok := s.Values[name]; ok && v != nil {
		out := *v
		return &out
	}
	return nil
}

// Float returns a pointer to v. Useful for building snapshots and profiles.
func Float(v float64) *float64 { return &v }
