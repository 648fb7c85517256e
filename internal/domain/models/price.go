package models

import (
	"fmt"
	"time"
)

// PriceSource selects which OHLC column an indicator is computed from.
type PriceSource string

const (
	SourceOpen  PriceSource = "open"
	SourceHigh  PriceSource = "high"
	SourceLow   PriceSource = "low"
	SourceClose PriceSource = "close"
)

// PricePoint is one OHLCV bar.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Value returns the column selected by src. Unknown sources fall back to close.
func (p PricePoint) Value(src PriceSource) float64 {
	switch src {
	case SourceOpen:
		return p.Open
	case SourceHigh:
		return p.High
	case SourceLow:
		return p.Low
	default:
		return p.Close
	}
}

// PriceSeries is an ordered sequence of bars.
type PriceSeries []PricePoint

// Validate checks that timestamps are strictly increasing.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Timestamp.After(s[i-1].Timestamp) {
			return fmt.Errorf("series not strictly increasing at index %d (%s <= %s)",
				i, s[i].Timestamp.Format(time.RFC3339), s[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Column extracts one OHLC column.
func (s PriceSeries) Column(src PriceSource) []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value(src)
	}
	return out
}

// Closes extracts the close column.
func (s PriceSeries) Closes() []float64 { return s.Column(SourceClose) }

// Last returns the most recent bar.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}
