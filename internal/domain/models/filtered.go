package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	metaDataKey  = "metaData"
	financialKey = "FinancialMetrics"
)

// FilteredKey returns the store key of a filtered stock document.
func FilteredKey(symbol string) string { return "filtered_stock_" + symbol }

// FilteredMeta identifies a stored filtered stock.
type FilteredMeta struct {
	Stock      string    `json:"stock"`
	FilterTime time.Time `json:"filterTime"`
}

type BiasValue struct {
	Bias *float64 `json:"bias"`
}

type RSIValue struct {
	Value  *float64 `json:"value"`
	Period int      `json:"period"`
}

type MACDValue struct {
	Value        *float64 `json:"value"`
	Signal       *float64 `json:"signal"`
	Histogram    *float64 `json:"histogram"`
	FastPeriod   int      `json:"fast_period"`
	SlowPeriod   int      `json:"slow_period"`
	SignalPeriod int      `json:"signal_period"`
}

// FrameIndicators are the stored indicator values of one passing time frame.
type FrameIndicators struct {
	Date time.Time `json:"date"`
	BIAS BiasValue `json:"BIAS"`
	RSI  RSIValue  `json:"RSI"`
	MACD MACDValue `json:"MACD"`
}

// FilteredStockRecord is the document stored under filtered_stock_{symbol}.
// On the wire the time frames sit next to metaData and FinancialMetrics.
type FilteredStockRecord struct {
	Meta      FilteredMeta                  `json:"-"`
	Financial *FinancialMetrics             `json:"-"`
	Frames    map[TimeFrame]FrameIndicators `json:"-"`
}

// HasAny reports whether the record holds at least one of the given frames.
func (r *FilteredStockRecord) HasAny(tfs []TimeFrame) bool {
	for _, tf := range tfs {
		if _, ok := r.Frames[tf]; ok {
			return true
		}
	}
	return false
}

func (r FilteredStockRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Frames)+2)
	out[metaDataKey] = r.Meta
	if r.Financial != nil {
		out[financialKey] = r.Financial
	}
	for tf, v := range r.Frames {
		out[string(tf)] = v
	}
	return json.Marshal(out)
}

func (r *FilteredStockRecord) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Frames = make(map[TimeFrame]FrameIndicators)
	for k, v := range raw {
		switch k {
		case metaDataKey:
			if err := json.Unmarshal(v, &r.Meta); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
		case financialKey:
			var fm FinancialMetrics
			if err := json.Unmarshal(v, &fm); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			r.Financial = &fm
		default:
			tf := TimeFrame(k)
			if !tf.IsValid() {
				continue
			}
			var fi FrameIndicators
			if err := json.Unmarshal(v, &fi); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			r.Frames[tf] = fi
		}
	}
	return nil
}

// SymbolResult is one symbol's outcome inside a batch.
type SymbolResult struct {
	Symbol     string                      `json:"symbol"`
	Passed     bool                        `json:"passed"`
	TimeFrames map[TimeFrame]FilterVerdict `json:"time_frames,omitempty"`
	Financial  *FinancialMetrics           `json:"financial_metrics,omitempty"`
	Errors     map[TimeFrame]string        `json:"frame_errors,omitempty"`
	Error      string                      `json:"error,omitempty"`
	ErrorKind  string                      `json:"error_kind,omitempty"`
}

// BatchResult is the outcome of a filtering run. Failed symbols are listed with
// an error and never abort the batch.
type BatchResult struct {
	Results    []SymbolResult `json:"results"`
	Passed     int            `json:"passed"`
	Failed     int            `json:"failed"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Lookup returns the result of symbol.
func (b *BatchResult) Lookup(symbol string) (SymbolResult, bool) {
	for _, r := range b.Results {
		if r.Symbol == symbol {
			return r, true
		}
	}
	return SymbolResult{}, false
}
