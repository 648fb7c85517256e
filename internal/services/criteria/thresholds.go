package criteria

import "StockScreener/internal/domain/models"

// RSIMode selects how the RSI criterion reads its bounds.
type RSIMode string

const (
	// RSIRange passes when oversold <= RSI <= overbought.
	RSIRange RSIMode = "range"
	// RSIOversold passes only when RSI < oversold.
	RSIOversold RSIMode = "oversold"
)

// Bounds are the configured criterion values of one time frame.
type Bounds struct {
	Bias          float64
	RSIOversold   float64
	RSIOverbought float64
}

// FinancialBounds are the minimums applied when financial filtering is on.
type FinancialBounds struct {
	GrossMargin float64
	ROE         float64
	RDRatio     float64
}

// DefaultFinancialBounds mirrors the stock screen's standard gates.
func DefaultFinancialBounds() FinancialBounds {
	return FinancialBounds{GrossMargin: 0.3, ROE: 0.15, RDRatio: 0.1}
}

// Thresholds builds the ThresholdSet of one time frame.
func Thresholds(b Bounds, fin FinancialBounds) models.ThresholdSet {
	return models.ThresholdSet{
		models.ThresholdBias:          {Value: b.Bias, Op: models.OpLTE},
		models.ThresholdRSIOversold:   {Value: b.RSIOversold, Op: models.OpGTE},
		models.ThresholdRSIOverbought: {Value: b.RSIOverbought, Op: models.OpLTE},
		models.ThresholdGrossMargin:   {Value: fin.GrossMargin, Op: models.OpGTE},
		models.ThresholdROE:           {Value: fin.ROE, Op: models.OpGTE},
		models.ThresholdRDRatio:       {Value: fin.RDRatio, Op: models.OpGTE},
	}
}

// FinancialThresholds extracts the stored financial bounds from a set.
func FinancialThresholds(set models.ThresholdSet) models.FinancialThresholds {
	return models.FinancialThresholds{
		GrossMargin: set[models.ThresholdGrossMargin].Value,
		ROE:         set[models.ThresholdROE].Value,
		RDRatio:     set[models.ThresholdRDRatio].Value,
	}
}
