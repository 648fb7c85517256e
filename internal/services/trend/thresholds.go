package trend

// Thresholds are the bounds of a trend analysis. Keys accepted by Merge match
// the JSON names of the fields.
type Thresholds struct {
	PBRatioMax       float64 `json:"pb_ratio_max" yaml:"pb_ratio_max"`
	PERatioMin       float64 `json:"pe_ratio_min" yaml:"pe_ratio_min"`
	ROEMin           float64 `json:"roe_min" yaml:"roe_min"`
	GrossMarginMin   float64 `json:"gross_margin_min" yaml:"gross_margin_min"`
	DividendYieldMin float64 `json:"dividend_yield_min" yaml:"dividend_yield_min"`
	EMASlopeMin      float64 `json:"ema_slope_min" yaml:"ema_slope_min"`
	EMASlopeWeeks    int     `json:"ema_slope_weeks" yaml:"ema_slope_weeks"`
	EMAPeriod        int     `json:"ema_period" yaml:"ema_period"`
	SlopeWindow      int     `json:"slope_window" yaml:"slope_window"`
	BiasThreshold    float64 `json:"bias_threshold" yaml:"bias_threshold"`
}

// DefaultThresholds returns the standard trend screen with the given daily BIAS bound.
func DefaultThresholds(bias float64) Thresholds {
	return Thresholds{
		PBRatioMax:       10,
		PERatioMin:       10,
		ROEMin:           0.10,
		GrossMarginMin:   0.30,
		DividendYieldMin: 0.03,
		EMASlopeMin:      10,
		EMASlopeWeeks:    3,
		EMAPeriod:        13,
		SlopeWindow:      3,
		BiasThreshold:    bias,
	}
}

// Merge returns a copy with custom values applied. Unknown keys are ignored.
func (t Thresholds) Merge(custom map[string]float64) Thresholds {
	out := t
	for k, v := range custom {
		switch k {
		case "pb_ratio_max":
			out.PBRatioMax = v
		case "pe_ratio_min":
			out.PERatioMin = v
		case "roe_min":
			out.ROEMin = v
		case "gross_margin_min":
			out.GrossMarginMin = v
		case "dividend_yield_min":
			out.DividendYieldMin = v
		case "ema_slope_min":
			out.EMASlopeMin = v
		case "ema_slope_weeks":
			if v >= 1 {
				out.EMASlopeWeeks = int(v)
			}
		case "ema_period":
			if v >= 2 {
				out.EMAPeriod = int(v)
			}
		case "slope_window":
			if v >= 2 {
				out.SlopeWindow = int(v)
			}
		case "bias_threshold":
			out.BiasThreshold = v
		}
	}
	return out
}
