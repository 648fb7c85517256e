package indicators

import "StockScreener/internal/domain/models"

// MinPoints is the shortest series the engine accepts.
const MinPoints = 30

// Config holds the indicator parameters of one time frame.
type Config struct {
	EMAPeriods   []int
	Sources      []models.PriceSource
	RSIPeriod    int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	SlopeWindow  int
	SlopePeriods []int
	MinPoints    int
}

// DefaultConfig returns the standard parameters for a time frame.
func DefaultConfig(tf models.TimeFrame) Config {
	cfg := Config{
		EMAPeriods:   []int{13},
		Sources:      []models.PriceSource{models.SourceClose},
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		SlopeWindow:  3,
		SlopePeriods: []int{13},
		MinPoints:    MinPoints,
	}
	if tf == models.Daily {
		cfg.EMAPeriods = []int{13, 26}
	}
	return cfg
}

// BiasPeriod is the EMA period the BIAS criterion reads: the first configured one.
func (c Config) BiasPeriod() int {
	if len(c.EMAPeriods) == 0 {
		return 13
	}
	return c.EMAPeriods[0]
}

func (c Config) minPoints() int {
	if c.MinPoints > 0 {
		return c.MinPoints
	}
	return MinPoints
}

func (c Config) sources() []models.PriceSource {
	if len(c.Sources) == 0 {
		return []models.PriceSource{models.SourceClose}
	}
	return c.Sources
}
