package trend

import (
	"strings"

	"StockScreener/internal/domain/models"
)

// Fundamental metric names, in the order failures are reported.
const (
	MetricPB            = "P/B ratio"
	MetricPE            = "P/E ratio"
	MetricROE           = "ROE"
	MetricGrossMargin   = "Gross Margin"
	MetricDividendYield = "Dividend Yield"
)

var metricOrder = []string{MetricPB, MetricPE, MetricROE, MetricGrossMargin, MetricDividendYield}

const (
	ReasonBuy        = "All technical and fundamental criteria are met"
	ReasonSell       = "EMA slope has flattened from upward trend"
	ReasonBias       = "Daily BIAS does not meet criteria"
	ReasonSlope      = "Weekly EMA slope does not meet uptrend criteria"
	reasonFundPrefix = "Fundamental criteria not met: "
)

// TechnicalStatus summarises the multi-timeframe technical checks.
type TechnicalStatus struct {
	MeetsCriteria bool
	Slope         models.SlopeStatus
	SlopeValue    *float64
	BiasValue     *float64
	BiasOK        bool
	UptrendOK     bool
}

// FundamentalStatus holds one result per metric.
type FundamentalStatus struct {
	MeetsCriteria bool
	Results       map[string]bool
}

// Failed returns the failing metric names in report order.
func (f FundamentalStatus) Failed() []string {
	var out []string
	for _, m := range metricOrder {
		if ok, found := f.Results[m]; found && !ok {
			out = append(out, m)
		}
	}
	return out
}

// Decide derives the verdict; the first matching rule wins.
func Decide(symbol string, tech TechnicalStatus, fund FundamentalStatus) models.TrendDecision {
	d := models.TrendDecision{Symbol: symbol}
	switch {
	case tech.MeetsCriteria && fund.MeetsCriteria:
		d.Action, d.Reason = models.ActionBuy, ReasonBuy
	case tech.Slope.Direction == models.SlopeFlat && tech.Slope.Duration > 0:
		d.Action, d.Reason = models.ActionSell, ReasonSell
	case !tech.MeetsCriteria && !tech.BiasOK:
		d.Action, d.Reason = models.ActionReject, ReasonBias
	case !tech.MeetsCriteria:
		d.Action, d.Reason = models.ActionReject, ReasonSlope
	default:
		d.Action, d.Reason = models.ActionReject, reasonFundPrefix+strings.Join(fund.Failed(), ", ")
	}
	return d
}
