package trend

import (
	"fmt"

	"StockScreener/internal/domain/models"
	"StockScreener/internal/services/indicators"
)

// Input carries everything one symbol's analysis needs.
type Input struct {
	Symbol       string
	TrendSeries  models.PriceSeries // weekly bars for the EMA slope
	BiasSeries   models.PriceSeries // daily bars for BIAS
	Fundamentals *models.FundamentalProfile
}

// Analyzer evaluates technical and fundamental conditions.
type Analyzer struct {
	engine  *indicators.Engine
	biasCfg indicators.Config
}

// NewAnalyzer builds an analyzer reading BIAS with biasCfg.
func NewAnalyzer(engine *indicators.Engine, biasCfg indicators.Config) *Analyzer {
	if engine == nil {
		engine = indicators.NewEngine()
	}
	return &Analyzer{engine: engine, biasCfg: biasCfg}
}

// Technical checks the slope of the trend-frame EMA and the latest daily BIAS.
func (a *Analyzer) Technical(trendSeries, biasSeries models.PriceSeries, th Thresholds) (TechnicalStatus, error) {
	var st TechnicalStatus

	trendCfg := indicators.Config{
		EMAPeriods:   []int{th.EMAPeriod},
		SlopePeriods: []int{th.EMAPeriod},
		SlopeWindow:  th.SlopeWindow,
		MinPoints:    a.biasCfg.MinPoints,
	}
	weekly, err := a.engine.Compute(trendSeries, models.Weekly, trendCfg)
	if err != nil {
		return st, fmt.Errorf("trend frame: %w", err)
	}
	slopes := indicators.Column(weekly, models.SlopeName(th.EMAPeriod))
	st.Slope = indicators.TrendStatus(slopes, th.EMASlopeMin)
	if last, ok := indicators.Latest(weekly); ok {
		st.SlopeValue = last.Value(models.SlopeName(th.EMAPeriod))
	}
	st.UptrendOK = st.Slope.Direction == models.SlopeUp && st.Slope.Duration >= th.EMASlopeWeeks

	daily, err := a.engine.Compute(biasSeries, models.Daily, a.biasCfg)
	if err != nil {
		return st, fmt.Errorf("bias frame: %w", err)
	}
	if last, ok := indicators.Latest(daily); ok {
		st.BiasValue = last.Value(models.BIASName(a.biasCfg.BiasPeriod(), models.SourceClose))
	}
	st.BiasOK = st.BiasValue != nil && *st.BiasValue <= th.BiasThreshold
	st.MeetsCriteria = st.UptrendOK && st.BiasOK
	return st, nil
}

// Fundamental checks the five ratio bounds. Unknown values pass.
func Fundamental(p *models.FundamentalProfile, th Thresholds) FundamentalStatus {
	if p == nil {
		p = &models.FundamentalProfile{}
	}
	check := func(v *float64, ok func(float64) bool) bool {
		return v == nil || ok(*v)
	}
	res := map[string]bool{
		MetricPB:            check(p.PBRatio, func(v float64) bool { return v > 0 && v < th.PBRatioMax }),
		MetricPE:            check(p.PERatio, func(v float64) bool { return v > th.PERatioMin }),
		MetricROE:           check(p.ROE, func(v float64) bool { return v > th.ROEMin }),
		MetricGrossMargin:   check(p.GrossMargin, func(v float64) bool { return v > th.GrossMarginMin }),
		MetricDividendYield: check(p.DividendYield, func(v float64) bool { return v > th.DividendYieldMin }),
	}
	all := true
	for _, ok := range res {
		all = all && ok
	}
	return FundamentalStatus{MeetsCriteria: all, Results: res}
}

// Analyze runs both checks and the decision for one symbol.
func (a *Analyzer) Analyze(in Input, th Thresholds) (models.TrendReport, models.TrendDecision, error) {
	report := models.TrendReport{
		Stock:        models.StockRef{Symbol: in.Symbol, Name: in.Symbol},
		Fundamentals: in.Fundamentals,
	}
	if in.Fundamentals != nil {
		report.Stock.Name = in.Fundamentals.DisplayName()
	}

	tech, err := a.Technical(in.TrendSeries, in.BiasSeries, th)
	if err != nil {
		return report, models.TrendDecision{}, err
	}
	fund := Fundamental(in.Fundamentals, th)
	decision := Decide(in.Symbol, tech, fund)

	report.TrendStatus = &models.TrendTechnical{
		MeetsCriteria:     tech.MeetsCriteria,
		EMASlopeStatus:    tech.Slope.String(),
		EMASlopeValue:     tech.SlopeValue,
		EMASlopeDuration:  tech.Slope.Duration,
		BiasValue:         tech.BiasValue,
		BiasMeetsCriteria: tech.BiasOK,
	}
	report.Criteria = fund.Results
	report.Verdict = decision.Action
	report.Reason = decision.Reason
	return report, decision, nil
}
