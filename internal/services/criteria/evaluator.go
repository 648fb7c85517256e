package criteria

import (
	"fmt"

	"StockScreener/internal/domain/models"
)

// Options configure how a snapshot is judged.
type Options struct {
	Mode                     models.CombinationMode
	RSIMode                  RSIMode
	BiasPeriod               int
	RSIPeriod                int
	EnableFinancialFiltering bool
}

// Input is what a single evaluation reads.
type Input struct {
	Symbol       string
	TimeFrame    models.TimeFrame
	Snapshot     models.IndicatorSnapshot
	Fundamentals *models.FundamentalProfile
}

// Evaluate judges every criterion independently and combines them by mode.
// A criterion whose indicator or threshold is missing fails closed and is
// listed in Unevaluated. Evaluate never panics or returns an error.
func Evaluate(in Input, thresholds models.ThresholdSet, opts Options) models.FilterVerdict {
	e := &evaluation{
		snap:       in.Snapshot,
		thresholds: thresholds,
		per:        make(map[string]bool, 6),
		missing:    make(map[string]string),
	}

	bias := e.bias(opts.BiasPeriod)
	rsi := e.rsi(opts.RSIPeriod, opts.RSIMode)
	macd := e.macd()

	mode := opts.Mode
	passed := combine(mode, bias, rsi, macd)
	switch mode {
	case models.ModeAll, models.ModeAny, models.ModeMajority:
	default:
		mode = models.ModeAll
	}

	if opts.EnableFinancialFiltering {
		passed = e.financial(in.Fundamentals) && passed
	}

	v := models.FilterVerdict{
		Symbol:       in.Symbol,
		TimeFrame:    in.TimeFrame,
		Date:         in.Snapshot.Timestamp,
		Passed:       passed,
		Mode:         mode,
		PerCriterion: e.per,
		Snapshot:     in.Snapshot,
	}
	if len(e.missing) > 0 {
		v.Unevaluated = e.missing
	}
	return v
}

func combine(mode models.CombinationMode, checks ...bool) bool {
	count := 0
	for _, c := range checks {
		if c {
			count++
		}
	}
	switch mode {
	case models.ModeAny:
		return count >= 1
	case models.ModeMajority:
		return count >= 2
	case models.ModeAll:
		return count == len(checks)
	default:
		return count == len(checks)
	}
}

type evaluation struct {
	snap       models.IndicatorSnapshot
	thresholds models.ThresholdSet
	per        map[string]bool
	missing    map[string]string
}

func (e *evaluation) record(criterion string, ok bool) bool {
	e.per[criterion] = ok
	return ok
}

// value reads an indicator, recording why it cannot be used.
func (e *evaluation) value(criterion, indicator string) (float64, bool) {
	v, defined, present := e.snap.Lookup(indicator)
	if !present {
		e.missing[criterion] = (&models.MissingIndicatorError{Criterion: criterion, Indicator: indicator}).Error()
		return 0, false
	}
	if !defined {
		e.missing[criterion] = fmt.Sprintf("indicator %s undefined at latest point", indicator)
		return 0, false
	}
	return v, true
}

func (e *evaluation) threshold(criterion, name string) (models.Threshold, bool) {
	t, ok := e.thresholds[name]
	if !ok {
		e.missing[criterion] = fmt.Sprintf("threshold %s not configured", name)
	}
	return t, ok
}

func (e *evaluation) bias(period int) bool {
	v, ok := e.value(models.CriterionBias, models.BIASName(period, models.SourceClose))
	if !ok {
		return e.record(models.CriterionBias, false)
	}
	t, ok := e.threshold(models.CriterionBias, models.ThresholdBias)
	if !ok {
		return e.record(models.CriterionBias, false)
	}
	return e.record(models.CriterionBias, t.Check(v))
}

func (e *evaluation) rsi(period int, mode RSIMode) bool {
	v, ok := e.value(models.CriterionRSI, models.RSIName(period))
	if !ok {
		return e.record(models.CriterionRSI, false)
	}
	low, ok := e.threshold(models.CriterionRSI, models.ThresholdRSIOversold)
	if !ok {
		return e.record(models.CriterionRSI, false)
	}
	if mode == RSIOversold {
		return e.record(models.CriterionRSI, v < low.Value)
	}
	high, ok := e.threshold(models.CriterionRSI, models.ThresholdRSIOverbought)
	if !ok {
		return e.record(models.CriterionRSI, false)
	}
	return e.record(models.CriterionRSI, low.Check(v) && high.Check(v))
}

func (e *evaluation) macd() bool {
	m, ok := e.value(models.CriterionMACD, models.IndicatorMACD)
	if !ok {
		return e.record(models.CriterionMACD, false)
	}
	s, ok := e.value(models.CriterionMACD, models.IndicatorMACDSignal)
	if !ok {
		return e.record(models.CriterionMACD, false)
	}
	return e.record(models.CriterionMACD, m > s)
}

// financial gates on gross margin, ROE and R&D ratio. Unknown values pass.
func (e *evaluation) financial(p *models.FundamentalProfile) bool {
	var gm, roe, rd *float64
	if p != nil {
		gm, roe, rd = p.GrossMargin, p.ROE, p.RDRatio
	}
	checks := []struct {
		criterion string
		threshold string
		value     *float64
	}{
		{models.CriterionFinGrossMargin, models.ThresholdGrossMargin, gm},
		{models.CriterionFinROE, models.ThresholdROE, roe},
		{models.CriterionFinRDRatio, models.ThresholdRDRatio, rd},
	}
	all := true
	for _, c := range checks {
		ok := true
		if c.value != nil {
			if t, found := e.threshold(c.criterion, c.threshold); found {
				ok = t.Check(*c.value)
			} else {
				ok = false
			}
		}
		all = e.record(c.criterion, ok) && all
	}
	return all
}
