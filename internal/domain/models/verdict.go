package models

import (
	"fmt"
	"time"
)

// CombinationMode selects how technical criteria combine into a verdict.
type CombinationMode string

const (
	ModeAll      CombinationMode = "all"
	ModeAny      CombinationMode = "any"
	ModeMajority CombinationMode = "majority"
)

// Criterion names reported in FilterVerdict.PerCriterion.
const (
	CriterionBias            = "bias"
	CriterionRSI             = "rsi"
	CriterionMACD            = "macd"
	CriterionFinGrossMargin  = "financial_gross_margin"
	CriterionFinROE          = "financial_roe"
	CriterionFinRDRatio      = "financial_rd_ratio"
	CriterionFinancialFilter = "financial"
)

// FilterVerdict is the immutable outcome of evaluating one snapshot.
type FilterVerdict struct {
	Symbol       string            `json:"symbol"`
	TimeFrame    TimeFrame         `json:"time_frame"`
	Date         time.Time         `json:"date"`
	Passed       bool              `json:"passed"`
	Mode         CombinationMode   `json:"mode"`
	PerCriterion map[string]bool   `json:"per_criterion"`
	Unevaluated  map[string]string `json:"unevaluated,omitempty"`
	Snapshot     IndicatorSnapshot `json:"snapshot"`
}

// TrendAction is the outcome of the trend decision.
type TrendAction string

const (
	ActionBuy    TrendAction = "Buy"
	ActionSell   TrendAction = "Sell"
	ActionReject TrendAction = "Reject"
)

// TrendDecision is derived per analysis run and never stored on its own.
type TrendDecision struct {
	Symbol string      `json:"symbol"`
	Action TrendAction `json:"action"`
	Reason string      `json:"reason"`
}

// SlopeDirection classifies the latest EMA slope.
type SlopeDirection string

const (
	SlopeUp   SlopeDirection = "Up"
	SlopeDown SlopeDirection = "Down"
	SlopeFlat SlopeDirection = "Flat"
)

// SlopeStatus is the direction of the latest slope and how many periods it has held.
// For Flat, Duration is the length of the up-run that preceded the flat tail.
type SlopeStatus struct {
	Direction SlopeDirection `json:"direction"`
	Duration  int            `json:"duration"`
}

func (s SlopeStatus) String() string {
	if s.Direction == SlopeFlat || s.Direction == "" {
		return string(SlopeFlat)
	}
	return fmt.Sprintf("%s (%d)", s.Direction, s.Duration)
}

// StockRef identifies the analyzed company.
type StockRef struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// TrendTechnical is the technical section of a trend report.
type TrendTechnical struct {
	MeetsCriteria     bool     `json:"meets_criteria"`
	EMASlopeStatus    string   `json:"ema_slope_status"`
	EMASlopeValue     *float64 `json:"ema_slope_value"`
	EMASlopeDuration  int      `json:"ema_slope_duration"`
	BiasValue         *float64 `json:"bias_value"`
	BiasMeetsCriteria bool     `json:"bias_meets_criteria"`
}

// TrendReport is the per-symbol result of a trend analysis.
type TrendReport struct {
	Stock        StockRef            `json:"stock"`
	TrendStatus  *TrendTechnical     `json:"trend_status,omitempty"`
	Fundamentals *FundamentalProfile `json:"fundamentals,omitempty"`
	Criteria     map[string]bool     `json:"fundamental_criteria,omitempty"`
	Verdict      TrendAction         `json:"verdict,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	AnalysisTime time.Time           `json:"analysis_time"`
	Error        string              `json:"error,omitempty"`
}
