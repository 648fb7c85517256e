package models

// CompareOp is the comparison direction of a threshold.
type CompareOp string

const (
	OpLT  CompareOp = "lt"
	OpLTE CompareOp = "lte"
	OpGT  CompareOp = "gt"
	OpGTE CompareOp = "gte"
)

// Threshold is a bound together with the direction a value must satisfy.
type Threshold struct {
	Value float64   `json:"value" yaml:"value"`
	Op    CompareOp `json:"op" yaml:"op"`
}

// Check reports whether v satisfies the threshold.
func (t Threshold) Check(v float64) bool {
	switch t.Op {
	case OpLT:
		return v < t.Value
	case OpLTE:
		return v <= t.Value
	case OpGT:
		return v > t.Value
	default:
		return v >= t.Value
	}
}

// Threshold names used by the screening criteria.
const (
	ThresholdBias          = "bias"
	ThresholdRSIOversold   = "rsi_oversold"
	ThresholdRSIOverbought = "rsi_overbought"
	ThresholdGrossMargin   = "gross_margin"
	ThresholdROE           = "roe"
	ThresholdRDRatio       = "rd_ratio"
)

// ThresholdSet maps a criterion bound name to its threshold for one time frame.
type ThresholdSet map[string]Threshold

// Clone returns an independent copy.
func (s ThresholdSet) Clone() ThresholdSet {
	out := make(ThresholdSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns a copy with override values applied to keys that already exist.
// Unknown keys are ignored and never stored; comparison directions are kept.
func (s ThresholdSet) Merge(overrides map[string]float64) ThresholdSet {
	out := s.Clone()
	for k, v := range overrides {
		t, ok := out[k]
		if !ok {
			continue
		}
		t.Value = v
		out[k] = t
	}
	return out
}
