package indicators

import "math"

// undefined marks a warm-up or guarded value inside a computed column.
var undefined = math.NaN()

func isDefined(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func firstDefined(values []float64) int {
	for i, v := range values {
		if isDefined(v) {
			return i
		}
	}
	return -1
}

// EMA computes the exponential moving average with alpha = 2/(period+1).
// The recursion is seeded with the first defined value; points before
// seed+period-1 are reported undefined.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = undefined
	}
	if period <= 0 {
		return out
	}
	start := firstDefined(values)
	if start < 0 {
		return out
	}

	alpha := 2.0 / float64(period+1)
	prev := values[start]
	for i := start; i < len(values); i++ {
		if i > start {
			v := values[i]
			if !isDefined(v) {
				v = prev
			}
			prev = alpha*v + (1-alpha)*prev
		}
		if i >= start+period-1 {
			out[i] = prev
		}
	}
	return out
}

// Bias computes (price - ema) / ema * 100. Undefined where ema is undefined or zero.
func Bias(prices, ema []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		out[i] = undefined
		if i >= len(ema) || !isDefined(ema[i]) || ema[i] == 0 {
			continue
		}
		out[i] = (prices[i] - ema[i]) / ema[i] * 100
	}
	return out
}
