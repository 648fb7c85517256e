package indicators

// MACDResult holds the three aligned MACD columns.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow), its signal EMA and the histogram.
// MACD is defined once the slow EMA is; the signal EMA is seeded with the
// first defined MACD value.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	n := len(values)
	res := MACDResult{
		MACD:      make([]float64, n),
		Signal:    make([]float64, n),
		Histogram: make([]float64, n),
	}

	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	for i := 0; i < n; i++ {
		res.MACD[i] = undefined
		if isDefined(fastEMA[i]) && isDefined(slowEMA[i]) {
			res.MACD[i] = fastEMA[i] - slowEMA[i]
		}
	}

	res.Signal = EMA(res.MACD, signal)
	for i := 0; i < n; i++ {
		res.Histogram[i] = undefined
		if isDefined(res.MACD[i]) && isDefined(res.Signal[i]) {
			res.Histogram[i] = res.MACD[i] - res.Signal[i]
		}
	}
	return res
}
