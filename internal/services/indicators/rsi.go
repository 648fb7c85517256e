package indicators

// RSI computes the Relative Strength Index with Wilder smoothing. The averages
// are seeded with the simple mean of the first period changes, so the first
// value appears at index period. A zero average loss yields 100.
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = undefined
	}
	if period <= 0 || len(values) <= period {
		return out
	}

	var avgGain, avgLoss float64
	p := float64(period)
	for i := 1; i < len(values); i++ {
		gain, loss := 0.0, 0.0
		if delta := values[i] - values[i-1]; delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		switch {
		case i < period:
			avgGain += gain
			avgLoss += loss
			continue
		case i == period:
			avgGain = (avgGain + gain) / p
			avgLoss = (avgLoss + loss) / p
		default:
			avgGain = (avgGain*(p-1) + gain) / p
			avgLoss = (avgLoss*(p-1) + loss) / p
		}
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
