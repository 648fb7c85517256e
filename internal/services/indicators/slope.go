package indicators

import (
	"math"

	"StockScreener/internal/domain/models"
)

// SlopeAngles fits a least-squares line to each trailing window of defined
// values and returns the slope as an angle in degrees.
func SlopeAngles(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = undefined
	}
	if window < 2 {
		return out
	}
	start := firstDefined(values)
	if start < 0 {
		return out
	}
	for i := start + window - 1; i < len(values); i++ {
		slope, ok := leastSquaresSlope(values[i-window+1 : i+1])
		if !ok {
			continue
		}
		out[i] = math.Atan(slope) * 180 / math.Pi
	}
	return out
}

func leastSquaresSlope(ys []float64) (float64, bool) {
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		if !isDefined(y) {
			return 0, false
		}
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / den, true
}

// UptrendDuration counts the trailing run of slopes strictly above minSlope.
func UptrendDuration(slopes []float64, minSlope float64) int {
	return suffixRun(slopes, len(slopes)-1, func(s float64) bool { return s > minSlope })
}

// TrendStatus classifies the latest slope. Up and Down carry the length of
// their trailing run; Flat carries the length of the up-run that immediately
// preceded the flat tail (zero if a down slope or warm-up came first).
func TrendStatus(slopes []float64, minSlope float64) models.SlopeStatus {
	last := len(slopes) - 1
	if last < 0 || !isDefined(slopes[last]) {
		return models.SlopeStatus{Direction: models.SlopeFlat}
	}

	up := func(s float64) bool { return s > minSlope }
	down := func(s float64) bool { return s < -minSlope }
	flat := func(s float64) bool { return isDefined(s) && !up(s) && !down(s) }

	switch latest := slopes[last]; {
	case up(latest):
		return models.SlopeStatus{Direction: models.SlopeUp, Duration: suffixRun(slopes, last, up)}
	case down(latest):
		return models.SlopeStatus{Direction: models.SlopeDown, Duration: suffixRun(slopes, last, down)}
	default:
		i := last - suffixRun(slopes, last, flat)
		return models.SlopeStatus{Direction: models.SlopeFlat, Duration: suffixRun(slopes, i, up)}
	}
}

func suffixRun(values []float64, from int, match func(float64) bool) int {
	n := 0
	for i := from; i >= 0; i-- {
		if !isDefined(values[i]) || !match(values[i]) {
			break
		}
		n++
	}
	return n
}
