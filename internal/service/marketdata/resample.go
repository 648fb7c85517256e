package marketdata

import (
	"StockScreener/internal/domain/models"
	xutil "StockScreener/pkg/util"
)

// Resample aggregates an ascending daily series into weekly or monthly bars:
// first open, highest high, lowest low, last close and summed volume. Each bar
// carries the timestamp of the last daily bar of its period. Daily input is
// returned unchanged.
func Resample(series models.PriceSeries, tf models.TimeFrame) models.PriceSeries {
	if tf == models.Daily || len(series) == 0 {
		return series
	}
	period := string(tf)

	out := make(models.PriceSeries, 0, len(series)/4+1)
	var cur models.PricePoint
	var curStart int64
	open := false

	for _, p := range series {
		start := xutil.PeriodStart(p.Timestamp, period).Unix()
		if open && start == curStart {
			if p.High > cur.High {
				cur.High = p.High
			}
			if p.Low < cur.Low {
				cur.Low = p.Low
			}
			cur.Close = p.Close
			cur.Volume += p.Volume
			cur.Timestamp = p.Timestamp
			continue
		}
		if open {
			out = append(out, cur)
		}
		cur, curStart, open = p, start, true
	}
	if open {
		out = append(out, cur)
	}
	return out
}
