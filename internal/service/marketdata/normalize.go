package marketdata

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"StockScreener/internal/domain/models"
	xutil "StockScreener/pkg/util"
)

type column int

const (
	colNone column = iota
	colDate
	colOpen
	colHigh
	colLow
	colClose
	colAdjClose
	colVolume
)

// aliases maps upstream column names, lower-cased, to price fields.
var aliases = map[string]column{
	"date": colDate, "timestamp": colDate, "time": colDate, "datetime": colDate, "日期": colDate,
	"open": colOpen, "1. open": colOpen, "o": colOpen, "开盘": colOpen,
	"high": colHigh, "2. high": colHigh, "h": colHigh, "最高": colHigh,
	"low": colLow, "3. low": colLow, "l": colLow, "最低": colLow,
	"close": colClose, "4. close": colClose, "c": colClose, "收盘": colClose,
	"adjclose": colAdjClose, "adj close": colAdjClose, "adjusted_close": colAdjClose, "5. adjusted close": colAdjClose,
	"volume": colVolume, "5. volume": colVolume, "6. volume": colVolume, "v": colVolume, "成交量": colVolume,
}

// NormalizeHistory converts a provider payload into an ascending series.
// Rows may sit under "historical", at the root as an array, or in an object
// keyed by date. Rows without a date or any price are dropped, missing OHLC
// fields fall back to the close, and duplicate timestamps keep the last row.
func NormalizeHistory(body []byte) (models.PriceSeries, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("normalize history: invalid json")
	}
	root := gjson.ParseBytes(body)

	byTime := make(map[int64]models.PricePoint)
	add := func(dateKey string, row gjson.Result) {
		if p, ok := normalizeRow(dateKey, row); ok {
			byTime[p.Timestamp.Unix()] = p
		}
	}

	switch rows := locateRows(root); {
	case rows.IsArray():
		rows.ForEach(func(_, row gjson.Result) bool {
			add("", row)
			return true
		})
	case rows.IsObject():
		rows.ForEach(func(key, row gjson.Result) bool {
			add(key.String(), row)
			return true
		})
	}

	out := make(models.PriceSeries, 0, len(byTime))
	for _, p := range byTime {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func locateRows(root gjson.Result) gjson.Result {
	if h := root.Get("historical"); h.Exists() {
		return h
	}
	if root.IsArray() {
		return root
	}
	var found gjson.Result
	root.ForEach(func(key, value gjson.Result) bool {
		if value.IsObject() && strings.HasPrefix(strings.ToLower(key.String()), "time series") {
			found = value
			return false
		}
		return true
	})
	return found
}

func normalizeRow(dateKey string, row gjson.Result) (models.PricePoint, bool) {
	if !row.IsObject() {
		return models.PricePoint{}, false
	}
	var p models.PricePoint
	var haveDate bool
	var open, high, low, close, adj, vol *float64

	num := func(v gjson.Result) *float64 {
		if v.Type == gjson.Null || v.String() == "" {
			return nil
		}
		f := v.Float()
		return &f
	}

	if dateKey != "" {
		p.Timestamp, haveDate = xutil.ParseTime(dateKey)
	}
	row.ForEach(func(key, value gjson.Result) bool {
		switch aliases[strings.ToLower(strings.TrimSpace(key.String()))] {
		case colDate:
			if !haveDate {
				p.Timestamp, haveDate = xutil.ParseTime(value.String())
			}
		case colOpen:
			open = num(value)
		case colHigh:
			high = num(value)
		case colLow:
			low = num(value)
		case colClose:
			close = num(value)
		case colAdjClose:
			adj = num(value)
		case colVolume:
			vol = num(value)
		}
		return true
	})

	if !haveDate {
		return p, false
	}
	if close == nil {
		close = adj
	}
	if close == nil {
		close = open
	}
	if close == nil {
		return p, false
	}
	pick := func(v *float64) float64 {
		if v != nil {
			return *v
		}
		return *close
	}
	p.Timestamp = p.Timestamp.UTC()
	p.Open, p.High, p.Low, p.Close = pick(open), pick(high), pick(low), *close
	if vol != nil {
		p.Volume = *vol
	}
	return p, true
}
