package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DailyBar is one trading day of a futures contract.
type DailyBar struct {
	Date         time.Time
	Open         decimal.NullDecimal
	High         decimal.NullDecimal
	Low          decimal.NullDecimal
	Close        decimal.NullDecimal
	Volume       decimal.NullDecimal
	Amount       decimal.NullDecimal
	OpenInterest decimal.NullDecimal
	ChangeRatio  decimal.NullDecimal
}

// SeriesPoint is one dated value of a macro series.
type SeriesPoint struct {
	Date  time.Time
	Value decimal.NullDecimal
}

// Snapshot is one line of the realtime snapshot log.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// LastTwo returns the most recent bar with a close and the one before it.
// prev is nil when fewer than two such bars exist.
func LastTwo(bars []DailyBar) (last, prev *DailyBar) {
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Close.Valid {
			continue
		}
		if last == nil {
			last = &bars[i]
			continue
		}
		prev = &bars[i]
		break
	}
	return last, prev
}

// LastTwoPoints is LastTwo for macro series, skipping missing values.
func LastTwoPoints(points []SeriesPoint) (last, prev *SeriesPoint) {
	for i := len(points) - 1; i >= 0; i-- {
		if !points[i].Value.Valid {
			continue
		}
		if last == nil {
			last = &points[i]
			continue
		}
		prev = &points[i]
		break
	}
	return last, prev
}
