package fetcher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nickel-watch/internal/alerting"
)

// 实时行情字段，顺序与接口请求一致
var RealtimeIndicators = []string{
	"latest", "open", "high", "low", "volume", "amount", "openInterest", "changeRatio",
}

// 日线历史字段
var DailyIndicators = []string{
	"open", "high", "low", "close", "volume", "amount", "openInterest", "changeRatio",
}

// Quote is one realtime row for a contract.
type Quote struct {
	Code         string `json:"code"`
	Time         string `json:"time,omitempty"`
	Latest       Value  `json:"latest"`
	Open         Value  `json:"open"`
	High         Value  `json:"high"`
	Low          Value  `json:"low"`
	Volume       Value  `json:"volume"`
	Amount       Value  `json:"amount"`
	OpenInterest Value  `json:"openInterest"`
	ChangeRatio  Value  `json:"changeRatio"`
}

// Observation converts the quote into the alerting model.
func (q Quote) Observation(name string, ts time.Time) alerting.Observation {
	return alerting.Observation{
		InstrumentID: q.Code,
		Name:         name,
		Timestamp:    ts,
		Last:         q.Latest.NullDecimal,
		Open:         q.Open.NullDecimal,
		High:         q.High.NullDecimal,
		Low:          q.Low.NullDecimal,
		Volume:       q.Volume.NullDecimal,
		Amount:       q.Amount.NullDecimal,
		OpenInterest: q.OpenInterest.NullDecimal,
		ChangeRatio:  q.ChangeRatio.NullDecimal,
	}
}

// Series is a column oriented table returned by history endpoints.
type Series struct {
	Code    string
	Dates   []string
	Columns map[string][]Value
}

// Len returns the number of rows.
func (s Series) Len() int {
	return len(s.Dates)
}

// Get returns the value of column name at row i.
func (s Series) Get(name string, i int) decimal.NullDecimal {
	return At(s.Columns[name], i)
}

// Point is a single dated value of an EDB series.
type Point struct {
	Date  string `json:"date"`
	Value Value  `json:"value"`
}

// APIError reports a non-zero errorcode from the data API.
type APIError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ifind api error [%s] (%d)", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("ifind api error [%s] (%d): %s", e.Endpoint, e.Code, e.Message)
}
