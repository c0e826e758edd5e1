package alerting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type finding struct {
	changePct decimal.Decimal
	severity  Severity
	message   string
	detail    string
}

// check pairs a condition type with its detector. Detectors skip (return false)
// whenever a value they need is missing or a denominator would be zero.
type check struct {
	kind   ConditionType
	detect func(in Input, th Thresholds) (finding, bool)
}

func defaultChecks() []check {
	return []check{
		{kind: DayPrice, detect: detectDayPrice},
		{kind: ShortPrice, detect: detectShortPrice},
		{kind: OpenInterest, detect: detectOpenInterest},
		{kind: DayHigh, detect: detectDayHigh},
		{kind: DayLow, detect: detectDayLow},
	}
}

func detectDayPrice(in Input, th Thresholds) (finding, bool) {
	if !th.DayPricePct.IsPositive() {
		return finding{}, false
	}
	open, ok := nonZero(in.DayOpen)
	if !ok {
		return finding{}, false
	}
	last, ok := nonZero(in.Current.Last)
	if !ok {
		return finding{}, false
	}

	pct := percentChange(open, last)
	magnitude := pct.Abs()
	if magnitude.LessThan(th.DayPricePct) {
		return finding{}, false
	}

	severity := SeverityMedium
	if magnitude.GreaterThanOrEqual(th.DayPricePct.Mul(th.highMultiple())) {
		severity = SeverityHigh
	}

	return finding{
		changePct: pct,
		severity:  severity,
		message:   fmt.Sprintf("日内%s %s%%", direction(pct, "上涨", "下跌"), magnitude.StringFixed(2)),
		detail:    fmt.Sprintf("开盘 %s → 现价 %s", formatPrice(open), formatPrice(last)),
	}, true
}

func detectShortPrice(in Input, th Thresholds) (finding, bool) {
	if in.Previous == nil || !th.ShortPricePct.IsPositive() {
		return finding{}, false
	}
	prev, ok := nonZero(in.Previous.Last)
	if !ok {
		return finding{}, false
	}
	last, ok := nonZero(in.Current.Last)
	if !ok {
		return finding{}, false
	}

	pct := percentChange(prev, last)
	magnitude := pct.Abs()
	if magnitude.LessThan(th.ShortPricePct) {
		return finding{}, false
	}

	return finding{
		changePct: pct,
		severity:  th.severity(ShortPrice),
		message:   fmt.Sprintf("短期%s %s%%", direction(pct, "急涨", "急跌"), magnitude.StringFixed(2)),
		detail: fmt.Sprintf("%s → %s%s", formatPrice(prev), formatPrice(last),
			windowLabel(in.Previous.Timestamp, in.Current.Timestamp)),
	}, true
}

func detectOpenInterest(in Input, th Thresholds) (finding, bool) {
	if in.Previous == nil || !th.OIPct.IsPositive() {
		return finding{}, false
	}
	prev, ok := nonZero(in.Previous.OpenInterest)
	if !ok {
		return finding{}, false
	}
	current, ok := nonZero(in.Current.OpenInterest)
	if !ok {
		return finding{}, false
	}

	pct := percentChange(prev, current)
	magnitude := pct.Abs()
	if magnitude.LessThan(th.OIPct) {
		return finding{}, false
	}

	return finding{
		changePct: pct,
		severity:  th.severity(OpenInterest),
		message:   fmt.Sprintf("大幅%s %s%%", direction(pct, "增仓", "减仓"), magnitude.StringFixed(2)),
		detail:    fmt.Sprintf("%s → %s", formatPrice(prev), formatPrice(current)),
	}, true
}

func detectDayHigh(in Input, th Thresholds) (finding, bool) {
	high, ok := nonZero(in.Current.High)
	if !ok {
		return finding{}, false
	}
	last, ok := nonZero(in.Current.Last)
	if !ok {
		return finding{}, false
	}

	floor := high.Mul(decimal.NewFromInt(1).Sub(th.NearHighPct.Div(hundred)))
	if last.LessThan(floor) {
		return finding{}, false
	}

	return finding{
		changePct: percentChange(high, last),
		severity:  th.severity(DayHigh),
		message:   "触及日内新高",
		detail:    fmt.Sprintf("最高 %s", formatPrice(high)),
	}, true
}

func detectDayLow(in Input, th Thresholds) (finding, bool) {
	low, ok := nonZero(in.Current.Low)
	if !ok {
		return finding{}, false
	}
	last, ok := nonZero(in.Current.Last)
	if !ok {
		return finding{}, false
	}

	ceiling := low.Mul(decimal.NewFromInt(1).Add(th.NearLowPct.Div(hundred)))
	if last.GreaterThan(ceiling) {
		return finding{}, false
	}

	return finding{
		changePct: percentChange(low, last),
		severity:  th.severity(DayLow),
		message:   "触及日内新低",
		detail:    fmt.Sprintf("最低 %s", formatPrice(low)),
	}, true
}

func direction(pct decimal.Decimal, up, down string) string {
	if pct.IsNegative() {
		return down
	}
	return up
}

func windowLabel(prev, current time.Time) string {
	if prev.IsZero() || current.IsZero() || !current.After(prev) {
		return ""
	}
	seconds := int64(current.Sub(prev).Round(time.Second) / time.Second)
	return fmt.Sprintf(" (%d秒内)", seconds)
}
