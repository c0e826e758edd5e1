// Package indicator computes chart overlays for daily bars.
package indicator

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// 均线展示精度
const displayPlaces = 1

// MovingAverage 返回与 values 等长的简单移动平均。
// i+1 >= minPeriods 时有值：窗口未满取已有数据的均值，窗口满后取最近 period 个值的均值。
// 其余位置为无效值。结果四舍五入到 1 位小数。
func MovingAverage(values []float64, period, minPeriods int) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}
	if minPeriods <= 0 {
		minPeriods = 1
	}
	if minPeriods > period {
		minPeriods = period
	}

	// 预热段：窗口未满
	sum := 0.0
	for i := 0; i < len(values) && i < period-1; i++ {
		sum += values[i]
		if i+1 >= minPeriods {
			out[i] = round(sum / float64(i+1))
		}
	}

	if len(values) < period {
		return out
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	full := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	for j, v := range full {
		out[period-1+j] = round(v)
	}
	return out
}

// Standard 返回 MA5/MA10/MA20 三条均线，起始位置分别为第 1、5、10 根。
func Standard(closes []float64) (ma5, ma10, ma20 []decimal.NullDecimal) {
	return MovingAverage(closes, 5, 1),
		MovingAverage(closes, 10, 5),
		MovingAverage(closes, 20, 10)
}

func round(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v).Round(displayPlaces))
}

// PercentChange returns (to-from)/from*100, invalid when from is zero.
func PercentChange(from, to decimal.Decimal) decimal.NullDecimal {
	if from.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(to.Sub(from).Div(from).Mul(decimal.NewFromInt(100)))
}
