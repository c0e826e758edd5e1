package report

import (
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nickel-watch/internal/alerting"
	"nickel-watch/internal/indicator"
	"nickel-watch/internal/storage"
)

// 图表窗口：最近 60 个交易日
const defaultChartDays = 60

// InstrumentInput is the daily history of one contract.
type InstrumentInput struct {
	Code string
	Name string
	Bars []storage.DailyBar
}

// MacroInput is one stored macro series.
type MacroInput struct {
	Name     string
	Unit     string
	Category string
	Points   []storage.SeriesPoint
}

// Row is one line of the recent daily table.
type Row struct {
	Date         time.Time
	Open         decimal.NullDecimal
	High         decimal.NullDecimal
	Low          decimal.NullDecimal
	Close        decimal.NullDecimal
	ChangePct    decimal.NullDecimal
	Volume       decimal.NullDecimal
	OpenInterest decimal.NullDecimal
	MA5          decimal.NullDecimal
	MA10         decimal.NullDecimal
	MA20         decimal.NullDecimal
}

// InstrumentSection is the rendered summary of one contract.
type InstrumentSection struct {
	Code         string
	Name         string
	Date         time.Time
	Close        decimal.NullDecimal
	Change       decimal.NullDecimal
	ChangePct    decimal.NullDecimal
	High         decimal.NullDecimal
	Low          decimal.NullDecimal
	Volume       decimal.NullDecimal
	OpenInterest decimal.NullDecimal
	OIChangePct  decimal.NullDecimal
	Chart        template.URL
	Rows         []Row
}

// MacroSection is the rendered summary of one macro series.
type MacroSection struct {
	Name      string
	Unit      string
	Category  string
	Date      time.Time
	Value     decimal.NullDecimal
	Change    decimal.NullDecimal
	ChangePct decimal.NullDecimal
	Chart     template.URL
}

// Builder turns stored data into page sections, rendering charts on the way.
type Builder struct {
	// ChartDir 非空时同时把图表写成 PNG 文件
	ChartDir  string
	ChartDays int
	TableRows int
	logger    zerolog.Logger
}

// NewBuilder returns a builder with the given chart directory and table size.
func NewBuilder(chartDir string, tableRows int, logger zerolog.Logger) *Builder {
	if tableRows <= 0 {
		tableRows = 10
	}
	return &Builder{
		ChartDir:  chartDir,
		ChartDays: defaultChartDays,
		TableRows: tableRows,
		logger:    logger.With().Str("component", "report").Logger(),
	}
}

// Instrument builds the summary, MA chart and recent rows for one contract.
func (b *Builder) Instrument(in InstrumentInput) InstrumentSection {
	sec := InstrumentSection{Code: in.Code, Name: in.Name}
	last, prev := storage.LastTwo(in.Bars)
	if last == nil {
		return sec
	}

	sec.Date = last.Date
	sec.Close = last.Close
	sec.High = last.High
	sec.Low = last.Low
	sec.Volume = last.Volume
	sec.OpenInterest = last.OpenInterest
	if prev != nil {
		sec.Change = decimal.NewNullDecimal(last.Close.Decimal.Sub(prev.Close.Decimal))
		sec.ChangePct = indicator.PercentChange(prev.Close.Decimal, last.Close.Decimal)
		if last.OpenInterest.Valid && prev.OpenInterest.Valid {
			sec.OIChangePct = indicator.PercentChange(prev.OpenInterest.Decimal, last.OpenInterest.Decimal)
		}
	}

	bars := closedBars(in.Bars)
	if len(bars) > b.ChartDays {
		bars = bars[len(bars)-b.ChartDays:]
	}

	closes := make([]float64, len(bars))
	dates := make([]time.Time, len(bars))
	closeValues := make([]decimal.NullDecimal, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close.Decimal.InexactFloat64()
		dates[i] = bar.Date
		closeValues[i] = bar.Close
	}
	ma5, ma10, ma20 := indicator.Standard(closes)

	sec.Chart = b.chart(in.Code+"_daily", ChartSeries{
		Title: fmt.Sprintf("%s（%s）收盘价 / 均线", in.Name, in.Code),
		Dates: dates,
		Lines: []Line{
			{Name: "收盘", Values: closeValues},
			{Name: "MA5", Values: ma5},
			{Name: "MA10", Values: ma10},
			{Name: "MA20", Values: ma20},
		},
	})

	for i := len(bars) - 1; i >= 0 && len(sec.Rows) < b.TableRows; i-- {
		bar := bars[i]
		row := Row{
			Date:         bar.Date,
			Open:         bar.Open,
			High:         bar.High,
			Low:          bar.Low,
			Close:        bar.Close,
			Volume:       bar.Volume,
			OpenInterest: bar.OpenInterest,
			MA5:          ma5[i],
			MA10:         ma10[i],
			MA20:         ma20[i],
		}
		if i > 0 {
			row.ChangePct = indicator.PercentChange(bars[i-1].Close.Decimal, bar.Close.Decimal)
		}
		sec.Rows = append(sec.Rows, row)
	}
	return sec
}

// Macro builds the latest value, change and chart for one macro series.
func (b *Builder) Macro(in MacroInput) MacroSection {
	sec := MacroSection{Name: in.Name, Unit: in.Unit, Category: in.Category}
	last, prev := storage.LastTwoPoints(in.Points)
	if last == nil {
		return sec
	}
	sec.Date = last.Date
	sec.Value = last.Value
	if prev != nil {
		sec.Change = decimal.NewNullDecimal(last.Value.Decimal.Sub(prev.Value.Decimal))
		sec.ChangePct = indicator.PercentChange(prev.Value.Decimal, last.Value.Decimal)
	}

	dates := make([]time.Time, len(in.Points))
	values := make([]decimal.NullDecimal, len(in.Points))
	for i, p := range in.Points {
		dates[i] = p.Date
		values[i] = p.Value
	}
	sec.Chart = b.chart("macro_"+in.Name, ChartSeries{
		Title:  in.Name,
		Dates:  dates,
		Lines:  []Line{{Name: in.Name, Values: values}},
		Height: 260,
	})
	return sec
}

func (b *Builder) chart(name string, cs ChartSeries) template.URL {
	uri, png, err := ChartDataURI(cs)
	if err != nil {
		if err != ErrNotEnoughData {
			b.logger.Warn().Err(err).Str("chart", name).Msg("绘制图表失败")
		}
		return ""
	}
	if b.ChartDir != "" {
		path := filepath.Join(b.ChartDir, storage.SafeName(name)+".png")
		if err := storage.WriteFileAtomic(path, png); err != nil {
			b.logger.Warn().Err(err).Str("path", path).Msg("保存图表失败")
		}
	}
	return uri
}

func closedBars(bars []storage.DailyBar) []storage.DailyBar {
	out := make([]storage.DailyBar, 0, len(bars))
	for _, bar := range bars {
		if bar.Close.Valid {
			out = append(out, bar)
		}
	}
	return out
}

// Signal is a close-to-close alert shown on the dashboard banner.
type Signal struct {
	Date      time.Time
	Condition alerting.Condition
}
