package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickel-watch/internal/alerting"
	"nickel-watch/internal/storage"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func sampleBars(n int) []storage.DailyBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	bars := make([]storage.DailyBar, n)
	for i := range bars {
		c := decimal.NewFromInt(int64(130000 + i*100))
		bars[i] = storage.DailyBar{
			Date:         start.AddDate(0, 0, i),
			Open:         decimal.NewNullDecimal(c.Sub(decimal.NewFromInt(50))),
			High:         decimal.NewNullDecimal(c.Add(decimal.NewFromInt(200))),
			Low:          decimal.NewNullDecimal(c.Sub(decimal.NewFromInt(200))),
			Close:        decimal.NewNullDecimal(c),
			Volume:       nd("250000"),
			OpenInterest: decimal.NewNullDecimal(decimal.NewFromInt(int64(100000 + i))),
		}
	}
	return bars
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "--", Price(decimal.NullDecimal{}))
	assert.Equal(t, "+1.25%", Percent(nd("1.25")))
	assert.Equal(t, "-0.60%", Percent(nd("-0.6")))
	assert.Equal(t, "up", Direction(nd("0")))
	assert.Equal(t, "down", Direction(nd("-1")))
	assert.Equal(t, "▼", Arrow(nd("-1")))
	assert.Equal(t, "", Arrow(decimal.NullDecimal{}))
	assert.Contains(t, Price(nd("128450.4")), "128")
}

func TestRenderChartPNG(t *testing.T) {
	bars := sampleBars(30)
	dates := make([]time.Time, len(bars))
	closes := make([]decimal.NullDecimal, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
		closes[i] = b.Close
	}
	closes[3] = decimal.NullDecimal{}

	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, ChartSeries{Title: "test", Dates: dates, Lines: []Line{{Name: "close", Values: closes}}}))
	_, err := png.Decode(&buf)
	require.NoError(t, err)
}

func TestRenderChartNotEnoughData(t *testing.T) {
	err := RenderChart(&bytes.Buffer{}, ChartSeries{
		Dates: []time.Time{time.Now()},
		Lines: []Line{{Values: []decimal.NullDecimal{nd("1")}}},
	})
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestBuilderInstrumentSection(t *testing.T) {
	chartDir := t.TempDir()
	b := NewBuilder(chartDir, 10, zerolog.Nop())
	sec := b.Instrument(InstrumentInput{Code: "NIZL.SHF", Name: "沪镍主力", Bars: sampleBars(80)})

	assert.Equal(t, "NIZL.SHF", sec.Code)
	assert.Equal(t, "137900", sec.Close.Decimal.String())
	assert.Equal(t, "100", sec.Change.Decimal.String())
	require.Len(t, sec.Rows, 10)
	assert.True(t, sec.Rows[0].Date.After(sec.Rows[1].Date))
	assert.True(t, sec.Rows[0].MA20.Valid)
	assert.True(t, strings.HasPrefix(string(sec.Chart), "data:image/png;base64,"))

	_, err := os.Stat(filepath.Join(chartDir, "NIZL_SHF_daily.png"))
	assert.NoError(t, err)
}

func TestBuilderEmptyInputs(t *testing.T) {
	b := NewBuilder("", 0, zerolog.Nop())
	sec := b.Instrument(InstrumentInput{Code: "SSZL.SHF"})
	assert.True(t, sec.Date.IsZero())
	assert.Empty(t, sec.Chart)

	m := b.Macro(MacroInput{Name: "美元指数"})
	assert.False(t, m.Value.Valid)
}

func TestBuilderMacroSection(t *testing.T) {
	b := NewBuilder("", 10, zerolog.Nop())
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local)
	m := b.Macro(MacroInput{Name: "LME镍库存", Unit: "吨", Points: []storage.SeriesPoint{
		{Date: day, Value: nd("70000")},
		{Date: day.AddDate(0, 0, 1), Value: nd("70700")},
		{Date: day.AddDate(0, 0, 2)},
	}})
	assert.Equal(t, "70700", m.Value.Decimal.String())
	assert.Equal(t, "1.00", m.ChangePct.Decimal.StringFixed(2))
	assert.NotEmpty(t, m.Chart)
}

func TestRenderRealtime(t *testing.T) {
	now := time.Date(2024, 5, 6, 10, 0, 30, 0, time.Local)
	page := RealtimePage{
		UpdatedAt:      now,
		RefreshSeconds: 30,
		Cards: []QuoteCard{CardFromObservation(alerting.Observation{
			InstrumentID: "NIZL.SHF", Name: "沪镍主力", Timestamp: now,
			Last: nd("131250"), ChangeRatio: nd("-0.35"),
		})},
		Alerts: []alerting.Condition{{
			InstrumentName: "沪镍主力", Type: alerting.ShortPrice, Severity: alerting.SeverityHigh,
			Message: "短期急跌 0.60%", Detail: "<b>x</b>", DetectedAt: now,
		}},
		Error: "timeout",
	}

	var buf bytes.Buffer
	require.NoError(t, RenderRealtime(&buf, page))
	html := buf.String()

	assert.Contains(t, html, `http-equiv="refresh" content="30"`)
	assert.Contains(t, html, "沪镍主力")
	assert.Contains(t, html, "短期急跌 0.60%")
	assert.Contains(t, html, "-0.35%")
	assert.Contains(t, html, "获取数据失败")
	assert.Contains(t, html, "10:00:30")
	assert.NotContains(t, html, "<b>x</b>")
}

func TestRenderDashboard(t *testing.T) {
	b := NewBuilder("", 5, zerolog.Nop())
	page := DashboardPage{
		GeneratedAt: time.Now(),
		Instruments: []InstrumentSection{b.Instrument(InstrumentInput{Code: "NIZL.SHF", Name: "沪镍主力", Bars: sampleBars(25)})},
		Macro:       []MacroSection{{Name: "美元指数", Unit: "点", Value: nd("104.2")}},
		Signals: []Signal{{
			Date:      time.Now(),
			Condition: alerting.Condition{InstrumentName: "沪镍主力", Type: alerting.OpenInterest, Severity: alerting.SeverityMedium, Message: "大幅增仓 1.20%"},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderDashboard(&buf, page))
	html := buf.String()

	assert.Contains(t, html, "研究看板")
	assert.Contains(t, html, "异常信号")
	assert.Contains(t, html, "持仓")
	assert.Contains(t, html, "大幅增仓 1.20%")
	assert.Contains(t, html, "美元指数")
	assert.Contains(t, html, "data:image/png;base64,")
	assert.Equal(t, 5, strings.Count(html, "<td>2024-01-"))
}
