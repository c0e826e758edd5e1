package app

import (
	"bytes"
	"context"
	"errors"
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
	"nickel-watch/internal/config"
	"nickel-watch/internal/service"
	"nickel-watch/internal/storage"
)

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  timezone: UTC\n"), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.Daily.RawDir = filepath.Join(dir, "raw")
	cfg.Macro.Dir = filepath.Join(dir, "macro")
	cfg.Report.ChartDir = ""
	cfg.Report.Output = filepath.Join(dir, "dashboard.html")
	cfg.Report.RealtimeOutput = filepath.Join(dir, "realtime.html")
	cfg.Monitor.SnapshotDir = ""

	var out bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &out
	return a, &out
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func observation(code, name, last, ratio string) alerting.Observation {
	return alerting.Observation{
		InstrumentID: code,
		Name:         name,
		Last:         dec(last),
		Open:         dec("100000"),
		High:         dec("101000"),
		Low:          dec("99000"),
		OpenInterest: dec("120000"),
		Volume:       dec("5000"),
		ChangeRatio:  dec(ratio),
	}
}

func TestStatusPrinterPrintsTableAndAlerts(t *testing.T) {
	var buf bytes.Buffer
	p := NewStatusPrinter(&buf, 8)

	at := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), service.Cycle{
		At:           at,
		Observations: []alerting.Observation{observation("NIZL.SHF", "沪镍主力", "100500", "0.5")},
		Recent: []alerting.Condition{{
			InstrumentName: "沪镍主力",
			Message:        "短期急涨 0.60%",
			Severity:       alerting.SeverityHigh,
			DetectedAt:     at,
		}},
		Interval: 30 * time.Second,
	})
	require.NoError(t, err)

	out := buf.String()
	for _, want := range []string{"2024-05-06 10:00:00", "沪镍主力", "NIZL.SHF", "▲ +0.50%", "短期急涨 0.60%", "30s"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "\x1b[", "非终端输出不应带颜色")
}

func TestStatusPrinterReportsFetchError(t *testing.T) {
	var buf bytes.Buffer
	p := NewStatusPrinter(&buf, 8)

	err := p.Publish(context.Background(), service.Cycle{At: time.Now(), Err: errors.New("boom\nline")})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "获取行情失败: boom line")
}

func TestLivePageWritesCards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live", "realtime.html")
	page := NewLivePage(path, nil, nil, zerolog.Nop())

	err := page.Publish(context.Background(), service.Cycle{
		At:           time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC),
		Observations: []alerting.Observation{observation("SSZL.SHF", "不锈钢主力", "13500", "-0.3")},
		Interval:     30 * time.Second,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, "不锈钢主力")
	assert.Contains(t, html, `content="30"`)
}

func TestSimulateAlertNotifiesShortMove(t *testing.T) {
	a, out := testApp(t)

	err := a.SimulateAlert(context.Background(), SimulateOptions{
		Code:     "nizl.shf",
		Open:     decimal.NewFromInt(100000),
		Previous: decimal.NewFromInt(100000),
		Last:     decimal.NewFromInt(99400),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "短期急跌 0.60%")
	assert.Contains(t, out.String(), "【沪镍主力】")
}

func TestSimulateAlertRequiresAlerting(t *testing.T) {
	a, _ := testApp(t)
	a.Config.Alerting.Enabled = false

	err := a.SimulateAlert(context.Background(), SimulateOptions{
		Open: decimal.NewFromInt(1), Previous: decimal.NewFromInt(1), Last: decimal.NewFromInt(1),
	})
	require.Error(t, err)
}

func TestReportRendersStoredBars(t *testing.T) {
	a, _ := testApp(t)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var bars []storage.DailyBar
	for i := 29; i >= 0; i-- {
		px := "100000"
		if i == 0 {
			px = "102000"
		}
		bars = append(bars, storage.DailyBar{
			Date:         today.AddDate(0, 0, -i),
			Open:         dec("100000"),
			High:         dec("102500"),
			Low:          dec("99500"),
			Close:        dec(px),
			OpenInterest: dec("120000"),
		})
	}
	require.NoError(t, a.barStore().SaveBars("NIZL.SHF", bars))

	require.NoError(t, a.Report(context.Background(), ReportOptions{}))

	raw, err := os.ReadFile(a.Config.Report.Output)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, "沪镍主力")
	assert.Contains(t, html, "日内上涨 2.00%")
	assert.True(t, strings.Contains(html, "data:image/png;base64,"), "应包含内嵌图表")
}

func TestReportWithoutDataFails(t *testing.T) {
	a, _ := testApp(t)
	err := a.Report(context.Background(), ReportOptions{})
	require.Error(t, err)
}

func TestBarsSince(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	bars := []storage.DailyBar{{Date: day(1)}, {Date: day(2)}, {Date: day(3)}}

	assert.Len(t, barsSince(bars, day(2)), 2)
	assert.Len(t, barsSince(bars, day(1)), 3)
	assert.Empty(t, barsSince(bars, day(4)))
}

func TestNewClientRequiresRefreshToken(t *testing.T) {
	a, _ := testApp(t)
	a.Config.IFinD.RefreshToken = "在这里填写你的refresh_token"
	_, err := a.newClient()
	require.Error(t, err)
}
