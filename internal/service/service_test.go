package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickel-watch/internal/alerting"
	"nickel-watch/internal/config"
	"nickel-watch/internal/fetcher"
	"nickel-watch/internal/storage"
)

type fakeQuotes struct {
	batches [][]fetcher.Quote
	errs    []error
	calls   int
}

func (f *fakeQuotes) RealtimeQuotes(_ context.Context, _ []string) ([]fetcher.Quote, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	return f.batches[len(f.batches)-1], nil
}

type fakeHistory struct {
	series []fetcher.Series
	err    error
	codes  [][]string
}

func (f *fakeHistory) HistoryQuotes(_ context.Context, codes []string, _ []string, _, _ time.Time) ([]fetcher.Series, error) {
	f.codes = append(f.codes, codes)
	if f.err != nil {
		return nil, f.err
	}
	var out []fetcher.Series
	for _, s := range f.series {
		for _, c := range codes {
			if s.Code == c {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

type fakeEDB struct {
	points map[string][]fetcher.Point
}

func (f *fakeEDB) EDBSeries(_ context.Context, id string, _, _ time.Time) ([]fetcher.Point, error) {
	p, ok := f.points[id]
	if !ok {
		return nil, errors.New("no permission")
	}
	return p, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	conds []alerting.Condition
}

func (r *recordingNotifier) Notify(_ context.Context, cond alerting.Condition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conds = append(r.conds, cond)
	return nil
}

func val(s string) fetcher.Value {
	return fetcher.Value{NullDecimal: decimal.NewNullDecimal(decimal.RequireFromString(s))}
}

func values(ss ...string) []fetcher.Value {
	out := make([]fetcher.Value, len(ss))
	for i, s := range ss {
		if s == "" {
			continue
		}
		out[i] = val(s)
	}
	return out
}

func quote(code, last, open, oi string) fetcher.Quote {
	return fetcher.Quote{
		Code:         code,
		Latest:       val(last),
		Open:         val(open),
		High:         val("200000"),
		Low:          val("1"),
		OpenInterest: val(oi),
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  timezone: UTC\n"), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

var t0 = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func TestMonitorPollNotifiesAndPublishes(t *testing.T) {
	cfg := testConfig(t)
	quotes := &fakeQuotes{batches: [][]fetcher.Quote{
		{quote("NIZL.SHF", "100000", "100000", "1000")},
		{quote("NIZL.SHF", "99400", "100000", "1000")},
	}}
	rec := &recordingNotifier{}
	snapDir := t.TempDir()
	m := NewMonitor(cfg, quotes, []alerting.Notifier{rec}, storage.NewSnapshotLog(snapDir), zerolog.Nop())

	var cycles []Cycle
	m.AddPublisher(PublisherFunc(func(_ context.Context, c Cycle) error {
		cycles = append(cycles, c)
		return nil
	}))

	require.NoError(t, m.Poll(context.Background(), t0))
	require.NoError(t, m.Poll(context.Background(), t0.Add(30*time.Second)))

	require.Len(t, cycles, 2)
	assert.Empty(t, cycles[0].Conditions)
	require.Len(t, cycles[1].Conditions, 1)
	assert.Equal(t, alerting.ShortPrice, cycles[1].Conditions[0].Type)
	assert.Equal(t, "沪镍主力", cycles[1].Observations[0].Name)
	assert.Equal(t, 30*time.Second, cycles[1].Interval)

	require.Len(t, rec.conds, 1)
	assert.Len(t, m.Recent(10), 1)

	snaps, err := storage.NewSnapshotLog(snapDir).Read(t0)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestMonitorFetchErrorKeepsPreviousCycle(t *testing.T) {
	cfg := testConfig(t)
	quotes := &fakeQuotes{
		batches: [][]fetcher.Quote{
			{quote("NIZL.SHF", "100000", "100000", "1000")},
			nil,
			{quote("NIZL.SHF", "99400", "100000", "1000")},
		},
		errs: []error{nil, errors.New("timeout"), nil},
	}
	m := NewMonitor(cfg, quotes, nil, nil, zerolog.Nop())

	var errs []error
	m.AddPublisher(PublisherFunc(func(_ context.Context, c Cycle) error {
		errs = append(errs, c.Err)
		return nil
	}))

	require.NoError(t, m.Poll(context.Background(), t0))
	require.Error(t, m.Poll(context.Background(), t0.Add(30*time.Second)))
	require.NoError(t, m.Poll(context.Background(), t0.Add(60*time.Second)))

	require.Len(t, errs, 3)
	assert.Error(t, errs[1])
	// 第三轮仍与第一轮比较
	recent := m.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, alerting.ShortPrice, recent[0].Type)
}

func TestMonitorDisabledAlertsDoNotNotify(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerting.Enabled = false
	quotes := &fakeQuotes{batches: [][]fetcher.Quote{{quote("NIZL.SHF", "102000", "100000", "1000")}}}
	rec := &recordingNotifier{}
	m := NewMonitor(cfg, quotes, []alerting.Notifier{rec}, nil, zerolog.Nop())

	require.NoError(t, m.Poll(context.Background(), t0))
	assert.Empty(t, rec.conds)
	assert.Len(t, m.Recent(10), 1)
}

func TestMonitorApplyConfigKeepsCooldown(t *testing.T) {
	cfg := testConfig(t)
	quotes := &fakeQuotes{batches: [][]fetcher.Quote{{quote("NIZL.SHF", "101500", "100000", "1000")}}}
	rec := &recordingNotifier{}
	m := NewMonitor(cfg, quotes, []alerting.Notifier{rec}, nil, zerolog.Nop())

	require.NoError(t, m.Poll(context.Background(), t0))
	require.Len(t, rec.conds, 1)

	next := *cfg
	next.Alerting.DayPricePct = 1.2
	m.ApplyConfig(&next)

	require.NoError(t, m.Poll(context.Background(), t0.Add(time.Minute)))
	assert.Len(t, rec.conds, 1)
}

func TestToObservationsOrdersByConfig(t *testing.T) {
	insts := []config.Instrument{{Code: "NIZL.SHF", Name: "沪镍主力"}, {Code: "SSZL.SHF", Name: "不锈钢主力"}}
	quotes := []fetcher.Quote{{Code: "XX.SHF"}, {Code: "SSZL.SHF"}, {Code: "NIZL.SHF"}}
	obs := toObservations(insts, quotes, t0)
	require.Len(t, obs, 3)
	assert.Equal(t, "NIZL.SHF", obs[0].InstrumentID)
	assert.Equal(t, "SSZL.SHF", obs[1].InstrumentID)
	assert.Equal(t, "XX.SHF", obs[2].Name)
}

func TestDailyRunSavesBarsAndAlerts(t *testing.T) {
	cfg := testConfig(t)
	history := &fakeHistory{series: []fetcher.Series{{
		Code:  "NIZL.SHF",
		Dates: []string{"2024-05-06", "2024-05-07"},
		Columns: map[string][]fetcher.Value{
			"open":         values("130000", "131000"),
			"close":        values("130000", "132000"),
			"openInterest": values("100000", "100500"),
		},
	}}}
	bars := storage.NewBarStore(t.TempDir())
	rec := &recordingNotifier{}

	d := NewDaily(cfg, history, bars, []alerting.Notifier{rec}, zerolog.Nop())
	d.now = func() time.Time { return t0 }

	summaries, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, 2, s.Bars)
	require.True(t, s.ChangePct.Valid)
	assert.Equal(t, "1.54", s.ChangePct.Decimal.StringFixed(2))
	assert.Equal(t, "0.50", s.OIChangePct.Decimal.StringFixed(2))

	require.Len(t, s.Conditions, 1)
	assert.Equal(t, alerting.DayPrice, s.Conditions[0].Type)
	assert.Len(t, rec.conds, 1)

	loaded, err := bars.LoadBars("NIZL.SHF")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, []string{"NIZL.SHF", "SSZL.SHF"}, history.codes[0])
}

func TestDailyRunFetchError(t *testing.T) {
	cfg := testConfig(t)
	d := NewDaily(cfg, &fakeHistory{err: errors.New("down")}, storage.NewBarStore(t.TempDir()), nil, zerolog.Nop())
	_, err := d.Run(context.Background())
	assert.Error(t, err)
}

func TestSummarizeSingleBar(t *testing.T) {
	bars := []storage.DailyBar{{Date: t0, Close: decimal.NewNullDecimal(decimal.NewFromInt(1))}}
	s := Summarize(config.Instrument{Code: "NI"}, bars, CloseToCloseEvaluator(alerting.DefaultThresholds()), t0)
	assert.NotNil(t, s.Latest)
	assert.Nil(t, s.Previous)
	assert.False(t, s.ChangePct.Valid)
	assert.Empty(t, s.Conditions)
}

func TestMacroRunSkipsFailingIndicators(t *testing.T) {
	cfg := testConfig(t)
	edb := &fakeEDB{points: map[string][]fetcher.Point{
		"S004303610": {{Date: "2024-05-06", Value: val("70000")}, {Date: "2024-05-07", Value: val("70100")}},
	}}
	history := &fakeHistory{series: []fetcher.Series{{
		Code:    "NI00.SHF",
		Dates:   []string{"2024-05-06"},
		Columns: map[string][]fetcher.Value{"close": values("130000")},
	}}}
	store := storage.NewSeriesStore(t.TempDir())

	m := NewMacro(cfg, edb, history, store, zerolog.Nop())
	results, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Points, 2)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	names, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"LME镍库存", "沪镍连续"}, names)
}

func TestMacroRunAllFailed(t *testing.T) {
	cfg := testConfig(t)
	m := NewMacro(cfg, &fakeEDB{}, &fakeHistory{err: errors.New("down")}, storage.NewSeriesStore(t.TempDir()), zerolog.Nop())
	_, err := m.Run(context.Background())
	assert.Error(t, err)
}
