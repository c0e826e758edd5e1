package storage

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestBarStoreRoundTripAndPath(t *testing.T) {
	store := NewBarStore(t.TempDir())
	assert.Equal(t, "NIZL_SHF_daily.csv", filepath.Base(store.Path("NIZL.SHF")))

	bars := []DailyBar{
		{Date: day("2024-05-07"), Close: nd("131000"), OpenInterest: nd("200000")},
		{Date: day("2024-05-06"), Open: nd("130000"), Close: nd("130500.5"), ChangeRatio: nd("-0.35")},
	}
	require.NoError(t, store.SaveBars("NIZL.SHF", bars))

	raw, err := os.ReadFile(store.Path("NIZL.SHF"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "date,open,high,low,close,volume,amount,openInterest,changeRatio\n")

	loaded, err := store.LoadBars("NIZL.SHF")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.True(t, loaded[0].Date.Equal(day("2024-05-06")))
	assert.True(t, loaded[0].Close.Decimal.Equal(decimal.RequireFromString("130500.5")))
	assert.False(t, loaded[0].High.Valid)
	assert.True(t, loaded[1].OpenInterest.Valid)
	assert.False(t, loaded[1].Open.Valid)
}

func TestBarStoreMissingFile(t *testing.T) {
	_, err := NewBarStore(t.TempDir()).LoadBars("SSZL.SHF")
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestBarStoreToleratesReorderedColumns(t *testing.T) {
	store := NewBarStore(t.TempDir())
	content := "close,date,extra\n100,2024-01-02 00:00:00,x\n,2024-01-03,y\n"
	require.NoError(t, os.WriteFile(store.Path("NI"), []byte(content), 0o644))

	bars, err := store.LoadBars("NI")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Close.Valid)
	assert.False(t, bars[1].Close.Valid)
}

func TestSeriesStoreRoundTripAndList(t *testing.T) {
	store := NewSeriesStore(t.TempDir())
	points := []SeriesPoint{
		{Date: day("2024-01-03"), Value: nd("70500")},
		{Date: day("2024-01-02"), Value: decimal.NullDecimal{}},
	}
	require.NoError(t, store.SaveSeries("LME镍库存", points))
	require.NoError(t, store.SaveSeries("美元 指数", points[:1]))

	loaded, err := store.LoadSeries("LME镍库存")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.False(t, loaded[0].Value.Valid)
	assert.Equal(t, "70500", loaded[1].Value.Decimal.String())

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"LME镍库存", "美元_指数"}, names)

	_, err = store.LoadSeries("missing")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSeriesStoreListMissingDir(t *testing.T) {
	names, err := NewSeriesStore(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSnapshotLogAppendsPerDay(t *testing.T) {
	log := NewSnapshotLog(filepath.Join(t.TempDir(), "logs"))
	ts := time.Date(2024, 5, 6, 10, 0, 0, 0, time.Local)

	require.NoError(t, log.Append(ts, map[string]int{"a": 1}))
	require.NoError(t, log.Append(ts.Add(30*time.Second), map[string]int{"a": 2}))
	require.NoError(t, log.Append(ts.Add(24*time.Hour), map[string]int{"a": 3}))

	assert.Equal(t, "realtime_2024-05-06.jsonl", filepath.Base(log.Path(ts)))

	snaps, err := log.Read(ts)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	var data map[string]int
	require.NoError(t, json.Unmarshal(snaps[1].Data, &data))
	assert.Equal(t, 2, data["a"])
	assert.True(t, snaps[0].Timestamp.Equal(ts))

	none, err := log.Read(ts.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWriteAtomicLeavesOldFileOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "page.html")
	require.NoError(t, WriteFileAtomic(path, []byte("v1")))

	err := WriteAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("boom")
	})
	require.Error(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(raw))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLastTwoSkipsMissingCloses(t *testing.T) {
	bars := []DailyBar{
		{Date: day("2024-01-01"), Close: nd("10")},
		{Date: day("2024-01-02"), Close: nd("11")},
		{Date: day("2024-01-03")},
	}
	last, prev := LastTwo(bars)
	require.NotNil(t, last)
	require.NotNil(t, prev)
	assert.Equal(t, "11", last.Close.Decimal.String())
	assert.Equal(t, "10", prev.Close.Decimal.String())

	last, prev = LastTwo(bars[:1])
	assert.NotNil(t, last)
	assert.Nil(t, prev)

	lp, pp := LastTwoPoints(nil)
	assert.Nil(t, lp)
	assert.Nil(t, pp)
}
