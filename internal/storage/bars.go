package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
)

var barHeader = []string{"date", "open", "high", "low", "close", "volume", "amount", "openInterest", "changeRatio"}

// BarStore keeps one CSV of daily bars per contract.
type BarStore struct {
	dir string
}

// NewBarStore returns a store rooted at dir.
func NewBarStore(dir string) *BarStore {
	return &BarStore{dir: dir}
}

// Path returns the CSV path for code, e.g. NIZL.SHF -> NIZL_SHF_daily.csv.
func (s *BarStore) Path(code string) string {
	return filepath.Join(s.dir, SafeName(code)+"_daily.csv")
}

// SaveBars replaces the CSV for code. Bars are written in date order.
func (s *BarStore) SaveBars(code string, bars []DailyBar) error {
	sorted := append([]DailyBar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	return WriteAtomic(s.Path(code), func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(barHeader); err != nil {
			return err
		}
		for _, bar := range sorted {
			record := []string{
				bar.Date.Format(dateLayout),
				formatNull(bar.Open),
				formatNull(bar.High),
				formatNull(bar.Low),
				formatNull(bar.Close),
				formatNull(bar.Volume),
				formatNull(bar.Amount),
				formatNull(bar.OpenInterest),
				formatNull(bar.ChangeRatio),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// LoadBars reads the CSV for code. Columns are matched by header name.
func (s *BarStore) LoadBars(code string) ([]DailyBar, error) {
	file, err := os.Open(s.Path(code))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, code)
		}
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path(code), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[name] = i
	}
	if _, ok := index["date"]; !ok {
		return nil, fmt.Errorf("%s: missing date column", s.Path(code))
	}

	field := func(row []string, name string) (decimal.NullDecimal, error) {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return decimal.NullDecimal{}, nil
		}
		return parseNull(row[i])
	}

	bars := make([]DailyBar, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if index["date"] >= len(row) {
			continue
		}
		date, err := parseDate(row[index["date"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: parse date: %w", n+2, err)
		}
		bar := DailyBar{Date: date}
		targets := []struct {
			name string
			dst  *decimal.NullDecimal
		}{
			{"open", &bar.Open},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"close", &bar.Close},
			{"volume", &bar.Volume},
			{"amount", &bar.Amount},
			{"openInterest", &bar.OpenInterest},
			{"changeRatio", &bar.ChangeRatio},
		}
		for _, t := range targets {
			v, err := field(row, t.name)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse %s: %w", n+2, t.name, err)
			}
			*t.dst = v
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
