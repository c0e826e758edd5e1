package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SeriesStore keeps one date,value CSV per macro indicator.
type SeriesStore struct {
	dir string
}

// NewSeriesStore returns a store rooted at dir.
func NewSeriesStore(dir string) *SeriesStore {
	return &SeriesStore{dir: dir}
}

// Path returns the CSV path for the named series.
func (s *SeriesStore) Path(name string) string {
	return filepath.Join(s.dir, SafeName(name)+".csv")
}

// SaveSeries replaces the CSV for name.
func (s *SeriesStore) SaveSeries(name string, points []SeriesPoint) error {
	sorted := append([]SeriesPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	return WriteAtomic(s.Path(name), func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write([]string{"date", "value"}); err != nil {
			return err
		}
		for _, p := range sorted {
			if err := writer.Write([]string{p.Date.Format(dateLayout), formatNull(p.Value)}); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// LoadSeries reads the CSV for name in date order.
func (s *SeriesStore) LoadSeries(name string) ([]SeriesPoint, error) {
	file, err := os.Open(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, name)
		}
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path(name), err)
	}

	var points []SeriesPoint
	for n, row := range rows {
		if n == 0 && len(row) > 0 && row[0] == "date" {
			continue
		}
		if len(row) < 2 {
			continue
		}
		date, err := parseDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: parse date: %w", n+1, err)
		}
		value, err := parseNull(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: parse value: %w", n+1, err)
		}
		points = append(points, SeriesPoint{Date: date, Value: value})
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// List returns stored series file names without extension, sorted.
func (s *SeriesStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(names)
	return names, nil
}
