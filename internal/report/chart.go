package report

import (
	"bytes"
	"encoding/base64"
	"errors"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNotEnoughData is returned when a chart has fewer than two points.
var ErrNotEnoughData = errors.New("report: not enough data to chart")

// Line is one y series aligned with ChartSeries.Dates.
type Line struct {
	Name   string
	Values []decimal.NullDecimal
	Color  string
}

// ChartSeries describes a price chart: the first line is the main series.
type ChartSeries struct {
	Title  string
	Dates  []time.Time
	Lines  []Line
	Width  int
	Height int
}

var lineColors = []string{"38bdf8", "f59e0b", "a78bfa", "22c55e", "ef4444"}

// RenderChart draws cs as a PNG into w. Missing values are skipped per line.
func RenderChart(w io.Writer, cs ChartSeries) error {
	if len(cs.Lines) == 0 {
		return ErrNotEnoughData
	}

	width, height := cs.Width, cs.Height
	if width <= 0 {
		width = 1200
	}
	if height <= 0 {
		height = 420
	}

	series := make([]chart.Series, 0, len(cs.Lines))
	for i, line := range cs.Lines {
		x, y := points(cs.Dates, line.Values)
		if len(x) < 2 {
			if i == 0 {
				return ErrNotEnoughData
			}
			continue
		}
		color := line.Color
		if color == "" {
			color = lineColors[i%len(lineColors)]
		}
		stroke := 1.0
		if i == 0 {
			stroke = 2.0
		}
		series = append(series, chart.TimeSeries{
			Name: line.Name,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(color),
				StrokeWidth: stroke,
			},
			XValues: x,
			YValues: y,
		})
	}

	numberFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Title:  cs.Title,
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02"),
		},
		YAxis: chart.YAxis{
			ValueFormatter: numberFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// ChartDataURI renders cs and returns it as an inline PNG data URI.
func ChartDataURI(cs ChartSeries) (template.URL, []byte, error) {
	var buf bytes.Buffer
	if err := RenderChart(&buf, cs); err != nil {
		return "", nil, err
	}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	return template.URL(uri), buf.Bytes(), nil
}

func points(dates []time.Time, values []decimal.NullDecimal) ([]time.Time, []float64) {
	n := len(dates)
	if len(values) < n {
		n = len(values)
	}
	x := make([]time.Time, 0, n)
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if !values[i].Valid {
			continue
		}
		x = append(x, dates[i])
		y = append(y, values[i].Decimal.InexactFloat64())
	}
	return x, y
}
