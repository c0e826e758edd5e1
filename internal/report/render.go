package report

import (
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"nickel-watch/internal/alerting"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

// QuoteCard is one realtime quote on the live page.
type QuoteCard struct {
	Code         string
	Name         string
	Time         time.Time
	Last         decimal.NullDecimal
	Open         decimal.NullDecimal
	High         decimal.NullDecimal
	Low          decimal.NullDecimal
	Volume       decimal.NullDecimal
	OpenInterest decimal.NullDecimal
	ChangeRatio  decimal.NullDecimal
}

// CardFromObservation maps a polled observation onto a card.
func CardFromObservation(obs alerting.Observation) QuoteCard {
	return QuoteCard{
		Code:         obs.InstrumentID,
		Name:         obs.DisplayName(),
		Time:         obs.Timestamp,
		Last:         obs.Last,
		Open:         obs.Open,
		High:         obs.High,
		Low:          obs.Low,
		Volume:       obs.Volume,
		OpenInterest: obs.OpenInterest,
		ChangeRatio:  obs.ChangeRatio,
	}
}

// RealtimePage is the self refreshing live monitor page.
type RealtimePage struct {
	Title          string
	UpdatedAt      time.Time
	RefreshSeconds int
	Cards          []QuoteCard
	Alerts         []alerting.Condition
	Error          string
	History        []InstrumentSection
	Macro          []MacroSection
}

// DashboardPage is the static research report.
type DashboardPage struct {
	Title       string
	GeneratedAt time.Time
	Signals     []Signal
	Instruments []InstrumentSection
	Macro       []MacroSection
}

// RenderRealtime writes the live page.
func RenderRealtime(w io.Writer, page RealtimePage) error {
	if page.Title == "" {
		page.Title = "镍 · 不锈钢 实时监控"
	}
	return pages.ExecuteTemplate(w, "realtime", page)
}

// RenderDashboard writes the static report.
func RenderDashboard(w io.Writer, page DashboardPage) error {
	if page.Title == "" {
		page.Title = "镍 · 不锈钢 研究看板"
	}
	return pages.ExecuteTemplate(w, "dashboard", page)
}
