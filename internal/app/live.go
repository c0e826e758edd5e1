package app

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"nickel-watch/internal/config"
	"nickel-watch/internal/fetcher"
	"nickel-watch/internal/report"
	"nickel-watch/internal/service"
	"nickel-watch/internal/storage"
)

// LivePage rewrites the self refreshing realtime HTML page after every cycle.
type LivePage struct {
	path    string
	history []report.InstrumentSection
	macro   []report.MacroSection
	logger  zerolog.Logger
}

// NewLivePage writes to path. history and macro are static sections rendered
// below the quote cards.
func NewLivePage(path string, history []report.InstrumentSection, macro []report.MacroSection, logger zerolog.Logger) *LivePage {
	return &LivePage{
		path:    path,
		history: history,
		macro:   macro,
		logger:  logger.With().Str("component", "live_page").Logger(),
	}
}

// Path returns the output file.
func (p *LivePage) Path() string {
	return p.path
}

// Publish implements service.Publisher.
func (p *LivePage) Publish(_ context.Context, cycle service.Cycle) error {
	page := report.RealtimePage{
		UpdatedAt:      cycle.At,
		RefreshSeconds: int(cycle.Interval.Seconds()),
		Alerts:         cycle.Recent,
		History:        p.history,
		Macro:          p.macro,
	}
	for _, obs := range cycle.Observations {
		page.Cards = append(page.Cards, report.CardFromObservation(obs))
	}
	if cycle.Err != nil {
		page.Error = cycle.Err.Error()
	}

	err := storage.WriteAtomic(p.path, func(w io.Writer) error {
		return report.RenderRealtime(w, page)
	})
	if err != nil {
		return err
	}
	p.logger.Debug().Str("path", p.path).Int("cards", len(page.Cards)).Msg("实时页面已更新")
	return nil
}

// historySections fetches monitor.history_days of daily bars once for the
// live page. Failures only drop the section.
func (a *App) historySections(ctx context.Context, history fetcher.HistoryFetcher) []report.InstrumentSection {
	days := a.Config.Monitor.HistoryDays
	if days <= 0 {
		return nil
	}
	to := a.now()
	from := to.AddDate(0, 0, -days)

	series, err := history.HistoryQuotes(ctx, a.Config.Codes(), fetcher.DailyIndicators, from, to)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("获取历史行情失败，实时页面不显示历史数据")
		return nil
	}

	byCode := make(map[string]fetcher.Series, len(series))
	for _, s := range series {
		byCode[s.Code] = s
	}

	builder := a.newBuilder()
	builder.ChartDir = ""
	var out []report.InstrumentSection
	for _, inst := range a.Config.Watch.Instruments {
		s, ok := byCode[inst.Code]
		if !ok || s.Len() == 0 {
			continue
		}
		out = append(out, builder.Instrument(report.InstrumentInput{
			Code: inst.Code,
			Name: inst.Name,
			Bars: service.BarsFromSeries(s),
		}))
	}
	return out
}

// macroSections loads every stored macro series. Unknown files keep their
// file name and no unit.
func (a *App) macroSections(builder *report.Builder) []report.MacroSection {
	store := a.seriesStore()
	names, err := store.List()
	if err != nil {
		a.Logger.Warn().Err(err).Str("dir", a.Config.Macro.Dir).Msg("读取宏观数据目录失败")
		return nil
	}

	meta := make(map[string]config.MacroIndicator)
	for _, ind := range append(append([]config.MacroIndicator(nil), a.Config.Macro.EDB...), a.Config.Macro.Futures...) {
		meta[storage.SafeName(ind.Name)] = ind
	}

	var out []report.MacroSection
	for _, name := range names {
		points, err := store.LoadSeries(name)
		if err != nil {
			a.Logger.Warn().Err(err).Str("series", name).Msg("读取宏观数据失败")
			continue
		}
		in := report.MacroInput{Name: name, Points: points}
		if ind, ok := meta[storage.SafeName(name)]; ok {
			in.Name = ind.Name
			in.Unit = ind.Unit
			in.Category = ind.Category
		}
		out = append(out, builder.Macro(in))
	}
	return out
}

var _ service.Publisher = (*LivePage)(nil)
