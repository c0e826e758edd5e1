package app

import (
	"context"
	"errors"
	"io"
	"time"

	"nickel-watch/internal/report"
	"nickel-watch/internal/service"
	"nickel-watch/internal/storage"
)

// ReportOptions configure the static dashboard.
type ReportOptions struct {
	// Fetch 先刷新日线与宏观数据
	Fetch  bool
	Output string
}

// Report renders the static research dashboard from the stored CSV files.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	if opts.Fetch {
		if err := a.Daily(ctx); err != nil {
			return err
		}
		if err := a.Macro(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("宏观数据刷新失败，使用本地已有数据")
		}
	}

	output := opts.Output
	if output == "" {
		output = a.Config.Report.Output
	}
	if output == "" {
		return errors.New("report output path not configured")
	}

	now := a.now()
	since := now.AddDate(0, 0, -a.Config.Report.HistoryDays)
	builder := a.newBuilder()
	evaluator := service.CloseToCloseEvaluator(a.Config.Thresholds())
	bars := a.barStore()

	page := report.DashboardPage{GeneratedAt: now}
	for _, inst := range a.Config.Watch.Instruments {
		rows, err := bars.LoadBars(inst.Code)
		if err != nil {
			if errors.Is(err, storage.ErrNoData) {
				a.Logger.Warn().Str("code", inst.Code).Str("path", bars.Path(inst.Code)).Msg("缺少日线数据，请先运行 daily")
				continue
			}
			return err
		}
		rows = barsSince(rows, since)
		if len(rows) == 0 {
			continue
		}

		summary := service.Summarize(inst, rows, evaluator, now)
		for _, cond := range summary.Conditions {
			page.Signals = append(page.Signals, report.Signal{Date: summary.Latest.Date, Condition: cond})
		}
		page.Instruments = append(page.Instruments, builder.Instrument(report.InstrumentInput{
			Code: inst.Code,
			Name: inst.Name,
			Bars: rows,
		}))
	}
	page.Macro = a.macroSections(builder)

	if len(page.Instruments) == 0 && len(page.Macro) == 0 {
		return errors.New("no stored data to report; run daily or pass --fetch")
	}

	err := storage.WriteAtomic(output, func(w io.Writer) error {
		return report.RenderDashboard(w, page)
	})
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("path", output).
		Int("instruments", len(page.Instruments)).
		Int("macro", len(page.Macro)).
		Int("signals", len(page.Signals)).
		Msg("dashboard generated")
	return nil
}

func barsSince(bars []storage.DailyBar, since time.Time) []storage.DailyBar {
	for i, bar := range bars {
		if !bar.Date.Before(since) {
			return bars[i:]
		}
	}
	return nil
}
