package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"nickel-watch/internal/report"
	"nickel-watch/internal/service"
)

// Daily refreshes daily bars, stores them as CSV and prints the summary.
func (a *App) Daily(ctx context.Context) error {
	client, err := a.newClient()
	if err != nil {
		return err
	}

	job := service.NewDaily(a.Config, client, a.barStore(), a.newNotifiers(false), a.Logger)
	summaries, err := job.Run(ctx)
	if err != nil {
		return err
	}
	a.printDaily(summaries)
	return nil
}

func (a *App) printDaily(summaries []service.DailySummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(a.Out, "no daily data")
		return
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "品种\t代码\t日期\t收盘\t涨跌幅\t持仓\t持仓变化\t行数")
	for _, s := range summaries {
		date, closePrice, oi := "--", "--", "--"
		if s.Latest != nil {
			date = s.Latest.Date.Format("2006-01-02")
			closePrice = report.Price(s.Latest.Close)
			oi = report.Price(s.Latest.OpenInterest)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			s.Name, s.Code, date, closePrice,
			report.Percent(s.ChangePct), oi, report.Percent(s.OIChangePct), s.Bars)
	}
	writer.Flush()

	for _, s := range summaries {
		for _, cond := range s.Conditions {
			fmt.Fprintf(a.Out, "[%s] %s %s  %s\n", cond.Severity, cond.InstrumentName, cond.Message, cond.Detail)
		}
	}
}
