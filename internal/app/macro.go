package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"nickel-watch/internal/indicator"
	"nickel-watch/internal/report"
	"nickel-watch/internal/service"
	"nickel-watch/internal/storage"
)

// Macro fetches the configured macro indicators and prints their latest values.
func (a *App) Macro(ctx context.Context) error {
	client, err := a.newClient()
	if err != nil {
		return err
	}

	job := service.NewMacro(a.Config, client, client, a.seriesStore(), a.Logger)
	results, err := job.Run(ctx)
	a.printMacro(results)
	return err
}

func (a *App) printMacro(results []service.MacroResult) {
	if len(results) == 0 {
		fmt.Fprintln(a.Out, "no macro indicators configured")
		return
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "类别\t指标\t日期\t最新\t变化\t单位\t状态")
	for _, res := range results {
		date, value, change := "--", "--", "--"
		last, prev := storage.LastTwoPoints(res.Points)
		if last != nil {
			date = last.Date.Format("2006-01-02")
			value = report.Number(last.Value, 2)
			if prev != nil {
				change = report.Percent(indicator.PercentChange(prev.Value.Decimal, last.Value.Decimal))
			}
		}
		status := "ok"
		if res.Err != nil {
			status = sanitizeInline(res.Err.Error())
		} else if last == nil {
			status = "无数据"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			res.Indicator.Category, res.Indicator.Name, date, value, change, res.Indicator.Unit, status)
	}
	writer.Flush()
}
