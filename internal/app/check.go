package app

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"nickel-watch/internal/fetcher"
	"nickel-watch/internal/report"
	"nickel-watch/internal/service"
)

// Check verifies API connectivity: token exchange, a 30 day history request
// for the first instrument and the account data usage.
func (a *App) Check(ctx context.Context) error {
	client, err := a.newClient()
	if err != nil {
		return err
	}

	if _, err := client.Tokens().Token(ctx); err != nil {
		return fmt.Errorf("获取 access_token 失败: %w", err)
	}
	fmt.Fprintf(a.Out, "access_token ok，有效期至 %s\n", client.Tokens().ExpiresAt().Format("2006-01-02 15:04"))

	inst := a.Config.Watch.Instruments[0]
	to := a.now()
	from := to.AddDate(0, 0, -30)
	series, err := client.HistoryQuotes(ctx, []string{inst.Code}, fetcher.DailyIndicators, from, to)
	if err != nil {
		return fmt.Errorf("获取 %s 历史行情失败: %w", inst.Code, err)
	}

	rows := 0
	for _, s := range series {
		rows += s.Len()
	}
	fmt.Fprintf(a.Out, "%s（%s）近 30 天日线 %d 行\n", inst.Name, inst.Code, rows)
	if len(series) > 0 {
		bars := service.BarsFromSeries(series[0])
		start := len(bars) - 5
		if start < 0 {
			start = 0
		}
		writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "日期\t开盘\t最高\t最低\t收盘\t持仓")
		for _, bar := range bars[start:] {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
				bar.Date.Format("2006-01-02"),
				report.Price(bar.Open), report.Price(bar.High), report.Price(bar.Low),
				report.Price(bar.Close), report.Price(bar.OpenInterest))
		}
		writer.Flush()
	}

	usage, err := client.DataUsage(ctx)
	if err != nil {
		// 部分账号没有统计接口权限
		a.Logger.Warn().Err(err).Msg("查询数据用量失败")
		return nil
	}
	fmt.Fprintf(a.Out, "数据用量: %s\n", compactJSON(usage))
	return nil
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
