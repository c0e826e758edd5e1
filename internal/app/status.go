package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/shopspring/decimal"

	"nickel-watch/internal/report"
	"nickel-watch/internal/service"
)

// 颜色码等长，保证 tabwriter 对齐：红涨绿跌
const (
	ansiUp      = "\x1b[31m"
	ansiDown    = "\x1b[32m"
	ansiNeutral = "\x1b[39m"
	ansiReset   = "\x1b[0m"
)

// StatusPrinter prints a quote table for every monitor cycle.
type StatusPrinter struct {
	out    io.Writer
	color  bool
	recent int
}

// NewStatusPrinter writes to out, colouring changes when out is a terminal.
func NewStatusPrinter(out io.Writer, recent int) *StatusPrinter {
	color := false
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		color = true
		out = colorable.NewColorable(f)
	} else {
		out = colorable.NewNonColorable(out)
	}
	return &StatusPrinter{out: out, color: color, recent: recent}
}

// Publish implements service.Publisher.
func (p *StatusPrinter) Publish(_ context.Context, cycle service.Cycle) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n==== 镍 · 不锈钢 实时行情  %s ====\n", cycle.At.Format("2006-01-02 15:04:05"))

	if cycle.Err != nil {
		fmt.Fprintf(&b, "获取行情失败: %s\n", sanitizeInline(cycle.Err.Error()))
	} else if len(cycle.Observations) == 0 {
		fmt.Fprintln(&b, "未获取到行情数据")
	} else {
		w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "品种\t代码\t最新\t涨跌幅\t开盘\t最高\t最低\t持仓\t成交量")
		for _, obs := range cycle.Observations {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				obs.DisplayName(),
				obs.InstrumentID,
				report.Price(obs.Last),
				p.colored(obs.ChangeRatio, report.Arrow(obs.ChangeRatio)+" "+report.Percent(obs.ChangeRatio)),
				report.Price(obs.Open),
				report.Price(obs.High),
				report.Price(obs.Low),
				report.Price(obs.OpenInterest),
				report.Price(obs.Volume),
			)
		}
		w.Flush()
	}

	if len(cycle.Recent) > 0 {
		fmt.Fprintln(&b, "最近预警:")
		for i, cond := range cycle.Recent {
			if p.recent > 0 && i >= p.recent {
				break
			}
			fmt.Fprintf(&b, "  %s [%s] %s %s\n", cond.DetectedAt.Format("15:04:05"), cond.Severity, cond.InstrumentName, cond.Message)
		}
	}
	if cycle.Interval > 0 {
		fmt.Fprintf(&b, "下次刷新: %s 后\n", cycle.Interval)
	}

	_, err := io.WriteString(p.out, b.String())
	return err
}

func (p *StatusPrinter) colored(v decimal.NullDecimal, text string) string {
	if !p.color {
		return text
	}
	code := ansiNeutral
	switch report.Direction(v) {
	case "up":
		if v.Decimal.IsPositive() {
			code = ansiUp
		}
	case "down":
		code = ansiDown
	}
	return code + text + ansiReset
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

var _ service.Publisher = (*StatusPrinter)(nil)
