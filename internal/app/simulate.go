package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"nickel-watch/internal/fetcher"
	"nickel-watch/internal/service"
)

// SimulateOptions describe a synthetic pair of consecutive quotes.
type SimulateOptions struct {
	Code     string
	Open     decimal.Decimal
	Previous decimal.Decimal
	Last     decimal.Decimal
	// 持仓量，零值表示不模拟持仓变化
	PreviousOI decimal.Decimal
	OI         decimal.Decimal
}

// SimulateAlert 用两轮模拟行情走一遍完整的预警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}
	opts.Code = strings.ToUpper(strings.TrimSpace(opts.Code))
	if opts.Code == "" {
		opts.Code = a.Config.Watch.Instruments[0].Code
	}

	first := syntheticQuote(opts.Code, opts.Open, opts.Previous, opts.Previous, opts.PreviousOI)
	second := syntheticQuote(opts.Code, opts.Open, opts.Previous, opts.Last, opts.OI)
	quotes := &staticQuoteFetcher{batches: [][]fetcher.Quote{{first}, {second}}}

	monitor := service.NewMonitor(a.Config, quotes, a.newNotifiers(true), nil, a.Logger)

	at := a.now()
	if err := monitor.Poll(ctx, at); err != nil {
		return err
	}
	if err := monitor.Poll(ctx, at.Add(a.Config.Monitor.Interval)); err != nil {
		return err
	}

	if len(monitor.Recent(0)) == 0 {
		a.Logger.Info().Msg("模拟行情未触发任何预警")
	}
	return nil
}

func syntheticQuote(code string, open, previous, last, oi decimal.Decimal) fetcher.Quote {
	high := decimal.Max(open, previous, last)
	low := decimal.Min(open, previous, last)
	q := fetcher.Quote{
		Code:   code,
		Latest: fetcher.Value{NullDecimal: decimal.NewNullDecimal(last)},
		Open:   fetcher.Value{NullDecimal: decimal.NewNullDecimal(open)},
		High:   fetcher.Value{NullDecimal: decimal.NewNullDecimal(high)},
		Low:    fetcher.Value{NullDecimal: decimal.NewNullDecimal(low)},
	}
	if oi.IsPositive() {
		q.OpenInterest = fetcher.Value{NullDecimal: decimal.NewNullDecimal(oi)}
	}
	if open.IsPositive() {
		ratio := last.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
		q.ChangeRatio = fetcher.Value{NullDecimal: decimal.NewNullDecimal(ratio)}
	}
	return q
}

// staticQuoteFetcher replays fixed batches, repeating the last one.
type staticQuoteFetcher struct {
	mu      sync.Mutex
	batches [][]fetcher.Quote
	calls   int
}

func (s *staticQuoteFetcher) RealtimeQuotes(_ context.Context, _ []string) ([]fetcher.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil, errors.New("no simulated quotes")
	}
	i := s.calls
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	s.calls++
	return s.batches[i], nil
}

var _ fetcher.QuoteFetcher = (*staticQuoteFetcher)(nil)
