package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nickel-watch/internal/alerting"
	"nickel-watch/internal/config"
	"nickel-watch/internal/fetcher"
	"nickel-watch/internal/indicator"
	"nickel-watch/internal/storage"
)

// DailySummary describes the latest bar of one contract after a daily refresh.
type DailySummary struct {
	Code        string
	Name        string
	Bars        int
	Latest      *storage.DailyBar
	Previous    *storage.DailyBar
	ChangePct   decimal.NullDecimal
	OIChangePct decimal.NullDecimal
	Conditions  []alerting.Condition
}

// Daily refreshes daily history, stores it as CSV and runs close-to-close alerts.
type Daily struct {
	history     fetcher.HistoryFetcher
	bars        *storage.BarStore
	evaluator   *alerting.Evaluator
	notifiers   []alerting.Notifier
	instruments []config.Instrument
	lookback    int
	alertsOn    bool
	logger      zerolog.Logger
	now         func() time.Time
}

// NewDaily constructs the daily job.
func NewDaily(cfg *config.Config, history fetcher.HistoryFetcher, bars *storage.BarStore, notifiers []alerting.Notifier, logger zerolog.Logger) *Daily {
	return &Daily{
		history:     history,
		bars:        bars,
		evaluator:   CloseToCloseEvaluator(cfg.Thresholds()),
		notifiers:   notifiers,
		instruments: cfg.Watch.Instruments,
		lookback:    cfg.Daily.LookbackDays,
		alertsOn:    cfg.Alerting.Enabled,
		logger:      logger.With().Str("component", "daily").Logger(),
		now:         time.Now,
	}
}

// CloseToCloseEvaluator only runs the price and open interest checks, used
// against the previous trading day.
func CloseToCloseEvaluator(th alerting.Thresholds) *alerting.Evaluator {
	return alerting.NewEvaluator(th, alerting.WithChecks(alerting.DayPrice, alerting.OpenInterest))
}

// Run fetches lookback days of bars for every instrument.
func (d *Daily) Run(ctx context.Context) ([]DailySummary, error) {
	to := d.now()
	from := to.AddDate(0, 0, -d.lookback)

	codes := make([]string, len(d.instruments))
	for i, inst := range d.instruments {
		codes[i] = inst.Code
	}

	d.logger.Info().Strs("codes", codes).Int("days", d.lookback).Msg("拉取日线历史")

	series, err := d.history.HistoryQuotes(ctx, codes, fetcher.DailyIndicators, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch daily history: %w", err)
	}

	byCode := make(map[string]fetcher.Series, len(series))
	for _, s := range series {
		byCode[s.Code] = s
	}

	summaries := make([]DailySummary, 0, len(d.instruments))
	for _, inst := range d.instruments {
		s, ok := byCode[inst.Code]
		if !ok || s.Len() == 0 {
			d.logger.Warn().Str("code", inst.Code).Msg("未返回日线数据")
			continue
		}

		bars := BarsFromSeries(s)
		if err := d.bars.SaveBars(inst.Code, bars); err != nil {
			return summaries, fmt.Errorf("save %s bars: %w", inst.Code, err)
		}
		d.logger.Info().Str("code", inst.Code).Int("rows", len(bars)).Str("path", d.bars.Path(inst.Code)).Msg("日线已保存")

		summary := Summarize(inst, bars, d.evaluator, to)
		if d.alertsOn {
			for _, cond := range summary.Conditions {
				for _, n := range d.notifiers {
					if err := n.Notify(ctx, cond); err != nil {
						d.logger.Error().Err(err).Str("code", inst.Code).Msg("failed to dispatch alert")
					}
				}
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Summarize computes the latest change figures for bars and evaluates the
// close-to-close conditions. evaluator may be nil to skip alerts.
func Summarize(inst config.Instrument, bars []storage.DailyBar, evaluator *alerting.Evaluator, now time.Time) DailySummary {
	summary := DailySummary{Code: inst.Code, Name: inst.Name, Bars: len(bars)}
	last, prev := storage.LastTwo(bars)
	summary.Latest = last
	summary.Previous = prev
	if last == nil || prev == nil {
		return summary
	}

	summary.ChangePct = indicator.PercentChange(prev.Close.Decimal, last.Close.Decimal)
	if last.OpenInterest.Valid && prev.OpenInterest.Valid {
		summary.OIChangePct = indicator.PercentChange(prev.OpenInterest.Decimal, last.OpenInterest.Decimal)
	}

	if evaluator != nil {
		in := alerting.Input{
			Current:  barObservation(inst, *last),
			Previous: ptr(barObservation(inst, *prev)),
			DayOpen:  prev.Close,
		}
		summary.Conditions = evaluator.Evaluate(in, nil, now)
	}
	return summary
}

// BarsFromSeries converts a history table into bars, skipping undated rows.
func BarsFromSeries(s fetcher.Series) []storage.DailyBar {
	bars := make([]storage.DailyBar, 0, s.Len())
	for i, date := range s.Dates {
		day, err := parseDay(date)
		if err != nil {
			continue
		}
		bars = append(bars, storage.DailyBar{
			Date:         day,
			Open:         s.Get("open", i),
			High:         s.Get("high", i),
			Low:          s.Get("low", i),
			Close:        s.Get("close", i),
			Volume:       s.Get("volume", i),
			Amount:       s.Get("amount", i),
			OpenInterest: s.Get("openInterest", i),
			ChangeRatio:  s.Get("changeRatio", i),
		})
	}
	return bars
}

func barObservation(inst config.Instrument, bar storage.DailyBar) alerting.Observation {
	return alerting.Observation{
		InstrumentID: inst.Code,
		Name:         inst.Name,
		Timestamp:    bar.Date,
		Last:         bar.Close,
		Open:         bar.Open,
		High:         bar.High,
		Low:          bar.Low,
		Volume:       bar.Volume,
		Amount:       bar.Amount,
		OpenInterest: bar.OpenInterest,
		ChangeRatio:  bar.ChangeRatio,
	}
}

func parseDay(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func ptr[T any](v T) *T {
	return &v
}
