package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nickel-watch/internal/config"
	"nickel-watch/internal/fetcher"
	"nickel-watch/internal/storage"
)

// MacroResult is the outcome for one indicator.
type MacroResult struct {
	Indicator config.MacroIndicator
	Points    []storage.SeriesPoint
	Err       error
}

// Macro fetches EDB and futures macro series and stores them as CSV.
type Macro struct {
	edb      fetcher.MacroFetcher
	history  fetcher.HistoryFetcher
	store    *storage.SeriesStore
	edbList  []config.MacroIndicator
	futures  []config.MacroIndicator
	lookback int
	logger   zerolog.Logger
	now      func() time.Time
}

// NewMacro constructs the macro job.
func NewMacro(cfg *config.Config, edb fetcher.MacroFetcher, history fetcher.HistoryFetcher, store *storage.SeriesStore, logger zerolog.Logger) *Macro {
	return &Macro{
		edb:      edb,
		history:  history,
		store:    store,
		edbList:  cfg.Macro.EDB,
		futures:  cfg.Macro.Futures,
		lookback: cfg.Macro.LookbackDays,
		logger:   logger.With().Str("component", "macro").Logger(),
		now:      time.Now,
	}
}

// Run fetches every indicator. A failing indicator is logged and reported in
// its result; Run only errors when every indicator failed.
func (m *Macro) Run(ctx context.Context) ([]MacroResult, error) {
	to := m.now()
	from := to.AddDate(0, 0, -m.lookback)

	results := make([]MacroResult, 0, len(m.edbList)+len(m.futures))
	failed := 0

	for _, ind := range m.edbList {
		res := MacroResult{Indicator: ind}
		points, err := m.edb.EDBSeries(ctx, ind.ID, from, to)
		if err == nil {
			res.Points = make([]storage.SeriesPoint, 0, len(points))
			for _, p := range points {
				day, perr := parseDay(p.Date)
				if perr != nil {
					continue
				}
				res.Points = append(res.Points, storage.SeriesPoint{Date: day, Value: p.Value.NullDecimal})
			}
		}
		res.Err = m.finish(ind, res.Points, err)
		if res.Err != nil {
			failed++
		}
		results = append(results, res)
	}

	for _, ind := range m.futures {
		res := MacroResult{Indicator: ind}
		field := ind.Field
		if field == "" {
			field = "close"
		}
		series, err := m.history.HistoryQuotes(ctx, []string{ind.ID}, []string{field}, from, to)
		if err == nil {
			for _, s := range series {
				for i, date := range s.Dates {
					day, perr := parseDay(date)
					if perr != nil {
						continue
					}
					res.Points = append(res.Points, storage.SeriesPoint{Date: day, Value: s.Get(field, i)})
				}
			}
		}
		res.Err = m.finish(ind, res.Points, err)
		if res.Err != nil {
			failed++
		}
		results = append(results, res)
	}

	if failed > 0 && failed == len(results) {
		return results, errors.New("all macro indicators failed")
	}
	return results, nil
}

func (m *Macro) finish(ind config.MacroIndicator, points []storage.SeriesPoint, err error) error {
	log := m.logger.With().Str("indicator", ind.Name).Str("id", ind.ID).Logger()
	if err != nil {
		log.Warn().Err(err).Msg("宏观指标拉取失败")
		return err
	}
	if len(points) == 0 {
		log.Warn().Msg("宏观指标无数据")
		return nil
	}
	if err := m.store.SaveSeries(ind.Name, points); err != nil {
		log.Error().Err(err).Msg("保存宏观指标失败")
		return fmt.Errorf("save %s: %w", ind.Name, err)
	}
	log.Info().Int("rows", len(points)).Msg("宏观指标已保存")
	return nil
}
