package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nickel-watch/internal/alerting"
	"nickel-watch/internal/config"
	"nickel-watch/internal/fetcher"
	"nickel-watch/internal/scheduler"
	"nickel-watch/internal/storage"
)

// Cycle is the outcome of one polling cycle handed to publishers.
type Cycle struct {
	At           time.Time
	Quotes       []fetcher.Quote
	Observations []alerting.Observation
	// Conditions 为本轮新触发的预警
	Conditions []alerting.Condition
	// Recent 为最近预警，新的在前
	Recent   []alerting.Condition
	Interval time.Duration
	Err      error
}

// Publisher receives every cycle, e.g. the console status table or the realtime page.
type Publisher interface {
	Publish(ctx context.Context, cycle Cycle) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, cycle Cycle) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, cycle Cycle) error {
	return f(ctx, cycle)
}

// Monitor polls realtime quotes, evaluates alerts and fans the result out.
type Monitor struct {
	quotes     fetcher.QuoteFetcher
	notifiers  []alerting.Notifier
	snapshots  *storage.SnapshotLog
	publishers []Publisher
	logger     zerolog.Logger

	mu          sync.Mutex
	instruments []config.Instrument
	tracker     *alerting.Tracker
	alertsOn    bool
	recent      int
	interval    time.Duration
}

// NewMonitor constructs the realtime monitor. snapshots may be nil.
func NewMonitor(cfg *config.Config, quotes fetcher.QuoteFetcher, notifiers []alerting.Notifier, snapshots *storage.SnapshotLog, logger zerolog.Logger) *Monitor {
	tracker := alerting.NewTracker(
		alerting.NewEvaluator(cfg.Thresholds()),
		cfg.Alerting.Cooldown,
		cfg.Alerting.HistorySize,
	)
	return &Monitor{
		quotes:      quotes,
		notifiers:   notifiers,
		snapshots:   snapshots,
		logger:      logger.With().Str("component", "monitor").Logger(),
		instruments: append([]config.Instrument(nil), cfg.Watch.Instruments...),
		tracker:     tracker,
		alertsOn:    cfg.Alerting.Enabled,
		recent:      cfg.Report.RecentAlerts,
		interval:    cfg.Monitor.Interval,
	}
}

// AddPublisher registers a cycle consumer. Publishers run in registration order.
func (m *Monitor) AddPublisher(p Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishers = append(m.publishers, p)
}

// Run drives Poll from the scheduler until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, sched *scheduler.Scheduler) error {
	if sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return sched.Run(ctx, m.Poll)
}

// ApplyConfig swaps thresholds, cooldown and instruments without losing
// cooldown timestamps or the previous cycle.
func (m *Monitor) ApplyConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tracker.Reconfigure(alerting.NewEvaluator(cfg.Thresholds()), cfg.Alerting.Cooldown)
	m.instruments = append([]config.Instrument(nil), cfg.Watch.Instruments...)
	m.alertsOn = cfg.Alerting.Enabled
	m.recent = cfg.Report.RecentAlerts

	m.logger.Info().
		Float64("day_price_pct", cfg.Alerting.DayPricePct).
		Float64("short_price_pct", cfg.Alerting.ShortPricePct).
		Float64("oi_pct", cfg.Alerting.OIPct).
		Dur("cooldown", cfg.Alerting.Cooldown).
		Msg("预警参数已更新")
}

// Recent returns up to n recent alerts, newest first.
func (m *Monitor) Recent(n int) []alerting.Condition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Recent(n)
}

// Poll executes one cycle. A failed fetch leaves the previous cycle in place,
// so the next successful cycle compares against the last good data.
func (m *Monitor) Poll(ctx context.Context, at time.Time) error {
	m.mu.Lock()
	instruments := m.instruments
	publishers := m.publishers
	limit := m.recent
	m.mu.Unlock()

	codes := make([]string, len(instruments))
	for i, inst := range instruments {
		codes[i] = inst.Code
	}

	quotes, err := m.quotes.RealtimeQuotes(ctx, codes)
	if err != nil {
		err = fmt.Errorf("fetch realtime quotes: %w", err)
		m.publish(ctx, publishers, Cycle{At: at, Recent: m.Recent(limit), Interval: m.interval, Err: err})
		return err
	}

	observations := toObservations(instruments, quotes, at)

	m.mu.Lock()
	conds := m.tracker.Observe(observations, at)
	alertsOn := m.alertsOn
	recent := m.tracker.Recent(limit)
	m.mu.Unlock()

	m.logger.Debug().Int("quotes", len(quotes)).Int("conditions", len(conds)).Msg("cycle evaluated")

	if alertsOn {
		for _, cond := range conds {
			m.dispatch(ctx, cond)
		}
	}

	if m.snapshots != nil {
		if err := m.snapshots.Append(at, snapshotData(quotes)); err != nil {
			m.logger.Warn().Err(err).Msg("写入行情快照失败")
		}
	}

	m.publish(ctx, publishers, Cycle{
		At:           at,
		Quotes:       quotes,
		Observations: observations,
		Conditions:   conds,
		Recent:       recent,
		Interval:     m.interval,
	})
	return nil
}

func (m *Monitor) dispatch(ctx context.Context, cond alerting.Condition) {
	m.logger.Info().
		Str("instrument", cond.InstrumentID).
		Str("type", string(cond.Type)).
		Str("severity", string(cond.Severity)).
		Str("change_pct", cond.ChangePct.StringFixed(2)).
		Msg(cond.Message)

	for _, n := range m.notifiers {
		if err := n.Notify(ctx, cond); err != nil {
			m.logger.Error().Err(err).Str("instrument", cond.InstrumentID).Msg("failed to dispatch alert")
		}
	}
}

func (m *Monitor) publish(ctx context.Context, publishers []Publisher, cycle Cycle) {
	for _, p := range publishers {
		if err := p.Publish(ctx, cycle); err != nil {
			m.logger.Warn().Err(err).Msg("publish cycle failed")
		}
	}
}

// toObservations orders quotes by the configured instrument list; quotes for
// unknown codes follow in response order under their own code.
func toObservations(instruments []config.Instrument, quotes []fetcher.Quote, at time.Time) []alerting.Observation {
	byCode := make(map[string]fetcher.Quote, len(quotes))
	for _, q := range quotes {
		byCode[q.Code] = q
	}

	out := make([]alerting.Observation, 0, len(quotes))
	known := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		known[inst.Code] = true
		if q, ok := byCode[inst.Code]; ok {
			out = append(out, q.Observation(inst.Name, at))
		}
	}
	for _, q := range quotes {
		if !known[q.Code] {
			out = append(out, q.Observation(q.Code, at))
		}
	}
	return out
}

func snapshotData(quotes []fetcher.Quote) map[string]fetcher.Quote {
	data := make(map[string]fetcher.Quote, len(quotes))
	for _, q := range quotes {
		data[q.Code] = q
	}
	return data
}
