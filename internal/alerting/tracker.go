package alerting

import (
	"time"
)

// Tracker 持有监控进程的全部预警状态：冷却登记表、各合约上一次观测值以及最近预警列表。
// 由轮询循环独占使用，每个周期调用一次 Observe。
type Tracker struct {
	evaluator *Evaluator
	cooldowns *CooldownRegistry
	previous  map[string]Observation
	history   *History
}

// NewTracker wires an evaluator with fresh per-process state.
func NewTracker(evaluator *Evaluator, cooldown time.Duration, historySize int) *Tracker {
	return &Tracker{
		evaluator: evaluator,
		cooldowns: NewCooldownRegistry(cooldown),
		previous:  make(map[string]Observation),
		history:   NewHistory(historySize),
	}
}

// Observe evaluates one polling cycle. Every observation is compared against the
// previous cycle, then the cycle replaces the previous one. The day open used for
// DAY_PRICE is the observation's own open.
func (t *Tracker) Observe(batch []Observation, now time.Time) []Condition {
	conds := make([]Condition, 0)
	for _, obs := range batch {
		in := Input{Current: obs, DayOpen: obs.Open}
		if prev, ok := t.previous[obs.InstrumentID]; ok {
			p := prev
			in.Previous = &p
		}
		conds = append(conds, t.evaluator.Evaluate(in, t.cooldowns, now)...)
	}

	next := make(map[string]Observation, len(batch))
	for _, obs := range batch {
		next[obs.InstrumentID] = obs
	}
	t.previous = next

	t.history.Add(conds...)
	return conds
}

// Previous returns the last observation recorded for an instrument.
func (t *Tracker) Previous(instrument string) (Observation, bool) {
	obs, ok := t.previous[instrument]
	return obs, ok
}

// Recent returns up to n recent conditions, newest first.
func (t *Tracker) Recent(n int) []Condition {
	return t.history.Recent(n)
}

// Reconfigure swaps thresholds and cooldown while keeping cooldown timestamps and previous observations.
func (t *Tracker) Reconfigure(evaluator *Evaluator, cooldown time.Duration) {
	t.evaluator = evaluator
	t.cooldowns.SetInterval(cooldown)
}

// Cooldowns exposes the registry for inspection.
func (t *Tracker) Cooldowns() *CooldownRegistry {
	return t.cooldowns
}
