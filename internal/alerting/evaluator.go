package alerting

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Thresholds 为各检查项的触发阈值（百分比）。
// 非正数阈值表示关闭对应检查。
type Thresholds struct {
	DayPricePct   decimal.Decimal
	ShortPricePct decimal.Decimal
	OIPct         decimal.Decimal
	// NearHighPct/NearLowPct: distance to the day's extreme still counted as touching it.
	NearHighPct decimal.Decimal
	NearLowPct  decimal.Decimal
	// HighMultiple escalates DAY_PRICE to HIGH once |pct| >= DayPricePct*HighMultiple.
	HighMultiple decimal.Decimal
	// Severities overrides the fixed severity of SHORT_PRICE, OPEN_INTEREST, DAY_HIGH and DAY_LOW.
	Severities map[ConditionType]Severity
}

// DefaultThresholds returns the values the desk has been running with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DayPricePct:   decimal.NewFromInt(1),
		ShortPricePct: decimal.RequireFromString("0.5"),
		OIPct:         decimal.NewFromInt(1),
		NearHighPct:   decimal.RequireFromString("0.1"),
		NearLowPct:    decimal.RequireFromString("0.1"),
		HighMultiple:  decimal.NewFromInt(2),
		Severities:    DefaultSeverities(),
	}
}

// DefaultSeverities maps the fixed-severity checks to their default level.
func DefaultSeverities() map[ConditionType]Severity {
	return map[ConditionType]Severity{
		ShortPrice:   SeverityHigh,
		OpenInterest: SeverityMedium,
		DayHigh:      SeverityLow,
		DayLow:       SeverityLow,
	}
}

func (t Thresholds) severity(kind ConditionType) Severity {
	if sev, ok := t.Severities[kind]; ok && sev != "" {
		return sev
	}
	return DefaultSeverities()[kind]
}

func (t Thresholds) highMultiple() decimal.Decimal {
	if t.HighMultiple.IsPositive() {
		return t.HighMultiple
	}
	return decimal.NewFromInt(2)
}

// Evaluator 对单个合约的一次观测执行全部检查。
// 除冷却登记表外不持有任何状态。
type Evaluator struct {
	thresholds Thresholds
	checks     []check
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithChecks restricts evaluation to the given condition types, keeping the default order.
func WithChecks(kinds ...ConditionType) Option {
	return func(e *Evaluator) {
		wanted := make(map[ConditionType]bool, len(kinds))
		for _, k := range kinds {
			wanted[k] = true
		}
		filtered := make([]check, 0, len(kinds))
		for _, c := range e.checks {
			if wanted[c.kind] {
				filtered = append(filtered, c)
			}
		}
		e.checks = filtered
	}
}

// NewEvaluator builds an evaluator running every check unless restricted by options.
func NewEvaluator(thresholds Thresholds, opts ...Option) *Evaluator {
	e := &Evaluator{thresholds: thresholds, checks: defaultChecks()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Thresholds returns the active thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Kinds lists the condition types this evaluator checks, in order.
func (e *Evaluator) Kinds() []ConditionType {
	kinds := make([]ConditionType, 0, len(e.checks))
	for _, c := range e.checks {
		kinds = append(kinds, c.kind)
	}
	return kinds
}

// Evaluate runs every check against in and returns the conditions that pass the cooldown gate.
// Every emitted condition is recorded in registry. A nil registry disables gating.
func (e *Evaluator) Evaluate(in Input, registry *CooldownRegistry, now time.Time) []Condition {
	id := in.Current.InstrumentID
	conds := make([]Condition, 0)

	for _, c := range e.checks {
		f, ok := c.detect(in, e.thresholds)
		if !ok {
			continue
		}
		if registry != nil {
			if !registry.Allow(id, c.kind, now) {
				continue
			}
			registry.Record(id, c.kind, now)
		}
		conds = append(conds, Condition{
			InstrumentID:   id,
			InstrumentName: in.Current.DisplayName(),
			Type:           c.kind,
			ChangePct:      f.changePct,
			MagnitudePct:   f.changePct.Abs(),
			Severity:       f.severity,
			Message:        f.message,
			Detail:         f.detail,
			DetectedAt:     now,
		})
	}

	return conds
}

// nonZero unwraps v when it is present and nonzero.
func nonZero(v decimal.NullDecimal) (decimal.Decimal, bool) {
	if !v.Valid || v.Decimal.IsZero() {
		return decimal.Decimal{}, false
	}
	return v.Decimal, true
}

// percentChange returns (to-from)/from*100; from must be nonzero.
func percentChange(from, to decimal.Decimal) decimal.Decimal {
	return to.Sub(from).Div(from).Mul(hundred)
}
