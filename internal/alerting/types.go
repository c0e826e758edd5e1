package alerting

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConditionType 标识一种阈值突破。
type ConditionType string

const (
	DayPrice     ConditionType = "DAY_PRICE"
	ShortPrice   ConditionType = "SHORT_PRICE"
	OpenInterest ConditionType = "OPEN_INTEREST"
	DayHigh      ConditionType = "DAY_HIGH"
	DayLow       ConditionType = "DAY_LOW"
)

// AllConditionTypes lists every check in evaluation order.
var AllConditionTypes = []ConditionType{DayPrice, ShortPrice, OpenInterest, DayHigh, DayLow}

// Severity of an emitted condition.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// ParseSeverity accepts high/medium/low in any case.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityLow:
		return SeverityLow, true
	}
	return "", false
}

// Observation 是某一合约在某一时刻的行情快照。
// 无效的 NullDecimal 表示字段缺失。
type Observation struct {
	InstrumentID string
	Name         string
	Timestamp    time.Time
	Last         decimal.NullDecimal
	Open         decimal.NullDecimal
	High         decimal.NullDecimal
	Low          decimal.NullDecimal
	Volume       decimal.NullDecimal
	Amount       decimal.NullDecimal
	OpenInterest decimal.NullDecimal
	ChangeRatio  decimal.NullDecimal
}

// DisplayName falls back to the instrument id.
func (o Observation) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.InstrumentID
}

// Condition is one detected threshold crossing. It is never mutated after creation.
type Condition struct {
	InstrumentID   string          `json:"instrument_id"`
	InstrumentName string          `json:"instrument_name"`
	Type           ConditionType   `json:"type"`
	ChangePct      decimal.Decimal `json:"change_pct"`
	MagnitudePct   decimal.Decimal `json:"magnitude_pct"`
	Severity       Severity        `json:"severity"`
	Message        string          `json:"message"`
	Detail         string          `json:"detail"`
	DetectedAt     time.Time       `json:"detected_at"`
}

// Input bundles what a single evaluation sees.
type Input struct {
	Current  Observation
	Previous *Observation
	DayOpen  decimal.NullDecimal
}
