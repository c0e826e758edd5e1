package report

import (
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"nickel-watch/internal/alerting"
)

var printer = message.NewPrinter(language.SimplifiedChinese)

const missing = "--"

// Price renders whole units with thousands grouping, "--" when missing.
func Price(v decimal.NullDecimal) string {
	if !v.Valid {
		return missing
	}
	return printer.Sprintf("%.0f", v.Decimal.Round(0).InexactFloat64())
}

// Number renders v with places decimals and thousands grouping.
func Number(v decimal.NullDecimal, places int) string {
	if !v.Valid {
		return missing
	}
	return printer.Sprintf("%.*f", places, v.Decimal.Round(int32(places)).InexactFloat64())
}

// SignedPrice renders a grouped whole-unit delta with an explicit sign.
func SignedPrice(v decimal.NullDecimal) string {
	if !v.Valid {
		return missing
	}
	return printer.Sprintf("%+.0f", v.Decimal.Round(0).InexactFloat64())
}

// Percent renders a signed percentage with two decimals, e.g. +1.25%.
func Percent(v decimal.NullDecimal) string {
	if !v.Valid {
		return missing
	}
	s := v.Decimal.StringFixed(2)
	if v.Decimal.Sign() >= 0 {
		s = "+" + s
	}
	return s + "%"
}

// Direction returns "up", "down" or "" for CSS classes.
func Direction(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	if v.Decimal.Sign() >= 0 {
		return "up"
	}
	return "down"
}

// Arrow returns ▲ or ▼ following Direction.
func Arrow(v decimal.NullDecimal) string {
	switch Direction(v) {
	case "up":
		return "▲"
	case "down":
		return "▼"
	}
	return ""
}

func severityClass(sev alerting.Severity) string {
	return strings.ToLower(string(sev))
}

func severityIcon(sev alerting.Severity) string {
	switch sev {
	case alerting.SeverityHigh:
		return "🚨"
	case alerting.SeverityMedium:
		return "⚠️"
	default:
		return "📢"
	}
}

var funcs = template.FuncMap{
	"price":       Price,
	"number":      Number,
	"signedPrice": SignedPrice,
	"percent":     Percent,
	"direction":   Direction,
	"arrow":       Arrow,
	"sevClass":    severityClass,
	"sevIcon":     severityIcon,
	"clock": func(t time.Time) string {
		return t.Format("15:04:05")
	},
	"stamp": func(t time.Time) string {
		return t.Format("2006-01-02 15:04:05")
	},
	"date": func(t time.Time) string {
		return t.Format("2006-01-02")
	},
	"fixed2": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
}
