package alerting

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var pricePrinter = message.NewPrinter(language.SimplifiedChinese)

// formatPrice renders whole units with thousands grouping, e.g. 128,450.
func formatPrice(d decimal.Decimal) string {
	return pricePrinter.Sprintf("%.0f", d.Round(0).InexactFloat64())
}
