package reporting

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a report has no currency set.
const DefaultCurrency = "USD"

// formatMoney renders amount in currency using its minor-unit precision.
// Unknown currencies fall back to two decimals.
func formatMoney(amount float64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	cur := money.GetCurrency(currency)
	if cur == nil {
		return decimal.NewFromFloat(amount).StringFixed(2)
	}

	factor := decimal.New(1, int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}

// formatFixed renders v with places decimals.
func formatFixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// formatPct renders a 0-100 percentage.
func formatPct(p float64) string {
	return fmt.Sprintf("%s%%", formatFixed(p, 2))
}

// formatFraction renders a 0-1 fraction as a percentage.
func formatFraction(f float64) string {
	return formatPct(f * 100)
}
