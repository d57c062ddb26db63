package readmodel

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const (
	// Placeholder is shown while a metric is pending.
	Placeholder = "…"
	// TokenSymbol suffixes token amounts.
	TokenSymbol = "Debase"
)

// FormatDistributed renders the distributed total without trailing zeros, e.g. "82345.6 Debase".
func FormatDistributed(v *decimal.Decimal) string {
	if v == nil {
		return Placeholder
	}
	return v.String() + " " + TokenSymbol
}

// FormatRequired renders the rebase threshold in full precision.
func FormatRequired(v *decimal.Decimal) string {
	if v == nil {
		return Placeholder
	}
	return v.String() + " " + TokenSymbol
}

// FormatPrice renders the pair price with two decimals, e.g. "1.50".
func FormatPrice(v *decimal.Decimal) string {
	if v == nil {
		return Placeholder
	}
	return v.StringFixed(2)
}

// FormatRelative renders at relative to now, e.g. "3 hours from now" or "2 minutes ago".
func FormatRelative(at *time.Time, now time.Time) string {
	if at == nil {
		return Placeholder
	}
	return humanize.RelTime(*at, now, "ago", "from now")
}
