// Package units converts 18-decimal on-chain amounts to display values and back.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the token precision used by every amount this service reads.
const Decimals = 18

// ToDisplay scales a raw on-chain amount down by 10^18. A nil amount is zero.
func ToDisplay(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -Decimals)
}

// FromDisplay is the inverse of ToDisplay. Digits beyond 18 decimals are truncated.
func FromDisplay(v decimal.Decimal) *big.Int {
	return v.Shift(Decimals).BigInt()
}

// Float returns the display value of raw as float64, for chart points.
func Float(raw *big.Int) float64 {
	f, _ := ToDisplay(raw).Float64()
	return f
}

// ParseRaw parses a base-10 integer amount, as served by the subgraph for BigInt fields.
func ParseRaw(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", s)
	}
	return n, nil
}
