package units

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil))
}

func TestToDisplay(t *testing.T) {
	assert.True(t, ToDisplay(ether(100)).Equal(decimal.NewFromInt(100)))
	assert.True(t, ToDisplay(ether(-50)).Equal(decimal.NewFromInt(-50)))
	assert.True(t, ToDisplay(big.NewInt(1)).Equal(decimal.New(1, -18)))
	assert.True(t, ToDisplay(nil).IsZero())
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "999999999999999999", "100000000000000000000", "-50000000000000000000", "123456789012345678901234567890"} {
		raw, err := ParseRaw(s)
		require.NoError(t, err)
		assert.Equal(t, 0, raw.Cmp(FromDisplay(ToDisplay(raw))), s)
	}
}

func TestFloat(t *testing.T) {
	assert.InDelta(t, 1.5, Float(new(big.Int).Div(ether(3), big.NewInt(2))), 1e-12)
}

func TestParseRaw_Invalid(t *testing.T) {
	_, err := ParseRaw("12abc")
	assert.Error(t, err)
	_, err = ParseRaw("")
	assert.Error(t, err)
}
