package readmodel

import (
	"math/big"
	"testing"
	"time"

	"github.com/debaseonomics/debasex/pkg/subgraph"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = int64(24 * 60 * 60)

func raw(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, s)
	return n
}

// descending builds indexer-ordered history (newest first) from chronological adjustments.
func descending(t *testing.T, start int64, adjustments ...string) []subgraph.RebaseEvent {
	t.Helper()
	out := make([]subgraph.RebaseEvent, len(adjustments))
	for i, adj := range adjustments {
		out[len(adjustments)-1-i] = subgraph.RebaseEvent{
			Epoch:            uint64(i + 1),
			SupplyAdjustment: raw(t, adj),
			Timestamp:        start + int64(i)*day,
		}
	}
	return out
}

func TestBuildSeries_Empty(t *testing.T) {
	series, err := NewDefault().BuildSeries(nil)
	require.NoError(t, err)
	assert.Empty(t, series.TotalSupply)
	assert.Empty(t, series.RebasePercentage)
	assert.True(t, series.Empty())
}

func TestBuildSeries_SingleZeroAdjustment(t *testing.T) {
	events := descending(t, 1_600_000_000, "0")

	series, err := NewDefault().BuildSeries(events)
	require.NoError(t, err)

	require.Len(t, series.TotalSupply, 2)
	for _, p := range series.TotalSupply {
		assert.Equal(t, float64(DefaultGenesisSupply), p.Value)
		assert.True(t, p.Exact.Equal(decimal.NewFromInt(DefaultGenesisSupply)))
	}
	require.Len(t, series.RebasePercentage, 1)
	assert.Equal(t, 0.0, series.RebasePercentage[0].Value)
}

func TestBuildSeries_ExpansionThenContraction(t *testing.T) {
	events := descending(t, 1_600_000_000, "100000000000000000000", "-50000000000000000000")

	series, err := NewDefault().BuildSeries(events)
	require.NoError(t, err)

	require.Len(t, series.TotalSupply, 3)
	assert.Equal(t, 1_000_000.0, series.TotalSupply[0].Value)
	assert.Equal(t, 1_000_100.0, series.TotalSupply[1].Value)
	assert.Equal(t, 1_000_050.0, series.TotalSupply[2].Value)

	require.Len(t, series.RebasePercentage, 2)
	assert.InDelta(t, 0.01, series.RebasePercentage[0].Value, 1e-12)
	assert.InDelta(t, -50.0/1_000_100.0*100, series.RebasePercentage[1].Value, 1e-12)
	assert.Equal(t, uint64(1), series.RebasePercentage[0].Epoch)
	assert.Equal(t, uint64(2), series.RebasePercentage[1].Epoch)
}

func TestBuildSeries_AnchorPoint(t *testing.T) {
	start := int64(1_600_000_000)
	events := descending(t, start, "5000000000000000000")

	series, err := NewDefault().BuildSeries(events)
	require.NoError(t, err)

	anchor := series.TotalSupply[0]
	assert.Equal(t, uint64(0), anchor.Epoch)
	assert.Equal(t, start-day, anchor.Timestamp)
	assert.Equal(t, "9/12/2020", anchor.Date)
	assert.Equal(t, "9/13/2020", series.TotalSupply[1].Date)
}

func TestBuildSeries_Properties(t *testing.T) {
	cases := map[string][]string{
		"all zero":      {"0", "0", "0", "0"},
		"all positive":  {"1", "250000000000000000000", "3000000000000000000", "0"},
		"mixed":         {"1000000000000000000000", "-400000000000000000000", "7", "-1"},
		"single":        {"42000000000000000000"},
		"large history": {"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"},
	}

	agg := NewDefault()
	for name, adjustments := range cases {
		t.Run(name, func(t *testing.T) {
			events := descending(t, 1_600_000_000, adjustments...)
			series, err := agg.BuildSeries(events)
			require.NoError(t, err)

			assert.Len(t, series.TotalSupply, len(events)+1)
			assert.Len(t, series.RebasePercentage, len(events))

			nonNegative := true
			for _, a := range adjustments {
				if a[0] == '-' {
					nonNegative = false
				}
			}

			ordered, err := Chronological(events)
			require.NoError(t, err)
			for i, p := range series.TotalSupply {
				assert.True(t, p.Exact.Equal(agg.CumulativeSupplyThrough(ordered, i)), "running sum diverged at %d", i)
				if i == 0 {
					continue
				}
				assert.Greater(t, p.Timestamp, series.TotalSupply[i-1].Timestamp)
				if nonNegative {
					assert.True(t, p.Exact.GreaterThanOrEqual(series.TotalSupply[i-1].Exact))
				}
			}
		})
	}
}

func TestBuildSeries_DecreasingWhenContraction(t *testing.T) {
	events := descending(t, 1_600_000_000, "10", "-20")
	series, err := NewDefault().BuildSeries(events)
	require.NoError(t, err)
	assert.True(t, series.TotalSupply[2].Exact.LessThan(series.TotalSupply[1].Exact))
}

func TestBuildSeries_RejectsUnorderedHistory(t *testing.T) {
	events := descending(t, 1_600_000_000, "1", "2", "3")
	events[0], events[1] = events[1], events[0]

	_, err := NewDefault().BuildSeries(events)
	assert.ErrorIs(t, err, ErrUnorderedHistory)

	dup := descending(t, 1_600_000_000, "1", "2")
	dup[0].Epoch = dup[1].Epoch
	_, err = NewDefault().BuildSeries(dup)
	assert.ErrorIs(t, err, ErrUnorderedHistory)
}

func TestBuildSeries_RejectsNonPositiveSupply(t *testing.T) {
	agg := New(decimal.NewFromInt(10), decimal.Zero)
	events := descending(t, 1_600_000_000, "-10000000000000000000", "1")

	_, err := agg.BuildSeries(events)
	assert.ErrorIs(t, err, ErrNonPositiveSupply)
}

func TestFormatDate_Location(t *testing.T) {
	agg := NewDefault()
	agg.Location = time.FixedZone("UTC+10", 10*60*60)
	assert.Equal(t, "9/14/2020", agg.FormatDate(1_600_056_000))
	agg.Location = nil
	assert.Equal(t, "9/14/2020", agg.FormatDate(1_600_056_000))
}

func TestBuildSeries_PercentageKeepsSubWeiPrecision(t *testing.T) {
	events := descending(t, 1_600_000_000, "0", "1", "123456789")

	series, err := NewDefault().BuildSeries(events)
	require.NoError(t, err)
	require.Len(t, series.RebasePercentage, 2)

	assert.True(t, series.RebasePercentage[0].Exact.Equal(decimal.New(1, -22)), series.RebasePercentage[0].Exact.String())
	assert.False(t, series.RebasePercentage[1].Exact.IsZero())
	assert.Equal(t, 1, series.RebasePercentage[1].Exact.Sign())
}
