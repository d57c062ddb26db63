package readmodel

import (
	"math/big"
	"time"

	"github.com/debaseonomics/debasex/pkg/units"
	"github.com/shopspring/decimal"
)

// ChainState is the latest raw chain reads. A nil field means the read is still pending
// or has failed; only the metrics depending on it stay pending.
type ChainState struct {
	DaiPoolReward     *big.Int
	LpPoolReward      *big.Int
	RequiredSupply    *big.Int
	MaximumRebaseTime *big.Int
	Reserve0          *big.Int
	Reserve1          *big.Int
}

// Scalars are the point-in-time metrics. Nil means pending.
type Scalars struct {
	RewardDistributed    *decimal.Decimal `json:"rewardDistributed"`
	RequiredDistribution *decimal.Decimal `json:"requiredDistribution"`
	MaximumRebaseTime    *time.Time       `json:"maximumRebaseTime"`
	TimeRemaining        *time.Duration   `json:"timeRemaining"`
	CurrentPrice         *decimal.Decimal `json:"currentPrice"`
}

// RewardDistributed sums both pool reward counters, rounds to cents and adds the offset.
func (a *Aggregator) RewardDistributed(daiPool, lpPool *big.Int) (decimal.Decimal, bool) {
	if daiPool == nil || lpPool == nil {
		return decimal.Zero, false
	}
	sum := units.ToDisplay(daiPool).Add(units.ToDisplay(lpPool)).Round(2)
	return sum.Add(a.DistributionOffset), true
}

// RequiredDistribution is the orchestrator's threshold plus the offset.
func (a *Aggregator) RequiredDistribution(required *big.Int) (decimal.Decimal, bool) {
	if required == nil {
		return decimal.Zero, false
	}
	return units.ToDisplay(required).Add(a.DistributionOffset), true
}

// TimeRemaining converts the on-chain maximum rebase timestamp into a wall time and its
// distance from now. Negative durations mean the deadline has passed.
func (a *Aggregator) TimeRemaining(maximumRebaseTime *big.Int) (time.Time, time.Duration, bool) {
	if maximumRebaseTime == nil || !maximumRebaseTime.IsInt64() {
		return time.Time{}, 0, false
	}
	at := time.Unix(maximumRebaseTime.Int64(), 0)
	return at, at.Sub(a.now()), true
}

// CurrentPrice is reserve0 / reserve1 in display units, rounded to cents.
func (a *Aggregator) CurrentPrice(reserve0, reserve1 *big.Int) (decimal.Decimal, bool) {
	if reserve0 == nil || reserve1 == nil || reserve1.Sign() == 0 {
		return decimal.Zero, false
	}
	return units.ToDisplay(reserve0).Div(units.ToDisplay(reserve1)).Round(2), true
}

// Metrics computes every scalar it has inputs for.
func (a *Aggregator) Metrics(state ChainState) Scalars {
	var out Scalars
	if v, ok := a.RewardDistributed(state.DaiPoolReward, state.LpPoolReward); ok {
		out.RewardDistributed = &v
	}
	if v, ok := a.RequiredDistribution(state.RequiredSupply); ok {
		out.RequiredDistribution = &v
	}
	if at, left, ok := a.TimeRemaining(state.MaximumRebaseTime); ok {
		out.MaximumRebaseTime = &at
		out.TimeRemaining = &left
	}
	if v, ok := a.CurrentPrice(state.Reserve0, state.Reserve1); ok {
		out.CurrentPrice = &v
	}
	return out
}
