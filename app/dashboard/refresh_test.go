package dashboard

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/debaseonomics/debasex/app/dashboard/types"
	"github.com/debaseonomics/debasex/pkg/chain"
	"github.com/debaseonomics/debasex/pkg/readmodel"
	"github.com/debaseonomics/debasex/pkg/subgraph"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var e18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func tokens(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), e18) }

type selectorCaller struct {
	mu      sync.Mutex
	outputs map[string][]byte
	failing map[string]bool
	calls   atomic.Int32
}

func newSelectorCaller(t *testing.T) *selectorCaller {
	t.Helper()
	c := &selectorCaller{outputs: map[string][]byte{}, failing: map[string]bool{}}
	pack := func(contract *abi.ABI, method string, values ...any) {
		bz, err := contract.Methods[method].Outputs.Pack(values...)
		require.NoError(t, err)
		c.outputs[method] = bz
	}
	pack(chain.PoolABI, chain.MethodRewardDistributed, tokens(1000))
	pack(chain.OrchestratorABI, chain.MethodRebaseRequiredSupply, tokens(5000))
	pack(chain.OrchestratorABI, chain.MethodMaximumRebaseTime, big.NewInt(time.Now().Add(time.Hour).Unix()))
	pack(chain.PairABI, chain.MethodGetReserves, tokens(3), tokens(2), uint32(1))
	return c
}

func (c *selectorCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, contract := range []*abi.ABI{chain.PoolABI, chain.OrchestratorABI, chain.PairABI} {
		for name, m := range contract.Methods {
			if bytes.Equal(call.Data[:4], m.ID) {
				if c.failing[name] {
					return nil, errors.New("execution reverted")
				}
				return c.outputs[name], nil
			}
		}
	}
	return nil, errors.New("unknown selector")
}

type indexerFunc func(ctx context.Context) ([]subgraph.RebaseEvent, error)

func (f indexerFunc) Rebases(ctx context.Context) ([]subgraph.RebaseEvent, error) { return f(ctx) }

var addrs = chain.Addresses{
	DaiPool:      "0x1111111111111111111111111111111111111111",
	LpPool:       "0x2222222222222222222222222222222222222222",
	Orchestrator: "0x3333333333333333333333333333333333333333",
	Pair:         "0x4444444444444444444444444444444444444444",
}

func newTestApp(t *testing.T, caller chain.Caller, indexer subgraph.Client) *types.App {
	t.Helper()
	logger := zaptest.NewLogger(t)
	agg := readmodel.NewDefault()
	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)

	app := &types.App{
		Reader:     chain.NewReader(caller, addrs, logger),
		Indexer:    indexer,
		Aggregator: agg,
		State:      types.NewState(agg),
		Logger:     logger,
		Pool:       pool,
	}
	app.Notifier = types.NewNotifier(10, nil, logger)
	return app
}

func history() []subgraph.RebaseEvent {
	return []subgraph.RebaseEvent{
		{Epoch: 2, SupplyAdjustment: new(big.Int).Neg(tokens(50)), Timestamp: 1_600_086_400},
		{Epoch: 1, SupplyAdjustment: tokens(100), Timestamp: 1_600_000_000},
	}
}

func TestRefresh_PopulatesState(t *testing.T) {
	caller := newSelectorCaller(t)
	app := newTestApp(t, caller, indexerFunc(func(context.Context) ([]subgraph.RebaseEvent, error) {
		return history(), nil
	}))

	Refresh(context.Background(), app)

	snap := app.State.Snapshot()
	require.NotNil(t, snap.Scalars.RewardDistributed)
	assert.Equal(t, "72000.00", snap.Scalars.RewardDistributed.StringFixed(2))
	require.NotNil(t, snap.Scalars.RequiredDistribution)
	assert.Equal(t, "75000", snap.Scalars.RequiredDistribution.String())
	require.NotNil(t, snap.Scalars.CurrentPrice)
	assert.Equal(t, "1.50", snap.Scalars.CurrentPrice.StringFixed(2))
	require.NotNil(t, snap.Scalars.TimeRemaining)
	assert.Positive(t, *snap.Scalars.TimeRemaining)

	require.Len(t, snap.Series.TotalSupply, 3)
	assert.Equal(t, 1_000_050.0, snap.Series.TotalSupply[2].Value)
	assert.False(t, snap.RefreshedAt.IsZero())

	// every cycle starts a new generation, so reads are reissued
	first := caller.calls.Load()
	Refresh(context.Background(), app)
	assert.Equal(t, 2*first, caller.calls.Load())
}

func TestRefresh_FailuresDegradeIndependently(t *testing.T) {
	caller := newSelectorCaller(t)
	fail := atomic.Bool{}
	app := newTestApp(t, caller, indexerFunc(func(context.Context) ([]subgraph.RebaseEvent, error) {
		if fail.Load() {
			return nil, errors.New("subgraph unavailable")
		}
		return history(), nil
	}))

	caller.failing[chain.MethodGetReserves] = true
	Refresh(context.Background(), app)

	snap := app.State.Snapshot()
	assert.Nil(t, snap.Scalars.CurrentPrice)
	assert.NotNil(t, snap.Scalars.RewardDistributed)
	assert.Len(t, snap.Series.TotalSupply, 3)

	fail.Store(true)
	Refresh(context.Background(), app)

	snap = app.State.Snapshot()
	assert.Len(t, snap.Series.TotalSupply, 3, "stale series survive an indexer failure")
	assert.Equal(t, "subgraph unavailable", snap.HistoryError)
	assert.NotNil(t, snap.Scalars.RequiredDistribution)
}

func TestRefresh_NoProvider(t *testing.T) {
	app := newTestApp(t, nil, indexerFunc(func(context.Context) ([]subgraph.RebaseEvent, error) {
		return nil, nil
	}))

	Refresh(context.Background(), app)

	snap := app.State.Snapshot()
	assert.Nil(t, snap.Scalars.RewardDistributed)
	assert.Nil(t, snap.Scalars.RequiredDistribution)
	assert.Nil(t, snap.Scalars.MaximumRebaseTime)
	assert.Nil(t, snap.Scalars.CurrentPrice)
	assert.True(t, snap.Series.Empty())
	assert.True(t, app.State.HistoryLoaded())
}

func TestSetupScheduler(t *testing.T) {
	app := newTestApp(t, nil, indexerFunc(func(context.Context) ([]subgraph.RebaseEvent, error) {
		return nil, nil
	}))

	require.NoError(t, SetupScheduler(context.Background(), app, cron.DefaultLogger, DefaultRefreshCron, time.Second))
	assert.Len(t, app.Scheduler.Entries(), 1)

	assert.Error(t, SetupScheduler(context.Background(), app, cron.DefaultLogger, "not a cron", time.Second))
}
