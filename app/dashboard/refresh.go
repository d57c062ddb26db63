package dashboard

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/debaseonomics/debasex/app/dashboard/types"
	"github.com/debaseonomics/debasex/pkg/cache"
	"github.com/debaseonomics/debasex/pkg/chain"
	"github.com/debaseonomics/debasex/pkg/readmodel"
	"github.com/debaseonomics/debasex/pkg/redis"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRefreshCron refreshes every 30 seconds (seconds field included).
const DefaultRefreshCron = "*/30 * * * * *"

// SetupScheduler sets up the cron scheduler driving Refresh.
func SetupScheduler(ctx context.Context, app *types.App, logger cron.Logger, cronSpec string, timeout time.Duration) error {
	// Seconds field, optional
	app.Scheduler = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := app.Scheduler.AddFunc(cronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		Refresh(rctx, app)
	})
	return err
}

// Refresh runs one refresh cycle. Cached reads are invalidated first so every read in the
// cycle belongs to a new generation; the chain reads and the indexer fetch then run
// concurrently and each result updates only its own part of the state.
func Refresh(ctx context.Context, app *types.App) {
	start := time.Now()
	app.Reader.Invalidate()

	group := app.Pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	if app.Reader.Connected() {
		addrs := app.Reader.Addresses()
		submitRead(group, groupCtx, app, "daiPool.rewardDistributed", func(ctx context.Context) (*big.Int, error) {
			return app.Reader.RewardDistributed(ctx, addrs.DaiPool)
		}, func(cs *readmodel.ChainState, v *big.Int) { cs.DaiPoolReward = v })

		submitRead(group, groupCtx, app, "lpPool.rewardDistributed", func(ctx context.Context) (*big.Int, error) {
			return app.Reader.RewardDistributed(ctx, addrs.LpPool)
		}, func(cs *readmodel.ChainState, v *big.Int) { cs.LpPoolReward = v })

		submitRead(group, groupCtx, app, "orchestrator.rebaseRequiredSupply", app.Reader.RebaseRequiredSupply,
			func(cs *readmodel.ChainState, v *big.Int) { cs.RequiredSupply = v })

		submitRead(group, groupCtx, app, "orchestrator.maximumRebaseTime", app.Reader.MaximumRebaseTime,
			func(cs *readmodel.ChainState, v *big.Int) { cs.MaximumRebaseTime = v })

		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			reserves, err := app.Reader.Reserves(groupCtx)
			if err != nil {
				logReadError(app.Logger, "pair.getReserves", err)
				return
			}
			app.State.UpdateChain(func(cs *readmodel.ChainState) {
				cs.Reserve0 = reserves.Reserve0
				cs.Reserve1 = reserves.Reserve1
			})
		})
	} else {
		app.Logger.Debug("No provider configured, chain metrics stay pending")
	}

	group.Submit(func() {
		if err := groupCtx.Err(); err != nil {
			return
		}
		events, err := app.Indexer.Rebases(groupCtx)
		if err != nil {
			app.Logger.Warn("Indexer fetch failed, keeping previous series", zap.Error(err))
			app.State.HistoryFailed(err)
			return
		}
		if err := app.State.SetHistory(events); err != nil {
			app.Logger.Warn("Rejected rebase history", zap.Int("events", len(events)), zap.Error(err))
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		app.Logger.Warn("refresh cycle encountered error", zap.Error(err))
	}

	now := time.Now().UTC()
	app.State.MarkRefreshed(now)
	app.Logger.Debug("Refresh cycle complete", zap.Duration("took", time.Since(start)))

	publishSnapshot(ctx, app)
}

func submitRead(
	group pond.TaskGroup,
	groupCtx context.Context,
	app *types.App,
	name string,
	read func(ctx context.Context) (*big.Int, error),
	apply func(cs *readmodel.ChainState, v *big.Int),
) {
	group.Submit(func() {
		if err := groupCtx.Err(); err != nil {
			return
		}
		v, err := read(groupCtx)
		if err != nil {
			logReadError(app.Logger, name, err)
			return
		}
		app.State.UpdateChain(func(cs *readmodel.ChainState) { apply(cs, v) })
	})
}

func logReadError(logger *zap.Logger, name string, err error) {
	switch {
	case errors.Is(err, cache.ErrSuperseded), errors.Is(err, context.Canceled):
		logger.Debug("Chain read superseded", zap.String("read", name))
	case errors.Is(err, chain.ErrNoProvider):
		logger.Debug("Chain read skipped, no provider", zap.String("read", name))
	default:
		logger.Warn("Chain read failed", zap.String("read", name), zap.Error(err))
	}
}

// publishSnapshot tells WebSocket bridges on every instance that a new snapshot is available.
func publishSnapshot(ctx context.Context, app *types.App) {
	if app.RedisClient == nil {
		return
	}
	snap := app.State.Snapshot()
	payload, err := json.Marshal(map[string]any{
		"refreshedAt": snap.RefreshedAt,
		"scalars":     snap.Scalars,
		"points":      len(snap.Series.TotalSupply),
	})
	if err != nil {
		app.Logger.Warn("Failed to encode snapshot event", zap.Error(err))
		return
	}
	app.RedisClient.Publish(ctx, redis.Channel(redis.TopicSnapshot), string(payload))
}
