package dashboard

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/debaseonomics/debasex/app/dashboard/types"
	"github.com/debaseonomics/debasex/pkg/chain"
	"github.com/debaseonomics/debasex/pkg/logging"
	"github.com/debaseonomics/debasex/pkg/readmodel"
	"github.com/debaseonomics/debasex/pkg/redis"
	"github.com/debaseonomics/debasex/pkg/subgraph"
	"github.com/debaseonomics/debasex/pkg/utils"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	agg, err := newAggregator()
	if err != nil {
		logger.Fatal("Invalid read-model configuration", zap.Error(err))
	}

	reader := chain.NewReader(nil, chain.Addresses{
		DaiPool:      utils.Env("DEBASE_DAI_POOL", ""),
		LpPool:       utils.Env("DEBASE_DAI_LP_POOL", ""),
		Orchestrator: utils.Env("ORCHESTRATOR", ""),
		Pair:         utils.Env("DEBASE_DAI_LP", ""),
	}, logger)

	app := &types.App{
		Reader:     reader,
		Aggregator: agg,
		State:      types.NewState(agg),
		Logger:     logger,
		Pool:       pond.NewPool(workerPoolSize()),
	}

	// The provider is optional: without it every chain metric stays pending.
	ethClient, err := chain.Dial(ctx, utils.Env("RPC_URL", ""))
	switch {
	case errors.Is(err, chain.ErrNoProvider):
		logger.Info("RPC_URL not set - chain metrics will stay pending")
	case err != nil:
		logger.Warn("Failed to connect to RPC provider - chain metrics will stay pending", zap.Error(err))
	default:
		app.EthClient = ethClient
		reader.SetProvider(ethClient)

		signer, signerErr := chain.NewSigner(ctx, ethClient, utils.Env("REBASER_PRIVATE_KEY", ""), logger)
		switch {
		case errors.Is(signerErr, chain.ErrNoSigner):
			logger.Info("REBASER_PRIVATE_KEY not set - rebase action disabled")
		case signerErr != nil:
			logger.Warn("Failed to configure rebase signer - rebase action disabled", zap.Error(signerErr))
		default:
			reader.SetSigner(ethClient, signer)
		}
	}

	app.Indexer = subgraph.NewHTTPWithOpts(subgraph.Opts{
		Endpoints: utils.SplitList(utils.Env("SUBGRAPH_URL", subgraph.DefaultEndpoint)),
		Timeout:   utils.EnvDuration("SUBGRAPH_TIMEOUT", 0),
	})

	// Initialize Redis client for cross-instance notifications (optional)
	var publisher types.Publisher
	if utils.EnvBool("REDIS_ENABLED", false) {
		app.RedisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - WebSocket real-time events will be disabled",
				zap.Error(err))
			app.RedisClient = nil
		} else {
			publisher = app.RedisClient
			logger.Info("Redis client initialized for WebSocket real-time events")
		}
	} else {
		logger.Info("Redis disabled - WebSocket real-time events will not be available")
	}

	app.Notifier = types.NewNotifier(utils.EnvInt("NOTIFICATION_HISTORY", redis.DefaultNotificationHistory), publisher, logger)
	app.Rebaser = types.NewRebaser(reader, app.Notifier, utils.EnvDuration("REBASE_TIMEOUT", types.DefaultRebaseTimeout), logger)
	app.Rebaser.OnSuccess = func(ctx context.Context) { Refresh(ctx, app) }

	cronSpec := utils.Env("REFRESH_CRON", DefaultRefreshCron)
	if err := SetupScheduler(ctx, app, cron.DefaultLogger, cronSpec, utils.EnvDuration("REFRESH_TIMEOUT", 25*time.Second)); err != nil {
		logger.Fatal("Unable to schedule refresh", zap.String("cronSpec", cronSpec), zap.Error(err))
	}

	// first cycle before serving so the initial view is populated
	Refresh(ctx, app)

	return app
}

func newAggregator() (*readmodel.Aggregator, error) {
	genesis, err := decimal.NewFromString(utils.Env("GENESIS_SUPPLY", strconv.Itoa(readmodel.DefaultGenesisSupply)))
	if err != nil {
		return nil, fmt.Errorf("GENESIS_SUPPLY: %w", err)
	}
	offset, err := decimal.NewFromString(utils.Env("DISTRIBUTION_OFFSET", strconv.Itoa(readmodel.DefaultDistributionOffset)))
	if err != nil {
		return nil, fmt.Errorf("DISTRIBUTION_OFFSET: %w", err)
	}
	return readmodel.New(genesis, offset), nil
}

func workerPoolSize() int {
	if n := utils.EnvInt("WORKER_POOL_SIZE", 0); n > 0 {
		return n
	}
	// five chain reads plus the indexer fetch per cycle
	return max(6, runtime.NumCPU())
}
