package types

import (
	"context"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/debaseonomics/debasex/pkg/chain"
	"github.com/debaseonomics/debasex/pkg/readmodel"
	"github.com/debaseonomics/debasex/pkg/redis"
	"github.com/debaseonomics/debasex/pkg/subgraph"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type App struct {
	// Reader issues de-duplicated contract reads and the rebase write.
	Reader *chain.Reader
	// Indexer serves rebase history; never nil.
	Indexer    subgraph.Client
	Aggregator *readmodel.Aggregator

	State    *State
	Notifier *Notifier
	Rebaser  *Rebaser

	// RedisClient is nil when Redis is disabled.
	RedisClient *redis.Client
	// EthClient is nil when no RPC_URL is configured.
	EthClient *ethclient.Client

	Scheduler *cron.Cron
	Pool      pond.Pool

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Scheduler != nil {
		<-a.Scheduler.Stop().Done()
	}

	_ = a.Server.Shutdown(shutdownCtx)

	if a.Pool != nil {
		a.Pool.StopAndWait()
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
	if a.EthClient != nil {
		a.EthClient.Close()
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
