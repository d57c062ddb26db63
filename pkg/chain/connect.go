package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/debaseonomics/debasex/pkg/retry"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ChainIDReader is satisfied by *ethclient.Client.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dial connects to an Ethereum JSON-RPC endpoint. An empty url means no provider.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	if url == "" {
		return nil, ErrNoProvider
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", url, err)
	}
	return client, nil
}

// NewSigner builds transact options from a hex private key. The chain id lookup is
// retried because it runs once at startup; a malformed key fails immediately.
func NewSigner(ctx context.Context, backend ChainIDReader, hexKey string, logger *zap.Logger) (*bind.TransactOpts, error) {
	if hexKey == "" {
		return nil, ErrNoSigner
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}

	var chainID *big.Int
	err = retry.WithBackoff(ctx, retry.StartupConfig(), logger, "fetch chain id", func() error {
		id, idErr := backend.ChainID(ctx)
		if idErr != nil {
			return idErr
		}
		if id == nil || id.Sign() <= 0 {
			return retry.Permanent(fmt.Errorf("%w: chain id %v", ErrUnexpectedResult, id))
		}
		chainID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}

	logger.Info("Rebase signer configured",
		zap.String("from", opts.From.Hex()),
		zap.String("chainId", chainID.String()))
	return opts, nil
}
