package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/debaseonomics/debasex/pkg/cache"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Caller is the read-only surface of a provider.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// WriteBackend is what a signer-capable provider must offer to submit and await a transaction.
type WriteBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Addresses are the contracts the dashboard reads.
type Addresses struct {
	DaiPool      string
	LpPool       string
	Orchestrator string
	Pair         string
}

// Call is one read against a contract.
type Call struct {
	Address string
	ABI     *abi.ABI
	Method  string
	Args    []any
}

// Reserves is the decoded getReserves() tuple of the liquidity pair.
type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// Reader issues contract reads through the de-dup cache and the rebase write through a signer.
type Reader struct {
	addrs  Addresses
	logger *zap.Logger
	cache  *cache.Group[[]any]

	mu     sync.RWMutex
	caller Caller
	writer WriteBackend
	signer *bind.TransactOpts
}

// NewReader builds a Reader. caller may be nil, in which case every read fails with ErrNoProvider.
func NewReader(caller Caller, addrs Addresses, logger *zap.Logger) *Reader {
	return &Reader{
		addrs:  addrs,
		logger: logger,
		cache:  cache.NewGroup[[]any](),
		caller: caller,
	}
}

// Addresses returns the configured contract addresses.
func (r *Reader) Addresses() Addresses {
	return r.addrs
}

// SetProvider swaps the read provider. It counts as a dependency change: cached and
// in-flight reads are dropped.
func (r *Reader) SetProvider(caller Caller) {
	r.mu.Lock()
	r.caller = caller
	r.mu.Unlock()
	r.cache.Invalidate()
}

// SetSigner enables the write path.
func (r *Reader) SetSigner(writer WriteBackend, signer *bind.TransactOpts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writer = writer
	r.signer = signer
}

// Connected reports whether a read provider is set.
func (r *Reader) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caller != nil
}

// CanSign reports whether Rebase can be submitted.
func (r *Reader) CanSign() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writer != nil && r.signer != nil
}

// Invalidate drops every cached and in-flight read.
func (r *Reader) Invalidate() {
	r.cache.Invalidate()
}

// Call performs a de-duplicated read call and returns the decoded outputs.
func (r *Reader) Call(ctx context.Context, c Call) ([]any, error) {
	r.mu.RLock()
	caller := r.caller
	r.mu.RUnlock()
	if caller == nil {
		return nil, ErrNoProvider
	}
	if !common.IsHexAddress(c.Address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, c.Address)
	}

	key := cache.KeyOf(c.Address, c.Method, c.Args...)
	return r.cache.Do(ctx, key, func(ctx context.Context) ([]any, error) {
		return call(ctx, caller, c)
	})
}

func call(ctx context.Context, caller Caller, c Call) ([]any, error) {
	payload, err := c.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s call: %w", c.Method, err)
	}

	to := common.HexToAddress(c.Address)
	raw, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", c.Method, to.Hex(), err)
	}

	values, err := c.ABI.Unpack(c.Method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", c.Method, err)
	}
	return values, nil
}

func (r *Reader) callUint(ctx context.Context, address string, contract *abi.ABI, method string) (*big.Int, error) {
	values, err := r.Call(ctx, Call{Address: address, ABI: contract, Method: method})
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedResult, method, len(values))
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrUnexpectedResult, method, values[0])
	}
	return new(big.Int).Set(n), nil
}

// RewardDistributed reads the reward counter of a staking pool.
func (r *Reader) RewardDistributed(ctx context.Context, pool string) (*big.Int, error) {
	return r.callUint(ctx, pool, PoolABI, MethodRewardDistributed)
}

// MaximumRebaseTime reads the unix timestamp after which a rebase is forced.
func (r *Reader) MaximumRebaseTime(ctx context.Context) (*big.Int, error) {
	return r.callUint(ctx, r.addrs.Orchestrator, OrchestratorABI, MethodMaximumRebaseTime)
}

// RebaseRequiredSupply reads the distribution threshold that enables a rebase.
func (r *Reader) RebaseRequiredSupply(ctx context.Context) (*big.Int, error) {
	return r.callUint(ctx, r.addrs.Orchestrator, OrchestratorABI, MethodRebaseRequiredSupply)
}

// Reserves reads the liquidity pair reserves.
func (r *Reader) Reserves(ctx context.Context) (Reserves, error) {
	values, err := r.Call(ctx, Call{Address: r.addrs.Pair, ABI: PairABI, Method: MethodGetReserves})
	if err != nil {
		return Reserves{}, err
	}
	if len(values) != 3 {
		return Reserves{}, fmt.Errorf("%w: getReserves returned %d values", ErrUnexpectedResult, len(values))
	}
	r0, ok0 := values[0].(*big.Int)
	r1, ok1 := values[1].(*big.Int)
	ts, ok2 := values[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return Reserves{}, fmt.Errorf("%w: getReserves returned %T, %T, %T", ErrUnexpectedResult, values[0], values[1], values[2])
	}
	return Reserves{Reserve0: new(big.Int).Set(r0), Reserve1: new(big.Int).Set(r1), BlockTimestampLast: ts}, nil
}

// Rebase submits orchestrator.rebase() and waits until it is mined.
// The call is never retried; a reverted receipt is returned along with ErrReverted.
func (r *Reader) Rebase(ctx context.Context) (*types.Receipt, error) {
	r.mu.RLock()
	writer, signer := r.writer, r.signer
	r.mu.RUnlock()

	if writer == nil {
		return nil, ErrNoProvider
	}
	if signer == nil {
		return nil, ErrNoSigner
	}
	if !common.IsHexAddress(r.addrs.Orchestrator) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, r.addrs.Orchestrator)
	}

	orchestrator := common.HexToAddress(r.addrs.Orchestrator)
	contract := bind.NewBoundContract(orchestrator, *OrchestratorABI, writer, writer, writer)

	opts := *signer
	opts.Context = ctx
	tx, err := contract.Transact(&opts, MethodRebase)
	if err != nil {
		return nil, fmt.Errorf("submit rebase: %w", err)
	}

	r.logger.Info("Rebase transaction submitted",
		zap.String("tx", tx.Hash().Hex()),
		zap.String("orchestrator", orchestrator.Hex()))

	receipt, err := bind.WaitMined(ctx, writer, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for rebase %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	return receipt, nil
}
