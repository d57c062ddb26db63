package types

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const (
	MessageRebaseSucceeded = "Rebase successfully executed"
	MessageRebaseFailed    = "Rebase failed, please try again"

	// DefaultRebaseTimeout bounds submission plus mining.
	DefaultRebaseTimeout = 5 * time.Minute
)

// ErrRebasePending is returned while a previous rebase is still outstanding.
var ErrRebasePending = errors.New("rebase already pending")

// Submitter sends orchestrator.rebase(); *chain.Reader satisfies it.
type Submitter interface {
	Rebase(ctx context.Context) (*ethtypes.Receipt, error)
}

// RebaseResult is the outcome of one Trigger call.
type RebaseResult struct {
	TxHash       string       `json:"txHash,omitempty"`
	Notification Notification `json:"notification"`
}

// Rebaser is the one-shot write action guarded by a loading flag.
type Rebaser struct {
	submitter Submitter
	notifier  *Notifier
	logger    *zap.Logger
	timeout   time.Duration

	// OnSuccess runs after a successful rebase, e.g. to refresh the read model.
	OnSuccess func(ctx context.Context)

	loading atomic.Bool
}

func NewRebaser(submitter Submitter, notifier *Notifier, timeout time.Duration, logger *zap.Logger) *Rebaser {
	if timeout <= 0 {
		timeout = DefaultRebaseTimeout
	}
	return &Rebaser{submitter: submitter, notifier: notifier, timeout: timeout, logger: logger}
}

// Pending reports whether a rebase is outstanding.
func (r *Rebaser) Pending() bool {
	return r.loading.Load()
}

// Trigger submits a rebase and waits for it to be mined. It emits exactly one notification
// and clears the loading flag whatever the outcome. The caller's cancellation does not
// abort a submitted transaction; only the rebase timeout does.
func (r *Rebaser) Trigger(ctx context.Context) (RebaseResult, error) {
	if !r.loading.CompareAndSwap(false, true) {
		return RebaseResult{}, ErrRebasePending
	}
	defer r.loading.Store(false)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	receipt, err := r.submit(runCtx)
	if err != nil {
		r.logger.Warn("Rebase failed", zap.Error(err))
		return RebaseResult{Notification: r.notifier.Notify(runCtx, KindDanger, MessageRebaseFailed)}, err
	}

	result := RebaseResult{Notification: r.notifier.Notify(runCtx, KindSuccess, MessageRebaseSucceeded)}
	if receipt != nil {
		result.TxHash = receipt.TxHash.Hex()
	}
	r.logger.Info("Rebase executed", zap.String("tx", result.TxHash))

	if r.OnSuccess != nil {
		r.OnSuccess(runCtx)
	}
	return result, nil
}

func (r *Rebaser) submit(ctx context.Context) (receipt *ethtypes.Receipt, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic while submitting rebase",
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("rebase panicked: %v", rec)
		}
	}()
	if r.submitter == nil {
		return nil, errors.New("no rebase submitter configured")
	}
	return r.submitter.Rebase(ctx)
}
