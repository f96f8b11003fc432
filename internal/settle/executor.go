// Package settle drives the on-chain state transition for a verified
// authorization: submit the relayer transaction, wait for one
// confirmation, extract receipt facts and classify the outcome.
package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/a402-foundation/a402-facilitator/internal/config"
	"github.com/a402-foundation/a402-facilitator/internal/evm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Status classifies one settlement attempt.
type Status int

const (
	// StatusConfirmed: mined successfully within the confirmation window.
	StatusConfirmed Status = iota
	// StatusFailed: rejected before or at submission, or mined with a
	// revert. The transaction definitely did not transfer funds.
	StatusFailed
	// StatusUnknown: submitted but not confirmed before the wait timed
	// out. The transaction may still land later; this must not be
	// conflated with definite failure.
	StatusUnknown
)

// Receipt is the terminal record of one settlement attempt. Created once,
// never updated.
type Receipt struct {
	Status          Status
	TransactionHash string
	BlockNumber     uint64
	GasUsed         uint64
	GasPrice        string
	Duration        time.Duration
	FailureReason   string
}

// Success reports whether funds moved.
func (r Receipt) Success() bool {
	return r.Status == StatusConfirmed
}

// ErrSettlementInFlight is returned when another settlement for the same
// (authorizer, nonce) pair is already running in this process.
var ErrSettlementInFlight = errors.New("settlement already in flight for this authorization")

// Submitter is the chain dependency: submit the relayer call and wait for
// it to be mined. *evm.Client satisfies it.
type Submitter interface {
	SubmitTransfer(ctx context.Context, relayer, token common.Address, auth evm.ParsedAuthorization, v uint8, r, s [32]byte) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// DefaultConfirmTimeout bounds the wait for one confirmation.
const DefaultConfirmTimeout = 60 * time.Second

// Executor performs settlements. It never retries: a second submission for
// the same nonce is either rejected by the replay guard or, worse, races
// it, so resubmission is always the caller's decision after re-validation.
type Executor struct {
	locks          *nonceLocks
	confirmTimeout time.Duration
}

// NewExecutor builds an executor with the default confirmation timeout.
func NewExecutor() *Executor {
	return &Executor{
		locks:          newNonceLocks(),
		confirmTimeout: DefaultConfirmTimeout,
	}
}

// NewExecutorWithTimeout overrides the confirmation timeout, for tests.
func NewExecutorWithTimeout(confirmTimeout time.Duration) *Executor {
	return &Executor{
		locks:          newNonceLocks(),
		confirmTimeout: confirmTimeout,
	}
}

// Settle submits the authorized transfer and blocks until it is mined or
// the confirmation window expires. The caller must have validated the
// intent against the same chain context immediately beforehand; the
// relayer contract is still the final authority and reverts on any
// precondition that changed concurrently.
func (e *Executor) Settle(
	ctx context.Context,
	submitter Submitter,
	cc config.ChainContext,
	token common.Address,
	signed evm.SignedAuthorization,
) (Receipt, error) {
	auth, err := signed.Authorization.Parse()
	if err != nil {
		return Receipt{Status: StatusFailed, FailureReason: err.Error()}, nil
	}
	signature, err := evm.ParseSignature(signed.Signature)
	if err != nil {
		return Receipt{Status: StatusFailed, FailureReason: err.Error()}, nil
	}
	v, r, s, err := evm.SplitSignature(signature)
	if err != nil {
		return Receipt{Status: StatusFailed, FailureReason: err.Error()}, nil
	}

	if !e.locks.tryAcquire(auth.From, auth.Nonce) {
		return Receipt{}, ErrSettlementInFlight
	}
	defer e.locks.release(auth.From, auth.Nonce)

	start := time.Now()

	tx, err := submitter.SubmitTransfer(ctx, cc.RelayerContract, token, auth, v, r, s)
	if err != nil {
		return Receipt{
			Status:        StatusFailed,
			Duration:      time.Since(start),
			FailureReason: fmt.Sprintf("submission failed: %v", err),
		}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	receipt, err := submitter.WaitMined(waitCtx, tx)
	if err != nil {
		// Submitted transactions cannot be retracted; the tx may still be
		// mined after we stop waiting.
		return Receipt{
			Status:          StatusUnknown,
			TransactionHash: tx.Hash().Hex(),
			Duration:        time.Since(start),
			FailureReason:   fmt.Sprintf("transaction submitted but not confirmed: %v", err),
		}, nil
	}

	out := Receipt{
		TransactionHash: receipt.TxHash.Hex(),
		BlockNumber:     receipt.BlockNumber.Uint64(),
		GasUsed:         receipt.GasUsed,
		Duration:        time.Since(start),
	}
	if receipt.EffectiveGasPrice != nil {
		out.GasPrice = receipt.EffectiveGasPrice.String()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		out.Status = StatusFailed
		out.FailureReason = "transaction reverted"
		return out, nil
	}
	out.Status = StatusConfirmed
	return out, nil
}
