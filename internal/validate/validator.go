// Package validate implements the four-gate check that decides whether a
// signed authorization may be settled: structural completeness, signature
// recovery, replay state and time window. Each gate is hard; the first
// failure short-circuits and names the reason.
package validate

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/a402-foundation/a402-facilitator/internal/config"
	"github.com/a402-foundation/a402-facilitator/internal/evm"
	"github.com/ethereum/go-ethereum/common"
)

// Reason enumerates the business rejections. These are expected outcomes,
// not server faults, and map to isValid=false responses.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonMalformedPayload Reason = "MalformedPayload"
	ReasonInvalidSignature Reason = "InvalidSignature"
	ReasonNonceUsed        Reason = "NonceAlreadyUsed"
	ReasonNotYetValid      Reason = "NotYetValid"
	ReasonExpired          Reason = "Expired"
)

// Message returns the caller-facing description for a rejection.
func (r Reason) Message() string {
	switch r {
	case ReasonInvalidSignature:
		return "Invalid signature"
	case ReasonNonceUsed:
		return "Nonce already used"
	case ReasonNotYetValid:
		return "Authorization not yet valid"
	case ReasonExpired:
		return "Authorization expired"
	case ReasonMalformedPayload:
		return "Invalid authorization payload"
	default:
		return ""
	}
}

// Outcome is the validator's verdict. Payer is the recovered signer,
// populated once signature recovery succeeds.
type Outcome struct {
	Valid  bool
	Reason Reason
	// Detail carries the field-level description for malformed payloads.
	Detail string
	Payer  common.Address
}

// ReplayOracle reads the on-chain authorization-used flag. *evm.Client
// satisfies it; tests substitute a fake.
type ReplayOracle interface {
	AuthorizationState(ctx context.Context, relayer, authorizer common.Address, nonce [32]byte) (bool, error)
}

// Validator checks signed authorizations. It is stateless: every call
// re-runs all four gates against the current chain snapshot, so a verify
// result is never cached across requests.
type Validator struct {
	now func() time.Time
}

// NewValidator builds a validator using wall-clock time.
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// NewValidatorAt builds a validator with an injected clock, for tests.
func NewValidatorAt(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// Validate runs the four gates in order. A non-nil error means the chain
// read failed and no verdict could be reached (an infrastructure fault,
// not a rejection).
func (v *Validator) Validate(
	ctx context.Context,
	oracle ReplayOracle,
	cc config.ChainContext,
	signed evm.SignedAuthorization,
	verifyingContract common.Address,
) (Outcome, error) {
	// Gate 1: structural completeness. No I/O.
	auth, err := signed.Authorization.Parse()
	if err != nil {
		return Outcome{Reason: ReasonMalformedPayload, Detail: err.Error()}, nil
	}
	signature, err := evm.ParseSignature(signed.Signature)
	if err != nil {
		return Outcome{Reason: ReasonMalformedPayload, Detail: err.Error()}, nil
	}

	// Gate 2: signature recovery. Pure cryptography, no I/O. The domain is
	// bound to the verifying contract the caller asked for, so a signature
	// minted for another relayer recovers to a different address.
	signer, err := evm.RecoverSigner(auth, signature, cc.ChainID, verifyingContract)
	if err != nil {
		return Outcome{Reason: ReasonInvalidSignature}, nil
	}
	if !strings.EqualFold(signer.Hex(), auth.From.Hex()) {
		return Outcome{Reason: ReasonInvalidSignature}, nil
	}

	// Gate 3: replay state, read from the configured relayer contract.
	used, err := oracle.AuthorizationState(ctx, cc.RelayerContract, auth.From, auth.Nonce)
	if err != nil {
		return Outcome{}, fmt.Errorf("replay state read failed: %w", err)
	}
	if used {
		return Outcome{Reason: ReasonNonceUsed, Payer: signer}, nil
	}

	// Gate 4: time window. validAfter is the first valid second,
	// validBefore the first invalid one.
	now := big.NewInt(v.now().Unix())
	if now.Cmp(auth.ValidAfter) < 0 {
		return Outcome{Reason: ReasonNotYetValid, Payer: signer}, nil
	}
	if now.Cmp(auth.ValidBefore) >= 0 {
		return Outcome{Reason: ReasonExpired, Payer: signer}, nil
	}

	return Outcome{Valid: true, Payer: signer}, nil
}
