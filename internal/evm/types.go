// Package evm implements the chain-facing half of the facilitator: EIP-712
// hashing and signature recovery for transfer authorizations, and a client
// for the A402 relayer contract and arbitrary ERC20 tokens.
package evm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Authorization is the TransferWithAuthorization message a payer signs.
// All numeric fields travel as decimal strings, the nonce as 32-byte hex.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// SignedAuthorization pairs an Authorization with the 65-byte EIP-712
// signature produced by the payer. The two always travel together.
type SignedAuthorization struct {
	Authorization Authorization `json:"authorization"`
	Signature     string        `json:"signature"`
}

// ParsedAuthorization is the chain-typed form of an Authorization.
type ParsedAuthorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// Parse validates every Authorization field and converts it to chain types.
// Any missing or ill-formed field is reported as an error; callers treat
// that as a malformed payload, before any I/O happens.
func (a Authorization) Parse() (ParsedAuthorization, error) {
	var p ParsedAuthorization

	if a.From == "" || a.To == "" || a.Value == "" ||
		a.ValidAfter == "" || a.ValidBefore == "" || a.Nonce == "" {
		return p, fmt.Errorf("authorization missing required fields (from, to, value, validAfter, validBefore, nonce)")
	}
	if !common.IsHexAddress(a.From) {
		return p, fmt.Errorf("invalid from address: %s", a.From)
	}
	if !common.IsHexAddress(a.To) {
		return p, fmt.Errorf("invalid to address: %s", a.To)
	}

	value, ok := new(big.Int).SetString(a.Value, 10)
	if !ok || value.Sign() < 0 {
		return p, fmt.Errorf("invalid value: %s", a.Value)
	}
	validAfter, ok := new(big.Int).SetString(a.ValidAfter, 10)
	if !ok || validAfter.Sign() < 0 {
		return p, fmt.Errorf("invalid validAfter: %s", a.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(a.ValidBefore, 10)
	if !ok || validBefore.Sign() < 0 {
		return p, fmt.Errorf("invalid validBefore: %s", a.ValidBefore)
	}

	nonce, err := ParseNonce(a.Nonce)
	if err != nil {
		return p, err
	}

	p.From = common.HexToAddress(a.From)
	p.To = common.HexToAddress(a.To)
	p.Value = value
	p.ValidAfter = validAfter
	p.ValidBefore = validBefore
	p.Nonce = nonce
	return p, nil
}

// ParseNonce decodes a 32-byte hex nonce, with or without the 0x prefix.
func ParseNonce(s string) ([32]byte, error) {
	var nonce [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nonce, fmt.Errorf("invalid nonce: %w", err)
	}
	if len(raw) != 32 {
		return nonce, fmt.Errorf("nonce must be 32 bytes, got %d", len(raw))
	}
	copy(nonce[:], raw)
	return nonce, nil
}

// ParseSignature decodes a hex signature and checks it is 65 bytes (r, s, v).
func ParseSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("signature is required")
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(raw) != 65 {
		return nil, fmt.Errorf("invalid signature length: %d", len(raw))
	}
	return raw, nil
}

// SplitSignature splits a 65-byte signature into the (v, r, s) components
// the relayer contract expects. The recovery id is normalized to 27/28.
func SplitSignature(sig []byte) (v uint8, r [32]byte, s [32]byte, err error) {
	if len(sig) != 65 {
		return 0, r, s, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	copy(r[:], sig[0:32])
	copy(s[:], sig[32:64])
	v = sig[64]
	if v < 27 {
		v += 27
	}
	return v, r, s, nil
}
