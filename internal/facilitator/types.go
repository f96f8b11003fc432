package facilitator

import (
	"github.com/a402-foundation/a402-facilitator/internal/evm"
	"github.com/a402-foundation/a402-facilitator/internal/token"
)

// PaymentPayload carries the token being paid with and the signed
// authorization produced by the payer's wallet.
type PaymentPayload struct {
	Token   string                  `json:"token"`
	Payload evm.SignedAuthorization `json:"payload"`
}

// PaymentRequirements names the network and the relayer contract the
// payment must settle through. The relayer contract doubles as the
// EIP-712 verifying contract.
type PaymentRequirements struct {
	Network         string `json:"network"`
	RelayerContract string `json:"relayerContract"`
}

// VerifyRequest is the body of POST /verify and POST /settle.
type VerifyRequest struct {
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// VerifyResponse reports the verdict. Payer is set on success so the
// resource server knows who paid without recovering the signature itself.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse reports one settlement attempt.
type SettleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	Payer       string `json:"payer,omitempty"`
	Network     string `json:"network"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// NetworkListing is one network entry in the /list response.
type NetworkListing struct {
	Network         string       `json:"network"`
	ChainID         int64        `json:"chainId"`
	RelayerContract string       `json:"relayerContract"`
	SupportedAssets []token.Info `json:"supportedAssets"`
}

// ListResponse advertises the facilitator's capabilities.
type ListResponse struct {
	Facilitator string            `json:"facilitator"`
	Version     string            `json:"version"`
	Networks    []NetworkListing  `json:"networks"`
	Features    []string          `json:"features"`
	Endpoints   map[string]string `json:"endpoints"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Network string `json:"network"`
	Relayer string `json:"relayer"`
}

// InfoResponse is the body of GET /.
type InfoResponse struct {
	Service         string            `json:"service"`
	Version         string            `json:"version"`
	Network         string            `json:"network"`
	ChainID         int64             `json:"chainId"`
	RelayerContract string            `json:"relayerContract"`
	Endpoints       map[string]string `json:"endpoints"`
}
