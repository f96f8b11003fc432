package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/a402-foundation/a402-facilitator/internal/audit"
	"github.com/a402-foundation/a402-facilitator/internal/config"
	"github.com/a402-foundation/a402-facilitator/internal/evm"
	"github.com/a402-foundation/a402-facilitator/internal/facilitator"
	"github.com/a402-foundation/a402-facilitator/internal/metrics"
	"github.com/a402-foundation/a402-facilitator/internal/settle"
	"github.com/a402-foundation/a402-facilitator/internal/token"
	"github.com/a402-foundation/a402-facilitator/internal/validate"
)

const (
	testKeyHex      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testRelayerAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testTokenAddr   = "0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7"
)

type memoryChain struct {
	mu   sync.Mutex
	used map[string]bool
}

func (m *memoryChain) key(authorizer common.Address, nonce [32]byte) string {
	return fmt.Sprintf("%s:%x", authorizer.Hex(), nonce)
}

func (m *memoryChain) AuthorizationState(ctx context.Context, relayer, authorizer common.Address, nonce [32]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[m.key(authorizer, nonce)], nil
}

func (m *memoryChain) TokenMetadata(ctx context.Context, token common.Address) (evm.TokenMetadata, error) {
	return evm.TokenMetadata{Decimals: 6, Symbol: "USDT", Name: "Tether USD"}, nil
}

func (m *memoryChain) SubmitTransfer(ctx context.Context, relayer, tokenAddr common.Address, auth evm.ParsedAuthorization, v uint8, r, s [32]byte) (*types.Transaction, error) {
	m.mu.Lock()
	m.used[m.key(auth.From, auth.Nonce)] = true
	m.mu.Unlock()
	return types.NewTransaction(1, relayer, big.NewInt(0), 200000, big.NewInt(25000000000), nil), nil
}

func (m *memoryChain) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		TxHash:            tx.Hash(),
		BlockNumber:       big.NewInt(99),
		GasUsed:           52000,
		EffectiveGasPrice: big.NewInt(25000000000),
	}, nil
}

func (m *memoryChain) Address() common.Address {
	return common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("RELAYER_PRIVATE_KEY", testKeyHex)
	t.Setenv("A402_RELAYER_ADDRESS", testRelayerAddr)
	cfg, err := config.Load()
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	chain := &memoryChain{used: make(map[string]bool)}
	reg := metrics.NewRegistry()
	service := facilitator.New(
		cfg,
		map[config.NetworkID]facilitator.Backend{
			config.NetworkMainnet: chain,
			config.NetworkTestnet: chain,
		},
		validate.NewValidator(),
		settle.NewExecutor(),
		token.NewResolver(),
		audit.NopSink{},
		reg,
		log,
	)
	server := httptest.NewServer(NewServer(service, reg, 0, log).Handler())
	t.Cleanup(server.Close)
	return server
}

func signedBody(t *testing.T, key *ecdsa.PrivateKey, nonce string) []byte {
	t.Helper()
	auth := evm.Authorization{
		From:        crypto.PubkeyToAddress(key.PublicKey).Hex(),
		To:          "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Value:       "1000000",
		ValidAfter:  "0",
		ValidBefore: "9999999999",
		Nonce:       nonce,
	}
	parsed, err := auth.Parse()
	require.NoError(t, err)
	digest, err := evm.HashTransferAuthorization(parsed, config.ChainIDTestnet, common.HexToAddress(testRelayerAddr))
	require.NoError(t, err)
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	sig[64] += 27

	body, err := json.Marshal(facilitator.VerifyRequest{
		PaymentPayload: facilitator.PaymentPayload{
			Token: testTokenAddr,
			Payload: evm.SignedAuthorization{
				Authorization: auth,
				Signature:     fmt.Sprintf("0x%x", sig),
			},
		},
		PaymentRequirements: facilitator.PaymentRequirements{
			Network:         "avalanche-testnet",
			RelayerContract: testRelayerAddr,
		},
	})
	require.NoError(t, err)
	return body
}

func postJSON(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestVerifyEndpoint(t *testing.T) {
	server := newTestServer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	t.Run("valid authorization", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/verify", signedBody(t, key, "0x"+strings.Repeat("41", 32)))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[facilitator.VerifyResponse](t, resp)
		require.True(t, body.IsValid)
		require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), body.Payer)
	})

	t.Run("missing envelope fields", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/verify", []byte(`{"paymentPayload": {}}`))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode[facilitator.VerifyResponse](t, resp)
		require.False(t, body.IsValid)
		require.NotEmpty(t, body.InvalidReason)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/verify", []byte(`{not json`))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("unknown network", func(t *testing.T) {
		body := signedBody(t, key, "0x"+strings.Repeat("42", 32))
		var req map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(body, &req))
		req["paymentRequirements"] = json.RawMessage(`{"network":"bsc","relayerContract":"` + testRelayerAddr + `"}`)
		raw, err := json.Marshal(req)
		require.NoError(t, err)

		resp := postJSON(t, server.URL+"/verify", raw)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		out := decode[facilitator.VerifyResponse](t, resp)
		require.Contains(t, out.InvalidReason, "unknown network")
	})

	t.Run("tampered signature is a business rejection", func(t *testing.T) {
		body := signedBody(t, key, "0x"+strings.Repeat("43", 32))
		tampered := bytes.Replace(body, []byte(`"value":"1000000"`), []byte(`"value":"2000000"`), 1)
		resp := postJSON(t, server.URL+"/verify", tampered)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decode[facilitator.VerifyResponse](t, resp)
		require.False(t, out.IsValid)
		require.Equal(t, "Invalid signature", out.InvalidReason)
	})
}

func TestSettleEndpoint(t *testing.T) {
	server := newTestServer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	body := signedBody(t, key, "0x"+strings.Repeat("51", 32))

	resp := postJSON(t, server.URL+"/settle", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[facilitator.SettleResponse](t, resp)
	require.True(t, out.Success)
	require.NotEmpty(t, out.Transaction)
	require.Equal(t, uint64(99), out.BlockNumber)

	t.Run("replay is rejected", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/settle", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decode[facilitator.SettleResponse](t, resp)
		require.False(t, out.Success)
		require.Equal(t, "Nonce already used", out.ErrorReason)
	})

	t.Run("missing envelope fields", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/settle", []byte(`{}`))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		out := decode[facilitator.SettleResponse](t, resp)
		require.False(t, out.Success)
	})
}

func TestReadEndpoints(t *testing.T) {
	server := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/health")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decode[facilitator.HealthResponse](t, resp)
		require.Equal(t, "healthy", out.Status)
	})

	t.Run("root", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decode[facilitator.InfoResponse](t, resp)
		require.Equal(t, "A402 Facilitator", out.Service)
	})

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/list")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decode[facilitator.ListResponse](t, resp)
		require.Equal(t, "a402", out.Facilitator)
		require.NotEmpty(t, out.Networks)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/metrics")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestValidateEnvelope(t *testing.T) {
	valid := []byte(`{
		"paymentPayload": {
			"token": "0x00",
			"payload": {
				"authorization": {
					"from": "a", "to": "b", "value": "1",
					"validAfter": "0", "validBefore": "1", "nonce": "n"
				},
				"signature": "sig"
			}
		},
		"paymentRequirements": {"network": "avalanche", "relayerContract": "0x00"}
	}`)
	require.NoError(t, validateEnvelope(valid))

	t.Run("missing signature", func(t *testing.T) {
		broken := bytes.Replace(valid, []byte(`"signature": "sig"`), []byte(`"other": 1`), 1)
		require.Error(t, validateEnvelope(broken))
	})

	t.Run("missing paymentRequirements", func(t *testing.T) {
		require.Error(t, validateEnvelope([]byte(`{"paymentPayload": {}}`)))
	})

	t.Run("not JSON", func(t *testing.T) {
		require.Error(t, validateEnvelope([]byte(`hello`)))
	})
}
