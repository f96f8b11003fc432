package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultReadTimeout bounds every outbound read call so a stalled RPC node
// surfaces as an error instead of an indefinite hang.
const DefaultReadTimeout = 10 * time.Second

// TokenMetadata is the raw result of the ERC20 metadata reads.
type TokenMetadata struct {
	Decimals uint8
	Symbol   string
	Name     string
}

// Client wraps an ethclient connection for one network together with the
// relayer signing key. It is stateless and safe for concurrent use.
type Client struct {
	eth         *ethclient.Client
	chainID     *big.Int
	relayerABI  abi.ABI
	erc20ABI    abi.ABI
	privateKey  *ecdsa.PrivateKey
	address     common.Address
	readTimeout time.Duration
}

// NewClient dials the RPC endpoint and binds the relayer key to it.
func NewClient(rpcURL string, chainID *big.Int, privateKeyHex string) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}
	return NewClientWithBackend(eth, chainID, privateKeyHex)
}

// NewClientWithBackend builds a Client over an existing connection.
func NewClientWithBackend(eth *ethclient.Client, chainID *big.Int, privateKeyHex string) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid relayer private key: %w", err)
	}

	relayerABI, err := abi.JSON(strings.NewReader(string(RelayerABI)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse relayer ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(string(ERC20MetadataABI)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &Client{
		eth:         eth,
		chainID:     chainID,
		relayerABI:  relayerABI,
		erc20ABI:    erc20ABI,
		privateKey:  privateKey,
		address:     crypto.PubkeyToAddress(privateKey.PublicKey),
		readTimeout: DefaultReadTimeout,
	}, nil
}

// Address returns the relayer account address.
func (c *Client) Address() common.Address {
	return c.address
}

// ChainID returns the chain id the client signs for.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// AuthorizationState reads the relayer contract's replay flag for
// (authorizer, nonce). This is the sole replay-protection ledger; the
// facilitator holds no dedup store of its own.
func (c *Client) AuthorizationState(ctx context.Context, relayer, authorizer common.Address, nonce [32]byte) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	data, err := c.relayerABI.Pack(FunctionAuthorizationState, authorizer, nonce)
	if err != nil {
		return false, fmt.Errorf("failed to pack %s: %w", FunctionAuthorizationState, err)
	}

	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &relayer, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("authorizationState call failed: %w", err)
	}
	if len(result) == 0 {
		// Some nodes return empty for a zero bool.
		return false, nil
	}

	outputs, err := c.relayerABI.Unpack(FunctionAuthorizationState, result)
	if err != nil {
		return false, fmt.Errorf("failed to unpack authorizationState: %w", err)
	}
	used, ok := outputs[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected result type from authorizationState")
	}
	return used, nil
}

// TokenMetadata fetches decimals(), symbol() and name() from a token
// contract as one fanned-out set of reads. Any single failure fails the
// whole fetch; the token resolver decides what to do with that.
func (c *Client) TokenMetadata(ctx context.Context, token common.Address) (TokenMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	var (
		meta TokenMetadata
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	read := func(method string, assign func(interface{}) error) {
		defer wg.Done()
		data, err := c.erc20ABI.Pack(method)
		if err == nil {
			var result []byte
			result, err = c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
			if err == nil {
				var outputs []interface{}
				outputs, err = c.erc20ABI.Unpack(method, result)
				if err == nil && len(outputs) == 1 {
					err = assign(outputs[0])
				} else if err == nil {
					err = fmt.Errorf("unexpected output count for %s", method)
				}
			}
		}
		if err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", method, err))
			mu.Unlock()
		}
	}

	wg.Add(3)
	go read("decimals", func(v interface{}) error {
		d, ok := v.(uint8)
		if !ok {
			return fmt.Errorf("unexpected decimals type %T", v)
		}
		mu.Lock()
		meta.Decimals = d
		mu.Unlock()
		return nil
	})
	go read("symbol", func(v interface{}) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("unexpected symbol type %T", v)
		}
		mu.Lock()
		meta.Symbol = s
		mu.Unlock()
		return nil
	})
	go read("name", func(v interface{}) error {
		n, ok := v.(string)
		if !ok {
			return fmt.Errorf("unexpected name type %T", v)
		}
		mu.Lock()
		meta.Name = n
		mu.Unlock()
		return nil
	})
	wg.Wait()

	if len(errs) > 0 {
		return TokenMetadata{}, fmt.Errorf("token metadata read failed: %v", errs[0])
	}
	return meta, nil
}

// SubmitTransfer signs and submits the relayer's transferWithAuthorization
// call for the given authorization and split signature. It returns as soon
// as the transaction is accepted by the node; confirmation is a separate
// step so callers can bound the two independently.
func (c *Client) SubmitTransfer(
	ctx context.Context,
	relayer common.Address,
	token common.Address,
	auth ParsedAuthorization,
	v uint8, r [32]byte, s [32]byte,
) (*types.Transaction, error) {
	data, err := c.relayerABI.Pack(
		FunctionTransferWithAuthorization,
		token,
		auth.From,
		auth.To,
		auth.Value,
		auth.ValidAfter,
		auth.ValidBefore,
		auth.Nonce,
		v,
		r,
		s,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", FunctionTransferWithAuthorization, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get relayer nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, relayer, big.NewInt(0), SettlementGasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signedTx, nil
}

// WaitMined blocks until the transaction is mined or the context expires.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.eth, tx)
}
