// Package config holds the process-wide configuration established once at
// startup: relayer key, per-network chain parameters and the HTTP surface.
// Nothing here is mutated after Load returns.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// NetworkID identifies one of the fixed set of supported networks.
type NetworkID string

const (
	NetworkMainnet NetworkID = "mainnet"
	NetworkTestnet NetworkID = "testnet"
)

// Chain ids for the Avalanche C-Chain.
var (
	ChainIDMainnet = big.NewInt(43114)
	ChainIDTestnet = big.NewInt(43113)
)

// Default public RPC endpoints, overridable via env.
const (
	DefaultMainnetRPC = "https://api.avax.network/ext/bc/C/rpc"
	DefaultTestnetRPC = "https://api.avax-test.network/ext/bc/C/rpc"
)

// ChainContext fixes the chain parameters for one request: which network,
// which chain id signs the EIP-712 domain, where to reach a node, and the
// relayer contract that executes settlements. Values are immutable.
type ChainContext struct {
	Network         NetworkID
	DisplayName     string
	ChainID         *big.Int
	RPCEndpoint     string
	RelayerContract common.Address
}

// Config is the full startup configuration.
type Config struct {
	RelayerPrivateKey string
	RelayerContract   common.Address
	ActiveNetwork     NetworkID
	Port              string
	RateLimitPerMin   int

	// Audit sink; logging-only fallback when URL is empty.
	AuditURL string
	AuditKey string

	networks map[NetworkID]ChainContext
}

// Load reads configuration from the environment. Missing required values
// are a startup error, never a runtime one.
func Load() (*Config, error) {
	key := os.Getenv("RELAYER_PRIVATE_KEY")
	relayerAddr := os.Getenv("A402_RELAYER_ADDRESS")
	if key == "" || relayerAddr == "" {
		return nil, fmt.Errorf("missing required env vars: RELAYER_PRIVATE_KEY, A402_RELAYER_ADDRESS")
	}
	if !common.IsHexAddress(relayerAddr) {
		return nil, fmt.Errorf("A402_RELAYER_ADDRESS is not a valid address: %s", relayerAddr)
	}
	relayer := common.HexToAddress(relayerAddr)

	active := NetworkID(getEnvWithDefault("NETWORK", string(NetworkTestnet)))
	if active != NetworkMainnet && active != NetworkTestnet {
		return nil, fmt.Errorf("unsupported NETWORK value: %s", active)
	}

	cfg := &Config{
		RelayerPrivateKey: key,
		RelayerContract:   relayer,
		ActiveNetwork:     active,
		Port:              getEnvWithDefault("PORT", "3402"),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MIN", 100),
		AuditURL:          os.Getenv("AUDIT_URL"),
		AuditKey:          os.Getenv("AUDIT_KEY"),
		networks: map[NetworkID]ChainContext{
			NetworkMainnet: {
				Network:         NetworkMainnet,
				DisplayName:     "avalanche",
				ChainID:         ChainIDMainnet,
				RPCEndpoint:     getEnvWithDefault("AVAX_RPC_URL", DefaultMainnetRPC),
				RelayerContract: relayer,
			},
			NetworkTestnet: {
				Network:         NetworkTestnet,
				DisplayName:     "avalanche-testnet",
				ChainID:         ChainIDTestnet,
				RPCEndpoint:     getEnvWithDefault("AVAX_TESTNET_RPC_URL", DefaultTestnetRPC),
				RelayerContract: relayer,
			},
		},
	}
	return cfg, nil
}

// ErrUnknownNetwork is returned by Resolve for any name outside the
// enumerated set.
type ErrUnknownNetwork struct {
	Name string
}

func (e ErrUnknownNetwork) Error() string {
	return fmt.Sprintf("unknown network: %s", e.Name)
}

// Resolve looks up the ChainContext for a network name. Pure lookup against
// startup configuration; no I/O.
func (c *Config) Resolve(name NetworkID) (ChainContext, error) {
	cc, ok := c.networks[name]
	if !ok {
		return ChainContext{}, ErrUnknownNetwork{Name: string(name)}
	}
	return cc, nil
}

// ResolveName resolves the network name carried in a payment requirement.
// Both the short ids and the display names are accepted; an empty name
// selects the active network.
func (c *Config) ResolveName(name string) (ChainContext, error) {
	switch name {
	case "":
		return c.Resolve(c.ActiveNetwork)
	case string(NetworkMainnet), "avalanche", "avalanche-mainnet":
		return c.Resolve(NetworkMainnet)
	case string(NetworkTestnet), "avalanche-testnet", "avalanche-fuji":
		return c.Resolve(NetworkTestnet)
	default:
		return ChainContext{}, ErrUnknownNetwork{Name: name}
	}
}

// Networks returns the configured chain contexts, active network first.
func (c *Config) Networks() []ChainContext {
	active, _ := c.Resolve(c.ActiveNetwork)
	out := []ChainContext{active}
	for id, cc := range c.networks {
		if id != c.ActiveNetwork {
			out = append(out, cc)
		}
	}
	return out
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
