package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testRelayer = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("RELAYER_PRIVATE_KEY", testKey)
	t.Setenv("A402_RELAYER_ADDRESS", testRelayer)
}

func TestLoad(t *testing.T) {
	t.Run("missing required vars", func(t *testing.T) {
		t.Setenv("RELAYER_PRIVATE_KEY", "")
		t.Setenv("A402_RELAYER_ADDRESS", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("invalid relayer address", func(t *testing.T) {
		t.Setenv("RELAYER_PRIVATE_KEY", testKey)
		t.Setenv("A402_RELAYER_ADDRESS", "not-an-address")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		setRequiredEnv(t)
		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, NetworkTestnet, cfg.ActiveNetwork)
		require.Equal(t, "3402", cfg.Port)
		require.Equal(t, 100, cfg.RateLimitPerMin)
	})

	t.Run("mainnet selection", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("NETWORK", "mainnet")
		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, NetworkMainnet, cfg.ActiveNetwork)
	})

	t.Run("unsupported network", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("NETWORK", "solana")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("rpc override", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("AVAX_RPC_URL", "http://localhost:8545")
		cfg, err := Load()
		require.NoError(t, err)
		cc, err := cfg.Resolve(NetworkMainnet)
		require.NoError(t, err)
		require.Equal(t, "http://localhost:8545", cc.RPCEndpoint)
	})
}

func TestResolveName(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	cases := []struct {
		name    string
		want    NetworkID
		wantErr bool
	}{
		{name: "avalanche", want: NetworkMainnet},
		{name: "avalanche-mainnet", want: NetworkMainnet},
		{name: "mainnet", want: NetworkMainnet},
		{name: "avalanche-testnet", want: NetworkTestnet},
		{name: "avalanche-fuji", want: NetworkTestnet},
		{name: "testnet", want: NetworkTestnet},
		{name: "", want: NetworkTestnet}, // active network default
		{name: "bsc", wantErr: true},
	}
	for _, tc := range cases {
		t.Run("name="+tc.name, func(t *testing.T) {
			cc, err := cfg.ResolveName(tc.name)
			if tc.wantErr {
				require.Error(t, err)
				var unknown ErrUnknownNetwork
				require.ErrorAs(t, err, &unknown)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, cc.Network)
		})
	}
}

func TestChainContexts(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	mainnet, err := cfg.Resolve(NetworkMainnet)
	require.NoError(t, err)
	require.Equal(t, int64(43114), mainnet.ChainID.Int64())
	require.Equal(t, "avalanche", mainnet.DisplayName)

	testnet, err := cfg.Resolve(NetworkTestnet)
	require.NoError(t, err)
	require.Equal(t, int64(43113), testnet.ChainID.Int64())
	require.Equal(t, "avalanche-testnet", testnet.DisplayName)

	t.Run("active network listed first", func(t *testing.T) {
		networks := cfg.Networks()
		require.Len(t, networks, 2)
		require.Equal(t, cfg.ActiveNetwork, networks[0].Network)
	})
}
