package token

import (
	"strings"

	"github.com/a402-foundation/a402-facilitator/internal/config"
)

// Well-known Avalanche C-Chain tokens. Matching against this table is the
// first resolution step and costs no I/O. Keys are lowercased addresses.
var knownMainnetTokens = []Info{
	{Address: "0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7", Decimals: 6, Symbol: "USDT", Name: "Tether USD"},
	{Address: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", Decimals: 6, Symbol: "USDC", Name: "USD Coin"},
	{Address: "0xc7198437980c041c805A1EDcbA50c1Ce5db95118", Decimals: 6, Symbol: "USDT.e", Name: "Tether USD (Bridged)"},
	{Address: "0xA7D7079b0FEaD91F3e65f86E8915Cb59c1a4C664", Decimals: 6, Symbol: "USDC.e", Name: "USD Coin (Bridged)"},
}

var knownTestnetTokens = []Info{
	{Address: "0x9e9ab4D5e5e7D7E7E5e5E5E5E5E5E5E5E5E5E5E5", Decimals: 6, Symbol: "USDT", Name: "Tether USD (Testnet)"},
}

func knownTokens() map[config.NetworkID]map[string]Info {
	tables := map[config.NetworkID][]Info{
		config.NetworkMainnet: knownMainnetTokens,
		config.NetworkTestnet: knownTestnetTokens,
	}
	out := make(map[config.NetworkID]map[string]Info, len(tables))
	for network, infos := range tables {
		table := make(map[string]Info, len(infos))
		for _, info := range infos {
			table[strings.ToLower(info.Address)] = info
		}
		out[network] = table
	}
	return out
}

// Whitelist returns the assets advertised for a network on /list.
func Whitelist(network config.NetworkID) []Info {
	switch network {
	case config.NetworkMainnet:
		return knownMainnetTokens
	default:
		return knownTestnetTokens
	}
}
