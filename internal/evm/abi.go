package evm

const (
	// FunctionTransferWithAuthorization is the relayer's settlement entry point.
	FunctionTransferWithAuthorization = "transferWithAuthorization"
	// FunctionAuthorizationState is the relayer's replay-protection read.
	FunctionAuthorizationState = "authorizationState"

	// SettlementGasLimit is sized for one ERC20 transferFrom-equivalent.
	SettlementGasLimit = 200000
)

// RelayerABI covers the two entry points of the A402 relayer contract the
// facilitator depends on. The relayer marks (authorizer, nonce) pairs used
// during transferWithAuthorization and reverts on reuse.
var RelayerABI = []byte(`[
	{
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "validAfter", "type": "uint256"},
			{"name": "validBefore", "type": "uint256"},
			{"name": "nonce", "type": "bytes32"},
			{"name": "v", "type": "uint8"},
			{"name": "r", "type": "bytes32"},
			{"name": "s", "type": "bytes32"}
		],
		"name": "transferWithAuthorization",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "authorizer", "type": "address"},
			{"name": "nonce", "type": "bytes32"}
		],
		"name": "authorizationState",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	}
]`)

// ERC20MetadataABI is the minimal read surface for token annotation.
var ERC20MetadataABI = []byte(`[
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "symbol",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "name",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`)
