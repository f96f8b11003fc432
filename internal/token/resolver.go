// Package token resolves display metadata (decimals, symbol, name) for
// arbitrary ERC20 token addresses. Resolution never fails: unknown or
// broken tokens get a fallback value. Metadata is used for audit and
// listing output only; validity decisions never depend on it.
package token

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/a402-foundation/a402-facilitator/internal/config"
	"github.com/a402-foundation/a402-facilitator/internal/evm"
	"github.com/ethereum/go-ethereum/common"
)

// Info is the resolved metadata for one token address.
type Info struct {
	Address  string `json:"asset"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// Source reports where a resolution came from, so callers and tests can
// tell a fallback apart from a real answer.
type Source int

const (
	SourceKnown Source = iota
	SourceCache
	SourceChain
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceKnown:
		return "known"
	case SourceCache:
		return "cache"
	case SourceChain:
		return "chain"
	default:
		return "fallback"
	}
}

// Fallback values used when a token cannot be read.
const (
	FallbackDecimals = 18
	FallbackSymbol   = "TOKEN"
	FallbackName     = "Unknown Token"
)

// MetadataReader is the chain dependency: one fanned-out read of
// decimals/symbol/name. *evm.Client satisfies it.
type MetadataReader interface {
	TokenMetadata(ctx context.Context, token common.Address) (evm.TokenMetadata, error)
}

// Resolver answers token metadata lookups: static known-token table first,
// then the in-process cache, then a live chain read, then the fallback.
// The cache only grows; entries are never invalidated, so a cached
// fallback stays a fallback for the process lifetime.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]Info
	known map[config.NetworkID]map[string]Info
}

// NewResolver builds a resolver seeded with the known-token tables.
func NewResolver() *Resolver {
	return &Resolver{
		cache: make(map[string]Info),
		known: knownTokens(),
	}
}

// Resolve returns metadata for the token, never failing. The returned
// Source identifies which branch produced the value.
func (r *Resolver) Resolve(ctx context.Context, reader MetadataReader, cc config.ChainContext, tokenAddress string) (Info, Source) {
	addr := strings.ToLower(tokenAddress)

	if table, ok := r.known[cc.Network]; ok {
		if info, ok := table[addr]; ok {
			return info, SourceKnown
		}
	}

	r.mu.RLock()
	info, cached := r.cache[addr]
	r.mu.RUnlock()
	if cached {
		return info, SourceCache
	}

	info, err := r.fetch(ctx, reader, tokenAddress)
	if err != nil {
		// Cache the fallback too, so a broken token does not cost a
		// chain round trip on every request.
		info = Info{
			Address:  tokenAddress,
			Decimals: FallbackDecimals,
			Symbol:   FallbackSymbol,
			Name:     FallbackName,
		}
		r.store(addr, info)
		return info, SourceFallback
	}

	r.store(addr, info)
	return info, SourceChain
}

// fetch is the explicit live-read branch. Keeping it separate from the
// fallback construction makes success vs. fallback observable.
func (r *Resolver) fetch(ctx context.Context, reader MetadataReader, tokenAddress string) (Info, error) {
	if !common.IsHexAddress(tokenAddress) {
		return Info{}, errInvalidTokenAddress
	}
	meta, err := reader.TokenMetadata(ctx, common.HexToAddress(tokenAddress))
	if err != nil {
		return Info{}, err
	}
	return Info{
		Address:  tokenAddress,
		Decimals: meta.Decimals,
		Symbol:   meta.Symbol,
		Name:     meta.Name,
	}, nil
}

func (r *Resolver) store(addr string, info Info) {
	// Concurrent writers for the same address race benignly: values are
	// deterministic per address, so last-writer-wins is fine.
	r.mu.Lock()
	r.cache[addr] = info
	r.mu.Unlock()
}

type resolveError string

func (e resolveError) Error() string { return string(e) }

const errInvalidTokenAddress = resolveError("invalid token address")

// FormatUnits renders a raw integer amount as a decimal string using the
// token's decimals, like ethers' formatUnits. Used for audit rows only.
func FormatUnits(value string, decimals uint8) string {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return value
	}
	if decimals == 0 {
		return v.String()
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(v, scale, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String() + ".0"
	}
	fracStr := strings.TrimRight(
		strings.Repeat("0", int(decimals)-len(frac.String()))+frac.String(),
		"0",
	)
	return whole.String() + "." + fracStr
}
