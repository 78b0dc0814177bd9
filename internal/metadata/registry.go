package metadata

import "solana-wallet-indexer/internal/domain"

// registryEntry is a well-known token shipped with the binary.
type registryEntry struct {
	symbol   string
	name     string
	decimals int
}

// registry covers the mints that dominate wallet activity so the common case
// never leaves the process.
var registry = map[string]registryEntry{
	domain.NativeMint: {symbol: "SOL", name: "Wrapped SOL", decimals: 9},
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {symbol: "USDC", name: "USD Coin", decimals: 6},
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {symbol: "USDT", name: "USDT", decimals: 6},
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  {symbol: "mSOL", name: "Marinade staked SOL", decimals: 9},
	"J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn": {symbol: "JitoSOL", name: "Jito Staked SOL", decimals: 9},
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": {symbol: "BONK", name: "Bonk", decimals: 5},
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  {symbol: "JUP", name: "Jupiter", decimals: 6},
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": {symbol: "RAY", name: "Raydium", decimals: 6},
}

// lookupRegistry returns the built-in entry for mint, if any.
func lookupRegistry(mint string) (*domain.TokenMeta, bool) {
	entry, ok := registry[mint]
	if !ok {
		return nil, false
	}
	name := entry.name
	return &domain.TokenMeta{
		Mint:     mint,
		Symbol:   entry.symbol,
		Name:     &name,
		Decimals: entry.decimals,
		Source:   domain.MetaSourceLocal,
	}, true
}
