package wallet

// ChainInfo describes one EVM-compatible chain supported for deposits
// and withdrawals.
type ChainInfo struct {
	ChainId               int64
	NativeSymbol          string
	RequiredConfirmations int
}

// evmChains is the catalog of chains sharing the single BIP-44 coin
// type 60 address space. A derived address is valid on every one of
// them; adding a chain here must never allocate a second address for
// an existing user+index.
var evmChains = map[string]ChainInfo{
	"ERC20":    {ChainId: 1, NativeSymbol: "ETH", RequiredConfirmations: 12},
	"BSC20":    {ChainId: 56, NativeSymbol: "BNB", RequiredConfirmations: 15},
	"Arbitrum": {ChainId: 42161, NativeSymbol: "ETH", RequiredConfirmations: 6},
	"Optimism": {ChainId: 10, NativeSymbol: "ETH", RequiredConfirmations: 6},
}

// NetworksSharingAddressSpace returns the names of all chains for
// which a single derived address is valid.
func NetworksSharingAddressSpace() []string {
	networks := make([]string, 0, len(evmChains))
	for name := range evmChains {
		networks = append(networks, name)
	}
	return networks
}

// IsEVMNetwork reports whether the named network belongs to the shared
// EVM address space.
func IsEVMNetwork(network string) bool {
	_, ok := evmChains[network]
	return ok
}

// ChainInfoFor returns chain metadata for a supported network.
func ChainInfoFor(network string) (ChainInfo, bool) {
	info, ok := evmChains[network]
	return info, ok
}
