package chains

import "web3-rpcpool-go/pkg/network"

// Public endpoints used when no chains file is supplied.
var defaultNetworks = map[string]ChainConfig{
	"eip155:1": {
		ChainID: network.MainnetChainID,
		Name:    network.Name(network.MainnetChainID),
		RPCURLs: []string{
			"https://eth.llamarpc.com",
			"https://ethereum-rpc.publicnode.com",
			"https://rpc.ankr.com/eth",
		},
		SupportsEIP1559: true,
	},
	"eip155:10": {
		ChainID: network.OptimismChainID,
		Name:    network.Name(network.OptimismChainID),
		RPCURLs: []string{
			"https://mainnet.optimism.io",
			"https://optimism-rpc.publicnode.com",
		},
		SupportsEIP1559: true,
	},
	"eip155:137": {
		ChainID: network.PolygonChainID,
		Name:    network.Name(network.PolygonChainID),
		RPCURLs: []string{
			"https://polygon-rpc.com",
			"https://polygon-bor-rpc.publicnode.com",
		},
		SupportsEIP1559: true,
	},
	"eip155:8453": {
		ChainID: network.BaseChainID,
		Name:    network.Name(network.BaseChainID),
		RPCURLs: []string{
			"https://mainnet.base.org",
			"https://base-rpc.publicnode.com",
		},
		SupportsEIP1559: true,
	},
	"eip155:42161": {
		ChainID: network.ArbitrumChainID,
		Name:    network.Name(network.ArbitrumChainID),
		RPCURLs: []string{
			"https://arb1.arbitrum.io/rpc",
			"https://arbitrum-one-rpc.publicnode.com",
		},
		SupportsEIP1559: true,
	},
	"eip155:11155111": {
		ChainID: network.SepoliaChainID,
		Name:    network.Name(network.SepoliaChainID),
		RPCURLs: []string{
			"https://ethereum-sepolia-rpc.publicnode.com",
			"https://rpc.sepolia.org",
		},
		SupportsEIP1559: true,
	},
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := NewRegistry(defaultNetworks)
	if err != nil {
		// built-in table is static
		panic(err)
	}
	return r
}
