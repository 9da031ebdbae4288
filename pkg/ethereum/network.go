package ethereum

// Network is a named chain.
type Network struct {
	ID   uint64
	Name string
}

var networkMap = map[uint64]Network{
	1:        {ID: 1, Name: "mainnet"},
	11155111: {ID: 11155111, Name: "sepolia"},
	17000:    {ID: 17000, Name: "holesky"},
	560048:   {ID: 560048, Name: "hoodi"},
	1337:     {ID: 1337, Name: "local"},
}

// NetworkByChainID returns the network for a chain id. Unknown chains get a
// synthetic name; they are expected to work over standard RPC.
func NetworkByChainID(chainID uint64) Network {
	if network, ok := networkMap[chainID]; ok {
		return network
	}

	return Network{ID: chainID, Name: "unknown"}
}
