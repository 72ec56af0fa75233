package common

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

var supportedNetworks = map[Network]struct{}{
	NetworkMainnet: {},
	NetworkTestnet: {},
}

// mempool.space serves every network under its own path prefix.
var mempoolSpacePathPrefix = map[Network]string{
	NetworkMainnet: "/api",
	NetworkTestnet: "/testnet/api",
}

func (n Network) IsSupported() bool {
	_, ok := supportedNetworks[n]
	return ok
}

// MempoolSpacePathPrefix returns the REST path prefix of the network on mempool.space compatible explorers.
func (n Network) MempoolSpacePathPrefix() string {
	if prefix, ok := mempoolSpacePathPrefix[n]; ok {
		return prefix
	}
	return mempoolSpacePathPrefix[NetworkMainnet]
}

func (n Network) String() string {
	return string(n)
}
