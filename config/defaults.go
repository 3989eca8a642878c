package config

// DefaultMainnet returns the default node configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		P2P: P2PConfig{
			// ListenAddr left empty: node.go defaults to
			// /ip4/0.0.0.0/tcp/<Port> when unset. Set it only to override
			// with a full multiaddr (e.g. for an explicit interface).
			Port: 30303,
			MaxPeers:   50,
			// Seeds are libp2p multiaddrs, e.g.:
			//   "/ip4/203.0.113.1/tcp/30303/p2p/12D3KooW..."
			// Seed nodes should run with --dht-server so discovery has a
			// stable rendezvous point.
			Seeds: []string{},
		},
		Forge: ForgeConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default node configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.P2P.Port = 30304
	return cfg
}

// Default returns the default node configuration for the given network.
func Default(network NetworkType) *Config {
	if network == Testnet {
		return DefaultTestnet()
	}
	return DefaultMainnet()
}
