package config

import (
	"time"

	"github.com/Klingon-tech/klingnet-addrbook/internal/addrbook"
)

// Default ports attached to seed-resolved addresses.
const (
	MainnetPort = 8333
	TestnetPort = 18333
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Discovery: DiscoveryConfig{
			Backend: BackendFile,
			Seeds: []string{
				"seed.bitcoin.sipa.be",
				"dnsseed.bluematt.me",
				"dnsseed.bitcoin.dashjr.org",
				"seed.bitcoinstats.com",
				"seed.bitcoin.jonasschnelli.ch",
				"seed.btc.petertodd.org",
			},
			SeedPort:        MainnetPort,
			Services:        addrbook.NodeBloom,
			Timeout:         10 * time.Second,
			PersistInterval: 5 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Discovery.Seeds = []string{
		"testnet-seed.bitcoin.jonasschnelli.ch",
		"seed.tbtc.petertodd.org",
		"testnet-seed.bluematt.me",
	}
	cfg.Discovery.SeedPort = TestnetPort
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
