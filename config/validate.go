package config

import (
	"fmt"
	"net"

	"github.com/Klingon-tech/klingnet-addrbook/internal/addrbook"
	klog "github.com/Klingon-tech/klingnet-addrbook/internal/log"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}

	d := &cfg.Discovery
	switch d.Backend {
	case BackendFile, BackendBadger:
	case "":
		d.Backend = BackendFile
	default:
		return fmt.Errorf("discovery.backend must be %q or %q", BackendFile, BackendBadger)
	}
	if d.SeedPort < 1 || d.SeedPort > 65535 {
		return fmt.Errorf("discovery.seedport must be in range [1, 65535]")
	}
	if d.Resolver != "" {
		if _, _, err := net.SplitHostPort(d.Resolver); err != nil {
			return fmt.Errorf("discovery.resolver must be host:port: %w", err)
		}
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("discovery.timeout must be positive")
	}
	if d.PersistInterval < 0 {
		return fmt.Errorf("discovery.persistinterval must not be negative")
	}
	for i, s := range d.Seeds {
		if s == "" {
			return fmt.Errorf("discovery.seeds[%d] is empty", i)
		}
	}
	for i, s := range d.StaticPeers {
		if _, err := addrbook.ParseMultiaddr(s); err != nil {
			return fmt.Errorf("discovery.static[%d]: %w", i, err)
		}
	}

	if cfg.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr must be host:port: %w", err)
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !klog.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error")
	}
	return nil
}
