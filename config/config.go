// Package config handles address book node configuration.
//
// Settings are resolved in order: built-in defaults for the network, the
// key = value config file, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Backend selects where the encoded address book is persisted.
type Backend string

const (
	BackendFile   Backend = "file"   // PeerAddresses.dat in the network data dir
	BackendBadger Backend = "badger" // a key in a Badger database
)

// PeersFileName is the default name of the persisted address book.
const PeersFileName = "PeerAddresses.dat"

// Config holds node runtime configuration.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	Discovery DiscoveryConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

// DiscoveryConfig holds address book and peer discovery settings.
type DiscoveryConfig struct {
	Backend   Backend `conf:"discovery.backend"`
	PeersFile string  `conf:"discovery.peersfile"` // relative paths resolve against the network dir

	Seeds    []string `conf:"discovery.seeds"`    // DNS seed host names
	SeedPort int      `conf:"discovery.seedport"` // port attached to seed results
	Resolver string   `conf:"discovery.resolver"` // DNS server host:port, empty = system resolver

	Services        uint64        `conf:"discovery.services"`        // required service mask
	Timeout         time.Duration `conf:"discovery.timeout"`         // seed resolution timeout
	PersistInterval time.Duration `conf:"discovery.persistinterval"` // 0 disables periodic saves

	StaticPeers []string `conf:"discovery.static"` // multiaddrs merged at startup
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `conf:"metrics.addr"` // host:port serving /metrics, empty disables
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-addrbook
//	macOS:   ~/Library/Application Support/KlingnetAddrBook
//	Windows: %APPDATA%\KlingnetAddrBook
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-addrbook"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetAddrBook")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetAddrBook")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetAddrBook")
	default:
		return filepath.Join(home, ".klingnet-addrbook")
	}
}

// NetworkDir returns the network-specific data directory.
func (c *Config) NetworkDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// PeersFilePath returns the path of the persisted address book file.
func (c *Config) PeersFilePath() string {
	p := c.Discovery.PeersFile
	if p == "" {
		p = PeersFileName
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.NetworkDir(), p)
}

// DBDir returns the Badger database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.NetworkDir(), "addrbook.db")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "addrbook.conf")
}
