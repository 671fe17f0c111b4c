package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-addrbook/internal/addrbook"
)

// Version is reported by --version.
const Version = "0.1.0"

// Flags holds parsed global command-line flags.
type Flags struct {
	Help    bool
	Version bool

	// Core
	Network string
	Testnet bool
	DataDir string
	Config  string

	// Discovery
	Backend         string
	PeersFile       string
	Seeds           string
	SeedPort        int
	Resolver        string
	Services        string
	Timeout         time.Duration
	PersistInterval time.Duration
	Static          string

	// Metrics
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args (the subcommand and its arguments).
	Args []string

	// Explicitly-set flags whose zero value is meaningful.
	SetLogJSON         bool
	SetPersistInterval bool
	SetServices        bool
}

// ParseFlags parses global flags from args (without the program name).
// Parsing stops at the first non-flag argument.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("addrbook", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.BoolVar(&f.Testnet, "testnet", false, "Shorthand for --network=testnet")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.Backend, "backend", "", "Address book backend (file or badger)")
	fs.StringVar(&f.PeersFile, "peers-file", "", "Address book file")
	fs.StringVar(&f.Seeds, "seeds", "", "DNS seeds (comma-separated)")
	fs.IntVar(&f.SeedPort, "seed-port", 0, "Port attached to seed results")
	fs.StringVar(&f.Resolver, "resolver", "", "DNS server for seed queries (host:port)")
	fs.StringVar(&f.Services, "services", "", "Required service flags")
	fs.DurationVar(&f.Timeout, "timeout", 0, "Seed resolution timeout")
	fs.DurationVar(&f.PersistInterval, "persist-interval", 0, "Periodic save interval (0 disables)")
	fs.StringVar(&f.Static, "static", "", "Static peers as comma-separated multiaddrs")

	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Prometheus endpoint (host:port)")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.Testnet {
		f.Network = string(Testnet)
	}
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.SetPersistInterval = isFlagSet(fs, "persist-interval")
	f.SetServices = isFlagSet(fs, "services")
	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) error {
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.Backend != "" {
		cfg.Discovery.Backend = Backend(strings.ToLower(f.Backend))
	}
	if f.PeersFile != "" {
		cfg.Discovery.PeersFile = f.PeersFile
	}
	if f.Seeds != "" {
		cfg.Discovery.Seeds = parseStringList(f.Seeds)
	}
	if f.SeedPort != 0 {
		cfg.Discovery.SeedPort = f.SeedPort
	}
	if f.Resolver != "" {
		cfg.Discovery.Resolver = f.Resolver
	}
	if f.SetServices {
		mask, err := addrbook.ParseServices(f.Services)
		if err != nil {
			return fmt.Errorf("--services: %w", err)
		}
		cfg.Discovery.Services = mask
	}
	if f.Timeout != 0 {
		cfg.Discovery.Timeout = f.Timeout
	}
	if f.SetPersistInterval {
		cfg.Discovery.PersistInterval = f.PersistInterval
	}
	if f.Static != "" {
		cfg.Discovery.StaticPeers = parseStringList(f.Static)
	}

	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
	return nil
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Usage returns the global options help text.
func Usage() string {
	return `Global Options:
  --network           Network type: mainnet (default) or testnet
  --testnet           Shorthand for --network=testnet
  --datadir           Data directory (default: ` + DefaultDataDir() + `)
  --config, -c        Config file path (default: <datadir>/addrbook.conf)

Discovery Options:
  --backend           Address book backend: file (default) or badger
  --peers-file        Address book file (default: <datadir>/<network>/` + PeersFileName + `)
  --seeds             DNS seeds (comma-separated host names)
  --seed-port         Port attached to seed results (mainnet: 8333, testnet: 18333)
  --resolver          DNS server for seed queries, host:port (default: system)
  --services          Required service flags, e.g. BLOOM or NETWORK|BLOOM or 0x5
  --timeout           Seed resolution timeout, must be positive (default: 10s)
  --persist-interval  Periodic save interval, 0 disables (default: 5m)
  --static            Static peers as comma-separated multiaddrs

Metrics Options:
  --metrics-addr      Serve Prometheus metrics on host:port (default: disabled)

Logging Options:
  --log-level         Log level: trace, debug, info, warn, error (default: info)
  --log-file          Log file path
  --log-json          Output logs as JSON
`
}

// Load resolves configuration with the following precedence:
//  1. Default values for the network
//  2. Config file
//  3. Command-line flags
//
// It does not create any directories; see EnsureDataDirs.
func Load(f *Flags) (*Config, error) {
	network := Mainnet
	if strings.ToLower(f.Network) == string(Testnet) {
		network = Testnet
	}

	cfg := Default(network)
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	configPath := f.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	// The file may switch networks; re-derive network defaults the file
	// did not override.
	if cfg.Network != network {
		def := Default(cfg.Network)
		if _, ok := fileValues["discovery.seeds"]; !ok {
			cfg.Discovery.Seeds = def.Discovery.Seeds
		}
		if _, ok := fileValues["discovery.seedport"]; !ok {
			cfg.Discovery.SeedPort = def.Discovery.SeedPort
		}
	}

	if err := ApplyFlags(cfg, f); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDir(),
		cfg.LogsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
