package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-addrbook/internal/addrbook"
)

// LoadFile loads configuration values from a .conf file.
// Format: key = value (one per line, # for comments). A missing file yields
// an empty map.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key. Unknown keys are ignored.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	case "discovery.backend":
		cfg.Discovery.Backend = Backend(strings.ToLower(value))
	case "discovery.peersfile":
		cfg.Discovery.PeersFile = value
	case "discovery.seeds":
		cfg.Discovery.Seeds = parseStringList(value)
	case "discovery.seedport":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Discovery.SeedPort = port
	case "discovery.resolver":
		cfg.Discovery.Resolver = value
	case "discovery.services":
		mask, err := addrbook.ParseServices(value)
		if err != nil {
			return err
		}
		cfg.Discovery.Services = mask
	case "discovery.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Discovery.Timeout = d
	case "discovery.persistinterval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Discovery.PersistInterval = d
	case "discovery.static":
		cfg.Discovery.StaticPeers = parseStringList(value)

	case "metrics.addr":
		cfg.Metrics.Addr = value

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	def := Default(network)
	content := `# Klingnet address book configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ` + DefaultDataDir() + `)
# datadir =

# ============================================================================
# Discovery
# ============================================================================

# Where the address book is saved: file or badger
discovery.backend = file
# discovery.peersfile = ` + PeersFileName + `

# DNS seeds (comma-separated host names)
discovery.seeds = ` + strings.Join(def.Discovery.Seeds, ",") + `
discovery.seedport = ` + strconv.Itoa(def.Discovery.SeedPort) + `

# DNS server used for seed queries (host:port); empty uses the system resolver
# discovery.resolver = 9.9.9.9:53

# Required service flags: names (NETWORK|GETUTXOS|BLOOM) or a number
discovery.services = ` + addrbook.FormatServices(def.Discovery.Services) + `
discovery.timeout = ` + def.Discovery.Timeout.String() + `
discovery.persistinterval = ` + def.Discovery.PersistInterval.String() + `

# Peers merged into the book at startup (comma-separated multiaddrs)
# discovery.static = /ip4/203.0.113.10/tcp/8333

# ============================================================================
# Metrics
# ============================================================================

# Prometheus endpoint (host:port); empty disables
# metrics.addr = 127.0.0.1:9333

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
