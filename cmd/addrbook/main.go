// addrbook maintains a peer address book: it loads and saves the book,
// answers discovery requests from it and falls back to DNS seeds.
//
// Usage:
//
//	addrbook [global flags] <command> [flags]
//	addrbook --help
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Klingon-tech/klingnet-addrbook/config"
	"github.com/Klingon-tech/klingnet-addrbook/internal/addrbook"
	"github.com/Klingon-tech/klingnet-addrbook/internal/node"
	"github.com/Klingon-tech/klingnet-addrbook/internal/storage"
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		usage()
		fatal("%v", err)
	}
	if flags.Help {
		usage()
		return
	}
	if flags.Version {
		fmt.Printf("addrbook %s\n", config.Version)
		return
	}
	if len(flags.Args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fatal("%v", err)
	}

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]

	switch cmd {
	case "init":
		cmdInit(cfg)
	case "dump":
		cmdDump(cfg, cmdArgs)
	case "import":
		cmdImport(cfg, cmdArgs)
	case "discover":
		cmdDiscover(cfg, cmdArgs)
	case "run":
		cmdRun(cfg)
	case "help":
		usage()
	default:
		usage()
		fatal("unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: addrbook [global flags] <command> [flags]

Commands:
  init                            Create the data directory and default config
  dump [--file <path>]            Print the records of a saved address book
  import [--services <mask>] <multiaddr>...
                                  Add peers to the address book
  discover [--services <mask>] [--rounds <n>] [--timeout <d>]
                                  Run discovery rounds and print each batch
  run                             Keep the book loaded and save it periodically

%s`, config.Usage())
}

// ── init ────────────────────────────────────────────────────────────────

func cmdInit(cfg *config.Config) {
	if err := config.EnsureDataDirs(cfg); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Data dir: %s\n", cfg.DataDir)
	fmt.Printf("Config:   %s\n", cfg.ConfigFile())
	fmt.Printf("Peers:    %s\n", cfg.PeersFilePath())
}

// ── dump ────────────────────────────────────────────────────────────────

func cmdDump(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	file := fs.String("file", "", "Peers file (default: the configured peers file)")
	fs.Parse(args)

	path := *file
	if path == "" {
		path = cfg.PeersFilePath()
	}

	data, err := storage.NewFileBlob(path).Load()
	if errors.Is(err, storage.ErrNotFound) {
		fatal("no peers file at %s", path)
	}
	if err != nil {
		fatal("%v", err)
	}

	recs, err := addrbook.Decode(data)
	if err != nil {
		fatal("%s: %v", path, err)
	}

	fmt.Printf("Peers: %d\n", len(recs))
	for _, r := range recs {
		printRecord(r)
	}
}

func printRecord(r addrbook.Record) {
	addr := r.AddrPort().String()
	if m, err := r.Multiaddr(); err == nil {
		addr = m.String()
	}
	fmt.Printf("  %-46s %-20s %s\n", addr, addrbook.FormatServices(r.Services), r.Time().UTC().Format(time.RFC3339))
}

// ── import ──────────────────────────────────────────────────────────────

func cmdImport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	servicesStr := fs.String("services", "NETWORK", "Services the peers advertise")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fatal("Usage: addrbook import [--services <mask>] <multiaddr>...")
	}
	services, err := addrbook.ParseServices(*servicesStr)
	if err != nil {
		fatal("--services: %v", err)
	}

	peers := make([]netip.AddrPort, 0, fs.NArg())
	for _, s := range fs.Args() {
		ap, err := addrbook.ParseMultiaddr(s)
		if err != nil {
			fatal("%v", err)
		}
		peers = append(peers, ap)
	}

	n := startNode(cfg)
	defer n.Stop()

	added := n.Import(peers, services)
	fmt.Printf("Imported %d new peer(s), %d known\n", added, n.Service().Len())
}

// ── discover ────────────────────────────────────────────────────────────

func cmdDiscover(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	servicesStr := fs.String("services", "", "Required services (default: configured mask)")
	rounds := fs.Int("rounds", 1, "Number of discovery rounds")
	timeout := fs.Duration("timeout", 0, "Seed resolution timeout (default: configured)")
	fs.Parse(args)

	if *servicesStr != "" {
		services, err := addrbook.ParseServices(*servicesStr)
		if err != nil {
			fatal("--services: %v", err)
		}
		cfg.Discovery.Services = services
	}
	if *timeout > 0 {
		cfg.Discovery.Timeout = *timeout
	}
	if *rounds < 1 {
		fatal("--rounds must be at least 1")
	}

	n := startNode(cfg)
	defer n.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i := 1; i <= *rounds; i++ {
		peers, err := n.GetPeers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Round %d: %v\n", i, err)
			return
		}
		fmt.Printf("Round %d: %d peer(s)\n", i, len(peers))
		for _, ap := range peers {
			if m, err := addrbook.AddrPortMultiaddr(ap); err == nil {
				fmt.Printf("  %s\n", m)
			} else {
				fmt.Printf("  %s\n", ap)
			}
		}
	}
	fmt.Printf("Served %d distinct peer(s), %d known\n", n.Service().ServedCount(), n.Service().Len())
}

// ── run ─────────────────────────────────────────────────────────────────

func cmdRun(cfg *config.Config) {
	n := startNode(cfg)
	if addr := n.MetricsAddr(); addr != "" {
		fmt.Printf("Metrics: http://%s/metrics\n", addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}

func startNode(cfg *config.Config) *node.Node {
	if err := config.EnsureDataDirs(cfg); err != nil {
		fatal("%v", err)
	}
	n, err := node.New(cfg)
	if err != nil {
		fatal("%v", err)
	}
	if err := n.Start(); err != nil {
		n.Stop()
		fatal("%v", err)
	}
	return n
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
