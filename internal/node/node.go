// Package node wires the address book, its persistence backend and the seed
// resolver into a single component that can be embedded in any binary.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/klingnet-addrbook/config"
	"github.com/Klingon-tech/klingnet-addrbook/internal/addrbook"
	"github.com/Klingon-tech/klingnet-addrbook/internal/discovery"
	klog "github.com/Klingon-tech/klingnet-addrbook/internal/log"
	"github.com/Klingon-tech/klingnet-addrbook/internal/seed"
	"github.com/Klingon-tech/klingnet-addrbook/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// peersKey is the database key holding the encoded book on the badger backend.
const peersKey = "addrbook/peers"

// Node is a fully-initialized address book node.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	db  storage.DB // nil on the file backend
	svc *discovery.Service

	// loaded is set once the saved book has been read (or found corrupt).
	// Until then the in-memory book must not be written back.
	loaded atomic.Bool

	// Metrics
	metricsSrv *http.Server
	metricsLn  net.Listener

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates and initializes a Node: logger, persistence backend, seed
// resolver and discovery service. It does not touch the saved book; call
// Start for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := expandHome(cfg.Log.File)
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "addrbook.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.Node

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("backend", string(cfg.Discovery.Backend)).
		Str("services", addrbook.FormatServices(cfg.Discovery.Services)).
		Msg("Starting address book node")

	// ── 2. Persistence backend ──────────────────────────────────────
	var (
		db   storage.DB
		blob storage.Blob
	)
	switch cfg.Discovery.Backend {
	case config.BackendBadger:
		bdb, err := storage.NewBadger(cfg.DBDir())
		if err != nil {
			return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
		}
		db = bdb
		blob = storage.NewDBBlob(bdb, peersKey)
		logger.Info().Str("path", cfg.DBDir()).Msg("Database opened")
	default:
		path := expandHome(cfg.PeersFilePath())
		blob = storage.NewFileBlob(path)
		logger.Info().Str("path", path).Msg("Using peers file")
	}

	// ── 3. Seed resolver ────────────────────────────────────────────
	resolver := seed.New(seed.Config{
		Seeds:  cfg.Discovery.Seeds,
		Port:   uint16(cfg.Discovery.SeedPort),
		Server: cfg.Discovery.Resolver,
	})
	logger.Info().
		Int("seeds", len(cfg.Discovery.Seeds)).
		Str("resolver", resolver.Name()).
		Int("port", cfg.Discovery.SeedPort).
		Msg("Seed resolver configured")

	// ── 4. Discovery service ────────────────────────────────────────
	var seeds discovery.Discoverer
	if len(cfg.Discovery.Seeds) > 0 {
		seeds = resolver
	}
	svc := discovery.New(discovery.Config{
		Blob:  blob,
		Seeds: seeds,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		cfg:    cfg,
		logger: logger,
		db:     db,
		svc:    svc,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start loads the saved book, merges the configured static peers and starts
// the metrics endpoint and the periodic save loop. A corrupt saved book is
// logged and discarded; any other load failure is returned.
func (n *Node) Start() error {
	count, err := n.svc.LoadPeers()
	switch {
	case errors.Is(err, discovery.ErrCorruptState):
		n.logger.Warn().Err(err).Msg("Saved peers are corrupt, starting with an empty book")
	case err != nil:
		return fmt.Errorf("load peers: %w", err)
	}
	n.loaded.Store(true)

	if len(n.cfg.Discovery.StaticPeers) > 0 {
		ads, err := staticAdvertisements(n.cfg.Discovery.StaticPeers, n.cfg.Discovery.Services, time.Now())
		if err != nil {
			return err
		}
		n.svc.ProcessAddressMessage("static", ads)
	}

	if n.cfg.Metrics.Addr != "" {
		if err := n.startMetrics(n.cfg.Metrics.Addr); err != nil {
			return err
		}
	}

	if n.cfg.Discovery.PersistInterval > 0 {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.runPersistLoop(n.cfg.Discovery.PersistInterval)
		}()
	}

	n.logger.Info().
		Int("loaded", count).
		Int("peers", n.svc.Len()).
		Dur("persist_interval", n.cfg.Discovery.PersistInterval).
		Msg("Node started successfully")
	return nil
}

// Stop saves the book, unless it was never loaded, and releases every
// resource. Safe to call more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.cancel()
		if n.metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := n.metricsSrv.Shutdown(ctx); err != nil {
				n.logger.Warn().Err(err).Msg("Metrics server shutdown")
			}
			cancel()
		}
		n.wg.Wait()

		if err := n.storePeers(); err != nil {
			n.logger.Error().Err(err).Msg("Failed to save peers on shutdown")
		}
		n.svc.Shutdown()
		if n.db != nil {
			if err := n.db.Close(); err != nil {
				n.logger.Error().Err(err).Msg("Failed to close database")
			}
		}

		n.logger.Info().Msg("Goodbye!")
	})
}

// MetricsAddr returns the address the metrics endpoint listens on, or ""
// when it is disabled.
func (n *Node) MetricsAddr() string {
	if n.metricsLn == nil {
		return ""
	}
	return n.metricsLn.Addr().String()
}

// Service returns the discovery service.
func (n *Node) Service() *discovery.Service {
	return n.svc
}

// GetPeers runs one discovery round with the configured service mask and
// timeout.
func (n *Node) GetPeers(ctx context.Context) ([]netip.AddrPort, error) {
	return n.svc.GetPeers(ctx, n.cfg.Discovery.Services, n.cfg.Discovery.Timeout)
}

// Import merges operator-supplied peers into the book. They are stamped with
// the current time and the given services.
func (n *Node) Import(peers []netip.AddrPort, services uint64) int {
	before := n.svc.Len()
	now := time.Now()
	ads := make([]addrbook.Advertisement, len(peers))
	for i, ap := range peers {
		ads[i] = addrbook.Advertisement{
			Addr:      ap.Addr(),
			Port:      ap.Port(),
			Services:  services,
			Timestamp: now,
		}
	}
	n.svc.ProcessAddressMessage("import", ads)
	return n.svc.Len() - before
}

func (n *Node) runPersistLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if err := n.storePeers(); err != nil {
				n.logger.Warn().Err(err).Msg("Periodic peer save failed")
			}
		}
	}
}

// storePeers saves the book unless the saved copy was never read.
func (n *Node) storePeers() error {
	if !n.loaded.Load() {
		n.logger.Warn().Msg("Saved peers were not loaded, leaving them untouched")
		return nil
	}
	return n.svc.StorePeers()
}

// startMetrics serves the Prometheus default registry on addr.
func (n *Node) startMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	n.metricsLn = ln
	n.metricsSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	n.logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics endpoint started")
	return nil
}
