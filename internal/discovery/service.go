// Package discovery answers peer discovery requests from the address book,
// falling back to seed resolution once the book has nothing new to offer.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-addrbook/internal/addrbook"
	klog "github.com/Klingon-tech/klingnet-addrbook/internal/log"
	"github.com/Klingon-tech/klingnet-addrbook/internal/storage"
)

// Discoverer returns candidate peer endpoints that advertise every bit of
// services. Implementations that cannot filter by capability ignore it.
type Discoverer interface {
	GetPeers(ctx context.Context, services uint64, timeout time.Duration) ([]netip.AddrPort, error)
	Shutdown()
}

// Config holds the collaborators of a Service.
type Config struct {
	// Blob persists the encoded book. Required for LoadPeers/StorePeers.
	Blob storage.Blob

	// Seeds is consulted when the book has no unserved match. Nil disables
	// the fallback.
	Seeds Discoverer

	// Shuffle randomizes the loaded order; nil uses math/rand/v2.
	Shuffle func(n int, swap func(i, j int))
}

// Service is the cache-backed Discoverer. It owns the address book and the
// set of addresses already handed out during this process.
type Service struct {
	book    *addrbook.Book
	blob    storage.Blob
	seeds   Discoverer
	shuffle func(n int, swap func(i, j int))

	shutdownOnce sync.Once
}

var _ Discoverer = (*Service)(nil)

// New creates a Service with an empty book.
func New(cfg Config) *Service {
	shuffle := cfg.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return &Service{
		book:    addrbook.NewBook(),
		blob:    cfg.Blob,
		seeds:   cfg.Seeds,
		shuffle: shuffle,
	}
}

// ServedCount returns how many distinct addresses GetPeers has handed out
// in this process.
func (s *Service) ServedCount() int {
	return s.book.ServedCount()
}

// Len returns the number of known peer addresses.
func (s *Service) Len() int {
	return s.book.Len()
}

// Snapshot returns a copy of the known peer records.
func (s *Service) Snapshot() []addrbook.Record {
	return s.book.Snapshot()
}

// ProcessAddressMessage merges the advertisements received from a peer into
// the book. from only appears in logs.
func (s *Service) ProcessAddressMessage(from string, msgs []addrbook.Advertisement) {
	recs := make([]addrbook.Record, len(msgs))
	for i, m := range msgs {
		recs[i] = m.Record()
	}
	added := s.book.MergeAll(recs)
	total := s.book.Len()
	metricBookRecords.Set(float64(total))

	klog.Discovery.Debug().
		Str("from", from).
		Int("received", len(msgs)).
		Int("added", added).
		Int("total", total).
		Msg("Processed address message")
}

// LoadPeers replaces the book with the persisted records, in random order,
// and returns the resulting count. A backend with nothing stored yields an
// empty book. The served set is not affected.
func (s *Service) LoadPeers() (int, error) {
	if s.blob == nil {
		return 0, fmt.Errorf("%w: no backend configured", ErrPersistenceIO)
	}

	data, err := s.blob.Load()
	if errors.Is(err, storage.ErrNotFound) {
		n := s.book.Replace(nil)
		metricBookRecords.Set(0)
		metricPersist.WithLabelValues("load", resultOK).Inc()
		klog.Discovery.Info().Msg("No saved peers found")
		return n, nil
	}
	if err != nil {
		metricPersist.WithLabelValues("load", resultError).Inc()
		return 0, fmt.Errorf("%w: %w", ErrPersistenceIO, err)
	}

	recs, err := addrbook.Decode(data)
	if err != nil {
		metricPersist.WithLabelValues("load", resultError).Inc()
		return 0, fmt.Errorf("load peers: %w", err)
	}

	// Discovery scans in book order; don't start with the same peer every run.
	s.shuffle(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })

	n := s.book.Replace(recs)
	metricBookRecords.Set(float64(n))
	metricPersist.WithLabelValues("load", resultOK).Inc()
	klog.Discovery.Info().Int("peers", n).Msg("Saved peers loaded")
	return n, nil
}

// StorePeers writes the most recently seen records (at most
// addrbook.MaxPersisted) to the backend.
func (s *Service) StorePeers() error {
	if s.blob == nil {
		return fmt.Errorf("%w: no backend configured", ErrPersistenceIO)
	}

	snap := s.book.Snapshot()
	data := addrbook.Encode(snap)
	if err := s.blob.Save(data); err != nil {
		metricPersist.WithLabelValues("store", resultError).Inc()
		return fmt.Errorf("%w: %w", ErrPersistenceIO, err)
	}

	metricPersist.WithLabelValues("store", resultOK).Inc()
	klog.Discovery.Info().
		Int("peers", min(len(snap), addrbook.MaxPersisted)).
		Int("bytes", len(data)).
		Msg("Peers saved")
	return nil
}

// GetPeers returns every known peer advertising all bits of services that
// has not been returned before in this process. When there is none, the
// seed resolver is asked once, without a service filter, and its answer is
// returned as is; those addresses are marked served but not added to the
// book since they carry no service or timestamp data.
func (s *Service) GetPeers(ctx context.Context, services uint64, timeout time.Duration) ([]netip.AddrPort, error) {
	peers := s.book.TakeMatching(services)
	if len(peers) > 0 {
		metricServed.WithLabelValues(sourceCache).Add(float64(len(peers)))
		klog.Discovery.Debug().
			Int("peers", len(peers)).
			Str("services", addrbook.FormatServices(services)).
			Msg("Returning peers from address book")
		return peers, nil
	}

	if s.seeds == nil {
		return nil, nil
	}

	peers, err := s.seeds.GetPeers(ctx, 0, timeout)
	if err != nil {
		metricSeedFallbacks.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryUnavailable, err)
	}
	metricSeedFallbacks.WithLabelValues(resultOK).Inc()

	peers = slices.DeleteFunc(peers, func(ap netip.AddrPort) bool {
		a := ap.Addr().Unmap()
		return !a.IsValid() || a.IsLoopback()
	})
	s.book.MarkServed(peers)
	metricServed.WithLabelValues(sourceSeed).Add(float64(len(peers)))
	klog.Discovery.Debug().Int("peers", len(peers)).Msg("Returning peers from seed resolution")
	return peers, nil
}

// Shutdown releases the seed resolver. Safe to call more than once.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() {
		if s.seeds != nil {
			s.seeds.Shutdown()
		}
	})
}
