package addrbook

import (
	"net/netip"
	"sync"

	klog "github.com/Klingon-tech/klingnet-addrbook/internal/log"
)

// Book is the deduplicated, insertion-ordered set of known peer records
// together with the discovery tracker. A single mutex covers both so that
// ingest, discovery and persistence always observe a consistent view.
type Book struct {
	mu      sync.Mutex
	records []Record
	index   map[netip.AddrPort]int // key -> position in records
	served  *Tracker
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{
		index:  make(map[netip.AddrPort]int),
		served: NewTracker(),
	}
}

// Merge inserts rec or updates the existing entry with the same socket
// address. Loopback and invalid addresses are ignored. An update overwrites
// Services and LastSeen with the incoming values even when the incoming
// timestamp is older, so a reloaded file keeps exactly what the peer last
// told us. Returns true when a new entry was added.
func (b *Book) Merge(rec Record) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mergeLocked(rec)
}

// MergeAll merges recs in order under one lock acquisition and returns the
// number of new entries.
func (b *Book) MergeAll(recs []Record) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0
	for _, rec := range recs {
		if b.mergeLocked(rec) {
			added++
		}
	}
	return added
}

func (b *Book) mergeLocked(rec Record) bool {
	if !rec.Admissible() {
		return false
	}
	rec = rec.normalize()
	key := rec.AddrPort()

	if i, ok := b.index[key]; ok {
		b.records[i].Services = rec.Services
		b.records[i].LastSeen = rec.LastSeen
		return false
	}

	b.index[key] = len(b.records)
	b.records = append(b.records, rec)
	klog.AddrBook.Debug().
		Str("addr", key.String()).
		Str("services", FormatServices(rec.Services)).
		Msg("Added peer address")
	return true
}

// Replace discards the current records and merges recs in order. The
// discovery tracker is left untouched.
func (b *Book) Replace(recs []Record) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records = make([]Record, 0, len(recs))
	b.index = make(map[netip.AddrPort]int, len(recs))
	for _, rec := range recs {
		b.mergeLocked(rec)
	}
	return len(b.records)
}

// Snapshot returns a copy of the records in book order.
func (b *Book) Snapshot() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Len returns the number of records.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// lookup returns the record stored for ap.
func (b *Book) lookup(ap netip.AddrPort) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[trackerKey(ap)]
	if !ok {
		return Record{}, false
	}
	return b.records[i], true
}

// TakeMatching returns, in book order, every record advertising all bits of
// required that discovery has not served yet, and marks them as served.
func (b *Book) TakeMatching(required uint64) []netip.AddrPort {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []netip.AddrPort
	for _, rec := range b.records {
		if !rec.HasServices(required) {
			continue
		}
		ap := rec.AddrPort()
		if b.served.Mark(ap) {
			out = append(out, ap)
		}
	}
	return out
}

// MarkServed records addrs as served without adding them to the book.
func (b *Book) MarkServed(addrs []netip.AddrPort) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ap := range addrs {
		b.served.Mark(ap)
	}
}

// isServed reports whether discovery has already returned ap.
func (b *Book) isServed(ap netip.AddrPort) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.served.Seen(ap)
}

// ServedCount returns the number of addresses discovery has handed out.
func (b *Book) ServedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.served.Len()
}
