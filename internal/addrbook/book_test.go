package addrbook

import (
	"net/netip"
	"sync"
	"testing"
)

func rec(addr string, port uint16, services uint64, lastSeen int64) Record {
	return Record{
		Addr:     netip.MustParseAddr(addr),
		Port:     port,
		Services: services,
		LastSeen: lastSeen,
	}
}

func ap(s string) netip.AddrPort {
	return netip.MustParseAddrPort(s)
}

func TestBook_MergeNew(t *testing.T) {
	b := NewBook()

	if !b.Merge(rec("10.0.0.1", 8333, NodeNetwork, 100)) {
		t.Fatal("expected first merge to add a record")
	}
	if !b.Merge(rec("10.0.0.2", 8333, NodeBloom, 200)) {
		t.Fatal("expected second merge to add a record")
	}
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}

	snap := b.Snapshot()
	if snap[0].Addr.String() != "10.0.0.1" || snap[1].Addr.String() != "10.0.0.2" {
		t.Errorf("arrival order not preserved: %v", snap)
	}
}

func TestBook_MergeDedup(t *testing.T) {
	orders := [][]Record{
		{rec("10.0.0.1", 8333, 0b001, 100), rec("10.0.0.1", 8333, 0b110, 50)},
		{rec("10.0.0.1", 8333, 0b110, 50), rec("10.0.0.1", 8333, 0b001, 100)},
	}

	for i, recs := range orders {
		b := NewBook()
		for _, r := range recs {
			b.Merge(r)
		}
		if b.Len() != 1 {
			t.Fatalf("order %d: Len = %d, want 1", i, b.Len())
		}
		last := recs[len(recs)-1]
		got := b.Snapshot()[0]
		if got.Services != last.Services || got.LastSeen != last.LastSeen {
			t.Errorf("order %d: got services=%b lastSeen=%d, want services=%b lastSeen=%d",
				i, got.Services, got.LastSeen, last.Services, last.LastSeen)
		}
	}
}

func TestBook_MergeSamePortDifferentAddr(t *testing.T) {
	b := NewBook()
	b.Merge(rec("10.0.0.1", 8333, 0, 1))
	b.Merge(rec("10.0.0.1", 18333, 0, 1))
	b.Merge(rec("2001:db8::1", 8333, 0, 1))

	if b.Len() != 3 {
		t.Errorf("Len = %d, want 3", b.Len())
	}
}

func TestBook_MergeIPv4Mapped(t *testing.T) {
	b := NewBook()
	b.Merge(rec("10.0.0.1", 8333, NodeNetwork, 1))
	added := b.Merge(rec("::ffff:10.0.0.1", 8333, NodeBloom, 2))

	if added {
		t.Error("IPv4-mapped address should update the IPv4 entry")
	}
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1", b.Len())
	}
	if got := b.Snapshot()[0]; !got.Addr.Is4() || got.Services != NodeBloom {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestBook_RejectsLoopback(t *testing.T) {
	b := NewBook()
	for _, a := range []string{"127.0.0.1", "127.1.2.3", "::1", "::ffff:127.0.0.1"} {
		if b.Merge(rec(a, 8333, NodeBloom, 1)) {
			t.Errorf("loopback %s was admitted", a)
		}
	}
	if b.Merge(Record{Port: 8333}) {
		t.Error("invalid address was admitted")
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d, want 0", b.Len())
	}
}

func TestBook_SnapshotIsCopy(t *testing.T) {
	b := NewBook()
	b.Merge(rec("10.0.0.1", 8333, NodeNetwork, 1))

	snap := b.Snapshot()
	snap[0].Services = 0xff

	if got := b.Snapshot()[0].Services; got != NodeNetwork {
		t.Errorf("snapshot mutation leaked into book: services=%d", got)
	}
}

func TestBook_MergeAll(t *testing.T) {
	b := NewBook()
	added := b.MergeAll([]Record{
		rec("10.0.0.1", 1, 0, 1),
		rec("10.0.0.2", 1, 0, 1),
		rec("10.0.0.1", 1, 0, 2),
		rec("127.0.0.1", 1, 0, 1),
	})
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
}

func TestBook_Replace(t *testing.T) {
	b := NewBook()
	b.Merge(rec("10.0.0.1", 1, 0, 1))
	b.TakeMatching(0)

	n := b.Replace([]Record{
		rec("10.0.0.2", 1, 0, 1),
		rec("10.0.0.3", 1, 0, 1),
		rec("10.0.0.3", 1, 0, 2),
		rec("::1", 1, 0, 1),
	})
	if n != 2 {
		t.Fatalf("Replace returned %d, want 2", n)
	}
	if _, ok := b.lookup(ap("10.0.0.1:1")); ok {
		t.Error("old record survived Replace")
	}
	if !b.isServed(ap("10.0.0.1:1")) {
		t.Error("Replace must not reset the served set")
	}
}

func TestBook_TakeMatchingMask(t *testing.T) {
	b := NewBook()
	b.Merge(rec("10.0.0.1", 8333, 0b111, 1)) // P1
	b.Merge(rec("10.0.0.2", 8333, 0b011, 1)) // P2

	got := b.TakeMatching(0b100)
	if len(got) != 1 || got[0] != ap("10.0.0.1:8333") {
		t.Fatalf("TakeMatching(0b100) = %v, want [10.0.0.1:8333]", got)
	}
}

func TestBook_TakeMatchingAtMostOnce(t *testing.T) {
	b := NewBook()
	b.Merge(rec("10.0.0.1", 8333, 0b111, 1))
	b.Merge(rec("10.0.0.2", 8333, 0b011, 1))

	seen := make(map[netip.AddrPort]int)
	for i := 0; i < 5; i++ {
		for _, a := range b.TakeMatching(0b001) {
			seen[a]++
		}
	}
	// A different mask must not resurrect served entries.
	for _, a := range b.TakeMatching(0) {
		seen[a]++
	}

	if len(seen) != 2 {
		t.Fatalf("served %d distinct addresses, want 2", len(seen))
	}
	for a, n := range seen {
		if n != 1 {
			t.Errorf("%s served %d times", a, n)
		}
	}
	if b.ServedCount() != 2 {
		t.Errorf("ServedCount = %d, want 2", b.ServedCount())
	}
}

func TestBook_MarkServedSkipsLaterMatch(t *testing.T) {
	b := NewBook()
	b.MarkServed([]netip.AddrPort{ap("10.0.0.9:8333")})
	b.Merge(rec("10.0.0.9", 8333, NodeBloom, 1))

	if got := b.TakeMatching(NodeBloom); len(got) != 0 {
		t.Errorf("address served by seeds returned again: %v", got)
	}
	if b.Len() != 1 {
		t.Errorf("MarkServed must not add to the book")
	}
}

func TestBook_Concurrent(t *testing.T) {
	b := NewBook()
	var wg sync.WaitGroup
	var mu sync.Mutex
	served := make(map[netip.AddrPort]int)

	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Merge(rec("10.1.0.1", uint16(1000+i), NodeBloom, int64(w)))
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				got := b.TakeMatching(NodeBloom)
				mu.Lock()
				for _, a := range got {
					served[a]++
				}
				mu.Unlock()
				_ = b.Snapshot()
			}
		}()
	}
	wg.Wait()

	if b.Len() != 100 {
		t.Errorf("Len = %d, want 100", b.Len())
	}
	for a, n := range served {
		if n != 1 {
			t.Errorf("%s served %d times", a, n)
		}
	}
}
