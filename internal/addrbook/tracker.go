package addrbook

import "net/netip"

// Tracker remembers which socket addresses discovery has already handed
// out during this process. It is not safe for concurrent use on its own;
// Book guards it with the book lock.
type Tracker struct {
	served map[netip.AddrPort]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{served: make(map[netip.AddrPort]struct{})}
}

// Seen reports whether ap was already served.
func (t *Tracker) Seen(ap netip.AddrPort) bool {
	_, ok := t.served[trackerKey(ap)]
	return ok
}

// Mark records ap as served. Returns false if it already was.
func (t *Tracker) Mark(ap netip.AddrPort) bool {
	k := trackerKey(ap)
	if _, ok := t.served[k]; ok {
		return false
	}
	t.served[k] = struct{}{}
	return true
}

// Len returns the number of served addresses.
func (t *Tracker) Len() int {
	return len(t.served)
}

func trackerKey(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap().WithZone(""), ap.Port())
}
