// Package addrbook implements the in-memory peer address book, its
// per-process discovery tracker and the compact binary file format used to
// persist it between runs.
package addrbook

import (
	"net/netip"
	"time"
)

// Record is one observed peer endpoint.
type Record struct {
	Addr     netip.Addr // 4-byte IPv4 or 16-byte IPv6, never IPv4-mapped
	Port     uint16
	Services uint64 // capability bitmask advertised by the peer
	LastSeen int64  // unix seconds of the most recent observation
}

// AddrPort returns the socket address that keys the record.
func (r Record) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(r.Addr, r.Port)
}

// Time returns LastSeen as a time.Time.
func (r Record) Time() time.Time {
	return time.Unix(r.LastSeen, 0)
}

// HasServices reports whether every bit of required is set on the record.
func (r Record) HasServices(required uint64) bool {
	return r.Services&required == required
}

// normalize strips IPv4 mapping and zones so the same endpoint always
// produces the same key.
func (r Record) normalize() Record {
	r.Addr = r.Addr.Unmap().WithZone("")
	return r
}

// Admissible reports whether the record may enter the book.
func (r Record) Admissible() bool {
	a := r.Addr.Unmap()
	return a.IsValid() && !a.IsLoopback()
}

// Advertisement is a decoded entry of a peer's address message.
type Advertisement struct {
	Addr      netip.Addr
	Port      uint16
	Services  uint64
	Timestamp time.Time
}

// Record converts the advertisement to a book record.
func (a Advertisement) Record() Record {
	return Record{
		Addr:     a.Addr,
		Port:     a.Port,
		Services: a.Services,
		LastSeen: a.Timestamp.Unix(),
	}.normalize()
}
