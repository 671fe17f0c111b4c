package addrbook

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"slices"
)

// MaxPersisted is the maximum number of records written by Encode.
// Older peers beyond this count are dropped.
const MaxPersisted = 200

// Fixed part of an encoded record: addrLen(2) port(4) services(8) lastSeen(8).
const recordFixedSize = 2 + 4 + 8 + 8

// ErrCorruptState is returned by Decode for structurally invalid input.
var ErrCorruptState = errors.New("corrupt peer address data")

// Encode serializes at most MaxPersisted records, most recently seen first.
// Each record is written little-endian as
//
//	uint16 addrLen | addr | uint32 port | uint64 services | uint64 lastSeen
//
// with no header; end of data marks the end of the list.
func Encode(records []Record) []byte {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		return cmp.Compare(b.LastSeen, a.LastSeen)
	})

	buf := make([]byte, 0, min(len(sorted), MaxPersisted)*(recordFixedSize+16))
	count := 0
	for _, rec := range sorted {
		if count >= MaxPersisted {
			break
		}
		if !rec.Admissible() {
			continue
		}
		addr := rec.Addr.Unmap().AsSlice()
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(addr)))
		buf = append(buf, addr...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(rec.Port))
		buf = binary.LittleEndian.AppendUint64(buf, rec.Services)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(rec.LastSeen))
		count++
	}
	return buf
}

// Decode parses data produced by Encode and returns the records in file
// order. Any record that runs past the end of data, or whose address length
// or port is out of range, fails the whole decode with ErrCorruptState.
func Decode(data []byte) ([]Record, error) {
	var records []Record
	off := 0
	for off < len(data) {
		n := len(records)
		if len(data)-off < 2 {
			return nil, fmt.Errorf("%w: record %d at offset %d: truncated length field", ErrCorruptState, n, off)
		}
		addrLen := int(binary.LittleEndian.Uint16(data[off:]))
		if addrLen != 4 && addrLen != 16 {
			return nil, fmt.Errorf("%w: record %d at offset %d: address length %d", ErrCorruptState, n, off, addrLen)
		}
		if len(data)-off < recordFixedSize+addrLen {
			return nil, fmt.Errorf("%w: record %d at offset %d: need %d bytes, have %d",
				ErrCorruptState, n, off, recordFixedSize+addrLen, len(data)-off)
		}
		off += 2

		addr, _ := netip.AddrFromSlice(data[off : off+addrLen])
		off += addrLen

		port := binary.LittleEndian.Uint32(data[off:])
		if port > 0xffff {
			return nil, fmt.Errorf("%w: record %d: port %d out of range", ErrCorruptState, n, port)
		}
		off += 4

		services := binary.LittleEndian.Uint64(data[off:])
		off += 8
		lastSeen := int64(binary.LittleEndian.Uint64(data[off:]))
		off += 8

		records = append(records, Record{
			Addr:     addr.Unmap(),
			Port:     uint16(port),
			Services: services,
			LastSeen: lastSeen,
		})
	}
	return records, nil
}
