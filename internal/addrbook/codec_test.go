package addrbook

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"testing"
)

func TestEncode_Layout(t *testing.T) {
	data := Encode([]Record{rec("1.2.3.4", 8333, 0x0102, 0x0a0b)})

	want := []byte{
		4, 0, // addrLen
		1, 2, 3, 4, // addr
		0x8d, 0x20, 0, 0, // port 8333
		0x02, 0x01, 0, 0, 0, 0, 0, 0, // services
		0x0b, 0x0a, 0, 0, 0, 0, 0, 0, // lastSeen
	}
	if string(data) != string(want) {
		t.Fatalf("encoding mismatch:\n got %x\nwant %x", data, want)
	}
}

func TestEncode_IPv6Length(t *testing.T) {
	data := Encode([]Record{rec("2001:db8::1", 8333, 0, 1)})
	if len(data) != recordFixedSize+16 {
		t.Fatalf("len = %d, want %d", len(data), recordFixedSize+16)
	}
	if n := binary.LittleEndian.Uint16(data); n != 16 {
		t.Errorf("addrLen = %d, want 16", n)
	}
}

func TestEncode_SortedByLastSeenDesc(t *testing.T) {
	data := Encode([]Record{
		rec("10.0.0.1", 1, 0, 10),
		rec("10.0.0.2", 1, 0, 30),
		rec("10.0.0.3", 1, 0, 20),
	})
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []int64{30, 20, 10}
	for i, r := range got {
		if r.LastSeen != want[i] {
			t.Errorf("record %d lastSeen = %d, want %d", i, r.LastSeen, want[i])
		}
	}
}

func TestEncode_SkipsLoopback(t *testing.T) {
	data := Encode([]Record{
		rec("127.0.0.1", 1, 0, 100),
		rec("::1", 1, 0, 100),
		rec("10.0.0.1", 1, 0, 1),
	})
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 1 || got[0].Addr.String() != "10.0.0.1" {
		t.Errorf("decoded %v, want only 10.0.0.1", got)
	}
}

func TestEncode_Cap(t *testing.T) {
	var recs []Record
	for i := 0; i < 250; i++ {
		recs = append(recs, Record{
			Addr:     netip.AddrFrom4([4]byte{10, 0, byte(i >> 8), byte(i)}),
			Port:     8333,
			LastSeen: int64(i),
		})
	}

	got, err := Decode(Encode(recs))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != MaxPersisted {
		t.Fatalf("decoded %d records, want %d", len(got), MaxPersisted)
	}
	for _, r := range got {
		if r.LastSeen < 50 {
			t.Errorf("record with lastSeen %d kept; only the 200 newest should survive", r.LastSeen)
		}
	}
}

func TestEncode_CapIgnoresLoopbackSlots(t *testing.T) {
	var recs []Record
	for i := 0; i < 10; i++ {
		recs = append(recs, rec(fmt.Sprintf("127.0.0.%d", i+1), 1, 0, 1000))
	}
	for i := 0; i < MaxPersisted; i++ {
		recs = append(recs, Record{
			Addr:     netip.AddrFrom4([4]byte{10, 1, byte(i >> 8), byte(i)}),
			Port:     1,
			LastSeen: int64(i),
		})
	}
	got, err := Decode(Encode(recs))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != MaxPersisted {
		t.Errorf("decoded %d, want %d", len(got), MaxPersisted)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	b := NewBook()
	b.Merge(rec("10.0.0.1", 8333, NodeNetwork|NodeBloom, 1700000000))
	b.Merge(rec("192.168.1.20", 18333, NodeGetUTXOs, 1700000100))
	b.Merge(rec("2001:db8::7", 8333, 1<<63, 1600000000))
	b.Merge(rec("fe80::1", 9000, 0, 0))

	want := make(map[netip.AddrPort]Record)
	for _, r := range b.Snapshot() {
		want[r.AddrPort()] = r
	}

	got, err := Decode(Encode(b.Snapshot()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d records, want %d", len(got), len(want))
	}
	for _, r := range got {
		w, ok := want[r.AddrPort()]
		if !ok {
			t.Errorf("unexpected record %+v", r)
			continue
		}
		if r != w {
			t.Errorf("record mismatch: got %+v, want %+v", r, w)
		}
	}
}

func TestDecode_Empty(t *testing.T) {
	got, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestDecode_Corrupt(t *testing.T) {
	valid := Encode([]Record{rec("10.0.0.1", 8333, 1, 1)})

	badLen := make([]byte, len(valid))
	copy(badLen, valid)
	binary.LittleEndian.PutUint16(badLen, 7)

	bigPort := make([]byte, len(valid))
	copy(bigPort, valid)
	binary.LittleEndian.PutUint32(bigPort[6:], 70000)

	overLen := make([]byte, len(valid))
	copy(overLen, valid)
	binary.LittleEndian.PutUint16(overLen, 16)

	tests := []struct {
		name string
		data []byte
	}{
		{"single byte", []byte{4}},
		{"length exceeds buffer", []byte{16, 0, 1, 2, 3}},
		{"truncated fixed fields", valid[:len(valid)-1]},
		{"trailing partial record", append(append([]byte{}, valid...), 4, 0, 1)},
		{"bad address length", badLen},
		{"port out of range", bigPort},
		{"declared ipv6 in ipv4 record", overLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.data)
			if !errors.Is(err, ErrCorruptState) {
				t.Fatalf("err = %v, want ErrCorruptState", err)
			}
			if got != nil {
				t.Errorf("expected no records on corrupt input, got %d", len(got))
			}
		})
	}
}
