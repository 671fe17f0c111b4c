package addrbook

import "testing"

func TestFormatServices(t *testing.T) {
	tests := []struct {
		mask uint64
		want string
	}{
		{0, "NONE"},
		{NodeNetwork, "NETWORK"},
		{NodeNetwork | NodeBloom, "NETWORK|BLOOM"},
		{NodeBloom | 1<<10, "BLOOM|0x400"},
	}
	for _, tt := range tests {
		if got := FormatServices(tt.mask); got != tt.want {
			t.Errorf("FormatServices(%#x) = %q, want %q", tt.mask, got, tt.want)
		}
	}
}

func TestParseServices(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"", 0},
		{"4", NodeBloom},
		{"0x5", NodeNetwork | NodeBloom},
		{"0b011", NodeNetwork | NodeGetUTXOs},
		{"bloom", NodeBloom},
		{"NETWORK|BLOOM", NodeNetwork | NodeBloom},
		{"network, getutxos", NodeNetwork | NodeGetUTXOs},
		{"BLOOM|0x400", NodeBloom | 1<<10},
	}
	for _, tt := range tests {
		got, err := ParseServices(tt.in)
		if err != nil {
			t.Errorf("ParseServices(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseServices(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}

	if _, err := ParseServices("WITNESS"); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestParseServices_RoundTrip(t *testing.T) {
	for _, mask := range []uint64{NodeNetwork, NodeGetUTXOs | NodeBloom, NodeBloom | 1<<20} {
		got, err := ParseServices(FormatServices(mask))
		if err != nil {
			t.Fatalf("ParseServices(FormatServices(%#x)): %v", mask, err)
		}
		if got != mask {
			t.Errorf("round trip %#x -> %#x", mask, got)
		}
	}
}
