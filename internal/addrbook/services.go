package addrbook

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Service flags carried in the capability bitmask.
const (
	// NodeNetwork denotes a peer holding a full copy of the block chain.
	NodeNetwork uint64 = 1 << 0
	// NodeGetUTXOs denotes a peer supporting the getutxos message.
	NodeGetUTXOs uint64 = 1 << 1
	// NodeBloom denotes a peer supporting Bloom filtered connections.
	NodeBloom uint64 = 1 << 2
)

var serviceNames = []struct {
	flag uint64
	name string
}{
	{NodeNetwork, "NETWORK"},
	{NodeGetUTXOs, "GETUTXOS"},
	{NodeBloom, "BLOOM"},
}

// FormatServices renders a mask as "NETWORK|BLOOM". Unnamed bits are shown
// in hex, a zero mask as "NONE".
func FormatServices(mask uint64) string {
	if mask == 0 {
		return "NONE"
	}
	var parts []string
	rest := mask
	for _, s := range serviceNames {
		if mask&s.flag != 0 {
			parts = append(parts, s.name)
			rest &^= s.flag
		}
	}
	for rest != 0 {
		bit := uint64(1) << bits.TrailingZeros64(rest)
		parts = append(parts, fmt.Sprintf("0x%x", bit))
		rest &^= bit
	}
	return strings.Join(parts, "|")
}

// ParseServices parses a mask written either as a number (decimal, 0x hex or
// 0b binary) or as flag names joined by '|' or ','.
func ParseServices(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return v, nil
	}

	var mask uint64
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		if tok == "" || tok == "NONE" {
			continue
		}
		found := false
		for _, sn := range serviceNames {
			if sn.name == tok {
				mask |= sn.flag
				found = true
				break
			}
		}
		if !found {
			v, err := strconv.ParseUint(tok, 0, 64)
			if err != nil {
				return 0, fmt.Errorf("unknown service flag %q", tok)
			}
			mask |= v
		}
	}
	return mask, nil
}
