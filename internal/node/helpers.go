package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-addrbook/internal/addrbook"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// staticAdvertisements turns configured multiaddrs into advertisements
// carrying services and seen at now.
func staticAdvertisements(addrs []string, services uint64, now time.Time) ([]addrbook.Advertisement, error) {
	ads := make([]addrbook.Advertisement, 0, len(addrs))
	for _, s := range addrs {
		ap, err := addrbook.ParseMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("static peer: %w", err)
		}
		ads = append(ads, addrbook.Advertisement{
			Addr:      ap.Addr(),
			Port:      ap.Port(),
			Services:  services,
			Timestamp: now,
		})
	}
	return ads, nil
}
