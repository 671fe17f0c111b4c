package discovery

import (
	"errors"

	"github.com/Klingon-tech/klingnet-addrbook/internal/addrbook"
)

var (
	// ErrPersistenceIO wraps a read or write failure of the peers backend.
	ErrPersistenceIO = errors.New("peer address persistence failed")

	// ErrCorruptState is returned by LoadPeers when the stored data cannot
	// be decoded.
	ErrCorruptState = addrbook.ErrCorruptState

	// ErrDiscoveryUnavailable wraps a seed resolution failure or timeout.
	// It is transient; a later GetPeers call may succeed.
	ErrDiscoveryUnavailable = errors.New("peer discovery unavailable")
)
