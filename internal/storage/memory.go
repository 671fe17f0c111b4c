package storage

import (
	"bytes"
	"sync"
)

// MemoryDB implements DB using an in-memory map.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		data: make(map[string][]byte),
	}
}

// Get retrieves a copy of the value stored under key.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

// Put stores a key-value pair.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	m.data[string(key)] = v
	return nil
}

// Close is a no-op.
func (m *MemoryDB) Close() error {
	return nil
}
