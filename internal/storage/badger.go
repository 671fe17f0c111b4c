package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB implements DB using Badger.
type BadgerDB struct {
	db *badger.DB
}

// NewBadger opens (or creates) a Badger database at the given path.
func NewBadger(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logger is too chatty for a small book.

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &BadgerDB{db: db}, nil
}

// Get retrieves a value by key.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// Put stores a key-value pair.
func (b *BadgerDB) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}
