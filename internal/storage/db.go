// Package storage provides the persistence backends for the address book.
package storage

import "errors"

// ErrNotFound is returned when a key or blob does not exist.
var ErrNotFound = errors.New("not found")

// DB is the interface for key-value storage.
type DB interface {
	// Get returns ErrNotFound when the key does not exist.
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Close() error
}
