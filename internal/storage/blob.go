package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	klog "github.com/Klingon-tech/klingnet-addrbook/internal/log"
)

// Blob persists a single opaque byte string.
type Blob interface {
	// Load returns ErrNotFound when nothing has been saved yet.
	Load() ([]byte, error)
	Save(data []byte) error
}

// FileBlob stores the blob in a plain file.
type FileBlob struct {
	path string
}

// NewFileBlob returns a Blob backed by the file at path.
func NewFileBlob(path string) *FileBlob {
	return &FileBlob{path: path}
}

// Path returns the backing file path.
func (f *FileBlob) Path() string {
	return f.path
}

// Load reads the whole file.
func (f *FileBlob) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}

// Save replaces the file contents. The data is written to a temporary file
// in the same directory and renamed over the target, so a crash mid-write
// leaves the previous file intact.
func (f *FileBlob) Save(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", f.path, err)
	}
	klog.Storage.Trace().Str("path", f.path).Int("bytes", len(data)).Msg("Blob written")
	return nil
}

// DBBlob stores the blob under a fixed key in a DB.
type DBBlob struct {
	db  DB
	key []byte
}

// NewDBBlob returns a Blob stored under key in db.
func NewDBBlob(db DB, key string) *DBBlob {
	return &DBBlob{db: db, key: []byte(key)}
}

// Load returns the stored value.
func (b *DBBlob) Load() ([]byte, error) {
	data, err := b.db.Get(b.key)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", b.key, err)
	}
	return data, nil
}

// Save overwrites the stored value.
func (b *DBBlob) Save(data []byte) error {
	if err := b.db.Put(b.key, data); err != nil {
		return fmt.Errorf("save %s: %w", b.key, err)
	}
	return nil
}
