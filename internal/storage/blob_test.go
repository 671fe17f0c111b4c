package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testBlob runs the shared test suite against a Blob implementation.
func testBlob(t *testing.T, b Blob) {
	t.Helper()

	if _, err := b.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() before Save err = %v, want ErrNotFound", err)
	}

	first := []byte{1, 2, 3}
	if err := b.Save(first); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := b.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("Load() = %v, want %v", got, first)
	}

	if err := b.Save([]byte{9}); err != nil {
		t.Fatalf("Save() overwrite error: %v", err)
	}
	got, _ = b.Load()
	if !bytes.Equal(got, []byte{9}) {
		t.Errorf("Load() after overwrite = %v, want [9]", got)
	}

	if err := b.Save(nil); err != nil {
		t.Fatalf("Save(nil) error: %v", err)
	}
	got, err = b.Load()
	if err != nil {
		t.Fatalf("Load() empty error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() empty = %v", got)
	}
}

func TestFileBlob(t *testing.T) {
	testBlob(t, NewFileBlob(filepath.Join(t.TempDir(), "sub", "PeerAddresses.dat")))
}

func TestFileBlob_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBlob(filepath.Join(dir, "PeerAddresses.dat"))
	for i := 0; i < 3; i++ {
		if err := b.Save([]byte{byte(i)}); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestFileBlob_ReadError(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of the file makes ReadFile fail with something
	// other than ErrNotExist.
	b := NewFileBlob(dir)
	_, err := b.Load()
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Load() on a directory err = %v, want a read error", err)
	}
}

func TestDBBlob_Memory(t *testing.T) {
	testBlob(t, NewDBBlob(NewMemory(), "addrbook/peers"))
}

func TestDBBlob_Badger(t *testing.T) {
	db, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()
	testBlob(t, NewDBBlob(db, "addrbook/peers"))
}
