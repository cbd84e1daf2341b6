// Package blob stores uploaded document payloads on the filesystem. It knows
// nothing about metadata; the services layer keeps the two in step.
package blob

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// tempPrefix marks in-flight writes so the sweep can tell them apart from
// committed files.
const tempPrefix = ".upload-"

// Handle identifies a stored payload.
type Handle struct {
	Key  string
	Size int64
}

// Store is a filesystem area holding one file per document. Keys are random,
// so writes to distinct documents never contend and a key is never reused.
type Store struct {
	root string
}

// New opens (creating if needed) the store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Put writes data under a fresh key and returns its handle. The payload goes
// to a temporary file first and is renamed into place only after the write
// and sync succeeded, so a crash never leaves a half-written file visible
// under its final name. An existing file is never overwritten.
func (s *Store) Put(data []byte) (Handle, error) {
	key := uuid.NewString()
	final := s.pathFor(key)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Handle{}, fmt.Errorf("create shard directory: %w", err)
	}
	if _, err := os.Lstat(final); err == nil {
		return Handle{}, fmt.Errorf("storage key collision: %s", key)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return Handle{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return Handle{}, fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return Handle{}, fmt.Errorf("sync payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return Handle{}, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		cleanup()
		return Handle{}, fmt.Errorf("commit payload: %w", err)
	}
	return Handle{Key: key, Size: int64(len(data))}, nil
}

// Get reads the payload stored under key. A missing file surfaces as
// fs.ErrNotExist so callers can distinguish it from I/O failures.
func (s *Store) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Remove deletes the file stored under key. Removing a missing file is not
// an error.
func (s *Store) Remove(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a file is present under key.
func (s *Store) Exists(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if _, err := os.Stat(s.pathFor(key)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

// Sweep removes files the metadata no longer knows about: committed files
// whose key fails the known check, and stale temp files from interrupted
// writes. Files younger than grace are kept, so an upload racing its
// metadata commit is never reaped. Returns the number of files removed.
func (s *Store) Sweep(known func(key string) bool, grace time.Duration) (int, error) {
	cutoff := time.Now().Add(-grace)
	removed := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, tempPrefix) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
			return nil
		}
		if validateKey(name) != nil {
			// Not ours; leave foreign files alone.
			return nil
		}
		if !known(name) {
			if rmErr := os.Remove(path); rmErr != nil {
				return rmErr
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (s *Store) pathFor(key string) string {
	return filepath.Join(s.root, key[:2], key)
}

func validateKey(key string) error {
	if _, err := uuid.Parse(key); err != nil {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}
