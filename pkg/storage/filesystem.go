package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const dirPerm = 0o755

// ErrOutsideBase is returned when a key escapes the storage root.
var ErrOutsideBase = errors.New("storage: key escapes base directory")

// LocalStorage keeps objects on the local filesystem under a single root.
// It stands in for the external object store referenced by file records, so
// keys are slash-separated object keys ("reports/scores.csv").
type LocalStorage struct {
	root string
}

// NewLocalStorage resolves the root to an absolute path and creates it.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = "./uploads"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

// Save writes data under key, creating intermediate directories.
func (s *LocalStorage) Save(key string, data []byte) (string, error) {
	target, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return "", fmt.Errorf("storage: mkdir for %s: %w", key, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", key, err)
	}
	return key, nil
}

// Open returns a read handle for the stored object.
func (s *LocalStorage) Open(key string) (*os.File, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", key, err)
	}
	return f, nil
}

// Delete removes an object. A missing object is not an error, so retried
// cleanup jobs stay idempotent.
func (s *LocalStorage) Delete(key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// CleanupOlderThan removes every object whose modification time is older
// than maxAge and returns the removed keys.
func (s *LocalStorage) CleanupOlderThan(maxAge time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-maxAge)
	var removed []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if rel, err := filepath.Rel(s.root, path); err == nil {
			removed = append(removed, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("storage: cleanup: %w", err)
	}
	return removed, nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	target := filepath.Join(s.root, filepath.FromSlash(key))
	if target != s.root && !strings.HasPrefix(target, s.root+string(filepath.Separator)) {
		return "", ErrOutsideBase
	}
	return target, nil
}
