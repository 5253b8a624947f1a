package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const entrySuffix = ".entry"

// FileStore is a persistent cache backend keeping one file per key under a
// root directory. Writes are atomic via temp file + rename.
type FileStore struct {
	rootPath string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(rootPath string) (*FileStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", rootPath, err)
	}
	return &FileStore{rootPath: rootPath}, nil
}

// Keys may contain separators, so they are escaped into a flat file name.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.rootPath, url.QueryEscape(key)+entrySuffix)
}

// Get implements cache.Backend.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read entry %s: %w", key, err)
	}
	return data, true, nil
}

// Put implements cache.Backend.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	fullPath := s.path(key)

	tempFile, err := os.CreateTemp(s.rootPath, "temp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := tempFile.Write(value); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempFile.Name(), fullPath); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to rename temp file to %s: %w", fullPath, err)
	}
	return nil
}

// Delete implements cache.Backend.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete entry %s: %w", key, err)
	}
	return nil
}

// List returns the keys starting with prefix.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	keys := []string{}
	for _, e := range entries {
		key, ok := s.keyOf(e)
		if ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Prune implements cache.Pruner using file modification times.
func (s *FileStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		return 0, fmt.Errorf("failed to list entries: %w", err)
	}
	var n int64
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, ok := s.keyOf(e); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(olderThan) {
			if err := os.Remove(filepath.Join(s.rootPath, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return n, fmt.Errorf("failed to prune %s: %w", e.Name(), err)
			}
			n++
		}
	}
	return n, nil
}

func (s *FileStore) keyOf(e fs.DirEntry) (string, bool) {
	if e.IsDir() || !strings.HasSuffix(e.Name(), entrySuffix) {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(e.Name(), entrySuffix))
	if err != nil {
		return "", false
	}
	return key, true
}
