// Package fetcher retrieves raw documents through a permanent on-disk cache,
// a per-origin throttle, and a colly collector.
package fetcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/archive-ingest/internal/hash/sha256"
)

// Cache stores fetched documents under the SHA-256 of their absolute URL.
// Entries never expire; operators delete the directory to force a re-fetch.
type Cache struct {
	dir string
}

// NewCache prepares dir for use, creating it when needed.
func NewCache(dir string) (*Cache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create cache directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat cache directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("cache path %s is not a directory", dir)
	}
	return &Cache{dir: dir}, nil
}

// Path returns where the document for rawURL is stored.
func (c *Cache) Path(rawURL string) string {
	return filepath.Join(c.dir, sha256.SumString(rawURL)+".html")
}

// Get returns the cached document, reporting whether it was present.
func (c *Cache) Get(rawURL string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.Path(rawURL))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

// Put writes the document atomically. Concurrent writers for the same URL
// race harmlessly; the last rename wins.
func (c *Cache) Put(rawURL string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, c.Path(rawURL)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}
