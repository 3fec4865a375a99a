package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultContentEntries   = 100
	DefaultExistenceEntries = 200
)

// FileSystemCache memoizes file reads and existence checks. Every write that
// goes through the cache invalidates the path first, so reads never return
// content older than the cache's own last write.
type FileSystemCache struct {
	content *lru.Cache[string, []byte]
	exists  *lru.Cache[string, bool]
}

// NewFileSystemCache creates a cache bounded to the given entry counts.
// Non-positive sizes fall back to the defaults.
func NewFileSystemCache(contentEntries, existenceEntries int) (*FileSystemCache, error) {
	if contentEntries <= 0 {
		contentEntries = DefaultContentEntries
	}
	if existenceEntries <= 0 {
		existenceEntries = DefaultExistenceEntries
	}
	content, err := lru.New[string, []byte](contentEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create content cache: %w", err)
	}
	exists, err := lru.New[string, bool](existenceEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create existence cache: %w", err)
	}
	return &FileSystemCache{content: content, exists: exists}, nil
}

// ReadFile returns the file content. The returned slice is shared with the
// cache and must not be modified.
func (c *FileSystemCache) ReadFile(path string) ([]byte, error) {
	key := key(path)
	if data, ok := c.content.Get(key); ok {
		return data, nil
	}
	data, err := os.ReadFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.exists.Add(key, false)
		}
		return nil, err
	}
	c.content.Add(key, data)
	c.exists.Add(key, true)
	return data, nil
}

// Exists reports whether path names an existing file or directory.
func (c *FileSystemCache) Exists(path string) bool {
	key := key(path)
	if ok, cached := c.exists.Get(key); cached {
		return ok
	}
	_, err := os.Stat(key)
	ok := err == nil
	c.exists.Add(key, ok)
	return ok
}

// IsFile reports whether path names an existing regular file. The answer is
// not cached.
func (c *FileSystemCache) IsFile(path string) bool {
	info, err := os.Stat(key(path))
	return err == nil && info.Mode().IsRegular()
}

// WriteFile persists data, creating parent directories as needed.
func (c *FileSystemCache) WriteFile(path string, data []byte) error {
	key := key(path)
	c.Invalidate(key)
	if err := os.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(key, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	c.exists.Add(key, true)
	return nil
}

// Invalidate drops every cached fact about path.
func (c *FileSystemCache) Invalidate(path string) {
	key := key(path)
	c.content.Remove(key)
	c.exists.Remove(key)
}

// Purge empties the cache.
func (c *FileSystemCache) Purge() {
	c.content.Purge()
	c.exists.Purge()
}

// Len returns the number of cached contents.
func (c *FileSystemCache) Len() int {
	return c.content.Len()
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
