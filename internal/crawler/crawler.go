package crawler

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"reshape/internal/source"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Crawler scans a directory for source files the project can load.
type Crawler struct {
	include []string
	exclude []string
	ignored []string
	log     *zap.Logger
}

// NewCrawler creates a crawler. Patterns are doublestar globs matched
// against slash-separated paths relative to the scanned root.
func NewCrawler(include, exclude []string, log *zap.Logger) (*Crawler, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Crawler{
		include: include,
		exclude: exclude,
		ignored: []string{".git", "vendor", "node_modules", "testdata"},
		log:     log,
	}, nil
}

// Scan walks root and returns the absolute paths of matching source files,
// sorted.
func (c *Crawler) Scan(ctx context.Context, root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		// Skip ignored directories
		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			if c.excluded(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !source.Supported(path) || c.excluded(rel) || !c.included(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	c.log.Debug("scanned project", zap.String("root", root), zap.Int("files", len(files)))
	return files, nil
}

func (c *Crawler) included(rel string) bool {
	return matchAny(c.include, rel)
}

func (c *Crawler) excluded(rel string) bool {
	return matchAny(c.exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
