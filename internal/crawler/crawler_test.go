package crawler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("export {};\n"), 0o644))
	}
	return root
}

func TestCrawler_Scan(t *testing.T) {
	root := writeTree(t,
		"src/a.ts",
		"src/b.tsx",
		"src/util/c.js",
		"src/types.d.ts",
		"src/gen/d.ts",
		"node_modules/pkg/index.js",
		"README.md",
	)

	c, err := NewCrawler([]string{"**/*.{ts,tsx,js}"}, []string{"**/*.d.ts", "src/gen/**"}, nil)
	require.NoError(t, err)

	files, err := c.Scan(context.Background(), root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"src/a.ts", "src/b.tsx", "src/util/c.js"}, rel)
}

func TestCrawler_IncludeNarrowsScan(t *testing.T) {
	root := writeTree(t, "src/a.ts", "scripts/b.ts")

	c, err := NewCrawler([]string{"src/**"}, nil, nil)
	require.NoError(t, err)

	files, err := c.Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "src", "a.ts"), files[0])
}

func TestCrawler_InvalidPattern(t *testing.T) {
	_, err := NewCrawler([]string{"src/[a"}, nil, nil)
	assert.Error(t, err)
}

func TestCrawler_Cancelled(t *testing.T) {
	root := writeTree(t, "a.ts")
	c, err := NewCrawler([]string{"**"}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
