package imports

import (
	"os"
	"path/filepath"
	"testing"

	"reshape/internal/cache"
	"reshape/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, files map[string]string) (*Manager, *source.Project, string) {
	t.Helper()
	root := t.TempDir()
	var paths []string
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	fs, err := cache.NewFileSystemCache(0, 0)
	require.NoError(t, err)
	p := source.NewProject(root, fs, nil)
	require.NoError(t, p.LoadAll(paths))
	return NewManager(p, nil), p, root
}

func TestManager_UpdateImportsAfterMove(t *testing.T) {
	m, p, root := newManager(t, map[string]string{
		"src/old.ts":   "export function thing() {}\nexport function keep() {}\n",
		"src/new.ts":   "import { thing } from './old';\n\nthing();\n",
		"src/sole.ts":  "import { thing } from './old';\nthing();\n",
		"src/mixed.ts": "import { keep, thing as t } from './old';\nkeep();\nt();\n",
		"lib/deep.ts":  "import * as old from '../src/old';\nold.thing();\n",
	})
	oldPath := filepath.Join(root, "src", "old.ts")
	newPath := filepath.Join(root, "src", "new.ts")

	warnings, err := m.UpdateImportsAfterMove("thing", oldPath, newPath, false)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "lib/deep.ts")

	sole, err := p.Serialize(filepath.Join(root, "src", "sole.ts"))
	require.NoError(t, err)
	assert.Equal(t, "import { thing } from './new';\nthing();\n", sole)

	mixed, err := p.Serialize(filepath.Join(root, "src", "mixed.ts"))
	require.NoError(t, err)
	assert.Contains(t, mixed, "import { keep } from './old';")
	assert.Contains(t, mixed, "import { thing as t } from './new';")

	target, err := p.Serialize(newPath)
	require.NoError(t, err)
	assert.NotContains(t, target, "import")

	assert.Len(t, m.UpdatedFiles(), 3)
}

func TestManager_UpdateImportsAfterMoveDefault(t *testing.T) {
	m, p, root := newManager(t, map[string]string{
		"a.ts":         "export default function greet() {}\nexport const other = 1;\n",
		"sole.ts":      "import greet from './a';\ngreet();\n",
		"mixed.ts":     "import hello, { other } from './a';\nhello(other);\n",
		"named.ts":     "import { default as hey, other } from './a';\nhey(other);\n",
		"unrelated.ts": "import { other } from './a';\nother;\n",
	})
	oldPath := filepath.Join(root, "a.ts")
	newPath := filepath.Join(root, "c.ts")
	read := func(rel string) string {
		text, err := p.Serialize(filepath.Join(root, rel))
		require.NoError(t, err)
		return text
	}

	warnings, err := m.UpdateImportsAfterMove("greet", oldPath, newPath, true)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "import greet from './c';\ngreet();\n", read("sole.ts"))

	mixed := read("mixed.ts")
	assert.Contains(t, mixed, "import { other } from './a';")
	assert.Contains(t, mixed, "import hello from './c';")

	named := read("named.ts")
	assert.Contains(t, named, "import { other } from './a';")
	assert.Contains(t, named, "import { default as hey } from './c';")

	assert.Equal(t, "import { other } from './a';\nother;\n", read("unrelated.ts"))
	assert.Len(t, m.UpdatedFiles(), 3)
}

func TestManager_RemoveUnused(t *testing.T) {
	m, p, root := newManager(t, map[string]string{
		"a.ts": "import { used, unused } from './b';\nimport Def from './c';\nused();\n",
	})
	a := filepath.Join(root, "a.ts")

	removed, err := m.RemoveUnused(a, []string{"used", "unused", "Def", "notImported"})
	require.NoError(t, err)
	assert.Equal(t, []string{"unused", "Def"}, removed)

	text, err := p.Serialize(a)
	require.NoError(t, err)
	assert.Equal(t, "import { used } from './b';\nused();\n", text)
	assert.Equal(t, []string{a}, m.UpdatedFiles())
}

func TestManager_Import(t *testing.T) {
	m, p, root := newManager(t, map[string]string{
		"src/a.ts":      "const x = 1;\n",
		"src/util/b.ts": "export const y = 2;\n",
	})
	a := filepath.Join(root, "src", "a.ts")

	require.NoError(t, m.Import(a, "y", filepath.Join(root, "src", "util", "b.ts"), ""))
	text, err := p.Serialize(a)
	require.NoError(t, err)
	assert.Equal(t, "import { y } from './util/b';\n\nconst x = 1;\n", text)

	require.NoError(t, m.ImportDefault(a, "z", filepath.Join(root, "src", "util", "b.ts"), ""))
	text, err = p.Serialize(a)
	require.NoError(t, err)
	assert.Contains(t, text, "import z from './util/b';")
}
