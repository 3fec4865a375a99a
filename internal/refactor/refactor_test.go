package refactor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reshape/internal/cache"
	"reshape/internal/operation"
	"reshape/internal/source"
	"reshape/internal/symbol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEnv(t *testing.T, files map[string]string) (Env, string) {
	t.Helper()
	root := t.TempDir()
	var paths []string
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	fs, err := cache.NewFileSystemCache(0, 0)
	require.NoError(t, err)
	p := source.NewProject(root, fs, nil)
	require.NoError(t, p.LoadAll(paths))
	return Env{Project: p, Finder: symbol.NewFinder(p), FS: fs, Log: zap.NewNop()}, root
}

func text(t *testing.T, env Env, root, rel string) string {
	t.Helper()
	s, err := env.Project.Serialize(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return s
}

func run(env Env, op operation.Operation) *operation.Result {
	op.Normalize()
	return For(env, op.Type).Execute(context.Background(), op)
}

func TestRename(t *testing.T) {
	files := map[string]string{
		"a.ts": "export function greet() {}\nexport const table = { greet };\n",
		"b.ts": "import { greet } from './a';\nimport { greet as hi } from './a';\ngreet();\nhi();\n",
	}

	t.Run("Project scope", func(t *testing.T) {
		env, root := newEnv(t, files)
		res := run(env, operation.Rename(operation.Selector{Name: "greet", Kind: source.KindFunction, FilePath: "a.ts"}, "wave", operation.ScopeProject))
		require.True(t, res.Success, res.Error)

		a := text(t, env, root, "a.ts")
		assert.Contains(t, a, "export function wave() {}")
		assert.Contains(t, a, "{ greet: wave }", "shorthand keeps its key")

		b := text(t, env, root, "b.ts")
		assert.Contains(t, b, "import { wave } from './a';")
		assert.Contains(t, b, "import { wave as hi } from './a';")
		assert.Contains(t, b, "wave();\nhi();")
		assert.Len(t, res.AffectedFiles, 2)
	})

	t.Run("File scope", func(t *testing.T) {
		env, root := newEnv(t, files)
		res := run(env, operation.Rename(operation.Selector{Name: "greet", Kind: source.KindFunction, FilePath: "a.ts"}, "wave", operation.ScopeFile))
		require.True(t, res.Success, res.Error)
		assert.Equal(t, []string{filepath.Join(root, "a.ts")}, res.AffectedFiles)
		assert.Equal(t, files["b.ts"], text(t, env, root, "b.ts"))
	})

	t.Run("Rejected names", func(t *testing.T) {
		env, root := newEnv(t, files)
		sel := operation.Selector{Name: "greet", Kind: source.KindFunction, FilePath: "a.ts"}
		for name, kind := range map[string]operation.ErrorKind{
			"class":  operation.KindValidation,
			"9lives": operation.KindValidation,
			"greet":  operation.KindNamingConflict,
		} {
			res := run(env, operation.Rename(sel, name, operation.ScopeProject))
			assert.False(t, res.Success, name)
			assert.Equal(t, kind, res.ErrorKind, name)
		}
		assert.Empty(t, env.Project.Dirty())
		assert.Equal(t, files["a.ts"], text(t, env, root, "a.ts"))
	})

	t.Run("Name taken by another kind", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "export function greet() {}\nexport const hi = 2;\ntype Label = string;\n",
		})
		sel := operation.Selector{Name: "greet", Kind: source.KindFunction, FilePath: "a.ts"}

		res := run(env, operation.Rename(sel, "hi", operation.ScopeProject))
		assert.False(t, res.Success)
		assert.Equal(t, operation.KindNamingConflict, res.ErrorKind)
		assert.Empty(t, env.Project.Dirty())
		assert.Equal(t, "export function greet() {}\nexport const hi = 2;\ntype Label = string;\n", text(t, env, root, "a.ts"))

		res = run(env, operation.Rename(sel, "Label", operation.ScopeProject))
		require.True(t, res.Success, res.Error)
		assert.Contains(t, text(t, env, root, "a.ts"), "export function Label() {}")
	})
}

func TestMove(t *testing.T) {
	t.Run("Carries private types and retargets imports", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"src/shapes.ts": `import { round } from '../lib/math';

interface Size {
  w: number;
}

export function area(s: Size): number {
  return round(s.w * s.w);
}

export function other() {}
`,
			"lib/math.ts": "export function round(n: number) { return n; }\n",
			"app.ts":      "import { area, other } from './src/shapes';\narea({ w: 1 });\nother();\n",
		})

		res := run(env, operation.Move(operation.Selector{Name: "area", Kind: source.KindFunction, FilePath: "src/shapes.ts"}, "src/geo/area.ts"))
		require.True(t, res.Success, res.Error)
		assert.Contains(t, res.Dependencies, "round")

		target := text(t, env, root, "src/geo/area.ts")
		assert.Contains(t, target, "import { round } from '../../lib/math';")
		assert.Contains(t, target, "interface Size {")
		assert.Contains(t, target, "export function area(s: Size): number")

		src := text(t, env, root, "src/shapes.ts")
		assert.NotContains(t, src, "area")
		assert.NotContains(t, src, "interface Size")
		assert.NotContains(t, src, "round", "import only the moved code needed is dropped")
		assert.Contains(t, src, "export function other() {}")

		app := text(t, env, root, "app.ts")
		assert.Contains(t, app, "import { other } from './src/shapes';")
		assert.Contains(t, app, "import { area } from './src/geo/area';")
	})

	t.Run("Source keeps using the moved symbol", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "function helper() { return 1; }\n\nexport function main() {\n  return helper();\n}\n",
		})

		res := run(env, operation.Move(operation.Selector{Name: "helper", Kind: source.KindFunction, FilePath: "a.ts"}, "b.ts"))
		require.True(t, res.Success, res.Error)

		assert.Contains(t, text(t, env, root, "b.ts"), "export function helper()")
		a := text(t, env, root, "a.ts")
		assert.Contains(t, a, "import { helper } from './b';")
		assert.NotContains(t, a, "function helper")
	})

	t.Run("Source dependency is exported and imported", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "const base = 10;\n\nexport function scaled(n: number) {\n  return n * base;\n}\n\nexport const twice = base * 2;\n",
		})

		res := run(env, operation.Move(operation.Selector{Name: "scaled", Kind: source.KindFunction, FilePath: "a.ts"}, "b.ts"))
		require.True(t, res.Success, res.Error)
		assert.NotEmpty(t, res.Warnings)
		assert.Contains(t, text(t, env, root, "a.ts"), "export const base = 10;")
		assert.Contains(t, text(t, env, root, "b.ts"), "import { base } from './a';")
	})

	t.Run("Default export", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "export default function greet() {}\nexport const other = 1;\n",
			"b.ts": "import greet, { other } from './a';\ngreet(other);\n",
			"c.ts": "import greet from './a';\ngreet();\n",
		})

		res := run(env, operation.Move(operation.Selector{Name: "greet", Kind: source.KindFunction, FilePath: "a.ts"}, "d.ts"))
		require.True(t, res.Success, res.Error)

		assert.Contains(t, text(t, env, root, "d.ts"), "export default function greet() {}")
		assert.Equal(t, "export const other = 1;\n", text(t, env, root, "a.ts"))

		b := text(t, env, root, "b.ts")
		assert.Contains(t, b, "import { other } from './a';")
		assert.Contains(t, b, "import greet from './d';")
		assert.Equal(t, "import greet from './d';\ngreet();\n", text(t, env, root, "c.ts"))
	})

	t.Run("Default export still used by the source", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "export default function greet() {\n  return 1;\n}\n\nexport const x = greet();\n",
		})

		res := run(env, operation.Move(operation.Selector{Name: "greet", Kind: source.KindFunction, FilePath: "a.ts"}, "b.ts"))
		require.True(t, res.Success, res.Error)
		assert.Contains(t, text(t, env, root, "a.ts"), "import greet from './b';")
		assert.Contains(t, text(t, env, root, "b.ts"), "export default function greet()")
	})

	t.Run("New target stays in memory", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "export function f() {}\nexport function g() {}\n",
		})
		target := filepath.Join(root, "lib", "f.ts")

		res := run(env, operation.Move(operation.Selector{Name: "f", Kind: source.KindFunction, FilePath: "a.ts"}, "lib/f.ts"))
		require.True(t, res.Success, res.Error)
		assert.Contains(t, res.AffectedFiles, target)
		assert.Contains(t, env.Project.Dirty(), target)
		assert.NoFileExists(t, target)

		env.Project.Discard()
		assert.NoFileExists(t, target)
		assert.NoDirExists(t, filepath.Join(root, "lib"))
		for _, f := range env.Project.Files() {
			assert.NotEqual(t, target, f.Path)
		}
	})

	t.Run("Rejections", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "export class Box {\n  open() {}\n}\nexport function f() {}\n",
			"b.ts": "export function f() {}\n",
		})
		parent := &source.Parent{Name: "Box", Kind: source.KindClass}

		res := run(env, operation.Move(operation.Selector{Name: "open", Kind: source.KindMethod, FilePath: "a.ts", Parent: parent}, "c.ts"))
		assert.Equal(t, operation.KindUnsupportedSymbolKind, res.ErrorKind)

		res = run(env, operation.Move(operation.Selector{Name: "f", Kind: source.KindFunction, FilePath: "a.ts"}, "a.ts"))
		assert.Equal(t, operation.KindValidation, res.ErrorKind)

		res = run(env, operation.Move(operation.Selector{Name: "f", Kind: source.KindFunction, FilePath: "a.ts"}, "b.ts"))
		assert.Equal(t, operation.KindNamingConflict, res.ErrorKind)

		assert.Empty(t, env.Project.Dirty())
		assert.Contains(t, text(t, env, root, "a.ts"), "export function f() {}")
	})
}

func TestRemove(t *testing.T) {
	t.Run("External references block removal", func(t *testing.T) {
		env, _ := newEnv(t, map[string]string{
			"a.ts": "export function gone() {}\n",
			"b.ts": "import { gone } from './a';\ngone();\n",
		})
		res := run(env, operation.Remove(operation.Selector{Name: "gone", Kind: source.KindFunction, FilePath: "a.ts"}, operation.RemoveOptions{}))
		assert.Equal(t, operation.KindExternalReferences, res.ErrorKind)
		assert.Equal(t, "1 external reference(s) exist", res.Error)
		assert.Empty(t, res.AffectedFiles)
		assert.Empty(t, env.Project.Dirty())
	})

	t.Run("Force removes despite references", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "export function gone() {}\nexport function stay() {}\n",
			"b.ts": "import { gone } from './a';\ngone();\n",
		})
		res := run(env, operation.Remove(operation.Selector{Name: "gone", Kind: source.KindFunction, FilePath: "a.ts"}, operation.RemoveOptions{ForceRemove: true}))
		require.True(t, res.Success, res.Error)
		assert.Equal(t, operation.RemovalStandard, res.RemovalMethod)
		assert.Equal(t, "export function stay() {}\n", text(t, env, root, "a.ts"))
	})

	t.Run("Export clause entry goes with the declaration", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "function one() {}\nfunction two() {}\n\nexport { one, two };\n",
		})
		res := run(env, operation.Remove(operation.Selector{Name: "one", Kind: source.KindFunction, FilePath: "a.ts"}, operation.RemoveOptions{}))
		require.True(t, res.Success, res.Error)

		a := text(t, env, root, "a.ts")
		assert.NotContains(t, a, "one")
		assert.Contains(t, a, "export { two };")
	})

	t.Run("Member", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "export class Box {\n  open() {}\n  close() {}\n}\n",
		})
		parent := &source.Parent{Name: "Box", Kind: source.KindClass}
		res := run(env, operation.Remove(operation.Selector{Name: "open", Kind: source.KindMethod, FilePath: "a.ts", Parent: parent}, operation.RemoveOptions{}))
		require.True(t, res.Success, res.Error)

		a := text(t, env, root, "a.ts")
		assert.NotContains(t, a, "open")
		assert.Contains(t, a, "close() {}")
	})

	t.Run("Falls back to a line scan", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{
			"a.ts": "export function gone() {\n  return 1;\n}\n\nexport function stay() {}\n",
		})
		op := operation.Remove(operation.Selector{Name: "gone", Kind: source.KindFunction, FilePath: "a.ts"}, operation.RemoveOptions{FallbackToAggressive: true})
		op.Normalize()
		r := &Remover{env: env, structural: func(*source.Declaration) error { return errors.New("tree walk failed") }}

		res := r.Execute(context.Background(), op)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, operation.RemovalAggressive, res.RemovalMethod)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "tree walk failed")
		assert.Equal(t, []string{filepath.Join(root, "a.ts")}, res.AffectedFiles)

		a := text(t, env, root, "a.ts")
		assert.NotContains(t, a, "gone")
		assert.Contains(t, a, "export function stay() {}")
	})

	t.Run("Structural failure without fallback", func(t *testing.T) {
		env, root := newEnv(t, map[string]string{"a.ts": "export function gone() {}\n"})
		op := operation.Remove(operation.Selector{Name: "gone", Kind: source.KindFunction, FilePath: "a.ts"}, operation.RemoveOptions{})
		op.Normalize()
		r := &Remover{env: env, structural: func(*source.Declaration) error { return errors.New("tree walk failed") }}

		res := r.Execute(context.Background(), op)
		assert.False(t, res.Success)
		assert.Equal(t, operation.KindInternal, res.ErrorKind)
		assert.Equal(t, operation.RemovalFailed, res.RemovalMethod)
		assert.Equal(t, "export function gone() {}\n", text(t, env, root, "a.ts"))
	})

	t.Run("Not found", func(t *testing.T) {
		env, _ := newEnv(t, map[string]string{"a.ts": "export const x = 1;\n"})
		res := run(env, operation.Remove(operation.Selector{Name: "y", Kind: source.KindVariable, FilePath: "a.ts"}, operation.RemoveOptions{}))
		assert.Equal(t, operation.KindSymbolNotFound, res.ErrorKind)
	})
}
