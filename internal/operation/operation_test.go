package operation

import (
	"errors"
	"fmt"
	"testing"

	"reshape/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("Rename defaults to project scope", func(t *testing.T) {
		op, err := Decode([]byte(`{"type":"rename","selector":{"name":"greet","kind":"function","filePath":"src/a.ts"},"newName":"sayHello"}`))
		require.NoError(t, err)
		assert.Equal(t, TypeRename, op.Type)
		assert.Equal(t, ScopeProject, op.Scope)
		assert.Equal(t, source.KindFunction, op.Selector.Kind)
	})

	t.Run("Remove gets zero options", func(t *testing.T) {
		op, err := Decode([]byte(`{"type":"remove","selector":{"name":"x","kind":"variable","filePath":"a.ts"}}`))
		require.NoError(t, err)
		require.NotNil(t, op.Options)
		assert.False(t, op.Options.ForceRemove)
	})

	t.Run("Member selector", func(t *testing.T) {
		op, err := Decode([]byte(`{"type":"remove","selector":{"name":"open","kind":"method","filePath":"a.ts","parent":{"name":"Box","kind":"class"}}}`))
		require.NoError(t, err)
		assert.Equal(t, &source.Parent{Name: "Box", Kind: source.KindClass}, op.Selector.Parent)
	})

	invalid := map[string]string{
		"malformed":        `{"type":`,
		"unknown type":     `{"type":"copy","selector":{"name":"a","kind":"function","filePath":"a.ts"}}`,
		"rename no name":   `{"type":"rename","selector":{"name":"a","kind":"function","filePath":"a.ts"}}`,
		"move no target":   `{"type":"move","selector":{"name":"a","kind":"function","filePath":"a.ts"}}`,
		"bad kind":         `{"type":"remove","selector":{"name":"a","kind":"module","filePath":"a.ts"}}`,
		"empty name":       `{"type":"remove","selector":{"name":"","kind":"function","filePath":"a.ts"}}`,
		"unknown field":    `{"type":"remove","selector":{"name":"a","kind":"function","filePath":"a.ts"},"force":true}`,
		"missing selector": `{"type":"remove"}`,
	}
	for name, doc := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestDecodeBatch(t *testing.T) {
	b, err := DecodeBatch([]byte(`{"operations":[
		{"type":"remove","selector":{"name":"a","kind":"function","filePath":"a.ts"}},
		{"type":"move","selector":{"name":"b","kind":"class","filePath":"a.ts"},"targetFilePath":"b.ts"}
	]}`))
	require.NoError(t, err)
	require.Len(t, b.Operations, 2)
	assert.True(t, b.Options.StopsOnError())
	assert.NotNil(t, b.Operations[0].Options)

	b, err = DecodeBatch([]byte(`{"operations":[],"options":{"stopOnError":false}}`))
	require.NoError(t, err)
	assert.False(t, b.Options.StopsOnError())

	_, err = DecodeBatch([]byte(`{"operations":[{"type":"rename"}]}`))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestValidate(t *testing.T) {
	sel := Selector{Name: "greet", Kind: source.KindFunction, FilePath: "a.ts"}
	assert.NoError(t, Validate(Rename(sel, "sayHello", ScopeFile)))
	assert.NoError(t, Validate(Move(sel, "b.ts")))
	assert.NoError(t, Validate(Remove(sel, RemoveOptions{ForceRemove: true})))
	assert.Error(t, Validate(Rename(sel, "", ScopeFile)))
	assert.Error(t, Validate(Operation{Type: "swap", Selector: sel}))
}

func TestErrors(t *testing.T) {
	err := Errorf(KindNamingConflict, "%s already exists", "x")
	assert.Equal(t, "x already exists", err.Error())
	assert.True(t, IsKind(err, KindNamingConflict))

	wrapped := fmt.Errorf("rename: %w", err)
	assert.Equal(t, KindNamingConflict, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	base := errors.New("disk full")
	err = Wrap(KindInternal, base, "persist failed")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "persist failed: disk full", err.Error())
	assert.Nil(t, Wrap(KindInternal, nil, "x"))
}

func TestResult(t *testing.T) {
	r := NewResult(Move(Selector{Name: "a"}, "b.ts"))
	r.AddAffected("a.ts", "b.ts", "a.ts")
	assert.Equal(t, []string{"a.ts", "b.ts"}, r.AffectedFiles)

	r.Warn("%d refs", 2)
	assert.Equal(t, []string{"2 refs"}, r.Warnings)

	r.Success = true
	r.Fail(Errorf(KindSymbolNotFound, "gone"))
	assert.False(t, r.Success)
	assert.Equal(t, KindSymbolNotFound, r.ErrorKind)
	assert.Equal(t, "gone", r.Error)
}
