package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"reshape/internal/operation"
	"reshape/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult(name string, ok bool) *operation.Result {
	res := operation.NewResult(operation.Remove(
		operation.Selector{Name: name, Kind: source.KindFunction, FilePath: "src/a.ts"},
		operation.RemoveOptions{},
	))
	res.AddAffected("/p/src/a.ts")
	if ok {
		res.Success = true
		res.Verified = true
		res.RemovalMethod = operation.RemovalStandard
	} else {
		res.Fail(operation.Errorf(operation.KindExternalReferences, "1 external reference(s) exist"))
	}
	return res
}

func TestSQLiteStore_RecordAndRecent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	tick := time.Unix(1700000000, 0)
	store.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	ctx := context.Background()
	id1, err := store.Record(ctx, "", testResult("first", true))
	require.NoError(t, err)
	id2, err := store.Record(ctx, "", testResult("second", false))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	newest := entries[0]
	assert.Equal(t, id2, newest.ID)
	assert.Equal(t, "second", newest.SelectorName)
	assert.False(t, newest.Success)
	assert.Equal(t, operation.KindExternalReferences, newest.ErrorKind)
	assert.Equal(t, []string{"/p/src/a.ts"}, newest.AffectedFiles)

	oldest := entries[1]
	assert.True(t, oldest.Result.Verified)
	assert.Equal(t, operation.RemovalStandard, oldest.Result.RemovalMethod)
	assert.Equal(t, operation.TypeRemove, oldest.Type)

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_Batch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		_, err := store.Record(ctx, "batch-1", testResult(name, true))
		require.NoError(t, err)
	}
	_, err = store.Record(ctx, "batch-2", testResult("c", true))
	require.NoError(t, err)

	entries, err := store.Batch(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].SelectorName)
	assert.Equal(t, "b", entries[1].SelectorName)

	// Reopening keeps the data.
	require.NoError(t, store.Close())
	store, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	entries, err = store.Batch(ctx, "batch-2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].SelectorName)
}
