package fulltext

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritesNotVisibleBeforeCommit(t *testing.T) {
	idx := New()
	idx.Add("m1", "the user prefers dark mode")
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Search("dark mode", 10))

	require.NoError(t, idx.Commit())
	assert.Equal(t, 1, idx.Len())
	results := idx.Search("dark mode", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestBM25RanksMoreRelevantHigher(t *testing.T) {
	idx := New()
	idx.Add("m1", "cats are great pets and cats are fun")
	idx.Add("m2", "dogs are great pets too")
	require.NoError(t, idx.Commit())

	results := idx.Search("cats", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestRemoveByExactID(t *testing.T) {
	idx := New()
	idx.Add("m1", "alpha beta")
	idx.Add("m1x", "alpha beta gamma")
	require.NoError(t, idx.Commit())
	require.Equal(t, 2, idx.Len())

	idx.Remove("m1")
	require.NoError(t, idx.Commit())
	assert.Equal(t, 1, idx.Len())

	results := idx.Search("alpha", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "m1x", results[0].ID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ftidx")
	idx := New()
	idx.Add("m1", "hello world")
	require.NoError(t, idx.Commit())
	require.NoError(t, idx.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	results := loaded.Search("hello", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}
