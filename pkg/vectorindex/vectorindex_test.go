package vectorindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndSearchRanksByCosine(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add("same", []float32{1, 0}))
	require.NoError(t, idx.Add("orth", []float32{0, 1}))
	require.NoError(t, idx.Add("opp", []float32{-1, 0}))

	results, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "same", results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
	assert.Equal(t, "opp", results[2].ID)
	assert.InDelta(t, 2, results[2].Distance, 1e-9)
}

func TestDimensionMismatchIsValidationError(t *testing.T) {
	idx := New(3)
	err := idx.Add("x", []float32{1, 2})
	require.Error(t, err)

	_, err = idx.Search([]float32{1, 2}, 1)
	require.Error(t, err)
}

func TestReplaceRemovesOldVectorFirst(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add("a", []float32{1, 0}))
	require.NoError(t, idx.Add("a", []float32{0, 1}))
	assert.Equal(t, 1, idx.Len())

	results, err := idx.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
}

func TestFilteredSearchOversamples(t *testing.T) {
	idx := New(1)
	// 10 one-dimensional positive vectors, all at cosine distance 0
	// from the query, so their ranking order is arbitrary; only id "9"
	// passes the predicate, so a top-3 scan (k=1, oversample 3) can miss
	// it and the search must keep doubling until it finds it.
	for i := 0; i < 10; i++ {
		v := float32(10 - i) // magnitude only; direction matches the query
		require.NoError(t, idx.Add(idString(i), []float32{v}))
	}
	passes := func(id string) bool { return id == "9" } // the last vector added
	results, err := idx.FilteredSearch([]float32{10}, 1, passes)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "9", results[0].ID)
}

func idString(i int) string {
	return string(rune('0' + i))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	idx := New(2)
	require.NoError(t, idx.Add("a", []float32{1, 0}))
	require.NoError(t, idx.Add("b", []float32{0, 1}))
	require.NoError(t, idx.Save(path))

	_, err := os.Stat(path + ".mappings.json")
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())

	results, err := loaded.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestRemove(t *testing.T) {
	idx := New(1)
	require.NoError(t, idx.Add("a", []float32{1}))
	idx.Remove("a")
	assert.Equal(t, 0, idx.Len())
	idx.Remove("missing") // no-op, must not panic
}
