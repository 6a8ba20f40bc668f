package coldstorage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

func TestInMemoryArchiveRestoreRoundTrip(t *testing.T) {
	s := NewInMemory("cold")
	ctx := context.Background()
	rec := &model.MemoryRecord{ID: "m1", AgentID: "a1", Content: "hi"}
	require.NoError(t, s.Archive(ctx, rec))

	ok, err := s.IsArchived(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Restore(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)

	require.NoError(t, s.DeleteArchived(ctx, "m1"))
	_, err = s.Restore(ctx, "m1")
	assert.ErrorIs(t, err, mnemoerr.ErrNotFound)
}

func TestInMemoryListArchivedFiltersByAgent(t *testing.T) {
	s := NewInMemory("cold")
	ctx := context.Background()
	require.NoError(t, s.Archive(ctx, &model.MemoryRecord{ID: "m1", AgentID: "a1"}))
	require.NoError(t, s.Archive(ctx, &model.MemoryRecord{ID: "m2", AgentID: "a2"}))

	out, err := s.ListArchived(ctx, "a1", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "m1", out[0].ID)
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "cold/a1/m1.json", Key("cold", "a1", "m1"))
	assert.Equal(t, "cold/a1/m1.json", Key("", "a1", "m1"))
}
