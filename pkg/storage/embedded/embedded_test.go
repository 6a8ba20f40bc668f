package embedded

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/storage"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mnemo.db")
	b, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestInsertAndGetMemory(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	m := &model.MemoryRecord{ID: "m1", AgentID: "a1", Content: "hi", CreatedAt: time.Now()}
	require.NoError(t, b.InsertMemory(ctx, m))

	got, err := b.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)

	_, err = b.GetMemory(ctx, "missing")
	assert.ErrorIs(t, err, mnemoerr.ErrNotFound)
}

func TestListMemoriesByAgentOrderedIsAscending(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		m := &model.MemoryRecord{
			ID: id, AgentID: "a1", ThreadID: "t1",
			CreatedAt: base.Add(time.Duration(len(id)*0) + time.Duration(i)*time.Second),
		}
		require.NoError(t, b.InsertMemory(ctx, m))
	}
	out, err := b.ListMemoriesByAgentOrdered(ctx, "a1", "t1", 0)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, out[0].CreatedAt.Before(out[1].CreatedAt))
	assert.True(t, out[1].CreatedAt.Before(out[2].CreatedAt))
}

func TestListAccessibleMemoryIDsUnion(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "own", AgentID: "a1", Scope: model.ScopePrivate}))
	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "pub", AgentID: "a2", Scope: model.ScopePublic}))
	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "other", AgentID: "a2", Scope: model.ScopePrivate}))
	require.NoError(t, b.InsertACL(ctx, &model.Acl{ID: "acl1", MemoryID: "other", Principal: "agent:a1", Permission: model.PermissionRead}))

	ids, err := b.ListAccessibleMemoryIDs(ctx, "a1", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"own", "pub", "other"}, ids)
}

func TestTouchMemoryIncrementsAccessCount(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "m1", AgentID: "a1"}))
	now := time.Now()
	require.NoError(t, b.TouchMemory(ctx, "m1", now))
	require.NoError(t, b.TouchMemory(ctx, "m1", now))

	got, err := b.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AccessCount)
	assert.WithinDuration(t, now, got.LastAccessedAt, time.Millisecond)
}

func TestCleanupExpiredSoftDeletes(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "expired", AgentID: "a1", ExpiresAt: &past}))
	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "fresh", AgentID: "a1", ExpiresAt: &future}))

	n, err := b.CleanupExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := b.GetMemory(ctx, "expired")
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	got, err = b.GetMemory(ctx, "fresh")
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
}

func TestSoftDeleteExcludedByDefaultFilter(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	require.NoError(t, b.InsertMemory(ctx, &model.MemoryRecord{ID: "m1", AgentID: "a1"}))
	require.NoError(t, b.SoftDeleteMemory(ctx, "m1", time.Now()))

	out, err := b.ListMemories(ctx, storage.MemoryFilter{AgentID: "a1"})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = b.ListMemories(ctx, storage.MemoryFilter{AgentID: "a1", IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestGetLatestMemoryHashNotFoundOnEmptyChain(t *testing.T) {
	b := newBackend(t)
	_, err := b.GetLatestMemoryHash(context.Background(), "a1", "t1")
	assert.ErrorIs(t, err, mnemoerr.ErrNotFound)
}

func TestEventsAppendOnlyListing(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, b.InsertEvent(ctx, &model.AgentEvent{ID: "e1", AgentID: "a1", ThreadID: "t1", Timestamp: now}))
	require.NoError(t, b.InsertEvent(ctx, &model.AgentEvent{ID: "e2", AgentID: "a1", ThreadID: "t1", Timestamp: now.Add(time.Second)}))

	out, err := b.ListEventsByThread(ctx, "t1", 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "e1", out[0].ID)
	assert.Equal(t, "e2", out[1].ID)
}

func TestCheckpointBranchListing(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	require.NoError(t, b.InsertCheckpoint(ctx, &model.Checkpoint{ID: "cp1", AgentID: "a1", BranchName: "main", CreatedAt: time.Now()}))
	require.NoError(t, b.InsertCheckpoint(ctx, &model.Checkpoint{ID: "cp2", AgentID: "a1", BranchName: "feature", CreatedAt: time.Now()}))

	branches, err := b.ListBranches(ctx, "a1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "feature"}, branches)

	cps, err := b.ListCheckpointsByBranch(ctx, "a1", "main")
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, "cp1", cps[0].ID)
}
