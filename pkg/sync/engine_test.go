package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/storage/embedded"
)

func newBackend(t *testing.T, name string) *embedded.Backend {
	t.Helper()
	backend, err := embedded.Open(filepath.Join(t.TempDir(), name+".db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestPushMovesLocalMemoriesToRemote(t *testing.T) {
	local := newBackend(t, "local")
	remote := newBackend(t, "remote")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, local.InsertMemory(ctx, &model.MemoryRecord{
		ID: "m1", AgentID: "a", Content: "hello", CreatedAt: now, UpdatedAt: now,
	}))

	e := &Engine{Local: local, Remote: remote}
	result, err := e.Push(ctx, "a", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pushed)

	remoteRecord, err := remote.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", remoteRecord.Content)

	// A second push with no new writes moves nothing, since the
	// watermark has advanced past m1's updated_at.
	result, err = e.Push(ctx, "a", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Pushed)
}

func TestPullMovesRemoteMemoriesToLocal(t *testing.T) {
	local := newBackend(t, "local")
	remote := newBackend(t, "remote")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, remote.InsertMemory(ctx, &model.MemoryRecord{
		ID: "m1", AgentID: "a", Content: "from remote", CreatedAt: now, UpdatedAt: now,
	}))

	e := &Engine{Local: local, Remote: remote}
	result, err := e.Pull(ctx, "a", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pulled)

	localRecord, err := local.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "from remote", localRecord.Content)
}

func TestFullSyncReportsConflictsAndReconciles(t *testing.T) {
	local := newBackend(t, "local")
	remote := newBackend(t, "remote")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, local.InsertMemory(ctx, &model.MemoryRecord{
		ID: "shared", AgentID: "a", Content: "local version", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, remote.InsertMemory(ctx, &model.MemoryRecord{
		ID: "shared", AgentID: "a", Content: "remote version", CreatedAt: now, UpdatedAt: now.Add(time.Minute),
	}))
	require.NoError(t, local.InsertMemory(ctx, &model.MemoryRecord{
		ID: "local-only", AgentID: "a", Content: "only here", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, remote.InsertMemory(ctx, &model.MemoryRecord{
		ID: "remote-only", AgentID: "a", Content: "only there", CreatedAt: now, UpdatedAt: now,
	}))

	e := &Engine{Local: local, Remote: remote}
	result, err := e.FullSync(ctx, "a", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "shared", result.Conflicts[0].MemoryID)
	assert.Equal(t, 2, result.Pushed) // shared + local-only
	assert.Equal(t, 1, result.Pulled) // remote-only

	sharedOnRemote, err := remote.GetMemory(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, "local version", sharedOnRemote.Content) // local wins

	_, err = local.GetMemory(ctx, "remote-only")
	require.NoError(t, err)
}
