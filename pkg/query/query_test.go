package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-db/mnemo/pkg/embedding"
	"github.com/mnemo-db/mnemo/pkg/fulltext"
	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/storage/embedded"
	"github.com/mnemo-db/mnemo/pkg/vectorindex"
)

const testDimension = 16

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	backend, err := embedded.Open(filepath.Join(t.TempDir(), "mnemo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	return &Engine{
		Storage:        backend,
		Embedder:       embedding.NewNoOp(testDimension),
		VectorIndex:    vectorindex.New(testDimension),
		FullText:       fulltext.New(),
		DefaultAgentID: "a",
	}
}

func TestRememberAndRecallExact(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Remember(ctx, RememberRequest{
		AgentID: "a", Content: "The user prefers dark mode", Importance: 0.8,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.NotEmpty(t, res.ContentHash)

	out, err := e.Recall(ctx, RecallRequest{AgentID: "a", Query: "anything", Strategy: StrategyExact})
	require.NoError(t, err)
	require.Equal(t, 1, out.Total)
	assert.Equal(t, "The user prefers dark mode", out.Memories[0].Record.Content)
}

func TestChainVerificationDetectsTamper(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var ids []string
	for _, content := range []string{"R0", "R1", "R2"} {
		res, err := e.Remember(ctx, RememberRequest{AgentID: "a", Content: content, ThreadID: "t", Importance: 0.5})
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}

	memories, _, err := e.Verify(ctx, VerifyRequest{AgentID: "a", ThreadID: "t"})
	require.NoError(t, err)
	assert.True(t, memories.Valid)
	assert.Equal(t, 3, memories.Total)
	assert.Equal(t, 3, memories.VerifiedCount)

	record, err := e.Storage.GetMemory(ctx, ids[1])
	require.NoError(t, err)
	record.Content = "X"
	require.NoError(t, e.Storage.UpdateMemory(ctx, record))

	memories, _, err = e.Verify(ctx, VerifyRequest{AgentID: "a", ThreadID: "t"})
	require.NoError(t, err)
	assert.False(t, memories.Valid)
	assert.Equal(t, ids[1], memories.FirstBrokenID)
	assert.Contains(t, memories.Error, "content hash mismatch")
}

func TestPermissionIsolationAndShare(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Remember(ctx, RememberRequest{AgentID: "a", Content: "a secret", Importance: 0.5, Scope: model.ScopePrivate})
	require.NoError(t, err)

	out, err := e.Recall(ctx, RecallRequest{AgentID: "b", Query: "anything", Strategy: StrategyExact})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Total)

	_, err = e.Share(ctx, ShareRequest{AgentID: "a", MemoryID: res.ID, TargetAgentID: "b", Permission: model.PermissionRead})
	require.NoError(t, err)

	out, err = e.Recall(ctx, RecallRequest{AgentID: "b", Query: "anything", Strategy: StrategyExact})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
}

func TestPermissionIsolationHoldsForEveryStrategy(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Remember(ctx, RememberRequest{
		AgentID: "a", Content: "a zebra pattern only a should see", Importance: 0.5, Scope: model.ScopeShared,
	})
	require.NoError(t, err)

	for _, strategy := range []Strategy{StrategyLexical, StrategyHybrid, StrategyAuto, StrategyGraph} {
		out, err := e.Recall(ctx, RecallRequest{AgentID: "b", Query: "zebra", Strategy: strategy})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Total, "strategy %s leaked a shared memory with no ACL/delegation granted", strategy)
	}
}

func TestBranchAndMerge(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	m1, err := e.Remember(ctx, RememberRequest{AgentID: "a", Content: "m1", ThreadID: "t", Importance: 0.5})
	require.NoError(t, err)
	cpMain, err := e.Checkpoint(ctx, CheckpointRequest{AgentID: "a", ThreadID: "t"})
	require.NoError(t, err)
	assert.Contains(t, cpMain.MemoryRefs, m1.ID)

	_, err = e.Branch(ctx, BranchRequest{AgentID: "a", SourceBranch: model.DefaultBranch, NewBranchName: "exp"})
	require.NoError(t, err)

	m2, err := e.Remember(ctx, RememberRequest{AgentID: "a", Content: "m2", ThreadID: "t", Importance: 0.5})
	require.NoError(t, err)
	_, err = e.Checkpoint(ctx, CheckpointRequest{AgentID: "a", ThreadID: "t", BranchName: "exp"})
	require.NoError(t, err)

	merged, err := e.Merge(ctx, MergeRequest{AgentID: "a", SourceBranch: "exp", TargetBranch: model.DefaultBranch, Strategy: MergeFull})
	require.NoError(t, err)
	assert.Contains(t, merged.MemoryRefs, m1.ID)
	assert.Contains(t, merged.MemoryRefs, m2.ID)
}

func TestForgetSoftDeleteHidesFromRecall(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Remember(ctx, RememberRequest{AgentID: "a", Content: "forget me", Importance: 0.5})
	require.NoError(t, err)

	out, err := e.Forget(ctx, ForgetRequest{AgentID: "a", MemoryIDs: []string{res.ID}, Strategy: ForgetSoftDelete})
	require.NoError(t, err)
	assert.Equal(t, []string{res.ID}, out.Forgotten)
	assert.Empty(t, out.Errors)

	recalled, err := e.Recall(ctx, RecallRequest{AgentID: "a", Query: "anything", Strategy: StrategyExact})
	require.NoError(t, err)
	assert.Equal(t, 0, recalled.Total)
}

func TestDelegateGrantsAccessWithoutACL(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Remember(ctx, RememberRequest{AgentID: "a", Content: "delegated", Importance: 0.5, Scope: model.ScopePrivate})
	require.NoError(t, err)

	_, err = e.Delegate(ctx, DelegateRequest{DelegatorID: "a", DelegateID: "b", Permission: "write", MemoryIDs: []string{res.ID}})
	require.NoError(t, err)

	record, err := e.Storage.GetMemory(ctx, res.ID)
	require.NoError(t, err)
	allowed, err := e.hasPermission(ctx, record, "b", model.PermissionWrite)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestReplayReconstructsCheckpointState(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Remember(ctx, RememberRequest{AgentID: "a", Content: "replay me", ThreadID: "t", Importance: 0.5})
	require.NoError(t, err)
	cp, err := e.Checkpoint(ctx, CheckpointRequest{AgentID: "a", ThreadID: "t"})
	require.NoError(t, err)

	out, err := e.Replay(ctx, ReplayRequest{AgentID: "a", CheckpointID: cp.ID})
	require.NoError(t, err)
	require.Len(t, out.Memories, 1)
	assert.Equal(t, res.ID, out.Memories[0].ID)
	assert.True(t, out.Verification.Valid)
}
