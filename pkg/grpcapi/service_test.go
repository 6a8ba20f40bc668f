package grpcapi

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-db/mnemo/pkg/embedding"
	"github.com/mnemo-db/mnemo/pkg/fulltext"
	"github.com/mnemo-db/mnemo/pkg/query"
	"github.com/mnemo-db/mnemo/pkg/storage/embedded"
	"github.com/mnemo-db/mnemo/pkg/vectorindex"
)

const testDimension = 16

func newTestServer(t *testing.T) *Server {
	t.Helper()
	backend, err := embedded.Open(filepath.Join(t.TempDir(), "mnemo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	engine := &query.Engine{
		Storage:        backend,
		Embedder:       embedding.NewNoOp(testDimension),
		VectorIndex:    vectorindex.New(testDimension),
		FullText:       fulltext.New(),
		DefaultAgentID: "a",
	}
	return &Server{Engine: engine, Storage: backend}
}

func TestRememberThenRecallExact(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	remembered, err := s.Remember(ctx, &query.RememberRequest{
		AgentID: "a", Content: "The user prefers dark mode", Importance: 0.8,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, remembered.ID)
	assert.NotEmpty(t, remembered.ContentHash)

	result, err := s.Recall(ctx, &query.RecallRequest{
		AgentID: "a", Query: "anything", Strategy: query.StrategyExact,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestGetMemoryNotFoundMapsToNotFoundStatus(t *testing.T) {
	s := newTestServer(t)
	_, err := s.GetMemory(context.Background(), &GetMemoryRequest{ID: "missing"})
	require.Error(t, err)
}

func TestForgetThenGetMemoryFails(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	remembered, err := s.Remember(ctx, &query.RememberRequest{AgentID: "a", Content: "throwaway"})
	require.NoError(t, err)

	forgetResult, err := s.Forget(ctx, &query.ForgetRequest{
		AgentID: "a", MemoryIDs: []string{remembered.ID}, Strategy: query.ForgetHardDelete,
	})
	require.NoError(t, err)
	assert.Contains(t, forgetResult.Forgotten, remembered.ID)

	_, err = s.GetMemory(ctx, &GetMemoryRequest{ID: remembered.ID})
	assert.Error(t, err)
}

func TestCheckpointBranchMerge(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.Remember(ctx, &query.RememberRequest{AgentID: "a", ThreadID: "t", Content: "m1"})
	require.NoError(t, err)

	cpMain, err := s.Checkpoint(ctx, &query.CheckpointRequest{AgentID: "a", ThreadID: "t", BranchName: "main", Label: "cp_main"})
	require.NoError(t, err)
	require.NotNil(t, cpMain.Checkpoint)

	cpExp, err := s.Branch(ctx, &query.BranchRequest{AgentID: "a", SourceBranch: "main", NewBranchName: "exp"})
	require.NoError(t, err)
	require.NotNil(t, cpExp.Checkpoint)
	assert.Equal(t, "exp", cpExp.Checkpoint.BranchName)

	merged, err := s.Merge(ctx, &query.MergeRequest{AgentID: "a", SourceBranch: "exp", TargetBranch: "main", Strategy: query.MergeFull})
	require.NoError(t, err)
	require.NotNil(t, merged.Checkpoint)
}

func TestVerifyReturnsBothChainResults(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Remember(ctx, &query.RememberRequest{AgentID: "a", ThreadID: "t", Content: "m"})
		require.NoError(t, err)
	}

	resp, err := s.Verify(ctx, &query.VerifyRequest{AgentID: "a", ThreadID: "t"})
	require.NoError(t, err)
	assert.True(t, resp.Memories.Valid)
	assert.Equal(t, 3, resp.Memories.Total)
}

func TestServiceDescListsAllTenOperations(t *testing.T) {
	assert.Len(t, ServiceDesc.Methods, 11) // ten query-engine ops plus GetMemory
}
