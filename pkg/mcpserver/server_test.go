package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
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

// connectInMemory wires the given mnemo Server's MCP tools to a
// client over an in-memory transport pair, the teacher's
// pkg/mcp/client_test.go startTestServer/NewInMemoryTransports
// pattern, used here to test mnemo's own server instead of a fake
// external tool server.
func connectInMemory(t *testing.T, s *Server) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	mcpServer := s.NewMCPServer()
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	go func() { _ = mcpServer.Run(ctx, serverTransport) }()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args any) *mcpsdk.CallToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	var params map[string]any
	require.NoError(t, json.Unmarshal(raw, &params))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: params,
	})
	require.NoError(t, err)
	return result
}

func textOf(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListToolsExposesAllTenOperationsPlusGetMemory(t *testing.T) {
	s := newTestServer(t)
	session := connectInMemory(t, s)

	resp, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, resp.Tools, 11)
}

func TestRememberToolThenRecallTool(t *testing.T) {
	s := newTestServer(t)
	session := connectInMemory(t, s)

	rememberResult := callTool(t, session, "remember", rememberInput{
		AgentID: "a", Content: "The user prefers dark mode", Importance: 0.8,
	})
	require.False(t, rememberResult.IsError)

	var remembered query.RememberResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, rememberResult)), &remembered))
	assert.NotEmpty(t, remembered.ID)

	recallResult := callTool(t, session, "recall", recallInput{
		AgentID: "a", Query: "anything", Strategy: string(query.StrategyExact),
	})
	require.False(t, recallResult.IsError)

	var recalled query.RecallResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, recallResult)), &recalled))
	assert.Equal(t, 1, recalled.Total)
}

func TestGetMemoryToolReportsErrorAsContent(t *testing.T) {
	s := newTestServer(t)
	session := connectInMemory(t, s)

	result := callTool(t, session, "get_memory", getMemoryInput{ID: "missing"})
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "not_found")
}

func TestCheckpointBranchMergeTools(t *testing.T) {
	s := newTestServer(t)
	session := connectInMemory(t, s)

	callTool(t, session, "remember", rememberInput{AgentID: "a", ThreadID: "t", Content: "m1"})

	cpResult := callTool(t, session, "checkpoint", checkpointInput{AgentID: "a", ThreadID: "t", BranchName: "main", Label: "cp_main"})
	require.False(t, cpResult.IsError)

	branchResult := callTool(t, session, "branch", branchInput{AgentID: "a", SourceBranch: "main", NewBranchName: "exp"})
	require.False(t, branchResult.IsError)

	mergeResult := callTool(t, session, "merge", mergeInput{AgentID: "a", SourceBranch: "exp", TargetBranch: "main", Strategy: string(query.MergeFull)})
	require.False(t, mergeResult.IsError)
}

func TestVerifyToolReturnsBothChainResults(t *testing.T) {
	s := newTestServer(t)
	session := connectInMemory(t, s)

	for i := 0; i < 3; i++ {
		callTool(t, session, "remember", rememberInput{AgentID: "a", ThreadID: "t", Content: "m"})
	}

	result := callTool(t, session, "verify", verifyInput{AgentID: "a", ThreadID: "t"})
	require.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), `"memories"`)
}
