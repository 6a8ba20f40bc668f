// Package mcpserver exposes mnemo's ten query-engine operations as MCP
// (Model Context Protocol) tools over a stdio transport, so an agent
// runtime can talk to mnemo the same way tarsy's own pkg/mcp client
// talks to external tool servers — mnemo plays the opposite role here,
// the server an MCP client connects to rather than the client
// connecting out.
//
// Tool handlers follow the teacher's pkg/mcp/executor.go convention of
// reporting a failed call as a CallToolResult with IsError set rather
// than as a Go error: a malformed Recall query is a result, not a
// transport failure.
package mcpserver

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mnemo-db/mnemo/pkg/query"
	"github.com/mnemo-db/mnemo/pkg/storage"
	"github.com/mnemo-db/mnemo/pkg/version"
)

// Server holds the dependencies mnemo's MCP tool handlers need.
type Server struct {
	Engine  *query.Engine
	Storage storage.Backend
	Logger  *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// NewMCPServer builds an *mcpsdk.Server with every mnemo operation
// registered as a tool, mirroring the Implementation{Name, Version}
// identity the teacher's pkg/mcp/client.go sends when it connects out
// (version.AppName / version.GitCommit), here describing mnemo itself
// to the connecting client instead.
func (s *Server) NewMCPServer() *mcpsdk.Server {
	impl := &mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}
	server := mcpsdk.NewServer(impl, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "remember",
		Description: "Store a new memory for an agent, embedding and hash-chaining it.",
	}, s.rememberTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "recall",
		Description: "Retrieve memories via fused vector/lexical/recency/graph ranking.",
	}, s.recallTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "get_memory",
		Description: "Fetch a single memory record by id.",
	}, s.getMemoryTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "forget",
		Description: "Forget memories matched by id or criteria, under a forget strategy.",
	}, s.forgetTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "share",
		Description: "Grant permission on a memory to one or more target agents.",
	}, s.shareTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "checkpoint",
		Description: "Snapshot an agent's active memories and event cursor on a branch.",
	}, s.checkpointTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "branch",
		Description: "Fork a new branch from a source checkpoint.",
	}, s.branchTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "merge",
		Description: "Merge a source branch's latest checkpoint into a target branch.",
	}, s.mergeTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "replay",
		Description: "Reconstruct the state referenced by a checkpoint.",
	}, s.replayTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "verify",
		Description: "Verify the hash chain of an agent's memories and events.",
	}, s.verifyTool)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "delegate",
		Description: "Grant a transitive capability from one agent to another.",
	}, s.delegateTool)

	return server
}

// Run serves every tool over stdin/stdout until ctx is canceled, the
// shape spec §6's "an MCP stdio server" names without further detail.
func (s *Server) Run(ctx context.Context) error {
	server := s.NewMCPServer()
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
