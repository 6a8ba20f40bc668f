package mcpserver

import (
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/query"
)

// toolResult marshals v as the single text content block of a
// successful CallToolResult.
func toolResult(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

// errorResult reports a failed operation as tool content with IsError
// set, the teacher's pkg/mcp/executor.go convention of returning
// errors as content rather than as a Go/transport error.
func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}
}

func (s *Server) rememberTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in rememberInput) (*mcpsdk.CallToolResult, any, error) {
	req := query.RememberRequest{
		AgentID:       in.AgentID,
		Content:       in.Content,
		MemoryType:    model.MemoryType(in.MemoryType),
		Scope:         model.Scope(in.Scope),
		Importance:    in.Importance,
		Tags:          in.Tags,
		Metadata:      in.Metadata,
		SourceType:    model.SourceType(in.SourceType),
		SourceID:      in.SourceID,
		OrgID:         in.OrgID,
		ThreadID:      in.ThreadID,
		TTLSeconds:    in.TTLSeconds,
		DecayRate:     in.DecayRate,
		DecayFunction: model.DecayFunction(in.DecayFunction),
		CreatedBy:     in.CreatedBy,
		RelatedTo:     in.RelatedTo,
	}
	result, err := s.Engine.Remember(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(result)
}

func (s *Server) recallTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in recallInput) (*mcpsdk.CallToolResult, any, error) {
	memoryTypes := make([]model.MemoryType, len(in.MemoryTypes))
	for i, t := range in.MemoryTypes {
		memoryTypes[i] = model.MemoryType(t)
	}
	var temporal *query.TemporalRange
	if in.After != "" || in.Before != "" {
		temporal = &query.TemporalRange{After: in.After, Before: in.Before}
	}
	req := query.RecallRequest{
		Query:           in.Query,
		AgentID:         in.AgentID,
		Limit:           in.Limit,
		MemoryType:      model.MemoryType(in.MemoryType),
		MemoryTypes:     memoryTypes,
		Scope:           model.Scope(in.Scope),
		MinImportance:   in.MinImportance,
		Tags:            in.Tags,
		OrgID:           in.OrgID,
		Temporal:        temporal,
		Strategy:        query.Strategy(in.Strategy),
		RRFK:            in.RRFK,
		HybridWeights:   in.HybridWeights,
		RecencyHalfLife: in.RecencyHalfLife,
	}
	result, err := s.Engine.Recall(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(result)
}

func (s *Server) getMemoryTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in getMemoryInput) (*mcpsdk.CallToolResult, any, error) {
	record, err := s.Storage.GetMemory(ctx, in.ID)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(record)
}

func (s *Server) forgetTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in forgetInput) (*mcpsdk.CallToolResult, any, error) {
	var criteria *query.ForgetCriteria
	if in.Criteria != nil {
		criteria = &query.ForgetCriteria{
			MaxAgeHours:        in.Criteria.MaxAgeHours,
			MinImportanceBelow: in.Criteria.MinImportanceBelow,
			MemoryType:         model.MemoryType(in.Criteria.MemoryType),
			Tags:               in.Criteria.Tags,
		}
	}
	req := query.ForgetRequest{
		AgentID:   in.AgentID,
		MemoryIDs: in.MemoryIDs,
		Criteria:  criteria,
		Strategy:  query.ForgetStrategy(in.Strategy),
		DecayRate: in.DecayRate,
	}
	result, err := s.Engine.Forget(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(result)
}

func (s *Server) shareTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in shareInput) (*mcpsdk.CallToolResult, any, error) {
	permission, _ := model.ParsePermission(in.Permission)
	req := query.ShareRequest{
		AgentID:        in.AgentID,
		MemoryID:       in.MemoryID,
		TargetAgentIDs: in.TargetAgentIDs,
		TargetAgentID:  in.TargetAgentID,
		Permission:     permission,
		ExpiresInHours: in.ExpiresInHours,
	}
	result, err := s.Engine.Share(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(result)
}

func (s *Server) checkpointTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in checkpointInput) (*mcpsdk.CallToolResult, any, error) {
	req := query.CheckpointRequest{
		AgentID:       in.AgentID,
		ThreadID:      in.ThreadID,
		BranchName:    in.BranchName,
		StateSnapshot: in.StateSnapshot,
		Label:         in.Label,
		Metadata:      in.Metadata,
	}
	result, err := s.Engine.Checkpoint(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(result)
}

func (s *Server) branchTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in branchInput) (*mcpsdk.CallToolResult, any, error) {
	req := query.BranchRequest{
		AgentID:            in.AgentID,
		SourceCheckpointID: in.SourceCheckpointID,
		SourceBranch:       in.SourceBranch,
		NewBranchName:      in.NewBranchName,
	}
	result, err := s.Engine.Branch(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(result)
}

func (s *Server) mergeTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in mergeInput) (*mcpsdk.CallToolResult, any, error) {
	req := query.MergeRequest{
		AgentID:       in.AgentID,
		SourceBranch:  in.SourceBranch,
		TargetBranch:  in.TargetBranch,
		Strategy:      query.MergeStrategy(in.Strategy),
		CherryPickIDs: in.CherryPickIDs,
	}
	result, err := s.Engine.Merge(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(result)
}

func (s *Server) replayTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in replayInput) (*mcpsdk.CallToolResult, any, error) {
	req := query.ReplayRequest{
		AgentID:      in.AgentID,
		CheckpointID: in.CheckpointID,
		ThreadID:     in.ThreadID,
	}
	result, err := s.Engine.Replay(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(result)
}

func (s *Server) verifyTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in verifyInput) (*mcpsdk.CallToolResult, any, error) {
	req := query.VerifyRequest{AgentID: in.AgentID, ThreadID: in.ThreadID}
	memories, events, err := s.Engine.Verify(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(struct {
		Memories any `json:"memories"`
		Events   any `json:"events"`
	}{memories, events})
}

func (s *Server) delegateTool(ctx context.Context, _ *mcpsdk.CallToolRequest, in delegateInput) (*mcpsdk.CallToolResult, any, error) {
	req := query.DelegateRequest{
		DelegatorID:    in.DelegatorID,
		DelegateID:     in.DelegateID,
		Permission:     in.Permission,
		MemoryIDs:      in.MemoryIDs,
		Tags:           in.Tags,
		MaxDepth:       in.MaxDepth,
		ExpiresInHours: in.ExpiresInHours,
	}
	result, err := s.Engine.Delegate(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return toolResult(result)
}
