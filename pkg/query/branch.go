package query

import (
	"context"
	"time"

	"github.com/mnemo-db/mnemo/pkg/idgen"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// BranchRequest is the input to Branch (spec §4.8.6).
type BranchRequest struct {
	AgentID          string
	SourceCheckpointID string // takes precedence over SourceBranch
	SourceBranch     string
	NewBranchName    string
}

// Branch creates a new checkpoint on a new branch, forked from a
// source checkpoint (spec §4.8.6).
func (e *Engine) Branch(ctx context.Context, req BranchRequest) (*model.Checkpoint, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = e.DefaultAgentID
	}
	if err := validateAgentID(agentID); err != nil {
		return nil, err
	}
	if req.NewBranchName == "" {
		return nil, mnemoerr.Validation("branch requires new_branch_name")
	}

	source, err := e.resolveSourceCheckpoint(ctx, agentID, req.SourceCheckpointID, req.SourceBranch)
	if err != nil {
		return nil, err
	}

	cp := &model.Checkpoint{
		ID:            idgen.New(),
		ThreadID:      source.ThreadID,
		AgentID:       agentID,
		ParentID:      source.ID,
		BranchName:    req.NewBranchName,
		StateSnapshot: source.StateSnapshot,
		MemoryRefs:    append([]string(nil), source.MemoryRefs...),
		EventCursor:   source.EventCursor,
		CreatedAt:     time.Now(),
	}
	if err := e.Storage.InsertCheckpoint(ctx, cp); err != nil {
		return nil, mnemoerr.Storage("inserting checkpoint", err)
	}

	e.emitEvent(ctx, agentID, source.ThreadID, model.EventBranch, map[string]any{
		"checkpoint_id": cp.ID, "source_checkpoint_id": source.ID, "branch": req.NewBranchName,
	}, nil)

	return cp, nil
}

// resolveSourceCheckpoint resolves by explicit id if given, else the
// latest checkpoint on sourceBranch (defaulting to "main").
func (e *Engine) resolveSourceCheckpoint(ctx context.Context, agentID, checkpointID, sourceBranch string) (*model.Checkpoint, error) {
	if checkpointID != "" {
		cp, err := e.Storage.GetCheckpoint(ctx, checkpointID)
		if err != nil {
			return nil, err
		}
		return cp, nil
	}
	branch := sourceBranch
	if branch == "" {
		branch = model.DefaultBranch
	}
	return e.latestCheckpoint(ctx, agentID, branch)
}
