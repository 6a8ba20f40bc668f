package query

import (
	"context"
	"time"

	"github.com/mnemo-db/mnemo/pkg/idgen"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/storage"
)

// CheckpointRequest is the input to Checkpoint (spec §4.8.5).
type CheckpointRequest struct {
	AgentID       string
	ThreadID      string
	BranchName    string
	StateSnapshot map[string]any
	Label         string
	Metadata      map[string]any
}

// Checkpoint snapshots an agent's active memories and event cursor on
// a branch, parented to that branch's latest checkpoint (spec §4.8.5).
func (e *Engine) Checkpoint(ctx context.Context, req CheckpointRequest) (*model.Checkpoint, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = e.DefaultAgentID
	}
	if err := validateAgentID(agentID); err != nil {
		return nil, err
	}
	branch := req.BranchName
	if branch == "" {
		branch = model.DefaultBranch
	}

	parent, err := e.latestCheckpoint(ctx, agentID, branch)
	if err != nil && mnemoerr.KindOf(err) != mnemoerr.KindNotFound {
		return nil, err
	}

	var stateDiff map[string]any
	if parent != nil {
		stateDiff = map[string]any{"from": parent.StateSnapshot, "to": req.StateSnapshot}
	}

	memoryRefs, err := e.activeMemoryIDs(ctx, agentID)
	if err != nil {
		return nil, err
	}

	eventCursor, err := e.latestEventID(ctx, agentID)
	if err != nil && mnemoerr.KindOf(err) != mnemoerr.KindNotFound {
		return nil, err
	}

	cp := &model.Checkpoint{
		ID:            idgen.New(),
		ThreadID:      req.ThreadID,
		AgentID:       agentID,
		BranchName:    branch,
		StateSnapshot: req.StateSnapshot,
		StateDiff:     stateDiff,
		MemoryRefs:    memoryRefs,
		EventCursor:   eventCursor,
		Label:         req.Label,
		CreatedAt:     time.Now(),
		Metadata:      req.Metadata,
	}
	if parent != nil {
		cp.ParentID = parent.ID
	}

	if err := e.Storage.InsertCheckpoint(ctx, cp); err != nil {
		return nil, mnemoerr.Storage("inserting checkpoint", err)
	}

	e.emitEvent(ctx, agentID, req.ThreadID, model.EventCheckpoint, map[string]any{"checkpoint_id": cp.ID, "branch": branch}, nil)

	return cp, nil
}

func (e *Engine) latestCheckpoint(ctx context.Context, agentID, branch string) (*model.Checkpoint, error) {
	checkpoints, err := e.Storage.ListCheckpointsByBranch(ctx, agentID, branch)
	if err != nil {
		return nil, mnemoerr.Storage("listing checkpoints", err)
	}
	if len(checkpoints) == 0 {
		return nil, mnemoerr.NotFound("no checkpoint on branch %q for agent %q", branch, agentID)
	}
	return checkpoints[len(checkpoints)-1], nil
}

func (e *Engine) activeMemoryIDs(ctx context.Context, agentID string) ([]string, error) {
	records, err := e.Storage.ListMemories(ctx, storage.MemoryFilter{AgentID: agentID})
	if err != nil {
		return nil, mnemoerr.Storage("listing active memories", err)
	}
	now := time.Now()
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.IsVisible(now) {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (e *Engine) latestEventID(ctx context.Context, agentID string) (string, error) {
	events, err := e.Storage.ListEventsByAgent(ctx, agentID, 0)
	if err != nil {
		return "", mnemoerr.Storage("listing events", err)
	}
	if len(events) == 0 {
		return "", mnemoerr.NotFound("no events for agent %q", agentID)
	}
	return events[len(events)-1].ID, nil
}
