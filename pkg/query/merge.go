package query

import (
	"context"
	"time"

	"github.com/mnemo-db/mnemo/pkg/idgen"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// MergeStrategy selects how two branches' checkpoints combine (spec
// §4.8.7).
type MergeStrategy string

const (
	MergeFull       MergeStrategy = "full_merge"
	MergeCherryPick MergeStrategy = "cherry_pick"
	MergeSquash     MergeStrategy = "squash"
)

// MergeRequest is the input to Merge.
type MergeRequest struct {
	AgentID       string
	SourceBranch  string
	TargetBranch  string
	Strategy      MergeStrategy
	CherryPickIDs []string // memory ids to pull in, used only by cherry_pick
}

// Merge combines a source branch's latest checkpoint into a target
// branch, inserting a new checkpoint on the target branch (spec
// §4.8.7).
func (e *Engine) Merge(ctx context.Context, req MergeRequest) (*model.Checkpoint, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = e.DefaultAgentID
	}
	if err := validateAgentID(agentID); err != nil {
		return nil, err
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = MergeFull
	}

	source, err := e.latestCheckpoint(ctx, agentID, req.SourceBranch)
	if err != nil {
		return nil, err
	}

	var targetParentID string
	var target *model.Checkpoint
	if t, err := e.latestCheckpoint(ctx, agentID, req.TargetBranch); err == nil {
		target = t
		targetParentID = t.ID
	} else if mnemoerr.KindOf(err) != mnemoerr.KindNotFound {
		return nil, err
	}

	memoryRefs := mergeMemoryRefs(strategy, target, source, req.CherryPickIDs)
	snapshot := mergeStateSnapshot(target, source)

	cp := &model.Checkpoint{
		ID:            idgen.New(),
		ThreadID:      source.ThreadID,
		AgentID:       agentID,
		ParentID:      targetParentID,
		BranchName:    req.TargetBranch,
		StateSnapshot: snapshot,
		MemoryRefs:    memoryRefs,
		EventCursor:   source.EventCursor,
		CreatedAt:     time.Now(),
	}
	if target != nil {
		cp.EventCursor = target.EventCursor
		if cp.EventCursor == "" {
			cp.EventCursor = source.EventCursor
		}
	}

	if err := e.Storage.InsertCheckpoint(ctx, cp); err != nil {
		return nil, mnemoerr.Storage("inserting checkpoint", err)
	}

	e.emitEvent(ctx, agentID, source.ThreadID, model.EventMerge, map[string]any{
		"checkpoint_id": cp.ID, "source_branch": req.SourceBranch, "target_branch": req.TargetBranch, "strategy": string(strategy),
	}, nil)

	return cp, nil
}

func mergeMemoryRefs(strategy MergeStrategy, target, source *model.Checkpoint, cherryPickIDs []string) []string {
	var targetRefs []string
	if target != nil {
		targetRefs = target.MemoryRefs
	}

	switch strategy {
	case MergeCherryPick:
		seen := make(map[string]bool, len(targetRefs))
		out := append([]string(nil), targetRefs...)
		for _, id := range targetRefs {
			seen[id] = true
		}
		for _, id := range cherryPickIDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		return out
	default: // full_merge, squash: union of target then source, order preserved.
		seen := make(map[string]bool, len(targetRefs)+len(source.MemoryRefs))
		out := append([]string(nil), targetRefs...)
		for _, id := range targetRefs {
			seen[id] = true
		}
		for _, id := range source.MemoryRefs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		return out
	}
}

// mergeStateSnapshot takes target as base and adds any source keys not
// already present — target wins on conflicts (spec §4.8.7).
func mergeStateSnapshot(target, source *model.Checkpoint) map[string]any {
	merged := make(map[string]any)
	if target != nil {
		for k, v := range target.StateSnapshot {
			merged[k] = v
		}
	}
	if source != nil {
		for k, v := range source.StateSnapshot {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
	}
	return merged
}
