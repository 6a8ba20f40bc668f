package query

import (
	"context"
	"sort"

	"github.com/mnemo-db/mnemo/pkg/hashchain"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// ReplayRequest is the input to Replay (spec §4.8.8).
type ReplayRequest struct {
	AgentID      string
	CheckpointID string // takes precedence over (ThreadID, branch=main) resolution
	ThreadID     string
}

// ReplayResult is the output of Replay: the resolved checkpoint, its
// referenced memories in order, the thread's events truncated at the
// checkpoint's event cursor, and the memory chain's verification
// result.
type ReplayResult struct {
	Checkpoint   *model.Checkpoint
	Memories     []*model.MemoryRecord
	Events       []*model.AgentEvent
	Verification hashchain.VerifyResult
}

// Replay reconstructs the state referenced by a checkpoint (spec
// §4.8.8).
func (e *Engine) Replay(ctx context.Context, req ReplayRequest) (*ReplayResult, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = e.DefaultAgentID
	}
	if err := validateAgentID(agentID); err != nil {
		return nil, err
	}

	checkpoint, err := e.resolveReplayCheckpoint(ctx, agentID, req.CheckpointID, req.ThreadID)
	if err != nil {
		return nil, err
	}

	memories := make([]*model.MemoryRecord, 0, len(checkpoint.MemoryRefs))
	for _, id := range checkpoint.MemoryRefs {
		record, err := e.Storage.GetMemory(ctx, id)
		if err != nil {
			continue // a referenced memory may since have been hard-deleted.
		}
		memories = append(memories, record)
	}

	chainRecords := make([]hashchain.ChainRecord, len(memories))
	for i, r := range memories {
		r := r
		chainRecords[i] = hashchain.ChainRecord{
			ID:          r.ID,
			ContentHash: r.ContentHash,
			PrevHash:    r.PrevHash,
			HasPrevHash: r.HasPrevHash,
			Recompute:   func() [32]byte { return recomputeMemoryContentHash(r) },
		}
	}
	verification := hashchain.Verify(chainRecords)

	events, err := e.loadThreadEvents(ctx, checkpoint)
	if err != nil {
		return nil, err
	}

	return &ReplayResult{Checkpoint: checkpoint, Memories: memories, Events: events, Verification: verification}, nil
}

func (e *Engine) resolveReplayCheckpoint(ctx context.Context, agentID, checkpointID, threadID string) (*model.Checkpoint, error) {
	if checkpointID != "" {
		return e.Storage.GetCheckpoint(ctx, checkpointID)
	}
	checkpoints, err := e.Storage.ListCheckpointsByBranch(ctx, agentID, model.DefaultBranch)
	if err != nil {
		return nil, mnemoerr.Storage("listing checkpoints", err)
	}
	for i := len(checkpoints) - 1; i >= 0; i-- {
		if threadID == "" || checkpoints[i].ThreadID == threadID {
			return checkpoints[i], nil
		}
	}
	return nil, mnemoerr.NotFound("no checkpoint found for agent %q thread %q branch %q", agentID, threadID, model.DefaultBranch)
}

// loadThreadEvents loads a thread's events in ascending timestamp
// order, truncated at the checkpoint's event cursor when one is set.
func (e *Engine) loadThreadEvents(ctx context.Context, checkpoint *model.Checkpoint) ([]*model.AgentEvent, error) {
	if checkpoint.ThreadID == "" {
		return nil, nil
	}
	events, err := e.Storage.ListEventsByThread(ctx, checkpoint.ThreadID, 10000)
	if err != nil {
		return nil, mnemoerr.Storage("listing thread events", err)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })

	if checkpoint.EventCursor == "" {
		return events, nil
	}
	for i, ev := range events {
		if ev.ID == checkpoint.EventCursor {
			return events[:i+1], nil
		}
	}
	return events, nil
}
