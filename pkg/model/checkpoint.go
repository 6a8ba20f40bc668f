package model

import "time"

// Checkpoint is a named, parented snapshot of agent state on a branch
// (spec §3). Checkpoints are created-only: never mutated.
type Checkpoint struct {
	ID            string
	ThreadID      string
	AgentID       string
	ParentID      string // empty for the first checkpoint on a branch
	BranchName    string
	StateSnapshot map[string]any
	StateDiff     map[string]any
	MemoryRefs    []string
	EventCursor   string
	Label         string
	CreatedAt     time.Time
	Metadata      map[string]any
}

// DefaultBranch is the branch name used when none is specified.
const DefaultBranch = "main"
