// Package storage defines the backend-agnostic persistence contract
// mnemo's query engine is built against (spec §6). Two backends
// implement it: pkg/storage/embedded (a single bbolt file) and
// pkg/storage/postgres (a server backend with native columns).
package storage

import (
	"context"
	"time"

	"github.com/mnemo-db/mnemo/pkg/model"
)

// MemoryFilter narrows a memory listing. Zero values are "don't
// filter on this field"; Tags and empty-string fields are ignored.
type MemoryFilter struct {
	AgentID        string
	MemoryType     model.MemoryType
	Scope          model.Scope
	MinImportance  float64
	Tags           []string
	OrgID          string
	ThreadID       string
	IncludeDeleted bool
	Limit          int
	Offset         int
	AsOf           *time.Time // point-in-time view: exclude rows updated after AsOf
}

// Backend is the full persistence contract. Every method is safe for
// concurrent use. Errors are taxonomized via pkg/mnemoerr: NotFound on
// a missing row, Validation on malformed input, Storage on backend
// failure.
type Backend interface {
	// Memories.
	InsertMemory(ctx context.Context, m *model.MemoryRecord) error
	GetMemory(ctx context.Context, id string) (*model.MemoryRecord, error)
	UpdateMemory(ctx context.Context, m *model.MemoryRecord) error
	SoftDeleteMemory(ctx context.Context, id string, deletedAt time.Time) error
	HardDeleteMemory(ctx context.Context, id string) error
	ListMemories(ctx context.Context, filter MemoryFilter) ([]*model.MemoryRecord, error)

	// ListMemoriesByAgentOrdered returns memories for (agent, thread)
	// ascending by created_at — the chain-verification order (spec §4.4).
	// thread may be empty to span all threads for the agent.
	ListMemoriesByAgentOrdered(ctx context.Context, agentID, threadID string, limit int) ([]*model.MemoryRecord, error)

	// ListMemoriesSince supports the sync engine's pull/push (spec §4.10).
	ListMemoriesSince(ctx context.Context, agentID string, since time.Time, limit int) ([]*model.MemoryRecord, error)

	// ListAccessibleMemoryIDs returns the permission pre-filter set: the
	// union of agent-owned, publicly/globally scoped, and ACL-granted
	// memory ids (spec §4.2, §9 invariant).
	ListAccessibleMemoryIDs(ctx context.Context, agentID string, limit int) ([]string, error)

	// GetLatestMemoryHash returns the content hash of the most recently
	// inserted, non-deleted memory in (agent, thread), for chain
	// extension. Returns mnemoerr NotFound when the chain is empty.
	GetLatestMemoryHash(ctx context.Context, agentID, threadID string) ([32]byte, error)

	// TouchMemory atomically increments access_count and stamps
	// last_accessed_at. Best-effort from the caller's perspective (spec
	// §4.8 propagation policy): callers must not fail the read path on
	// its error, only log it.
	TouchMemory(ctx context.Context, id string, at time.Time) error

	// CleanupExpired soft-deletes every non-deleted row whose
	// expires_at has passed, returning the count affected.
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)

	// Events. Append-only: there is deliberately no UpdateEvent or
	// DeleteEvent method.
	InsertEvent(ctx context.Context, e *model.AgentEvent) error
	ListEventsByThread(ctx context.Context, threadID string, limit int) ([]*model.AgentEvent, error)
	ListEventsByAgent(ctx context.Context, agentID string, limit int) ([]*model.AgentEvent, error)
	GetLatestEventHash(ctx context.Context, agentID, threadID string) ([32]byte, error)

	// Relations.
	InsertRelation(ctx context.Context, r *model.Relation) error
	ListRelationsForMemory(ctx context.Context, memoryID string) ([]model.Relation, error)

	// ACLs.
	InsertACL(ctx context.Context, a *model.Acl) error
	ListACLsForMemory(ctx context.Context, memoryID string) ([]model.Acl, error)
	ListACLsForPrincipal(ctx context.Context, principal string) ([]model.Acl, error)

	// Delegations.
	InsertDelegation(ctx context.Context, d *model.Delegation) error
	RevokeDelegation(ctx context.Context, id string, revokedAt time.Time) error
	ListDelegationsForDelegate(ctx context.Context, delegateID string) ([]model.Delegation, error)

	// Checkpoints: created-only, never mutated.
	InsertCheckpoint(ctx context.Context, c *model.Checkpoint) error
	GetCheckpoint(ctx context.Context, id string) (*model.Checkpoint, error)
	ListCheckpointsByBranch(ctx context.Context, agentID, branchName string) ([]*model.Checkpoint, error)
	ListBranches(ctx context.Context, agentID string) ([]string, error)

	// Agent profiles (anomaly scoring, spec §4.9).
	GetAgentProfile(ctx context.Context, agentID string) (*model.AgentProfile, error)
	UpsertAgentProfile(ctx context.Context, p *model.AgentProfile) error

	// Watermarks (sync engine, spec §4.10).
	GetWatermark(ctx context.Context, name string) (*model.Watermark, error)
	SetWatermark(ctx context.Context, w *model.Watermark) error

	// Close releases backend resources (connection pools, file handles).
	Close() error
}
