package model

import "time"

// DelegationScopeKind selects which memories a Delegation applies to.
type DelegationScopeKind string

const (
	DelegationScopeAllMemories DelegationScopeKind = "all_memories"
	DelegationScopeByTag       DelegationScopeKind = "by_tag"
	DelegationScopeByMemoryID  DelegationScopeKind = "by_memory_id"
)

// DelegationScope restricts a Delegation to a subset of memories.
type DelegationScope struct {
	Kind      DelegationScopeKind
	Tags      []string
	MemoryIDs []string
}

// Delegation is a transitive capability: delegator -> delegate.
type Delegation struct {
	ID           string
	DelegatorID  string
	DelegateID   string
	Permission   Permission
	Scope        DelegationScope
	MaxDepth     int
	CurrentDepth int
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	RevokedAt    *time.Time
}

// Active reports whether the delegation is neither revoked nor expired.
func (d *Delegation) Active(now time.Time) bool {
	if d.RevokedAt != nil {
		return false
	}
	if d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
		return false
	}
	return true
}

// CoversMemory reports whether the delegation's scope covers a memory
// with the given id and tags.
func (d *Delegation) CoversMemory(memoryID string, tags []string) bool {
	switch d.Scope.Kind {
	case DelegationScopeAllMemories:
		return true
	case DelegationScopeByMemoryID:
		for _, id := range d.Scope.MemoryIDs {
			if id == memoryID {
				return true
			}
		}
		return false
	case DelegationScopeByTag:
		for _, want := range d.Scope.Tags {
			for _, have := range tags {
				if want == have {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}
