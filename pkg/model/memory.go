// Package model defines the entities mnemo persists: memories, agent
// events, relations, ACLs, delegations, checkpoints, agent profiles, and
// sync watermarks. Types here are storage-agnostic; every backend in
// pkg/storage converts to and from these structs.
package model

import "time"

// MemoryType classifies the kind of recollection a memory represents.
type MemoryType string

const (
	MemoryTypeEpisodic   MemoryType = "episodic"
	MemoryTypeSemantic   MemoryType = "semantic"
	MemoryTypeProcedural MemoryType = "procedural"
	MemoryTypeWorking    MemoryType = "working"
)

// Scope classifies a memory's visibility class.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeShared  Scope = "shared"
	ScopePublic  Scope = "public"
	ScopeGlobal  Scope = "global"
)

// ConsolidationState tracks a memory's position in the lifecycle.
type ConsolidationState string

const (
	StateRaw          ConsolidationState = "raw"
	StateActive        ConsolidationState = "active"
	StatePending       ConsolidationState = "pending"
	StateConsolidated  ConsolidationState = "consolidated"
	StateArchived      ConsolidationState = "archived"
	StateForgotten     ConsolidationState = "forgotten"
)

// DecayFunction selects the curve used by the decay pass (§4.9).
type DecayFunction string

const (
	DecayExponential DecayFunction = "exponential"
	DecayLinear      DecayFunction = "linear"
	DecayStep        DecayFunction = "step"
	DecayPowerLaw    DecayFunction = "power_law"
)

// SourceType records where a memory's content originated; used by
// conflict resolution's EvidenceWeighted strategy (§4.9).
type SourceType string

const (
	SourceUser        SourceType = "user"
	SourceAgent       SourceType = "agent"
	SourceTool        SourceType = "tool"
	SourceDocument    SourceType = "document"
	SourceWeb         SourceType = "web"
	SourceUnspecified SourceType = "unspecified"
)

// SourceReliability is the fixed map from SourceType to a reliability
// score in [0.3, 0.9] used by EvidenceWeighted conflict resolution.
var SourceReliability = map[SourceType]float64{
	SourceUser:        0.9,
	SourceAgent:       0.6,
	SourceTool:        0.7,
	SourceDocument:    0.8,
	SourceWeb:         0.4,
	SourceUnspecified: 0.3,
}

// MemoryRecord is the primary unit of recall (spec §3).
type MemoryRecord struct {
	ID                 string
	AgentID            string
	Content            string // plaintext, or base64(ciphertext) when encryption is on
	MemoryType         MemoryType
	Scope              Scope
	Importance         float64
	Tags               []string
	Metadata           map[string]any
	Embedding          []float32
	ContentHash        [32]byte
	PrevHash           [32]byte
	HasPrevHash        bool // false for the first record in a chain
	SourceType         SourceType
	SourceID           string
	ConsolidationState ConsolidationState
	AccessCount        int64
	OrgID              string
	ThreadID           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastAccessedAt     time.Time
	ExpiresAt          *time.Time
	DeletedAt          *time.Time
	DecayRate          float64
	DecayFunction      DecayFunction
	CreatedBy          string
	Version            int
	PrevVersionID       string
	Quarantined        bool
	QuarantineReason   string
}

// Clone returns a deep-enough copy for cache storage, so mutating a
// cached record (e.g. bumping AccessCount locally) never corrupts the
// cache's own copy.
func (m *MemoryRecord) Clone() *MemoryRecord {
	if m == nil {
		return nil
	}
	c := *m
	if m.Tags != nil {
		c.Tags = append([]string(nil), m.Tags...)
	}
	if m.Embedding != nil {
		c.Embedding = append([]float32(nil), m.Embedding...)
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		c.ExpiresAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// HasTag reports whether m carries the given tag.
func (m *MemoryRecord) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsVisible reports the base visibility invariant from spec §3(iii),
// ignoring as_of and scope/ACL checks, which the query engine applies
// separately since they need request- and caller-scoped context.
func (m *MemoryRecord) IsVisible(now time.Time) bool {
	if m.DeletedAt != nil {
		return false
	}
	if m.Quarantined {
		return false
	}
	if m.ExpiresAt != nil && m.ExpiresAt.Before(now) {
		return false
	}
	return true
}
