package mcpserver

// Tool input types mirror the corresponding pkg/query Request structs
// field-for-field, but with json tags and plain types an MCP client's
// JSON-schema-driven tool call can populate — the query package's own
// Request types are Go-internal (e.g. typed Strategy/model.MemoryType
// enums), so each tool accepts primitive strings/numbers and converts
// them the way pkg/api's request DTOs do.

type rememberInput struct {
	AgentID       string         `json:"agent_id,omitempty"`
	Content       string         `json:"content"`
	MemoryType    string         `json:"memory_type,omitempty"`
	Scope         string         `json:"scope,omitempty"`
	Importance    float64        `json:"importance,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	SourceType    string         `json:"source_type,omitempty"`
	SourceID      string         `json:"source_id,omitempty"`
	OrgID         string         `json:"org_id,omitempty"`
	ThreadID      string         `json:"thread_id,omitempty"`
	TTLSeconds    int64          `json:"ttl_seconds,omitempty"`
	DecayRate     float64        `json:"decay_rate,omitempty"`
	DecayFunction string         `json:"decay_function,omitempty"`
	CreatedBy     string         `json:"created_by,omitempty"`
	RelatedTo     []string       `json:"related_to,omitempty"`
}

type recallInput struct {
	Query           string   `json:"query,omitempty"`
	AgentID         string   `json:"agent_id,omitempty"`
	Limit           int      `json:"limit,omitempty"`
	MemoryType      string   `json:"memory_type,omitempty"`
	MemoryTypes     []string `json:"memory_types,omitempty"`
	Scope           string   `json:"scope,omitempty"`
	MinImportance   float64  `json:"min_importance,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	OrgID           string   `json:"org_id,omitempty"`
	After           string   `json:"after,omitempty"`
	Before          string   `json:"before,omitempty"`
	Strategy        string   `json:"strategy,omitempty"`
	RRFK            float64  `json:"rrf_k,omitempty"`
	HybridWeights   []float64 `json:"hybrid_weights,omitempty"`
	RecencyHalfLife float64  `json:"recency_half_life,omitempty"`
}

type getMemoryInput struct {
	ID string `json:"id"`
}

type forgetCriteriaInput struct {
	MaxAgeHours        float64  `json:"max_age_hours,omitempty"`
	MinImportanceBelow float64  `json:"min_importance_below,omitempty"`
	MemoryType         string   `json:"memory_type,omitempty"`
	Tags               []string `json:"tags,omitempty"`
}

type forgetInput struct {
	AgentID   string               `json:"agent_id,omitempty"`
	MemoryIDs []string             `json:"memory_ids,omitempty"`
	Criteria  *forgetCriteriaInput `json:"criteria,omitempty"`
	Strategy  string               `json:"strategy,omitempty"`
	DecayRate float64              `json:"decay_rate,omitempty"`
}

type shareInput struct {
	AgentID        string   `json:"agent_id,omitempty"`
	MemoryID       string   `json:"memory_id"`
	TargetAgentIDs []string `json:"target_agent_ids,omitempty"`
	TargetAgentID  string   `json:"target_agent_id,omitempty"`
	Permission     string   `json:"permission"`
	ExpiresInHours float64  `json:"expires_in_hours,omitempty"`
}

type checkpointInput struct {
	AgentID       string         `json:"agent_id,omitempty"`
	ThreadID      string         `json:"thread_id,omitempty"`
	BranchName    string         `json:"branch_name,omitempty"`
	StateSnapshot map[string]any `json:"state_snapshot,omitempty"`
	Label         string         `json:"label,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type branchInput struct {
	AgentID            string `json:"agent_id,omitempty"`
	SourceCheckpointID string `json:"source_checkpoint_id,omitempty"`
	SourceBranch       string `json:"source_branch,omitempty"`
	NewBranchName      string `json:"new_branch_name"`
}

type mergeInput struct {
	AgentID       string   `json:"agent_id,omitempty"`
	SourceBranch  string   `json:"source_branch"`
	TargetBranch  string   `json:"target_branch"`
	Strategy      string   `json:"strategy,omitempty"`
	CherryPickIDs []string `json:"cherry_pick_ids,omitempty"`
}

type replayInput struct {
	AgentID      string `json:"agent_id,omitempty"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
	ThreadID     string `json:"thread_id,omitempty"`
}

type verifyInput struct {
	AgentID  string `json:"agent_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}

type delegateInput struct {
	DelegatorID    string   `json:"delegator_id"`
	DelegateID     string   `json:"delegate_id"`
	Permission     string   `json:"permission"`
	MemoryIDs      []string `json:"memory_ids,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	MaxDepth       int      `json:"max_depth,omitempty"`
	ExpiresInHours float64  `json:"expires_in_hours,omitempty"`
}
