package query

import (
	"context"
	"time"

	"github.com/mnemo-db/mnemo/pkg/idgen"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// DelegateRequest is the input to Delegate (spec §4.8.10). For a
// by_memory_id scope, Delegate verifies that the delegator holds
// Delegate permission on every memory named, so every front end that
// calls it gets the check.
type DelegateRequest struct {
	DelegatorID    string
	DelegateID     string
	Permission     string // parsed via model.ParsePermission
	MemoryIDs      []string
	Tags           []string
	MaxDepth       int
	ExpiresInHours float64
}

// Delegate grants a transitive capability from one agent to another,
// scoped by memory id, tag, or unrestricted (spec §4.8.10).
func (e *Engine) Delegate(ctx context.Context, req DelegateRequest) (*model.Delegation, error) {
	if err := validateAgentID(req.DelegatorID); err != nil {
		return nil, err
	}
	if err := validateAgentID(req.DelegateID); err != nil {
		return nil, err
	}
	permission, ok := model.ParsePermission(req.Permission)
	if !ok {
		return nil, mnemoerr.Validation("unrecognized permission %q", req.Permission)
	}
	for _, id := range req.MemoryIDs {
		record, err := e.Storage.GetMemory(ctx, id)
		if err != nil {
			return nil, err
		}
		allowed, err := e.hasPermission(ctx, record, req.DelegatorID, model.PermissionDelegate)
		if err != nil {
			return nil, mnemoerr.Storage("checking delegate permission", err)
		}
		if !allowed {
			return nil, mnemoerr.PermissionDenied("agent %q lacks delegate permission on memory %q", req.DelegatorID, id)
		}
	}

	var scope model.DelegationScope
	switch {
	case len(req.MemoryIDs) > 0:
		scope = model.DelegationScope{Kind: model.DelegationScopeByMemoryID, MemoryIDs: req.MemoryIDs}
	case len(req.Tags) > 0:
		scope = model.DelegationScope{Kind: model.DelegationScopeByTag, Tags: req.Tags}
	default:
		scope = model.DelegationScope{Kind: model.DelegationScopeAllMemories}
	}

	now := time.Now()
	var expiresAt *time.Time
	if req.ExpiresInHours > 0 {
		t := now.Add(time.Duration(req.ExpiresInHours * float64(time.Hour)))
		expiresAt = &t
	}

	delegation := &model.Delegation{
		ID:           idgen.New(),
		DelegatorID:  req.DelegatorID,
		DelegateID:   req.DelegateID,
		Permission:   permission,
		Scope:        scope,
		MaxDepth:     req.MaxDepth,
		CurrentDepth: 0,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
	}
	if err := e.Storage.InsertDelegation(ctx, delegation); err != nil {
		return nil, mnemoerr.Storage("inserting delegation", err)
	}
	return delegation, nil
}
