package query

import (
	"context"
	"time"

	"github.com/mnemo-db/mnemo/pkg/idgen"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// ShareRequest is the input to Share (spec §4.8.4).
type ShareRequest struct {
	AgentID         string // requester; must hold Admin on the memory
	MemoryID        string
	TargetAgentIDs  []string // takes precedence over TargetAgentID
	TargetAgentID   string
	Permission      model.Permission
	ExpiresInHours  float64
}

// ShareResult is the output of Share.
type ShareResult struct {
	GrantedTo []string
}

// Share grants permission on a memory to one or more target agents
// (spec §4.8.4).
func (e *Engine) Share(ctx context.Context, req ShareRequest) (*ShareResult, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = e.DefaultAgentID
	}
	if err := validateAgentID(agentID); err != nil {
		return nil, err
	}

	record, err := e.Storage.GetMemory(ctx, req.MemoryID)
	if err != nil {
		return nil, err
	}
	allowed, err := e.hasPermission(ctx, record, agentID, model.PermissionAdmin)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, mnemoerr.PermissionDenied("agent %q lacks admin permission on memory %q", agentID, req.MemoryID)
	}

	targets := req.TargetAgentIDs
	if len(targets) == 0 && req.TargetAgentID != "" {
		targets = []string{req.TargetAgentID}
	}
	if len(targets) == 0 {
		return nil, mnemoerr.Validation("share requires target_agent_ids or target_agent_id")
	}

	now := time.Now()
	var expiresAt *time.Time
	if req.ExpiresInHours > 0 {
		t := now.Add(time.Duration(req.ExpiresInHours * float64(time.Hour)))
		expiresAt = &t
	}

	result := &ShareResult{}
	for _, target := range targets {
		acl := &model.Acl{
			ID:         idgen.New(),
			MemoryID:   req.MemoryID,
			Principal:  "agent:" + target,
			Permission: req.Permission,
			GrantedBy:  agentID,
			CreatedAt:  now,
			ExpiresAt:  expiresAt,
		}
		if err := e.Storage.InsertACL(ctx, acl); err != nil {
			return nil, mnemoerr.Storage("inserting acl", err)
		}
		result.GrantedTo = append(result.GrantedTo, target)
	}

	if record.Scope == model.ScopePrivate {
		record.Scope = model.ScopeShared
		record.UpdatedAt = now
		if err := e.Storage.UpdateMemory(ctx, record); err != nil {
			e.logBestEffort(ctx, "share.promote_scope", err)
		}
		if e.Cache != nil {
			e.Cache.Invalidate(record.ID)
		}
	}

	e.emitEvent(ctx, agentID, record.ThreadID, model.EventMemoryShare, map[string]any{
		"memory_id": req.MemoryID, "granted_to": targets, "permission": req.Permission.String(),
	}, nil)

	return result, nil
}
