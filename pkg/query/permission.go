package query

import (
	"context"
	"time"

	"github.com/mnemo-db/mnemo/pkg/model"
)

// hasPermission reports whether agentID holds at least `required`
// permission on record: the owner always satisfies every level; absent
// that, an active ACL or an active, scope-covering delegation granting
// at least `required` does.
func (e *Engine) hasPermission(ctx context.Context, record *model.MemoryRecord, agentID string, required model.Permission) (bool, error) {
	if record.AgentID == agentID {
		return true, nil
	}
	now := time.Now()

	acls, err := e.Storage.ListACLsForMemory(ctx, record.ID)
	if err != nil {
		return false, err
	}
	principal := "agent:" + agentID
	for _, acl := range acls {
		if acl.Principal == principal && acl.Active(now) && acl.Permission.Satisfies(required) {
			return true, nil
		}
	}

	delegations, err := e.Storage.ListDelegationsForDelegate(ctx, agentID)
	if err != nil {
		return false, err
	}
	for _, d := range delegations {
		if d.Active(now) && d.Permission.Satisfies(required) && d.CoversMemory(record.ID, record.Tags) {
			return true, nil
		}
	}
	return false, nil
}
