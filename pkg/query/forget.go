package query

import (
	"context"
	"time"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/storage"
)

// ForgetStrategy selects how a resolved memory is forgotten (spec
// §4.8.3).
type ForgetStrategy string

const (
	ForgetSoftDelete ForgetStrategy = "soft_delete"
	ForgetHardDelete ForgetStrategy = "hard_delete"
	ForgetDecay      ForgetStrategy = "decay"
	ForgetArchive    ForgetStrategy = "archive"
	ForgetConsolidate ForgetStrategy = "consolidate"
)

// ForgetCriteria resolves a set of memories to forget when explicit
// ids are not given.
type ForgetCriteria struct {
	MaxAgeHours       float64
	MinImportanceBelow float64
	MemoryType        model.MemoryType
	Tags              []string
}

// ForgetRequest is the input to Forget.
type ForgetRequest struct {
	AgentID    string
	MemoryIDs  []string
	Criteria   *ForgetCriteria
	Strategy   ForgetStrategy
	DecayRate  float64
}

// ForgetResult reports per-id outcomes: forgotten ids, and an error
// per id that could not be forgotten.
type ForgetResult struct {
	Forgotten []string
	Errors    map[string]string
}

// Forget resolves target memories and applies the requested strategy
// to each (spec §4.8.3).
func (e *Engine) Forget(ctx context.Context, req ForgetRequest) (*ForgetResult, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = e.DefaultAgentID
	}
	if err := validateAgentID(agentID); err != nil {
		return nil, err
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = ForgetSoftDelete
	}

	ids := req.MemoryIDs
	if len(ids) == 0 {
		if req.Criteria == nil {
			return nil, mnemoerr.Validation("forget requires memory_ids or a criteria filter")
		}
		resolved, err := e.resolveForgetCriteria(ctx, agentID, req.Criteria)
		if err != nil {
			return nil, err
		}
		ids = resolved
	}

	result := &ForgetResult{Errors: make(map[string]string)}
	now := time.Now()

	for _, id := range ids {
		record, err := e.Storage.GetMemory(ctx, id)
		if err != nil {
			result.Errors[id] = err.Error()
			continue
		}
		allowed, err := e.hasPermission(ctx, record, agentID, model.PermissionWrite)
		if err != nil {
			result.Errors[id] = err.Error()
			continue
		}
		if !allowed {
			result.Errors[id] = mnemoerr.PermissionDenied("agent %q lacks write permission on memory %q", agentID, id).Error()
			continue
		}

		if err := e.applyForgetStrategy(ctx, record, strategy, req.DecayRate, now); err != nil {
			result.Errors[id] = err.Error()
			continue
		}

		e.emitEvent(ctx, agentID, record.ThreadID, model.EventMemoryDelete, map[string]any{"memory_id": id, "strategy": string(strategy)}, nil)
		if e.Cache != nil {
			e.Cache.Invalidate(id)
		}
		result.Forgotten = append(result.Forgotten, id)
	}

	return result, nil
}

func (e *Engine) applyForgetStrategy(ctx context.Context, record *model.MemoryRecord, strategy ForgetStrategy, decayRate float64, now time.Time) error {
	switch strategy {
	case ForgetSoftDelete:
		if err := e.Storage.SoftDeleteMemory(ctx, record.ID, now); err != nil {
			return mnemoerr.Storage("soft-deleting memory", err)
		}
		e.removeFromIndexes(ctx, record.ID)
		return nil

	case ForgetHardDelete:
		if err := e.Storage.HardDeleteMemory(ctx, record.ID); err != nil {
			return mnemoerr.Storage("hard-deleting memory", err)
		}
		e.removeFromIndexes(ctx, record.ID)
		return nil

	case ForgetDecay:
		rate := decayRate
		if rate == 0 {
			rate = 0.1
		}
		record.Importance -= rate
		if record.Importance < 0 {
			record.Importance = 0
		}
		record.UpdatedAt = now
		if err := e.Storage.UpdateMemory(ctx, record); err != nil {
			return mnemoerr.Storage("decaying memory", err)
		}
		return nil

	case ForgetArchive:
		record.ConsolidationState = model.StateArchived
		record.UpdatedAt = now
		if err := e.Storage.UpdateMemory(ctx, record); err != nil {
			return mnemoerr.Storage("archiving memory", err)
		}
		if e.ColdStorage != nil {
			if err := e.ColdStorage.Archive(ctx, record); err != nil {
				e.logBestEffort(ctx, "forget.cold_storage_archive", err)
			}
		}
		return nil

	case ForgetConsolidate:
		record.ConsolidationState = model.StateConsolidated
		record.UpdatedAt = now
		if err := e.Storage.UpdateMemory(ctx, record); err != nil {
			return mnemoerr.Storage("marking memory consolidated", err)
		}
		return nil

	default:
		return mnemoerr.Validation("unknown forget strategy %q", strategy)
	}
}

func (e *Engine) removeFromIndexes(ctx context.Context, id string) {
	if e.VectorIndex != nil {
		e.VectorIndex.Remove(id)
	}
	if e.FullText != nil {
		e.FullText.Remove(id)
		if err := e.FullText.Commit(); err != nil {
			e.logBestEffort(ctx, "forget.fulltext_commit", err)
		}
	}
}

func (e *Engine) resolveForgetCriteria(ctx context.Context, agentID string, c *ForgetCriteria) ([]string, error) {
	filter := storage.MemoryFilter{AgentID: agentID, MemoryType: c.MemoryType, Tags: c.Tags}
	records, err := e.Storage.ListMemories(ctx, filter)
	if err != nil {
		return nil, mnemoerr.Storage("listing memories for forget criteria", err)
	}
	now := time.Now()
	var ids []string
	for _, r := range records {
		if c.MaxAgeHours > 0 {
			ageHours := now.Sub(r.CreatedAt).Hours()
			if ageHours < c.MaxAgeHours {
				continue
			}
		}
		if c.MinImportanceBelow > 0 && r.Importance >= c.MinImportanceBelow {
			continue
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}
