package query

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/mnemo-db/mnemo/pkg/hashchain"
	"github.com/mnemo-db/mnemo/pkg/idgen"
	"github.com/mnemo-db/mnemo/pkg/lifecycle"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// RememberRequest is the input to Remember (spec §4.8.1).
type RememberRequest struct {
	AgentID       string
	Content       string
	MemoryType    model.MemoryType
	Scope         model.Scope
	Importance    float64
	Tags          []string
	Metadata      map[string]any
	SourceType    model.SourceType
	SourceID      string
	OrgID         string
	ThreadID      string
	TTLSeconds    int64
	DecayRate     float64
	DecayFunction model.DecayFunction
	CreatedBy     string
	RelatedTo     []string
}

// RememberResult is the output of Remember.
type RememberResult struct {
	ID          string
	ContentHash string // hex-encoded
}

// Remember inserts a new memory following the fourteen steps of spec
// §4.8.1, in order.
func (e *Engine) Remember(ctx context.Context, req RememberRequest) (*RememberResult, error) {
	// (1) validate.
	if req.Content == "" {
		return nil, mnemoerr.Validation("content must not be empty")
	}
	if req.Importance < 0 || req.Importance > 1 {
		return nil, mnemoerr.Validation("importance must be in [0, 1]")
	}
	if err := validateAgentID(req.AgentID); err != nil {
		return nil, err
	}

	// (2) embed content (plaintext, before any encryption).
	var vector []float32
	if e.Embedder != nil {
		v, err := e.Embedder.Embed(ctx, req.Content)
		if err != nil {
			return nil, mnemoerr.Embedding("embedding memory content", err)
		}
		vector = v
	}

	// (3) content hash + chain hash.
	id := idgen.New()
	now := time.Now()
	createdAtStr := nowRFC3339(now)
	contentHash := hashchain.ContentHash(req.Content, req.AgentID, createdAtStr)

	var prevHash [32]byte
	hasPrev := false
	if prevContentHash, err := e.Storage.GetLatestMemoryHash(ctx, req.AgentID, req.ThreadID); err == nil {
		prevHash = hashchain.ChainHash(contentHash, &prevContentHash)
		hasPrev = true
	} else if mnemoerr.KindOf(err) != mnemoerr.KindNotFound {
		e.logBestEffort(ctx, "remember.get_latest_memory_hash", err)
	}

	// (4) expires_at from ttl.
	var expiresAt *time.Time
	if req.TTLSeconds > 0 {
		t := now.Add(time.Duration(req.TTLSeconds) * time.Second)
		expiresAt = &t
	}

	// (5) assemble with defaults.
	memoryType := req.MemoryType
	if memoryType == "" {
		memoryType = model.MemoryTypeEpisodic
	}
	scope := req.Scope
	if scope == "" {
		scope = model.ScopePrivate
	}
	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = model.SourceUnspecified
	}
	decayFunction := req.DecayFunction
	if decayFunction == "" {
		decayFunction = model.DecayExponential
	}

	record := &model.MemoryRecord{
		ID:                 id,
		AgentID:            req.AgentID,
		Content:            req.Content,
		MemoryType:         memoryType,
		Scope:              scope,
		Importance:         req.Importance,
		Tags:               req.Tags,
		Metadata:           req.Metadata,
		Embedding:          vector,
		ContentHash:        contentHash,
		PrevHash:           prevHash,
		HasPrevHash:        hasPrev,
		SourceType:         sourceType,
		SourceID:           req.SourceID,
		ConsolidationState: model.StateRaw,
		OrgID:              req.OrgID,
		ThreadID:           req.ThreadID,
		CreatedAt:          now,
		UpdatedAt:          now,
		ExpiresAt:          expiresAt,
		DecayRate:          req.DecayRate,
		DecayFunction:      decayFunction,
		CreatedBy:          req.CreatedBy,
		Version:            1,
		Quarantined:        false,
	}

	// (6) encrypt content after embedding, before storage.
	if e.Cipher != nil {
		ciphertext, err := e.Cipher.Encrypt([]byte(req.Content))
		if err != nil {
			return nil, mnemoerr.Internal("encrypting memory content", err)
		}
		record.Content = base64.StdEncoding.EncodeToString(ciphertext)
	}

	// (7) insert into storage.
	if err := e.Storage.InsertMemory(ctx, record); err != nil {
		return nil, mnemoerr.Storage("inserting memory", err)
	}

	// (8) vector index.
	if e.VectorIndex != nil && vector != nil {
		if err := e.VectorIndex.Add(id, vector); err != nil {
			e.logBestEffort(ctx, "remember.vector_index_add", err)
		}
	}

	// (9) full-text index + commit.
	if e.FullText != nil {
		e.FullText.Add(id, record.Content)
		if err := e.FullText.Commit(); err != nil {
			e.logBestEffort(ctx, "remember.fulltext_commit", err)
		}
	}

	// (10) anomaly scoring.
	profile, profileErr := e.Storage.GetAgentProfile(ctx, req.AgentID)
	if profileErr != nil {
		if mnemoerr.KindOf(profileErr) != mnemoerr.KindNotFound {
			e.logBestEffort(ctx, "remember.get_agent_profile", profileErr)
		}
		profile = nil
	}
	score, reasons := lifecycle.AnomalyScore(profile, req.Importance, len(req.Content), now)
	if score >= lifecycle.QuarantineThreshold {
		record.Quarantined = true
		record.QuarantineReason = lifecycle.QuarantineReason(reasons)
		if err := e.Storage.UpdateMemory(ctx, record); err != nil {
			e.logBestEffort(ctx, "remember.quarantine_update", err)
		}
	}

	// (11) update agent profile.
	if profile == nil {
		profile = &model.AgentProfile{AgentID: req.AgentID}
	}
	profile.Update(req.Importance, len(req.Content), now)
	if err := e.Storage.UpsertAgentProfile(ctx, profile); err != nil {
		e.logBestEffort(ctx, "remember.upsert_agent_profile", err)
	}

	// (12) related_to relations.
	for _, relatedID := range req.RelatedTo {
		if relatedID == "" {
			continue
		}
		rel := &model.Relation{
			ID: idgen.New(), FromID: id, ToID: relatedID, Type: model.RelationRelatedTo,
			Weight: 1.0, CreatedAt: now,
		}
		if err := e.Storage.InsertRelation(ctx, rel); err != nil {
			e.logBestEffort(ctx, "remember.insert_relation", err)
		}
	}

	// (13) MemoryWrite event.
	e.emitEvent(ctx, req.AgentID, req.ThreadID, model.EventMemoryWrite, map[string]any{"memory_id": id}, vector)

	// (14) populate cache.
	if e.Cache != nil {
		e.Cache.Put(id, record)
	}

	return &RememberResult{ID: id, ContentHash: hex.EncodeToString(contentHash[:])}, nil
}

// emitEvent inserts an AgentEvent chained within (agent, thread),
// logging failure rather than propagating it (spec §7: event
// insertion is a non-fatal side effect).
func (e *Engine) emitEvent(ctx context.Context, agentID, threadID string, eventType model.EventType, payload map[string]any, embedding []float32) {
	now := time.Now()
	id := idgen.New()

	// Event content hashes cover the event's own identity fields; the
	// hashed source data is operation-specific and not separately
	// persisted (spec §4.4), so the id/type/timestamp triple stands in
	// for "content".
	contentHash := hashchain.ContentHash(string(eventType)+id, agentID, nowRFC3339(now))

	var prevHash [32]byte
	hasPrev := false
	if prevContentHash, err := e.Storage.GetLatestEventHash(ctx, agentID, threadID); err == nil {
		prevHash = hashchain.ChainHash(contentHash, &prevContentHash)
		hasPrev = true
	} else if mnemoerr.KindOf(err) != mnemoerr.KindNotFound {
		e.logBestEffort(ctx, "emit_event.get_latest_event_hash", err)
	}

	event := &model.AgentEvent{
		ID: id, AgentID: agentID, ThreadID: threadID, EventType: eventType, Payload: payload,
		Timestamp: now, ContentHash: contentHash, PrevHash: prevHash, HasPrevHash: hasPrev,
		Embedding: embedding,
	}
	if err := e.Storage.InsertEvent(ctx, event); err != nil {
		e.logBestEffort(ctx, "emit_event.insert", err)
	}
}
