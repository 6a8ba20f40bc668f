package query

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"
	"time"

	"github.com/mnemo-db/mnemo/pkg/fusion"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// vectorCandidates ranks memories by the "semantic" strategy: ANN
// search against the vector index, restricted to the accessible set.
func (e *Engine) vectorCandidates(query []float32, limit int, predicate func(string) bool) []fusion.RankedItem {
	if e.VectorIndex == nil || query == nil {
		return nil
	}
	results, err := e.VectorIndex.FilteredSearch(query, limit, predicate)
	if err != nil || results == nil {
		return nil
	}
	out := make([]fusion.RankedItem, len(results))
	for i, r := range results {
		out[i] = fusion.RankedItem{ID: r.ID}
	}
	return out
}

// lexicalCandidates ranks memories by the "lexical" strategy: BM25
// full-text search.
func (e *Engine) lexicalCandidates(query string, limit int) []fusion.RankedItem {
	if e.FullText == nil || query == "" {
		return nil
	}
	results := e.FullText.Search(query, limit)
	out := make([]fusion.RankedItem, len(results))
	for i, r := range results {
		out[i] = fusion.RankedItem{ID: r.ID}
	}
	return out
}

// graphCandidates expands seeds two hops out over the relation graph
// (spec §4.8.2 "graph" strategy).
func (e *Engine) graphCandidates(ctx context.Context, seeds []string) []fusion.RankedItem {
	if len(seeds) == 0 {
		return nil
	}
	edgesOf := func(memoryID string) []model.Relation {
		rels, err := e.Storage.ListRelationsForMemory(ctx, memoryID)
		if err != nil {
			return nil
		}
		return rels
	}
	return fusion.Expand(seeds, edgesOf)
}

// hybridCandidates fuses semantic, lexical, recency, and graph signals
// per spec §4.7/§4.8.2's "hybrid"/"auto" strategy.
func (e *Engine) hybridCandidates(ctx context.Context, queryVector []float32, req RecallRequest, limit int, predicate func(string) bool) []fusion.Fused {
	oversample := 3 * limit
	if oversample < 30 {
		oversample = 30
	}

	vectorItems := e.vectorCandidates(queryVector, oversample, predicate)
	lexicalItems := e.lexicalCandidates(req.Query, oversample)
	graphItems := e.graphCandidates(ctx, seedIDs(vectorItems))

	weights := req.HybridWeights
	vw, lw, gw := 1.0, 1.0, 0.5
	if len(weights) >= 3 {
		vw, lw = weights[0], weights[1]
		if len(weights) >= 4 {
			gw = weights[3]
		}
	}

	lists := []fusion.List{
		{Items: vectorItems, Weight: vw},
		{Items: lexicalItems, Weight: lw},
		{Items: graphItems, Weight: gw},
	}
	fused := fusion.RRF(lists, req.RRFK)

	// Recency is not itself a ranked list — it rescales the fused score
	// per memory, matching spec §4.7's "recency as a multiplicative
	// adjustment on top of the rank-fused score" treatment.
	halfLife := req.RecencyHalfLife
	for i := range fused {
		record, err := e.fetchMemory(ctx, fused[i].ID)
		if err != nil {
			continue
		}
		r := fusion.Recency(record.CreatedAt, time.Now(), halfLife)
		fused[i].Score *= 0.5 + 0.5*r
	}
	return fused
}

// exactCandidates implements the "exact" strategy: memories whose
// content matches req.Query literally (case-insensitive substring),
// restricted to the accessible set and bypassing fusion entirely.
func (e *Engine) exactCandidates(ctx context.Context, agentID string, req RecallRequest, accessible map[string]bool) ([]string, error) {
	needle := strings.ToLower(req.Query)
	var out []string
	// accessible already spans every memory agentID may see, not just
	// ones it owns (spec §4.8.2 step 1 / ListAccessibleMemoryIDs covers
	// owned, public/global, and ACL-granted records), so the exact
	// strategy must walk it directly rather than an owner-scoped list.
	for id := range accessible {
		record, err := e.fetchMemory(ctx, id)
		if err != nil {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(record.Content), needle) {
			continue
		}
		out = append(out, record.ID)
	}
	sort.Strings(out) // ties (all score 1.0) broken by id, per spec §4.7.
	return out, nil
}

// passesFilters applies the predicate from spec §4.8.2 in the order the
// spec lists it.
func (e *Engine) passesFilters(ctx context.Context, record *model.MemoryRecord, req RecallRequest, agentID string) bool {
	now := time.Now()

	if record.DeletedAt != nil && req.AsOf == nil {
		return false
	}
	if record.ExpiresAt != nil && record.ExpiresAt.Before(now) {
		return false
	}
	if record.Quarantined {
		return false
	}

	if req.Scope != "" && record.Scope != req.Scope {
		return false
	}
	if len(req.MemoryTypes) > 0 {
		match := false
		for _, t := range req.MemoryTypes {
			if record.MemoryType == t {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	} else if req.MemoryType != "" && record.MemoryType != req.MemoryType {
		return false
	}
	if req.MinImportance > 0 && record.Importance < req.MinImportance {
		return false
	}
	if len(req.Tags) > 0 {
		matchAny := false
		for _, tag := range req.Tags {
			if record.HasTag(tag) {
				matchAny = true
				break
			}
		}
		if !matchAny {
			return false
		}
	}
	if req.OrgID != "" && record.OrgID != req.OrgID {
		return false
	}
	if req.Temporal != nil {
		createdAtStr := nowRFC3339(record.CreatedAt)
		if req.Temporal.After != "" && createdAtStr < req.Temporal.After {
			return false
		}
		if req.Temporal.Before != "" && createdAtStr > req.Temporal.Before {
			return false
		}
	}
	if req.AsOf != nil {
		if record.CreatedAt.After(*req.AsOf) {
			return false
		}
		if record.DeletedAt != nil && !record.DeletedAt.After(*req.AsOf) {
			return false
		}
	}

	switch record.Scope {
	case model.ScopePublic, model.ScopeGlobal:
		return true
	case model.ScopePrivate:
		return record.AgentID == agentID
	default: // shared: owner, or an active ACL/delegation granting at least Read.
		if record.AgentID == agentID {
			return true
		}
		allowed, err := e.hasPermission(ctx, record, agentID, model.PermissionRead)
		if err != nil {
			return false
		}
		return allowed
	}
}

// decryptRecordInPlace restores record.Content to plaintext when
// encryption is configured (spec §4.8.2 step 7). A decryption failure
// leaves the content as-is and is the caller's responsibility to log;
// it is not treated as fatal to the surrounding recall.
func decryptRecordInPlace(cipher interface{ Decrypt([]byte) ([]byte, error) }, record *model.MemoryRecord) {
	raw, err := base64.StdEncoding.DecodeString(record.Content)
	if err != nil {
		return
	}
	plaintext, err := cipher.Decrypt(raw)
	if err != nil {
		return
	}
	record.Content = string(plaintext)
}
