package query

import (
	"context"
	"time"

	"github.com/mnemo-db/mnemo/pkg/fusion"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// Strategy selects a recall algorithm (spec §4.8.2).
type Strategy string

const (
	StrategyAuto     Strategy = "auto"
	StrategyHybrid   Strategy = "hybrid"
	StrategySemantic Strategy = "semantic"
	StrategyLexical  Strategy = "lexical"
	StrategyGraph    Strategy = "graph"
	StrategyExact    Strategy = "exact"
)

// TemporalRange bounds created_at by RFC3339 lexicographic comparison.
type TemporalRange struct {
	After  string
	Before string
}

// RecallRequest is the input to Recall (spec §4.8.2).
type RecallRequest struct {
	Query            string
	AgentID          string
	Limit            int
	MemoryType       model.MemoryType
	MemoryTypes      []model.MemoryType
	Scope            model.Scope
	MinImportance    float64
	Tags             []string
	OrgID            string
	Temporal         *TemporalRange
	AsOf             *time.Time
	Strategy         Strategy
	RRFK             float64
	HybridWeights    []float64 // [vector, bm25, recency, graph]
	RecencyHalfLife  float64
}

// ScoredMemory pairs a record with its fused retrieval score.
type ScoredMemory struct {
	Record *model.MemoryRecord
	Score  float64
}

// RecallResult is the output of Recall.
type RecallResult struct {
	Memories []ScoredMemory
	Total    int
}

const maxRecallLimit = 100

// Recall runs the nine-step algorithm of spec §4.8.2.
func (e *Engine) Recall(ctx context.Context, req RecallRequest) (*RecallResult, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = e.DefaultAgentID
	}
	if err := validateAgentID(agentID); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > maxRecallLimit {
		limit = maxRecallLimit
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyAuto
	}

	// (1) permission-safe id set.
	accessibleIDs, err := e.Storage.ListAccessibleMemoryIDs(ctx, agentID, 10000)
	if err != nil {
		return nil, mnemoerr.Storage("listing accessible memory ids", err)
	}
	accessible := make(map[string]bool, len(accessibleIDs))
	for _, id := range accessibleIDs {
		accessible[id] = true
	}
	predicate := func(id string) bool { return accessible[id] }

	// (2) embed the query lazily — only strategies that need ANN do.
	needsEmbedding := strategy != StrategyLexical && strategy != StrategyExact
	var queryVector []float32
	if needsEmbedding && e.Embedder != nil && req.Query != "" {
		v, err := e.Embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, mnemoerr.Embedding("embedding recall query", err)
		}
		queryVector = v
	}

	// (3) produce per-strategy ranked lists, then fuse.
	var fused []fusion.Fused
	var exactIDs []string // exact strategy bypasses fusion entirely.

	switch strategy {
	case StrategyExact:
		exactIDs, err = e.exactCandidates(ctx, agentID, req, accessible)
		if err != nil {
			return nil, err
		}
	case StrategySemantic:
		fused = fusion.RRF([]fusion.List{{Items: e.vectorCandidates(queryVector, limit, predicate), Weight: 1}}, req.RRFK)
	case StrategyLexical:
		fused = fusion.RRF([]fusion.List{{Items: e.lexicalCandidates(req.Query, limit)}}, req.RRFK)
	case StrategyGraph:
		seeds := e.vectorCandidates(queryVector, 3*limit, predicate)
		graphItems := e.graphCandidates(ctx, seedIDs(seeds))
		fused = fusion.RRF([]fusion.List{{Items: seeds, Weight: 1}, {Items: graphItems, Weight: 1}}, req.RRFK)
	default: // hybrid, auto
		fused = e.hybridCandidates(ctx, queryVector, req, limit, predicate)
	}

	candidateIDs := exactIDs
	if candidateIDs == nil {
		candidateIDs = make([]string, len(fused))
		for i, f := range fused {
			candidateIDs[i] = f.ID
		}
	}
	scoreOf := make(map[string]float64, len(fused))
	for _, f := range fused {
		scoreOf[f.ID] = f.Score
	}

	// (4) fetch cache-first, apply passes_filters, collect up to limit.
	var results []ScoredMemory
	for _, id := range candidateIDs {
		record, err := e.fetchMemory(ctx, id)
		if err != nil {
			continue
		}
		if !e.passesFilters(ctx, record, req, agentID) {
			continue
		}
		score := 1.0
		if strategy != StrategyExact {
			score = scoreOf[id]
		}
		results = append(results, ScoredMemory{Record: record, Score: score})
	}

	// (5) sort descending, truncate.
	sortScoredDescending(results)
	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	// (6)-(8) touch_memory, decrypt, MemoryRead event — all best-effort.
	for i := range results {
		e.postRecallSideEffects(ctx, agentID, results[i].Record)
	}

	return &RecallResult{Memories: results, Total: total}, nil
}

func (e *Engine) fetchMemory(ctx context.Context, id string) (*model.MemoryRecord, error) {
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(id); ok {
			return cached, nil
		}
	}
	record, err := e.Storage.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Cache != nil {
		e.Cache.Put(id, record)
	}
	return record, nil
}

func (e *Engine) postRecallSideEffects(ctx context.Context, agentID string, record *model.MemoryRecord) {
	if err := e.Storage.TouchMemory(ctx, record.ID, time.Now()); err != nil {
		e.logBestEffort(ctx, "recall.touch_memory", err)
	}
	if e.Cipher != nil {
		decryptRecordInPlace(e.Cipher, record)
	}
	e.emitEvent(ctx, agentID, record.ThreadID, model.EventMemoryRead, map[string]any{"memory_id": record.ID}, nil)
}

func seedIDs(items []fusion.RankedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func sortScoredDescending(results []ScoredMemory) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
