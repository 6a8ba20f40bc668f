package lifecycle

import (
	"context"
	"math"
	"time"

	"github.com/mnemo-db/mnemo/pkg/fusion"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// DefaultConflictSimilarityThreshold is the ANN cosine-similarity
// cutoff above which two memories are considered conflicting (spec
// §4.9).
const DefaultConflictSimilarityThreshold = 0.9

func (m *Manager) conflictSimilarityThreshold() float64 {
	if m.ConflictSimilarityThreshold > 0 {
		return m.ConflictSimilarityThreshold
	}
	return DefaultConflictSimilarityThreshold
}

// ConflictPair is a candidate pair of memories that appear to
// contradict each other (spec §4.9).
type ConflictPair struct {
	FirstID    string
	SecondID   string
	Similarity float64
}

// pairKey renders a sorted-id tuple so the same pair never surfaces
// twice regardless of discovery order (spec §4.9's dedup rule).
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

// DetectConflicts scans an agent's non-quarantined, embedded memories
// for near-duplicate-but-different content (spec §4.9).
func (m *Manager) DetectConflicts(ctx context.Context, agentID string) ([]ConflictPair, error) {
	if m.VectorIndex == nil {
		return nil, nil
	}
	records, err := m.Storage.ListMemories(ctx, m.memoryFilter(agentID))
	if err != nil {
		return nil, mnemoerr.Storage("listing memories for conflict pass", err)
	}
	byID := make(map[string]*model.MemoryRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	seen := make(map[string]bool)
	var pairs []ConflictPair
	threshold := m.conflictSimilarityThreshold()

	for _, r := range records {
		if r.Quarantined || r.Embedding == nil {
			continue
		}
		results, err := m.VectorIndex.Search(r.Embedding, 21) // self + top 20.
		if err != nil {
			continue
		}
		for _, res := range results {
			if res.ID == r.ID {
				continue
			}
			candidate, ok := byID[res.ID]
			if !ok || candidate.AgentID != r.AgentID || candidate.DeletedAt != nil || candidate.Quarantined {
				continue
			}
			if candidate.Content == r.Content {
				continue
			}
			similarity := 1 - res.Distance
			if similarity < threshold {
				continue
			}
			key := pairKey(r.ID, candidate.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, ConflictPair{FirstID: r.ID, SecondID: candidate.ID, Similarity: similarity})
		}
	}
	return pairs, nil
}

// ConflictResolution selects how ResolveConflict picks a winner
// between a conflicting pair (spec §4.9).
type ConflictResolution string

const (
	ResolveKeepNewest            ConflictResolution = "keep_newest"
	ResolveKeepHighestImportance ConflictResolution = "keep_highest_importance"
	ResolveMergeIntoSemantic     ConflictResolution = "merge_into_semantic"
	ResolveManual                ConflictResolution = "manual"
	ResolveEvidenceWeighted      ConflictResolution = "evidence_weighted"
)

// ConflictResolutionResult names the surviving memory and, when one
// was soft-deleted or merged away, the loser.
type ConflictResolutionResult struct {
	WinnerID       string
	LoserID        string
	NewMemoryID    string // set only by merge_into_semantic
	DeletedLoserID bool
}

// ResolveConflict applies the chosen strategy to a detected pair (spec
// §4.9).
func (m *Manager) ResolveConflict(ctx context.Context, pair ConflictPair, strategy ConflictResolution) (*ConflictResolutionResult, error) {
	first, err := m.Storage.GetMemory(ctx, pair.FirstID)
	if err != nil {
		return nil, err
	}
	second, err := m.Storage.GetMemory(ctx, pair.SecondID)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case ResolveManual:
		return &ConflictResolutionResult{WinnerID: first.ID, LoserID: second.ID}, nil

	case ResolveKeepNewest:
		winner, loser := first, second
		if second.CreatedAt.After(first.CreatedAt) {
			winner, loser = second, first
		}
		return m.softDeleteLoser(ctx, winner, loser)

	case ResolveKeepHighestImportance:
		winner, loser := first, second
		if second.Importance > first.Importance {
			winner, loser = second, first
		}
		return m.softDeleteLoser(ctx, winner, loser)

	case ResolveEvidenceWeighted:
		now := time.Now()
		scoreFirst := evidenceScore(first, now, pair.Similarity)
		scoreSecond := evidenceScore(second, now, pair.Similarity)
		winner, loser := first, second
		if scoreSecond > scoreFirst {
			winner, loser = second, first
		}
		return m.softDeleteLoser(ctx, winner, loser)

	case ResolveMergeIntoSemantic:
		newID, err := m.synthesize(ctx, first.AgentID, []*model.MemoryRecord{first, second})
		if err != nil {
			return nil, err
		}
		now := time.Now()
		for _, r := range []*model.MemoryRecord{first, second} {
			if err := m.Storage.SoftDeleteMemory(ctx, r.ID, now); err != nil {
				m.logBestEffort(ctx, "resolve_conflict.merge_soft_delete", err)
				continue
			}
			m.removeFromIndexes(ctx, r.ID)
		}
		return &ConflictResolutionResult{NewMemoryID: newID, DeletedLoserID: true}, nil

	default:
		return nil, mnemoerr.Validation("unrecognized conflict resolution strategy %q", strategy)
	}
}

func (m *Manager) softDeleteLoser(ctx context.Context, winner, loser *model.MemoryRecord) (*ConflictResolutionResult, error) {
	now := time.Now()
	if err := m.Storage.SoftDeleteMemory(ctx, loser.ID, now); err != nil {
		return nil, mnemoerr.Storage("soft-deleting conflict loser", err)
	}
	m.removeFromIndexes(ctx, loser.ID)
	return &ConflictResolutionResult{WinnerID: winner.ID, LoserID: loser.ID, DeletedLoserID: true}, nil
}

// evidenceScore computes the composite 0.3·reliability + 0.2·recency +
// 0.2·usage + 0.2·importance + 0.1·similarity score spec §4.9 defines
// for EvidenceWeighted resolution. Usage is access_count compressed
// with the same ln(1+access_count) scale EffectiveImportance uses,
// normalized to [0,1] via a fixed soft cap so one very-accessed memory
// can't single-handedly dominate the composite.
func evidenceScore(r *model.MemoryRecord, now time.Time, similarity float64) float64 {
	reliability, ok := model.SourceReliability[r.SourceType]
	if !ok {
		reliability = model.SourceReliability[model.SourceUnspecified]
	}
	recency := fusion.Recency(r.CreatedAt, now, fusion.DefaultHalfLifeHours)
	usage := math.Log(1+float64(r.AccessCount)) / math.Log(101) // access_count=100 saturates near 1.0
	if usage > 1 {
		usage = 1
	}
	return 0.3*reliability + 0.2*recency + 0.2*usage + 0.2*r.Importance + 0.1*similarity
}
