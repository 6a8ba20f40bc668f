package lifecycle

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mnemo-db/mnemo/pkg/hashchain"
	"github.com/mnemo-db/mnemo/pkg/idgen"
	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// DefaultMinClusterSize is the consolidation pass's default minimum
// cluster size (spec §4.9's min_cluster_size).
const DefaultMinClusterSize = 2

func (m *Manager) minClusterSize() int {
	if m.MinClusterSize > 0 {
		return m.MinClusterSize
	}
	return DefaultMinClusterSize
}

// ConsolidationResult tallies a pass's outcome: one entry per cluster
// that met the minimum size, naming the new Semantic memory and the
// originals it was built from.
type ConsolidationResult struct {
	Created []ConsolidatedCluster
	Errors  map[string]error
}

// ConsolidatedCluster is one synthesized Semantic memory and the
// originals that fed it.
type ConsolidatedCluster struct {
	NewMemoryID string
	SourceIDs   []string
}

// ConsolidationPass clusters an agent's Raw/Active episodic memories
// by tag overlap and synthesizes a Semantic memory per cluster of
// sufficient size (spec §4.9).
func (m *Manager) ConsolidationPass(ctx context.Context, agentID string) (*ConsolidationResult, error) {
	filter := m.memoryFilter(agentID)
	filter.MemoryType = model.MemoryTypeEpisodic
	records, err := m.Storage.ListMemories(ctx, filter)
	if err != nil {
		return nil, mnemoerr.Storage("listing memories for consolidation pass", err)
	}

	var candidates []*model.MemoryRecord
	for _, r := range records {
		if r.ConsolidationState == model.StateRaw || r.ConsolidationState == model.StateActive {
			candidates = append(candidates, r)
		}
	}

	clusters := clusterByTagOverlap(candidates)

	result := &ConsolidationResult{Errors: make(map[string]error)}
	for _, cluster := range clusters {
		if len(cluster) < m.minClusterSize() {
			continue
		}
		newID, err := m.synthesize(ctx, agentID, cluster)
		if err != nil {
			for _, r := range cluster {
				result.Errors[r.ID] = err
			}
			continue
		}
		ids := make([]string, len(cluster))
		for i, r := range cluster {
			ids[i] = r.ID
		}
		result.Created = append(result.Created, ConsolidatedCluster{NewMemoryID: newID, SourceIDs: ids})
	}
	return result, nil
}

// clusterByTagOverlap implements spec §4.9's greedy clustering: a
// record joins the first existing cluster containing any record that
// shares at least one of its tags, else starts a new cluster.
func clusterByTagOverlap(records []*model.MemoryRecord) [][]*model.MemoryRecord {
	var clusters [][]*model.MemoryRecord
	for _, r := range records {
		placed := false
		for i, cluster := range clusters {
			if clusterSharesTag(cluster, r) {
				clusters[i] = append(cluster, r)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []*model.MemoryRecord{r})
		}
	}
	return clusters
}

func clusterSharesTag(cluster []*model.MemoryRecord, r *model.MemoryRecord) bool {
	for _, member := range cluster {
		for _, tag := range r.Tags {
			if member.HasTag(tag) {
				return true
			}
		}
	}
	return false
}

// synthesize builds and persists the new Semantic memory for a
// cluster, indexes it, relates it to every original via
// "consolidated_from", and marks the originals Consolidated.
func (m *Manager) synthesize(ctx context.Context, agentID string, cluster []*model.MemoryRecord) (string, error) {
	now := time.Now()
	content, importance, tags, decaySum := summarizeCluster(cluster)

	id := idgen.New()
	createdAtStr := nowRFC3339Z(now)
	contentHash := hashchain.ContentHash(content, agentID, createdAtStr)

	var prevHash [32]byte
	hasPrev := false
	if prevContentHash, err := m.Storage.GetLatestMemoryHash(ctx, agentID, ""); err == nil {
		prevHash = hashchain.ChainHash(contentHash, &prevContentHash)
		hasPrev = true
	}

	newMemory := &model.MemoryRecord{
		ID:                 id,
		AgentID:            agentID,
		Content:            content,
		MemoryType:         model.MemoryTypeSemantic,
		Scope:              model.ScopePrivate,
		Importance:         importance,
		Tags:               tags,
		ContentHash:        contentHash,
		PrevHash:           prevHash,
		HasPrevHash:        hasPrev,
		SourceType:         model.SourceAgent,
		ConsolidationState: model.StateConsolidated,
		DecayRate:          decaySum,
		DecayFunction:      model.DecayExponential,
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            1,
	}
	if err := m.Storage.InsertMemory(ctx, newMemory); err != nil {
		return "", mnemoerr.Storage("inserting consolidated memory", err)
	}
	if m.FullText != nil {
		m.FullText.Add(id, content)
		if err := m.FullText.Commit(); err != nil {
			m.logBestEffort(ctx, "consolidation_pass.fulltext_commit", err)
		}
	}

	for _, original := range cluster {
		rel := &model.Relation{
			ID: idgen.New(), FromID: id, ToID: original.ID,
			Type: model.RelationConsolidatedFrom, Weight: 1.0, CreatedAt: now,
		}
		if err := m.Storage.InsertRelation(ctx, rel); err != nil {
			m.logBestEffort(ctx, "consolidation_pass.insert_relation", err)
		}
		original.ConsolidationState = model.StateConsolidated
		original.UpdatedAt = now
		if err := m.Storage.UpdateMemory(ctx, original); err != nil {
			m.logBestEffort(ctx, "consolidation_pass.mark_consolidated", err)
		}
	}
	return id, nil
}

// summarizeCluster builds the new memory's content (a human-readable
// concatenation), importance (cluster mean), tag union, and decay rate
// (cluster sum) per spec §4.9.
func summarizeCluster(cluster []*model.MemoryRecord) (content string, importance float64, tags []string, decaySum float64) {
	parts := make([]string, len(cluster))
	tagSet := make(map[string]bool)
	var importanceSum float64
	for i, r := range cluster {
		parts[i] = r.Content
		importanceSum += r.Importance
		decaySum += r.DecayRate
		for _, t := range r.Tags {
			tagSet[t] = true
		}
	}
	tags = make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return strings.Join(parts, " "), importanceSum / float64(len(cluster)), tags, decaySum
}

func nowRFC3339Z(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
