package lifecycle

import (
	"context"
	"log/slog"

	"github.com/mnemo-db/mnemo/pkg/coldstorage"
	"github.com/mnemo-db/mnemo/pkg/fulltext"
	"github.com/mnemo-db/mnemo/pkg/storage"
	"github.com/mnemo-db/mnemo/pkg/vectorindex"
)

// Manager runs the three background passes spec §4.9 names — decay,
// consolidation, conflict detection — against a storage backend and
// its indexes. It mirrors query.Engine's collaborator-bundling shape,
// but deliberately has no Embedder: every pass here reads embeddings
// and content already persisted by Remember rather than computing new
// ones.
type Manager struct {
	Storage     storage.Backend
	VectorIndex *vectorindex.Index
	FullText    *fulltext.Index
	ColdStorage coldstorage.Store
	Logger      *slog.Logger

	// ForgetThreshold/ArchiveThreshold override the decay pass's
	// defaults (spec §4.9). Zero means "use the default".
	ForgetThreshold  float64
	ArchiveThreshold float64

	// MinClusterSize overrides the consolidation pass's minimum
	// cluster size (spec §4.9's min_cluster_size). Zero means 2.
	MinClusterSize int

	// ConflictSimilarityThreshold overrides the conflict pass's ANN
	// similarity cutoff. Zero means 0.9.
	ConflictSimilarityThreshold float64
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// logBestEffort logs a non-fatal side-effect failure, matching
// query.Engine's propagation policy for lifecycle side effects (cold
// storage archive, index removal).
func (m *Manager) logBestEffort(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	m.logger().WarnContext(ctx, "best-effort lifecycle side effect failed", "op", op, "error", err)
}

// memoryFilter builds the non-deleted, agent-scoped listing every pass
// starts from.
func (m *Manager) memoryFilter(agentID string) storage.MemoryFilter {
	return storage.MemoryFilter{AgentID: agentID, Limit: 10000}
}

// removeFromIndexes evicts id from the vector and full-text indexes,
// tolerating either's absence or failure (spec §4.8.3's
// index-removal-is-best-effort policy, reused here for decay/
// consolidation/conflict, which all retire records the same way).
func (m *Manager) removeFromIndexes(ctx context.Context, id string) {
	if m.VectorIndex != nil {
		m.VectorIndex.Remove(id)
	}
	if m.FullText != nil {
		m.FullText.Remove(id)
		if err := m.FullText.Commit(); err != nil {
			m.logBestEffort(ctx, "remove_from_indexes.fulltext_commit", err)
		}
	}
}
