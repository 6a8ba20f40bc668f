package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-db/mnemo/pkg/fulltext"
	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/storage/embedded"
	"github.com/mnemo-db/mnemo/pkg/vectorindex"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	backend, err := embedded.Open(filepath.Join(t.TempDir(), "mnemo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	return &Manager{
		Storage:     backend,
		VectorIndex: vectorindex.New(4),
		FullText:    fulltext.New(),
	}
}

func insertMemory(t *testing.T, m *Manager, r *model.MemoryRecord) {
	t.Helper()
	require.NoError(t, m.Storage.InsertMemory(context.Background(), r))
	if r.Embedding != nil {
		require.NoError(t, m.VectorIndex.Add(r.ID, r.Embedding))
	}
}

func TestEffectiveImportanceDecaysExponentially(t *testing.T) {
	fresh := EffectiveImportance(0.8, 0, 0.1, model.DecayExponential, 0)
	assert.InDelta(t, 0.8, fresh, 0.001)

	aged := EffectiveImportance(0.8, 100, 0.1, model.DecayExponential, 0)
	assert.Less(t, aged, fresh)
}

func TestDecayPassTransitionsForgottenAndArchived(t *testing.T) {
	m := newTestManager(t)
	m.ForgetThreshold = 0.1
	m.ArchiveThreshold = 0.3
	ctx := context.Background()
	now := time.Now()

	insertMemory(t, m, &model.MemoryRecord{
		ID: "stale", AgentID: "a", Content: "old fact", Importance: 0.05,
		DecayRate: 0.1, DecayFunction: model.DecayExponential,
		ConsolidationState: model.StateRaw, CreatedAt: now.Add(-500 * time.Hour),
	})
	insertMemory(t, m, &model.MemoryRecord{
		ID: "fresh", AgentID: "a", Content: "new fact", Importance: 0.9,
		DecayRate: 0.1, DecayFunction: model.DecayExponential,
		ConsolidationState: model.StateRaw, CreatedAt: now,
	})

	result, err := m.DecayPass(ctx, "a")
	require.NoError(t, err)
	assert.Contains(t, result.Forgotten, "stale")
	assert.NotContains(t, result.Forgotten, "fresh")
	assert.NotContains(t, result.Archived, "fresh")

	stale, err := m.Storage.GetMemory(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, model.StateForgotten, stale.ConsolidationState)
}

func TestConsolidationPassClustersByTagOverlap(t *testing.T) {
	m := newTestManager(t)
	m.MinClusterSize = 2
	ctx := context.Background()
	now := time.Now()

	insertMemory(t, m, &model.MemoryRecord{
		ID: "e1", AgentID: "a", Content: "likes coffee", MemoryType: model.MemoryTypeEpisodic,
		ConsolidationState: model.StateRaw, Tags: []string{"beverages"}, Importance: 0.5, CreatedAt: now,
	})
	insertMemory(t, m, &model.MemoryRecord{
		ID: "e2", AgentID: "a", Content: "likes tea", MemoryType: model.MemoryTypeEpisodic,
		ConsolidationState: model.StateRaw, Tags: []string{"beverages"}, Importance: 0.7, CreatedAt: now,
	})
	insertMemory(t, m, &model.MemoryRecord{
		ID: "e3", AgentID: "a", Content: "dislikes rain", MemoryType: model.MemoryTypeEpisodic,
		ConsolidationState: model.StateRaw, Tags: []string{"weather"}, Importance: 0.3, CreatedAt: now,
	})

	result, err := m.ConsolidationPass(ctx, "a")
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.ElementsMatch(t, []string{"e1", "e2"}, result.Created[0].SourceIDs)

	e1, err := m.Storage.GetMemory(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.StateConsolidated, e1.ConsolidationState)

	e3, err := m.Storage.GetMemory(ctx, "e3")
	require.NoError(t, err)
	assert.Equal(t, model.StateRaw, e3.ConsolidationState)
}

func TestDetectConflictsFindsNearDuplicateContent(t *testing.T) {
	m := newTestManager(t)
	m.ConflictSimilarityThreshold = 0.9
	ctx := context.Background()
	now := time.Now()

	insertMemory(t, m, &model.MemoryRecord{
		ID: "c1", AgentID: "a", Content: "the meeting is at 3pm", Importance: 0.5,
		SourceType: model.SourceUser, Embedding: []float32{1, 0, 0, 0}, CreatedAt: now,
	})
	insertMemory(t, m, &model.MemoryRecord{
		ID: "c2", AgentID: "a", Content: "the meeting is at 4pm", Importance: 0.6,
		SourceType: model.SourceAgent, Embedding: []float32{1, 0, 0, 0}, CreatedAt: now.Add(time.Hour),
	})

	pairs, err := m.DetectConflicts(ctx, "a")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.ElementsMatch(t, []string{"c1", "c2"}, []string{pairs[0].FirstID, pairs[0].SecondID})

	resolved, err := m.ResolveConflict(ctx, pairs[0], ResolveKeepNewest)
	require.NoError(t, err)
	assert.Equal(t, "c2", resolved.WinnerID)
	assert.Equal(t, "c1", resolved.LoserID)

	loser, err := m.Storage.GetMemory(ctx, "c1")
	require.NoError(t, err)
	assert.NotNil(t, loser.DeletedAt)
}
