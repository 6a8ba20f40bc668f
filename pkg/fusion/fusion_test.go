package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-db/mnemo/pkg/model"
)

func TestRRFOrdersByFusedScore(t *testing.T) {
	lists := []List{
		{Items: []RankedItem{{ID: "a"}, {ID: "b"}, {ID: "c"}}, Weight: 1},
		{Items: []RankedItem{{ID: "b"}, {ID: "a"}}, Weight: 1},
	}
	out := RRF(lists, DefaultK)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, "c", out[2].ID)
}

// RRF only ever consumes each item's rank position, never its raw
// score, so a positive affine rescaling of whatever scores produced
// the ranking must not change the fused ordering (spec §8).
func TestRRFInvariantUnderAffineRescaling(t *testing.T) {
	type scored struct {
		id    string
		score float64
	}

	base := []scored{{"x", 0.9}, {"y", 0.5}, {"z", 0.1}}
	rescaled := make([]scored, len(base))
	for i, s := range base {
		rescaled[i] = scored{id: s.id, score: 2*s.score + 5}
	}

	toList := func(items []scored) List {
		ordered := append([]scored(nil), items...)
		for i := 0; i < len(ordered); i++ {
			for j := i + 1; j < len(ordered); j++ {
				if ordered[j].score > ordered[i].score {
					ordered[i], ordered[j] = ordered[j], ordered[i]
				}
			}
		}
		ranked := make([]RankedItem, len(ordered))
		for i, s := range ordered {
			ranked[i] = RankedItem{ID: s.id}
		}
		return List{Items: ranked, Weight: 1}
	}

	outBase := RRF([]List{toList(base)}, DefaultK)
	outRescaled := RRF([]List{toList(rescaled)}, DefaultK)

	require.Len(t, outBase, len(outRescaled))
	for i := range outBase {
		assert.Equal(t, outBase[i].ID, outRescaled[i].ID)
	}
}

func TestRecencyMonotoneNonIncreasingInAge(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	young := Recency(now.Add(-1*time.Hour), now, DefaultHalfLifeHours)
	old := Recency(now.Add(-500*time.Hour), now, DefaultHalfLifeHours)
	assert.Greater(t, young, old)
}

func TestRecencyHalfLifeYieldsOneHalf(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	at := Recency(now.Add(-time.Duration(DefaultHalfLifeHours*float64(time.Hour))), now, DefaultHalfLifeHours)
	assert.InDelta(t, 0.5, at, 1e-9)
}

func TestRecencyFutureIsOne(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, Recency(now.Add(time.Hour), now, DefaultHalfLifeHours))
}

func TestRecencyUnparseableIsHalf(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.5, Recency(time.Time{}, now, DefaultHalfLifeHours))
	assert.Equal(t, 0.5, RecencyFromString("not-a-time", now, DefaultHalfLifeHours))
}

func TestExpandTwoHopBFS(t *testing.T) {
	edges := map[string][]model.Relation{
		"seed": {{FromID: "seed", ToID: "h1a"}, {FromID: "seed", ToID: "h1b"}},
		"h1a":  {{FromID: "h1a", ToID: "h2a"}},
		"h1b":  {{FromID: "h1b", ToID: "seed"}}, // back-edge, already visited
		"h2a":  {{FromID: "h2a", ToID: "h3"}},   // would be hop 3, must not appear
	}
	edgesOf := func(id string) []model.Relation { return edges[id] }

	out := Expand([]string{"seed"}, edgesOf)
	ids := make(map[string]bool)
	for _, r := range out {
		ids[r.ID] = true
	}
	assert.True(t, ids["h1a"])
	assert.True(t, ids["h1b"])
	assert.True(t, ids["h2a"])
	assert.False(t, ids["h3"])

	weights := ExpandWeights([]string{"seed"}, edgesOf)
	assert.Equal(t, 0.5, weights["h1a"])
	assert.Equal(t, 0.5, weights["h1b"])
	assert.Equal(t, 0.25, weights["h2a"])
}

func TestHopWeight(t *testing.T) {
	assert.Equal(t, 0.5, HopWeight(1))
	assert.Equal(t, 0.25, HopWeight(2))
	assert.Equal(t, 0.0, HopWeight(3))
}
