// Package fusion implements mnemo's retrieval fusion (spec §4.7):
// weighted reciprocal-rank fusion across heterogeneous ranked lists,
// exponential recency decay, and graph expansion for the "graph" and
// "hybrid" recall strategies.
package fusion

import "sort"

// RankedItem is one entry in a single strategy's ranked output, in
// rank order (index 0 is the best match for that strategy).
type RankedItem struct {
	ID string
}

// List is one strategy's ranked output plus its fusion weight.
type List struct {
	Items  []RankedItem
	Weight float64 // defaults to 1.0 when zero
}

// Fused is one fused result: a memory id and its combined score.
type Fused struct {
	ID    string
	Score float64
}

// DefaultK is the RRF smoothing constant used when the caller does not
// override it.
const DefaultK = 60.0

// RRF computes weighted reciprocal-rank fusion over lists:
// score(id) = sum_l w_l / (k + rank_l(id) + 1). Items absent from a
// list contribute nothing from that list. Output is sorted by score
// descending, ties broken by id for determinism.
func RRF(lists []List, k float64) []Fused {
	if k <= 0 {
		k = DefaultK
	}
	scores := make(map[string]float64)
	order := make([]string, 0)
	seen := make(map[string]bool)

	for _, list := range lists {
		weight := list.Weight
		if weight == 0 {
			weight = 1.0
		}
		for rank, item := range list.Items {
			scores[item.ID] += weight / (k + float64(rank) + 1)
			if !seen[item.ID] {
				seen[item.ID] = true
				order = append(order, item.ID)
			}
		}
	}

	out := make([]Fused, 0, len(order))
	for _, id := range order {
		out = append(out, Fused{ID: id, Score: scores[id]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
