package fusion

import "github.com/mnemo-db/mnemo/pkg/model"

// HopWeight returns the graph-expansion weight applied to a memory
// discovered at the given hop distance from a seed memory (spec §4.8.2
// "graph" strategy): 0.5 at one hop, 0.25 at two hops. Hops beyond the
// two-hop limit are never produced by Expand, so this only needs to
// cover 1 and 2.
func HopWeight(hop int) float64 {
	switch hop {
	case 1:
		return 0.5
	case 2:
		return 0.25
	default:
		return 0
	}
}

// Edges looks up relations touching a memory, in either direction.
// Implementations are supplied by the storage layer.
type Edges func(memoryID string) []model.Relation

// Expand performs a non-recursive, frontier/visited-set breadth-first
// walk outward from seeds up to a two-hop limit, returning each newly
// discovered memory id in discovery order (one-hop ids before two-hop
// ids); the items carry no weight, and ExpandWeights gives the hop
// weight per id (spec §9: graph expansion is iterative, not recursive,
// to keep stack depth and traversal cost bounded).
func Expand(seeds []string, edgesOf Edges) []RankedItem {
	const maxHops = 2

	visited := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		visited[s] = true
	}

	frontier := append([]string(nil), seeds...)
	order := make([]string, 0)
	weight := make(map[string]float64)

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		next := make([]string, 0)
		for _, id := range frontier {
			for _, rel := range edgesOf(id) {
				neighbor := rel.ToID
				if neighbor == id {
					neighbor = rel.FromID
				}
				if neighbor == "" || visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				weight[neighbor] = HopWeight(hop)
				order = append(order, neighbor)
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	out := make([]RankedItem, len(order))
	for i, id := range order {
		out[i] = RankedItem{ID: id}
	}
	return out
}

// ExpandWeights performs the same walk as Expand and returns the hop-decay weight assigned
// to each discovered memory id, for callers that fuse graph results by
// weight rather than by rank position.
func ExpandWeights(seeds []string, edgesOf Edges) map[string]float64 {
	visited := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		visited[s] = true
	}
	frontier := append([]string(nil), seeds...)
	weights := make(map[string]float64)

	for hop := 1; hop <= 2 && len(frontier) > 0; hop++ {
		next := make([]string, 0)
		for _, id := range frontier {
			for _, rel := range edgesOf(id) {
				neighbor := rel.ToID
				if neighbor == id {
					neighbor = rel.FromID
				}
				if neighbor == "" || visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				weights[neighbor] = HopWeight(hop)
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return weights
}
