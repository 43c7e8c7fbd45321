package causal

import (
	"sort"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

// criticalPaths enumerates, for every metric node, each path from a
// reachable root cause down to the metric. Traversal walks backward
// along incoming causal edges (duplicates excluded) with a per-path
// visited set: a node cannot repeat within one path but may appear in
// many distinct paths.
func (b *Builder) criticalPaths(g *types.CausalGraph) [][]string {
	metricIDs := make([]string, 0)
	for id, n := range g.Nodes {
		if n.IsMetric() {
			metricIDs = append(metricIDs, id)
		}
	}
	sort.Strings(metricIDs)

	var paths [][]string
	for _, mid := range metricIDs {
		onPath := map[string]bool{mid: true}
		b.walkBack(g, mid, []string{mid}, onPath, &paths)
	}
	return paths
}

// walkBack extends the current (reversed) path through each incoming
// cause. When the cause is a root cause the completed path is emitted
// root → … → metric.
func (b *Builder) walkBack(g *types.CausalGraph, id string, path []string, onPath map[string]bool, out *[][]string) {
	causes := incomingCauses(g, id)
	for _, cause := range causes {
		if onPath[cause] {
			continue // cycle: a node cannot repeat within one path
		}
		next := append(append([]string(nil), path...), cause)
		if g.Nodes[cause].IsRootCause {
			*out = append(*out, reversed(next))
			continue
		}
		onPath[cause] = true
		b.walkBack(g, cause, next, onPath, out)
		delete(onPath, cause)
	}
}

// incomingCauses lists the non-duplicate cause node IDs for a node,
// sorted for deterministic path order.
func incomingCauses(g *types.CausalGraph, id string) []string {
	var causes []string
	for _, e := range g.Edges {
		if e.To == id && e.Relationship != types.RelDuplicates {
			causes = append(causes, e.From)
		}
	}
	sort.Strings(causes)
	return causes
}

func reversed(path []string) []string {
	out := make([]string, len(path))
	for i, id := range path {
		out[len(path)-1-i] = id
	}
	return out
}
