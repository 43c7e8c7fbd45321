package causal

import "github.com/perfsleuth/perfsleuth/internal/types"

// propagateDepth assigns each node its distance from the metric layer:
// metric nodes sit at depth 0, and a cause is one deeper than the
// deepest effect it feeds. When a node reaches multiple effects at
// different depths it takes the maximum — a cause that indirectly feeds
// a deep chain is at least that fundamental.
//
// Implemented as repeated relaxation rather than a single BFS because
// the max rule means a node's depth can grow as deeper effects settle.
// Iteration is capped at the node count, which bounds the longest
// simple path, so cycles cannot spin forever. Nodes unreachable from
// any metric keep a nil depth to flag "unanalyzed".
//
// Duplicates edges do not carry depth: they assert sameness, not
// causation.
func (b *Builder) propagateDepth(g *types.CausalGraph) {
	for i := 0; i < len(g.Nodes); i++ {
		changed := false
		for _, e := range g.Edges {
			if e.Relationship == types.RelDuplicates {
				continue
			}
			effect := g.Nodes[e.To]
			if effect.Depth == nil {
				continue
			}
			cause := g.Nodes[e.From]
			if cause.IsMetric() {
				continue // metric nodes stay at depth 0
			}
			candidate := *effect.Depth + 1
			if cause.Depth == nil || candidate > *cause.Depth {
				d := candidate
				cause.Depth = &d
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}
