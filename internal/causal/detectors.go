package causal

import (
	"fmt"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

// detectRelationships runs the four pairwise detectors. A pair may gain
// zero, one, or several edges — the detectors are independent.
//
// To keep the pass from going quadratic over unrelated findings, pairs
// are drawn from two indexes: findings sharing a metric (or a cascading
// metric) and findings sharing a referenced file. Pairs sharing neither
// can never relate under any detector, so the pruning preserves
// behavior.
func (b *Builder) detectRelationships(g *types.CausalGraph, findings []*types.Finding) {
	byFile := make(map[string][]*types.Finding)
	for _, f := range findings {
		if file := f.ReferencedFile(); file != "" {
			byFile[file] = append(byFile[file], f)
		}
	}

	// File-sharing pairs: duplicate + co-location detectors.
	for _, group := range byFile {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				b.detectDuplicate(g, group[i], group[j])
				b.detectColocation(g, group[i], group[j])
			}
		}
	}

	// Metric-related pairs: cascade + timing co-occurrence detectors.
	for i := 0; i < len(findings); i++ {
		for j := i + 1; j < len(findings); j++ {
			a, bb := findings[i], findings[j]
			if a.Metric != bb.Metric && !cascades(a.Metric, bb.Metric) && !cascades(bb.Metric, a.Metric) {
				continue
			}
			b.detectCascade(g, a, bb)
			b.detectCompounds(g, a, bb)
		}
	}
}

// detectDuplicate adds a duplicates edge when the strict pairwise rule
// matches. Direction is canonical (smaller ID first); duplicates edges
// carry no causal meaning either way.
func (b *Builder) detectDuplicate(g *types.CausalGraph, a, c *types.Finding) {
	if !b.dedup.IsPairwiseDuplicate(a, c) {
		return
	}
	from, to := a, c
	if to.ID < from.ID {
		from, to = to, from
	}
	b.addEdge(g, &types.CausalEdge{
		From:         from.ID,
		To:           to.ID,
		Relationship: types.RelDuplicates,
		Strength:     DuplicateEdgeStrength,
		Mechanism:    "same issue reported by multiple tasks",
	})
}

// detectColocation links two findings that reference the same file when
// their semantic types appear in the compatibility table. Direction: a
// waste finding causes a bottleneck finding; otherwise the table's
// (cause, effect) order decides.
func (b *Builder) detectColocation(g *types.CausalGraph, a, c *types.Finding) {
	typeA, typeC := b.classifier.Classify(a), b.classifier.Classify(c)
	if typeA == typeC {
		return // same-type pairs are the duplicate detector's business
	}
	entry, ok := compatLookup(typeA, typeC)
	if !ok {
		return
	}

	cause, effect := a, c
	switch {
	case a.Kind == types.KindWaste && c.Kind == types.KindBottleneck:
		// keep
	case c.Kind == types.KindWaste && a.Kind == types.KindBottleneck:
		cause, effect = c, a
	case entry.Cause == typeC:
		cause, effect = c, a
	}

	b.addEdge(g, &types.CausalEdge{
		From:         cause.ID,
		To:           effect.ID,
		Relationship: types.RelContributes,
		Strength:     CompatEdgeStrength,
		Mechanism:    fmt.Sprintf("%s and %s affect the same file (%s)", b.classifier.Classify(cause), b.classifier.Classify(effect), cause.ReferencedFile()),
	})
}

// detectCascade links findings whose metrics form an upstream→downstream
// dependency: the upstream metric's finding depends-feeds the
// downstream metric's finding.
func (b *Builder) detectCascade(g *types.CausalGraph, a, c *types.Finding) {
	upstream, downstream := a, c
	if cascades(c.Metric, a.Metric) {
		upstream, downstream = c, a
	} else if !cascades(a.Metric, c.Metric) {
		return
	}
	b.addEdge(g, &types.CausalEdge{
		From:         upstream.ID,
		To:           downstream.ID,
		Relationship: types.RelDepends,
		Strength:     CascadeEdgeStrength,
		Mechanism:    fmt.Sprintf("%s regressions propagate into %s", upstream.Metric, downstream.Metric),
	})
}

// detectCompounds links two pre-paint findings on the same critical
// metric when both belong to the rendering semantic subset. Findings
// outside the subset are never linked by timing alone.
func (b *Builder) detectCompounds(g *types.CausalGraph, a, c *types.Finding) {
	if a.Metric != c.Metric || !criticalMetrics[a.Metric] {
		return
	}
	if !renderingTypes[b.classifier.Classify(a)] || !renderingTypes[b.classifier.Classify(c)] {
		return
	}
	from, to := a, c
	if to.ID < from.ID {
		from, to = to, from
	}
	b.addEdge(g, &types.CausalEdge{
		From:         from.ID,
		To:           to.ID,
		Relationship: types.RelCompounds,
		Strength:     CompoundEdgeStrength,
		Mechanism:    fmt.Sprintf("both delay rendering ahead of %s", a.Metric),
	})
}
