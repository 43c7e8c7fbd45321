// Package causal builds the directed findings graph for one analysis
// run: metric nodes at depth 0, one node per finding, kind-derived edges
// into metrics, four pairwise relationship detectors, BFS depth
// propagation, root cause / symptom partition, and backward-DFS critical
// paths from observed metrics to their root causes.
//
// Build never fails for well-formed input; structurally invalid findings
// are the pipeline's problem (dropped with a warning before this stage).
package causal

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/perfsleuth/perfsleuth/internal/dedup"
	"github.com/perfsleuth/perfsleuth/internal/types"
)

// metricNodeID returns the graph node ID for a metric.
func metricNodeID(m types.Metric) string {
	return "metric:" + string(m)
}

// Builder constructs causal graphs. Stateless between runs.
type Builder struct {
	classifier types.Classifier
	dedup      *dedup.Deduplicator
	device     types.DeviceClass
	logger     *zap.Logger
}

// NewBuilder creates a graph builder. The device class selects metric
// target thresholds; the deduplicator provides the strict pairwise
// duplicate check.
func NewBuilder(classifier types.Classifier, d *dedup.Deduplicator, device types.DeviceClass, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{classifier: classifier, dedup: d, device: device, logger: logger}
}

// Build assembles and analyzes the graph for the given findings and
// current metric values. Metrics without a configured threshold are
// skipped, not an error.
func (b *Builder) Build(findings []*types.Finding, values types.MetricValues) *types.CausalGraph {
	g := &types.CausalGraph{Nodes: make(map[string]*types.CausalNode)}

	// Metric nodes, depth 0 by definition.
	metrics := make([]types.Metric, 0, len(values))
	for m := range values {
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })
	for _, m := range metrics {
		threshold, ok := metricThreshold(m, b.device)
		if !ok {
			b.logger.Debug("skipping metric with no threshold", zap.String("metric", string(m)))
			continue
		}
		zero := 0
		g.Nodes[metricNodeID(m)] = &types.CausalNode{
			ID:    metricNodeID(m),
			Depth: &zero,
			MetricNode: &types.MetricNode{
				Metric:          m,
				CurrentValue:    values[m],
				TargetThreshold: threshold,
			},
		}
	}

	// Finding nodes, canonical ID order for determinism.
	sorted := make([]*types.Finding, len(findings))
	copy(sorted, findings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, f := range sorted {
		g.Nodes[f.ID] = &types.CausalNode{ID: f.ID, Finding: f}
	}

	// Each finding causes the metric it affects, when that metric node
	// exists in this run.
	for _, f := range sorted {
		target := metricNodeID(f.Metric)
		if _, ok := g.Nodes[target]; !ok {
			continue
		}
		strength := f.Evidence.Confidence
		if strength <= 0 {
			strength = DefaultEdgeStrength
		}
		b.addEdge(g, &types.CausalEdge{
			From:         f.ID,
			To:           target,
			Relationship: kindRelationships[f.Kind],
			Strength:     strength,
			Mechanism:    fmt.Sprintf("%s finding affects %s", f.Kind, f.Metric),
		})
	}

	b.detectRelationships(g, sorted)
	b.propagateDepth(g)
	b.markRootsAndSymptoms(g)
	g.CriticalPaths = b.criticalPaths(g)

	if err := g.Validate(); err != nil {
		// addEdge maintains the invariants; a failure here is a
		// builder bug, worth a loud log but never a crashed run.
		b.logger.Error("built graph failed validation", zap.Error(err))
	}
	return g
}

// addEdge inserts an edge unless an edge with the same
// (from, to, relationship) already exists, and mirrors it onto the
// nodes' Causes/CausedBy lists.
func (b *Builder) addEdge(g *types.CausalGraph, e *types.CausalEdge) {
	for _, existing := range g.Edges {
		if existing.Key() == e.Key() {
			return
		}
	}
	g.Edges = append(g.Edges, e)

	from, to := g.Nodes[e.From], g.Nodes[e.To]
	if !contains(from.Causes, e.To) {
		from.Causes = append(from.Causes, e.To)
	}
	if !contains(to.CausedBy, e.From) {
		to.CausedBy = append(to.CausedBy, e.From)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// markRootsAndSymptoms computes the root cause / symptom partition.
// Duplicates edges are ignored on both sides: they assert sameness, not
// causation.
func (b *Builder) markRootsAndSymptoms(g *types.CausalGraph) {
	incoming := make(map[string]int)
	outgoing := make(map[string]int)
	for _, e := range g.Edges {
		if e.Relationship == types.RelDuplicates {
			continue
		}
		incoming[e.To]++
		outgoing[e.From]++
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := g.Nodes[id]
		if n.IsMetric() {
			continue
		}
		hinted := n.Finding != nil && n.Finding.IsRootCauseHint
		if hinted || incoming[id] == 0 {
			n.IsRootCause = true
			g.RootCauses = append(g.RootCauses, id)
			continue
		}
		if outgoing[id] == 0 {
			g.Symptoms = append(g.Symptoms, id)
		}
	}
}
