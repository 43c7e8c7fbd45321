package types

import "fmt"

// MetricNode represents one monitored metric in the causal graph.
// Metric nodes are always created at depth 0 and act as the BFS seeds
// for depth propagation.
type MetricNode struct {
	Metric          Metric  `json:"metric"`
	CurrentValue    float64 `json:"current_value"`
	TargetThreshold float64 `json:"target_threshold"`
}

// CausalNode wraps either a Finding or a MetricNode with graph-only
// bookkeeping. Exactly one of Finding/MetricNode is non-nil.
type CausalNode struct {
	ID         string      `json:"id"`
	Finding    *Finding    `json:"finding,omitempty"`
	MetricNode *MetricNode `json:"metric_node,omitempty"`

	// Causes lists node IDs this node is a cause of (outgoing edges).
	Causes []string `json:"causes"`

	// CausedBy lists node IDs that cause this node (incoming edges).
	CausedBy []string `json:"caused_by"`

	// Depth is the distance from the metric layer, nil until the graph
	// has been analyzed and nil for nodes unreachable from any metric.
	Depth *int `json:"depth"`

	// IsRootCause is true for hinted roots and for nodes with no
	// incoming edges other than duplicates.
	IsRootCause bool `json:"is_root_cause"`
}

// IsMetric reports whether the node wraps a metric rather than a finding.
func (n *CausalNode) IsMetric() bool {
	return n.MetricNode != nil
}

// CausalEdge is a directed edge from cause to effect. The inverse
// direction is never stored; CausedBy on the effect node mirrors it.
type CausalEdge struct {
	From         string       `json:"from"`
	To           string       `json:"to"`
	Relationship Relationship `json:"relationship"`

	// Strength of the causal claim in [0,1].
	Strength float64 `json:"strength"`

	// Mechanism is a short human-readable explanation of the link.
	Mechanism string `json:"mechanism"`
}

// Key returns the uniqueness key for an edge. No two edges in a graph
// may share the same (from, to, relationship) triple.
func (e *CausalEdge) Key() string {
	return e.From + "\x00" + e.To + "\x00" + string(e.Relationship)
}

// CausalGraph is the analyzed graph for one run: findings and metric
// nodes, the edges relating them, and the derived root-cause/symptom
// partition with critical paths. Built fresh per run, never mutated
// after Build returns.
type CausalGraph struct {
	Nodes         map[string]*CausalNode `json:"nodes"`
	Edges         []*CausalEdge          `json:"edges"`
	RootCauses    []string               `json:"root_causes"`
	Symptoms      []string               `json:"symptoms"`
	CriticalPaths [][]string             `json:"critical_paths"`
}

// Validate checks the structural invariants: edge endpoints exist and
// edge keys are unique.
func (g *CausalGraph) Validate() error {
	seen := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return fmt.Errorf("edge references unknown from node %q", e.From)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return fmt.Errorf("edge references unknown to node %q", e.To)
		}
		k := e.Key()
		if seen[k] {
			return fmt.Errorf("duplicate edge %s -[%s]-> %s", e.From, e.Relationship, e.To)
		}
		seen[k] = true
	}
	return nil
}

// Node returns the node with the given ID, or nil.
func (g *CausalGraph) Node(id string) *CausalNode {
	return g.Nodes[id]
}
