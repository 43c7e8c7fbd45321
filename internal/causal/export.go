package causal

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

// ExportNode is the flattened node shape for visualization consumers.
type ExportNode struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Kind        string  `json:"kind"` // "metric" or the finding kind
	Metric      string  `json:"metric,omitempty"`
	Depth       *int    `json:"depth"`
	IsRootCause bool    `json:"is_root_cause"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// ExportEdge is the flattened edge shape for visualization consumers.
type ExportEdge struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Relationship string  `json:"relationship"`
	Strength     float64 `json:"strength"`
}

// ExportStats summarizes the graph for dashboards.
type ExportStats struct {
	TotalNodes    int `json:"total_nodes"`
	TotalEdges    int `json:"total_edges"`
	RootCauses    int `json:"root_causes"`
	Symptoms      int `json:"symptoms"`
	CriticalPaths int `json:"critical_paths"`
}

// ExportGraph is the machine-consumable serialization of a CausalGraph,
// shaped for graph-visualization frontends.
type ExportGraph struct {
	Nodes         []ExportNode `json:"nodes"`
	Edges         []ExportEdge `json:"edges"`
	RootCauses    []string     `json:"root_causes"`
	Symptoms      []string     `json:"symptoms"`
	CriticalPaths [][]string   `json:"critical_paths"`
	Stats         ExportStats  `json:"stats"`
}

// Export flattens a graph into its serializable form, nodes sorted by ID.
func Export(g *types.CausalGraph) *ExportGraph {
	out := &ExportGraph{
		RootCauses:    g.RootCauses,
		Symptoms:      g.Symptoms,
		CriticalPaths: g.CriticalPaths,
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := g.Nodes[id]
		en := ExportNode{ID: id, Depth: n.Depth, IsRootCause: n.IsRootCause}
		if n.IsMetric() {
			en.Kind = "metric"
			en.Metric = string(n.MetricNode.Metric)
			en.Label = fmt.Sprintf("%s (%.0f / %.0f)", n.MetricNode.Metric, n.MetricNode.CurrentValue, n.MetricNode.TargetThreshold)
		} else {
			en.Kind = string(n.Finding.Kind)
			en.Metric = string(n.Finding.Metric)
			en.Label = n.Finding.Description
			en.Confidence = n.Finding.Evidence.Confidence
		}
		out.Nodes = append(out.Nodes, en)
	}
	for _, e := range g.Edges {
		out.Edges = append(out.Edges, ExportEdge{
			Source:       e.From,
			Target:       e.To,
			Relationship: string(e.Relationship),
			Strength:     e.Strength,
		})
	}

	out.Stats = ExportStats{
		TotalNodes:    len(out.Nodes),
		TotalEdges:    len(out.Edges),
		RootCauses:    len(g.RootCauses),
		Symptoms:      len(g.Symptoms),
		CriticalPaths: len(g.CriticalPaths),
	}
	return out
}

// JSON serializes the export graph with stable ordering.
func (eg *ExportGraph) JSON() ([]byte, error) {
	return json.MarshalIndent(eg, "", "  ")
}

// DOT renders the graph in Graphviz dot format. Metric nodes are boxes,
// root causes are doubled ellipses, duplicates edges are dashed.
func DOT(g *types.CausalGraph) string {
	var sb strings.Builder
	sb.WriteString("digraph findings {\n")
	sb.WriteString("  rankdir=LR;\n")

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := g.Nodes[id]
		switch {
		case n.IsMetric():
			fmt.Fprintf(&sb, "  %q [shape=box, label=%q];\n", id, string(n.MetricNode.Metric))
		case n.IsRootCause:
			fmt.Fprintf(&sb, "  %q [shape=doubleoctagon, label=%q];\n", id, dotLabel(n))
		default:
			fmt.Fprintf(&sb, "  %q [label=%q];\n", id, dotLabel(n))
		}
	}
	for _, e := range g.Edges {
		style := ""
		if e.Relationship == types.RelDuplicates {
			style = ", style=dashed"
		}
		fmt.Fprintf(&sb, "  %q -> %q [label=%q%s];\n", e.From, e.To, string(e.Relationship), style)
	}
	sb.WriteString("}\n")
	return sb.String()
}

func dotLabel(n *types.CausalNode) string {
	desc := n.Finding.Description
	if len(desc) > 40 {
		desc = desc[:37] + "..."
	}
	return desc
}
