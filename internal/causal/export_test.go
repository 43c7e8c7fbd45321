package causal

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

func builtGraph(t *testing.T) *types.CausalGraph {
	t.Helper()
	b := newBuilder(t)
	return b.Build(sharedFileFindings(), types.MetricValues{
		types.MetricLCP: 4200,
		types.MetricCLS: 0.31,
	})
}

func TestExport_Shape(t *testing.T) {
	g := builtGraph(t)
	eg := Export(g)

	assert.Len(t, eg.Nodes, len(g.Nodes))
	assert.Len(t, eg.Edges, len(g.Edges))
	assert.Equal(t, g.RootCauses, eg.RootCauses)
	assert.Equal(t, len(g.CriticalPaths), eg.Stats.CriticalPaths)

	// Nodes are sorted by ID and carry the right kinds.
	for i := 1; i < len(eg.Nodes); i++ {
		assert.Less(t, eg.Nodes[i-1].ID, eg.Nodes[i].ID)
	}
	byID := map[string]ExportNode{}
	for _, n := range eg.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, "metric", byID["metric:LCP"].Kind)
	assert.Equal(t, "waste", byID["f-unused"].Kind)
	assert.Equal(t, 0.85, byID["f-unused"].Confidence)
	assert.True(t, byID["f-unused"].IsRootCause)
}

func TestExport_JSONRoundTrips(t *testing.T) {
	eg := Export(builtGraph(t))

	data, err := eg.JSON()
	require.NoError(t, err)

	var decoded ExportGraph
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, eg.Stats, decoded.Stats)
	assert.Len(t, decoded.Nodes, len(eg.Nodes))
}

func TestDOT(t *testing.T) {
	out := DOT(builtGraph(t))

	assert.True(t, strings.HasPrefix(out, "digraph findings {"))
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, `"metric:LCP" [shape=box, label="LCP"]`)
	assert.Contains(t, out, "shape=doubleoctagon", "root causes get the doubled shape")
	assert.Contains(t, out, `"f-unused" -> "f-blocking" [label="contributes"]`)
}

func TestDOT_DuplicateEdgesDashed(t *testing.T) {
	b := newBuilder(t)
	g := b.Build([]*types.Finding{
		{
			ID: "dup-a", Kind: types.KindWaste, Metric: types.MetricLCP,
			Description: "Unused JavaScript bytes in vendor.js bundle",
			Evidence:    types.Evidence{Reference: "vendor.js", Confidence: 0.8},
			ProducedBy:  "coverage",
		},
		{
			ID: "dup-b", Kind: types.KindWaste, Metric: types.MetricLCP,
			Description: "vendor.js carries unused JavaScript code",
			Evidence:    types.Evidence{Reference: "vendor.js", Confidence: 0.7},
			ProducedBy:  "network-trace",
		},
	}, types.MetricValues{types.MetricLCP: 4200})

	out := DOT(g)
	assert.Contains(t, out, `[label="duplicates", style=dashed]`)
}
