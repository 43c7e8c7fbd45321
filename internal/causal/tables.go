package causal

import "github.com/perfsleuth/perfsleuth/internal/types"

// Default edge strengths. Kept as named constants so the detectors stay
// data-driven and testable in isolation.
const (
	// DefaultEdgeStrength is used when a finding carries no evidence
	// confidence to seed its metric edge with.
	DefaultEdgeStrength = 0.7

	// CompatEdgeStrength is the strength of file co-location edges.
	CompatEdgeStrength = 0.8

	// CascadeEdgeStrength is the strength of metric dependency edges.
	CascadeEdgeStrength = 0.75

	// CompoundEdgeStrength is the strength of timing co-occurrence edges.
	CompoundEdgeStrength = 0.6

	// DuplicateEdgeStrength is the strength of pairwise duplicate edges.
	DuplicateEdgeStrength = 0.9
)

// kindRelationships maps a finding's kind to the relationship of its
// edge into the metric node it affects.
var kindRelationships = map[types.FindingKind]types.Relationship{
	types.KindBottleneck:  types.RelBlocks,
	types.KindWaste:       types.RelDelays,
	types.KindOpportunity: types.RelContributes,
}

// compatPair is one allowed file co-location link. Only listed type
// pairs may be connected when two findings share a file; unrelated types
// sharing a file must not be linked. The (Cause, Effect) order is the
// fallback direction when the kind rule (waste causes bottleneck) does
// not decide.
type compatPair struct {
	Cause  types.SemanticType
	Effect types.SemanticType
}

// compatTable lists the semantic type pairs allowed to link on file
// co-location.
var compatTable = []compatPair{
	{types.TypeUnusedCode, types.TypeBlockingResource},
	{types.TypeUnusedCode, types.TypeRenderDelay},
	{types.TypeCompression, types.TypeBlockingResource},
	{types.TypeCaching, types.TypeServerLatency},
	{types.TypeFontLoading, types.TypeLayoutShift},
	{types.TypeImageSizing, types.TypeLayoutShift},
	{types.TypeThirdParty, types.TypeRenderDelay},
}

// compatLookup returns the table entry for an unordered type pair and
// whether the pair is allowed to link at all.
func compatLookup(a, b types.SemanticType) (compatPair, bool) {
	for _, p := range compatTable {
		if (p.Cause == a && p.Effect == b) || (p.Cause == b && p.Effect == a) {
			return p, true
		}
	}
	return compatPair{}, false
}

// cascadeTable encodes which metrics feed which: a finding on an
// upstream metric depends-links to a finding on a downstream one.
var cascadeTable = map[types.Metric][]types.Metric{
	types.MetricTTFB: {types.MetricFCP, types.MetricLCP},
	types.MetricFCP:  {types.MetricLCP},
	types.MetricTBT:  {types.MetricINP},
}

// cascades reports whether upstream feeds downstream.
func cascades(upstream, downstream types.Metric) bool {
	for _, m := range cascadeTable[upstream] {
		if m == downstream {
			return true
		}
	}
	return false
}

// criticalMetrics are the paint metrics used by the timing
// co-occurrence detector: work that happens before these compounds.
var criticalMetrics = map[types.Metric]bool{
	types.MetricLCP: true,
	types.MetricFCP: true,
}

// renderingTypes is the semantic subset eligible for compounds edges.
// Findings outside this subset are never linked by timing alone.
var renderingTypes = map[types.SemanticType]bool{
	types.TypeBlockingResource: true,
	types.TypeRenderDelay:      true,
	types.TypeFontLoading:      true,
	types.TypeImageSizing:      true,
}

// metricThresholds is the per-device target threshold table used to
// seed metric nodes. A metric absent here is skipped at build time.
var metricThresholds = map[types.Metric]map[types.DeviceClass]float64{
	types.MetricLCP:  {types.DeviceMobile: 2500, types.DeviceDesktop: 2500},
	types.MetricFCP:  {types.DeviceMobile: 1800, types.DeviceDesktop: 1800},
	types.MetricTTFB: {types.DeviceMobile: 800, types.DeviceDesktop: 800},
	types.MetricTBT:  {types.DeviceMobile: 200, types.DeviceDesktop: 200},
	types.MetricINP:  {types.DeviceMobile: 200, types.DeviceDesktop: 200},
	types.MetricCLS:  {types.DeviceMobile: 0.1, types.DeviceDesktop: 0.1},
}

// metricThreshold returns the target threshold for a metric, or false
// when the metric has no configured threshold.
func metricThreshold(m types.Metric, d types.DeviceClass) (float64, bool) {
	row, ok := metricThresholds[m]
	if !ok {
		return 0, false
	}
	v, ok := row[d]
	return v, ok
}
