// Package types defines the core data model shared by the analysis
// pipeline: findings, the causal graph, task handles, and the
// decision/result types produced by gating and validation.
package types

// Metric identifies a monitored performance metric.
type Metric string

const (
	MetricLCP  Metric = "LCP"  // Largest Contentful Paint
	MetricFCP  Metric = "FCP"  // First Contentful Paint
	MetricTTFB Metric = "TTFB" // Time To First Byte
	MetricTBT  Metric = "TBT"  // Total Blocking Time
	MetricINP  Metric = "INP"  // Interaction to Next Paint
	MetricCLS  Metric = "CLS"  // Cumulative Layout Shift
)

// IsValid reports whether the metric is one of the monitored set.
func (m Metric) IsValid() bool {
	switch m {
	case MetricLCP, MetricFCP, MetricTTFB, MetricTBT, MetricINP, MetricCLS:
		return true
	}
	return false
}

// MetricValues holds the current measured value per metric for one run.
type MetricValues map[Metric]float64

// DeviceClass selects which threshold column applies to a run.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
)

// IsValid reports whether the device class is known.
func (d DeviceClass) IsValid() bool {
	return d == DeviceMobile || d == DeviceDesktop
}

// FindingKind classifies what sort of issue a finding describes.
type FindingKind string

const (
	KindBottleneck  FindingKind = "bottleneck"  // actively blocks a metric
	KindWaste       FindingKind = "waste"       // consumes budget without need
	KindOpportunity FindingKind = "opportunity" // improvement that would help
)

// IsValid reports whether the kind is a member of the closed set.
func (k FindingKind) IsValid() bool {
	switch k {
	case KindBottleneck, KindWaste, KindOpportunity:
		return true
	}
	return false
}

// Relationship labels a causal edge between two graph nodes.
type Relationship string

const (
	RelBlocks      Relationship = "blocks"
	RelDelays      Relationship = "delays"
	RelCauses      Relationship = "causes"
	RelContributes Relationship = "contributes"
	RelDepends     Relationship = "depends"
	RelDuplicates  Relationship = "duplicates"
	RelCompounds   Relationship = "compounds"
)

// SemanticType is the classifier's deterministic category for a finding.
// Classification is total: anything the rules don't match is TypeUnknown.
type SemanticType string

const (
	TypeImageSizing      SemanticType = "image-sizing"
	TypeUnusedCode       SemanticType = "unused-code"
	TypeBlockingResource SemanticType = "blocking-resource"
	TypeRenderDelay      SemanticType = "render-delay"
	TypeServerLatency    SemanticType = "server-latency"
	TypeLayoutShift      SemanticType = "layout-shift"
	TypeFontLoading      SemanticType = "font-loading"
	TypeThirdParty       SemanticType = "third-party"
	TypeCaching          SemanticType = "caching"
	TypeCompression      SemanticType = "compression"
	TypeUnknown          SemanticType = "unknown"
)

// TaskType identifies one class of analysis task (one data source).
type TaskType string

const (
	TaskFieldData    TaskType = "field-data"
	TaskLabAnalysis  TaskType = "lab-analysis"
	TaskNetworkTrace TaskType = "network-trace"
	TaskCoverage     TaskType = "coverage"
	TaskMarkup       TaskType = "markup"
)

// Classifier maps a finding to its semantic type. Implementations must be
// deterministic and total (never fail; fall back to TypeUnknown).
type Classifier interface {
	Classify(f *Finding) SemanticType
}
