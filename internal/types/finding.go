package types

import (
	"fmt"
	"regexp"
	"strings"
)

// Evidence describes where a finding's supporting data came from.
type Evidence struct {
	// Source is the evidence source identifier, e.g. "crux-field-data",
	// "lighthouse-lab", "network-trace", "coverage-report",
	// "code-review". Validated against the source taxonomy.
	Source string `json:"source"`

	// Reference is the concrete citation: a file, a request URL, a
	// metric reading. Aggregate field sources are exempt from the
	// file-name requirement.
	Reference string `json:"reference"`

	// Confidence is the producing task's confidence in the evidence,
	// in [0,1]. Calibration may only lower it, never raise it.
	Confidence float64 `json:"confidence"`
}

// Impact is the estimated improvement if the finding is fixed.
type Impact struct {
	// Reduction is the estimated metric improvement, in the metric's
	// unit (ms for timing metrics, score for CLS).
	Reduction float64 `json:"reduction"`

	// Confidence in the estimate, in [0,1].
	Confidence float64 `json:"confidence"`

	// Calculation explains how the estimate was derived. The validator
	// appends a note here when it caps an unrealistic reduction.
	Calculation string `json:"calculation,omitempty"`
}

// Reasoning is the four-part causal argument attached to a finding.
// Optional; when present all four fields are checked by the validator.
type Reasoning struct {
	Observation string `json:"observation"`
	Diagnosis   string `json:"diagnosis"`
	Mechanism   string `json:"mechanism"`
	Solution    string `json:"solution"`
}

// Finding is one structured observation produced by an analysis task.
// Findings are immutable once produced: the pipeline reads them,
// classifies them, and relates them, but never rewrites them in place
// (validator adjustments live on the ValidationResult).
type Finding struct {
	ID              string      `json:"id"`
	Kind            FindingKind `json:"kind"`
	Metric          Metric      `json:"metric"`
	Description     string      `json:"description"`
	Evidence        Evidence    `json:"evidence"`
	EstimatedImpact Impact      `json:"estimated_impact"`
	Reasoning       *Reasoning  `json:"reasoning,omitempty"`
	IsRootCauseHint bool        `json:"is_root_cause_hint,omitempty"`
	ProducedBy      string      `json:"produced_by"`
}

// Validate checks the required fields. Findings that fail validation are
// dropped with a recorded warning rather than aborting the run.
func (f *Finding) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("finding id is required")
	}
	if !f.Kind.IsValid() {
		return fmt.Errorf("invalid finding kind: %q", f.Kind)
	}
	if !f.Metric.IsValid() {
		return fmt.Errorf("invalid metric: %q", f.Metric)
	}
	if strings.TrimSpace(f.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if f.Evidence.Confidence < 0 || f.Evidence.Confidence > 1 {
		return fmt.Errorf("evidence confidence must be in [0,1] (got %.2f)", f.Evidence.Confidence)
	}
	if f.EstimatedImpact.Confidence < 0 || f.EstimatedImpact.Confidence > 1 {
		return fmt.Errorf("impact confidence must be in [0,1] (got %.2f)", f.EstimatedImpact.Confidence)
	}
	if f.EstimatedImpact.Reduction < 0 {
		return fmt.Errorf("impact reduction cannot be negative (got %.2f)", f.EstimatedImpact.Reduction)
	}
	if f.ProducedBy == "" {
		return fmt.Errorf("produced_by task id is required")
	}
	return nil
}

// fileRefPattern matches a path-like token with a web asset extension.
// Query strings and fragments are stripped by ReferencedFile.
var fileRefPattern = regexp.MustCompile(`(?i)[\w@][\w@./-]*\.(?:m?js|css|html?|png|jpe?g|gif|svg|webp|avif|woff2?|ttf|otf|json|ico)\b`)

// ReferencedFile extracts the file a finding's evidence points at,
// normalized for comparison (lowercase, no query string, no leading
// slashes or scheme). Returns "" when the reference names no file.
func (f *Finding) ReferencedFile() string {
	ref := f.Evidence.Reference
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	m := fileRefPattern.FindString(ref)
	if m == "" {
		return ""
	}
	m = strings.ToLower(m)
	// Drop host prefixes like example.com/static/app.js down to the path.
	if i := strings.Index(m, "/"); i >= 0 && strings.Contains(m[:i], ".") && !strings.Contains(m[:i], "/") {
		// Leading token looks like a hostname only when the remainder
		// still names a file.
		if fileRefPattern.MatchString(m[i+1:]) {
			m = m[i+1:]
		}
	}
	return strings.TrimLeft(m, "/")
}
