// Package validate checks finding quality and calibrates confidence
// before anything reaches a human or the synthesis step.
//
// The validator only classifies: warnings are non-blocking, errors are
// blocking, and confidence is calibrated against the evidence source's
// reliability tier. Disposition (approve / adjust / block) is policy and
// lives with the pipeline's mode flags, not here. Validate never fails
// for well-formed-but-unusual input — a finding with no evidence gets a
// low-confidence, warning-laden result, not an error return.
package validate

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

//go:embed rules.yaml
var rulesYAML []byte

// Tier is an evidence source reliability tier.
type Tier string

const (
	TierField       Tier = "field"       // real-user data, most reliable
	TierLab         Tier = "lab"         // controlled measurement
	TierStatic      Tier = "static"      // static analysis of artifacts
	TierSpeculative Tier = "speculative" // code review, heuristics
)

// sourceRule maps a source name prefix to its tier.
type sourceRule struct {
	Prefix    string `yaml:"prefix"`
	Tier      Tier   `yaml:"tier"`
	Aggregate bool   `yaml:"aggregate"`
}

type depthBounds struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type impactBounds struct {
	Ceiling float64 `yaml:"ceiling"`
	Floor   float64 `yaml:"floor"`
}

type rulesFile struct {
	OverallMinimum            float64                       `yaml:"overall_minimum"`
	WarningPenalty            float64                       `yaml:"warning_penalty"`
	ErrorPenalty              float64                       `yaml:"error_penalty"`
	SpeculativeClaimThreshold float64                       `yaml:"speculative_claim_threshold"`
	SpeculativeClaimPenalty   float64                       `yaml:"speculative_claim_penalty"`
	MinReferenceLength        int                           `yaml:"min_reference_length"`
	MinReasoningLength        int                           `yaml:"min_reasoning_length"`
	ImpactCapPenalty          float64                       `yaml:"impact_cap_penalty"`
	RootCauseDepth            depthBounds                   `yaml:"root_cause_depth"`
	Tiers                     map[Tier]float64              `yaml:"tiers"`
	Sources                   []sourceRule                  `yaml:"sources"`
	Impact                    map[types.Metric]impactBounds `yaml:"impact"`
}

// Validator applies the embedded rule tables. Stateless and pure after
// construction.
type Validator struct {
	rules rulesFile
}

// New loads the embedded tables, verifying every tier referenced by a
// source rule has a confidence cap.
func New() (*Validator, error) {
	return newFromYAML(rulesYAML)
}

func newFromYAML(data []byte) (*Validator, error) {
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing validation rules: %w", err)
	}
	for _, s := range rf.Sources {
		if _, ok := rf.Tiers[s.Tier]; !ok {
			return nil, fmt.Errorf("source %q references undefined tier %q", s.Prefix, s.Tier)
		}
	}
	if rf.RootCauseDepth.Min < 1 || rf.RootCauseDepth.Max < rf.RootCauseDepth.Min {
		return nil, fmt.Errorf("invalid root cause depth bounds [%d,%d]", rf.RootCauseDepth.Min, rf.RootCauseDepth.Max)
	}
	return &Validator{rules: rf}, nil
}

// lookupSource resolves a source against the taxonomy by exact or
// prefix match. Unknown sources return ok=false.
func (v *Validator) lookupSource(source string) (sourceRule, bool) {
	for _, s := range v.rules.Sources {
		if source == s.Prefix || strings.HasPrefix(source, s.Prefix) {
			return s, true
		}
	}
	return sourceRule{}, false
}

var (
	numberPattern   = regexp.MustCompile(`\d`)
	fileTypePattern = regexp.MustCompile(`(?i)\.(m?js|css|html?|png|jpe?g|svg|webp|avif|woff2?|ttf|json)\b|\b(script|stylesheet|image|font)s?\b`)
)

// Validate checks one finding against the graph and returns its
// classification and calibrated confidence.
func (v *Validator) Validate(f *types.Finding, g *types.CausalGraph) types.ValidationResult {
	res := types.ValidationResult{FindingID: f.ID}

	src, known := v.lookupSource(f.Evidence.Source)
	if !known {
		res.Errors = append(res.Errors, fmt.Sprintf("evidence source %q is not in the source taxonomy", f.Evidence.Source))
	}
	v.checkEvidence(f, src, known, &res)
	v.checkImpact(f, &res)
	v.checkReasoning(f, &res)
	v.checkRootCauseDepth(f, g, &res)

	res.Confidence = v.calibrate(f, src, known, len(res.Warnings), len(res.Errors))
	res.IsValid = len(res.Errors) == 0 && res.Confidence >= v.rules.OverallMinimum
	return res
}

// checkEvidence verifies the reference text. Aggregate field sources
// report whole-origin metric values, so they are exempt from the
// file-name length and figure requirements.
func (v *Validator) checkEvidence(f *types.Finding, src sourceRule, known bool, res *types.ValidationResult) {
	if known && src.Aggregate {
		return
	}
	ref := strings.TrimSpace(f.Evidence.Reference)
	if len(ref) < v.rules.MinReferenceLength {
		res.Warnings = append(res.Warnings, fmt.Sprintf("evidence reference is too short (%d chars, want >= %d)", len(ref), v.rules.MinReferenceLength))
	}
	if !numberPattern.MatchString(ref) {
		res.Warnings = append(res.Warnings, "evidence reference contains no quantitative figure")
	}
}

// checkImpact compares the estimated reduction against the per-metric
// realistic ceiling and minimum-actionable floor. Exceeding the ceiling
// is not a rejection: the impact is capped, its confidence discounted,
// and a note appended to the calculation.
func (v *Validator) checkImpact(f *types.Finding, res *types.ValidationResult) {
	bounds, ok := v.rules.Impact[f.Metric]
	if !ok {
		return
	}
	if f.EstimatedImpact.Reduction > bounds.Ceiling {
		res.Warnings = append(res.Warnings, fmt.Sprintf("estimated %s reduction %.0f exceeds realistic ceiling %.0f; capped", f.Metric, f.EstimatedImpact.Reduction, bounds.Ceiling))
		adjusted := f.EstimatedImpact
		adjusted.Reduction = bounds.Ceiling
		adjusted.Confidence = f.EstimatedImpact.Confidence * v.rules.ImpactCapPenalty
		note := fmt.Sprintf("capped from %.0f to per-metric ceiling %.0f", f.EstimatedImpact.Reduction, bounds.Ceiling)
		if adjusted.Calculation != "" {
			adjusted.Calculation += "; " + note
		} else {
			adjusted.Calculation = note
		}
		res.AdjustedImpact = &adjusted
	} else if f.EstimatedImpact.Reduction < bounds.Floor {
		res.Warnings = append(res.Warnings, fmt.Sprintf("estimated %s reduction %.2f is below the minimum actionable %.2f", f.Metric, f.EstimatedImpact.Reduction, bounds.Floor))
	}
}

// checkReasoning validates the four-part reasoning when present.
func (v *Validator) checkReasoning(f *types.Finding, res *types.ValidationResult) {
	if f.Reasoning == nil {
		return
	}
	fields := map[string]string{
		"observation": f.Reasoning.Observation,
		"diagnosis":   f.Reasoning.Diagnosis,
		"mechanism":   f.Reasoning.Mechanism,
		"solution":    f.Reasoning.Solution,
	}
	for _, name := range []string{"observation", "diagnosis", "mechanism", "solution"} {
		if len(strings.TrimSpace(fields[name])) < v.rules.MinReasoningLength {
			res.Warnings = append(res.Warnings, fmt.Sprintf("reasoning %s is too short (want >= %d chars)", name, v.rules.MinReasoningLength))
		}
	}
	obs := f.Reasoning.Observation
	if !numberPattern.MatchString(obs) || !fileTypePattern.MatchString(obs) {
		res.Warnings = append(res.Warnings, "reasoning observation should cite a number and a file type")
	}
}

// checkRootCauseDepth sanity-checks graph depth for findings the graph
// flagged as root causes: deeper than the ceiling is suspicious
// (warning), shallower than the floor means it cannot really be a root
// (error).
func (v *Validator) checkRootCauseDepth(f *types.Finding, g *types.CausalGraph, res *types.ValidationResult) {
	if g == nil {
		return
	}
	node := g.Node(f.ID)
	if node == nil || !node.IsRootCause {
		return
	}
	if node.Depth == nil {
		res.Warnings = append(res.Warnings, "root cause is unreachable from any metric (no depth)")
		return
	}
	if *node.Depth > v.rules.RootCauseDepth.Max {
		res.Warnings = append(res.Warnings, fmt.Sprintf("root cause depth %d exceeds expected maximum %d", *node.Depth, v.rules.RootCauseDepth.Max))
	} else if *node.Depth < v.rules.RootCauseDepth.Min {
		res.Errors = append(res.Errors, fmt.Sprintf("root cause depth %d is below minimum %d", *node.Depth, v.rules.RootCauseDepth.Min))
	}
}

// calibrate computes the finding's final confidence: the average of
// evidence and impact confidence, capped by the source tier's maximum,
// with an extra penalty when a speculative source claims unusually high
// confidence, then multiplied down per warning and per error.
func (v *Validator) calibrate(f *types.Finding, src sourceRule, known bool, warnings, errors int) float64 {
	conf := (f.Evidence.Confidence + f.EstimatedImpact.Confidence) / 2

	tier := TierSpeculative // unknown sources calibrate as least reliable
	if known {
		tier = src.Tier
	}
	if maxConf, ok := v.rules.Tiers[tier]; ok && conf > maxConf {
		conf = maxConf
	}
	if tier == TierSpeculative && (f.Evidence.Confidence+f.EstimatedImpact.Confidence)/2 > v.rules.SpeculativeClaimThreshold {
		conf *= v.rules.SpeculativeClaimPenalty
	}
	for i := 0; i < warnings; i++ {
		conf *= v.rules.WarningPenalty
	}
	for i := 0; i < errors; i++ {
		conf *= v.rules.ErrorPenalty
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// ValidateAll validates every finding and aggregates a summary.
func (v *Validator) ValidateAll(findings []*types.Finding, g *types.CausalGraph) ([]types.ValidationResult, types.ValidationSummary) {
	results := make([]types.ValidationResult, 0, len(findings))
	var summary types.ValidationSummary
	var confSum float64

	for _, f := range findings {
		res := v.Validate(f, g)
		results = append(results, res)
		summary.Total++
		if res.IsValid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
		if res.AdjustedImpact != nil {
			summary.Adjusted++
		}
		confSum += res.Confidence
	}
	if summary.Total > 0 {
		summary.MeanConfidence = confSum / float64(summary.Total)
	}
	return results, summary
}

// OverallMinimum exposes the validity threshold for reporting.
func (v *Validator) OverallMinimum() float64 {
	return v.rules.OverallMinimum
}
