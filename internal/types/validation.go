package types

import "fmt"

// ValidationResult is the validator's read-only verdict for one finding.
// Warnings are non-blocking; errors are blocking. AdjustedImpact is set
// only when the validator capped an unrealistic impact estimate.
type ValidationResult struct {
	FindingID      string   `json:"finding_id"`
	IsValid        bool     `json:"is_valid"`
	Confidence     float64  `json:"confidence"`
	Warnings       []string `json:"warnings,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	AdjustedImpact *Impact  `json:"adjusted_impact,omitempty"`
}

// Validate checks internal consistency of the result itself.
func (r *ValidationResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1] (got %.2f)", r.Confidence)
	}
	if r.IsValid && len(r.Errors) > 0 {
		return fmt.Errorf("result cannot be valid with %d errors", len(r.Errors))
	}
	return nil
}

// ValidationSummary aggregates per-finding results for one run.
type ValidationSummary struct {
	Total          int     `json:"total"`
	Valid          int     `json:"valid"`
	Invalid        int     `json:"invalid"`
	Adjusted       int     `json:"adjusted"`
	MeanConfidence float64 `json:"mean_confidence"`
}
