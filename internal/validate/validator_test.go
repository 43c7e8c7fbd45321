package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

// cleanFinding is a finding that passes every check unmodified.
func cleanFinding() *types.Finding {
	return &types.Finding{
		ID:          "f-clean",
		Kind:        types.KindWaste,
		Metric:      types.MetricLCP,
		Description: "312KB of unused JavaScript in app.js delays LCP",
		Evidence: types.Evidence{
			Source:     "coverage-report",
			Reference:  "app.js: 312KB of 460KB unused (68%)",
			Confidence: 0.8,
		},
		EstimatedImpact: types.Impact{
			Reduction:   600,
			Confidence:  0.7,
			Calculation: "312KB at observed 1.2MB/s effective throughput",
		},
		ProducedBy: "coverage",
	}
}

func TestValidate_CleanFinding(t *testing.T) {
	v := newValidator(t)
	res := v.Validate(cleanFinding(), nil)

	require.NoError(t, res.Validate())
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Errors)
	assert.Nil(t, res.AdjustedImpact)
	// avg(0.8, 0.7) = 0.75, static tier caps at 0.75.
	assert.InDelta(t, 0.75, res.Confidence, 1e-9)
}

func TestValidate_UnknownSourceIsError(t *testing.T) {
	v := newValidator(t)
	f := cleanFinding()
	f.Evidence.Source = "crystal-ball"

	res := v.Validate(f, nil)
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "source taxonomy")
}

func TestValidate_ImpactCeilingCapsAndDiscounts(t *testing.T) {
	v := newValidator(t)
	f := cleanFinding()
	f.EstimatedImpact.Reduction = 5000 // far past the 2000ms LCP ceiling

	res := v.Validate(f, nil)

	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "exceeds realistic ceiling")

	require.NotNil(t, res.AdjustedImpact)
	assert.Equal(t, 2000.0, res.AdjustedImpact.Reduction)
	assert.InDelta(t, 0.7*0.7, res.AdjustedImpact.Confidence, 1e-9)
	assert.Contains(t, res.AdjustedImpact.Calculation, "capped from 5000 to per-metric ceiling 2000")
	assert.Contains(t, res.AdjustedImpact.Calculation, "1.2MB/s", "original calculation text is preserved")

	// The original finding is never mutated.
	assert.Equal(t, 5000.0, f.EstimatedImpact.Reduction)

	// One warning multiplies confidence by 0.9: 0.75 * 0.9.
	assert.InDelta(t, 0.675, res.Confidence, 1e-9)
	assert.True(t, res.IsValid, "a capped impact is adjusted, not blocked")
}

func TestValidate_ImpactFloorWarns(t *testing.T) {
	v := newValidator(t)
	f := cleanFinding()
	f.EstimatedImpact.Reduction = 20 // below the 100ms LCP floor

	res := v.Validate(f, nil)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "below the minimum actionable")
	assert.Nil(t, res.AdjustedImpact)
}

func TestValidate_AggregateSourceExemptFromReferenceChecks(t *testing.T) {
	v := newValidator(t)
	f := cleanFinding()
	f.Evidence.Source = "crux-field-data"
	f.Evidence.Reference = "p75" // short and figure-free in spirit

	res := v.Validate(f, nil)
	assert.Empty(t, res.Warnings)
	// Field tier cap is 0.95; avg 0.75 sits below it.
	assert.InDelta(t, 0.75, res.Confidence, 1e-9)
}

func TestValidate_ShortReferenceWarns(t *testing.T) {
	v := newValidator(t)
	f := cleanFinding()
	f.Evidence.Reference = "app.js"

	res := v.Validate(f, nil)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "too short")
	assert.Contains(t, res.Warnings[1], "no quantitative figure")
}

func TestValidate_TierCaps(t *testing.T) {
	v := newValidator(t)
	tests := []struct {
		source string
		want   float64
	}{
		{"crux-field-data", 0.95},
		{"lighthouse-lab", 0.85},
		{"coverage-report", 0.75},
		{"code-review", 0.60 * 0.8}, // speculative cap plus high-claim penalty
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			f := cleanFinding()
			f.Evidence.Source = tt.source
			f.Evidence.Confidence = 1.0
			f.EstimatedImpact.Confidence = 1.0
			if tt.source == "crux-field-data" {
				f.Evidence.Reference = "p75 LCP 4200ms"
			}

			res := v.Validate(f, nil)
			require.Empty(t, res.Warnings, "warnings: %v", res.Warnings)
			assert.InDelta(t, tt.want, res.Confidence, 1e-9)
		})
	}
}

func TestValidate_SpeculativePenaltyOnlyAboveThreshold(t *testing.T) {
	v := newValidator(t)
	f := cleanFinding()
	f.Evidence.Source = "code-review"
	f.Evidence.Confidence = 0.6
	f.EstimatedImpact.Confidence = 0.6

	// Claimed 0.6 <= 0.7 threshold: cap applies, penalty does not.
	res := v.Validate(f, nil)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
}

func TestValidate_ReasoningChecks(t *testing.T) {
	v := newValidator(t)

	f := cleanFinding()
	f.Reasoning = &types.Reasoning{
		Observation: "Coverage shows 312KB of app.js (68%) never executes on load",
		Diagnosis:   "The main bundle includes admin-only code paths for all visitors",
		Mechanism:   "Extra bytes extend download and parse time on the critical path",
		Solution:    "Split the admin chunk and lazy-load it behind the login route",
	}
	res := v.Validate(f, nil)
	assert.Empty(t, res.Warnings)

	// Short fields each warn; a figure-free observation warns once more.
	f.Reasoning = &types.Reasoning{
		Observation: "It is slow",
		Diagnosis:   "Too much code",
		Mechanism:   "Bytes take time",
		Solution:    "Ship less",
	}
	res = v.Validate(f, nil)
	assert.Len(t, res.Warnings, 5)
}

func TestValidate_RootCauseDepthBounds(t *testing.T) {
	v := newValidator(t)

	graphWithDepth := func(depth *int) *types.CausalGraph {
		return &types.CausalGraph{
			Nodes: map[string]*types.CausalNode{
				"f-clean": {ID: "f-clean", IsRootCause: true, Depth: depth},
			},
		}
	}
	intp := func(i int) *int { return &i }

	t.Run("in bounds", func(t *testing.T) {
		res := v.Validate(cleanFinding(), graphWithDepth(intp(2)))
		assert.Empty(t, res.Warnings)
		assert.Empty(t, res.Errors)
	})

	t.Run("too deep warns", func(t *testing.T) {
		res := v.Validate(cleanFinding(), graphWithDepth(intp(6)))
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "exceeds expected maximum")
	})

	t.Run("too shallow is an error", func(t *testing.T) {
		res := v.Validate(cleanFinding(), graphWithDepth(intp(0)))
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "below minimum")
		assert.False(t, res.IsValid)
	})

	t.Run("nil depth warns", func(t *testing.T) {
		res := v.Validate(cleanFinding(), graphWithDepth(nil))
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "unreachable")
	})

	t.Run("non-root is not checked", func(t *testing.T) {
		g := &types.CausalGraph{
			Nodes: map[string]*types.CausalNode{
				"f-clean": {ID: "f-clean", IsRootCause: false, Depth: intp(0)},
			},
		}
		res := v.Validate(cleanFinding(), g)
		assert.Empty(t, res.Errors)
	})
}

func TestValidate_ConfidenceNeverRaised(t *testing.T) {
	v := newValidator(t)
	f := cleanFinding()
	f.Evidence.Confidence = 0.4
	f.EstimatedImpact.Confidence = 0.4

	res := v.Validate(f, nil)
	claimed := (f.Evidence.Confidence + f.EstimatedImpact.Confidence) / 2
	assert.LessOrEqual(t, res.Confidence, claimed)
}

func TestValidateAll_Summary(t *testing.T) {
	v := newValidator(t)

	good := cleanFinding()
	capped := cleanFinding()
	capped.ID = "f-capped"
	capped.EstimatedImpact.Reduction = 5000
	bad := cleanFinding()
	bad.ID = "f-bad"
	bad.Evidence.Source = "crystal-ball"

	results, summary := v.ValidateAll([]*types.Finding{good, capped, bad}, nil)
	require.Len(t, results, 3)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Valid)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, summary.Adjusted)

	var confSum float64
	for _, r := range results {
		confSum += r.Confidence
	}
	assert.InDelta(t, confSum/3, summary.MeanConfidence, 1e-9)
	assert.False(t, math.IsNaN(summary.MeanConfidence))
}
