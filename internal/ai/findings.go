package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/perfsleuth/perfsleuth/internal/scheduler"
	"github.com/perfsleuth/perfsleuth/internal/types"
)

// Pre-compiled patterns for cleaning model output. Models wrap JSON in
// code fences more often than not.
var (
	codeFenceRegex     = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	arrayExtractRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
)

// findingPayload is the wire shape the prompts ask the model for.
type findingPayload struct {
	Kind            string           `json:"kind"`
	Metric          string           `json:"metric"`
	Description     string           `json:"description"`
	Evidence        types.Evidence   `json:"evidence"`
	EstimatedImpact types.Impact     `json:"estimated_impact"`
	Reasoning       *types.Reasoning `json:"reasoning,omitempty"`
	IsRootCauseHint bool             `json:"is_root_cause_hint"`
}

// ParseFindings extracts a findings array from raw model output.
//
// Strategy sequence: direct parse, then code-fence stripping, then
// array extraction from mixed prose, with trailing-comma cleanup on
// each retry. A response that still fails is a terminal error — the
// model answered, retrying the same prompt just burns budget.
func ParseFindings(taskID string, raw string) ([]*types.Finding, error) {
	candidates := []string{raw}
	if m := codeFenceRegex.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := arrayExtractRegex.FindString(raw); m != "" {
		candidates = append(candidates, m)
	}

	var lastErr error
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		var payloads []findingPayload
		if err := json.Unmarshal([]byte(c), &payloads); err != nil {
			cleaned := trailingCommaRegex.ReplaceAllString(c, "$1")
			if err = json.Unmarshal([]byte(cleaned), &payloads); err != nil {
				lastErr = err
				continue
			}
		}
		return materialize(taskID, payloads), nil
	}
	return nil, scheduler.Terminal(fmt.Errorf("no findings array in model response: %w", lastErr))
}

func materialize(taskID string, payloads []findingPayload) []*types.Finding {
	out := make([]*types.Finding, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, &types.Finding{
			ID:              uuid.NewString(),
			Kind:            types.FindingKind(p.Kind),
			Metric:          types.Metric(strings.ToUpper(p.Metric)),
			Description:     p.Description,
			Evidence:        p.Evidence,
			EstimatedImpact: p.EstimatedImpact,
			Reasoning:       p.Reasoning,
			IsRootCauseHint: p.IsRootCauseHint,
			ProducedBy:      taskID,
		})
	}
	return out
}
