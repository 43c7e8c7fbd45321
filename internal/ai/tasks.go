package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

// promptTemplates holds the per-source analysis instructions. Each asks
// for a JSON array of finding objects and nothing else; ParseFindings
// cleans up the inevitable fencing anyway.
var promptTemplates = map[types.TaskType]string{
	types.TaskFieldData: `You are analyzing real-user field data for a web page.
Identify performance issues affecting the monitored metrics (LCP, FCP, TTFB, TBT, INP, CLS).`,
	types.TaskLabAnalysis: `You are analyzing a lab measurement report for a web page.
Identify bottlenecks, wasted work, and improvement opportunities affecting the monitored metrics.`,
	types.TaskNetworkTrace: `You are analyzing a network trace (request log) for a web page load.
Identify slow, oversized, uncompressed, or poorly cached resources and their metric impact.`,
	types.TaskCoverage: `You are analyzing code coverage data for a web page.
Identify unused JavaScript and CSS and estimate the metric impact of removing it.`,
	types.TaskMarkup: `You are analyzing page markup.
Identify unsized images, layout shift sources, and render-blocking references.`,
}

const outputContract = `
Respond with a JSON array only. Each element:
{"kind": "bottleneck"|"waste"|"opportunity", "metric": "LCP"|"FCP"|"TTFB"|"TBT"|"INP"|"CLS",
 "description": "...", "evidence": {"source": "%s", "reference": "...", "confidence": 0.0-1.0},
 "estimated_impact": {"reduction": ms, "confidence": 0.0-1.0, "calculation": "..."},
 "reasoning": {"observation": "...", "diagnosis": "...", "mechanism": "...", "solution": "..."},
 "is_root_cause_hint": bool}`

// evidenceSources names the taxonomy source each task type reports under.
var evidenceSources = map[types.TaskType]string{
	types.TaskFieldData:    "crux-field-data",
	types.TaskLabAnalysis:  "lighthouse-lab",
	types.TaskNetworkTrace: "network-trace",
	types.TaskCoverage:     "coverage-report",
	types.TaskMarkup:       "markup-audit",
}

// NewTask builds an opaque analysis task for one data source. The
// payload is the collected source data (trace excerpt, coverage dump,
// markup sample) serialized by the collector.
func (s *Supervisor) NewTask(taskType types.TaskType, payload string) (types.Task, error) {
	template, ok := promptTemplates[taskType]
	if !ok {
		return nil, fmt.Errorf("no prompt template for task type %q", taskType)
	}
	source := evidenceSources[taskType]
	taskID := string(taskType)

	prompt := strings.Join([]string{
		template,
		fmt.Sprintf(outputContract, source),
		"Data:",
		payload,
	}, "\n\n")

	return &types.TaskFunc{
		TaskID:   taskID,
		TaskType: taskType,
		Fn: func(ctx context.Context) ([]*types.Finding, error) {
			text, err := s.Complete(ctx, prompt)
			if err != nil {
				return nil, err
			}
			return ParseFindings(taskID, text)
		},
	}, nil
}
