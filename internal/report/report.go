// Package report renders a finished run for humans: a colorized
// console summary and a markdown document suitable for filing.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/perfsleuth/perfsleuth/internal/pipeline"
	"github.com/perfsleuth/perfsleuth/internal/types"
)

// WriteConsole prints the run summary to w with the usual terminal
// coloring. Findings are grouped by disposition.
func WriteConsole(w io.Writer, url string, result *pipeline.RunResult) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", cyan("Run:"), result.RunID)
	fmt.Fprintf(w, "%s %s\n\n", cyan("URL:"), url)

	fmt.Fprintf(w, "%s\n", cyan("Gating"))
	for _, tt := range sortedTaskTypes(result.Decisions) {
		d := result.Decisions[tt]
		if d.ShouldRun {
			fmt.Fprintf(w, "  %s %s\n", green("✓"), tt)
		} else {
			fmt.Fprintf(w, "  %s %s %s\n", gray("–"), tt, gray("("+d.Reason+")"))
		}
	}

	if result.Dedup != nil {
		fmt.Fprintf(w, "\n%s %d findings (%d after dedup, %d merged away)\n",
			cyan("Findings:"), result.Dedup.Stats.TotalCandidates,
			len(result.Dedup.Findings), result.Dedup.Stats.MergedCount)
	}
	if result.Graph != nil {
		roots := 0
		for _, n := range result.Graph.Nodes {
			if n.IsRootCause {
				roots++
			}
		}
		fmt.Fprintf(w, "%s %d nodes, %d edges, %d root causes\n",
			cyan("Graph:"), len(result.Graph.Nodes), len(result.Graph.Edges), roots)
	}

	fmt.Fprintf(w, "\n%s\n", cyan("Validation"))
	for _, vr := range sortedResults(result) {
		f := findingByID(result, vr.FindingID)
		label := vr.FindingID
		if f != nil {
			label = fmt.Sprintf("%s [%s/%s]", truncate(f.Description, 60), f.Metric, shortID(vr.FindingID))
		}
		switch {
		case contains(result.Blocked, vr.FindingID):
			fmt.Fprintf(w, "  %s %s\n", red("✗"), label)
			for _, e := range vr.Errors {
				fmt.Fprintf(w, "      %s\n", red(e))
			}
		case contains(result.Adjusted, vr.FindingID):
			fmt.Fprintf(w, "  %s %s %s\n", yellow("~"), label,
				gray(fmt.Sprintf("confidence %.2f", vr.Confidence)))
		default:
			fmt.Fprintf(w, "  %s %s %s\n", green("✓"), label,
				gray(fmt.Sprintf("confidence %.2f", vr.Confidence)))
		}
		for _, warn := range vr.Warnings {
			fmt.Fprintf(w, "      %s\n", yellow(warn))
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow("Run warnings"))
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  %s\n", warn)
		}
	}
}

// WriteMarkdown renders the run as a markdown report.
func WriteMarkdown(w io.Writer, url string, result *pipeline.RunResult) {
	fmt.Fprintf(w, "# Performance analysis: %s\n\n", url)
	fmt.Fprintf(w, "Run `%s`\n\n", result.RunID)

	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| | |\n|---|---|\n")
	fmt.Fprintf(w, "| Findings validated | %d |\n", result.Summary.Total)
	fmt.Fprintf(w, "| Valid | %d |\n", result.Summary.Valid)
	fmt.Fprintf(w, "| Adjusted | %d |\n", result.Summary.Adjusted)
	fmt.Fprintf(w, "| Blocked | %d |\n", len(result.Blocked))
	fmt.Fprintf(w, "| Mean confidence | %.2f |\n\n", result.Summary.MeanConfidence)

	if result.Graph != nil {
		fmt.Fprintf(w, "## Root causes\n\n")
		for _, n := range sortedNodes(result.Graph) {
			if !n.IsRootCause || n.Finding == nil {
				continue
			}
			fmt.Fprintf(w, "- **%s** (%s, depth %s): %s\n",
				n.Finding.Metric, n.Finding.Kind, depthString(n.Depth),
				n.Finding.Description)
		}
		fmt.Fprintf(w, "\n## Critical paths\n\n")
		for _, path := range result.Graph.CriticalPaths {
			fmt.Fprintf(w, "- `%s`\n", strings.Join(path, "` → `"))
		}
	}

	fmt.Fprintf(w, "\n## Findings\n\n")
	for _, vr := range sortedResults(result) {
		f := findingByID(result, vr.FindingID)
		if f == nil {
			continue
		}
		fmt.Fprintf(w, "### %s\n\n", f.Description)
		fmt.Fprintf(w, "- Metric: %s, kind: %s\n", f.Metric, f.Kind)
		fmt.Fprintf(w, "- Confidence: %.2f", vr.Confidence)
		if contains(result.Blocked, vr.FindingID) {
			fmt.Fprintf(w, " (blocked)")
		}
		fmt.Fprintln(w)
		if f.EstimatedImpact.Reduction > 0 {
			fmt.Fprintf(w, "- Estimated reduction: %.0f\n", f.EstimatedImpact.Reduction)
		}
		for _, warn := range vr.Warnings {
			fmt.Fprintf(w, "- Warning: %s\n", warn)
		}
		for _, e := range vr.Errors {
			fmt.Fprintf(w, "- Error: %s\n", e)
		}
		fmt.Fprintln(w)
	}
}

func sortedTaskTypes(decisions map[types.TaskType]types.GatingDecision) []types.TaskType {
	out := make([]types.TaskType, 0, len(decisions))
	for tt := range decisions {
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedResults(result *pipeline.RunResult) []types.ValidationResult {
	out := make([]types.ValidationResult, len(result.ValidationResults))
	copy(out, result.ValidationResults)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].FindingID < out[j].FindingID
	})
	return out
}

func sortedNodes(g *types.CausalGraph) []*types.CausalNode {
	out := make([]*types.CausalNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func findingByID(result *pipeline.RunResult, id string) *types.Finding {
	if result.Dedup == nil {
		return nil
	}
	for _, f := range result.Dedup.Findings {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func depthString(d *int) string {
	if d == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *d)
}
