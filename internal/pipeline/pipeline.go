// Package pipeline wires the analysis stages together: signal gating,
// task scheduling, classification and dedup, causal graph construction,
// and validation. Data flows strictly forward; the merge stage starts
// only after every task batch has fully settled.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/perfsleuth/perfsleuth/internal/causal"
	"github.com/perfsleuth/perfsleuth/internal/classify"
	"github.com/perfsleuth/perfsleuth/internal/dedup"
	"github.com/perfsleuth/perfsleuth/internal/gate"
	"github.com/perfsleuth/perfsleuth/internal/scheduler"
	"github.com/perfsleuth/perfsleuth/internal/types"
	"github.com/perfsleuth/perfsleuth/internal/validate"
)

// Input is everything one run consumes from collaborators: the signal
// snapshot, current metric values, and the candidate task set.
type Input struct {
	URL          string
	Snapshot     types.SignalSnapshot
	MetricValues types.MetricValues
	Tasks        []types.Task
}

// RunResult is the serializable output of one run, handed to the
// downstream synthesis collaborator.
type RunResult struct {
	RunID       string    `json:"run_id"`
	URL         string    `json:"url,omitempty"`
	Device      string    `json:"device"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Decisions   map[types.TaskType]types.GatingDecision `json:"decisions"`
	TaskResults []types.TaskResult                      `json:"task_results"`

	Dedup  *dedup.Result       `json:"dedup"`
	Graph  *types.CausalGraph  `json:"graph"`
	Export *causal.ExportGraph `json:"export"`

	ValidationResults []types.ValidationResult `json:"validation_results"`
	Summary           types.ValidationSummary  `json:"summary"`

	// Disposition lists, per the blocking/adjust/strict mode flags.
	Approved []string `json:"approved"`
	Adjusted []string `json:"adjusted"`
	Blocked  []string `json:"blocked"`

	// Warnings records non-fatal losses, e.g. malformed findings that
	// were dropped rather than aborting the run.
	Warnings []string `json:"warnings,omitempty"`
}

// Pipeline runs the full analysis. Construct once, run per input.
type Pipeline struct {
	cfg        *Config
	gate       *gate.Gate
	classifier *classify.Classifier
	dedup      *dedup.Deduplicator
	builder    *causal.Builder
	validator  *validate.Validator
	sched      *scheduler.Scheduler
	logger     *zap.Logger
}

// New assembles a pipeline. Errors here are configuration defects
// (malformed embedded rule tables), the one class that fails fast.
func New(cfg *Config, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Device.IsValid() {
		return nil, fmt.Errorf("invalid device class: %q", cfg.Device)
	}

	g, err := gate.New()
	if err != nil {
		return nil, fmt.Errorf("loading gate rules: %w", err)
	}
	classifier, err := classify.New()
	if err != nil {
		return nil, fmt.Errorf("loading classifier rules: %w", err)
	}
	validator, err := validate.New()
	if err != nil {
		return nil, fmt.Errorf("loading validation rules: %w", err)
	}
	dd := dedup.New(classifier)

	return &Pipeline{
		cfg:        cfg,
		gate:       g,
		classifier: classifier,
		dedup:      dd,
		builder:    causal.NewBuilder(classifier, dd, cfg.Device, logger),
		validator:  validator,
		sched:      scheduler.New(cfg.Scheduler, logger),
		logger:     logger,
	}, nil
}

// Run executes one full analysis. It returns an error only for
// configuration defects (an input task with an unknown type); task
// failures and malformed findings degrade the result instead.
func (p *Pipeline) Run(ctx context.Context, input Input) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		URL:       input.URL,
		Device:    string(p.cfg.Device),
		StartedAt: time.Now(),
	}

	// Stage 1: gate. Unknown task types fail loudly; they mean the
	// caller wired a task the rule table knows nothing about.
	result.Decisions = make(map[types.TaskType]types.GatingDecision)
	var gated []types.Task
	for _, task := range input.Tasks {
		decision, ok := result.Decisions[task.Type()]
		if !ok {
			var err error
			decision, err = p.gate.Decide(task.Type(), p.cfg.Device, input.Snapshot)
			if err != nil {
				return nil, fmt.Errorf("gating task %s: %w", task.ID(), err)
			}
			result.Decisions[task.Type()] = decision
		}
		if decision.ShouldRun {
			gated = append(gated, task)
		}
	}
	p.logger.Info("gating complete",
		zap.Int("candidate_tasks", len(input.Tasks)),
		zap.Int("gated_tasks", len(gated)))

	// Stage 2: schedule. Every task settles; nothing raises.
	result.TaskResults = p.sched.Run(ctx, gated)

	// Pipeline-level barrier: merge starts only after all batches have
	// settled. Malformed findings are dropped with a recorded warning
	// rather than aborting graph construction.
	var findings []*types.Finding
	for i := range result.TaskResults {
		tr := &result.TaskResults[i]
		if !tr.OK() {
			result.Warnings = append(result.Warnings, fmt.Sprintf("task %s produced no findings: %v", tr.TaskID, tr.Err))
			continue
		}
		for _, f := range tr.Findings {
			if err := f.Validate(); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("dropped malformed finding from task %s: %v", tr.TaskID, err))
				continue
			}
			findings = append(findings, f)
		}
	}

	// Stage 3: dedup.
	result.Dedup = p.dedup.Deduplicate(findings)

	// Stage 4: graph.
	result.Graph = p.builder.Build(result.Dedup.Findings, input.MetricValues)
	result.Export = causal.Export(result.Graph)

	// Stage 5: validate and classify disposition.
	result.ValidationResults, result.Summary = p.validator.ValidateAll(result.Dedup.Findings, result.Graph)
	p.disposition(result)

	result.CompletedAt = time.Now()
	p.logger.Info("run complete",
		zap.String("run_id", result.RunID),
		zap.Int("findings", len(result.Dedup.Findings)),
		zap.Int("approved", len(result.Approved)),
		zap.Int("blocked", len(result.Blocked)),
		zap.Duration("took", result.CompletedAt.Sub(result.StartedAt)))
	return result, nil
}

// disposition interprets validation results under the mode flags. The
// validator classifies; this is where policy lives.
func (p *Pipeline) disposition(result *RunResult) {
	for _, vr := range result.ValidationResults {
		blocked := false
		switch {
		case p.cfg.BlockingMode && !vr.IsValid:
			blocked = true
		case p.cfg.StrictMode && len(vr.Warnings) > 0:
			blocked = true
		}
		if blocked {
			result.Blocked = append(result.Blocked, vr.FindingID)
			continue
		}
		if p.cfg.AdjustMode && vr.AdjustedImpact != nil {
			result.Adjusted = append(result.Adjusted, vr.FindingID)
		}
		result.Approved = append(result.Approved, vr.FindingID)
	}
}
