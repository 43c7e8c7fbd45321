package types

import (
	"context"
	"time"
)

// Task is one gated analysis task: an opaque call into an external
// reasoning service that either returns structured findings or fails.
// The scheduler never looks inside a task; it only classifies the error.
type Task interface {
	// ID uniquely identifies this task instance within a run.
	ID() string

	// Type is the task's analysis class, used for gating.
	Type() TaskType

	// Execute performs the analysis. It may take arbitrarily long and
	// may fail transiently; the scheduler handles retries.
	Execute(ctx context.Context) ([]*Finding, error)
}

// TaskFunc adapts a plain function into a Task.
type TaskFunc struct {
	TaskID   string
	TaskType TaskType
	Fn       func(ctx context.Context) ([]*Finding, error)
}

func (t *TaskFunc) ID() string     { return t.TaskID }
func (t *TaskFunc) Type() TaskType { return t.TaskType }

func (t *TaskFunc) Execute(ctx context.Context) ([]*Finding, error) {
	return t.Fn(ctx)
}

// TaskResult is the settled outcome of one task: findings on success,
// an error otherwise. The scheduler never raises out of Run; a failed
// task is equivalent to "zero findings from this source" downstream.
type TaskResult struct {
	Task     Task          `json:"-"`
	TaskID   string        `json:"task_id"`
	TaskType TaskType      `json:"task_type"`
	Findings []*Finding    `json:"findings,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the task settled successfully.
func (r *TaskResult) OK() bool { return r.Err == nil }

// GatingDecision records whether an analysis task is worth running,
// computed once per task type per run from the signal snapshot.
type GatingDecision struct {
	TaskType      TaskType `json:"task_type"`
	ShouldRun     bool     `json:"should_run"`
	SignalsPassed int      `json:"signals_passed"`
	SignalsTotal  int      `json:"signals_total"`
	Reason        string   `json:"reason"`
}

// SignalSnapshot is the cheap upstream measurement set consumed by the
// gate: numeric data signals plus externally computed boolean audit
// flags (true means "problem detected"). One snapshot per device class.
type SignalSnapshot struct {
	Data   map[string]float64 `json:"data"`
	Audits map[string]bool    `json:"psi"`
}
