// Package gate decides which expensive analysis tasks are worth running
// at all, based on a snapshot of cheap upstream signals.
//
// Rules are declarative: each task type lists numeric data signals
// (compared against device-aware thresholds) and boolean audit signals
// (true meaning "problem detected"). The decision is purely a count:
// shouldRun when at least min_signals of them pass. Missing input data
// always counts as not passed (fail closed, never fail open).
package gate

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

//go:embed gates.yaml
var gatesYAML []byte

// ErrUnknownTaskType is returned when a decision is requested for a task
// type with no configured rule. This is a configuration defect, not bad
// runtime data, so callers should fail fast on it.
var ErrUnknownTaskType = errors.New("unknown task type")

// Op is a comparison operator in a data signal rule.
type Op string

const (
	OpGT  Op = ">"
	OpLT  Op = "<"
	OpGTE Op = ">="
	OpLTE Op = "<="
	OpEQ  Op = "=="
)

func (o Op) valid() bool {
	switch o {
	case OpGT, OpLT, OpGTE, OpLTE, OpEQ:
		return true
	}
	return false
}

func (o Op) compare(value, threshold float64) bool {
	switch o {
	case OpGT:
		return value > threshold
	case OpLT:
		return value < threshold
	case OpGTE:
		return value >= threshold
	case OpLTE:
		return value <= threshold
	case OpEQ:
		return value == threshold
	}
	return false
}

// DataSignal compares one measured value against a named threshold.
type DataSignal struct {
	Signal    string `yaml:"signal"`
	Op        Op     `yaml:"op"`
	Threshold string `yaml:"threshold"`
}

// TaskRule is the declarative gating rule for one task type.
type TaskRule struct {
	MinSignals   int          `yaml:"min_signals"`
	DataSignals  []DataSignal `yaml:"data_signals"`
	AuditSignals []string     `yaml:"audit_signals"`
}

// thresholdEntry holds one threshold's per-device values.
type thresholdEntry struct {
	Mobile  float64 `yaml:"mobile"`
	Desktop float64 `yaml:"desktop"`
}

func (t thresholdEntry) forDevice(d types.DeviceClass) float64 {
	if d == types.DeviceDesktop {
		return t.Desktop
	}
	return t.Mobile
}

type rulesFile struct {
	Thresholds map[string]thresholdEntry   `yaml:"thresholds"`
	Tasks      map[types.TaskType]TaskRule `yaml:"tasks"`
}

// Gate evaluates gating rules. Construction validates the rule table;
// Decide itself is pure and side-effect free.
type Gate struct {
	thresholds map[string]thresholdEntry
	tasks      map[types.TaskType]TaskRule
}

// New loads the embedded rule table. It returns an error if any rule
// references an undefined threshold or uses an unknown operator, since
// those are programming defects that must not surface mid-run.
func New() (*Gate, error) {
	return newFromYAML(gatesYAML)
}

func newFromYAML(data []byte) (*Gate, error) {
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing gate rules: %w", err)
	}
	for tt, rule := range rf.Tasks {
		if rule.MinSignals < 1 {
			return nil, fmt.Errorf("task %s: min_signals must be >= 1 (got %d)", tt, rule.MinSignals)
		}
		if len(rule.DataSignals)+len(rule.AuditSignals) < rule.MinSignals {
			return nil, fmt.Errorf("task %s: min_signals %d exceeds defined signal count %d",
				tt, rule.MinSignals, len(rule.DataSignals)+len(rule.AuditSignals))
		}
		for _, ds := range rule.DataSignals {
			if !ds.Op.valid() {
				return nil, fmt.Errorf("task %s: signal %s: unknown operator %q", tt, ds.Signal, ds.Op)
			}
			if _, ok := rf.Thresholds[ds.Threshold]; !ok {
				return nil, fmt.Errorf("task %s: signal %s: undefined threshold %q", tt, ds.Signal, ds.Threshold)
			}
		}
	}
	return &Gate{thresholds: rf.Thresholds, tasks: rf.Tasks}, nil
}

// TaskTypes returns the task types the gate has rules for.
func (g *Gate) TaskTypes() []types.TaskType {
	out := make([]types.TaskType, 0, len(g.tasks))
	for tt := range g.tasks {
		out = append(out, tt)
	}
	return out
}

// Decide evaluates the rule for taskType against the snapshot. A signal
// whose input is absent from the snapshot never counts as passed.
func (g *Gate) Decide(taskType types.TaskType, device types.DeviceClass, snap types.SignalSnapshot) (types.GatingDecision, error) {
	rule, ok := g.tasks[taskType]
	if !ok {
		return types.GatingDecision{}, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}

	passed := 0
	total := len(rule.DataSignals) + len(rule.AuditSignals)
	for _, ds := range rule.DataSignals {
		value, present := snap.Data[ds.Signal]
		if !present {
			continue // fail closed
		}
		threshold := g.thresholds[ds.Threshold].forDevice(device)
		if ds.Op.compare(value, threshold) {
			passed++
		}
	}
	for _, name := range rule.AuditSignals {
		if flagged, present := snap.Audits[name]; present && flagged {
			passed++
		}
	}

	d := types.GatingDecision{
		TaskType:      taskType,
		ShouldRun:     passed >= rule.MinSignals,
		SignalsPassed: passed,
		SignalsTotal:  total,
	}
	if d.ShouldRun {
		d.Reason = fmt.Sprintf("%d/%d signals passed (need %d)", passed, total, rule.MinSignals)
	} else {
		d.Reason = fmt.Sprintf("only %d/%d signals passed (need %d)", passed, total, rule.MinSignals)
	}
	return d, nil
}

// DecideAll evaluates every configured task type and returns the
// decisions keyed by task type.
func (g *Gate) DecideAll(device types.DeviceClass, snap types.SignalSnapshot) (map[types.TaskType]types.GatingDecision, error) {
	out := make(map[types.TaskType]types.GatingDecision, len(g.tasks))
	for tt := range g.tasks {
		d, err := g.Decide(tt, device, snap)
		if err != nil {
			return nil, err
		}
		out[tt] = d
	}
	return out, nil
}
