package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfsleuth/perfsleuth/internal/scheduler"
	"github.com/perfsleuth/perfsleuth/internal/types"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Scheduler = scheduler.Config{
		BatchSize:      3,
		BatchDelay:     time.Millisecond,
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
	return cfg
}

// coverageTask emits one clean unused-code finding for app.js.
func coverageTask(id string) types.Task {
	return &types.TaskFunc{
		TaskID:   id,
		TaskType: types.TaskCoverage,
		Fn: func(ctx context.Context) ([]*types.Finding, error) {
			return []*types.Finding{{
				ID:          id + "-f1",
				Kind:        types.KindWaste,
				Metric:      types.MetricLCP,
				Description: "312KB of unused JavaScript in app.js",
				Evidence: types.Evidence{
					Source:     "coverage-report",
					Reference:  "app.js: 312KB of 460KB unused (68%)",
					Confidence: 0.8,
				},
				EstimatedImpact: types.Impact{Reduction: 600, Confidence: 0.7},
				ProducedBy:      id,
			}}, nil
		},
	}
}

// richSnapshot passes at least one signal for every task type.
var richSnapshot = types.SignalSnapshot{
	Data: map[string]float64{
		"lcpValue":      4200,
		"entriesCount":  200,
		"transferBytes": 2_000_000,
		"unusedBytes":   312_000,
		"domSize":       2100,
	},
	Audits: map[string]bool{
		"render-blocking-resources": true,
		"unused-javascript":         true,
	},
}

func TestRun_EndToEnd(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Input{
		URL:      "https://example.com",
		Snapshot: richSnapshot,
		MetricValues: types.MetricValues{
			types.MetricLCP: 4200,
		},
		Tasks: []types.Task{coverageTask("coverage")},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.Decisions[types.TaskCoverage].ShouldRun)
	require.Len(t, res.TaskResults, 1)
	require.NotNil(t, res.Dedup)
	require.Len(t, res.Dedup.Findings, 1)

	require.NotNil(t, res.Graph)
	assert.NotNil(t, res.Graph.Node("coverage-f1"))
	assert.NotNil(t, res.Graph.Node("metric:LCP"))
	require.NotNil(t, res.Export)
	assert.Equal(t, 2, res.Export.Stats.TotalNodes)

	require.Len(t, res.ValidationResults, 1)
	assert.Equal(t, []string{"coverage-f1"}, res.Approved)
	assert.Empty(t, res.Blocked)
	assert.False(t, res.CompletedAt.Before(res.StartedAt))
}

func TestRun_GateSkipsUnjustifiedTasks(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	var executed bool
	task := &types.TaskFunc{
		TaskID:   "coverage",
		TaskType: types.TaskCoverage,
		Fn: func(ctx context.Context) ([]*types.Finding, error) {
			executed = true
			return nil, nil
		},
	}

	res, err := p.Run(context.Background(), Input{
		Snapshot: types.SignalSnapshot{}, // nothing passes
		Tasks:    []types.Task{task},
	})
	require.NoError(t, err)

	assert.False(t, executed, "gated-off task must never execute")
	assert.False(t, res.Decisions[types.TaskCoverage].ShouldRun)
	assert.Empty(t, res.TaskResults)
}

func TestRun_UnknownTaskTypeFailsFast(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	task := &types.TaskFunc{
		TaskID:   "mystery",
		TaskType: types.TaskType("mystery"),
		Fn:       func(ctx context.Context) ([]*types.Finding, error) { return nil, nil },
	}
	_, err = p.Run(context.Background(), Input{Snapshot: richSnapshot, Tasks: []types.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestRun_FailedTaskDegradesToWarning(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	failing := &types.TaskFunc{
		TaskID:   "network-trace",
		TaskType: types.TaskNetworkTrace,
		Fn: func(ctx context.Context) ([]*types.Finding, error) {
			return nil, scheduler.Terminal(errors.New("model returned prose"))
		},
	}

	res, err := p.Run(context.Background(), Input{
		Snapshot:     richSnapshot,
		MetricValues: types.MetricValues{types.MetricLCP: 4200},
		Tasks:        []types.Task{failing, coverageTask("coverage")},
	})
	require.NoError(t, err, "a failed task must not fail the run")

	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "network-trace")
	require.Len(t, res.Dedup.Findings, 1, "surviving task's findings still flow through")
}

func TestRun_MalformedFindingDropped(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	task := &types.TaskFunc{
		TaskID:   "coverage",
		TaskType: types.TaskCoverage,
		Fn: func(ctx context.Context) ([]*types.Finding, error) {
			return []*types.Finding{
				{ID: "bad", Kind: "nonsense", Metric: types.MetricLCP, Description: "x", ProducedBy: "coverage"},
			}, nil
		},
	}

	res, err := p.Run(context.Background(), Input{Snapshot: richSnapshot, Tasks: []types.Task{task}})
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "malformed finding")
	assert.Empty(t, res.Dedup.Findings)
}

func TestRun_BlockingModeBlocksInvalid(t *testing.T) {
	cfg := testConfig()
	cfg.BlockingMode = true
	p, err := New(cfg, nil)
	require.NoError(t, err)

	badSource := &types.TaskFunc{
		TaskID:   "coverage",
		TaskType: types.TaskCoverage,
		Fn: func(ctx context.Context) ([]*types.Finding, error) {
			return []*types.Finding{{
				ID:          "f-untrusted",
				Kind:        types.KindWaste,
				Metric:      types.MetricLCP,
				Description: "Unused JavaScript somewhere",
				Evidence:    types.Evidence{Source: "crystal-ball", Reference: "app.js 312KB", Confidence: 0.9},
				ProducedBy:  "coverage",
			}}, nil
		},
	}

	res, err := p.Run(context.Background(), Input{
		Snapshot:     richSnapshot,
		MetricValues: types.MetricValues{types.MetricLCP: 4200},
		Tasks:        []types.Task{badSource},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"f-untrusted"}, res.Blocked)
	assert.Empty(t, res.Approved)
}

func TestRun_AdjustModeMarksCappedFindings(t *testing.T) {
	p, err := New(testConfig(), nil)
	require.NoError(t, err)

	capped := &types.TaskFunc{
		TaskID:   "coverage",
		TaskType: types.TaskCoverage,
		Fn: func(ctx context.Context) ([]*types.Finding, error) {
			f := coverageTask("coverage")
			out, _ := f.Execute(ctx)
			out[0].EstimatedImpact.Reduction = 5000
			return out, nil
		},
	}

	res, err := p.Run(context.Background(), Input{
		Snapshot:     richSnapshot,
		MetricValues: types.MetricValues{types.MetricLCP: 4200},
		Tasks:        []types.Task{capped},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"coverage-f1"}, res.Adjusted)
	assert.Equal(t, []string{"coverage-f1"}, res.Approved, "adjusted findings remain approved")
	require.NotNil(t, res.ValidationResults[0].AdjustedImpact)
	assert.Equal(t, 2000.0, res.ValidationResults[0].AdjustedImpact.Reduction)
}

func TestRun_StrictModeBlocksWarnings(t *testing.T) {
	cfg := testConfig()
	cfg.StrictMode = true
	p, err := New(cfg, nil)
	require.NoError(t, err)

	capped := &types.TaskFunc{
		TaskID:   "coverage",
		TaskType: types.TaskCoverage,
		Fn: func(ctx context.Context) ([]*types.Finding, error) {
			f := coverageTask("coverage")
			out, _ := f.Execute(ctx)
			out[0].EstimatedImpact.Reduction = 5000 // warning via cap
			return out, nil
		},
	}

	res, err := p.Run(context.Background(), Input{
		Snapshot:     richSnapshot,
		MetricValues: types.MetricValues{types.MetricLCP: 4200},
		Tasks:        []types.Task{capped},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"coverage-f1"}, res.Blocked)
}

func TestNew_InvalidDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = "tablet"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestConfigFile_Overrides(t *testing.T) {
	cf := &ConfigFile{Device: "desktop"}
	off := false
	cf.BlockingMode = &off
	cf.Scheduler.BatchSize = 7
	cf.Scheduler.BatchDelay = "250ms"

	cfg, err := cf.ToConfig()
	require.NoError(t, err)
	assert.Equal(t, types.DeviceDesktop, cfg.Device)
	assert.False(t, cfg.BlockingMode)
	assert.True(t, cfg.AdjustMode, "unset flags keep their defaults")
	assert.Equal(t, 7, cfg.Scheduler.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.BatchDelay)
}

func TestConfigFile_Invalid(t *testing.T) {
	cf := &ConfigFile{Device: "toaster"}
	_, err := cf.ToConfig()
	assert.Error(t, err)

	cf = &ConfigFile{}
	cf.Scheduler.BatchDelay = "soon"
	_, err = cf.ToConfig()
	assert.Error(t, err)
}
