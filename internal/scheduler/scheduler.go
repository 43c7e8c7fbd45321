// Package scheduler executes gated analysis tasks against an opaque
// external reasoning service with bounded concurrency, batching, and
// classified retry with exponential backoff.
//
// The scheduler never raises out of Run: every task settles into a
// TaskResult (findings or error), so downstream stages treat "this
// source produced nothing" as a normal state. A failed or hung task only
// delays its own batch; sibling tasks always settle independently.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

// Config holds scheduler tuning. Zero values are replaced by defaults.
type Config struct {
	BatchSize  int           // tasks per batch (default: 3)
	BatchDelay time.Duration // pause between batches (default: 2s)

	MaxAttempts       int           // attempts per task including the first (default: 4)
	InitialBackoff    time.Duration // backoff after the first failure (default: 1s)
	MaxBackoff        time.Duration // backoff ceiling (default: 30s)
	BackoffMultiplier float64       // exponential growth factor (default: 2.0)
	AttemptTimeout    time.Duration // per-attempt timeout, 0 = none (default: 2m)

	// MaxConcurrent caps in-flight task attempts across the whole run,
	// independent of batch size. 0 means no cap beyond the batch.
	MaxConcurrent int

	// Circuit breaker settings; disabled unless BreakerEnabled is set.
	BreakerEnabled          bool
	BreakerFailureThreshold int           // failures before opening (default: 5)
	BreakerSuccessThreshold int           // half-open successes before closing (default: 2)
	BreakerOpenTimeout      time.Duration // how long to stay open (default: 30s)
}

// DefaultConfig returns conservative defaults sized for a rate-limited
// reasoning service.
func DefaultConfig() Config {
	return Config{
		BatchSize:               3,
		BatchDelay:              2 * time.Second,
		MaxAttempts:             4,
		InitialBackoff:          1 * time.Second,
		MaxBackoff:              30 * time.Second,
		BackoffMultiplier:       2.0,
		AttemptTimeout:          2 * time.Minute,
		BreakerFailureThreshold: 5,
		BreakerSuccessThreshold: 2,
		BreakerOpenTimeout:      30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	if c.BreakerFailureThreshold <= 0 {
		c.BreakerFailureThreshold = d.BreakerFailureThreshold
	}
	if c.BreakerSuccessThreshold <= 0 {
		c.BreakerSuccessThreshold = d.BreakerSuccessThreshold
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = d.BreakerOpenTimeout
	}
	return c
}

// Scheduler runs tasks in batches. Safe for reuse across runs; the only
// shared mutable state is the circuit breaker, which is deliberate.
type Scheduler struct {
	cfg     Config
	breaker *CircuitBreaker
	sem     *semaphore.Weighted
	logger  *zap.Logger
}

// New creates a scheduler with the given config and logger.
func New(cfg Config, logger *zap.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{cfg: cfg, logger: logger}
	if cfg.BreakerEnabled {
		s.breaker = NewCircuitBreaker(cfg.BreakerFailureThreshold, cfg.BreakerSuccessThreshold, cfg.BreakerOpenTimeout, logger)
	}
	if cfg.MaxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return s
}

// Run executes all tasks and returns one settled result per task, in
// input order. Tasks are grouped into fixed-size batches; within a
// batch every task runs concurrently, and the next batch starts only
// after every task in the current batch has settled (the batch barrier)
// and the inter-batch delay has elapsed.
//
// Run only returns early if ctx is canceled, in which case the
// remaining tasks settle with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, tasks []types.Task) []types.TaskResult {
	results := make([]types.TaskResult, len(tasks))

	// rate.Limiter paces batch starts; the first Wait does not block.
	var limiter *rate.Limiter
	if s.cfg.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.cfg.BatchDelay), 1)
	}

	for start := 0; start < len(tasks); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := tasks[start:end]

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				s.settleRemaining(results, tasks, start, err)
				return results
			}
		} else if ctx.Err() != nil {
			s.settleRemaining(results, tasks, start, ctx.Err())
			return results
		}

		s.logger.Debug("starting batch",
			zap.Int("batch_start", start),
			zap.Int("batch_size", len(batch)))

		done := make(chan struct{})
		for i, task := range batch {
			go func(idx int, t types.Task) {
				results[idx] = s.runTask(ctx, t)
				done <- struct{}{}
			}(start+i, task)
		}
		for range batch {
			<-done
		}
	}
	return results
}

// settleRemaining fills error results for tasks not yet started when the
// run context is canceled.
func (s *Scheduler) settleRemaining(results []types.TaskResult, tasks []types.Task, from int, err error) {
	for i := from; i < len(tasks); i++ {
		results[i] = types.TaskResult{
			Task:     tasks[i],
			TaskID:   tasks[i].ID(),
			TaskType: tasks[i].Type(),
			Err:      err,
			Error:    err.Error(),
		}
	}
}

// runTask executes one task with classified retry and exponential
// backoff. Retries share nothing between attempts beyond the counter.
func (s *Scheduler) runTask(ctx context.Context, task types.Task) types.TaskResult {
	res := types.TaskResult{Task: task, TaskID: task.ID(), TaskType: task.Type()}
	started := time.Now()
	defer func() {
		res.Duration = time.Since(started)
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
	}()

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			res.Err = fmt.Errorf("acquiring concurrency slot: %w", err)
			return res
		}
		defer s.sem.Release(1)
	}

	var lastErr error
	backoff := s.cfg.InitialBackoff

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt

		findings, err := s.attempt(ctx, task)
		if err == nil {
			if s.breaker != nil {
				s.breaker.RecordSuccess()
			}
			if attempt > 1 {
				s.logger.Info("task succeeded after retries",
					zap.String("task", task.ID()),
					zap.Int("attempts", attempt))
			}
			res.Findings = findings
			return res
		}
		lastErr = err

		class := Classify(err)
		if s.breaker != nil && class == ClassRetryable {
			s.breaker.RecordFailure()
		}
		if class == ClassTerminal {
			s.logger.Warn("task failed terminally",
				zap.String("task", task.ID()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			res.Err = err
			return res
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			res.Err = fmt.Errorf("task %s: %w", task.ID(), ctx.Err())
			return res
		}

		s.logger.Info("task failed, retrying",
			zap.String("task", task.ID()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.cfg.MaxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * s.cfg.BackoffMultiplier)
			if backoff > s.cfg.MaxBackoff {
				backoff = s.cfg.MaxBackoff
			}
		case <-ctx.Done():
			res.Err = fmt.Errorf("task %s: canceled during backoff: %w", task.ID(), ctx.Err())
			return res
		}
	}

	res.Err = fmt.Errorf("task %s failed after %d attempts: %w", task.ID(), s.cfg.MaxAttempts, lastErr)
	return res
}

// attempt makes one task call, honoring the breaker and the per-attempt
// timeout.
func (s *Scheduler) attempt(ctx context.Context, task types.Task) ([]*types.Finding, error) {
	if s.breaker != nil {
		if err := s.breaker.Allow(); err != nil {
			return nil, err
		}
	}
	if s.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()
	}
	return task.Execute(ctx)
}
