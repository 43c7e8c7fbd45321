package scheduler

import (
	"context"
	"errors"
	"strings"
)

// ErrorClass partitions task failures at the scheduler boundary.
type ErrorClass int

const (
	// ClassRetryable covers transient failures: rate limits, network
	// hiccups, upstream 5xx. Worth another attempt after backoff.
	ClassRetryable ErrorClass = iota

	// ClassTerminal covers failures that retrying cannot fix: bad
	// input, auth failures, 4xx client errors. Surfaced immediately.
	ClassTerminal
)

func (c ErrorClass) String() string {
	if c == ClassRetryable {
		return "retryable"
	}
	return "terminal"
}

// ErrCircuitOpen is returned for attempts rejected by an open circuit
// breaker. It is classified as retryable so exhausted retries report a
// transient failure, not a malformed task.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// TerminalError marks an error as terminal regardless of its text.
// Task providers wrap malformed-input and auth failures with this so
// the scheduler does not burn retries on them.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }
func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err as a TerminalError. Returns nil for nil.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// Classify decides whether an error is worth retrying. Explicit
// TerminalError wrappers win; otherwise classification falls back to
// inspecting the error text, since the external service's SDK does not
// expose typed transport errors.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassTerminal
	}
	var te *TerminalError
	if errors.As(err, &te) {
		return ClassTerminal
	}
	if errors.Is(err, ErrCircuitOpen) {
		return ClassRetryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}

	errStr := strings.ToLower(err.Error())

	// Rate limits (429) are retryable.
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return ClassRetryable
	}

	// Server errors (5xx) are retryable.
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return ClassRetryable
	}

	// 4xx client errors indicate requests that won't succeed on retry.
	if strings.Contains(errStr, "400") || strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") || strings.Contains(errStr, "404") {
		return ClassTerminal
	}

	// Network/connection errors are retryable.
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "network") {
		return ClassRetryable
	}

	// Default to not retrying unknown errors.
	return ClassTerminal
}
