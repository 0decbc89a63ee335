// Package retry provides exponential-backoff retry for transient provider
// and store failures. Jobs themselves never retry; this executor is used by
// the polling worker and CLI commands that own retry policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"batchflow/internal/application/common/slogger"
	"batchflow/internal/domain/entity"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	Jitter        bool          `json:"jitter"`
}

// DefaultConfig returns a default retry configuration suited to polling a
// remote batch API.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Operation represents an operation that can be retried.
type Operation func(ctx context.Context) error

// Checker classifies errors as retryable or not.
type Checker interface {
	IsRetryable(err error) bool
}

// Executor handles retry logic with exponential backoff.
type Executor struct {
	config  *Config
	checker Checker
}

// NewExecutor creates a retry executor with the default checker.
func NewExecutor(config *Config) *Executor {
	return NewExecutorWithChecker(config, nil)
}

// NewExecutorWithChecker creates a retry executor with a custom checker.
func NewExecutorWithChecker(config *Config, checker Checker) *Executor {
	if config == nil {
		config = DefaultConfig()
	}
	if checker == nil {
		checker = &ProviderErrorChecker{}
	}
	return &Executor{config: config, checker: checker}
}

// Execute runs the operation, retrying retryable failures with backoff until
// the attempt budget is exhausted or the context is cancelled.
func (e *Executor) Execute(ctx context.Context, operation Operation) error {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.calculateDelay(attempt)
			slogger.Debug(ctx, "Retrying operation after delay", slogger.Fields2(
				"attempt", attempt,
				"delay", delay.String(),
			))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !e.checker.IsRetryable(err) {
			return err
		}

		slogger.Warn(ctx, "Operation failed, will retry", slogger.Fields3(
			"error", err.Error(),
			"attempt", attempt+1,
			"max_retries", e.config.MaxRetries,
		))
	}

	return fmt.Errorf("operation failed after %d retries: %w", e.config.MaxRetries, lastErr)
}

// calculateDelay computes the backoff delay for a given attempt.
func (e *Executor) calculateDelay(attempt int) time.Duration {
	delay := float64(e.config.InitialDelay) * math.Pow(e.config.BackoffFactor, float64(attempt-1))
	if delay > float64(e.config.MaxDelay) {
		delay = float64(e.config.MaxDelay)
	}
	if e.config.Jitter {
		// up to +/-25% jitter to avoid polling in lockstep
		jitterRange := delay * 0.25
		delay += (rand.Float64()*2 - 1) * jitterRange
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// ProviderErrorChecker classifies provider-boundary errors. Poll failures
// are transient by definition; submissions are retried only on recognizable
// transport faults, since a provider-side rejection will not heal on its own.
type ProviderErrorChecker struct{}

// IsRetryable reports whether the error should be retried.
func (c *ProviderErrorChecker) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pollErr *entity.PollError
	if errors.As(err, &pollErr) {
		return true
	}

	var subErr *entity.SubmissionError
	if errors.As(err, &subErr) {
		return isTransportError(subErr.Err)
	}

	return isTransportError(err)
}

func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"timed out",
		"temporary",
		"try again",
		"too many requests",
		"rate limit",
		"service unavailable",
		"network is unreachable",
		"no route to host",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// WithRetry executes an operation with the default configuration.
func WithRetry(ctx context.Context, operation Operation) error {
	return NewExecutor(DefaultConfig()).Execute(ctx, operation)
}

// WithRetryConfig executes an operation with a custom configuration.
func WithRetryConfig(ctx context.Context, config *Config, operation Operation) error {
	return NewExecutor(config).Execute(ctx, operation)
}
