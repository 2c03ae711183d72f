package retry

import (
	"context"
	"time"

	"github.com/tagus/enterprise-agents/pkg/logging"
)

// Executor handles the execution of operations with retries
type Executor struct {
	policy  *Policy
	logger  logging.Logger
	retryIf func(error) bool
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithLogger sets the executor logger
func WithLogger(logger logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithRetryIf retries only errors for which fn returns true
func WithRetryIf(fn func(error) bool) ExecutorOption {
	return func(e *Executor) {
		e.retryIf = fn
	}
}

// NewExecutor creates a new retry executor with the given policy
func NewExecutor(policy *Policy, opts ...ExecutorOption) *Executor {
	if policy == nil {
		policy = NewPolicy()
	}
	e := &Executor{
		policy: policy,
		logger: logging.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute executes the given operation with retries based on the policy
func (e *Executor) Execute(ctx context.Context, operation func() error) error {
	var lastErr error
	attempt := int32(0)
	currentInterval := e.policy.InitialInterval

	for attempt < e.policy.MaximumAttempts {
		select {
		case <-ctx.Done():
			e.logger.Debug(ctx, "Context cancelled during retry", map[string]interface{}{
				"attempt": attempt,
				"error":   ctx.Err(),
			})
			return ctx.Err()
		default:
			e.logger.Debug(ctx, "Attempting operation", map[string]interface{}{
				"attempt":      attempt + 1,
				"max_attempts": e.policy.MaximumAttempts,
			})

			if err := operation(); err == nil {
				e.logger.Debug(ctx, "Operation succeeded", map[string]interface{}{
					"attempt": attempt + 1,
				})
				return nil
			} else {
				lastErr = err
				attempt++

				if e.retryIf != nil && !e.retryIf(err) {
					e.logger.Debug(ctx, "Error is not retryable", map[string]interface{}{
						"attempt": attempt,
						"error":   err.Error(),
					})
					return err
				}

				if attempt >= e.policy.MaximumAttempts {
					e.logger.Debug(ctx, "Maximum attempts reached", map[string]interface{}{
						"attempt": attempt,
						"error":   err.Error(),
					})
					break
				}

				// Calculate next backoff interval
				nextInterval := time.Duration(float64(currentInterval) * e.policy.BackoffCoefficient)
				if nextInterval > e.policy.MaximumInterval {
					nextInterval = e.policy.MaximumInterval
				}

				e.logger.Debug(ctx, "Operation failed, scheduling retry", map[string]interface{}{
					"attempt":          attempt,
					"error":            err.Error(),
					"current_interval": currentInterval,
					"next_interval":    nextInterval,
				})

				select {
				case <-ctx.Done():
					e.logger.Debug(ctx, "Context cancelled during retry delay", map[string]interface{}{
						"attempt": attempt,
						"error":   ctx.Err(),
					})
					return ctx.Err()
				case <-time.After(currentInterval):
					currentInterval = nextInterval
				}
			}
		}
	}

	return lastErr
}
