package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tagus/enterprise-agents/pkg/logging"
)

func fastPolicy(attempts int32) *Policy {
	return NewPolicy(
		WithMaximumAttempts(attempts),
		WithInitialInterval(time.Millisecond),
		WithMaximumInterval(2*time.Millisecond),
	)
}

func TestExecutor(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		e := NewExecutor(fastPolicy(3), WithLogger(logging.NewNoop()))
		err := e.Execute(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error when attempts exhausted", func(t *testing.T) {
		calls := 0
		e := NewExecutor(fastPolicy(2), WithLogger(logging.NewNoop()))
		err := e.Execute(context.Background(), func() error {
			calls++
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 2, calls)
	})

	t.Run("stops on non retryable error", func(t *testing.T) {
		calls := 0
		e := NewExecutor(fastPolicy(5),
			WithLogger(logging.NewNoop()),
			WithRetryIf(func(err error) bool { return !errors.Is(err, errBoom) }),
		)
		err := e.Execute(context.Background(), func() error {
			calls++
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e := NewExecutor(fastPolicy(3), WithLogger(logging.NewNoop()))
		err := e.Execute(ctx, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPolicyDefaults(t *testing.T) {
	p := NewPolicy(WithMaximumAttempts(0), WithBackoffCoefficient(0.5))
	assert.Equal(t, int32(1), p.MaximumAttempts)
	assert.Equal(t, 1.0, p.BackoffCoefficient)

	fixed := FixedPolicy(2, 2*time.Second)
	assert.Equal(t, int32(2), fixed.MaximumAttempts)
	assert.Equal(t, 2*time.Second, fixed.InitialInterval)
	assert.Equal(t, 2*time.Second, fixed.MaximumInterval)
}
