package retry

import "time"

// Policy describes how an operation is retried
type Policy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumInterval    time.Duration
	MaximumAttempts    int32
}

// Option configures a Policy
type Option func(*Policy)

// NewPolicy returns a policy with defaults overridden by opts
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    3,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.MaximumAttempts < 1 {
		p.MaximumAttempts = 1
	}
	if p.BackoffCoefficient < 1 {
		p.BackoffCoefficient = 1
	}
	return p
}

// WithInitialInterval sets the delay before the first retry
func WithInitialInterval(d time.Duration) Option {
	return func(p *Policy) {
		p.InitialInterval = d
	}
}

// WithBackoffCoefficient sets the multiplier applied to the delay after each failure
func WithBackoffCoefficient(c float64) Option {
	return func(p *Policy) {
		p.BackoffCoefficient = c
	}
}

// WithMaximumInterval caps the delay between attempts
func WithMaximumInterval(d time.Duration) Option {
	return func(p *Policy) {
		p.MaximumInterval = d
	}
}

// WithMaximumAttempts sets the total number of attempts, first call included
func WithMaximumAttempts(n int32) Option {
	return func(p *Policy) {
		p.MaximumAttempts = n
	}
}

// FixedPolicy retries attempts times with a constant delay
func FixedPolicy(attempts int32, delay time.Duration) *Policy {
	return NewPolicy(
		WithMaximumAttempts(attempts),
		WithInitialInterval(delay),
		WithMaximumInterval(delay),
		WithBackoffCoefficient(1),
	)
}
