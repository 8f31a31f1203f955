package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/odpf/hpcjob/internal/errors"
	"github.com/odpf/hpcjob/internal/telemetry"
)

const (
	defaultRetryAttempts    = 3
	defaultRetryInitBackoff = 500 * time.Millisecond
	defaultRetryMaxBackoff  = 5 * time.Second
)

// RetryPolicy wraps one remote call site. Only errors accepted by Retryable are
// attempted again; anything else is returned as is.
type RetryPolicy struct {
	MaxAttempts int
	Retryable   func(error) bool
	InitBackoff time.Duration
	MaxBackoff  time.Duration
}

// IsTransientRoute retries only the routing errors returned by the remote proxy.
func IsTransientRoute(err error) bool {
	return errors.IsErrorType(err, errors.ErrTransientRoute)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultRetryAttempts,
		Retryable:   IsTransientRoute,
		InitBackoff: defaultRetryInitBackoff,
		MaxBackoff:  defaultRetryMaxBackoff,
	}
}

func (p RetryPolicy) Do(ctx context.Context, f func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransientRoute
	}

	var cause error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			telemetry.NewCounter(telemetry.MetricRemoteCallRetries, nil).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff(i)):
			}
		}

		cause = f()
		if cause == nil || !retryable(cause) {
			return cause
		}
	}
	return fmt.Errorf("remote call failed after %d attempts: %w", attempts, cause)
}

// backoff grows exponentially from InitBackoff and is randomized within the upper half.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.InitBackoff <= 0 {
		return 0
	}
	d := float64(p.InitBackoff) * math.Pow(2, float64(attempt-1))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	return time.Duration(d/2 + rand.Float64()*d/2) // nolint:gosec
}
