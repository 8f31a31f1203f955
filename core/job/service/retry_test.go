package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/odpf/hpcjob/core/job/service"
	hpcerrors "github.com/odpf/hpcjob/internal/errors"
)

func TestRetryPolicy(t *testing.T) {
	ctx := context.Background()
	policy := service.RetryPolicy{MaxAttempts: 3, Retryable: service.IsTransientRoute}

	t.Run("returns immediately on success", func(t *testing.T) {
		calls := 0
		err := policy.Do(ctx, func() error {
			calls++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
	t.Run("does not retry fatal errors", func(t *testing.T) {
		calls := 0
		fatal := errors.New("permission denied")
		err := policy.Do(ctx, func() error {
			calls++
			return fatal
		})

		assert.Equal(t, fatal, err)
		assert.Equal(t, 1, calls)
	})
	t.Run("retries transient route errors until success", func(t *testing.T) {
		calls := 0
		err := policy.Do(ctx, func() error {
			calls++
			if calls < 3 {
				return hpcerrors.TransientRoute("remote", "route failed", nil)
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})
	t.Run("names the last cause when attempts are exhausted", func(t *testing.T) {
		calls := 0
		err := policy.Do(ctx, func() error {
			calls++
			return hpcerrors.TransientRoute("remote", "route failed", errors.New("dp route 502"))
		})

		assert.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "dp route 502")
		assert.True(t, hpcerrors.IsErrorType(err, hpcerrors.ErrTransientRoute))
	})
	t.Run("stops when the context is done", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		slow := service.RetryPolicy{MaxAttempts: 3, InitBackoff: time.Hour}

		calls := 0
		err := slow.Do(cancelled, func() error {
			calls++
			return hpcerrors.TransientRoute("remote", "route failed", nil)
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
