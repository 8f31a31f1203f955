package job_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/internal/errors"
)

func TestTransition(t *testing.T) {
	newJob := func(status job.Status) *job.Job {
		j := job.NewJob("sim", "user", "app", job.Placement{System: "onyx"}, nil)
		j.ForceStatus(status)
		return j
	}

	t.Run("moves forward along the lifecycle", func(t *testing.T) {
		j := newJob(job.StatusPending)

		assert.NoError(t, j.Transition(job.StatusSubmitted))
		assert.NoError(t, j.Transition(job.StatusRunning))
		assert.NoError(t, j.Transition(job.StatusPaused))
		assert.NoError(t, j.Transition(job.StatusRunning))
		assert.NoError(t, j.Transition(job.StatusCompleted))
		assert.Equal(t, job.StatusCompleted, j.Status())
	})
	t.Run("allows running job to be superseded by its cleanup job", func(t *testing.T) {
		j := newJob(job.StatusRunning)

		assert.NoError(t, j.Transition(job.StatusSubmitted))
		assert.Equal(t, job.StatusSubmitted, j.Status())
	})
	t.Run("treats same status as no-op", func(t *testing.T) {
		j := newJob(job.StatusRunning)

		assert.NoError(t, j.Transition(job.StatusRunning))
		assert.Equal(t, job.StatusRunning, j.Status())
	})
	t.Run("rejects leaving a terminal status", func(t *testing.T) {
		for _, terminal := range []job.Status{job.StatusCompleted, job.StatusError, job.StatusAborted} {
			j := newJob(terminal)

			err := j.Transition(job.StatusRunning)

			assert.True(t, errors.IsErrorType(err, errors.ErrStateConflict))
			assert.Equal(t, terminal, j.Status())
			assert.False(t, j.CanTransition(job.StatusSubmitted))
		}
	})
	t.Run("rejects going back to pending", func(t *testing.T) {
		j := newJob(job.StatusSubmitted)

		err := j.Transition(job.StatusPending)

		assert.True(t, errors.IsErrorType(err, errors.ErrStateConflict))
	})
	t.Run("resubmit leaves terminal statuses", func(t *testing.T) {
		j := newJob(job.StatusError)

		assert.NoError(t, j.TransitionForResubmit())
		assert.Equal(t, job.StatusSubmitted, j.Status())
	})
	t.Run("any non terminal status can fail", func(t *testing.T) {
		for _, s := range job.NonTerminalStatuses() {
			j := newJob(s)

			assert.True(t, j.CanTransition(job.StatusError), s.String())
			assert.NoError(t, j.Transition(job.StatusError))
		}
	})
}
