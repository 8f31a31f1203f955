package job_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odpf/hpcjob/core/job"
)

func TestStatus(t *testing.T) {
	t.Run("StatusFromString", func(t *testing.T) {
		t.Run("accepts short codes and display names", func(t *testing.T) {
			testCases := []struct {
				input          string
				expectedOutput job.Status
			}{
				{input: "PEN", expectedOutput: job.StatusPending},
				{input: "Submitted", expectedOutput: job.StatusSubmitted},
				{input: "running", expectedOutput: job.StatusRunning},
				{input: "PAS", expectedOutput: job.StatusPaused},
				{input: "Completed", expectedOutput: job.StatusCompleted},
				{input: "err", expectedOutput: job.StatusError},
				{input: "Aborted", expectedOutput: job.StatusAborted},
				{input: "Other", expectedOutput: job.StatusOther},
			}
			for _, tc := range testCases {
				actual, err := job.StatusFromString(tc.input)

				assert.NoError(t, err)
				assert.Equal(t, tc.expectedOutput, actual)
			}
		})
		t.Run("returns error for unknown status", func(t *testing.T) {
			actual, err := job.StatusFromString("Purged")

			assert.Error(t, err)
			assert.Contains(t, err.Error(), "invalid status Purged")
			assert.Empty(t, actual)
		})
	})
	t.Run("IsTerminal", func(t *testing.T) {
		assert.True(t, job.StatusCompleted.IsTerminal())
		assert.True(t, job.StatusError.IsTerminal())
		assert.True(t, job.StatusAborted.IsTerminal())
		for _, s := range job.NonTerminalStatuses() {
			assert.False(t, s.IsTerminal(), s.String())
		}
	})
	t.Run("DisplayName", func(t *testing.T) {
		assert.Equal(t, "Paused", job.StatusPaused.DisplayName())
		assert.Equal(t, "XYZ", job.Status("XYZ").DisplayName())
	})
}
